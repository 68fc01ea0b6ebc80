package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"nova-xfinity/internal/adapters/novaclient"
	"nova-xfinity/internal/domain"
	"nova-xfinity/internal/usecase/assistant"
)

func newSessionCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "session",
		Short: "Inspect assistant sessions",
	}
	cmd.AddCommand(newSessionEstimateCmd(opts), newSessionTokensCmd(opts), newSessionClearCmd(opts))
	return cmd
}

// newSessionEstimateCmd estimates a transcript locally without calling the API.
func newSessionEstimateCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "estimate <messages.json>",
		Short: "Estimate the tokens of a JSON array of chat messages",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			var msgs []domain.ChatMessage
			if err := json.Unmarshal(data, &msgs); err != nil {
				return fmt.Errorf("decode %s: %w", args[0], err)
			}
			perMessage := make([]int, len(msgs))
			for i, m := range msgs {
				perMessage[i] = assistant.EstimateTokens(m)
			}
			return opts.print(map[string]any{
				"messages": perMessage,
				"total":    assistant.EstimateConversation(msgs),
			})
		},
	}
}

func newSessionTokensCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "tokens <session-id>",
		Short: "Show the running token total of a session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := opts.client()
			if err != nil {
				return err
			}
			usage, err := c.SessionTokens(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return opts.print(usage)
		},
	}
}

func newSessionClearCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "clear <session-id>",
		Short: "Clear the conversation and token total of a session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := opts.client()
			if err != nil {
				return err
			}
			if err := c.ClearSession(cmd.Context(), args[0]); err != nil {
				return err
			}
			_, err = fmt.Fprintf(opts.out, "session %s cleared\n", args[0])
			return err
		},
	}
}

func newSettingsCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Read or change platform settings",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := opts.client()
			if err != nil {
				return err
			}
			view, err := c.Settings(cmd.Context())
			if err != nil {
				return err
			}
			return opts.print(view)
		},
	}

	var (
		provider  string
		keyphrase string
	)
	set := &cobra.Command{
		Use:   "set",
		Short: "Change the default provider or focus keyphrase",
		RunE: func(cmd *cobra.Command, args []string) error {
			var u novaclient.SettingsUpdate
			if cmd.Flags().Changed("provider") {
				u.Provider = &provider
			}
			if cmd.Flags().Changed("keyphrase") {
				u.FocusKeyphrase = &keyphrase
			}
			c, err := opts.client()
			if err != nil {
				return err
			}
			view, err := c.UpdateSettings(cmd.Context(), u)
			if err != nil {
				return err
			}
			return opts.print(view)
		},
	}
	set.Flags().StringVar(&provider, "provider", "", "default provider")
	set.Flags().StringVar(&keyphrase, "keyphrase", "", "focus keyphrase")
	cmd.AddCommand(set)
	return cmd
}
