package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"nova-xfinity/internal/app"
	"nova-xfinity/internal/domain"
	"nova-xfinity/internal/infra/config"
	httpinfra "nova-xfinity/internal/infra/http"
)

func newUsageCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "usage",
		Short: "Show this month's usage against the plan limits",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := opts.client()
			if err != nil {
				return err
			}
			report, err := c.Usage(cmd.Context())
			if err != nil {
				return err
			}
			return opts.print(report)
		},
	}
}

func newStatusCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the subscription status",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := opts.client()
			if err != nil {
				return err
			}
			sub, err := c.Subscription(cmd.Context())
			if err != nil {
				return err
			}
			return opts.print(sub)
		},
	}
}

func newConsumeCmd(opts *options) *cobra.Command {
	var amount int
	cmd := &cobra.Command{
		Use:   "consume <feature>",
		Short: "Record usage of a metered feature",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := domain.ParseFeature(args[0])
			if err != nil {
				return err
			}
			c, err := opts.client()
			if err != nil {
				return err
			}
			report, err := c.ConsumeUsage(cmd.Context(), f, amount)
			if err != nil {
				return err
			}
			return opts.print(report)
		},
	}
	cmd.Flags().IntVar(&amount, "amount", 1, "units to record")
	return cmd
}

func newTokenCmd(opts *options) *cobra.Command {
	var (
		userID string
		secret string
		ttl    time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a bearer token for local development",
		RunE: func(cmd *cobra.Command, args []string) error {
			if secret == "" {
				return errors.New("--secret or JWT_SECRET is required")
			}
			token, err := httpinfra.IssueToken(secret, userID, ttl, time.Now())
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(opts.out, token)
			return err
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "user id put into the sub claim")
	cmd.Flags().StringVar(&secret, "secret", envOr("JWT_SECRET", ""), "HMAC secret of the API")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

// newPlanCmd writes subscriptions straight into the configured storage.
func newPlanCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Manage subscriptions in the database",
	}

	var (
		userID string
		plan   string
		status string
	)
	set := &cobra.Command{
		Use:   "set",
		Short: "Assign a plan to a user",
		RunE: func(cmd *cobra.Command, args []string) error {
			name := domain.PlanName(strings.ToUpper(plan))
			if domain.PlanFor(name).Name != name {
				return fmt.Errorf("unknown plan %q", plan)
			}
			cfg, err := config.LoadFrom("")
			if err != nil {
				return err
			}
			store, closeStore, err := app.OpenStorage(cmd.Context(), cfg, zerolog.Nop())
			if err != nil {
				return err
			}
			defer closeStore()

			period := domain.MonthPeriod(time.Now())
			sub := domain.Subscription{
				UserID:             userID,
				Plan:               name,
				Status:             domain.SubscriptionStatus(strings.ToUpper(status)),
				CurrentPeriodStart: &period.Start,
				CurrentPeriodEnd:   &period.End,
			}
			if err := store.UpsertSubscription(cmd.Context(), sub); err != nil {
				return err
			}
			return opts.print(sub)
		},
	}
	set.Flags().StringVar(&userID, "user", "", "user id")
	set.Flags().StringVar(&plan, "plan", string(domain.PlanPro), "FREE, PRO or ENTERPRISE")
	set.Flags().StringVar(&status, "status", string(domain.SubscriptionActive), "ACTIVE, CANCELED or PAST_DUE")
	_ = set.MarkFlagRequired("user")

	cmd.AddCommand(set)
	return cmd
}
