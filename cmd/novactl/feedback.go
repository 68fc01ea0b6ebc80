package main

import (
	"github.com/spf13/cobra"

	"nova-xfinity/internal/domain"
)

func newFeedbackCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "feedback",
		Short: "Submit feedback and read provider statistics",
	}
	cmd.AddCommand(newFeedbackSubmitCmd(opts), newFeedbackStatsCmd(opts), newFeedbackRecommendCmd(opts), newFeedbackHistoryCmd(opts))
	return cmd
}

func newFeedbackSubmitCmd(opts *options) *cobra.Command {
	var in domain.FeedbackInput
	cmd := &cobra.Command{
		Use:   "submit",
		Short: "Rate a generated piece of content",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := opts.client()
			if err != nil {
				return err
			}
			fb, err := c.SubmitFeedback(cmd.Context(), in)
			if err != nil {
				return err
			}
			return opts.print(fb)
		},
	}
	f := cmd.Flags()
	f.StringVar(&in.ContentType, "type", "", "content type, e.g. ARTICLE")
	f.StringVar(&in.Provider, "provider", "", "provider, e.g. OPENAI")
	f.StringVar(&in.Model, "model", "", "model name")
	f.IntVar(&in.Rating, "rating", 0, "-1 or 1 for thumbs, 1-5 for stars")
	f.StringVar(&in.Comment, "comment", "", "free text comment")
	f.StringVar(&in.ContentID, "content-id", "", "id of the rated content")
	_ = cmd.MarkFlagRequired("type")
	_ = cmd.MarkFlagRequired("provider")
	_ = cmd.MarkFlagRequired("rating")
	return cmd
}

func newFeedbackStatsCmd(opts *options) *cobra.Command {
	var (
		contentType string
		days        int
	)
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show rating statistics per provider and model",
		RunE: func(cmd *cobra.Command, args []string) error {
			var ct domain.ContentType
			if contentType != "" {
				parsed, err := domain.ParseContentType(contentType)
				if err != nil {
					return err
				}
				ct = parsed
			}
			c, err := opts.client()
			if err != nil {
				return err
			}
			stats, err := c.FeedbackStats(cmd.Context(), ct, days)
			if err != nil {
				return err
			}
			return opts.print(stats)
		},
	}
	cmd.Flags().StringVar(&contentType, "type", "", "restrict to a content type")
	cmd.Flags().IntVar(&days, "days", 0, "window in days (server default when 0)")
	return cmd
}

func newFeedbackRecommendCmd(opts *options) *cobra.Command {
	var (
		contentType string
		minRating   float64
	)
	cmd := &cobra.Command{
		Use:   "recommend",
		Short: "Recommend a provider and model for a content type",
		RunE: func(cmd *cobra.Command, args []string) error {
			ct, err := domain.ParseContentType(contentType)
			if err != nil {
				return err
			}
			c, err := opts.client()
			if err != nil {
				return err
			}
			rec, err := c.Recommend(cmd.Context(), ct, minRating)
			if err != nil {
				return err
			}
			return opts.print(rec)
		},
	}
	cmd.Flags().StringVar(&contentType, "type", "", "content type")
	cmd.Flags().Float64Var(&minRating, "min-rating", 0, "minimum average rating (server default when 0)")
	_ = cmd.MarkFlagRequired("type")
	return cmd
}

func newFeedbackHistoryCmd(opts *options) *cobra.Command {
	var limit, offset int
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List your feedback, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := opts.client()
			if err != nil {
				return err
			}
			page, err := c.FeedbackHistory(cmd.Context(), limit, offset)
			if err != nil {
				return err
			}
			return opts.print(page)
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "page size")
	cmd.Flags().IntVar(&offset, "offset", 0, "records to skip")
	return cmd
}
