package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"nova-xfinity/internal/adapters/novaclient"
)

var version = "dev"

type options struct {
	apiURL  string
	token   string
	timeout time.Duration
	out     io.Writer
}

func main() {
	if err := newRootCmd(os.Stdout).Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd(out io.Writer) *cobra.Command {
	opts := &options{out: out}

	root := &cobra.Command{
		Use:           "novactl",
		Short:         "Command line client of the Nova-XFinity API",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.SetOut(out)
	root.PersistentFlags().StringVar(&opts.apiURL, "api", envOr("NOVA_API_URL", "http://localhost:8080"), "API base URL")
	root.PersistentFlags().StringVar(&opts.token, "token", os.Getenv("NOVA_TOKEN"), "bearer token")
	root.PersistentFlags().DurationVar(&opts.timeout, "timeout", 10*time.Second, "request timeout")

	root.AddCommand(
		newFeedbackCmd(opts),
		newUsageCmd(opts),
		newStatusCmd(opts),
		newConsumeCmd(opts),
		newSessionCmd(opts),
		newSettingsCmd(opts),
		newTokenCmd(opts),
		newPlanCmd(opts),
	)
	return root
}

func (o *options) client() (*novaclient.Client, error) {
	return novaclient.New(o.apiURL, novaclient.WithToken(o.token), novaclient.WithTimeout(o.timeout))
}

func (o *options) print(v any) error {
	enc := json.NewEncoder(o.out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	return nil
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
