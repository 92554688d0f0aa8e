// Package cli implements splitctl, the operator command line that runs the
// same services as the HTTP API against the configured database.
package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/ansyar-project/split-the-bill/internal/app"
	"github.com/ansyar-project/split-the-bill/internal/config"
	"github.com/spf13/cobra"
)

type rootOptions struct {
	json    bool
	envFile string
	cfg     *config.Config
}

// NewRootCommand builds the splitctl command tree.
func NewRootCommand() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:   "splitctl",
		Short: "splitctl administers a split-the-bill deployment",
		Long: `splitctl runs maintenance tasks directly against the split-the-bill
database, acting as the system operator.

Examples:
  splitctl migrate
  splitctl users list --search alice
  splitctl users promote alice@example.com
  splitctl report pdf --group <id> --month 3 --year 2024 --out march.pdf`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if opts.envFile != "" {
				if err := os.Setenv("ENV_FILE", opts.envFile); err != nil {
					return fmt.Errorf("setting env file: %w", err)
				}
			}
			opts.cfg = config.Load()
			return nil
		},
	}

	root.PersistentFlags().BoolVar(&opts.json, "json", false, "Output as JSON")
	root.PersistentFlags().StringVar(&opts.envFile, "env-file", "", "Load settings from this file (default: .env)")

	root.AddCommand(
		newMigrateCmd(opts),
		newUsersCmd(opts),
		newReportCmd(opts),
		newInvitesCmd(opts),
	)
	return root
}

// Execute runs splitctl with the process arguments.
func Execute() error {
	if err := NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return err
	}
	return nil
}

// withApp builds the services for one command and releases them afterwards.
func (o *rootOptions) withApp(cmd *cobra.Command, fn func(ctx context.Context, a *app.App) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	a, err := app.Build(ctx, o.cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	return fn(ctx, a)
}
