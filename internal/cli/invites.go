package cli

import (
	"context"
	"fmt"

	"github.com/ansyar-project/split-the-bill/internal/app"
	"github.com/spf13/cobra"
)

func newInvitesCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "invites",
		Short: "Maintain invite links",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "purge",
		Short: "Delete expired invite links",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(cmd, func(ctx context.Context, a *app.App) error {
				removed, err := a.Services.Invites.PurgeExpired(ctx)
				if err != nil {
					return err
				}
				if opts.json {
					return writeJSON(cmd.OutOrStdout(), map[string]int64{"purged": removed})
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Purged %d expired invite(s).\n", removed)
				return nil
			})
		},
	})
	return cmd
}
