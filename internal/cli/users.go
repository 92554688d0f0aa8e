package cli

import (
	"context"
	"fmt"

	"github.com/ansyar-project/split-the-bill/internal/app"
	"github.com/ansyar-project/split-the-bill/internal/models"
	"github.com/ansyar-project/split-the-bill/internal/services"
	"github.com/ansyar-project/split-the-bill/pkg/utils"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

func newUsersCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "users",
		Short: "Manage user accounts",
	}

	cmd.AddCommand(
		newUsersListCmd(opts),
		newUsersRoleCmd(opts, "promote", "Grant the system admin role"),
		newUsersRoleCmd(opts, "demote", "Revoke the system admin role"),
		newUsersDeleteCmd(opts),
	)
	return cmd
}

func newUsersListCmd(opts *rootOptions) *cobra.Command {
	var (
		search string
		page   int
		limit  int
	)

	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List user accounts",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if page < 1 {
				page = 1
			}
			if limit < 1 || limit > 100 {
				return fmt.Errorf("--limit must be between 1 and 100")
			}
			params := utils.NewPagination(page, limit)

			return opts.withApp(cmd, func(ctx context.Context, a *app.App) error {
				users, total, err := a.Services.Users.List(ctx, services.SystemActor(), search, params)
				if err != nil {
					return err
				}
				if opts.json {
					return writeJSON(cmd.OutOrStdout(), map[string]interface{}{
						"users": users,
						"page":  params.Page,
						"limit": params.Limit,
						"total": total,
					})
				}
				userTable(cmd.OutOrStdout(), users)
				fmt.Fprintf(cmd.OutOrStdout(), "\n%d of %d user(s), page %d.\n", len(users), total, params.Page)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&search, "search", "", "Filter by name or email")
	cmd.Flags().IntVar(&page, "page", 1, "Page number")
	cmd.Flags().IntVar(&limit, "limit", 50, "Page size")
	return cmd
}

func newUsersRoleCmd(opts *rootOptions, use, short string) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <email|id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(cmd, func(ctx context.Context, a *app.App) error {
				target, err := resolveUser(ctx, a, args[0])
				if err != nil {
					return err
				}

				var user *models.User
				if use == "promote" {
					user, err = a.Services.Users.Promote(ctx, services.SystemActor(), target.ID)
				} else {
					user, err = a.Services.Users.Demote(ctx, services.SystemActor(), target.ID)
				}
				if err != nil {
					return err
				}

				if opts.json {
					return writeJSON(cmd.OutOrStdout(), user)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s is now %s.\n", user.Email, user.Role)
				return nil
			})
		},
	}
}

func newUsersDeleteCmd(opts *rootOptions) *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:     "delete <email|id>",
		Aliases: []string{"rm"},
		Short:   "Delete a user account without expense history",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				return fmt.Errorf("refusing to delete %s without --yes", args[0])
			}

			return opts.withApp(cmd, func(ctx context.Context, a *app.App) error {
				target, err := resolveUser(ctx, a, args[0])
				if err != nil {
					return err
				}
				if err := a.Services.Users.Delete(ctx, services.SystemActor(), target.ID); err != nil {
					return err
				}

				if opts.json {
					return writeJSON(cmd.OutOrStdout(), map[string]string{"deleted": target.ID.String()})
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s.\n", target.Email)
				return nil
			})
		},
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Confirm the deletion")
	return cmd
}

// resolveUser accepts either a user id or an email address.
func resolveUser(ctx context.Context, a *app.App, ref string) (*models.User, error) {
	if id, err := uuid.Parse(ref); err == nil {
		return a.Services.Users.Find(ctx, id)
	}
	return a.Services.Users.FindByEmail(ctx, ref)
}
