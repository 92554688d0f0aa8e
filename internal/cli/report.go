package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/ansyar-project/split-the-bill/internal/app"
	"github.com/ansyar-project/split-the-bill/internal/services"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

func newReportCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Export group expense reports",
	}
	cmd.AddCommand(newReportPDFCmd(opts))
	return cmd
}

func newReportPDFCmd(opts *rootOptions) *cobra.Command {
	var (
		groupID string
		month   int
		year    int
		out     string
	)

	cmd := &cobra.Command{
		Use:   "pdf",
		Short: "Render a group's report as PDF",
		Long: `Render a group's balances and expenses as a PDF document.

Pass --month and --year together for a single month; omit both for all time.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			gid, err := uuid.Parse(groupID)
			if err != nil {
				return fmt.Errorf("invalid --group %q", groupID)
			}

			var monthPtr, yearPtr *int
			if cmd.Flags().Changed("month") {
				monthPtr = &month
			}
			if cmd.Flags().Changed("year") {
				yearPtr = &year
			}

			if out == "" {
				out = "expense-report.pdf"
				if monthPtr != nil && yearPtr != nil {
					out = fmt.Sprintf("expense-report-%04d-%02d.pdf", year, month)
				}
			}

			return opts.withApp(cmd, func(ctx context.Context, a *app.App) error {
				doc, err := a.Services.Reports.PDF(ctx, services.SystemActor(), gid, monthPtr, yearPtr)
				if err != nil {
					return err
				}
				if err := os.WriteFile(out, doc.Data, 0o644); err != nil {
					return fmt.Errorf("writing %s: %w", out, err)
				}

				if opts.json {
					return writeJSON(cmd.OutOrStdout(), map[string]interface{}{
						"path":       out,
						"bytes":      len(doc.Data),
						"archiveKey": doc.ArchiveKey,
						"archiveURL": doc.ArchiveURL,
					})
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s (%s).\n", out, formatSize(int64(len(doc.Data))))
				if doc.ArchiveKey != "" {
					fmt.Fprintf(cmd.OutOrStdout(), "Archived as %s.\n", doc.ArchiveKey)
				}
				if doc.ArchiveURL != "" {
					fmt.Fprintf(cmd.OutOrStdout(), "Download link: %s\n", doc.ArchiveURL)
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&groupID, "group", "", "Group ID")
	cmd.Flags().IntVar(&month, "month", 0, "Month (1-12)")
	cmd.Flags().IntVar(&year, "year", 0, "Year")
	cmd.Flags().StringVarP(&out, "out", "o", "", "Output file (default: expense-report[-YYYY-MM].pdf)")
	_ = cmd.MarkFlagRequired("group")
	return cmd
}
