package commands

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/goban/core/internal/client/request"
)

func newLogsCommand(a *App) *cobra.Command {
	var q request.LogQuery

	cmd := dashboardCommand(a, "logs", "Browse monitor history")
	cmd.PersistentFlags().Int64Var(&q.TaskID, "task-id", 0, "only this task")
	cmd.PersistentFlags().IntVar(&q.Page, "page", 1, "page number")
	cmd.PersistentFlags().IntVar(&q.PageSize, "page-size", 0, "entries per page (server default 50)")

	cmd.AddCommand(
		&cobra.Command{
			Use:   "monitor",
			Short: "Monitor run logs",
			RunE: func(cmd *cobra.Command, args []string) error {
				page, err := a.client.Logs().Monitor(cmd.Context(), q)
				if err != nil {
					return err
				}
				return a.table(page, "TIME\tTASK\tLEVEL\tMESSAGE", func(w io.Writer) {
					for _, l := range page.Data {
						fmt.Fprintf(w, "%s\t%d\t%s\t%s\n", formatTime(l.CreatedAt), l.TaskID, l.Level, l.Message)
					}
					fmt.Fprintf(w, "page %d, %d of %d\t\t\t\n", page.Page, len(page.Data), page.Total)
				})
			},
		},
		&cobra.Command{
			Use:   "report",
			Short: "Comment report records",
			RunE: func(cmd *cobra.Command, args []string) error {
				page, err := a.client.Logs().Report(cmd.Context(), q)
				if err != nil {
					return err
				}
				return a.table(page, "TIME\tTASK\tVIDEO\tUSER\tKEYWORD\tOK\tMESSAGE", func(w io.Writer) {
					for _, r := range page.Data {
						fmt.Fprintf(w, "%s\t%d\t%s\t%s\t%s\t%t\t%s\n",
							formatTime(r.CreatedAt), r.TaskID, r.BVID, r.CommentUser, r.MatchedKeyword, r.Success, r.Message)
					}
					fmt.Fprintf(w, "page %d, %d of %d\t\t\t\t\t\t\n", page.Page, len(page.Data), page.Total)
				})
			},
		},
	)
	return cmd
}
