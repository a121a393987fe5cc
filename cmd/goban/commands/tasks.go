package commands

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/goban/core/internal/ports"
)

// dashboardCommand is a command group that needs a logged-in console
func dashboardCommand(a *App, use, short string) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := a.init(); err != nil {
				return err
			}
			return a.dashboard()
		},
	}
}

type taskFlags struct {
	userID        int64
	targetUID     int64
	keywords      string
	videoCount    int
	commentCount  int
	interval      int
	reportDelay   int
	maxRetries    int
	retryInterval int
	proxyURL      string
	enabled       bool
}

func (f *taskFlags) bindSettings(cmd *cobra.Command) {
	fs := cmd.Flags()
	fs.StringVar(&f.keywords, "keywords", "", "comma-separated keywords")
	fs.IntVar(&f.videoCount, "video-count", 0, "latest videos to scan")
	fs.IntVar(&f.commentCount, "comment-count", 0, "comments to scan per video")
	fs.IntVar(&f.interval, "interval", 0, "seconds between runs")
	fs.IntVar(&f.reportDelay, "report-delay", 0, "seconds to wait after each report")
	fs.IntVar(&f.maxRetries, "max-retries", 0, "retries per platform request")
	fs.IntVar(&f.retryInterval, "retry-interval", 0, "base retry backoff in seconds")
	fs.StringVar(&f.proxyURL, "proxy", "", "proxy URL for platform requests")
}

func newTasksCommand(a *App) *cobra.Command {
	cmd := dashboardCommand(a, "tasks", "Manage monitor tasks")
	cmd.AddCommand(
		newTaskListCommand(a),
		newTaskCreateCommand(a),
		newTaskUpdateCommand(a),
		&cobra.Command{
			Use:   "delete <id>",
			Short: "Delete a task and its history",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				id, err := parseID(args[0])
				if err != nil {
					return err
				}
				resp, err := a.client.Tasks().Delete(cmd.Context(), id)
				if err != nil {
					return err
				}
				return a.message(resp, resp.Message)
			},
		},
		newTaskTestCommand(a),
	)
	return cmd
}

func newTaskListCommand(a *App) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List monitor tasks",
		RunE: func(cmd *cobra.Command, args []string) error {
			tasks, err := a.client.Tasks().List(cmd.Context())
			if err != nil {
				return err
			}
			return a.table(tasks, "ID\tACCOUNT\tTARGET\tKEYWORDS\tENABLED\tINTERVAL\tLAST CHECK", func(w io.Writer) {
				for _, t := range tasks {
					account := fmt.Sprint(t.UserID)
					if t.User != nil {
						account = t.User.Uname
					}
					target := t.TargetUname
					if target == "" {
						target = fmt.Sprint(t.TargetUID)
					}
					fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%t\t%ds\t%s\n",
						t.ID, account, target, t.Keywords, t.Enabled, t.Interval, formatTime(t.LastCheck))
				}
			})
		},
	}
}

func newTaskCreateCommand(a *App) *cobra.Command {
	var f taskFlags

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a monitor task",
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := a.client.Tasks().Create(cmd.Context(), ports.CreateTaskRequest{
				UserID:        f.userID,
				TargetUID:     f.targetUID,
				Keywords:      f.keywords,
				VideoCount:    f.videoCount,
				CommentCount:  f.commentCount,
				Interval:      f.interval,
				ReportDelay:   f.reportDelay,
				MaxRetries:    f.maxRetries,
				RetryInterval: f.retryInterval,
				ProxyURL:      f.proxyURL,
			})
			if err != nil {
				return err
			}
			text := resp.Message
			if resp.Task != nil {
				text = fmt.Sprintf("%s: task %d", resp.Message, resp.Task.ID)
			}
			return a.message(resp, text)
		},
	}

	cmd.Flags().Int64Var(&f.userID, "user-id", 0, "account that runs the task")
	cmd.Flags().Int64Var(&f.targetUID, "target-uid", 0, "uploader to watch")
	f.bindSettings(cmd)
	cmd.MarkFlagRequired("user-id")
	cmd.MarkFlagRequired("target-uid")
	cmd.MarkFlagRequired("keywords")
	return cmd
}

func newTaskUpdateCommand(a *App) *cobra.Command {
	var f taskFlags

	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Change task settings; only the given flags are sent",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}

			req := ports.UpdateTaskRequest{
				Keywords:      f.keywords,
				VideoCount:    f.videoCount,
				CommentCount:  f.commentCount,
				Interval:      f.interval,
				ReportDelay:   f.reportDelay,
				MaxRetries:    f.maxRetries,
				RetryInterval: f.retryInterval,
			}
			if cmd.Flags().Changed("enabled") {
				req.Enabled = &f.enabled
			}
			if cmd.Flags().Changed("proxy") {
				req.ProxyURL = &f.proxyURL
			}

			resp, err := a.client.Tasks().Update(cmd.Context(), id, req)
			if err != nil {
				return err
			}
			return a.message(resp, fmt.Sprintf("%s: task %d", resp.Message, id))
		},
	}

	f.bindSettings(cmd)
	cmd.Flags().BoolVar(&f.enabled, "enabled", true, "enable or pause the task")
	return cmd
}

func newTaskTestCommand(a *App) *cobra.Command {
	return &cobra.Command{
		Use:   "test <id>",
		Short: "Dry-run a task without reporting",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			resp, err := a.client.Tasks().Test(cmd.Context(), id)
			if err != nil {
				return err
			}
			return a.table(resp, "VIDEO\tTITLE\tSCANNED\tMATCHES", func(w io.Writer) {
				for _, v := range resp.Result {
					fmt.Fprintf(w, "%s\t%s\t%d\t%d\n", v.BVID, v.Title, v.Comments, len(v.Matches))
					for _, m := range v.Matches {
						fmt.Fprintf(w, "\t  %s\t\t\n", strings.ReplaceAll(m, "\n", " "))
					}
				}
			})
		},
	}
}
