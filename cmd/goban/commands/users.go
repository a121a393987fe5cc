package commands

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/goban/core/internal/domain/entities"
)

var qrPollInterval = 2 * time.Second

func newUsersCommand(a *App) *cobra.Command {
	cmd := dashboardCommand(a, "users", "Manage platform accounts")
	cmd.Aliases = []string{"accounts"}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List platform accounts",
			RunE: func(cmd *cobra.Command, args []string) error {
				accounts, err := a.client.Users().List(cmd.Context())
				if err != nil {
					return err
				}
				return a.table(accounts, "ID\tUID\tNAME\tLOGIN\tEXPIRES", func(w io.Writer) {
					for _, acc := range accounts {
						fmt.Fprintf(w, "%d\t%d\t%s\t%t\t%s\n", acc.ID, acc.UID, acc.Uname, acc.Login, formatTime(acc.ExpireTime))
					}
				})
			},
		},
		newQRLoginCommand(a),
		&cobra.Command{
			Use:   "check <key>",
			Short: "Poll a QR login once",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				resp, err := a.client.Users().LoginCheck(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				return a.message(resp, fmt.Sprintf("%s: %s", resp.Status, resp.Message))
			},
		},
		&cobra.Command{
			Use:   "cancel <key>",
			Short: "Abandon a QR login",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				resp, err := a.client.Users().LoginCancel(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				return a.message(resp, resp.Message)
			},
		},
		&cobra.Command{
			Use:   "cookie-login <cookies>",
			Short: "Register an account from a Cookie header value",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				resp, err := a.client.Users().LoginByCookie(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				text := resp.Message
				if resp.User != nil {
					text = fmt.Sprintf("%s: %s (uid %d)", resp.Message, resp.User.Uname, resp.User.UID)
				}
				return a.message(resp, text)
			},
		},
		&cobra.Command{
			Use:   "delete <id>",
			Short: "Delete an account together with its tasks and history",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				id, err := parseID(args[0])
				if err != nil {
					return err
				}
				resp, err := a.client.Users().Delete(cmd.Context(), id)
				if err != nil {
					return err
				}
				return a.message(resp, resp.Message)
			},
		},
	)
	return cmd
}

func newQRLoginCommand(a *App) *cobra.Command {
	var out string

	cmd := &cobra.Command{
		Use:   "qr-login",
		Short: "Log an account in by scanning a QR code",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			qr, err := a.client.Users().QRLogin(ctx)
			if err != nil {
				return err
			}

			png, err := base64.StdEncoding.DecodeString(qr.Image)
			if err != nil {
				return fmt.Errorf("decode qrcode: %w", err)
			}
			if err := os.WriteFile(out, png, 0o644); err != nil {
				return fmt.Errorf("write qrcode: %w", err)
			}
			fmt.Fprintf(a.Err, "scan %s with the platform app (session %s)\n", out, qr.Key)

			status, err := a.pollLogin(ctx, qr.Key)
			if err != nil {
				return err
			}
			if status != entities.LoginStatusSuccess {
				return fmt.Errorf("qr login %s", status)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&out, "out", "o", "goban-qr.png", "where to write the QR code image")
	return cmd
}

// pollLogin checks the session every two seconds until it settles. An
// interrupted poll cancels the session on the server.
func (a *App) pollLogin(ctx context.Context, key string) (entities.LoginStatus, error) {
	ticker := time.NewTicker(qrPollInterval)
	defer ticker.Stop()

	var last entities.LoginStatus
	for {
		select {
		case <-ctx.Done():
			return "", a.cancelLogin(ctx, key)
		case <-ticker.C:
		}

		resp, err := a.client.Users().LoginCheck(ctx, key)
		if err != nil {
			if ctx.Err() != nil {
				return "", a.cancelLogin(ctx, key)
			}
			return "", err
		}
		if resp.Status != last {
			last = resp.Status
			if err := a.message(resp, fmt.Sprintf("%s: %s", resp.Status, resp.Message)); err != nil {
				return "", err
			}
		}
		if resp.Status.IsTerminal() {
			return resp.Status, nil
		}
	}
}

// cancelLogin abandons the server session after ctx ended and returns the
// context's error.
func (a *App) cancelLogin(ctx context.Context, key string) error {
	cancelCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	a.client.Users().LoginCancel(cancelCtx, key)
	return ctx.Err()
}

func parseID(raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id < 1 {
		return 0, fmt.Errorf("invalid id %q", raw)
	}
	return id, nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04:05")
}
