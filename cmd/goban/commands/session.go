package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/goban/core/internal/client/credentials"
	"github.com/goban/core/internal/client/router"
	"github.com/goban/core/internal/i18n"
)

func newLoginCommand(a *App) *cobra.Command {
	var username, password string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Store console credentials after checking them against the server",
		RunE: func(cmd *cobra.Command, args []string) error {
			if a.router.Push(router.LoginPath) == router.DashboardPath {
				fmt.Fprintln(a.Out, a.msg(i18n.AlreadyLogged))
				return nil
			}

			if err := credentials.Save(a.Store, username, password); err != nil {
				return err
			}
			if _, err := a.client.Users().List(cmd.Context()); err != nil {
				// a 401 has cleared the store already
				credentials.Clear(a.Store)
				return err
			}

			a.router.Push(router.DashboardPath)
			fmt.Fprintln(a.Out, a.msg(i18n.LoggedIn))
			return nil
		},
	}

	cmd.Flags().StringVarP(&username, "username", "u", "", "console username")
	cmd.Flags().StringVarP(&password, "password", "p", "", "console password")
	cmd.MarkFlagRequired("username")
	cmd.MarkFlagRequired("password")
	return cmd
}

func newLogoutCommand(a *App) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored console credentials",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := credentials.Clear(a.Store); err != nil {
				return err
			}
			a.router.Push(router.LoginPath)
			fmt.Fprintln(a.Out, a.msg(i18n.LoggedOut))
			return nil
		},
	}
}
