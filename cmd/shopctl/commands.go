package main

import (
	"errors"
	"strings"

	"github.com/jrsteele09/go-shop-console/gateway"
	"github.com/jrsteele09/go-shop-console/guard"
	"github.com/jrsteele09/go-shop-console/users"
	"github.com/spf13/cobra"
)

var errNotSignedIn = errors.New("not signed in")

func newLoginCmd(a *app) *cobra.Command {
	var (
		email    string
		password string
		admin    bool
	)
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in to the storefront, or the admin console with --admin",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			secret, err := a.readSecret(cmd, password, "Password")
			if err != nil {
				return err
			}
			surface := gateway.Storefront
			if admin {
				surface = gateway.Admin
			}

			user, err := a.gateway.Login(cmd.Context(), gateway.Credentials{Email: email, Password: secret}, surface)
			if err != nil {
				return a.report(err)
			}
			a.printer.Successf("Signed in to the %s", surface.Name)
			a.printer.User(user)
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "account email")
	cmd.Flags().StringVar(&password, "password", "", "account password (read from stdin when empty)")
	cmd.Flags().BoolVar(&admin, "admin", false, "sign in to the admin console")
	return cmd
}

func newRegisterCmd(a *app) *cobra.Command {
	var reg gateway.Registration
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create a storefront account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var err error
			if reg.Password, err = a.readSecret(cmd, reg.Password, "Password"); err != nil {
				return err
			}
			if reg.ConfirmPassword, err = a.readSecret(cmd, reg.ConfirmPassword, "Confirm password"); err != nil {
				return err
			}

			res, err := a.gateway.Register(cmd.Context(), reg)
			if err != nil {
				return a.report(err)
			}
			if res.SignedIn {
				a.printer.Successf("Account created and signed in")
			} else {
				a.printer.Successf("Account created, run shopctl login to sign in")
			}
			a.printer.User(res.User)
			return nil
		},
	}
	cmd.Flags().StringVar(&reg.Email, "email", "", "account email")
	cmd.Flags().StringVar(&reg.FirstName, "first-name", "", "first name")
	cmd.Flags().StringVar(&reg.LastName, "last-name", "", "last name")
	cmd.Flags().StringVar(&reg.Phone, "phone", "", "phone number")
	cmd.Flags().StringVar(&reg.Avatar, "avatar", "", "avatar URL")
	cmd.Flags().StringVar(&reg.Password, "password", "", "password (read from stdin when empty)")
	cmd.Flags().StringVar(&reg.ConfirmPassword, "confirm-password", "", "password again (read from stdin when empty)")
	return cmd
}

func newLogoutCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "End the session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.gateway.Logout(cmd.Context()); err != nil {
				return err
			}
			a.printer.Successf("Signed out")
			return nil
		},
	}
}

func newWhoamiCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, ok := a.store.Snapshot().Session()
			if !ok {
				a.printer.Warnf("Not signed in")
				return errNotSignedIn
			}
			a.printer.User(sess.User)
			return nil
		},
	}
}

func newRefreshCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "refresh",
		Short: "Exchange the session token for a new one",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			user, err := a.gateway.Refresh(cmd.Context())
			if err != nil {
				return a.report(err)
			}
			a.printer.Successf("Session refreshed")
			a.printer.User(user)
			return nil
		},
	}
}

func newCanCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "can [roles...]",
		Short: "Check whether the session may open a view requiring any of roles",
		Long:  "Roles may be given as separate arguments or comma separated. No roles means any signed-in user.",
		RunE: func(cmd *cobra.Command, args []string) error {
			var names []string
			for _, arg := range args {
				for _, name := range strings.Split(arg, ",") {
					if name = strings.TrimSpace(name); name != "" {
						names = append(names, name)
					}
				}
			}
			required, err := users.ParseRoleSet(names...)
			if err != nil {
				return err
			}

			switch state := guard.Evaluate(a.store.Snapshot(), required); state {
			case guard.Allowed:
				a.printer.Successf("allowed (requires %s)", required)
				return nil
			case guard.DeniedUnauthenticated:
				a.printer.Failf("sign in first (requires %s)", required)
				return errors.New(state.String())
			default:
				a.printer.Failf("%s (requires %s)", state, required)
				return errors.New(state.String())
			}
		},
	}
}
