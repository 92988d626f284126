package main

import (
	"bufio"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/jrsteele09/go-shop-console/gateway"
	"github.com/jrsteele09/go-shop-console/internal/config"
	"github.com/jrsteele09/go-shop-console/internal/logging"
	"github.com/jrsteele09/go-shop-console/session"
	"github.com/spf13/cobra"
)

// app is what every command works with once the session is restored
type app struct {
	identityURL string
	sessionFile string
	noColor     bool
	verbose     bool

	store   *session.Store
	gateway *gateway.Gateway
	printer *printer
	stdin   *bufio.Reader
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:   "shopctl",
		Short: "Sign in to the shop from the command line",
		Long: `shopctl keeps one shop session on this machine.

Example usage:
  shopctl login --email user@test.com      # sign in to the storefront
  shopctl login --admin --email admin@test.com
  shopctl whoami                           # show who is signed in
  shopctl can admin staff                  # check access for a set of roles
  shopctl logout`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.open(cmd)
		},
	}

	root.PersistentFlags().StringVar(&a.identityURL, "identity-url", "", "identity endpoint (default from CONSOLE_IDENTITY_URL)")
	root.PersistentFlags().StringVar(&a.sessionFile, "session-file", "", "session file (default in the user config dir)")
	root.PersistentFlags().BoolVar(&a.noColor, "no-color", false, "disable colored output")
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "log requests and session restores")

	root.AddCommand(
		newLoginCmd(a),
		newRegisterCmd(a),
		newLogoutCmd(a),
		newWhoamiCmd(a),
		newRefreshCmd(a),
		newCanCmd(a),
	)
	return root
}

// open restores the persisted session before any command runs.
func (a *app) open(cmd *cobra.Command) error {
	level := "error"
	if a.verbose {
		level = "debug"
	}
	logging.SetupWriter(cmd.ErrOrStderr(), level)

	_, noColorEnv := os.LookupEnv("NO_COLOR")
	a.printer = newPrinter(cmd.OutOrStdout(), !a.noColor && !noColorEnv)

	cfg, err := config.New()
	if err != nil {
		return err
	}
	if a.identityURL == "" {
		a.identityURL = cfg.GetIdentityURL()
	}
	if a.sessionFile == "" {
		dir, err := os.UserConfigDir()
		if err != nil {
			return fmt.Errorf("locate config dir: %w", err)
		}
		a.sessionFile = filepath.Join(dir, "shopctl", "session.json")
	}

	a.store = session.NewStore(session.NewFileStorage(a.sessionFile), session.WithNamespace(cfg.GetStorageNamespace()))
	a.gateway, err = gateway.New(a.identityURL, a.store,
		gateway.WithHTTPClient(&http.Client{Timeout: cfg.GetRequestTimeout()}))
	if err != nil {
		return err
	}
	return a.store.Initialize(cmd.Context(), a.gateway)
}

// report prints gateway failures and turns them into a short exit error.
func (a *app) report(err error) error {
	var gerr *gateway.Error
	if errors.As(err, &gerr) {
		a.printer.GatewayError(gerr)
		return errors.New(gerr.Kind.String() + " failed")
	}
	return err
}

// readSecret takes the flag value, or a line from stdin when it is empty.
func (a *app) readSecret(cmd *cobra.Command, value, prompt string) (string, error) {
	if value != "" {
		return value, nil
	}
	if a.stdin == nil {
		a.stdin = bufio.NewReader(cmd.InOrStdin())
	}
	fmt.Fprint(cmd.ErrOrStderr(), prompt+": ")
	line, err := a.stdin.ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("read %s: %w", strings.ToLower(prompt), err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}
