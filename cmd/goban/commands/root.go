package commands

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/goban/core/internal/client/credentials"
	"github.com/goban/core/internal/client/notify"
	"github.com/goban/core/internal/client/request"
	"github.com/goban/core/internal/client/router"
	"github.com/goban/core/internal/i18n"
	"github.com/goban/core/internal/infrastructure/config"
	"github.com/goban/core/internal/infrastructure/logger"
)

// errLoginRequired is returned after the login hint has been printed
var errLoginRequired = errors.New("login required")

// App carries the console's shared state. Zero fields are filled from
// configuration when the command runs.
type App struct {
	Store credentials.Store
	Out   io.Writer
	Err   io.Writer

	configPath string
	serverURL  string
	language   string
	logFile    string
	asJSON     bool

	cfg    *config.ClientConfig
	router *router.Router
	client *request.Client
	log    *logger.Logger
}

// NewRootCommand builds the goban command tree
func NewRootCommand(a *App) *cobra.Command {
	root := &cobra.Command{
		Use:           "goban",
		Short:         "Goban console",
		Long:          "Manage platform accounts, monitor tasks and their history on a Goban server.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init()
		},
	}

	root.PersistentFlags().StringVar(&a.configPath, "config", "", "config file (default ~/.goban/config.yaml)")
	root.PersistentFlags().StringVar(&a.serverURL, "server", "", "server URL, overrides server_url")
	root.PersistentFlags().StringVar(&a.language, "lang", "", "message language (zh, en)")
	root.PersistentFlags().StringVar(&a.logFile, "log-file", "", "also record request errors as JSON lines in this file")
	root.PersistentFlags().BoolVar(&a.asJSON, "json", false, "print JSON instead of tables")

	root.AddCommand(
		newLoginCommand(a),
		newLogoutCommand(a),
		newUsersCommand(a),
		newTasksCommand(a),
		newLogsCommand(a),
	)
	return root
}

func (a *App) init() error {
	if a.Out == nil {
		a.Out = os.Stdout
	}
	if a.Err == nil {
		a.Err = os.Stderr
	}

	cfg, err := config.LoadClient(a.configPath)
	if err != nil {
		return err
	}
	if a.serverURL != "" {
		cfg.ServerURL = a.serverURL
	}
	if a.language != "" {
		cfg.Language = a.language
	}
	if a.logFile != "" {
		cfg.LogFile = a.logFile
	}
	a.cfg = cfg

	notifier := notify.Multi{notify.NewWriter(a.Err)}
	if cfg.LogFile != "" {
		log, err := logger.New(cfg.LoggerConfig())
		if err != nil {
			return fmt.Errorf("open log file: %w", err)
		}
		a.log = log
		notifier = append(notifier, notify.NewLog(log))
	}

	if a.Store == nil {
		a.Store = credentials.NewFileStore(cfg.CredentialsFile)
	}
	a.router = router.New(a.Store)
	a.client = request.New(request.Options{
		ServerURL: cfg.ServerURL,
		Timeout:   cfg.Timeout,
		Language:  cfg.Language,
	}, a.Store, a.router, notifier)

	return nil
}

// Close flushes the log file, if one was opened
func (a *App) Close() {
	if a.log != nil {
		a.log.Close()
	}
}

func (a *App) msg(key string) string {
	return i18n.T(a.cfg.Language, key)
}

// dashboard navigates to the protected dashboard; without credentials the
// guard lands on the login page and the command stops with a hint.
func (a *App) dashboard() error {
	if a.router.Push(router.DashboardPath) != router.DashboardPath {
		fmt.Fprintln(a.Err, a.msg(i18n.LoginRequired))
		return errLoginRequired
	}
	return nil
}

// IsReported reports whether err was already shown to the operator, either
// by the request layer or as a login hint
func IsReported(err error) bool {
	var re *request.ResponseError
	return errors.As(err, &re) || errors.Is(err, errLoginRequired)
}

func (a *App) printJSON(v interface{}) error {
	enc := json.NewEncoder(a.Out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// table writes rows under header unless --json is set, in which case raw
// is printed instead
func (a *App) table(raw interface{}, header string, rows func(w io.Writer)) error {
	if a.asJSON {
		return a.printJSON(raw)
	}
	w := tabwriter.NewWriter(a.Out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, header)
	rows(w)
	return w.Flush()
}

func (a *App) message(raw interface{}, text string) error {
	if a.asJSON {
		return a.printJSON(raw)
	}
	_, err := fmt.Fprintln(a.Out, text)
	return err
}
