package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/skwf/portal/apiclient"
	"github.com/skwf/portal/config"
	"github.com/skwf/portal/internal/logger"
	"github.com/skwf/portal/metrics"
	"github.com/skwf/portal/portal"
	"github.com/skwf/portal/session"
)

// errRedirected marks a command the guard refused. The target area has
// already been printed.
var errRedirected = errors.New("redirected")

type rootFlags struct {
	apiURL      string
	storeDriver string
	storePath   string
	logLevel    int
	logFormat   string
}

// cli carries what every command needs once the configuration is loaded.
type cli struct {
	flags  rootFlags
	cfg    *config.Config
	logger *slog.Logger
}

var rootCmd = newRootCmd()

func newRootCmd() *cobra.Command {
	c := &cli{}
	root := &cobra.Command{
		Use:   "portal",
		Short: "Portal is a client for the foundation applicant portal",
		Long: `Sign up, complete your profile, pay the verification fee and apply for
scholarships, business grants and consultations from the command line.

Settings come from PORTAL_* environment variables; flags override them.
The session is kept between runs in the configured store.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return c.load(cmd)
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&c.flags.apiURL, "api-url", "", "Remote API base URL (PORTAL_API_BASE_URL)")
	pf.StringVar(&c.flags.storeDriver, "store", "", "Session store: bbolt, redis, postgres or memory (PORTAL_STORE_DRIVER)")
	pf.StringVar(&c.flags.storePath, "store-path", "", "Session file for the bbolt store (PORTAL_STORE_PATH)")
	pf.IntVar(&c.flags.logLevel, "log-level", 0, "Log level; -4 enables debug output (PORTAL_LOG_LEVEL)")
	pf.StringVar(&c.flags.logFormat, "log-format", "", "Log format: text or json (PORTAL_LOG_FORMAT)")

	root.AddCommand(
		newSignupCmd(c),
		newLoginCmd(c),
		newLogoutCmd(c),
		newWhoamiCmd(c),
		newRefreshCmd(c),
		newProfileCmd(c),
		newPaymentCmd(c),
		newScholarshipCmd(c),
		newGrantCmd(c),
		newConsultationCmd(c),
		newAdminCmd(c),
		newFileCmd(c),
		newServeCmd(c),
		newVersionCmd(),
	)
	return root
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		if !errors.Is(err, errRedirected) {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
		os.Exit(1)
	}
}

// load reads the environment and applies flag overrides.
func (c *cli) load(cmd *cobra.Command) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	flags := cmd.Flags()
	if flags.Changed("api-url") {
		cfg.APIBaseURL = c.flags.apiURL
	}
	if flags.Changed("store") {
		cfg.Store.Driver = c.flags.storeDriver
	}
	if flags.Changed("store-path") {
		cfg.Store.Path = c.flags.storePath
	}
	if flags.Changed("log-level") {
		cfg.LogLevel = c.flags.logLevel
	}
	if flags.Changed("log-format") {
		cfg.LogFormat = c.flags.logFormat
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	c.cfg = cfg
	c.logger = logger.New(cfg.LogLevel, cfg.LogFormat, cmd.ErrOrStderr())
	return nil
}

// workspace is an App with a hydrated session and what must be released
// once the command is done.
type workspace struct {
	app     *portal.App
	metrics *metrics.Collector
	close   func()
}

func (c *cli) open(ctx context.Context) (*workspace, error) {
	repo, closeRepo, err := openRepository(ctx, c.cfg)
	if err != nil {
		return nil, err
	}
	opts := []session.Option{session.WithLogger(c.logger)}
	if c.cfg.SessionSecret != "" {
		opts = append(opts, session.WithSecret(c.cfg.SessionSecret))
	}
	store, err := session.NewStore(repo, opts...)
	if err != nil {
		closeRepo()
		return nil, fmt.Errorf("opening session store: %w", err)
	}

	m := metrics.New()
	client, err := apiclient.New(c.cfg.APIBaseURL,
		apiclient.WithTimeout(c.cfg.HTTPTimeout),
		apiclient.WithLogger(c.logger),
		apiclient.WithRecorder(m),
		apiclient.WithUserAgent("portal-cli/"+Version),
	)
	if err != nil {
		closeRepo()
		return nil, err
	}
	app := portal.New(store, client,
		portal.WithLogger(c.logger),
		portal.WithMetrics(m),
		portal.WithPollInterval(c.cfg.Poll.Interval),
		portal.WithPollMaxFailures(c.cfg.Poll.MaxFailures),
	)
	app.Hydrate()
	return &workspace{app: app, metrics: m, close: closeRepo}, nil
}

// withApp runs fn against a freshly hydrated session.
func (c *cli) withApp(fn func(cmd *cobra.Command, args []string, app *portal.App) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		ws, err := c.open(cmd.Context())
		if err != nil {
			return err
		}
		defer ws.close()
		return report(cmd, fn(cmd, args, ws.app))
	}
}

// report prints guard redirects as "→ <area>" and turns them into
// errRedirected.
func report(cmd *cobra.Command, err error) error {
	if err == nil {
		return nil
	}
	target, ok := portal.RedirectTarget(err)
	if !ok {
		return err
	}
	if errors.Is(err, portal.ErrSessionInvalidated) {
		fmt.Fprintln(cmd.ErrOrStderr(), "Your account no longer exists. You have been signed out.")
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "→ %s\n", target)
	return errRedirected
}
