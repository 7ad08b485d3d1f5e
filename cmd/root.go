package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/s0up4200/zymmr/config"
	"github.com/s0up4200/zymmr/filter"
	"github.com/s0up4200/zymmr/output"
	"github.com/s0up4200/zymmr/zymmr"
)

// skipInitAnnotation marks commands that run without config or a client
const skipInitAnnotation = "zymmr/skip-init"

var (
	cfgFile       string
	cfg           *config.Config
	logger        zerolog.Logger
	client        *zymmr.Client
	filterManager *filter.Manager

	// shared by --where expressions and presets
	filterCompiler  = filter.NewExprCompiler(filter.WithCache(100))
	filterEvaluator = filter.NewConcurrentEvaluator()

	// Global flags
	outputFormat string
	logLevel     string
	noColor      bool

	// Set at build time
	version   = "dev"
	buildTime = "unknown"
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "zymmr",
	Short: "A command line client for the Zymmr project management API",
	Long: `zymmr is a CLI tool for reading and writing Zymmr documents.

It logs in with your Zymmr credentials and lets you list, fetch, create,
update and delete any DocType (Project, Work Item, Time Log, ...), with
server-side filters and client-side filter expressions.`,
	PersistentPreRunE: initializeApp,
	SilenceUsage:      true,
}

// SetVersion sets the version information reported by the CLI
func SetVersion(v, bt string) {
	version = v
	buildTime = bt
	rootCmd.Version = fmt.Sprintf("%s (built %s)", v, bt)
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}

// run executes the command line and closes the client afterwards. Cobra
// skips post-run hooks when a command fails, so closing happens here.
func run(ctx context.Context) error {
	defer func() {
		if err := closeClient(); err != nil {
			logger.Debug().Err(err).Msg("Failed to close Zymmr client")
		}
	}()
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./.zymmr, ~/.zymmr or /etc/zymmr/.zymmr)")
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", "", "output format: table, tree, json or yaml")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: trace, debug, info, warn or error")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")
}

// initializeApp loads the configuration and creates the client
func initializeApp(cmd *cobra.Command, args []string) error {
	if !needsClient(cmd) {
		logger = setupLogger(config.LoggingConfig{Level: logLevel, Format: "console", Color: !noColor})
		return nil
	}

	var err error
	cfg, err = config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// Command line overrides
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	if outputFormat != "" {
		cfg.Output.Format = outputFormat
	}
	if noColor {
		cfg.Logging.Color = false
		cfg.Output.Color = false
	}

	logger = setupLogger(cfg.Logging)

	if cfg.Zymmr.Password == "" {
		password, err := promptPassword(cfg.Zymmr.Username)
		if err != nil {
			return err
		}
		cfg.Zymmr.Password = password
	}

	client, err = zymmr.NewClient(cfg.ClientConfig(), logger, cfg.ClientOptions()...)
	if err != nil {
		return fmt.Errorf("failed to create Zymmr client: %w", err)
	}

	if !cfg.Zymmr.AutoLogin {
		if _, err := client.Authenticate(cmd.Context()); err != nil {
			return fmt.Errorf("failed to log in: %w", err)
		}
	}

	filterManager = filter.NewManager(
		filter.WithCompiler(filterCompiler),
		filter.WithEvaluator(filterEvaluator),
	)
	if err := filterManager.RegisterFilters(cfg.Filters); err != nil {
		return fmt.Errorf("invalid filter preset: %w", err)
	}

	logger.Debug().
		Str("url", cfg.Zymmr.URL).
		Str("user", cfg.Zymmr.Username).
		Int("presets", len(cfg.Filters)).
		Msg("Zymmr client initialized")

	return nil
}

// closeClient releases the client after a command has run
func closeClient() error {
	if client == nil {
		return nil
	}
	return client.Close()
}

// setupLogger configures the zerolog logger
func setupLogger(cfg config.LoggingConfig) zerolog.Logger {
	// Set log level
	level := zerolog.InfoLevel
	switch strings.ToLower(cfg.Level) {
	case "trace":
		level = zerolog.TraceLevel
	case "debug":
		level = zerolog.DebugLevel
	case "warn":
		level = zerolog.WarnLevel
	case "error":
		level = zerolog.ErrorLevel
	}

	zerolog.SetGlobalLevel(level)

	// Configure output format
	if cfg.Format == "json" {
		return zerolog.New(os.Stderr).With().Timestamp().Logger()
	}

	// Console format
	output := zerolog.ConsoleWriter{
		Out:        os.Stderr,
		TimeFormat: time.RFC3339,
		NoColor:    !cfg.Color || !isTerminal(os.Stderr),
	}

	return zerolog.New(output).With().Timestamp().Logger()
}

// newPrinter returns a printer for the configured output format
func newPrinter(fields []string) (*output.Printer, error) {
	format, err := output.ParseFormat(cfg.Output.Format)
	if err != nil {
		return nil, err
	}

	return output.NewPrinter(os.Stdout, format,
		output.WithFields(fields),
		output.WithColor(cfg.Output.Color && isTerminal(os.Stdout)),
	), nil
}

// needsClient reports whether cmd talks to Zymmr. Help, completion and
// annotated commands run without config.
func needsClient(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations[skipInitAnnotation] == "true" {
			return false
		}
		switch c.Name() {
		case "help", "completion", cobra.ShellCompRequestCmd, cobra.ShellCompNoDescRequestCmd:
			return false
		}
	}
	return true
}

func isTerminal(f *os.File) bool {
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}
