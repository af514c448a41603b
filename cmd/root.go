package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/dt-pm-tools/issuetracker-jira/internal/config"
	"github.com/dt-pm-tools/issuetracker-jira/internal/issuesync"
	"github.com/dt-pm-tools/issuetracker-jira/internal/jira"
	"github.com/dt-pm-tools/issuetracker-jira/internal/telemetry"
)

var (
	cfgFile   string
	logLevel  string
	logFormat string
	logFile   string
	appConfig config.Config
	logger    *slog.Logger
	version   = "0.1.0"
)

var rootCmd = &cobra.Command{
	Use:   "issuetracker-jira",
	Short: "Keep JIRA issues in line with externally detected findings",
	Long: `Creates, resolves, reopens and comments on JIRA issues from batches of
findings. Each finding is matched to its issue through correlation properties
stored on the issue itself, so repeated syncs never duplicate issues.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		l, err := newLogger(logLevel, logFormat, logFile)
		if err != nil {
			return err
		}
		logger = l
		return telemetry.Init(cmd.Context(), "issuetracker-jira", version)
	},
}

// Execute runs the root command.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	if shutdownErr := telemetry.Shutdown(shutdownCtx); shutdownErr != nil && logger != nil {
		logger.Warn("telemetry shutdown", "error", shutdownErr)
	}
	cancel()

	if err != nil {
		fmt.Fprintln(os.Stderr, renderFail("Error: "+err.Error()))
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ~/.issuetracker-jira.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level: debug, info, warn or error")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "text", "log format: text or json")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "write logs to this file (rotated) instead of stderr")
}

func newLogger(level, format, file string) (*slog.Logger, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("invalid --log-level %q: %w", level, err)
	}

	var out io.Writer = os.Stderr
	if file != "" {
		out = &lumberjack.Logger{
			Filename:   file,
			MaxSize:    10,
			MaxBackups: 3,
			MaxAge:     28,
		}
	}

	opts := &slog.HandlerOptions{Level: lvl}
	switch strings.ToLower(format) {
	case "text":
		return slog.New(slog.NewTextHandler(out, opts)), nil
	case "json":
		return slog.New(slog.NewJSONHandler(out, opts)), nil
	default:
		return nil, fmt.Errorf("invalid --log-format %q (expected text or json)", format)
	}
}

// loadConfig loads and validates configuration. Commands that need JIRA access call this.
func loadConfig() error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w\nRun 'issuetracker-jira config' to set up credentials", err)
	}
	appConfig = cfg
	return nil
}

// newService builds the engine against the configured JIRA instance.
func newService() *issuesync.Service {
	backend := jira.NewBackend(jira.NewClient(appConfig), logger)
	return issuesync.NewService(telemetry.WrapBackend(backend), jira.CloudSchema, issuesync.WithLogger(logger))
}

// validConfiguration checks the loaded issue settings against JIRA. Field
// errors are printed one per line.
func validConfiguration(ctx context.Context, svc *issuesync.Service) (issuesync.Configuration, error) {
	cfg, err := svc.CreateValidConfiguration(ctx, appConfig.Issue.Raw())
	if err != nil {
		printFieldErrors(err)
		return issuesync.Configuration{}, err
	}
	return cfg, nil
}
