// Command edgarbulk downloads the SEC EDGAR bulk archives and reads company
// records out of them.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/RxDataLab/go-edgar-bulk"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// session holds what every subcommand needs
type session struct {
	cfg      *config
	logger   *zap.Logger
	metrics  *prometheus.Registry
	client   *edgar.Client
	registry *edgar.Registry
}

func main() {
	// .env is optional
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "edgarbulk",
		Short:         "Work with the SEC EDGAR bulk archives",
		Long:          "Download companyfacts.zip or submissions.zip and look up company records by ticker or CIK.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := root.PersistentFlags()
	flags.String("email", "", "email for the SEC User-Agent header (or SEC_EMAIL)")
	flags.Int("rate", edgar.MaxRequestsPerSecond, "maximum requests per second (1-10)")
	flags.Int("retries", edgar.DefaultMaxRetries, "attempts per request")
	flags.String("log-level", "info", "debug, info, warn, or error")
	flags.String("dataset", datasetFacts, "bulk archive to use: facts or submissions")
	flags.String("archive", "", "existing archive file to open instead of downloading")
	flags.String("temp-dir", "", "directory for the downloaded archive (default system temp)")
	flags.Bool("keep-all", false, "keep every archive entry per CIK instead of the last one")

	root.AddCommand(
		newDownloadCommand(),
		newRecordCommand(),
		newUnlistedCommand(),
		newStatsCommand(),
		newFilingsCommand(),
		newTextsCommand(),
		newTextCommand(),
	)
	return root
}

// newSession resolves config and builds the logger, client and registry
func newSession(cmd *cobra.Command) (*session, error) {
	cfg, err := loadConfig(cmd.Flags())
	if err != nil {
		return nil, err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return nil, err
	}

	reg := prometheus.NewRegistry()
	client, err := edgar.NewClient(edgar.BuildUserAgent(cfg.Email),
		edgar.WithRateLimit(cfg.Rate),
		edgar.WithMaxRetries(cfg.Retries),
		edgar.WithLogger(logger),
		edgar.WithMetrics(reg),
	)
	if err != nil {
		return nil, err
	}

	registry, err := edgar.LoadRegistry(cmd.Context(), client)
	if err != nil {
		return nil, err
	}
	logger.Debug("registry loaded", zap.Int("companies", registry.Len()))

	return &session{cfg: cfg, logger: logger, metrics: reg, client: client, registry: registry}, nil
}

func newLogger(level string) (*zap.Logger, error) {
	lvl, err := zap.ParseAtomicLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = lvl
	cfg.Encoding = "console"
	return cfg.Build()
}

// close flushes the logger and reports request counters at debug level
func (s *session) close() {
	families, err := s.metrics.Gather()
	if err == nil {
		for _, mf := range families {
			for _, m := range mf.GetMetric() {
				fields := []zap.Field{zap.Float64("value", m.GetCounter().GetValue())}
				for _, lp := range m.GetLabel() {
					fields = append(fields, zap.String(lp.GetName(), lp.GetValue()))
				}
				s.logger.Debug(mf.GetName(), fields...)
			}
		}
	}
	_ = s.logger.Sync()
}
