// Command nvdiff compares successive vintages of a road network dataset,
// assigns persistent identifiers and keeps the lifecycle ledger.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"nvdiff/internal/config"
	"nvdiff/internal/ledger"
	"nvdiff/internal/metrics"
	"nvdiff/internal/repository"
	"nvdiff/internal/repository/badger"
	"nvdiff/internal/repository/sqlite"
	"nvdiff/internal/service"
)

// app holds what every subcommand shares once the root command has run
type app struct {
	cfgFile string
	backend string
	dbPath  string
	verbose bool

	cfg     *config.Config
	logger  *zap.Logger
	metrics *metrics.Metrics
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:   "nvdiff",
		Short: "Change detection and persistent identifiers for road network vintages",
		Long: `nvdiff compares a newly delivered vintage of a road network dataset with
the previous one. Every linear element and junction is classified as a
Confirmation, Addition, Retirement or Modification, keeps or receives a
persistent identifier (NID), and the result is appended to a lifecycle
ledger from which any object can be reconstructed as of a past date.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.logger != nil {
				_ = a.logger.Sync()
			}
		},
	}

	flags := root.PersistentFlags()
	flags.StringVarP(&a.cfgFile, "config", "c", "", "config file (default: search NVDIFF_CONFIG, ./nvdiff.yaml, user and system config dirs)")
	flags.StringVar(&a.backend, "backend", "", "ledger backend override: sqlite, badger or memory")
	flags.StringVar(&a.dbPath, "db", "", "ledger path override")
	flags.BoolVarP(&a.verbose, "verbose", "v", false, "enable debug logging")

	root.AddCommand(
		newCompareCmd(a),
		newBaselineCmd(a),
		newReconstructCmd(a),
		newHistoryCmd(a),
		newDatasetCmd(a),
		newLastCmd(a),
		newWatchCmd(a),
		newConfigCmd(a),
	)
	return root
}

// init loads configuration, applies flag overrides and builds the logger
func (a *app) init() error {
	var (
		cfg  *config.Config
		path string
		err  error
	)
	if a.cfgFile != "" {
		cfg, path, err = config.LoadFromPath(a.cfgFile)
	} else {
		cfg, path, err = config.Load()
	}
	if err != nil {
		return err
	}

	if a.backend != "" {
		b, ok := config.ParseBackend(a.backend)
		if !ok {
			return fmt.Errorf("unknown ledger backend %q", a.backend)
		}
		cfg.Ledger.Backend = b
	}
	if a.dbPath != "" {
		cfg.Ledger.Path = a.dbPath
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	a.cfg = cfg

	a.logger, err = newLogger(cfg.Logging, a.verbose)
	if err != nil {
		return err
	}
	if path != "" {
		a.logger.Debug("loaded config", zap.String("path", path))
	}
	return nil
}

func newLogger(lc config.LoggingConfig, verbose bool) (*zap.Logger, error) {
	zc := zap.NewProductionConfig()
	if lc.Development {
		zc = zap.NewDevelopmentConfig()
	}
	if lc.Level != "" {
		level, err := zapcore.ParseLevel(lc.Level)
		if err != nil {
			return nil, fmt.Errorf("invalid log level: %w", err)
		}
		zc.Level = zap.NewAtomicLevelAt(level)
	}
	if verbose {
		zc.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	zc.OutputPaths = []string{"stderr"}

	logger, err := zc.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return logger, nil
}

// openStore opens the configured ledger store
func (a *app) openStore() (repository.LedgerStore, error) {
	lc := a.cfg.Ledger
	switch lc.Backend {
	case config.BackendSQLite:
		s, err := sqlite.New(lc.Path)
		if err != nil {
			return nil, err
		}
		return s, nil
	case config.BackendBadger:
		bc := badger.DefaultConfig(lc.Path)
		bc.Logger = a.logger
		s, err := badger.Open(bc)
		if err != nil {
			return nil, err
		}
		return s, nil
	case config.BackendMemory:
		return repository.NewMemory(), nil
	default:
		return nil, fmt.Errorf("unknown ledger backend %q", lc.Backend)
	}
}

// openLedger opens the store and replays it into a ledger. The caller closes
// the returned ledger.
func (a *app) openLedger(ctx context.Context) (*ledger.Ledger, error) {
	store, err := a.openStore()
	if err != nil {
		return nil, fmt.Errorf("open ledger store: %w", err)
	}

	opts := []ledger.Option{ledger.WithLogger(a.logger.Named("ledger"))}
	if a.cfg.Ledger.CacheSize > 0 {
		opts = append(opts, ledger.WithCacheSize(a.cfg.Ledger.CacheSize))
	}
	l, err := ledger.Open(ctx, store, opts...)
	if err != nil {
		store.Close()
		return nil, err
	}
	return l, nil
}

// newService builds a change service over l. Every event published by the
// service is logged at debug level and handed to each sink.
func (a *app) newService(ctx context.Context, l *ledger.Ledger, sinks ...func(service.Event)) *service.ChangeService {
	opts := []service.Option{service.WithLogger(a.logger.Named("service"))}
	if a.cfg.Metrics.Enabled {
		if a.metrics == nil {
			a.metrics = metrics.New()
		}
		opts = append(opts, service.WithMetrics(a.metrics))
	}

	bus := service.NewEventBus()
	events := make(chan service.Event, 100)
	bus.Subscribe(events)
	logger := a.logger.Named("events")
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case e := <-events:
				logger.Debug("event", zap.String("type", string(e.Type)), zap.Any("payload", e.Payload))
				for _, sink := range sinks {
					sink(e)
				}
			}
		}
	}()

	return service.NewChangeService(l, a.cfg, bus, opts...)
}
