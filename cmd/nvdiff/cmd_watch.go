package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"nvdiff/internal/codec"
	"nvdiff/internal/domain"
	"nvdiff/internal/handler"
	"nvdiff/internal/hub"
	"nvdiff/internal/service"
	"nvdiff/internal/watcher"
)

func newWatchCmd(a *app) *cobra.Command {
	var (
		of       outputFlags
		previous string
		now      bool
	)

	cmd := &cobra.Command{
		Use:   "watch <incoming>",
		Short: "Run a comparison cycle every time a vintage file is replaced",
		Long: `Watches a vintage file and runs a comparison cycle whenever it is written.
Each cycle compares against the annotated output of the last committed one,
starting from --previous when given. A flagged or failed cycle is logged
and the chain stays where it was.

When the server is enabled in the configuration, a read-only ledger API,
a server-sent event stream of cycle outcomes (/events) and, with metrics
enabled, /metrics are served on the configured address while watching.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			incoming := args[0]

			var prev *domain.Snapshot
			if previous != "" {
				var err error
				if prev, err = codec.ReadFile(previous); err != nil {
					return err
				}
			}
			if of.changeLogs == "" {
				of.changeLogs = a.cfg.Watch.ChangeLogDir
			}

			l, err := a.openLedger(ctx)
			if err != nil {
				return err
			}
			defer l.Close()

			events := hub.New(a.logger.Named("hub"))
			var sinks []func(service.Event)
			if a.cfg.Server.Enabled {
				sinks = append(sinks, func(e service.Event) {
					events.Broadcast(string(e.Type), e.Payload)
				})
			}
			svc := a.newService(ctx, l, sinks...)
			chain := svc.NewChain(prev)
			logger := a.logger.Named("watch")

			run := func(ctx context.Context, path string) error {
				cur, err := codec.ReadFile(path)
				if err != nil {
					return err
				}
				report, err := chain.Next(ctx, cur)
				if err != nil {
					if errors.Is(err, domain.ErrCycleFlagged) {
						logger.Error("cycle flagged, keeping previous vintage",
							zap.String("cycle_id", report.CycleID),
							zap.String("reason", report.FlagReason),
						)
						return nil
					}
					return err
				}
				if err := a.writeOutputs(report, of); err != nil {
					return err
				}
				printReport(cmd.OutOrStdout(), report)
				return nil
			}

			if now {
				if err := run(ctx, incoming); err != nil {
					logger.Error("initial cycle failed", zap.Error(err))
				}
			}

			w := watcher.New(run, incoming).
				WithDebounce(a.cfg.Watch.Debounce.Duration()).
				WithLogger(logger)

			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error {
				return w.Watch(gctx)
			})
			if a.cfg.Server.Enabled {
				g.Go(func() error {
					events.Run(gctx)
					return nil
				})
				g.Go(func() error {
					return a.serve(gctx, svc, events)
				})
			}

			err = g.Wait()
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		},
	}

	of.register(cmd)
	cmd.Flags().StringVar(&previous, "previous", "", "annotated vintage the first cycle compares against")
	cmd.Flags().BoolVar(&now, "now", false, "run a cycle on the current file before watching")
	return cmd
}

// serve runs the HTTP API, the event stream and, when enabled, the metrics
// endpoint until ctx is done
func (a *app) serve(ctx context.Context, svc *service.ChangeService, events *hub.Hub) error {
	mux := http.NewServeMux()
	handler.NewLedgerHandler(svc, a.logger.Named("http")).Register(mux)
	mux.Handle("GET /events", events)
	if a.metrics != nil {
		mux.Handle("GET /metrics", a.metrics.Handler())
	}

	srv := &http.Server{
		Addr:              a.cfg.Server.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("serving HTTP", zap.String("addr", srv.Addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return ctx.Err()
	}
}
