package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	apiserver "github.com/safestream/moderator/internal/api_server"
	"github.com/safestream/moderator/internal/events"
	"github.com/safestream/moderator/internal/moderation"
	"github.com/safestream/moderator/internal/moderation/jobs"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the moderation API server and workers",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, undo, err := setup()
		if err != nil {
			return err
		}
		defer undo()

		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGHUP, syscall.SIGTERM, syscall.SIGQUIT)
		defer cancel()

		store, err := openStore(ctx, cfg)
		if err != nil {
			zap.S().Fatalw("initializing data store", "error", err)
		}
		defer store.Close()

		hub := events.NewHub()
		producer, err := newEventProducer(cfg, hub)
		if err != nil {
			zap.S().Fatalw("initializing event producer", "error", err)
		}
		defer func() {
			if err := producer.Close(); err != nil {
				zap.S().Errorw("closing event producer", "error", err)
			}
		}()

		orchestrator := newOrchestrator(cfg, store, events.NewProgressEmitter(producer))

		var trigger apiserver.Trigger
		if cfg.Service.Queue.Enabled && cfg.Database.Type == "pgsql" {
			pool, err := newPgxPool(ctx, cfg)
			if err != nil {
				zap.S().Fatalw("initializing pgx pool", "error", err)
			}
			defer pool.Close()

			q := cfg.Service.Queue
			client, err := jobs.NewClient(pool, orchestrator, q.MaxWorkers, q.MaxAttempts, q.JobTimeout)
			if err != nil {
				zap.S().Fatalw("creating river client", "error", err)
			}
			if err := client.Start(ctx); err != nil {
				zap.S().Fatalw("starting river client", "error", err)
			}
			defer func() {
				// the signal context is already done here
				if err := client.Stop(context.Background()); err != nil {
					zap.S().Errorw("stopping river client", "error", err)
				}
			}()
			zap.S().Infow("river client started", "queue", jobs.DefaultQueue, "workers", q.MaxWorkers)

			trigger = apiserver.NewQueueTrigger(client)
		} else {
			dispatcher := moderation.NewDispatcher(orchestrator)
			defer dispatcher.Wait()

			zap.S().Info("job queue disabled, running jobs in-process")
			trigger = apiserver.NewDispatchTrigger(dispatcher)
		}

		listener, err := newListener(cfg.Service.Address)
		if err != nil {
			zap.S().Fatalw("creating listener", "error", err)
		}
		metricsListener, err := newListener(cfg.Service.MetricsAddress)
		if err != nil {
			zap.S().Fatalw("creating metrics listener", "error", err)
		}

		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			defer cancel()
			return apiserver.New(cfg, store, trigger, hub, listener).Run(gctx)
		})
		g.Go(func() error {
			defer cancel()
			return apiserver.NewMetricServer(metricsListener, nil).Run(gctx)
		})

		if err := g.Wait(); err != nil {
			zap.S().Errorw("server stopped", "error", err)
			return err
		}
		return nil
	},
}
