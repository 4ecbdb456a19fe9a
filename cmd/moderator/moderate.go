package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/safestream/moderator/internal/config"
	"github.com/safestream/moderator/internal/events"
	"github.com/safestream/moderator/internal/moderation"
	"github.com/safestream/moderator/internal/moderation/jobs"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

type moderateOptions struct {
	enqueue bool
	force   bool
	locator string
}

var moderateOpts moderateOptions

var moderateCmd = &cobra.Command{
	Use:   "moderate <job-id>",
	Short: "Moderate a single video",
	Long:  "Runs the moderation pipeline for one video in the foreground, or enqueues it for the workers with --enqueue.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, undo, err := setup()
		if err != nil {
			return err
		}
		defer undo()

		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer cancel()

		jobID := args[0]
		if err := moderation.ValidateJobID(jobID); err != nil {
			return err
		}

		if moderateOpts.enqueue {
			return enqueue(ctx, cfg, jobID)
		}

		store, err := openStore(ctx, cfg)
		if err != nil {
			return err
		}
		defer store.Close()

		producer, err := newEventProducer(cfg, nil)
		if err != nil {
			return err
		}
		defer producer.Close()

		var opts []moderation.RunOption
		if moderateOpts.force {
			opts = append(opts, moderation.WithForce())
		}

		outcome := newOrchestrator(cfg, store, events.NewProgressEmitter(producer)).Run(ctx, jobID, moderateOpts.locator, opts...)
		if outcome.Err != nil {
			return outcome.Err
		}
		if outcome.Skipped {
			fmt.Fprintf(cmd.OutOrStdout(), "%s: skipped (%s)\n", jobID, outcome.Reason)
			return nil
		}

		fmt.Fprintf(cmd.OutOrStdout(), "%s: %s/%s %s\n", jobID, outcome.Status, outcome.ModerationStatus, outcome.Reason)
		return nil
	},
}

func enqueue(ctx context.Context, cfg *config.Config, jobID string) error {
	if cfg.Database.Type != "pgsql" {
		return fmt.Errorf("--enqueue needs a postgres database, got %q", cfg.Database.Type)
	}

	pool, err := newPgxPool(ctx, cfg)
	if err != nil {
		return err
	}
	defer pool.Close()

	client, err := jobs.NewClient(pool, nil, 0, cfg.Service.Queue.MaxAttempts, 0)
	if err != nil {
		return err
	}

	id, duplicate, err := client.InsertJob(ctx, jobs.ModerationArgs{
		JobID:        jobID,
		MediaLocator: moderateOpts.locator,
		Force:        moderateOpts.force,
	})
	if err != nil {
		return fmt.Errorf("enqueuing %s: %w", jobID, err)
	}

	zap.S().Infow("job enqueued", "job_id", jobID, "river_job_id", id, "duplicate", duplicate)
	return nil
}

func init() {
	moderateCmd.Flags().BoolVar(&moderateOpts.enqueue, "enqueue", false, "Insert a queue job instead of running in the foreground")
	moderateCmd.Flags().BoolVar(&moderateOpts.force, "force", false, "Moderate even if the video was reviewed manually")
	moderateCmd.Flags().StringVar(&moderateOpts.locator, "locator", "", "Media locator overriding the one stored on the video")
}
