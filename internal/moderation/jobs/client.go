package jobs

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/riverdriver/riverpgxv5"
	"github.com/safestream/moderator/internal/moderation"
)

const DefaultMaxWorkers = 4

type Client struct {
	*river.Client[pgx.Tx]
	maxAttempts int
}

// NewClient builds a river client. A nil runner gives an insert-only client.
func NewClient(pool *pgxpool.Pool, runner moderation.Runner, maxWorkers, maxAttempts int, timeout time.Duration) (*Client, error) {
	if maxWorkers <= 0 {
		maxWorkers = DefaultMaxWorkers
	}
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}

	cfg := &river.Config{}
	if runner != nil {
		workers := river.NewWorkers()
		river.AddWorker(workers, NewModerationWorker(runner, timeout))
		cfg.Workers = workers
		cfg.Queues = map[string]river.QueueConfig{
			DefaultQueue: {MaxWorkers: maxWorkers},
		}
	}

	riverClient, err := river.NewClient(riverpgxv5.New(pool), cfg)
	if err != nil {
		return nil, err
	}

	return &Client{Client: riverClient, maxAttempts: maxAttempts}, nil
}

// InsertJob enqueues a run. duplicate is true when an unfinished job with the same arguments exists.
func (c *Client) InsertJob(ctx context.Context, args ModerationArgs) (id int64, duplicate bool, err error) {
	opts := args.InsertOpts()
	opts.MaxAttempts = c.maxAttempts

	result, err := c.Insert(ctx, args, &opts)
	if err != nil {
		return 0, false, err
	}
	return result.Job.ID, result.UniqueSkippedAsDuplicate, nil
}
