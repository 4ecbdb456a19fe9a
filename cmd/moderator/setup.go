package main

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/safestream/moderator/internal/config"
	"github.com/safestream/moderator/internal/events"
	"github.com/safestream/moderator/internal/moderation"
	"github.com/safestream/moderator/internal/store"
	"github.com/safestream/moderator/pkg/download"
	"github.com/safestream/moderator/pkg/ffmpeg"
	"github.com/safestream/moderator/pkg/log"
	"go.uber.org/zap"
)

// setup reads the configuration and installs the global logger. The returned func flushes it.
func setup() (*config.Config, func(), error) {
	cfg, err := config.New()
	if err != nil {
		return nil, nil, fmt.Errorf("reading configuration: %w", err)
	}

	logger := log.InitLog(log.ParseLevel(cfg.Service.LogLevel), log.WithFormat(cfg.Service.LogFormat))
	undo := zap.ReplaceGlobals(logger)

	return cfg, func() {
		_ = logger.Sync()
		undo()
	}, nil
}

func openStore(ctx context.Context, cfg *config.Config) (store.Store, error) {
	zap.S().Info("Initializing data store")
	db, err := store.InitDB(cfg)
	if err != nil {
		return nil, fmt.Errorf("initializing data store: %w", err)
	}

	s := store.NewStore(db)
	if cfg.Database.Type != "pgsql" {
		// sqlite has no goose/river migrations
		if err := s.InitialMigration(ctx); err != nil {
			_ = s.Close()
			return nil, fmt.Errorf("running initial migration: %w", err)
		}
	}
	return s, nil
}

func newPgxPool(ctx context.Context, cfg *config.Config) (*pgxpool.Pool, error) {
	dsn := fmt.Sprintf("host=%s user=%s password=%s port=%s dbname=%s",
		cfg.Database.Hostname,
		cfg.Database.User,
		cfg.Database.Password,
		cfg.Database.Port,
		cfg.Database.Name,
	)

	poolCfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to parse pgx config: %w", err)
	}

	poolCfg.MaxConns = int32(cfg.Service.Queue.MaxWorkers) + 5
	poolCfg.MinConns = 2
	poolCfg.MaxConnLifetime = time.Hour
	poolCfg.MaxConnIdleTime = 30 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create pgx pool: %w", err)
	}
	return pool, nil
}

// newEventProducer fans progress events out to stdout, the hub and kafka when configured.
func newEventProducer(cfg *config.Config, hub *events.Hub) (*events.EventProducer, error) {
	writers := []events.Writer{&events.StdoutWriter{}}
	if hub != nil {
		writers = append(writers, hub)
	}

	var opts []events.ProducerOptions
	if cfg.IsKafkaEnabled() {
		kafka, err := events.NewKafkaWriter(cfg.Service.Kafka.Brokers, cfg.Service.Kafka.ClientID)
		if err != nil {
			return nil, fmt.Errorf("failed to create kafka writer: %w", err)
		}
		writers = append(writers, kafka)
		opts = append(opts, events.WithOutputTopic(cfg.Service.Kafka.Topic))
		zap.S().Infow("publishing progress events to kafka", "brokers", cfg.Service.Kafka.Brokers, "topic", cfg.Service.Kafka.Topic)
	}

	return events.NewEventProducer(events.NewMultiWriter(writers...), opts...), nil
}

func newDownloaderManager(cfg *config.Config) *download.Manager {
	m := download.NewDownloaderManager()
	m.Register(download.NewHttpDownloader(download.WithRetries(cfg.Service.Pipeline.DownloadRetries)))

	if cfg.Service.S3.Endpoint == "" {
		return m
	}

	minio, err := download.NewMinioDownloader(
		download.WithEndpoint(cfg.Service.S3.Endpoint),
		download.WithAccessKey(cfg.Service.S3.AccessKey),
		download.WithSecretKey(cfg.Service.S3.SecretKey),
		download.WithSSL(cfg.Service.S3.UseSSL),
	)
	if err != nil {
		zap.S().Errorw("failed to create minio downloader", "error", err)
		return m
	}
	return m.Register(minio)
}

func newLocker(cfg *config.Config) moderation.Locker {
	if cfg.Service.Redis.Address == "" {
		return moderation.NewMemoryLocker()
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Service.Redis.Address,
		Password: cfg.Service.Redis.Password,
		DB:       cfg.Service.Redis.DB,
	})
	zap.S().Infow("using redis job locks", "address", cfg.Service.Redis.Address)
	return moderation.NewRedisLocker(client, cfg.Service.Redis.LockTTL)
}

func newOrchestrator(cfg *config.Config, s store.Store, emitter moderation.Emitter) *moderation.Orchestrator {
	p := cfg.Service.Pipeline
	tool := ffmpeg.New(ffmpeg.WithBinaries(p.FFmpegPath, p.FFprobePath))

	c := cfg.Service.Classifier
	classifier := moderation.NewRekognitionClassifier(c.Region, c.AccessKeyID, c.SecretAccessKey, c.MinConfidence)
	if c.AccessKeyID == "" || c.SecretAccessKey == "" {
		zap.S().Warn("classification credentials are not configured, every run will be flagged for review")
	}

	return moderation.NewOrchestrator(
		s.Video(),
		moderation.NewWorkspace(cfg.Service.TempDir),
		moderation.NewAcquirer(newDownloaderManager(cfg), tool, s.Settings()),
		moderation.NewDecomposer(tool,
			moderation.WithSceneThreshold(p.SceneThreshold),
			moderation.WithFrameWidth(p.FrameWidth),
			moderation.WithMaxFrames(p.MaxFrames),
		),
		classifier,
		emitter,
		moderation.WithLocker(newLocker(cfg)),
		moderation.WithAggregator(moderation.NewAggregator(p.FlagConfidence)),
		moderation.WithClassifyLimit(p.ClassifyFrames),
		moderation.WithTimeouts(moderation.Timeouts{
			Download: p.DownloadTimeout,
			Probe:    p.ProbeTimeout,
			Audio:    p.AudioTimeout,
			Frames:   p.FramesTimeout,
			Classify: p.ClassifyTimeout,
		}),
	)
}

func newListener(address string) (net.Listener, error) {
	if address == "" {
		address = "localhost:0"
	}
	return net.Listen("tcp", address)
}
