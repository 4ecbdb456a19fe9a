package config

import (
	"time"

	"github.com/kelseyhightower/envconfig"
)

var singleConfig *Config = nil

type Config struct {
	Database *dbConfig
	Service  *svcConfig
}

type dbConfig struct {
	Type     string `envconfig:"DB_TYPE" default:"pgsql"`
	Hostname string `envconfig:"DB_HOST" default:"localhost"`
	Port     string `envconfig:"DB_PORT" default:"5432"`
	Name     string `envconfig:"DB_NAME" default:"moderator"`
	User     string `envconfig:"DB_USER" default:"admin"`
	Password string `envconfig:"DB_PASS" default:"adminpass"`
}

type svcConfig struct {
	Address         string   `envconfig:"MODERATOR_ADDRESS" default:":8080"`
	MetricsAddress  string   `envconfig:"MODERATOR_METRICS_ADDRESS" default:":8081"`
	LogLevel        string   `envconfig:"MODERATOR_LOG_LEVEL" default:"info"`
	LogFormat       string   `envconfig:"MODERATOR_LOG_FORMAT" default:"console"`
	TempDir         string   `envconfig:"MODERATOR_TEMP_DIR" default:"/tmp/moderator"`
	MigrationFolder string   `envconfig:"MODERATOR_MIGRATIONS_FOLDER" default:""`
	CorsOrigins     []string `envconfig:"MODERATOR_CORS_ORIGINS" default:"*"`
	Pipeline        pipelineConfig
	Classifier      classifierConfig
	Redis           redisConfig
	S3              s3Config
	Kafka           kafkaConfig
	Queue           queueConfig
}

type pipelineConfig struct {
	FFmpegPath      string        `envconfig:"MODERATOR_FFMPEG_PATH" default:"ffmpeg"`
	FFprobePath     string        `envconfig:"MODERATOR_FFPROBE_PATH" default:"ffprobe"`
	SceneThreshold  float64       `envconfig:"MODERATOR_SCENE_THRESHOLD" default:"0.15"`
	FrameWidth      int           `envconfig:"MODERATOR_FRAME_WIDTH" default:"320"`
	MaxFrames       int           `envconfig:"MODERATOR_MAX_FRAMES" default:"15"`
	ClassifyFrames  int           `envconfig:"MODERATOR_CLASSIFY_FRAMES" default:"5"`
	FlagConfidence  float64       `envconfig:"MODERATOR_FLAG_CONFIDENCE" default:"75"`
	DownloadRetries uint64        `envconfig:"MODERATOR_DOWNLOAD_RETRIES" default:"3"`
	DownloadTimeout time.Duration `envconfig:"MODERATOR_DOWNLOAD_TIMEOUT" default:"10m"`
	ProbeTimeout    time.Duration `envconfig:"MODERATOR_PROBE_TIMEOUT" default:"1m"`
	AudioTimeout    time.Duration `envconfig:"MODERATOR_AUDIO_TIMEOUT" default:"5m"`
	FramesTimeout   time.Duration `envconfig:"MODERATOR_FRAMES_TIMEOUT" default:"5m"`
	ClassifyTimeout time.Duration `envconfig:"MODERATOR_CLASSIFY_TIMEOUT" default:"2m"`
}

type classifierConfig struct {
	Region          string  `envconfig:"AWS_REGION" default:"us-east-1"`
	AccessKeyID     string  `envconfig:"AWS_ACCESS_KEY_ID" default:""`
	SecretAccessKey string  `envconfig:"AWS_SECRET_ACCESS_KEY" default:""`
	MinConfidence   float32 `envconfig:"MODERATOR_MIN_CONFIDENCE" default:"60"`
}

// redisConfig with an empty address falls back to in-process job locks.
type redisConfig struct {
	Address  string        `envconfig:"MODERATOR_REDIS_ADDRESS" default:""`
	Password string        `envconfig:"MODERATOR_REDIS_PASSWORD" default:""`
	DB       int           `envconfig:"MODERATOR_REDIS_DB" default:"0"`
	LockTTL  time.Duration `envconfig:"MODERATOR_LOCK_TTL" default:"30m"`
}

type s3Config struct {
	Endpoint  string `envconfig:"MODERATOR_S3_ENDPOINT" default:""`
	AccessKey string `envconfig:"MODERATOR_S3_ACCESS_KEY" default:""`
	SecretKey string `envconfig:"MODERATOR_S3_SECRET_KEY" default:""`
	UseSSL    bool   `envconfig:"MODERATOR_S3_USE_SSL" default:"false"`
}

type kafkaConfig struct {
	Brokers  []string `envconfig:"MODERATOR_KAFKA_BROKERS" default:""`
	Topic    string   `envconfig:"MODERATOR_KAFKA_TOPIC" default:""`
	ClientID string   `envconfig:"MODERATOR_KAFKA_CLIENT_ID" default:"moderator"`
}

type queueConfig struct {
	Enabled     bool          `envconfig:"MODERATOR_QUEUE_ENABLED" default:"true"`
	MaxWorkers  int           `envconfig:"MODERATOR_QUEUE_WORKERS" default:"4"`
	MaxAttempts int           `envconfig:"MODERATOR_QUEUE_MAX_ATTEMPTS" default:"3"`
	JobTimeout  time.Duration `envconfig:"MODERATOR_JOB_TIMEOUT" default:"30m"`
}

func New() (*Config, error) {
	if singleConfig == nil {
		singleConfig = new(Config)
		if err := envconfig.Process("", singleConfig); err != nil {
			return nil, err
		}
	}
	return singleConfig, nil
}

// NewDefault returns a fresh configuration built from the environment and defaults,
// bypassing the process-wide instance.
func NewDefault() (*Config, error) {
	cfg := new(Config)
	if err := envconfig.Process("", cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) IsKafkaEnabled() bool {
	return len(c.Service.Kafka.Brokers) > 0 && c.Service.Kafka.Topic != ""
}
