package log

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	FormatConsole = "console"
	FormatJSON    = "json"
)

type Opts func(c *zap.Config)

// WithFormat selects the encoder. Anything but "json" falls back to the console encoder.
func WithFormat(format string) Opts {
	return func(c *zap.Config) {
		if format == FormatJSON {
			c.Encoding = FormatJSON
		}
	}
}

// WithOutput replaces stdout as log destination.
func WithOutput(paths ...string) Opts {
	return func(c *zap.Config) {
		if len(paths) > 0 {
			c.OutputPaths = paths
		}
	}
}

// ParseLevel maps a level name to an atomic level, falling back to info for unknown names.
func ParseLevel(level string) zap.AtomicLevel {
	lvl, err := zap.ParseAtomicLevel(level)
	if err != nil {
		return zap.NewAtomicLevelAt(zap.InfoLevel)
	}
	return lvl
}

func InitLog(lvl zap.AtomicLevel, opts ...Opts) *zap.Logger {
	encoder := zap.NewProductionEncoderConfig()
	encoder.TimeKey = "time"
	encoder.LevelKey = "severity"
	encoder.MessageKey = "message"
	encoder.EncodeTime = zapcore.RFC3339TimeEncoder
	encoder.EncodeDuration = zapcore.MillisDurationEncoder

	cfg := zap.Config{
		Level:            lvl,
		Encoding:         FormatConsole,
		EncoderConfig:    encoder,
		OutputPaths:      []string{"stdout"},
		ErrorOutputPaths: []string{"stderr"},
	}
	for _, o := range opts {
		o(&cfg)
	}

	logger, err := cfg.Build(zap.AddStacktrace(zap.DPanicLevel))
	if err != nil {
		panic(err)
	}
	return logger
}
