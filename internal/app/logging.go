package app

import (
	"context"
	"os"
	"strings"

	"github.com/RyanBlaney/sonido-sonar/logging"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/RyanBlaney/activity-spectra/configs"
	"github.com/RyanBlaney/activity-spectra/pkg/common"
)

// ParseLevel maps a config level name onto the library level
func ParseLevel(level string) logging.Level {
	switch strings.ToLower(level) {
	case "debug":
		return logging.DebugLevel
	case "warn", "warning":
		return logging.WarnLevel
	case "error":
		return logging.ErrorLevel
	case "fatal":
		return logging.FatalLevel
	default:
		return logging.InfoLevel
	}
}

// setupLogging configures logging based on context
func setupLogging(ctx *Context, cfg *configs.Config) (logging.Logger, error) {
	level := cfg.LogLevel
	if ctx.LogLevel != "" {
		level = ctx.LogLevel
	}
	if ctx.Verbose {
		level = "debug"
	}

	var logger logging.Logger
	switch cfg.Log.Format {
	case configs.LogFormatJSON:
		zl, err := newZapLogger(level)
		if err != nil {
			return nil, err
		}
		logger = zl
	default:
		logger = logging.NewDefaultLogger()
	}

	logger.SetLevel(ParseLevel(level))
	logging.SetGlobalLogger(logger)
	return logger, nil
}

// ZapLogger implements logging.Logger on top of zap for JSON production logs
type ZapLogger struct {
	base  *zap.Logger
	level zap.AtomicLevel
}

func newZapLogger(level string) (*ZapLogger, error) {
	config := zap.NewProductionConfig()
	config.Level = zap.NewAtomicLevelAt(toZapLevel(ParseLevel(level)))
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	config.OutputPaths = []string{"stderr"}
	config.ErrorOutputPaths = []string{"stderr"}

	base, err := config.Build()
	if err != nil {
		return nil, err
	}
	base = base.With(zap.String("service_name", "activity-spectra"))
	if hostname, err := os.Hostname(); err == nil && hostname != "" {
		base = base.With(zap.String("hostname", hostname))
	}

	return &ZapLogger{base: base, level: config.Level}, nil
}

// NewZapLogger wraps an existing zap logger. The level is shared with
// loggers derived through WithFields.
func NewZapLogger(base *zap.Logger, level zap.AtomicLevel) *ZapLogger {
	return &ZapLogger{base: base, level: level}
}

func (z *ZapLogger) Debug(msg string, fields ...logging.Fields) {
	z.base.Debug(msg, toZapFields(nil, fields)...)
}

func (z *ZapLogger) Info(msg string, fields ...logging.Fields) {
	z.base.Info(msg, toZapFields(nil, fields)...)
}

func (z *ZapLogger) Warn(msg string, fields ...logging.Fields) {
	z.base.Warn(msg, toZapFields(nil, fields)...)
}

func (z *ZapLogger) Error(err error, msg string, fields ...logging.Fields) {
	z.base.Error(msg, toZapFields(err, fields)...)
}

func (z *ZapLogger) Fatal(err error, msg string, fields ...logging.Fields) {
	z.base.Fatal(msg, toZapFields(err, fields)...)
}

func (z *ZapLogger) WithFields(fields logging.Fields) logging.Logger {
	return &ZapLogger{base: z.base.With(toZapFields(nil, []logging.Fields{fields})...), level: z.level}
}

func (z *ZapLogger) WithContext(ctx context.Context) logging.Logger {
	if fields, ok := common.LogFields(ctx); ok {
		return z.WithFields(fields)
	}
	return z
}

func (z *ZapLogger) SetLevel(level logging.Level) {
	z.level.SetLevel(toZapLevel(level))
}

// Sync flushes buffered entries
func (z *ZapLogger) Sync() error {
	return z.base.Sync()
}

func toZapLevel(level logging.Level) zapcore.Level {
	switch level {
	case logging.DebugLevel:
		return zapcore.DebugLevel
	case logging.WarnLevel:
		return zapcore.WarnLevel
	case logging.ErrorLevel:
		return zapcore.ErrorLevel
	case logging.FatalLevel:
		return zapcore.FatalLevel
	default:
		return zapcore.InfoLevel
	}
}

func toZapFields(err error, fields []logging.Fields) []zap.Field {
	var out []zap.Field
	if err != nil {
		out = append(out, zap.Error(err))
	}
	for _, f := range fields {
		for k, v := range f {
			out = append(out, zap.Any(k, v))
		}
	}
	return out
}
