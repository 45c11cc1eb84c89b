package mlog

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// ZapLogger is the go.uber.org/zap-backed implementation of Logger.
type ZapLogger struct {
	Logger *zap.SugaredLogger
}

// NewZapLogger builds a ZapLogger at the given level, logging structured
// JSON to stdout in production-style encoding.
func NewZapLogger(level Level) (*ZapLogger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(toZapLevel(level))
	cfg.EncoderConfig.TimeKey = "timestamp"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	logger, err := cfg.Build()
	if err != nil {
		return nil, err
	}

	return &ZapLogger{Logger: logger.Sugar()}, nil
}

func toZapLevel(l Level) zapcore.Level {
	switch l {
	case FatalLevel:
		return zapcore.FatalLevel
	case ErrorLevel:
		return zapcore.ErrorLevel
	case WarnLevel:
		return zapcore.WarnLevel
	case DebugLevel:
		return zapcore.DebugLevel
	default:
		return zapcore.InfoLevel
	}
}

func (l *ZapLogger) Info(args ...any)                  { l.Logger.Info(args...) }
func (l *ZapLogger) Infof(format string, args ...any)   { l.Logger.Infof(format, args...) }
func (l *ZapLogger) Error(args ...any)                  { l.Logger.Error(args...) }
func (l *ZapLogger) Errorf(format string, args ...any)  { l.Logger.Errorf(format, args...) }
func (l *ZapLogger) Warn(args ...any)                   { l.Logger.Warn(args...) }
func (l *ZapLogger) Warnf(format string, args ...any)   { l.Logger.Warnf(format, args...) }
func (l *ZapLogger) Debug(args ...any)                  { l.Logger.Debug(args...) }
func (l *ZapLogger) Debugf(format string, args ...any)  { l.Logger.Debugf(format, args...) }
func (l *ZapLogger) Fatal(args ...any)                  { l.Logger.Fatal(args...) }
func (l *ZapLogger) Fatalf(format string, args ...any)  { l.Logger.Fatalf(format, args...) }

// WithFields adds structured context to the logger. It returns a new
// logger and leaves the original unchanged.
//
//nolint:ireturn
func (l *ZapLogger) WithFields(fields ...any) Logger {
	return &ZapLogger{Logger: l.Logger.With(fields...)}
}

func (l *ZapLogger) Sync() error {
	return l.Logger.Sync()
}
