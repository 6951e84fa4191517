// Package log provides the structured logging surface every other
// package in this module logs through: a small interface over
// go.uber.org/zap's SugaredLogger, with file rotation via
// gopkg.in/natefinch/lumberjack.v2. Its level and rotation policy are
// not a freestanding options type but the logging fields carried on
// config.Config, so a host application tunes the coordinator's
// logging the same way it tunes everything else about it.
package log

import (
	"context"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/cedarsql/txncoord/config"
)

// Logger is the minimal logging surface the rest of this module needs.
type Logger interface {
	Error(v ...interface{})
	Warn(v ...interface{})
	Info(v ...interface{})
	Debug(v ...interface{})
	Errorf(format string, v ...interface{})
	Warnf(format string, v ...interface{})
	Infof(format string, v ...interface{})
	Debugf(format string, v ...interface{})
}

var defaultLogger Logger

func init() {
	defaultLogger = NewSugarLogger(config.Default())
}

// Levels maps a configured level name to its zapcore.Level.
var Levels = map[string]zapcore.Level{
	"":      zapcore.DebugLevel,
	"debug": zapcore.DebugLevel,
	"info":  zapcore.InfoLevel,
	"warn":  zapcore.WarnLevel,
	"error": zapcore.ErrorLevel,
	"fatal": zapcore.FatalLevel,
}

type zapLoggerWrapper struct {
	*zap.SugaredLogger
	cfg config.Config
}

// NewSugarLogger builds a Logger backed by zap and rotated via
// lumberjack, per cfg's Log* fields.
func NewSugarLogger(cfg config.Config) Logger {
	w := &zapLoggerWrapper{cfg: cfg}
	encoder := w.getEncoder()
	writeSyncer := w.getLogWriter()
	core := zapcore.NewCore(encoder, writeSyncer, Levels[cfg.LogLevel])
	w.SugaredLogger = zap.New(core, zap.AddCaller(), zap.AddCallerSkip(1)).Sugar()
	return w
}

func (w *zapLoggerWrapper) getEncoder() zapcore.Encoder {
	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	encoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	return zapcore.NewConsoleEncoder(encoderConfig)
}

func (w *zapLoggerWrapper) getLogWriter() zapcore.WriteSyncer {
	return zapcore.AddSync(&lumberjack.Logger{
		Filename:   w.cfg.LogFileName,
		MaxAge:     w.cfg.LogMaxAgeDays,
		MaxSize:    w.cfg.LogMaxSizeMB,
		MaxBackups: w.cfg.LogMaxBackups,
		Compress:   w.cfg.LogCompress,
	})
}

// GetDefaultLogger returns the process-wide default Logger.
func GetDefaultLogger() Logger {
	return defaultLogger
}

// SetDefaultLogger overrides the process-wide default Logger, e.g. so
// a host application can redirect coordinator logs into its own sink.
func SetDefaultLogger(logger Logger) {
	defaultLogger = logger
}

func Debugf(format string, args ...interface{}) { GetDefaultLogger().Debugf(format, args...) }
func Infof(format string, args ...interface{})  { GetDefaultLogger().Infof(format, args...) }
func Warnf(format string, args ...interface{})  { GetDefaultLogger().Warnf(format, args...) }
func Errorf(format string, args ...interface{}) { GetDefaultLogger().Errorf(format, args...) }

func DebugContext(ctx context.Context, args ...interface{}) { GetDefaultLogger().Debug(args...) }
func DebugContextf(ctx context.Context, format string, args ...interface{}) {
	GetDefaultLogger().Debugf(format, args...)
}
func InfoContext(ctx context.Context, args ...interface{}) { GetDefaultLogger().Info(args...) }
func InfoContextf(ctx context.Context, format string, args ...interface{}) {
	GetDefaultLogger().Infof(format, args...)
}
func WarnContext(ctx context.Context, args ...interface{}) { GetDefaultLogger().Warn(args...) }
func WarnContextf(ctx context.Context, format string, args ...interface{}) {
	GetDefaultLogger().Warnf(format, args...)
}
func ErrorContext(ctx context.Context, args ...interface{}) { GetDefaultLogger().Error(args...) }
func ErrorContextf(ctx context.Context, format string, args ...interface{}) {
	GetDefaultLogger().Errorf(format, args...)
}

func Fatalf(format string, args ...interface{}) {
	Errorf(format, args...)
}
