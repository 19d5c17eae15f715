package utils

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger provides structured, leveled logging throughout the application.
type Logger struct {
	sugar *zap.SugaredLogger
}

// NewLogger creates a console Logger writing to stdout at the given level
// ("debug", "info", "warn", "error"). Unknown levels fall back to info.
func NewLogger(level string) *Logger {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		lvl = zapcore.InfoLevel
	}

	encCfg := zap.NewDevelopmentEncoderConfig()
	encCfg.EncodeTime = zapcore.TimeEncoderOfLayout("2006-01-02 15:04:05")
	encCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
	encCfg.CallerKey = ""

	core := zapcore.NewCore(
		zapcore.NewConsoleEncoder(encCfg),
		zapcore.Lock(os.Stdout),
		lvl,
	)
	return &Logger{sugar: zap.New(core).Sugar()}
}

// NewNopLogger discards everything. Meant for tests.
func NewNopLogger() *Logger {
	return &Logger{sugar: zap.NewNop().Sugar()}
}

// With returns a child logger that adds key/value context to every line.
func (l *Logger) With(args ...any) *Logger {
	return &Logger{sugar: l.sugar.With(args...)}
}

func (l *Logger) Info(format string, args ...any) {
	l.sugar.Infof(format, args...)
}

func (l *Logger) Warn(format string, args ...any) {
	l.sugar.Warnf(format, args...)
}

func (l *Logger) Error(format string, args ...any) {
	l.sugar.Errorf(format, args...)
}

func (l *Logger) Debug(format string, args ...any) {
	l.sugar.Debugf(format, args...)
}

// Sync flushes buffered output.
func (l *Logger) Sync() {
	_ = l.sugar.Sync()
}
