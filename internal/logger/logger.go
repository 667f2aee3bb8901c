/**
 * @description
 * Structured logger for the Savings Circle backend.
 * Thin printf-style facade over a zap SugaredLogger so call sites stay one-liners.
 *
 * @dependencies
 * - go.uber.org/zap
 *
 * @notes
 * - Info goes to stdout, errors to stderr, so hosted log collectors label them correctly.
 * - Call Setup once at startup; before that a development logger is used.
 */

package logger

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var sugar = newLogger("development").Sugar()

// Setup replaces the process logger with one configured for env
func Setup(env string) {
	sugar = newLogger(env).Sugar()
}

// Use swaps the underlying logger, mostly for tests (zap.NewNop(), zaptest)
func Use(l *zap.Logger) {
	sugar = l.Sugar()
}

// L returns the underlying zap logger for libraries that want one
func L() *zap.Logger {
	return sugar.Desugar()
}

func newLogger(env string) *zap.Logger {
	var encoder zapcore.Encoder
	level := zapcore.InfoLevel
	if env == "development" {
		encCfg := zap.NewDevelopmentEncoderConfig()
		encCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
		encoder = zapcore.NewConsoleEncoder(encCfg)
		level = zapcore.DebugLevel
	} else {
		encoder = zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig())
	}

	stdout := zapcore.Lock(os.Stdout)
	stderr := zapcore.Lock(os.Stderr)

	core := zapcore.NewTee(
		zapcore.NewCore(encoder, stdout, zap.LevelEnablerFunc(func(l zapcore.Level) bool {
			return l >= level && l < zapcore.ErrorLevel
		})),
		zapcore.NewCore(encoder, stderr, zap.LevelEnablerFunc(func(l zapcore.Level) bool {
			return l >= zapcore.ErrorLevel
		})),
	)

	return zap.New(core, zap.AddCaller(), zap.AddCallerSkip(1))
}

// Debug logs a debug message
func Debug(format string, v ...interface{}) {
	sugar.Debugf(format, v...)
}

// Info logs an info message to stdout
func Info(format string, v ...interface{}) {
	sugar.Infof(format, v...)
}

// Warn logs a warning to stdout
func Warn(format string, v ...interface{}) {
	sugar.Warnf(format, v...)
}

// Error logs an error message to stderr
func Error(format string, v ...interface{}) {
	sugar.Errorf(format, v...)
}

// Fatal logs an error and exits
func Fatal(format string, v ...interface{}) {
	sugar.Fatalf(format, v...)
}

// Sync flushes buffered entries, call before exit
func Sync() {
	_ = sugar.Sync()
}
