// Package logger provides opinionated logging capabilities for the meshmind
// system.
package logger

import (
	"io"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NewLogger creates a console logger writing to stdout.
func NewLogger(debug bool) *zap.Logger {
	return NewLoggerWithWriters(debug, os.Stdout)
}

// NewLoggerWithWriters creates a console logger fanning out to the given
// writers.
func NewLoggerWithWriters(debug bool, writers ...io.Writer) *zap.Logger {
	return build(debug, zapcore.NewConsoleEncoder(encoderConfig(true)), writers)
}

// NewJSONLogger creates a structured JSON logger for service deployments.
func NewJSONLogger(debug bool, writers ...io.Writer) *zap.Logger {
	return build(debug, zapcore.NewJSONEncoder(encoderConfig(false)), writers)
}

func encoderConfig(color bool) zapcore.EncoderConfig {
	cfg := zap.NewProductionEncoderConfig()
	cfg.TimeKey = "time"
	cfg.EncodeTime = zapcore.ISO8601TimeEncoder
	if color {
		cfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		cfg.EncodeLevel = zapcore.LowercaseLevelEncoder
	}
	return cfg
}

func build(debug bool, encoder zapcore.Encoder, writers []io.Writer) *zap.Logger {
	level := zap.InfoLevel
	if debug {
		level = zap.DebugLevel
	}

	if len(writers) == 0 {
		writers = []io.Writer{os.Stdout}
	}

	syncers := make([]zapcore.WriteSyncer, 0, len(writers))
	for _, writer := range writers {
		syncers = append(syncers, zapcore.AddSync(writer))
	}

	core := zapcore.NewCore(
		encoder,
		zapcore.NewMultiWriteSyncer(syncers...),
		level,
	)

	return zap.New(core, zap.AddCaller())
}
