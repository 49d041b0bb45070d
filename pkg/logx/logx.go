// Package logx initializes the process-wide zap logger. Components obtain
// loggers through zap.S()/zap.L() after Init has run; tests that never call
// Init get zap's no-op global.
package logx

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

type Options struct {
	// Mode selects the encoder preset, "production" or "development".
	Mode string
	// Filename enables rotated file output next to stdout when non-empty.
	Filename string
	Level    zapcore.Level
}

func Init(opts Options) *zap.Logger {
	var encoderCfg zapcore.EncoderConfig
	if opts.Mode == "production" {
		encoderCfg = zap.NewProductionEncoderConfig()
	} else {
		encoderCfg = zap.NewDevelopmentEncoderConfig()
	}

	consoleCore := zapcore.NewCore(
		zapcore.NewConsoleEncoder(encoderCfg),
		zapcore.AddSync(os.Stdout),
		opts.Level,
	)

	var logger *zap.Logger
	if opts.Filename != "" {
		fileSink := &lumberjack.Logger{
			Filename:   opts.Filename,
			MaxSize:    64,
			MaxBackups: 7,
			MaxAge:     7,
		}
		core := zapcore.NewTee(
			consoleCore,
			zapcore.NewCore(
				zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig()),
				zapcore.AddSync(fileSink),
				opts.Level,
			),
		)
		logger = zap.New(core, zap.AddCaller())
	} else {
		logger = zap.New(consoleCore, zap.AddCaller())
	}

	zap.ReplaceGlobals(logger)
	return logger
}
