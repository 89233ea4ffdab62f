/*
NAME
  logging.go

AUTHORS
  Saxon A. Nelson-Milton <saxon@ausocean.org>
  Alan Noble <alan@ausocean.org>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

// Package logging provides a small levelled logger used throughout wepx,
// backed by zap and rotated with lumberjack.
package logging

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	lumberjack "gopkg.in/natefinch/lumberjack.v2"
)

// Severity levels, ordered least to most severe, matching the shape of
// the leveled logger interface used throughout the AusOcean av stack.
const (
	Debug int8 = iota
	Info
	Warning
	Error
	Fatal
)

// Logger is the logging contract used by every wepx component.
type Logger interface {
	SetLevel(level int8)
	Debug(msg string, params ...interface{})
	Info(msg string, params ...interface{})
	Warning(msg string, params ...interface{})
	Error(msg string, params ...interface{})
	Fatal(msg string, params ...interface{})
}

// Config configures file rotation for a Logger produced by New.
type Config struct {
	FilePath   string // Destination log file; empty writes to stderr only.
	MaxSizeMB  int    // Max size in megabytes before rotation (lumberjack default if zero).
	MaxBackups int    // Max number of old log files to retain.
	MaxAgeDays int    // Max age in days to retain an old log file.
	Level      int8   // Initial minimum level to emit.
}

// zapLogger adapts a *zap.SugaredLogger to the Logger interface, with a
// mutable atomic level so SetLevel can be changed at runtime.
type zapLogger struct {
	level *zap.AtomicLevel
	sugar *zap.SugaredLogger
}

// New returns a Logger that writes JSON-ish structured log lines to
// cfg.FilePath (rotated via lumberjack) and to stderr.
func New(cfg Config) Logger {
	level := zap.NewAtomicLevelAt(toZapLevel(cfg.Level))

	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.TimeKey = "time"
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	encoder := zapcore.NewJSONEncoder(encoderCfg)

	var cores []zapcore.Core
	cores = append(cores, zapcore.NewCore(encoder, zapcore.Lock(zapcore.AddSync(os.Stderr)), level))

	if cfg.FilePath != "" {
		rotator := &lumberjack.Logger{
			Filename:   cfg.FilePath,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
			Compress:   true,
		}
		cores = append(cores, zapcore.NewCore(encoder, zapcore.AddSync(rotator), level))
	}

	core := zapcore.NewTee(cores...)
	l := zap.New(core, zap.AddCaller(), zap.AddCallerSkip(1))
	return &zapLogger{level: &level, sugar: l.Sugar()}
}

func (l *zapLogger) SetLevel(level int8) { l.level.SetLevel(toZapLevel(level)) }

func (l *zapLogger) Debug(msg string, params ...interface{})   { l.sugar.Debugw(msg, params...) }
func (l *zapLogger) Info(msg string, params ...interface{})    { l.sugar.Infow(msg, params...) }
func (l *zapLogger) Warning(msg string, params ...interface{}) { l.sugar.Warnw(msg, params...) }
func (l *zapLogger) Error(msg string, params ...interface{})   { l.sugar.Errorw(msg, params...) }
func (l *zapLogger) Fatal(msg string, params ...interface{})   { l.sugar.Fatalw(msg, params...) }

func toZapLevel(level int8) zapcore.Level {
	switch level {
	case Debug:
		return zapcore.DebugLevel
	case Info:
		return zapcore.InfoLevel
	case Warning:
		return zapcore.WarnLevel
	case Error:
		return zapcore.ErrorLevel
	default:
		return zapcore.FatalLevel
	}
}
