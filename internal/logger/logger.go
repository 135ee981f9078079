package logger

import (
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Field keys shared by every component that logs about a job.
const (
	FieldJobID       = "job_id"
	FieldFingerprint = "fingerprint"
	FieldWorkerID    = "worker_id"
	FieldStage       = "stage"
)

type Config struct {
	Level      string // debug, info, warn, error
	Encoding   string // json or console
	OutputPath string // stdout when empty
	// Service and Env are attached to every entry when set.
	Service string
	Env     string
}

// New builds the process logger. Development envs get caller info and
// stack traces on warnings; everything else logs lean JSON.
func New(cfg Config) (*zap.Logger, error) {
	level := zap.NewAtomicLevelAt(zap.InfoLevel)
	if cfg.Level != "" {
		if err := level.UnmarshalText([]byte(strings.ToLower(cfg.Level))); err != nil {
			// No logger to report through yet.
			fmt.Fprintf(os.Stderr, "Invalid log level %q, using info: %v\n", cfg.Level, err)
			level.SetLevel(zap.InfoLevel)
		}
	}

	encoding := strings.ToLower(cfg.Encoding)
	if encoding != "console" {
		encoding = "json"
	}

	output := cfg.OutputPath
	if output == "" {
		output = "stdout"
	}

	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.TimeKey = "timestamp"
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	encoderCfg.EncodeLevel = zapcore.CapitalLevelEncoder

	development := cfg.Env == "development"
	zapCfg := zap.Config{
		Level:             level,
		Development:       development,
		DisableCaller:     !development,
		DisableStacktrace: !development,
		Encoding:          encoding,
		EncoderConfig:     encoderCfg,
		OutputPaths:       []string{output},
		ErrorOutputPaths:  []string{"stderr"},
	}

	var initial []zap.Field
	if cfg.Service != "" {
		initial = append(initial, zap.String("service", cfg.Service))
	}
	if cfg.Env != "" {
		initial = append(initial, zap.String("env", cfg.Env))
	}

	log, err := zapCfg.Build(zap.Fields(initial...))
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}
	return log, nil
}

// ForJob scopes log to one job.
func ForJob(log *zap.Logger, jobID, fingerprint string) *zap.Logger {
	fields := make([]zap.Field, 0, 2)
	if jobID != "" {
		fields = append(fields, zap.String(FieldJobID, jobID))
	}
	if fingerprint != "" {
		fields = append(fields, zap.String(FieldFingerprint, fingerprint))
	}
	return log.With(fields...)
}
