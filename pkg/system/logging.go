// Package system holds process-level helpers shared by the cosmo commands.
package system

import (
	"io"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NewCLILogger builds the logger used by the cosmo commands. Diagnostics go
// to stderr as JSON at warn level, or as human-readable debug output when
// verbose is set. Progress messages for the user are not logged.
func NewCLILogger(verbose bool) (*zap.SugaredLogger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(zapcore.WarnLevel)
	if verbose {
		cfg = zap.NewDevelopmentConfig()
		cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	cfg.DisableStacktrace = true
	cfg.EncoderConfig.EncodeTime = func(t time.Time, enc zapcore.PrimitiveArrayEncoder) {
		enc.AppendString(t.UTC().Format(time.RFC3339))
	}
	cfg.EncoderConfig.TimeKey = "ts"
	cfg.OutputPaths = []string{"stderr"}
	cfg.ErrorOutputPaths = []string{"stderr"}
	logger, err := cfg.Build()
	if err != nil {
		return nil, err
	}
	return logger.Sugar(), nil
}

// NewWriterLogger logs to w with the same encoding as NewCLILogger. Commands
// use it when they are given an explicit error writer.
func NewWriterLogger(w io.Writer, verbose bool) *zap.SugaredLogger {
	level := zapcore.WarnLevel
	encCfg := zap.NewProductionEncoderConfig()
	var encoder zapcore.Encoder
	if verbose {
		level = zapcore.DebugLevel
		encCfg = zap.NewDevelopmentEncoderConfig()
	}
	encCfg.EncodeTime = func(t time.Time, enc zapcore.PrimitiveArrayEncoder) {
		enc.AppendString(t.UTC().Format(time.RFC3339))
	}
	encCfg.TimeKey = "ts"
	if verbose {
		encoder = zapcore.NewConsoleEncoder(encCfg)
	} else {
		encoder = zapcore.NewJSONEncoder(encCfg)
	}
	core := zapcore.NewCore(encoder, zapcore.AddSync(w), level)
	return zap.New(core).Sugar()
}
