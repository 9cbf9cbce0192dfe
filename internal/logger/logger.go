// Package logger builds the zap loggers used by the binaries. Every run
// writes JSON to stderr and, when a directory is given, to a dated file.
package logger

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Options controls logger construction
type Options struct {
	// Name prefixes the log file, e.g. "bot" or "BTCUSDT_1h"
	Name string
	// Dir receives <name>_<date>.log. Empty disables the file sink.
	Dir   string
	Level string
	// Console switches stderr output to the human readable encoder
	Console bool
	// Now is used for the file date, time.Now when nil
	Now func() time.Time
}

// New returns the logger and a function that flushes and closes the file
// sink
func New(opts Options) (*zap.Logger, func() error, error) {
	level, err := ParseLevel(opts.Level)
	if err != nil {
		return nil, nil, err
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "ts"
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	var stderrEnc zapcore.Encoder
	if opts.Console {
		consoleCfg := encCfg
		consoleCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
		stderrEnc = zapcore.NewConsoleEncoder(consoleCfg)
	} else {
		stderrEnc = zapcore.NewJSONEncoder(encCfg)
	}
	cores := []zapcore.Core{
		zapcore.NewCore(stderrEnc, zapcore.Lock(os.Stderr), level),
	}

	closeFn := func() error { return nil }
	if opts.Dir != "" {
		file, err := openLogFile(opts)
		if err != nil {
			return nil, nil, err
		}
		cores = append(cores, zapcore.NewCore(zapcore.NewJSONEncoder(encCfg), zapcore.AddSync(file), level))
		closeFn = func() error {
			_ = file.Sync()
			return file.Close()
		}
	}

	l := zap.New(zapcore.NewTee(cores...), zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel))
	if opts.Name != "" {
		l = l.Named(opts.Name)
	}
	return l, func() error {
		_ = l.Sync()
		return closeFn()
	}, nil
}

// FilePath is where New writes the log for opts
func FilePath(opts Options) string {
	now := time.Now
	if opts.Now != nil {
		now = opts.Now
	}
	name := opts.Name
	if name == "" {
		name = "swingbot"
	}
	return filepath.Join(opts.Dir, fmt.Sprintf("%s_%s.log", name, now().Format("2006-01-02")))
}

func openLogFile(opts Options) (*os.File, error) {
	if err := os.MkdirAll(opts.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}
	file, err := os.OpenFile(FilePath(opts), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	return file, nil
}

// ParseLevel maps "debug", "info", "warn" and "error" to zap levels. An
// empty string means info.
func ParseLevel(s string) (zap.AtomicLevel, error) {
	if strings.TrimSpace(s) == "" {
		return zap.NewAtomicLevelAt(zapcore.InfoLevel), nil
	}
	level, err := zap.ParseAtomicLevel(strings.ToLower(strings.TrimSpace(s)))
	if err != nil {
		return zap.AtomicLevel{}, fmt.Errorf("invalid log level %q: %w", s, err)
	}
	return level, nil
}
