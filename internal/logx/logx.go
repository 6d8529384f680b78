package logx

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Options controls where log records go.
type Options struct {
	// Dir receives one JSON log file per run. Empty disables the file.
	Dir string
	// Command names the run; it becomes part of the file name.
	Command string
	// Console, when set, also receives human-readable records at Level.
	Console io.Writer
	Level   zapcore.Level
}

var now = time.Now

// New creates a logger that writes JSON records to a timestamped file inside
// opts.Dir and, optionally, a console tee. The returned closer flushes and
// closes the file.
func New(opts Options) (*zap.Logger, io.Closer, error) {
	var (
		cores []zapcore.Core
		file  *os.File
		path  string
	)

	if opts.Dir != "" {
		if err := os.MkdirAll(opts.Dir, 0o755); err != nil {
			return nil, nil, fmt.Errorf("ensure logs directory: %w", err)
		}
		path = filepath.Join(opts.Dir, fileName(opts.Command))
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("open log file: %w", err)
		}
		file = f
		enc := zap.NewProductionEncoderConfig()
		enc.EncodeTime = zapcore.ISO8601TimeEncoder
		cores = append(cores, zapcore.NewCore(zapcore.NewJSONEncoder(enc), zapcore.AddSync(f), zapcore.DebugLevel))
	}

	if opts.Console != nil {
		enc := zap.NewDevelopmentEncoderConfig()
		enc.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05")
		cores = append(cores, zapcore.NewCore(zapcore.NewConsoleEncoder(enc), zapcore.Lock(zapcore.AddSync(opts.Console)), opts.Level))
	}

	if len(cores) == 0 {
		return zap.NewNop(), closerFunc(func() error { return nil }), nil
	}

	logger := zap.New(zapcore.NewTee(cores...))
	if opts.Command != "" {
		logger = logger.With(zap.String("command", opts.Command))
	}
	if path != "" {
		logger.Debug("log file opened", zap.String("path", path))
	}

	return logger, closerFunc(func() error {
		_ = logger.Sync()
		if file != nil {
			return file.Close()
		}
		return nil
	}), nil
}

func fileName(command string) string {
	stamp := now().Format("20060102-150405")
	command = strings.TrimSpace(command)
	if command == "" {
		return stamp + ".log"
	}
	return stamp + "-" + strings.ReplaceAll(command, " ", "-") + ".log"
}

type closerFunc func() error

func (f closerFunc) Close() error { return f() }
