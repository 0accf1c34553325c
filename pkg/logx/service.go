package logx

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/rs/zerolog"
)

type Config struct {
	Level    string
	Console  bool
	File     FileConfig
	Telegram TelegramConfig
}

type FileConfig struct {
	Enabled bool
	Path    string // default ./zapsender.log
}

type TelegramConfig struct {
	Enabled    bool
	MinLevel   string // default warn
	RatePerSec int    // default 1
}

// Sender delivers a pre-formatted log line to a remote chat.
// The Telegram notifier implements it.
type Sender interface {
	SendText(ctx context.Context, text string) error
}

// Service owns the sinks behind the root Logger.
type Service struct {
	mu     sync.Mutex
	file   *os.File
	remote *remoteSink
}

// New builds the sinks named by cfg and returns the root Logger.
// With no sink enabled it falls back to the console. sender may be nil, which
// leaves the Telegram sink off.
func New(cfg Config, sender Sender) (*Service, Logger) {
	svc := &Service{}
	var sinks []io.Writer
	if cfg.Console {
		sinks = append(sinks, consoleWriter(os.Stdout))
	}
	if cfg.File.Enabled {
		path := strings.TrimSpace(cfg.File.Path)
		if path == "" {
			path = "./zapsender.log"
		}
		f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "logx: open %s: %v\n", path, err)
		} else {
			svc.file = f
			sinks = append(sinks, zerolog.SyncWriter(f))
		}
	}
	if cfg.Telegram.Enabled && sender != nil {
		svc.remote = newRemoteSink(sender, parseLevel(cfg.Telegram.MinLevel, LevelWarn), cfg.Telegram.RatePerSec)
		sinks = append(sinks, svc.remote)
	}
	if len(sinks) == 0 {
		sinks = append(sinks, consoleWriter(os.Stdout))
	}

	zl := zerolog.New(zerolog.MultiLevelWriter(sinks...)).
		Level(parseLevel(cfg.Level, LevelInfo)).
		With().Timestamp().Logger()
	return svc, Logger{zl: &zl}
}

// Close flushes queued Telegram lines (bounded by ctx) and closes the log file.
func (s *Service) Close(ctx context.Context) error {
	s.mu.Lock()
	f, remote := s.file, s.remote
	s.file, s.remote = nil, nil
	s.mu.Unlock()

	if remote != nil {
		remote.close(ctx)
	}
	if f != nil {
		return f.Close()
	}
	return nil
}
