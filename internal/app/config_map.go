package app

import (
	"fmt"
	"strings"
	"time"

	"zapsender/internal/config"
	"zapsender/internal/contacts"
	"zapsender/internal/dispatch"
	"zapsender/internal/journal"
	"zapsender/internal/transport/gateway"
	logx "zapsender/pkg/logx"
)

func mapDispatchConfig(cfg *config.Config) (dispatch.Config, error) {
	delay, err := config.ParseDurationField("dispatch.pacing_delay", cfg.Dispatch.PacingDelay)
	if err != nil {
		return dispatch.Config{}, err
	}
	return dispatch.Config{
		PacingDelay: delay,
		SourcePath:  cfg.Dispatch.SourcePath,
		Headless:    cfg.Dispatch.Headless,
		Template:    cfg.Dispatch.Template,
	}, nil
}

func mapSchema(cfg *config.Config) contacts.Schema {
	return contacts.Schema{
		NameColumn:     strings.TrimSpace(cfg.Contacts.NameColumn),
		ScheduleColumn: strings.TrimSpace(cfg.Contacts.ScheduleColumn),
		PhoneColumns:   cfg.Contacts.PhoneColumns,
	}
}

func mapGatewayConfig(cfg *config.Config) (gateway.Config, error) {
	gc := cfg.Transport.Gateway
	poll, err := config.ParseDurationOrDefault("transport.gateway.poll_interval", gc.PollInterval, 2*time.Second)
	if err != nil {
		return gateway.Config{}, err
	}
	watch, err := config.ParseDurationOrDefault("transport.gateway.watch_interval", gc.WatchInterval, 30*time.Second)
	if err != nil {
		return gateway.Config{}, err
	}
	timeout, err := config.ParseDurationOrDefault("transport.gateway.request_timeout", gc.RequestTimeout, 15*time.Second)
	if err != nil {
		return gateway.Config{}, err
	}
	return gateway.Config{
		BaseURL:        gc.BaseURL,
		Token:          gc.Token,
		Session:        gc.Session,
		Headless:       cfg.Dispatch.Headless,
		PollInterval:   poll,
		WatchInterval:  watch,
		RequestTimeout: timeout,
		RatePerSec:     gc.RatePerSec,
	}, nil
}

func mapJournalConfig(cfg *config.Config) (journal.Config, bool, error) {
	jc := cfg.Journal
	driver := strings.ToLower(strings.TrimSpace(jc.Driver))
	if driver == "" || driver == "none" {
		return journal.Config{}, false, nil
	}
	path := strings.TrimSpace(jc.Path)
	if path == "" {
		return journal.Config{}, false, fmt.Errorf("journal.path is required when journal.driver=%s", driver)
	}
	busy, err := config.ParseDurationOrDefault("journal.busy_timeout", jc.BusyTimeout, time.Second)
	if err != nil {
		return journal.Config{}, false, err
	}
	return journal.Config{Driver: driver, Path: path, BusyTimeout: busy}, true, nil
}

func mapLogConfig(cfg *config.Config) logx.Config {
	return logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
		Telegram: logx.TelegramConfig{
			Enabled:    cfg.Logging.Telegram.Enabled,
			MinLevel:   cfg.Logging.Telegram.MinLevel,
			RatePerSec: cfg.Logging.Telegram.RatePerSec,
		},
	}
}
