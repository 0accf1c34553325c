package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"

	"zapsender/internal/message"
)

const (
	DefaultPacingDelay = 2000 * time.Millisecond
	DefaultSourcePath  = "contacts.csv"
	DefaultGatewayURL  = "http://127.0.0.1:3000"
	DefaultSession     = "zap-sender"
)

// LookupFunc reads one environment variable (os.LookupEnv in production).
type LookupFunc func(key string) (string, bool)

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Dispatch: DispatchConfig{
			PacingDelay: DefaultPacingDelay.String(),
			SourcePath:  DefaultSourcePath,
			Headless:    true,
			Template:    message.DefaultTemplate,
		},
		Transport: TransportConfig{
			Driver: "gateway",
			Gateway: GatewayConfig{
				BaseURL: DefaultGatewayURL,
				Session: DefaultSession,
			},
		},
		Logging: LoggingConfig{Level: "info", Console: true},
	}
}

// Load builds the effective config: defaults, then the config file (if path is
// set), then the .env file (if present), then the process environment.
// Variables already in the environment win over .env, matching dotenv.
func Load(path, envFile string, lookup LookupFunc) (*Config, error) {
	cfg := Default()
	if strings.TrimSpace(path) != "" {
		if err := decodeFile(path, cfg); err != nil {
			return nil, fmt.Errorf("config %s: %w", path, err)
		}
	}

	dotenv := map[string]string{}
	if strings.TrimSpace(envFile) != "" {
		m, err := godotenv.Read(envFile)
		switch {
		case err == nil:
			dotenv = m
		case errors.Is(err, fs.ErrNotExist):
		default:
			return nil, fmt.Errorf("env file %s: %w", envFile, err)
		}
	}
	if lookup == nil {
		lookup = os.LookupEnv
	}
	get := func(key string) (string, bool) {
		if v, ok := lookup(key); ok {
			return v, true
		}
		v, ok := dotenv[key]
		return v, ok
	}
	if err := applyEnv(cfg, get); err != nil {
		return nil, err
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config, get LookupFunc) error {
	str := func(key string, dst *string) {
		if v, ok := get(key); ok && v != "" {
			*dst = v
		}
	}

	if v, ok := get("SEND_DELAY_MS"); ok && strings.TrimSpace(v) != "" {
		ms, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil || ms < 0 {
			return fmt.Errorf("SEND_DELAY_MS: invalid milliseconds %q", v)
		}
		cfg.Dispatch.PacingDelay = (time.Duration(ms) * time.Millisecond).String()
	}
	str("CSV_PATH", &cfg.Dispatch.SourcePath)
	if v, ok := get("HEADLESS"); ok {
		cfg.Dispatch.Headless = strings.ToLower(strings.TrimSpace(v)) != "false"
	}
	str("MESSAGE", &cfg.Dispatch.Template)

	str("TRANSPORT", &cfg.Transport.Driver)
	str("GATEWAY_URL", &cfg.Transport.Gateway.BaseURL)
	str("GATEWAY_TOKEN", &cfg.Transport.Gateway.Token)
	str("GATEWAY_SESSION", &cfg.Transport.Gateway.Session)

	str("LOG_LEVEL", &cfg.Logging.Level)
	str("JOURNAL_DRIVER", &cfg.Journal.Driver)
	str("JOURNAL_PATH", &cfg.Journal.Path)

	str("TELEGRAM_TOKEN", &cfg.Telegram.Token)
	if v, ok := get("TELEGRAM_CHAT_ID"); ok && strings.TrimSpace(v) != "" {
		id, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		if err != nil {
			return fmt.Errorf("TELEGRAM_CHAT_ID: %w", err)
		}
		cfg.Telegram.ChatID = id
	}
	return nil
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks struct tags and duration fields.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errors.New("config is nil")
	}
	if err := validate.Struct(cfg); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	durations := []struct{ path, raw string }{
		{"dispatch.pacing_delay", cfg.Dispatch.PacingDelay},
		{"transport.gateway.poll_interval", cfg.Transport.Gateway.PollInterval},
		{"transport.gateway.watch_interval", cfg.Transport.Gateway.WatchInterval},
		{"transport.gateway.request_timeout", cfg.Transport.Gateway.RequestTimeout},
		{"journal.busy_timeout", cfg.Journal.BusyTimeout},
	}
	for _, d := range durations {
		if _, err := ParseDurationField(d.path, d.raw); err != nil {
			return err
		}
	}
	if cfg.Transport.Driver == "gateway" && strings.TrimSpace(cfg.Transport.Gateway.BaseURL) == "" {
		return errors.New("transport.gateway.base_url is required for the gateway driver")
	}
	return nil
}
