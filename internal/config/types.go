package config

// Config is the on-disk shape (JSON or YAML). Every field is optional;
// Default() fills the gaps and environment variables override the file.
type Config struct {
	Dispatch  DispatchConfig  `json:"dispatch"`
	Contacts  ContactsConfig  `json:"contacts"`
	Transport TransportConfig `json:"transport"`
	Journal   JournalConfig   `json:"journal"`
	Logging   LoggingConfig   `json:"logging"`
	Telegram  TelegramConfig  `json:"telegram"`
}

// DispatchConfig holds the run settings handed to the dispatch engine.
//
// PacingDelay is a Go duration string ("2s", "1500ms") or bare milliseconds.
type DispatchConfig struct {
	PacingDelay string `json:"pacing_delay"`
	SourcePath  string `json:"source_path" validate:"required"`
	Headless    bool   `json:"headless"`
	Template    string `json:"template" validate:"required"`
}

// ContactsConfig renames the CSV columns the loader probes.
// Empty values keep the built-in names.
type ContactsConfig struct {
	NameColumn     string   `json:"name_column,omitempty"`
	ScheduleColumn string   `json:"schedule_column,omitempty"`
	PhoneColumns   []string `json:"phone_columns,omitempty" validate:"omitempty,dive,required"`
}

// TransportConfig selects the chat driver.
//
// Driver values:
//   - "gateway": HTTP session gateway (default)
//   - "console": dry run, messages are logged only
type TransportConfig struct {
	Driver  string        `json:"driver" validate:"oneof=gateway console"`
	Gateway GatewayConfig `json:"gateway"`
}

type GatewayConfig struct {
	BaseURL        string `json:"base_url" validate:"omitempty,url"`
	Token          string `json:"token,omitempty"` // do not log
	Session        string `json:"session"`
	PollInterval   string `json:"poll_interval,omitempty"`
	WatchInterval  string `json:"watch_interval,omitempty"`
	RequestTimeout string `json:"request_timeout,omitempty"`
	RatePerSec     int    `json:"rate_per_sec,omitempty" validate:"gte=0"`
}

// JournalConfig controls the optional outcome journal.
//
// Example:
//
//	"journal": { "driver": "sqlite", "path": "./data/journal.db" }
type JournalConfig struct {
	Driver      string `json:"driver" validate:"omitempty,oneof=none file jsonl sqlite sqlite3"`
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"`
}

type LoggingConfig struct {
	Level    string          `json:"level" validate:"omitempty,oneof=trace debug info warn warning error TRACE DEBUG INFO WARN WARNING ERROR"`
	Console  bool            `json:"console"`
	File     LoggingFile     `json:"file"`
	Telegram LoggingTelegram `json:"telegram"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

type LoggingTelegram struct {
	Enabled    bool   `json:"enabled"`
	MinLevel   string `json:"min_level"`
	RatePerSec int    `json:"rate_per_sec" validate:"gte=0"`
}

// TelegramConfig enables the run report (and the optional log sink).
type TelegramConfig struct {
	Token    string `json:"token"` // do not log
	ChatID   int64  `json:"chat_id" validate:"required_with=Token"`
	ThreadID int    `json:"thread_id,omitempty"`
}
