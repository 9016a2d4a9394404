package config

type Config struct {
	Server    ServerConfig    `json:"server"`
	Logging   LoggingConfig   `json:"logging"`
	Store     StoreConfig     `json:"store"`
	Directory DirectoryConfig `json:"directory"`
	Transport TransportConfig `json:"transport"`
	Dispatch  DispatchConfig  `json:"dispatch"`
	Retention RetentionConfig `json:"retention,omitempty"`
}

type ServerConfig struct {
	Addr string `json:"addr,omitempty"` // default ":8080"
}

type LoggingConfig struct {
	Level   string        `json:"level,omitempty"`
	Console bool          `json:"console"`
	File    LogFileConfig `json:"file,omitempty"`
}

type LogFileConfig struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path,omitempty"`
}

// StoreConfig controls the result store backend.
//
// Example:
//
//	"store": { "driver": "sqlite", "path": "./data/results.db" }
type StoreConfig struct {
	Driver      string `json:"driver,omitempty"` // "sqlite" (default) or "file"
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // Go duration string (sqlite)
}

type DirectoryConfig struct {
	Path string `json:"path"` // contact book JSON file
}

// TransportConfig selects the SMS carrier.
//
// Twilio credentials are read from the environment (ACCOUNT_SID,
// AUTH_TOKEN), not from this file. With driver "log" (or missing
// credentials) sends are logged instead of delivered.
type TransportConfig struct {
	Driver     string `json:"driver,omitempty"` // "twilio" or "log"
	FromNumber string `json:"from_number,omitempty"`
	BaseURL    string `json:"base_url,omitempty"`
}

// DispatchConfig controls the fan-out worker pool.
//
// All durations are Go duration strings (e.g. "500ms", "10s").
// These settings are live: editing the config file applies them to
// subsequent dispatches without a restart.
type DispatchConfig struct {
	Workers         int    `json:"workers,omitempty"`          // default 4
	RatePerSec      int    `json:"rate_per_sec,omitempty"`     // default 10
	SendTimeout     string `json:"send_timeout,omitempty"`     // default "15s"
	DefaultLanguage string `json:"default_language,omitempty"` // default "en"
}

// RetentionConfig controls periodic pruning of old results.
// MaxAge zero/omitted disables pruning entirely.
type RetentionConfig struct {
	MaxAge   string `json:"max_age,omitempty"`  // Go duration string, e.g. "2160h" for 90 days
	Schedule string `json:"schedule,omitempty"` // cron spec, default "0 3 * * *"
}
