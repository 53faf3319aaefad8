package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/BurntSushi/toml"
)

const (
	DefaultConfigPath     = "config.toml"
	DefaultHTTPAddr       = ":8080"
	DefaultTimeoutSeconds = 30
	DefaultQueueSize      = 1000
	DefaultImageDir       = "chat_images"
	DefaultFileDir        = "chat_files"
	DefaultContactPath    = "contact.json"
	DefaultGroupPath      = "group.json"
)

type Config struct {
	Log     LogConfig     `toml:"log"`
	Server  ServerConfig  `toml:"server"`
	Gateway GatewayConfig `toml:"gateway"`
	Sync    SyncConfig    `toml:"sync"`
	Notify  NotifyConfig  `toml:"notify"`
	Idiom   IdiomConfig   `toml:"idiom"`
}

type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

type ServerConfig struct {
	Addr string `toml:"addr"`
}

// GatewayConfig describes the upstream message gateway REST endpoint.
type GatewayConfig struct {
	BaseURL           string  `toml:"base_url"`
	AccountID         string  `toml:"account_id"`
	TimeoutSeconds    int     `toml:"timeout_seconds"`
	RequestsPerSecond float64 `toml:"requests_per_second"`
}

// SyncConfig controls the ingestion pipeline.
type SyncConfig struct {
	QueueSize   int    `toml:"queue_size"`
	ImageDir    string `toml:"image_dir"`
	FileDir     string `toml:"file_dir"`
	ContactPath string `toml:"contact_path"`
	GroupPath   string `toml:"group_path"`
}

type NotifyConfig struct {
	NtfyURL string `toml:"ntfy_url"`
}

// IdiomConfig controls the idiom-game side task.
type IdiomConfig struct {
	Enable      bool     `toml:"enable"`
	WatchIDs    []string `toml:"watch_ids"`
	ImageDir    string   `toml:"image_dir"`
	TextWindow  []string `toml:"text_window"`
	ImageWindow []string `toml:"image_window"`
	Weekdays    []int    `toml:"weekdays"`
}

func Load(path string) (Config, error) {
	cfg := Config{
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Server: ServerConfig{
			Addr: DefaultHTTPAddr,
		},
		Gateway: GatewayConfig{
			TimeoutSeconds: DefaultTimeoutSeconds,
		},
		Sync: SyncConfig{
			QueueSize:   DefaultQueueSize,
			ImageDir:    DefaultImageDir,
			FileDir:     DefaultFileDir,
			ContactPath: DefaultContactPath,
			GroupPath:   DefaultGroupPath,
		},
	}

	if path == "" {
		path = DefaultConfigPath
	}

	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, err
	}

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return cfg, err
	}

	return cfg, nil
}

// Validate checks the fields the serve command cannot run without.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Gateway.BaseURL) == "" {
		return fmt.Errorf("gateway.base_url is required")
	}
	if strings.TrimSpace(c.Gateway.AccountID) == "" {
		return fmt.Errorf("gateway.account_id is required")
	}
	if c.Sync.QueueSize <= 0 {
		return fmt.Errorf("sync.queue_size must be positive")
	}
	return nil
}
