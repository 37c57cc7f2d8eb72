package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

var validate = validator.New()

// Config is the full runtime configuration for the watcher.
type Config struct {
	Remote struct {
		RPCURL     string        `yaml:"rpc_url" validate:"required,url"`
		WSURL      string        `yaml:"ws_url" validate:"omitempty,uri"`
		Timeout    time.Duration `yaml:"timeout" default:"30s"`
		MaxRetries int           `yaml:"max_retries" default:"3" validate:"gte=0,lte=10"`
		RetryDelay time.Duration `yaml:"retry_delay" default:"1s"`
	} `yaml:"remote"`

	Monitoring struct {
		PollInterval      time.Duration `yaml:"poll_interval" default:"30s"`
		FetchLimit        int           `yaml:"fetch_limit" default:"20" validate:"gt=0,lte=1000"`
		ForceLimit        int           `yaml:"force_limit" default:"50" validate:"gt=0,lte=1000"`
		MaxConcurrent     int           `yaml:"max_concurrent" default:"16" validate:"gt=0,lte=256"`
		BufferSize        int           `yaml:"buffer_size" default:"1024" validate:"gt=0"`
		WatermarkStrategy string        `yaml:"watermark_strategy" default:"poll-time" validate:"oneof=poll-time max-event"`
		MaxHistoryRecords int           `yaml:"max_history_records" default:"1000" validate:"gt=0"`
		CleanupInterval   time.Duration `yaml:"cleanup_interval" default:"1h"`
		CleanupMaxAge     time.Duration `yaml:"cleanup_max_age" default:"168h"`
	} `yaml:"monitoring"`

	Addresses []WatchedAddress `yaml:"addresses" validate:"dive"`

	Alerts struct {
		LargeTransferThreshold uint64            `yaml:"large_transfer_threshold"`
		LowBalanceThresholds   map[string]uint64 `yaml:"low_balance_thresholds"`
		Cooldown               time.Duration     `yaml:"cooldown" default:"5m"`
		FrequencyBound         int               `yaml:"frequency_bound" default:"10" validate:"gt=0"`
		FrequencyWindow        time.Duration     `yaml:"frequency_window" default:"1h"`
		HistorySize            int               `yaml:"history_size" default:"256" validate:"gt=0"`
		Sinks                  SinkConfig        `yaml:"sinks"`
	} `yaml:"alerts"`

	Storage struct {
		Backend     string `yaml:"backend" default:"memory" validate:"oneof=memory postgres"`
		PostgresDSN string `yaml:"postgres_dsn"`
		ClickHouse  struct {
			Enabled bool   `yaml:"enabled"`
			DSN     string `yaml:"dsn"`
		} `yaml:"clickhouse"`
	} `yaml:"storage"`

	Metrics struct {
		Enabled    bool   `yaml:"enabled" default:"true"`
		ListenAddr string `yaml:"listen_addr" default:":9091"`
		Path       string `yaml:"path" default:"/metrics"`
	} `yaml:"metrics"`

	Logging struct {
		Level  string `yaml:"level" default:"info" validate:"oneof=trace debug info warn error"`
		Format string `yaml:"format" default:"json" validate:"oneof=json console"`
	} `yaml:"logging"`
}

// WatchedAddress seeds the registry at startup.
type WatchedAddress struct {
	Address string `yaml:"address" validate:"required"`
	Label   string `yaml:"label"`
}

// SinkConfig selects and configures alert delivery channels.
type SinkConfig struct {
	Console struct {
		Enabled bool `yaml:"enabled" default:"true"`
	} `yaml:"console"`
	File struct {
		Enabled bool   `yaml:"enabled"`
		Path    string `yaml:"path"`
	} `yaml:"file"`
	Webhook struct {
		Enabled bool   `yaml:"enabled"`
		URL     string `yaml:"url" validate:"required_if=Enabled true,omitempty,url"`
	} `yaml:"webhook"`
	Email struct {
		Enabled  bool     `yaml:"enabled"`
		Host     string   `yaml:"host" validate:"required_if=Enabled true"`
		Port     int      `yaml:"port" default:"587"`
		Username string   `yaml:"username"`
		Password string   `yaml:"password"`
		From     string   `yaml:"from" validate:"required_if=Enabled true,omitempty,email"`
		To       []string `yaml:"to" validate:"required_if=Enabled true,dive,email"`
	} `yaml:"email"`
}

// Load reads and parses a YAML configuration file, fills defaults and
// validates the result.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(b)
}

// Parse builds a Config from raw YAML bytes.
func Parse(b []byte) (*Config, error) {
	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := defaults.Set(&c); err != nil {
		return nil, fmt.Errorf("apply defaults: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return &c, nil
}

// LoadWithEnv loads config from YAML and overrides secrets and endpoints
// with environment variables.
func LoadWithEnv(path string) (*Config, error) {
	c, err := Load(path)
	if err != nil {
		return nil, err
	}

	if v := os.Getenv("LEDGERWATCH_RPC_URL"); v != "" {
		c.Remote.RPCURL = v
	}
	if v := os.Getenv("LEDGERWATCH_WS_URL"); v != "" {
		c.Remote.WSURL = v
	}
	if v := os.Getenv("LEDGERWATCH_POSTGRES_DSN"); v != "" {
		c.Storage.PostgresDSN = v
	}
	if v := os.Getenv("LEDGERWATCH_CLICKHOUSE_DSN"); v != "" {
		c.Storage.ClickHouse.DSN = v
	}
	if v := os.Getenv("LEDGERWATCH_SMTP_PASSWORD"); v != "" {
		c.Alerts.Sinks.Email.Password = v
	}
	if v := os.Getenv("LEDGERWATCH_ADDRESSES"); v != "" {
		c.Addresses = c.Addresses[:0]
		for _, addr := range strings.Split(v, ",") {
			c.Addresses = append(c.Addresses, WatchedAddress{Address: strings.TrimSpace(addr)})
		}
	}

	return c, nil
}

// Validate checks cross-field constraints the struct tags cannot express.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return err
	}
	if c.Storage.Backend == "postgres" && c.Storage.PostgresDSN == "" {
		return fmt.Errorf("storage.postgres_dsn is required when storage.backend is 'postgres'")
	}
	if c.Storage.ClickHouse.Enabled && c.Storage.ClickHouse.DSN == "" {
		return fmt.Errorf("storage.clickhouse.dsn is required when storage.clickhouse is enabled")
	}
	if c.Alerts.Sinks.File.Enabled && c.Alerts.Sinks.File.Path == "" {
		return fmt.Errorf("alerts.sinks.file.path is required when the file sink is enabled")
	}
	return nil
}
