package config

import (
	"fmt"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config is the root application configuration.
type Config struct {
	Server Server `yaml:"server"`
	Store  Store  `yaml:"store"`
	Audit  Audit  `yaml:"audit"`
	Search Search `yaml:"search"`
	Leads  Leads  `yaml:"leads"`
	Log    Log    `yaml:"log"`
}

// Server holds HTTP adapter settings.
type Server struct {
	ListenAddr      string        `yaml:"listen_addr"      env:"SITESCORE_LISTEN_ADDR"      env-default:":8080"`
	BaseURL         string        `yaml:"base_url"         env:"SITESCORE_BASE_URL"         env-default:"http://localhost:8080"`
	DownloadSecret  string        `yaml:"download_secret"  env:"SITESCORE_DOWNLOAD_SECRET"  env-default:""`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SITESCORE_SHUTDOWN_TIMEOUT" env-default:"10s"`
}

// Store holds persistence settings.
type Store struct {
	DBPath    string `yaml:"db_path"    env:"SITESCORE_DB_PATH"    env-default:".sitescore/sitescore.db"`
	ReportDir string `yaml:"report_dir" env:"SITESCORE_REPORT_DIR" env-default:".sitescore/reports"`
}

// Audit holds orchestration limits.
type Audit struct {
	MaxConcurrent int           `yaml:"max_concurrent" env:"MAX_CONCURRENT_AUDITS"    env-default:"10"`
	Timeout       time.Duration `yaml:"timeout"        env:"AUDIT_TIMEOUT"            env-default:"300s"`
	Retention     time.Duration `yaml:"retention"      env:"SITESCORE_RETENTION"      env-default:"72h"`
	SweepInterval time.Duration `yaml:"sweep_interval" env:"SITESCORE_SWEEP_INTERVAL" env-default:"1h"`
	TiersPath     string        `yaml:"tiers_path"     env:"SITESCORE_TIERS_PATH"     env-default:""`
}

// Search holds SERP discovery settings. The URL template must contain %s for
// the plus-joined keyword.
type Search struct {
	URLTemplate string `yaml:"url_template" env:"SITESCORE_SEARCH_URL" env-default:"https://html.duckduckgo.com/html/?q=%s"`
}

// Leads holds lead-capture webhook settings. An empty URL disables delivery.
type Leads struct {
	WebhookURL string        `yaml:"webhook_url" env:"GHL_WEBHOOK_URL" env-default:""`
	Timeout    time.Duration `yaml:"timeout"     env:"SITESCORE_LEAD_TIMEOUT" env-default:"10s"`
}

// Log holds logging settings.
type Log struct {
	Level  string `yaml:"level"  env:"LOG_LEVEL"  env-default:"info"`
	Format string `yaml:"format" env:"LOG_FORMAT" env-default:"text"`
}

// Load reads configuration from a YAML file and environment variables.
// Priority: ENV > YAML > defaults. The file path comes from CONFIG_PATH
// (fallback "./config.yaml"); a missing default file is not an error.
func Load() (*Config, error) {
	var cfg Config

	path := os.Getenv("CONFIG_PATH")
	explicitPath := path != ""
	if !explicitPath {
		path = "./config.yaml"
	}

	if _, err := os.Stat(path); err == nil {
		if err := cleanenv.ReadConfig(path, &cfg); err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
	} else if explicitPath {
		return nil, fmt.Errorf("config: file %s: %w", path, err)
	} else {
		if err := cleanenv.ReadEnv(&cfg); err != nil {
			return nil, fmt.Errorf("config: read env: %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: validate: %w", err)
	}
	return &cfg, nil
}

// Validate enforces the limits the orchestrator depends on.
func (c *Config) Validate() error {
	if c.Audit.MaxConcurrent < 1 {
		return fmt.Errorf("audit.max_concurrent must be >= 1 (got %d)", c.Audit.MaxConcurrent)
	}
	if c.Audit.Timeout <= 0 {
		return fmt.Errorf("audit.timeout must be positive (got %v)", c.Audit.Timeout)
	}
	if c.Audit.Retention <= 0 {
		return fmt.Errorf("audit.retention must be positive (got %v)", c.Audit.Retention)
	}
	if c.Audit.SweepInterval <= 0 {
		return fmt.Errorf("audit.sweep_interval must be positive (got %v)", c.Audit.SweepInterval)
	}
	return nil
}
