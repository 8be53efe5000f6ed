// Package config loads and validates crawler configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/JakeFAU/vacancy-crawler/internal/crawler"
	"github.com/JakeFAU/vacancy-crawler/internal/logging"
	"github.com/JakeFAU/vacancy-crawler/internal/output"
)

// EnvPrefix is prepended to environment overrides, e.g. VACANCY_CRAWLER_CONCURRENCY.
const EnvPrefix = "VACANCY"

// DefaultTechnologies is the vocabulary used when none is configured.
var DefaultTechnologies = []string{
	"Python", "Django", "Flask", "FastAPI", "SQL", "PostgreSQL", "Docker", "AWS",
	"Git", "REST", "Linux", "Redis", "JavaScript", "React", "Go", "Rust",
}

// Config captures all configuration knobs loaded via Viper.
type Config struct {
	Crawler      crawler.Config  `mapstructure:"crawler"`
	Schema       crawler.Schema  `mapstructure:"schema"`
	Technologies []string        `mapstructure:"technologies"`
	Output       OutputConfig    `mapstructure:"output"`
	Database     DatabaseConfig  `mapstructure:"database"`
	Publisher    PublisherConfig `mapstructure:"publisher"`
	Metrics      MetricsConfig   `mapstructure:"metrics"`
	Logging      logging.Config  `mapstructure:"logging"`
}

// OutputConfig selects where the artifact goes and how it is encoded.
type OutputConfig struct {
	Provider  string `mapstructure:"provider"`
	BaseDir   string `mapstructure:"base_dir"`
	Path      string `mapstructure:"path"`
	Format    string `mapstructure:"format"`
	GCSBucket string `mapstructure:"gcs_bucket"`
	GCSPrefix string `mapstructure:"gcs_prefix"`
}

// DatabaseConfig controls optional vacancy persistence.
type DatabaseConfig struct {
	Provider        string        `mapstructure:"provider"`
	DSN             string        `mapstructure:"dsn"`
	Table           string        `mapstructure:"table"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
	AutoMigrate     bool          `mapstructure:"auto_migrate"`
}

// PublisherConfig holds metadata for run-completed notifications.
type PublisherConfig struct {
	Provider  string `mapstructure:"provider"`
	ProjectID string `mapstructure:"project_id"`
	TopicID   string `mapstructure:"topic_id"`
	Event     string `mapstructure:"event"`
}

// MetricsConfig toggles the ops HTTP server. An empty Addr disables it.
type MetricsConfig struct {
	Addr string `mapstructure:"addr"`
}

// setDefaults registers every default on v.
func setDefaults(v *viper.Viper) {
	v.SetDefault("crawler.base_url", "https://djinni.co")
	v.SetDefault("crawler.list_url", "https://djinni.co/jobs/?primary_keyword=Python")
	v.SetDefault("crawler.page_param", "page")
	v.SetDefault("crawler.page_delay", time.Second)
	v.SetDefault("crawler.concurrency", 8)
	v.SetDefault("crawler.request_timeout", 15*time.Second)
	v.SetDefault("crawler.user_agent", "vacancy-crawler/1.0")
	v.SetDefault("crawler.insecure_skip_verify", true)
	v.SetDefault("crawler.detail_rps", 0)
	v.SetDefault("crawler.max_retries", 0)

	schema := crawler.DefaultSchema()
	v.SetDefault("schema.listing_item", schema.ListingItem)
	v.SetDefault("schema.title", schema.Title)
	v.SetDefault("schema.company", schema.Company)
	v.SetDefault("schema.detail_link", schema.DetailLink)
	v.SetDefault("schema.description", schema.Description)
	v.SetDefault("schema.pagination", schema.Pagination)
	v.SetDefault("schema.pagination_item", schema.PaginationItem)

	v.SetDefault("technologies", DefaultTechnologies)

	v.SetDefault("output.provider", "local")
	v.SetDefault("output.base_dir", ".")
	v.SetDefault("output.path", "vacancies.csv")
	v.SetDefault("output.format", "csv")
	v.SetDefault("output.gcs_bucket", "")
	v.SetDefault("output.gcs_prefix", "")

	v.SetDefault("database.provider", "noop")
	v.SetDefault("database.dsn", "")
	v.SetDefault("database.table", "vacancies")
	v.SetDefault("database.auto_migrate", false)

	v.SetDefault("publisher.provider", "noop")
	v.SetDefault("publisher.project_id", "")
	v.SetDefault("publisher.topic_id", "")
	v.SetDefault("publisher.event", "run.completed")

	v.SetDefault("metrics.addr", "")

	v.SetDefault("logging.development", true)
	v.SetDefault("logging.level", "info")
}

// Configure registers defaults and VACANCY_* environment overrides on v.
func Configure(v *viper.Viper) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)
}

// load builds a Config from a fresh Viper. An empty path uses only defaults
// and the environment.
func load(path string) (Config, error) {
	v := viper.New()
	Configure(v)
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}
	return FromViper(v)
}

// FromViper unmarshals and validates the configuration held by v.
func FromViper(v *viper.Viper) (Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.Schema = cfg.Schema.WithDefaults()
	cfg.Technologies = crawler.NormalizeKeywords(cfg.Technologies)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if err := c.Crawler.Validate(); err != nil {
		return err
	}
	if len(c.Technologies) == 0 {
		return fmt.Errorf("technologies must list at least one keyword")
	}
	if _, err := output.ParseFormat(c.Output.Format); err != nil {
		return fmt.Errorf("output.format: %w", err)
	}
	if strings.TrimSpace(c.Output.Path) == "" {
		return fmt.Errorf("output.path must be set")
	}
	switch c.Output.Provider {
	case "local":
		if strings.TrimSpace(c.Output.BaseDir) == "" {
			return fmt.Errorf("output.base_dir must be set for the local provider")
		}
	case "gcs":
		if c.Output.GCSBucket == "" {
			return fmt.Errorf("output.gcs_bucket must be set for the gcs provider")
		}
	case "memory":
	default:
		return fmt.Errorf("unknown output.provider %q", c.Output.Provider)
	}
	switch c.Database.Provider {
	case "noop", "":
	case "postgres":
		if c.Database.DSN == "" {
			return fmt.Errorf("database.dsn must be set for the postgres provider")
		}
	default:
		return fmt.Errorf("unknown database.provider %q", c.Database.Provider)
	}
	switch c.Publisher.Provider {
	case "noop", "", "memory":
	case "pubsub":
		if c.Publisher.ProjectID == "" || c.Publisher.TopicID == "" {
			return fmt.Errorf("publisher.project_id and publisher.topic_id must be set for the pubsub provider")
		}
	default:
		return fmt.Errorf("unknown publisher.provider %q", c.Publisher.Provider)
	}
	return nil
}

// OutputFormat returns the parsed artifact format. Validate guarantees it parses.
func (c Config) OutputFormat() output.Format {
	f, err := output.ParseFormat(c.Output.Format)
	if err != nil {
		return output.FormatCSV
	}
	return f
}
