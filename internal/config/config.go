// Package config loads and validates service configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	DB       DBConfig       `mapstructure:"db"`
	Auth     AuthConfig     `mapstructure:"auth"`
	SMTP     SMTPConfig     `mapstructure:"smtp"`
	Crawler  CrawlerConfig  `mapstructure:"crawler"`
	Schedule ScheduleConfig `mapstructure:"schedule"`
	Backup   BackupConfig   `mapstructure:"backup"`
	Storage  StorageConfig  `mapstructure:"storage"`
	PubSub   PubSubConfig   `mapstructure:"pubsub"`
	Sites    []SiteConfig   `mapstructure:"sites"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// LoggingConfig selects the zap logger flavor and minimum level.
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	Level       string `mapstructure:"level"`
}

// DBConfig controls access to the relational database.
type DBConfig struct {
	DSN      string `mapstructure:"dsn"`
	MaxConns int32  `mapstructure:"max_conns"`
	MinConns int32  `mapstructure:"min_conns"`
}

// AuthConfig defines the email-code authentication flow.
type AuthConfig struct {
	Secret                 string `mapstructure:"secret"`
	AllowedEmailDomain     string `mapstructure:"allowed_email_domain"`
	CodeExpiryMinutes      int    `mapstructure:"code_expiry_minutes"`
	SessionValidityMinutes int    `mapstructure:"session_validity_minutes"`
	SecureCookies          bool   `mapstructure:"secure_cookies"`
	// APIKey grants service-to-service access via the X-API-Key header when
	// non-empty.
	APIKey string `mapstructure:"api_key"`
}

// SMTPConfig holds the mail relay used for authentication codes. When User is
// empty, codes are logged instead of mailed.
type SMTPConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	From     string `mapstructure:"from"`
}

// CrawlerConfig governs crawl run orchestration.
type CrawlerConfig struct {
	// Mode selects between in-process scrapers ("builtin") and one external
	// command per site ("command").
	Mode           string   `mapstructure:"mode"`
	Command        []string `mapstructure:"command"`
	TimeoutMinutes int      `mapstructure:"timeout_minutes"`
	UserAgent      string   `mapstructure:"user_agent"`
	DelaySeconds   int      `mapstructure:"delay_seconds"`
}

// ScheduleConfig holds the two fixed cron triggers.
type ScheduleConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	CrawlSpec  string `mapstructure:"crawl_spec"`
	BackupSpec string `mapstructure:"backup_spec"`
}

// BackupConfig configures the nightly database backup run.
type BackupConfig struct {
	Command        []string `mapstructure:"command"`
	TimeoutMinutes int      `mapstructure:"timeout_minutes"`
}

// StorageConfig selects the document blob store backend.
type StorageConfig struct {
	Provider  string `mapstructure:"provider"`
	LocalDir  string `mapstructure:"local_dir"`
	GCSBucket string `mapstructure:"gcs_bucket"`
	Prefix    string `mapstructure:"prefix"`
}

// PubSubConfig holds metadata for run-completion notifications.
type PubSubConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	ProjectID string `mapstructure:"project_id"`
	TopicName string `mapstructure:"topic_name"`
}

// SiteConfig describes one job portal scraped by a builtin crawler.
type SiteConfig struct {
	Name       string        `mapstructure:"name"`
	Label      string        `mapstructure:"label"`
	BaseURL    string        `mapstructure:"base_url"`
	SearchPath string        `mapstructure:"search_path"`
	Render     bool          `mapstructure:"render"`
	Queries    []QueryConfig `mapstructure:"queries"`
	Selectors  SiteSelectors `mapstructure:"selectors"`
}

// QueryConfig is one search query plus the keywords a listing must match.
type QueryConfig struct {
	Query    string   `mapstructure:"query" json:"query"`
	Keywords []string `mapstructure:"keywords" json:"keywords"`
}

// SiteSelectors holds the CSS selectors used for listing extraction.
type SiteSelectors struct {
	Item     string `mapstructure:"item"`
	Title    string `mapstructure:"title"`
	Link     string `mapstructure:"link"`
	Company  string `mapstructure:"company"`
	Location string `mapstructure:"location"`
	Posted   string `mapstructure:"posted"`
}

// Load builds a Config from the given file and the environment. Environment
// variables use the CRAWLER_ prefix with dots replaced by underscores.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("CRAWLER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("logging.development", true)
	v.SetDefault("logging.level", "info")
	v.SetDefault("db.max_conns", 8)
	v.SetDefault("db.min_conns", 1)
	v.SetDefault("auth.code_expiry_minutes", 10)
	v.SetDefault("auth.session_validity_minutes", 60)
	v.SetDefault("auth.secure_cookies", false)
	v.SetDefault("smtp.port", 587)
	v.SetDefault("crawler.mode", "builtin")
	v.SetDefault("crawler.timeout_minutes", 60)
	v.SetDefault("crawler.user_agent", "freelance-crawler/1.0")
	v.SetDefault("crawler.delay_seconds", 1)
	// Crawl every three hours at minute seven; backup daily at 02:00.
	v.SetDefault("schedule.enabled", true)
	v.SetDefault("schedule.crawl_spec", "7 0,3,6,9,12,15,18,21 * * *")
	v.SetDefault("schedule.backup_spec", "0 2 * * *")
	v.SetDefault("backup.timeout_minutes", 10)
	v.SetDefault("storage.provider", "local")
	v.SetDefault("storage.local_dir", "data/documents")
	v.SetDefault("storage.prefix", "documents")
	v.SetDefault("pubsub.enabled", false)
}

// Validate enforces required values and rejects unusable combinations.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Crawler.TimeoutMinutes <= 0 {
		return fmt.Errorf("crawler.timeout_minutes must be > 0")
	}
	switch c.Crawler.Mode {
	case "builtin", "command":
	default:
		return fmt.Errorf("crawler.mode must be builtin or command, got %q", c.Crawler.Mode)
	}
	if c.Crawler.Mode == "command" && len(c.Crawler.Command) == 0 {
		return fmt.Errorf("crawler.command is required in command mode")
	}
	if c.Auth.CodeExpiryMinutes <= 0 {
		return fmt.Errorf("auth.code_expiry_minutes must be > 0")
	}
	if c.Auth.SessionValidityMinutes <= 0 {
		return fmt.Errorf("auth.session_validity_minutes must be > 0")
	}
	switch c.Storage.Provider {
	case "local", "gcs", "memory":
	default:
		return fmt.Errorf("storage.provider must be local, gcs, or memory, got %q", c.Storage.Provider)
	}
	if c.Storage.Provider == "gcs" && c.Storage.GCSBucket == "" {
		return fmt.Errorf("storage.gcs_bucket is required for the gcs provider")
	}
	if c.PubSub.Enabled && (c.PubSub.ProjectID == "" || c.PubSub.TopicName == "") {
		return fmt.Errorf("pubsub.project_id and pubsub.topic_name are required when pubsub is enabled")
	}
	for i, site := range c.Sites {
		if site.Name == "" {
			return fmt.Errorf("sites[%d].name is required", i)
		}
		if c.Crawler.Mode == "builtin" && site.BaseURL == "" {
			return fmt.Errorf("sites[%d].base_url is required in builtin mode", i)
		}
	}
	return nil
}

// RunBudget returns the wall-clock limit for one crawl run.
func (c Config) RunBudget() time.Duration {
	return time.Duration(c.Crawler.TimeoutMinutes) * time.Minute
}

// BackupBudget returns the wall-clock limit for one backup run.
func (c Config) BackupBudget() time.Duration {
	return time.Duration(c.Backup.TimeoutMinutes) * time.Minute
}

// SiteLabels maps site names to display labels for progress reporting.
func (c Config) SiteLabels() map[string]string {
	labels := make(map[string]string, len(c.Sites))
	for _, site := range c.Sites {
		if site.Label != "" {
			labels[site.Name] = site.Label
		}
	}
	return labels
}
