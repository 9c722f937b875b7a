// internal/common/config/config.go
package config

import "fmt"

// Config is the main application configuration struct.
type Config struct {
	App           AppConfig          `mapstructure:"app"`
	Oracle        OracleConfig       `mapstructure:"oracle"`
	Database      DatabaseConfig     `mapstructure:"database"`
	Dataset       DatasetConfig      `mapstructure:"dataset"`
	Analysis      AnalysisConfig     `mapstructure:"analysis"`
	Archive       ArchiveConfig      `mapstructure:"archive"`
	Notifications NotificationConfig `mapstructure:"notifications"`
	Logging       LoggingConfig      `mapstructure:"logging"`
	Metrics       MetricsConfig      `mapstructure:"metrics"`
}

// --- Core App/Infrastructure Config ---
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

// OracleConfig points at the black-box scoring API under audit.
type OracleConfig struct {
	BaseURL  string `mapstructure:"base_url"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	Timeout  int    `mapstructure:"timeout"` // seconds

	// Scoring parameters forwarded verbatim on every call so repeated runs
	// hit the model with identical settings.
	Model            string  `mapstructure:"model"`
	Temperature      float64 `mapstructure:"temperature"`
	TopP             float64 `mapstructure:"top_p"`
	MaxTokens        int     `mapstructure:"max_tokens"`
	PresencePenalty  float64 `mapstructure:"presence_penalty"`
	FrequencyPenalty float64 `mapstructure:"frequency_penalty"`
	Seed             int     `mapstructure:"seed"`

	CacheEnabled bool `mapstructure:"cache_enabled"`
	CacheTTL     int  `mapstructure:"cache_ttl"` // seconds, 0 = no expiry
}

type DatabaseConfig struct {
	Postgres PostgresConfig `mapstructure:"postgres"`
	Redis    RedisConfig    `mapstructure:"redis"`
}

type PostgresConfig struct {
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	Database       string `mapstructure:"database"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	MaxConnections int    `mapstructure:"max_connections"`
	MaxIdle        int    `mapstructure:"max_idle"`
	SSLMode        string `mapstructure:"sslmode"`
}

// GetDSN returns the PostgreSQL connection string
func (p PostgresConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// DatasetConfig selects where applicant profiles come from.
type DatasetConfig struct {
	Source string `mapstructure:"source"` // "csv" or "postgres"
	Path   string `mapstructure:"path"`   // csv file path
	Table  string `mapstructure:"table"`  // postgres table name

	// GroundTruthField names a boolean input column with the known-positive
	// label used by equal opportunity; empty means derive it from the
	// rule-based ground truth.
	GroundTruthField string `mapstructure:"ground_truth_field"`
}

// AnalysisConfig carries the per-engine audit settings.
type AnalysisConfig struct {
	ResponseDir string `mapstructure:"response_dir"`

	Fairness     FairnessConfig     `mapstructure:"fairness"`
	Robustness   RobustnessConfig   `mapstructure:"robustness"`
	Consistency  ConsistencyConfig  `mapstructure:"consistency"`
	Transparency TransparencyConfig `mapstructure:"transparency"`
	Accuracy     AccuracyConfig     `mapstructure:"accuracy"`
}

type FairnessConfig struct {
	ProtectedAttributes []string `mapstructure:"protected_attributes"`
	PositiveClass       string   `mapstructure:"positive_class"`
	SampleSize          int      `mapstructure:"sample_size"`
	Seed                int64    `mapstructure:"seed"`
}

type RobustnessConfig struct {
	NumExamples int   `mapstructure:"num_examples"`
	Seed        int64 `mapstructure:"seed"`
}

type ConsistencyConfig struct {
	NumRepeats   int     `mapstructure:"num_repeats"`
	DelaySeconds float64 `mapstructure:"delay_seconds"`
	SampleSize   int     `mapstructure:"sample_size"`
	Seed         int64   `mapstructure:"seed"`
}

type TransparencyConfig struct {
	SampleSize           int     `mapstructure:"sample_size"`
	SurrogateSamples     int     `mapstructure:"surrogate_samples"`
	PerturbationStrength float64 `mapstructure:"perturbation_strength"`
	Seed                 int64   `mapstructure:"seed"`
}

type AccuracyConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// ArchiveConfig points at the optional Elasticsearch result archive.
type ArchiveConfig struct {
	Enabled   bool     `mapstructure:"enabled"`
	Addresses []string `mapstructure:"addresses"`
	Username  string   `mapstructure:"username"`
	Password  string   `mapstructure:"password"`
	Index     string   `mapstructure:"index"`
}

// NotificationConfig controls optional run-completion notifications.
type NotificationConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Region    string `mapstructure:"region"`
	TopicARN  string `mapstructure:"topic_arn"`
	EmailFrom string `mapstructure:"email_from"`
	EmailTo   string `mapstructure:"email_to"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Port    int  `mapstructure:"port"`
}
