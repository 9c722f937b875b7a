// internal/common/config/loader.go
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

func Load() (*Config, error) {
	loadEnvFile()

	// Base config
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./configs")
	viper.AddConfigPath("../../configs")
	viper.AddConfigPath(".")

	// Enable ENV override like ORACLE_BASE_URL
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	env := os.Getenv("APP_ENVIRONMENT")
	if env == "" {
		env = "development"
	}

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading base config: %w", err)
		}
	}

	// Environment-specific overlay, ignored when absent
	envConfigFile := fmt.Sprintf("config.%s", env)
	viper.SetConfigName(envConfigFile)
	_ = viper.MergeInConfig()

	expandEnvVars(viper.GetViper())

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyDefaults(&cfg)
	overrideEmptyConfig(&cfg)

	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// loadEnvFile tries the usual .env locations so the auditor works from the
// repo root, cmd/auditor, and test directories alike.
func loadEnvFile() {
	possiblePaths := []string{
		".env",
		"../.env",
		"../../.env",
		"../../../.env",
	}

	if rootDir := findProjectRoot(); rootDir != "" {
		possiblePaths = append(possiblePaths, filepath.Join(rootDir, ".env"))
	}

	for _, path := range possiblePaths {
		if _, err := os.Stat(path); err == nil {
			if err := godotenv.Load(path); err == nil {
				return
			}
		}
	}
}

// findProjectRoot walks up directories looking for go.mod.
func findProjectRoot() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return ""
}

// expandEnvVars resolves ${VAR} placeholders left in yaml values.
func expandEnvVars(v *viper.Viper) {
	for _, key := range v.AllKeys() {
		val := v.Get(key)

		if strVal, ok := val.(string); ok {
			if strings.Contains(strVal, "${") || (strings.HasPrefix(strVal, "$") && len(strVal) > 1) {
				expanded := os.ExpandEnv(strVal)
				if expanded != strVal && expanded != "" {
					v.Set(key, expanded)
				}
			}
		}
	}
}

func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "credit-audit"
	}
	if cfg.App.Environment == "" {
		cfg.App.Environment = "development"
	}

	if cfg.Oracle.Timeout == 0 {
		cfg.Oracle.Timeout = 30
	}
	if cfg.Oracle.Model == "" {
		cfg.Oracle.Model = "gpt-3.5-turbo-0125"
	}
	if cfg.Oracle.Temperature == 0 {
		cfg.Oracle.Temperature = 1
	}
	if cfg.Oracle.TopP == 0 {
		cfg.Oracle.TopP = 1
	}
	if cfg.Oracle.MaxTokens == 0 {
		cfg.Oracle.MaxTokens = 512
	}

	if cfg.Dataset.Source == "" {
		cfg.Dataset.Source = "csv"
	}
	if cfg.Dataset.Path == "" {
		cfg.Dataset.Path = "data/testdata.csv"
	}

	if cfg.Analysis.ResponseDir == "" {
		cfg.Analysis.ResponseDir = "results/responses"
	}

	if len(cfg.Analysis.Fairness.ProtectedAttributes) == 0 {
		cfg.Analysis.Fairness.ProtectedAttributes = []string{
			"gender", "ethnicity", "nationality", "disability_status", "marital_status",
		}
	}
	if cfg.Analysis.Fairness.PositiveClass == "" {
		cfg.Analysis.Fairness.PositiveClass = "good"
	}
	if cfg.Analysis.Fairness.SampleSize == 0 {
		cfg.Analysis.Fairness.SampleSize = 20
	}
	if cfg.Analysis.Fairness.Seed == 0 {
		cfg.Analysis.Fairness.Seed = 42
	}

	if cfg.Analysis.Robustness.NumExamples == 0 {
		cfg.Analysis.Robustness.NumExamples = 50
	}
	if cfg.Analysis.Robustness.Seed == 0 {
		cfg.Analysis.Robustness.Seed = 42
	}

	if cfg.Analysis.Consistency.NumRepeats == 0 {
		cfg.Analysis.Consistency.NumRepeats = 3
	}
	if cfg.Analysis.Consistency.DelaySeconds == 0 {
		cfg.Analysis.Consistency.DelaySeconds = 1.0
	}
	if cfg.Analysis.Consistency.SampleSize == 0 {
		cfg.Analysis.Consistency.SampleSize = 50
	}
	if cfg.Analysis.Consistency.Seed == 0 {
		cfg.Analysis.Consistency.Seed = 42
	}

	if cfg.Analysis.Transparency.SampleSize == 0 {
		cfg.Analysis.Transparency.SampleSize = 50
	}
	if cfg.Analysis.Transparency.SurrogateSamples == 0 {
		cfg.Analysis.Transparency.SurrogateSamples = 200
	}
	if cfg.Analysis.Transparency.PerturbationStrength == 0 {
		cfg.Analysis.Transparency.PerturbationStrength = 0.2
	}
	if cfg.Analysis.Transparency.Seed == 0 {
		cfg.Analysis.Transparency.Seed = 42
	}

	if cfg.Archive.Index == "" {
		cfg.Archive.Index = "credit-audit-results"
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}

	if cfg.Metrics.Port == 0 {
		cfg.Metrics.Port = 9090
	}
}

// overrideEmptyConfig keeps credentials out of yaml: anything still empty
// after expansion falls back to well-known environment variables.
func overrideEmptyConfig(cfg *Config) {
	if cfg.Oracle.BaseURL == "" {
		if val := os.Getenv("ORACLE_BASE_URL"); val != "" {
			cfg.Oracle.BaseURL = val
		}
	}
	if cfg.Oracle.Username == "" {
		if val := os.Getenv("ORACLE_USERNAME"); val != "" {
			cfg.Oracle.Username = val
		}
	}
	if cfg.Oracle.Password == "" {
		if val := os.Getenv("ORACLE_PASSWORD"); val != "" {
			cfg.Oracle.Password = val
		}
	}

	if cfg.Database.Postgres.User == "" {
		if val := os.Getenv("DB_USER"); val != "" {
			cfg.Database.Postgres.User = val
		}
	}
	if cfg.Database.Postgres.Password == "" {
		if val := os.Getenv("DB_PASSWORD"); val != "" {
			cfg.Database.Postgres.Password = val
		}
	}
}

func validateConfig(cfg *Config) error {
	if cfg.Oracle.BaseURL == "" {
		return fmt.Errorf("oracle.base_url is required")
	}
	if cfg.Dataset.Source != "csv" && cfg.Dataset.Source != "postgres" {
		return fmt.Errorf("dataset.source must be csv or postgres, got %q", cfg.Dataset.Source)
	}
	if cfg.Dataset.Source == "postgres" && cfg.Dataset.Table == "" {
		return fmt.Errorf("dataset.table is required for the postgres source")
	}
	if cfg.Analysis.Consistency.NumRepeats < 2 {
		return fmt.Errorf("analysis.consistency.num_repeats must be at least 2")
	}
	return nil
}
