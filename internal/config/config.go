package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all configuration settings
type Config struct {
	// Artifact scoping
	SQLGlob            string   `yaml:"sql_glob" mapstructure:"sql_glob"`
	OpenAPIPath        string   `yaml:"openapi_path" mapstructure:"openapi_path"`
	TerraformPath      string   `yaml:"terraform_path" mapstructure:"terraform_path"`
	CloudFormationGlob string   `yaml:"cloudformation_glob" mapstructure:"cloudformation_glob"`
	ConfigGlobs        []string `yaml:"config_globs" mapstructure:"config_globs"`
	FeatureFlagGlob    string   `yaml:"feature_flag_glob" mapstructure:"feature_flag_glob"`

	// Cost estimation threshold in USD/month
	CostThreshold float64 `yaml:"cost_threshold" mapstructure:"cost_threshold"`

	// Manual merge-gate override; empty means no override
	OverrideReason string `yaml:"override_reason" mapstructure:"override_reason"`

	Fetch       FetchConfig       `yaml:"fetch" mapstructure:"fetch"`
	GitHub      GitHubConfig      `yaml:"github" mapstructure:"github"`
	Correlation CorrelationConfig `yaml:"correlation" mapstructure:"correlation"`
}

// FetchConfig bounds the content-fetch fan-out
type FetchConfig struct {
	Fanout  int           `yaml:"fanout" mapstructure:"fanout"`
	Timeout time.Duration `yaml:"timeout" mapstructure:"timeout"`
}

// GitHubConfig configures the GitHub content fetcher
type GitHubConfig struct {
	Token     string `yaml:"token" mapstructure:"token"`
	RateLimit int    `yaml:"rate_limit" mapstructure:"rate_limit"` // requests per second
}

// CorrelationConfig tunes the correlation engine
type CorrelationConfig struct {
	Thresholds ThresholdConfig           `yaml:"thresholds" mapstructure:"thresholds"`
	Limits     LimitConfig               `yaml:"limits" mapstructure:"limits"`
	Strategies map[string]StrategyConfig `yaml:"strategies" mapstructure:"strategies"`
	Rules      []Rule                    `yaml:"rules" mapstructure:"rules"`
}

// ThresholdConfig holds the soft/hard link score boundaries
type ThresholdConfig struct {
	CorrelateMin float64 `yaml:"correlate_min" mapstructure:"correlate_min"`
	BlockMin     float64 `yaml:"block_min" mapstructure:"block_min"`
}

// LimitConfig caps candidate-pair selection
type LimitConfig struct {
	TopKPerSource    int `yaml:"top_k_per_source" mapstructure:"top_k_per_source"`
	MaxPairsHighCost int `yaml:"max_pairs_high_cost" mapstructure:"max_pairs_high_cost"`
}

// StrategyConfig enables and weights a single correlation strategy
type StrategyConfig struct {
	Enabled *bool   `yaml:"enabled" mapstructure:"enabled"`
	Budget  string  `yaml:"budget" mapstructure:"budget"` // low, medium, high
	Weight  float64 `yaml:"weight" mapstructure:"weight"`
}

// IsEnabled resolves the tri-state enabled flag with a default
func (s StrategyConfig) IsEnabled(def bool) bool {
	if s.Enabled == nil {
		return def
	}
	return *s.Enabled
}

// Rule is a user-defined correlation rule. Source and target are tokens
// resolved against artifact IDs by exact, substring, or glob match.
type Rule struct {
	Type        string `yaml:"type" mapstructure:"type"`
	Source      string `yaml:"source" mapstructure:"source"`
	Target      string `yaml:"target" mapstructure:"target"`
	Reason      string `yaml:"reason" mapstructure:"reason"`
	Description string `yaml:"description" mapstructure:"description"`
}

// Default returns default configuration
func Default() *Config {
	return &Config{
		SQLGlob:         "**/*.sql",
		FeatureFlagGlob: "**/feature-flags.{json,yaml,yml}",
		CostThreshold:   1000,
		Fetch: FetchConfig{
			Fanout:  8,
			Timeout: 30 * time.Second,
		},
		GitHub: GitHubConfig{
			RateLimit: 10,
		},
		Correlation: CorrelationConfig{
			Thresholds: ThresholdConfig{
				CorrelateMin: 0.55,
				BlockMin:     0.80,
			},
			Limits: LimitConfig{
				TopKPerSource:    3,
				MaxPairsHighCost: 100,
			},
			Strategies: map[string]StrategyConfig{},
		},
	}
}

// Load loads configuration from a YAML file, layered over defaults and
// environment variables (prefix DRIFTGATE)
func Load(path string) (*Config, error) {
	loadEnvFiles()

	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix("DRIFTGATE")
	v.AutomaticEnv()

	cfg := Default()
	v.SetDefault("sql_glob", cfg.SQLGlob)
	v.SetDefault("feature_flag_glob", cfg.FeatureFlagGlob)
	v.SetDefault("cost_threshold", cfg.CostThreshold)
	v.SetDefault("fetch.fanout", cfg.Fetch.Fanout)
	v.SetDefault("fetch.timeout", cfg.Fetch.Timeout)
	v.SetDefault("github.rate_limit", cfg.GitHub.RateLimit)
	v.SetDefault("correlation.thresholds.correlate_min", cfg.Correlation.Thresholds.CorrelateMin)
	v.SetDefault("correlation.thresholds.block_min", cfg.Correlation.Thresholds.BlockMin)
	v.SetDefault("correlation.limits.top_k_per_source", cfg.Correlation.Limits.TopKPerSource)
	v.SetDefault("correlation.limits.max_pairs_high_cost", cfg.Correlation.Limits.MaxPairsHighCost)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	// Token resolution chain: config file > env > OS keychain
	if cfg.GitHub.Token == "" {
		cfg.GitHub.Token = os.Getenv("GITHUB_TOKEN")
	}
	if cfg.GitHub.Token == "" {
		if token, err := NewKeyringManager().GetGitHubToken(); err == nil {
			cfg.GitHub.Token = token
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks configuration consistency
func (c *Config) Validate() error {
	t := c.Correlation.Thresholds
	if t.CorrelateMin < 0 || t.CorrelateMin > 1 {
		return fmt.Errorf("correlation.thresholds.correlate_min must be in [0,1], got %v", t.CorrelateMin)
	}
	if t.BlockMin < 0 || t.BlockMin > 1 {
		return fmt.Errorf("correlation.thresholds.block_min must be in [0,1], got %v", t.BlockMin)
	}
	if t.CorrelateMin > t.BlockMin {
		return fmt.Errorf("correlate_min (%v) must not exceed block_min (%v)", t.CorrelateMin, t.BlockMin)
	}
	if c.Fetch.Fanout < 1 {
		return fmt.Errorf("fetch.fanout must be at least 1, got %d", c.Fetch.Fanout)
	}
	for name, s := range c.Correlation.Strategies {
		switch s.Budget {
		case "", "low", "medium", "high":
		default:
			return fmt.Errorf("strategy %s: invalid budget %q", name, s.Budget)
		}
		if s.Weight < 0 {
			return fmt.Errorf("strategy %s: weight must be non-negative", name)
		}
	}
	for i, r := range c.Correlation.Rules {
		if r.Source == "" || r.Target == "" {
			return fmt.Errorf("correlation.rules[%d]: source and target are required", i)
		}
	}
	return nil
}

// loadEnvFiles loads .env files from the working directory if present
func loadEnvFiles() {
	for _, name := range []string{".env.local", ".env"} {
		if _, err := os.Stat(name); err == nil {
			_ = godotenv.Load(name)
		}
	}
}
