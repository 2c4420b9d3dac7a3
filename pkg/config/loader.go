package config

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Loop defaults.
const (
	DefaultMaxTurns        = 20
	DefaultMaxSummaryBytes = 4000
	DefaultTaskTimeout     = 10 * time.Minute
	DefaultResultBuffer    = 64
)

// Verification defaults.
const (
	DefaultMaxIterations       = 5
	DefaultConfidenceThreshold = 0.85
	DefaultVerifyTimeout       = 300 * time.Second
)

// Config is the on-disk configuration for the orchestration core.
type Config struct {
	Providers   []ProviderConfig  `yaml:"providers"`
	SubAgent    SubAgentConfig    `yaml:"sub_agent"`
	Verify      VerifyConfig      `yaml:"verify"`
	Persistence PersistenceConfig `yaml:"persistence"`
	Metrics     MetricsConfig     `yaml:"metrics"`
}

// SubAgentConfig tunes the execution loop and scheduler.
type SubAgentConfig struct {
	MaxTurns        int           `yaml:"max_turns"`
	MaxSummaryBytes int           `yaml:"max_summary_bytes"`
	TaskTimeout     time.Duration `yaml:"task_timeout"`
	ResultBuffer    int           `yaml:"result_buffer"`
}

// VerifyConfig tunes the verification loop.
type VerifyConfig struct {
	MaxIterations       int           `yaml:"max_iterations"`
	ConfidenceThreshold float64       `yaml:"confidence_threshold"`
	Timeout             time.Duration `yaml:"timeout"`
}

// PersistenceConfig enables the optional SQLite session store.
type PersistenceConfig struct {
	Path string `yaml:"path"`
}

// MetricsConfig points at a Prometheus server for usage queries.
type MetricsConfig struct {
	PrometheusURL string `yaml:"prometheus_url"`
}

var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

// LoadDotEnv loads .env files into the process environment. Missing files are ignored.
func LoadDotEnv(files ...string) {
	_ = godotenv.Load(files...)
}

// LoadConfig reads a YAML config with ${ENV} substitution, then applies defaults
// and validates. An empty path yields the built-in defaults.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		cfg := &Config{}
		applyDefaults(cfg)
		return cfg, validateConfig(cfg)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return ParseConfig(data)
}

// ParseConfig decodes YAML config bytes.
func ParseConfig(data []byte) (*Config, error) {
	expanded := envVarRegex.ReplaceAllStringFunc(string(data), func(match string) string {
		if value := os.Getenv(match[2 : len(match)-1]); value != "" {
			return value
		}
		return match
	})

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config YAML: %w", err)
	}

	applyDefaults(&cfg)

	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if len(cfg.Providers) == 0 {
		cfg.Providers = DefaultProviders()
	}
	for i := range cfg.Providers {
		if cfg.Providers[i].MaxConcurrent == 0 {
			cfg.Providers[i].MaxConcurrent = 1
		}
		if cfg.Providers[i].Backend == "" {
			cfg.Providers[i].Backend = BackendOpenAI
		}
	}

	if cfg.SubAgent.MaxTurns == 0 {
		cfg.SubAgent.MaxTurns = DefaultMaxTurns
	}
	if cfg.SubAgent.MaxSummaryBytes == 0 {
		cfg.SubAgent.MaxSummaryBytes = DefaultMaxSummaryBytes
	}
	if cfg.SubAgent.TaskTimeout == 0 {
		cfg.SubAgent.TaskTimeout = DefaultTaskTimeout
	}
	if cfg.SubAgent.ResultBuffer == 0 {
		cfg.SubAgent.ResultBuffer = DefaultResultBuffer
	}

	if cfg.Verify.MaxIterations == 0 {
		cfg.Verify.MaxIterations = DefaultMaxIterations
	}
	if cfg.Verify.ConfidenceThreshold == 0 {
		cfg.Verify.ConfidenceThreshold = DefaultConfidenceThreshold
	}
	if cfg.Verify.Timeout == 0 {
		cfg.Verify.Timeout = DefaultVerifyTimeout
	}
}

func validateConfig(cfg *Config) error {
	if len(cfg.Providers) == 0 {
		return ErrNoProvider
	}
	seen := make(map[string]bool, len(cfg.Providers))
	for i := range cfg.Providers {
		p := &cfg.Providers[i]
		if err := p.Validate(); err != nil {
			return err
		}
		if seen[p.Name] {
			return fmt.Errorf("duplicate provider name %q", p.Name)
		}
		seen[p.Name] = true
	}
	if cfg.SubAgent.MaxTurns < 1 {
		return fmt.Errorf("sub_agent.max_turns must be at least 1")
	}
	if cfg.Verify.MaxIterations < 1 {
		return fmt.Errorf("verify.max_iterations must be at least 1")
	}
	if cfg.Verify.ConfidenceThreshold < 0 || cfg.Verify.ConfidenceThreshold > 1 {
		return fmt.Errorf("verify.confidence_threshold must be within [0,1]")
	}
	return nil
}
