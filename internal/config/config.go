// Package config assembles and validates the immutable configuration bundle
// a session starts from. Values are layered: flags override AGORA_* env
// vars, which override an optional agora.yaml, which overrides defaults.
package config

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/agoradev/agora/internal/deliberation/consensus"
	"github.com/agoradev/agora/internal/deliberation/memory"
)

// Config is the immutable session configuration bundle. It is fully
// validated before a session starts; a session never re-reads configuration.
type Config struct {
	APIKey    string
	OutputDir string
	LogLevel  string

	AgentCount int
	MaxRounds  int
	Rule       string // unanimity | supermajority:<p> | plurality
	Memory     string // full | recent | decomposed
	Window     int    // recent strategy only
	Seed       uint64
	FixedOrder bool

	Workers      int
	Retries      int
	CallTimeout  time.Duration
	JobTimeout   time.Duration
	BatchTimeout time.Duration

	PreEvaluation  bool
	PostEvaluation bool
}

// SetDefaults registers every configuration default on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("output_dir", "output")
	v.SetDefault("log_level", "INFO")
	v.SetDefault("agents", 5)
	v.SetDefault("max_rounds", 8)
	v.SetDefault("rule", "unanimity")
	v.SetDefault("memory", "full")
	v.SetDefault("window", 3)
	v.SetDefault("seed", 0)
	v.SetDefault("fixed_order", false)
	v.SetDefault("workers", 5)
	v.SetDefault("retries", 0)
	v.SetDefault("call_timeout", 90*time.Second)
	v.SetDefault("job_timeout", 2*time.Minute)
	v.SetDefault("batch_timeout", 10*time.Minute)
	v.SetDefault("pre_evaluation", false)
	v.SetDefault("post_evaluation", false)
}

// Load reads the bundle from v and validates it. Values layer as
// flags > AGORA_* env > config file > defaults.
func Load(v *viper.Viper) (*Config, error) {
	v.SetEnvPrefix("AGORA")
	v.AutomaticEnv()

	if err := readConfigFile(v); err != nil {
		return nil, err
	}

	cfg := &Config{
		APIKey:         firstNonEmpty(v.GetString("api_key"), os.Getenv("OPENROUTER_API_KEY")),
		OutputDir:      v.GetString("output_dir"),
		LogLevel:       v.GetString("log_level"),
		AgentCount:     v.GetInt("agents"),
		MaxRounds:      v.GetInt("max_rounds"),
		Rule:           v.GetString("rule"),
		Memory:         v.GetString("memory"),
		Window:         v.GetInt("window"),
		Seed:           v.GetUint64("seed"),
		FixedOrder:     v.GetBool("fixed_order"),
		Workers:        v.GetInt("workers"),
		Retries:        v.GetInt("retries"),
		CallTimeout:    v.GetDuration("call_timeout"),
		JobTimeout:     v.GetDuration("job_timeout"),
		BatchTimeout:   v.GetDuration("batch_timeout"),
		PreEvaluation:  v.GetBool("pre_evaluation"),
		PostEvaluation: v.GetBool("post_evaluation"),
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// readConfigFile merges the optional config file into v. An explicitly
// configured path must exist; the default search locations are optional.
func readConfigFile(v *viper.Viper) error {
	if path := v.GetString("config"); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("config: reading %s: %w", path, err)
		}
		return nil
	}

	v.SetConfigName("agora")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.config/agora")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("config: reading agora.yaml: %w", err)
		}
	}
	return nil
}

// Validate rejects any bundle a session could not start from.
func (c *Config) Validate() error {
	if c.APIKey == "" {
		return fmt.Errorf("config: API key is required (set --api-key, AGORA_API_KEY or OPENROUTER_API_KEY)")
	}
	if c.AgentCount < 2 {
		return fmt.Errorf("config: agents must be >= 2, got %d", c.AgentCount)
	}
	if c.MaxRounds < 1 {
		return fmt.Errorf("config: max rounds must be >= 1, got %d", c.MaxRounds)
	}
	if _, err := consensus.ParseRule(c.Rule); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	kind, err := memory.ParseKind(c.Memory)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if kind == memory.KindRecent && c.Window < 1 {
		return fmt.Errorf("config: memory window must be >= 1, got %d", c.Window)
	}
	if c.Workers < 1 {
		return fmt.Errorf("config: workers must be >= 1, got %d", c.Workers)
	}
	if c.Retries < 0 {
		return fmt.Errorf("config: retries must be >= 0, got %d", c.Retries)
	}
	for name, d := range map[string]time.Duration{
		"call_timeout":  c.CallTimeout,
		"job_timeout":   c.JobTimeout,
		"batch_timeout": c.BatchTimeout,
	} {
		if d < 0 {
			return fmt.Errorf("config: %s must be >= 0, got %v", name, d)
		}
	}
	return nil
}

// LoadDotEnv loads KEY=VALUE pairs from path into the environment, without
// overriding variables already set. A missing file is not an error.
func LoadDotEnv(path string) error {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("config: opening .env: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, val, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		val = strings.TrimSpace(val)
		if os.Getenv(key) == "" {
			os.Setenv(key, val)
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("config: reading .env: %w", err)
	}
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
