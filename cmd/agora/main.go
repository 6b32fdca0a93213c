package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/agoradev/agora/internal/config"
)

func main() {
	v := viper.New()
	config.SetDefaults(v)

	root := &cobra.Command{
		Use:   "agora",
		Short: "Multi-round deliberation orchestrator for independent LLM agents",
		Long: "agora runs a configurable set of independent agents through a multi-round,\n" +
			"turn-based deliberation over a fixed set of options, detects group consensus\n" +
			"under a chosen decision rule, and exports the full session for analysis.",
	}

	flags := root.PersistentFlags()
	flags.String("config", "", "Config file (default: ./agora.yaml, ~/.config/agora/agora.yaml)")
	flags.String("api-key", "", "OpenRouter API key (overrides OPENROUTER_API_KEY)")
	flags.String("output-dir", "output", "Directory for session artifacts")
	flags.String("log-level", "INFO", "Log level: DEBUG, INFO, WARN, ERROR")
	flags.Int("agents", 5, "Number of deliberating agents (minimum 2)")
	flags.Int("max-rounds", 8, "Maximum deliberation rounds")
	flags.String("rule", "unanimity", "Decision rule: unanimity, supermajority:<p>, plurality")
	flags.String("memory", "full", "Memory strategy: full, recent, decomposed")
	flags.Int("window", 3, "Rounds retained by the recent memory strategy")
	flags.Uint64("seed", 0, "Speaking-order seed (0 = random)")
	flags.Bool("fixed-order", false, "Keep configuration speaking order every round")
	flags.Int("workers", 5, "Evaluation concurrency cap")
	flags.Int("retries", 0, "Extra attempts per evaluation job")
	flags.Duration("call-timeout", 90*time.Second, "Per agent-invocation timeout (0 = none)")
	flags.Duration("job-timeout", 2*time.Minute, "Per evaluation-job timeout (0 = none)")
	flags.Duration("batch-timeout", 10*time.Minute, "Whole evaluation-phase deadline (0 = none)")
	flags.Bool("pre-evaluation", false, "Rate all options before deliberating")
	flags.Bool("post-evaluation", false, "Rate all options after deliberating")

	for flag, key := range map[string]string{
		"config":          "config",
		"api-key":         "api_key",
		"output-dir":      "output_dir",
		"log-level":       "log_level",
		"agents":          "agents",
		"max-rounds":      "max_rounds",
		"rule":            "rule",
		"memory":          "memory",
		"window":          "window",
		"seed":            "seed",
		"fixed-order":     "fixed_order",
		"workers":         "workers",
		"retries":         "retries",
		"call-timeout":    "call_timeout",
		"job-timeout":     "job_timeout",
		"batch-timeout":   "batch_timeout",
		"pre-evaluation":  "pre_evaluation",
		"post-evaluation": "post_evaluation",
	} {
		v.BindPFlag(key, flags.Lookup(flag))
	}

	root.AddCommand(newDeliberateCmd(v))
	root.AddCommand(newModelsCmd(v))

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
