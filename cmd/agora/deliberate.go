package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/agoradev/agora/internal/agents"
	"github.com/agoradev/agora/internal/config"
	"github.com/agoradev/agora/internal/deliberation"
	"github.com/agoradev/agora/internal/deliberation/consensus"
	"github.com/agoradev/agora/internal/deliberation/evaluation"
	"github.com/agoradev/agora/internal/deliberation/memory"
	"github.com/agoradev/agora/internal/logging"
	"github.com/agoradev/agora/internal/models"
	"github.com/agoradev/agora/internal/openrouter"
	"github.com/agoradev/agora/internal/output"
	"github.com/agoradev/agora/internal/report"
)

var agentNames = []string{"Alice", "Bob", "Carol", "Dave", "Eve", "Frank", "Grace", "Heidi", "Ivan", "Judy"}

var personas = []string{
	"You weigh evidence carefully and change your mind when the arguments warrant it.",
	"You are pragmatic: you favor whichever option the group can actually execute.",
	"You are skeptical by default and probe weak arguments before agreeing.",
	"You look for common ground and try to move the group toward agreement.",
	"You care about long-term consequences more than immediate appeal.",
}

func newDeliberateCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "deliberate",
		Short: "Run a multi-round deliberation until the group converges or rounds run out",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDeliberate(cmd, v)
		},
	}
	cmd.Flags().String("topic", "", "Question the group deliberates on (required)")
	cmd.Flags().StringSlice("options", nil, "Comma-separated option identifiers (at least two, required)")
	cmd.Flags().String("name", "", "Output folder name (default: slug derived from topic)")
	cmd.MarkFlagRequired("topic")
	cmd.MarkFlagRequired("options")
	return cmd
}

func runDeliberate(cmd *cobra.Command, v *viper.Viper) error {
	topic, _ := cmd.Flags().GetString("topic")
	options, _ := cmd.Flags().GetStringSlice("options")
	name, _ := cmd.Flags().GetString("name")

	if err := config.LoadDotEnv(".env"); err != nil {
		return err
	}
	cfg, err := config.Load(v)
	if err != nil {
		return err
	}
	rule, err := consensus.ParseRule(cfg.Rule)
	if err != nil {
		return err
	}
	memKind, err := memory.ParseKind(cfg.Memory)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	client := openrouter.NewClient(cfg.APIKey)
	registry := liveRegistry(ctx, client)
	assigned := registry.Assign(cfg.AgentCount + 1) // last one backs summarization

	participants := make([]deliberation.Agent, cfg.AgentCount)
	for i := range participants {
		agentName := fmt.Sprintf("Agent-%d", i+1)
		if i < len(agentNames) {
			agentName = agentNames[i]
		}
		participants[i] = deliberation.Agent{
			ID:      agentName,
			Name:    agentName,
			Persona: personas[i%len(personas)],
			Model:   assigned[i].ID,
		}
	}

	slug := name
	if slug == "" {
		slug = report.GenerateSlug(topic)
	}
	outDir, err := report.CreateOutputDir(cfg.OutputDir, slug)
	if err != nil {
		return err
	}
	log, err := logging.NewFile(outDir, cfg.LogLevel)
	if err != nil {
		return err
	}
	defer log.Close()

	handle := agents.NewHandle(client, assigned[cfg.AgentCount].ID)
	strategy, err := memory.New(memKind, cfg.Window, handle, log)
	if err != nil {
		return err
	}

	printer := output.NewPrinter(cmd.OutOrStdout())
	observers := sessionObservers(printer)

	scheduler := evaluation.NewScheduler(evaluation.SchedulerConfig{
		Rater:         handle,
		Workers:       cfg.Workers,
		JobTimeout:    cfg.JobTimeout,
		BatchDeadline: cfg.BatchTimeout,
		Retries:       cfg.Retries,
		Log:           log,
	})

	controller, err := deliberation.NewController(deliberation.Settings{
		Topic:          topic,
		Options:        options,
		MaxRounds:      cfg.MaxRounds,
		Seed:           cfg.Seed,
		FixedOrder:     cfg.FixedOrder,
		CallTimeout:    cfg.CallTimeout,
		PreEvaluation:  cfg.PreEvaluation,
		PostEvaluation: cfg.PostEvaluation,
	}, participants, handle, rule, strategy, scheduler, log, observers)
	if err != nil {
		return err
	}

	printer.Banner("Deliberation: " + topic)
	fmt.Fprintf(cmd.OutOrStdout(), "Agents: %d | Options: %s | Rule: %s | Output: %s\n",
		cfg.AgentCount, strings.Join(options, ", "), rule, outDir)

	result, runErr := controller.Run(ctx)
	if result != nil {
		if err := writeReports(outDir, result); err != nil {
			return err
		}
		printSession(printer, result)
		fmt.Fprintf(cmd.OutOrStdout(), "\nSession artifacts saved to: %s\n", outDir)
	}
	if runErr != nil && !errors.Is(runErr, deliberation.ErrCancelled) {
		return runErr
	}
	if errors.Is(runErr, deliberation.ErrCancelled) {
		fmt.Fprintln(cmd.OutOrStdout(), "Session cancelled.")
	}
	return nil
}

func sessionObservers(printer *output.Printer) deliberation.Observers {
	return deliberation.Observers{
		OnTurn:          printer.Turn,
		OnRoundComplete: printer.RoundComplete,
		OnVerdict:       printer.Verdict,
	}
}

func printSession(printer *output.Printer, result *deliberation.SessionResult) {
	if result.PreEvaluation != nil {
		printer.Banner("Pre-deliberation ratings")
		printer.Evaluations(result.PreEvaluation)
	}
	printer.Summary(result)
	if result.PostEvaluation != nil {
		printer.Banner("Post-deliberation ratings")
		printer.Evaluations(result.PostEvaluation)
	}
}

func liveRegistry(ctx context.Context, client *openrouter.Client) *models.Registry {
	available, err := client.ListModels(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not fetch models: %v. Using defaults.\n", err)
		return models.NewRegistry(models.DefaultFreeModels())
	}
	registry := models.NewRegistry(available)
	if len(registry.FreeModels()) == 0 {
		return models.NewRegistry(models.DefaultFreeModels())
	}
	return registry
}

func writeReports(dir string, result *deliberation.SessionResult) error {
	writer := report.NewWriter(dir)
	if err := writer.WriteJSON(result); err != nil {
		return err
	}
	if err := writer.WriteCSV(result); err != nil {
		return err
	}
	return writer.WriteMarkdown(result)
}
