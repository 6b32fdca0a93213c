package main

import (
	"bytes"
	"os"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agoradev/agora/internal/config"
	"github.com/agoradev/agora/internal/deliberation"
	"github.com/agoradev/agora/internal/output"
)

func TestSessionObserversStreamProgress(t *testing.T) {
	var buf bytes.Buffer
	obs := sessionObservers(output.NewPrinter(&buf))

	obs.OnTurn(0, deliberation.Turn{AgentID: "alice", Choice: "1", Message: "the park works"})
	obs.OnRoundComplete(deliberation.Round{
		Index:  0,
		Status: deliberation.RoundComplete,
		Turns:  []deliberation.Turn{{AgentID: "alice", Choice: "1"}},
	})
	obs.OnVerdict(deliberation.Verdict{Reached: true, Choice: "1", Rule: "unanimity", Round: 0})

	out := buf.String()
	assert.Contains(t, out, "the park works")
	assert.Contains(t, out, "round 1 complete, 1/1 choices declared")
	assert.Contains(t, out, "Consensus reached:")
}

func TestPrintSessionShowsBothEvaluationPhases(t *testing.T) {
	var buf bytes.Buffer
	printSession(output.NewPrinter(&buf), &deliberation.SessionResult{
		Topic:   "pick a venue",
		Outcome: deliberation.ConsensusReached,
		Verdict: &deliberation.Verdict{Reached: true, Choice: "1", Rule: "unanimity"},
		PreEvaluation: &deliberation.EvaluationBatch{
			Results: []deliberation.EvaluationResult{{AgentID: "alice", OptionID: "1", Rating: 2, Reasoning: "undecided"}},
		},
		PostEvaluation: &deliberation.EvaluationBatch{
			Results: []deliberation.EvaluationResult{{AgentID: "alice", OptionID: "1", Rating: 4, Reasoning: "convinced"}},
		},
	})

	out := buf.String()
	assert.Contains(t, out, "Pre-deliberation ratings")
	assert.Contains(t, out, "undecided")
	assert.Contains(t, out, "Post-deliberation ratings")
	assert.Contains(t, out, "convinced")
}

func TestDeliberateReportsDotEnvError(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.Mkdir(dir+"/.env", 0o755))
	t.Chdir(dir)
	t.Setenv("AGORA_API_KEY", "sk-test")

	v := viper.New()
	config.SetDefaults(v)
	cmd := newDeliberateCmd(v)
	cmd.SilenceUsage = true
	cmd.SilenceErrors = true
	cmd.SetArgs([]string{"--topic", "x", "--options", "1,2"})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), ".env")
}
