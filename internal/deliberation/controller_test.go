package deliberation

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fixedEvaluator reaches consensus at a configured round index, never
// before.
type fixedEvaluator struct {
	reachAt int // -1 = never
}

func (e fixedEvaluator) Evaluate(round Round, agentCount int) Verdict {
	v := Verdict{Rule: "unanimity", Round: round.Index}
	if e.reachAt >= 0 && round.Index >= e.reachAt {
		v.Reached = true
		v.Choice = "1"
	}
	return v
}

// countingRunner records batch invocations.
type countingRunner struct {
	calls int
}

func (r *countingRunner) RunBatch(ctx context.Context, agents []*Agent, options []string) (*EvaluationBatch, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.calls++
	return &EvaluationBatch{}, nil
}

func agreeableCaller() Caller {
	return &scriptedCaller{respond: func(agent Agent, _ Prompt) (Response, error) {
		return Response{Message: "option 1 works for me", Choice: "1"}, nil
	}}
}

func defaultSettings() Settings {
	return Settings{
		Topic:     "pick a venue",
		Options:   []string{"1", "2", "3"},
		MaxRounds: 3,
		Seed:      7,
	}
}

func specs(n int) []Agent {
	agents := make([]Agent, n)
	for i, a := range makeAgents(n) {
		agents[i] = *a
	}
	return agents
}

func TestControllerExhaustsRoundsWithoutConsensus(t *testing.T) {
	c, err := NewController(defaultSettings(), specs(3), agreeableCaller(),
		fixedEvaluator{reachAt: -1}, stubMemory{}, nil, nil, Observers{})
	require.NoError(t, err)

	result, err := c.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, RoundsExhausted, result.Outcome)
	assert.Len(t, result.Rounds, 3, "must run exactly MaxRounds, never a 4th")
	assert.Equal(t, StateFinished, c.State())
	require.NotNil(t, result.Verdict)
	assert.False(t, result.Verdict.Reached)
}

func TestControllerStopsAtConsensus(t *testing.T) {
	c, err := NewController(defaultSettings(), specs(3), agreeableCaller(),
		fixedEvaluator{reachAt: 1}, stubMemory{}, nil, nil, Observers{})
	require.NoError(t, err)

	result, err := c.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, ConsensusReached, result.Outcome)
	assert.Len(t, result.Rounds, 2, "no further rounds after a reached verdict")
	require.NotNil(t, result.Verdict)
	assert.True(t, result.Verdict.Reached)
	assert.Equal(t, "1", result.Verdict.Choice)
}

func TestControllerAppendsChoiceHistoryPerRound(t *testing.T) {
	c, err := NewController(defaultSettings(), specs(2), agreeableCaller(),
		fixedEvaluator{reachAt: -1}, stubMemory{}, nil, nil, Observers{})
	require.NoError(t, err)

	result, err := c.Run(context.Background())
	require.NoError(t, err)

	require.Len(t, result.Agents, 2)
	for _, agent := range result.Agents {
		assert.Equal(t, []string{"1", "1", "1"}, agent.Choices)
	}
}

func TestControllerRunsEvaluationPhases(t *testing.T) {
	settings := defaultSettings()
	settings.PreEvaluation = true
	settings.PostEvaluation = true
	runner := &countingRunner{}

	c, err := NewController(settings, specs(3), agreeableCaller(),
		fixedEvaluator{reachAt: 0}, stubMemory{}, runner, nil, Observers{})
	require.NoError(t, err)

	result, err := c.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, runner.calls)
	assert.NotNil(t, result.PreEvaluation)
	assert.NotNil(t, result.PostEvaluation)
}

func TestControllerCancellationMidRound(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	caller := &scriptedCaller{respond: func(agent Agent, _ Prompt) (Response, error) {
		if agent.ID == "agent-2" {
			cancel()
			return Response{}, ctx.Err()
		}
		return Response{Message: "ok", Choice: "1"}, nil
	}}

	c, err := NewController(defaultSettings(), specs(3), caller,
		fixedEvaluator{reachAt: -1}, stubMemory{}, nil, nil, Observers{})
	require.NoError(t, err)

	result, err := c.Run(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrCancelled)
	require.NotNil(t, result)
	assert.Equal(t, Cancelled, result.Outcome)
	assert.Equal(t, StateCancelled, c.State())
	assert.Empty(t, result.Rounds, "the abandoned round must not be reported")
}

func TestControllerRejectsSecondRun(t *testing.T) {
	c, err := NewController(defaultSettings(), specs(2), agreeableCaller(),
		fixedEvaluator{reachAt: 0}, stubMemory{}, nil, nil, Observers{})
	require.NoError(t, err)

	_, err = c.Run(context.Background())
	require.NoError(t, err)
	_, err = c.Run(context.Background())
	assert.Error(t, err)
}

func TestControllerConfigurationErrors(t *testing.T) {
	caller := agreeableCaller()

	tests := []struct {
		name     string
		settings Settings
		agents   []Agent
	}{
		{"zero agents", defaultSettings(), nil},
		{"single option", Settings{Topic: "t", Options: []string{"1"}, MaxRounds: 3}, specs(2)},
		{"zero rounds", Settings{Topic: "t", Options: []string{"1", "2"}, MaxRounds: 0}, specs(2)},
		{"duplicate agent ids", defaultSettings(), []Agent{{ID: "x"}, {ID: "x"}}},
		{"empty agent id", defaultSettings(), []Agent{{ID: ""}, {ID: "y"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewController(tt.settings, tt.agents, caller,
				fixedEvaluator{}, stubMemory{}, nil, nil, Observers{})
			assert.Error(t, err)
		})
	}

	t.Run("evaluation without runner", func(t *testing.T) {
		settings := defaultSettings()
		settings.PreEvaluation = true
		_, err := NewController(settings, specs(2), caller,
			fixedEvaluator{}, stubMemory{}, nil, nil, Observers{})
		assert.Error(t, err)
	})
}

func TestControllerVerdictObserver(t *testing.T) {
	var verdicts []Verdict
	observers := Observers{OnVerdict: func(v Verdict) { verdicts = append(verdicts, v) }}

	c, err := NewController(defaultSettings(), specs(2), agreeableCaller(),
		fixedEvaluator{reachAt: 1}, stubMemory{}, nil, nil, observers)
	require.NoError(t, err)

	_, err = c.Run(context.Background())
	require.NoError(t, err)

	require.Len(t, verdicts, 2)
	assert.False(t, verdicts[0].Reached)
	assert.True(t, verdicts[1].Reached)
}
