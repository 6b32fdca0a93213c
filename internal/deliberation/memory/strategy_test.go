package memory

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agoradev/agora/internal/deliberation"
)

func historyOf(rounds int) []deliberation.RoundMemory {
	history := make([]deliberation.RoundMemory, rounds)
	for i := range rounds {
		history[i] = deliberation.RoundMemory{
			Round:        i,
			Assessment:   assessmentFor(i),
			PeerAnalysis: "peer read " + assessmentFor(i),
			Strategy:     "plan " + assessmentFor(i),
		}
	}
	return history
}

func assessmentFor(round int) string {
	return string(rune('A' + round))
}

func TestParseKind(t *testing.T) {
	for _, s := range []string{"full", "recent", "decomposed"} {
		kind, err := ParseKind(s)
		require.NoError(t, err)
		assert.Equal(t, Kind(s), kind)
	}
	_, err := ParseKind("episodic")
	assert.Error(t, err)
}

func TestFullRendersEveryRoundInOrder(t *testing.T) {
	rendered := Full{}.Render(historyOf(4))

	for i := range 4 {
		assert.Contains(t, rendered, assessmentFor(i))
	}
	assert.Less(t, strings.Index(rendered, "Round 1:"), strings.Index(rendered, "Round 4:"))
}

func TestRecentWindowDropsOlderRounds(t *testing.T) {
	// Recent(k=1) rendering for round n must not contain round n-2 artifacts.
	rendered := Recent{Window: 1}.Render(historyOf(3))

	assert.Contains(t, rendered, assessmentFor(2))
	assert.NotContains(t, rendered, "peer read "+assessmentFor(1))
	assert.NotContains(t, rendered, "peer read "+assessmentFor(0))
}

func TestRecentWindowLargerThanHistoryKeepsAll(t *testing.T) {
	rendered := Recent{Window: 10}.Render(historyOf(2))
	assert.Contains(t, rendered, assessmentFor(0))
	assert.Contains(t, rendered, assessmentFor(1))
}

func TestRenderSkipsEmptyEntries(t *testing.T) {
	history := []deliberation.RoundMemory{{Round: 0}, {Round: 1, Assessment: "saw things"}}
	rendered := Full{}.Render(history)
	assert.NotContains(t, rendered, "Round 1:")
	assert.Contains(t, rendered, "Round 2:")
}

func TestRecordVerbatimAppendsAgentOwnArtifacts(t *testing.T) {
	agents := []*deliberation.Agent{{ID: "a"}, {ID: "b"}}
	round := deliberation.Round{Index: 0, Status: deliberation.RoundComplete}
	responses := map[string]deliberation.Response{
		"a": {Message: "public", Assessment: "situation", PeerAnalysis: "b is firm", Strategy: "hold"},
	}

	err := Full{}.Record(context.Background(), agents, round, responses)
	require.NoError(t, err)

	require.Len(t, agents[0].Memory, 1)
	assert.Equal(t, "situation", agents[0].Memory[0].Assessment)
	assert.Equal(t, "b is firm", agents[0].Memory[0].PeerAnalysis)

	// Agent b had no response this round: the log entry still exists so
	// memory stays aligned with round indices.
	require.Len(t, agents[1].Memory, 1)
	assert.Empty(t, agents[1].Memory[0].Assessment)
}

func TestRecordVerbatimFallsBackToPublicMessage(t *testing.T) {
	agents := []*deliberation.Agent{{ID: "a"}}
	responses := map[string]deliberation.Response{
		"a": {Message: "only a message"},
	}

	err := Recent{Window: 2}.Record(context.Background(), agents, deliberation.Round{}, responses)
	require.NoError(t, err)
	assert.Equal(t, "only a message", agents[0].Memory[0].Assessment)
}

func TestNewValidatesParameters(t *testing.T) {
	_, err := New(KindRecent, 0, nil, nil)
	assert.Error(t, err)

	_, err = New(KindDecomposed, 0, nil, nil)
	assert.Error(t, err, "decomposed requires a summarizer")

	strategy, err := New(KindFull, 0, nil, nil)
	require.NoError(t, err)
	assert.IsType(t, Full{}, strategy)
}
