package consensus

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agoradev/agora/internal/deliberation"
)

func roundWithChoices(choices ...string) deliberation.Round {
	round := deliberation.Round{Index: 2, Status: deliberation.RoundComplete}
	for i, c := range choices {
		round.Turns = append(round.Turns, deliberation.Turn{
			AgentID: string(rune('a' + i)),
			Message: "m",
			Choice:  c,
		})
		round.Order = append(round.Order, string(rune('a'+i)))
	}
	return round
}

func TestParseRule(t *testing.T) {
	tests := []struct {
		in      string
		want    Rule
		wantErr bool
	}{
		{in: "unanimity", want: Rule{Kind: Unanimity}},
		{in: "plurality", want: Rule{Kind: Plurality}},
		{in: "supermajority:0.67", want: Rule{Kind: Supermajority, Threshold: 0.67}},
		{in: " supermajority:0.5 ", want: Rule{Kind: Supermajority, Threshold: 0.5}},
		{in: "supermajority", wantErr: true},
		{in: "supermajority:1.5", wantErr: true},
		{in: "supermajority:0", wantErr: true},
		{in: "supermajority:abc", wantErr: true},
		{in: "unanimity:0.5", wantErr: true},
		{in: "majority", wantErr: true},
		{in: "", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			rule, err := ParseRule(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, rule)
		})
	}
}

func TestUnanimityReachedWhenAllAgree(t *testing.T) {
	verdict := Rule{Kind: Unanimity}.Evaluate(roundWithChoices("1", "1", "1"), 3)
	assert.True(t, verdict.Reached)
	assert.Equal(t, "1", verdict.Choice)
	assert.Equal(t, 2, verdict.Round)
}

func TestUnanimityNotReachedOnDisagreement(t *testing.T) {
	verdict := Rule{Kind: Unanimity}.Evaluate(roundWithChoices("1", "1", "3"), 3)
	assert.False(t, verdict.Reached)
	assert.Empty(t, verdict.Choice)
}

func TestUnanimityRequiresFullParticipation(t *testing.T) {
	// Two agents agree, the third's choice is missing: not unanimous.
	verdict := Rule{Kind: Unanimity}.Evaluate(roundWithChoices("1", "1", deliberation.ChoiceMissing), 3)
	assert.False(t, verdict.Reached)
}

func TestSupermajorityTwoOfThreeMeetsTwoThirds(t *testing.T) {
	verdict := Rule{Kind: Supermajority, Threshold: 0.67}.Evaluate(roundWithChoices("1", "1", "3"), 3)
	assert.True(t, verdict.Reached)
	assert.Equal(t, "1", verdict.Choice)
}

func TestSupermajorityBelowThreshold(t *testing.T) {
	verdict := Rule{Kind: Supermajority, Threshold: 0.75}.Evaluate(roundWithChoices("1", "1", "3", "2"), 4)
	assert.False(t, verdict.Reached)
}

func TestSupermajorityMissingCountsAgainstDenominator(t *testing.T) {
	// 2 of 4 agents declare "1"; the other two are missing. 50% < 67%.
	round := roundWithChoices("1", "1", deliberation.ChoiceMissing, deliberation.ChoiceMissing)
	verdict := Rule{Kind: Supermajority, Threshold: 0.67}.Evaluate(round, 4)
	assert.False(t, verdict.Reached)
}

func TestSupermajorityTieBreaksOnLowestOption(t *testing.T) {
	verdict := Rule{Kind: Supermajority, Threshold: 0.5}.Evaluate(roundWithChoices("2", "2", "1", "1"), 4)
	assert.True(t, verdict.Reached)
	assert.Equal(t, "1", verdict.Choice)
}

func TestPluralityAlwaysReachesWithMode(t *testing.T) {
	verdict := Rule{Kind: Plurality}.Evaluate(roundWithChoices("3", "3", "2"), 3)
	assert.True(t, verdict.Reached)
	assert.Equal(t, "3", verdict.Choice)
}

func TestPluralityTieBreaksOnLowestOption(t *testing.T) {
	verdict := Rule{Kind: Plurality}.Evaluate(roundWithChoices("3", "2"), 2)
	assert.True(t, verdict.Reached)
	assert.Equal(t, "2", verdict.Choice)
}

func TestPluralityNotReachedWithNoChoices(t *testing.T) {
	round := roundWithChoices(deliberation.ChoiceMissing, deliberation.ChoiceMissing)
	verdict := Rule{Kind: Plurality}.Evaluate(round, 2)
	assert.False(t, verdict.Reached)
}

func TestEvaluateIsIdempotent(t *testing.T) {
	round := roundWithChoices("1", "2", "1")
	rule := Rule{Kind: Supermajority, Threshold: 0.6}

	first := rule.Evaluate(round, 3)
	second := rule.Evaluate(round, 3)
	assert.Equal(t, first, second)
}

func TestRuleString(t *testing.T) {
	assert.Equal(t, "unanimity", Rule{Kind: Unanimity}.String())
	assert.Equal(t, "plurality", Rule{Kind: Plurality}.String())
	assert.Equal(t, "supermajority(0.67)", Rule{Kind: Supermajority, Threshold: 0.67}.String())
}
