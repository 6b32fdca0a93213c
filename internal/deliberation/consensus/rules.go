// Package consensus implements the decision rules applied to a complete
// round's declared choices. Evaluation is pure: no state, no side effects,
// identical verdicts on repeated application.
package consensus

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/agoradev/agora/internal/deliberation"
)

// Kind identifies a decision rule.
type Kind string

const (
	Unanimity     Kind = "unanimity"
	Supermajority Kind = "supermajority"
	Plurality     Kind = "plurality"
)

// Rule is a decision rule with its parameters. It implements
// deliberation.Evaluator.
type Rule struct {
	Kind      Kind
	Threshold float64 // supermajority only, in (0, 1]
}

// ParseRule parses a rule from its string form: "unanimity", "plurality",
// or "supermajority:0.67".
func ParseRule(s string) (Rule, error) {
	name, param, hasParam := strings.Cut(strings.TrimSpace(s), ":")
	switch Kind(name) {
	case Unanimity:
		if hasParam {
			return Rule{}, fmt.Errorf("consensus: unanimity takes no parameter, got %q", s)
		}
		return Rule{Kind: Unanimity}, nil
	case Plurality:
		if hasParam {
			return Rule{}, fmt.Errorf("consensus: plurality takes no parameter, got %q", s)
		}
		return Rule{Kind: Plurality}, nil
	case Supermajority:
		if !hasParam {
			return Rule{}, fmt.Errorf("consensus: supermajority requires a threshold, e.g. %q", "supermajority:0.67")
		}
		threshold, err := strconv.ParseFloat(param, 64)
		if err != nil {
			return Rule{}, fmt.Errorf("consensus: invalid supermajority threshold %q: %w", param, err)
		}
		if threshold <= 0 || threshold > 1 {
			return Rule{}, fmt.Errorf("consensus: supermajority threshold must be in (0, 1], got %v", threshold)
		}
		return Rule{Kind: Supermajority, Threshold: threshold}, nil
	default:
		return Rule{}, fmt.Errorf("consensus: unknown decision rule %q", name)
	}
}

// String returns the human-readable rule form used in verdicts.
func (r Rule) String() string {
	if r.Kind == Supermajority {
		return fmt.Sprintf("supermajority(%v)", r.Threshold)
	}
	return string(r.Kind)
}

// Evaluate applies the rule to a round's declared choices. Missing choices
// are excluded from the tally but count against full participation under
// unanimity, and against the denominator under supermajority.
func (r Rule) Evaluate(round deliberation.Round, agentCount int) deliberation.Verdict {
	verdict := deliberation.Verdict{
		Rule:  r.String(),
		Round: round.Index,
	}

	choices := round.DeclaredChoices()
	if len(choices) == 0 {
		return verdict
	}

	switch r.Kind {
	case Unanimity:
		if len(choices) < agentCount {
			return verdict
		}
		first := choices[0]
		for _, c := range choices[1:] {
			if c != first {
				return verdict
			}
		}
		verdict.Reached = true
		verdict.Choice = first

	case Supermajority:
		leader, count := leadingChoice(choices)
		// Ratios are compared at whole-percent precision so that e.g.
		// 2 of 3 votes meets a 0.67 threshold.
		if math.Round(float64(count)/float64(agentCount)*100) >= math.Round(r.Threshold*100) {
			verdict.Reached = true
			verdict.Choice = leader
		}

	case Plurality:
		leader, _ := leadingChoice(choices)
		verdict.Reached = true
		verdict.Choice = leader
	}

	return verdict
}

// leadingChoice returns the most frequent choice. Ties are broken
// deterministically: the lowest option identifier wins.
func leadingChoice(choices []string) (string, int) {
	tally := make(map[string]int)
	for _, c := range choices {
		tally[c]++
	}

	options := make([]string, 0, len(tally))
	for opt := range tally {
		options = append(options, opt)
	}
	sort.Strings(options)

	leader, best := "", 0
	for _, opt := range options {
		if tally[opt] > best {
			leader, best = opt, tally[opt]
		}
	}
	return leader, best
}
