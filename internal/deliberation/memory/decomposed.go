package memory

import (
	"context"
	"fmt"
	"strings"

	"github.com/agoradev/agora/internal/deliberation"
	"github.com/agoradev/agora/internal/logging"
)

// SummaryKind identifies one of the three decomposition steps.
type SummaryKind string

const (
	SummaryRecap    SummaryKind = "recap"    // factual recap of the round
	SummaryPeer     SummaryKind = "peer"     // focused analysis of one other agent
	SummaryStrategy SummaryKind = "strategy" // one concrete strategic action
)

// Summarizer is the external summarization collaborator used by the
// Decomposed strategy.
type Summarizer interface {
	Summarize(ctx context.Context, kind SummaryKind, inputs []string) (string, error)
}

// Decomposed derives each round's artifacts through three independent
// summarization calls instead of storing the agent's output verbatim:
// a factual recap, an analysis of one other agent's behavior, and one
// concrete strategic action. This keeps context compact and actionable
// compared to Full.
type Decomposed struct {
	summarizer Summarizer
	log        *logging.Logger
}

// NewDecomposed creates a Decomposed strategy.
func NewDecomposed(summarizer Summarizer, log *logging.Logger) *Decomposed {
	if log == nil {
		log = logging.Discard()
	}
	return &Decomposed{summarizer: summarizer, log: log}
}

// Record derives and appends one RoundMemory per agent. A failing
// summarization step leaves its field empty and the round continues;
// only cancellation aborts.
func (d *Decomposed) Record(ctx context.Context, agents []*deliberation.Agent, round deliberation.Round, _ map[string]deliberation.Response) error {
	roundText := roundTranscript(round)

	for _, agent := range agents {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("memory: %w", err)
		}
		entry := deliberation.RoundMemory{Round: round.Index}

		entry.Assessment = d.step(ctx, SummaryRecap, []string{roundText}, agent.ID, round.Index)

		if peer, ok := peerTurn(round, agent.ID); ok {
			entry.PeerAnalysis = d.step(ctx, SummaryPeer, []string{peer.AgentID, peer.Message}, agent.ID, round.Index)
		}

		entry.Strategy = d.step(ctx, SummaryStrategy, []string{entry.Assessment, entry.PeerAnalysis}, agent.ID, round.Index)

		agent.Memory = append(agent.Memory, entry)
	}
	return nil
}

// Render concatenates the derived artifacts, same shape as Full.
func (*Decomposed) Render(history []deliberation.RoundMemory) string {
	return render(history)
}

func (d *Decomposed) step(ctx context.Context, kind SummaryKind, inputs []string, agentID string, round int) string {
	text, err := d.summarizer.Summarize(ctx, kind, inputs)
	if err != nil {
		d.log.Warn("summarization step failed", "kind", string(kind), "agent", agentID, "round", round, "error", err)
		return ""
	}
	return strings.TrimSpace(text)
}

// peerTurn picks the agent to analyze: the first speaker in the round's
// order other than self whose turn carried a message. Deterministic given
// the round.
func peerTurn(round deliberation.Round, selfID string) (deliberation.Turn, bool) {
	for _, t := range round.Turns {
		if t.AgentID != selfID && t.Message != "" {
			return t, true
		}
	}
	return deliberation.Turn{}, false
}

func roundTranscript(round deliberation.Round) string {
	var sb strings.Builder
	for _, t := range round.Turns {
		if t.Message == "" {
			continue
		}
		fmt.Fprintf(&sb, "%s: %s\n", t.AgentID, t.Message)
	}
	return sb.String()
}
