// Package memory implements the per-agent memory strategies: Full, Recent
// and Decomposed. A strategy owns each agent's memory log: it appends one
// entry per completed round and renders the accumulated history into the
// private context for the agent's next turn.
package memory

import (
	"context"
	"fmt"
	"strings"

	"github.com/agoradev/agora/internal/deliberation"
	"github.com/agoradev/agora/internal/logging"
)

// Kind selects a strategy variant.
type Kind string

const (
	KindFull       Kind = "full"
	KindRecent     Kind = "recent"
	KindDecomposed Kind = "decomposed"
)

// ParseKind parses a strategy name.
func ParseKind(s string) (Kind, error) {
	switch Kind(strings.TrimSpace(s)) {
	case KindFull:
		return KindFull, nil
	case KindRecent:
		return KindRecent, nil
	case KindDecomposed:
		return KindDecomposed, nil
	default:
		return "", fmt.Errorf("memory: unknown strategy %q", s)
	}
}

// New builds the strategy for a session. window applies to Recent;
// summarizer is required for Decomposed.
func New(kind Kind, window int, summarizer Summarizer, log *logging.Logger) (deliberation.MemoryStrategy, error) {
	switch kind {
	case KindFull:
		return Full{}, nil
	case KindRecent:
		if window < 1 {
			return nil, fmt.Errorf("memory: recent window must be >= 1, got %d", window)
		}
		return Recent{Window: window}, nil
	case KindDecomposed:
		if summarizer == nil {
			return nil, fmt.Errorf("memory: decomposed strategy requires a summarizer")
		}
		return NewDecomposed(summarizer, log), nil
	default:
		return nil, fmt.Errorf("memory: unknown strategy %q", kind)
	}
}

// Full keeps every round's artifacts verbatim. Context grows linearly with
// round count.
type Full struct{}

// Record appends each agent's own declared artifacts for the round. A
// failed turn still produces a log entry, with empty fields, so the memory
// log stays aligned with round indices.
func (Full) Record(_ context.Context, agents []*deliberation.Agent, round deliberation.Round, responses map[string]deliberation.Response) error {
	recordVerbatim(agents, round, responses)
	return nil
}

// Render concatenates every recorded round in order.
func (Full) Render(history []deliberation.RoundMemory) string {
	return render(history)
}

// Recent is Full windowed to the last Window rounds; older rounds are
// dropped entirely, not summarized.
type Recent struct {
	Window int
}

func (Recent) Record(_ context.Context, agents []*deliberation.Agent, round deliberation.Round, responses map[string]deliberation.Response) error {
	recordVerbatim(agents, round, responses)
	return nil
}

func (r Recent) Render(history []deliberation.RoundMemory) string {
	if len(history) > r.Window {
		history = history[len(history)-r.Window:]
	}
	return render(history)
}

func recordVerbatim(agents []*deliberation.Agent, round deliberation.Round, responses map[string]deliberation.Response) {
	for _, agent := range agents {
		entry := deliberation.RoundMemory{Round: round.Index}
		if resp, ok := responses[agent.ID]; ok {
			entry.Assessment = resp.Assessment
			entry.PeerAnalysis = resp.PeerAnalysis
			entry.Strategy = resp.Strategy
			if entry.Assessment == "" {
				// Older models often fold everything into the public
				// message; keep it as the assessment rather than nothing.
				entry.Assessment = resp.Message
			}
		}
		agent.Memory = append(agent.Memory, entry)
	}
}

func render(history []deliberation.RoundMemory) string {
	var sb strings.Builder
	for _, m := range history {
		if m.Assessment == "" && m.PeerAnalysis == "" && m.Strategy == "" {
			continue
		}
		fmt.Fprintf(&sb, "Round %d:\n", m.Round+1)
		if m.Assessment != "" {
			fmt.Fprintf(&sb, "  Situation: %s\n", m.Assessment)
		}
		if m.PeerAnalysis != "" {
			fmt.Fprintf(&sb, "  Peer analysis: %s\n", m.PeerAnalysis)
		}
		if m.Strategy != "" {
			fmt.Fprintf(&sb, "  Strategy: %s\n", m.Strategy)
		}
	}
	return sb.String()
}
