// Package agents adapts the remote reasoning backend into the structured
// collaborator interfaces the orchestration core consumes: turn proposals,
// option ratings, and memory summarization. All prompt text and output
// parsing lives here so the core stays free of text-format concerns.
package agents

import (
	"context"
	"fmt"

	"github.com/agoradev/agora/internal/deliberation"
	"github.com/agoradev/agora/internal/deliberation/evaluation"
	"github.com/agoradev/agora/internal/deliberation/memory"
	"github.com/agoradev/agora/internal/openrouter"
)

// LLMClient is the backend surface the handle needs. Satisfied by
// *openrouter.Client and mocked in tests.
type LLMClient interface {
	ChatCompletion(ctx context.Context, model string, messages []openrouter.Message) (*openrouter.ChatResponse, error)
}

// Handle implements deliberation.Caller, evaluation.Rater and
// memory.Summarizer over a backend client.
type Handle struct {
	llm          LLMClient
	summaryModel string // model used for decomposed-memory summarization
}

// NewHandle creates a Handle. summaryModel backs Summarize calls.
func NewHandle(llm LLMClient, summaryModel string) *Handle {
	return &Handle{llm: llm, summaryModel: summaryModel}
}

// Propose runs one agent turn. A response without a parseable choice is
// returned with an empty Choice and the raw text preserved; deciding what
// that means for the round is the engine's business, not ours.
func (h *Handle) Propose(ctx context.Context, agent deliberation.Agent, prompt deliberation.Prompt) (deliberation.Response, error) {
	resp, err := h.llm.ChatCompletion(ctx, agent.Model, proposalMessages(agent, prompt))
	if err != nil {
		return deliberation.Response{}, fmt.Errorf("agents: %s: %w", agent.ID, err)
	}

	raw := resp.Content()
	parsed, ok := parseProposal(raw)
	if !ok {
		return deliberation.Response{Message: raw, Raw: raw}, nil
	}
	return deliberation.Response{
		Message:      parsed.Message,
		Choice:       string(parsed.Choice),
		Assessment:   parsed.Assessment,
		PeerAnalysis: parsed.PeerAnalysis,
		Strategy:     parsed.Strategy,
		Raw:          raw,
	}, nil
}

// Rate asks one agent to rate every option in a single call.
func (h *Handle) Rate(ctx context.Context, agent deliberation.Agent, options []string) ([]evaluation.OptionRating, error) {
	resp, err := h.llm.ChatCompletion(ctx, agent.Model, ratingMessages(agent, options))
	if err != nil {
		return nil, fmt.Errorf("agents: %s: %w", agent.ID, err)
	}

	raw := resp.Content()
	ratings, ok := parseRatings(raw)
	if !ok {
		return nil, fmt.Errorf("agents: %s: unparseable ratings output", agent.ID)
	}
	return ratings, nil
}

// Summarize implements the decomposed-memory summarization steps.
func (h *Handle) Summarize(ctx context.Context, kind memory.SummaryKind, inputs []string) (string, error) {
	msgs, err := summaryMessages(kind, inputs)
	if err != nil {
		return "", err
	}
	resp, err := h.llm.ChatCompletion(ctx, h.summaryModel, msgs)
	if err != nil {
		return "", fmt.Errorf("agents: summarize %s: %w", kind, err)
	}
	return resp.Content(), nil
}
