// Package models selects which backend models back each participant.
package models

import (
	"github.com/agoradev/agora/internal/openrouter"
)

// Registry holds the models eligible for agent assignment. Only free
// models are kept so a deliberation of many agents and rounds costs
// nothing to run.
type Registry struct {
	free []openrouter.Model
}

// NewRegistry filters the given models down to free ones (prompt and
// completion both priced "0"). Models without pricing are excluded.
func NewRegistry(models []openrouter.Model) *Registry {
	var free []openrouter.Model
	for _, m := range models {
		if m.Pricing == nil {
			continue
		}
		if m.Pricing.Prompt == "0" && m.Pricing.Completion == "0" {
			free = append(free, m)
		}
	}
	return &Registry{free: free}
}

// FreeModels returns all eligible models.
func (r *Registry) FreeModels() []openrouter.Model {
	return r.free
}

// Assign returns one model per agent, cycling through the eligible list
// when there are more agents than models. Returns nil when the registry
// is empty.
func (r *Registry) Assign(agents int) []openrouter.Model {
	if len(r.free) == 0 {
		return nil
	}
	assigned := make([]openrouter.Model, agents)
	for i := range agents {
		assigned[i] = r.free[i%len(r.free)]
	}
	return assigned
}

// DefaultFreeModels is the hardcoded fallback used when the live model
// listing is unavailable.
func DefaultFreeModels() []openrouter.Model {
	free := &openrouter.Pricing{Prompt: "0", Completion: "0"}
	return []openrouter.Model{
		{ID: "qwen/qwen3-235b-a22b:free", Name: "Qwen3 235B A22B", Pricing: free},
		{ID: "google/gemma-3n-e2b-it:free", Name: "Gemma 3n 2B", Pricing: free},
		{ID: "nvidia/nemotron-nano-9b-v2:free", Name: "Nemotron Nano 9B V2", Pricing: free},
		{ID: "qwen/qwen3-coder:free", Name: "Qwen3 Coder 480B A35B", Pricing: free},
		{ID: "openai/gpt-oss-120b:free", Name: "GPT OSS 120B", Pricing: free},
	}
}
