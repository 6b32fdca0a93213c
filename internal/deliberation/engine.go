package deliberation

import (
	"context"
	"fmt"
	"time"

	"github.com/agoradev/agora/internal/logging"
)

// Engine executes single rounds of the deliberation protocol.
//
// Turns within a round are strictly sequential: each agent's public context
// includes every turn already recorded this round, so no two turns may run
// concurrently. A failing agent call degrades that agent's turn to
// ChoiceMissing and the round proceeds; only cancellation aborts a round.
type Engine struct {
	topic       string
	options     []string
	optionSet   map[string]bool
	agents      []*Agent
	caller      Caller
	memory      MemoryStrategy
	order       *OrderSource
	callTimeout time.Duration
	log         *logging.Logger
	observers   Observers
}

// EngineConfig wires an Engine's collaborators.
type EngineConfig struct {
	Topic       string
	Options     []string
	Agents      []*Agent
	Caller      Caller
	Memory      MemoryStrategy
	Order       *OrderSource
	CallTimeout time.Duration // per agent invocation; 0 = no timeout
	Log         *logging.Logger
	Observers   Observers
}

// NewEngine creates a round engine.
func NewEngine(cfg EngineConfig) *Engine {
	optionSet := make(map[string]bool, len(cfg.Options))
	for _, opt := range cfg.Options {
		optionSet[opt] = true
	}
	log := cfg.Log
	if log == nil {
		log = logging.Discard()
	}
	return &Engine{
		topic:       cfg.Topic,
		options:     cfg.Options,
		optionSet:   optionSet,
		agents:      cfg.Agents,
		caller:      cfg.Caller,
		memory:      cfg.Memory,
		order:       cfg.Order,
		callTimeout: cfg.CallTimeout,
		log:         log,
		observers:   cfg.Observers,
	}
}

// RunRound executes round index: computes a fresh speaking order, invokes
// every agent once in that order, and returns the complete round together
// with each agent's structured response (keyed by agent id, successful
// turns only).
//
// The round under construction is owned exclusively by the engine until it
// is returned Complete. The only error RunRound returns is the context's:
// a cancelled round is abandoned, never reported Complete.
func (e *Engine) RunRound(ctx context.Context, index int) (Round, map[string]Response, error) {
	ids := make([]string, len(e.agents))
	byID := make(map[string]*Agent, len(e.agents))
	for i, a := range e.agents {
		ids[i] = a.ID
		byID[a.ID] = a
	}

	round := Round{
		Index:  index,
		Order:  e.order.Next(ids),
		Status: RoundInProgress,
	}
	responses := make(map[string]Response, len(e.agents))

	for _, id := range round.Order {
		if err := ctx.Err(); err != nil {
			return round, nil, fmt.Errorf("deliberation: round %d: %w", index, err)
		}
		agent := byID[id]
		turn, resp := e.runTurn(ctx, agent, round)
		if err := ctx.Err(); err != nil {
			// The in-flight call was interrupted; discard rather than
			// record a turn that only failed because of cancellation.
			return round, nil, fmt.Errorf("deliberation: round %d: %w", index, err)
		}
		if turn.Err == "" {
			responses[id] = resp
		}
		// Append immediately so the next speaker sees this turn.
		round.Turns = append(round.Turns, turn)
		if e.observers.OnTurn != nil {
			e.observers.OnTurn(index, turn)
		}
	}

	round.Status = RoundComplete
	if e.observers.OnRoundComplete != nil {
		e.observers.OnRoundComplete(round)
	}
	return round, responses, nil
}

func (e *Engine) runTurn(ctx context.Context, agent *Agent, round Round) (Turn, Response) {
	prompt := Prompt{
		Topic:      e.topic,
		Options:    e.options,
		Round:      round.Index,
		Transcript: transcript(round.Turns),
		Memory:     e.memory.Render(agent.Memory),
	}
	turn := Turn{
		AgentID: agent.ID,
		Context: prompt.Memory,
	}

	callCtx := ctx
	if e.callTimeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, e.callTimeout)
		defer cancel()
	}

	start := time.Now()
	resp, err := e.caller.Propose(callCtx, *agent, prompt)
	turn.Latency = time.Since(start)

	switch {
	case err != nil:
		turn.Err = err.Error()
		turn.Choice = ChoiceMissing
		e.log.Warn("agent call failed", "round", round.Index, "agent", agent.ID, "error", err)
	case resp.Choice == ChoiceMissing:
		turn.Message = resp.Message
		turn.Err = "no parseable choice in response"
		turn.Choice = ChoiceMissing
		e.log.Warn("unparseable choice", "round", round.Index, "agent", agent.ID)
	case !e.optionSet[resp.Choice]:
		turn.Message = resp.Message
		turn.Err = fmt.Sprintf("declared choice %q is not a configured option", resp.Choice)
		turn.Choice = ChoiceMissing
		e.log.Warn("choice outside option set", "round", round.Index, "agent", agent.ID, "choice", resp.Choice)
	default:
		turn.Message = resp.Message
		turn.Choice = resp.Choice
		e.log.Debug("turn recorded", "round", round.Index, "agent", agent.ID, "choice", turn.Choice, "latency", turn.Latency)
	}
	return turn, resp
}

// transcript renders already-recorded turns as public context. Failed turns
// without a message contribute nothing to the transcript.
func transcript(turns []Turn) []TranscriptLine {
	var lines []TranscriptLine
	for _, t := range turns {
		if t.Message == "" {
			continue
		}
		lines = append(lines, TranscriptLine{Speaker: t.AgentID, Message: t.Message})
	}
	return lines
}
