package deliberation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/agoradev/agora/internal/logging"
)

// ErrCancelled marks a session terminated by context cancellation rather
// than normal completion.
var ErrCancelled = errors.New("session cancelled")

// State is the controller's position in the session state machine.
type State string

const (
	StateNotStarted       State = "not_started"
	StatePreEvaluation    State = "pre_evaluation"
	StateDeliberating     State = "deliberating"
	StateConsensusReached State = "consensus_reached"
	StateRoundsExhausted  State = "rounds_exhausted"
	StatePostEvaluation   State = "post_evaluation"
	StateFinished         State = "finished"
	StateCancelled        State = "cancelled"
)

// Settings is the immutable configuration a session starts from.
type Settings struct {
	Topic          string
	Options        []string
	MaxRounds      int
	Seed           uint64 // speaking-order seed; 0 = non-deterministic
	FixedOrder     bool   // replay configuration order every round
	CallTimeout    time.Duration
	PreEvaluation  bool
	PostEvaluation bool
}

// Controller composes the round engine, consensus evaluator and evaluation
// scheduler into the session state machine. All mutable session state
// (agents, round history, the terminal result) is owned by the controller
// instance; sessions share nothing.
type Controller struct {
	settings  Settings
	agents    []*Agent
	engine    *Engine
	evaluator Evaluator
	memory    MemoryStrategy
	runner    BatchRunner
	log       *logging.Logger
	observers Observers

	state State
	ran   bool
}

// NewController validates the configuration and assembles a session.
// Validation failures are returned before any round can execute; a
// controller that constructs successfully will never fail on
// configuration.
func NewController(settings Settings, agents []Agent, caller Caller, evaluator Evaluator, memory MemoryStrategy, runner BatchRunner, log *logging.Logger, observers Observers) (*Controller, error) {
	if len(agents) == 0 {
		return nil, fmt.Errorf("deliberation: no agents configured")
	}
	if len(settings.Options) < 2 {
		return nil, fmt.Errorf("deliberation: at least two options required, got %d", len(settings.Options))
	}
	if settings.MaxRounds < 1 {
		return nil, fmt.Errorf("deliberation: max rounds must be >= 1, got %d", settings.MaxRounds)
	}
	if caller == nil || evaluator == nil || memory == nil {
		return nil, fmt.Errorf("deliberation: caller, evaluator and memory strategy are required")
	}
	if (settings.PreEvaluation || settings.PostEvaluation) && runner == nil {
		return nil, fmt.Errorf("deliberation: evaluation phases configured without a batch runner")
	}
	seen := make(map[string]bool, len(agents))
	for _, a := range agents {
		if a.ID == "" {
			return nil, fmt.Errorf("deliberation: agent with empty id")
		}
		if seen[a.ID] {
			return nil, fmt.Errorf("deliberation: duplicate agent id %q", a.ID)
		}
		seen[a.ID] = true
	}

	if log == nil {
		log = logging.Discard()
	}

	owned := make([]*Agent, len(agents))
	for i := range agents {
		a := agents[i]
		owned[i] = &a
	}

	c := &Controller{
		settings:  settings,
		agents:    owned,
		evaluator: evaluator,
		memory:    memory,
		runner:    runner,
		log:       log,
		observers: observers,
		state:     StateNotStarted,
	}
	c.engine = NewEngine(EngineConfig{
		Topic:       settings.Topic,
		Options:     settings.Options,
		Agents:      owned,
		Caller:      caller,
		Memory:      memory,
		Order:       NewOrderSource(settings.Seed, settings.FixedOrder),
		CallTimeout: settings.CallTimeout,
		Log:         log,
		Observers:   observers,
	})
	return c, nil
}

// State returns the controller's current position in the state machine.
func (c *Controller) State() State {
	return c.state
}

// Run drives the session to a terminal state and returns the write-once
// SessionResult. Agent-level failures are recorded in the result, never
// returned; the only errors Run yields are reuse of a finished controller
// and cancellation. On cancellation the partial result (complete rounds
// only) is returned alongside ErrCancelled.
func (c *Controller) Run(ctx context.Context) (*SessionResult, error) {
	if c.ran {
		return nil, fmt.Errorf("deliberation: session already run")
	}
	c.ran = true

	result := &SessionResult{
		SessionID: uuid.NewString(),
		Topic:     c.settings.Topic,
		Options:   c.settings.Options,
	}
	log := c.log.With("session", result.SessionID)
	log.Info("session starting", "agents", len(c.agents), "max_rounds", c.settings.MaxRounds)

	if c.settings.PreEvaluation {
		c.state = StatePreEvaluation
		batch, err := c.runner.RunBatch(ctx, c.agents, c.settings.Options)
		if err != nil {
			return c.cancel(result, log, err)
		}
		result.PreEvaluation = batch
	}

	c.state = StateDeliberating
	for index := 0; index < c.settings.MaxRounds; index++ {
		round, responses, err := c.engine.RunRound(ctx, index)
		if err != nil {
			return c.cancel(result, log, err)
		}
		result.Rounds = append(result.Rounds, round)
		c.recordChoices(round)
		if err := c.memory.Record(ctx, c.agents, round, responses); err != nil {
			return c.cancel(result, log, err)
		}

		verdict := c.evaluator.Evaluate(round, len(c.agents))
		result.Verdict = &verdict
		if c.observers.OnVerdict != nil {
			c.observers.OnVerdict(verdict)
		}
		log.Info("round evaluated", "round", index, "reached", verdict.Reached, "choice", verdict.Choice)

		if verdict.Reached {
			c.state = StateConsensusReached
			result.Outcome = ConsensusReached
			break
		}
	}
	if result.Outcome == "" {
		c.state = StateRoundsExhausted
		result.Outcome = RoundsExhausted
	}

	if c.settings.PostEvaluation {
		c.state = StatePostEvaluation
		batch, err := c.runner.RunBatch(ctx, c.agents, c.settings.Options)
		if err != nil {
			return c.cancel(result, log, err)
		}
		result.PostEvaluation = batch
	}

	c.state = StateFinished
	c.snapshotAgents(result)
	log.Info("session finished", "outcome", string(result.Outcome), "rounds", len(result.Rounds))
	return result, nil
}

// cancel moves the session to its Cancelled terminal state. The in-flight
// round or batch is abandoned; only complete rounds appear in the result.
func (c *Controller) cancel(result *SessionResult, log *logging.Logger, cause error) (*SessionResult, error) {
	c.state = StateCancelled
	result.Outcome = Cancelled
	result.Verdict = nil
	c.snapshotAgents(result)
	log.Warn("session cancelled", "rounds_completed", len(result.Rounds), "cause", cause)
	return result, fmt.Errorf("deliberation: %w: %v", ErrCancelled, cause)
}

// recordChoices appends each agent's declared choice for the round to its
// append-only history, ChoiceMissing included.
func (c *Controller) recordChoices(round Round) {
	choiceByAgent := make(map[string]string, len(round.Turns))
	for _, t := range round.Turns {
		choiceByAgent[t.AgentID] = t.Choice
	}
	for _, a := range c.agents {
		a.Choices = append(a.Choices, choiceByAgent[a.ID])
	}
}

func (c *Controller) snapshotAgents(result *SessionResult) {
	result.Agents = make([]Agent, len(c.agents))
	for i, a := range c.agents {
		result.Agents[i] = *a
	}
}
