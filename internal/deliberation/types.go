package deliberation

import (
	"context"
	"time"
)

// ChoiceMissing marks a turn whose declared choice could not be obtained,
// either because the call failed or because the response was unparseable.
const ChoiceMissing = ""

// Agent is a deliberation participant. The id set is fixed for the lifetime
// of a session; Choices and Memory are append-only, one entry per completed
// round.
type Agent struct {
	ID      string
	Name    string
	Persona string // opaque persona text, owned by the caller
	Model   string // backend model identifier
	Choices []string
	Memory  []RoundMemory
}

// RoundMemory holds one round's private artifacts for an agent. Ownership
// belongs to the session's memory strategy; nothing else writes it.
type RoundMemory struct {
	Round        int
	Assessment   string
	PeerAnalysis string
	Strategy     string
}

// RoundStatus tracks a round through its lifecycle.
type RoundStatus string

const (
	RoundPending    RoundStatus = "pending"
	RoundInProgress RoundStatus = "in_progress"
	RoundComplete   RoundStatus = "complete"
)

// Turn is a single agent's contribution within a round. It is recorded the
// moment the agent is invoked and immutable afterwards.
type Turn struct {
	AgentID string
	Context string // private memory rendering given to the agent
	Message string // public free text
	Choice  string // one of the configured option ids, or ChoiceMissing
	Latency time.Duration
	Err     string // non-empty when the call failed or the output was unparseable
}

// Round is one full pass of all agents speaking once. Immutable once
// Status is RoundComplete.
type Round struct {
	Index  int
	Order  []string // permutation of agent ids, fresh per round
	Turns  []Turn
	Status RoundStatus
}

// DeclaredChoices returns the non-missing choices from the round's turns,
// in speaking order.
func (r Round) DeclaredChoices() []string {
	var choices []string
	for _, t := range r.Turns {
		if t.Choice != ChoiceMissing {
			choices = append(choices, t.Choice)
		}
	}
	return choices
}

// TranscriptLine is one public entry of a round's accumulating transcript.
type TranscriptLine struct {
	Speaker string
	Message string
}

// Prompt carries everything an agent needs for one turn: the public state
// of the session plus the agent's private memory rendering. The core never
// concerns itself with how this becomes backend messages.
type Prompt struct {
	Topic      string
	Options    []string
	Round      int
	Transcript []TranscriptLine // turns already recorded this round, in order
	Memory     string           // memory strategy rendering for this agent
}

// Response is the structured result of an agent call. Choice is empty when
// the backend output carried no parseable choice; Raw preserves the original
// text for reporting. Assessment, PeerAnalysis and Strategy are the agent's
// private artifacts, consumed only by memory strategies.
type Response struct {
	Message      string
	Choice       string
	Assessment   string
	PeerAnalysis string
	Strategy     string
	Raw          string
}

// Caller invokes the remote reasoning backend for one agent turn.
type Caller interface {
	Propose(ctx context.Context, agent Agent, prompt Prompt) (Response, error)
}

// Verdict is the outcome of applying a decision rule to a complete round.
type Verdict struct {
	Reached bool
	Choice  string // set only when Reached
	Rule    string // human-readable rule form, e.g. "supermajority(0.67)"
	Round   int
}

// Evaluator applies a decision rule to a complete round. Implementations
// must be pure: evaluating the same round twice yields identical verdicts.
type Evaluator interface {
	Evaluate(round Round, agentCount int) Verdict
}

// MemoryStrategy turns per-agent history into the context for the next call.
// Record appends one RoundMemory per agent after a round completes; Render
// is a pure function of the recorded history.
type MemoryStrategy interface {
	Record(ctx context.Context, agents []*Agent, round Round, responses map[string]Response) error
	Render(history []RoundMemory) string
}

// EvaluationResult is one agent's rating of one option. Err is non-empty
// when the agent's job failed; the rating is then meaningless.
type EvaluationResult struct {
	AgentID   string
	OptionID  string
	Rating    int // ordinal, RatingMin..RatingMax
	Reasoning string
	Err       string
}

// Ratings use a 4-point ordinal scale.
const (
	RatingMin = 1
	RatingMax = 4
)

// AgentFailure records why an agent's evaluation job produced no usable
// ratings.
type AgentFailure struct {
	AgentID string
	Reason  string
}

// EvaluationBatch is the write-once output of one evaluation phase.
type EvaluationBatch struct {
	Results  []EvaluationResult
	Failures []AgentFailure
}

// BatchRunner executes an order-independent rating pass across all agents.
type BatchRunner interface {
	RunBatch(ctx context.Context, agents []*Agent, options []string) (*EvaluationBatch, error)
}

// Outcome is the terminal disposition of a session.
type Outcome string

const (
	ConsensusReached Outcome = "consensus_reached"
	RoundsExhausted  Outcome = "rounds_exhausted"
	Cancelled        Outcome = "cancelled"
)

// SessionResult is the write-once terminal object of a session.
type SessionResult struct {
	SessionID      string
	Topic          string
	Options        []string
	Agents         []Agent // final snapshots including histories
	Rounds         []Round // complete rounds only
	Verdict        *Verdict
	Outcome        Outcome
	PreEvaluation  *EvaluationBatch
	PostEvaluation *EvaluationBatch
}

// Observers receive progress notifications. All callbacks are optional and
// must not block: the core invokes them inline between protocol steps.
type Observers struct {
	OnTurn          func(round int, turn Turn)
	OnRoundComplete func(round Round)
	OnVerdict       func(verdict Verdict)
	OnEvaluation    func(result EvaluationResult)
}
