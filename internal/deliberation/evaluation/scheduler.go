// Package evaluation runs the order-independent rating phase: every agent
// independently rates every option, with bounded concurrency. One job per
// agent covers the full option set in a single backend call.
package evaluation

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/agoradev/agora/internal/deliberation"
	"github.com/agoradev/agora/internal/logging"
)

// DefaultWorkers bounds job concurrency when no cap is configured.
const DefaultWorkers = 5

// OptionRating is one (option, rating, reasoning) tuple parsed from an
// agent's rating call.
type OptionRating struct {
	OptionID  string
	Rating    int
	Reasoning string
}

// Rater issues the per-agent rating call. One call covers all options.
type Rater interface {
	Rate(ctx context.Context, agent deliberation.Agent, options []string) ([]OptionRating, error)
}

// Scheduler fans rating jobs out over a bounded worker pool. It implements
// deliberation.BatchRunner.
type Scheduler struct {
	rater         Rater
	workers       int
	jobTimeout    time.Duration
	batchDeadline time.Duration
	retries       int
	backoff       func(attempt int) time.Duration
	log           *logging.Logger
	onResult      func(deliberation.EvaluationResult)
}

// SchedulerConfig wires a Scheduler.
type SchedulerConfig struct {
	Rater         Rater
	Workers       int           // concurrency cap; <= 0 means DefaultWorkers
	JobTimeout    time.Duration // per agent job; 0 = none
	BatchDeadline time.Duration // whole phase; 0 = none
	Retries       int           // additional attempts per job after the first
	Backoff       func(attempt int) time.Duration
	Log           *logging.Logger
	OnResult      func(deliberation.EvaluationResult)
}

// NewScheduler creates a Scheduler.
func NewScheduler(cfg SchedulerConfig) *Scheduler {
	workers := cfg.Workers
	if workers <= 0 {
		workers = DefaultWorkers
	}
	backoff := cfg.Backoff
	if backoff == nil {
		backoff = defaultBackoff
	}
	log := cfg.Log
	if log == nil {
		log = logging.Discard()
	}
	return &Scheduler{
		rater:         cfg.Rater,
		workers:       workers,
		jobTimeout:    cfg.JobTimeout,
		batchDeadline: cfg.BatchDeadline,
		retries:       cfg.Retries,
		backoff:       backoff,
		log:           log,
		onResult:      cfg.OnResult,
	}
}

func defaultBackoff(attempt int) time.Duration {
	return time.Duration(1<<uint(attempt)) * time.Second
}

// RunBatch rates every option with every agent. At most `workers` jobs are
// in flight at any instant. A job that fails or times out records Failed
// results for all of that agent's options without affecting other jobs;
// once the batch deadline passes, outstanding jobs are force-failed. The
// result set is written once, after every job has settled.
//
// The only error returned is cancellation of the parent context; the batch
// is then abandoned.
func (s *Scheduler) RunBatch(ctx context.Context, agents []*deliberation.Agent, options []string) (*deliberation.EvaluationBatch, error) {
	bctx := ctx
	if s.batchDeadline > 0 {
		var cancel context.CancelFunc
		bctx, cancel = context.WithDeadline(ctx, time.Now().Add(s.batchDeadline))
		defer cancel()
	}

	var (
		mu    sync.Mutex
		batch deliberation.EvaluationBatch
	)

	g := new(errgroup.Group)
	g.SetLimit(s.workers)
	for _, agent := range agents {
		g.Go(func() error {
			results, failure := s.runJob(bctx, *agent, options)
			mu.Lock()
			batch.Results = append(batch.Results, results...)
			if failure != nil {
				batch.Failures = append(batch.Failures, *failure)
			}
			mu.Unlock()
			if s.onResult != nil {
				for _, r := range results {
					s.onResult(r)
				}
			}
			return nil
		})
	}
	g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("evaluation: %w", err)
	}

	dedupe(&batch)
	sort.Slice(batch.Results, func(i, j int) bool {
		if batch.Results[i].AgentID != batch.Results[j].AgentID {
			return batch.Results[i].AgentID < batch.Results[j].AgentID
		}
		return batch.Results[i].OptionID < batch.Results[j].OptionID
	})
	return &batch, nil
}

// runJob issues one agent's rating call with per-job timeout and bounded
// retry. On final failure every option gets a Failed result.
func (s *Scheduler) runJob(ctx context.Context, agent deliberation.Agent, options []string) ([]deliberation.EvaluationResult, *deliberation.AgentFailure) {
	var lastErr error
	for attempt := 0; attempt <= s.retries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return failAll(agent.ID, options, ctx.Err().Error()), &deliberation.AgentFailure{AgentID: agent.ID, Reason: ctx.Err().Error()}
			case <-time.After(s.backoff(attempt - 1)):
			}
		}

		ratings, err := s.attempt(ctx, agent, options)
		if err == nil {
			return normalize(agent.ID, options, ratings), nil
		}
		lastErr = err
		s.log.Warn("rating job attempt failed", "agent", agent.ID, "attempt", attempt, "error", err)

		if ctx.Err() != nil {
			break
		}
	}

	reason := lastErr.Error()
	return failAll(agent.ID, options, reason), &deliberation.AgentFailure{AgentID: agent.ID, Reason: reason}
}

// attempt issues a single rating call under the per-job timeout.
func (s *Scheduler) attempt(ctx context.Context, agent deliberation.Agent, options []string) ([]OptionRating, error) {
	if s.jobTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.jobTimeout)
		defer cancel()
	}
	return s.rater.Rate(ctx, agent, options)
}

// normalize maps parsed tuples onto the configured option set, one result
// per option. Options the agent skipped, duplicated tuples beyond the
// first, and out-of-scale ratings become per-option failures rather than
// failing the whole job.
func normalize(agentID string, options []string, ratings []OptionRating) []deliberation.EvaluationResult {
	byOption := make(map[string]OptionRating, len(ratings))
	for _, r := range ratings {
		if _, ok := byOption[r.OptionID]; !ok {
			byOption[r.OptionID] = r
		}
	}

	results := make([]deliberation.EvaluationResult, 0, len(options))
	for _, opt := range options {
		res := deliberation.EvaluationResult{AgentID: agentID, OptionID: opt}
		r, ok := byOption[opt]
		switch {
		case !ok:
			res.Err = "no rating returned for option"
		case r.Rating < deliberation.RatingMin || r.Rating > deliberation.RatingMax:
			res.Err = fmt.Sprintf("rating %d outside %d-%d scale", r.Rating, deliberation.RatingMin, deliberation.RatingMax)
		default:
			res.Rating = r.Rating
			res.Reasoning = r.Reasoning
		}
		results = append(results, res)
	}
	return results
}

func failAll(agentID string, options []string, reason string) []deliberation.EvaluationResult {
	results := make([]deliberation.EvaluationResult, 0, len(options))
	for _, opt := range options {
		results = append(results, deliberation.EvaluationResult{AgentID: agentID, OptionID: opt, Err: reason})
	}
	return results
}

// dedupe enforces the (agent, option) uniqueness invariant, keeping the
// first entry recorded.
func dedupe(batch *deliberation.EvaluationBatch) {
	type key struct{ agent, option string }
	seen := make(map[key]bool, len(batch.Results))
	kept := batch.Results[:0]
	for _, r := range batch.Results {
		k := key{r.AgentID, r.OptionID}
		if seen[k] {
			continue
		}
		seen[k] = true
		kept = append(kept, r)
	}
	batch.Results = kept
}
