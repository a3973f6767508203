// Package supervisor runs crawl sessions under a restart policy.
//
// Each cycle opens a fresh RecordSource, runs one crawler.Session over it
// and releases the source again. Failures are classified: cancellation
// stops at once, configuration and resource errors stop at once without
// spending the restart budget, and everything else is retried after a
// backoff until MaxConsecutiveFailures cycles in a row have failed.
package supervisor

import (
	"context"
	"time"

	"github.com/google/uuid"

	"eoscraper/pkg/checkpoint"
	"eoscraper/pkg/config"
	"eoscraper/pkg/crawler"
	errs "eoscraper/pkg/errors"
	"eoscraper/pkg/logger"
	"eoscraper/pkg/retry"
	"eoscraper/pkg/source"
)

// State is a supervisor lifecycle state
type State string

const (
	StateStarting  State = "starting"
	StateRunning   State = "running"
	StateSuccess   State = "success"
	StateCancelled State = "cancelled"
	StateFailed    State = "failed"
)

// Status is the final outcome of a supervised run
type Status string

const (
	StatusSuccess          Status = "success"
	StatusCancelled        Status = "cancelled"
	StatusRetriesExhausted Status = "retries_exhausted"
	StatusFatal            Status = "fatal"
)

// ExitCode maps a status to the process exit code
func (s Status) ExitCode() int {
	switch s {
	case StatusSuccess:
		return 0
	case StatusCancelled:
		return 130
	case StatusRetriesExhausted:
		return 1
	default:
		return 2
	}
}

// Opener starts a new RecordSource for one cycle
type Opener func(ctx context.Context) (source.RecordSource, error)

// Policy is the restart policy
type Policy struct {
	Mode                   string
	MaxConsecutiveFailures int
	Backoff                retry.BackoffStrategy
}

// PolicyFromConfig builds a Policy from the supervisor configuration
func PolicyFromConfig(cfg config.SupervisorConfig) (Policy, error) {
	backoff, err := retry.NewStrategy(cfg.BackoffStrategy, cfg.Backoff, cfg.MaxBackoff)
	if err != nil {
		return Policy{}, errs.Wrap(errs.ErrorTypeConfiguration, "supervisor policy", err)
	}
	return Policy{
		Mode:                   cfg.Mode,
		MaxConsecutiveFailures: cfg.MaxConsecutiveFailures,
		Backoff:                backoff,
	}, nil
}

// Outcome describes how a supervised run ended
type Outcome struct {
	RunID               string
	Status              Status
	Attempts            int
	ConsecutiveFailures int
	Err                 error
	Summary             crawler.Summary
	Checkpoint          string
}

// ExitCode is the process exit code for the outcome
func (o Outcome) ExitCode() int {
	return o.Status.ExitCode()
}

// Supervisor restarts crawl sessions until the policy says stop
type Supervisor struct {
	open   Opener
	store  *checkpoint.Store
	opts   crawler.Options
	policy Policy
	logger logger.Logger

	wait  func(ctx context.Context, d time.Duration) error
	state State
}

// New creates a supervisor
func New(open Opener, store *checkpoint.Store, opts crawler.Options, policy Policy, log logger.Logger) *Supervisor {
	if log == nil {
		log = logger.GetLogger()
	}
	if policy.MaxConsecutiveFailures <= 0 {
		policy.MaxConsecutiveFailures = 1
	}
	if policy.Backoff == nil {
		policy.Backoff = &retry.ConstantBackoff{}
	}
	if policy.Mode == "" {
		policy.Mode = config.ModeUntilComplete
	}
	return &Supervisor{
		open:   open,
		store:  store,
		opts:   opts,
		policy: policy,
		logger: log.WithField("component", "supervisor"),
		wait:   retry.Wait,
	}
}

// State returns the current lifecycle state
func (s *Supervisor) State() State {
	return s.state
}

func (s *Supervisor) enter(st State, fields map[string]interface{}) {
	s.state = st
	s.logger.DebugWithFields("Supervisor state "+string(st), fields)
}

// Run supervises crawl cycles until success, cancellation, a fatal error or
// an exhausted restart budget. It never panics on a cycle failure; the final
// error is carried in the Outcome.
func (s *Supervisor) Run(ctx context.Context) Outcome {
	out := Outcome{
		RunID:      uuid.NewString(),
		Checkpoint: s.store.Location(),
	}
	log := s.logger.WithField("run_id", out.RunID)

	finish := func(st State, status Status) Outcome {
		s.enter(st, map[string]interface{}{"status": string(status)})
		out.Status = status
		return out
	}

	for {
		if err := ctx.Err(); err != nil {
			out.Err = err
			log.Warn("Interrupted, stopping")
			return finish(StateCancelled, StatusCancelled)
		}

		out.Attempts++
		log.InfoWithFields("Starting crawl attempt", map[string]interface{}{
			"attempt":              out.Attempts,
			"consecutive_failures": out.ConsecutiveFailures,
			"mode":                 s.policy.Mode,
		})

		sum, err := s.cycle(ctx)
		out.Summary = sum

		if err == nil {
			out.Err = nil
			out.ConsecutiveFailures = 0
			s.policy.Backoff.Reset()
			logger.LogAttempt(log, out.Attempts, 0, string(StatusSuccess), nil)
			log.InfoWithFields("Harvest completed", map[string]interface{}{
				"checkpoint": out.Checkpoint,
				"records":    sum.Harvested,
			})

			if s.policy.Mode != config.ModeContinuous {
				return finish(StateSuccess, StatusSuccess)
			}
			s.enter(StateSuccess, nil)
			if werr := s.wait(ctx, s.policy.Backoff.NextDelay(1)); werr != nil {
				out.Err = werr
				return finish(StateCancelled, StatusCancelled)
			}
			continue
		}

		out.Err = err
		if ctx.Err() != nil {
			log.Warn("Interrupted, stopping")
			return finish(StateCancelled, StatusCancelled)
		}

		// Only our own context decides a stop. A cancellation reported
		// while it is live comes from inside the source.
		kind := errs.Classify(err)
		if kind == errs.ErrorTypeCancelled {
			kind = errs.ErrorTypeTransient
		}

		if errs.IsFatal(kind) {
			log.WithError(err).ErrorWithFields("Fatal error, not restarting", map[string]interface{}{
				"error_type": string(kind),
			})
			return finish(StateFailed, StatusFatal)
		}

		out.ConsecutiveFailures++
		s.enter(StateFailed, map[string]interface{}{"error_type": string(kind)})
		logger.LogAttempt(log, out.Attempts, out.ConsecutiveFailures, string(kind), err)

		if s.policy.Mode == config.ModeOnce || out.ConsecutiveFailures >= s.policy.MaxConsecutiveFailures {
			log.WithError(err).ErrorWithFields("Giving up after consecutive failures", map[string]interface{}{
				"consecutive_failures": out.ConsecutiveFailures,
				"records":              s.store.Len(),
			})
			return finish(StateFailed, StatusRetriesExhausted)
		}

		delay := s.policy.Backoff.NextDelay(out.ConsecutiveFailures)
		log.InfoWithFields("Waiting before restart", map[string]interface{}{"delay": delay})
		if werr := s.wait(ctx, delay); werr != nil {
			out.Err = werr
			return finish(StateCancelled, StatusCancelled)
		}
	}
}

// cycle opens a source, runs one session and releases the source exactly
// once, whatever the session returned
func (s *Supervisor) cycle(ctx context.Context) (sum crawler.Summary, err error) {
	s.enter(StateStarting, nil)
	src, err := s.open(ctx)
	if err != nil {
		return sum, err
	}
	if src == nil {
		return sum, errs.New(errs.ErrorTypeUnknown, "open source", "opener returned no source")
	}
	defer func() {
		if cerr := src.Close(); cerr != nil {
			s.logger.WithError(cerr).Warn("Failed to release record source")
		}
	}()

	s.enter(StateRunning, nil)
	return crawler.NewSession(src, s.store, s.opts, s.logger).Run(ctx)
}
