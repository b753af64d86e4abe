// Package gateway drives approved proposals to a terminal state. It is the
// only component that invokes capability backends, and it only ever runs
// what it has atomically claimed from the approved status. Every attempt is
// written to the audit log before the proposal advances; an execution whose
// audit record cannot be appended is never reported as executed.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/sigil-dev/actgate/internal/clock"
	maudit "github.com/sigil-dev/actgate/model/audit"
	mproposal "github.com/sigil-dev/actgate/model/proposal"
	"github.com/sigil-dev/actgate/model/proposal/target"
	"github.com/sigil-dev/actgate/model/types"
	"github.com/sigil-dev/actgate/service/dao"
	"github.com/sigil-dev/actgate/service/executor"
	"github.com/sigil-dev/actgate/service/ledger"
	"github.com/sigil-dev/actgate/service/notify"
	"github.com/sigil-dev/actgate/tracing"
)

// Config represents gateway configuration.
type Config struct {
	// PollingInterval is how often the gateway checks for approved
	// proposals.
	PollingInterval time.Duration `json:"pollingInterval" yaml:"pollingInterval"`

	// AttemptTimeout is the upper bound for a single capability invocation.
	AttemptTimeout time.Duration `json:"attemptTimeout" yaml:"attemptTimeout"`

	// MaxAttempts is the total attempt budget per proposal, first try
	// included.
	MaxAttempts int `json:"maxAttempts" yaml:"maxAttempts"`

	// BackoffBase is the delay before the first retry; it doubles per
	// subsequent retry.
	BackoffBase time.Duration `json:"backoffBase" yaml:"backoffBase"`

	// SerializedClasses lists target resource classes whose executions must
	// not overlap and must keep MinSpacing between starts.
	SerializedClasses []string `json:"serializedClasses,omitempty" yaml:"serializedClasses,omitempty"`

	// MinSpacing is the minimum gap between executions within a serialized
	// class.
	MinSpacing time.Duration `json:"minSpacing" yaml:"minSpacing"`
}

// DefaultConfig returns the default gateway configuration.
func DefaultConfig() Config {
	return Config{
		PollingInterval: time.Second,
		AttemptTimeout:  30 * time.Second,
		MaxAttempts:     3,
		BackoffBase:     500 * time.Millisecond,
		MinSpacing:      time.Second,
	}
}

func (c *Config) init() {
	defaults := DefaultConfig()
	if c.PollingInterval <= 0 {
		c.PollingInterval = defaults.PollingInterval
	}
	if c.AttemptTimeout <= 0 {
		c.AttemptTimeout = defaults.AttemptTimeout
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = defaults.MaxAttempts
	}
	if c.BackoffBase <= 0 {
		c.BackoffBase = defaults.BackoffBase
	}
	if c.MinSpacing <= 0 {
		c.MinSpacing = defaults.MinSpacing
	}
}

// AuditLog is the slice of the audit service the gateway needs: appending
// one record per execution attempt.
type AuditLog interface {
	Append(ctx context.Context, record *maudit.Record) (string, error)
}

// Service is the execution gateway.
type Service struct {
	config     Config
	ledger     *ledger.Service
	executor   executor.Service
	audit      AuditLog
	notifier   *notify.Service
	serialized map[string]bool

	lastRunMu sync.Mutex
	lastRun   map[string]time.Time

	shutdownCh   chan struct{}
	shutdownOnce sync.Once
}

// New creates a gateway service.
func New(ledgerService *ledger.Service, executorService executor.Service, auditService AuditLog, notifier *notify.Service, config Config) *Service {
	config.init()
	serialized := make(map[string]bool, len(config.SerializedClasses))
	for _, class := range config.SerializedClasses {
		serialized[class] = true
	}
	return &Service{
		config:     config,
		ledger:     ledgerService,
		executor:   executorService,
		audit:      auditService,
		notifier:   notifier,
		serialized: serialized,
		lastRun:    make(map[string]time.Time),
		shutdownCh: make(chan struct{}),
	}
}

// Start recovers interrupted executions and then runs the polling loop
// until ctx is cancelled or Shutdown is called.
func (s *Service) Start(ctx context.Context) error {
	if err := s.Recover(ctx); err != nil {
		return err
	}
	ticker := time.NewTicker(s.config.PollingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.shutdownCh:
			return nil
		case <-ticker.C:
			if err := s.dispatch(ctx); err != nil {
				log.Printf("gateway: dispatch error: %v", err)
			}
		}
	}
}

// Shutdown stops the polling loop.
func (s *Service) Shutdown() {
	s.shutdownOnce.Do(func() {
		close(s.shutdownCh)
	})
}

// Recover re-dispatches proposals a previous process left in executing.
// Their stored idempotency key is reused so backends can collapse the
// repeated attempt, which keeps delivery at-least-once with at most one
// observable side effect per idempotent backend.
func (s *Service) Recover(ctx context.Context) error {
	interrupted, err := s.ledger.ListByStatus(ctx, mproposal.StatusExecuting)
	if err != nil {
		return err
	}
	for _, prop := range interrupted {
		s.process(ctx, prop)
	}
	return nil
}

// dispatch claims and executes approved proposals. Claims that lose a race
// are skipped silently; serialized resource classes are deferred to a later
// tick until their minimum spacing has elapsed.
func (s *Service) dispatch(ctx context.Context) error {
	approved, err := s.ledger.ListByStatus(ctx, mproposal.StatusApproved)
	if err != nil {
		return err
	}
	for _, candidate := range approved {
		if !s.admit(candidate) {
			continue
		}
		claimed, err := s.ledger.Claim(ctx, candidate.ID)
		if err != nil {
			if errors.Is(err, dao.ErrConflict) || errors.Is(err, dao.ErrNotFound) {
				continue
			}
			return err
		}
		s.process(ctx, claimed)
	}
	return nil
}

// admit enforces the per-class spacing for serialized resource classes and
// records the dispatch time of admitted proposals.
func (s *Service) admit(prop *mproposal.Proposal) bool {
	class := target.Class(prop.Target)
	if class == "" || !s.serialized[class] {
		return true
	}
	s.lastRunMu.Lock()
	defer s.lastRunMu.Unlock()
	if last, ok := s.lastRun[class]; ok && clock.Since(last) < s.config.MinSpacing {
		return false
	}
	s.lastRun[class] = clock.Now()
	return true
}

// process drives one claimed proposal to executed or failed. The attempt
// counter lives on the proposal, so a recovered proposal resumes with the
// budget it had left.
func (s *Service) process(ctx context.Context, prop *mproposal.Proposal) {
	for prop.Attempts < s.config.MaxAttempts {
		attempt := prop.Attempts + 1

		execErr := s.attempt(ctx, prop, attempt)
		prop.Attempts = attempt
		if execErr == nil {
			if _, err := s.ledger.MarkExecuted(ctx, prop.ID, attempt); err != nil {
				log.Printf("gateway: failed to finalise proposal %s: %v", prop.ID, err)
			}
			return
		}
		if !retryable(execErr) {
			s.fail(ctx, prop, attempt, execErr)
			return
		}
		if err := s.ledger.RecordAttempt(ctx, prop.ID, attempt, execErr); err != nil {
			log.Printf("gateway: failed to record attempt for proposal %s: %v", prop.ID, err)
		}
		if attempt < s.config.MaxAttempts {
			if !s.backoff(ctx, attempt) {
				return
			}
			continue
		}
		s.fail(ctx, prop, attempt, fmt.Errorf("retries exhausted after %d attempts: %w", attempt, execErr))
		return
	}
	s.fail(ctx, prop, prop.Attempts, fmt.Errorf("retries exhausted after %d attempts", prop.Attempts))
}

// attempt performs one capability invocation and appends its audit record.
// A successful invocation whose record cannot be appended is reported as a
// failed attempt: the audit trail gates completion.
func (s *Service) attempt(ctx context.Context, prop *mproposal.Proposal, attempt int) error {
	attemptCtx, cancel := context.WithTimeout(ctx, s.config.AttemptTimeout)
	defer cancel()

	attemptCtx, span := tracing.StartSpan(attemptCtx, "gateway.execute", "CLIENT")
	span.WithAttributes(map[string]string{
		"proposal.id":     prop.ID,
		"proposal.action": prop.ActionKind,
		"proposal.target": prop.Target,
	})

	started := clock.Now()
	_, execErr := s.executor.Execute(attemptCtx, prop)
	duration := clock.Since(started)
	tracing.EndSpan(span, execErr)

	record := s.newRecord(prop, attempt, duration, execErr)
	if _, auditErr := s.audit.Append(ctx, record); auditErr != nil {
		if execErr != nil {
			return fmt.Errorf("audit append failed (%v) after execution error: %w", auditErr, execErr)
		}
		return fmt.Errorf("%w: execution succeeded but audit append failed: %v", ErrAuditRejected, auditErr)
	}
	return execErr
}

func (s *Service) newRecord(prop *mproposal.Proposal, attempt int, duration time.Duration, execErr error) *maudit.Record {
	record := &maudit.Record{
		Timestamp:      clock.Now(),
		ActionKind:     prop.ActionKind,
		Actor:          string(prop.DecidedBy),
		Target:         prop.Target,
		Parameters:     prop.Parameters,
		Approver:       prop.Approver,
		CapabilityName: prop.CapabilityName,
		DurationMs:     duration.Milliseconds(),
		ProposalID:     prop.ID,
		Attempt:        attempt,
	}
	switch prop.DecidedBy {
	case mproposal.DeciderAuto:
		record.ApprovalStatus = maudit.ApprovalAutoApproved
	case mproposal.DeciderHuman:
		record.ApprovalStatus = maudit.ApprovalApproved
	default:
		record.ApprovalStatus = maudit.ApprovalNotRequired
	}
	if execErr != nil {
		record.Result = maudit.ResultFailure
		record.Error = execErr.Error()
		record.ErrorCode = errorCode(execErr)
	} else {
		record.Result = maudit.ResultSuccess
	}
	return record
}

// fail moves the proposal to failed and publishes a notification so the
// outcome is never silently dropped.
func (s *Service) fail(ctx context.Context, prop *mproposal.Proposal, attempts int, cause error) {
	if _, err := s.ledger.MarkFailed(ctx, prop.ID, attempts, cause); err != nil {
		log.Printf("gateway: failed to mark proposal %s failed: %v", prop.ID, err)
	}
	if s.notifier == nil {
		return
	}
	message := fmt.Sprintf("execution of %s on %s failed: %v", prop.ActionKind, prop.Target, cause)
	if err := s.notifier.ExecutionFailed(ctx, prop.ID, message); err != nil {
		log.Printf("gateway: failed to publish notification for proposal %s: %v", prop.ID, err)
	}
}

// backoff sleeps the exponential retry delay, honouring cancellation.
func (s *Service) backoff(ctx context.Context, attempt int) bool {
	delay := s.config.BackoffBase << (attempt - 1)
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	case <-s.shutdownCh:
		return false
	}
}

// retryable classifies an attempt error. Context deadline expiry counts as
// a transient timeout.
func retryable(err error) bool {
	if types.IsTransient(err) {
		return true
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	if errors.Is(err, ErrAuditRejected) {
		return true
	}
	return false
}

func errorCode(err error) string {
	switch {
	case errors.Is(err, types.ErrUnavailable):
		return "unavailable"
	case errors.Is(err, types.ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, types.ErrRateLimited):
		return "rate_limited"
	case errors.Is(err, types.ErrRejected):
		return "rejected"
	case errors.Is(err, types.ErrMalformed):
		return "malformed"
	default:
		return "error"
	}
}
