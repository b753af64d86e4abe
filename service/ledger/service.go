// Package ledger owns the approval lifecycle: submission with dedup and
// auto-approval, human decisions, and the atomic claim the execution
// gateway uses to take an approved proposal. All status movement goes
// through the proposal store's check-and-set so two racing callers can
// never advance the same proposal twice.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/sigil-dev/actgate/extension"
	"github.com/sigil-dev/actgate/internal/clock"
	"github.com/sigil-dev/actgate/internal/idgen"
	mproposal "github.com/sigil-dev/actgate/model/proposal"
	"github.com/sigil-dev/actgate/model/proposal/target"
	"github.com/sigil-dev/actgate/model/types"
	"github.com/sigil-dev/actgate/policy"
	"github.com/sigil-dev/actgate/service/dao"
	dproposal "github.com/sigil-dev/actgate/service/dao/proposal"
	pmemory "github.com/sigil-dev/actgate/service/dao/proposal/memory"
	"github.com/sigil-dev/actgate/service/messaging"
	"github.com/sigil-dev/actgate/service/notify"
)

// DefaultOverdueAfter is how long a proposal may sit pending before it is
// flagged overdue. Overdue proposals are surfaced, never auto-rejected.
const DefaultOverdueAfter = 24 * time.Hour

// Decision is a human approval verdict.
type Decision string

const (
	DecisionApprove Decision = "approve"
	DecisionReject  Decision = "reject"
)

// Event kinds published on the ledger event queue.
const (
	EventSubmitted = "proposal-submitted"
	EventDecided   = "proposal-decided"
)

// Event describes a ledger state change for downstream consumers.
type Event struct {
	Kind       string           `json:"kind"`
	ProposalID string           `json:"proposalId"`
	Status     mproposal.Status `json:"status"`
	At         time.Time        `json:"at"`
}

// Pending pairs a pending proposal with its overdue flag.
type Pending struct {
	*mproposal.Proposal
	Overdue bool
}

// Service is the approval ledger.
type Service struct {
	store        dproposal.Store
	capabilities *extension.Capabilities
	policy       *policy.Policy
	dedup        *Tracker
	events       messaging.Queue[Event]
	notifier     *notify.Service
	overdueAfter time.Duration

	// notified is not persisted: overdue alerts are at-least-once and a
	// restart may repeat them
	notifiedMu sync.Mutex
	notified   map[string]bool
}

// Option customises the ledger service.
type Option func(*Service)

// WithStore overrides the proposal store (defaults to in-memory).
func WithStore(store dproposal.Store) Option {
	return func(s *Service) { s.store = store }
}

// WithCapabilities enables submission validation against the capability
// registry.
func WithCapabilities(capabilities *extension.Capabilities) Option {
	return func(s *Service) { s.capabilities = capabilities }
}

// WithPolicy sets the default auto-approval policy.
func WithPolicy(p *policy.Policy) Option {
	return func(s *Service) { s.policy = p }
}

// WithEvents publishes ledger events to the supplied queue.
func WithEvents(queue messaging.Queue[Event]) Option {
	return func(s *Service) { s.events = queue }
}

// WithNotifier wires overdue-approval notifications.
func WithNotifier(notifier *notify.Service) Option {
	return func(s *Service) { s.notifier = notifier }
}

// WithOverdueAfter overrides the overdue threshold.
func WithOverdueAfter(threshold time.Duration) Option {
	return func(s *Service) { s.overdueAfter = threshold }
}

// WithDedupTTL overrides the dedup fingerprint TTL.
func WithDedupTTL(ttl time.Duration) Option {
	return func(s *Service) { s.dedup = NewTracker(ttl) }
}

// New creates a ledger service.
func New(options ...Option) *Service {
	ret := &Service{
		overdueAfter: DefaultOverdueAfter,
		notified:     make(map[string]bool),
	}
	for _, opt := range options {
		opt(ret)
	}
	if ret.store == nil {
		ret.store = pmemory.New()
	}
	if ret.dedup == nil {
		ret.dedup = NewTracker(DefaultDedupTTL)
	}
	return ret
}

// Submit validates and persists a new proposal. A submission whose dedup
// fingerprint matches an in-flight proposal returns the existing id with
// ErrDuplicateProposal and leaves the ledger unchanged. A fingerprint match
// against a completed proposal creates a fresh proposal cross-referenced to
// the prior outcome. Auto-approval runs exactly once, at submission.
func (s *Service) Submit(ctx context.Context, prop *mproposal.Proposal) (string, error) {
	if prop == nil {
		return "", fmt.Errorf("%w: nil proposal", ErrInvalidProposal)
	}
	candidate := prop.Clone()
	if err := s.validate(candidate); err != nil {
		return "", err
	}

	key := candidate.DedupKey
	if key == "" {
		fingerprint, err := Fingerprint(candidate.ActionKind, candidate.Target, candidate.Parameters)
		if err != nil {
			return "", fmt.Errorf("%w: %v", ErrInvalidProposal, err)
		}
		key = fingerprint
	}
	prior, err := s.priorByDedupKey(ctx, key)
	if err != nil {
		return "", err
	}
	if prior != nil {
		if !prior.Status.Terminal() {
			s.dedup.Observe(key, prior.ID)
			return prior.ID, fmt.Errorf("%w: matches in-flight proposal %s", ErrDuplicateProposal, prior.ID)
		}
		candidate.CrossRef = prior.ID
	}

	candidate.ID = idgen.New()
	candidate.CreatedAt = clock.Now()
	candidate.Status = mproposal.StatusPending
	candidate.DedupKey = key

	effective := policy.FromContext(ctx)
	if effective == nil {
		effective = s.policy
	}
	if effective.Evaluate(candidate) == policy.OutcomeApproved {
		if err := candidate.Approve(mproposal.DeciderAuto, "policy", "matched auto-approval rule"); err != nil {
			return "", err
		}
	}

	if err := s.store.Save(ctx, candidate); err != nil {
		return "", err
	}
	s.dedup.Observe(key, candidate.ID)
	s.publish(ctx, EventSubmitted, candidate)

	prop.ID = candidate.ID
	prop.Status = candidate.Status
	prop.DedupKey = candidate.DedupKey
	prop.CrossRef = candidate.CrossRef
	return candidate.ID, nil
}

// priorByDedupKey resolves the proposal owning a dedup fingerprint. The
// tracker is consulted first; on a miss the store is scanned, since DedupKey
// is persisted on every proposal and the tracker does not survive a restart.
// A non-terminal owner always wins; otherwise the most recent terminal one.
func (s *Service) priorByDedupKey(ctx context.Context, key string) (*mproposal.Proposal, error) {
	if priorID, ok := s.dedup.Lookup(key); ok {
		prior, err := s.store.Load(ctx, priorID)
		if err == nil {
			return prior, nil
		}
		if !errors.Is(err, dao.ErrNotFound) {
			return nil, err
		}
	}
	items, err := s.store.List(ctx)
	if err != nil {
		return nil, err
	}
	var prior *mproposal.Proposal
	for _, item := range items {
		if item.DedupKey != key {
			continue
		}
		if !item.Status.Terminal() {
			return item, nil
		}
		if prior == nil || item.CreatedAt.After(prior.CreatedAt) {
			prior = item
		}
	}
	return prior, nil
}

// validate applies structural checks and, when a capability registry is
// present, verifies the named capability exposes the action kind.
func (s *Service) validate(prop *mproposal.Proposal) error {
	if prop.ActionKind == "" {
		return fmt.Errorf("%w: action kind was empty", ErrInvalidProposal)
	}
	if prop.CapabilityName == "" {
		return fmt.Errorf("%w: capability name was empty", ErrInvalidProposal)
	}
	if _, err := target.ParseString(prop.Target); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidProposal, err)
	}
	switch prop.RiskTier {
	case mproposal.RiskLow, mproposal.RiskMedium, mproposal.RiskHigh:
	default:
		return fmt.Errorf("%w: unknown risk tier %q", ErrInvalidProposal, prop.RiskTier)
	}
	if s.capabilities != nil {
		capability := s.capabilities.Lookup(prop.CapabilityName)
		if capability == nil {
			return fmt.Errorf("%w: unknown capability %q", ErrInvalidProposal, prop.CapabilityName)
		}
		if _, err := capability.Method(prop.ActionKind); err != nil {
			return fmt.Errorf("%w: capability %q does not handle %q", ErrInvalidProposal, prop.CapabilityName, prop.ActionKind)
		}
		if declarer, ok := capability.(types.ParameterDeclarer); ok {
			for _, name := range declarer.Parameters(prop.ActionKind).Required() {
				if value, present := prop.Parameters[name]; !present || value == nil {
					return fmt.Errorf("%w: required parameter %q is missing", ErrInvalidProposal, name)
				}
			}
		}
	}
	return nil
}

// Decide applies a human verdict to a pending proposal. Re-applying the
// decision a proposal already carries is a no-op; any other movement off a
// decided or terminal proposal fails with ErrInvalidTransition.
func (s *Service) Decide(ctx context.Context, id string, decision Decision, approver, reason string) (*mproposal.Proposal, error) {
	var to mproposal.Status
	switch decision {
	case DecisionApprove:
		to = mproposal.StatusApproved
	case DecisionReject:
		to = mproposal.StatusRejected
	default:
		return nil, fmt.Errorf("%w: unknown decision %q", ErrInvalidProposal, decision)
	}

	updated, err := s.store.UpdateStatus(ctx, id, mproposal.StatusPending, to, func(p *mproposal.Proposal) error {
		now := clock.Now()
		p.DecidedBy = mproposal.DeciderHuman
		p.Approver = approver
		p.DecidedReason = reason
		p.DecidedAt = &now
		return nil
	})
	if err == nil {
		s.publish(ctx, EventDecided, updated)
		return updated, nil
	}
	if !errors.Is(err, dao.ErrConflict) {
		return nil, err
	}
	current, loadErr := s.store.Load(ctx, id)
	if loadErr != nil {
		return nil, loadErr
	}
	if current.Status == to {
		return current, nil
	}
	return nil, fmt.Errorf("%w: proposal %s is %s", mproposal.ErrInvalidTransition, id, current.Status)
}

// Claim atomically moves an approved proposal to executing, assigning its
// idempotency key on the first claim only. A proposal that is not approved
// at claim time yields dao.ErrConflict.
func (s *Service) Claim(ctx context.Context, id string) (*mproposal.Proposal, error) {
	return s.store.UpdateStatus(ctx, id, mproposal.StatusApproved, mproposal.StatusExecuting, func(p *mproposal.Proposal) error {
		now := clock.Now()
		p.ClaimedAt = &now
		if p.IdempotencyKey == "" {
			p.IdempotencyKey = idgen.New()
		}
		return nil
	})
}

// RecordAttempt persists the attempt counter and last error of a proposal
// that stays executing between retries.
func (s *Service) RecordAttempt(ctx context.Context, id string, attempts int, attemptErr error) error {
	_, err := s.store.UpdateStatus(ctx, id, mproposal.StatusExecuting, mproposal.StatusExecuting, func(p *mproposal.Proposal) error {
		p.Attempts = attempts
		if attemptErr != nil {
			p.LastError = attemptErr.Error()
		}
		return nil
	})
	return err
}

// MarkExecuted finalises a successful execution.
func (s *Service) MarkExecuted(ctx context.Context, id string, attempts int) (*mproposal.Proposal, error) {
	return s.store.UpdateStatus(ctx, id, mproposal.StatusExecuting, mproposal.StatusExecuted, func(p *mproposal.Proposal) error {
		now := clock.Now()
		p.ExecutedAt = &now
		p.Attempts = attempts
		p.LastError = ""
		return nil
	})
}

// MarkFailed finalises a fatal or retry-exhausted execution.
func (s *Service) MarkFailed(ctx context.Context, id string, attempts int, cause error) (*mproposal.Proposal, error) {
	return s.store.UpdateStatus(ctx, id, mproposal.StatusExecuting, mproposal.StatusFailed, func(p *mproposal.Proposal) error {
		now := clock.Now()
		p.ExecutedAt = &now
		p.Attempts = attempts
		if cause != nil {
			p.LastError = cause.Error()
		}
		return nil
	})
}

// Get returns a proposal by id.
func (s *Service) Get(ctx context.Context, id string) (*mproposal.Proposal, error) {
	return s.store.Load(ctx, id)
}

// ListByStatus returns proposals in the given status, oldest first.
func (s *Service) ListByStatus(ctx context.Context, status mproposal.Status) ([]*mproposal.Proposal, error) {
	items, err := s.store.List(ctx, &dao.Parameter{Name: "Status", Value: string(status)})
	if err != nil {
		return nil, err
	}
	sort.Slice(items, func(i, j int) bool {
		return items[i].CreatedAt.Before(items[j].CreatedAt)
	})
	return items, nil
}

// ListPending returns the approval inbox: pending proposals oldest first,
// each flagged overdue once it has waited past the overdue threshold.
func (s *Service) ListPending(ctx context.Context) ([]*Pending, error) {
	items, err := s.ListByStatus(ctx, mproposal.StatusPending)
	if err != nil {
		return nil, err
	}
	now := clock.Now()
	out := make([]*Pending, 0, len(items))
	for _, item := range items {
		out = append(out, &Pending{Proposal: item, Overdue: item.Overdue(now, s.overdueAfter)})
	}
	return out, nil
}

// ScanOverdue publishes one overdue-approval notification per newly overdue
// proposal and returns how many were published.
func (s *Service) ScanOverdue(ctx context.Context) (int, error) {
	if s.notifier == nil {
		return 0, nil
	}
	pending, err := s.ListPending(ctx)
	if err != nil {
		return 0, err
	}
	published := 0
	for _, item := range pending {
		if !item.Overdue {
			continue
		}
		s.notifiedMu.Lock()
		seen := s.notified[item.ID]
		if !seen {
			s.notified[item.ID] = true
		}
		s.notifiedMu.Unlock()
		if seen {
			continue
		}
		message := fmt.Sprintf("proposal %s (%s on %s) has waited over %s for a decision", item.ID, item.ActionKind, item.Target, s.overdueAfter)
		if err := s.notifier.OverdueApproval(ctx, item.ID, message); err != nil {
			return published, err
		}
		published++
	}
	return published, nil
}

// publish emits a ledger event; event delivery is best effort and never
// blocks the ledger operation that triggered it.
func (s *Service) publish(ctx context.Context, kind string, prop *mproposal.Proposal) {
	if s.events == nil {
		return
	}
	_ = s.events.Publish(ctx, &Event{
		Kind:       kind,
		ProposalID: prop.ID,
		Status:     prop.Status,
		At:         clock.Now(),
	})
}
