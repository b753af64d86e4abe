package proposal

import (
	"fmt"
	"time"

	"github.com/sigil-dev/actgate/internal/clock"
)

// RiskTier classifies how dangerous a proposed action is.
type RiskTier string

const (
	RiskLow    RiskTier = "low"
	RiskMedium RiskTier = "medium"
	RiskHigh   RiskTier = "high"
)

// Decider identifies what kind of actor decided a proposal.
type Decider string

const (
	DeciderHuman Decider = "human"
	DeciderAuto  Decider = "auto"
)

// Proposal represents a unit of work with a potential external side effect.
// It is created pending, decided by a human or the auto-approval policy and
// then claimed and driven to a terminal state by the execution gateway.
type Proposal struct {
	ID             string                 `json:"id"`
	ActionKind     string                 `json:"actionKind"`
	Target         string                 `json:"target"`
	Parameters     map[string]interface{} `json:"parameters,omitempty"`
	RiskTier       RiskTier               `json:"riskTier"`
	Rationale      string                 `json:"rationale,omitempty"`
	OriginRef      string                 `json:"originRef,omitempty"`
	CapabilityName string                 `json:"capabilityName"`
	DedupKey       string                 `json:"dedupKey,omitempty"`

	// CrossRef points at a prior proposal with the same dedup key, set when
	// a duplicate or replayed submission is detected.
	CrossRef string `json:"crossRef,omitempty"`

	// IdempotencyKey is fixed at the first gateway claim and reused verbatim
	// on recovery re-dispatch so that backends can deduplicate attempts.
	IdempotencyKey string `json:"idempotencyKey,omitempty"`

	Status        Status     `json:"status"`
	DecidedBy     Decider    `json:"decidedBy,omitempty"`
	Approver      string     `json:"approver,omitempty"`
	DecidedReason string     `json:"decidedReason,omitempty"`
	CreatedAt     time.Time  `json:"createdAt"`
	DecidedAt     *time.Time `json:"decidedAt,omitempty"`
	ClaimedAt     *time.Time `json:"claimedAt,omitempty"`
	ExecutedAt    *time.Time `json:"executedAt,omitempty"`
	Attempts      int        `json:"attempts,omitempty"`
	LastError     string     `json:"lastError,omitempty"`
}

// transitionTo guards every mutation with the lifecycle table.
func (p *Proposal) transitionTo(next Status) error {
	if !p.Status.CanTransition(next) {
		return fmt.Errorf("%w: %s -> %s (proposal %s)", ErrInvalidTransition, p.Status, next, p.ID)
	}
	p.Status = next
	return nil
}

// Approve moves a pending proposal to approved.
func (p *Proposal) Approve(by Decider, approver, reason string) error {
	if err := p.transitionTo(StatusApproved); err != nil {
		return err
	}
	now := clock.Now()
	p.DecidedBy = by
	p.Approver = approver
	p.DecidedReason = reason
	p.DecidedAt = &now
	return nil
}

// Reject moves a pending proposal to rejected.
func (p *Proposal) Reject(by Decider, approver, reason string) error {
	if err := p.transitionTo(StatusRejected); err != nil {
		return err
	}
	now := clock.Now()
	p.DecidedBy = by
	p.Approver = approver
	p.DecidedReason = reason
	p.DecidedAt = &now
	return nil
}

// MarkExecuting records a gateway claim. The idempotency key is assigned
// once; recovery re-claims keep the original key.
func (p *Proposal) MarkExecuting(idempotencyKey string) error {
	if err := p.transitionTo(StatusExecuting); err != nil {
		return err
	}
	now := clock.Now()
	p.ClaimedAt = &now
	if p.IdempotencyKey == "" {
		p.IdempotencyKey = idempotencyKey
	}
	return nil
}

// MarkExecuted records a successful execution.
func (p *Proposal) MarkExecuted() error {
	if err := p.transitionTo(StatusExecuted); err != nil {
		return err
	}
	now := clock.Now()
	p.ExecutedAt = &now
	p.LastError = ""
	return nil
}

// MarkFailed records a fatal or retry-exhausted execution.
func (p *Proposal) MarkFailed(err error) error {
	if tErr := p.transitionTo(StatusFailed); tErr != nil {
		return tErr
	}
	now := clock.Now()
	p.ExecutedAt = &now
	if err != nil {
		p.LastError = err.Error()
	}
	return nil
}

// Overdue reports whether a still pending proposal has waited longer than
// threshold for a decision.
func (p *Proposal) Overdue(now time.Time, threshold time.Duration) bool {
	return p.Status == StatusPending && now.Sub(p.CreatedAt) > threshold
}

// Clone creates a deep copy so callers can mutate without affecting the
// stored instance.
func (p *Proposal) Clone() *Proposal {
	if p == nil {
		return nil
	}
	clone := *p
	if p.Parameters != nil {
		clone.Parameters = make(map[string]interface{}, len(p.Parameters))
		for k, v := range p.Parameters {
			clone.Parameters[k] = v
		}
	}
	return &clone
}
