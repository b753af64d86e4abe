// Package notify fans execution failures and overdue approvals out to a
// queue a dashboard or chat surface can drain. Nothing in the core drops an
// item silently: exhausted retries and stale pending proposals both end up
// here.
package notify

import (
	"context"
	"time"

	"github.com/sigil-dev/actgate/internal/clock"
	"github.com/sigil-dev/actgate/service/messaging"
	qmem "github.com/sigil-dev/actgate/service/messaging/memory"
)

// Notification kinds.
const (
	KindExecutionFailed = "execution-failed"
	KindOverdueApproval = "overdue-approval"
)

// Notification is one item requiring human attention.
type Notification struct {
	Kind       string    `json:"kind"`
	ProposalID string    `json:"proposalId"`
	Message    string    `json:"message"`
	CreatedAt  time.Time `json:"createdAt"`
}

// Service publishes notifications to its queue.
type Service struct {
	queue messaging.Queue[Notification]
}

// Option customises the notify service.
type Option func(*Service)

// WithQueue overrides the underlying queue (e.g. with a filesystem-backed
// one so notifications survive restarts).
func WithQueue(queue messaging.Queue[Notification]) Option {
	return func(s *Service) {
		s.queue = queue
	}
}

// New creates a notify service, defaulting to an in-memory queue.
func New(options ...Option) *Service {
	ret := &Service{}
	for _, opt := range options {
		opt(ret)
	}
	if ret.queue == nil {
		ret.queue = qmem.NewQueue[Notification](qmem.DefaultConfig())
	}
	return ret
}

// ExecutionFailed publishes a failed-execution notification.
func (s *Service) ExecutionFailed(ctx context.Context, proposalID, message string) error {
	return s.queue.Publish(ctx, &Notification{
		Kind:       KindExecutionFailed,
		ProposalID: proposalID,
		Message:    message,
		CreatedAt:  clock.Now(),
	})
}

// OverdueApproval publishes an overdue-approval notification.
func (s *Service) OverdueApproval(ctx context.Context, proposalID, message string) error {
	return s.queue.Publish(ctx, &Notification{
		Kind:       KindOverdueApproval,
		ProposalID: proposalID,
		Message:    message,
		CreatedAt:  clock.Now(),
	})
}

// Queue exposes the underlying queue for consumers.
func (s *Service) Queue() messaging.Queue[Notification] {
	return s.queue
}
