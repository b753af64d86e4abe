package gateway

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/sigil-dev/actgate/internal/clock"
	maudit "github.com/sigil-dev/actgate/model/audit"
	mproposal "github.com/sigil-dev/actgate/model/proposal"
	"github.com/sigil-dev/actgate/model/types"
	"github.com/sigil-dev/actgate/service/executor"
	"github.com/sigil-dev/actgate/service/ledger"
	qmem "github.com/sigil-dev/actgate/service/messaging/memory"
	"github.com/sigil-dev/actgate/service/notify"
)

type stubExecutor struct {
	mu      sync.Mutex
	calls   int
	invoke  func(prop *mproposal.Proposal) error
	effects map[string]int // side effects keyed by idempotency key
}

func (s *stubExecutor) Execute(_ context.Context, prop *mproposal.Proposal) (interface{}, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.invoke != nil {
		return nil, s.invoke(prop)
	}
	return nil, nil
}

var _ executor.Service = (*stubExecutor)(nil)

type recordingAudit struct {
	mu      sync.Mutex
	records []*maudit.Record
	fail    bool
}

func (r *recordingAudit) Append(_ context.Context, record *maudit.Record) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail {
		return "", errors.New("disk full")
	}
	r.records = append(r.records, record.Clone())
	return record.ProposalID, nil
}

func (r *recordingAudit) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.records)
}

func testConfig() Config {
	return Config{
		PollingInterval: time.Millisecond,
		AttemptTimeout:  time.Second,
		MaxAttempts:     3,
		BackoffBase:     time.Millisecond,
		MinSpacing:      time.Millisecond,
	}
}

func submitApproved(t *testing.T, ledgerService *ledger.Service) string {
	t.Helper()
	ctx := context.Background()
	id, err := ledgerService.Submit(ctx, &mproposal.Proposal{
		ActionKind:     "send-message",
		Target:         "contact/alex",
		Parameters:     map[string]interface{}{"body": "hello"},
		RiskTier:       mproposal.RiskLow,
		CapabilityName: "printer",
	})
	assert.NoError(t, err)
	_, err = ledgerService.Decide(ctx, id, ledger.DecisionApprove, "sam", "")
	assert.NoError(t, err)
	return id
}

func TestService_DispatchExecutesApproved(t *testing.T) {
	ledgerService := ledger.New()
	auditLog := &recordingAudit{}
	exec := &stubExecutor{}
	svc := New(ledgerService, exec, auditLog, nil, testConfig())
	ctx := context.Background()

	id := submitApproved(t, ledgerService)
	assert.NoError(t, svc.dispatch(ctx))

	final, err := ledgerService.Get(ctx, id)
	assert.NoError(t, err)
	assert.Equal(t, mproposal.StatusExecuted, final.Status)
	assert.Equal(t, 1, final.Attempts)
	assert.NotEmpty(t, final.IdempotencyKey)
	assert.Equal(t, 1, auditLog.count())
	assert.Equal(t, maudit.ResultSuccess, auditLog.records[0].Result)
	assert.Equal(t, maudit.ApprovalApproved, auditLog.records[0].ApprovalStatus)
}

func TestService_TransientFailureExhaustsThreeAttempts(t *testing.T) {
	ledgerService := ledger.New()
	auditLog := &recordingAudit{}
	exec := &stubExecutor{invoke: func(*mproposal.Proposal) error { return types.ErrUnavailable }}
	notifier := notify.New()
	svc := New(ledgerService, exec, auditLog, notifier, testConfig())
	ctx := context.Background()

	id := submitApproved(t, ledgerService)
	assert.NoError(t, svc.dispatch(ctx))

	final, err := ledgerService.Get(ctx, id)
	assert.NoError(t, err)
	assert.Equal(t, mproposal.StatusFailed, final.Status)
	assert.Equal(t, 3, final.Attempts)
	assert.NotEmpty(t, final.LastError)

	// one audit record per attempt, attempts numbered 1..3
	assert.Equal(t, 3, auditLog.count())
	for i, record := range auditLog.records {
		assert.Equal(t, i+1, record.Attempt)
		assert.Equal(t, maudit.ResultFailure, record.Result)
		assert.Equal(t, "unavailable", record.ErrorCode)
	}

	queue := notifier.Queue().(*qmem.Queue[notify.Notification])
	assert.Equal(t, 1, queue.Size())
}

func TestService_FatalFailureStopsAfterOneAttempt(t *testing.T) {
	ledgerService := ledger.New()
	auditLog := &recordingAudit{}
	exec := &stubExecutor{invoke: func(*mproposal.Proposal) error { return types.ErrRejected }}
	svc := New(ledgerService, exec, auditLog, nil, testConfig())
	ctx := context.Background()

	id := submitApproved(t, ledgerService)
	assert.NoError(t, svc.dispatch(ctx))

	final, err := ledgerService.Get(ctx, id)
	assert.NoError(t, err)
	assert.Equal(t, mproposal.StatusFailed, final.Status)
	assert.Equal(t, 1, final.Attempts)
	assert.Equal(t, 1, auditLog.count())
	assert.Equal(t, "rejected", auditLog.records[0].ErrorCode)
}

func TestService_AuditFailureBlocksExecuted(t *testing.T) {
	ledgerService := ledger.New()
	auditLog := &recordingAudit{fail: true}
	exec := &stubExecutor{}
	svc := New(ledgerService, exec, auditLog, nil, testConfig())
	ctx := context.Background()

	id := submitApproved(t, ledgerService)
	assert.NoError(t, svc.dispatch(ctx))

	// the executions succeeded but none of them is reported as executed
	final, err := ledgerService.Get(ctx, id)
	assert.NoError(t, err)
	assert.Equal(t, mproposal.StatusFailed, final.Status)
	assert.Contains(t, final.LastError, "audit")
}

func TestService_RecoverySingleSideEffect(t *testing.T) {
	ledgerService := ledger.New()
	auditLog := &recordingAudit{}
	exec := &stubExecutor{effects: map[string]int{}}
	exec.invoke = func(prop *mproposal.Proposal) error {
		// an idempotent backend performs the side effect once per key
		if exec.effects[prop.IdempotencyKey] == 0 {
			exec.effects[prop.IdempotencyKey]++
		}
		return nil
	}
	ctx := context.Background()

	id := submitApproved(t, ledgerService)

	// the first process claims and performs the side effect, then crashes
	// before recording the outcome
	claimed, err := ledgerService.Claim(ctx, id)
	assert.NoError(t, err)
	_, err = exec.Execute(ctx, claimed)
	assert.NoError(t, err)

	// a fresh gateway recovers the interrupted execution with the stored key
	svc := New(ledgerService, exec, auditLog, nil, testConfig())
	assert.NoError(t, svc.Recover(ctx))

	final, err := ledgerService.Get(ctx, id)
	assert.NoError(t, err)
	assert.Equal(t, mproposal.StatusExecuted, final.Status)
	assert.Equal(t, claimed.IdempotencyKey, final.IdempotencyKey)
	assert.Equal(t, 1, exec.effects[claimed.IdempotencyKey])
}

func TestService_SerializedClassSpacing(t *testing.T) {
	base := time.Date(2026, 8, 28, 9, 0, 0, 0, time.UTC)
	current := base
	original := clock.NowFunc
	clock.NowFunc = func() time.Time { return current }
	defer func() { clock.NowFunc = original }()

	ledgerService := ledger.New()
	auditLog := &recordingAudit{}
	exec := &stubExecutor{}
	config := testConfig()
	config.SerializedClasses = []string{"contact"}
	config.MinSpacing = time.Hour
	svc := New(ledgerService, exec, auditLog, nil, config)
	ctx := context.Background()

	submitApproved(t, ledgerService)
	second, err := ledgerService.Submit(ctx, &mproposal.Proposal{
		ActionKind:     "send-message",
		Target:         "contact/jordan",
		Parameters:     map[string]interface{}{"body": "other"},
		RiskTier:       mproposal.RiskLow,
		CapabilityName: "printer",
	})
	assert.NoError(t, err)
	_, err = ledgerService.Decide(ctx, second, ledger.DecisionApprove, "sam", "")
	assert.NoError(t, err)

	// within the spacing window only one of the two may run
	assert.NoError(t, svc.dispatch(ctx))
	executed, err := ledgerService.ListByStatus(ctx, mproposal.StatusExecuted)
	assert.NoError(t, err)
	assert.Len(t, executed, 1)

	current = base.Add(2 * time.Hour)
	assert.NoError(t, svc.dispatch(ctx))
	executed, err = ledgerService.ListByStatus(ctx, mproposal.StatusExecuted)
	assert.NoError(t, err)
	assert.Len(t, executed, 2)
}
