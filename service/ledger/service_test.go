package ledger

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/sigil-dev/actgate/internal/clock"
	mproposal "github.com/sigil-dev/actgate/model/proposal"
	"github.com/sigil-dev/actgate/policy"
	"github.com/sigil-dev/actgate/service/dao"
	pmemory "github.com/sigil-dev/actgate/service/dao/proposal/memory"
)

func newProposal() *mproposal.Proposal {
	return &mproposal.Proposal{
		ActionKind:     "send-message",
		Target:         "contact/alex",
		Parameters:     map[string]interface{}{"body": "lunch tomorrow?"},
		RiskTier:       mproposal.RiskLow,
		Rationale:      "reply to an open thread",
		CapabilityName: "printer",
	}
}

func TestService_SubmitAndDecide(t *testing.T) {
	svc := New()
	ctx := context.Background()

	id, err := svc.Submit(ctx, newProposal())
	assert.NoError(t, err)
	assert.NotEmpty(t, id)

	stored, err := svc.Get(ctx, id)
	assert.NoError(t, err)
	assert.Equal(t, mproposal.StatusPending, stored.Status)

	decided, err := svc.Decide(ctx, id, DecisionApprove, "sam", "looks fine")
	assert.NoError(t, err)
	assert.Equal(t, mproposal.StatusApproved, decided.Status)
	assert.Equal(t, mproposal.DeciderHuman, decided.DecidedBy)
	assert.Equal(t, "sam", decided.Approver)
}

func TestService_SubmitValidation(t *testing.T) {
	svc := New()
	ctx := context.Background()

	testCases := []struct {
		description string
		mutate      func(p *mproposal.Proposal)
	}{
		{description: "missing action kind", mutate: func(p *mproposal.Proposal) { p.ActionKind = "" }},
		{description: "missing capability", mutate: func(p *mproposal.Proposal) { p.CapabilityName = "" }},
		{description: "unparseable target", mutate: func(p *mproposal.Proposal) { p.Target = "///" }},
		{description: "unknown risk tier", mutate: func(p *mproposal.Proposal) { p.RiskTier = "extreme" }},
	}
	for _, testCase := range testCases {
		prop := newProposal()
		testCase.mutate(prop)
		_, err := svc.Submit(ctx, prop)
		assert.ErrorIs(t, err, ErrInvalidProposal, testCase.description)
	}
}

func TestService_SubmitDuplicateReturnsExistingID(t *testing.T) {
	svc := New()
	ctx := context.Background()

	first, err := svc.Submit(ctx, newProposal())
	assert.NoError(t, err)

	second, err := svc.Submit(ctx, newProposal())
	assert.ErrorIs(t, err, ErrDuplicateProposal)
	assert.Equal(t, first, second)

	// the duplicate left the ledger unchanged
	pending, err := svc.ListPending(ctx)
	assert.NoError(t, err)
	assert.Len(t, pending, 1)
}

func TestService_SubmitDuplicateSurvivesRestart(t *testing.T) {
	store := pmemory.New()
	ctx := context.Background()

	first := New(WithStore(store))
	firstID, err := first.Submit(ctx, newProposal())
	assert.NoError(t, err)

	// a fresh ledger over the same store has an empty tracker, but the
	// fingerprint is persisted on the proposal
	restarted := New(WithStore(store))
	secondID, err := restarted.Submit(ctx, newProposal())
	assert.ErrorIs(t, err, ErrDuplicateProposal)
	assert.Equal(t, firstID, secondID)

	all, err := store.List(ctx)
	assert.NoError(t, err)
	assert.Len(t, all, 1)

	// completion before the restart still yields a cross-referenced replay
	_, err = first.Decide(ctx, firstID, DecisionApprove, "sam", "")
	assert.NoError(t, err)
	_, err = first.Claim(ctx, firstID)
	assert.NoError(t, err)
	_, err = first.MarkExecuted(ctx, firstID, 1)
	assert.NoError(t, err)

	replayed := New(WithStore(store))
	replayID, err := replayed.Submit(ctx, newProposal())
	assert.NoError(t, err)
	assert.NotEqual(t, firstID, replayID)

	stored, err := replayed.Get(ctx, replayID)
	assert.NoError(t, err)
	assert.Equal(t, firstID, stored.CrossRef)
}

func TestService_ReplayAfterCompletionCrossReferences(t *testing.T) {
	svc := New()
	ctx := context.Background()

	first, err := svc.Submit(ctx, newProposal())
	assert.NoError(t, err)
	_, err = svc.Decide(ctx, first, DecisionApprove, "sam", "")
	assert.NoError(t, err)
	_, err = svc.Claim(ctx, first)
	assert.NoError(t, err)
	_, err = svc.MarkExecuted(ctx, first, 1)
	assert.NoError(t, err)

	// the same submission again is a new proposal pointing at the outcome
	second, err := svc.Submit(ctx, newProposal())
	assert.NoError(t, err)
	assert.NotEqual(t, first, second)

	replayed, err := svc.Get(ctx, second)
	assert.NoError(t, err)
	assert.Equal(t, first, replayed.CrossRef)
	assert.Equal(t, mproposal.StatusPending, replayed.Status)
}

func TestService_DecideIsIdempotentPerVerdict(t *testing.T) {
	svc := New()
	ctx := context.Background()

	id, err := svc.Submit(ctx, newProposal())
	assert.NoError(t, err)

	_, err = svc.Decide(ctx, id, DecisionApprove, "sam", "")
	assert.NoError(t, err)

	// same verdict again is a no-op
	again, err := svc.Decide(ctx, id, DecisionApprove, "sam", "")
	assert.NoError(t, err)
	assert.Equal(t, mproposal.StatusApproved, again.Status)

	// the opposite verdict is an invalid transition
	_, err = svc.Decide(ctx, id, DecisionReject, "sam", "changed my mind")
	assert.ErrorIs(t, err, mproposal.ErrInvalidTransition)
}

func TestService_DecideOnExecutedFails(t *testing.T) {
	svc := New()
	ctx := context.Background()

	id, err := svc.Submit(ctx, newProposal())
	assert.NoError(t, err)
	_, err = svc.Decide(ctx, id, DecisionApprove, "sam", "")
	assert.NoError(t, err)
	_, err = svc.Claim(ctx, id)
	assert.NoError(t, err)
	_, err = svc.MarkExecuted(ctx, id, 1)
	assert.NoError(t, err)

	_, err = svc.Decide(ctx, id, DecisionReject, "sam", "")
	assert.ErrorIs(t, err, mproposal.ErrInvalidTransition)
}

func TestService_ClaimRequiresApproved(t *testing.T) {
	svc := New()
	ctx := context.Background()

	id, err := svc.Submit(ctx, newProposal())
	assert.NoError(t, err)

	_, err = svc.Claim(ctx, id)
	assert.ErrorIs(t, err, dao.ErrConflict)
}

func TestService_ClaimAssignsIdempotencyKeyOnce(t *testing.T) {
	svc := New()
	ctx := context.Background()

	id, err := svc.Submit(ctx, newProposal())
	assert.NoError(t, err)
	_, err = svc.Decide(ctx, id, DecisionApprove, "sam", "")
	assert.NoError(t, err)

	claimed, err := svc.Claim(ctx, id)
	assert.NoError(t, err)
	assert.NotEmpty(t, claimed.IdempotencyKey)

	// a second concurrent claim loses the race
	_, err = svc.Claim(ctx, id)
	assert.ErrorIs(t, err, dao.ErrConflict)
}

func TestService_AutoApproval(t *testing.T) {
	autoPolicy := &policy.Policy{Rules: []*policy.Rule{
		{
			ActionKind:   "send-message",
			RiskTier:     mproposal.RiskLow,
			MaxWords:     200,
			AllowTargets: []string{"contact"},
			DenyKeywords: []string{"invoice", "payment"},
		},
	}}
	svc := New(WithPolicy(autoPolicy))
	ctx := context.Background()

	id, err := svc.Submit(ctx, newProposal())
	assert.NoError(t, err)

	approved, err := svc.Get(ctx, id)
	assert.NoError(t, err)
	assert.Equal(t, mproposal.StatusApproved, approved.Status)
	assert.Equal(t, mproposal.DeciderAuto, approved.DecidedBy)

	// a deny keyword keeps the proposal pending for a human
	flagged := newProposal()
	flagged.Parameters = map[string]interface{}{"body": "please wire the payment today"}
	flaggedID, err := svc.Submit(ctx, flagged)
	assert.NoError(t, err)

	held, err := svc.Get(ctx, flaggedID)
	assert.NoError(t, err)
	assert.Equal(t, mproposal.StatusPending, held.Status)
}

func TestService_SubmitBareTargetAutoApproved(t *testing.T) {
	autoPolicy := &policy.Policy{Rules: []*policy.Rule{
		{
			ActionKind:   "send-message",
			RiskTier:     mproposal.RiskLow,
			AllowTargets: []string{"a@example.com"},
		},
	}}
	svc := New(WithPolicy(autoPolicy))
	ctx := context.Background()

	prop := newProposal()
	prop.Target = "a@example.com"
	id, err := svc.Submit(ctx, prop)
	assert.NoError(t, err)

	approved, err := svc.Get(ctx, id)
	assert.NoError(t, err)
	assert.Equal(t, mproposal.StatusApproved, approved.Status)
	assert.Equal(t, mproposal.DeciderAuto, approved.DecidedBy)
}

func TestService_ListPendingFlagsOverdue(t *testing.T) {
	base := time.Date(2026, 8, 28, 9, 0, 0, 0, time.UTC)
	current := base
	original := clock.NowFunc
	clock.NowFunc = func() time.Time { return current }
	defer func() { clock.NowFunc = original }()

	svc := New(WithOverdueAfter(time.Hour))
	ctx := context.Background()

	stale, err := svc.Submit(ctx, newProposal())
	assert.NoError(t, err)

	current = base.Add(2 * time.Hour)
	fresh := newProposal()
	fresh.Parameters = map[string]interface{}{"body": "a different message"}
	freshID, err := svc.Submit(ctx, fresh)
	assert.NoError(t, err)

	pending, err := svc.ListPending(ctx)
	assert.NoError(t, err)
	assert.Len(t, pending, 2)

	byID := map[string]*Pending{}
	for _, item := range pending {
		byID[item.ID] = item
	}
	assert.True(t, byID[stale].Overdue)
	assert.False(t, byID[freshID].Overdue)
}
