package fs

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"

	mproposal "github.com/sigil-dev/actgate/model/proposal"
	"github.com/sigil-dev/actgate/service/dao"
)

func newTestStore(t *testing.T) *Service {
	tempDir, err := os.MkdirTemp("/tmp", "ledger-test")
	if err != nil {
		t.Fatalf("failed to create temp directory: %v", err)
	}
	t.Cleanup(func() { _ = os.RemoveAll(tempDir) })

	svc, err := New(tempDir)
	assert.NoError(t, err)
	return svc
}

func TestService_SaveLoadDelete(t *testing.T) {
	svc := newTestStore(t)
	ctx := context.Background()

	p := &mproposal.Proposal{
		ID:         "p1",
		ActionKind: "send-message",
		Target:     "contact/alex",
		Parameters: map[string]interface{}{"body": "hello"},
		Status:     mproposal.StatusPending,
	}
	assert.NoError(t, svc.Save(ctx, p))

	loaded, err := svc.Load(ctx, "p1")
	assert.NoError(t, err)
	assert.Equal(t, p.ActionKind, loaded.ActionKind)
	assert.Equal(t, p.Parameters["body"], loaded.Parameters["body"])

	// the document lands under the base directory, where List reads
	all, err := svc.List(ctx)
	assert.NoError(t, err)
	assert.Len(t, all, 1)

	_, err = svc.Load(ctx, "missing")
	assert.ErrorIs(t, err, dao.ErrNotFound)

	assert.NoError(t, svc.Delete(ctx, "p1"))
	_, err = svc.Load(ctx, "p1")
	assert.ErrorIs(t, err, dao.ErrNotFound)
}

func TestService_SurvivesReopen(t *testing.T) {
	tempDir, err := os.MkdirTemp("/tmp", "ledger-test")
	if err != nil {
		t.Fatalf("failed to create temp directory: %v", err)
	}
	defer func() { _ = os.RemoveAll(tempDir) }()
	ctx := context.Background()

	first, err := New(tempDir)
	assert.NoError(t, err)
	assert.NoError(t, first.Save(ctx, &mproposal.Proposal{ID: "p1", Status: mproposal.StatusExecuting, IdempotencyKey: "key-1"}))

	// a fresh store over the same directory sees the interrupted execution
	second, err := New(tempDir)
	assert.NoError(t, err)
	executing, err := second.List(ctx, &dao.Parameter{Name: "Status", Value: string(mproposal.StatusExecuting)})
	assert.NoError(t, err)
	assert.Len(t, executing, 1)
	assert.Equal(t, "key-1", executing[0].IdempotencyKey)
}

func TestService_UpdateStatusCAS(t *testing.T) {
	svc := newTestStore(t)
	ctx := context.Background()

	assert.NoError(t, svc.Save(ctx, &mproposal.Proposal{ID: "p1", Status: mproposal.StatusApproved}))

	updated, err := svc.UpdateStatus(ctx, "p1", mproposal.StatusApproved, mproposal.StatusExecuting, func(p *mproposal.Proposal) error {
		p.IdempotencyKey = "key-1"
		return nil
	})
	assert.NoError(t, err)
	assert.Equal(t, mproposal.StatusExecuting, updated.Status)

	// the moved status is durable, so a second claim conflicts
	_, err = svc.UpdateStatus(ctx, "p1", mproposal.StatusApproved, mproposal.StatusExecuting, nil)
	assert.ErrorIs(t, err, dao.ErrConflict)

	stored, err := svc.Load(ctx, "p1")
	assert.NoError(t, err)
	assert.Equal(t, "key-1", stored.IdempotencyKey)
}
