package audit

import (
	"context"
	"os"
	"path"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/viant/afs"

	maudit "github.com/sigil-dev/actgate/model/audit"
	"github.com/sigil-dev/actgate/service/audit/sanitize"
)

func newTestService(t *testing.T) (*Service, string) {
	tempDir, err := os.MkdirTemp("/tmp", "audit-test")
	if err != nil {
		t.Fatalf("failed to create temp directory: %v", err)
	}
	t.Cleanup(func() { _ = os.RemoveAll(tempDir) })

	svc, err := New(Config{BaseURL: tempDir, RetentionDays: 90})
	assert.NoError(t, err)
	return svc, tempDir
}

func testRecord(proposalID string, ts time.Time) *maudit.Record {
	return &maudit.Record{
		Timestamp:      ts,
		ActionKind:     "send-message",
		Actor:          "gateway",
		Target:         "email/a@example.com",
		Parameters:     map[string]interface{}{"subject": "Hi", "api_key": "sk-AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA"},
		ApprovalStatus: maudit.ApprovalApproved,
		Result:         maudit.ResultSuccess,
		CapabilityName: "message/printer",
		ProposalID:     proposalID,
		Attempt:        1,
	}
}

func TestService_Append(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	day := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	entryID, err := svc.Append(ctx, testRecord("p-1", day))
	assert.NoError(t, err)
	assert.NotEmpty(t, entryID)

	records, err := svc.Query(ctx, "2026-03-01")
	assert.NoError(t, err)
	assert.Len(t, records, 1)
	assert.EqualValues(t, sanitize.Marker, records[0].Parameters["api_key"])
	assert.EqualValues(t, "Hi", records[0].Parameters["subject"])
	assert.EqualValues(t, 1, records[0].SequenceNumber)
}

func TestService_Append_sequenceMonotonicPerDay(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	day1 := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	day2 := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)

	for i := 0; i < 3; i++ {
		_, err := svc.Append(ctx, testRecord("p-1", day1))
		assert.NoError(t, err)
	}
	_, err := svc.Append(ctx, testRecord("p-2", day2))
	assert.NoError(t, err)

	records, err := svc.Query(ctx, "2026-03-01")
	assert.NoError(t, err)
	assert.Len(t, records, 3)
	for i, record := range records {
		assert.EqualValues(t, i+1, record.SequenceNumber)
	}

	records, err = svc.Query(ctx, "2026-03-02")
	assert.NoError(t, err)
	assert.Len(t, records, 1)
	assert.EqualValues(t, 1, records[0].SequenceNumber)
}

func TestService_Append_sequenceSurvivesRestart(t *testing.T) {
	svc, baseDir := newTestService(t)
	ctx := context.Background()
	day := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	_, err := svc.Append(ctx, testRecord("p-1", day))
	assert.NoError(t, err)
	_, err = svc.Append(ctx, testRecord("p-1", day))
	assert.NoError(t, err)

	// a fresh service over the same directory resumes the counter
	restarted, err := New(Config{BaseURL: baseDir})
	assert.NoError(t, err)
	_, err = restarted.Append(ctx, testRecord("p-1", day))
	assert.NoError(t, err)

	records, err := restarted.Query(ctx, "2026-03-01")
	assert.NoError(t, err)
	assert.Len(t, records, 3)
	assert.EqualValues(t, 3, records[2].SequenceNumber)
}

func TestService_Query_corruptLineIsolated(t *testing.T) {
	svc, baseDir := newTestService(t)
	ctx := context.Background()
	day := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	_, err := svc.Append(ctx, testRecord("p-1", day))
	assert.NoError(t, err)

	// corrupt the partition by hand
	partition := path.Join(baseDir, "2026-03-01.jsonl")
	data, err := os.ReadFile(partition)
	assert.NoError(t, err)
	assert.NoError(t, os.WriteFile(partition, append(data, []byte("{not json\n")...), 0o644))

	records, err := svc.Query(ctx, "2026-03-01")
	assert.NoError(t, err)
	assert.Len(t, records, 1)

	// the corruption event landed in the recovery partition
	recovery, err := svc.Query(ctx, "2026-03-01-recovery")
	assert.NoError(t, err)
	assert.Len(t, recovery, 1)
	assert.EqualValues(t, "corrupt_partition", recovery[0].ErrorCode)
}

func TestService_RetentionSweep(t *testing.T) {
	svc, baseDir := newTestService(t)
	ctx := context.Background()
	now := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)

	oldDay := now.AddDate(0, 0, -120)
	freshDay := now.AddDate(0, 0, -5)

	_, err := svc.Append(ctx, testRecord("p-old", oldDay))
	assert.NoError(t, err)

	financial := testRecord("p-fin", oldDay)
	financial.Tags = []string{maudit.TagFinancial}
	_, err = svc.Append(ctx, financial)
	assert.NoError(t, err)

	_, err = svc.Append(ctx, testRecord("p-new", freshDay))
	assert.NoError(t, err)

	archived, err := svc.RetentionSweep(ctx, now)
	assert.NoError(t, err)
	assert.EqualValues(t, 1, archived)

	oldPartition := oldDay.Format(partitionLayout)

	// live copy removed, archive written
	exists, _ := afs.New().Exists(ctx, path.Join(baseDir, oldPartition+".jsonl"))
	assert.False(t, exists)
	exists, _ = afs.New().Exists(ctx, path.Join(baseDir, "archive", oldPartition+".jsonl.gz"))
	assert.True(t, exists)

	// financial record survives in the retained partition
	retained, err := svc.Query(ctx, oldPartition+retainedSuffix)
	assert.NoError(t, err)
	assert.Len(t, retained, 1)
	assert.EqualValues(t, "p-fin", retained[0].ProposalID)

	// fresh partition untouched
	records, err := svc.Query(ctx, freshDay.Format(partitionLayout))
	assert.NoError(t, err)
	assert.Len(t, records, 1)
}

func TestService_Append_rejectsNil(t *testing.T) {
	svc, _ := newTestService(t)
	_, err := svc.Append(context.Background(), nil)
	assert.ErrorIs(t, err, ErrNilRecord)
}
