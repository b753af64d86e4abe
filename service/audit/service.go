// Package audit implements the append-only, day-partitioned execution
// history. Every execution attempt produces exactly one record; records are
// sanitized on the way in and an append that cannot be verified as
// sanitized is refused, which in turn blocks the triggering execution from
// completing.
package audit

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/viant/afs"
	"github.com/viant/afs/file"
	"github.com/viant/afs/url"

	"github.com/sigil-dev/actgate/internal/clock"
	"github.com/sigil-dev/actgate/internal/idgen"
	maudit "github.com/sigil-dev/actgate/model/audit"
	"github.com/sigil-dev/actgate/service/audit/sanitize"
)

// partitionLayout is the calendar-day partition name format.
const partitionLayout = "2006-01-02"

// recoverySuffix marks partitions that hold corruption events salvaged from
// an unreadable sibling partition.
const recoverySuffix = "-recovery"

// retainedSuffix marks partitions holding retention-exempt records.
const retainedSuffix = "-retained"

var (
	// ErrUnsanitized is returned when a record's parameters do not reach a
	// sanitization fixed point; the append is refused.
	ErrUnsanitized = errors.New("audit: record failed sanitization verification")

	// ErrNilRecord is returned on a nil append.
	ErrNilRecord = errors.New("audit: nil record")
)

// Config holds audit log settings.
type Config struct {
	// BaseURL is the directory holding day partition files.
	BaseURL string `json:"baseURL" yaml:"baseURL"`

	// ArchiveURL receives gzip-compressed expired partitions; defaults to
	// BaseURL/archive.
	ArchiveURL string `json:"archiveURL" yaml:"archiveURL"`

	// RetentionDays is the live retention window. Default 90.
	RetentionDays int `json:"retentionDays" yaml:"retentionDays"`
}

// DefaultConfig returns the default audit configuration.
func DefaultConfig() Config {
	return Config{RetentionDays: 90}
}

// Service is the audit log writer/reader. Sequence numbers are assigned by
// a single writer per process; all mutation happens under one mutex.
type Service struct {
	config Config
	fs     afs.Service

	mu  sync.Mutex
	seq map[string]int64 // partition name -> last assigned sequence
}

// Option customises the audit service.
type Option func(*Service)

// WithFS overrides the file service (used by tests with mem:// URLs).
func WithFS(fs afs.Service) Option {
	return func(s *Service) {
		s.fs = fs
	}
}

// New creates an audit log service rooted at the configured base URL.
func New(config Config, options ...Option) (*Service, error) {
	if config.BaseURL == "" {
		return nil, fmt.Errorf("audit base URL cannot be empty")
	}
	if config.RetentionDays <= 0 {
		config.RetentionDays = DefaultConfig().RetentionDays
	}
	if config.ArchiveURL == "" {
		config.ArchiveURL = url.Join(config.BaseURL, "archive")
	}
	ret := &Service{
		config: config,
		seq:    make(map[string]int64),
	}
	for _, opt := range options {
		opt(ret)
	}
	if ret.fs == nil {
		ret.fs = afs.New()
	}
	return ret, nil
}

// Append sanitizes, sequences and persists one execution attempt record,
// returning the assigned entry id. The stored record never contains raw
// denylisted values; when that cannot be verified the append fails and the
// caller must not report the execution as completed.
func (s *Service) Append(ctx context.Context, record *maudit.Record) (string, error) {
	if record == nil {
		return "", ErrNilRecord
	}
	stored := record.Clone()
	stored.Parameters = sanitize.Sanitize(stored.Parameters)
	if !sanitize.Verified(stored.Parameters) {
		return "", ErrUnsanitized
	}
	if stored.EntryID == "" {
		stored.EntryID = idgen.New()
	}
	if stored.Timestamp.IsZero() {
		stored.Timestamp = clock.Now()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	partition := stored.Timestamp.Format(partitionLayout)
	next, err := s.nextSequence(ctx, partition)
	if err != nil {
		return "", err
	}
	stored.SequenceNumber = next
	if err := s.appendLine(ctx, partition, stored); err != nil {
		// roll the counter back so the sequence stays dense
		s.seq[partition] = next - 1
		return "", err
	}
	// reflect the sanitized payload back to the caller
	record.EntryID = stored.EntryID
	record.SequenceNumber = stored.SequenceNumber
	record.Parameters = stored.Parameters
	return stored.EntryID, nil
}

// Query returns all records of one day partition in sequence order. A
// corrupt line is isolated: a corruption event is appended to the
// partition's -recovery sibling and reading continues.
func (s *Service) Query(ctx context.Context, partition string) ([]*maudit.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.readPartition(ctx, partition)
}

// QueryRange returns records of all partitions between from and to
// (inclusive, calendar days).
func (s *Service) QueryRange(ctx context.Context, from, to time.Time) ([]*maudit.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*maudit.Record
	for day := from.Truncate(24 * time.Hour); !day.After(to); day = day.AddDate(0, 0, 1) {
		records, err := s.readPartition(ctx, day.Format(partitionLayout))
		if err != nil {
			return nil, err
		}
		out = append(out, records...)
	}
	return out, nil
}

// RetentionSweep archives partitions older than the retention window into
// gzip-compressed storage and removes the live copies. Records tagged
// financial are first rewritten into a -retained partition which the sweep
// never touches. Returns the number of archived partitions.
func (s *Service) RetentionSweep(ctx context.Context, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := now.AddDate(0, 0, -s.config.RetentionDays)
	objects, err := s.fs.List(ctx, s.config.BaseURL)
	if err != nil {
		return 0, fmt.Errorf("failed to list audit partitions: %w", err)
	}

	archived := 0
	for _, object := range objects {
		if object.IsDir() || !strings.HasSuffix(object.Name(), ".jsonl") {
			continue
		}
		partition := strings.TrimSuffix(object.Name(), ".jsonl")
		if strings.HasSuffix(partition, retainedSuffix) {
			continue
		}
		day, err := time.Parse(partitionLayout, strings.TrimSuffix(partition, recoverySuffix))
		if err != nil {
			continue
		}
		if !day.Before(cutoff) {
			continue
		}
		if err := s.archivePartition(ctx, partition, object.URL()); err != nil {
			return archived, err
		}
		archived++
	}
	return archived, nil
}

// archivePartition moves one expired partition into compressed storage,
// preserving financial records in a live -retained partition first.
func (s *Service) archivePartition(ctx context.Context, partition, sourceURL string) error {
	records, err := s.readPartition(ctx, partition)
	if err != nil {
		return err
	}
	var exempt []*maudit.Record
	for _, record := range records {
		if record.HasTag(maudit.TagFinancial) {
			exempt = append(exempt, record)
		}
	}
	for _, record := range exempt {
		if err := s.appendLine(ctx, partition+retainedSuffix, record); err != nil {
			return fmt.Errorf("failed to retain financial records of %s: %w", partition, err)
		}
	}

	data, err := s.fs.DownloadWithURL(ctx, sourceURL)
	if err != nil {
		return fmt.Errorf("failed to read partition %s: %w", partition, err)
	}
	var compressed bytes.Buffer
	writer := gzip.NewWriter(&compressed)
	if _, err := writer.Write(data); err != nil {
		return fmt.Errorf("failed to compress partition %s: %w", partition, err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("failed to compress partition %s: %w", partition, err)
	}
	archiveURL := url.Join(s.config.ArchiveURL, partition+".jsonl.gz")
	if err := s.fs.Upload(ctx, archiveURL, file.DefaultFileOsMode, &compressed); err != nil {
		return fmt.Errorf("failed to write archive %s: %w", archiveURL, err)
	}
	if err := s.fs.Delete(ctx, sourceURL); err != nil {
		return fmt.Errorf("failed to remove archived partition %s: %w", partition, err)
	}
	delete(s.seq, partition)
	return nil
}

// nextSequence returns the next monotonic sequence number of a partition,
// recovering the counter from disk after a restart.
func (s *Service) nextSequence(ctx context.Context, partition string) (int64, error) {
	if last, ok := s.seq[partition]; ok {
		s.seq[partition] = last + 1
		return last + 1, nil
	}
	records, err := s.readPartition(ctx, partition)
	if err != nil {
		return 0, err
	}
	var last int64
	for _, record := range records {
		if record.SequenceNumber > last {
			last = record.SequenceNumber
		}
	}
	s.seq[partition] = last + 1
	return last + 1, nil
}

// appendLine appends one JSON line to a partition file. Callers hold s.mu.
func (s *Service) appendLine(ctx context.Context, partition string, record *maudit.Record) error {
	line, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal audit record: %w", err)
	}
	partitionURL := s.partitionURL(partition)
	var existing []byte
	if ok, _ := s.fs.Exists(ctx, partitionURL); ok {
		existing, err = s.fs.DownloadWithURL(ctx, partitionURL)
		if err != nil {
			return fmt.Errorf("failed to read partition %s: %w", partition, err)
		}
	}
	var buffer bytes.Buffer
	buffer.Write(existing)
	buffer.Write(line)
	buffer.WriteByte('\n')
	if err := s.fs.Upload(ctx, partitionURL, file.DefaultFileOsMode, &buffer); err != nil {
		return fmt.Errorf("failed to append to partition %s: %w", partition, err)
	}
	return nil
}

// readPartition parses one partition file; corrupt lines are reported into
// the -recovery sibling rather than failing the read. Callers hold s.mu.
func (s *Service) readPartition(ctx context.Context, partition string) ([]*maudit.Record, error) {
	partitionURL := s.partitionURL(partition)
	ok, err := s.fs.Exists(ctx, partitionURL)
	if err != nil {
		return nil, fmt.Errorf("failed to check partition %s: %w", partition, err)
	}
	if !ok {
		return nil, nil
	}
	data, err := s.fs.DownloadWithURL(ctx, partitionURL)
	if err != nil {
		return nil, fmt.Errorf("failed to read partition %s: %w", partition, err)
	}

	var out []*maudit.Record
	for i, line := range bytes.Split(data, []byte{'\n'}) {
		line = bytes.TrimSpace(line)
		if len(line) == 0 {
			continue
		}
		record := &maudit.Record{}
		if err := json.Unmarshal(line, record); err != nil {
			if rErr := s.recordCorruption(ctx, partition, i+1, err); rErr != nil {
				return nil, rErr
			}
			continue
		}
		out = append(out, record)
	}
	return out, nil
}

// recordCorruption logs a parse failure into the recovery partition so the
// event is never silently swallowed. Callers hold s.mu.
func (s *Service) recordCorruption(ctx context.Context, partition string, lineNo int, cause error) error {
	if strings.HasSuffix(partition, recoverySuffix) {
		// corrupt recovery partition: give up on isolation, surface the error
		return fmt.Errorf("audit recovery partition %s is corrupt at line %d: %w", partition, lineNo, cause)
	}
	recovery := partition + recoverySuffix
	event := &maudit.Record{
		EntryID:    idgen.New(),
		Timestamp:  clock.Now(),
		ActionKind: "audit-recovery",
		Actor:      "audit",
		Result:     maudit.ResultPartial,
		Error:      fmt.Sprintf("partition %s line %d unreadable: %v", partition, lineNo, cause),
		ErrorCode:  "corrupt_partition",
	}
	next, err := s.nextSequence(ctx, recovery)
	if err != nil {
		return err
	}
	event.SequenceNumber = next
	return s.appendLine(ctx, recovery, event)
}

func (s *Service) partitionURL(partition string) string {
	return url.Join(s.config.BaseURL, path.Clean(partition)+".jsonl")
}
