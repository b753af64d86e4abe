package fs

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/viant/afs"
	"github.com/viant/afs/file"
	"github.com/viant/afs/option"
	"github.com/viant/afs/url"

	mproposal "github.com/sigil-dev/actgate/model/proposal"
	"github.com/sigil-dev/actgate/service/dao"
	"github.com/sigil-dev/actgate/service/dao/criteria"
	dproposal "github.com/sigil-dev/actgate/service/dao/proposal"
)

// Service implements a filesystem-backed approval ledger. Each proposal is
// one JSON document keyed by id; archived (terminal) proposals stay on disk
// forever, the ledger never deletes decided history by itself.
type Service struct {
	basePath string
	fs       afs.Service
	mu       sync.RWMutex
}

var _ dproposal.Store = (*Service)(nil)

// Save persists a proposal document.
func (s *Service) Save(ctx context.Context, p *mproposal.Proposal) error {
	if p == nil {
		return dao.ErrNilEntity
	}
	if p.ID == "" {
		return dao.ErrInvalidID
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.upload(ctx, p)
}

// Load retrieves a proposal by id.
func (s *Service) Load(ctx context.Context, id string) (*mproposal.Proposal, error) {
	if id == "" {
		return nil, dao.ErrInvalidID
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.download(ctx, id)
}

// Delete removes a proposal document.
func (s *Service) Delete(ctx context.Context, id string) error {
	if id == "" {
		return dao.ErrInvalidID
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	filePath := s.proposalPath(id)
	exists, err := s.fs.Exists(ctx, filePath)
	if err != nil {
		return fmt.Errorf("failed to check if proposal exists: %w", err)
	}
	if !exists {
		return dao.ErrNotFound
	}
	if err := s.fs.Delete(ctx, filePath); err != nil {
		return fmt.Errorf("failed to delete proposal file: %w", err)
	}
	return nil
}

// List returns all proposals, optionally filtered by a Status parameter so
// that multiple gateway instances can poll the approved set safely.
func (s *Service) List(ctx context.Context, parameters ...*dao.Parameter) ([]*mproposal.Proposal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	objects, err := s.fs.List(ctx, s.basePath, option.NewRecursive(true))
	if err != nil {
		return nil, fmt.Errorf("failed to list proposal files: %w", err)
	}

	var proposals []*mproposal.Proposal
	for _, object := range objects {
		if object.IsDir() || !strings.HasSuffix(object.Name(), ".json") {
			continue
		}
		data, err := s.fs.Download(ctx, object)
		if err != nil {
			return nil, fmt.Errorf("failed to read proposal file %s: %w", object.URL(), err)
		}
		var p mproposal.Proposal
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, fmt.Errorf("failed to unmarshal proposal from %s: %w", object.URL(), err)
		}
		if !criteria.FilterByStatus(string(p.Status), parameters) {
			continue
		}
		proposals = append(proposals, &p)
	}
	return proposals, nil
}

// UpdateStatus performs the check-and-set under the store lock: the stored
// document is re-read, its status verified and the updated document written
// back as one critical section, so a racing claim observes dao.ErrConflict
// rather than a second executing copy.
func (s *Service) UpdateStatus(ctx context.Context, id string, from, to mproposal.Status, mutate dproposal.Mutator) (*mproposal.Proposal, error) {
	if id == "" {
		return nil, dao.ErrInvalidID
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	stored, err := s.download(ctx, id)
	if err != nil {
		return nil, err
	}
	if stored.Status != from {
		return nil, fmt.Errorf("%w: proposal %s is %s, expected %s", dao.ErrConflict, id, stored.Status, from)
	}
	stored.Status = to
	if mutate != nil {
		if err := mutate(stored); err != nil {
			return nil, err
		}
	}
	if err := s.upload(ctx, stored); err != nil {
		return nil, err
	}
	return stored.Clone(), nil
}

func (s *Service) upload(ctx context.Context, p *mproposal.Proposal) error {
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("failed to marshal proposal: %w", err)
	}
	filePath := s.proposalPath(p.ID)
	if err := s.fs.Upload(ctx, filePath, file.DefaultFileOsMode, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("failed to save proposal to file %s: %w", filePath, err)
	}
	return nil
}

func (s *Service) download(ctx context.Context, id string) (*mproposal.Proposal, error) {
	filePath := s.proposalPath(id)
	exists, err := s.fs.Exists(ctx, filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to check if proposal exists: %w", err)
	}
	if !exists {
		return nil, dao.ErrNotFound
	}
	data, err := s.fs.DownloadWithURL(ctx, filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read proposal file: %w", err)
	}
	var p mproposal.Proposal
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("failed to unmarshal proposal data: %w", err)
	}
	return &p, nil
}

// proposalPath returns the file URL for a proposal document.
func (s *Service) proposalPath(id string) string {
	return url.Join(s.basePath, fmt.Sprintf("%s.json", id))
}

// New creates a new filesystem ledger store.
func New(basePath string) (*Service, error) {
	if basePath == "" {
		return nil, fmt.Errorf("base path cannot be empty")
	}

	fs := afs.New()

	ctx := context.Background()
	exists, _ := fs.Exists(ctx, basePath)
	if !exists {
		if err := fs.Create(ctx, basePath, file.DefaultDirOsMode, true); err != nil {
			return nil, fmt.Errorf("failed to create base directory: %w", err)
		}
	}

	basePath = url.Normalize(basePath, file.Scheme)

	return &Service{
		basePath: basePath,
		fs:       fs,
	}, nil
}
