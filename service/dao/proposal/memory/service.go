package memory

import (
	"context"
	"fmt"
	"sync"

	mproposal "github.com/sigil-dev/actgate/model/proposal"
	"github.com/sigil-dev/actgate/service/dao"
	"github.com/sigil-dev/actgate/service/dao/criteria"
	dproposal "github.com/sigil-dev/actgate/service/dao/proposal"
)

// Service implements an in-memory, thread-safe approval ledger store. All
// API methods work with copies to eliminate data races between goroutines.
type Service struct {
	proposals map[string]*mproposal.Proposal
	mux       sync.RWMutex
}

var _ dproposal.Store = (*Service)(nil)

func (s *Service) Save(_ context.Context, p *mproposal.Proposal) error {
	if p == nil {
		return dao.ErrNilEntity
	}
	if p.ID == "" {
		return dao.ErrInvalidID
	}

	s.mux.Lock()
	defer s.mux.Unlock()

	s.proposals[p.ID] = p.Clone()
	return nil
}

func (s *Service) Load(_ context.Context, id string) (*mproposal.Proposal, error) {
	if id == "" {
		return nil, dao.ErrInvalidID
	}

	s.mux.RLock()
	p, ok := s.proposals[id]
	s.mux.RUnlock()

	if !ok {
		return nil, dao.ErrNotFound
	}
	return p.Clone(), nil
}

func (s *Service) Delete(_ context.Context, id string) error {
	if id == "" {
		return dao.ErrInvalidID
	}

	s.mux.Lock()
	defer s.mux.Unlock()

	if _, ok := s.proposals[id]; !ok {
		return dao.ErrNotFound
	}
	delete(s.proposals, id)
	return nil
}

func (s *Service) List(_ context.Context, parameters ...*dao.Parameter) ([]*mproposal.Proposal, error) {
	s.mux.RLock()
	defer s.mux.RUnlock()

	out := make([]*mproposal.Proposal, 0, len(s.proposals))
	for _, p := range s.proposals {
		if !criteria.FilterByStatus(string(p.Status), parameters) {
			continue
		}
		out = append(out, p.Clone())
	}
	return out, nil
}

// UpdateStatus performs the atomic check-and-set under the store lock.
func (s *Service) UpdateStatus(_ context.Context, id string, from, to mproposal.Status, mutate dproposal.Mutator) (*mproposal.Proposal, error) {
	if id == "" {
		return nil, dao.ErrInvalidID
	}

	s.mux.Lock()
	defer s.mux.Unlock()

	stored, ok := s.proposals[id]
	if !ok {
		return nil, dao.ErrNotFound
	}
	if stored.Status != from {
		return nil, fmt.Errorf("%w: proposal %s is %s, expected %s", dao.ErrConflict, id, stored.Status, from)
	}
	updated := stored.Clone()
	updated.Status = to
	if mutate != nil {
		if err := mutate(updated); err != nil {
			return nil, err
		}
	}
	s.proposals[id] = updated
	return updated.Clone(), nil
}

// New constructor.
func New() *Service {
	return &Service{proposals: map[string]*mproposal.Proposal{}}
}
