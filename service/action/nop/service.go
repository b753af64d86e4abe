package nop

import (
	"context"
	"reflect"

	"github.com/sigil-dev/actgate/model/types"
)

const name = "nop"

// Service is a capability that does nothing. Useful for wiring tests and
// for proposals whose only purpose is to exercise the approval flow.
type Service struct{}

type Input struct{}

type Output struct{}

// New creates a new nop capability
func New() *Service {
	return &Service{}
}

// Name returns the capability name
func (s *Service) Name() string {
	return name
}

// Methods returns the capability methods
func (s *Service) Methods() types.Signatures {
	return []types.Signature{
		{
			Name:   "nop",
			Input:  reflect.TypeOf(&Input{}),
			Output: reflect.TypeOf(&Output{}),
		},
	}
}

// Method returns the specified method
func (s *Service) Method(name string) (types.Executable, error) {
	return s.nop, nil
}

// does nothing
func (s *Service) nop(ctx context.Context, in, out interface{}) error {
	return nil
}
