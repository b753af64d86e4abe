// Package secret wraps viant/scy so automations can store and read
// encrypted material without plaintext secrets ever entering proposal
// parameters or the audit trail.
package secret

import (
	"context"
	"reflect"
	"strings"

	"github.com/viant/scy"

	"github.com/sigil-dev/actgate/model/types"
)

const Name = "system/secret"

// Service provides secret management operations.
type Service struct {
	scyService *scy.Service
}

// New creates the secret capability.
func New() *Service {
	return &Service{
		scyService: scy.New(),
	}
}

// Name returns the capability name
func (s *Service) Name() string {
	return Name
}

// Methods returns the capability methods
func (s *Service) Methods() types.Signatures {
	return []types.Signature{
		{
			Name:   "secure",
			Input:  reflect.TypeOf(&SecureInput{}),
			Output: reflect.TypeOf(&SecureOutput{}),
		},
		{
			Name:   "reveal",
			Input:  reflect.TypeOf(&RevealInput{}),
			Output: reflect.TypeOf(&RevealOutput{}),
		},
	}
}

// Method returns the specified method
func (s *Service) Method(name string) (types.Executable, error) {
	switch strings.ToLower(name) {
	case "secure":
		return s.secure, nil
	case "reveal":
		return s.reveal, nil
	default:
		return nil, types.NewMethodNotFoundError(name)
	}
}

func (s *Service) secure(ctx context.Context, in, out interface{}) error {
	input, ok := in.(*SecureInput)
	if !ok {
		return types.NewInvalidInputError(in)
	}
	output, ok := out.(*SecureOutput)
	if !ok {
		return types.NewInvalidOutputError(out)
	}
	return s.Secure(ctx, input, output)
}

func (s *Service) reveal(ctx context.Context, in, out interface{}) error {
	input, ok := in.(*RevealInput)
	if !ok {
		return types.NewInvalidInputError(in)
	}
	output, ok := out.(*RevealOutput)
	if !ok {
		return types.NewInvalidOutputError(out)
	}
	return s.Reveal(ctx, input, output)
}
