// Package executor invokes capability backends on behalf of the execution
// gateway. It converts a proposal's opaque parameter map into the typed
// input the capability declares, carries the invocation metadata (proposal
// id, idempotency key) through the context, and returns the typed output.
package executor

import (
	"context"
	"fmt"
	"reflect"

	"github.com/viant/structology/conv"

	"github.com/sigil-dev/actgate/extension"
	mproposal "github.com/sigil-dev/actgate/model/proposal"
	"github.com/sigil-dev/actgate/model/types"
)

// Listener is invoked after every capability invocation, successful or not.
// Implementations can log, collect metrics or capture the data that flowed
// through the invocation.
type Listener func(prop *mproposal.Proposal, input, output interface{})

// Option customises the executor instance.
type Option func(*service)

// WithListener overrides the post-invocation listener. Passing nil disables
// the callback entirely.
func WithListener(l Listener) Option {
	return func(s *service) {
		s.listener = l
	}
}

// Service invokes the capability named by a proposal.
type Service interface {
	Execute(ctx context.Context, prop *mproposal.Proposal) (interface{}, error)
}

type service struct {
	capabilities *extension.Capabilities
	converter    *conv.Converter
	listener     Listener
}

// Execute resolves the proposal's capability and method, converts the
// parameters into the method's input type and invokes it. The returned
// value is the method's typed output.
func (s *service) Execute(ctx context.Context, prop *mproposal.Proposal) (interface{}, error) {
	if prop == nil {
		return nil, fmt.Errorf("proposal was nil")
	}
	capability := s.capabilities.Lookup(prop.CapabilityName)
	if capability == nil {
		return nil, fmt.Errorf("capability %v not found", prop.CapabilityName)
	}
	method, err := capability.Method(prop.ActionKind)
	if err != nil {
		return nil, fmt.Errorf("failed to find method %v for capability %v: %w", prop.ActionKind, prop.CapabilityName, err)
	}
	signature := capability.Methods().Lookup(prop.ActionKind)
	if signature == nil {
		return nil, types.NewMethodNotFoundError(prop.ActionKind)
	}

	input := newInstancePtr(signature.Input)
	if len(prop.Parameters) > 0 {
		if err := s.converter.Convert(prop.Parameters, input); err != nil {
			return nil, fmt.Errorf("%w: %v", types.ErrMalformed, err)
		}
	}
	output := newInstancePtr(signature.Output)

	ctx = types.EnsureInvocationContext(ctx,
		types.ProposalIDKey, prop.ID,
		types.IdempotencyKey, prop.IdempotencyKey,
	)

	invokeErr := method(ctx, input, output)

	if s.listener != nil {
		s.listener(prop, input, output)
	}
	if invokeErr != nil {
		return output, invokeErr
	}
	return output, nil
}

func newInstancePtr(t reflect.Type) interface{} {
	if t == nil {
		var empty interface{}
		return &empty
	}
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return reflect.New(t).Interface()
}

// NewService creates an executor over the supplied capability registry.
func NewService(capabilities *extension.Capabilities, opts ...Option) Service {
	options := conv.DefaultOptions()
	options.ClonePointerData = true
	options.IgnoreUnmapped = true
	options.AccessUnexported = true

	s := &service{
		capabilities: capabilities,
		converter:    conv.NewConverter(options),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}
