package types

import (
	"github.com/sigil-dev/actgate/model/state"
)

// Service is the capability backend contract. A capability exposes one or
// more named methods; each method performs (or simulates) an external side
// effect when invoked by the execution gateway.
type Service interface {
	Name() string
	Methods() Signatures
	Method(name string) (Executable, error)
}

// ParameterDeclarer is optionally implemented by capabilities that publish
// a parameter schema per method. Declared required parameters are enforced
// at the submit boundary, before a proposal ever reaches an approver.
type ParameterDeclarer interface {
	Parameters(method string) state.Parameters
}

// Proxy decorates a capability service.
type Proxy func(base Service) Service
