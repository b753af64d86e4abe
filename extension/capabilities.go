package extension

import (
	"sync"

	"github.com/sigil-dev/actgate/model/types"
	"github.com/viant/x"
)

// Capabilities indexes capability backends by name.
type Capabilities struct {
	types    *Types
	services map[string]types.Service
	mux      sync.RWMutex
}

func (s *Capabilities) Types() *Types {
	return s.types
}

// Lookup returns a capability by name.
func (s *Capabilities) Lookup(name string) types.Service {
	s.mux.RLock()
	defer s.mux.RUnlock()
	return s.services[name]
}

// Names returns the registered capability names.
func (s *Capabilities) Names() []string {
	s.mux.RLock()
	defer s.mux.RUnlock()
	names := make([]string, 0, len(s.services))
	for name := range s.services {
		names = append(names, name)
	}
	return names
}

// DataTypeIniter lets a capability register its own data types on
// registration.
type DataTypeIniter interface {
	InitTypes(types *Types)
}

// Register registers a capability backend.
func (s *Capabilities) Register(service types.Service) {
	s.mux.Lock()
	defer s.mux.Unlock()

	if typer, ok := service.(DataTypeIniter); ok {
		typer.InitTypes(s.types)
	}
	s.services[service.Name()] = service
}

// NewCapabilities creates a new capability registry.
func NewCapabilities(goTypes ...*x.Type) *Capabilities {
	ret := &Capabilities{
		types:    NewTypes(),
		services: make(map[string]types.Service),
	}
	for _, t := range goTypes {
		if t != nil {
			ret.types.Register(t)
		}
	}
	return ret
}
