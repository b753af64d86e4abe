package types

import (
	"context"
	"reflect"
)

type Signatures []Signature

func (s Signatures) Lookup(name string) *Signature {
	for i := range s {
		sig := &s[i]
		if sig.Name == name {
			return sig
		}
	}
	return nil
}

// Signature describes a capability method: its name and the Go types the
// opaque proposal parameters are converted into / out of.
type Signature struct {
	Name   string
	Input  reflect.Type
	Output reflect.Type
}

// Executable is a capability method that can be invoked.
type Executable func(ctx context.Context, input, output interface{}) error
