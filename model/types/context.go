package types

import "context"

type invocationContextKey string

// InvocationContextKey carries per-invocation metadata such as the
// idempotency key and the proposal id down to capability backends.
var InvocationContextKey = invocationContextKey("invocation-context")

// EnsureInvocationContext ensures the invocation metadata map is present in
// ctx and merges the supplied key/value pairs into it.
func EnsureInvocationContext(ctx context.Context, pairs ...string) context.Context {
	v := ctx.Value(InvocationContextKey)
	if v == nil {
		ctx = context.WithValue(ctx, InvocationContextKey, map[string]string{})
	}
	values := ctx.Value(InvocationContextKey).(map[string]string)
	for i := 0; i+1 < len(pairs); i += 2 {
		values[pairs[i]] = pairs[i+1]
	}
	return ctx
}

// InvocationValue returns a single invocation metadata value.
func InvocationValue(ctx context.Context, key string) string {
	v := ctx.Value(InvocationContextKey)
	if v == nil {
		return ""
	}
	values, ok := v.(map[string]string)
	if !ok {
		return ""
	}
	return values[key]
}

// Well-known invocation metadata keys.
const (
	IdempotencyKey = "idempotencyKey"
	ProposalIDKey  = "proposalId"
)
