package gateway

import "errors"

// ErrAuditRejected marks an attempt whose execution succeeded but whose
// audit record could not be appended. The attempt counts as failed: an
// unauditable execution must never be reported as executed.
var ErrAuditRejected = errors.New("gateway: audit append rejected")
