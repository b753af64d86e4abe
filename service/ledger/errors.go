package ledger

import (
	"fmt"

	mproposal "github.com/sigil-dev/actgate/model/proposal"
)

var (
	// ErrDuplicateProposal signals that a submission matched an in-flight
	// proposal; callers receive the existing id alongside this error and the
	// ledger is left unchanged.
	ErrDuplicateProposal = fmt.Errorf("ledger: %w", mproposal.ErrDuplicate)

	// ErrInvalidProposal signals a submission that failed validation.
	ErrInvalidProposal = fmt.Errorf("ledger: %w", mproposal.ErrInvalid)
)
