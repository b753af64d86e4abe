package proposal

import "errors"

var (
	// ErrInvalidTransition is returned when a lifecycle mutation would leave
	// the legal transition table, e.g. deciding an already executed proposal.
	ErrInvalidTransition = errors.New("proposal: invalid status transition")

	// ErrDuplicate signals that an identical dedup key is already pending or
	// executing. The existing proposal id is returned alongside; this is a
	// cross-reference, not a failure.
	ErrDuplicate = errors.New("proposal: duplicate submission")

	// ErrInvalid is returned when a submitted proposal fails validation.
	ErrInvalid = errors.New("proposal: invalid proposal")
)
