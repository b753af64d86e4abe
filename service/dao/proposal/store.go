// Package proposal defines the ledger storage contract for action
// proposals. Implementations must provide the atomic status check-and-set
// the gateway claim discipline depends on.
package proposal

import (
	"context"

	mproposal "github.com/sigil-dev/actgate/model/proposal"
	"github.com/sigil-dev/actgate/service/dao"
)

// Mutator adjusts a proposal inside an atomic status update.
type Mutator func(p *mproposal.Proposal) error

// Store is the approval ledger persistence contract.
type Store interface {
	dao.Service[string, mproposal.Proposal]

	// UpdateStatus atomically moves proposal id from -> to, applying mutate
	// under the store's write lock before persisting. It returns
	// dao.ErrConflict when the stored status is not `from` at apply time,
	// which makes "claim for processing" and "record the transition" a
	// single operation.
	UpdateStatus(ctx context.Context, id string, from, to mproposal.Status, mutate Mutator) (*mproposal.Proposal, error)
}
