// Package policy provides the declarative auto-approval rules consulted
// once at proposal submission. A proposal is auto-approved only when a rule
// configured for its (action kind, risk tier) pair matches on every
// configured condition; anything else is left for a human decision.
package policy
