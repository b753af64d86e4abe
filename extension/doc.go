// Package extension provides run-time registries for capability backends
// and their user-defined Go input/output types. Capabilities are looked up
// by name when the execution gateway dispatches an approved proposal.
package extension
