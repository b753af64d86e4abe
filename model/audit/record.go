package audit

import (
	"time"
)

// ApprovalStatus captures how the recorded execution was authorised.
type ApprovalStatus string

const (
	ApprovalApproved     ApprovalStatus = "approved"
	ApprovalAutoApproved ApprovalStatus = "auto_approved"
	ApprovalRejected     ApprovalStatus = "rejected"
	ApprovalNotRequired  ApprovalStatus = "not_required"
)

// Result classifies the outcome of a single execution attempt.
type Result string

const (
	ResultSuccess Result = "success"
	ResultFailure Result = "failure"
	ResultPartial Result = "partial"
)

// TagFinancial marks records that are exempt from retention deletion.
const TagFinancial = "financial"

// Record is one append-only audit entry. Exactly one record exists per
// execution attempt; retries append new records and never mutate prior
// ones. Parameters must already be sanitized when the record is appended.
type Record struct {
	EntryID        string                 `json:"entryId"`
	Timestamp      time.Time              `json:"timestamp"`
	ActionKind     string                 `json:"actionKind"`
	Actor          string                 `json:"actor"`
	Target         string                 `json:"target"`
	Parameters     map[string]interface{} `json:"parameters,omitempty"`
	ApprovalStatus ApprovalStatus         `json:"approvalStatus"`
	Approver       string                 `json:"approver,omitempty"`
	Result         Result                 `json:"result"`
	Error          string                 `json:"error,omitempty"`
	ErrorCode      string                 `json:"errorCode,omitempty"`
	CapabilityName string                 `json:"capabilityName"`
	DurationMs     int64                  `json:"durationMs"`
	ProposalID     string                 `json:"proposalId"`
	Attempt        int                    `json:"attempt"`
	SequenceNumber int64                  `json:"sequenceNumber"`
	Tags           []string               `json:"tags,omitempty"`
}

// HasTag reports whether the record carries the given tag.
func (r *Record) HasTag(tag string) bool {
	for _, candidate := range r.Tags {
		if candidate == tag {
			return true
		}
	}
	return false
}

// Clone creates a deep copy of the record.
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	clone := *r
	if r.Parameters != nil {
		clone.Parameters = make(map[string]interface{}, len(r.Parameters))
		for k, v := range r.Parameters {
			clone.Parameters[k] = v
		}
	}
	if len(r.Tags) > 0 {
		clone.Tags = append([]string(nil), r.Tags...)
	}
	return &clone
}
