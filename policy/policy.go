package policy

import (
	"context"
	"strings"

	"github.com/sigil-dev/actgate/model/proposal"
	"github.com/sigil-dev/actgate/model/proposal/target"
)

// Evaluation outcomes. There is deliberately no "rejected" outcome: the
// policy can green-light an action but absence of a match never counts as a
// decision.
const (
	OutcomeApproved = "approved"
	OutcomeSkip     = "skip"
)

// Rule describes the conditions under which proposals of one action kind
// and risk tier may bypass human review. Only non-zero conditions are
// evaluated, and every configured condition must hold.
type Rule struct {
	ActionKind string            `json:"actionKind" yaml:"actionKind"`
	RiskTier   proposal.RiskTier `json:"riskTier" yaml:"riskTier"`

	// MaxWords bounds the total word count across string parameters.
	MaxWords int `json:"maxWords,omitempty" yaml:"maxWords,omitempty"`

	// AllowTargets is an allow-list of target locations or resource
	// classes; empty means the rule does not constrain the target.
	AllowTargets []string `json:"allowTargets,omitempty" yaml:"allowTargets,omitempty"`

	// DenyKeywords blocks auto-approval when any keyword occurs in a
	// string parameter (case-insensitive).
	DenyKeywords []string `json:"denyKeywords,omitempty" yaml:"denyKeywords,omitempty"`

	// AllowAttachments permits proposals that carry an "attachments"
	// parameter. Defaults to false: attachments always need a human.
	AllowAttachments bool `json:"allowAttachments,omitempty" yaml:"allowAttachments,omitempty"`
}

// Policy is an ordered rule table. A nil *Policy skips everything, which
// makes fail-closed the zero-cost default.
type Policy struct {
	Rules []*Rule `json:"rules,omitempty" yaml:"rules,omitempty"`
}

// Evaluate returns OutcomeApproved only when a rule configured for the
// proposal's (actionKind, riskTier) matches on all its conditions.
func (p *Policy) Evaluate(prop *proposal.Proposal) string {
	if p == nil || prop == nil {
		return OutcomeSkip
	}
	for _, rule := range p.Rules {
		if rule == nil {
			continue
		}
		if rule.ActionKind != prop.ActionKind || rule.RiskTier != prop.RiskTier {
			continue
		}
		if rule.matches(prop) {
			return OutcomeApproved
		}
	}
	return OutcomeSkip
}

func (r *Rule) matches(prop *proposal.Proposal) bool {
	if !r.targetAllowed(prop.Target) {
		return false
	}
	if !r.AllowAttachments && hasAttachments(prop.Parameters) {
		return false
	}
	text := strings.ToLower(flattenStrings(prop.Parameters))
	for _, keyword := range r.DenyKeywords {
		if keyword == "" {
			continue
		}
		if strings.Contains(text, strings.ToLower(keyword)) {
			return false
		}
	}
	if r.MaxWords > 0 && len(strings.Fields(text)) > r.MaxWords {
		return false
	}
	return true
}

func (r *Rule) targetAllowed(descriptor string) bool {
	if len(r.AllowTargets) == 0 {
		return true
	}
	normalized := strings.ToLower(descriptor)
	class := strings.ToLower(target.Class(descriptor))
	location := ""
	if parsed, err := target.ParseString(descriptor); err == nil {
		location = strings.ToLower(parsed.Location)
	}
	for _, allowed := range r.AllowTargets {
		candidate := strings.ToLower(allowed)
		if candidate == normalized || candidate == class || candidate == location {
			return true
		}
	}
	return false
}

func hasAttachments(parameters map[string]interface{}) bool {
	value, ok := parameters["attachments"]
	if !ok || value == nil {
		return false
	}
	switch actual := value.(type) {
	case []interface{}:
		return len(actual) > 0
	case []string:
		return len(actual) > 0
	case string:
		return actual != ""
	}
	return true
}

// flattenStrings joins all string values of a nested parameter payload.
func flattenStrings(value interface{}) string {
	var builder strings.Builder
	appendStrings(&builder, value)
	return builder.String()
}

func appendStrings(builder *strings.Builder, value interface{}) {
	switch actual := value.(type) {
	case string:
		if builder.Len() > 0 {
			builder.WriteByte(' ')
		}
		builder.WriteString(actual)
	case map[string]interface{}:
		for _, v := range actual {
			appendStrings(builder, v)
		}
	case []interface{}:
		for _, v := range actual {
			appendStrings(builder, v)
		}
	}
}

// ---------------------------------------------------------------------------
// Context helpers
// ---------------------------------------------------------------------------

type ctxKeyT struct{}

var ctxKey ctxKeyT

// WithPolicy embeds a policy in ctx, overriding the ledger default for the
// scope of a single submission.
func WithPolicy(ctx context.Context, p *Policy) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ctxKey, p)
}

// FromContext extracts the policy from ctx, or nil.
func FromContext(ctx context.Context) *Policy {
	if ctx == nil {
		return nil
	}
	if v, ok := ctx.Value(ctxKey).(*Policy); ok {
		return v
	}
	return nil
}
