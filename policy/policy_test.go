package policy

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sigil-dev/actgate/model/proposal"
)

func TestPolicy_Evaluate(t *testing.T) {
	lowRiskMessages := &Policy{
		Rules: []*Rule{
			{
				ActionKind:   "send-message",
				RiskTier:     proposal.RiskLow,
				MaxWords:     100,
				AllowTargets: []string{"a@example.com", "b@example.com"},
				DenyKeywords: []string{"wire transfer", "urgent"},
			},
		},
	}

	type testCase struct {
		name     string
		policy   *Policy
		prop     *proposal.Proposal
		expected string
	}

	tests := []testCase{
		{
			name:   "low risk known contact under word bound",
			policy: lowRiskMessages,
			prop: &proposal.Proposal{
				ActionKind: "send-message",
				Target:     "email/a@example.com",
				RiskTier:   proposal.RiskLow,
				Parameters: map[string]interface{}{"subject": "Hi", "body": "short"},
			},
			expected: OutcomeApproved,
		},
		{
			name:   "unknown contact skipped",
			policy: lowRiskMessages,
			prop: &proposal.Proposal{
				ActionKind: "send-message",
				Target:     "email/stranger@example.org",
				RiskTier:   proposal.RiskLow,
				Parameters: map[string]interface{}{"body": "short"},
			},
			expected: OutcomeSkip,
		},
		{
			name:   "denylisted keyword skipped",
			policy: lowRiskMessages,
			prop: &proposal.Proposal{
				ActionKind: "send-message",
				Target:     "email/a@example.com",
				RiskTier:   proposal.RiskLow,
				Parameters: map[string]interface{}{"body": "please send the Wire Transfer today"},
			},
			expected: OutcomeSkip,
		},
		{
			name:   "attachments need a human",
			policy: lowRiskMessages,
			prop: &proposal.Proposal{
				ActionKind: "send-message",
				Target:     "email/a@example.com",
				RiskTier:   proposal.RiskLow,
				Parameters: map[string]interface{}{"body": "short", "attachments": []interface{}{"report.pdf"}},
			},
			expected: OutcomeSkip,
		},
		{
			name:   "risk tier mismatch skipped",
			policy: lowRiskMessages,
			prop: &proposal.Proposal{
				ActionKind: "send-message",
				Target:     "email/a@example.com",
				RiskTier:   proposal.RiskHigh,
				Parameters: map[string]interface{}{"body": "short"},
			},
			expected: OutcomeSkip,
		},
		{
			name:     "nil policy fails closed",
			policy:   nil,
			prop:     &proposal.Proposal{ActionKind: "send-message", RiskTier: proposal.RiskLow},
			expected: OutcomeSkip,
		},
		{
			name:     "empty policy fails closed",
			policy:   &Policy{},
			prop:     &proposal.Proposal{ActionKind: "publish-post", RiskTier: proposal.RiskLow},
			expected: OutcomeSkip,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.EqualValues(t, tc.expected, tc.policy.Evaluate(tc.prop))
		})
	}
}

func TestPolicy_Evaluate_wordBound(t *testing.T) {
	p := &Policy{Rules: []*Rule{{ActionKind: "publish-post", RiskTier: proposal.RiskLow, MaxWords: 3}}}
	prop := &proposal.Proposal{
		ActionKind: "publish-post",
		Target:     "blog/main",
		RiskTier:   proposal.RiskLow,
		Parameters: map[string]interface{}{"body": "one two three four"},
	}
	assert.EqualValues(t, OutcomeSkip, p.Evaluate(prop))
	prop.Parameters["body"] = "one two three"
	assert.EqualValues(t, OutcomeApproved, p.Evaluate(prop))
}
