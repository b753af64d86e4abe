package target

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParse(t *testing.T) {
	type testCase struct {
		name        string
		input       string
		expected    *Descriptor
		expectError bool
	}

	tests := []testCase{
		{
			name:     "class and location",
			input:    "email/a@example.com",
			expected: &Descriptor{Class: "email", Location: "a@example.com"},
		},
		{
			name:     "class with qualifier",
			input:    "browser(work)/https://example.com/page?x=1",
			expected: &Descriptor{Class: "browser", Qualifier: "work", Location: "https://example.com/page?x=1"},
		},
		{
			name:     "payment account",
			input:    "payment(stripe)/acct_1234",
			expected: &Descriptor{Class: "payment", Qualifier: "stripe", Location: "acct_1234"},
		},
		{
			name:     "bare location without class",
			input:    "a@example.com",
			expected: &Descriptor{Location: "a@example.com"},
		},
		{
			name:     "bare word is a location",
			input:    "email",
			expected: &Descriptor{Location: "email"},
		},
		{
			name:        "empty input",
			input:       "",
			expectError: true,
		},
		{
			name:        "leading digit class",
			input:       "1email/a@example.com",
			expectError: true,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			actual, err := ParseString(tc.input)
			if tc.expectError {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
			assert.EqualValues(t, tc.expected, actual)
		})
	}
}

func TestClass(t *testing.T) {
	assert.Equal(t, "email", Class("email/a@example.com"))
	assert.Equal(t, "", Class("not a descriptor"))
}
