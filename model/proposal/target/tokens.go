package target

import (
	"github.com/viant/parsly"
	"github.com/viant/parsly/matcher"
)

// Token codes
const (
	whitespaceCode = iota
	classCode
	openParenCode
	closeParenCode
	slashCode
	qualifierCode
	locationCode
)

// Token definitions
var (
	whitespaceToken = parsly.NewToken(whitespaceCode, "Whitespace", matcher.NewWhiteSpace())
	classToken      = parsly.NewToken(classCode, "Class", newClassMatcher())
	openParenToken  = parsly.NewToken(openParenCode, "(", matcher.NewByte('('))
	closeParenToken = parsly.NewToken(closeParenCode, ")", matcher.NewByte(')'))
	slashToken      = parsly.NewToken(slashCode, "/", matcher.NewByte('/'))
	qualifierToken  = parsly.NewToken(qualifierCode, "Qualifier", newQualifierMatcher())
	locationToken   = parsly.NewToken(locationCode, "Location", newLocationMatcher())
)

func newClassMatcher() parsly.Matcher     { return &classMatcher{} }
func newQualifierMatcher() parsly.Matcher { return &qualifierMatcher{} }
func newLocationMatcher() parsly.Matcher  { return &locationMatcher{} }

// classMatcher matches the resource class: a letter followed by letters,
// digits, '-' or '_', terminated by '(' or '/'.
type classMatcher struct{}

func (m *classMatcher) Match(cursor *parsly.Cursor) int {
	input := cursor.Input
	pos := cursor.Pos
	size := cursor.InputSize

	if pos >= size {
		return 0
	}
	if !isLetter(input[pos]) {
		return 0
	}
	matched := 1
	for i := pos + 1; i < size; i++ {
		c := input[i]
		if isLetter(c) || isDigit(c) || c == '-' || c == '_' {
			matched++
			continue
		}
		break
	}
	return matched
}

// qualifierMatcher captures everything until the closing parenthesis.
type qualifierMatcher struct{}

func (m *qualifierMatcher) Match(cursor *parsly.Cursor) int {
	input := cursor.Input
	pos := cursor.Pos
	size := cursor.InputSize

	if pos >= size {
		return 0
	}
	matched := 0
	for i := pos; i < size; i++ {
		if input[i] == ')' {
			break
		}
		matched++
	}
	return matched
}

// locationMatcher captures the remainder of the descriptor.
type locationMatcher struct{}

func (m *locationMatcher) Match(cursor *parsly.Cursor) int {
	return cursor.InputSize - cursor.Pos
}

func isLetter(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}
