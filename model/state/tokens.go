package state

import (
	"github.com/viant/parsly"
	"github.com/viant/parsly/matcher"
)

const (
	whitespaceCode = iota
	nameCode
	openSquareBracketCode
	closeSquareBracketCode
	openParenCode
	closeParenCode
	slashCode
	bangCode
	dataTypeCode
	kindCode
	locationCode
)

var (
	whitespaceToken         = parsly.NewToken(whitespaceCode, "Whitespace", matcher.NewWhiteSpace())
	nameToken               = parsly.NewToken(nameCode, "Name", &nameMatcher{})
	openSquareBracketToken  = parsly.NewToken(openSquareBracketCode, "[", matcher.NewByte('['))
	closeSquareBracketToken = parsly.NewToken(closeSquareBracketCode, "]", matcher.NewByte(']'))
	openParenToken          = parsly.NewToken(openParenCode, "(", matcher.NewByte('('))
	closeParenToken         = parsly.NewToken(closeParenCode, ")", matcher.NewByte(')'))
	slashToken              = parsly.NewToken(slashCode, "/", matcher.NewByte('/'))
	bangToken               = parsly.NewToken(bangCode, "!", matcher.NewByte('!'))
	dataTypeToken           = parsly.NewToken(dataTypeCode, "DataType", &dataTypeMatcher{})
	kindToken               = parsly.NewToken(kindCode, "Kind", &kindMatcher{})
	locationToken           = parsly.NewToken(locationCode, "Location", &locationMatcher{})
)

// nameMatcher matches a parameter name: a letter or underscore followed by
// letters, digits or underscores.
type nameMatcher struct{}

func (m *nameMatcher) Match(cursor *parsly.Cursor) int {
	input := cursor.Input
	pos := cursor.Pos
	size := cursor.InputSize
	if pos >= size {
		return 0
	}
	if !isLetter(input[pos]) && input[pos] != '_' {
		return 0
	}
	matched := 1
	for i := pos + 1; i < size; i++ {
		if isLetter(input[i]) || isDigit(input[i]) || input[i] == '_' {
			matched++
			continue
		}
		break
	}
	return matched
}

// dataTypeMatcher captures everything up to the matching closing square
// bracket, tolerating nested brackets for generic types.
type dataTypeMatcher struct{}

func (m *dataTypeMatcher) Match(cursor *parsly.Cursor) int {
	input := cursor.Input
	pos := cursor.Pos
	size := cursor.InputSize
	if pos >= size {
		return 0
	}
	depth := 0
	matched := 0
	for i := pos; i < size; i++ {
		if input[i] == '[' {
			depth++
		}
		if input[i] == ']' {
			if depth == 0 {
				break
			}
			depth--
		}
		matched++
	}
	return matched
}

// kindMatcher captures the binding kind up to a slash or closing paren.
type kindMatcher struct{}

func (m *kindMatcher) Match(cursor *parsly.Cursor) int {
	input := cursor.Input
	pos := cursor.Pos
	size := cursor.InputSize
	matched := 0
	for i := pos; i < size; i++ {
		if input[i] == '/' || input[i] == ')' {
			break
		}
		matched++
	}
	return matched
}

// locationMatcher captures the binding location up to the closing paren.
type locationMatcher struct{}

func (m *locationMatcher) Match(cursor *parsly.Cursor) int {
	input := cursor.Input
	pos := cursor.Pos
	size := cursor.InputSize
	matched := 0
	for i := pos; i < size; i++ {
		if input[i] == ')' {
			break
		}
		matched++
	}
	return matched
}

func isLetter(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}
