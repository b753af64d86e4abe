package state

import (
	bstate "github.com/viant/bindly/state"
	"github.com/viant/parsly"
)

// Parse parses one parameter declaration in the format
// name[dataType](kind/location), with an optional trailing "!" marking the
// parameter required, e.g. "body[string](parameter/body)!".
func Parse(input []byte) (*Parameter, error) {
	cursor := parsly.NewCursor("", input, 0)
	parameter := &Parameter{Location: &bstate.Location{}}

	matched := cursor.MatchAfterOptional(whitespaceToken, nameToken)
	if matched.Code != nameToken.Code {
		return nil, cursor.NewError(nameToken)
	}
	parameter.Name = matched.Text(cursor)

	matched = cursor.MatchOne(openSquareBracketToken)
	if matched.Code != openSquareBracketToken.Code {
		return nil, cursor.NewError(openSquareBracketToken)
	}
	matched = cursor.MatchOne(dataTypeToken)
	if matched.Code != dataTypeToken.Code {
		return nil, cursor.NewError(dataTypeToken)
	}
	parameter.DataType = matched.Text(cursor)
	matched = cursor.MatchOne(closeSquareBracketToken)
	if matched.Code != closeSquareBracketToken.Code {
		return nil, cursor.NewError(closeSquareBracketToken)
	}

	matched = cursor.MatchAfterOptional(whitespaceToken, openParenToken)
	if matched.Code != openParenToken.Code {
		return nil, cursor.NewError(openParenToken)
	}
	matched = cursor.MatchAny(kindToken, closeParenToken)
	switch matched.Code {
	case closeParenToken.Code:
		return parameter, nil
	case kindToken.Code:
	default:
		return nil, cursor.NewError(kindToken)
	}
	parameter.Location.Kind = matched.Text(cursor)

	matched = cursor.MatchOne(slashToken)
	if matched.Code == slashToken.Code {
		matched = cursor.MatchOne(locationToken)
		if matched.Code != locationToken.Code {
			return nil, cursor.NewError(locationToken)
		}
		parameter.Location.In = matched.Text(cursor)
	}
	matched = cursor.MatchOne(closeParenToken)
	if matched.Code != closeParenToken.Code {
		return nil, cursor.NewError(closeParenToken)
	}

	if matched = cursor.MatchOne(bangToken); matched.Code == bangToken.Code {
		parameter.Required = true
	}
	return parameter, nil
}

// ParseString is a convenience wrapper around Parse.
func ParseString(input string) (*Parameter, error) {
	return Parse([]byte(input))
}

// MustParse parses a declaration and panics on error; intended for static
// capability schema declarations.
func MustParse(input string) *Parameter {
	parameter, err := ParseString(input)
	if err != nil {
		panic(err)
	}
	return parameter
}

// Declare parses a list of declarations into a schema.
func Declare(declarations ...string) (Parameters, error) {
	out := make(Parameters, 0, len(declarations))
	for _, declaration := range declarations {
		parameter, err := ParseString(declaration)
		if err != nil {
			return nil, err
		}
		out = append(out, parameter)
	}
	return out, nil
}
