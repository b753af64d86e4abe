// Package target parses proposal target descriptors of the form
// class(qualifier)/location, e.g. "email/a@example.com" or
// "browser(work)/https://example.com". A descriptor without a separator,
// e.g. "a@example.com", is a bare location with no resource class. The
// resource class drives the gateway's collision guard; the location
// identifies the concrete resource.
package target

import (
	"bytes"

	"github.com/viant/parsly"
)

// Descriptor is a parsed proposal target.
type Descriptor struct {
	Class     string `json:"class"`
	Qualifier string `json:"qualifier,omitempty"`
	Location  string `json:"location"`
}

// Parse parses a target descriptor: class[(qualifier)]/location, or a bare
// location when the text carries no separator.
func Parse(input []byte) (*Descriptor, error) {
	cursor := parsly.NewCursor("", input, 0)
	descriptor := &Descriptor{}

	if !bytes.ContainsRune(input, '/') {
		matched := cursor.MatchAfterOptional(whitespaceToken, locationToken)
		if matched.Code != locationToken.Code {
			return nil, cursor.NewError(locationToken)
		}
		descriptor.Location = matched.Text(cursor)
		return descriptor, nil
	}

	matched := cursor.MatchAfterOptional(whitespaceToken, classToken)
	if matched.Code != classToken.Code {
		return nil, cursor.NewError(classToken)
	}
	descriptor.Class = matched.Text(cursor)

	matched = cursor.MatchAny(openParenToken, slashToken)
	switch matched.Code {
	case openParenToken.Code:
		matched = cursor.MatchOne(qualifierToken)
		if matched.Code != qualifierToken.Code {
			return nil, cursor.NewError(qualifierToken)
		}
		descriptor.Qualifier = matched.Text(cursor)
		matched = cursor.MatchOne(closeParenToken)
		if matched.Code != closeParenToken.Code {
			return nil, cursor.NewError(closeParenToken)
		}
		matched = cursor.MatchOne(slashToken)
		if matched.Code != slashToken.Code {
			return nil, cursor.NewError(slashToken)
		}
	case slashToken.Code:
	default:
		return nil, cursor.NewError(slashToken)
	}

	matched = cursor.MatchOne(locationToken)
	if matched.Code != locationToken.Code {
		return nil, cursor.NewError(locationToken)
	}
	descriptor.Location = matched.Text(cursor)
	return descriptor, nil
}

// ParseString is a convenience wrapper over Parse.
func ParseString(text string) (*Descriptor, error) {
	return Parse([]byte(text))
}

// Class returns the resource class of a descriptor, or "" when the text
// does not parse. Used by callers that only care about collision grouping.
func Class(text string) string {
	descriptor, err := ParseString(text)
	if err != nil {
		return ""
	}
	return descriptor.Class
}
