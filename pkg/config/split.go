package config

import (
	"strings"
	"unicode"
)

// SplitQuotedFields splits in around runs of white space, like
// strings.Fields, except that white space between a pair of quote
// characters is kept. Inside a quoted area a backslash escapes the next
// character, so '\'' produces a single quote.
func SplitQuotedFields(in string, quote rune) []string {
	type stateEnum int
	const (
		inSpace stateEnum = iota
		inField
		inQuote
		inQuoteEscaped
	)
	state := inSpace
	r := []string{}
	var field strings.Builder
	// a quoted empty string is still a field
	started := false

	flush := func() {
		if started {
			r = append(r, field.String())
		}
		field.Reset()
		started = false
	}

	for _, ch := range in {
		switch state {
		case inSpace, inField:
			switch {
			case ch == quote:
				started = true
				state = inQuote
			case unicode.IsSpace(ch):
				flush()
				state = inSpace
			default:
				field.WriteRune(ch)
				started = true
				state = inField
			}

		case inQuote:
			switch ch {
			case quote:
				state = inField
			case '\\':
				state = inQuoteEscaped
			default:
				field.WriteRune(ch)
			}

		case inQuoteEscaped:
			field.WriteRune(ch)
			state = inQuote
		}
	}

	flush()
	return r
}
