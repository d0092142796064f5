package compile

import (
	"strings"
)

// quoter renders identifiers for one dialect. Identifiers are always quoted
// so mixed case and reserved words survive the round trip.
type quoter struct {
	quote         string
	defaultSchema string
}

var (
	doubleQuotes = quoter{quote: `"`, defaultSchema: "public"}
	backticks    = quoter{quote: "`"}
)

// ident quotes a single identifier, doubling embedded quote characters.
func (q quoter) ident(name string) string {
	return q.quote + strings.ReplaceAll(name, q.quote, q.quote+q.quote) + q.quote
}

// qualify returns the quoted entity name, prefixed with its schema unless
// the schema is the dialect default.
func (q quoter) qualify(schema, name string) string {
	if schema == "" || schema == q.defaultSchema {
		return q.ident(name)
	}
	return q.ident(schema) + "." + q.ident(name)
}

// list quotes and joins column names.
func (q quoter) list(names []string, sep string) string {
	quoted := make([]string, len(names))
	for i, n := range names {
		quoted[i] = q.ident(n)
	}
	return strings.Join(quoted, sep)
}

// literal renders a SQL string literal.
func literal(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

// roleKeywords are policy targets that must not be quoted.
var roleKeywords = map[string]bool{
	"public":       true,
	"current_role": true,
	"current_user": true,
	"session_user": true,
}

func (q quoter) role(name string) string {
	if roleKeywords[strings.ToLower(name)] {
		return strings.ToLower(name)
	}
	return q.ident(name)
}

// wrap encloses an expression in parentheses unless it already is.
func wrap(expr string) string {
	if strings.HasPrefix(expr, "(") && strings.HasSuffix(expr, ")") && balanced(expr[1:len(expr)-1]) {
		return expr
	}
	return "(" + expr + ")"
}

// balanced reports whether the parentheses in s close in order, ignoring
// quoted text.
func balanced(s string) bool {
	depth := 0
	var inQuote byte
	for i := 0; i < len(s); i++ {
		ch := s[i]
		switch {
		case inQuote != 0:
			if ch == inQuote {
				inQuote = 0
			}
		case ch == '\'' || ch == '"':
			inQuote = ch
		case ch == '(':
			depth++
		case ch == ')':
			depth--
			if depth < 0 {
				return false
			}
		}
	}
	return depth == 0
}
