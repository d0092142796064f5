// Package grammar holds the small SQL fragment utilities used to compare
// expressions, default literals and type declarations across dialects.
package grammar

import (
	"strings"
	"unicode"
)

// SQLType is a column type split into its base name and parameter list.
type SQLType struct {
	Type string
	// Options is the text between the first top-level parentheses, nil when absent.
	Options *string
}

// SplitExpressions splits a comma separated list of SQL expressions at
// top-level commas. Commas inside brackets, string literals and quoted
// identifiers never split. Each part is trimmed.
func SplitExpressions(text string) ([]string, error) {
	parts := []string{}
	start := 0
	err := newScanner(text).run(func(i int, r rune, pos position) {
		if r == ',' && pos.top() {
			parts = append(parts, strings.TrimSpace(text[start:i]))
			start = i + 1
		}
	})
	if err != nil {
		return nil, err
	}

	last := strings.TrimSpace(text[start:])
	if last != "" || len(parts) > 0 {
		parts = append(parts, last)
	}
	return parts, nil
}

// TrimDefaultValueSuffix removes trailing "::type" casts from a default
// literal, e.g. "'{10,20}'::smallint[]" becomes "'{10,20}'". Casts inside
// quotes and casts followed by anything other than a type name are kept.
func TrimDefaultValueSuffix(text string) (string, error) {
	out := strings.TrimSpace(text)
	for {
		cast := -1
		prev := -1
		err := newScanner(out).run(func(i int, r rune, pos position) {
			if r != ':' || !pos.top() {
				prev = -1
				return
			}
			if prev == i-1 {
				cast = prev
				prev = -1
				return
			}
			prev = i
		})
		if err != nil {
			return "", err
		}
		if cast <= 0 || !isTypeName(out[cast+2:]) {
			return out, nil
		}
		out = strings.TrimSpace(out[:cast])
	}
}

// isTypeName reports whether s looks like a type reference such as
// "timestamp with time zone", "\"public\".\"mood\"[]" or "numeric(10, 2)".
func isTypeName(s string) bool {
	s = strings.TrimSpace(s)
	if s == "" {
		return false
	}
	first := []rune(s)[0]
	if !unicode.IsLetter(first) && first != '_' && first != '"' {
		return false
	}

	ok := true
	err := newScanner(s).run(func(_ int, r rune, pos position) {
		if !pos.top() {
			return
		}
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r):
		case r == '_', r == ' ', r == '.', r == '"', r == '(', r == '[':
		default:
			ok = false
		}
	})
	return err == nil && ok
}

// SplitSQLType splits a type declaration such as "numeric(10,2)[][]" into
// its base type "numeric" and options "10,2". Trailing array dimensions are
// discarded. Words after the parameter list are kept with the base type, so
// "timestamp(3) with time zone" yields "timestamp with time zone" and "3".
func SplitSQLType(text string) (SQLType, error) {
	text = strings.TrimSpace(text)
	open, closing := -1, -1
	err := newScanner(text).run(func(i int, r rune, pos position) {
		switch {
		case r == '(' && pos.top() && open < 0:
			open = i
		case r == ')' && !pos.quoted && pos.depth == 1 && open >= 0 && closing < 0:
			closing = i
		}
	})
	if err != nil {
		return SQLType{}, err
	}

	if open < 0 {
		return SQLType{Type: StripArrayDimensions(text)}, nil
	}

	base := strings.TrimSpace(text[:open])
	options := strings.TrimSpace(text[open+1 : closing])
	if rest := StripArrayDimensions(text[closing+1:]); rest != "" {
		base += " " + rest
	}
	return SQLType{Type: base, Options: &options}, nil
}

// StripArrayDimensions removes trailing "[]" or "[n]" groups.
func StripArrayDimensions(text string) string {
	s, _ := splitArray(text)
	return s
}

// ArrayDimensions counts trailing "[]" or "[n]" groups.
func ArrayDimensions(text string) int {
	_, n := splitArray(text)
	return n
}

func splitArray(text string) (string, int) {
	s := strings.TrimSpace(text)
	n := 0
	for strings.HasSuffix(s, "]") {
		open := strings.LastIndex(s, "[")
		if open < 0 || strings.Trim(s[open+1:len(s)-1], "0123456789") != "" {
			break
		}
		s = strings.TrimSpace(s[:open])
		n++
	}
	return s, n
}

// CollapseWhitespace replaces every run of whitespace outside quotes with a
// single space and trims the result.
func CollapseWhitespace(text string) (string, error) {
	return rewrite(text, false)
}

// Canonicalize collapses whitespace like CollapseWhitespace and lower-cases
// everything outside quotes.
func Canonicalize(text string) (string, error) {
	return rewrite(text, true)
}

func rewrite(text string, lower bool) (string, error) {
	var b strings.Builder
	b.Grow(len(text))
	space := false
	err := newScanner(text).run(func(_ int, r rune, pos position) {
		if pos.quoted {
			b.WriteRune(r)
			return
		}
		if unicode.IsSpace(r) {
			space = true
			return
		}
		if space && b.Len() > 0 {
			b.WriteByte(' ')
		}
		space = false
		if lower {
			r = unicode.ToLower(r)
		}
		b.WriteRune(r)
	})
	if err != nil {
		return "", err
	}
	return b.String(), nil
}

// StripOuterParens removes parentheses that wrap the whole expression,
// repeatedly: "((a > 0))" becomes "a > 0" while "(a) + (b)" is unchanged.
func StripOuterParens(text string) (string, error) {
	s := strings.TrimSpace(text)
	for strings.HasPrefix(s, "(") {
		closing := -1
		err := newScanner(s).run(func(i int, r rune, pos position) {
			if r == ')' && !pos.quoted && pos.depth == 1 && closing < 0 {
				closing = i
			}
		})
		if err != nil {
			return "", err
		}
		if closing != len(s)-1 {
			break
		}
		s = strings.TrimSpace(s[1:closing])
	}
	return s, nil
}
