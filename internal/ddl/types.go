package ddl

import (
	"errors"
	"strings"

	"github.com/ddlkit/ddlkit/internal/grammar"
)

var postgresAliases = map[string]string{
	"int":                         "integer",
	"int4":                        "integer",
	"int2":                        "smallint",
	"int8":                        "bigint",
	"serial4":                     "serial",
	"serial2":                     "smallserial",
	"serial8":                     "bigserial",
	"varchar":                     "character varying",
	"char":                        "character",
	"bpchar":                      "character",
	"bool":                        "boolean",
	"float4":                      "real",
	"float8":                      "double precision",
	"decimal":                     "numeric",
	"timestamptz":                 "timestamp with time zone",
	"timestamp without time zone": "timestamp",
	"timetz":                      "time with time zone",
	"time without time zone":      "time",
}

var mysqlAliases = map[string]string{
	"integer":           "int",
	"dec":               "decimal",
	"numeric":           "decimal",
	"character varying": "varchar",
	"character":         "char",
	"bool":              "tinyint",
	"boolean":           "tinyint",
}

// mysql reports integer display widths on old servers only
var mysqlDisplayWidth = map[string]bool{
	"int":       true,
	"bigint":    true,
	"smallint":  true,
	"mediumint": true,
}

var sqliteAliases = map[string]string{
	"int": "integer",
}

// NormalizeType canonicalizes a column type for dialect d: keywords are
// lower-cased, whitespace collapsed, aliases resolved and the parameter
// list reformatted without spaces.
func NormalizeType(d Dialect, raw string) (string, error) {
	t, err := grammar.Canonicalize(raw)
	if err != nil {
		return "", err
	}
	if t == "" {
		return "", errors.New("empty column type")
	}

	dims := grammar.ArrayDimensions(t)
	st, err := grammar.SplitSQLType(grammar.StripArrayDimensions(t))
	if err != nil {
		return "", err
	}

	name := st.Type
	var aliases map[string]string
	switch {
	case d.IsPostgresFamily():
		aliases = postgresAliases
	case d == MySQL:
		aliases = mysqlAliases
	case d == SQLite:
		aliases = sqliteAliases
	}
	if alias, ok := aliases[name]; ok {
		if d == MySQL && (name == "bool" || name == "boolean") {
			return "tinyint(1)", nil
		}
		name = alias
	}

	out := name
	if st.Options != nil && !(d == MySQL && mysqlDisplayWidth[name]) {
		opts, err := grammar.SplitExpressions(*st.Options)
		if err != nil {
			return "", err
		}
		params := "(" + strings.Join(opts, ",") + ")"
		// precision sits between the base word and the zone suffix
		if i := strings.Index(name, " with"); i > 0 && strings.HasPrefix(name, "time") {
			out = name[:i] + params + name[i:]
		} else {
			out = name + params
		}
	}
	return out + strings.Repeat("[]", dims), nil
}

// NormalizeDefault trims cast suffixes, collapses whitespace and removes
// wrapping parentheses so equivalent defaults compare equal.
func NormalizeDefault(raw string) (string, error) {
	s, err := grammar.TrimDefaultValueSuffix(raw)
	if err != nil {
		return "", err
	}
	if s, err = grammar.CollapseWhitespace(s); err != nil {
		return "", err
	}
	return grammar.StripOuterParens(s)
}

// NormalizeExpression collapses whitespace and removes wrapping parentheses.
func NormalizeExpression(raw string) (string, error) {
	s, err := grammar.CollapseWhitespace(raw)
	if err != nil {
		return "", err
	}
	return grammar.StripOuterParens(s)
}

// IsLiteralDefault reports whether a normalized default can be rendered
// without wrapping parentheses in dialects that require them around
// expressions.
func IsLiteralDefault(s string) bool {
	if s == "" {
		return true
	}
	switch strings.ToUpper(s) {
	case "NULL", "TRUE", "FALSE", "CURRENT_TIMESTAMP", "CURRENT_DATE", "CURRENT_TIME":
		return true
	}
	if s[0] == '\'' && s[len(s)-1] == '\'' {
		return true
	}
	digits := strings.TrimLeft(s, "+-")
	if digits == "" {
		return false
	}
	for _, r := range digits {
		if (r < '0' || r > '9') && r != '.' {
			return false
		}
	}
	return true
}

// BaseType returns the type without parameters or array dimensions.
func BaseType(t string) string {
	st, err := grammar.SplitSQLType(t)
	if err != nil {
		return grammar.StripArrayDimensions(t)
	}
	return st.Type
}

const (
	maxBigint = "9223372036854775807"
	minBigint = "-9223372036854775808"
)

// sequenceDefaults fills empty Postgres sequence options with the values
// the catalog reports for a bigint sequence.
func sequenceDefaults(start, increment, min, max, cache string) (string, string, string, string, string) {
	if increment == "" {
		increment = "1"
	}
	ascending := !strings.HasPrefix(increment, "-")
	if min == "" {
		min = "1"
		if !ascending {
			min = minBigint
		}
	}
	if max == "" {
		max = maxBigint
		if !ascending {
			max = "-1"
		}
	}
	if start == "" {
		start = min
		if !ascending {
			start = max
		}
	}
	if cache == "" {
		cache = "1"
	}
	return start, increment, min, max, cache
}
