package grammar

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func strPtr(s string) *string { return &s }

func TestSplitExpressions(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{
			name:  "simple function calls",
			input: "lower(name), upper(name)",
			want:  []string{"lower(name)", "upper(name)"},
		},
		{
			name:  "escaped quotes and commas inside literal",
			input: "COALESCE(name, 'default,'' value'''::text), SUBSTRING(name1 FROM 1 FOR 3)",
			want:  []string{"COALESCE(name, 'default,'' value'''::text)", "SUBSTRING(name1 FROM 1 FOR 3)"},
		},
		{
			name:  "nested parens",
			input: "f(g(h(a, b), c), d), e",
			want:  []string{"f(g(h(a, b), c), d)", "e"},
		},
		{
			name:  "quoted identifier containing comma",
			input: `"first,name", "last""name"`,
			want:  []string{`"first,name"`, `"last""name"`},
		},
		{
			name:  "array literal brackets",
			input: "ARRAY[1, 2], 3",
			want:  []string{"ARRAY[1, 2]", "3"},
		},
		{
			name:  "single expression",
			input: "  now()  ",
			want:  []string{"now()"},
		},
		{
			name:  "empty input",
			input: "",
			want:  []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := SplitExpressions(tt.input)
			if err != nil {
				t.Fatalf("SplitExpressions(%q) returned error: %v", tt.input, err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("SplitExpressions(%q) mismatch (-want +got):\n%s", tt.input, diff)
			}
		})
	}
}

func TestSplitExpressionsRejectsMalformedInput(t *testing.T) {
	inputs := []string{
		"lower(name, upper(name)",
		"'unterminated, b",
		`"ident, b`,
		"a), b",
		"f(a], b",
	}

	for _, input := range inputs {
		_, err := SplitExpressions(input)
		if err == nil {
			t.Errorf("SplitExpressions(%q) expected error, got nil", input)
			continue
		}
		var gerr *Error
		if !errors.As(err, &gerr) {
			t.Errorf("SplitExpressions(%q) error %T is not *grammar.Error", input, err)
		}
		if !errors.Is(err, ErrInvalid) {
			t.Errorf("SplitExpressions(%q) error does not match ErrInvalid", input)
		}
	}
}

func TestTrimDefaultValueSuffix(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"'{10,20}'::smallint[]", "'{10,20}'"},
		{"now()", "now()"},
		{"'x'::text", "'x'"},
		{"'x'", "'x'"},
		{"'2024-01-01 00:00:00'::timestamp with time zone", "'2024-01-01 00:00:00'"},
		{"'abc'::character varying(255)", "'abc'"},
		{"'a::text'", "'a::text'"},
		{"'it''s, here'::text", "'it''s, here'"},
		{"'happy'::\"public\".\"mood\"", "'happy'"},
		{"'a'::text::varchar", "'a'"},
		{"42", "42"},
		{"(1 + 2)::integer", "(1 + 2)"},
		{"'{}'::int4[][]", "'{}'"},
		{"nextval('users_id_seq'::regclass)", "nextval('users_id_seq'::regclass)"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := TrimDefaultValueSuffix(tt.input)
			if err != nil {
				t.Fatalf("TrimDefaultValueSuffix(%q) returned error: %v", tt.input, err)
			}
			if got != tt.want {
				t.Errorf("TrimDefaultValueSuffix(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestTrimDefaultValueSuffixRejectsMalformedInput(t *testing.T) {
	if _, err := TrimDefaultValueSuffix("'abc::text"); !errors.Is(err, ErrInvalid) {
		t.Errorf("expected ErrInvalid, got %v", err)
	}
}

func TestSplitSQLType(t *testing.T) {
	tests := []struct {
		input string
		want  SQLType
	}{
		{"numeric(10,2)[][]", SQLType{Type: "numeric", Options: strPtr("10,2")}},
		{"numeric", SQLType{Type: "numeric"}},
		{"varchar(256)", SQLType{Type: "varchar", Options: strPtr("256")}},
		{"text[]", SQLType{Type: "text"}},
		{"integer[3]", SQLType{Type: "integer"}},
		{"character varying", SQLType{Type: "character varying"}},
		{"timestamp(3) with time zone", SQLType{Type: "timestamp with time zone", Options: strPtr("3")}},
		{"enum('a','b,c')", SQLType{Type: "enum", Options: strPtr("'a','b,c'")}},
		{"vector( 3 )", SQLType{Type: "vector", Options: strPtr("3")}},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := SplitSQLType(tt.input)
			if err != nil {
				t.Fatalf("SplitSQLType(%q) returned error: %v", tt.input, err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("SplitSQLType(%q) mismatch (-want +got):\n%s", tt.input, diff)
			}
		})
	}
}

func TestSplitSQLTypeRejectsMalformedInput(t *testing.T) {
	for _, input := range []string{"numeric(10,2", "enum('a)", "numeric)"} {
		if _, err := SplitSQLType(input); !errors.Is(err, ErrInvalid) {
			t.Errorf("SplitSQLType(%q) expected ErrInvalid, got %v", input, err)
		}
	}
}

func TestArrayDimensions(t *testing.T) {
	tests := map[string]int{
		"text":               0,
		"text[]":             1,
		"integer[][]":        2,
		"numeric(10,2)[3][]": 2,
	}
	for input, want := range tests {
		if got := ArrayDimensions(input); got != want {
			t.Errorf("ArrayDimensions(%q) = %d, want %d", input, got, want)
		}
	}
}

func TestCanonicalize(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"  TIMESTAMP   WITH\tTIME ZONE ", "timestamp with time zone"},
		{"VARCHAR(10)", "varchar(10)"},
		{`"Mood"`, `"Mood"`},
		{"ENUM('A',  'B')", "enum('A', 'B')"},
	}
	for _, tt := range tests {
		got, err := Canonicalize(tt.input)
		if err != nil {
			t.Fatalf("Canonicalize(%q) returned error: %v", tt.input, err)
		}
		if got != tt.want {
			t.Errorf("Canonicalize(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestCollapseWhitespace(t *testing.T) {
	got, err := CollapseWhitespace("  lower( name )\n  ||  'a   b' ")
	if err != nil {
		t.Fatalf("CollapseWhitespace returned error: %v", err)
	}
	if want := "lower( name ) || 'a   b'"; got != want {
		t.Errorf("CollapseWhitespace = %q, want %q", got, want)
	}
}

func TestStripOuterParens(t *testing.T) {
	tests := map[string]string{
		"((price > 0))": "price > 0",
		"(a) + (b)":     "(a) + (b)",
		"(lower(name))": "lower(name)",
		"name":          "name",
		"('(' || name)": "'(' || name",
	}
	for input, want := range tests {
		got, err := StripOuterParens(input)
		if err != nil {
			t.Fatalf("StripOuterParens(%q) returned error: %v", input, err)
		}
		if got != want {
			t.Errorf("StripOuterParens(%q) = %q, want %q", input, got, want)
		}
	}
}
