package version

import (
	"regexp"
	"strings"
	"testing"
)

func TestVersion(t *testing.T) {
	if !regexp.MustCompile(`^\d+\.\d+\.\d+`).MatchString(Version()) {
		t.Errorf("Version() = %q, want semver", Version())
	}
}

func TestString(t *testing.T) {
	GitCommit, BuildDate = "abc123", "2026-10-01"
	defer func() { GitCommit, BuildDate = "unknown", "unknown" }()

	got := String()
	for _, want := range []string{"ddlkit v" + Version(), "@abc123", Platform(), "2026-10-01"} {
		if !strings.Contains(got, want) {
			t.Errorf("String() = %q, missing %q", got, want)
		}
	}
}
