// Package testutil provides test utilities for CLI testing.
package testutil

import (
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
)

// Fixture is a small memory adapter fixture with one namespace.
const Fixture = `namespaces:
  root/test:
    Widget:
      - Name: alpha
        Size: 3
        Enabled: true
      - Name: beta
        Size: 7
        Enabled: false
        Owner: null
`

// SetupTestProject creates a temporary project holding a wqlbridge.yaml that
// points the memory adapter at fixture.yaml, and returns its directory.
func SetupTestProject(t *testing.T) string {
	t.Helper()

	tmpDir := t.TempDir()

	if err := os.WriteFile(filepath.Join(tmpDir, "fixture.yaml"), []byte(Fixture), 0o600); err != nil {
		t.Fatalf("failed to create fixture.yaml: %v", err)
	}

	config := `adapter:
  type: memory
  path: fixture.yaml
namespaces:
  - root/test
  - root/cimv2
output: json
`
	if err := os.WriteFile(filepath.Join(tmpDir, "wqlbridge.yaml"), []byte(config), 0o600); err != nil {
		t.Fatalf("failed to create wqlbridge.yaml: %v", err)
	}

	return tmpDir
}

// ansiPattern matches ANSI escape codes.
var ansiPattern = regexp.MustCompile(`\x1b\[[0-9;]*[a-zA-Z]`)

// StripANSI removes ANSI escape codes.
func StripANSI(s string) string {
	return ansiPattern.ReplaceAllString(s, "")
}

// AssertNoANSI checks that a string contains no ANSI escape codes.
func AssertNoANSI(t *testing.T, s string) {
	t.Helper()
	if ansiPattern.MatchString(s) {
		t.Errorf("string contains ANSI escape codes: %q", s)
	}
}

// AssertValidMarkdownTable checks that every non-empty line is a pipe-delimited
// row with the same number of cells.
func AssertValidMarkdownTable(t *testing.T, md string) {
	t.Helper()

	cells := -1
	for i, line := range strings.Split(strings.TrimSpace(md), "\n") {
		if !strings.HasPrefix(line, "|") || !strings.HasSuffix(line, "|") {
			t.Errorf("line %d is not a table row: %q", i+1, line)
			continue
		}
		n := strings.Count(line, "|") - strings.Count(line, `\|`)
		if cells >= 0 && n != cells {
			t.Errorf("line %d has %d separators, want %d: %q", i+1, n, cells, line)
		}
		cells = n
	}
}
