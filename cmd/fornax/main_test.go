package main

import (
	"bytes"
	"strings"
	"testing"
)

// runCLI executes the command tree with args against the given API address
// and returns captured stdout.
func runCLI(t *testing.T, args []string, apiAddr string) (string, error) {
	t.Helper()

	full := append([]string{"--api", apiAddr}, args...)
	cmd := newRootCommand()
	cmd.SetArgs(full)

	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)

	err := cmd.Execute()
	return out.String(), err
}

func requireContains(t *testing.T, haystack, needle string) {
	t.Helper()
	if !strings.Contains(haystack, needle) {
		t.Fatalf("expected output to contain %q, got:\n%s", needle, haystack)
	}
}
