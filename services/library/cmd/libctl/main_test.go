package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func runCmd(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestValidateCommand(t *testing.T) {
	good := writeFile(t, "categories.csv", "1,Fiction\n2,Poetry\n")
	out, err := runCmd(t, "validate", "--kind", "categories", good)
	if err != nil {
		t.Fatalf("validate good file: %v (%s)", err, out)
	}
	if !strings.Contains(out, "true good") {
		t.Fatalf("unexpected output %q", out)
	}

	bad := writeFile(t, "categories.csv", "1,Fiction,extra\n")
	out, err = runCmd(t, "validate", "--kind", "categories", bad)
	if err == nil {
		t.Fatalf("expected failure, output %q", out)
	}
	if !strings.Contains(out, "Invalid number of fields (row 1)") {
		t.Fatalf("output %q does not name the reason", out)
	}
}

func TestValidateCommandRejectsUnknownKind(t *testing.T) {
	path := writeFile(t, "loans.csv", "a,b\n")
	if _, err := runCmd(t, "validate", "--kind", "loans", path); err == nil {
		t.Fatalf("expected unknown kind error")
	}
}

func TestMigrateCommandCreatesSchema(t *testing.T) {
	dsn := "sqlite:" + filepath.Join(t.TempDir(), "library.db")
	out, err := runCmd(t, "migrate", "--database-url", dsn)
	if err != nil {
		t.Fatalf("migrate: %v (%s)", err, out)
	}
	if !strings.Contains(out, "schema up to date") {
		t.Fatalf("unexpected output %q", out)
	}
}
