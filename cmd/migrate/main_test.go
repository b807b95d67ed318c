package main

import (
	"database/sql"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

type recordingExecer struct {
	statements []string
}

func (r *recordingExecer) Exec(query string, _ ...any) (sql.Result, error) {
	r.statements = append(r.statements, strings.TrimSpace(query))
	return nil, nil
}

func TestSplitSQLDropsCommentsAndSplitsOnSemicolon(t *testing.T) {
	got := splitSQL("-- header\nCREATE TABLE a (\n  id TEXT\n);\nCREATE INDEX i ON a(id);\n")
	if len(got) != 2 {
		t.Fatalf("expected 2 statements, got %d: %q", len(got), got)
	}
	if strings.Contains(got[0], "header") || !strings.HasPrefix(got[0], "CREATE TABLE a") {
		t.Fatalf("unexpected first statement: %q", got[0])
	}
}

func TestApplyFileRunsOnlyUpSection(t *testing.T) {
	path := filepath.Join(t.TempDir(), "0001_test.sql")
	script := "-- +migrate Up\nCREATE TABLE a (id TEXT);\n-- +migrate Down\nDROP TABLE a;\n"
	if err := os.WriteFile(path, []byte(script), 0o600); err != nil {
		t.Fatalf("write script: %v", err)
	}
	exec := &recordingExecer{}
	if err := applyFile(exec, path); err != nil {
		t.Fatalf("apply: %v", err)
	}
	if len(exec.statements) != 1 || exec.statements[0] != "CREATE TABLE a (id TEXT);" {
		t.Fatalf("unexpected statements: %q", exec.statements)
	}
}

func TestInitMigrationParses(t *testing.T) {
	content, err := os.ReadFile(filepath.Join("..", "..", "migrations", "0001_init.sql"))
	if err != nil {
		t.Fatalf("read migration: %v", err)
	}
	up := strings.Split(string(content), "-- +migrate Down")[0]
	statements := splitSQL(up)
	tables := 0
	for _, stmt := range statements {
		if strings.HasPrefix(strings.TrimSpace(stmt), "CREATE TABLE") {
			tables++
		}
	}
	if tables != 8 {
		t.Fatalf("expected 8 tables, got %d", tables)
	}
}
