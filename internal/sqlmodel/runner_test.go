package sqlmodel

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	apperrors "github.com/stratalake/stratalake/internal/errors"
)

// scriptedStore records executed statements and can fail on a chosen one.
type scriptedStore struct {
	statements []string
	failOn     int // 1-based statement index, 0 disables
}

func (s *scriptedStore) Exec(ctx context.Context, query string, args ...interface{}) error {
	s.statements = append(s.statements, query)
	if s.failOn != 0 && len(s.statements) == s.failOn {
		return errors.New("table is on fire")
	}
	return nil
}

func (s *scriptedStore) Count(ctx context.Context, table string) (int64, error) { return 0, nil }

func (s *scriptedStore) Query(ctx context.Context, query string) ([]string, [][]interface{}, error) {
	return nil, nil, nil
}

func (s *scriptedStore) Close() error { return nil }

func writeScript(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name+".sql"), []byte(content), 0o644); err != nil {
		t.Fatalf("writing script: %v", err)
	}
}

func TestRunExecutesStatementsInOrder(t *testing.T) {
	dir := t.TempDir()
	writeScript(t, dir, "example",
		"-- comment\nINSERT INTO a VALUES (1);\nINSERT INTO b\nSELECT x FROM a;")

	db := &scriptedStore{}
	runner := NewRunner(db, dir)

	if err := runner.Run(context.Background(), "example", nil); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(db.statements) != 2 {
		t.Fatalf("executed %d statements, want 2", len(db.statements))
	}
	if db.statements[0] != "INSERT INTO a VALUES (1)" {
		t.Errorf("statement 1 = %q", db.statements[0])
	}
	if !strings.HasPrefix(db.statements[1], "INSERT INTO b") {
		t.Errorf("statement 2 = %q", db.statements[1])
	}
}

func TestRunSubstitutesPlaceholders(t *testing.T) {
	dir := t.TempDir()
	writeScript(t, dir, "filtered",
		"DELETE FROM raw_events WHERE batch_id = '{{ batch_id }}';")

	db := &scriptedStore{}
	runner := NewRunner(db, dir)

	params := map[string]string{"batch_id": "42", "unused": "zzz"}
	if err := runner.Run(context.Background(), "filtered", params); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if db.statements[0] != "DELETE FROM raw_events WHERE batch_id = '42'" {
		t.Errorf("rendered statement = %q", db.statements[0])
	}
}

func TestRunMissingScript(t *testing.T) {
	runner := NewRunner(&scriptedStore{}, t.TempDir())

	err := runner.Run(context.Background(), "nope", nil)
	if err == nil {
		t.Fatal("missing script did not fail")
	}
	if apperrors.GetCode(err) != apperrors.CodeScriptNotFound {
		t.Errorf("code = %s, want %s", apperrors.GetCode(err), apperrors.CodeScriptNotFound)
	}
}

func TestRunFailureIdentifiesStatement(t *testing.T) {
	dir := t.TempDir()
	writeScript(t, dir, "multi",
		"INSERT INTO a VALUES (1);\nINSERT INTO b VALUES (2);\nINSERT INTO c VALUES (3);")

	db := &scriptedStore{failOn: 2}
	runner := NewRunner(db, dir)

	err := runner.Run(context.Background(), "multi", nil)
	if err == nil {
		t.Fatal("failing statement did not fail the run")
	}
	if apperrors.GetCode(err) != apperrors.CodeStatementFailed {
		t.Errorf("code = %s, want %s", apperrors.GetCode(err), apperrors.CodeStatementFailed)
	}

	var perr *apperrors.PipelineError
	if !errors.As(err, &perr) {
		t.Fatalf("error is %T, want *PipelineError", err)
	}
	if perr.Details["statement_index"] != 2 {
		t.Errorf("statement_index = %v, want 2", perr.Details["statement_index"])
	}
	if !strings.Contains(fmt.Sprintf("%v", perr.Details["statement"]), "INSERT INTO b") {
		t.Errorf("statement excerpt = %v", perr.Details["statement"])
	}

	// Statement 3 never ran.
	if len(db.statements) != 2 {
		t.Errorf("executed %d statements, want 2", len(db.statements))
	}
}

func TestRunUnresolvedPlaceholderStillExecutes(t *testing.T) {
	dir := t.TempDir()
	writeScript(t, dir, "loose", "SELECT '{{ never_bound }}';")

	db := &scriptedStore{}
	runner := NewRunner(db, dir)

	if err := runner.Run(context.Background(), "loose", nil); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(db.statements) != 1 {
		t.Fatalf("executed %d statements, want 1", len(db.statements))
	}
	if !strings.Contains(db.statements[0], "{{ never_bound }}") {
		t.Errorf("placeholder rewritten: %q", db.statements[0])
	}
}
