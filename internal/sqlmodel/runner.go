// Package sqlmodel executes named, parameterized SQL model scripts against
// the analytical store with predictable statement boundaries and precise
// failure attribution.
package sqlmodel

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	apperrors "github.com/stratalake/stratalake/internal/errors"
	"github.com/stratalake/stratalake/internal/store"
)

// placeholderPattern matches any remaining template token after substitution.
var placeholderPattern = regexp.MustCompile(`\{\{.*?\}\}`)

// excerptLen bounds the statement excerpt attached to failures.
const excerptLen = 200

// Runner loads SQL model scripts from a directory, substitutes placeholders,
// and executes the resulting statements sequentially. Statements are not
// wrapped in a transaction: on failure of statement k, statements 1..k-1 have
// already committed their effects and statements k+1..n never execute.
type Runner struct {
	store      store.AnalyticalStore
	scriptsDir string
}

// NewRunner creates a Runner reading scripts from scriptsDir.
func NewRunner(s store.AnalyticalStore, scriptsDir string) *Runner {
	return &Runner{store: s, scriptsDir: scriptsDir}
}

// Run executes the named script (<scriptsDir>/<name>.sql) with the given
// parameter map. Placeholders are written as "{{ name }}". A parameter with
// no matching placeholder is logged as unused; a placeholder left unresolved
// after substitution is logged as a warning but execution still proceeds —
// the invalid statement fails at the store and surfaces as a transform error
// rather than being silently skipped.
func (r *Runner) Run(ctx context.Context, name string, params map[string]string) error {
	path := filepath.Join(r.scriptsDir, name+".sql")
	data, err := os.ReadFile(path)
	if err != nil {
		return apperrors.NewTransformError(apperrors.CodeScriptNotFound,
			fmt.Sprintf("script %s not found at %s", name, path), err)
	}

	rendered := r.render(name, string(data), params)

	statements := SplitStatements(rendered)
	for i, stmt := range statements {
		log.Printf("sqlmodel: %s: executing statement %d/%d", name, i+1, len(statements))
		if err := r.store.Exec(ctx, stmt); err != nil {
			return apperrors.NewTransformError(apperrors.CodeStatementFailed,
				fmt.Sprintf("script %s: statement %d failed", name, i+1), err).
				WithDetails(map[string]interface{}{
					"script":          name,
					"statement_index": i + 1,
					"statement":       excerpt(stmt),
				})
		}
	}

	log.Printf("sqlmodel: %s: executed %d statements", name, len(statements))
	return nil
}

// render substitutes "{{ key }}" tokens and reports unused parameters and
// unresolved placeholders.
func (r *Runner) render(name, script string, params map[string]string) string {
	for key, value := range params {
		placeholder := fmt.Sprintf("{{ %s }}", key)
		if !strings.Contains(script, placeholder) {
			log.Printf("sqlmodel: %s: warning: parameter %q has no placeholder in script", name, key)
			continue
		}
		script = strings.ReplaceAll(script, placeholder, value)
	}

	if remaining := placeholderPattern.FindAllString(script, -1); len(remaining) > 0 {
		log.Printf("sqlmodel: %s: warning: unresolved placeholders: %v", name, remaining)
	}

	return script
}

// excerpt returns a bounded prefix of a statement for failure reporting.
func excerpt(stmt string) string {
	stmt = strings.Join(strings.Fields(stmt), " ")
	if len(stmt) > excerptLen {
		return stmt[:excerptLen] + "..."
	}
	return stmt
}
