package sqlmodel

import (
	"strings"
)

// StripComments removes full-line SQL comments (lines whose first non-blank
// characters are "--"). Trailing same-line comments are left alone; the
// statement splitter never needs to see inside a statement.
func StripComments(script string) string {
	lines := strings.Split(script, "\n")
	kept := lines[:0]
	for _, line := range lines {
		if strings.HasPrefix(strings.TrimSpace(line), "--") {
			continue
		}
		kept = append(kept, line)
	}
	return strings.Join(kept, "\n")
}

// SplitStatements splits a script into individual statements. Statements end
// at a line whose trimmed form ends with ';', which keeps multi-line
// statements intact; a trailing fragment without a terminator is treated as
// the final statement. Full-line comments are stripped first.
func SplitStatements(script string) []string {
	clean := StripComments(script)

	var statements []string
	var current []string

	for _, line := range strings.Split(clean, "\n") {
		current = append(current, line)
		if strings.HasSuffix(strings.TrimSpace(line), ";") {
			stmt := strings.TrimSpace(strings.Join(current, "\n"))
			if stmt != "" && stmt != ";" {
				statements = append(statements, strings.TrimSpace(strings.TrimSuffix(stmt, ";")))
			}
			current = nil
		}
	}

	if len(current) > 0 {
		stmt := strings.TrimSpace(strings.Join(current, "\n"))
		if stmt != "" {
			statements = append(statements, stmt)
		}
	}

	return statements
}
