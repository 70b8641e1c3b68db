package parser //nolint:revive // intentional: does not conflict with go/parser in internal package

import (
	"fmt"
	"strings"

	pg_query "github.com/pganalyze/pg_query_go/v6"
)

// Statement is one top-level statement with its byte span in the source SQL.
// The span starts right after the previous statement's semicolon, so it
// includes any comments that precede the statement.
type Statement struct {
	Node  *pg_query.Node
	Start int
	End   int
}

// ParseResult holds the parsed statements and original SQL.
type ParseResult struct {
	Statements []Statement
	SQL        string
}

// Parse parses a PostgreSQL SQL string.
// Returns an empty result (zero statements) for empty or whitespace-only input.
func Parse(sql string) (*ParseResult, error) {
	if strings.TrimSpace(sql) == "" {
		return &ParseResult{SQL: sql}, nil
	}

	tree, err := pg_query.Parse(sql)
	if err != nil {
		return nil, fmt.Errorf("parsing SQL: %w", err)
	}

	stmts := make([]Statement, 0, len(tree.Stmts))
	for _, raw := range tree.Stmts {
		start := int(raw.StmtLocation)

		end := len(sql)
		if raw.StmtLen > 0 {
			end = start + int(raw.StmtLen)
		}

		stmts = append(stmts, Statement{Node: raw.Stmt, Start: start, End: min(end, len(sql))})
	}

	return &ParseResult{Statements: stmts, SQL: sql}, nil
}

// Text returns the statement's SQL without leading comments or whitespace.
func (r *ParseResult) Text(i int) string {
	if i < 0 || i >= len(r.Statements) {
		return ""
	}

	s := r.Statements[i]
	if s.Start < 0 || s.Start >= s.End {
		return ""
	}

	return stripLeadingComments(r.SQL[s.Start:s.End])
}

func stripLeadingComments(text string) string {
	text = strings.TrimSpace(text)

	for strings.HasPrefix(text, "--") {
		_, rest, ok := strings.Cut(text, "\n")
		if !ok {
			return ""
		}

		text = strings.TrimSpace(rest)
	}

	return text
}
