// Package analyzer flags statements in an offline upgrade script that would
// lock, rewrite or destroy data in a live session store.
package analyzer

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/aqasim81/session-migrate/internal/parser"
)

// DefaultPGVersion is assumed when no target version is configured.
const DefaultPGVersion = 14

const maxStatementLen = 120

// runningPattern matches the marker Alembic prints before each step in offline mode,
// e.g. "-- Running upgrade 1a2b -> 3c4d" or "-- Running upgrade  -> 1a2b" for the first.
var runningPattern = regexp.MustCompile(`(?m)^-- Running upgrade (.*?) -> (\S+)[ \t\r]*$`)

// Option configures the Analyzer.
type Option func(*Analyzer)

// Analyzer runs registered rules against an upgrade script.
type Analyzer struct {
	registry  *Registry
	parseFn   func(string) (*parser.ParseResult, error)
	pgVersion int
}

// New creates an Analyzer with no rules; pass WithRegistry to add some.
func New(opts ...Option) *Analyzer {
	a := &Analyzer{
		registry:  NewRegistry(),
		parseFn:   parser.Parse,
		pgVersion: DefaultPGVersion,
	}

	for _, opt := range opts {
		opt(a)
	}

	return a
}

// WithRegistry sets the rule registry.
func WithRegistry(r *Registry) Option {
	return func(a *Analyzer) { a.registry = r }
}

// WithPGVersion sets the target PostgreSQL major version.
func WithPGVersion(v int) Option {
	return func(a *Analyzer) { a.pgVersion = v }
}

// WithParser overrides the SQL parser function (useful for testing).
func WithParser(fn func(string) (*parser.ParseResult, error)) Option {
	return func(a *Analyzer) { a.parseFn = fn }
}

// Result holds every finding for one upgrade script.
type Result struct {
	Findings    []Finding
	MaxSeverity Severity
	Statements  int
}

// Blocking reports whether any finding needs --force.
func (r *Result) Blocking() bool {
	return r.MaxSeverity.Blocking()
}

// Analyze parses an offline upgrade script and checks every statement,
// attributing each finding to the step whose marker precedes it.
func (a *Analyzer) Analyze(sql string) (*Result, error) {
	parsed, err := a.parseFn(sql)
	if err != nil {
		return nil, fmt.Errorf("analyzing upgrade SQL: %w", err)
	}

	markers := findMarkers(sql)
	ctx := &RuleContext{TargetPGVersion: a.pgVersion}
	result := &Result{MaxSeverity: Safe, Statements: len(parsed.Statements)}

	for i, stmt := range parsed.Statements {
		rev := markers.revisionBefore(stmt.End)

		for _, rule := range a.registry.Rules() {
			for _, f := range rule.Check(stmt.Node, ctx) {
				f.Revision = rev
				f.Statement = TruncateSQL(parsed.Text(i), maxStatementLen)

				if f.Severity > result.MaxSeverity {
					result.MaxSeverity = f.Severity
				}

				result.Findings = append(result.Findings, f)
			}
		}
	}

	return result, nil
}

type marker struct {
	offset   int
	revision string
}

type markerList []marker

func findMarkers(sql string) markerList {
	var list markerList

	for _, m := range runningPattern.FindAllStringSubmatchIndex(sql, -1) {
		list = append(list, marker{offset: m[0], revision: sql[m[4]:m[5]]})
	}

	return list
}

// revisionBefore returns the revision of the last marker starting before end.
// A statement's span includes the comments above it, so the marker for its
// own step always lies inside the span.
func (ml markerList) revisionBefore(end int) string {
	rev := ""

	for _, m := range ml {
		if m.offset >= end {
			break
		}

		rev = m.revision
	}

	return rev
}

// TruncateSQL shortens sql to maxLen bytes for display, collapsing newlines.
func TruncateSQL(sql string, maxLen int) string {
	flat := strings.Join(strings.Fields(sql), " ")
	if len(flat) <= maxLen || maxLen < 4 { //nolint:mnd // room for "..."
		return flat
	}

	return flat[:maxLen-3] + "..."
}
