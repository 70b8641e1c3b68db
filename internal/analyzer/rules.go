package analyzer

import pg_query "github.com/pganalyze/pg_query_go/v6"

// Finding is one flagged statement.
type Finding struct {
	Rule       string
	Severity   Severity
	Revision   string // step that emitted the statement; empty before the first marker
	Table      string
	Statement  string
	Message    string
	Suggestion string
	LockType   string
}

// Rule inspects a single parsed statement.
type Rule interface {
	// ID returns a unique kebab-case identifier for this rule.
	ID() string
	// Check returns findings for stmt. Rules leave Revision and Statement
	// unset; the analyzer fills them in.
	Check(stmt *pg_query.Node, ctx *RuleContext) []Finding
}

// RuleContext carries what a rule may need beyond the statement itself.
type RuleContext struct {
	TargetPGVersion int
}

// Registry holds a collection of rules.
type Registry struct {
	rules []Rule
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Register adds a rule to the registry.
func (r *Registry) Register(rule Rule) {
	r.rules = append(r.rules, rule)
}

// Rules returns all registered rules.
func (r *Registry) Rules() []Rule {
	return r.rules
}

// TableName extracts a qualified table name from a RangeVar.
func TableName(rv *pg_query.RangeVar) string {
	if rv == nil {
		return "<unknown>"
	}

	if rv.Schemaname != "" {
		return rv.Schemaname + "." + rv.Relname
	}

	return rv.Relname
}
