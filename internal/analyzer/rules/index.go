package rules

import (
	pg_query "github.com/pganalyze/pg_query_go/v6"

	"github.com/aqasim81/session-migrate/internal/analyzer"
)

// CreateIndexRule flags CREATE INDEX without CONCURRENTLY.
type CreateIndexRule struct{}

// NewCreateIndexRule creates a new CreateIndexRule.
func NewCreateIndexRule() *CreateIndexRule { return &CreateIndexRule{} }

// ID returns the rule identifier.
func (r *CreateIndexRule) ID() string { return "create-index-not-concurrent" }

// Check examines a statement for non-concurrent CREATE INDEX.
func (r *CreateIndexRule) Check(stmt *pg_query.Node, _ *analyzer.RuleContext) []analyzer.Finding {
	node, ok := stmt.GetNode().(*pg_query.Node_IndexStmt)
	if !ok || node.IndexStmt.Concurrent {
		return nil
	}

	return []analyzer.Finding{{
		Rule:       r.ID(),
		Severity:   analyzer.High,
		Table:      analyzer.TableName(node.IndexStmt.Relation),
		Message:    "CREATE INDEX without CONCURRENTLY blocks writes to the table until the build finishes",
		Suggestion: "Build the index with postgresql_concurrently=True outside a transaction",
		LockType:   "SHARE",
	}}
}
