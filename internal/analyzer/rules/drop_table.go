package rules

import (
	"strings"

	pg_query "github.com/pganalyze/pg_query_go/v6"

	"github.com/aqasim81/session-migrate/internal/analyzer"
)

// DropTableRule flags DROP TABLE and TRUNCATE.
type DropTableRule struct{}

// NewDropTableRule creates a new DropTableRule.
func NewDropTableRule() *DropTableRule { return &DropTableRule{} }

// ID returns the rule identifier.
func (r *DropTableRule) ID() string { return "drop-table" }

// Check examines a statement for DROP TABLE or TRUNCATE.
func (r *DropTableRule) Check(stmt *pg_query.Node, _ *analyzer.RuleContext) []analyzer.Finding {
	switch node := stmt.GetNode().(type) {
	case *pg_query.Node_DropStmt:
		if node.DropStmt.RemoveType != pg_query.ObjectType_OBJECT_TABLE {
			return nil
		}

		return []analyzer.Finding{{
			Rule:       r.ID(),
			Severity:   analyzer.Critical,
			Table:      strings.Join(dropNames(node.DropStmt), ", "),
			Message:    "DROP TABLE permanently deletes every stored row",
			Suggestion: "Check the schema module still declares the table; autogenerate drops anything it cannot see",
			LockType:   accessExclusive,
		}}
	case *pg_query.Node_TruncateStmt:
		var tables []string
		for _, rel := range node.TruncateStmt.Relations {
			tables = append(tables, analyzer.TableName(rel.GetRangeVar()))
		}

		return []analyzer.Finding{{
			Rule:       r.ID(),
			Severity:   analyzer.Critical,
			Table:      strings.Join(tables, ", "),
			Message:    "TRUNCATE removes every stored row",
			Suggestion: "Take a backup first",
			LockType:   accessExclusive,
		}}
	default:
		return nil
	}
}

// dropNames joins each dropped object's name parts ("schema.table").
func dropNames(drop *pg_query.DropStmt) []string {
	var names []string

	for _, obj := range drop.Objects {
		var parts []string

		for _, item := range obj.GetList().GetItems() {
			if s := item.GetString_(); s != nil {
				parts = append(parts, s.Sval)
			}
		}

		if len(parts) > 0 {
			names = append(names, strings.Join(parts, "."))
		}
	}

	return names
}
