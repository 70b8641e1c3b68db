package rules

import (
	pg_query "github.com/pganalyze/pg_query_go/v6"

	"github.com/aqasim81/session-migrate/internal/analyzer"
)

const (
	pgVersionFastDefault     = 11
	pgVersionSetNotNullCheck = 12
	accessExclusive          = "ACCESS EXCLUSIVE"
)

// alterCmds returns the table and the subcommands of type want in an ALTER TABLE.
func alterCmds(stmt *pg_query.Node, want pg_query.AlterTableType) (*pg_query.RangeVar, []*pg_query.AlterTableCmd) {
	node, ok := stmt.GetNode().(*pg_query.Node_AlterTableStmt)
	if !ok {
		return nil, nil
	}

	var cmds []*pg_query.AlterTableCmd

	for _, c := range node.AlterTableStmt.Cmds {
		cmd := c.GetAlterTableCmd()
		if cmd != nil && cmd.Subtype == want {
			cmds = append(cmds, cmd)
		}
	}

	return node.AlterTableStmt.Relation, cmds
}

// AddColumnRule flags ADD COLUMN that fails on populated tables or rewrites them.
type AddColumnRule struct{}

// NewAddColumnRule creates a new AddColumnRule.
func NewAddColumnRule() *AddColumnRule { return &AddColumnRule{} }

// ID returns the rule identifier.
func (r *AddColumnRule) ID() string { return "add-column-not-null-no-default" }

// Check examines ADD COLUMN subcommands.
func (r *AddColumnRule) Check(stmt *pg_query.Node, ctx *analyzer.RuleContext) []analyzer.Finding {
	rel, cmds := alterCmds(stmt, pg_query.AlterTableType_AT_AddColumn)

	var findings []analyzer.Finding

	for _, cmd := range cmds {
		col := cmd.GetDef().GetColumnDef()
		if col == nil {
			continue
		}

		def := defaultExpr(col)

		switch {
		case def == nil && notNull(col):
			findings = append(findings, analyzer.Finding{
				Rule:       r.ID(),
				Severity:   analyzer.High,
				Table:      analyzer.TableName(rel),
				Message:    "ADD COLUMN " + col.Colname + " NOT NULL without a default fails if the table has rows",
				Suggestion: "Give the column a server_default, or add it nullable and backfill before SET NOT NULL",
				LockType:   accessExclusive,
			})
		case def != nil && (ctx.TargetPGVersion < pgVersionFastDefault || volatile(def)):
			findings = append(findings, analyzer.Finding{
				Rule:       r.ID(),
				Severity:   analyzer.High,
				Table:      analyzer.TableName(rel),
				Message:    "ADD COLUMN " + col.Colname + " with this DEFAULT rewrites the entire table",
				Suggestion: "Add the column without a default, then backfill in batches",
				LockType:   accessExclusive,
			})
		}
	}

	return findings
}

// defaultExpr finds the DEFAULT expression; the raw parser stores it as a
// CONSTR_DEFAULT constraint.
func defaultExpr(col *pg_query.ColumnDef) *pg_query.Node {
	for _, c := range col.Constraints {
		if cn := c.GetConstraint(); cn != nil && cn.Contype == pg_query.ConstrType_CONSTR_DEFAULT {
			return cn.RawExpr
		}
	}

	return nil
}

func notNull(col *pg_query.ColumnDef) bool {
	if col.IsNotNull {
		return true
	}

	for _, c := range col.Constraints {
		if cn := c.GetConstraint(); cn != nil && cn.Contype == pg_query.ConstrType_CONSTR_NOTNULL {
			return true
		}
	}

	return false
}

// volatile treats anything but a constant or a cast of a constant as volatile.
func volatile(expr *pg_query.Node) bool {
	switch n := expr.GetNode().(type) {
	case *pg_query.Node_AConst:
		return false
	case *pg_query.Node_TypeCast:
		return n.TypeCast.GetArg().GetAConst() == nil
	default:
		return true
	}
}

// AlterColumnTypeRule flags ALTER COLUMN TYPE, which rewrites the table.
type AlterColumnTypeRule struct{}

// NewAlterColumnTypeRule creates a new AlterColumnTypeRule.
func NewAlterColumnTypeRule() *AlterColumnTypeRule { return &AlterColumnTypeRule{} }

// ID returns the rule identifier.
func (r *AlterColumnTypeRule) ID() string { return "alter-column-type" }

// Check examines ALTER COLUMN TYPE subcommands.
func (r *AlterColumnTypeRule) Check(stmt *pg_query.Node, _ *analyzer.RuleContext) []analyzer.Finding {
	rel, cmds := alterCmds(stmt, pg_query.AlterTableType_AT_AlterColumnType)

	findings := make([]analyzer.Finding, 0, len(cmds))
	for _, cmd := range cmds {
		findings = append(findings, analyzer.Finding{
			Rule:       r.ID(),
			Severity:   analyzer.High,
			Table:      analyzer.TableName(rel),
			Message:    "changing the type of " + cmd.Name + " rewrites the table under an ACCESS EXCLUSIVE lock",
			Suggestion: "Add a new column, backfill it, then switch readers over",
			LockType:   accessExclusive,
		})
	}

	return findings
}

// SetNotNullRule flags SET NOT NULL, which scans the whole table.
type SetNotNullRule struct{}

// NewSetNotNullRule creates a new SetNotNullRule.
func NewSetNotNullRule() *SetNotNullRule { return &SetNotNullRule{} }

// ID returns the rule identifier.
func (r *SetNotNullRule) ID() string { return "set-not-null" }

// Check examines SET NOT NULL subcommands.
func (r *SetNotNullRule) Check(stmt *pg_query.Node, ctx *analyzer.RuleContext) []analyzer.Finding {
	rel, cmds := alterCmds(stmt, pg_query.AlterTableType_AT_SetNotNull)

	severity := analyzer.High
	suggestion := "Enforce the constraint in the application until a maintenance window"

	if ctx.TargetPGVersion >= pgVersionSetNotNullCheck {
		severity = analyzer.Medium
		suggestion = "Add CHECK (col IS NOT NULL) NOT VALID, validate it, then SET NOT NULL"
	}

	findings := make([]analyzer.Finding, 0, len(cmds))
	for _, cmd := range cmds {
		findings = append(findings, analyzer.Finding{
			Rule:       r.ID(),
			Severity:   severity,
			Table:      analyzer.TableName(rel),
			Message:    "SET NOT NULL on " + cmd.Name + " scans the whole table under an ACCESS EXCLUSIVE lock",
			Suggestion: suggestion,
			LockType:   accessExclusive,
		})
	}

	return findings
}

// DropColumnRule flags DROP COLUMN, which discards stored session data.
type DropColumnRule struct{}

// NewDropColumnRule creates a new DropColumnRule.
func NewDropColumnRule() *DropColumnRule { return &DropColumnRule{} }

// ID returns the rule identifier.
func (r *DropColumnRule) ID() string { return "drop-column" }

// Check examines DROP COLUMN subcommands.
func (r *DropColumnRule) Check(stmt *pg_query.Node, _ *analyzer.RuleContext) []analyzer.Finding {
	rel, cmds := alterCmds(stmt, pg_query.AlterTableType_AT_DropColumn)

	findings := make([]analyzer.Finding, 0, len(cmds))
	for _, cmd := range cmds {
		findings = append(findings, analyzer.Finding{
			Rule:       r.ID(),
			Severity:   analyzer.Critical,
			Table:      analyzer.TableName(rel),
			Message:    "DROP COLUMN " + cmd.Name + " permanently deletes its data",
			Suggestion: "Check the schema module still declares the column; autogenerate drops anything it cannot see",
			LockType:   accessExclusive,
		})
	}

	return findings
}
