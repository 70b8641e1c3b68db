package parser_test

import (
	"testing"

	pg_query "github.com/pganalyze/pg_query_go/v6"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aqasim81/session-migrate/internal/parser"
)

// offlineUpgrade mirrors what "alembic upgrade <from>:head --sql" prints.
const offlineUpgrade = `BEGIN;

-- Running upgrade  -> 1a2b3c4d5e6f

CREATE TABLE sessions (
    id VARCHAR(128) NOT NULL, 
    app_name VARCHAR(128) NOT NULL, 
    state JSONB, 
    PRIMARY KEY (id)
);

INSERT INTO alembic_version (version_num) VALUES ('1a2b3c4d5e6f') RETURNING alembic_version.version_num;

COMMIT;
`

func TestParse(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		sql       string
		wantErr   bool
		wantStmts int
		checkNode func(t *testing.T, result *parser.ParseResult)
	}{
		{
			name:      "valid CREATE TABLE returns one statement",
			sql:       "CREATE TABLE events (id SERIAL PRIMARY KEY, author TEXT NOT NULL);",
			wantStmts: 1,
			checkNode: func(t *testing.T, result *parser.ParseResult) {
				t.Helper()
				_, ok := result.Statements[0].Node.Node.(*pg_query.Node_CreateStmt)
				assert.True(t, ok, "expected CreateStmt node")
			},
		},
		{
			name:      "CREATE INDEX CONCURRENTLY parses correctly",
			sql:       "CREATE INDEX CONCURRENTLY ix_events_session ON events (session_id);",
			wantStmts: 1,
			checkNode: func(t *testing.T, result *parser.ParseResult) {
				t.Helper()
				node, ok := result.Statements[0].Node.Node.(*pg_query.Node_IndexStmt)
				require.True(t, ok, "expected IndexStmt node")
				assert.True(t, node.IndexStmt.Concurrent)
			},
		},
		{
			name:      "offline upgrade output parses with transaction statements",
			sql:       offlineUpgrade,
			wantStmts: 4,
			checkNode: func(t *testing.T, result *parser.ParseResult) {
				t.Helper()
				_, ok := result.Statements[0].Node.Node.(*pg_query.Node_TransactionStmt)
				assert.True(t, ok, "expected TransactionStmt node")
			},
		},
		{
			name:    "invalid SQL returns error",
			sql:     "SELECT * FROM WHERE;",
			wantErr: true,
		},
		{
			name:      "empty string returns zero statements",
			sql:       "",
			wantStmts: 0,
		},
		{
			name:      "whitespace-only returns zero statements and keeps SQL",
			sql:       "   \n\t  ",
			wantStmts: 0,
			checkNode: func(t *testing.T, result *parser.ParseResult) {
				t.Helper()
				assert.Equal(t, "   \n\t  ", result.SQL)
			},
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			result, err := parser.Parse(tt.sql)

			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), "parsing SQL")

				return
			}

			require.NoError(t, err)
			assert.Len(t, result.Statements, tt.wantStmts)

			if tt.checkNode != nil {
				tt.checkNode(t, result)
			}
		})
	}
}

func TestParse_spansCoverSourceInOrder(t *testing.T) {
	t.Parallel()

	result, err := parser.Parse(offlineUpgrade)
	require.NoError(t, err)

	prevEnd := 0
	for _, s := range result.Statements {
		assert.GreaterOrEqual(t, s.Start, prevEnd)
		assert.Greater(t, s.End, s.Start)
		assert.LessOrEqual(t, s.End, len(offlineUpgrade))

		prevEnd = s.End
	}
}

func TestParseResult_Text(t *testing.T) {
	t.Parallel()

	result, err := parser.Parse(offlineUpgrade)
	require.NoError(t, err)

	assert.Equal(t, "BEGIN", result.Text(0))
	assert.Contains(t, result.Text(1), "CREATE TABLE sessions (")
	assert.NotContains(t, result.Text(1), "Running upgrade")
	assert.Equal(t, "COMMIT", result.Text(3))
	assert.Empty(t, result.Text(-1))
	assert.Empty(t, result.Text(4))
}
