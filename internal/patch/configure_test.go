package patch_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aqasim81/session-migrate/internal/patch"
)

func scaffold(t *testing.T, env []byte) string {
	t.Helper()

	dir := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(dir, "migrations"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "alembic.ini"), readTestdata(t, "alembic.ini"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "migrations", "env.py"), env, 0o644))

	return dir
}

func TestConfigure_wiresBothFiles(t *testing.T) {
	t.Parallel()

	dir := scaffold(t, readTestdata(t, "env.py"))
	s := patch.Settings{
		URL:          "sqlite:///%(here)s/sessions.db",
		Module:       "example.models",
		MetadataAttr: "Base.metadata",
	}

	require.NoError(t, patch.Configure(dir, "alembic.ini", "migrations", s))

	ini, err := os.ReadFile(filepath.Join(dir, "alembic.ini"))
	require.NoError(t, err)

	url, ok := patch.Option(ini, "alembic", "sqlalchemy.url")
	require.True(t, ok)
	assert.Equal(t, s.URL, url)

	env, err := os.ReadFile(filepath.Join(dir, "migrations", "env.py"))
	require.NoError(t, err)
	assert.Contains(t, string(env), "\nimport example.models\n")
	assert.Contains(t, string(env), "\ntarget_metadata = example.models.Base.metadata\n")

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 2, "no backup or temp files left behind")
}

func TestConfigure_driftedEnv_failsAndLeavesEnvUntouched(t *testing.T) {
	t.Parallel()

	drifted := []byte("target_metadata = None\n")
	dir := scaffold(t, drifted)

	err := patch.Configure(dir, "alembic.ini", "migrations", patch.Settings{
		URL: "sqlite:///x.db", Module: "example.models", MetadataAttr: "Base.metadata",
	})
	require.ErrorIs(t, err, patch.ErrAnchorNotFound)

	env, readErr := os.ReadFile(filepath.Join(dir, "migrations", "env.py"))
	require.NoError(t, readErr)
	assert.Equal(t, drifted, env)
}

func TestConfigure_missingConfigFile_returnsError(t *testing.T) {
	t.Parallel()

	err := patch.Configure(t.TempDir(), "alembic.ini", "migrations", patch.Settings{URL: "sqlite://"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "alembic.ini")
}

func TestConfigure_escapesLonePercentSigns(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		descriptor string
		wantIni    string
	}{
		{
			name:       "url-encoded password is doubled",
			descriptor: "postgresql://adk:p%40ss@db/sessions",
			wantIni:    "postgresql://adk:p%%40ss@db/sessions",
		},
		{
			name:       "here interpolation is written verbatim",
			descriptor: "sqlite:///%(here)s/sessions.db",
			wantIni:    "sqlite:///%(here)s/sessions.db",
		},
		{
			name:       "plain descriptor is written verbatim",
			descriptor: "postgresql+psycopg2://adk:secret@db:5432/sessions",
			wantIni:    "postgresql+psycopg2://adk:secret@db:5432/sessions",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			dir := scaffold(t, readTestdata(t, "env.py"))

			require.NoError(t, patch.Configure(dir, "alembic.ini", "migrations", patch.Settings{
				URL:          tt.descriptor,
				Module:       "example.models",
				MetadataAttr: "Base.metadata",
			}))

			ini, err := os.ReadFile(filepath.Join(dir, "alembic.ini"))
			require.NoError(t, err)

			url, ok := patch.Option(ini, "alembic", "sqlalchemy.url")
			require.True(t, ok)
			assert.Equal(t, tt.wantIni, url)
			assert.Equal(t, tt.descriptor, patch.UnescapePercent(url))
		})
	}
}
