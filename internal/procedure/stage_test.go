package procedure_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/aqasim81/session-migrate/internal/procedure"
)

func TestStage_String(t *testing.T) {
	t.Parallel()

	tests := []struct {
		stage procedure.Stage
		want  string
	}{
		{procedure.StageValidate, "validate"},
		{procedure.StageGuard, "guard"},
		{procedure.StageScaffold, "scaffold"},
		{procedure.StageConfigure, "configure"},
		{procedure.StageStamp, "stamp"},
		{procedure.StageGenerate, "generate"},
		{procedure.StageInject, "inject"},
		{procedure.StageAnalyze, "analyze"},
		{procedure.StageUpgrade, "upgrade"},
		{procedure.Stage(42), "stage(42)"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.want, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tt.want, tt.stage.String())
		})
	}
}

func TestStage_Description(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "stamping database at head", procedure.StageStamp.Description())
	assert.Empty(t, procedure.Stage(42).Description())
}

func TestState_String(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "start", procedure.StateStart.String())
	assert.Equal(t, "workspace-checked", procedure.StateWorkspaceChecked.String())
	assert.Equal(t, "upgraded", procedure.StateUpgraded.String())
	assert.Equal(t, "failed", procedure.StateFailed.String())
	assert.Equal(t, "state(-1)", procedure.State(-1).String())
}

func TestStageError(t *testing.T) {
	t.Parallel()

	cause := errors.New("boom")
	err := &procedure.StageError{Stage: procedure.StageStamp, Err: cause}

	assert.EqualError(t, err, "stamp failed: boom")
	assert.ErrorIs(t, err, cause)
}
