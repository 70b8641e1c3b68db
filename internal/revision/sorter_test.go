package revision_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aqasim81/session-migrate/internal/revision"
)

func step(rev string, downs ...string) revision.Step {
	return revision.Step{Revision: rev, DownRevisions: downs}
}

func revisions(steps []revision.Step) []string {
	out := make([]string, len(steps))
	for i, s := range steps {
		out[i] = s.Revision
	}

	return out
}

func TestHeads(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		steps []revision.Step
		want  []string
	}{
		{name: "no steps", steps: nil, want: []string{}},
		{name: "single base", steps: []revision.Step{step("a")}, want: []string{"a"}},
		{name: "linear chain", steps: []revision.Step{step("b", "a"), step("a"), step("c", "b")}, want: []string{"c"}},
		{name: "branched", steps: []revision.Step{step("a"), step("c", "a"), step("b", "a")}, want: []string{"b", "c"}},
		{name: "merged", steps: []revision.Step{step("a"), step("b", "a"), step("c", "a"), step("d", "b", "c")}, want: []string{"d"}},
		{name: "parent outside set", steps: []revision.Step{step("n", "stamped")}, want: []string{"n"}},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, revision.Heads(tt.steps))
		})
	}
}

func TestOrder(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		steps []revision.Step
		want  []string
	}{
		{name: "reverse chain", steps: []revision.Step{step("c", "b"), step("b", "a"), step("a")}, want: []string{"a", "b", "c"}},
		{name: "merge after both branches", steps: []revision.Step{step("d", "b", "c"), step("c", "a"), step("b", "a"), step("a")}, want: []string{"a", "b", "c", "d"}},
		{name: "unknown parent treated as applied", steps: []revision.Step{step("y", "x"), step("x", "old")}, want: []string{"x", "y"}},
		{name: "empty", steps: []revision.Step{}, want: []string{}},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			ordered, err := revision.Order(tt.steps)
			require.NoError(t, err)
			assert.Equal(t, tt.want, revisions(ordered))
		})
	}
}

func TestOrder_cycle_returnsError(t *testing.T) {
	t.Parallel()

	_, err := revision.Order([]revision.Step{step("a", "b"), step("b", "a")})
	require.ErrorIs(t, err, revision.ErrCycle)
}

func TestOrder_doesNotMutateInput(t *testing.T) {
	t.Parallel()

	input := []revision.Step{step("b", "a"), step("a")}

	_, err := revision.Order(input)
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "a"}, revisions(input))
}
