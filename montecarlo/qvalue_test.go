package montecarlo

import (
	"testing"

	"github.com/stretchr/testify/require"

	"tengen/game"
)

// stateWithInvalid builds a 2x2 state whose listed board actions are
// invalid.
func stateWithInvalid(t *testing.T, invalid ...int) game.State {
	t.Helper()
	planes := make([]float32, game.NumPlanes*2*2)
	for _, action := range invalid {
		planes[game.PlaneInvalid*4+action] = 1
	}
	return game.StateFromPlanes(2, planes)
}

func TestValsToQs(t *testing.T) {
	state := stateWithInvalid(t, 0, 2)
	// Valid actions: 1, 3 and pass (4).
	vals := []float32{0.5, -0.25, 0.75}

	qs := ValsToQs(vals, state)

	require.Len(t, qs, state.ActionSize())
	require.Zero(t, qs[0], "invalid action stays zero")
	require.Zero(t, qs[2], "invalid action stays zero")
	require.Equal(t, float32(-0.5), qs[1], "valid action gets the negated child value")
	require.Equal(t, float32(0.25), qs[3])
	require.Equal(t, float32(-0.75), qs[4])
}

func TestValsToQsZeroAtEveryInvalidIndex(t *testing.T) {
	state := stateWithInvalid(t, 1, 2, 3)
	valid := state.ValidMoves()
	vals := []float32{0.9, -0.9}

	qs := ValsToQs(vals, state)

	for action, v := range valid {
		if v == 0 {
			require.Zero(t, qs[action], "action %d", action)
		}
	}
}

func TestInvertValue(t *testing.T) {
	require.Equal(t, float32(-0.5), InvertValue(0.5))
	require.Equal(t, float32(0), InvertValue(0))
}
