package replay

import (
	"os"
	"testing"

	"github.com/stretchr/testify/require"
)

func testTrajectory(gameID string, steps int) Trajectory {
	traj := Trajectory{GameID: gameID}
	for i := 0; i < steps; i++ {
		traj.Transitions = append(traj.Transitions, Transition{
			State:        []float32{float32(i), 1, 0},
			Action:       int32(i),
			Reward:       float32(i) / 2,
			NextState:    []float32{float32(i + 1), 0, 1},
			Terminal:     uint8(boolToByte(i == steps-1)),
			Outcome:      1,
			SearchPolicy: []float32{0.25, 0.75},
		})
	}
	return traj
}

func boolToByte(b bool) int {
	if b {
		return 1
	}
	return 0
}

func TestShardRoundTrip(t *testing.T) {
	dir := t.TempDir()
	trajs := []Trajectory{testTrajectory("a", 3), testTrajectory("b", 5)}

	require.NoError(t, SaveShard(dir, 0, trajs))

	loaded, err := LoadShard(ShardPath(dir, 0))
	require.NoError(t, err)
	require.Equal(t, trajs, loaded, "persisted transitions load back element for element")
}

func TestSaveShardOverwrites(t *testing.T) {
	dir := t.TempDir()

	require.NoError(t, SaveShard(dir, 2, []Trajectory{testTrajectory("old", 4)}))
	require.NoError(t, SaveShard(dir, 2, []Trajectory{testTrajectory("new", 1)}))

	loaded, err := LoadShard(ShardPath(dir, 2))
	require.NoError(t, err)
	require.Len(t, loaded, 1)
	require.Equal(t, "new", loaded[0].GameID)
}

func TestLoadAll(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, SaveShard(dir, 0, []Trajectory{testTrajectory("a", 2)}))
	require.NoError(t, SaveShard(dir, 1, []Trajectory{testTrajectory("b", 3), testTrajectory("c", 1)}))

	all, err := LoadAll(dir)
	require.NoError(t, err)
	require.Len(t, all, 3)

	// No temp files left behind.
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 2)
}

func TestLoadAllMissingDirIsEmpty(t *testing.T) {
	all, err := LoadAll(t.TempDir() + "/nope")
	require.NoError(t, err)
	require.Empty(t, all)
}

func TestClearDir(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, SaveShard(dir, 0, []Trajectory{testTrajectory("a", 2)}))
	require.NoError(t, ClearDir(dir))

	all, err := LoadAll(dir)
	require.NoError(t, err)
	require.Empty(t, all)
}
