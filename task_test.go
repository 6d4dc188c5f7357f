package mapreduce

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGroupContiguousEvenSplit(t *testing.T) {
	items := []string{"a", "b", "c", "d"}
	groups := groupContiguous(items, 2)
	require.Equal(t, [][]string{{"a", "b"}, {"c", "d"}}, groups)
}

func TestGroupContiguousCeilSplit(t *testing.T) {
	items := []string{"a", "b", "c", "d", "e"}
	groups := groupContiguous(items, 2)
	require.Equal(t, [][]string{{"a", "b", "c"}, {"d", "e"}}, groups)
}

func TestGroupContiguousMoreGroupsThanItems(t *testing.T) {
	items := []string{"a"}
	groups := groupContiguous(items, 3)
	require.Equal(t, [][]string{{"a"}, {}, {}}, groups)
}

func TestGroupContiguousEmptyItems(t *testing.T) {
	groups := groupContiguous(nil, 3)
	require.Equal(t, [][]string{{}, {}, {}}, groups)
}

func TestGroupContiguousZeroGroups(t *testing.T) {
	groups := groupContiguous([]string{"a"}, 0)
	require.Empty(t, groups)
}

func TestNewTaskRegistryPartitionIsDisjointAndCovering(t *testing.T) {
	segments := []string{"s0", "s1", "s2", "s3", "s4"}
	reg := NewTaskRegistry(segments, 2)

	require.Len(t, reg.mapTasks, 5)
	require.Len(t, reg.reduceTasks, 2)

	seen := map[string]bool{}
	for _, rt := range reg.reduceTasks {
		for _, p := range rt.InputPaths {
			require.False(t, seen[p], "intermediate path assigned to more than one reduce task: %s", p)
			seen[p] = true
		}
	}
	require.Len(t, seen, 5)
}

func TestNewTaskRegistryZeroReducers(t *testing.T) {
	reg := NewTaskRegistry([]string{"s0"}, 0)
	require.Len(t, reg.reduceTasks, 0)
}

func TestTaskStateString(t *testing.T) {
	require.Equal(t, "IDLE", TaskIdle.String())
	require.Equal(t, "IN_PROGRESS", TaskInProgress.String())
	require.Equal(t, "COMPLETE", TaskComplete.String())
}
