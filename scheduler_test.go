package mapreduce

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestScheduler(numSegments, numReducers int) *Scheduler {
	segments := make([]string, numSegments)
	for i := range segments {
		segments[i] = "segment_" + string(rune('a'+i))
	}
	registry := NewTaskRegistry(segments, numReducers)
	return NewScheduler(registry, nil)
}

func TestSchedulerDegenerateJobFinishesImmediately(t *testing.T) {
	s := newTestScheduler(0, 0)
	require.True(t, s.Finished())
	select {
	case <-s.Done():
	default:
		t.Fatal("Done() channel should already be closed")
	}
}

func TestSchedulerAssignRejectsEmptyWorkerID(t *testing.T) {
	s := newTestScheduler(1, 1)
	_, err := s.Assign("")
	require.Error(t, err)
	require.Equal(t, StatusInvalidArgument, StatusOf(err))
}

func TestSchedulerPhaseBarrier(t *testing.T) {
	s := newTestScheduler(2, 1)

	reply1, err := s.Assign("w1")
	require.NoError(t, err)
	require.Equal(t, "map", reply1.TaskName)

	reply2, err := s.Assign("w2")
	require.NoError(t, err)
	require.Equal(t, "map", reply2.TaskName)

	// All map tasks are in progress; reduce must not be handed out yet.
	_, err = s.Assign("w3")
	require.Error(t, err)
	require.Equal(t, StatusUnavailable, StatusOf(err))

	require.NoError(t, s.Complete("w1", "map", reply1.OutputFilename))
	_, err = s.Assign("w3")
	require.Equal(t, StatusUnavailable, StatusOf(err), "reduce still blocked until every map task completes")

	require.NoError(t, s.Complete("w2", "map", reply2.OutputFilename))

	reduceReply, err := s.Assign("w3")
	require.NoError(t, err)
	require.Equal(t, "reduce", reduceReply.TaskName)
}

func TestSchedulerCompleteIsIdempotent(t *testing.T) {
	s := newTestScheduler(1, 1)
	reply, err := s.Assign("w1")
	require.NoError(t, err)

	require.NoError(t, s.Complete("w1", "map", reply.OutputFilename))
	snapshot := s.Snapshot()
	require.Equal(t, 1, snapshot.CompletedMap)

	// Repeating the completion must be a harmless no-op, not a second increment.
	require.NoError(t, s.Complete("w1", "map", reply.OutputFilename))
	snapshot = s.Snapshot()
	require.Equal(t, 1, snapshot.CompletedMap)
}

// TestSchedulerMultiTaskWorkerCompletesBothTasks covers a single worker
// handling two map tasks in sequence (the normal case whenever there
// are more segments than workers): completing the second task must not
// resolve back to the first, already-COMPLETE task.
func TestSchedulerMultiTaskWorkerCompletesBothTasks(t *testing.T) {
	s := newTestScheduler(2, 1)

	reply0, err := s.Assign("w1")
	require.NoError(t, err)
	require.NoError(t, s.Complete("w1", "map", reply0.OutputFilename))
	require.Equal(t, 1, s.Snapshot().CompletedMap)

	reply1, err := s.Assign("w1")
	require.NoError(t, err)
	require.NotEqual(t, reply0.OutputFilename, reply1.OutputFilename)

	require.NoError(t, s.Complete("w1", "map", reply1.OutputFilename))
	require.Equal(t, 2, s.Snapshot().CompletedMap, "the second completion must mark the second task complete, not no-op against the first")

	// A retry of the first task's completion, after the worker has moved
	// on, must still be recognized as an idempotent no-op.
	require.NoError(t, s.Complete("w1", "map", reply0.OutputFilename))
	require.Equal(t, 2, s.Snapshot().CompletedMap)
}

func TestSchedulerCompleteRejectsStaleWorker(t *testing.T) {
	s := newTestScheduler(1, 1)
	_, err := s.Assign("w1")
	require.NoError(t, err)

	err = s.Complete("someone-else", "map", "whatever")
	require.Error(t, err)
	require.Equal(t, StatusNotFound, StatusOf(err))
}

func TestSchedulerCompleteRejectsUnknownTaskName(t *testing.T) {
	s := newTestScheduler(1, 1)
	_, err := s.Assign("w1")
	require.NoError(t, err)

	err = s.Complete("w1", "bogus", "whatever")
	require.Error(t, err)
	require.Equal(t, StatusInvalidArgument, StatusOf(err))
}

func TestSchedulerFinishesOnceLastReduceCompletes(t *testing.T) {
	s := newTestScheduler(1, 1)
	mapReply, err := s.Assign("w1")
	require.NoError(t, err)
	require.NoError(t, s.Complete("w1", "map", mapReply.OutputFilename))

	require.False(t, s.Finished())

	reduceReply, err := s.Assign("w2")
	require.NoError(t, err)
	require.NoError(t, s.Complete("w2", "reduce", reduceReply.OutputFilename))

	require.True(t, s.Finished())
	select {
	case <-s.Done():
	default:
		t.Fatal("Done() channel should be closed once the job finishes")
	}
}
