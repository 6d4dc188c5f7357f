package mapreduce

import (
	"sync"

	"go.uber.org/zap"
)

// Scheduler drives the task assignment/completion state machine described
// in the coordinator's design: it is the only component that mutates a
// TaskRegistry, holding a single mutex for the duration of each Assign or
// Complete call. No blocking I/O ever happens inside that critical
// section.
type Scheduler struct {
	mu       sync.Mutex
	registry *TaskRegistry
	state    JobState

	totalMap    int
	totalReduce int

	logger *zap.Logger

	doneCh   chan struct{}
	doneOnce sync.Once
}

// NewScheduler creates a Scheduler over registry. If the job has no map
// tasks and no reduce tasks at all, it is immediately finished — the
// degenerate job of spec.md's testable property 8.
func NewScheduler(registry *TaskRegistry, logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	totalMap := registry.totalMap()
	totalReduce := registry.totalReduce()

	s := &Scheduler{
		registry: registry,
		state: JobState{
			IdleMap:    totalMap,
			IdleReduce: totalReduce,
		},
		totalMap:    totalMap,
		totalReduce: totalReduce,
		logger:      logger,
		doneCh:      make(chan struct{}),
	}

	if totalMap == 0 && totalReduce == 0 {
		s.state.Finished = true
		s.signalDone()
	}
	return s
}

func (s *Scheduler) signalDone() {
	s.doneOnce.Do(func() { close(s.doneCh) })
}

// Done returns a channel closed exactly once, the moment the job becomes
// finished. A completion monitor can select on it instead of polling.
func (s *Scheduler) Done() <-chan struct{} {
	return s.doneCh
}

// Snapshot returns a copy of the current job counters.
func (s *Scheduler) Snapshot() JobState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Finished reports whether every ReduceTask has completed (sticky once true).
func (s *Scheduler) Finished() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Finished
}

func (s *Scheduler) phase() Phase {
	if s.state.CompletedMap < s.totalMap {
		return PhaseMap
	}
	return PhaseReduce
}

// Assign selects the next task for workerID, per the protocol in
// spec.md §4.3: map tasks are never handed out once exhausted, reduce
// tasks are never handed out before every map task is COMPLETE (the
// phase barrier), and an empty queue returns StatusUnavailable rather
// than blocking.
func (s *Scheduler) Assign(workerID string) (*AssignReply, error) {
	if workerID == "" {
		return nil, newRPCError(StatusInvalidArgument, "worker id must not be empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.phase() {
	case PhaseMap:
		if task := s.registry.findIdleMap(); task != nil {
			task.State = TaskInProgress
			task.AssignedWorker = workerID
			s.state.IdleMap--
			s.state.InProgressMap++
			s.logger.Debug("assigned map task",
				zap.Int("task_id", task.ID), zap.String("worker_id", workerID))
			return &AssignReply{
				TaskName:       "map",
				InputFilenames: []string{task.InputSegmentPath},
				OutputFilename: task.IntermediatePath,
			}, nil
		}
	case PhaseReduce:
		if task := s.registry.findIdleReduce(); task != nil {
			task.State = TaskInProgress
			task.AssignedWorker = workerID
			s.state.IdleReduce--
			s.state.InProgressReduce++
			s.logger.Debug("assigned reduce task",
				zap.Int("task_id", task.ID), zap.String("worker_id", workerID))
			return &AssignReply{
				TaskName:       "reduce",
				InputFilenames: append([]string(nil), task.InputPaths...),
				OutputFilename: task.OutputPath,
			}, nil
		}
	}

	return nil, newRPCError(StatusUnavailable, "no task ready")
}

// Complete records that workerID finished taskname, per the protocol in
// spec.md §4.3. A completion for a task that workerID does not currently
// own is a stale completion and is rejected with StatusNotFound. A
// repeated completion for a task workerID does own is a no-op that
// still reports success.
func (s *Scheduler) Complete(workerID, taskname, outputFilename string) error {
	if workerID == "" {
		return newRPCError(StatusInvalidArgument, "worker id must not be empty")
	}
	if taskname != "map" && taskname != "reduce" {
		return newRPCError(StatusInvalidArgument, "unknown taskname %q", taskname)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	switch taskname {
	case "map":
		task := s.registry.findMapByWorker(workerID)
		if task == nil {
			// The worker may have already moved on (its one IN_PROGRESS
			// task is now something else, or nothing), and this is a
			// retried Complete call for a task it finished earlier.
			task = s.registry.findCompletedMapByWorkerAndOutput(workerID, outputFilename)
		}
		if task == nil {
			return newRPCError(StatusNotFound, "no in-progress map task assigned to %q", workerID)
		}
		if task.State == TaskComplete {
			return nil
		}
		task.State = TaskComplete
		s.state.InProgressMap--
		s.state.CompletedMap++
		s.logger.Debug("completed map task",
			zap.Int("task_id", task.ID), zap.String("worker_id", workerID), zap.String("output", outputFilename))

	case "reduce":
		task := s.registry.findReduceByWorker(workerID)
		if task == nil {
			task = s.registry.findCompletedReduceByWorkerAndOutput(workerID, outputFilename)
		}
		if task == nil {
			return newRPCError(StatusNotFound, "no in-progress reduce task assigned to %q", workerID)
		}
		if task.State == TaskComplete {
			return nil
		}
		task.State = TaskComplete
		s.state.InProgressReduce--
		s.state.CompletedReduce++
		s.logger.Debug("completed reduce task",
			zap.Int("task_id", task.ID), zap.String("worker_id", workerID), zap.String("output", outputFilename))

		if s.state.CompletedReduce == s.totalReduce {
			s.state.Finished = true
			s.signalDone()
		}
	}

	return nil
}
