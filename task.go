package mapreduce

import "fmt"

// MapTask is one map job: one per Segment, id equal to the segment index.
type MapTask struct {
	ID               int
	State            TaskState
	AssignedWorker   string
	InputSegmentPath string
	IntermediatePath string
}

// ReduceTask is one reduce job over a disjoint group of intermediate files.
type ReduceTask struct {
	ID             int
	State          TaskState
	AssignedWorker string
	InputPaths     []string
	OutputPath     string
}

// JobState holds the aggregate counters the scheduler maintains eagerly
// alongside each task state transition.
type JobState struct {
	IdleMap        int
	InProgressMap  int
	CompletedMap   int
	IdleReduce     int
	InProgressReduce int
	CompletedReduce  int
	Finished       bool
}

// TaskRegistry is the in-memory catalog of map and reduce tasks. It has
// no locking of its own: all access is serialized by the Scheduler's
// mutex, per the coordinator's single-owner concurrency model.
type TaskRegistry struct {
	mapTasks    []*MapTask
	reduceTasks []*ReduceTask
}

// NewTaskRegistry builds the task catalog for a job: one MapTask per
// segment, and numReducers ReduceTasks whose InputPaths are disjoint
// contiguous groups of the map intermediate paths, per the
// ceil(numSegments / numReducers) partitioning rule.
func NewTaskRegistry(segmentPaths []string, numReducers int) *TaskRegistry {
	mapTasks := make([]*MapTask, len(segmentPaths))
	intermediatePaths := make([]string, len(segmentPaths))
	for i, seg := range segmentPaths {
		intermediatePath := fmt.Sprintf("mr-int-%d", i)
		intermediatePaths[i] = intermediatePath
		mapTasks[i] = &MapTask{
			ID:               i,
			State:            TaskIdle,
			InputSegmentPath: seg,
			IntermediatePath: intermediatePath,
		}
	}

	reduceTasks := make([]*ReduceTask, numReducers)
	groups := groupContiguous(intermediatePaths, numReducers)
	for i := 0; i < numReducers; i++ {
		reduceTasks[i] = &ReduceTask{
			ID:         i,
			State:      TaskIdle,
			InputPaths: groups[i],
			OutputPath: fmt.Sprintf("mr-out-%d", i),
		}
	}

	return &TaskRegistry{mapTasks: mapTasks, reduceTasks: reduceTasks}
}

// groupContiguous splits items into numGroups contiguous slices of size
// ceil(len(items) / numGroups); the final group may be shorter or empty.
func groupContiguous(items []string, numGroups int) [][]string {
	groups := make([][]string, numGroups)
	if numGroups == 0 {
		return groups
	}

	groupSize := 0
	if len(items) > 0 {
		groupSize = (len(items) + numGroups - 1) / numGroups
	}

	for i := 0; i < numGroups; i++ {
		start := i * groupSize
		if groupSize == 0 || start >= len(items) {
			groups[i] = []string{}
			continue
		}
		end := start + groupSize
		if end > len(items) {
			end = len(items)
		}
		groups[i] = items[start:end]
	}
	return groups
}

// findIdleMap returns the lowest-id IDLE map task, or nil.
func (r *TaskRegistry) findIdleMap() *MapTask {
	for _, t := range r.mapTasks {
		if t.State == TaskIdle {
			return t
		}
	}
	return nil
}

// findIdleReduce returns the lowest-id IDLE reduce task, or nil.
func (r *TaskRegistry) findIdleReduce() *ReduceTask {
	for _, t := range r.reduceTasks {
		if t.State == TaskIdle {
			return t
		}
	}
	return nil
}

// findMapByWorker returns the map task workerID currently owns — that
// is, the one it has IN_PROGRESS. AssignedWorker is retained on a
// COMPLETE task (per the data model), and a worker completes many
// tasks over the life of a job, so matching on AssignedWorker alone
// would resolve to whichever of the worker's tasks has the lowest id,
// not the one it just finished.
func (r *TaskRegistry) findMapByWorker(workerID string) *MapTask {
	for _, t := range r.mapTasks {
		if t.AssignedWorker == workerID && t.State == TaskInProgress {
			return t
		}
	}
	return nil
}

// findReduceByWorker returns the reduce task workerID currently owns,
// i.e. the one it has IN_PROGRESS — see findMapByWorker.
func (r *TaskRegistry) findReduceByWorker(workerID string) *ReduceTask {
	for _, t := range r.reduceTasks {
		if t.AssignedWorker == workerID && t.State == TaskInProgress {
			return t
		}
	}
	return nil
}

// findCompletedMapByWorkerAndOutput locates a COMPLETE map task owned by
// workerID by its output path, regardless of current IN_PROGRESS
// ownership. It exists solely to resolve a duplicate/retried Complete
// call (the task is already COMPLETE, so findMapByWorker no longer
// matches it) to the correct idempotent no-op rather than NOT_FOUND.
func (r *TaskRegistry) findCompletedMapByWorkerAndOutput(workerID, outputFilename string) *MapTask {
	for _, t := range r.mapTasks {
		if t.AssignedWorker == workerID && t.IntermediatePath == outputFilename && t.State == TaskComplete {
			return t
		}
	}
	return nil
}

// findCompletedReduceByWorkerAndOutput is findCompletedMapByWorkerAndOutput
// for reduce tasks.
func (r *TaskRegistry) findCompletedReduceByWorkerAndOutput(workerID, outputFilename string) *ReduceTask {
	for _, t := range r.reduceTasks {
		if t.AssignedWorker == workerID && t.OutputPath == outputFilename && t.State == TaskComplete {
			return t
		}
	}
	return nil
}

func (r *TaskRegistry) totalMap() int    { return len(r.mapTasks) }
func (r *TaskRegistry) totalReduce() int { return len(r.reduceTasks) }
