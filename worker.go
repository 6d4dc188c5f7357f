package mapreduce

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net/rpc"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// pollInterval is how long a worker sleeps after an Unavailable Assign
// reply before asking again, per spec.md §6.
const pollInterval = time.Second

// dialTimeout bounds a single RPC round trip, adapted from the teacher's
// common_rpc.go call() helper which wraps net/rpc.Dial in a
// context.WithTimeout rather than letting a hung connection block forever.
const dialTimeout = 10 * time.Second

// WorkerConfig parameterizes one Worker runtime.
type WorkerConfig struct {
	ID      string
	Addr    string
	MapF    MapFunc
	ReduceF ReduceFunc
	Logger  *zap.Logger
}

// Worker runs the pull-based poll loop of spec.md §4.6: ask the
// coordinator for a task, execute it against the user's plug-in
// functions, report completion, repeat until the coordinator stops
// handing out work.
type Worker struct {
	id      string
	addr    string
	mapF    MapFunc
	reduceF ReduceFunc
	logger  *zap.Logger
}

// NewWorker builds a Worker. If cfg.ID is empty, a uuid-suffixed
// hostname-based id is generated so that concurrent workers on the same
// host never collide.
func NewWorker(cfg WorkerConfig) *Worker {
	id := cfg.ID
	if id == "" {
		host, err := os.Hostname()
		if err != nil {
			host = "worker"
		}
		id = fmt.Sprintf("%s-%s", host, uuid.NewString())
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Worker{id: id, addr: cfg.Addr, mapF: cfg.MapF, reduceF: cfg.ReduceF, logger: logger}
}

// Run polls the coordinator for tasks until ctx is canceled, a task
// fails to execute, or an RPC fails with anything other than
// StatusUnavailable (for instance the coordinator process having
// exited, which surfaces as a dial error). Only StatusUnavailable is
// retried.
func (w *Worker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		reply, err := w.assign(ctx)
		if err != nil {
			if StatusOf(err) == StatusUnavailable {
				w.logger.Debug("no task ready, polling again", zap.Duration("interval", pollInterval))
				time.Sleep(pollInterval)
				continue
			}
			return errors.Wrap(err, "assign")
		}

		w.logger.Info("assigned task", zap.String("task_name", reply.TaskName), zap.String("output", reply.OutputFilename))

		if err := w.execute(reply); err != nil {
			return errors.Wrapf(err, "execute %s task", reply.TaskName)
		}

		if err := w.complete(ctx, reply); err != nil {
			return errors.Wrap(err, "complete")
		}
	}
}

// execute dispatches a single assigned task to the map or reduce path.
func (w *Worker) execute(reply *AssignReply) error {
	switch reply.TaskName {
	case "map":
		return w.runMap(reply.InputFilenames[0], reply.OutputFilename)
	case "reduce":
		return w.runReduce(reply.InputFilenames, reply.OutputFilename)
	default:
		return errors.Errorf("unknown task name %q", reply.TaskName)
	}
}

// runMap reads the whole input segment, applies the user map function,
// and writes every emitted key/value pair to a single intermediate
// file — spec.md's contiguous-file partitioning means a map task never
// needs to split its output across reducers the way the teacher's
// doMap did.
func (w *Worker) runMap(inputPath, outputPath string) error {
	input, err := os.ReadFile(inputPath)
	if err != nil {
		return errors.Wrapf(err, "read segment %s", inputPath)
	}

	var lines []string
	emit := func(key, value []byte) {
		lines = append(lines, formatKV(string(key), string(value)))
	}
	w.mapF(input, emit)

	return writeAtomic(outputPath, []byte(strings.Join(lines, "")))
}

// runReduce reads and concatenates every input file in order, parses
// each line into a KeyValue, stable-sorts by key so equal keys form a
// contiguous run, groups them, and calls the user reduce function once
// per group.
func (w *Worker) runReduce(inputPaths []string, outputPath string) error {
	var kvs []KeyValue
	for _, path := range inputPaths {
		fileKVs, err := readKVFile(path)
		if err != nil {
			return errors.Wrapf(err, "read intermediate file %s", path)
		}
		kvs = append(kvs, fileKVs...)
	}

	sort.SliceStable(kvs, func(i, j int) bool { return kvs[i].Key < kvs[j].Key })

	var out []string
	emit := func(key, value string) {
		out = append(out, formatKV(key, value))
	}

	i := 0
	for i < len(kvs) {
		j := i
		var values []string
		for j < len(kvs) && kvs[j].Key == kvs[i].Key {
			values = append(values, kvs[j].Value)
			j++
		}
		w.reduceF(kvs[i].Key, values, emit)
		i = j
	}

	return writeAtomic(outputPath, []byte(strings.Join(out, "")))
}

// formatKV renders a KeyValue using spec.md's intermediate wire format:
// key and value separated by the first tab on the line, one pair per line.
func formatKV(key, value string) string {
	return key + "\t" + value + "\n"
}

// readKVFile parses a file of "key\tvalue\n" lines. Every line written
// by runMap/runReduce carries a trailing newline, so concatenating
// several intermediate files back to back is always safe.
func readKVFile(path string) ([]KeyValue, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var kvs []KeyValue
	r := bufio.NewReader(f)
	for {
		line, err := r.ReadString('\n')
		if len(line) > 0 {
			line = strings.TrimSuffix(line, "\n")
			line = strings.TrimSuffix(line, "\r")
			if line != "" {
				idx := strings.IndexByte(line, '\t')
				if idx < 0 {
					return nil, errors.Errorf("malformed line in %s: missing tab", path)
				}
				kvs = append(kvs, KeyValue{Key: line[:idx], Value: line[idx+1:]})
			}
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
	}
	return kvs, nil
}

// writeAtomic writes content to a temp file alongside path, then renames
// it into place, so a reader can never observe a partially written
// output file.
func writeAtomic(path string, content []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, content, 0666); err != nil {
		return errors.Wrapf(err, "write temp file for %s", path)
	}
	if err := os.Rename(tmp, path); err != nil {
		return errors.Wrapf(err, "rename temp file into %s", path)
	}
	return nil
}

func (w *Worker) assign(ctx context.Context) (*AssignReply, error) {
	args := &AssignArgs{WorkerID: w.id}
	reply := &AssignReply{}
	if err := w.call(ctx, "Coordinator.Assign", args, reply); err != nil {
		return nil, err
	}
	return reply, nil
}

func (w *Worker) complete(ctx context.Context, assigned *AssignReply) error {
	args := &CompleteArgs{WorkerID: w.id, TaskName: assigned.TaskName, OutputFilename: assigned.OutputFilename}
	return w.call(ctx, "Coordinator.Complete", args, &CompleteReply{})
}

// call dials the coordinator and issues a single RPC under dialTimeout,
// adapting the teacher's common_rpc.go call() helper (a context-bounded
// dial racing a done channel against a timeout) to return the
// underlying error instead of collapsing every failure to a bool, so
// the worker loop can distinguish StatusUnavailable from a real
// transport failure.
func (w *Worker) call(ctx context.Context, method string, args, reply interface{}) error {
	ctx, cancel := context.WithTimeout(ctx, dialTimeout)
	defer cancel()

	client, err := rpc.Dial("tcp", w.addr)
	if err != nil {
		return errors.Wrapf(err, "dial coordinator at %s", w.addr)
	}
	defer client.Close()

	call := client.Go(method, args, reply, nil)
	done := make(chan error, 1)
	go func() {
		<-call.Done
		done <- call.Error
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return errors.Wrapf(ctx.Err(), "RPC %s timed out", method)
	}
}
