package mapreduce

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m,
		// net/rpc's ServeConn and the standard library's keep-alive
		// timers are not ours to wait on.
		goleak.IgnoreTopFunction("internal/poll.runtime_pollWait"),
	)
}

func restoreCwd(t *testing.T) {
	t.Helper()
	cwd, err := os.Getwd()
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, os.Chdir(cwd)) })
}

// TestEndToEndWordCount runs a full coordinator plus two workers over a
// real TCP connection and verifies every input word is counted exactly
// once overall, mirroring the teacher's TestBasic end-to-end shape but
// against the pull-based Assign/Complete protocol.
func TestEndToEndWordCount(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping end-to-end test in short mode")
	}
	restoreCwd(t)

	inputDir := t.TempDir()
	outputDir := t.TempDir()

	words := []string{"the", "quick", "brown", "fox", "the", "lazy", "dog", "the", "fox"}
	require.NoError(t, os.WriteFile(filepath.Join(inputDir, "a.txt"), []byte(strings.Join(words[:5], " ")), 0666))
	require.NoError(t, os.WriteFile(filepath.Join(inputDir, "b.txt"), []byte(strings.Join(words[5:], " ")), 0666))

	const addr = "127.0.0.1:28995"
	driver := NewJobDriver(DriverConfig{
		InputDir:       inputDir,
		OutputPrefix:   outputDir,
		NumReducers:    2,
		MaxSegmentSize: 4096,
		Addr:           addr,
	})

	driverDone := make(chan error, 1)
	go func() { driverDone <- driver.Run() }()

	// Give the coordinator a moment to bind before workers start dialing.
	time.Sleep(50 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	workerDone := make(chan error, 2)
	for i := 0; i < 2; i++ {
		w := NewWorker(WorkerConfig{
			ID:      "worker-" + strconv.Itoa(i),
			Addr:    addr,
			MapF:    wordCountMap,
			ReduceF: sumCountsReduce,
		})
		go func() { workerDone <- w.Run(ctx) }()
	}

	select {
	case err := <-driverDone:
		require.NoError(t, err)
	case <-time.After(30 * time.Second):
		t.Fatal("driver did not finish in time")
	}
	cancel()
	for i := 0; i < 2; i++ {
		<-workerDone
	}

	counts := map[string]int{}
	for i := 0; i < 2; i++ {
		path := filepath.Join(outputDir, "mr-out-"+strconv.Itoa(i))
		kvs, err := readKVFile(path)
		require.NoError(t, err)
		for _, kv := range kvs {
			n, err := strconv.Atoi(kv.Value)
			require.NoError(t, err)
			counts[kv.Key] += n
		}
	}

	expected := map[string]int{"the": 3, "quick": 1, "brown": 1, "fox": 2, "lazy": 1, "dog": 1}
	require.Equal(t, expected, counts)
}

// sumCountsReduce emits the total count for a key, as a real word-count
// reduce function would over per-word "1" intermediate values.
func sumCountsReduce(key string, values []string, emit func(key, value string)) {
	emit(key, strconv.Itoa(len(values)))
}

func TestDriverDegenerateJobCompletesWithEmptyInput(t *testing.T) {
	restoreCwd(t)

	inputDir := t.TempDir()
	outputDir := t.TempDir()

	const addr = "127.0.0.1:28996"
	driver := NewJobDriver(DriverConfig{
		InputDir:     inputDir,
		OutputPrefix: outputDir,
		NumReducers:  0,
		Addr:         addr,
	})

	done := make(chan error, 1)
	go func() { done <- driver.Run() }()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("driver with no segments and no reducers must finish immediately")
	}
}
