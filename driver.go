package mapreduce

import (
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// DriverConfig parameterizes one JobDriver run. NumMappers is advisory
// per spec.md §6: segments, not workers, drive map parallelism.
type DriverConfig struct {
	InputDir       string
	OutputPrefix   string
	NumMappers     int
	NumReducers    int
	MaxSegmentSize int
	Addr           string
	Config         *Config
	Logger         *zap.Logger
	Registry       *prometheus.Registry
}

const defaultMaxSegmentSize = 16 * 1024 * 1024

// JobDriver runs the top-level sequence of spec.md §4.5: segment the
// input, build the task registry, start the RPC server, wait for the
// job to finish, then clean up.
type JobDriver struct {
	cfg       DriverConfig
	logger    *zap.Logger
	scheduler *Scheduler
	server    *CoordinatorServer
	metrics   *Metrics
	segDir    string
}

// NewJobDriver prepares a driver without doing any I/O yet.
func NewJobDriver(cfg DriverConfig) *JobDriver {
	if cfg.MaxSegmentSize <= 0 {
		cfg.MaxSegmentSize = defaultMaxSegmentSize
	}
	if cfg.Config == nil {
		cfg.Config = DefaultConfig()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	registry := cfg.Registry
	if registry == nil {
		registry = prometheus.NewRegistry()
	}
	cfg.Registry = registry

	return &JobDriver{
		cfg:     cfg,
		logger:  logger,
		metrics: NewMetrics(registry),
		segDir:  cfg.Config.SegmentsDir(),
	}
}

// Run executes the full job lifecycle and blocks until it completes.
// When cfg.OutputPrefix is set, it becomes the coordinator's working
// directory so the fixed relative names of spec.md's data model
// (segments/, mr-int-<i>, mr-out-<i>) land under it.
func (d *JobDriver) Run() error {
	inputDir, err := filepath.Abs(d.cfg.InputDir)
	if err != nil {
		return errors.Wrapf(err, "resolve input directory %s", d.cfg.InputDir)
	}

	if d.cfg.OutputPrefix != "" {
		if err := os.MkdirAll(d.cfg.OutputPrefix, 0777); err != nil {
			return errors.Wrapf(err, "create output prefix directory %s", d.cfg.OutputPrefix)
		}
		if err := os.Chdir(d.cfg.OutputPrefix); err != nil {
			return errors.Wrapf(err, "chdir to output prefix %s", d.cfg.OutputPrefix)
		}
	}

	segmenter := &Segmenter{
		InputDir:       inputDir,
		SegmentsDir:    d.segDir,
		MaxSegmentSize: d.cfg.MaxSegmentSize,
		Logger:         d.logger,
	}
	segments, err := segmenter.Run()
	if err != nil {
		return errors.Wrap(err, "segment input")
	}

	registry := NewTaskRegistry(segments, d.cfg.NumReducers)
	d.scheduler = NewScheduler(registry, d.logger)
	d.metrics.Update(d.scheduler.Snapshot())

	d.logger.Info("job initialized",
		zap.Int("segments", len(segments)),
		zap.Int("num_mappers_hint", d.cfg.NumMappers),
		zap.Int("num_reducers", d.cfg.NumReducers))

	svc := &CoordinatorService{scheduler: d.scheduler, metrics: d.metrics, logger: d.logger}
	server, err := NewCoordinatorServer(d.cfg.Addr, svc, d.logger)
	if err != nil {
		return errors.Wrap(err, "build coordinator RPC server")
	}
	d.server = server
	if err := server.Start(); err != nil {
		return errors.Wrap(err, "start coordinator RPC server")
	}

	g := new(errgroup.Group)
	g.Go(d.server.Serve)
	g.Go(d.monitor)

	if err := g.Wait(); err != nil {
		return errors.Wrap(err, "job driver")
	}

	if err := os.RemoveAll(d.segDir); err != nil {
		d.logger.Warn("failed to remove segments directory", zap.Error(err))
	}

	d.logger.Info("job complete")
	return nil
}

// monitor waits for the job to finish, then shuts down the RPC server.
// It is event-driven off Scheduler.Done(), with a 1-second poll as a
// fallback so a missed signal can never wedge the job — the minimum
// spec's polling monitor (spec.md §9) generalized with the
// channel-notify variant it also accepts.
func (d *JobDriver) monitor() error {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-d.scheduler.Done():
			return d.server.Shutdown()
		case <-ticker.C:
			if d.scheduler.Finished() {
				return d.server.Shutdown()
			}
		}
	}
}
