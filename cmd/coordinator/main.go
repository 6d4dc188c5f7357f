// Command coordinator runs the MapReduce coordinator: it segments an
// input directory, builds the map/reduce task pipeline, and serves it
// to workers over RPC until the job finishes.
package main

import (
	"fmt"
	"net/http"
	"os"
	"strconv"

	mapreduce "gomr"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	inputDir       string
	outputPrefix   string
	numMappers     int
	numReducers    int
	maxSegmentSize int
	addr           string
	configPath     string
	metricsAddr    string
	debug          bool
)

func main() {
	root := &cobra.Command{
		Use:   "coordinator [input_dir] [output_file_prefix] [num_mappers] [num_reducers]",
		Short: "Run the MapReduce coordinator",
		Args:  cobra.MaximumNArgs(4),
		RunE:  run,
	}

	flags := root.Flags()
	flags.StringVar(&inputDir, "input", "", "input directory to segment (overridden by the 1st positional arg)")
	flags.StringVar(&outputPrefix, "output-prefix", "", "working directory for segments/ and task output files (overridden by the 2nd positional arg)")
	flags.IntVar(&numMappers, "num-mappers", 0, "advisory map parallelism hint (overridden by the 3rd positional arg)")
	flags.IntVar(&numReducers, "num-reducers", 1, "number of reduce tasks (overridden by the 4th positional arg)")
	flags.IntVar(&maxSegmentSize, "max-segment-size", 0, "maximum segment size in bytes (default 16MiB)")
	flags.StringVar(&addr, "addr", "0.0.0.0:8995", "RPC bind address")
	flags.StringVar(&configPath, "config", "", "optional YAML config file")
	flags.StringVar(&metricsAddr, "metrics-addr", "", "optional address to serve Prometheus metrics on")
	flags.BoolVar(&debug, "debug", false, "enable debug logging")

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// applyPositionalArgs overlays spec.md §6's bare positional-arg form
// (coordinator <input_dir> <output_file_prefix> <num_mappers>
// <num_reducers>) onto the flag-derived defaults, so the binary can be
// invoked either way.
func applyPositionalArgs(args []string) error {
	if len(args) > 0 {
		inputDir = args[0]
	}
	if len(args) > 1 {
		outputPrefix = args[1]
	}
	if len(args) > 2 {
		n, err := strconv.Atoi(args[2])
		if err != nil {
			return errors.Wrapf(err, "num_mappers %q", args[2])
		}
		numMappers = n
	}
	if len(args) > 3 {
		n, err := strconv.Atoi(args[3])
		if err != nil {
			return errors.Wrapf(err, "num_reducers %q", args[3])
		}
		numReducers = n
	}
	return nil
}

func run(cmd *cobra.Command, args []string) error {
	if err := applyPositionalArgs(args); err != nil {
		return err
	}
	if inputDir == "" {
		return errors.New("input directory is required: pass it as the first positional argument or --input")
	}

	logger, err := mapreduce.NewLogger(debug)
	if err != nil {
		return err
	}
	defer logger.Sync()

	cfg, err := mapreduce.LoadConfig(configPath)
	if err != nil {
		mapreduce.Fatal(logger, "load config", err)
	}

	registry := prometheus.NewRegistry()
	if metricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", mapreduce.Handler(registry))
		go func() {
			if err := http.ListenAndServe(metricsAddr, mux); err != nil {
				logger.Error("metrics server stopped", zap.Error(err))
			}
		}()
		logger.Info("serving metrics", zap.String("addr", metricsAddr))
	}

	driver := mapreduce.NewJobDriver(mapreduce.DriverConfig{
		InputDir:       inputDir,
		OutputPrefix:   outputPrefix,
		NumMappers:     numMappers,
		NumReducers:    numReducers,
		MaxSegmentSize: maxSegmentSize,
		Addr:           addr,
		Config:         cfg,
		Logger:         logger,
		Registry:       registry,
	})

	if err := driver.Run(); err != nil {
		mapreduce.Fatal(logger, "job failed", err)
	}
	return nil
}
