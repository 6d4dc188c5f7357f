// Command worker runs a MapReduce worker: it polls a coordinator for
// map and reduce tasks and executes them against a user-supplied Go
// plugin's Map and Reduce symbols.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	mapreduce "gomr"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

var (
	addr       string
	pluginPath string
	workerID   string
	debug      bool
)

func main() {
	root := &cobra.Command{
		Use:   "worker [worker_id] [plugin]",
		Short: "Run a MapReduce worker",
		Args:  cobra.MaximumNArgs(2),
		RunE:  run,
	}

	flags := root.Flags()
	flags.StringVar(&addr, "addr", "0.0.0.0:8995", "coordinator RPC address")
	flags.StringVar(&pluginPath, "plugin", "", "path to a Go plugin exporting Map and Reduce (overridden by the 2nd positional arg)")
	flags.StringVar(&workerID, "id", "", "worker id (overridden by the 1st positional arg; default: hostname plus a generated uuid)")
	flags.BoolVar(&debug, "debug", false, "enable debug logging")

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// applyPositionalArgs overlays spec.md §6's bare positional-arg form
// (worker <worker_id> <plugin>) onto the flag-derived defaults, so the
// binary can be invoked either way.
func applyPositionalArgs(args []string) {
	if len(args) > 0 {
		workerID = args[0]
	}
	if len(args) > 1 {
		pluginPath = args[1]
	}
}

func run(cmd *cobra.Command, args []string) error {
	applyPositionalArgs(args)
	if pluginPath == "" {
		return errors.New("plugin path is required: pass it as the second positional argument or --plugin")
	}

	logger, err := mapreduce.NewLogger(debug)
	if err != nil {
		return err
	}
	defer logger.Sync()

	mapF, reduceF, err := mapreduce.LoadPlugin(pluginPath)
	if err != nil {
		mapreduce.Fatal(logger, "load plugin", err)
	}

	worker := mapreduce.NewWorker(mapreduce.WorkerConfig{
		ID:      workerID,
		Addr:    addr,
		MapF:    mapF,
		ReduceF: reduceF,
		Logger:  logger,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sig
		cancel()
	}()

	if err := worker.Run(ctx); err != nil && ctx.Err() == nil {
		mapreduce.Fatal(logger, "worker failed", err)
	}
	return nil
}
