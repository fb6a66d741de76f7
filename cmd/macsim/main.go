// Command macsim runs the cycle-driven GPU warp-scheduling simulator
// against a recorded trace.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"github.com/macsim/macsim/internal/config"
	"github.com/macsim/macsim/internal/sim/dispatch"
	"github.com/macsim/macsim/internal/sim/inspector"
	"github.com/macsim/macsim/internal/sim/simlog"
	"github.com/macsim/macsim/internal/sim/simulator"
	"github.com/macsim/macsim/internal/sim/stats"
)

// internalAssertionError marks the one class of failure this simulator
// treats as a bug rather than bad input or a soft runtime condition --
// recovered in main and mapped to exit code 15, per SPEC_FULL.md §6/§7.
type internalAssertionError struct{ msg string }

func (e *internalAssertionError) Error() string { return e.msg }

func main() {
	os.Exit(run())
}

func run() (code int) {
	defer func() {
		if r := recover(); r != nil {
			if e, ok := r.(*internalAssertionError); ok {
				fmt.Fprintln(os.Stderr, "macsim: internal assertion failed:", e.msg)
				code = 15
				return
			}
			panic(r)
		}
	}()

	gpuConfigPath := pflag.StringP("gpu-config", "g", "", "GPU parameter XML file (compulsory)")
	kernelConfigPath := pflag.StringP("kernel-config", "t", "", "kernel configuration file (compulsory; overrides the path in the XML)")
	maxCycles := pflag.Uint64P("cycles", "c", 0, "stop after this many cycles (default: unbounded)")
	metricsAddr := pflag.String("metrics-addr", "", "if set, serve Prometheus metrics on this address")
	inspect := pflag.Bool("inspect", false, "launch the interactive single-step inspector instead of running headless")
	pflag.Parse()

	if *gpuConfigPath == "" || *kernelConfigPath == "" {
		fmt.Fprintln(os.Stderr, "Usage: macsim -g <gpu-config.xml> -t <kernel-config.txt> [-c <max-cycles>] [--metrics-addr host:port] [--inspect]")
		pflag.PrintDefaults()
		return 1
	}

	log := simlog.New(logrus.InfoLevel)

	params, err := config.Load(*gpuConfigPath, log)
	if err != nil {
		log.WithError(err).Error("macsim: could not load gpu configuration")
		return 1
	}

	tracePath := *kernelConfigPath

	sim, err := simulator.New(params, log)
	if err != nil {
		log.WithError(err).Error("macsim: could not build simulator")
		return 1
	}

	if err := loadKernels(sim, tracePath, params.NRepeat, log); err != nil {
		log.WithError(err).Error("macsim: could not load kernel configuration")
		return 1
	}

	if *inspect {
		if err := inspector.Run(sim); err != nil {
			log.WithError(err).Error("macsim: inspector exited with error")
			return 1
		}
		logFinalStats(log, sim.Stats)
		return 0
	}

	if err := runHeadless(sim, *maxCycles, *metricsAddr, log); err != nil {
		log.WithError(err).Error("macsim: simulation failed")
		return 1
	}
	logFinalStats(log, sim.Stats)
	return 0
}

// loadKernels parses the top-level kernel index and every kernel config it
// names, registering each with the simulator's dispatcher. NRepeat (from
// the GPU parameter set) replays the whole kernel list that many times.
func loadKernels(sim *simulator.Simulator, tracePath string, repeat int, log *logrus.Logger) error {
	idx, err := config.ParseRunIndex(tracePath)
	if err != nil {
		return err
	}
	if repeat < 1 {
		repeat = 1
	}
	for r := 0; r < repeat; r++ {
		for _, kernelPath := range idx.KernelPaths {
			kc, err := config.ParseKernelConfig(kernelPath)
			if err != nil {
				return err
			}
			specs := make([]dispatch.WarpSpec, len(kc.Warps))
			for i, we := range kc.Warps {
				specs[i] = dispatch.WarpSpec{WarpID: we.WarpID, TracePath: kc.TracePath(we.WarpID)}
			}
			logKernelInfo(log, kc)
			sim.LoadKernel(specs)
		}
	}
	return nil
}

// logKernelInfo reads the kernel's "_info.txt" sibling and logs its
// declared per-warp instruction totals, the same accounting
// original_source/.../macsim.cpp prints ("# of blocks / # of warps / # of
// Instrs") right after loading a kernel's config. The info file is
// supplementary bookkeeping, not required to run the kernel, so a missing
// or malformed one is only logged, never fatal.
func logKernelInfo(log *logrus.Logger, kc *config.KernelConfig) {
	entries, err := config.ParseInfo(kc.InfoPath())
	if err != nil {
		log.WithError(err).Debug("macsim: no kernel instruction-count info available")
		return
	}
	var total uint64
	for _, e := range entries {
		total += e.InstCount
	}
	log.WithFields(logrus.Fields{
		"warps":        len(kc.Warps),
		"instrs_total": total,
	}).Info("macsim: kernel info loaded")
}

// runHeadless drives the simulation loop to completion, optionally serving
// Prometheus metrics on a second goroutine for the duration of the run.
// The two goroutines run under one errgroup; they never share simulator
// state directly, only the mutex-guarded stats snapshot (see SPEC_FULL.md
// §5, "Ambient concurrency"). When the simulation finishes it shuts the
// metrics server down. A metrics-server error does not stop the
// simulation; it is returned once the simulation has finished.
func runHeadless(sim *simulator.Simulator, maxCycles uint64, metricsAddr string, log *logrus.Logger) error {
	group, _ := errgroup.WithContext(context.Background())

	var server *http.Server
	if metricsAddr != "" {
		reg := prometheus.NewRegistry()
		reg.MustRegister(stats.NewCollector(sim.Stats))
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
		server = &http.Server{Addr: metricsAddr, Handler: mux}

		group.Go(func() error {
			log.WithField("addr", metricsAddr).Info("macsim: serving metrics")
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				return fmt.Errorf("metrics server: %w", err)
			}
			return nil
		})
	}

	group.Go(func() error {
		defer func() {
			if server != nil {
				server.Shutdown(context.Background())
			}
		}()
		sim.Run(maxCycles)
		return nil
	})

	return group.Wait()
}

func logFinalStats(log *logrus.Logger, s *stats.Stats) {
	snap := s.Snapshot()
	log.WithFields(logrus.Fields{
		"cycles":                 snap.Cycles,
		"instructions_retired":   snap.InstrsRetired,
		"instructions_per_cycle": snap.InstrPerCycle(),
		"stall_cycles":           snap.StallCycles,
		"cache_hit_rate_percent": snap.CacheHitRatePercent(),
		"mem_requests":           snap.MemRequests,
		"mem_responses":          snap.MemResponses,
		"avg_response_latency":   snap.AvgResponseLatency(),
		"timed_out_requests":     snap.TimedOutRequests,
	}).Info("macsim: simulation finished")
}
