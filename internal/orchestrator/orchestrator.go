// Package orchestrator implements the Run Orchestrator (spec.md
// §4.F): the top-level coordinator that resolves a RunPlan, spawns
// the generator and every algorithm, wires the fan-out and collector
// workers, drives them to completion, and reaps every child.
//
// Grounded on cmd/distri/distri.go's verb dispatch (a single function
// owning every child/worker for one invocation) and
// internal/batch/batch.go's Ctx.Build (a coordinator holding
// configuration plus an errgroup over concurrent children).
package orchestrator

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"io"
	"strings"
	"sync"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/somombo/impalab"
	"github.com/somombo/impalab/internal/collector"
	"github.com/somombo/impalab/internal/fanout"
	"github.com/somombo/impalab/internal/launcher"
	"github.com/somombo/impalab/internal/logging"
)

// Config bundles a resolved RunPlan with everything Run needs beyond
// it: the seed to use (nil draws a fresh one), passthrough args for
// the generator, the streams to wire the orchestrator's own
// stdout/stderr to, and the logger.
type Config struct {
	Plan        *RunPlan
	Seed        *uint64
	Passthrough []string // appended to the generator's argv, after --seed

	Stdout io.Writer
	Stderr io.Writer
	Log    *logging.Logger
}

// Result is the outcome of one run: the seed actually used, per-child
// exit codes, and any IO-level failures raised by workers.
type Result struct {
	SeedUsed   uint64
	ChildExits map[string]int
	Failed     []*impalab.ChildNonzeroExit
	IOErrors   []*impalab.PipeIOError
	StartedAt  time.Time
	Duration   time.Duration
}

// ExitCode composes the process exit status per spec.md §6: 0 iff
// every child exited 0 and no orchestrator-side IO error was raised;
// 2 if any worker hit a PipeIOError (an orchestrator-side IO
// failure); otherwise 1 if any child exited non-zero.
func (r *Result) ExitCode() int {
	if len(r.IOErrors) > 0 {
		return 2
	}
	if len(r.Failed) > 0 {
		return 1
	}
	return 0
}

// Summary renders the single consolidated failure message spec.md §7
// calls for: every failing component and its exit code, plus any
// worker IO errors.
func (r *Result) Summary() string {
	if r.ExitCode() == 0 {
		return ""
	}
	var sb strings.Builder
	for _, f := range r.Failed {
		fmt.Fprintf(&sb, "%v\n", f)
	}
	for _, ioerr := range r.IOErrors {
		fmt.Fprintf(&sb, "%v\n", ioerr)
	}
	return strings.TrimRight(sb.String(), "\n")
}

// child is one spawned process this run owns, tracked so cancellation
// and early-spawn-failure teardown can reach every live handle.
type child struct {
	name   string
	handle *launcher.Handle
}

// Run spawns plan's generator and algorithms, wires the fan-out and
// collectors, drives every worker to completion, and reaps every
// child (spec.md §4.F steps 4-7). ctx being canceled (e.g. by
// impalab.InterruptibleContext on SIGINT/SIGTERM) propagates
// termination to every live child's process group; Run still waits
// for all of them to be reaped before returning (spec.md §5,
// "Graceful shutdown is required").
func Run(ctx context.Context, cfg Config) (*Result, error) {
	plan := cfg.Plan
	result := &Result{ChildExits: make(map[string]int), StartedAt: time.Now()}

	seed, err := resolveSeed(cfg.Seed)
	if err != nil {
		return nil, err
	}
	result.SeedUsed = seed

	var children []child

	// Spawn the generator, if any.
	var genHandle *launcher.Handle
	if !plan.Generator.None {
		argv := append([]string{}, plan.Generator.Run.Args...)
		argv = append(argv, fmt.Sprintf("--seed=%d", seed))
		argv = append(argv, cfg.Passthrough...)
		run := plan.Generator.Run
		run.Args = argv
		cfg.Log.Infof("seed=%d", seed)

		h, err := launcher.Spawn(plan.Generator.Name, run, launcher.StdioPolicy{
			Stdin:  launcher.Null,
			Stdout: launcher.Capture,
			Stderr: launcher.Capture,
		})
		if err != nil {
			return nil, err
		}
		genHandle = h
		children = append(children, child{name: plan.Generator.Name, handle: h})
	}

	// Spawn every algorithm, in the plan's order.
	algoHandles := make([]*launcher.Handle, len(plan.Algorithms))
	for i, spec := range plan.Algorithms {
		argv := append([]string{}, spec.Run.Args...)
		argv = append(argv, "--functions="+strings.Join(spec.Functions, ","))
		run := spec.Run
		run.Args = argv

		stdinMode := launcher.Null
		if genHandle != nil {
			stdinMode = launcher.Capture
		}
		h, err := launcher.Spawn(spec.Language, run, launcher.StdioPolicy{
			Stdin:  stdinMode,
			Stdout: launcher.Capture,
			Stderr: launcher.Capture,
		})
		if err != nil {
			// Already-spawned children are terminated and reaped before
			// the SpawnError is surfaced (spec.md §7).
			terminateAndReap(children)
			return nil, err
		}
		algoHandles[i] = h
		children = append(children, child{name: spec.Language, handle: h})
	}

	// Watch for cancellation and propagate it to every live child's
	// process group; the drive/reap below still runs to completion
	// naturally once children exit.
	driveDone := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			for _, c := range children {
				c.handle.Terminate(syscall.SIGTERM)
			}
		case <-driveDone:
		}
	}()
	defer close(driveDone)

	stdoutSink := collector.NewSerialWriter(cfg.Stdout)
	stderrSink := collector.NewSerialWriter(cfg.Stderr)

	var ioErrsMu sync.Mutex
	recordIOErr := func(err error) {
		if err == nil {
			return
		}
		pe, ok := err.(*impalab.PipeIOError)
		if !ok {
			return
		}
		ioErrsMu.Lock()
		result.IOErrors = append(result.IOErrors, pe)
		ioErrsMu.Unlock()
		cfg.Log.Warnf("%v", pe)
	}

	// Minimum worker set per spec.md §5: 1 fan-out + N collectors +
	// (N+1) stderr forwarders. Every eg.Go closure here reports its
	// failure through recordIOErr and always returns nil itself, so
	// that eg.Wait() behaves as a plain join (spec.md §7: "the
	// orchestrator accumulates all errors rather than returning on the
	// first").
	var eg errgroup.Group

	if genHandle != nil {
		consumers := make([]fanout.Consumer, 0, len(algoHandles))
		for i, h := range algoHandles {
			consumers = append(consumers, fanout.Consumer{Name: plan.Algorithms[i].Language, W: h.Stdin})
		}
		eg.Go(func() error {
			if err := fanout.Run(genHandle.Stdout, consumers, cfg.Log); err != nil {
				recordIOErr(&impalab.PipeIOError{Worker: "fanout", Err: err})
			}
			return nil
		})
		eg.Go(func() error {
			collector.ForwardStderr(plan.Generator.Name, genHandle.Stderr, stderrSink)
			return nil
		})
	}

	for i, h := range algoHandles {
		spec := plan.Algorithms[i]
		h := h
		eg.Go(func() error {
			_, err := collector.Collect(spec.Language, h.Stdout, stdoutSink, cfg.Log)
			recordIOErr(err)
			return nil
		})
		eg.Go(func() error {
			collector.ForwardStderr(spec.Language, h.Stderr, stderrSink)
			return nil
		})
	}

	eg.Wait()

	for _, c := range children {
		status, err := c.handle.Wait()
		if err != nil {
			recordIOErr(&impalab.PipeIOError{Worker: "wait:" + c.name, Err: err})
			continue
		}
		result.ChildExits[c.name] = status.Code
		if status.Code != 0 {
			result.Failed = append(result.Failed, &impalab.ChildNonzeroExit{Component: c.name, ExitCode: status.Code})
		}
	}

	result.Duration = time.Since(result.StartedAt)
	return result, nil
}

func resolveSeed(seed *uint64) (uint64, error) {
	if seed != nil {
		return *seed, nil
	}
	var b [8]byte
	if _, err := rand.Read(b[:]); err != nil {
		return 0, fmt.Errorf("draw random seed: %w", err)
	}
	return binary.BigEndian.Uint64(b[:]), nil
}

func terminateAndReap(children []child) {
	for _, c := range children {
		c.handle.Terminate(syscall.SIGTERM)
		c.handle.Wait()
	}
}
