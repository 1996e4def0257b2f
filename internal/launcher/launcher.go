// Package launcher implements the Process Launcher (spec.md §4.C): it
// spawns one child with a requested per-stream stdio policy and hands
// back a handle exposing the pid, any captured stream endpoints, and
// Wait(). It performs no I/O of its own beyond the spawn; draining
// captured streams is the caller's job (internal/fanout,
// internal/collector).
package launcher

import (
	"io"
	"os"
	"os/exec"
	"syscall"

	"golang.org/x/sys/unix"
	"golang.org/x/xerrors"

	"github.com/somombo/impalab"
)

// StreamMode selects how one stdio stream of a child is wired.
type StreamMode int

const (
	// Inherit connects the stream to the orchestrator's own.
	Inherit StreamMode = iota
	// Capture creates a pipe whose parent-side endpoint is returned on
	// the Handle.
	Capture
	// Null connects the stream to the null device.
	Null
	// Connect attaches an already-open file as the stream (used to
	// wire one child's captured stdout as another's stdin, or to
	// attach /dev/null once opened by the caller).
	Connect
)

// StdioPolicy configures the three standard streams of a spawned
// child. For Stdin == Connect, StdinFile supplies the handle to
// attach. Connect is honoured for stdin only: there is no file field
// for stdout or stderr, and a Connect policy on either of them leaves
// that stream attached to the null device.
type StdioPolicy struct {
	Stdin  StreamMode
	Stdout StreamMode
	Stderr StreamMode

	StdinFile *os.File // used when Stdin == Connect
}

// Handle is a spawned child. Each of Stdin/Stdout/Stderr holds the
// parent-side pipe endpoint of its stream and is non-nil only when
// that stream was configured with Capture.
type Handle struct {
	Component string
	Pid       int

	Stdin  io.WriteCloser // non-nil iff policy.Stdin == Capture
	Stdout io.ReadCloser  // non-nil iff policy.Stdout == Capture
	Stderr io.ReadCloser  // non-nil iff policy.Stderr == Capture

	cmd *exec.Cmd
}

// ExitStatus is the result of waiting for a child.
type ExitStatus struct {
	Code int // 0 on success
}

// Spawn starts component's run command under the given stdio policy.
// The child inherits the parent's environment unchanged (spec.md §3).
// It is placed in its own process group so that a signal delivered to
// the orchestrator's own group does not also race to terminate
// children still draining their output (spec.md §5's graceful
// shutdown requirement); internal/orchestrator propagates termination
// to the group explicitly on cancellation.
func Spawn(component string, run impalab.RunCommand, policy StdioPolicy) (*Handle, error) {
	cmd := exec.Command(run.Command, run.Args...)
	cmd.Dir = run.Dir
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	h := &Handle{Component: component, cmd: cmd}
	var closeAfterStart []*os.File

	switch policy.Stdin {
	case Inherit:
		cmd.Stdin = os.Stdin
	case Capture:
		w, err := cmd.StdinPipe()
		if err != nil {
			return nil, &impalab.SpawnError{Component: component, Err: err}
		}
		h.Stdin = w
	case Null:
		f, err := os.OpenFile(os.DevNull, os.O_RDONLY, 0)
		if err != nil {
			return nil, &impalab.SpawnError{Component: component, Err: err}
		}
		cmd.Stdin = f
		closeAfterStart = append(closeAfterStart, f)
	case Connect:
		cmd.Stdin = policy.StdinFile
	}

	switch policy.Stdout {
	case Inherit:
		cmd.Stdout = os.Stdout
	case Capture:
		r, err := cmd.StdoutPipe()
		if err != nil {
			return nil, &impalab.SpawnError{Component: component, Err: err}
		}
		h.Stdout = r
	case Null:
		f, err := os.OpenFile(os.DevNull, os.O_WRONLY, 0)
		if err != nil {
			return nil, &impalab.SpawnError{Component: component, Err: err}
		}
		cmd.Stdout = f
		closeAfterStart = append(closeAfterStart, f)
	}

	switch policy.Stderr {
	case Inherit:
		cmd.Stderr = os.Stderr
	case Capture:
		r, err := cmd.StderrPipe()
		if err != nil {
			return nil, &impalab.SpawnError{Component: component, Err: err}
		}
		h.Stderr = r
	case Null:
		f, err := os.OpenFile(os.DevNull, os.O_WRONLY, 0)
		if err != nil {
			return nil, &impalab.SpawnError{Component: component, Err: err}
		}
		cmd.Stderr = f
		closeAfterStart = append(closeAfterStart, f)
	}

	if err := cmd.Start(); err != nil {
		return nil, &impalab.SpawnError{Component: component, Err: err}
	}
	for _, f := range closeAfterStart {
		f.Close()
	}
	h.Pid = cmd.Process.Pid
	return h, nil
}

// Wait blocks until the child exits and reports its status. A
// non-zero exit is data, not a launcher-level error.
func (h *Handle) Wait() (ExitStatus, error) {
	err := h.cmd.Wait()
	if err == nil {
		return ExitStatus{Code: 0}, nil
	}
	var exitErr *exec.ExitError
	if xerrors.As(err, &exitErr) {
		return ExitStatus{Code: exitErr.ExitCode()}, nil
	}
	return ExitStatus{Code: -1}, xerrors.Errorf("wait %s: %w", h.Component, err)
}

// Terminate sends sig to the child's entire process group, reaching
// any grandchildren the component may have spawned. It is used by the
// orchestrator when propagating cancellation (spec.md §5).
func (h *Handle) Terminate(sig os.Signal) error {
	s, ok := sig.(syscall.Signal)
	if !ok {
		s = syscall.SIGTERM
	}
	return unix.Kill(-h.Pid, s)
}
