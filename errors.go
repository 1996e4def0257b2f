package impalab

import "golang.org/x/xerrors"

// ManifestError reports a missing, unreadable, malformed manifest (or
// component descriptor), or one that violates a §3 uniqueness
// invariant.
type ManifestError struct {
	Path string
	Err  error
}

func (e *ManifestError) Error() string {
	return xerrors.Errorf("manifest %s: %w", e.Path, e.Err).Error()
}

func (e *ManifestError) Unwrap() error { return e.Err }

// BuildError reports a component's [build] step exiting non-zero
// during discovery.
type BuildError struct {
	Component string
	Err       error
}

func (e *BuildError) Error() string {
	return xerrors.Errorf("build %s: %w", e.Component, e.Err).Error()
}

func (e *BuildError) Unwrap() error { return e.Err }

// ResolutionError reports a selected generator or algorithm that is
// absent from the manifest and has no CLI override.
type ResolutionError struct {
	What string // e.g. "generator", "algorithm(go)"
	Err  error
}

func (e *ResolutionError) Error() string {
	return xerrors.Errorf("resolve %s: %w", e.What, e.Err).Error()
}

func (e *ResolutionError) Unwrap() error { return e.Err }

// SpawnError reports the OS refusing to start a child process.
type SpawnError struct {
	Component string
	Err       error
}

func (e *SpawnError) Error() string {
	return xerrors.Errorf("spawn %s: %w", e.Component, e.Err).Error()
}

func (e *SpawnError) Unwrap() error { return e.Err }

// PipeIOError reports an unexpected IO failure on a worker draining a
// pipe (fan-out or collector). It never aborts the run; the worker
// that raised it terminates and its peers keep draining.
type PipeIOError struct {
	Worker string
	Err    error
}

func (e *PipeIOError) Error() string {
	return xerrors.Errorf("pipe io %s: %w", e.Worker, e.Err).Error()
}

func (e *PipeIOError) Unwrap() error { return e.Err }

// ChildNonzeroExit reports a child process's Wait() returning a
// non-zero exit status.
type ChildNonzeroExit struct {
	Component string
	ExitCode  int
}

func (e *ChildNonzeroExit) Error() string {
	return xerrors.Errorf("%s exited %d", e.Component, e.ExitCode).Error()
}
