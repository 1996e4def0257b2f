// Package fanout implements the Pipe Fan-Out (spec.md §4.D): the
// in-process tee that replicates the generator's stdout to every
// algorithm's stdin. It runs on a single dedicated worker, the same
// drain-goroutine-per-pipe discipline internal/collector and the
// teacher's own cmd/distri/builder.go Build RPC use, generalized here
// from one reader/one writer to one reader/N writers.
package fanout

import (
	"bufio"
	"io"

	"github.com/somombo/impalab/internal/logging"
)

// Consumer is one algorithm's stdin, named for log messages.
type Consumer struct {
	Name string
	W    io.WriteCloser
}

// Run tees producer byte-for-byte to every consumer, one full line at
// a time, until producer reaches EOF or errors. A line is delivered
// to every still-open consumer before the next line is read, bounding
// the buffer to one line and making a slow consumer throttle the
// whole fan-out (spec.md §4.D: writes are blocking, no unbounded
// buffering).
//
// If producer's final line has no trailing newline, it is still
// delivered to every consumer exactly as written (no newline is
// synthesized), after which every consumer's stdin is closed — the
// behavior spec.md's Open Questions (§9) settles on for a generator
// that exits mid-line.
//
// A consumer whose stdin pipe breaks is dropped from subsequent
// writes and logged as a warning; its peers are unaffected. Run
// itself never fails on a broken consumer — only a producer read
// error is returned, so that peer consumers still get to finish
// draining and the run's overall failure is decided at join time by
// the orchestrator (spec.md §4.D, §4.F step 8).
func Run(producer io.Reader, consumers []Consumer, log *logging.Logger) error {
	r := bufio.NewReaderSize(producer, 64*1024)

	alive := make(map[string]io.WriteCloser, len(consumers))
	order := make([]string, 0, len(consumers))
	for _, c := range consumers {
		alive[c.Name] = c.W
		order = append(order, c.Name)
	}

	var readErr error
	for {
		line, err := r.ReadBytes('\n')
		if len(line) > 0 {
			for _, name := range order {
				w, ok := alive[name]
				if !ok {
					continue
				}
				if _, werr := w.Write(line); werr != nil {
					log.Warnf("fan-out: consumer %s stdin broken, dropping: %v", name, werr)
					delete(alive, name)
				}
			}
		}
		if err != nil {
			if err != io.EOF {
				readErr = err
			}
			break
		}
	}

	for _, name := range order {
		if w, ok := alive[name]; ok {
			w.Close()
		}
	}
	return readErr
}
