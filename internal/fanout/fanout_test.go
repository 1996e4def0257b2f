package fanout_test

import (
	"bytes"
	"io"
	"strings"
	"testing"

	"github.com/somombo/impalab/internal/fanout"
	"github.com/somombo/impalab/internal/logging"
)

// closeableBuffer adapts a bytes.Buffer to io.WriteCloser, tracking
// whether Close was called.
type closeableBuffer struct {
	bytes.Buffer
	closed bool
}

func (c *closeableBuffer) Close() error {
	c.closed = true
	return nil
}

func testLogger(t *testing.T) *logging.Logger {
	t.Helper()
	log, err := logging.New()
	if err != nil {
		t.Fatalf("logging.New: %v", err)
	}
	return log
}

func TestRunReplicatesLinesToAllConsumers(t *testing.T) {
	producer := strings.NewReader("a\nb\nc\n")
	c1 := &closeableBuffer{}
	c2 := &closeableBuffer{}

	err := fanout.Run(producer, []fanout.Consumer{
		{Name: "one", W: c1},
		{Name: "two", W: c2},
	}, testLogger(t))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	want := "a\nb\nc\n"
	if c1.String() != want {
		t.Errorf("consumer one got %q, want %q", c1.String(), want)
	}
	if c2.String() != want {
		t.Errorf("consumer two got %q, want %q", c2.String(), want)
	}
	if !c1.closed || !c2.closed {
		t.Errorf("consumers closed = %v, %v, want true, true", c1.closed, c2.closed)
	}
}

func TestRunDeliversPartialFinalLineWithoutSynthesizingNewline(t *testing.T) {
	producer := strings.NewReader("full\npartial")
	c := &closeableBuffer{}

	if err := fanout.Run(producer, []fanout.Consumer{{Name: "x", W: c}}, testLogger(t)); err != nil {
		t.Fatalf("Run: %v", err)
	}
	want := "full\npartial"
	if c.String() != want {
		t.Errorf("consumer got %q, want %q", c.String(), want)
	}
	if !c.closed {
		t.Errorf("consumer not closed after producer EOF")
	}
}

// brokenWriter always fails, simulating an algorithm that exited
// early and closed its stdin.
type brokenWriter struct{}

func (brokenWriter) Write(p []byte) (int, error) { return 0, io.ErrClosedPipe }
func (brokenWriter) Close() error                 { return nil }

func TestRunDropsBrokenConsumerWithoutFailing(t *testing.T) {
	producer := strings.NewReader("a\nb\n")
	good := &closeableBuffer{}

	err := fanout.Run(producer, []fanout.Consumer{
		{Name: "broken", W: brokenWriter{}},
		{Name: "good", W: good},
	}, testLogger(t))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if good.String() != "a\nb\n" {
		t.Errorf("surviving consumer got %q, want %q", good.String(), "a\nb\n")
	}
}
