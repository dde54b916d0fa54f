package runner

import (
	"fmt"
	"io"

	"github.com/roach88/relay/internal/ir"
)

// Emitter receives emissions in trace order as the chain produces them.
//
// Emit is called from the loop goroutine; implementations do not need to
// be thread-safe. An error aborts the run the way a failing step does.
type Emitter interface {
	Emit(e ir.Emission) error
}

// ConsoleEmitter writes emission text, one line each, to a writer.
//
// This is the observable output surface: marker and value lines only, in
// trace order, no decoration. Diagnostics belong on stderr, never here.
type ConsoleEmitter struct {
	w io.Writer
}

// NewConsoleEmitter creates an emitter writing to w.
func NewConsoleEmitter(w io.Writer) *ConsoleEmitter {
	return &ConsoleEmitter{w: w}
}

// Emit writes the emission's text followed by a newline.
func (c *ConsoleEmitter) Emit(e ir.Emission) error {
	if _, err := fmt.Fprintln(c.w, e.Text); err != nil {
		return fmt.Errorf("write emission %d: %w", e.Seq, err)
	}
	return nil
}

// CaptureEmitter records emissions in memory for tests and the harness.
type CaptureEmitter struct {
	emissions []ir.Emission
}

// NewCaptureEmitter creates an empty capture emitter.
func NewCaptureEmitter() *CaptureEmitter {
	return &CaptureEmitter{}
}

// Emit appends the emission to the capture.
func (c *CaptureEmitter) Emit(e ir.Emission) error {
	c.emissions = append(c.emissions, e)
	return nil
}

// Emissions returns the captured emissions in emit order.
func (c *CaptureEmitter) Emissions() []ir.Emission {
	return c.emissions
}

// Lines returns just the emitted text lines, in emit order.
func (c *CaptureEmitter) Lines() []string {
	return ir.Lines(c.emissions)
}

// MultiEmitter fans an emission out to several emitters in order,
// stopping at the first error.
type MultiEmitter struct {
	emitters []Emitter
}

// NewMultiEmitter creates an emitter that forwards to every argument.
func NewMultiEmitter(emitters ...Emitter) *MultiEmitter {
	return &MultiEmitter{emitters: emitters}
}

// Emit forwards to each emitter in order.
func (m *MultiEmitter) Emit(e ir.Emission) error {
	for _, em := range m.emitters {
		if err := em.Emit(e); err != nil {
			return err
		}
	}
	return nil
}
