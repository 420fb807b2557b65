// Package trace implements a structured, line-oriented execution
// trace for the VM: one JSON object per instruction, built
// incrementally with sjson rather than a hand-maintained struct, and
// optionally pretty-printed with tidwall/pretty for --trace-json
// --pretty. Tests read fields back out of emitted lines with gjson
// instead of re-parsing into a struct.
package trace

import (
	"fmt"
	"io"

	"github.com/tidwall/pretty"
	"github.com/tidwall/sjson"

	"github.com/action-lang/actc/internal/bytecode"
	"github.com/action-lang/actc/internal/vm"
)

// Writer is a vm.Tracer that renders each executed instruction as one
// JSON line, e.g. {"n":3,"pc":"0x2007","op":"ADD","wsp":2050,"fp":2048,"psp":7168}.
type Writer struct {
	out    io.Writer
	pretty bool
	n      int
	err    error
}

// New constructs a Writer emitting to out. When pretty is true, each
// line is expanded with tidwall/pretty instead of printed compact.
func New(out io.Writer, pretty bool) *Writer {
	return &Writer{out: out, pretty: pretty}
}

// OnStep implements vm.Tracer. Any write failure is latched and
// surfaced later through Err, since vm.Tracer.OnStep has no error
// return of its own: a trace sink is diagnostic output, not part of
// the VM's execution contract.
func (w *Writer) OnStep(machine *vm.VM, pc int, op bytecode.Op) {
	if w.err != nil {
		return
	}

	line := "{}"
	var err error
	if line, err = sjson.Set(line, "n", w.n); err == nil {
		line, err = sjson.Set(line, "pc", fmt.Sprintf("0x%04X", pc))
	}
	if err == nil {
		line, err = sjson.Set(line, "op", op.String())
	}
	if err == nil {
		line, err = sjson.Set(line, "wsp", machine.WSP())
	}
	if err == nil {
		line, err = sjson.Set(line, "fp", machine.FP())
	}
	if err == nil {
		line, err = sjson.Set(line, "psp", machine.PSP())
	}
	if err != nil {
		w.err = fmt.Errorf("trace: building line %d: %w", w.n, err)
		return
	}

	if w.pretty {
		line = string(pretty.Pretty([]byte(line)))
		for len(line) > 0 && line[len(line)-1] == '\n' {
			line = line[:len(line)-1]
		}
	}
	if _, err := fmt.Fprintln(w.out, line); err != nil {
		w.err = err
		return
	}
	w.n++
}

// Err returns the first error encountered while writing trace lines,
// or nil if every OnStep call succeeded so far.
func (w *Writer) Err() error {
	return w.err
}

// Lines returns how many trace lines have been successfully written.
func (w *Writer) Lines() int {
	return w.n
}
