package engine

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// StepMethod runs exactly one iteration of the execution loop's dispatch
// (one reduction, one loop/cond check, or one decoded opcode) and reports
// whether the method has finished. Mirrors the teacher's single-step
// primitive (vm.execInstructions(true) inside RunProgramDebugMode), scoped
// down to one Activation instead of a whole VM.
func StepMethod(a *Activation) (done bool, err error) {
	top := a.Exec.PeekBack()
	if top == nil {
		mc, pushErr := a.Exec.Push()
		if pushErr != nil {
			return false, pushErr
		}
		mc.Kind = FrameMethodContext
		top = mc
	}

	switch top.Kind {
	case FrameMethodContext:
		if a.atEnd() {
			if a.Ops.Depth() != 0 {
				return false, fatal(ErrOpStackNotEmpty)
			}
			if err := a.Ops.Push(IntegerObject(0)); err != nil {
				return false, err
			}
			if err := a.popAndCaptureReturn(); err != nil {
				return false, err
			}
			return a.Exec.Depth() == 0, nil
		}
	}

	if err := a.stepOnce(); err != nil {
		return false, err
	}
	return a.Exec.Depth() == 0, nil
}

// Debugger drives StepMethod from an interactive REPL, the AML-engine
// analogue of the teacher's RunProgramDebugMode/getDefaultRecoverFuncForVM
// pair in vm/run.go: breakpoints by byte offset instead of by line, state
// written to the io.Writer passed to Run instead of to stdout.
type Debugger struct {
	a          *Activation
	breakpoint map[int]struct{}
}

func NewDebugger(a *Activation) *Debugger {
	return &Debugger{a: a, breakpoint: make(map[int]struct{})}
}

// Run drives the REPL against in/out until the method finishes or a fatal
// error is returned. Recognized commands: n/next (single-step), r/run
// (free-run until breakpoint or completion), b/break <pc> (toggle a
// breakpoint at a byte offset), state (print current ip/stack depths),
// q/quit.
func (d *Debugger) Run(in io.Reader, out io.Writer) error {
	reader := bufio.NewReader(in)
	running := false

	for {
		if !running {
			fmt.Fprint(out, "-> ")
			line, _ := reader.ReadString('\n')
			cmd := strings.ToLower(strings.TrimSpace(line))

			switch {
			case cmd == "n" || cmd == "next" || cmd == "":
				if done, err := d.step(out); err != nil || done {
					return err
				}
			case cmd == "r" || cmd == "run":
				running = true
			case cmd == "state":
				d.printState(out)
			case strings.HasPrefix(cmd, "b"):
				d.toggleBreakpoint(out, cmd)
			case cmd == "q" || cmd == "quit":
				return nil
			default:
				fmt.Fprintf(out, "unknown command %q\n", cmd)
			}
			continue
		}

		if _, atBreak := d.breakpoint[d.a.ip]; atBreak {
			fmt.Fprintf(out, "breakpoint at pc=%d\n", d.a.ip)
			d.printState(out)
			running = false
			continue
		}
		if done, err := d.step(out); err != nil || done {
			return err
		}
	}
}

func (d *Debugger) step(out io.Writer) (bool, error) {
	done, err := StepMethod(d.a)
	if err != nil {
		fmt.Fprintf(out, "fatal: %s\n", err)
		return true, err
	}
	return done, nil
}

func (d *Debugger) printState(out io.Writer) {
	fmt.Fprintf(out, "ip=%d exec_depth=%d op_depth=%d\n", d.a.ip, d.a.Exec.Depth(), d.a.Ops.Depth())
}

func (d *Debugger) toggleBreakpoint(out io.Writer, cmd string) {
	fields := strings.Fields(cmd)
	if len(fields) != 2 {
		fmt.Fprintln(out, "usage: break <pc>")
		return
	}
	pc, err := strconv.Atoi(fields[1])
	if err != nil {
		fmt.Fprintln(out, "bad pc:", err)
		return
	}
	if _, ok := d.breakpoint[pc]; ok {
		delete(d.breakpoint, pc)
	} else {
		d.breakpoint[pc] = struct{}{}
	}
}
