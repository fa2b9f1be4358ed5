package jack

import (
	"fmt"
	"io"

	"go.novarion.dev/jacktoolchain/pkg/lexicon"
)

// VMWriter is a stateless formatter: every call appends exactly one line of canonical
// VM text to its sink and nothing is buffered across calls. The sink is polymorphic so
// that the same writer can target a single output file or tee to standard output for a
// debug run (see NewTeeSink).
type VMWriter struct {
	sink io.Writer
}

// NewVMWriter wraps 'sink' (a file, or any io.Writer) in a VMWriter.
func NewVMWriter(sink io.Writer) *VMWriter { return &VMWriter{sink: sink} }

// NewTeeSink builds a sink that writes every line to both 'primary' (the real output
// file) and standard output, for a debug/verbose run.
func NewTeeSink(primary io.Writer, stdout io.Writer) io.Writer {
	return io.MultiWriter(primary, stdout)
}

func (w *VMWriter) line(format string, args ...any) {
	fmt.Fprintf(w.sink, format+"\n", args...)
}

// WritePush/WritePop emit 'push segment index' / 'pop segment index'.
func (w *VMWriter) WritePush(segment lexicon.SegmentType, index uint16) {
	w.line("push %s %d", segment, index)
}

func (w *VMWriter) WritePop(segment lexicon.SegmentType, index uint16) {
	w.line("pop %s %d", segment, index)
}

// WriteArithmetic emits a zero/one-operand stack op by name (add, sub, neg, eq, gt, lt,
// and, or, not). '*' and '/' are not arithmetic ops in VM text — the engine lowers them
// to WriteCall("Math.multiply"/"Math.divide", 2) directly instead of routing through here.
func (w *VMWriter) WriteArithmetic(op lexicon.ArithOpType) { w.line("%s", op) }

// WriteLabel, WriteGoto and WriteIf emit unconditional/conditional control flow markers.
// 'label' must already be fully qualified by the caller (class and counter included).
func (w *VMWriter) WriteLabel(label string) { w.line("label %s", label) }
func (w *VMWriter) WriteGoto(label string)  { w.line("goto %s", label) }
func (w *VMWriter) WriteIf(label string)    { w.line("if-goto %s", label) }

// WriteCall emits a subroutine invocation; 'name' is already "Class.subroutine".
func (w *VMWriter) WriteCall(name string, nArgs int) { w.line("call %s %d", name, nArgs) }

// WriteFunction emits a subroutine entry point; 'name' is already "Class.subroutine".
func (w *VMWriter) WriteFunction(name string, nLocals int) { w.line("function %s %d", name, nLocals) }

// WriteReturn emits the bare 'return' VM command.
func (w *VMWriter) WriteReturn() { w.line("return") }

// WriteStringConstant emits the allocate-then-append-per-character sequence that
// materializes a Jack string literal at run time: 'push constant len; call String.new 1',
// then for every character 'push constant <code>; call String.appendChar 2'. Each
// appendChar call returns the string itself, so the finished pointer ends up on top of
// the stack.
func (w *VMWriter) WriteStringConstant(s string) {
	w.WritePush(lexicon.Constant, uint16(len(s)))
	w.WriteCall("String.new", 1)
	for _, c := range s {
		w.WritePush(lexicon.Constant, uint16(c))
		w.WriteCall("String.appendChar", 2)
	}
}

// Close is a no-op for a VMWriter: the underlying file/sink lifecycle is owned by the
// driver that constructed it, matching the upstream writer's own no-op Close.
func (w *VMWriter) Close() {}
