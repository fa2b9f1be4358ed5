package asm

import (
	"fmt"
	"io"

	"github.com/pkg/errors"

	"go.novarion.dev/jacktoolchain/pkg/lexicon"
)

// Writer lowers VM-level commands to Hack assembly, mirroring the VM command set one
// operation at a time: each Write* method appends the asm.Statement sequence that
// realizes it. Nothing is rendered to text until Close, which hands the whole
// accumulated program to a CodeGenerator for textual rendering.
type Writer struct {
	sink    io.Writer
	program []Statement

	fileName        string // Current input file's base name, namespaces 'static' variables
	currentFunction string // Qualifies label/goto/if-goto so labels stay unique across functions

	labelSeq int // Monotonically increasing counter backing every generated label
	bootDone bool
}

// NewWriter wraps 'sink' (the destination .asm file) in a Writer ready to receive
// commands for a fresh multi-file translation.
func NewWriter(sink io.Writer) *Writer {
	return &Writer{sink: sink, currentFunction: "Global"}
}

// SetFileName tells the writer which input file module is currently being translated,
// so that 'static' segment accesses are namespaced per spec ("<file>.<index>") and do
// not collide across files linked into the same program.
func (w *Writer) SetFileName(name string) { w.fileName = name }

func (w *Writer) nextLabel(prefix string) string {
	w.labelSeq++
	return fmt.Sprintf("%s.%s.%d", w.currentFunction, prefix, w.labelSeq)
}

func (w *Writer) emit(stmts ...Statement) { w.program = append(w.program, stmts...) }

func a(location string) AInstruction                  { return AInstruction{Location: location} }
func c(comp, dest, jump string) CInstruction           { return CInstruction{Comp: comp, Dest: dest, Jump: jump} }
func label(name string) LabelDecl                      { return LabelDecl{Name: name} }

// pushD appends the fixed 5-instruction sequence that pushes the D register onto the
// stack and advances SP, shared by every 'push' lowering.
func (w *Writer) pushD() {
	w.emit(
		a(lexicon.SP), c("M", "A", ""), c("D", "M", ""),
		a(lexicon.SP), c("M+1", "M", ""),
	)
}

// popD appends the fixed sequence that decrements SP and loads the popped value into D.
func (w *Writer) popD() {
	w.emit(a(lexicon.SP), c("M-1", "AM", ""), c("M", "D", ""))
}

// basePointers maps the four indirect segments to the Hack register holding their base
// address; 'constant', 'static', 'temp' and 'pointer' are handled as special cases
// below since they never go through an indirection register.
var basePointers = map[lexicon.SegmentType]string{
	lexicon.Local:    lexicon.LCL,
	lexicon.Argument: lexicon.ARG,
	lexicon.This:     lexicon.THIS,
	lexicon.That:     lexicon.THAT,
}

// WritePushPop lowers a single 'push segment index' or 'pop segment index' VM command.
func (w *Writer) WritePushPop(isPush bool, segment lexicon.SegmentType, index uint16) error {
	if isPush {
		return w.writePush(segment, index)
	}
	return w.writePop(segment, index)
}

func (w *Writer) writePush(segment lexicon.SegmentType, index uint16) error {
	switch segment {
	case lexicon.Constant:
		w.emit(a(fmt.Sprintf("%d", index)), c("A", "D", ""))

	case lexicon.Local, lexicon.Argument, lexicon.This, lexicon.That:
		base := basePointers[segment]
		w.emit(
			a(fmt.Sprintf("%d", index)), c("A", "D", ""),
			a(base), c("D+M", "A", ""),
			c("M", "D", ""),
		)

	case lexicon.Static:
		if w.fileName == "" {
			return errors.Errorf("static segment accessed before SetFileName was called")
		}
		w.emit(a(fmt.Sprintf("%s.%d", w.fileName, index)), c("M", "D", ""))

	case lexicon.Temp:
		if index > lexicon.TempMax {
			return errors.Errorf("temp offset %d out of range (0..%d)", index, lexicon.TempMax)
		}
		w.emit(a(fmt.Sprintf("%d", lexicon.TempBase+index)), c("M", "D", ""))

	case lexicon.Pointer:
		if index > lexicon.PointerMax {
			return errors.Errorf("pointer offset %d out of range (0..%d)", index, lexicon.PointerMax)
		}
		target := lexicon.THIS
		if index == 1 {
			target = lexicon.THAT
		}
		w.emit(a(target), c("M", "D", ""))

	default:
		return errors.Errorf("unknown segment %q", segment)
	}

	w.pushD()
	return nil
}

func (w *Writer) writePop(segment lexicon.SegmentType, index uint16) error {
	switch segment {
	case lexicon.Constant:
		return errors.Errorf("cannot pop into the read-only 'constant' segment")

	case lexicon.Local, lexicon.Argument, lexicon.This, lexicon.That:
		base := basePointers[segment]
		// Compute the target address into R13 first so it survives the pop's own use
		// of A/D; re-reading M after A has moved on would read the wrong cell.
		w.emit(
			a(fmt.Sprintf("%d", index)), c("A", "D", ""),
			a(base), c("D+M", "D", ""),
			a(lexicon.R13), c("D", "M", ""),
		)
		w.popD()
		w.emit(a(lexicon.R13), c("M", "A", ""), c("D", "M", ""))

	case lexicon.Static:
		if w.fileName == "" {
			return errors.Errorf("static segment accessed before SetFileName was called")
		}
		w.popD()
		w.emit(a(fmt.Sprintf("%s.%d", w.fileName, index)), c("D", "M", ""))

	case lexicon.Temp:
		if index > lexicon.TempMax {
			return errors.Errorf("temp offset %d out of range (0..%d)", index, lexicon.TempMax)
		}
		w.popD()
		w.emit(a(fmt.Sprintf("%d", lexicon.TempBase+index)), c("D", "M", ""))

	case lexicon.Pointer:
		if index > lexicon.PointerMax {
			return errors.Errorf("pointer offset %d out of range (0..%d)", index, lexicon.PointerMax)
		}
		target := lexicon.THIS
		if index == 1 {
			target = lexicon.THAT
		}
		w.popD()
		w.emit(a(target), c("D", "M", ""))

	default:
		return errors.Errorf("unknown segment %q", segment)
	}
	return nil
}

// unaryComps and binaryComps give the Hack comp field for the ops that aren't
// comparisons; comparisons instead pick a jump mnemonic, since their comp field is
// always the fixed subtraction 'comparisonOp' builds its label pair around.
var unaryComps = map[lexicon.ArithOpType]string{lexicon.Neg: "-M", lexicon.Not: "!M"}

var binaryComps = map[lexicon.ArithOpType]string{
	lexicon.Add: "D+M", lexicon.Sub: "M-D", lexicon.And: "D&M", lexicon.Or: "D|M",
}

var comparisonJumps = map[lexicon.ArithOpType]string{
	lexicon.Eq: "JEQ", lexicon.Gt: "JGT", lexicon.Lt: "JLT",
}

// WriteArithmetic lowers one of the nine stack ops. Binary ops consume the top two
// stack cells and push one result; unary ops (neg, not) rewrite the top cell in place;
// comparisons need a pair of fresh labels to turn a subtraction into a boolean.
func (w *Writer) WriteArithmetic(op lexicon.ArithOpType) error {
	switch {
	case lexicon.IsUnary(op):
		comp, ok := unaryComps[op]
		if !ok {
			return errors.Errorf("unknown arithmetic op %q", op)
		}
		w.unaryOp(comp)

	case lexicon.IsComparison(op):
		jump, ok := comparisonJumps[op]
		if !ok {
			return errors.Errorf("unknown arithmetic op %q", op)
		}
		w.comparisonOp(jump)

	default:
		comp, ok := binaryComps[op]
		if !ok {
			return errors.Errorf("unknown arithmetic op %q", op)
		}
		w.binaryOp(comp)
	}
	return nil
}

func (w *Writer) binaryOp(comp string) {
	w.emit(
		a(lexicon.SP), c("M-1", "AM", ""), c("M", "D", ""),
		c("A-1", "A", ""), c(comp, "M", ""),
	)
}

func (w *Writer) unaryOp(comp string) {
	w.emit(a(lexicon.SP), c("M-1", "A", ""), c(comp, "M", ""))
}

func (w *Writer) comparisonOp(jump string) {
	trueLabel := w.nextLabel("COMP_TRUE")
	endLabel := w.nextLabel("COMP_END")

	w.emit(
		a(lexicon.SP), c("M-1", "AM", ""), c("M", "D", ""),
		c("A-1", "A", ""), c("M-D", "D", ""),
		a(trueLabel), c("D", "", jump),
		a(lexicon.SP), c("M-1", "A", ""), c("0", "M", ""),
		a(endLabel), c("0", "", "JMP"),
		label(trueLabel),
		a(lexicon.SP), c("M-1", "A", ""), c("-1", "M", ""),
		label(endLabel),
	)
}

// WriteLabel, WriteGoto and WriteIf all qualify the raw VM label with the enclosing
// function's name so that identically-named labels in different functions never collide
// once every module is linked into one assembly program.
func (w *Writer) WriteLabel(name string) {
	w.emit(label(w.qualify(name)))
}

func (w *Writer) WriteGoto(name string) {
	w.emit(a(w.qualify(name)), c("0", "", "JMP"))
}

func (w *Writer) WriteIf(name string) {
	w.popD()
	w.emit(a(w.qualify(name)), c("D", "", "JNE"))
}

func (w *Writer) qualify(label string) string { return w.currentFunction + "$" + label }

// WriteFunction emits the function's entry label and zero-initializes its locals.
func (w *Writer) WriteFunction(name string, nLocals uint16) {
	w.currentFunction = name
	w.emit(label(name))
	for i := uint16(0); i < nLocals; i++ {
		w.emit(a("0"), c("A", "D", ""))
		w.pushD()
	}
}

// WriteCall implements the full calling convention: push a fresh return address and the
// caller's four saved segment pointers, reposition ARG/LCL for the callee, then jump.
func (w *Writer) WriteCall(name string, nArgs uint16) {
	returnLabel := w.nextLabel("RET_" + sanitize(name))

	w.emit(a(returnLabel), c("A", "D", ""))
	w.pushD()
	for _, reg := range []string{lexicon.LCL, lexicon.ARG, lexicon.THIS, lexicon.THAT} {
		w.emit(a(reg), c("M", "D", ""))
		w.pushD()
	}

	w.emit(
		a(lexicon.SP), c("M", "D", ""),
		a(fmt.Sprintf("%d", 5+nArgs)), c("D-A", "D", ""),
		a(lexicon.ARG), c("D", "M", ""),
	)
	w.emit(a(lexicon.SP), c("M", "D", ""), a(lexicon.LCL), c("D", "M", ""))

	w.emit(a(name), c("0", "", "JMP"))
	w.emit(label(returnLabel))
}

// WriteReturn implements the callee-side teardown: stash the frame base and return
// address in R13/R14 (not labels, so recursive calls stay reentrant), restore the
// caller's segment pointers, reposition SP and jump back.
func (w *Writer) WriteReturn() {
	w.emit(a(lexicon.LCL), c("M", "D", ""), a(lexicon.R13), c("D", "M", "")) // R13 = frame = LCL

	w.emit(
		a("5"), c("A", "D", ""),
		a(lexicon.R13), c("M-D", "A", ""), c("M", "D", ""),
		a(lexicon.R14), c("D", "M", ""), // R14 = retAddr = *(frame-5)
	)

	w.popD()
	w.emit(a(lexicon.ARG), c("M", "A", ""), c("D", "M", "")) // *ARG = popped return value

	w.emit(a(lexicon.ARG), c("M+1", "D", ""), a(lexicon.SP), c("D", "M", "")) // SP = ARG+1

	for _, reg := range []string{lexicon.THAT, lexicon.THIS, lexicon.ARG, lexicon.LCL} {
		w.emit(a(lexicon.R13), c("M-1", "AM", ""), c("M", "D", ""), a(reg), c("D", "M", ""))
	}

	w.emit(a(lexicon.R14), c("M", "A", ""), c("0", "", "JMP"))
}

// WriteInit emits the bootstrap code: SP=256 followed by 'call Sys.init 0'. Must be
// emitted exactly once, before any other output, for a multi-file translation.
func (w *Writer) WriteInit() error {
	if w.bootDone {
		return errors.Errorf("write_init called more than once")
	}
	w.bootDone = true

	w.emit(a(fmt.Sprintf("%d", lexicon.StackBase)), c("A", "D", ""), a(lexicon.SP), c("D", "M", ""))
	w.WriteCall("Sys.init", 0)
	return nil
}

// Close renders every accumulated statement to text and flushes it to the sink.
func (w *Writer) Close() error {
	codegen := NewCodeGenerator(w.program)
	lines, err := codegen.Generate()
	if err != nil {
		return err
	}
	for _, line := range lines {
		if _, err := fmt.Fprintln(w.sink, line); err != nil {
			return err
		}
	}
	return nil
}

// sanitize strips characters illegal in a generated label from a function name used to
// build a return-address label ("Class.sub" -> "Class_sub").
func sanitize(name string) string {
	out := make([]byte, len(name))
	for i := 0; i < len(name); i++ {
		if name[i] == '.' {
			out[i] = '_'
		} else {
			out[i] = name[i]
		}
	}
	return string(out)
}
