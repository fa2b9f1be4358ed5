// Package lexicon holds the vocabulary shared by the VM stage and the ASM stage: the
// named memory segments, the arithmetic/logical ops and the fixed addresses of the Hack
// memory model. Keeping these in one leaf package means both 'pkg/vm' (parsing/validating
// VM text) and 'pkg/asm' (lowering to Hack assembly) agree on the exact same enum values
// without importing one another.
package lexicon

import "fmt"

// ----------------------------------------------------------------------------
// VM Segments

// SegmentType enumerates the eight named memory segments addressable by a VM push/pop.
type SegmentType string

const (
	Constant SegmentType = "constant" // Virtual segment, only readable, backs integer/bool/char/null literals
	Argument SegmentType = "argument" // Real segment, subroutine arguments
	Local    SegmentType = "local"    // Real segment, subroutine local variables
	Static   SegmentType = "static"   // Real segment, shared per input file/class
	This     SegmentType = "this"     // Virtual segment, base pointer settable via 'pointer 0'
	That     SegmentType = "that"     // Virtual segment, base pointer settable via 'pointer 1'
	Pointer  SegmentType = "pointer"  // Real segment, exactly 2 cells (THIS/THAT base registers)
	Temp     SegmentType = "temp"     // Real segment, 8 cells starting at RAM[5]
)

// PointerMax is the highest legal offset into the 'pointer' segment (index 0 or 1).
const PointerMax = 1

// TempMax is the highest legal offset into the 'temp' segment (8 cells, 0..7).
const TempMax = 7

// TempBase is the fixed RAM address of temp segment offset 0.
const TempBase = 5

// ----------------------------------------------------------------------------
// VM Arithmetic / Logical ops

// ArithOpType enumerates the nine zero/one-operand ops that act on the stack top(s).
type ArithOpType string

const (
	Add ArithOpType = "add"
	Sub ArithOpType = "sub"
	Neg ArithOpType = "neg"

	Eq ArithOpType = "eq"
	Gt ArithOpType = "gt"
	Lt ArithOpType = "lt"

	And ArithOpType = "and"
	Or  ArithOpType = "or"
	Not ArithOpType = "not"
)

// IsUnary reports whether 'op' pops exactly one value and pushes its result (true),
// as opposed to a binary op which pops two and pushes one (false).
func IsUnary(op ArithOpType) bool { return op == Neg || op == Not }

// IsComparison reports whether 'op' needs a conditional jump (and therefore fresh
// labels) to turn a subtraction into a boolean result.
func IsComparison(op ArithOpType) bool { return op == Eq || op == Gt || op == Lt }

// ----------------------------------------------------------------------------
// Hack memory model

// Base-pointer symbols resolved by the downstream assembler to fixed low RAM addresses.
const (
	SP   = "SP"
	LCL  = "LCL"
	ARG  = "ARG"
	THIS = "THIS"
	THAT = "THAT"
)

// General purpose scratch registers used by the calling convention to stay reentrant.
const (
	R13 = "R13"
	R14 = "R14"
	R15 = "R15"
)

// StackBase is the RAM address the stack pointer is initialized to at program start.
const StackBase = 256

// BuiltInSymbols is the full set of predeclared Hack assembly labels: the VM base
// pointers, the sixteen general purpose registers and the two memory-mapped I/O
// locations. A user-declared label may never shadow one of these.
var BuiltInSymbols = func() map[string]bool {
	names := map[string]bool{
		SP: true, LCL: true, ARG: true, THIS: true, THAT: true,
		"SCREEN": true, "KBD": true,
	}
	for i := 0; i <= 15; i++ {
		names[fmt.Sprintf("R%d", i)] = true
	}
	return names
}()
