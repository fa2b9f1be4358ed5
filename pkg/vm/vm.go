package vm

import "go.novarion.dev/jacktoolchain/pkg/lexicon"

// ----------------------------------------------------------------------------
// General information

// This section contains some general information about the VM intermediate language.
//
// We declare a shared 'Operation' interface for every macro operation available for the
// language and we define some other useful top-level types such as Module.
// Is important to note that a VM program can be composed of multiple translation units
// that can be also referenced as file or modules or also classes.

// A VM Module is just a linear list of VM operations/instructions. In the VM spec each
// Jack class is translated to its own .vm file (just like Java .class file) that can be
// handled as its own translation unit during the compilation or lowering phases.
type Module []Operation

// Used to put together all operation in the VM language (Memory, Arithmetic, ... ops).
type Operation interface{}

// SegmentType and ArithOpType are aliased straight from 'pkg/lexicon' so that this
// package, the jack compiler and the asm writer all agree on one set of named
// constants instead of keeping three independent (and driftable) copies.
type SegmentType = lexicon.SegmentType
type ArithOpType = lexicon.ArithOpType

const (
	Temp     = lexicon.Temp
	Constant = lexicon.Constant
	Local    = lexicon.Local
	Static   = lexicon.Static
	Argument = lexicon.Argument
	This     = lexicon.This
	That     = lexicon.That
	Pointer  = lexicon.Pointer
)

const (
	Eq  = lexicon.Eq
	Gt  = lexicon.Gt
	Lt  = lexicon.Lt
	Add = lexicon.Add
	Sub = lexicon.Sub
	Neg = lexicon.Neg
	Not = lexicon.Not
	And = lexicon.And
	Or  = lexicon.Or
)

// ----------------------------------------------------------------------------
// Memory Op

// In memory representation of a Memory operation for the VM language.
//
// In the VM intermediate language there are only two possible memory operation on the stack.
// We could either push a new value taken from the specified segment location on the stack's
// top or take the stack's top and saves its value at the specified segment location.
type MemoryOp struct {
	Operation OperationType // The type of operation, either 'push' or 'pop'
	Segment   SegmentType   // The named memory segment to use (this, that, temp, ...)
	Offset    uint16        // The specific location/offset inside of the memory segment
}

type OperationType string // Enum to manage the operation allowed for a MemoryOp

const (
	Push OperationType = "push"
	Pop  OperationType = "pop"
)

// ----------------------------------------------------------------------------
// Arithmetic Op

// In memory representation of a Arithmetic operation for the VM language.
//
// In the VM intermediate language there are just a handful of operation available.
// In particular each operation acts directly on the top of the stack, of course we have both unary
// and binary operation, the specific management of each op will be handled in the codegen phase.
type ArithmeticOp struct{ Operation ArithOpType }

// ----------------------------------------------------------------------------
// Control flow / Function ops

// A label marking a jump target inside the current function; the asm writer qualifies it
// with the enclosing function's name to keep it unique across the linked program.
type LabelDecl struct{ Name string }

// JumpType distinguishes a bare jump from one conditioned on the popped stack top.
type JumpType string

const (
	Unconditional JumpType = "goto"
	Conditional   JumpType = "if-goto"
)

// GotoOp is either 'goto label' or 'if-goto label' depending on 'Jump'.
type GotoOp struct {
	Jump  JumpType
	Label string
}

// FuncDecl marks a subroutine's entry point and how many locals it needs allocated.
type FuncDecl struct {
	Name   string
	NLocal uint16
}

// FuncCallOp invokes a subroutine by its fully qualified "Class.subroutine" name.
type FuncCallOp struct {
	Name  string
	NArgs uint16
}

// ReturnOp pops the return value convention back to the caller; it carries no data of
// its own, the calling convention itself lives in the asm code writer.
type ReturnOp struct{}
