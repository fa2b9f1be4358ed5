package asm

import (
	"fmt"
	"strconv"

	"github.com/pkg/errors"

	"go.novarion.dev/jacktoolchain/pkg/lexicon"
)

// ----------------------------------------------------------------------------
// Code Generator

// Takes some a set of 'asm.Statement' and spits out their textual counterparts.
//
// The translation can be done without any additional data structure but the program.
type CodeGenerator struct {
	program []Statement // The set of statements to render as Hack assembly text
}

// Initializes and returns to the caller a brand new 'CodeGenerator' struct.
// Requires that argument Program 'p' (what we want to translate) is non-nil.
func NewCodeGenerator(p []Statement) CodeGenerator {
	return CodeGenerator{program: p}
}

// Translate each statement in the 'program' field to the Asm textual format.
//
// Each instruction will pass through the following step: evaluation, validation and
// then conversion to its textual representation (a string) so that it can be further
// elaborated by the caller (e.g. dumping to a file, runtime interpretation, ...).
func (cg *CodeGenerator) Generate() ([]string, error) {
	asm := make([]string, 0, len(cg.program))

	for _, statement := range cg.program {
		var generated string = ""
		var err error = nil

		switch tStatement := statement.(type) {
		case AInstruction:
			generated, err = cg.GenerateAInst(tStatement)
		case CInstruction:
			generated, err = cg.GenerateCInst(tStatement)
		case LabelDecl:
			generated, err = cg.GenerateLabelDecl(tStatement)
		}

		if err != nil {
			return nil, err
		}
		asm = append(asm, generated)
	}

	return asm, nil
}

// GenerateAInst renders an A Instruction as "@location". A raw numeric location must fit
// in the 15 bits an A instruction can load (0..32767).
func (CodeGenerator) GenerateAInst(stmt AInstruction) (string, error) {
	if stmt.Location == "" {
		return "", errors.New("unable to produce an empty A instruction")
	}
	if stmt.Location[0] >= '0' && stmt.Location[0] <= '9' {
		if value, err := strconv.ParseUint(stmt.Location, 10, 16); err != nil || value > 32767 {
			return "", errors.Errorf("raw address '%s' out of range (0..32767)", stmt.Location)
		}
	}

	return fmt.Sprintf("@%s", stmt.Location), nil
}

// GenerateCInst renders a C Instruction as "dest=comp" or "comp;jump".
func (cg *CodeGenerator) GenerateCInst(stmt CInstruction) (string, error) {
	if stmt.Comp == "" {
		return "", errors.New("expected 'comp' directive in C Instruction")
	}

	if stmt.Dest != "" && stmt.Jump == "" {
		return fmt.Sprintf("%s=%s", stmt.Dest, stmt.Comp), nil
	}
	if stmt.Jump != "" && stmt.Dest == "" {
		return fmt.Sprintf("%s;%s", stmt.Comp, stmt.Jump), nil
	}

	return "", errors.New("expected either 'dest' or 'jump' directive in C Instruction")
}

// GenerateLabelDecl renders a label declaration as "(name)".
func (cg *CodeGenerator) GenerateLabelDecl(stmt LabelDecl) (string, error) {
	if stmt.Name == "" {
		return "", errors.New("unable to produce an empty label declaration")
	}
	if lexicon.BuiltInSymbols[stmt.Name] {
		return "", errors.Errorf("unable to override built-in label '%s'", stmt.Name)
	}

	return fmt.Sprintf("(%s)", stmt.Name), nil
}
