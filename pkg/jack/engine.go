package jack

import (
	"fmt"

	"go.novarion.dev/jacktoolchain/pkg/lexicon"
)

// CompileError is a fatal parse or semantic failure (as opposed to a lexical failure,
// reported as a *LexError): undeclared identifier, duplicate declaration, malformed call
// syntax, unexpected token, missing return. Always carries a position.
type CompileError struct {
	Path string
	Line int
	Col  int
	Msg  string
}

func (e *CompileError) Error() string {
	return fmt.Sprintf("%s:%d:%d: %s", e.Path, e.Line, e.Col, e.Msg)
}

// symbolOps maps a binary operator symbol directly to the VM arithmetic op it compiles
// to. '*' and '/' are deliberately absent: they lower to a Math.multiply/Math.divide
// call instead of an arithmetic command, handled as a special case by the caller.
var symbolOps = map[string]lexicon.ArithOpType{
	"+": lexicon.Add, "-": lexicon.Sub, "&": lexicon.And,
	"|": lexicon.Or, "<": lexicon.Lt, ">": lexicon.Gt, "=": lexicon.Eq,
}

// Engine is the syntax-directed translator: every Compile* method advances the
// tokenizer, consults/mutates the symbol table and writes VM text, with no
// intermediate tree built anywhere. One Engine compiles exactly one class.
type Engine struct {
	tok  *Tokenizer
	vm   *VMWriter
	path string

	symbols   *SymbolTable
	className string

	labelCounter int

	// currentSubroutineKind is KwFunction/KwMethod/KwConstructor for whichever
	// subroutine is currently being compiled; a plain 'function' has no 'this', so an
	// implicit-receiver call (bare 'id(args)') inside one is rejected rather than
	// silently pushing a pointer 0 that was never set up.
	currentSubroutineKind Keyword
}

// NewEngine wires a tokenizer positioned at the start of a file to a VM writer that
// will receive the compiled output, both owned by the caller.
func NewEngine(path string, tok *Tokenizer, vm *VMWriter) *Engine {
	return &Engine{tok: tok, vm: vm, path: path, symbols: NewSymbolTable()}
}

func (e *Engine) errorf(format string, args ...any) error {
	cur := e.tok.Current()
	return &CompileError{Path: e.path, Line: cur.Line, Col: cur.Col, Msg: fmt.Sprintf(format, args...)}
}

func (e *Engine) makeLabel(prefix string) string {
	e.labelCounter++
	return fmt.Sprintf("%s_%s_%d", e.className, prefix, e.labelCounter)
}

// ----------------------------------------------------------------------------
// Structure: class / classVarDec / subroutineDec

// CompileClass compiles 'class id { classVarDec* subroutineDec* }' and returns the
// class name compiled, for the driver to use in diagnostics.
func (e *Engine) CompileClass() (string, error) {
	if !e.tok.HasMore() {
		return "", e.errorf("empty source, expected 'class'")
	}
	if err := e.tok.Expect("class", "'class'"); err != nil {
		return "", err
	}

	name, err := e.tok.ExpectIdentifier()
	if err != nil {
		return "", err
	}
	e.className = name
	e.symbols.ResetClass()

	if err := e.tok.Expect("{", "'{'"); err != nil {
		return "", err
	}

	for e.currentIsAnyKeyword(classVarKeywords) {
		if err := e.compileClassVarDec(); err != nil {
			return "", err
		}
	}

	for e.currentIsAnyKeyword(subroutineKeywords) {
		if err := e.compileSubroutineDec(); err != nil {
			return "", err
		}
	}

	if err := e.tok.Expect("}", "'}'"); err != nil {
		return "", err
	}
	if e.tok.HasMore() {
		return "", e.errorf("unexpected trailing token %q after class body", e.tok.Current().Text)
	}
	return name, nil
}

func (e *Engine) currentIsAnyKeyword(set map[Keyword]bool) bool {
	cur := e.tok.Current()
	return cur.Kind == KeywordTok && set[Keyword(cur.Text)]
}

// compileType consumes and returns a type name: a primitive keyword (int/char/boolean)
// or a class-name identifier.
func (e *Engine) compileType() (string, error) {
	cur := e.tok.Current()
	switch {
	case cur.Kind == KeywordTok && primitiveTypeKeywords[Keyword(cur.Text)]:
		if err := e.tok.Advance(); err != nil {
			return "", err
		}
		return cur.Text, nil
	case cur.Kind == IdentifierTok:
		return e.tok.ExpectIdentifier()
	default:
		return "", e.errorf("expected type, found %q", cur.Text)
	}
}

func (e *Engine) compileClassVarDec() error {
	kindKeyword := e.tok.Current().Text
	kind := StaticKind
	if Keyword(kindKeyword) == KwField {
		kind = FieldKind
	}
	if err := e.tok.Advance(); err != nil {
		return err
	}

	typ, err := e.compileType()
	if err != nil {
		return err
	}

	for {
		name, err := e.tok.ExpectIdentifier()
		if err != nil {
			return err
		}
		if err := e.symbols.Define(name, typ, kind); err != nil {
			return e.errorf("%s", err)
		}

		if e.tok.Current().Kind == SymbolTok && e.tok.Current().Text == "," {
			if err := e.tok.Advance(); err != nil {
				return err
			}
			continue
		}
		break
	}
	return e.tok.Expect(";", "';'")
}

func (e *Engine) compileSubroutineDec() error {
	subKind := e.tok.Current().Text
	if err := e.tok.Advance(); err != nil {
		return err
	}

	// Return type: 'void' or a type. Not needed for codegen, only for grammar shape.
	cur := e.tok.Current()
	if cur.Kind == KeywordTok && Keyword(cur.Text) == KwVoid {
		if err := e.tok.Advance(); err != nil {
			return err
		}
	} else if _, err := e.compileType(); err != nil {
		return err
	}

	name, err := e.tok.ExpectIdentifier()
	if err != nil {
		return err
	}

	e.symbols.Reset()
	if Keyword(subKind) == KwMethod {
		// The receiver occupies argument 0; every declared parameter is shifted up by one.
		if err := e.symbols.Define("this", e.className, ArgKind); err != nil {
			return e.errorf("%s", err)
		}
	}

	if err := e.tok.Expect("(", "'('"); err != nil {
		return err
	}
	if err := e.compileParameterList(); err != nil {
		return err
	}
	if err := e.tok.Expect(")", "')'"); err != nil {
		return err
	}

	return e.compileSubroutineBody(Keyword(subKind), name)
}

func (e *Engine) compileParameterList() error {
	if e.tok.Current().Kind == SymbolTok && e.tok.Current().Text == ")" {
		return nil
	}
	for {
		typ, err := e.compileType()
		if err != nil {
			return err
		}
		name, err := e.tok.ExpectIdentifier()
		if err != nil {
			return err
		}
		if err := e.symbols.Define(name, typ, ArgKind); err != nil {
			return e.errorf("%s", err)
		}

		if e.tok.Current().Kind == SymbolTok && e.tok.Current().Text == "," {
			if err := e.tok.Advance(); err != nil {
				return err
			}
			continue
		}
		return nil
	}
}

func (e *Engine) compileSubroutineBody(kind Keyword, name string) error {
	e.currentSubroutineKind = kind

	if err := e.tok.Expect("{", "'{'"); err != nil {
		return err
	}

	for e.tok.Current().Kind == KeywordTok && Keyword(e.tok.Current().Text) == KwVar {
		if err := e.compileVarDec(); err != nil {
			return err
		}
	}

	e.vm.WriteFunction(e.className+"."+name, int(e.symbols.Count(VarKind)))

	switch kind {
	case KwConstructor:
		e.vm.WritePush(lexicon.Constant, e.symbols.Count(FieldKind))
		e.vm.WriteCall("Memory.alloc", 1)
		e.vm.WritePop(lexicon.Pointer, 0)
	case KwMethod:
		e.vm.WritePush(lexicon.Argument, 0)
		e.vm.WritePop(lexicon.Pointer, 0)
	}

	endedWithReturn, err := e.compileStatements()
	if err != nil {
		return err
	}
	if !endedWithReturn {
		return e.errorf("subroutine %q must end with a return statement", name)
	}

	return e.tok.Expect("}", "'}'")
}

func (e *Engine) compileVarDec() error {
	if err := e.tok.Advance(); err != nil { // 'var'
		return err
	}
	typ, err := e.compileType()
	if err != nil {
		return err
	}

	for {
		name, err := e.tok.ExpectIdentifier()
		if err != nil {
			return err
		}
		if err := e.symbols.Define(name, typ, VarKind); err != nil {
			return e.errorf("%s", err)
		}

		if e.tok.Current().Kind == SymbolTok && e.tok.Current().Text == "," {
			if err := e.tok.Advance(); err != nil {
				return err
			}
			continue
		}
		break
	}
	return e.tok.Expect(";", "';'")
}

// ----------------------------------------------------------------------------
// Statements

// compileStatements compiles statement* until it hits a token that is not a statement
// keyword (the caller is expected to find '}' there), reporting whether the last
// statement it compiled was a return statement.
func (e *Engine) compileStatements() (bool, error) {
	endedWithReturn := false
	for e.currentIsAnyKeyword(statementKeywords) {
		kw := Keyword(e.tok.Current().Text)
		endedWithReturn = kw == KwReturn

		var err error
		switch kw {
		case KwLet:
			err = e.compileLet()
		case KwIf:
			err = e.compileIf()
		case KwWhile:
			err = e.compileWhile()
		case KwDo:
			err = e.compileDo()
		case KwReturn:
			err = e.compileReturn()
		}
		if err != nil {
			return false, err
		}
	}
	return endedWithReturn, nil
}

func (e *Engine) compileLet() error {
	if err := e.tok.Advance(); err != nil { // 'let'
		return err
	}
	name, err := e.tok.ExpectIdentifier()
	if err != nil {
		return err
	}

	isArray := false
	if e.tok.Current().Kind == SymbolTok && e.tok.Current().Text == "[" {
		isArray = true
		if err := e.pushVariable(name); err != nil {
			return err
		}
		if err := e.tok.Advance(); err != nil { // '['
			return err
		}
		if err := e.CompileExpression(); err != nil {
			return err
		}
		if err := e.tok.Expect("]", "']'"); err != nil {
			return err
		}
		e.vm.WriteArithmetic(lexicon.Add)
	}

	if err := e.tok.Expect("=", "'='"); err != nil {
		return err
	}
	if err := e.CompileExpression(); err != nil {
		return err
	}
	if err := e.tok.Expect(";", "';'"); err != nil {
		return err
	}

	if isArray {
		e.vm.WritePop(lexicon.Temp, 0)
		e.vm.WritePop(lexicon.Pointer, 1)
		e.vm.WritePush(lexicon.Temp, 0)
		e.vm.WritePop(lexicon.That, 0)
		return nil
	}
	return e.popVariable(name)
}

func (e *Engine) compileIf() error {
	if err := e.tok.Advance(); err != nil { // 'if'
		return err
	}
	if err := e.tok.Expect("(", "'('"); err != nil {
		return err
	}
	if err := e.CompileExpression(); err != nil {
		return err
	}
	if err := e.tok.Expect(")", "')'"); err != nil {
		return err
	}
	e.vm.WriteArithmetic(lexicon.Not)

	ifFalse := e.makeLabel("IF_FALSE")
	ifEnd := e.makeLabel("IF_END")
	e.vm.WriteIf(ifFalse)

	if err := e.tok.Expect("{", "'{'"); err != nil {
		return err
	}
	if _, err := e.compileStatements(); err != nil {
		return err
	}
	if err := e.tok.Expect("}", "'}'"); err != nil {
		return err
	}
	e.vm.WriteGoto(ifEnd)
	e.vm.WriteLabel(ifFalse)

	if e.tok.Current().Kind == KeywordTok && Keyword(e.tok.Current().Text) == KwElse {
		if err := e.tok.Advance(); err != nil {
			return err
		}
		if err := e.tok.Expect("{", "'{'"); err != nil {
			return err
		}
		if _, err := e.compileStatements(); err != nil {
			return err
		}
		if err := e.tok.Expect("}", "'}'"); err != nil {
			return err
		}
	}
	e.vm.WriteLabel(ifEnd)
	return nil
}

func (e *Engine) compileWhile() error {
	if err := e.tok.Advance(); err != nil { // 'while'
		return err
	}
	whileExp := e.makeLabel("WHILE_EXP")
	whileEnd := e.makeLabel("WHILE_END")
	e.vm.WriteLabel(whileExp)

	if err := e.tok.Expect("(", "'('"); err != nil {
		return err
	}
	if err := e.CompileExpression(); err != nil {
		return err
	}
	if err := e.tok.Expect(")", "')'"); err != nil {
		return err
	}
	e.vm.WriteArithmetic(lexicon.Not)
	e.vm.WriteIf(whileEnd)

	if err := e.tok.Expect("{", "'{'"); err != nil {
		return err
	}
	if _, err := e.compileStatements(); err != nil {
		return err
	}
	if err := e.tok.Expect("}", "'}'"); err != nil {
		return err
	}
	e.vm.WriteGoto(whileExp)
	e.vm.WriteLabel(whileEnd)
	return nil
}

func (e *Engine) compileDo() error {
	if err := e.tok.Advance(); err != nil { // 'do'
		return err
	}
	name, err := e.tok.ExpectIdentifier()
	if err != nil {
		return err
	}
	if err := e.compileSubroutineCall(name); err != nil {
		return err
	}
	e.vm.WritePop(lexicon.Temp, 0) // discard the call's return value
	return e.tok.Expect(";", "';'")
}

func (e *Engine) compileReturn() error {
	if err := e.tok.Advance(); err != nil { // 'return'
		return err
	}
	if e.tok.Current().Kind == SymbolTok && e.tok.Current().Text == ";" {
		e.vm.WritePush(lexicon.Constant, 0)
	} else if err := e.CompileExpression(); err != nil {
		return err
	}
	if err := e.tok.Expect(";", "';'"); err != nil {
		return err
	}
	e.vm.WriteReturn()
	return nil
}

// ----------------------------------------------------------------------------
// Expressions

// CompileExpression compiles 'term (op term)*', emitting each operator postfix after
// its right operand, left-associatively.
func (e *Engine) CompileExpression() error {
	if err := e.compileTerm(); err != nil {
		return err
	}
	for e.tok.Current().Kind == SymbolTok && binaryOpSymbols[e.tok.Current().Text[0]] {
		opText := e.tok.Current().Text
		if err := e.tok.Advance(); err != nil {
			return err
		}
		if err := e.compileTerm(); err != nil {
			return err
		}
		e.emitBinaryOp(opText)
	}
	return nil
}

func (e *Engine) emitBinaryOp(opText string) {
	switch opText {
	case "*":
		e.vm.WriteCall("Math.multiply", 2)
	case "/":
		e.vm.WriteCall("Math.divide", 2)
	default:
		e.vm.WriteArithmetic(symbolOps[opText])
	}
}

func (e *Engine) compileTerm() error {
	cur := e.tok.Current()
	switch cur.Kind {
	case IntConstTok:
		value := 0
		for _, d := range cur.Text {
			value = value*10 + int(d-'0')
		}
		e.vm.WritePush(lexicon.Constant, uint16(value))
		return e.tok.Advance()

	case StringConstTok:
		e.vm.WriteStringConstant(cur.Text)
		return e.tok.Advance()

	case KeywordTok:
		return e.compileKeywordConstant(Keyword(cur.Text))

	case IdentifierTok:
		return e.compileIdentifierTerm()

	case SymbolTok:
		switch {
		case cur.Text == "(":
			if err := e.tok.Advance(); err != nil {
				return err
			}
			if err := e.CompileExpression(); err != nil {
				return err
			}
			return e.tok.Expect(")", "')'")
		case unaryOpSymbols[cur.Text[0]]:
			if err := e.tok.Advance(); err != nil {
				return err
			}
			if err := e.compileTerm(); err != nil {
				return err
			}
			if cur.Text == "-" {
				e.vm.WriteArithmetic(lexicon.Neg)
			} else {
				e.vm.WriteArithmetic(lexicon.Not)
			}
			return nil
		}
	}
	return e.errorf("unexpected token %q, expected term", cur.Text)
}

func (e *Engine) compileKeywordConstant(kw Keyword) error {
	switch kw {
	case KwTrue:
		e.vm.WritePush(lexicon.Constant, 0)
		e.vm.WriteArithmetic(lexicon.Not)
	case KwFalse, KwNull:
		e.vm.WritePush(lexicon.Constant, 0)
	case KwThis:
		e.vm.WritePush(lexicon.Pointer, 0)
	default:
		return e.errorf("unexpected keyword %q in expression", kw)
	}
	return e.tok.Advance()
}

// compileIdentifierTerm resolves the single LL(2) ambiguity of the grammar: an
// identifier starting a term is either a plain variable, an array access, or a
// subroutine call, disambiguated by peeking one token past it.
func (e *Engine) compileIdentifierTerm() error {
	name := e.tok.Current().Text
	peek, err := e.tok.Peek()
	if err != nil {
		return err
	}
	if err := e.tok.Advance(); err != nil {
		return err
	}

	switch {
	case peek.Kind == SymbolTok && peek.Text == "[":
		if err := e.pushVariable(name); err != nil {
			return err
		}
		if err := e.tok.Advance(); err != nil { // '['
			return err
		}
		if err := e.CompileExpression(); err != nil {
			return err
		}
		if err := e.tok.Expect("]", "']'"); err != nil {
			return err
		}
		e.vm.WriteArithmetic(lexicon.Add)
		e.vm.WritePop(lexicon.Pointer, 1)
		e.vm.WritePush(lexicon.That, 0)
		return nil

	case peek.Kind == SymbolTok && (peek.Text == "(" || peek.Text == "."):
		return e.compileSubroutineCall(name)

	default:
		return e.pushVariable(name)
	}
}

// compileSubroutineCall assumes 'firstName' has already been consumed and the
// tokenizer is positioned on '(' or '.'.
func (e *Engine) compileSubroutineCall(firstName string) error {
	cur := e.tok.Current()
	switch {
	case cur.Kind == SymbolTok && cur.Text == "(":
		if e.currentSubroutineKind == KwFunction {
			return e.errorf("cannot call %q without an explicit receiver inside a function (no 'this')", firstName)
		}
		if err := e.tok.Advance(); err != nil {
			return err
		}
		e.vm.WritePush(lexicon.Pointer, 0)
		argCount, err := e.compileExpressionList()
		if err != nil {
			return err
		}
		if err := e.tok.Expect(")", "')'"); err != nil {
			return err
		}
		e.vm.WriteCall(e.className+"."+firstName, argCount+1)
		return nil

	case cur.Kind == SymbolTok && cur.Text == ".":
		if err := e.tok.Advance(); err != nil {
			return err
		}
		secondName, err := e.tok.ExpectIdentifier()
		if err != nil {
			return err
		}
		if err := e.tok.Expect("(", "'('"); err != nil {
			return err
		}

		// A variable receiver is pushed before the arguments so it lands in argument 0.
		callee, receiverArgs := firstName+"."+secondName, 0
		if e.symbols.Has(firstName) {
			typ, err := e.symbols.TypeOf(firstName)
			if err != nil {
				return e.errorf("%s", err)
			}
			if err := e.pushVariable(firstName); err != nil {
				return err
			}
			callee, receiverArgs = typ+"."+secondName, 1
		}

		argCount, err := e.compileExpressionList()
		if err != nil {
			return err
		}
		if err := e.tok.Expect(")", "')'"); err != nil {
			return err
		}
		e.vm.WriteCall(callee, argCount+receiverArgs)
		return nil

	default:
		return e.errorf("malformed subroutine call, expected '(' or '.', found %q", cur.Text)
	}
}

// compileExpressionList compiles a comma-separated (possibly empty) expression list and
// returns how many expressions it found.
func (e *Engine) compileExpressionList() (int, error) {
	if e.tok.Current().Kind == SymbolTok && e.tok.Current().Text == ")" {
		return 0, nil
	}
	count := 0
	for {
		if err := e.CompileExpression(); err != nil {
			return 0, err
		}
		count++
		if e.tok.Current().Kind == SymbolTok && e.tok.Current().Text == "," {
			if err := e.tok.Advance(); err != nil {
				return 0, err
			}
			continue
		}
		return count, nil
	}
}

// ----------------------------------------------------------------------------
// Variable access

func (e *Engine) pushVariable(name string) error {
	kind, idx, segment, err := e.resolveVariable(name)
	if err != nil {
		return err
	}
	e.vm.WritePush(segment, idx)
	_ = kind
	return nil
}

func (e *Engine) popVariable(name string) error {
	kind, idx, segment, err := e.resolveVariable(name)
	if err != nil {
		return err
	}
	e.vm.WritePop(segment, idx)
	_ = kind
	return nil
}

func (e *Engine) resolveVariable(name string) (Kind, uint16, lexicon.SegmentType, error) {
	kind, err := e.symbols.KindOf(name)
	if err != nil {
		return NoKind, 0, "", e.errorf("%s", err)
	}
	idx, err := e.symbols.IndexOf(name)
	if err != nil {
		return NoKind, 0, "", e.errorf("%s", err)
	}
	return kind, idx, lexicon.SegmentType(kind.Segment()), nil
}
