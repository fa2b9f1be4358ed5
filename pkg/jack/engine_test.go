package jack_test

import (
	"strings"
	"testing"

	"go.novarion.dev/jacktoolchain/pkg/jack"
)

// compile is a small test helper: tokenizes 'src', compiles it as one class and
// returns the generated VM text as a slice of lines (blank lines stripped).
func compile(t *testing.T, path, src string) []string {
	t.Helper()

	tok, err := jack.NewTokenizer(path, []byte(src))
	if err != nil {
		t.Fatalf("tokenizer error: %v", err)
	}

	var out strings.Builder
	writer := jack.NewVMWriter(&out)
	engine := jack.NewEngine(path, tok, writer)

	if _, err := engine.CompileClass(); err != nil {
		t.Fatalf("compile error: %v", err)
	}

	var lines []string
	for _, line := range strings.Split(out.String(), "\n") {
		if line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}

func TestCompileFunctionWithArithmetic(t *testing.T) {
	src := `
	class Math2 {
		function int sum(int a, int b) {
			return a + b;
		}
	}`

	got := compile(t, "Math2.jack", src)
	want := []string{
		"function Math2.sum 0",
		"push argument 0",
		"push argument 1",
		"add",
		"return",
	}
	assertLines(t, got, want)
}

func TestCompileConstructorPreamble(t *testing.T) {
	src := `
	class Point {
		field int x, y;

		constructor Point new(int ax, int ay) {
			let x = ax;
			let y = ay;
			return this;
		}
	}`

	got := compile(t, "Point.jack", src)
	want := []string{
		"function Point.new 0",
		"push constant 2",
		"call Memory.alloc 1",
		"pop pointer 0",
		"push argument 0",
		"pop this 0",
		"push argument 1",
		"pop this 1",
		"push pointer 0",
		"return",
	}
	assertLines(t, got, want)
}

func TestCompileMethodReceivesThis(t *testing.T) {
	src := `
	class Point {
		field int x;

		method int getX() {
			return x;
		}
	}`

	got := compile(t, "Point.jack", src)
	want := []string{
		"function Point.getX 0",
		"push argument 0",
		"pop pointer 0",
		"push this 0",
		"return",
	}
	assertLines(t, got, want)
}

func TestCompileWhileAndIf(t *testing.T) {
	src := `
	class Loop {
		function void run(int n) {
			while (n > 0) {
				if (n = 1) {
					let n = 0;
				}
				else {
					let n = n - 1;
				}
			}
			return;
		}
	}`

	got := compile(t, "Loop.jack", src)
	want := []string{
		"function Loop.run 0",
		"label Loop_WHILE_EXP_1",
		"push argument 0",
		"push constant 0",
		"gt",
		"not",
		"if-goto Loop_WHILE_END_2",
		"push argument 0",
		"push constant 1",
		"eq",
		"not",
		"if-goto Loop_IF_FALSE_3",
		"push constant 0",
		"pop argument 0",
		"goto Loop_IF_END_4",
		"label Loop_IF_FALSE_3",
		"push argument 0",
		"push constant 1",
		"sub",
		"pop argument 0",
		"label Loop_IF_END_4",
		"goto Loop_WHILE_EXP_1",
		"label Loop_WHILE_END_2",
		"push constant 0",
		"return",
	}
	assertLines(t, got, want)
}

func TestCompileArrayAssignmentAndAccess(t *testing.T) {
	src := `
	class Arr {
		function void set(Array a, int i, int v) {
			let a[i] = v;
			return;
		}
	}`

	got := compile(t, "Arr.jack", src)
	want := []string{
		"function Arr.set 0",
		"push argument 0",
		"push argument 1",
		"add",
		"push argument 2",
		"pop temp 0",
		"pop pointer 1",
		"push temp 0",
		"pop that 0",
		"push constant 0",
		"return",
	}
	assertLines(t, got, want)
}

func TestCompileStringConstant(t *testing.T) {
	src := `
	class Greeter {
		function void hi() {
			do Output.printString("hi");
			return;
		}
	}`

	got := compile(t, "Greeter.jack", src)
	want := []string{
		"function Greeter.hi 0",
		"push constant 2",
		"call String.new 1",
		"push constant 104",
		"call String.appendChar 2",
		"push constant 105",
		"call String.appendChar 2",
		"call Output.printString 1",
		"pop temp 0",
		"push constant 0",
		"return",
	}
	assertLines(t, got, want)
}

func TestCompileMissingReturnIsFatal(t *testing.T) {
	src := `
	class Bad {
		function void nop() {
			var int x;
			let x = 1;
		}
	}`
	tok, err := jack.NewTokenizer("Bad.jack", []byte(src))
	if err != nil {
		t.Fatalf("tokenizer error: %v", err)
	}
	var out strings.Builder
	engine := jack.NewEngine("Bad.jack", tok, jack.NewVMWriter(&out))
	if _, err := engine.CompileClass(); err == nil {
		t.Fatalf("expected a missing-return compile error")
	}
}

func TestCompileUndeclaredIdentifierIsFatal(t *testing.T) {
	src := `
	class Bad {
		function int oops() {
			return missing;
		}
	}`
	tok, err := jack.NewTokenizer("Bad.jack", []byte(src))
	if err != nil {
		t.Fatalf("tokenizer error: %v", err)
	}
	var out strings.Builder
	engine := jack.NewEngine("Bad.jack", tok, jack.NewVMWriter(&out))
	if _, err := engine.CompileClass(); err == nil {
		t.Fatalf("expected an undeclared identifier compile error")
	}
}

func TestCompileImplicitReceiverInsideFunctionIsFatal(t *testing.T) {
	src := `
	class Bad {
		function void oops() {
			do helper();
			return;
		}

		function void helper() {
			return;
		}
	}`
	tok, err := jack.NewTokenizer("Bad.jack", []byte(src))
	if err != nil {
		t.Fatalf("tokenizer error: %v", err)
	}
	var out strings.Builder
	engine := jack.NewEngine("Bad.jack", tok, jack.NewVMWriter(&out))
	if _, err := engine.CompileClass(); err == nil {
		t.Fatalf("expected an implicit-receiver-inside-a-function compile error")
	}
}

func TestCompileImplicitReceiverInsideMethodIsAllowed(t *testing.T) {
	src := `
	class Ok {
		method void oops() {
			do helper();
			return;
		}

		method void helper() {
			return;
		}
	}`
	got := compile(t, "Ok.jack", src)
	want := []string{
		"function Ok.oops 0",
		"push argument 0",
		"pop pointer 0",
		"push pointer 0",
		"call Ok.helper 1",
		"pop temp 0",
		"push constant 0",
		"return",
		"function Ok.helper 0",
		"push argument 0",
		"pop pointer 0",
		"push constant 0",
		"return",
	}
	assertLines(t, got, want)
}

func assertLines(t *testing.T, got, want []string) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("got %d lines %v, want %d lines %v", len(got), got, len(want), want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("line %d: got %q, want %q\nfull got: %v", i, got[i], want[i], got)
		}
	}
}
