package asm_test

import (
	"strings"
	"testing"

	"go.novarion.dev/jacktoolchain/pkg/asm"
	"go.novarion.dev/jacktoolchain/pkg/lexicon"
)

func renderedLines(t *testing.T, build func(w *asm.Writer)) []string {
	t.Helper()
	var out strings.Builder
	w := asm.NewWriter(&out)
	build(w)
	if err := w.Close(); err != nil {
		t.Fatalf("unexpected Close error: %v", err)
	}
	var lines []string
	for _, line := range strings.Split(out.String(), "\n") {
		if line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}

func TestWritePushConstant(t *testing.T) {
	lines := renderedLines(t, func(w *asm.Writer) {
		if err := w.WritePushPop(true, lexicon.Constant, 7); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	})
	want := []string{"@7", "D=A", "@SP", "A=M", "M=D", "@SP", "M=M+1"}
	assertLines(t, lines, want)
}

func TestWritePopLocalUsesScratchRegister(t *testing.T) {
	lines := renderedLines(t, func(w *asm.Writer) {
		if err := w.WritePushPop(false, lexicon.Local, 2); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	})
	want := []string{
		"@2", "D=A", "@LCL", "D=D+M", "@R13", "M=D",
		"@SP", "AM=M-1", "D=M",
		"@R13", "A=M", "M=D",
	}
	assertLines(t, lines, want)
}

func TestWritePopConstantIsRejected(t *testing.T) {
	var out strings.Builder
	w := asm.NewWriter(&out)
	if err := w.WritePushPop(false, lexicon.Constant, 0); err == nil {
		t.Fatalf("expected popping into 'constant' to fail")
	}
}

func TestWriteArithmeticBinaryAndUnary(t *testing.T) {
	lines := renderedLines(t, func(w *asm.Writer) {
		if err := w.WriteArithmetic(lexicon.Add); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if err := w.WriteArithmetic(lexicon.Neg); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	})
	want := []string{
		"@SP", "AM=M-1", "D=M", "A=A-1", "M=D+M",
		"@SP", "A=M-1", "M=-M",
	}
	assertLines(t, lines, want)
}

func TestWriteArithmeticComparisonUsesFreshLabels(t *testing.T) {
	lines := renderedLines(t, func(w *asm.Writer) {
		if err := w.WriteArithmetic(lexicon.Eq); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if err := w.WriteArithmetic(lexicon.Eq); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	})

	var trueLabels, endLabels []string
	for _, line := range lines {
		if strings.Contains(line, "COMP_TRUE") && strings.HasPrefix(line, "(") {
			trueLabels = append(trueLabels, line)
		}
		if strings.Contains(line, "COMP_END") && strings.HasPrefix(line, "(") {
			endLabels = append(endLabels, line)
		}
	}
	if len(trueLabels) != 2 || trueLabels[0] == trueLabels[1] {
		t.Fatalf("expected two distinct COMP_TRUE labels, got %v", trueLabels)
	}
	if len(endLabels) != 2 || endLabels[0] == endLabels[1] {
		t.Fatalf("expected two distinct COMP_END labels, got %v", endLabels)
	}
}

func TestWriteInitEmitsBootstrapOnce(t *testing.T) {
	var out strings.Builder
	w := asm.NewWriter(&out)
	if err := w.WriteInit(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := w.WriteInit(); err == nil {
		t.Fatalf("expected a second write_init call to fail")
	}
	if err := w.Close(); err != nil {
		t.Fatalf("unexpected Close error: %v", err)
	}

	out2 := out.String()
	if !strings.HasPrefix(out2, "@256\nD=A\n@SP\nM=D\n") {
		t.Fatalf("expected bootstrap to start with SP=256, got:\n%s", out2)
	}
	if !strings.Contains(out2, "@Sys.init\n0;JMP\n") {
		t.Fatalf("expected bootstrap to call Sys.init, got:\n%s", out2)
	}
}

func TestWriteFunctionCallReturnRoundTrip(t *testing.T) {
	lines := renderedLines(t, func(w *asm.Writer) {
		w.WriteFunction("Main.double", 1)
		w.WriteCall("Math.double", 1)
		w.WriteReturn()
	})

	if lines[0] != "(Main.double)" {
		t.Fatalf("expected function entry label first, got %q", lines[0])
	}
	joined := strings.Join(lines, "\n")
	if !strings.Contains(joined, "@Math.double\n0;JMP") {
		t.Fatalf("expected call to jump to the callee, got:\n%s", joined)
	}
	if !strings.Contains(joined, "@R13\nD=M") && !strings.Contains(joined, "@LCL\nD=M\n@R13\nM=D") {
		t.Fatalf("expected return to stash the frame base in R13, got:\n%s", joined)
	}
	if !strings.Contains(joined, "@R14") {
		t.Fatalf("expected return to stash the return address in R14, got:\n%s", joined)
	}
}

func TestWriteLabelGotoIfAreQualifiedPerFunction(t *testing.T) {
	lines := renderedLines(t, func(w *asm.Writer) {
		w.WriteFunction("Main.loop", 0)
		w.WriteLabel("LOOP_START")
		w.WriteGoto("LOOP_START")
		w.WriteIf("LOOP_START")
	})

	found := false
	for _, line := range lines {
		if line == "(Main.loop$LOOP_START)" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected label to be qualified with the enclosing function, got %v", lines)
	}
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
