package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeSource(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("unable to write fixture %s: %v", path, err)
	}
	return path
}

const mainClassSource = `
class Main {
    function void main() {
        do Main.twice(21);
        return;
    }

    function int twice(int n) {
        return n * 2;
    }
}
`

func TestHandlerCompilesSingleFile(t *testing.T) {
	dir := t.TempDir()
	source := writeSource(t, dir, "Main.jack", mainClassSource)

	if status := Handler([]string{source}, map[string]string{}); status != 0 {
		t.Fatalf("expected exit status 0, got %d", status)
	}

	output, err := os.ReadFile(filepath.Join(dir, "Main.vm"))
	if err != nil {
		t.Fatalf("expected a sibling Main.vm file to be produced: %v", err)
	}

	text := string(output)
	for _, want := range []string{
		"function Main.main 0",
		"function Main.twice 0",
		"call Main.twice 1",
		"call Math.multiply 2",
	} {
		if !strings.Contains(text, want) {
			t.Errorf("expected generated VM code to contain %q, got:\n%s", want, text)
		}
	}
}

func TestHandlerCompilesDirectoryNonRecursively(t *testing.T) {
	dir := t.TempDir()
	writeSource(t, dir, "Main.jack", mainClassSource)
	writeSource(t, dir, "Helper.jack", `
class Helper {
    function int identity(int n) {
        return n;
    }
}
`)

	nested := filepath.Join(dir, "nested")
	if err := os.Mkdir(nested, 0o755); err != nil {
		t.Fatalf("unable to create nested dir: %v", err)
	}
	writeSource(t, nested, "Ignored.jack", `class Ignored { function void noop() { return; } }`)

	if status := Handler([]string{dir}, map[string]string{}); status != 0 {
		t.Fatalf("expected exit status 0, got %d", status)
	}

	if _, err := os.Stat(filepath.Join(dir, "Main.vm")); err != nil {
		t.Errorf("expected Main.vm to be produced: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "Helper.vm")); err != nil {
		t.Errorf("expected Helper.vm to be produced: %v", err)
	}
	if _, err := os.Stat(filepath.Join(nested, "Ignored.vm")); err == nil {
		t.Errorf("expected the nested directory not to be walked")
	}
}

func TestHandlerFailsOnMissingReturn(t *testing.T) {
	dir := t.TempDir()
	source := writeSource(t, dir, "Broken.jack", `
class Broken {
    function void oops() {
        var int x;
        let x = 1;
    }
}
`)

	if status := Handler([]string{source}, map[string]string{}); status == 0 {
		t.Fatalf("expected a non-zero exit status for a missing return statement")
	}
}

func TestHandlerFailsOnUnknownPath(t *testing.T) {
	if status := Handler([]string{"/no/such/path.jack"}, map[string]string{}); status == 0 {
		t.Fatalf("expected a non-zero exit status for a missing input path")
	}
}

func TestHandlerFailsOnNonJackFile(t *testing.T) {
	dir := t.TempDir()
	source := writeSource(t, dir, "notes.txt", "hello")

	if status := Handler([]string{source}, map[string]string{}); status == 0 {
		t.Fatalf("expected a non-zero exit status for a non-.jack input file")
	}
}
