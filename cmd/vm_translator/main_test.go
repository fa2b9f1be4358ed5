package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeModule(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("unable to write fixture %s: %v", path, err)
	}
	return path
}

func TestHandlerSingleFileDefaultsToSiblingOutput(t *testing.T) {
	dir := t.TempDir()
	source := writeModule(t, dir, "Add.vm", "push constant 7\npush constant 8\nadd\n")

	if status := Handler([]string{source}, map[string]string{}); status != 0 {
		t.Fatalf("expected exit status 0, got %d", status)
	}

	output, err := os.ReadFile(filepath.Join(dir, "Add.asm"))
	if err != nil {
		t.Fatalf("expected a sibling Add.asm file to be produced: %v", err)
	}

	text := string(output)
	if strings.Contains(text, "Sys.init") {
		t.Errorf("a single-file translation must not emit a bootstrap call to Sys.init, got:\n%s", text)
	}
	for _, want := range []string{"@7", "D=A", "@8", "M=D+M"} {
		if !strings.Contains(text, want) {
			t.Errorf("expected generated assembly to contain %q, got:\n%s", want, text)
		}
	}
}

func TestHandlerDirectoryLinksAndBootstraps(t *testing.T) {
	dir := t.TempDir()
	writeModule(t, dir, "Sys.vm", "function Sys.init 0\ncall Main.run 0\npop temp 0\nreturn\n")
	writeModule(t, dir, "Main.vm", "function Main.run 0\npush constant 1\nreturn\n")

	if status := Handler([]string{dir}, map[string]string{}); status != 0 {
		t.Fatalf("expected exit status 0, got %d", status)
	}

	outputName := filepath.Base(dir) + ".asm"
	output, err := os.ReadFile(filepath.Join(dir, outputName))
	if err != nil {
		t.Fatalf("expected a default output named %q: %v", outputName, err)
	}

	text := string(output)
	if !strings.HasPrefix(text, "@256\n") {
		t.Errorf("expected the linked program to start with the bootstrap, got:\n%s", text)
	}
	if !strings.Contains(text, "@Sys.init") {
		t.Errorf("expected the bootstrap to call Sys.init, got:\n%s", text)
	}
	if !strings.Contains(text, "(Sys.init)") || !strings.Contains(text, "(Main.run)") {
		t.Errorf("expected both modules' functions to be present, got:\n%s", text)
	}
}

func TestHandlerCustomOutputOverridesDefault(t *testing.T) {
	dir := t.TempDir()
	source := writeModule(t, dir, "Add.vm", "push constant 1\npush constant 1\nadd\n")
	custom := filepath.Join(dir, "custom.asm")

	if status := Handler([]string{source}, map[string]string{"output": custom}); status != 0 {
		t.Fatalf("expected exit status 0, got %d", status)
	}
	if _, err := os.Stat(custom); err != nil {
		t.Errorf("expected the custom output path to be used: %v", err)
	}
}

func TestHandlerStaticSegmentIsNamespacedPerFile(t *testing.T) {
	dir := t.TempDir()
	writeModule(t, dir, "FileA.vm", "push constant 1\npop static 0\n")
	writeModule(t, dir, "FileB.vm", "push constant 2\npop static 0\n")

	if status := Handler([]string{dir}, map[string]string{}); status != 0 {
		t.Fatalf("expected exit status 0, got %d", status)
	}

	output, err := os.ReadFile(filepath.Join(dir, filepath.Base(dir)+".asm"))
	if err != nil {
		t.Fatalf("unexpected error reading output: %v", err)
	}

	text := string(output)
	if !strings.Contains(text, "@FileA.0") || !strings.Contains(text, "@FileB.0") {
		t.Errorf("expected distinct per-file static symbols, got:\n%s", text)
	}
}

func TestHandlerFailsOnMissingInput(t *testing.T) {
	if status := Handler([]string{"/no/such/path.vm"}, map[string]string{}); status == 0 {
		t.Fatalf("expected a non-zero exit status for a missing input path")
	}
}
