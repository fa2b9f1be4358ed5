package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.novarion.dev/jacktoolchain/pkg/jack"

	"github.com/pkg/errors"
	"github.com/teris-io/cli"
)

var Description = strings.ReplaceAll(`
The Jack Compiler turns programs (one or more classes) written in the Jack language
straight into VM modules ready for further translation. The Jack language is a
higher-level OOP language tailored for use with the Hack computer architecture.
`, "\n", " ")

var JackCompiler = cli.New(Description).
	WithArg(cli.NewArg("path", "A .jack file or a directory of .jack files to compile")).
	WithAction(Handler)

// discoverSources resolves 'path' (a single .jack file or a directory) to the ordered
// list of translation units to compile. Directory walks are non-recursive: only the
// .jack files directly inside 'path' are picked up.
func discoverSources(path string) ([]string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, errors.Wrap(err, "unable to stat input path")
	}

	if !info.IsDir() {
		if filepath.Ext(path) != ".jack" {
			return nil, errors.Errorf("input file '%s' is not a .jack file", path)
		}
		return []string{path}, nil
	}

	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, errors.Wrap(err, "unable to read input directory")
	}

	var sources []string
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".jack" {
			continue
		}
		sources = append(sources, filepath.Join(path, entry.Name()))
	}
	return sources, nil
}

// compileFile tokenizes, parses and emits VM code for a single .jack translation unit,
// writing the result to the sibling '<stem>.vm' file.
func compileFile(source string) error {
	content, err := os.ReadFile(source)
	if err != nil {
		return errors.Wrap(err, "unable to open input file")
	}

	tokenizer, err := jack.NewTokenizer(source, content)
	if err != nil {
		return errors.Wrapf(err, "unable to tokenize '%s'", source)
	}

	ext := filepath.Ext(source)
	outputPath := strings.TrimSuffix(source, ext) + ".vm"
	output, err := os.Create(outputPath)
	if err != nil {
		return errors.Wrap(err, "unable to open output file")
	}
	defer output.Close()

	engine := jack.NewEngine(source, tokenizer, jack.NewVMWriter(output))
	if _, err := engine.CompileClass(); err != nil {
		return err
	}
	return nil
}

func Handler(args []string, options map[string]string) int {
	if len(args) < 1 {
		fmt.Fprintf(os.Stderr, "ERROR: missing input path, use --help\n")
		return 1
	}

	sources, err := discoverSources(args[0])
	if err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: %s\n", err)
		return 1
	}
	if len(sources) == 0 {
		fmt.Fprintf(os.Stderr, "ERROR: no .jack files found under '%s'\n", args[0])
		return 1
	}

	for _, source := range sources {
		if err := compileFile(source); err != nil {
			fmt.Fprintf(os.Stderr, "ERROR: %s\n", err)
			return 1
		}
	}

	return 0
}

func main() {
	os.Exit(JackCompiler.Run(os.Args, os.Stdout))
}
