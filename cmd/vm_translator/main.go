package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"github.com/teris-io/cli"
	"go.novarion.dev/jacktoolchain/pkg/asm"
	"go.novarion.dev/jacktoolchain/pkg/lexicon"
	"go.novarion.dev/jacktoolchain/pkg/vm"
)

var Description = strings.ReplaceAll(`
The VM Translator turns programs (one or more modules) written in the VM language into
Hack assembly code ready for further elaboration. The VM language is a higher-level
(bytecode-like) language tailored for use with the Hack computer architecture.
`, "\n", " ")

var VmTranslator = cli.New(Description).
	WithArg(cli.NewArg("path", "A .vm file or a directory of .vm files to translate")).
	WithOption(cli.NewOption("output", "The translated assembly output (.asm)").
		WithType(cli.TypeString)).
	WithAction(Handler)

// discoverModules resolves 'path' (a single .vm file or a directory) to the ordered list
// of translation units to link together, and the default output path: the sibling
// '<stem>.asm' for a single file, '<dir>/<dirname>.asm' for a directory.
func discoverModules(path string) (modules []string, defaultOutput string, err error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, "", errors.Wrap(err, "unable to stat input path")
	}

	if !info.IsDir() {
		if filepath.Ext(path) != ".vm" {
			return nil, "", errors.Errorf("input file '%s' is not a .vm file", path)
		}
		stem := strings.TrimSuffix(path, filepath.Ext(path))
		return []string{path}, stem + ".asm", nil
	}

	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, "", errors.Wrap(err, "unable to read input directory")
	}

	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".vm" {
			continue
		}
		modules = append(modules, filepath.Join(path, entry.Name()))
	}

	dirName := filepath.Base(filepath.Clean(path))
	return modules, filepath.Join(path, dirName+".asm"), nil
}

// translateModule walks every command in 'source' through 'cursor' and 'writer',
// namespacing 'static' accesses to the module's own base name.
func translateModule(source string, writer *asm.Writer) error {
	content, err := os.Open(source)
	if err != nil {
		return errors.Wrap(err, "unable to open input file")
	}
	defer content.Close()

	cursor, err := vm.NewCommandCursor(content)
	if err != nil {
		return errors.Wrapf(err, "unable to parse '%s'", source)
	}

	stem := strings.TrimSuffix(filepath.Base(source), filepath.Ext(source))
	writer.SetFileName(stem)

	for cursor.HasMore() {
		kind, err := cursor.CommandKind()
		if err != nil {
			return errors.Wrapf(err, "%s", source)
		}

		switch kind {
		case vm.CPush, vm.CPop:
			segment, err := cursor.Arg1()
			if err != nil {
				return errors.Wrapf(err, "%s", source)
			}
			offset, err := cursor.Arg2()
			if err != nil {
				return errors.Wrapf(err, "%s", source)
			}
			if err := writer.WritePushPop(kind == vm.CPush, lexicon.SegmentType(segment), offset); err != nil {
				return errors.Wrapf(err, "%s", source)
			}

		case vm.CArithmetic:
			op, err := cursor.Arg1()
			if err != nil {
				return errors.Wrapf(err, "%s", source)
			}
			if err := writer.WriteArithmetic(lexicon.ArithOpType(op)); err != nil {
				return errors.Wrapf(err, "%s", source)
			}

		case vm.CLabel:
			name, err := cursor.Arg1()
			if err != nil {
				return errors.Wrapf(err, "%s", source)
			}
			writer.WriteLabel(name)

		case vm.CGoto:
			name, err := cursor.Arg1()
			if err != nil {
				return errors.Wrapf(err, "%s", source)
			}
			writer.WriteGoto(name)

		case vm.CIf:
			name, err := cursor.Arg1()
			if err != nil {
				return errors.Wrapf(err, "%s", source)
			}
			writer.WriteIf(name)

		case vm.CFunction:
			name, err := cursor.Arg1()
			if err != nil {
				return errors.Wrapf(err, "%s", source)
			}
			nLocals, err := cursor.Arg2()
			if err != nil {
				return errors.Wrapf(err, "%s", source)
			}
			writer.WriteFunction(name, nLocals)

		case vm.CCall:
			name, err := cursor.Arg1()
			if err != nil {
				return errors.Wrapf(err, "%s", source)
			}
			nArgs, err := cursor.Arg2()
			if err != nil {
				return errors.Wrapf(err, "%s", source)
			}
			writer.WriteCall(name, nArgs)

		case vm.CReturn:
			writer.WriteReturn()
		}

		if err := cursor.Advance(); err != nil {
			break
		}
	}

	return nil
}

func Handler(args []string, options map[string]string) int {
	if len(args) < 1 {
		fmt.Fprintf(os.Stderr, "ERROR: missing input path, use --help\n")
		return 1
	}

	modules, defaultOutput, err := discoverModules(args[0])
	if err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: %s\n", err)
		return 1
	}
	if len(modules) == 0 {
		fmt.Fprintf(os.Stderr, "ERROR: no .vm files found under '%s'\n", args[0])
		return 1
	}

	outputPath := defaultOutput
	if custom, ok := options["output"]; ok && custom != "" {
		outputPath = custom
	}

	output, err := os.Create(outputPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: unable to open output file: %s\n", err)
		return 1
	}
	defer output.Close()

	writer := asm.NewWriter(output)

	// A directory of modules is one linked program: the bootstrap must run first and
	// jump into whichever module defines Sys.init. A lone file is translated as-is,
	// matching the course's own convention that single-file VM programs have no Sys.init.
	info, statErr := os.Stat(args[0])
	if statErr == nil && info.IsDir() {
		if err := writer.WriteInit(); err != nil {
			fmt.Fprintf(os.Stderr, "ERROR: unable to emit bootstrap: %s\n", err)
			return 1
		}
	}

	for _, module := range modules {
		if err := translateModule(module, writer); err != nil {
			fmt.Fprintf(os.Stderr, "ERROR: %s\n", err)
			return 1
		}
	}

	if err := writer.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: unable to write output file: %s\n", err)
		return 1
	}

	return 0
}

func main() {
	os.Exit(VmTranslator.Run(os.Args, os.Stdout))
}
