package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/action-lang/actc/internal/bytecode"
	"github.com/action-lang/actc/internal/diag"
	"github.com/action-lang/actc/internal/lexer"
	"github.com/action-lang/actc/internal/parser"
)

var (
	compileOutput      string
	compileDisassemble bool
	compileVerbose     bool
)

var compileCmd = &cobra.Command{
	Use:   "compile [file]",
	Short: "Compile an Action! file to a program image",
	Long: `Compile an Action! program to bytecode. The VM never persists a
program image between runs (see the language reference's Persisted
state note), so the default is to report compile statistics; pass -o
to also write the raw code bytes to disk.

Examples:
  actc compile prog.act
  actc compile prog.act --disassemble
  actc compile prog.act -o prog.bin --verbose`,
	Args: cobra.ExactArgs(1),
	RunE: compileScript,
}

func init() {
	rootCmd.AddCommand(compileCmd)

	compileCmd.Flags().StringVarP(&compileOutput, "output", "o", "", "write the compiled code bytes to this file")
	compileCmd.Flags().BoolVar(&compileDisassemble, "disassemble", false, "show disassembled bytecode after compilation")
	compileCmd.Flags().BoolVarP(&compileVerbose, "verbose", "v", false, "verbose output")
}

func compileScript(_ *cobra.Command, args []string) error {
	filename := args[0]
	content, err := os.ReadFile(filename)
	if err != nil {
		return fmt.Errorf("failed to read file %s: %w", filename, err)
	}
	input := string(content)

	if compileVerbose {
		fmt.Fprintf(os.Stderr, "Compiling %s...\n", filename)
	}

	toks := lexer.New(input, lexer.WithFilename(filename)).All()
	p := parser.New(toks, parser.WithFilename(filename), parser.WithSource(input))
	prog, err := p.ParseProgram()
	if err != nil {
		if d, ok := err.(*diag.Error); ok {
			fmt.Fprintln(os.Stderr, d.Format(true))
		}
		return fmt.Errorf("parsing failed")
	}

	img, err := bytecode.NewEmitter().Emit(prog)
	if err != nil {
		return fmt.Errorf("bytecode emission failed: %w", err)
	}

	printer := message.NewPrinter(language.English)
	if compileVerbose {
		printer.Fprintf(os.Stderr, "Code size: %d bytes\n", len(img.Code))
		printer.Fprintf(os.Stderr, "Global data: %d bytes\n", img.DataSize)
		printer.Fprintf(os.Stderr, "Routines: %d\n", len(img.Symbols))
	}

	if compileDisassemble {
		fmt.Fprintf(os.Stderr, "\n== Disassembly (%s) ==\n", filename)
		fmt.Fprint(os.Stderr, bytecode.Text(img))
	}

	if compileOutput != "" {
		if err := os.WriteFile(compileOutput, img.Code, 0o644); err != nil {
			return fmt.Errorf("failed to write output file %s: %w", compileOutput, err)
		}
		printer.Printf("Compiled %s -> %s (%d bytes)\n", filename, compileOutput, len(img.Code))
	} else if !compileVerbose {
		printer.Printf("Compiled %s OK (%d bytes)\n", filename, len(img.Code))
	}

	return nil
}
