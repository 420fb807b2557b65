package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/action-lang/actc/internal/bytecode"
	"github.com/action-lang/actc/internal/diag"
	"github.com/action-lang/actc/internal/lexer"
	"github.com/action-lang/actc/internal/parser"
)

var disasmEval string

var disasmCmd = &cobra.Command{
	Use:   "disasm [file]",
	Short: "Compile an Action! file and print its disassembly",
	Long: `Compile an Action! program and print a debug listing of its
bytecode: offset, mnemonic, and decoded operands, one instruction per
line. This is a debugging aid; it carries no compiler authority of its
own.

Examples:
  actc disasm prog.act`,
	Args: cobra.MaximumNArgs(1),
	RunE: runDisasm,
}

func init() {
	rootCmd.AddCommand(disasmCmd)
	disasmCmd.Flags().StringVarP(&disasmEval, "eval", "e", "", "disassemble inline source instead of reading from file")
}

func runDisasm(_ *cobra.Command, args []string) error {
	input, filename, err := readInput(disasmEval, args)
	if err != nil {
		return err
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

	fmt.Print(bytecode.Text(img))
	return nil
}
