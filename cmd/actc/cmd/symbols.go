package cmd

import (
	"fmt"
	"os"
	"sort"

	"github.com/maruel/natural"
	"github.com/spf13/cobra"

	"github.com/action-lang/actc/internal/bytecode"
	"github.com/action-lang/actc/internal/diag"
	"github.com/action-lang/actc/internal/lexer"
	"github.com/action-lang/actc/internal/parser"
)

var symbolsEval string

var symbolsCmd = &cobra.Command{
	Use:   "symbols [file]",
	Short: "List an Action! program's routine symbols",
	Long: `Compile an Action! program and list its routines by entry
offset and name, in natural sort order (x2 before x10) rather than
lexical order.

Examples:
  actc symbols prog.act`,
	Args: cobra.MaximumNArgs(1),
	RunE: runSymbols,
}

func init() {
	rootCmd.AddCommand(symbolsCmd)
	symbolsCmd.Flags().StringVarP(&symbolsEval, "eval", "e", "", "list symbols for inline source instead of a file")
}

func runSymbols(_ *cobra.Command, args []string) error {
	input, filename, err := readInput(symbolsEval, args)
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

	names := make([]string, 0, len(img.Symbols))
	addrByName := make(map[string]int, len(img.Symbols))
	for addr, name := range img.Symbols {
		names = append(names, name)
		addrByName[name] = addr
	}
	sort.Sort(natural.StringSlice(names))

	for _, name := range names {
		marker := ""
		if addrByName[name] == img.EntryAddr {
			marker = " (entry)"
		}
		fmt.Printf("%04X  %s%s\n", addrByName[name], name, marker)
	}
	return nil
}
