package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/action-lang/actc/internal/debugdump"
	"github.com/action-lang/actc/internal/diag"
	"github.com/action-lang/actc/internal/lexer"
	"github.com/action-lang/actc/internal/parser"
)

var (
	parseEval    string
	parseDumpAST bool
)

var parseCmd = &cobra.Command{
	Use:   "parse [file]",
	Short: "Parse an Action! file and report its AST or any error",
	Long: `Parse Action! source into a typed AST, with symbols fully
resolved, and either confirm success or report the first error with
source context.

Examples:
  actc parse prog.act
  actc parse --dump-ast prog.act`,
	Args: cobra.MaximumNArgs(1),
	RunE: runParse,
}

func init() {
	rootCmd.AddCommand(parseCmd)

	parseCmd.Flags().StringVarP(&parseEval, "eval", "e", "", "parse inline source instead of reading from file")
	parseCmd.Flags().BoolVar(&parseDumpAST, "dump-ast", false, "pretty-print the parsed AST")
}

func runParse(cmd *cobra.Command, args []string) error {
	input, filename, err := readInput(parseEval, args)
	if err != nil {
		return err
	}

	toks := lexer.New(input, lexer.WithFilename(filename)).All()
	p := parser.New(toks, parser.WithFilename(filename), parser.WithSource(input))
	prog, err := p.ParseProgram()
	if err != nil {
		if d, ok := err.(*diag.Error); ok {
			fmt.Println(d.Format(true))
		}
		return err
	}
	for _, w := range p.Warnings() {
		fmt.Printf("warning: %s\n", w)
	}

	if parseDumpAST {
		fmt.Println(debugdump.Program(prog))
	} else {
		fmt.Println("parsed OK")
	}
	return nil
}
