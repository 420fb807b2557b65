package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/action-lang/actc/internal/lexer"
	"github.com/action-lang/actc/internal/token"
)

var (
	lexEval  string
	showPos  bool
	showKind bool
)

var lexCmd = &cobra.Command{
	Use:   "lex [file]",
	Short: "Tokenize an Action! file or expression",
	Long: `Tokenize an Action! program and print the resulting tokens.

Examples:
  actc lex prog.act
  actc lex -e "BYTE b=[5]"
  actc lex --show-kind --show-pos prog.act`,
	Args: cobra.MaximumNArgs(1),
	RunE: runLex,
}

func init() {
	rootCmd.AddCommand(lexCmd)

	lexCmd.Flags().StringVarP(&lexEval, "eval", "e", "", "tokenize inline source instead of reading from file")
	lexCmd.Flags().BoolVar(&showPos, "show-pos", false, "show token positions (line:column)")
	lexCmd.Flags().BoolVar(&showKind, "show-kind", false, "show token kind names")
}

func runLex(cmd *cobra.Command, args []string) error {
	input, _, err := readInput(lexEval, args)
	if err != nil {
		return err
	}

	for _, tok := range lexer.New(input).All() {
		printToken(tok)
		if tok.Kind == token.EOF {
			break
		}
	}
	return nil
}

func printToken(tok token.Token) {
	var out string
	if showKind {
		out = fmt.Sprintf("[%-16s]", tok.Kind)
	}
	if tok.Value == "" {
		out += fmt.Sprintf(" %s", tok.Kind)
	} else {
		out += fmt.Sprintf(" %q", tok.Value)
	}
	if showPos {
		out += fmt.Sprintf(" @%d:%d", tok.Position.Line, tok.Position.Column)
	}
	fmt.Println(out)
}
