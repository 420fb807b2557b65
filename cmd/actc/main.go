// Command actc is the Action! compiler and virtual machine CLI: lex,
// parse, compile, run, disasm, and symbols subcommands over the
// lexer/parser/bytecode/vm pipeline in internal/.
package main

import (
	"fmt"
	"os"

	"github.com/action-lang/actc/cmd/actc/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
