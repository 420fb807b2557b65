package cmd

import (
	"fmt"
	"os"
)

// readInput resolves the source text for a lex/parse/run/disasm/symbols
// subcommand: an inline -e expression takes priority, otherwise the
// named file is read, otherwise neither was given.
func readInput(evalSrc string, args []string) (input, filename string, err error) {
	if evalSrc != "" {
		return evalSrc, "<eval>", nil
	}
	if len(args) == 1 {
		content, err := os.ReadFile(args[0])
		if err != nil {
			return "", "", fmt.Errorf("failed to read file %s: %w", args[0], err)
		}
		return string(content), args[0], nil
	}
	return "", "", fmt.Errorf("either provide a file path or use -e to pass inline source")
}
