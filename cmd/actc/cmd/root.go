package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	// Version information (set by build flags)
	Version   = "0.1.0-dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

var rootCmd = &cobra.Command{
	Use:   "actc",
	Short: "Action! compiler and virtual machine",
	Long: `actc is a Go implementation of the Action! language toolchain:
lexer, parser/type-checker, bytecode emitter, and a stack-based VM
over a 64KiB memory model.

It ports Action!'s syntax and semantics faithfully, including its
fundamental type set (BYTE, CHAR, INT, CARD), numeric promotion rules,
and scope/declaration conventions.`,
	Version: Version,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf(`{{with .Name}}{{printf "%%s " .}}{{end}}{{printf "version %%s" .Version}}
Commit: %s
Built:  %s
`, GitCommit, BuildDate))

	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().String("config", "", "path to a YAML config (run applies its trace settings; layout fields are only validated)")
}

func exitWithError(msg string, args ...any) {
	fmt.Fprintf(os.Stderr, "Error: "+msg+"\n", args...)
	os.Exit(1)
}
