package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/action-lang/actc/internal/bytecode"
	"github.com/action-lang/actc/internal/config"
	"github.com/action-lang/actc/internal/debugdump"
	"github.com/action-lang/actc/internal/diag"
	"github.com/action-lang/actc/internal/lexer"
	"github.com/action-lang/actc/internal/parser"
	"github.com/action-lang/actc/internal/trace"
	"github.com/action-lang/actc/internal/vm"
)

var (
	runEval       string
	runDumpAST    bool
	runTraceJSON  bool
	runTracePretty bool
)

var runCmd = &cobra.Command{
	Use:   "run [file]",
	Short: "Compile and run an Action! program",
	Long: `Compile an Action! program to a bytecode image and execute it on
the VM, from its single entry routine to completion.

Examples:
  actc run prog.act
  actc run -e "PROC main() DEVPRINT(1) RETURN"
  actc run --trace-json prog.act`,
	Args: cobra.MaximumNArgs(1),
	RunE: runProgram,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVarP(&runEval, "eval", "e", "", "run inline source instead of reading from file")
	runCmd.Flags().BoolVar(&runDumpAST, "dump-ast", false, "pretty-print the parsed AST before running")
	runCmd.Flags().BoolVar(&runTraceJSON, "trace-json", false, "emit a JSON execution trace, one line per instruction")
	runCmd.Flags().BoolVar(&runTracePretty, "pretty", false, "pretty-print trace-json lines (no effect unless --trace-json or the config's traceJSON is set)")
}

func runProgram(cmd *cobra.Command, args []string) error {
	input, filename, err := readInput(runEval, args)
	if err != nil {
		return err
	}

	cfg := config.Defaults()
	if path, _ := cmd.Flags().GetString("config"); path != "" {
		loaded, err := config.Load(path)
		if err != nil {
			return err
		}
		cfg = *loaded
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

	if runDumpAST {
		fmt.Println(debugdump.Program(prog))
	}

	img, err := bytecode.NewEmitter().Emit(prog)
	if err != nil {
		return fmt.Errorf("bytecode emission failed: %w", err)
	}

	machine := vm.New(img, os.Stdout)

	useTrace := runTraceJSON || cfg.TraceJSON
	var traceFile *os.File
	if useTrace {
		out := os.Stderr
		dest := cfg.TraceOutput
		if dest != "" {
			f, err := os.Create(dest)
			if err != nil {
				return fmt.Errorf("failed to create trace output %s: %w", dest, err)
			}
			traceFile = f
			out = f
		}
		w := trace.New(out, runTracePretty)
		machine.SetTracer(w)
		if traceFile != nil {
			defer traceFile.Close()
		}
	}

	if err := machine.Run(); err != nil {
		if fault, ok := err.(*vm.Fault); ok && fault.Trace != nil {
			fmt.Fprintln(os.Stderr, fault.Trace.String())
		}
		return fmt.Errorf("runtime error: %w", err)
	}

	return nil
}
