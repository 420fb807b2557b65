package cmd

import (
	"bytes"
	"io"
	"os"
	"strings"
	"testing"
)

// captureStdout redirects os.Stdout for the duration of fn and returns
// everything written to it, for subcommands that print straight to
// os.Stdout rather than taking an io.Writer (matching how cobra
// RunE-style commands are wired in the teacher's own CLI).
func captureStdout(t *testing.T, fn func()) string {
	t.Helper()
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("os.Pipe: %v", err)
	}
	saved := os.Stdout
	os.Stdout = w
	defer func() { os.Stdout = saved }()

	fn()

	w.Close()
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, r); err != nil {
		t.Fatalf("io.Copy: %v", err)
	}
	return buf.String()
}

func TestRunProgramExecutesInlineSource(t *testing.T) {
	runEval = `
PROC show(CARD n)
DEVPRINT(n)
RETURN
PROC main()
show(9)
RETURN
`
	runDumpAST = false
	runTraceJSON = false
	defer func() { runEval = "" }()

	out := captureStdout(t, func() {
		if err := runProgram(runCmd, nil); err != nil {
			t.Fatalf("runProgram: %v", err)
		}
	})
	if strings.TrimSpace(out) != "9" {
		t.Fatalf("runProgram stdout = %q, want \"9\"", out)
	}
}

func TestRunParseReportsSuccess(t *testing.T) {
	parseEval = `
INT i
PROC main()
i=1
RETURN
`
	parseDumpAST = false
	defer func() { parseEval = "" }()

	out := captureStdout(t, func() {
		if err := runParse(parseCmd, nil); err != nil {
			t.Fatalf("runParse: %v", err)
		}
	})
	if strings.TrimSpace(out) != "parsed OK" {
		t.Fatalf("runParse stdout = %q, want \"parsed OK\"", out)
	}
}

func TestRunParseReportsParseError(t *testing.T) {
	parseEval = `
PROC main()
x=1
RETURN
`
	defer func() { parseEval = "" }()

	err := runParse(parseCmd, nil)
	if err == nil {
		t.Fatalf("runParse: expected an error for an undefined identifier")
	}
}

func TestRunDisasmListsInstructions(t *testing.T) {
	disasmEval = `
PROC main()
RETURN
`
	defer func() { disasmEval = "" }()

	out := captureStdout(t, func() {
		if err := runDisasm(disasmCmd, nil); err != nil {
			t.Fatalf("runDisasm: %v", err)
		}
	})
	if !strings.Contains(out, "RETURN") {
		t.Fatalf("disasm output missing RETURN mnemonic:\n%s", out)
	}
}

func TestRunSymbolsListsRoutinesInNaturalOrder(t *testing.T) {
	symbolsEval = `
PROC x2()
RETURN
PROC x10()
RETURN
PROC main()
x2()
x10()
RETURN
`
	defer func() { symbolsEval = "" }()

	out := captureStdout(t, func() {
		if err := runSymbols(symbolsCmd, nil); err != nil {
			t.Fatalf("runSymbols: %v", err)
		}
	})
	i2 := strings.Index(out, "x2")
	i10 := strings.Index(out, "x10")
	if i2 == -1 || i10 == -1 || i2 > i10 {
		t.Fatalf("symbols output not in natural order (x2 before x10):\n%s", out)
	}
}
