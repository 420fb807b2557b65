package parser_test

import (
	"bytes"
	"strings"
	"testing"

	"github.com/action-lang/actc/internal/bytecode"
	"github.com/action-lang/actc/internal/lexer"
	"github.com/action-lang/actc/internal/parser"
	"github.com/action-lang/actc/internal/vm"
)

func mustParse(t *testing.T, src string) *parser.Parser {
	t.Helper()
	toks := lexer.New(src).All()
	return parser.New(toks, parser.WithSource(src))
}

// runSource lexes, parses, emits, and runs src end to end, mirroring
// the pattern package vm's own tests use for hand-built ASTs but
// exercised here through the real front end.
func runSource(t *testing.T, src string) (*vm.VM, *bytes.Buffer) {
	t.Helper()
	p := mustParse(t, src)
	prog, err := p.ParseProgram()
	if err != nil {
		t.Fatalf("ParseProgram: %v", err)
	}
	img, err := bytecode.NewEmitter().Emit(prog)
	if err != nil {
		t.Fatalf("Emit: %v", err)
	}
	var out bytes.Buffer
	machine := vm.New(img, &out)
	if err := machine.Run(); err != nil {
		t.Fatalf("Run: %v", err)
	}
	return machine, &out
}

// TestArithmeticPromotionFromSource pins worked scenario 3 end to end,
// parsed from source text rather than built by hand.
func TestArithmeticPromotionFromSource(t *testing.T) {
	src := `
BYTE b=[5]
INT i
PROC main()
i=b+1000
RETURN
`
	machine, _ := runSource(t, src)
	// i is the second global declared: b occupies 1 byte at address 0.
	if got := machine.ReadGlobal(1, 2); got != 1005 {
		t.Fatalf("i = %d, want 1005", got)
	}
}

// TestRecordFieldAccessFromSource pins worked scenario 6: a record type
// declared with TYPE, a variable of that type, and independent field
// assignments.
func TestRecordFieldAccessFromSource(t *testing.T) {
	src := `
TYPE Point=[BYTE x,y]
Point p
PROC main()
p.x=3
p.y=4
RETURN
`
	machine, _ := runSource(t, src)
	if got := machine.ReadGlobal(0, 1); got != 3 {
		t.Fatalf("p.x = %d, want 3", got)
	}
	if got := machine.ReadGlobal(1, 1); got != 4 {
		t.Fatalf("p.y = %d, want 4", got)
	}
}

// TestWhileExitFromSource pins worked scenario 5 end to end.
func TestWhileExitFromSource(t *testing.T) {
	src := `
INT i
PROC main()
WHILE 1=1 DO
IF i=5 THEN
EXIT
FI
i=i+1
OD
RETURN
`
	machine, _ := runSource(t, src)
	if got := machine.ReadGlobal(0, 2); got != 5 {
		t.Fatalf("i = %d, want 5", got)
	}
}

// TestCallZeroPadsMissingArguments checks that a short argument list is
// accepted with a warning rather than an error, and is zero-padded.
func TestCallZeroPadsMissingArguments(t *testing.T) {
	src := `
PROC show(CARD n, CARD m)
DEVPRINT(n)
RETURN
PROC main()
show(1)
RETURN
`
	p := mustParse(t, src)
	if _, err := p.ParseProgram(); err != nil {
		t.Fatalf("ParseProgram: %v", err)
	}
	if len(p.Warnings()) != 1 {
		t.Fatalf("Warnings() = %v, want exactly one warning", p.Warnings())
	}
}

// TestCallTooManyArgumentsIsError checks that an over-long argument
// list is a hard parse error, not a warning.
func TestCallTooManyArgumentsIsError(t *testing.T) {
	src := `
PROC show(CARD n)
RETURN
PROC main()
show(1,2)
RETURN
`
	p := mustParse(t, src)
	if _, err := p.ParseProgram(); err == nil {
		t.Fatalf("ParseProgram: expected an error for too many call arguments")
	}
}

// TestArithmeticContextRejectsRelational checks that a relational
// operator at the top level of an assignment's value is rejected, per
// §4.3's arithmetic-expression restriction.
func TestArithmeticContextRejectsRelational(t *testing.T) {
	src := `
INT i
PROC main()
i=1=1
RETURN
`
	p := mustParse(t, src)
	if _, err := p.ParseProgram(); err == nil {
		t.Fatalf("ParseProgram: expected an error for a relational assignment value")
	}
}

// TestReturnValueInsideProcIsError checks that RETURN(expr) inside a
// PROC (a VOID routine) is rejected.
func TestReturnValueInsideProcIsError(t *testing.T) {
	src := `
PROC main()
RETURN(1)
`
	p := mustParse(t, src)
	if _, err := p.ParseProgram(); err == nil {
		t.Fatalf("ParseProgram: expected an error for RETURN(expr) inside a PROC")
	}
}

// TestBareReturnInsideFuncIsError checks the converse: a FUNC must
// RETURN a value.
func TestBareReturnInsideFuncIsError(t *testing.T) {
	src := `
BYTE FUNC answer()
RETURN
`
	p := mustParse(t, src)
	if _, err := p.ParseProgram(); err == nil {
		t.Fatalf("ParseProgram: expected an error for a bare RETURN inside a FUNC")
	}
}

// TestUndefinedIdentifierIsError checks that referencing an undeclared
// name anywhere aborts parsing with a located diagnostic.
func TestUndefinedIdentifierIsError(t *testing.T) {
	src := `
PROC main()
x=1
RETURN
`
	p := mustParse(t, src)
	if _, err := p.ParseProgram(); err == nil {
		t.Fatalf("ParseProgram: expected an error for an undefined identifier")
	}
}

// TestFuncCallAsExpression exercises a FUNC called from inside an
// expression, confirming the Pratt IDENTIFIER action routes to call
// parsing when the resolved entry is a ROUTINE.
func TestFuncCallAsExpression(t *testing.T) {
	src := `
BYTE result
BYTE FUNC answer()
RETURN(42)
PROC main()
result=answer()
RETURN
`
	machine, _ := runSource(t, src)
	if got := machine.ReadGlobal(0, 1); got != 42 {
		t.Fatalf("result = %d, want 42", got)
	}
}

// TestDevPrintFromSource exercises DEVPRINT parsed from source feeding
// a parameter straight to the VM's debug output sink.
func TestDevPrintFromSource(t *testing.T) {
	src := `
PROC show(CARD n)
DEVPRINT(n)
RETURN
PROC main()
show(7)
RETURN
`
	_, out := runSource(t, src)
	if strings.TrimSpace(out.String()) != "7" {
		t.Fatalf("DEVPRINT output = %q, want \"7\"", out.String())
	}
}
