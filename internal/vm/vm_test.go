package vm_test

import (
	"bytes"
	"strings"
	"testing"

	"github.com/action-lang/actc/internal/ast"
	"github.com/action-lang/actc/internal/bytecode"
	"github.com/action-lang/actc/internal/symtab"
	"github.com/action-lang/actc/internal/token"
	"github.com/action-lang/actc/internal/types"
	"github.com/action-lang/actc/internal/vm"
)

var token0 token.Position

// program wires a single-module *ast.Program out of globals and a main
// routine's statements, mirroring the pattern package bytecode's own
// tests use to exercise the emitter end to end.
func program(t *testing.T, decls []ast.Decl, stmts []ast.Statement) *ast.Program {
	t.Helper()
	st := symtab.New()
	main := &ast.Routine{Name: "main", ReturnType: types.VOID, Statements: stmts}
	if err := st.Add("main", symtab.ROUTINE, main); err != nil {
		t.Fatalf("add routine: %v", err)
	}
	m := &ast.Module{Decls: decls, Routines: []*ast.Routine{main}}
	return &ast.Program{Modules: []*ast.Module{m}, SymTab: st}
}

func run(t *testing.T, prog *ast.Program) (*vm.VM, *bytes.Buffer) {
	t.Helper()
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

// TestArithmeticPromotion pins worked scenario 3: BYTE b=5, INT i;
// main: i = b + 1000; RETURN leaves global i = 1005.
func TestArithmeticPromotion(t *testing.T) {
	bDecl := &ast.VarDecl{Name: "b", Type: types.BYTE, Init: &ast.InitOpts{Values: []int{5}}}
	iDecl := &ast.VarDecl{Name: "i", Type: types.INT}
	decls := []ast.Decl{bDecl, iDecl}

	stmts := []ast.Statement{
		&ast.Assign{
			Target: &ast.Var{Name: "i", Type: types.INT, Decl: iDecl},
			Value: ast.NewBinaryExpr(ast.ADD,
				&ast.Var{Name: "b", Type: types.BYTE, Decl: bDecl},
				&ast.NumericalConst{Value: 1000},
				token0,
			),
		},
		&ast.Return{},
	}

	prog := program(t, decls, stmts)
	machine, _ := run(t, prog)

	if got := machine.ReadGlobal(iDecl.Address, 2); got != 1005 {
		t.Fatalf("i = %d, want 1005", got)
	}
}

// TestProcedureCallAndDevPrint pins worked scenario 4: a PROC taking one
// CARD parameter that DEVPRINTs it, called with the constant 1.
func TestProcedureCallAndDevPrint(t *testing.T) {
	paramDecl := &ast.VarDecl{Name: "n", Type: types.CARD}
	printRoutine := &ast.Routine{
		Name:       "show",
		Params:     []*ast.VarDecl{paramDecl},
		ReturnType: types.VOID,
		Statements: []ast.Statement{
			&ast.DevPrint{Value: &ast.Var{Name: "n", Type: types.CARD, Decl: paramDecl}},
			&ast.Return{},
		},
	}

	mainStmts := []ast.Statement{
		&ast.CallStmt{Call: &ast.Call{
			Name:    "show",
			Args:    []ast.Expr{&ast.NumericalConst{Value: 1}},
			RetType: types.VOID,
			Routine: printRoutine,
		}},
		&ast.Return{},
	}

	st := symtab.New()
	main := &ast.Routine{Name: "main", ReturnType: types.VOID, Statements: mainStmts}
	if err := st.Add("show", symtab.ROUTINE, printRoutine); err != nil {
		t.Fatalf("add show: %v", err)
	}
	if err := st.Add("main", symtab.ROUTINE, main); err != nil {
		t.Fatalf("add main: %v", err)
	}
	m := &ast.Module{Routines: []*ast.Routine{printRoutine, main}}
	prog := &ast.Program{Modules: []*ast.Module{m}, SymTab: st}

	_, out := run(t, prog)
	if strings.TrimSpace(out.String()) != "1" {
		t.Fatalf("DEVPRINT output = %q, want \"1\"", out.String())
	}
}

// TestWhileExitLeavesCounterAtFive pins worked scenario 5: a WHILE loop
// counting i up from 0, EXITing once i reaches 5.
func TestWhileExitLeavesCounterAtFive(t *testing.T) {
	iDecl := &ast.VarDecl{Name: "i", Type: types.INT}
	decls := []ast.Decl{iDecl}
	iVar := &ast.Var{Name: "i", Type: types.INT, Decl: iDecl}

	whileBody := &ast.Do{
		Stmts: []ast.Statement{
			&ast.If{
				Conditionals: []ast.Conditional{{
					Cond:  ast.NewBinaryExpr(ast.EQ, iVar, &ast.NumericalConst{Value: 5}, token0),
					Stmts: []ast.Statement{&ast.Exit{}},
				}},
			},
			&ast.Assign{
				Target: iVar,
				Value:  ast.NewBinaryExpr(ast.ADD, iVar, &ast.NumericalConst{Value: 1}, token0),
			},
		},
	}
	stmts := []ast.Statement{
		&ast.While{
			Cond: ast.NewBinaryExpr(ast.EQ, &ast.NumericalConst{Value: 1}, &ast.NumericalConst{Value: 1}, token0),
			Body: whileBody,
		},
		&ast.Return{},
	}

	prog := program(t, decls, stmts)
	machine, _ := run(t, prog)

	if got := machine.ReadGlobal(iDecl.Address, 2); got != 5 {
		t.Fatalf("i = %d, want 5", got)
	}
}

// TestRecordFieldAccess pins worked scenario 6: a two-field BYTE record,
// writing distinct values into each field independently.
func TestRecordFieldAccess(t *testing.T) {
	rt := &types.RecordType{Name: "Point", Fields: []types.Field{
		{Name: "x", Type: types.BYTE},
		{Name: "y", Type: types.BYTE},
	}}
	pDecl := &ast.VarDecl{Name: "p", Type: rt}
	decls := []ast.Decl{pDecl}
	pVar := &ast.Var{Name: "p", Type: rt, Decl: pDecl}

	stmts := []ast.Statement{
		&ast.Assign{
			Target: &ast.FieldAccess{Target: pVar, Field: "x"},
			Value:  &ast.NumericalConst{Value: 3},
		},
		&ast.Assign{
			Target: &ast.FieldAccess{Target: pVar, Field: "y"},
			Value:  &ast.NumericalConst{Value: 4},
		},
		&ast.Return{},
	}

	prog := program(t, decls, stmts)
	machine, _ := run(t, prog)

	x := machine.ReadGlobal(pDecl.Address+rt.FieldOffset("x"), 1)
	y := machine.ReadGlobal(pDecl.Address+rt.FieldOffset("y"), 1)
	if x != 3 || y != 4 {
		t.Fatalf("p = {%d %d}, want {3 4}", x, y)
	}
}

// TestCallReturnBalance checks the universal call/return property: after
// a routine returning a BYTE returns, wsp is back to its pre-call value
// plus the return value's width, and fp is restored.
func TestCallReturnBalance(t *testing.T) {
	retRoutine := &ast.Routine{
		Name:       "answer",
		ReturnType: types.BYTE,
		Statements: []ast.Statement{
			&ast.Return{Value: &ast.NumericalConst{Value: 42}},
		},
	}
	resultDecl := &ast.VarDecl{Name: "result", Type: types.BYTE}
	mainStmts := []ast.Statement{
		&ast.Assign{
			Target: &ast.Var{Name: "result", Type: types.BYTE, Decl: resultDecl},
			Value: &ast.Call{
				Name: "answer", RetType: types.BYTE, Routine: retRoutine,
			},
		},
		&ast.Return{},
	}

	st := symtab.New()
	main := &ast.Routine{Name: "main", ReturnType: types.VOID, Statements: mainStmts}
	if err := st.Add("answer", symtab.ROUTINE, retRoutine); err != nil {
		t.Fatalf("add answer: %v", err)
	}
	if err := st.Add("main", symtab.ROUTINE, main); err != nil {
		t.Fatalf("add main: %v", err)
	}
	m := &ast.Module{Decls: []ast.Decl{resultDecl}, Routines: []*ast.Routine{retRoutine, main}}
	prog := &ast.Program{Modules: []*ast.Module{m}, SymTab: st}

	machine, _ := run(t, prog)
	if got := machine.ReadGlobal(resultDecl.Address, 1); got != 42 {
		t.Fatalf("result = %d, want 42", got)
	}
	if machine.WSP() != machine.FP() {
		t.Fatalf("wsp = %#x, fp = %#x: entry frame not balanced after halt", machine.WSP(), machine.FP())
	}
}

// TestPointerDereferenceUsesPointeeWidth exercises the POINTER address
// mode fix: writing through an INT pointer must move 2 bytes at the
// pointee, not the CARD width of the pointer variable itself.
func TestPointerDereferenceUsesPointeeWidth(t *testing.T) {
	targetDecl := &ast.VarDecl{Name: "target", Type: types.INT}
	ptrDecl := &ast.VarDecl{Name: "p", Type: &types.PointerType{Elem: types.INT}}
	decls := []ast.Decl{targetDecl, ptrDecl}

	stmts := []ast.Statement{
		&ast.Assign{
			Target: &ast.Var{Name: "p", Type: ptrDecl.Type, Decl: ptrDecl},
			Value:  &ast.Reference{Target: &ast.Var{Name: "target", Type: types.INT, Decl: targetDecl}},
		},
		&ast.Assign{
			Target: &ast.Dereference{Target: &ast.Var{Name: "p", Type: ptrDecl.Type, Decl: ptrDecl}},
			Value:  &ast.NumericalConst{Value: 300},
		},
		&ast.Return{},
	}

	prog := program(t, decls, stmts)
	machine, _ := run(t, prog)

	if got := machine.ReadGlobal(targetDecl.Address, 2); got != 300 {
		t.Fatalf("target = %d, want 300 (pointer store used wrong width)", got)
	}
}

// TestPartitionOf checks the memory-layout classifier used by debug
// tooling against each documented boundary.
func TestPartitionOf(t *testing.T) {
	cases := []struct {
		addr int
		want vm.Partition
	}{
		{0x0000, vm.PartitionReserved},
		{0x07FF, vm.PartitionReserved},
		{0x0800, vm.PartitionWorkStack},
		{0x1BFF, vm.PartitionWorkStack},
		{0x1C00, vm.PartitionParamStack},
		{0x1FFF, vm.PartitionParamStack},
		{0x2000, vm.PartitionProgram},
		{0xBFFF, vm.PartitionProgram},
		{0xC000, vm.PartitionROM},
		{0xFFFF, vm.PartitionROM},
	}
	for _, c := range cases {
		if got := vm.PartitionOf(c.addr); got != c.want {
			t.Errorf("PartitionOf(%#04x) = %s, want %s", c.addr, got, c.want)
		}
	}
}

