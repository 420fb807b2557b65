package bytecode

import (
	"testing"

	"github.com/gkampitakis/go-snaps/snaps"

	"github.com/action-lang/actc/internal/ast"
	"github.com/action-lang/actc/internal/types"
)

// TestTextSnapshot pins the disassembly listing of worked example 1's
// global scalar layout against a stored snapshot, the way the teacher
// snapshots its fixture output with go-snaps.
func TestTextSnapshot(t *testing.T) {
	decls := []ast.Decl{
		&ast.VarDecl{Name: "x", Type: types.BYTE},
		&ast.VarDecl{Name: "y", Type: types.CHAR, Init: &ast.InitOpts{Values: []int{'a'}}},
		&ast.VarDecl{Name: "z", Type: types.INT, Init: &ast.InitOpts{Values: []int{0x1234}}},
		&ast.VarDecl{Name: "a", Type: types.CARD},
	}
	prog := buildProgram(t, decls)

	img, err := NewEmitter().Emit(prog)
	if err != nil {
		t.Fatalf("Emit: %v", err)
	}

	snaps.MatchSnapshot(t, Text(img))
}
