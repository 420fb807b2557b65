package symtab

import (
	"testing"

	"github.com/action-lang/actc/internal/ast"
)

func TestAddAndFindCurrentScope(t *testing.T) {
	root := New()
	decl := &ast.VarDecl{Name: "x"}
	if err := root.Add("x", VAR, decl); err != nil {
		t.Fatalf("Add: %v", err)
	}
	entry, depth, ok := root.Find("x")
	if !ok {
		t.Fatalf("Find(x) not found")
	}
	if depth != 0 {
		t.Fatalf("depth = %d, want 0 for current scope", depth)
	}
	if entry.Node != decl {
		t.Fatalf("Find returned wrong node")
	}
}

func TestDuplicateDeclarationRejected(t *testing.T) {
	root := New()
	root.Add("x", VAR, &ast.VarDecl{Name: "x"})
	if err := root.Add("x", VAR, &ast.VarDecl{Name: "x"}); err == nil {
		t.Fatalf("expected duplicate declaration error")
	}
}

func TestFindWalksParentChainWithIncreasingDepth(t *testing.T) {
	root := New()
	root.Add("g", VAR, &ast.VarDecl{Name: "g"})
	child := OpenScope(root)
	child.Add("l", VAR, &ast.VarDecl{Name: "l"})

	if _, depth, ok := child.Find("l"); !ok || depth != 0 {
		t.Fatalf("Find(l) depth = %d ok=%v, want depth 0", depth, ok)
	}
	if _, depth, ok := child.Find("g"); !ok || depth != 1 {
		t.Fatalf("Find(g) depth = %d ok=%v, want depth 1", depth, ok)
	}
	if _, _, ok := child.Find("missing"); ok {
		t.Fatalf("Find(missing) should fail")
	}
}

func TestCloseScopeReturnsParent(t *testing.T) {
	root := New()
	child := OpenScope(root)
	if child.CloseScope() != root {
		t.Fatalf("CloseScope() did not return the parent scope")
	}
}

func TestLastRoutineFoundFromNestedScope(t *testing.T) {
	root := New()
	r := &ast.Routine{Name: "MAIN"}
	root.Add("MAIN", ROUTINE, r)
	child := OpenScope(root)

	got, ok := child.LastRoutine()
	if !ok || got != r {
		t.Fatalf("LastRoutine() from child scope = %v, %v, want %v, true", got, ok, r)
	}
}

func TestNamesPreservesInsertionOrder(t *testing.T) {
	root := New()
	root.Add("b", VAR, &ast.VarDecl{Name: "b"})
	root.Add("a", VAR, &ast.VarDecl{Name: "a"})
	names := root.Names()
	if len(names) != 2 || names[0] != "b" || names[1] != "a" {
		t.Fatalf("Names() = %v, want [b a] in insertion order", names)
	}
}
