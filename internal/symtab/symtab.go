// Package symtab implements the nested-scope symbol table shared by the
// parser and bytecode emitter: a tree of scopes, each mapping an
// identifier to an Entry, with lookup walking up the parent chain.
package symtab

import (
	"fmt"

	"github.com/action-lang/actc/internal/ast"
)

// EntryKind classifies what a symbol-table entry names.
type EntryKind int

const (
	VAR EntryKind = iota
	RECORD
	ROUTINE
)

func (k EntryKind) String() string {
	switch k {
	case VAR:
		return "VAR"
	case RECORD:
		return "RECORD"
	case ROUTINE:
		return "ROUTINE"
	default:
		return "EntryKind(?)"
	}
}

// Entry is one symbol-table binding: a name, its kind, and the AST
// declaration node it refers to. The table holds a reference, not
// ownership; the node's lifetime is the arena owning the whole AST.
type Entry struct {
	Name string
	Kind EntryKind
	Node ast.Node
}

// Table is one lexical scope. The program-global scope has a nil Parent.
type Table struct {
	Parent  *Table
	entries map[string]*Entry
	order   []string // insertion order, for deterministic global layout

	// lastRoutine tracks the most recently fully-declared routine at
	// this scope, used by the VM host to find the program entry point.
	lastRoutine *ast.Routine
}

// New creates a fresh root scope with no parent.
func New() *Table {
	return &Table{entries: make(map[string]*Entry)}
}

// OpenScope creates and returns a new child scope of parent. Routine
// scopes are opened at the parameter list's opening parenthesis.
func OpenScope(parent *Table) *Table {
	return &Table{Parent: parent, entries: make(map[string]*Entry)}
}

// CloseScope returns to the parent scope, restoring parser state after
// a routine body has been fully parsed. It is the caller's
// responsibility to discard the child scope reference afterward.
func (t *Table) CloseScope() *Table {
	return t.Parent
}

// Add introduces name into the current scope. It is an error to
// re-declare a name already present in this exact scope.
func (t *Table) Add(name string, kind EntryKind, node ast.Node) error {
	if _, exists := t.entries[name]; exists {
		return fmt.Errorf("duplicate declaration of %q in this scope", name)
	}
	entry := &Entry{Name: name, Kind: kind, Node: node}
	t.entries[name] = entry
	t.order = append(t.order, name)
	if kind == ROUTINE {
		if r, ok := node.(*ast.Routine); ok {
			t.lastRoutine = r
		}
	}
	return nil
}

// Find looks up name starting at t and walking up the parent chain.
// depth 0 means t itself defined the name; depth N means it was found
// N scopes up. The second return value is false if not found anywhere.
func (t *Table) Find(name string) (*Entry, int, bool) {
	depth := 0
	for scope := t; scope != nil; scope = scope.Parent {
		if e, ok := scope.entries[name]; ok {
			return e, depth, true
		}
		depth++
	}
	return nil, 0, false
}

// LastRoutine returns the most recently fully declared routine in the
// outermost (global) scope, used by the VM host to locate the entry
// point. It implements ast.SymbolTable.
func (t *Table) LastRoutine() (*ast.Routine, bool) {
	root := t
	for root.Parent != nil {
		root = root.Parent
	}
	if root.lastRoutine == nil {
		return nil, false
	}
	return root.lastRoutine, true
}

// Names returns the names declared directly in this scope, in
// declaration order.
func (t *Table) Names() []string {
	out := make([]string, len(t.order))
	copy(out, t.order)
	return out
}

// Depth returns the number of ancestor scopes above t (0 for the root).
func (t *Table) Depth() int {
	d := 0
	for s := t.Parent; s != nil; s = s.Parent {
		d++
	}
	return d
}
