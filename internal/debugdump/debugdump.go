// Package debugdump pretty-prints the parser's output for --dump-ast
// (Program; SymbolTable has no CLI flag), using kr/pretty exactly as
// the teacher's own test suite does when asserting on nested
// structures: the same tool, aimed at a human reading a terminal
// instead of a test failure.
package debugdump

import (
	"github.com/kr/pretty"

	"github.com/action-lang/actc/internal/ast"
	"github.com/action-lang/actc/internal/symtab"
)

// Program renders prog's module/declaration/statement tree.
func Program(prog *ast.Program) string {
	return pretty.Sprint(prog)
}

// SymbolTable renders tab's scope chain, starting from the root scope
// pretty was handed.
func SymbolTable(tab *symtab.Table) string {
	return pretty.Sprint(tab)
}

// Diff renders the field-by-field differences between two values of
// the same type, for regression tooling that wants to explain why a
// re-parsed AST no longer matches a saved one instead of just saying
// they differ.
func Diff(want, got any) string {
	diffs := pretty.Diff(want, got)
	if len(diffs) == 0 {
		return ""
	}
	out := ""
	for i, d := range diffs {
		if i > 0 {
			out += "\n"
		}
		out += d
	}
	return out
}
