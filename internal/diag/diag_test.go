package diag

import (
	"strings"
	"testing"

	"github.com/action-lang/actc/internal/token"
)

func TestFormatPointsCaretAtColumn(t *testing.T) {
	src := "BYTE x\nINT y = z\n"
	e := New(token.Position{Line: 2, Column: 9}, "undeclared identifier z", src, "prog.act")
	out := e.Format(false)

	lines := strings.Split(out, "\n")
	if !strings.Contains(lines[0], "prog.act:2:9") {
		t.Fatalf("header missing position: %q", lines[0])
	}
	if !strings.Contains(lines[1], "INT y = z") {
		t.Fatalf("source line missing: %q", lines[1])
	}
	caretLine := lines[2]
	if strings.Index(caretLine, "^") != strings.Index(lines[1], "z") {
		t.Fatalf("caret not aligned with offending column: %q vs %q", caretLine, lines[1])
	}
}

func TestFormatWithoutFileOmitsHeaderFile(t *testing.T) {
	e := New(token.Position{Line: 1, Column: 1}, "boom", "", "")
	out := e.Format(false)
	if !strings.HasPrefix(out, "Error at line 1:1") {
		t.Fatalf("expected file-less header, got %q", out)
	}
}

func TestFormatAllSingleVsMultiple(t *testing.T) {
	single := []*Error{New(token.Position{Line: 1, Column: 1}, "boom", "", "prog.act")}
	if out := FormatAll(single, false); strings.Contains(out, "compilation failed") {
		t.Fatalf("single error should not carry a batch header: %q", out)
	}

	multi := []*Error{
		New(token.Position{Line: 1, Column: 1}, "first", "", "prog.act"),
		New(token.Position{Line: 2, Column: 1}, "second", "", "prog.act"),
	}
	out := FormatAll(multi, false)
	if !strings.Contains(out, "compilation failed with 2 error(s)") {
		t.Fatalf("missing batch header: %q", out)
	}
	if !strings.Contains(out, "[Error 1 of 2]") || !strings.Contains(out, "[Error 2 of 2]") {
		t.Fatalf("missing per-error numbering: %q", out)
	}
}

func TestFormatWithContextFallsBackWhenSourceMissing(t *testing.T) {
	e := New(token.Position{Line: 1, Column: 1}, "boom", "", "")
	withCtx := e.FormatWithContext(2, false)
	plain := e.Format(false)
	if withCtx != plain {
		t.Fatalf("expected fallback to Format() when source is empty")
	}
}
