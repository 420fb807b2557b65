package ast

import (
	"testing"

	"github.com/action-lang/actc/internal/token"
	"github.com/action-lang/actc/internal/types"
)

func TestNumericalConstResultTypeByMagnitude(t *testing.T) {
	cases := []struct {
		val  int
		want types.Fundamental
	}{
		{0, types.BYTE},
		{255, types.BYTE},
		{256, types.INT},
		{32767, types.INT},
		{32768, types.CARD},
		{-1, types.CARD},
	}
	for _, c := range cases {
		n := &NumericalConst{Value: c.val}
		if got := n.ResultType(); got != c.want {
			t.Errorf("NumericalConst{%d}.ResultType() = %s, want %s", c.val, got, c.want)
		}
	}
}

func TestNewBinaryExprConditionalAlwaysByte(t *testing.T) {
	left := &NumericalConst{Value: 100000} // would be CARD on its own
	right := &NumericalConst{Value: 1}
	b := NewBinaryExpr(GT, left, right, token.Position{})
	if b.ResultType() != types.BYTE {
		t.Fatalf("relational result = %s, want BYTE", b.ResultType())
	}
}

func TestNewBinaryExprMulDivModAlwaysInt(t *testing.T) {
	left := &NumericalConst{Value: 5}
	right := &NumericalConst{Value: 40000} // CARD
	for _, op := range []Op{MUL, DIV, MOD} {
		b := NewBinaryExpr(op, left, right, token.Position{})
		if b.ResultType() != types.INT {
			t.Fatalf("%s result = %s, want INT", op, b.ResultType())
		}
	}
}

func TestNewBinaryExprAddPromotesToWiderOperand(t *testing.T) {
	left := &NumericalConst{Value: 10}    // BYTE
	right := &NumericalConst{Value: 1000} // INT
	b := NewBinaryExpr(ADD, left, right, token.Position{})
	if b.ResultType() != types.INT {
		t.Fatalf("ADD result = %s, want INT", b.ResultType())
	}
}

func TestUnaryMinusAlwaysInt(t *testing.T) {
	u := &UnaryExpr{Op: SUB, Operand: &NumericalConst{Value: 5}}
	if u.ResultType() != types.INT {
		t.Fatalf("unary minus result = %s, want INT", u.ResultType())
	}
}

func TestVarScopeString(t *testing.T) {
	cases := map[VarScope]string{ScopeGlobal: "GLOBAL", ScopeParam: "PARAM", ScopeLocal: "LOCAL"}
	for scope, want := range cases {
		if got := scope.String(); got != want {
			t.Errorf("%d.String() = %q, want %q", scope, got, want)
		}
	}
}

func TestStructDeclRecordType(t *testing.T) {
	sd := &StructDecl{
		Name: "POINT",
		Fields: []*VarDecl{
			{Name: "X", Type: types.INT},
			{Name: "Y", Type: types.INT},
		},
	}
	rt := sd.RecordType()
	if rt.Name != "POINT" || rt.Size() != 4 {
		t.Fatalf("RecordType() = %+v, want POINT sized 4", rt)
	}
}
