package parser

import (
	"github.com/action-lang/actc/internal/ast"
	"github.com/action-lang/actc/internal/symtab"
	"github.com/action-lang/actc/internal/token"
	"github.com/action-lang/actc/internal/types"
)

// precedence orders the expression grammar's binary operators from
// lowest to highest, matching §4.3's ladder exactly: XOR, OR, AND,
// COMPARE, TERM, FACTOR, UNARY.
type precedence int

const (
	precNone precedence = iota
	precXor
	precOr
	precAnd
	precCompare
	precTerm
	precFactor
	precUnary
)

type prefixFn func(*Parser) (ast.Expr, error)
type infixFn func(*Parser, ast.Expr) (ast.Expr, error)

// exprRule is one entry of the Pratt dispatch table: the action to
// take when a token kind starts an expression (prefix), the action to
// take when it appears after a left operand (infix), and the
// precedence used to decide whether the climbing loop keeps consuming.
type exprRule struct {
	prefix prefixFn
	infix  infixFn
	prec   precedence
}

// exprRules is keyed by token.Kind exactly as the grammar's operator
// table is, rather than a cascade of type switches. It is filled in by
// init because the parse actions it names refer back to it.
var exprRules map[token.Kind]exprRule

func init() {
	exprRules = map[token.Kind]exprRule{
		token.OP_LPAREN: {prefix: parseGrouping},

		token.OP_PLUS:   {infix: parseBinary, prec: precTerm},
		token.OP_MINUS:  {prefix: parseUnary, infix: parseBinary, prec: precTerm},
		token.OP_TIMES:  {infix: parseBinary, prec: precFactor},
		token.OP_DIVIDE: {infix: parseBinary, prec: precFactor},
		token.MOD:       {infix: parseBinary, prec: precFactor},
		token.LSH:       {infix: parseBinary, prec: precFactor},
		token.RSH:       {infix: parseBinary, prec: precFactor},

		token.OP_EQ: {infix: parseBinary, prec: precCompare},
		token.OP_NE: {infix: parseBinary, prec: precCompare},
		token.OP_GT: {infix: parseBinary, prec: precCompare},
		token.OP_GE: {infix: parseBinary, prec: precCompare},
		token.OP_LT: {infix: parseBinary, prec: precCompare},
		token.OP_LE: {infix: parseBinary, prec: precCompare},

		token.AND:        {infix: parseBinary, prec: precAnd},
		token.OR:         {infix: parseBinary, prec: precOr},
		token.XOR:        {infix: parseBinary, prec: precXor},
		token.OP_BIT_AND: {infix: parseBinary, prec: precAnd},
		token.OP_BIT_OR:  {infix: parseBinary, prec: precOr},
		token.OP_BIT_XOR: {infix: parseBinary, prec: precXor},

		token.INT_LITERAL:  {prefix: parseNumericLiteral},
		token.HEX_LITERAL:  {prefix: parseNumericLiteral},
		token.CHAR_LITERAL: {prefix: parseNumericLiteral},
		token.IDENTIFIER:   {prefix: parseIdentifierExpr},
		token.OP_AT:        {prefix: parseIdentifierExpr},
	}
}

// tokenToOp maps an operator token to the ast.Op it builds; kept
// separate from exprRules since several tokens (AND/OR vs BIT_AND/
// BIT_OR) share a parse action but differ only in which ast.Op results.
var tokenToOp = map[token.Kind]ast.Op{
	token.OP_PLUS: ast.ADD, token.OP_MINUS: ast.SUB,
	token.OP_TIMES: ast.MUL, token.OP_DIVIDE: ast.DIV, token.MOD: ast.MOD,
	token.LSH: ast.LSH, token.RSH: ast.RSH,
	token.OP_EQ: ast.EQ, token.OP_NE: ast.NE,
	token.OP_GT: ast.GT, token.OP_GE: ast.GE, token.OP_LT: ast.LT, token.OP_LE: ast.LE,
	token.AND: ast.AND, token.OR: ast.OR, token.XOR: ast.XOR,
	token.OP_BIT_AND: ast.BIT_AND, token.OP_BIT_OR: ast.BIT_OR, token.OP_BIT_XOR: ast.BIT_XOR,
}

// parseExpr parses a full expression at the lowest precedence,
// accepting a top-level relational or logical operator. Conditional
// contexts (IF, WHILE, UNTIL, DO-UNTIL) reach it through parseCondExpr;
// RETURN(expr) and DEVPRINT call it directly.
func (p *Parser) parseExpr() (ast.Expr, error) {
	return p.parsePrecedence(precXor)
}

// parseCondExpr is parseExpr under another name, used at call sites
// that accept any scalar expression as a condition — kept distinct
// from parseArithExpr so the grammar's intent reads at the call site.
func (p *Parser) parseCondExpr() (ast.Expr, error) {
	return p.parseExpr()
}

// parseArithExpr parses an expression and rejects one whose top-level
// operator is relational or logical, for contexts that require a pure
// arithmetic value: assignment right-hand sides, array indices, call
// arguments, and FOR bounds.
func (p *Parser) parseArithExpr() (ast.Expr, error) {
	pos := p.cur().Position
	e, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if be, ok := e.(*ast.BinaryExpr); ok && be.Op.IsConditional() {
		return nil, p.errorf(pos, "relational or logical expression not allowed here")
	}
	return e, nil
}

// parsePrecedence is the Pratt driver: it invokes the prefix action for
// the current token, then repeatedly consumes an infix operator whose
// table precedence is at least prec.
func (p *Parser) parsePrecedence(prec precedence) (ast.Expr, error) {
	rule, ok := exprRules[p.cur().Kind]
	if !ok || rule.prefix == nil {
		return nil, p.errorf(p.cur().Position, "unexpected token %s in expression", p.cur().Kind)
	}
	left, err := rule.prefix(p)
	if err != nil {
		return nil, err
	}
	for {
		rule, ok := exprRules[p.cur().Kind]
		if !ok || rule.infix == nil || rule.prec < prec {
			break
		}
		left, err = rule.infix(p, left)
		if err != nil {
			return nil, err
		}
	}
	return left, nil
}

func parseGrouping(p *Parser) (ast.Expr, error) {
	p.advance() // (
	expr, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if _, err := p.expectKind(token.OP_RPAREN); err != nil {
		return nil, err
	}
	return expr, nil
}

func parseUnary(p *Parser) (ast.Expr, error) {
	opTok := p.cur()
	p.advance()
	operand, err := p.parsePrecedence(precUnary)
	if err != nil {
		return nil, err
	}
	return &ast.UnaryExpr{Op: ast.SUB, Operand: operand, Pos: opTok.Position}, nil
}

func parseBinary(p *Parser, left ast.Expr) (ast.Expr, error) {
	opTok := p.cur()
	rule := exprRules[opTok.Kind]
	p.advance()
	right, err := p.parsePrecedence(rule.prec + 1)
	if err != nil {
		return nil, err
	}
	op, ok := tokenToOp[opTok.Kind]
	if !ok {
		return nil, p.errorf(opTok.Position, "unknown binary operator %s", opTok.Kind)
	}
	return ast.NewBinaryExpr(op, left, right, opTok.Position), nil
}

func parseNumericLiteral(p *Parser) (ast.Expr, error) {
	tok := p.cur()
	v, err := tok.IntValue()
	if err != nil {
		return nil, p.errorf(tok.Position, "%v", err)
	}
	if v < -65535 || v > 65535 {
		return nil, p.errorf(tok.Position, "numeric literal %d out of range", v)
	}
	p.advance()
	return &ast.NumericalConst{Value: v, Pos: tok.Position}, nil
}

// parseIdentifierExpr handles every identifier-led expression form:
// `@ident` (Reference), `ident^` (Dereference), `ident(index)` (array
// access or, when ident names a routine, a call), `ident.field`
// (FieldAccess), and a bare variable reference.
func parseIdentifierExpr(p *Parser) (ast.Expr, error) {
	pos := p.cur().Position
	isReference := false
	if p.cur().Kind == token.OP_AT {
		isReference = true
		p.advance()
	}
	nameTok, err := p.expectKind(token.IDENTIFIER)
	if err != nil {
		return nil, err
	}
	entry, _, ok := p.sym.Find(nameTok.Value)
	if !ok {
		return nil, p.errorf(pos, "undefined identifier %q", nameTok.Value)
	}

	switch entry.Kind {
	case symtab.ROUTINE:
		if isReference {
			return nil, p.errorf(pos, "cannot take the address of routine %q", nameTok.Value)
		}
		// parseRoutineCall consumes the routine's name itself, so step
		// back onto the identifier expectKind just consumed.
		p.idx--
		return p.parseRoutineCall(nameTok.Value, entry.Node.(*ast.Routine))
	case symtab.VAR:
		decl := entry.Node.(*ast.VarDecl)
		varNode := &ast.Var{Name: nameTok.Value, Type: decl.Type, Decl: decl, Pos: pos}

		if p.cur().Kind == token.OP_CARET {
			p.advance()
			if _, ok := decl.Type.(*types.PointerType); !ok {
				return nil, p.errorf(pos, "%q is not a pointer", nameTok.Value)
			}
			return &ast.Dereference{Target: varNode, Pos: pos}, nil
		}
		if isReference {
			return &ast.Reference{Target: varNode, Pos: pos}, nil
		}
		if _, ok := decl.Type.(*types.ArrayType); ok {
			if p.cur().Kind == token.OP_LPAREN {
				p.advance()
				idx, err := p.parseArithExpr()
				if err != nil {
					return nil, err
				}
				if _, err := p.expectKind(token.OP_RPAREN); err != nil {
					return nil, err
				}
				return &ast.ArrayAccess{Target: varNode, Index: idx, Pos: pos}, nil
			}
			return &ast.Reference{Target: varNode, Pos: pos}, nil
		}
		if p.cur().Kind == token.OP_DOT {
			rt, ok := decl.Type.(*types.RecordType)
			if !ok {
				return nil, p.errorf(pos, "%q is not a record", nameTok.Value)
			}
			p.advance()
			fieldTok, err := p.expectKind(token.IDENTIFIER)
			if err != nil {
				return nil, err
			}
			if _, ok := rt.Field(fieldTok.Value); !ok {
				return nil, p.errorf(fieldTok.Position, "record %s has no field %q", rt.Name, fieldTok.Value)
			}
			return &ast.FieldAccess{Target: varNode, Field: fieldTok.Value, Pos: pos}, nil
		}
		return varNode, nil
	default:
		return nil, p.errorf(pos, "%q cannot be used in an expression", nameTok.Value)
	}
}
