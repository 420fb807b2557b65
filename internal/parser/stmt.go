package parser

import (
	"github.com/action-lang/actc/internal/ast"
	"github.com/action-lang/actc/internal/symtab"
	"github.com/action-lang/actc/internal/token"
	"github.com/action-lang/actc/internal/types"
)

// parseStmtList parses statements until stop reports true, never
// consuming the stopping token itself.
func (p *Parser) parseStmtList(stop func() bool) ([]ast.Statement, error) {
	var stmts []ast.Statement
	for !stop() {
		s, err := p.parseStmt()
		if err != nil {
			return nil, err
		}
		stmts = append(stmts, s)
	}
	return stmts, nil
}

func (p *Parser) parseStmt() (ast.Statement, error) {
	switch p.cur().Kind {
	case token.IF:
		return p.parseIf()
	case token.DO:
		return p.parseDo()
	case token.WHILE:
		return p.parseWhile()
	case token.FOR:
		return p.parseFor()
	case token.EXIT:
		pos := p.cur().Position
		p.advance()
		return &ast.Exit{Pos: pos}, nil
	case token.RETURN:
		return p.parseReturn()
	case token.DEVPRINT:
		return p.parseDevPrint()
	case token.OP_LBRACK:
		return p.parseCodeBlock()
	case token.IDENTIFIER:
		return p.parseIdentStmt()
	default:
		return nil, p.errorf(p.cur().Position, "unexpected token %s in statement", p.cur().Kind)
	}
}

// parseIdentStmt disambiguates IDENT in statement position: a ROUTINE
// entry is a call, a VAR entry is the target of an assignment.
func (p *Parser) parseIdentStmt() (ast.Statement, error) {
	pos := p.cur().Position
	name := p.cur().Value
	entry, _, ok := p.sym.Find(name)
	if !ok {
		return nil, p.errorf(pos, "undefined identifier %q", name)
	}
	switch entry.Kind {
	case symtab.ROUTINE:
		call, err := p.parseRoutineCall(name, entry.Node.(*ast.Routine))
		if err != nil {
			return nil, err
		}
		return &ast.CallStmt{Call: call, Pos: pos}, nil
	case symtab.VAR:
		target, err := p.parseLValue(name, entry.Node.(*ast.VarDecl))
		if err != nil {
			return nil, err
		}
		if _, err := p.expectKind(token.OP_EQ); err != nil {
			return nil, err
		}
		value, err := p.parseArithExpr()
		if err != nil {
			return nil, err
		}
		return &ast.Assign{Target: target, Value: value, Pos: pos}, nil
	default:
		return nil, p.errorf(pos, "%q cannot start a statement", name)
	}
}

// parseLValue consumes a VAR identifier already known to be at the
// current token and parses any `(index)`, `^`, or `.field` suffix that
// turns it into a composite assignment target.
func (p *Parser) parseLValue(name string, decl *ast.VarDecl) (ast.Expr, error) {
	pos := p.cur().Position
	p.advance() // identifier
	varNode := &ast.Var{Name: name, Type: decl.Type, Decl: decl, Pos: pos}

	switch p.cur().Kind {
	case token.OP_LPAREN:
		if _, ok := decl.Type.(*types.ArrayType); !ok {
			return nil, p.errorf(pos, "%q is not an array", name)
		}
		p.advance()
		idx, err := p.parseArithExpr()
		if err != nil {
			return nil, err
		}
		if _, err := p.expectKind(token.OP_RPAREN); err != nil {
			return nil, err
		}
		return &ast.ArrayAccess{Target: varNode, Index: idx, Pos: pos}, nil
	case token.OP_CARET:
		if _, ok := decl.Type.(*types.PointerType); !ok {
			return nil, p.errorf(pos, "%q is not a pointer", name)
		}
		p.advance()
		return &ast.Dereference{Target: varNode, Pos: pos}, nil
	case token.OP_DOT:
		rt, ok := decl.Type.(*types.RecordType)
		if !ok {
			return nil, p.errorf(pos, "%q is not a record", name)
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
	default:
		return varNode, nil
	}
}

func (p *Parser) parseIf() (*ast.If, error) {
	pos := p.cur().Position
	p.advance() // IF

	cond, err := p.parseCondExpr()
	if err != nil {
		return nil, err
	}
	if _, err := p.expectKind(token.THEN); err != nil {
		return nil, err
	}
	stmts, err := p.parseStmtList(p.atIfBoundary)
	if err != nil {
		return nil, err
	}
	conds := []ast.Conditional{{Cond: cond, Stmts: stmts}}

	for p.cur().Kind == token.ELSEIF {
		p.advance()
		cond, err := p.parseCondExpr()
		if err != nil {
			return nil, err
		}
		if _, err := p.expectKind(token.THEN); err != nil {
			return nil, err
		}
		stmts, err := p.parseStmtList(p.atIfBoundary)
		if err != nil {
			return nil, err
		}
		conds = append(conds, ast.Conditional{Cond: cond, Stmts: stmts})
	}

	var elseStmts []ast.Statement
	if p.cur().Kind == token.ELSE {
		p.advance()
		elseStmts, err = p.parseStmtList(p.atIfBoundary)
		if err != nil {
			return nil, err
		}
	}
	if _, err := p.expectKind(token.FI); err != nil {
		return nil, err
	}
	return &ast.If{Conditionals: conds, Else: elseStmts, Pos: pos}, nil
}

func (p *Parser) atIfBoundary() bool {
	switch p.cur().Kind {
	case token.ELSEIF, token.ELSE, token.FI, token.EOF:
		return true
	default:
		return false
	}
}

func (p *Parser) atDoBoundary() bool {
	switch p.cur().Kind {
	case token.UNTIL, token.OD, token.EOF:
		return true
	default:
		return false
	}
}

func (p *Parser) parseDo() (*ast.Do, error) {
	pos := p.cur().Position
	p.advance() // DO
	return p.parseLoopBody(pos)
}

// parseLoopBody parses the shared DO ... (UNTIL expr)? OD tail used by
// WHILE and FOR, whose own loop condition/bounds are parsed separately
// by the caller; the leading DO token must already be consumed.
func (p *Parser) parseLoopBody(pos token.Position) (*ast.Do, error) {
	stmts, err := p.parseStmtList(p.atDoBoundary)
	if err != nil {
		return nil, err
	}
	var until ast.Expr
	if p.cur().Kind == token.UNTIL {
		p.advance()
		until, err = p.parseCondExpr()
		if err != nil {
			return nil, err
		}
	}
	if _, err := p.expectKind(token.OD); err != nil {
		return nil, err
	}
	return &ast.Do{Stmts: stmts, Until: until, Pos: pos}, nil
}

func (p *Parser) parseWhile() (*ast.While, error) {
	pos := p.cur().Position
	p.advance() // WHILE
	cond, err := p.parseCondExpr()
	if err != nil {
		return nil, err
	}
	if _, err := p.expectKind(token.DO); err != nil {
		return nil, err
	}
	body, err := p.parseLoopBody(pos)
	if err != nil {
		return nil, err
	}
	return &ast.While{Cond: cond, Body: body, Pos: pos}, nil
}

func (p *Parser) parseFor() (*ast.For, error) {
	pos := p.cur().Position
	p.advance() // FOR
	nameTok, err := p.expectKind(token.IDENTIFIER)
	if err != nil {
		return nil, err
	}
	entry, _, ok := p.sym.Find(nameTok.Value)
	if !ok || entry.Kind != symtab.VAR {
		return nil, p.errorf(nameTok.Position, "%q is not a variable", nameTok.Value)
	}
	decl := entry.Node.(*ast.VarDecl)
	varNode := &ast.Var{Name: nameTok.Value, Type: decl.Type, Decl: decl, Pos: nameTok.Position}

	if _, err := p.expectKind(token.OP_EQ); err != nil {
		return nil, err
	}
	start, err := p.parseArithExpr()
	if err != nil {
		return nil, err
	}
	if _, err := p.expectKind(token.TO); err != nil {
		return nil, err
	}
	finish, err := p.parseArithExpr()
	if err != nil {
		return nil, err
	}

	step := ast.Expr(&ast.NumericalConst{Value: 1, Pos: pos})
	if p.cur().Kind == token.STEP {
		p.advance()
		step, err = p.parseArithExpr()
		if err != nil {
			return nil, err
		}
	}

	if _, err := p.expectKind(token.DO); err != nil {
		return nil, err
	}
	body, err := p.parseLoopBody(pos)
	if err != nil {
		return nil, err
	}
	return &ast.For{Var: varNode, Start: start, Finish: finish, Step: step, Body: body, Pos: pos}, nil
}

// parseReturn parses a bare RETURN, or RETURN(expr) whose presence must
// agree with whether the enclosing routine is a PROC or a FUNC.
func (p *Parser) parseReturn() (*ast.Return, error) {
	pos := p.cur().Position
	p.advance() // RETURN
	if p.cur().Kind != token.OP_LPAREN {
		if p.curRoutine != nil && p.curRoutine.ReturnType != types.VOID {
			return nil, p.errorf(pos, "FUNC %s must RETURN a value", p.curRoutine.Name)
		}
		return &ast.Return{Pos: pos}, nil
	}
	if p.curRoutine != nil && p.curRoutine.ReturnType == types.VOID {
		return nil, p.errorf(pos, "RETURN with a value is not allowed inside a PROC")
	}
	p.advance() // (
	val, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if _, err := p.expectKind(token.OP_RPAREN); err != nil {
		return nil, err
	}
	return &ast.Return{Value: val, Pos: pos}, nil
}

func (p *Parser) parseDevPrint() (*ast.DevPrint, error) {
	pos := p.cur().Position
	p.advance() // DEVPRINT
	if _, err := p.expectKind(token.OP_LPAREN); err != nil {
		return nil, err
	}
	val, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if _, err := p.expectKind(token.OP_RPAREN); err != nil {
		return nil, err
	}
	return &ast.DevPrint{Value: val, Pos: pos}, nil
}

// parseCodeBlock parses `[ const const ... ]`, a run of literal bytes
// emitted verbatim into the routine body.
func (p *Parser) parseCodeBlock() (*ast.CodeBlock, error) {
	pos := p.cur().Position
	p.advance() // [
	var vals []int
	for p.cur().Kind != token.OP_RBRACK {
		v, err := p.parseConstValue()
		if err != nil {
			return nil, err
		}
		vals = append(vals, v)
	}
	if _, err := p.expectKind(token.OP_RBRACK); err != nil {
		return nil, err
	}
	return &ast.CodeBlock{Values: vals, Pos: pos}, nil
}

// parseRoutineCall parses the `(arg, arg, ...)` argument list of a call
// to an already-resolved routine, zero-padding a short argument list
// with a warning and rejecting a long one outright, per §4.3.
func (p *Parser) parseRoutineCall(name string, routine *ast.Routine) (*ast.Call, error) {
	pos := p.cur().Position
	p.advance() // identifier
	if _, err := p.expectKind(token.OP_LPAREN); err != nil {
		return nil, err
	}
	var args []ast.Expr
	if p.cur().Kind != token.OP_RPAREN {
		for {
			arg, err := p.parseArithExpr()
			if err != nil {
				return nil, err
			}
			args = append(args, arg)
			if p.cur().Kind == token.OP_COMMA {
				p.advance()
				continue
			}
			break
		}
	}
	if _, err := p.expectKind(token.OP_RPAREN); err != nil {
		return nil, err
	}

	if len(args) > len(routine.Params) {
		return nil, p.errorf(pos, "too many arguments to %s: got %d, want %d", name, len(args), len(routine.Params))
	}
	if len(args) < len(routine.Params) {
		p.warnf(pos, "too few arguments to %s: got %d, want %d, zero-padding", name, len(args), len(routine.Params))
		for i := len(args); i < len(routine.Params); i++ {
			args = append(args, &ast.NumericalConst{Value: 0, Pos: pos})
		}
	}
	return &ast.Call{Name: name, Args: args, RetType: routine.ReturnType, Routine: routine, Pos: pos}, nil
}
