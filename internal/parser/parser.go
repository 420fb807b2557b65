// Package parser implements a recursive-descent parser over Action!'s
// token stream, with a Pratt precedence-climbing driver for
// expressions. Parsing and type-checking happen in the same pass: every
// declaration is entered into a symbol table as soon as it is seen, and
// every identifier reference is resolved against it immediately, so the
// result is a fully typed *ast.Program rather than an untyped parse
// tree awaiting a separate check pass.
package parser

import (
	"fmt"

	"github.com/action-lang/actc/internal/ast"
	"github.com/action-lang/actc/internal/diag"
	"github.com/action-lang/actc/internal/symtab"
	"github.com/action-lang/actc/internal/token"
	"github.com/action-lang/actc/internal/types"
)

// Option configures a Parser at construction time.
type Option func(*Parser)

// WithFilename sets the filename used in diagnostics.
func WithFilename(name string) Option {
	return func(p *Parser) { p.file = name }
}

// WithSource installs the original source text so diagnostics can print
// the offending line alongside the caret, matching diag.Error's format.
func WithSource(src string) Option {
	return func(p *Parser) { p.source = src }
}

// Parser consumes a fixed token slice and builds a typed *ast.Program.
// It does not attempt multi-error recovery: the first syntax or
// semantic error aborts parsing and is returned to the caller, per the
// diagnostics policy of §7.
type Parser struct {
	toks []token.Token
	idx  int

	file   string
	source string

	sym *symtab.Table

	// curRoutine is the routine whose body is currently being parsed,
	// used to validate RETURN's value against PROC/FUNC.
	curRoutine *ast.Routine

	warnings []string
}

// New constructs a Parser over toks, which must end in an EOF token
// (as produced by lexer.All).
func New(toks []token.Token, opts ...Option) *Parser {
	p := &Parser{toks: toks, sym: symtab.New()}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Warnings returns every non-fatal diagnostic accumulated while
// parsing, such as a call zero-padded for missing arguments.
func (p *Parser) Warnings() []string { return p.warnings }

// ParseProgram parses the entire token stream into a Program, with a
// populated symbol table recording every global declaration.
func (p *Parser) ParseProgram() (*ast.Program, error) {
	var modules []*ast.Module

	if p.cur().Kind == token.MODULE {
		p.advance()
	}
	m, err := p.parseModule()
	if err != nil {
		return nil, err
	}
	modules = append(modules, m)

	for p.cur().Kind == token.MODULE {
		p.advance()
		m, err := p.parseModule()
		if err != nil {
			return nil, err
		}
		modules = append(modules, m)
	}

	if p.cur().Kind != token.EOF {
		return nil, p.errorf(p.cur().Position, "unexpected token %s after program", p.cur().Kind)
	}
	return &ast.Program{Modules: modules, SymTab: p.sym}, nil
}

// parseModule parses one ProgModule: SystemDecls followed by a list of
// routines, per §4.3's grammar summary.
func (p *Parser) parseModule() (*ast.Module, error) {
	decls, err := p.parseSystemDecls()
	if err != nil {
		return nil, err
	}
	m := &ast.Module{Decls: decls}
	for p.isRoutineStart() {
		r, err := p.parseRoutine()
		if err != nil {
			return nil, err
		}
		m.Routines = append(m.Routines, r)
	}
	return m, nil
}

// --- Token cursor ---

func (p *Parser) cur() token.Token { return p.peek(0) }

func (p *Parser) peek(n int) token.Token {
	idx := p.idx + n
	if idx >= len(p.toks) {
		return token.Token{Kind: token.EOF}
	}
	return p.toks[idx]
}

func (p *Parser) advance() token.Token {
	t := p.cur()
	if p.idx < len(p.toks) {
		p.idx++
	}
	return t
}

func (p *Parser) expectKind(k token.Kind) (token.Token, error) {
	if p.cur().Kind != k {
		return token.Token{}, p.errorf(p.cur().Position, "expected %s, got %s", k, p.cur().Kind)
	}
	return p.advance(), nil
}

func (p *Parser) errorf(pos token.Position, format string, args ...interface{}) error {
	return diag.New(pos, fmt.Sprintf(format, args...), p.source, p.file)
}

func (p *Parser) warnf(pos token.Position, format string, args ...interface{}) {
	p.warnings = append(p.warnings, fmt.Sprintf("%s: %s", pos, fmt.Sprintf(format, args...)))
}

func fundamentalType(k token.Kind) types.Fundamental {
	switch k {
	case token.BYTE:
		return types.BYTE
	case token.CHAR:
		return types.CHAR
	case token.INT:
		return types.INT
	case token.CARD:
		return types.CARD
	default:
		return types.VOID
	}
}

// parseConstValue parses a (possibly negated) numeric literal used in a
// context that demands a compile-time constant: init-opts values, code
// blocks, array lengths, and fixed routine addresses.
func (p *Parser) parseConstValue() (int, error) {
	neg := false
	if p.cur().Kind == token.OP_MINUS {
		neg = true
		p.advance()
	}
	tok := p.cur()
	v, err := tok.IntValue()
	if err != nil {
		return 0, p.errorf(tok.Position, "%v", err)
	}
	p.advance()
	if neg {
		v = -v
	}
	return v, nil
}

// --- Declarations ---

func (p *Parser) isSystemDeclStart() bool {
	switch p.cur().Kind {
	case token.TYPE:
		return true
	case token.IDENTIFIER:
		entry, _, ok := p.sym.Find(p.cur().Value)
		return ok && entry.Kind == symtab.RECORD
	}
	if p.cur().Kind.IsFundamentalType() {
		// A fundamental-type keyword immediately followed by FUNC is a
		// routine header, not a variable declaration.
		return p.peek(1).Kind != token.FUNC
	}
	return false
}

func (p *Parser) parseSystemDecls() ([]ast.Decl, error) {
	var decls []ast.Decl
	for p.isSystemDeclStart() {
		ds, err := p.parseSystemDecl()
		if err != nil {
			return nil, err
		}
		decls = append(decls, ds...)
	}
	return decls, nil
}

func (p *Parser) parseSystemDecl() ([]ast.Decl, error) {
	if p.cur().Kind == token.TYPE {
		d, err := p.parseTypeDecl()
		if err != nil {
			return nil, err
		}
		return []ast.Decl{d}, nil
	}
	if p.cur().Kind == token.IDENTIFIER {
		return p.parseRecordVarDecl()
	}
	return p.parseVarDeclGroup()
}

// parseTypeDecl parses `TYPE IDENT = [ FieldList ]`.
func (p *Parser) parseTypeDecl() (*ast.StructDecl, error) {
	pos := p.cur().Position
	p.advance() // TYPE
	nameTok, err := p.expectKind(token.IDENTIFIER)
	if err != nil {
		return nil, err
	}
	if _, err := p.expectKind(token.OP_EQ); err != nil {
		return nil, err
	}
	if _, err := p.expectKind(token.OP_LBRACK); err != nil {
		return nil, err
	}

	var fields []*ast.VarDecl
	for p.cur().Kind != token.OP_RBRACK {
		if !p.cur().Kind.IsFundamentalType() {
			return nil, p.errorf(p.cur().Position, "expected a field type, got %s", p.cur().Kind)
		}
		fieldType := fundamentalType(p.cur().Kind)
		p.advance()
		for {
			fieldName, err := p.expectKind(token.IDENTIFIER)
			if err != nil {
				return nil, err
			}
			fields = append(fields, &ast.VarDecl{Name: fieldName.Value, Type: fieldType, Pos: fieldName.Position})
			if p.cur().Kind == token.OP_COMMA {
				p.advance()
				continue
			}
			break
		}
	}
	if _, err := p.expectKind(token.OP_RBRACK); err != nil {
		return nil, err
	}
	if len(fields) == 0 {
		return nil, p.errorf(pos, "record %q must declare at least one field", nameTok.Value)
	}

	decl := &ast.StructDecl{Name: nameTok.Value, Fields: fields, Pos: pos}
	if err := p.sym.Add(nameTok.Value, symtab.RECORD, decl); err != nil {
		return nil, p.errorf(pos, "%v", err)
	}
	return decl, nil
}

// parseRecordVarDecl parses a variable declaration whose type is a
// previously declared record, disambiguated by the leading identifier
// resolving to a RECORD entry rather than a fundamental-type keyword.
func (p *Parser) parseRecordVarDecl() ([]ast.Decl, error) {
	nameTok := p.cur()
	entry, _, ok := p.sym.Find(nameTok.Value)
	if !ok || entry.Kind != symtab.RECORD {
		return nil, p.errorf(nameTok.Position, "%q is not a record type", nameTok.Value)
	}
	structDecl := entry.Node.(*ast.StructDecl)
	p.advance()
	return p.finishVarDeclGroup(structDecl.RecordType())
}

// parseVarDeclGroup parses a FundDecl, PointerDecl, or ArrayDecl: a
// leading fundamental-type keyword, optionally followed by POINTER or
// ARRAY, then one or more comma-separated declared names.
func (p *Parser) parseVarDeclGroup() ([]ast.Decl, error) {
	kindTok := p.cur()
	if !kindTok.Kind.IsFundamentalType() {
		return nil, p.errorf(kindTok.Position, "expected a type keyword, got %s", kindTok.Kind)
	}
	fundType := fundamentalType(kindTok.Kind)
	p.advance()

	var declType types.Type = fundType
	switch p.cur().Kind {
	case token.POINTER:
		p.advance()
		declType = &types.PointerType{Elem: fundType}
	case token.ARRAY:
		p.advance()
		length := 0
		if p.cur().Kind == token.OP_LPAREN {
			p.advance()
			n, err := p.parseConstValue()
			if err != nil {
				return nil, err
			}
			length = n
			if _, err := p.expectKind(token.OP_RPAREN); err != nil {
				return nil, err
			}
		}
		declType = &types.ArrayType{Elem: fundType, Length: length}
	}
	return p.finishVarDeclGroup(declType)
}

// finishVarDeclGroup parses `IDENT (= InitOpts)? (, IDENT (= InitOpts)?)*`
// for a type already determined by the caller, registering each name
// as a VAR in the current scope.
func (p *Parser) finishVarDeclGroup(t types.Type) ([]ast.Decl, error) {
	var decls []ast.Decl
	for {
		nameTok, err := p.expectKind(token.IDENTIFIER)
		if err != nil {
			return nil, err
		}
		vd := &ast.VarDecl{Name: nameTok.Value, Type: t, Pos: nameTok.Position}
		init, err := p.parseInitOpts(t)
		if err != nil {
			return nil, err
		}
		vd.Init = init
		if err := p.sym.Add(nameTok.Value, symtab.VAR, vd); err != nil {
			return nil, p.errorf(nameTok.Position, "%v", err)
		}
		decls = append(decls, vd)
		if p.cur().Kind == token.OP_COMMA {
			p.advance()
			continue
		}
		break
	}
	return decls, nil
}

// parseInitOpts parses an optional `= ...` initializer. A bracketed
// list sets explicit values; a bare STRING_LITERAL against a CHAR
// ARRAY auto-generates a length-prefixed value list; a single
// unbracketed constant is an address binding: the declared value IS
// the variable's fixed memory address, and no storage is emitted for it.
func (p *Parser) parseInitOpts(t types.Type) (*ast.InitOpts, error) {
	if p.cur().Kind != token.OP_EQ {
		return nil, nil
	}
	p.advance()

	if p.cur().Kind == token.STRING_LITERAL {
		at, ok := t.(*types.ArrayType)
		if !ok || at.Elem != types.CHAR {
			return nil, p.errorf(p.cur().Position, "a string initializer requires a CHAR ARRAY")
		}
		s := p.cur().Value
		p.advance()
		vals := make([]int, 0, len(s)+1)
		vals = append(vals, len(s))
		for i := 0; i < len(s); i++ {
			vals = append(vals, int(s[i]))
		}
		return &ast.InitOpts{Values: vals}, nil
	}

	if p.cur().Kind == token.OP_LBRACK {
		p.advance()
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
		return &ast.InitOpts{Values: vals}, nil
	}

	v, err := p.parseConstValue()
	if err != nil {
		return nil, err
	}
	return &ast.InitOpts{Values: []int{v}, IsAddress: true}, nil
}

// --- Routines ---

func (p *Parser) isRoutineStart() bool {
	if p.cur().Kind == token.PROC {
		return true
	}
	return p.cur().Kind.IsFundamentalType() && p.peek(1).Kind == token.FUNC
}

// parseRoutine parses `(PROC IDENT | FundType FUNC IDENT) (= Addr)? ( Params? ) SystemDecls StmtList`.
// The routine is registered in the enclosing scope before its body is
// parsed so that recursive and mutually-recursive calls resolve.
func (p *Parser) parseRoutine() (*ast.Routine, error) {
	pos := p.cur().Position
	retType := types.VOID
	if p.cur().Kind == token.PROC {
		p.advance()
	} else if p.cur().Kind.IsFundamentalType() {
		retType = fundamentalType(p.cur().Kind)
		p.advance()
		if _, err := p.expectKind(token.FUNC); err != nil {
			return nil, err
		}
	} else {
		return nil, p.errorf(pos, "expected a PROC or FUNC declaration, got %s", p.cur().Kind)
	}

	nameTok, err := p.expectKind(token.IDENTIFIER)
	if err != nil {
		return nil, err
	}

	r := &ast.Routine{Name: nameTok.Value, ReturnType: retType, Pos: pos}
	if err := p.sym.Add(nameTok.Value, symtab.ROUTINE, r); err != nil {
		return nil, p.errorf(pos, "%v", err)
	}

	if p.cur().Kind == token.OP_EQ {
		p.advance()
		addr, err := p.parseConstValue()
		if err != nil {
			return nil, err
		}
		r.FixedAddr = &addr
	}

	if _, err := p.expectKind(token.OP_LPAREN); err != nil {
		return nil, err
	}
	p.sym = symtab.OpenScope(p.sym)
	if p.cur().Kind != token.OP_RPAREN {
		params, err := p.parseParamList()
		if err != nil {
			return nil, err
		}
		r.Params = params
	}
	if _, err := p.expectKind(token.OP_RPAREN); err != nil {
		return nil, err
	}

	decls, err := p.parseSystemDecls()
	if err != nil {
		return nil, err
	}
	r.SystemDecl = decls

	prevRoutine := p.curRoutine
	p.curRoutine = r
	stmts, err := p.parseStmtList(p.atRoutineBoundary)
	p.curRoutine = prevRoutine
	if err != nil {
		return nil, err
	}
	r.Statements = stmts

	p.sym = p.sym.CloseScope()
	return r, nil
}

// atRoutineBoundary reports whether the current token can only begin
// the next routine (or end the program), since Action! has no explicit
// keyword closing a routine body the way IF/FI and DO/OD do.
func (p *Parser) atRoutineBoundary() bool {
	switch p.cur().Kind {
	case token.EOF, token.MODULE, token.PROC:
		return true
	}
	return p.cur().Kind.IsFundamentalType() && p.peek(1).Kind == token.FUNC
}

func (p *Parser) parseParamList() ([]*ast.VarDecl, error) {
	var params []*ast.VarDecl
	for {
		if !p.cur().Kind.IsFundamentalType() {
			return nil, p.errorf(p.cur().Position, "expected a parameter type, got %s", p.cur().Kind)
		}
		t := fundamentalType(p.cur().Kind)
		p.advance()
		nameTok, err := p.expectKind(token.IDENTIFIER)
		if err != nil {
			return nil, err
		}
		vd := &ast.VarDecl{Name: nameTok.Value, Type: t, Scope: ast.ScopeParam, Pos: nameTok.Position}
		if err := p.sym.Add(nameTok.Value, symtab.VAR, vd); err != nil {
			return nil, p.errorf(nameTok.Position, "%v", err)
		}
		params = append(params, vd)
		if p.cur().Kind == token.OP_COMMA {
			p.advance()
			continue
		}
		break
	}
	return params, nil
}
