package bytecode

import (
	"fmt"

	"github.com/action-lang/actc/internal/ast"
	"github.com/action-lang/actc/internal/types"
)

// frameHeaderSize is the number of bytes ROUTINE_CALL reserves on the
// work stack before the callee's frame pointer: a 2-byte return
// address and a 2-byte saved frame pointer. Parameter and local
// addressing (see emitRoutine) is defined relative to this header.
const frameHeaderSize = 4

// Image is the result of emitting a program: a flat byte stream meant
// to be loaded starting at the VM's program-image base address, plus
// the entry routine's offset within it.
type Image struct {
	Code      []byte
	EntryAddr int
	// DataSize is the byte width of the global-data prefix emitted
	// before any routine code; everything from DataSize onward is
	// instructions.
	DataSize int
	// Symbols maps each routine's entry offset to its declared name,
	// for disassembly listings, the CLI's symbols subcommand, and
	// resolving a faulting pc to a routine name in a stack trace.
	Symbols map[int]string
}

// Emitter walks a typed *ast.Program in source order and appends bytes
// to a growing program image, resolving variable addresses, patching
// forward jumps, and fixing up forward routine-call targets.
type Emitter struct {
	code []byte

	pendingCallFixups []callFixup
	loopExits         [][]int

	nextGlobalAddr int
}

// callFixup records a ROUTINE_CALL instruction's operand positions that
// cannot be resolved until every routine has been emitted (the callee
// may be declared later in the source, a forward reference).
type callFixup struct {
	targetPos int
	localsPos int
	routine   *ast.Routine
}

// NewEmitter constructs an empty emitter.
func NewEmitter() *Emitter {
	return &Emitter{}
}

// Emit walks prog and returns the assembled program image.
func (e *Emitter) Emit(prog *ast.Program) (*Image, error) {
	for _, m := range prog.Modules {
		if err := e.emitModuleDecls(m); err != nil {
			return nil, err
		}
	}
	symbols := make(map[int]string)
	for _, m := range prog.Modules {
		for _, r := range m.Routines {
			if err := e.emitRoutine(r); err != nil {
				return nil, err
			}
			symbols[r.Addr] = r.Name
		}
	}
	if err := e.resolveFixups(); err != nil {
		return nil, err
	}

	entry, ok := prog.SymTab.LastRoutine()
	if !ok {
		return nil, fmt.Errorf("bytecode: program has no routines")
	}
	return &Image{Code: e.code, EntryAddr: entry.Addr, DataSize: e.nextGlobalAddr, Symbols: symbols}, nil
}

func (e *Emitter) emitByte(b byte)  { e.code = append(e.code, b) }
func (e *Emitter) emitBytes(b []byte) { e.code = append(e.code, b...) }

func (e *Emitter) emitShortAt(pos int, v int) {
	e.code[pos] = byte(v & 0xFF)
	e.code[pos+1] = byte((v >> 8) & 0xFF)
}

func (e *Emitter) emitShort(v int) {
	e.emitByte(byte(v & 0xFF))
	e.emitByte(byte((v >> 8) & 0xFF))
}

func (e *Emitter) here() int { return len(e.code) }

// --- Global data ---

func (e *Emitter) emitModuleDecls(m *ast.Module) error {
	for _, d := range m.Decls {
		switch decl := d.(type) {
		case *ast.VarDecl:
			if err := e.emitGlobalVar(decl); err != nil {
				return err
			}
		case *ast.StructDecl:
			// Type declarations introduce no storage of their own.
		}
	}
	return nil
}

func (e *Emitter) emitGlobalVar(v *ast.VarDecl) error {
	v.Scope = ast.ScopeGlobal

	if v.Init != nil && v.Init.IsAddress {
		// The declared value IS the fixed address; no storage emitted.
		v.Address = v.Init.Values[0]
		v.AddressAssigned = true
		return nil
	}

	v.Address = e.nextGlobalAddr
	v.AddressAssigned = true

	switch t := v.Type.(type) {
	case types.Fundamental:
		val := 0
		if v.Init != nil && len(v.Init.Values) > 0 {
			val = v.Init.Values[0]
		}
		e.emitScalar(t, val)
		e.nextGlobalAddr += t.Width()
	case *types.PointerType:
		val := 0
		if v.Init != nil && len(v.Init.Values) > 0 {
			val = v.Init.Values[0]
		}
		e.emitShort(val)
		e.nextGlobalAddr += 2
	case *types.ArrayType:
		length := t.Length
		if v.Init != nil && len(v.Init.Values) > length {
			length = len(v.Init.Values)
		}
		for i := 0; i < length; i++ {
			val := 0
			if v.Init != nil && i < len(v.Init.Values) {
				val = v.Init.Values[i]
			}
			e.emitScalar(t.Elem, val)
		}
		e.nextGlobalAddr += t.Elem.Width() * length
	case *types.RecordType:
		size := t.Size()
		e.emitBytes(make([]byte, size))
		e.nextGlobalAddr += size
	default:
		return fmt.Errorf("bytecode: unsupported global variable type for %q", v.Name)
	}
	return nil
}

func (e *Emitter) emitScalar(t types.Fundamental, val int) {
	switch t.Width() {
	case 1:
		e.emitByte(byte(val))
	case 2:
		e.emitShort(val)
	}
}

// --- Routines ---

func (e *Emitter) emitRoutine(r *ast.Routine) error {
	r.Addr = e.here()

	// Parameters live below the 4-byte call-frame header (saved return
	// address + saved fp); the first-declared parameter sits nearest
	// the header, so its offset is -(4 + its own width), not a fixed
	// -6 — the -6 example in worked scenarios is just the common case
	// of a 2-byte first parameter. See DESIGN.md's frame-layout note.
	cumParamWidth := 0
	for _, p := range r.Params {
		p.Scope = ast.ScopeParam
		cumParamWidth += types.Fund(p.Type).Width()
		p.Address = -(frameHeaderSize + cumParamWidth)
		p.AddressAssigned = true
	}

	nextLocalAddr := 0
	for _, d := range r.SystemDecl {
		local, ok := d.(*ast.VarDecl)
		if !ok {
			continue
		}
		local.Scope = ast.ScopeLocal
		local.Address = nextLocalAddr
		local.AddressAssigned = true
		width := types.Fund(local.Type).Width()
		if width == 0 {
			width = local.Type.Size()
		}
		nextLocalAddr += width
		if local.Init != nil && len(local.Init.Values) > 0 && !local.Init.IsAddress {
			e.emitConstant(types.Fund(local.Type), local.Init.Values[0])
			e.emitStoreVar(local)
		}
	}
	r.LocalsSize = nextLocalAddr

	for _, stmt := range r.Statements {
		if err := e.emitStmt(stmt, r); err != nil {
			return err
		}
	}

	if !endsInReturn(r.Statements) {
		e.emitByte(byte(RETURN))
		e.emitByte(TypeByte(r.ReturnType))
	}
	return nil
}

func endsInReturn(stmts []ast.Statement) bool {
	if len(stmts) == 0 {
		return false
	}
	_, ok := stmts[len(stmts)-1].(*ast.Return)
	return ok
}

// --- Statements ---

func (e *Emitter) emitStmt(s ast.Statement, r *ast.Routine) error {
	switch st := s.(type) {
	case *ast.Assign:
		return e.emitAssign(st)
	case *ast.CallStmt:
		return e.emitCall(st.Call)
	case *ast.DevPrint:
		if err := e.emitExpr(st.Value); err != nil {
			return err
		}
		e.emitByte(byte(DEVPRINT))
		e.emitByte(TypeByte(st.Value.ResultType()))
		return nil
	case *ast.Return:
		if st.Value != nil {
			if err := e.emitExpr(st.Value); err != nil {
				return err
			}
			e.emitByte(byte(RETURN))
			e.emitByte(TypeByte(st.Value.ResultType()))
		} else {
			e.emitByte(byte(RETURN))
			e.emitByte(TypeByte(types.VOID))
		}
		return nil
	case *ast.Exit:
		if len(e.loopExits) == 0 {
			return fmt.Errorf("bytecode: EXIT outside of a loop")
		}
		e.emitByte(byte(JUMP))
		patchAt := e.here()
		e.emitShort(0)
		top := len(e.loopExits) - 1
		e.loopExits[top] = append(e.loopExits[top], patchAt)
		return nil
	case *ast.If:
		return e.emitIf(st, r)
	case *ast.Do:
		return e.emitDo(st, r)
	case *ast.While:
		return e.emitWhile(st, r)
	case *ast.For:
		return e.emitFor(st, r)
	case *ast.CodeBlock:
		for _, v := range st.Values {
			e.emitByte(byte(v))
		}
		return nil
	default:
		return fmt.Errorf("bytecode: unsupported statement %T", s)
	}
}

func (e *Emitter) emitAssign(a *ast.Assign) error {
	if err := e.emitExpr(a.Value); err != nil {
		return err
	}
	e.emitWidthCast(a.Value.ResultType(), a.Target.ResultType())
	switch target := a.Target.(type) {
	case *ast.Var:
		e.emitStoreVar(target.Decl)
		return nil
	case *ast.ArrayAccess:
		return e.emitIndexedStore(target)
	case *ast.Dereference:
		return e.emitPointerStore(target)
	case *ast.FieldAccess:
		return e.emitFieldStore(target)
	default:
		return fmt.Errorf("bytecode: unsupported assignment target %T", a.Target)
	}
}

func (e *Emitter) emitIf(s *ast.If, r *ast.Routine) error {
	var endJumps []int
	for i, cond := range s.Conditionals {
		if err := e.emitExpr(cond.Cond); err != nil {
			return err
		}
		e.emitByte(byte(JUMP_IF_FALSE))
		e.emitByte(TypeByte(cond.Cond.ResultType()))
		falsePatch := e.here()
		e.emitShort(0)

		for _, st := range cond.Stmts {
			if err := e.emitStmt(st, r); err != nil {
				return err
			}
		}
		hasMore := i < len(s.Conditionals)-1 || s.Else != nil
		if hasMore {
			e.emitByte(byte(JUMP))
			endJumps = append(endJumps, e.here())
			e.emitShort(0)
		}
		e.emitShortAt(falsePatch, e.here())
	}
	if s.Else != nil {
		for _, st := range s.Else {
			if err := e.emitStmt(st, r); err != nil {
				return err
			}
		}
	}
	for _, pos := range endJumps {
		e.emitShortAt(pos, e.here())
	}
	return nil
}

func (e *Emitter) emitDo(s *ast.Do, r *ast.Routine) error {
	e.loopExits = append(e.loopExits, nil)
	start := e.here()
	for _, st := range s.Stmts {
		if err := e.emitStmt(st, r); err != nil {
			return err
		}
	}
	if s.Until != nil {
		if err := e.emitExpr(s.Until); err != nil {
			return err
		}
		e.emitByte(byte(JUMP_IF_FALSE))
		e.emitByte(TypeByte(s.Until.ResultType()))
		e.emitShort(start)
	} else {
		e.emitByte(byte(JUMP))
		e.emitShort(start)
	}
	e.patchLoopExits()
	return nil
}

func (e *Emitter) emitWhile(s *ast.While, r *ast.Routine) error {
	e.loopExits = append(e.loopExits, nil)
	start := e.here()
	if err := e.emitExpr(s.Cond); err != nil {
		return err
	}
	e.emitByte(byte(JUMP_IF_FALSE))
	e.emitByte(TypeByte(s.Cond.ResultType()))
	exitPatch := e.here()
	e.emitShort(0)

	for _, st := range s.Body.Stmts {
		if err := e.emitStmt(st, r); err != nil {
			return err
		}
	}
	if s.Body.Until != nil {
		if err := e.emitExpr(s.Body.Until); err != nil {
			return err
		}
		e.emitByte(byte(JUMP_IF_FALSE))
		e.emitByte(TypeByte(s.Body.Until.ResultType()))
		e.emitShort(start)
	} else {
		e.emitByte(byte(JUMP))
		e.emitShort(start)
	}
	e.emitShortAt(exitPatch, e.here())
	e.patchLoopExits()
	return nil
}

func (e *Emitter) emitFor(s *ast.For, r *ast.Routine) error {
	if err := e.emitExpr(s.Start); err != nil {
		return err
	}
	e.emitStoreVar(s.Var.Decl)

	e.loopExits = append(e.loopExits, nil)
	start := e.here()
	e.emitLoadVar(s.Var.Decl)
	if err := e.emitExpr(s.Finish); err != nil {
		return err
	}
	e.emitByte(byte(LE))
	e.emitByte(TypeByte(s.Var.ResultType()))
	e.emitByte(TypeByte(s.Finish.ResultType()))
	e.emitByte(byte(JUMP_IF_FALSE))
	e.emitByte(TypeByte(types.BYTE))
	exitPatch := e.here()
	e.emitShort(0)

	for _, st := range s.Body.Stmts {
		if err := e.emitStmt(st, r); err != nil {
			return err
		}
	}

	e.emitLoadVar(s.Var.Decl)
	if err := e.emitExpr(s.Step); err != nil {
		return err
	}
	e.emitByte(byte(ADD))
	e.emitByte(TypeByte(s.Var.ResultType()))
	e.emitByte(TypeByte(s.Step.ResultType()))
	e.emitStoreVar(s.Var.Decl)

	if s.Body.Until != nil {
		if err := e.emitExpr(s.Body.Until); err != nil {
			return err
		}
		e.emitByte(byte(JUMP_IF_FALSE))
		e.emitByte(TypeByte(s.Body.Until.ResultType()))
		e.emitShort(start)
	} else {
		e.emitByte(byte(JUMP))
		e.emitShort(start)
	}
	e.emitShortAt(exitPatch, e.here())
	e.patchLoopExits()
	return nil
}

func (e *Emitter) patchLoopExits() {
	top := len(e.loopExits) - 1
	for _, pos := range e.loopExits[top] {
		e.emitShortAt(pos, e.here())
	}
	e.loopExits = e.loopExits[:top]
}

// --- Variable addressing ---

func (e *Emitter) scopeOf(v *ast.VarDecl) VariableScope {
	switch v.Scope {
	case ast.ScopeGlobal:
		return GLOBAL
	case ast.ScopeParam:
		return PARAM
	default:
		return LOCAL
	}
}

func (e *Emitter) emitVarInstr(op Op, v *ast.VarDecl, mode AddressMode) {
	e.emitByte(byte(op))
	e.emitByte(TypeByte(types.Fund(v.Type)))
	e.emitByte(byte(e.scopeOf(v)))
	e.emitByte(byte(mode))
	e.emitShort(v.Address)
}

func (e *Emitter) emitLoadVar(v *ast.VarDecl) { e.emitVarInstr(LOAD_VARIABLE, v, DEFAULT) }
func (e *Emitter) emitStoreVar(v *ast.VarDecl) { e.emitVarInstr(STORE_VARIABLE, v, DEFAULT) }

func (e *Emitter) emitConstant(t types.Fundamental, val int) {
	e.emitByte(byte(NUMERICAL_CONSTANT))
	e.emitByte(TypeByte(t))
	e.emitScalar(t, val)
}

// --- Composite lvalues ---

func (e *Emitter) emitIndexedStore(target *ast.ArrayAccess) error {
	v, ok := target.Target.(*ast.Var)
	if !ok {
		return fmt.Errorf("bytecode: array access target must be a variable")
	}
	if err := e.emitExpr(target.Index); err != nil {
		return err
	}
	e.emitVarInstr(STORE_VARIABLE, v.Decl, OFFSET)
	return nil
}

func (e *Emitter) emitPointerStore(target *ast.Dereference) error {
	v, ok := target.Target.(*ast.Var)
	if !ok {
		return fmt.Errorf("bytecode: dereference target must be a variable")
	}
	pt, ok := v.Decl.Type.(*types.PointerType)
	if !ok {
		return fmt.Errorf("bytecode: dereference of non-pointer variable %q", v.Name)
	}
	// The instruction's type byte must reflect what is stored at the
	// pointee, not the pointer variable's own CARD representation;
	// the address operand still names the pointer variable's own
	// storage, since that is where the VM finds the address to follow.
	synthetic := &ast.VarDecl{
		Name: v.Name, Type: pt.Elem, Scope: v.Decl.Scope,
		Address: v.Decl.Address, AddressAssigned: true,
	}
	e.emitVarInstr(STORE_VARIABLE, synthetic, POINTER)
	return nil
}

func (e *Emitter) emitFieldStore(target *ast.FieldAccess) error {
	v, ok := target.Target.(*ast.Var)
	if !ok {
		return fmt.Errorf("bytecode: field access target must be a variable")
	}
	rt, ok := v.Type.(*types.RecordType)
	if !ok {
		return fmt.Errorf("bytecode: field access on non-record variable %q", v.Name)
	}
	field, ok := rt.Field(target.Field)
	if !ok {
		return fmt.Errorf("bytecode: unknown field %q on record %s", target.Field, rt.Name)
	}
	offset := rt.FieldOffset(target.Field)
	synthetic := &ast.VarDecl{
		Name: v.Name, Type: field.Type, Scope: v.Decl.Scope,
		Address: v.Decl.Address + offset, AddressAssigned: true,
	}
	e.emitVarInstr(STORE_VARIABLE, synthetic, DEFAULT)
	return nil
}

// --- Expressions ---

func (e *Emitter) emitExpr(expr ast.Expr) error {
	switch ex := expr.(type) {
	case *ast.NumericalConst:
		e.emitConstant(ex.ResultType(), ex.Value)
		return nil
	case *ast.Var:
		e.emitLoadVar(ex.Decl)
		return nil
	case *ast.Reference:
		v, ok := ex.Target.(*ast.Var)
		if !ok {
			return fmt.Errorf("bytecode: reference target must be a variable")
		}
		e.emitVarInstr(LOAD_VARIABLE, v.Decl, REFERENCE)
		return nil
	case *ast.Dereference:
		v, ok := ex.Target.(*ast.Var)
		if !ok {
			return fmt.Errorf("bytecode: dereference target must be a variable")
		}
		pt, ok := v.Decl.Type.(*types.PointerType)
		if !ok {
			return fmt.Errorf("bytecode: dereference of non-pointer variable %q", v.Name)
		}
		synthetic := &ast.VarDecl{
			Name: v.Name, Type: pt.Elem, Scope: v.Decl.Scope,
			Address: v.Decl.Address, AddressAssigned: true,
		}
		e.emitVarInstr(LOAD_VARIABLE, synthetic, POINTER)
		return nil
	case *ast.ArrayAccess:
		v, ok := ex.Target.(*ast.Var)
		if !ok {
			return fmt.Errorf("bytecode: array access target must be a variable")
		}
		if err := e.emitExpr(ex.Index); err != nil {
			return err
		}
		e.emitVarInstr(LOAD_VARIABLE, v.Decl, OFFSET)
		return nil
	case *ast.FieldAccess:
		v, ok := ex.Target.(*ast.Var)
		if !ok {
			return fmt.Errorf("bytecode: field access target must be a variable")
		}
		rt, ok := v.Type.(*types.RecordType)
		if !ok {
			return fmt.Errorf("bytecode: field access on non-record variable %q", v.Name)
		}
		field, ok := rt.Field(ex.Field)
		if !ok {
			return fmt.Errorf("bytecode: unknown field %q on record %s", ex.Field, rt.Name)
		}
		offset := rt.FieldOffset(ex.Field)
		synthetic := &ast.VarDecl{
			Name: v.Name, Type: field.Type, Scope: v.Decl.Scope,
			Address: v.Decl.Address + offset, AddressAssigned: true,
		}
		e.emitVarInstr(LOAD_VARIABLE, synthetic, DEFAULT)
		return nil
	case *ast.UnaryExpr:
		if err := e.emitExpr(ex.Operand); err != nil {
			return err
		}
		e.emitByte(byte(UNARY_MINUS))
		e.emitByte(TypeByte(ex.Operand.ResultType()))
		return nil
	case *ast.BinaryExpr:
		return e.emitBinary(ex)
	case *ast.Call:
		return e.emitCall(ex)
	default:
		return fmt.Errorf("bytecode: unsupported expression %T", expr)
	}
}

var binaryOp = map[ast.Op]Op{
	ast.ADD: ADD, ast.SUB: SUB, ast.MUL: MUL, ast.DIV: DIV, ast.MOD: MOD,
	ast.LSH: LSH, ast.RSH: RSH,
	ast.EQ: EQ, ast.NE: NE, ast.GT: GT, ast.GE: GE, ast.LT: LT, ast.LE: LE,
	ast.AND: AND, ast.OR: OR, ast.XOR: XOR,
	ast.BIT_AND: BIT_AND, ast.BIT_OR: BIT_OR, ast.BIT_XOR: BIT_XOR,
}

func (e *Emitter) emitBinary(b *ast.BinaryExpr) error {
	if err := e.emitExpr(b.Left); err != nil {
		return err
	}
	if err := e.emitExpr(b.Right); err != nil {
		return err
	}
	op, ok := binaryOp[b.Op]
	if !ok {
		return fmt.Errorf("bytecode: unknown binary operator %s", b.Op)
	}
	e.emitByte(byte(op))
	e.emitByte(TypeByte(b.Left.ResultType()))
	e.emitByte(TypeByte(b.Right.ResultType()))
	return nil
}

// --- Calls ---

// emitWidthCast emits a CAST when a value of type from is stored or
// passed where type to is expected and the two differ in width, so the
// store or the callee reads exactly the bytes that were pushed.
func (e *Emitter) emitWidthCast(from, to types.Fundamental) {
	if from.Width() == 0 || to.Width() == 0 || from.Width() == to.Width() {
		return
	}
	e.emitByte(byte(CAST))
	e.emitByte(TypeByte(from))
	e.emitByte(TypeByte(to))
}

func (e *Emitter) emitCall(c *ast.Call) error {
	for i := len(c.Args) - 1; i >= 0; i-- {
		if err := e.emitExpr(c.Args[i]); err != nil {
			return err
		}
		if c.Routine != nil && i < len(c.Routine.Params) {
			e.emitWidthCast(c.Args[i].ResultType(), types.Fund(c.Routine.Params[i].Type))
		}
	}
	e.emitByte(byte(ROUTINE_CALL))
	e.emitByte(TypeByte(c.RetType))
	localsPos := e.here()
	e.emitShort(0)
	targetPos := e.here()
	e.emitShort(0)

	e.pendingCallFixups = append(e.pendingCallFixups, callFixup{
		targetPos: targetPos, localsPos: localsPos, routine: c.Routine,
	})
	return nil
}

// resolveFixups patches every ROUTINE_CALL instruction's locals-size
// and target-address operands once all routines have been emitted and
// their final Addr/LocalsSize are known, including forward references.
func (e *Emitter) resolveFixups() error {
	for _, fx := range e.pendingCallFixups {
		e.emitShortAt(fx.localsPos, fx.routine.LocalsSize)
		e.emitShortAt(fx.targetPos, fx.routine.Addr)
	}
	return nil
}
