// Package vm implements the stack-oriented interpreter that executes a
// program image emitted by package bytecode: a 64 KiB byte-addressed
// memory, a fetch-decode-execute loop, and the work/parameter stacks
// and call-frame conventions the emitter targets.
package vm

import (
	"fmt"
	"io"

	"github.com/action-lang/actc/internal/bytecode"
	"github.com/action-lang/actc/internal/diag"
	"github.com/action-lang/actc/internal/types"
)

// Memory partitions, fixed by the address space layout.
const (
	startReserved = 0x0000
	startLocals   = 0x0800
	endLocals     = 0x1BFF
	startParams   = 0x1C00
	endParams     = 0x1FFF
	startProgram  = 0x2000
	endProgram    = 0xBFFF
	startROM      = 0xC000
	memSize       = 0x10000
)

// Partition names a memory partition, for debug dumps and diagnostics.
type Partition string

const (
	PartitionReserved Partition = "RESERVED"
	PartitionWorkStack Partition = "WORK_STACK"
	PartitionParamStack Partition = "PARAM_STACK"
	PartitionProgram   Partition = "PROGRAM"
	PartitionROM       Partition = "ROM"
	PartitionUnknown   Partition = "UNKNOWN"
)

// PartitionOf classifies addr by the memory layout, for debug tooling
// that wants to label a raw address.
func PartitionOf(addr int) Partition {
	switch {
	case addr >= startReserved && addr < startLocals:
		return PartitionReserved
	case addr >= startLocals && addr <= endLocals:
		return PartitionWorkStack
	case addr >= startParams && addr <= endParams:
		return PartitionParamStack
	case addr >= startProgram && addr <= endProgram:
		return PartitionProgram
	case addr >= startROM:
		return PartitionROM
	default:
		return PartitionUnknown
	}
}

// Call-frame header widths. frameHeaderSize mirrors
// bytecode.frameHeaderSize: parameter/local addressing is defined
// relative to it, so emitter and VM must agree on its value.
const (
	returnAddrWidth = 2
	savedFPWidth    = 2
	frameHeaderSize = returnAddrWidth + savedFPWidth
)

// Fault is a fatal runtime error, reported with the pc at which it
// occurred. Trace is populated by Run before the error is returned to
// the caller, so a CLI can print the routine chain that led here
// without the VM needing to know anything about diagnostic formatting.
type Fault struct {
	Message string
	PC      int
	Trace   diag.Trace
}

func (f *Fault) Error() string {
	return fmt.Sprintf("runtime error at pc=0x%04X: %s", f.PC, f.Message)
}

func fault(pc int, format string, args ...any) *Fault {
	return &Fault{PC: pc, Message: fmt.Sprintf(format, args...)}
}

// VM is one interpreter instance over its own private 64 KiB memory.
type VM struct {
	mem [memSize]byte

	pc, wsp, fp, psp int

	out io.Writer
	img *bytecode.Image

	tracer Tracer
}

// Tracer observes VM execution one instruction at a time. OnStep is
// called after an instruction has fully executed (registers reflect
// its effects) but before the next fetch, mirroring a debugger's
// post-step notification rather than a pre-step breakpoint.
type Tracer interface {
	OnStep(vm *VM, pc int, op bytecode.Op)
}

// New constructs a VM with img's code copied into the program-image
// partition and registers initialised per the entry point it names.
func New(img *bytecode.Image, out io.Writer) *VM {
	vm := &VM{out: out, img: img}
	copy(vm.mem[startProgram:], img.Code)
	vm.pc = startProgram + img.EntryAddr
	vm.wsp = startLocals
	vm.fp = startLocals
	vm.psp = startParams
	return vm
}

// SetTracer installs t to observe every instruction Run executes.
// Passing nil disables tracing.
func (vm *VM) SetTracer(t Tracer) {
	vm.tracer = t
}

// PC, WSP, FP, PSP expose current register values, chiefly for tests
// and debug tooling; they are not mutated by callers. PSP is carried
// for parity with the documented address space but is never advanced
// by this interpreter: the call convention in use passes arguments and
// the call frame entirely on the work stack.
func (vm *VM) PC() int  { return vm.pc }
func (vm *VM) WSP() int { return vm.wsp }
func (vm *VM) FP() int  { return vm.fp }
func (vm *VM) PSP() int { return vm.psp }

// ReadGlobal reads width bytes starting at the program-relative global
// offset addr (as assigned by the emitter to a VarDecl with
// ast.ScopeGlobal), for tests and debug dumps to inspect VM-observable
// state after Run returns.
func (vm *VM) ReadGlobal(addr, width int) int {
	return vm.readMem(startProgram+addr, width)
}

// Run executes from the current pc until a RETURN unwinds the entry
// frame (success) or a Fault is hit.
func (vm *VM) Run() error {
	for {
		startPC := vm.pc
		op := bytecode.Op(vm.mem[vm.pc])
		halted, err := vm.step()
		if err != nil {
			if f, ok := err.(*Fault); ok {
				f.Trace = vm.StackTrace()
			}
			return err
		}
		if vm.tracer != nil {
			vm.tracer.OnStep(vm, startPC, op)
		}
		if halted {
			return nil
		}
	}
}

// StackTrace walks the call-frame chain from the current fp outward to
// the entry frame, resolving each frame's pc to the routine it falls
// within via the image's symbol table. Frames are ordered oldest to
// newest, per diag.Trace's convention.
func (vm *VM) StackTrace() diag.Trace {
	var frames diag.Trace
	pc := vm.pc - startProgram
	fp := vm.fp
	for {
		name := vm.img.RoutineNameAt(pc)
		frames = append(frames, diag.NewFrame(name, "", nil))
		if fp == startLocals {
			break
		}
		savedFP := vm.readMem(fp-2, 2)
		returnOffset := vm.readMem(fp-4, 2)
		pc = returnOffset - 1
		if pc < 0 {
			pc = 0
		}
		fp = savedFP
	}
	return frames.Reverse()
}

func (vm *VM) fetchByte() byte {
	b := vm.mem[vm.pc]
	vm.pc++
	return b
}

func (vm *VM) fetchShort() int {
	lo := int(vm.mem[vm.pc])
	hi := int(vm.mem[vm.pc+1])
	vm.pc += 2
	return lo | hi<<8
}

// fetchSignedShort decodes a little-endian 16-bit two's-complement
// value, used for variable addresses (negative for parameters).
func (vm *VM) fetchSignedShort() int {
	v := vm.fetchShort()
	if v >= 0x8000 {
		v -= 0x10000
	}
	return v
}

func (vm *VM) readMem(addr, width int) int {
	if width == 1 {
		return int(vm.mem[addr])
	}
	return int(vm.mem[addr]) | int(vm.mem[addr+1])<<8
}

func (vm *VM) writeMem(addr, width, val int) {
	vm.mem[addr] = byte(val)
	if width == 2 {
		vm.mem[addr+1] = byte(val >> 8)
	}
}

// pushWidth writes val (truncated to width bytes) at wsp and advances
// it, faulting if the work stack would overrun the parameter stack.
func (vm *VM) pushWidth(width, val int) error {
	if vm.wsp+width > endLocals+1 {
		return fault(vm.pc, "work stack overflow")
	}
	vm.writeMem(vm.wsp, width, val)
	vm.wsp += width
	return nil
}

func (vm *VM) popWidth(width int) (int, error) {
	if vm.wsp-width < startLocals {
		return 0, fault(vm.pc, "work stack underflow")
	}
	vm.wsp -= width
	return vm.readMem(vm.wsp, width), nil
}

// popOperand pops a value from the work stack and extends it to a Go
// int per t's signedness: sign-extend INT, zero-extend everything else.
func (vm *VM) popOperand(t types.Fundamental) (int, error) {
	w := t.Width()
	v, err := vm.popWidth(w)
	if err != nil {
		return 0, err
	}
	if w == 2 && t.Signed() && v >= 0x8000 {
		v -= 0x10000
	}
	return v, nil
}

func (vm *VM) pushOperand(t types.Fundamental, v int) error {
	return vm.pushWidth(t.Width(), v)
}

// actualAddr resolves a LOAD_VARIABLE/STORE_VARIABLE address operand
// to a concrete memory address: global offsets are relative to the
// program image base, parameter/local offsets are relative to the
// current frame pointer.
func (vm *VM) actualAddr(scope bytecode.VariableScope, addr int) int {
	switch scope {
	case bytecode.GLOBAL:
		return startProgram + addr
	default: // PARAM, LOCAL, ROUTINE_REFERENCE
		return vm.fp + addr
	}
}

func (vm *VM) step() (halted bool, err error) {
	if vm.pc < startProgram || vm.pc > endProgram {
		return false, fault(vm.pc, "pc out of program range")
	}

	op := bytecode.Op(vm.fetchByte())
	switch op {
	case bytecode.NOP:
		return false, nil
	case bytecode.BREAK:
		return false, nil

	case bytecode.ADD, bytecode.SUB, bytecode.MUL, bytecode.DIV, bytecode.MOD,
		bytecode.LSH, bytecode.RSH, bytecode.EQ, bytecode.NE, bytecode.GT,
		bytecode.GE, bytecode.LT, bytecode.LE, bytecode.AND, bytecode.OR,
		bytecode.XOR, bytecode.BIT_AND, bytecode.BIT_OR, bytecode.BIT_XOR:
		return false, vm.execBinary(op)

	case bytecode.UNARY_MINUS:
		return false, vm.execUnaryMinus()

	case bytecode.NUMERICAL_CONSTANT:
		return false, vm.execConstant()

	case bytecode.LOAD_VARIABLE:
		return false, vm.execLoadVariable()

	case bytecode.STORE_VARIABLE:
		return false, vm.execStoreVariable()

	case bytecode.JUMP:
		target := vm.fetchShort()
		vm.pc = startProgram + target
		return false, nil

	case bytecode.JUMP_IF_FALSE:
		t := bytecode.FromTypeByte(vm.fetchByte())
		target := vm.fetchShort()
		v, err := vm.popOperand(t)
		if err != nil {
			return false, err
		}
		if v == 0 {
			vm.pc = startProgram + target
		}
		return false, nil

	case bytecode.ROUTINE_CALL:
		return false, vm.execCall()

	case bytecode.RETURN:
		return vm.execReturn()

	case bytecode.CAST:
		return false, vm.execCast()

	case bytecode.DEVPRINT:
		return false, vm.execDevPrint()

	case bytecode.POP:
		t := bytecode.FromTypeByte(vm.fetchByte())
		_, err := vm.popOperand(t)
		return false, err

	case bytecode.DUP:
		t := bytecode.FromTypeByte(vm.fetchByte())
		w := t.Width()
		if vm.wsp-w < startLocals {
			return false, fault(vm.pc, "work stack underflow on DUP")
		}
		v := vm.readMem(vm.wsp-w, w)
		return false, vm.pushWidth(w, v)

	default:
		return false, fault(vm.pc-1, "unknown opcode 0x%02X", byte(op))
	}
}

func (vm *VM) execBinary(op bytecode.Op) error {
	lhsT := bytecode.FromTypeByte(vm.fetchByte())
	rhsT := bytecode.FromTypeByte(vm.fetchByte())

	rhs, err := vm.popOperand(rhsT)
	if err != nil {
		return err
	}
	lhs, err := vm.popOperand(lhsT)
	if err != nil {
		return err
	}

	var result int
	switch op {
	case bytecode.ADD:
		result = lhs + rhs
	case bytecode.SUB:
		result = lhs - rhs
	case bytecode.MUL:
		result = lhs * rhs
	case bytecode.DIV:
		if rhs == 0 {
			return fault(vm.pc, "division by zero")
		}
		result = lhs / rhs
	case bytecode.MOD:
		if rhs == 0 {
			return fault(vm.pc, "division by zero")
		}
		result = lhs % rhs
	case bytecode.LSH:
		result = lhs << uint(rhs&0xF)
	case bytecode.RSH:
		result = lhs >> uint(rhs&0xF)
	case bytecode.EQ:
		result = boolToInt(lhs == rhs)
	case bytecode.NE:
		result = boolToInt(lhs != rhs)
	case bytecode.GT:
		result = boolToInt(lhs > rhs)
	case bytecode.GE:
		result = boolToInt(lhs >= rhs)
	case bytecode.LT:
		result = boolToInt(lhs < rhs)
	case bytecode.LE:
		result = boolToInt(lhs <= rhs)
	case bytecode.AND:
		result = boolToInt(lhs != 0 && rhs != 0)
	case bytecode.OR:
		result = boolToInt(lhs != 0 || rhs != 0)
	case bytecode.XOR, bytecode.BIT_XOR:
		result = lhs ^ rhs
	case bytecode.BIT_AND:
		result = lhs & rhs
	case bytecode.BIT_OR:
		result = lhs | rhs
	default:
		return fault(vm.pc, "unsupported binary opcode %s", op)
	}

	resultT := bytecode.ResultType(op, lhsT, rhsT)
	return vm.pushOperand(resultT, result&mask(resultT.Width()))
}

func (vm *VM) execUnaryMinus() error {
	t := bytecode.FromTypeByte(vm.fetchByte())
	v, err := vm.popOperand(t)
	if err != nil {
		return err
	}
	result := (-v) & mask(types.INT.Width())
	return vm.pushOperand(types.INT, result)
}

func (vm *VM) execConstant() error {
	t := bytecode.FromTypeByte(vm.fetchByte())
	w := t.Width()
	var v int
	if w == 1 {
		v = int(vm.fetchByte())
	} else {
		v = vm.fetchShort()
	}
	return vm.pushWidth(w, v)
}

func (vm *VM) execLoadVariable() error {
	t := bytecode.FromTypeByte(vm.fetchByte())
	scope := bytecode.VariableScope(vm.fetchByte())
	mode := bytecode.AddressMode(vm.fetchByte())
	addr := vm.fetchSignedShort()

	base := vm.actualAddr(scope, addr)

	switch mode {
	case bytecode.DEFAULT:
		return vm.pushWidth(t.Width(), vm.readMem(base, t.Width()))
	case bytecode.REFERENCE:
		return vm.pushWidth(types.CARD.Width(), base)
	case bytecode.POINTER:
		target := vm.readMem(base, types.CARD.Width())
		return vm.pushWidth(t.Width(), vm.readMem(target, t.Width()))
	case bytecode.OFFSET:
		idx, err := vm.popOperand(types.CARD)
		if err != nil {
			return err
		}
		elemAddr := base + idx*t.Width()
		return vm.pushWidth(t.Width(), vm.readMem(elemAddr, t.Width()))
	default:
		return fault(vm.pc, "unknown address mode %s", mode)
	}
}

func (vm *VM) execStoreVariable() error {
	t := bytecode.FromTypeByte(vm.fetchByte())
	scope := bytecode.VariableScope(vm.fetchByte())
	mode := bytecode.AddressMode(vm.fetchByte())
	addr := vm.fetchSignedShort()

	base := vm.actualAddr(scope, addr)

	switch mode {
	case bytecode.DEFAULT:
		v, err := vm.popOperand(t)
		if err != nil {
			return err
		}
		vm.writeMem(base, t.Width(), v)
		return nil
	case bytecode.POINTER:
		v, err := vm.popOperand(t)
		if err != nil {
			return err
		}
		target := vm.readMem(base, types.CARD.Width())
		vm.writeMem(target, t.Width(), v)
		return nil
	case bytecode.OFFSET:
		idx, err := vm.popOperand(types.CARD)
		if err != nil {
			return err
		}
		v, err := vm.popOperand(t)
		if err != nil {
			return err
		}
		elemAddr := base + idx*t.Width()
		vm.writeMem(elemAddr, t.Width(), v)
		return nil
	default:
		return fault(vm.pc, "unsupported address mode %s for store", mode)
	}
}

func (vm *VM) execCall() error {
	_ = bytecode.FromTypeByte(vm.fetchByte()) // return type: informs the caller's use of the result, not the callee
	localsSize := vm.fetchShort()
	target := vm.fetchShort()

	returnOffset := vm.pc - startProgram
	savedFP := vm.fp

	if err := vm.pushWidth(returnAddrWidth, returnOffset); err != nil {
		return err
	}
	if err := vm.pushWidth(savedFPWidth, savedFP); err != nil {
		return err
	}

	vm.fp = vm.wsp
	if vm.fp+localsSize > endLocals+1 {
		return fault(vm.pc, "work stack overflow reserving locals")
	}
	for i := 0; i < localsSize; i++ {
		vm.mem[vm.fp+i] = 0
	}
	vm.wsp = vm.fp + localsSize

	vm.pc = startProgram + target
	return nil
}

// execReturn pops the return value (if any), tears down the current
// frame, and either resumes the caller or halts the VM if this was the
// entry frame (no caller to resume).
func (vm *VM) execReturn() (halted bool, err error) {
	t := bytecode.FromTypeByte(vm.fetchByte())

	var retVal int
	hasValue := t != types.VOID
	if hasValue {
		retVal, err = vm.popOperand(t)
		if err != nil {
			return false, err
		}
	}

	if vm.fp == startLocals {
		// Entry frame: no caller to resume.
		return true, nil
	}

	vm.wsp = vm.fp
	savedFP, err := vm.popWidth(2)
	if err != nil {
		return false, err
	}
	returnOffset, err := vm.popWidth(2)
	if err != nil {
		return false, err
	}

	vm.fp = savedFP
	if hasValue {
		if err := vm.pushOperand(t, retVal); err != nil {
			return false, err
		}
	}
	vm.pc = startProgram + returnOffset
	return false, nil
}

func (vm *VM) execCast() error {
	from := bytecode.FromTypeByte(vm.fetchByte())
	to := bytecode.FromTypeByte(vm.fetchByte())
	v, err := vm.popOperand(from)
	if err != nil {
		return err
	}
	return vm.pushOperand(to, v&mask(to.Width()))
}

func (vm *VM) execDevPrint() error {
	t := bytecode.FromTypeByte(vm.fetchByte())
	v, err := vm.popOperand(t)
	if err != nil {
		return err
	}
	_, werr := fmt.Fprintln(vm.out, v)
	return werr
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func mask(widthBytes int) int {
	if widthBytes == 1 {
		return 0xFF
	}
	return 0xFFFF
}
