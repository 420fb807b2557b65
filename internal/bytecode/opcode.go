// Package bytecode implements Action!'s compact stack-oriented
// instruction encoding: the opcode table, the emitter that walks a
// typed AST into a byte-oriented program image, and a disassembler for
// debugging.
package bytecode

import "github.com/action-lang/actc/internal/types"

// Op is a single bytecode instruction's opcode byte.
type Op byte

const (
	NOP Op = iota
	BREAK

	// Binary arithmetic/relational/logical operators: op(1), lhs-type(1), rhs-type(1).
	ADD
	SUB
	MUL
	DIV
	MOD
	LSH
	RSH
	EQ
	NE
	GT
	GE
	LT
	LE
	AND
	OR
	XOR
	BIT_AND
	BIT_OR
	BIT_XOR

	UNARY_MINUS // op(1), type(1)

	NUMERICAL_CONSTANT // op(1), type(1), value(1 or 2, little-endian)

	LOAD_VARIABLE  // op(1), type(1), scope(1), addr_mode(1), addr(2)
	STORE_VARIABLE // op(1), type(1), scope(1), addr_mode(1), addr(2)

	JUMP           // op(1), target(2)
	JUMP_IF_FALSE  // op(1), type(1), target(2)

	ROUTINE_CALL // op(1), return-type(1), locals-size(2), target(2)
	RETURN       // op(1), type(1)

	CAST     // op(1), from-type(1), to-type(1)
	DEVPRINT // op(1), type(1)

	POP // op(1), type(1)
	DUP // op(1), type(1)
)

var opNames = [...]string{
	NOP: "NOP", BREAK: "BREAK",
	ADD: "ADD", SUB: "SUB", MUL: "MUL", DIV: "DIV", MOD: "MOD",
	LSH: "LSH", RSH: "RSH",
	EQ: "EQ", NE: "NE", GT: "GT", GE: "GE", LT: "LT", LE: "LE",
	AND: "AND", OR: "OR", XOR: "XOR",
	BIT_AND: "BIT_AND", BIT_OR: "BIT_OR", BIT_XOR: "BIT_XOR",
	UNARY_MINUS: "UNARY_MINUS", NUMERICAL_CONSTANT: "NUMERICAL_CONSTANT",
	LOAD_VARIABLE: "LOAD_VARIABLE", STORE_VARIABLE: "STORE_VARIABLE",
	JUMP: "JUMP", JUMP_IF_FALSE: "JUMP_IF_FALSE",
	ROUTINE_CALL: "ROUTINE_CALL", RETURN: "RETURN",
	CAST: "CAST", DEVPRINT: "DEVPRINT",
	POP: "POP", DUP: "DUP",
}

func (o Op) String() string {
	if int(o) < len(opNames) && opNames[o] != "" {
		return opNames[o]
	}
	return "UNKNOWN_OP"
}

// VariableScope tags which memory partition a LOAD_VARIABLE/STORE_VARIABLE
// instruction addresses.
type VariableScope byte

const (
	GLOBAL VariableScope = iota
	LOCAL
	PARAM
	ROUTINE_REFERENCE
)

func (s VariableScope) String() string {
	switch s {
	case GLOBAL:
		return "GLB"
	case LOCAL:
		return "LOC"
	case PARAM:
		return "PRM"
	case ROUTINE_REFERENCE:
		return "RTR"
	default:
		return "???"
	}
}

// AddressMode selects how the address operand of a variable instruction
// is interpreted.
type AddressMode byte

const (
	DEFAULT AddressMode = iota
	POINTER
	REFERENCE
	OFFSET
)

func (m AddressMode) String() string {
	switch m {
	case DEFAULT:
		return "DEF"
	case POINTER:
		return "PTR"
	case REFERENCE:
		return "REF"
	case OFFSET:
		return "OFF"
	default:
		return "???"
	}
}

// TypeByte encodes a types.Fundamental using the byte values fixed by
// the instruction set: BYTE=0, CHAR=1, INT=2, CARD=3, VOID=4.
func TypeByte(f types.Fundamental) byte { return byte(f) }

// FromTypeByte decodes a type byte back into a types.Fundamental.
func FromTypeByte(b byte) types.Fundamental { return types.Fundamental(b) }

// isConditional reports whether op is one of the relational/logical
// comparisons that always produce a BYTE result, mirroring ast.Op.IsConditional.
func isConditional(op Op) bool {
	switch op {
	case EQ, NE, GT, GE, LT, LE, AND, OR:
		return true
	default:
		return false
	}
}

// ResultType computes the result type of a binary instruction from its
// recorded operand types, following the same promotion rules the
// emitter applied when it chose those operand type bytes: relational/
// logical operators always yield BYTE, MUL/DIV/MOD always yield INT,
// everything else yields the wider of the two operand types. The VM
// uses this at run time since it only has the encoded operand types,
// not the original typed expression tree.
func ResultType(op Op, lhs, rhs types.Fundamental) types.Fundamental {
	switch {
	case isConditional(op):
		return types.BYTE
	case op == MUL || op == DIV || op == MOD:
		return types.INT
	default:
		return types.Promote(lhs, rhs)
	}
}

// The mapping from ast.Op to Op is the binaryOp table in emitter.go.
