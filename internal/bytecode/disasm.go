package bytecode

import (
	"fmt"
	"strings"

	"github.com/action-lang/actc/internal/types"
)

// RoutineNameAt returns the name of the routine whose code contains
// the code-relative offset pc (i.e. an address with the VM's program
// base already subtracted), or "" if pc falls before the first
// routine or img carries no symbol table.
func (img *Image) RoutineNameAt(pc int) string {
	best := -1
	name := ""
	for addr, n := range img.Symbols {
		if addr <= pc && addr > best {
			best = addr
			name = n
		}
	}
	return name
}

// Text renders a human-readable disassembly of a program image, one
// instruction per line, in the spirit of a debug listing: offset,
// mnemonic, and decoded operands. This is an ambient debugging tool,
// not part of the four core subsystems, and carries no compiler
// authority of its own.
func Text(img *Image) string {
	var sb strings.Builder
	code := img.Code

	if img.DataSize > 0 {
		fmt.Fprintf(&sb, "%04X  .DATA (%d bytes): % X\n", 0, img.DataSize, code[:img.DataSize])
	}

	pc := img.DataSize
	for pc < len(code) {
		start := pc
		op := Op(code[pc])
		pc++
		fmt.Fprintf(&sb, "%04X  %-20s", start, op)

		switch op {
		case NOP, BREAK:
			// no operands
		case ADD, SUB, MUL, DIV, MOD, LSH, RSH, EQ, NE, GT, GE, LT, LE,
			AND, OR, XOR, BIT_AND, BIT_OR, BIT_XOR:
			lhs, rhs := types.Fundamental(code[pc]), types.Fundamental(code[pc+1])
			pc += 2
			fmt.Fprintf(&sb, "%s, %s", lhs, rhs)
		case UNARY_MINUS:
			t := types.Fundamental(code[pc])
			pc++
			fmt.Fprintf(&sb, "%s", t)
		case NUMERICAL_CONSTANT:
			t := types.Fundamental(code[pc])
			pc++
			width := t.Width()
			val := readLE(code, pc, width)
			pc += width
			fmt.Fprintf(&sb, "%s, %d", t, val)
		case LOAD_VARIABLE, STORE_VARIABLE:
			t := types.Fundamental(code[pc])
			scope := VariableScope(code[pc+1])
			mode := AddressMode(code[pc+2])
			addr := int(int16(readLE(code, pc+3, 2)))
			pc += 5
			fmt.Fprintf(&sb, "%s, %s, %s, %d", t, scope, mode, addr)
		case JUMP:
			target := readLE(code, pc, 2)
			pc += 2
			fmt.Fprintf(&sb, "%04X", target)
		case JUMP_IF_FALSE:
			t := types.Fundamental(code[pc])
			pc++
			target := readLE(code, pc, 2)
			pc += 2
			fmt.Fprintf(&sb, "%s, %04X", t, target)
		case ROUTINE_CALL:
			retT := types.Fundamental(code[pc])
			localsSize := readLE(code, pc+1, 2)
			target := readLE(code, pc+3, 2)
			pc += 5
			fmt.Fprintf(&sb, "%s, locals=%d, %04X", retT, localsSize, target)
		case RETURN, DEVPRINT, POP, DUP:
			t := types.Fundamental(code[pc])
			pc++
			fmt.Fprintf(&sb, "%s", t)
		case CAST:
			from, to := types.Fundamental(code[pc]), types.Fundamental(code[pc+1])
			pc += 2
			fmt.Fprintf(&sb, "%s -> %s", from, to)
		default:
			fmt.Fprintf(&sb, "<unknown opcode 0x%02X>", byte(op))
			sb.WriteString("\n")
			return sb.String()
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

func readLE(data []byte, pos, width int) int {
	v := 0
	for i := 0; i < width; i++ {
		v |= int(data[pos+i]) << (8 * i)
	}
	return v
}
