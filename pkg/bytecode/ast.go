// Package bytecode reads a small stack bytecode assembly and compiles each
// method to x86 through the emitter.
package bytecode

import (
	"fmt"
	"strconv"
)

// Method is one parsed method
type Method struct {
	Name   string
	Stack  int // maximum operand stack depth in slots
	Args   int // local slots holding arguments
	Locals int // total local slots, arguments included
	Line   int
	Code   []Instruction
}

// Instruction is one bytecode instruction with its decoded operand
type Instruction struct {
	Op    string
	Int   int64   // integer constant or local index
	Float float64 // fconst, dconst
	Sym   string  // aconst, invoke
	Line  int
}

func (in Instruction) String() string {
	switch opcodes[in.Op].operand {
	case intOperand, localOperand:
		return fmt.Sprintf("%s %d", in.Op, in.Int)
	case floatOperand:
		return in.Op + " " + strconv.FormatFloat(in.Float, 'g', -1, 64)
	case symbolOperand:
		return in.Op + " " + in.Sym
	case optionalSymbol:
		if in.Sym != "" {
			return in.Op + " " + in.Sym
		}
	}
	return in.Op
}

// FPOps returns the floating point operations the method uses, named as
// fpcompiler.Refuses expects them
func (m *Method) FPOps() []string {
	var ops []string
	seen := make(map[string]bool)
	for _, in := range m.Code {
		op := opcodes[in.Op].fpOp
		if op != "" && !seen[op] {
			seen[op] = true
			ops = append(ops, op)
		}
	}
	return ops
}
