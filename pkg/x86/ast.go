package x86

import (
	"fmt"
	"strings"
)

// Op is an instruction mnemonic
type Op int

const (
	LABEL Op = iota // pseudo instruction binding a Label

	// Data movement
	MOV
	MOVSXD
	LEA
	PUSH
	POP
	XCHG

	// Integer arithmetic
	ADD
	ADC
	SUB
	SBB
	AND
	OR
	XOR
	IMUL
	NEG
	INC
	DEC
	SAR
	CMP
	TEST

	// Control flow
	JMP
	JA
	JAE
	JB
	JBE
	JZ
	JNZ
	CALL
	RET

	// x87
	FLD
	FILD
	FSTP
	FISTP
	FXCH
	FADDP
	FSUBP
	FMULP
	FDIVP
	FCHS
	FPREM
	FUCOMPP
	FNSTSW
	SAHF

	// SSE scalar
	MOVSS
	MOVSD
	MOVD
	MOVQ
	ADDSS
	ADDSD
	SUBSS
	SUBSD
	MULSS
	MULSD
	DIVSS
	DIVSD
	CVTSI2SS
	CVTSI2SD
	CVTTSS2SI
	CVTTSD2SI
	CVTSS2SD
	CVTSD2SS

	numOps
)

var opNames = [...]string{
	LABEL:     "label",
	MOV:       "mov",
	MOVSXD:    "movsxd",
	LEA:       "lea",
	PUSH:      "push",
	POP:       "pop",
	XCHG:      "xchg",
	ADD:       "add",
	ADC:       "adc",
	SUB:       "sub",
	SBB:       "sbb",
	AND:       "and",
	OR:        "or",
	XOR:       "xor",
	IMUL:      "imul",
	NEG:       "neg",
	INC:       "inc",
	DEC:       "dec",
	SAR:       "sar",
	CMP:       "cmp",
	TEST:      "test",
	JMP:       "jmp",
	JA:        "ja",
	JAE:       "jae",
	JB:        "jb",
	JBE:       "jbe",
	JZ:        "jz",
	JNZ:       "jnz",
	CALL:      "call",
	RET:       "ret",
	FLD:       "fld",
	FILD:      "fild",
	FSTP:      "fstp",
	FISTP:     "fistp",
	FXCH:      "fxch",
	FADDP:     "faddp",
	FSUBP:     "fsubp",
	FMULP:     "fmulp",
	FDIVP:     "fdivp",
	FCHS:      "fchs",
	FPREM:     "fprem",
	FUCOMPP:   "fucompp",
	FNSTSW:    "fnstsw",
	SAHF:      "sahf",
	MOVSS:     "movss",
	MOVSD:     "movsd",
	MOVD:      "movd",
	MOVQ:      "movq",
	ADDSS:     "addss",
	ADDSD:     "addsd",
	SUBSS:     "subss",
	SUBSD:     "subsd",
	MULSS:     "mulss",
	MULSD:     "mulsd",
	DIVSS:     "divss",
	DIVSD:     "divsd",
	CVTSI2SS:  "cvtsi2ss",
	CVTSI2SD:  "cvtsi2sd",
	CVTTSS2SI: "cvttss2si",
	CVTTSD2SI: "cvttsd2si",
	CVTSS2SD:  "cvtss2sd",
	CVTSD2SS:  "cvtsd2ss",
}

func (op Op) String() string {
	if op >= 0 && op < numOps {
		return opNames[op]
	}
	return fmt.Sprintf("op(%d)", int(op))
}

// IsJump reports whether op transfers control to a label
func (op Op) IsJump() bool { return op >= JMP && op <= JNZ }

// IsConditionalJump reports whether op is a conditional branch
func (op Op) IsConditionalJump() bool { return op > JMP && op <= JNZ }

// IsFPU reports whether op is an x87 instruction
func (op Op) IsFPU() bool { return op >= FLD && op <= FNSTSW }

// --- Operands ---

// Operand is an instruction operand
type Operand interface {
	implOperand()
}

func (Register) implOperand() {}

// Imm is an immediate operand
type Imm int64

func (Imm) implOperand() {}

// Label is a branch target or a symbolic address
type Label string

func (Label) implOperand() {}

// Mem is a memory operand [Base + Index*Scale + Disp]
type Mem struct {
	Base  Register
	Index Register // NoRegister when unused
	Scale int      // 1, 2, 4 or 8; ignored without Index
	Disp  int
}

func (Mem) implOperand() {}

// MemAt returns the memory operand [base + disp]
func MemAt(base Register, disp int) Mem {
	return Mem{Base: base, Disp: disp}
}

// MemIndexed returns the memory operand [base + index*scale + disp]
func MemIndexed(base, index Register, scale, disp int) Mem {
	return Mem{Base: base, Index: index, Scale: scale, Disp: disp}
}

func (m Mem) String() string {
	var sb strings.Builder
	sb.WriteByte('[')
	sb.WriteString(m.Base.String())
	if m.Index != NoRegister {
		fmt.Fprintf(&sb, "+%s*%d", m.Index, m.Scale)
	}
	if m.Disp > 0 {
		fmt.Fprintf(&sb, "+%d", m.Disp)
	} else if m.Disp < 0 {
		fmt.Fprintf(&sb, "%d", m.Disp)
	}
	sb.WriteByte(']')
	return sb.String()
}

// --- Instructions ---

// Instr is one emitted instruction
type Instr struct {
	Op   Op
	Size int // operand size in bytes for memory and immediate forms, 0 when implied
	Args []Operand
}

// sizeKeyword returns the NASM size keyword for a memory operand
func sizeKeyword(size int) string {
	switch size {
	case 1:
		return "byte "
	case 2:
		return "word "
	case 4:
		return "dword "
	case 8:
		return "qword "
	case 10:
		return "tword "
	}
	return ""
}

func formatOperand(arg Operand, size int) string {
	switch a := arg.(type) {
	case Register:
		return a.String()
	case Imm:
		return fmt.Sprintf("%d", int64(a))
	case Label:
		return string(a)
	case Mem:
		return sizeKeyword(size) + a.String()
	}
	return "?"
}

// Operands returns the operand list in Intel order, comma separated
func (in Instr) Operands() string {
	if in.Op == FNSTSW && len(in.Args) == 0 {
		return "ax"
	}
	parts := make([]string, len(in.Args))
	for i, a := range in.Args {
		parts[i] = formatOperand(a, in.Size)
	}
	return strings.Join(parts, ", ")
}

func (in Instr) String() string {
	if in.Op == LABEL && len(in.Args) == 1 {
		return formatOperand(in.Args[0], 0) + ":"
	}
	ops := in.Operands()
	if ops == "" {
		return in.Op.String()
	}
	return in.Op.String() + " " + ops
}

// Target returns the label operand of a jump or label instruction
func (in Instr) Target() (Label, bool) {
	for _, a := range in.Args {
		if l, ok := a.(Label); ok {
			return l, true
		}
	}
	return "", false
}
