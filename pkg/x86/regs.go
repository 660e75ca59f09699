// Package x86 describes the x86 register file and records the instruction
// stream emitted by the JIT. Instructions are kept as mnemonic plus operand
// lists; binary encoding is left to the code installer.
package x86

import "fmt"

// Register is an x86 register of any class
type Register uint8

const (
	NoRegister Register = iota

	// 32-bit general purpose registers, in hardware number order
	EAX
	ECX
	EDX
	EBX
	ESP
	EBP
	ESI
	EDI
	R8D
	R9D
	R10D
	R11D
	R12D
	R13D
	R14D
	R15D

	// 64-bit general purpose registers, in hardware number order
	RAX
	RCX
	RDX
	RBX
	RSP
	RBP
	RSI
	RDI
	R8
	R9
	R10
	R11
	R12
	R13
	R14
	R15

	// SSE registers
	XMM0
	XMM1
	XMM2
	XMM3
	XMM4
	XMM5
	XMM6
	XMM7
	XMM8
	XMM9
	XMM10
	XMM11
	XMM12
	XMM13
	XMM14
	XMM15

	// x87 stack registers, relative to the current top of stack
	ST0
	ST1
	ST2
	ST3
	ST4
	ST5
	ST6
	ST7

	numRegisters
)

// Class groups registers by kind and width
type Class int

const (
	ClassNone Class = iota
	ClassGPR32
	ClassGPR64
	ClassXMM
	ClassFPU
)

func (c Class) String() string {
	names := []string{"none", "gpr32", "gpr64", "xmm", "fpu"}
	if int(c) < len(names) {
		return names[c]
	}
	return "?"
}

var gpr32Names = [...]string{
	"eax", "ecx", "edx", "ebx", "esp", "ebp", "esi", "edi",
	"r8d", "r9d", "r10d", "r11d", "r12d", "r13d", "r14d", "r15d",
}

var gpr64Names = [...]string{
	"rax", "rcx", "rdx", "rbx", "rsp", "rbp", "rsi", "rdi",
	"r8", "r9", "r10", "r11", "r12", "r13", "r14", "r15",
}

// Class returns the register class
func (r Register) Class() Class {
	switch {
	case r >= EAX && r <= R15D:
		return ClassGPR32
	case r >= RAX && r <= R15:
		return ClassGPR64
	case r >= XMM0 && r <= XMM15:
		return ClassXMM
	case r >= ST0 && r <= ST7:
		return ClassFPU
	}
	return ClassNone
}

// Nr returns the hardware register number within the class
func (r Register) Nr() int {
	switch r.Class() {
	case ClassGPR32:
		return int(r - EAX)
	case ClassGPR64:
		return int(r - RAX)
	case ClassXMM:
		return int(r - XMM0)
	case ClassFPU:
		return int(r - ST0)
	}
	return -1
}

// Size returns the register width in bytes
func (r Register) Size() int {
	switch r.Class() {
	case ClassGPR32:
		return 4
	case ClassGPR64:
		return 8
	case ClassXMM:
		return 16
	case ClassFPU:
		return 10
	}
	return 0
}

func (r Register) String() string {
	switch r.Class() {
	case ClassGPR32:
		return gpr32Names[r.Nr()]
	case ClassGPR64:
		return gpr64Names[r.Nr()]
	case ClassXMM:
		return fmt.Sprintf("xmm%d", r.Nr())
	case ClassFPU:
		return fmt.Sprintf("st%d", r.Nr())
	}
	return "noreg"
}

// IsGPR reports whether r is a general purpose register of either width
func (r Register) IsGPR() bool {
	c := r.Class()
	return c == ClassGPR32 || c == ClassGPR64
}

// IsGPR32 reports whether r is a 32-bit general purpose register
func (r Register) IsGPR32() bool { return r.Class() == ClassGPR32 }

// IsGPR64 reports whether r is a 64-bit general purpose register
func (r Register) IsGPR64() bool { return r.Class() == ClassGPR64 }

// IsXMM reports whether r is an SSE register
func (r Register) IsXMM() bool { return r.Class() == ClassXMM }

// IsFPU reports whether r is an x87 stack register
func (r Register) IsFPU() bool { return r.Class() == ClassFPU }

// SuitableForBits8 reports whether the low byte of r is addressable
// without a REX prefix (al, cl, dl, bl).
func (r Register) SuitableForBits8() bool {
	return r.IsGPR() && r.Nr() < 4
}

// To32 returns the 32-bit view of a general purpose register
func (r Register) To32() Register {
	if !r.IsGPR() {
		return r
	}
	return EAX + Register(r.Nr())
}

// To64 returns the 64-bit view of a general purpose register
func (r Register) To64() Register {
	if !r.IsGPR() {
		return r
	}
	return RAX + Register(r.Nr())
}

// Resize returns the general purpose register of the same number with the
// given width in bytes.
func (r Register) Resize(size int) Register {
	if size == 8 {
		return r.To64()
	}
	return r.To32()
}

// SameGroup reports whether a and b name the same physical register.
// eax and rax are the same group; st registers are compared by depth.
func (r Register) SameGroup(o Register) bool {
	if r.IsGPR() && o.IsGPR() {
		return r.Nr() == o.Nr()
	}
	return r == o
}

// ST returns the x87 register at the given depth below the top of stack
func ST(depth int) Register {
	if depth < 0 || depth > 7 {
		panic(fmt.Sprintf("x86: invalid fpu depth %d", depth))
	}
	return ST0 + Register(depth)
}

// XMM returns the SSE register with the given number
func XMM(nr int) Register {
	if nr < 0 || nr > 15 {
		panic(fmt.Sprintf("x86: invalid xmm register %d", nr))
	}
	return XMM0 + Register(nr)
}
