// Package fpcompiler emits floating point bytecode operations. Two
// backends implement the same surface: one drives the x87 register stack,
// the other uses flat SSE registers.
//
// Every operation takes its operands from the virtual stack of the
// emitter context and pushes its result back onto it.
package fpcompiler

import (
	"fmt"
	"strings"

	"github.com/raymyers/ralph-jit/pkg/emitter"
	"github.com/raymyers/ralph-jit/pkg/jvmtype"
	"github.com/raymyers/ralph-jit/pkg/x86"
)

// Compiler is the floating point operation surface used by the bytecode driver
type Compiler interface {
	Add(typ jvmtype.Type)
	Sub(typ jvmtype.Type)
	Mul(typ jvmtype.Type)
	Div(typ jvmtype.Type)
	Rem(typ jvmtype.Type)
	Neg(typ jvmtype.Type)
	// Convert converts the top value from one type to another; at least
	// one of them is float or double.
	Convert(from, to jvmtype.Type)
	// Compare pops two values and pushes -1, 0 or 1. gt selects the
	// result for unordered operands: 1 when set, -1 otherwise.
	Compare(gt bool, typ jvmtype.Type)
	// FPALoad loads an element of a float or double array
	FPALoad(typ jvmtype.Type)
}

// Backend selects a Compiler implementation
type Backend int

const (
	FPU Backend = iota
	SSE
)

func (b Backend) String() string {
	switch b {
	case FPU:
		return "fpu"
	case SSE:
		return "sse"
	}
	return fmt.Sprintf("Backend(%d)", int(b))
}

// ParseBackend parses a backend name, case insensitive
func ParseBackend(s string) (Backend, error) {
	switch strings.ToLower(s) {
	case "fpu", "x87":
		return FPU, nil
	case "sse", "sse2":
		return SSE, nil
	}
	return FPU, fmt.Errorf("unknown floating point backend %q (want fpu or sse)", s)
}

// Arrays describes the object layout of arrays
type Arrays struct {
	LengthOffset int // offset of the length field from the array reference
	DataOffset   int // offset of the first element
}

// New returns the backend b emitting through ec
func New(b Backend, ec *emitter.Context, arrays Arrays) (Compiler, error) {
	switch b {
	case FPU:
		return &fpuCompiler{ec: ec, arrays: arrays}, nil
	case SSE:
		return &sseCompiler{ec: ec, arrays: arrays}, nil
	}
	return nil, fmt.Errorf("unknown floating point backend %s", b)
}

// Refuses reports whether backend b cannot compile op for non-constant
// operands in mode. op is the operation name without type prefix, e.g.
// "rem"; conversions are "convert", or "convert_long" when one side is a
// long.
func Refuses(b Backend, mode x86.Mode, op string) bool {
	if b != SSE {
		return false
	}
	switch op {
	case "rem", "neg", "cmpl", "cmpg":
		return true
	case "convert_long":
		// cvtsi2sd and cvttsd2si need a 64-bit register
		return mode.Is32()
	}
	return false
}

func checkFloat(op string, typ jvmtype.Type) {
	if !typ.IsFloat() {
		emitter.Fatalf(op, nil, emitter.ErrTypeMismatch, "%s is not a floating point type", typ)
	}
}
