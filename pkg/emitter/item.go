package emitter

import (
	"fmt"
	"math"

	"github.com/raymyers/ralph-jit/pkg/handle"
	"github.com/raymyers/ralph-jit/pkg/jvmtype"
	"github.com/raymyers/ralph-jit/pkg/regpool"
	"github.com/raymyers/ralph-jit/pkg/x86"
)

// location is the kind-specific payload of an Item. Exactly one variant is
// active at a time; an Item without a location has kind KindNone.
type location interface {
	kind() Kind
}

// inGPR holds a word value, or a wide value in 64-bit mode
type inGPR struct{ reg x86.Register }

// inPair holds a wide value in two 32-bit registers
type inPair struct{ lsb, msb x86.Register }

type inXMM struct{ reg x86.Register }

// inLocal is a value still in its frame slot
type inLocal struct{ offset int16 }

type inConst struct{ value Constant }

// onStack is a value on the native stack
type onStack struct{}

// onFPU is a value on the x87 register stack
type onFPU struct{}

func (inGPR) kind() Kind { return KindGPR }
func (inPair) kind() Kind { return KindGPR }
func (inXMM) kind() Kind { return KindXMM }
func (inLocal) kind() Kind { return KindLocal }
func (inConst) kind() Kind { return KindConstant }
func (onStack) kind() Kind { return KindStack }
func (onFPU) kind() Kind { return KindFPUStack }

// Constant is the immediate value of a constant item. Which field is
// meaningful depends on the item type.
type Constant struct {
	Bits int64   // int and long
	F    float64 // float and double
	Sym  string  // reference literal, empty for null
}

// Item is one operand stack value during compilation
type Item struct {
	id       handle.ID
	typ      jvmtype.Type
	loc      location
	released bool
}

// ID returns the handle identifying the item in the ownership tables
func (it *Item) ID() handle.ID { return it.id }

// Type returns the value type, fixed at creation
func (it *Item) Type() jvmtype.Type { return it.typ }

// Kind returns the current location class
func (it *Item) Kind() Kind {
	if it.loc == nil {
		return KindNone
	}
	return it.loc.kind()
}

// IsReleased reports whether the item went back to its factory
func (it *Item) IsReleased() bool { return it.released }

func (it *Item) IsGPR() bool { return it.Kind() == KindGPR }

func (it *Item) IsLocal() bool { return it.Kind() == KindLocal }

func (it *Item) IsConstant() bool { return it.Kind() == KindConstant }

func (it *Item) IsStack() bool { return it.Kind() == KindStack }

func (it *Item) IsFPUStack() bool { return it.Kind() == KindFPUStack }

func (it *Item) IsXMM() bool { return it.Kind() == KindXMM }

// Register returns the register of a word item, or of a wide item in
// 64-bit mode.
func (it *Item) Register() x86.Register {
	loc, ok := it.loc.(inGPR)
	if !ok {
		Fatalf("register", it, ErrInvalidKind, "not in a single register")
	}
	return loc.reg
}

// LsbRegister returns the register holding the low 32 bits of a wide item
func (it *Item) LsbRegister() x86.Register {
	loc, ok := it.loc.(inPair)
	if !ok {
		Fatalf("lsb register", it, ErrInvalidKind, "not in a register pair")
	}
	return loc.lsb
}

// MsbRegister returns the register holding the high 32 bits of a wide item
func (it *Item) MsbRegister() x86.Register {
	loc, ok := it.loc.(inPair)
	if !ok {
		Fatalf("msb register", it, ErrInvalidKind, "not in a register pair")
	}
	return loc.msb
}

// XMMRegister returns the SSE register of the item
func (it *Item) XMMRegister() x86.Register {
	loc, ok := it.loc.(inXMM)
	if !ok {
		Fatalf("xmm register", it, ErrInvalidKind, "not in an xmm register")
	}
	return loc.reg
}

// OffsetToFP returns the frame pointer offset of a local item. For wide
// items this addresses the low word.
func (it *Item) OffsetToFP() int16 {
	loc, ok := it.loc.(inLocal)
	if !ok {
		Fatalf("offset", it, ErrInvalidKind, "not a local")
	}
	return loc.offset
}

// MsbOffsetToFP returns the frame pointer offset of the high word of a
// wide local in 32-bit mode
func (it *Item) MsbOffsetToFP() int16 {
	return msbOffset(it.OffsetToFP())
}

// msbOffset is the offset of the high word of a wide value whose low word
// is at offset
func msbOffset(offset int16) int16 { return offset + 4 }

func (it *Item) constant(want jvmtype.Type) Constant {
	loc, ok := it.loc.(inConst)
	if !ok {
		Fatalf("constant", it, ErrInvalidKind, "not a constant")
	}
	if it.typ != want {
		Fatalf("constant", it, ErrTypeMismatch, "want %s", want)
	}
	return loc.value
}

// Value returns the raw constant payload
func (it *Item) Value() Constant {
	return it.constant(it.typ)
}

// IntValue returns the value of an int constant
func (it *Item) IntValue() int32 { return int32(it.constant(jvmtype.Int).Bits) }

// LongValue returns the value of a long constant
func (it *Item) LongValue() int64 { return it.constant(jvmtype.Long).Bits }

// FloatValue returns the value of a float constant
func (it *Item) FloatValue() float32 { return float32(it.constant(jvmtype.Float).F) }

// DoubleValue returns the value of a double constant
func (it *Item) DoubleValue() float64 { return it.constant(jvmtype.Double).F }

// RefValue returns the symbol of a reference constant, empty for null
func (it *Item) RefValue() string { return it.constant(jvmtype.Reference).Sym }

// IsNullConstant reports whether the item is the null reference constant
func (it *Item) IsNullConstant() bool { return it.RefValue() == "" }

// registers returns the general purpose registers the item occupies
func (it *Item) registers() []x86.Register {
	switch loc := it.loc.(type) {
	case inGPR:
		return []x86.Register{loc.reg}
	case inPair:
		return []x86.Register{loc.lsb, loc.msb}
	}
	return nil
}

// Uses reports whether the item occupies reg, comparing register groups
// so that eax and rax count as the same register.
func (it *Item) Uses(reg x86.Register) bool {
	if loc, ok := it.loc.(inXMM); ok {
		return loc.reg == reg
	}
	for _, r := range it.registers() {
		if r.SameGroup(reg) {
			return true
		}
	}
	return false
}

func (it *Item) usesAny(regs []x86.Register) bool {
	for _, r := range regs {
		if it.Uses(r) {
			return true
		}
	}
	return false
}

// UsesVolatileRegister reports whether the item lives in a register that
// a called method may overwrite. All xmm registers are volatile.
func (it *Item) UsesVolatileRegister(gprs *regpool.Pool) bool {
	if it.IsXMM() {
		return true
	}
	for _, r := range it.registers() {
		if !gprs.IsCallerSaved(r) {
			return true
		}
	}
	return false
}

func (it *Item) String() string {
	if it == nil {
		return "<nil>"
	}
	var where string
	switch loc := it.loc.(type) {
	case inGPR:
		where = "gpr(" + loc.reg.String() + ")"
	case inPair:
		where = "gpr(" + loc.lsb.String() + ":" + loc.msb.String() + ")"
	case inXMM:
		where = "xmm(" + loc.reg.String() + ")"
	case inLocal:
		where = fmt.Sprintf("local(%d)", loc.offset)
	case inConst:
		where = "const(" + formatConstant(it.typ, loc.value) + ")"
	case onStack:
		where = "stack"
	case onFPU:
		where = "fpu"
	default:
		where = "none"
	}
	if it.released {
		where += ",released"
	}
	return fmt.Sprintf("%s%s:%s", it.typ, it.id, where)
}

func formatConstant(typ jvmtype.Type, c Constant) string {
	switch typ {
	case jvmtype.Int, jvmtype.Long:
		return fmt.Sprintf("%d", c.Bits)
	case jvmtype.Float, jvmtype.Double:
		return fmt.Sprintf("%g", c.F)
	case jvmtype.Reference:
		if c.Sym == "" {
			return "null"
		}
		return c.Sym
	}
	return "?"
}

// floatBits returns the IEEE bit pattern of a float or double constant
func floatBits(typ jvmtype.Type, c Constant) int64 {
	if typ == jvmtype.Float {
		return int64(math.Float32bits(float32(c.F)))
	}
	return int64(math.Float64bits(c.F))
}
