package emitter

import (
	"github.com/raymyers/ralph-jit/pkg/jvmtype"
	"github.com/raymyers/ralph-jit/pkg/x86"
)

// IntOp is a two operand integer operation
type IntOp int

const (
	OpAdd IntOp = iota
	OpSub
	OpMul
	OpAnd
	OpOr
	OpXor
)

var intOpNames = [...]string{"add", "sub", "mul", "and", "or", "xor"}

func (op IntOp) String() string {
	if int(op) < len(intOpNames) {
		return intOpNames[op]
	}
	return "?"
}

// IsCommutative reports whether the operands may be swapped
func (op IntOp) IsCommutative() bool { return op != OpSub }

// instr returns the instruction for the whole word, or the low word of a pair
func (op IntOp) instr() x86.Op {
	switch op {
	case OpAdd:
		return x86.ADD
	case OpSub:
		return x86.SUB
	case OpMul:
		return x86.IMUL
	case OpAnd:
		return x86.AND
	case OpOr:
		return x86.OR
	}
	return x86.XOR
}

// instrHigh returns the instruction for the high word of a pair
func (op IntOp) instrHigh() x86.Op {
	switch op {
	case OpAdd:
		return x86.ADC
	case OpSub:
		return x86.SBB
	}
	return op.instr()
}

func foldInt(op IntOp, a, b int32) int32 {
	switch op {
	case OpAdd:
		return a + b
	case OpSub:
		return a - b
	case OpMul:
		return a * b
	case OpAnd:
		return a & b
	case OpOr:
		return a | b
	}
	return a ^ b
}

func foldLong(op IntOp, a, b int64) int64 {
	switch op {
	case OpAdd:
		return a + b
	case OpSub:
		return a - b
	case OpMul:
		return a * b
	case OpAnd:
		return a & b
	case OpOr:
		return a | b
	}
	return a ^ b
}

// wordOperand returns right as the source operand of a two operand
// instruction: its register, frame slot or immediate.
func (ec *Context) wordOperand(it *Item) x86.Operand {
	switch loc := it.loc.(type) {
	case inGPR:
		return loc.reg
	case inLocal:
		return ec.bp(int(loc.offset))
	case inConst:
		return x86.Imm(int32(loc.value.Bits))
	}
	Fatal("operand", it, ErrInvalidKind)
	return nil
}

// prepareOperands loads left into a register and right into a register
// unless it can be used in place. right is the top of the stack and is
// therefore materialized first.
func (ec *Context) prepareOperands(left, right *Item) {
	right.LoadIf(ec, KindStack|KindFPUStack|KindXMM)
	left.Load(ec)
}

// retype replaces it with a new item of typ at loc, handing over the
// registers of loc. Registers of it not in loc must be released first.
func (ec *Context) retype(it *Item, typ jvmtype.Type, loc location) *Item {
	it.loc = nil
	ec.factory.release(it)
	res := ec.factory.acquire(typ, loc)
	for _, r := range res.registers() {
		ec.transfer(r, res)
	}
	ec.verifyItem(res)
	return res
}

// IntOperation computes left op right for two int items and returns the
// result. Both operands are consumed.
func (ec *Context) IntOperation(op IntOp, left, right *Item) *Item {
	ec.checkLive(left, "int "+op.String())
	ec.checkLive(right, "int "+op.String())
	if left.IsConstant() && right.IsConstant() {
		v := foldInt(op, left.IntValue(), right.IntValue())
		left.Release(ec)
		right.Release(ec)
		return ec.CreateIntConst(v)
	}
	if op.IsCommutative() && left.IsConstant() {
		left, right = right, left
	}
	ec.prepareOperands(left, right)
	ec.Emit(op.instr(), 4, left.Register(), ec.wordOperand(right))
	right.Release(ec)
	return left
}

// IntNeg negates an int item
func (ec *Context) IntNeg(v *Item) *Item {
	ec.checkLive(v, "int neg")
	if v.IsConstant() {
		c := -v.IntValue()
		v.Release(ec)
		return ec.CreateIntConst(c)
	}
	v.Load(ec)
	ec.Emit(x86.NEG, 0, v.Register())
	return v
}

// LongOperation computes left op right for two long items
func (ec *Context) LongOperation(op IntOp, left, right *Item) *Item {
	ec.checkLive(left, "long "+op.String())
	ec.checkLive(right, "long "+op.String())
	if left.IsConstant() && right.IsConstant() {
		v := foldLong(op, left.LongValue(), right.LongValue())
		left.Release(ec)
		right.Release(ec)
		return ec.CreateLongConst(v)
	}
	if op.IsCommutative() && left.IsConstant() {
		left, right = right, left
	}
	if ec.mode.Is32() {
		if op == OpMul {
			Fatalf("long mul", left, ErrNotImplemented, "non-constant long multiply in 32-bit mode")
		}
		ec.prepareOperands(left, right)
		lo, hi := ec.pairOperands(right)
		ec.Emit(op.instr(), 4, left.LsbRegister(), lo)
		ec.Emit(op.instrHigh(), 4, left.MsbRegister(), hi)
	} else {
		if c, ok := right.loc.(inConst); ok && c.value.Bits != int64(int32(c.value.Bits)) {
			// no 64-bit immediate form
			right.Load(ec)
		}
		ec.prepareOperands(left, right)
		var src x86.Operand
		switch loc := right.loc.(type) {
		case inGPR:
			src = loc.reg
		case inLocal:
			src = ec.bp(int(loc.offset))
		case inConst:
			src = x86.Imm(loc.value.Bits)
		default:
			Fatal("long "+op.String(), right, ErrInvalidKind)
		}
		ec.Emit(op.instr(), 8, left.Register(), src)
	}
	right.Release(ec)
	return left
}

// pairOperands returns the low and high word operands of a wide item in
// 32-bit mode.
func (ec *Context) pairOperands(it *Item) (lo, hi x86.Operand) {
	switch loc := it.loc.(type) {
	case inPair:
		return loc.lsb, loc.msb
	case inLocal:
		return ec.bp(int(loc.offset)), ec.bp(int(it.MsbOffsetToFP()))
	case inConst:
		l, h := wideHalves(it.typ, loc.value)
		return x86.Imm(l), x86.Imm(h)
	}
	Fatal("operand", it, ErrInvalidKind)
	return nil, nil
}

// LongNeg negates a long item
func (ec *Context) LongNeg(v *Item) *Item {
	ec.checkLive(v, "long neg")
	if v.IsConstant() {
		c := -v.LongValue()
		v.Release(ec)
		return ec.CreateLongConst(c)
	}
	v.Load(ec)
	if ec.mode.Is32() {
		ec.Emit(x86.NEG, 0, v.LsbRegister())
		ec.Emit(x86.ADC, 0, v.MsbRegister(), x86.Imm(0))
		ec.Emit(x86.NEG, 0, v.MsbRegister())
	} else {
		ec.Emit(x86.NEG, 0, v.Register())
	}
	return v
}

// IntToLong sign extends an int item
func (ec *Context) IntToLong(v *Item) *Item {
	ec.checkLive(v, "i2l")
	if v.IsConstant() {
		c := v.IntValue()
		v.Release(ec)
		return ec.CreateLongConst(int64(c))
	}
	v.Load(ec)
	reg := v.Register()
	if ec.mode.Is64() {
		r64 := reg.To64()
		ec.Emit(x86.MOVSXD, 0, r64, reg)
		return ec.retype(v, jvmtype.Long, inGPR{r64})
	}
	msb := ec.requestGPR(jvmtype.Int, v.id, false)
	ec.Emit(x86.MOV, 0, msb, reg)
	ec.Emit(x86.SAR, 0, msb, x86.Imm(31))
	return ec.retype(v, jvmtype.Long, inPair{reg, msb})
}

// LongToInt truncates a long item to its low word
func (ec *Context) LongToInt(v *Item) *Item {
	ec.checkLive(v, "l2i")
	switch loc := v.loc.(type) {
	case inConst:
		c := int32(v.LongValue())
		v.Release(ec)
		return ec.CreateIntConst(c)
	case inLocal:
		off := loc.offset
		v.Release(ec)
		return ec.CreateLocal(jvmtype.Int, off)
	}
	v.Load(ec)
	if ec.mode.Is64() {
		return ec.retype(v, jvmtype.Int, inGPR{v.Register().To32()})
	}
	lsb := v.LsbRegister()
	ec.gprs.Release(v.MsbRegister())
	return ec.retype(v, jvmtype.Int, inGPR{lsb})
}
