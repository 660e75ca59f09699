package emitter

import (
	"github.com/raymyers/ralph-jit/pkg/handle"
	"github.com/raymyers/ralph-jit/pkg/jvmtype"
	"github.com/raymyers/ralph-jit/pkg/x86"
)

// Word items hold int, float and reference values: one stack slot, one
// register. References are 64 bits wide in 64-bit mode.

// loadWordTo moves the value into reg, which the item already owns
func (it *Item) loadWordTo(ec *Context, reg x86.Register) {
	size := ec.WordSize(it.typ)
	switch loc := it.loc.(type) {
	case inGPR:
		if loc.reg != reg {
			ec.Emit(x86.MOV, 0, reg, loc.reg)
			ec.gprs.Release(loc.reg)
		}
	case inLocal:
		ec.Emit(x86.MOV, size, reg, ec.bp(int(loc.offset)))
	case inConst:
		ec.loadWordConstant(it.typ, loc.value, reg)
	case onFPU:
		ec.FxchToTos(it)
		ec.fpuPop(it)
		ec.adjustSP(-ec.SlotSize())
		ec.fpuStore(it, ec.sp(0))
		ec.Emit(x86.POP, 0, ec.slotReg(reg))
	case inXMM:
		ec.Emit(x86.MOVD, 0, reg, loc.reg)
		ec.xmms.Release(loc.reg)
	case onStack:
		ec.vstack.popNative(it)
		ec.Emit(x86.POP, 0, ec.slotReg(reg))
	default:
		Fatal("load", it, ErrInvalidKind)
	}
	it.loc = inGPR{reg}
}

func (ec *Context) loadWordConstant(typ jvmtype.Type, c Constant, reg x86.Register) {
	switch typ {
	case jvmtype.Int:
		ec.loadImm(reg, int64(int32(c.Bits)))
	case jvmtype.Float:
		ec.loadImm(reg, int64(int32(floatBits(typ, c))))
	case jvmtype.Reference:
		if c.Sym == "" {
			ec.Emit(x86.XOR, 0, reg, reg)
		} else {
			ec.Emit(x86.MOV, 0, reg, x86.Label(c.Sym))
		}
	default:
		Fatalf("load constant", nil, ErrTypeMismatch, "%s is not a word type", typ)
	}
}

// loadImm sets reg to v, using xor for zero
func (ec *Context) loadImm(reg x86.Register, v int64) {
	if v == 0 {
		ec.Emit(x86.XOR, 0, reg, reg)
		return
	}
	ec.Emit(x86.MOV, 0, reg, x86.Imm(v))
}

func (ec *Context) pushWordConstant(typ jvmtype.Type, c Constant) {
	switch typ {
	case jvmtype.Int:
		ec.Emit(x86.PUSH, 0, x86.Imm(int32(c.Bits)))
	case jvmtype.Float:
		ec.Emit(x86.PUSH, 0, x86.Imm(int32(floatBits(typ, c))))
	case jvmtype.Reference:
		if c.Sym == "" {
			ec.Emit(x86.PUSH, 0, x86.Imm(0))
		} else {
			ec.Emit(x86.PUSH, 0, x86.Label(c.Sym))
		}
	default:
		Fatalf("push constant", nil, ErrTypeMismatch, "%s is not a word type", typ)
	}
}

func (it *Item) pushWord(ec *Context) {
	slot := ec.SlotSize()
	switch loc := it.loc.(type) {
	case inGPR:
		ec.Emit(x86.PUSH, 0, ec.slotReg(loc.reg))
	case inLocal:
		ec.Emit(x86.PUSH, slot, ec.bp(int(loc.offset)))
	case inConst:
		ec.pushWordConstant(it.typ, loc.value)
	case onFPU:
		ec.FxchToTos(it)
		ec.fpuPop(it)
		ec.adjustSP(-slot)
		ec.fpuStore(it, ec.sp(0))
	case inXMM:
		ec.adjustSP(-slot)
		ec.Emit(x86.MOVSS, 4, ec.sp(0), loc.reg)
	case onStack:
		ec.vstack.popNative(it)
	default:
		Fatal("push", it, ErrInvalidKind)
	}
	it.cleanup(ec)
	it.loc = onStack{}
	ec.vstack.pushNative(it)
}

func (it *Item) pushWordToFPU(ec *Context) {
	slot := ec.SlotSize()
	switch loc := it.loc.(type) {
	case inGPR:
		ec.Emit(x86.PUSH, 0, ec.slotReg(loc.reg))
		ec.fpuLoad(it, ec.sp(0))
		ec.adjustSP(slot)
	case inLocal:
		ec.fpuLoad(it, ec.bp(int(loc.offset)))
	case inConst:
		ec.pushWordConstant(it.typ, loc.value)
		ec.fpuLoad(it, ec.sp(0))
		ec.adjustSP(slot)
	case onFPU:
		// already there; the value must be on top
		ec.fpuPop(it)
		ec.fpuPush(it)
		return
	case inXMM:
		ec.adjustSP(-slot)
		ec.Emit(x86.MOVSS, 4, ec.sp(0), loc.reg)
		ec.fpuLoad(it, ec.sp(0))
		ec.adjustSP(slot)
	case onStack:
		ec.vstack.popNative(it)
		ec.fpuLoad(it, ec.sp(0))
		ec.adjustSP(slot)
	default:
		Fatal("push to fpu", it, ErrInvalidKind)
	}
	it.cleanup(ec)
	it.loc = onFPU{}
	ec.fpuPush(it)
}

func (it *Item) cloneWord(ec *Context) *Item {
	switch it.loc.(type) {
	case inGPR:
		reg := ec.requestGPR(it.typ, handle.None, false)
		if loc, ok := it.loc.(inGPR); ok {
			ec.Emit(x86.MOV, 0, reg, loc.reg)
			return ec.CreateGPR(it.typ, reg)
		}
		// the request flushed it
		ec.ReleaseRegister(reg)
		return it.cloneWord(ec)
	case onStack:
		ec.Emit(x86.PUSH, ec.SlotSize(), ec.sp(0))
		return ec.CreateStack(it.typ)
	}
	Fatal("clone", it, ErrInvalidKind)
	return nil
}
