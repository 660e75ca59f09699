package emitter

import (
	"github.com/raymyers/ralph-jit/pkg/jvmtype"
	"github.com/raymyers/ralph-jit/pkg/x86"
)

// sseMove returns the scalar move for a float or double value
func (ec *Context) sseMove(typ jvmtype.Type) x86.Op {
	if typ == jvmtype.Double {
		return x86.MOVSD
	}
	return x86.MOVSS
}

// LoadToXMM puts a float or double item into an xmm register
func (it *Item) LoadToXMM(ec *Context) {
	ec.checkLive(it, "load to xmm")
	if !it.typ.IsFloat() {
		Fatalf("load to xmm", it, ErrTypeMismatch, "%s is not a floating point type", it.typ)
	}
	if it.IsXMM() {
		return
	}
	reg := ec.requestXMM(it.typ, it.id)
	mov := ec.sseMove(it.typ)
	size := 4
	if it.typ.IsWide() {
		size = 8
	}
	switch loc := it.loc.(type) {
	case inGPR:
		if it.typ.IsWide() {
			ec.Emit(x86.MOVQ, 0, reg, loc.reg)
		} else {
			ec.Emit(x86.MOVD, 0, reg, loc.reg)
		}
	case inPair:
		ec.Emit(x86.PUSH, 0, loc.msb)
		ec.Emit(x86.PUSH, 0, loc.lsb)
		ec.Emit(mov, size, reg, ec.sp(0))
		ec.adjustSP(8)
	case inLocal:
		ec.Emit(mov, size, reg, ec.bp(int(loc.offset)))
	case inConst:
		if it.typ.IsWide() {
			if ec.mode.Is64() {
				wide64{}.pushConstant(ec, it, loc.value)
			} else {
				wide32{}.pushConstant(ec, it, loc.value)
			}
			ec.Emit(mov, size, reg, ec.sp(0))
			ec.adjustSP(8)
		} else {
			ec.pushWordConstant(it.typ, loc.value)
			ec.Emit(mov, size, reg, ec.sp(0))
			ec.adjustSP(ec.SlotSize())
		}
	case onFPU:
		ec.FxchToTos(it)
		ec.fpuPop(it)
		n := ec.SlotSize()
		if it.typ.IsWide() {
			n = 8
		}
		ec.adjustSP(-n)
		ec.fpuStore(it, ec.sp(0))
		ec.Emit(mov, size, reg, ec.sp(0))
		ec.adjustSP(n)
	case onStack:
		ec.vstack.popNative(it)
		ec.Emit(mov, size, reg, ec.sp(0))
		ec.adjustSP(ec.StackBytes(it.typ))
	default:
		Fatal("load to xmm", it, ErrInvalidKind)
	}
	it.cleanup(ec)
	it.loc = inXMM{reg}
	ec.verifyItem(it)
}
