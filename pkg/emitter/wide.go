package emitter

import (
	"math"

	"github.com/raymyers/ralph-jit/pkg/handle"
	"github.com/raymyers/ralph-jit/pkg/jvmtype"
	"github.com/raymyers/ralph-jit/pkg/x86"
)

// wideStrategy implements long and double items for one code mode. It is
// chosen once when the Context is created.
type wideStrategy interface {
	load(ec *Context, it *Item)
	push(ec *Context, it *Item)
	pushToFPU(ec *Context, it *Item)
	spill(ec *Context, it *Item)
	clone(ec *Context, it *Item) *Item
}

// wideHalves splits a wide constant into its low and high 32 bits
func wideHalves(typ jvmtype.Type, c Constant) (lo, hi int32) {
	bits := c.Bits
	if typ == jvmtype.Double {
		bits = int64(math.Float64bits(c.F))
	}
	return int32(bits), int32(bits >> 32)
}

// wide32 keeps wide values in an lsb/msb pair of 32-bit registers. On the
// native stack the lsb is at the lower address.
type wide32 struct{}

func (w wide32) load(ec *Context, it *Item) {
	if it.IsGPR() {
		return
	}
	lsb := ec.requestGPR(jvmtype.Int, it.id, false)
	msb := ec.requestGPR(jvmtype.Int, it.id, false)
	w.loadTo(ec, it, lsb, msb)
}

// loadTo moves the value into lsb:msb, which the item already owns.
// For a value already in registers the source and destination pairs may
// overlap; the three cases are handled with the fewest moves.
func (wide32) loadTo(ec *Context, it *Item, lsb, msb x86.Register) {
	switch loc := it.loc.(type) {
	case inPair:
		if msb != loc.lsb {
			// msb can be written first without destroying the source lsb
			if msb != loc.msb {
				ec.Emit(x86.MOV, 0, msb, loc.msb)
				if lsb != loc.msb {
					ec.gprs.Release(loc.msb)
				}
			}
			if lsb != loc.lsb {
				ec.Emit(x86.MOV, 0, lsb, loc.lsb)
				ec.gprs.Release(loc.lsb)
			}
		} else if lsb != loc.msb {
			// msb overwrites the source lsb: move lsb first
			ec.Emit(x86.MOV, 0, lsb, loc.lsb)
			ec.Emit(x86.MOV, 0, msb, loc.msb)
			ec.gprs.Release(loc.msb)
		} else {
			// exact swap
			ec.Emit(x86.XCHG, 0, loc.lsb, loc.msb)
		}
	case inLocal:
		ec.Emit(x86.MOV, 4, lsb, ec.bp(int(loc.offset)))
		ec.Emit(x86.MOV, 4, msb, ec.bp(int(it.MsbOffsetToFP())))
	case inConst:
		lo, hi := wideHalves(it.typ, loc.value)
		ec.loadImm(lsb, int64(lo))
		ec.loadImm(msb, int64(hi))
	case onFPU:
		ec.FxchToTos(it)
		ec.fpuPop(it)
		ec.adjustSP(-8)
		ec.fpuStore(it, ec.sp(0))
		ec.Emit(x86.POP, 0, lsb)
		ec.Emit(x86.POP, 0, msb)
	case inXMM:
		ec.adjustSP(-8)
		ec.Emit(x86.MOVSD, 8, ec.sp(0), loc.reg)
		ec.Emit(x86.POP, 0, lsb)
		ec.Emit(x86.POP, 0, msb)
		ec.xmms.Release(loc.reg)
	case onStack:
		ec.vstack.popNative(it)
		ec.Emit(x86.POP, 0, lsb)
		ec.Emit(x86.POP, 0, msb)
	default:
		Fatal("load", it, ErrInvalidKind)
	}
	it.loc = inPair{lsb, msb}
}

func (wide32) pushConstant(ec *Context, it *Item, c Constant) {
	lo, hi := wideHalves(it.typ, c)
	ec.Emit(x86.PUSH, 0, x86.Imm(hi))
	ec.Emit(x86.PUSH, 0, x86.Imm(lo))
}

func (w wide32) push(ec *Context, it *Item) {
	switch loc := it.loc.(type) {
	case inPair:
		ec.Emit(x86.PUSH, 0, loc.msb)
		ec.Emit(x86.PUSH, 0, loc.lsb)
	case inLocal:
		ec.Emit(x86.PUSH, 4, ec.bp(int(it.MsbOffsetToFP())))
		ec.Emit(x86.PUSH, 4, ec.bp(int(loc.offset)))
	case inConst:
		w.pushConstant(ec, it, loc.value)
	case onFPU:
		ec.FxchToTos(it)
		ec.fpuPop(it)
		ec.adjustSP(-8)
		ec.fpuStore(it, ec.sp(0))
	case inXMM:
		ec.adjustSP(-8)
		ec.Emit(x86.MOVSD, 8, ec.sp(0), loc.reg)
	case onStack:
		ec.vstack.popNative(it)
	default:
		Fatal("push", it, ErrInvalidKind)
	}
	it.cleanup(ec)
	it.loc = onStack{}
	ec.vstack.pushNative(it)
}

func (w wide32) pushToFPU(ec *Context, it *Item) {
	switch loc := it.loc.(type) {
	case inPair:
		ec.Emit(x86.PUSH, 0, loc.msb)
		ec.Emit(x86.PUSH, 0, loc.lsb)
		ec.fpuLoad(it, ec.sp(0))
		ec.adjustSP(8)
	case inLocal:
		ec.fpuLoad(it, ec.bp(int(loc.offset)))
	case inConst:
		w.pushConstant(ec, it, loc.value)
		ec.fpuLoad(it, ec.sp(0))
		ec.adjustSP(8)
	case onFPU:
		ec.fpuPop(it)
		ec.fpuPush(it)
		return
	case inXMM:
		ec.adjustSP(-8)
		ec.Emit(x86.MOVSD, 8, ec.sp(0), loc.reg)
		ec.fpuLoad(it, ec.sp(0))
		ec.adjustSP(8)
	case onStack:
		ec.vstack.popNative(it)
		ec.fpuLoad(it, ec.sp(0))
		ec.adjustSP(8)
	default:
		Fatal("push to fpu", it, ErrInvalidKind)
	}
	it.cleanup(ec)
	it.loc = onFPU{}
	ec.fpuPush(it)
}

func (w wide32) spill(ec *Context, it *Item) {
	lsb, ok1 := ec.gprs.Request(jvmtype.Int, handle.None)
	msb, ok2 := ec.gprs.Request(jvmtype.Int, handle.None)
	if !ok1 || !ok2 {
		Fatalf("spill", it, ErrSpillFailed, "no free register pair")
	}
	w.loadTo(ec, it, lsb, msb)
	ec.transfer(lsb, it)
	ec.transfer(msb, it)
}

func (w wide32) clone(ec *Context, it *Item) *Item {
	switch it.loc.(type) {
	case inPair:
		lsb, msb := ec.RequestDoubleWordRegisters(it.typ)
		if loc, ok := it.loc.(inPair); ok {
			ec.Emit(x86.MOV, 0, lsb, loc.lsb)
			ec.Emit(x86.MOV, 0, msb, loc.msb)
			return ec.CreatePair(it.typ, lsb, msb)
		}
		ec.ReleaseRegister(lsb)
		ec.ReleaseRegister(msb)
		return w.clone(ec, it)
	case onStack:
		ec.Emit(x86.PUSH, 4, ec.sp(4))
		ec.Emit(x86.PUSH, 4, ec.sp(4))
		return ec.CreateStack(it.typ)
	}
	Fatal("clone", it, ErrInvalidKind)
	return nil
}

// wide64 keeps wide values in one 64-bit register. On the native stack a
// wide value takes two slots: the value at the lower address and an
// unused slot above it.
type wide64 struct{}

func (w wide64) load(ec *Context, it *Item) {
	if it.IsGPR() {
		return
	}
	w.loadTo(ec, it, ec.requestGPR(it.typ, it.id, false))
}

func (wide64) loadTo(ec *Context, it *Item, reg x86.Register) {
	switch loc := it.loc.(type) {
	case inGPR:
		if loc.reg != reg {
			ec.Emit(x86.MOV, 0, reg, loc.reg)
			ec.gprs.Release(loc.reg)
		}
	case inLocal:
		ec.Emit(x86.MOV, 8, reg, ec.bp(int(loc.offset)))
	case inConst:
		lo, hi := wideHalves(it.typ, loc.value)
		ec.loadImm(reg, int64(hi)<<32|int64(uint32(lo)))
	case onFPU:
		ec.FxchToTos(it)
		ec.fpuPop(it)
		ec.adjustSP(-8)
		ec.fpuStore(it, ec.sp(0))
		ec.Emit(x86.POP, 0, reg)
	case inXMM:
		ec.Emit(x86.MOVQ, 0, reg, loc.reg)
		ec.xmms.Release(loc.reg)
	case onStack:
		ec.vstack.popNative(it)
		ec.Emit(x86.POP, 0, reg)
		ec.adjustSP(8)
	default:
		Fatal("load", it, ErrInvalidKind)
	}
	it.loc = inGPR{reg}
}

// pushConstant pushes one 8 byte slot. push only takes a sign extended
// 32-bit immediate, so other values get their high half patched in.
func (wide64) pushConstant(ec *Context, it *Item, c Constant) {
	lo, hi := wideHalves(it.typ, c)
	v := int64(hi)<<32 | int64(uint32(lo))
	ec.Emit(x86.PUSH, 0, x86.Imm(lo))
	if v != int64(lo) {
		ec.Emit(x86.MOV, 4, ec.sp(4), x86.Imm(hi))
	}
}

func (w wide64) push(ec *Context, it *Item) {
	switch loc := it.loc.(type) {
	case inGPR:
		ec.adjustSP(-8)
		ec.Emit(x86.PUSH, 0, loc.reg)
	case inLocal:
		ec.adjustSP(-8)
		ec.Emit(x86.PUSH, 8, ec.bp(int(loc.offset)))
	case inConst:
		ec.adjustSP(-8)
		w.pushConstant(ec, it, loc.value)
	case onFPU:
		ec.FxchToTos(it)
		ec.fpuPop(it)
		ec.adjustSP(-16)
		ec.fpuStore(it, ec.sp(0))
	case inXMM:
		ec.adjustSP(-16)
		ec.Emit(x86.MOVSD, 8, ec.sp(0), loc.reg)
	case onStack:
		ec.vstack.popNative(it)
	default:
		Fatal("push", it, ErrInvalidKind)
	}
	it.cleanup(ec)
	it.loc = onStack{}
	ec.vstack.pushNative(it)
}

func (w wide64) pushToFPU(ec *Context, it *Item) {
	switch loc := it.loc.(type) {
	case inGPR:
		ec.Emit(x86.PUSH, 0, loc.reg)
		ec.fpuLoad(it, ec.sp(0))
		ec.adjustSP(8)
	case inLocal:
		ec.fpuLoad(it, ec.bp(int(loc.offset)))
	case inConst:
		w.pushConstant(ec, it, loc.value)
		ec.fpuLoad(it, ec.sp(0))
		ec.adjustSP(8)
	case onFPU:
		ec.fpuPop(it)
		ec.fpuPush(it)
		return
	case inXMM:
		ec.adjustSP(-8)
		ec.Emit(x86.MOVSD, 8, ec.sp(0), loc.reg)
		ec.fpuLoad(it, ec.sp(0))
		ec.adjustSP(8)
	case onStack:
		ec.vstack.popNative(it)
		ec.fpuLoad(it, ec.sp(0))
		ec.adjustSP(16)
	default:
		Fatal("push to fpu", it, ErrInvalidKind)
	}
	it.cleanup(ec)
	it.loc = onFPU{}
	ec.fpuPush(it)
}

func (w wide64) spill(ec *Context, it *Item) {
	reg, ok := ec.gprs.Request(it.typ, handle.None)
	if !ok {
		Fatalf("spill", it, ErrSpillFailed, "no free register")
	}
	w.loadTo(ec, it, reg)
	ec.transfer(reg, it)
}

func (w wide64) clone(ec *Context, it *Item) *Item {
	switch it.loc.(type) {
	case inGPR:
		reg := ec.requestGPR(it.typ, handle.None, false)
		if loc, ok := it.loc.(inGPR); ok {
			ec.Emit(x86.MOV, 0, reg, loc.reg)
			return ec.CreateGPR(it.typ, reg)
		}
		ec.ReleaseRegister(reg)
		return w.clone(ec, it)
	case onStack:
		ec.Emit(x86.PUSH, 8, ec.sp(8))
		ec.Emit(x86.PUSH, 8, ec.sp(8))
		return ec.CreateStack(it.typ)
	}
	Fatal("clone", it, ErrInvalidKind)
	return nil
}
