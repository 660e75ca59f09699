package emitter

import (
	"github.com/raymyers/ralph-jit/pkg/handle"
	"github.com/raymyers/ralph-jit/pkg/x86"
)

// Load puts the item in a register of its type: one register for word
// values, a pair (32-bit mode) or one 64-bit register for wide values.
// When no register is free the virtual stack is flushed first.
func (it *Item) Load(ec *Context) {
	ec.checkLive(it, "load")
	if it.typ.IsWide() {
		ec.wide.load(ec, it)
	} else if !it.IsGPR() {
		it.loadWordTo(ec, ec.requestGPR(it.typ, it.id, false))
	}
	ec.verifyItem(it)
}

// LoadToGPR is Load; it exists for symmetry with LoadToXMM
func (it *Item) LoadToGPR(ec *Context) { it.Load(ec) }

// LoadTo puts a word item, or a wide item in 64-bit mode, into reg. The
// register is taken from its current owner if necessary.
func (it *Item) LoadTo(ec *Context, reg x86.Register) {
	ec.checkLive(it, "load to")
	if it.typ.IsWide() {
		it.LoadTo64(ec, reg)
		return
	}
	reg = reg.Resize(ec.WordSize(it.typ))
	ec.claimFor(it, reg)
	it.loadWordTo(ec, reg)
	ec.verifyItem(it)
}

// LoadTo32 puts a wide item into the given register pair (32-bit mode)
func (it *Item) LoadTo32(ec *Context, lsb, msb x86.Register) {
	ec.checkLive(it, "load to pair")
	if ec.mode.Is64() || !it.typ.IsWide() {
		Fatalf("load to pair", it, ErrInvalidState, "register pairs hold wide values in 32-bit mode only")
	}
	if lsb == msb {
		Fatalf("load to pair", it, ErrInvalidState, "lsb and msb are both %s", lsb)
	}
	ec.claimFor(it, lsb, msb)
	wide32{}.loadTo(ec, it, lsb, msb)
	ec.verifyItem(it)
}

// LoadTo64 puts a wide item into a 64-bit register (64-bit mode)
func (it *Item) LoadTo64(ec *Context, reg x86.Register) {
	ec.checkLive(it, "load to 64")
	if ec.mode.Is32() || !it.typ.IsWide() {
		Fatalf("load to 64", it, ErrInvalidState, "single register wide values need 64-bit mode")
	}
	reg = reg.To64()
	ec.claimFor(it, reg)
	wide64{}.loadTo(ec, it, reg)
	ec.verifyItem(it)
}

// LoadToBits8 puts a word item into a byte addressable register
func (it *Item) LoadToBits8(ec *Context) {
	ec.checkLive(it, "load to bits8")
	if it.typ.IsWide() {
		Fatalf("load to bits8", it, ErrTypeMismatch, "wide value")
	}
	if loc, ok := it.loc.(inGPR); ok && loc.reg.SuitableForBits8() {
		return
	}
	it.loadWordTo(ec, ec.requestGPR(it.typ, it.id, true))
	ec.verifyItem(it)
}

// LoadIf loads the item when its kind is one of mask
func (it *Item) LoadIf(ec *Context, mask Kind) {
	if it.Kind()&mask != 0 {
		it.Load(ec)
	}
}

// Push moves the value to the native stack
func (it *Item) Push(ec *Context) {
	ec.checkLive(it, "push")
	if it.typ.IsWide() {
		ec.wide.push(ec, it)
	} else {
		it.pushWord(ec)
	}
	ec.verifyItem(it)
}

// PushToFPU moves the value onto the x87 stack, converting integers.
// The caller is responsible for FPU capacity (EnsureFPUCapacity).
func (it *Item) PushToFPU(ec *Context) {
	ec.checkLive(it, "push to fpu")
	if it.typ.IsWide() {
		ec.wide.pushToFPU(ec, it)
	} else {
		it.pushWordToFPU(ec)
	}
	ec.verifyItem(it)
}

// Clone returns a new item holding a copy of the value, for dup. The
// original keeps its location.
func (it *Item) Clone(ec *Context) *Item {
	ec.checkLive(it, "clone")
	switch loc := it.loc.(type) {
	case inLocal:
		return ec.CreateLocal(it.typ, loc.offset)
	case inConst:
		return ec.CreateConst(it.typ, loc.value)
	case onFPU:
		// making room flushes it to the native stack when the x87 stack is full
		ec.EnsureFPUCapacity(1)
		if !it.IsFPUStack() {
			return it.Clone(ec)
		}
		ec.Emit(x86.FLD, 0, ec.FPURegister(it))
		return ec.CreateFPUStack(it.typ)
	case inXMM:
		reg := ec.requestXMM(it.typ, handle.None)
		if loc, ok := it.loc.(inXMM); ok {
			ec.Emit(ec.sseMove(it.typ), 0, reg, loc.reg)
			return ec.CreateXMM(it.typ, reg)
		}
		ec.ReleaseRegister(reg)
		return it.Clone(ec)
	}
	if it.typ.IsWide() {
		return ec.wide.clone(ec, it)
	}
	return it.cloneWord(ec)
}

// Release frees the item's registers and returns it to the factory. An
// item still on the native or x87 stack must be dropped with Discard.
func (it *Item) Release(ec *Context) {
	if it.released {
		Fatal("release", it, ErrReleased)
	}
	it.cleanup(ec)
	ec.factory.release(it)
}

// Discard drops the value, popping it from the native or x87 stack if it
// lives there, and releases the item.
func (it *Item) Discard(ec *Context) {
	ec.checkLive(it, "discard")
	switch it.loc.(type) {
	case onStack:
		ec.vstack.popNative(it)
		ec.adjustSP(ec.StackBytes(it.typ))
		it.loc = nil
	case onFPU:
		ec.FxchToTos(it)
		ec.fpuPop(it)
		ec.Emit(x86.FSTP, 0, x86.ST0)
		it.loc = nil
	}
	it.Release(ec)
}

// cleanup gives up the item's registers and clears its kind
func (it *Item) cleanup(ec *Context) {
	switch loc := it.loc.(type) {
	case inGPR:
		ec.gprs.Release(loc.reg)
	case inPair:
		ec.gprs.Release(loc.lsb)
		ec.gprs.Release(loc.msb)
	case inXMM:
		ec.xmms.Release(loc.reg)
	case onFPU:
		if ec.fpu.Contains(it.id) {
			Fatalf("cleanup", it, ErrInvalidState, "item still on the fpu stack")
		}
	case onStack:
		if ec.vstack.nativeContains(it) {
			Fatalf("cleanup", it, ErrInvalidState, "item still on the native stack")
		}
	}
	it.loc = nil
}
