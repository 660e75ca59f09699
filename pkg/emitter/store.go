package emitter

import (
	"math"

	"github.com/raymyers/ralph-jit/pkg/jvmtype"
	"github.com/raymyers/ralph-jit/pkg/x86"
)

// LoadAliases loads every virtual stack item that reads the local at
// offset, so that overwriting the local leaves their values unchanged.
// When there are not enough registers the whole stack is flushed. The
// value being stored must already be popped.
func (ec *Context) LoadAliases(offset int16, typ jvmtype.Type) {
	lo, hi := int(offset), int(offset)+ec.StackBytes(typ)
	for _, it := range ec.vstack.items {
		loc, ok := it.loc.(inLocal)
		if !ok {
			continue
		}
		start := int(loc.offset)
		if start >= hi || lo >= start+ec.StackBytes(it.typ) {
			continue
		}
		need := 1
		if it.typ.IsWide() && ec.mode.Is32() {
			need = 2
		}
		if ec.gprs.FreeCount(jvmtype.Int) < need {
			ec.Flush()
			return
		}
		ec.tracef("load alias %s of local %d", it, offset)
		it.Load(ec)
	}
}

// StoreLocal writes the value of it to the local at offset and releases
// the item.
func (ec *Context) StoreLocal(it *Item, offset int16) {
	ec.checkLive(it, "store")
	dst := ec.bp(int(offset))
	size := 4
	if it.typ.IsWide() {
		size = 8
	}
	switch loc := it.loc.(type) {
	case inLocal:
		if loc.offset == offset {
			it.Release(ec)
			return
		}
	case onFPU:
		ec.FxchToTos(it)
		ec.fpuPop(it)
		ec.fpuStore(it, dst)
		it.loc = nil
		it.Release(ec)
		return
	case inXMM:
		ec.Emit(ec.sseMove(it.typ), size, dst, loc.reg)
		it.Release(ec)
		return
	case inConst:
		if ec.storeConstant(it, loc.value, dst) {
			it.Release(ec)
			return
		}
	}

	it.Load(ec)
	switch loc := it.loc.(type) {
	case inPair:
		ec.Emit(x86.MOV, 0, dst, loc.lsb)
		ec.Emit(x86.MOV, 0, ec.bp(int(msbOffset(offset))), loc.msb)
	case inGPR:
		ec.Emit(x86.MOV, 0, dst, loc.reg)
	}
	it.Release(ec)
}

// storeConstant writes c to m with immediate moves where the encoding
// allows it
func (ec *Context) storeConstant(it *Item, c Constant, m x86.Mem) bool {
	switch it.typ {
	case jvmtype.Int:
		ec.Emit(x86.MOV, 4, m, x86.Imm(int32(c.Bits)))
	case jvmtype.Float:
		ec.Emit(x86.MOV, 4, m, x86.Imm(int32(floatBits(it.typ, c))))
	case jvmtype.Long, jvmtype.Double:
		lo, hi := wideHalves(it.typ, c)
		if ec.mode.Is64() {
			v := int64(hi)<<32 | int64(uint32(lo))
			if v < math.MinInt32 || v > math.MaxInt32 {
				return false
			}
			ec.Emit(x86.MOV, 8, m, x86.Imm(v))
			return true
		}
		ec.Emit(x86.MOV, 4, m, x86.Imm(lo))
		ec.Emit(x86.MOV, 4, x86.MemAt(m.Base, m.Disp+4), x86.Imm(hi))
	case jvmtype.Reference:
		if c.Sym != "" {
			return false
		}
		ec.Emit(x86.MOV, ec.WordSize(it.typ), m, x86.Imm(0))
	default:
		return false
	}
	return true
}
