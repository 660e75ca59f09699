package emitter

import (
	"github.com/raymyers/ralph-jit/pkg/handle"
	"github.com/raymyers/ralph-jit/pkg/jvmtype"
	"github.com/raymyers/ralph-jit/pkg/x86"
)

// Factory recycles Items within one compilation. Every acquire hands out a
// fresh ID, so an ID recorded in an ownership table never aliases a later
// value even when the Item struct is reused.
type Factory struct {
	free    [jvmtype.NumTypes][]*Item
	live    map[handle.ID]*Item
	nextID  handle.ID
	created int // items allocated
	reused  int // items taken from a free list
}

// NewFactory creates an empty factory
func NewFactory() *Factory {
	return &Factory{live: make(map[handle.ID]*Item)}
}

func (f *Factory) acquire(typ jvmtype.Type, loc location) *Item {
	var it *Item
	if n := len(f.free[typ]); n > 0 {
		it = f.free[typ][n-1]
		f.free[typ] = f.free[typ][:n-1]
		f.reused++
	} else {
		it = &Item{typ: typ}
		f.created++
	}
	f.nextID++
	it.id = f.nextID
	it.loc = loc
	it.released = false
	f.live[it.id] = it
	return it
}

func (f *Factory) release(it *Item) {
	if it.released {
		Fatal("release", it, ErrReleased)
	}
	if it.loc != nil {
		Fatalf("release", it, ErrInvalidState, "item still has kind %s", it.Kind())
	}
	delete(f.live, it.id)
	it.released = true
	f.free[it.typ] = append(f.free[it.typ], it)
}

// Lookup returns the live item with the given ID
func (f *Factory) Lookup(id handle.ID) *Item {
	return f.live[id]
}

// Live returns the number of items not yet released
func (f *Factory) Live() int { return len(f.live) }

// Created returns how many items were allocated and how many reused
func (f *Factory) Created() (created, reused int) { return f.created, f.reused }

// --- Item construction ---

// CreateConst creates a constant item
func (ec *Context) CreateConst(typ jvmtype.Type, c Constant) *Item {
	return ec.factory.acquire(typ, inConst{c})
}

// CreateIntConst creates an int constant item
func (ec *Context) CreateIntConst(v int32) *Item {
	return ec.CreateConst(jvmtype.Int, Constant{Bits: int64(v)})
}

// CreateLongConst creates a long constant item
func (ec *Context) CreateLongConst(v int64) *Item {
	return ec.CreateConst(jvmtype.Long, Constant{Bits: v})
}

// CreateFloatConst creates a float constant item
func (ec *Context) CreateFloatConst(v float32) *Item {
	return ec.CreateConst(jvmtype.Float, Constant{F: float64(v)})
}

// CreateDoubleConst creates a double constant item
func (ec *Context) CreateDoubleConst(v float64) *Item {
	return ec.CreateConst(jvmtype.Double, Constant{F: v})
}

// CreateRefConst creates a reference constant; an empty symbol is null
func (ec *Context) CreateRefConst(sym string) *Item {
	return ec.CreateConst(jvmtype.Reference, Constant{Sym: sym})
}

// CreateLocal creates an item for the frame slot at offset
func (ec *Context) CreateLocal(typ jvmtype.Type, offset int16) *Item {
	return ec.factory.acquire(typ, inLocal{offset})
}

// CreateStack creates an item for a value just pushed on the native stack
func (ec *Context) CreateStack(typ jvmtype.Type) *Item {
	it := ec.factory.acquire(typ, onStack{})
	ec.vstack.pushNative(it)
	return it
}

// CreateFPUStack creates an item for a value just loaded onto the x87 stack
func (ec *Context) CreateFPUStack(typ jvmtype.Type) *Item {
	it := ec.factory.acquire(typ, onFPU{})
	ec.fpuPush(it)
	return it
}

// CreateGPR creates an item held in reg. The register must already be
// claimed; ownership moves to the new item.
func (ec *Context) CreateGPR(typ jvmtype.Type, reg x86.Register) *Item {
	it := ec.factory.acquire(typ, inGPR{reg})
	ec.transfer(reg, it)
	ec.verifyItem(it)
	return it
}

// CreatePair creates a wide item held in two claimed 32-bit registers
func (ec *Context) CreatePair(typ jvmtype.Type, lsb, msb x86.Register) *Item {
	it := ec.factory.acquire(typ, inPair{lsb, msb})
	ec.transfer(lsb, it)
	ec.transfer(msb, it)
	ec.verifyItem(it)
	return it
}

// CreateXMM creates an item held in a claimed xmm register
func (ec *Context) CreateXMM(typ jvmtype.Type, reg x86.Register) *Item {
	it := ec.factory.acquire(typ, inXMM{reg})
	if err := ec.xmms.TransferOwnerTo(reg, it.id); err != nil {
		Fatal("create xmm", it, err)
	}
	return it
}
