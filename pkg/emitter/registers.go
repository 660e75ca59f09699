package emitter

import (
	"github.com/raymyers/ralph-jit/pkg/handle"
	"github.com/raymyers/ralph-jit/pkg/jvmtype"
	"github.com/raymyers/ralph-jit/pkg/x86"
)

// requestGPR returns a free register for typ claimed by owner, flushing the
// virtual stack once when the pool is exhausted.
func (ec *Context) requestGPR(typ jvmtype.Type, owner handle.ID, bits8 bool) x86.Register {
	request := ec.gprs.Request
	if bits8 {
		request = ec.gprs.RequestBits8
	}
	if reg, ok := request(typ, owner); ok {
		return reg
	}
	ec.Flush()
	if reg, ok := request(typ, owner); ok {
		return reg
	}
	Fatalf("request register", nil, ErrSpillFailed, "no %s register free after flush", typ)
	return x86.NoRegister
}

func (ec *Context) requestXMM(typ jvmtype.Type, owner handle.ID) x86.Register {
	if reg, ok := ec.xmms.Request(typ, owner); ok {
		return reg
	}
	ec.Flush()
	if reg, ok := ec.xmms.Request(typ, owner); ok {
		return reg
	}
	Fatalf("request xmm", nil, ErrSpillFailed, "no %s register free after flush", typ)
	return x86.NoRegister
}

// RequestWordRegister claims a scratch register for a word value of typ.
// The caller releases it or turns it into an item with CreateGPR.
func (ec *Context) RequestWordRegister(typ jvmtype.Type) x86.Register {
	return ec.requestGPR(typ, handle.None, false)
}

// RequestBits8Register is RequestWordRegister restricted to byte
// addressable registers.
func (ec *Context) RequestBits8Register(typ jvmtype.Type) x86.Register {
	return ec.requestGPR(typ, handle.None, true)
}

// RequestDoubleWordRegisters claims scratch registers for a wide value:
// two 32-bit registers in 32-bit mode, one 64-bit register (returned as
// lsb, with msb unset) in 64-bit mode.
func (ec *Context) RequestDoubleWordRegisters(typ jvmtype.Type) (lsb, msb x86.Register) {
	if ec.mode.Is64() {
		return ec.requestGPR(typ, handle.None, false), x86.NoRegister
	}
	lsb = ec.requestGPR(jvmtype.Int, handle.None, false)
	msb = ec.requestGPR(jvmtype.Int, handle.None, false)
	return lsb, msb
}

// RequestXMMRegister claims a scratch xmm register
func (ec *Context) RequestXMMRegister(typ jvmtype.Type) x86.Register {
	return ec.requestXMM(typ, handle.None)
}

// ReleaseRegister frees a scratch register
func (ec *Context) ReleaseRegister(reg x86.Register) {
	if reg.IsXMM() {
		ec.xmms.Release(reg)
		return
	}
	ec.gprs.Release(reg)
}

// RequestRegister claims reg for owner, moving its current owner elsewhere.
// A nil owner makes an anonymous scratch claim.
func (ec *Context) RequestRegister(reg x86.Register, owner *Item) {
	ec.RequestRegisters(owner, reg)
}

// RequestRegisters claims all of regs for owner.
//
// Phase one only inspects the pool: it collects the items currently
// holding any of regs and reserves the requested registers that are free,
// so that no migration can land on them. Phase two works through the
// collected items one by one, moving each out of the way. Nothing calls
// back from the pool into items.
func (ec *Context) RequestRegisters(owner *Item, regs ...x86.Register) {
	id := handle.None
	if owner != nil {
		id = owner.id
	}

	// Phase one
	var victims []*Item
	for _, reg := range regs {
		o, inuse := ec.gprs.Owner(reg)
		if !inuse || (id != handle.None && o == id) {
			continue
		}
		if o == handle.None {
			Fatalf("request "+reg.String(), owner, ErrRegisterInUse, "held by a scratch claim")
		}
		v := ec.factory.Lookup(o)
		if v == nil {
			Fatalf("request "+reg.String(), owner, ErrInvalidState, "owner %s is not live", o)
		}
		if !containsItem(victims, v) {
			victims = append(victims, v)
		}
	}
	for _, reg := range regs {
		if ec.gprs.IsFree(reg) {
			ec.gprs.Claim(reg, id)
		}
	}

	// Phase two
	for len(victims) > 0 {
		v := victims[0]
		victims = victims[1:]
		if v.released || !v.usesAny(regs) {
			continue
		}
		ec.stats.Spills++
		ec.tracef("spill %s to free %v", v, regs)
		v.spill(ec)
		for _, reg := range regs {
			if ec.gprs.IsFree(reg) {
				ec.gprs.Claim(reg, id)
			}
		}
	}

	for _, reg := range regs {
		if o, inuse := ec.gprs.Owner(reg); !inuse || o != id {
			Fatalf("request "+reg.String(), owner, ErrSpillFailed, "still owned by %s", o)
		}
	}
}

// spill moves the item out of its registers: the virtual stack is flushed
// first, and an item that still holds registers afterwards (because it
// is not on the virtual stack) is moved to freshly requested ones.
func (it *Item) spill(ec *Context) {
	ec.Flush()
	if !it.IsGPR() {
		return
	}
	if it.typ.IsWide() {
		ec.wide.spill(ec, it)
	} else {
		reg, ok := ec.gprs.Request(it.typ, handle.None)
		if !ok {
			Fatalf("spill", it, ErrSpillFailed, "no free register")
		}
		it.loadWordTo(ec, reg)
		ec.transfer(reg, it)
	}
	ec.verifyItem(it)
}

// transfer hands a claimed register to it
func (ec *Context) transfer(reg x86.Register, it *Item) {
	if err := ec.gprs.TransferOwnerTo(reg, it.id); err != nil {
		Fatal("transfer", it, err)
	}
}

// claimFor makes sure it owns reg before a value is loaded into it
func (ec *Context) claimFor(it *Item, regs ...x86.Register) {
	var need []x86.Register
	for _, r := range regs {
		if !it.Uses(r) {
			need = append(need, r)
		}
	}
	if len(need) > 0 {
		ec.RequestRegisters(it, need...)
	}
}

func containsItem(items []*Item, it *Item) bool {
	for _, x := range items {
		if x == it {
			return true
		}
	}
	return false
}
