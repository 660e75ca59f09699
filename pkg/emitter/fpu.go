package emitter

import (
	"errors"

	"github.com/raymyers/ralph-jit/pkg/fpustack"
	"github.com/raymyers/ralph-jit/pkg/jvmtype"
	"github.com/raymyers/ralph-jit/pkg/x86"
)

func (ec *Context) fpuPush(it *Item) {
	if err := ec.fpu.Push(it.id); err != nil {
		if errors.Is(err, fpustack.ErrOverflow) {
			Fatal("fpu push", it, ErrFPUStackOverflow)
		}
		Fatal("fpu push", it, err)
	}
}

func (ec *Context) fpuPop(it *Item) {
	if err := ec.fpu.PopItem(it.id); err != nil {
		Fatal("fpu pop", it, err)
	}
}

// FPURegister returns the x87 register currently holding it
func (ec *Context) FPURegister(it *Item) x86.Register {
	reg, ok := ec.fpu.Register(it.id)
	if !ok {
		Fatal("fpu register", it, fpustack.ErrNotOnFPU)
	}
	return reg
}

// FPUItem returns the item held in an x87 register
func (ec *Context) FPUItem(reg x86.Register) *Item {
	id, ok := ec.fpu.Item(reg)
	if !ok {
		Fatalf("fpu item", nil, ErrInvalidState, "%s is empty", reg)
	}
	it := ec.factory.Lookup(id)
	if it == nil {
		Fatalf("fpu item", nil, ErrInvalidState, "%s holds dead item %s", reg, id)
	}
	return it
}

// IsFPUTos reports whether it is on top of the x87 stack
func (ec *Context) IsFPUTos(it *Item) bool { return ec.fpu.IsTos(it.id) }

// PopFPU removes the top of the x87 stack model and returns its item.
// The caller emits the popping instruction.
func (ec *Context) PopFPU() *Item {
	it := ec.FPUItem(x86.ST0)
	ec.fpuPop(it)
	return it
}

// Fxch emits fxch reg and updates the model
func (ec *Context) Fxch(reg x86.Register) {
	ec.Emit(x86.FXCH, 0, reg)
	if err := ec.fpu.Fxch(reg); err != nil {
		Fatal("fxch", nil, err)
	}
}

// FxchToTos brings it to the top of the x87 stack
func (ec *Context) FxchToTos(it *Item) {
	if ec.fpu.IsTos(it.id) {
		return
	}
	ec.Fxch(ec.FPURegister(it))
}

// fpuLoad emits the instruction pushing a value of typ from memory
func (ec *Context) fpuLoad(it *Item, m x86.Mem) {
	switch it.typ {
	case jvmtype.Int:
		ec.Emit(x86.FILD, 4, m)
	case jvmtype.Float:
		ec.Emit(x86.FLD, 4, m)
	case jvmtype.Long:
		ec.Emit(x86.FILD, 8, m)
	case jvmtype.Double:
		ec.Emit(x86.FLD, 8, m)
	default:
		Fatalf("fpu load", it, ErrTypeMismatch, "cannot load %s onto the fpu", it.typ)
	}
}

// fpuStore emits the instruction popping the fpu top into memory as typ
func (ec *Context) fpuStore(it *Item, m x86.Mem) {
	switch it.typ {
	case jvmtype.Int:
		ec.Emit(x86.FISTP, 4, m)
	case jvmtype.Float:
		ec.Emit(x86.FSTP, 4, m)
	case jvmtype.Long:
		ec.Emit(x86.FISTP, 8, m)
	case jvmtype.Double:
		ec.Emit(x86.FSTP, 8, m)
	default:
		Fatalf("fpu store", it, ErrTypeMismatch, "cannot store %s from the fpu", it.typ)
	}
}
