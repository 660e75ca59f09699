package emitter

import (
	"github.com/raymyers/ralph-jit/pkg/jvmtype"
	"github.com/raymyers/ralph-jit/pkg/x86"
)

// ThrowArrayOutOfBounds is the runtime routine called by a failed bounds check
const ThrowArrayOutOfBounds x86.Label = "$$throwArrayOutOfBounds"

// CheckBounds emits the array index check for ref[idx]. ref must be in a
// register and idx in a register or constant. The out of line failure path
// pushes both values and calls the runtime.
func (ec *Context) CheckBounds(ref, idx *Item, lengthOffset int) {
	ec.checkLive(ref, "check bounds")
	ec.checkLive(idx, "check bounds")
	refr := ref.Register()
	base := ec.InstructionLabel()
	test := x86.Label(base + "$$cbtest")
	failed := x86.Label(base + "$$cbfailed")

	ec.Emit(x86.JMP, 0, test)
	ec.Bind(failed)
	ec.Emit(x86.PUSH, 0, refr)
	var index x86.Operand
	if idx.IsConstant() {
		index = x86.Imm(idx.IntValue())
	} else {
		index = idx.Register()
	}
	ec.Emit(x86.PUSH, 0, ec.slotOperand(index))
	ec.Emit(x86.CALL, 0, ThrowArrayOutOfBounds)

	ec.Bind(test)
	ec.Emit(x86.CMP, 4, x86.MemAt(refr, lengthOffset), index)
	ec.Emit(x86.JBE, 0, failed)
}

// slotOperand widens a register operand to the push width
func (ec *Context) slotOperand(op x86.Operand) x86.Operand {
	if r, ok := op.(x86.Register); ok {
		return ec.slotReg(r)
	}
	return op
}

// ArrayElement returns the memory operand of element idx of size scale in
// the array held by ref. A register index is sign extended in 64-bit mode.
func (ec *Context) ArrayElement(ref, idx *Item, scale, dataOffset int) x86.Mem {
	refr := ref.Register()
	if idx.IsConstant() {
		return x86.MemAt(refr, int(idx.IntValue())*scale+dataOffset)
	}
	idxr := idx.Register()
	if ec.mode.Is64() {
		r64, ok := ec.gprs.RegisterInSameGroup(idxr, jvmtype.Long)
		if !ok {
			Fatalf("array element", idx, ErrInvalidState, "no 64-bit view of %s", idxr)
		}
		ec.Emit(x86.MOVSXD, 0, r64, idxr)
		idxr = r64
	}
	return x86.MemIndexed(refr, idxr, scale, dataOffset)
}
