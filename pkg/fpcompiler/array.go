package fpcompiler

import (
	"github.com/raymyers/ralph-jit/pkg/emitter"
	"github.com/raymyers/ralph-jit/pkg/jvmtype"
	"github.com/raymyers/ralph-jit/pkg/x86"
)

// arrayOperand is a bounds checked array element
type arrayOperand struct {
	ref, idx *emitter.Item
	elem     x86.Mem
}

// loadArrayElement pops an array reference and index, checks the index
// and returns the element operand and its size.
func loadArrayElement(ec *emitter.Context, arrays Arrays, typ jvmtype.Type) (arrayOperand, int) {
	idx := ec.VStack().PopInt()
	ref := ec.VStack().PopRef()
	idx.LoadIf(ec, ^emitter.KindConstant)
	ref.Load(ec)
	ec.CheckBounds(ref, idx, arrays.LengthOffset)
	size := 4
	if typ == jvmtype.Double {
		size = 8
	}
	return arrayOperand{ref: ref, idx: idx, elem: ec.ArrayElement(ref, idx, size, arrays.DataOffset)}, size
}

func (a arrayOperand) release(ec *emitter.Context) {
	a.ref.Release(ec)
	a.idx.Release(ec)
}
