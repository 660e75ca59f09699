package emitter

import (
	"strings"

	"github.com/raymyers/ralph-jit/pkg/fpustack"
	"github.com/raymyers/ralph-jit/pkg/jvmtype"
)

// initialStackCapacity is the number of entries allocated up front
const initialStackCapacity = 8

// VirtualStack is the compile time operand stack. Alongside it the native
// stack is mirrored: every item in KindStack is recorded in the order its
// value was pushed, so that only the top value can be popped.
type VirtualStack struct {
	items  []*Item
	depth  int // occupied operand stack slots, wide values count twice
	max    int // declared maximum depth in slots
	fpu    *fpustack.Stack
	native []*Item
}

func newVirtualStack(max int, fpu *fpustack.Stack) *VirtualStack {
	c := initialStackCapacity
	if c > max {
		c = max
	}
	return &VirtualStack{
		items: make([]*Item, 0, c),
		max:   max,
		fpu:   fpu,
	}
}

// Push puts an item on top of the stack. The item must have a kind.
// Exceeding the declared maximum depth is fatal and leaves the stack as is.
func (vs *VirtualStack) Push(it *Item) {
	if it.released {
		Fatal("vstack push", it, ErrReleased)
	}
	if it.Kind() == KindNone {
		Fatalf("vstack push", it, ErrInvalidKind, "item has no kind")
	}
	if it.IsFPUStack() && !vs.fpu.Contains(it.id) {
		Fatalf("vstack push", it, ErrInvalidState, "fpu item not on the fpu stack")
	}
	if vs.Contains(it) {
		Fatalf("vstack push", it, ErrInvalidState, "item already on the stack")
	}
	vs.grow(it.typ.Category())
	vs.items = append(vs.items, it)
	vs.depth += it.typ.Category()
}

// grow makes room for slots more slots, doubling the capacity up to max
func (vs *VirtualStack) grow(slots int) {
	if vs.depth+slots > vs.max {
		Fatalf("vstack push", nil, ErrStackOverflow, "depth %d exceeds maximum %d", vs.depth+slots, vs.max)
	}
	need := len(vs.items) + 1
	if need <= cap(vs.items) {
		return
	}
	newCap := 2 * cap(vs.items)
	if newCap < need {
		newCap = need
	}
	if newCap > vs.max {
		newCap = vs.max
	}
	items := make([]*Item, len(vs.items), newCap)
	copy(items, vs.items)
	vs.items = items
}

// Pop removes and returns the top item
func (vs *VirtualStack) Pop() *Item {
	n := len(vs.items)
	if n == 0 {
		Fatal("vstack pop", nil, ErrStackUnderflow)
	}
	it := vs.items[n-1]
	vs.items[n-1] = nil
	vs.items = vs.items[:n-1]
	vs.depth -= it.typ.Category()
	return it
}

// PopType pops the top item, which must have type typ
func (vs *VirtualStack) PopType(typ jvmtype.Type) *Item {
	it := vs.Pop()
	if it.typ != typ {
		Fatalf("vstack pop", it, ErrTypeMismatch, "want %s", typ)
	}
	return it
}

// PopInt pops an int item
func (vs *VirtualStack) PopInt() *Item { return vs.PopType(jvmtype.Int) }

// PopRef pops a reference item
func (vs *VirtualStack) PopRef() *Item { return vs.PopType(jvmtype.Reference) }

// Peek returns the top item without removing it
func (vs *VirtualStack) Peek() *Item {
	if len(vs.items) == 0 {
		return nil
	}
	return vs.items[len(vs.items)-1]
}

// Len returns the number of items
func (vs *VirtualStack) Len() int { return len(vs.items) }

// Depth returns the occupied slots
func (vs *VirtualStack) Depth() int { return vs.depth }

// Cap returns the currently allocated capacity in items
func (vs *VirtualStack) Cap() int { return cap(vs.items) }

// Max returns the declared maximum depth
func (vs *VirtualStack) Max() int { return vs.max }

// HasCapacity reports whether slots more slots fit below the maximum
func (vs *VirtualStack) HasCapacity(slots int) bool {
	return vs.depth+slots <= vs.max
}

// At returns the item at index i, 0 being the bottom
func (vs *VirtualStack) At(i int) *Item { return vs.items[i] }

// Visit calls fn for every item from bottom to top
func (vs *VirtualStack) Visit(fn func(i int, it *Item)) {
	for i, it := range vs.items {
		fn(i, it)
	}
}

// Contains reports whether it is on the stack
func (vs *VirtualStack) Contains(it *Item) bool {
	for _, x := range vs.items {
		if x == it {
			return true
		}
	}
	return false
}

func (vs *VirtualStack) String() string {
	var sb strings.Builder
	sb.WriteByte('[')
	for i, it := range vs.items {
		if i > 0 {
			sb.WriteByte(' ')
		}
		sb.WriteString(it.String())
	}
	sb.WriteByte(']')
	return sb.String()
}

// --- native stack mirror ---

func (vs *VirtualStack) pushNative(it *Item) {
	vs.native = append(vs.native, it)
}

func (vs *VirtualStack) popNative(it *Item) {
	n := len(vs.native)
	if n == 0 || vs.native[n-1] != it {
		Fatal("native pop", it, ErrNotTop)
	}
	vs.native[n-1] = nil
	vs.native = vs.native[:n-1]
}

func (vs *VirtualStack) nativeContains(it *Item) bool {
	for _, x := range vs.native {
		if x == it {
			return true
		}
	}
	return false
}

// NativeDepth returns the number of values on the native stack
func (vs *VirtualStack) NativeDepth() int { return len(vs.native) }

// --- flushing ---

// Flush pushes every virtual stack item that is not already on the native
// stack, bottom to top. Afterwards no item on the virtual stack holds a
// register or an x87 slot, and a second flush emits nothing.
func (ec *Context) Flush() {
	ec.stats.Flushes++
	ec.tracef("flush %s fpu=%s", ec.vstack, ec.fpu)
	for _, it := range ec.vstack.items {
		if !it.IsStack() {
			it.Push(ec)
		}
	}
}

// EnsureFPUCapacity makes room for n more values on the x87 stack,
// flushing the virtual stack when needed.
func (ec *Context) EnsureFPUCapacity(n int) {
	if ec.fpu.HasCapacity(n) {
		return
	}
	ec.stats.FPUFlushes++
	ec.tracef("flush fpu stack %s", ec.fpu)
	ec.Flush()
	if !ec.fpu.HasCapacity(n) {
		Fatalf("ensure fpu capacity", nil, ErrFPUStackOverflow, "%d slots needed, %d in use", n, ec.fpu.Len())
	}
}

// EndBasicBlock flushes the virtual stack and hands its values over to the
// native stack, releasing the items. It returns how many values remain on
// the native stack for the successor block.
func (ec *Context) EndBasicBlock() int {
	ec.Flush()
	n := ec.vstack.Len()
	for ec.vstack.Len() > 0 {
		it := ec.vstack.Pop()
		ec.vstack.popNative(it)
		it.loc = nil
		ec.factory.release(it)
	}
	return n
}
