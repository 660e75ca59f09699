// Package frame maps bytecode local variable indices to frame pointer
// relative offsets.
package frame

import (
	"fmt"
	"math"

	"github.com/raymyers/ralph-jit/pkg/x86"
)

// Frame layout as seen by the compiled method (slot = 4 or 8 bytes):
//
//	+---------------------------+
//	| argument 0                |  highest address
//	| ...                       |
//	| argument n-1              |
//	| method reference          |
//	| return address            |  FP + slot
//	+---------------------------+  <- FP (saved FP lives here)
//	| local n                   |  FP - slot
//	| local n+1                 |  FP - 2*slot
//	| ...                       |
//	+---------------------------+  <- SP before the operand stack
//
// Arguments are the first local indices; locals follow them.

// savedRegisterSpace is the size of registers saved between FP and the locals
const savedRegisterSpace = 0

// Layout describes the frame of one method
type Layout struct {
	Mode      x86.Mode
	ArgSlots  int // number of local slots holding arguments
	MaxLocals int // total local slots, arguments included
}

// NewLayout creates a layout, rejecting inconsistent slot counts
func NewLayout(mode x86.Mode, argSlots, maxLocals int) (*Layout, error) {
	if argSlots < 0 || maxLocals < argSlots {
		return nil, fmt.Errorf("invalid frame: %d argument slots, %d locals", argSlots, maxLocals)
	}
	return &Layout{Mode: mode, ArgSlots: argSlots, MaxLocals: maxLocals}, nil
}

// SlotSize returns the width of one local slot
func (l *Layout) SlotSize() int { return l.Mode.SlotSize() }

// frameRefOffset is the distance from FP to the return address
func (l *Layout) frameRefOffset() int { return l.SlotSize() }

// Offset returns the FP relative offset of the local with the given index
func (l *Layout) Offset(index int) (int16, error) {
	if index < 0 || index >= l.MaxLocals {
		return 0, fmt.Errorf("local %d out of range (max %d)", index, l.MaxLocals)
	}
	slot := l.SlotSize()
	var ofs int
	if index < l.ArgSlots {
		ofs = (l.ArgSlots-index+1)*slot + l.frameRefOffset() + savedRegisterSpace
	} else {
		ofs = (index - l.ArgSlots + 1) * -slot
	}
	if ofs < math.MinInt16 || ofs > math.MaxInt16 {
		return 0, fmt.Errorf("local %d: offset %d does not fit in 16 bits", index, ofs)
	}
	return int16(ofs), nil
}

// WideOffset returns the offset of a two slot local starting at index.
// The value is addressed from its second slot, which has the lower address.
func (l *Layout) WideOffset(index int) (int16, error) {
	if index+1 >= l.MaxLocals {
		return 0, fmt.Errorf("wide local %d out of range (max %d)", index, l.MaxLocals)
	}
	return l.Offset(index + 1)
}
