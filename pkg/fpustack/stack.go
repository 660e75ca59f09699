// Package fpustack models the occupancy of the x87 register stack.
//
// The model mirrors what the emitted code does to the hardware stack: every
// fld pushes, every fstp pops and fxch swaps two slots. Slot 0 of the model
// is the bottom; the top of stack is ST0.
package fpustack

import (
	"errors"
	"fmt"
	"strings"

	"github.com/raymyers/ralph-jit/pkg/handle"
	"github.com/raymyers/ralph-jit/pkg/x86"
)

// Depth is the number of x87 registers
const Depth = 8

var (
	ErrOverflow  = errors.New("fpu stack overflow")
	ErrUnderflow = errors.New("fpu stack underflow")
	ErrNotTos    = errors.New("item is not on top of the fpu stack")
	ErrNotOnFPU  = errors.New("item is not on the fpu stack")
)

// Stack tracks which value occupies each x87 register
type Stack struct {
	slots [Depth]handle.ID
	n     int
}

// New creates an empty stack model
func New() *Stack { return &Stack{} }

// Len returns the number of occupied slots
func (s *Stack) Len() int { return s.n }

// HasCapacity reports whether n more values can be pushed
func (s *Stack) HasCapacity(n int) bool { return s.n+n <= Depth }

// Push records id as the new top of stack
func (s *Stack) Push(id handle.ID) error {
	if s.n == Depth {
		return fmt.Errorf("push %s: %w", id, ErrOverflow)
	}
	if s.Contains(id) {
		return fmt.Errorf("push %s: already on the fpu stack", id)
	}
	s.slots[s.n] = id
	s.n++
	return nil
}

// Pop removes the top of stack
func (s *Stack) Pop() (handle.ID, error) {
	if s.n == 0 {
		return handle.None, ErrUnderflow
	}
	s.n--
	id := s.slots[s.n]
	s.slots[s.n] = handle.None
	return id, nil
}

// PopItem removes id, which must be the top of stack
func (s *Stack) PopItem(id handle.ID) error {
	if !s.IsTos(id) {
		return fmt.Errorf("pop %s: %w", id, ErrNotTos)
	}
	_, err := s.Pop()
	return err
}

// Tos returns the value on top of the stack
func (s *Stack) Tos() (handle.ID, bool) {
	if s.n == 0 {
		return handle.None, false
	}
	return s.slots[s.n-1], true
}

// IsTos reports whether id is on top of the stack
func (s *Stack) IsTos(id handle.ID) bool {
	return s.n > 0 && s.slots[s.n-1] == id
}

// Contains reports whether id occupies a slot
func (s *Stack) Contains(id handle.ID) bool {
	return s.index(id) >= 0
}

func (s *Stack) index(id handle.ID) int {
	for i := 0; i < s.n; i++ {
		if s.slots[i] == id {
			return i
		}
	}
	return -1
}

// Register returns the ST register currently holding id
func (s *Stack) Register(id handle.ID) (x86.Register, bool) {
	i := s.index(id)
	if i < 0 {
		return x86.NoRegister, false
	}
	return x86.ST(s.n - 1 - i), true
}

// Item returns the value held in an ST register
func (s *Stack) Item(reg x86.Register) (handle.ID, bool) {
	if !reg.IsFPU() {
		return handle.None, false
	}
	i := s.n - 1 - reg.Nr()
	if i < 0 {
		return handle.None, false
	}
	return s.slots[i], true
}

// Fxch swaps ST0 with reg, mirroring the fxch instruction
func (s *Stack) Fxch(reg x86.Register) error {
	if !reg.IsFPU() {
		return fmt.Errorf("fxch %s: not an fpu register", reg)
	}
	i := s.n - 1 - reg.Nr()
	if i < 0 {
		return fmt.Errorf("fxch %s: %w", reg, ErrUnderflow)
	}
	top := s.n - 1
	s.slots[i], s.slots[top] = s.slots[top], s.slots[i]
	return nil
}

// Reset empties the model
func (s *Stack) Reset() {
	*s = Stack{}
}

func (s *Stack) String() string {
	var sb strings.Builder
	sb.WriteByte('[')
	for i := s.n - 1; i >= 0; i-- {
		if i != s.n-1 {
			sb.WriteString(", ")
		}
		fmt.Fprintf(&sb, "st%d=%s", s.n-1-i, s.slots[i])
	}
	sb.WriteByte(']')
	return sb.String()
}
