package emitter

import (
	"testing"

	"github.com/raymyers/ralph-jit/pkg/jvmtype"
	"github.com/raymyers/ralph-jit/pkg/x86"
)

// Cloning the top item with its register file exhausted flushes the
// virtual stack, the top included; the copy is then taken from the
// native stack.
func TestCloneWhenNoRoomIsLeft(t *testing.T) {
	tests := []struct {
		name string
		fill func(ec *Context) int
		last string
	}{
		{
			name: "fpu full",
			fill: func(ec *Context) int {
				for i := 0; i < 8; i++ {
					it := ec.CreateFloatConst(float32(i))
					it.PushToFPU(ec)
					ec.VStack().Push(it)
				}
				return 8
			},
			last: "push dword [esp]",
		},
		{
			name: "gprs taken",
			fill: func(ec *Context) int {
				for i := 0; i < 5; i++ {
					ec.VStack().Push(gprItem(ec, jvmtype.Int))
				}
				return 5
			},
			last: "push dword [esp]",
		},
		{
			name: "pairs taken",
			fill: func(ec *Context) int {
				low := pairItem(ec, x86.EBX, x86.ESI)
				high := pairItem(ec, x86.ECX, x86.EDX)
				ec.VStack().Push(low)
				ec.VStack().Push(gprItem(ec, jvmtype.Int))
				ec.VStack().Push(high)
				return 3
			},
			last: "push dword [esp+4]",
		},
		{
			name: "xmms taken",
			fill: func(ec *Context) int {
				for i := 0; i < 8; i++ {
					ec.VStack().Push(ec.CreateXMM(jvmtype.Double, ec.RequestXMMRegister(jvmtype.Double)))
				}
				return 8
			},
			last: "push dword [esp+4]",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ec, asm := newTestContext(x86.Code32)
			run(t, func() {
				n := tt.fill(ec)
				top := ec.VStack().Peek()
				dup := top.Clone(ec)
				if !top.IsStack() || !dup.IsStack() {
					t.Errorf("got %s and %s, want both on the native stack", top, dup)
				}
				ec.VStack().Push(dup)
				if got := ec.VStack().NativeDepth(); got != n+1 {
					t.Errorf("got native depth %d, want %d", got, n+1)
				}
				if ec.Stats().Flushes != 1 {
					t.Errorf("got %d flushes, want 1", ec.Stats().Flushes)
				}
			})
			code := lines(asm.Instructions())
			if got := code[len(code)-1]; got != tt.last {
				t.Errorf("got %q, want %q", got, tt.last)
			}
			run(t, func() { ec.EndBasicBlock() })
			if err := ec.CheckClean(); err != nil {
				t.Error(err)
			}
		})
	}
}
