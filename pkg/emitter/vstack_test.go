package emitter

import (
	"testing"

	"github.com/raymyers/ralph-jit/pkg/jvmtype"
	"github.com/raymyers/ralph-jit/pkg/x86"
)

func TestFlushOnExhaustedPool(t *testing.T) {
	ec, asm := newTestContext(x86.Code32)
	run(t, func() {
		for i := 0; i < ec.GPRs().Len(); i++ {
			ec.VStack().Push(gprItem(ec, jvmtype.Int))
		}
		if n := ec.GPRs().FreeCount(jvmtype.Int); n != 0 {
			t.Fatalf("got %d free registers, want 0", n)
		}
		reg := ec.RequestWordRegister(jvmtype.Int)
		if got := ec.Stats().Flushes; got != 1 {
			t.Errorf("got %d flushes, want 1", got)
		}
		if used := ec.GPRs().UsedRegisters(); len(used) != 1 || used[0] != reg {
			t.Errorf("got %v in use, want only %s", used, reg)
		}
		ec.VStack().Visit(func(i int, it *Item) {
			if !it.IsStack() {
				t.Errorf("item %d: got %s, want a stack item", i, it)
			}
		})
		ec.ReleaseRegister(reg)
		if n := ec.EndBasicBlock(); n != 5 {
			t.Errorf("got %d values handed over, want 5", n)
		}
	})
	if n := x86.Count(asm.Instructions(), x86.PUSH); n != 5 {
		t.Errorf("got %d pushes, want 5", n)
	}
	if err := ec.CheckClean(); err != nil {
		t.Error(err)
	}
}

func TestPushBeyondMaximum(t *testing.T) {
	asm := x86.NewAssembler(x86.Code32)
	ec := NewContext(asm, Options{MaxStack: 3})
	var a, b *Item
	run(t, func() {
		a = ec.CreateIntConst(1)
		b = ec.CreateLongConst(2)
		ec.VStack().Push(a)
		ec.VStack().Push(b)
	})
	extra := []*Item{ec.CreateIntConst(3), ec.CreateLocal(jvmtype.Long, -8)}
	for _, it := range extra {
		err := Guard(func() { ec.VStack().Push(it) })
		if !isErr(err, ErrStackOverflow) {
			t.Errorf("push %s: got %v, want %v", it, err, ErrStackOverflow)
		}
	}
	if ec.VStack().Len() != 2 || ec.VStack().Depth() != 3 {
		t.Errorf("got %s depth %d, want the two original items", ec.VStack(), ec.VStack().Depth())
	}
	if ec.VStack().Peek() != b {
		t.Errorf("got top %s, want %s", ec.VStack().Peek(), b)
	}
	if asm.Len() != 0 {
		t.Errorf("got %q, want no code", lines(asm.Instructions()))
	}
}

func TestStackGrowth(t *testing.T) {
	ec, _ := newTestContext(x86.Code32)
	vs := ec.VStack()
	if vs.Cap() != initialStackCapacity {
		t.Fatalf("got capacity %d, want %d", vs.Cap(), initialStackCapacity)
	}
	run(t, func() {
		for i := 0; i < 9; i++ {
			vs.Push(ec.CreateIntConst(int32(i)))
		}
	})
	if vs.Cap() != 16 {
		t.Errorf("got capacity %d, want 16", vs.Cap())
	}
	if !vs.HasCapacity(7) || vs.HasCapacity(8) {
		t.Errorf("capacity check wrong at depth %d of %d", vs.Depth(), vs.Max())
	}
}

func TestPushChecks(t *testing.T) {
	ec, _ := newTestContext(x86.Code32)
	tests := []struct {
		name string
		item func() *Item
		want error
	}{
		{"released", func() *Item {
			it := ec.CreateIntConst(1)
			it.Release(ec)
			return it
		}, ErrReleased},
		{"no kind", func() *Item {
			it := ec.CreateIntConst(1)
			it.loc = nil
			return it
		}, ErrInvalidKind},
		{"twice", func() *Item {
			it := ec.CreateIntConst(1)
			ec.VStack().Push(it)
			return it
		}, ErrInvalidState},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Guard(func() { ec.VStack().Push(tt.item()) })
			if !isErr(err, tt.want) {
				t.Errorf("got %v, want %v", err, tt.want)
			}
		})
	}
}

func TestPopType(t *testing.T) {
	ec, _ := newTestContext(x86.Code32)
	ec.VStack().Push(ec.CreateFloatConst(1))
	err := Guard(func() { ec.VStack().PopInt() })
	if !isErr(err, ErrTypeMismatch) {
		t.Errorf("got %v, want %v", err, ErrTypeMismatch)
	}
	err = Guard(func() { ec.VStack().Pop() })
	if !isErr(err, ErrStackUnderflow) {
		t.Errorf("got %v, want %v", err, ErrStackUnderflow)
	}
}

func TestFlushIdempotent(t *testing.T) {
	for _, mode := range []x86.Mode{x86.Code32, x86.Code64} {
		t.Run(mode.String(), func(t *testing.T) {
			ec, asm := newTestContext(mode)
			run(t, func() {
				vs := ec.VStack()
				vs.Push(ec.CreateIntConst(1))
				vs.Push(ec.CreateLocal(jvmtype.Int, -4))
				vs.Push(gprItem(ec, jvmtype.Reference))
				l := ec.CreateLocal(jvmtype.Long, -16)
				l.Load(ec)
				vs.Push(l)
				d := ec.CreateDoubleConst(2.5)
				d.PushToFPU(ec)
				vs.Push(d)
				x := ec.CreateFloatConst(1.5)
				x.LoadToXMM(ec)
				vs.Push(x)

				ec.Flush()
				vs.Visit(func(i int, it *Item) {
					if !it.IsStack() {
						t.Errorf("item %d: got %s, want a stack item", i, it)
					}
				})
				if used := ec.GPRs().UsedRegisters(); len(used) != 0 {
					t.Errorf("got %v in use after flush", used)
				}
				if used := ec.XMMs().UsedRegisters(); len(used) != 0 {
					t.Errorf("got %v in use after flush", used)
				}
				if ec.FPU().Len() != 0 {
					t.Errorf("got fpu %s after flush", ec.FPU())
				}
				if vs.NativeDepth() != vs.Len() {
					t.Errorf("got %d native values for %d items", vs.NativeDepth(), vs.Len())
				}
				mark := asm.Len()
				ec.Flush()
				if asm.Len() != mark {
					t.Errorf("second flush emitted %q", lines(asm.Since(mark)))
				}
				ec.EndBasicBlock()
			})
			if err := ec.CheckClean(); err != nil {
				t.Error(err)
			}
		})
	}
}

func TestNativeMirrorOrder(t *testing.T) {
	ec, _ := newTestContext(x86.Code32)
	var a, b *Item
	run(t, func() {
		a = ec.CreateIntConst(1)
		a.Push(ec)
		b = ec.CreateIntConst(2)
		b.Push(ec)
	})
	err := Guard(func() { a.Discard(ec) })
	if !isErr(err, ErrNotTop) {
		t.Errorf("got %v, want %v", err, ErrNotTop)
	}
	err = Guard(func() { b.Release(ec) })
	if !isErr(err, ErrInvalidState) {
		t.Errorf("got %v, want %v", err, ErrInvalidState)
	}
}

func TestEnsureFPUCapacity(t *testing.T) {
	ec, _ := newTestContext(x86.Code32)
	run(t, func() {
		for i := 0; i < 8; i++ {
			it := ec.CreateFloatConst(float32(i))
			it.PushToFPU(ec)
			ec.VStack().Push(it)
		}
		if ec.FPU().HasCapacity(1) {
			t.Fatal("fpu stack should be full")
		}
		ec.EnsureFPUCapacity(2)
		if ec.FPU().Len() != 0 {
			t.Errorf("got fpu %s, want empty", ec.FPU())
		}
		if s := ec.Stats(); s.FPUFlushes != 1 || s.Flushes != 1 {
			t.Errorf("got %+v, want one fpu flush", s)
		}
		ec.EnsureFPUCapacity(8)
		if ec.Stats().Flushes != 1 {
			t.Error("flush with room on the fpu stack")
		}
		err := Guard(func() { ec.EnsureFPUCapacity(9) })
		if !isErr(err, ErrFPUStackOverflow) {
			t.Errorf("got %v, want %v", err, ErrFPUStackOverflow)
		}
		ec.EndBasicBlock()
	})
}
