package fpcompiler

import (
	"fmt"
	"strings"
	"testing"

	"github.com/raymyers/ralph-jit/pkg/emitter"
	"github.com/raymyers/ralph-jit/pkg/jvmtype"
	"github.com/raymyers/ralph-jit/pkg/x86"
)

// x87Replay runs the x87 instructions of a listing on a stack of value
// tags. Every load from memory pushes the next tag (v0, v1, ...); stores,
// compares and partial remainders are logged with the tags they see.
type x87Replay struct {
	st    []string // st[0] is the top
	loads int
	log   []string
}

func replayX87(t *testing.T, code []x86.Instr) []string {
	t.Helper()
	r := &x87Replay{}
	at := func(n int) string {
		if n >= len(r.st) {
			t.Fatalf("st%d read with %d values on the x87 stack", n, len(r.st))
		}
		return r.st[n]
	}
	pop := func() {
		at(0)
		r.st = r.st[1:]
	}
	for _, in := range code {
		n, isReg := -1, false
		if len(in.Args) > 0 {
			if reg, ok := in.Args[0].(x86.Register); ok && reg.Class() == x86.ClassFPU {
				n, isReg = reg.Nr(), true
			}
		}
		switch in.Op {
		case x86.FLD, x86.FILD:
			v := fmt.Sprintf("v%d", r.loads)
			if isReg {
				v = at(n)
			} else {
				r.loads++
			}
			r.st = append([]string{v}, r.st...)
		case x86.FXCH:
			at(n)
			r.st[0], r.st[n] = r.st[n], r.st[0]
		case x86.FSTP, x86.FISTP:
			if isReg {
				at(n)
				r.st[n] = r.st[0]
			} else {
				r.log = append(r.log, in.Op.String()+" "+at(0))
			}
			pop()
		case x86.FADDP, x86.FSUBP, x86.FMULP, x86.FDIVP:
			r.st[n] = "(" + at(n) + " " + in.Op.String() + " " + at(0) + ")"
			pop()
		case x86.FUCOMPP:
			r.log = append(r.log, "fucompp "+at(0)+" "+at(1))
			pop()
			pop()
		case x86.FPREM:
			r.log = append(r.log, "fprem "+at(0)+" "+at(1))
		}
	}
	return r.log
}

// fpuResidents pushes n doubles, each loaded onto the x87 stack, on the
// virtual stack
func fpuResidents(ec *emitter.Context, n int) {
	for i := 0; i < n; i++ {
		ec.VStack().Push(onFPU(ec, float64(i)))
	}
}

func intsInRegisters(ec *emitter.Context, n int) {
	for i := 0; i < n; i++ {
		ec.VStack().Push(ec.CreateGPR(jvmtype.Int, ec.RequestWordRegister(jvmtype.Int)))
	}
}

// Operations that need a register or an x87 slot while values sit deeper
// on the virtual stack. The operands must still be the right ones when
// the instruction that consumes them runs.
func TestFPUOperationsUnderPressure(t *testing.T) {
	tests := []struct {
		name  string
		setup func(ec *emitter.Context)
		op    func(c Compiler)
		want  []string // replay log entries, in order
	}{
		{
			name: "fcmpg with eax taken",
			setup: func(ec *emitter.Context) {
				fpuResidents(ec, 1)
				ec.RequestRegister(x86.EAX, nil)
				ec.VStack().Push(ec.CreateGPR(jvmtype.Int, x86.EAX))
				ec.VStack().Push(onFPU(ec, 1))
				ec.VStack().Push(onFPU(ec, 2))
			},
			op:   func(c Compiler) { c.Compare(true, jvmtype.Double) },
			want: []string{"fstp v0", "fucompp v2 v1"},
		},
		{
			name: "fcmpl with eax taken",
			setup: func(ec *emitter.Context) {
				fpuResidents(ec, 1)
				ec.RequestRegister(x86.EAX, nil)
				ec.VStack().Push(ec.CreateGPR(jvmtype.Int, x86.EAX))
				ec.VStack().Push(onFPU(ec, 1))
				ec.VStack().Push(onFPU(ec, 2))
			},
			op:   func(c Compiler) { c.Compare(false, jvmtype.Double) },
			want: []string{"fstp v0", "fucompp v1 v2"},
		},
		{
			name: "compare with every register taken",
			setup: func(ec *emitter.Context) {
				fpuResidents(ec, 2)
				intsInRegisters(ec, 5)
				ec.VStack().Push(onFPU(ec, 2))
				ec.VStack().Push(onFPU(ec, 3))
			},
			op:   func(c Compiler) { c.Compare(true, jvmtype.Double) },
			want: []string{"fstp v0", "fstp v1", "fucompp v3 v2"},
		},
		{
			name: "rem with the x87 stack full",
			setup: func(ec *emitter.Context) {
				fpuResidents(ec, 8)
				ec.VStack().Push(ec.CreateLocal(jvmtype.Double, -8))
			},
			op:   func(c Compiler) { c.Rem(jvmtype.Double) },
			want: []string{"fstp v0", "fstp v6", "fprem v7 v8"},
		},
		{
			name: "d2i with every register taken",
			setup: func(ec *emitter.Context) {
				fpuResidents(ec, 2)
				intsInRegisters(ec, 5)
				ec.VStack().Push(onFPU(ec, 3.5))
			},
			op:   func(c Compiler) { c.Convert(jvmtype.Double, jvmtype.Int) },
			want: []string{"fstp v0", "fstp v1", "fistp v2"},
		},
		{
			name: "d2l with every register taken",
			setup: func(ec *emitter.Context) {
				fpuResidents(ec, 1)
				intsInRegisters(ec, 5)
				ec.VStack().Push(onFPU(ec, 3.5))
			},
			op:   func(c Compiler) { c.Convert(jvmtype.Double, jvmtype.Long) },
			want: []string{"fstp v0", "fistp v1"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, ec, asm := newCompiler(t, FPU, x86.Code32)
			run(t, func() {
				tt.setup(ec)
				tt.op(c)
				if ec.FPU().Len() > 1 {
					t.Errorf("got fpu %s, want at most the result", ec.FPU())
				}
			})
			log := replayX87(t, asm.Instructions())
			if !hasInOrder(log, tt.want) {
				t.Errorf("got %q, want %q in order", log, tt.want)
			}
			if err := asm.Validate(); err != nil {
				t.Error(err)
			}
			finish(t, ec)
		})
	}
}

func hasInOrder(log, want []string) bool {
	i := 0
	for _, l := range log {
		if i < len(want) && l == want[i] {
			i++
		}
	}
	return i == len(want)
}

func TestReplayX87(t *testing.T) {
	c, ec, asm := newCompiler(t, FPU, x86.Code32)
	run(t, func() {
		ec.VStack().Push(onFPU(ec, 1))
		ec.VStack().Push(onFPU(ec, 2))
		c.Sub(jvmtype.Double)
		ec.EndBasicBlock()
	})
	got := strings.Join(replayX87(t, asm.Instructions()), ";")
	if want := "fstp (v0 fsubp v1)"; got != want {
		t.Errorf("got %q, want %q", got, want)
	}
	finish(t, ec)
}
