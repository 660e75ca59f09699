package fpcompiler

import (
	"errors"
	"testing"

	"github.com/raymyers/ralph-jit/pkg/emitter"
	"github.com/raymyers/ralph-jit/pkg/jvmtype"
	"github.com/raymyers/ralph-jit/pkg/x86"
)

var testArrays = Arrays{LengthOffset: 8, DataOffset: 12}

func newCompiler(t *testing.T, b Backend, mode x86.Mode) (Compiler, *emitter.Context, *x86.Assembler) {
	t.Helper()
	asm := x86.NewAssembler(mode)
	ec := emitter.NewContext(asm, emitter.Options{MaxStack: 16, Verify: true})
	c, err := New(b, ec, testArrays)
	if err != nil {
		t.Fatal(err)
	}
	return c, ec, asm
}

func run(t *testing.T, fn func()) {
	t.Helper()
	if err := emitter.Guard(fn); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// onFPU creates a double already loaded on the x87 stack
func onFPU(ec *emitter.Context, v float64) *emitter.Item {
	it := ec.CreateDoubleConst(v)
	it.PushToFPU(ec)
	return it
}

func equalLines(t *testing.T, got []x86.Instr, want []string) {
	t.Helper()
	g := x86.Strings(got)
	if len(g) != len(want) {
		t.Fatalf("got %d instructions %q, want %d %q", len(g), g, len(want), want)
	}
	for i := range want {
		if g[i] != want[i] {
			t.Errorf("instruction %d: got %q, want %q", i, g[i], want[i])
		}
	}
}

// finish flushes what is left and checks that nothing leaked
func finish(t *testing.T, ec *emitter.Context) {
	t.Helper()
	run(t, func() { ec.EndBasicBlock() })
	if err := ec.CheckClean(); err != nil {
		t.Error(err)
	}
}

func TestParseBackend(t *testing.T) {
	tests := []struct {
		in      string
		want    Backend
		wantErr bool
	}{
		{"fpu", FPU, false},
		{"X87", FPU, false},
		{"sse", SSE, false},
		{"SSE2", SSE, false},
		{"avx", FPU, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseBackend(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("got error %v, want error %v", err, tt.wantErr)
			}
			if err == nil && got != tt.want {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestFoldConstants(t *testing.T) {
	tests := []struct {
		name string
		op   func(c Compiler, typ jvmtype.Type)
		a, b float64
		want float64
	}{
		{"add", Compiler.Add, 1.5, 2.25, 3.75},
		{"sub", Compiler.Sub, 1.5, 2.25, -0.75},
		{"mul", Compiler.Mul, 1.5, -2, -3},
		{"div", Compiler.Div, 1, 4, 0.25},
		{"rem", Compiler.Rem, 7.5, 2, 1.5},
		{"rem negative", Compiler.Rem, -7.5, 2, -1.5},
	}
	for _, b := range []Backend{FPU, SSE} {
		for _, tt := range tests {
			t.Run(b.String()+" "+tt.name, func(t *testing.T) {
				c, ec, asm := newCompiler(t, b, x86.Code32)
				run(t, func() {
					ec.VStack().Push(ec.CreateDoubleConst(tt.a))
					ec.VStack().Push(ec.CreateDoubleConst(tt.b))
					tt.op(c, jvmtype.Double)
					res := ec.VStack().Pop()
					if got := res.DoubleValue(); got != tt.want {
						t.Errorf("got %v, want %v", got, tt.want)
					}
					res.Release(ec)
				})
				if asm.Len() != 0 {
					t.Errorf("folding emitted %q", x86.Strings(asm.Instructions()))
				}
				finish(t, ec)
			})
		}
	}
}

func TestFoldConvertAndCompare(t *testing.T) {
	c, ec, asm := newCompiler(t, FPU, x86.Code32)
	run(t, func() {
		convert := func(from, to jvmtype.Type, v *emitter.Item) *emitter.Item {
			ec.VStack().Push(v)
			c.Convert(from, to)
			return ec.VStack().Pop()
		}
		ints := []struct {
			in   float64
			want int32
		}{
			{3.9, 3}, {-3.9, -3}, {1e20, 2147483647}, {-1e20, -2147483648}, {zero() / zero(), 0},
		}
		for _, tt := range ints {
			if got := convert(jvmtype.Double, jvmtype.Int, ec.CreateDoubleConst(tt.in)).IntValue(); got != tt.want {
				t.Errorf("d2i(%v): got %d, want %d", tt.in, got, tt.want)
			}
		}
		if got := convert(jvmtype.Float, jvmtype.Long, ec.CreateFloatConst(1e30)).LongValue(); got != 9223372036854775807 {
			t.Errorf("f2l: got %d", got)
		}
		// rounding through float64 first would give 1<<53
		if got := convert(jvmtype.Long, jvmtype.Float, ec.CreateLongConst(1<<53+1<<29+1)).FloatValue(); got != float32(1<<53+1<<30) {
			t.Errorf("l2f: got %v", got)
		}

		cmp := []struct {
			gt   bool
			a, b float64
			want int32
		}{
			{true, 1, 2, -1}, {false, 2, 1, 1}, {true, 1, 1, 0},
			{true, zero() / zero(), 1, 1}, {false, zero() / zero(), 1, -1},
		}
		for _, tt := range cmp {
			ec.VStack().Push(ec.CreateDoubleConst(tt.a))
			ec.VStack().Push(ec.CreateDoubleConst(tt.b))
			c.Compare(tt.gt, jvmtype.Double)
			if got := ec.VStack().PopInt().IntValue(); got != tt.want {
				t.Errorf("compare(%v, %v, %v): got %d, want %d", tt.gt, tt.a, tt.b, got, tt.want)
			}
		}
	})
	if asm.Len() != 0 {
		t.Errorf("folding emitted %q", x86.Strings(asm.Instructions()))
	}
}

func zero() float64 { return 0 }

func TestSubNeedsOneExchange(t *testing.T) {
	c, ec, asm := newCompiler(t, FPU, x86.Code32)
	run(t, func() {
		// right is loaded first, so the left operand is on top
		right := onFPU(ec, 2)
		left := onFPU(ec, 5)
		ec.VStack().Push(left)
		ec.VStack().Push(right)
		mark := asm.Len()
		c.Sub(jvmtype.Double)
		equalLines(t, asm.Since(mark), []string{"fxch st1", "fsubp st1"})
		if res := ec.VStack().Peek(); !res.IsFPUStack() || !ec.IsFPUTos(res) {
			t.Errorf("got %s, want the result on top of the fpu stack", res)
		}
		if ec.FPU().Len() != 1 {
			t.Errorf("got fpu %s, want one value", ec.FPU())
		}
	})
	finish(t, ec)
}

func TestSubInOrderNeedsNoExchange(t *testing.T) {
	c, ec, asm := newCompiler(t, FPU, x86.Code32)
	run(t, func() {
		left := onFPU(ec, 5)
		right := onFPU(ec, 2)
		ec.VStack().Push(left)
		ec.VStack().Push(right)
		mark := asm.Len()
		c.Sub(jvmtype.Double)
		equalLines(t, asm.Since(mark), []string{"fsubp st1"})
	})
	finish(t, ec)
}

func TestBinaryFromMemory(t *testing.T) {
	tests := []struct {
		name string
		op   func(c Compiler, typ jvmtype.Type)
		want []string
	}{
		{"add", Compiler.Add, []string{
			"push 1075838976", "fld dword [esp]", "lea esp, [esp+4]",
			"fld dword [ebp-4]",
			"faddp st1",
		}},
		{"div", Compiler.Div, []string{
			"push 1075838976", "fld dword [esp]", "lea esp, [esp+4]",
			"fld dword [ebp-4]",
			"fxch st1",
			"fdivp st1",
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, ec, asm := newCompiler(t, FPU, x86.Code32)
			run(t, func() {
				ec.VStack().Push(ec.CreateLocal(jvmtype.Float, -4))
				ec.VStack().Push(ec.CreateFloatConst(2.5))
				tt.op(c, jvmtype.Float)
			})
			equalLines(t, asm.Instructions(), tt.want)
			finish(t, ec)
		})
	}
}

func TestRemArrangesDividend(t *testing.T) {
	c, ec, asm := newCompiler(t, FPU, x86.Code32)
	run(t, func() {
		ec.VStack().Push(ec.CreateLocal(jvmtype.Double, -8))
		ec.VStack().Push(ec.CreateLocal(jvmtype.Double, -16))
		c.Rem(jvmtype.Double)
	})
	equalLines(t, asm.Instructions(), []string{
		"fld qword [ebp-16]",
		"fld qword [ebp-8]",
		"fxch st1",
		"fxch st1",
		"fprem",
		"fstp st1",
	})
	finish(t, ec)
}

func TestNeg(t *testing.T) {
	c, ec, asm := newCompiler(t, FPU, x86.Code32)
	run(t, func() {
		a := onFPU(ec, 1)
		b := onFPU(ec, 2)
		ec.VStack().Push(b)
		ec.VStack().Push(a)
		mark := asm.Len()
		c.Neg(jvmtype.Double)
		equalLines(t, asm.Since(mark), []string{"fxch st1", "fchs"})
	})
	finish(t, ec)
}

func TestConvertThroughFPU(t *testing.T) {
	c, ec, asm := newCompiler(t, FPU, x86.Code32)
	run(t, func() {
		ec.VStack().Push(ec.CreateLocal(jvmtype.Int, -4))
		c.Convert(jvmtype.Int, jvmtype.Double)
		res := ec.VStack().Peek()
		if res.Type() != jvmtype.Double || !res.IsGPR() {
			t.Errorf("got %s, want a double in registers", res)
		}
	})
	equalLines(t, asm.Instructions(), []string{
		"fild dword [ebp-4]",
		"lea esp, [esp-8]",
		"fstp qword [esp]",
		"pop ebx",
		"pop esi",
	})
	finish(t, ec)
}

func TestCompareOnFPU(t *testing.T) {
	c, ec, asm := newCompiler(t, FPU, x86.Code32)
	run(t, func() {
		left := onFPU(ec, 1)
		right := onFPU(ec, 2)
		other := onFPU(ec, 3)
		ec.VStack().Push(other)
		ec.VStack().Push(left)
		ec.VStack().Push(right)
		mark := asm.Len()
		c.Compare(true, jvmtype.Double)
		code := asm.Since(mark)
		equalLines(t, code, []string{
			"fxch st1",
			"fxch st2",
			"fxch st1",
			"fxch st2",
			"xor ebx, ebx",
			"fucompp",
			"fnstsw ax",
			"sahf",
			"ja L1gt",
			"jb L1lt",
			"jmp L1end",
			"L1gt:",
			"dec ebx",
			"jmp L1end",
			"L1lt:",
			"inc ebx",
			"L1end:",
		})
		dispatch := 0
		for _, in := range code {
			if in.Op == x86.LABEL {
				break
			}
			if in.Op.IsJump() {
				dispatch++
			}
		}
		if dispatch != 3 {
			t.Errorf("got %d dispatch branches, want 3", dispatch)
		}
		res := ec.VStack().Peek()
		if res.Type() != jvmtype.Int || res.Register() != x86.EBX {
			t.Errorf("got %s, want an int in ebx", res)
		}
		if !ec.GPRs().IsFree(x86.EAX) {
			t.Error("eax not released")
		}
		if ec.FPU().Len() != 1 || !ec.IsFPUTos(other) {
			t.Errorf("got fpu %s, want only %s", ec.FPU(), other)
		}
	})
	if err := asm.Validate(); err != nil {
		t.Error(err)
	}
	finish(t, ec)
}

func TestCompare64EmulatesFlags(t *testing.T) {
	c, ec, asm := newCompiler(t, FPU, x86.Code64)
	run(t, func() {
		ec.SetInstructionLabel("m_4")
		ec.VStack().Push(ec.CreateLocal(jvmtype.Float, -8))
		ec.VStack().Push(ec.CreateLocal(jvmtype.Float, -16))
		c.Compare(false, jvmtype.Float)
	})
	code := asm.Instructions()
	if n := x86.Count(code, x86.SAHF); n != 0 {
		t.Errorf("got %d sahf in 64-bit code", n)
	}
	want := []string{"test eax, 16640", "jz m_4gt", "test eax, 256", "jnz m_4lt", "jmp m_4end"}
	got := x86.Strings(code)
	start := -1
	for i, s := range got {
		if s == want[0] {
			start = i
			break
		}
	}
	if start < 0 || start+len(want) > len(got) {
		t.Fatalf("no flag test in %q", got)
	}
	equalLines(t, code[start:start+len(want)], want)
	finish(t, ec)
}

func TestFPALoad(t *testing.T) {
	tests := []struct {
		name string
		mode x86.Mode
		typ  jvmtype.Type
		ref  int16
		idx  func(ec *emitter.Context) *emitter.Item
		want []string
	}{
		{
			name: "constant index",
			mode: x86.Code32,
			typ:  jvmtype.Float,
			ref:  -8,
			idx:  func(ec *emitter.Context) *emitter.Item { return ec.CreateIntConst(2) },
			want: []string{
				"mov ebx, dword [ebp-8]",
				"jmp L1$$cbtest",
				"L1$$cbfailed:",
				"push ebx",
				"push 2",
				"call $$throwArrayOutOfBounds",
				"L1$$cbtest:",
				"cmp dword [ebx+8], 2",
				"jbe L1$$cbfailed",
				"fld dword [ebx+20]",
			},
		},
		{
			name: "register index 64",
			mode: x86.Code64,
			typ:  jvmtype.Double,
			ref:  -16,
			idx:  func(ec *emitter.Context) *emitter.Item { return ec.CreateLocal(jvmtype.Int, -8) },
			want: []string{
				"mov r15d, dword [rbp-8]",
				"mov r14, qword [rbp-16]",
				"jmp L1$$cbtest",
				"L1$$cbfailed:",
				"push r14",
				"push r15",
				"call $$throwArrayOutOfBounds",
				"L1$$cbtest:",
				"cmp dword [r14+8], r15d",
				"jbe L1$$cbfailed",
				"movsxd r15, r15d",
				"fld qword [r14+r15*8+12]",
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, ec, asm := newCompiler(t, FPU, tt.mode)
			run(t, func() {
				ec.VStack().Push(ec.CreateLocal(jvmtype.Reference, tt.ref))
				ec.VStack().Push(tt.idx(ec))
				c.FPALoad(tt.typ)
				res := ec.VStack().Peek()
				if res.Type() != tt.typ || !res.IsFPUStack() {
					t.Errorf("got %s, want a %s on the fpu stack", res, tt.typ)
				}
			})
			equalLines(t, asm.Instructions(), tt.want)
			if err := asm.Validate(); err != nil {
				t.Error(err)
			}
			finish(t, ec)
		})
	}
}

func TestFPUOverflowFlushes(t *testing.T) {
	c, ec, _ := newCompiler(t, FPU, x86.Code32)
	run(t, func() {
		for i := 0; i < 8; i++ {
			ec.VStack().Push(onFPU(ec, float64(i)))
		}
		ec.VStack().Push(ec.CreateLocal(jvmtype.Double, -8))
		ec.VStack().Push(ec.CreateLocal(jvmtype.Double, -16))
		c.Add(jvmtype.Double)
		if got := ec.Stats().FPUFlushes; got != 1 {
			t.Errorf("got %d fpu flushes, want 1", got)
		}
		if ec.FPU().Len() != 1 {
			t.Errorf("got fpu %s, want only the result", ec.FPU())
		}
	})
	finish(t, ec)
}

func TestTypeChecked(t *testing.T) {
	c, ec, _ := newCompiler(t, FPU, x86.Code32)
	ec.VStack().Push(ec.CreateIntConst(1))
	ec.VStack().Push(ec.CreateIntConst(2))
	err := emitter.Guard(func() { c.Add(jvmtype.Int) })
	if !errors.Is(err, emitter.ErrTypeMismatch) {
		t.Errorf("got %v, want %v", err, emitter.ErrTypeMismatch)
	}
}
