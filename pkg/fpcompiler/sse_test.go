package fpcompiler

import (
	"errors"
	"testing"

	"github.com/raymyers/ralph-jit/pkg/emitter"
	"github.com/raymyers/ralph-jit/pkg/jvmtype"
	"github.com/raymyers/ralph-jit/pkg/x86"
)

func TestSSEBinary(t *testing.T) {
	tests := []struct {
		name  string
		typ   jvmtype.Type
		right func(ec *emitter.Context) *emitter.Item
		want  []string
	}{
		{
			name:  "local right operand stays in memory",
			typ:   jvmtype.Float,
			right: func(ec *emitter.Context) *emitter.Item { return ec.CreateLocal(jvmtype.Float, -8) },
			want:  []string{"movss xmm7, dword [ebp-4]", "subss xmm7, dword [ebp-8]"},
		},
		{
			name:  "constant right operand",
			typ:   jvmtype.Double,
			right: func(ec *emitter.Context) *emitter.Item { return ec.CreateDoubleConst(1) },
			want: []string{
				"push 1072693248", "push 0", "movsd xmm7, qword [esp]", "lea esp, [esp+8]",
				"movsd xmm6, qword [ebp-4]",
				"subsd xmm6, xmm7",
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, ec, asm := newCompiler(t, SSE, x86.Code32)
			run(t, func() {
				ec.VStack().Push(ec.CreateLocal(tt.typ, -4))
				ec.VStack().Push(tt.right(ec))
				c.Sub(tt.typ)
				if res := ec.VStack().Peek(); !res.IsXMM() {
					t.Errorf("got %s, want an xmm result", res)
				}
			})
			equalLines(t, asm.Instructions(), tt.want)
			finish(t, ec)
		})
	}
}

func TestSSEUnimplemented(t *testing.T) {
	tests := []struct {
		name string
		fn   func(c Compiler)
		args int
	}{
		{"rem", func(c Compiler) { c.Rem(jvmtype.Double) }, 2},
		{"neg", func(c Compiler) { c.Neg(jvmtype.Double) }, 1},
		{"cmpg", func(c Compiler) { c.Compare(true, jvmtype.Double) }, 2},
		{"cmpl", func(c Compiler) { c.Compare(false, jvmtype.Float) }, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, ec, asm := newCompiler(t, SSE, x86.Code64)
			typ := jvmtype.Double
			if tt.name == "cmpl" {
				typ = jvmtype.Float
			}
			for i := 0; i < tt.args; i++ {
				ec.VStack().Push(ec.CreateLocal(typ, int16(-8*(i+1))))
			}
			err := emitter.Guard(func() { tt.fn(c) })
			if !errors.Is(err, emitter.ErrNotImplemented) {
				t.Errorf("got %v, want %v", err, emitter.ErrNotImplemented)
			}
			if asm.Len() != 0 {
				t.Errorf("got %q, want no code", x86.Strings(asm.Instructions()))
			}
			if !Refuses(SSE, x86.Code64, tt.name) {
				t.Errorf("Refuses(sse, %s) = false, want true", tt.name)
			}
		})
	}
	if Refuses(FPU, x86.Code32, "rem") {
		t.Error("the fpu backend implements rem")
	}
	if !Refuses(SSE, x86.Code32, "convert_long") || Refuses(SSE, x86.Code64, "convert_long") {
		t.Error("sse long conversions are refused in 32-bit mode only")
	}
	if Refuses(SSE, x86.Code32, "convert") {
		t.Error("sse int conversions work in 32-bit mode")
	}
}

func TestSSEConvert(t *testing.T) {
	tests := []struct {
		name     string
		mode     x86.Mode
		from, to jvmtype.Type
		want     []string
		wantErr  error
	}{
		{
			name: "i2d",
			mode: x86.Code32,
			from: jvmtype.Int, to: jvmtype.Double,
			want: []string{"mov ebx, dword [ebp-4]", "cvtsi2sd xmm7, ebx"},
		},
		{
			name: "f2i",
			mode: x86.Code32,
			from: jvmtype.Float, to: jvmtype.Int,
			want: []string{"movss xmm7, dword [ebp-4]", "cvttss2si ebx, xmm7"},
		},
		{
			name: "f2d",
			mode: x86.Code32,
			from: jvmtype.Float, to: jvmtype.Double,
			want: []string{"movss xmm7, dword [ebp-4]", "cvtss2sd xmm6, xmm7"},
		},
		{
			name: "l2d 64",
			mode: x86.Code64,
			from: jvmtype.Long, to: jvmtype.Double,
			want: []string{"mov r15, qword [rbp-4]", "cvtsi2sd xmm15, r15"},
		},
		{
			name: "d2l 64",
			mode: x86.Code64,
			from: jvmtype.Double, to: jvmtype.Long,
			want: []string{"movsd xmm15, qword [rbp-4]", "cvttsd2si r15, xmm15"},
		},
		{
			name: "l2f 32",
			mode: x86.Code32,
			from: jvmtype.Long, to: jvmtype.Float,
			wantErr: emitter.ErrNotImplemented,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, ec, asm := newCompiler(t, SSE, tt.mode)
			ec.VStack().Push(ec.CreateLocal(tt.from, -4))
			err := emitter.Guard(func() { c.Convert(tt.from, tt.to) })
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("got %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if res := ec.VStack().Peek(); res.Type() != tt.to {
				t.Errorf("got %s, want %s", res, tt.to)
			}
			equalLines(t, asm.Instructions(), tt.want)
			finish(t, ec)
		})
	}
}

func TestSSEFPALoad(t *testing.T) {
	c, ec, asm := newCompiler(t, SSE, x86.Code32)
	run(t, func() {
		ec.VStack().Push(ec.CreateLocal(jvmtype.Reference, -8))
		ec.VStack().Push(ec.CreateIntConst(1))
		c.FPALoad(jvmtype.Double)
		if res := ec.VStack().Peek(); !res.IsXMM() {
			t.Errorf("got %s, want an xmm result", res)
		}
	})
	code := x86.Strings(asm.Instructions())
	if last := code[len(code)-1]; last != "movsd xmm7, qword [ebx+20]" {
		t.Errorf("got %q, want movsd xmm7, qword [ebx+20]", last)
	}
	finish(t, ec)
}
