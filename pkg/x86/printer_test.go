package x86

import (
	"bytes"
	"strings"
	"testing"
)

func TestPrintDataMovement(t *testing.T) {
	tests := []struct {
		name string
		inst Instr
		want string
	}{
		{"mov reg reg", Instr{Op: MOV, Args: []Operand{EAX, ECX}}, "\tmov\teax, ecx\n"},
		{"mov reg mem", Instr{Op: MOV, Size: 4, Args: []Operand{EDX, MemAt(EBP, -8)}}, "\tmov\tedx, dword [ebp-8]\n"},
		{"mov reg imm", Instr{Op: MOV, Args: []Operand{ESI, Imm(42)}}, "\tmov\tesi, 42\n"},
		{"mov 64-bit mem", Instr{Op: MOV, Size: 8, Args: []Operand{R13, MemAt(RBP, 16)}}, "\tmov\tr13, qword [rbp+16]\n"},
		{"push reg", Instr{Op: PUSH, Args: []Operand{EBX}}, "\tpush\tebx\n"},
		{"push mem", Instr{Op: PUSH, Size: 4, Args: []Operand{MemAt(ESP, 0)}}, "\tpush\tdword [esp]\n"},
		{"pop", Instr{Op: POP, Args: []Operand{RAX}}, "\tpop\trax\n"},
		{"xchg", Instr{Op: XCHG, Args: []Operand{EAX, EDX}}, "\txchg\teax, edx\n"},
		{"lea", Instr{Op: LEA, Args: []Operand{ESP, MemAt(ESP, -8)}}, "\tlea\tesp, [esp-8]\n"},
		{"indexed", Instr{Op: FLD, Size: 8, Args: []Operand{MemIndexed(EBX, ECX, 8, 12)}}, "\tfld\tqword [ebx+ecx*8+12]\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			p := NewPrinter(&buf)
			p.printInstruction(tt.inst)
			if got := buf.String(); got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestPrintFPUInstructions(t *testing.T) {
	tests := []struct {
		name string
		inst Instr
		want string
	}{
		{"fxch", Instr{Op: FXCH, Args: []Operand{ST(2)}}, "\tfxch\tst2\n"},
		{"faddp", Instr{Op: FADDP, Args: []Operand{ST1}}, "\tfaddp\tst1\n"},
		{"fchs", Instr{Op: FCHS}, "\tfchs\n"},
		{"fnstsw", Instr{Op: FNSTSW}, "\tfnstsw\tax\n"},
		{"fucompp", Instr{Op: FUCOMPP}, "\tfucompp\n"},
		{"fistp", Instr{Op: FISTP, Size: 8, Args: []Operand{MemAt(ESP, 0)}}, "\tfistp\tqword [esp]\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			p := NewPrinter(&buf)
			p.printInstruction(tt.inst)
			if got := buf.String(); got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestPrintLabelAndJump(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)
	p.printInstruction(Instr{Op: JA, Args: []Operand{Label("m$3gt")}})
	p.printInstruction(Instr{Op: LABEL, Args: []Operand{Label("m$3gt")}})
	want := "\tja\tm$3gt\nm$3gt:\n"
	if got := buf.String(); got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestPrintFunction(t *testing.T) {
	a := NewAssembler(Code32)
	a.Emit(Instr{Op: MOV, Args: []Operand{EAX, Imm(7)}})
	a.Emit(Instr{Op: RET})

	var buf bytes.Buffer
	NewPrinter(&buf).PrintFunction("seven", a.Mode(), a.Instructions())
	out := buf.String()
	for _, want := range []string{"\tbits\t32\n", "seven:\n", "\tmov\teax, 7\n", "\tret\n"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}
