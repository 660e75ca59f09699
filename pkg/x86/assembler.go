package x86

import "fmt"

// Writer is the emission primitive used by the code generator
type Writer interface {
	Mode() Mode
	Emit(in Instr)
	Len() int
}

// Assembler records an instruction stream and its label bindings
type Assembler struct {
	mode   Mode
	code   []Instr
	labels map[Label]int // label -> index of its LABEL pseudo instruction
	dups   []Label       // labels bound more than once
}

// NewAssembler creates an empty assembler for the given mode
func NewAssembler(mode Mode) *Assembler {
	return &Assembler{mode: mode, labels: make(map[Label]int)}
}

// Mode returns the code generation mode
func (a *Assembler) Mode() Mode { return a.mode }

// IsCode32 reports whether the assembler emits 32-bit code
func (a *Assembler) IsCode32() bool { return a.mode == Code32 }

// IsCode64 reports whether the assembler emits 64-bit code
func (a *Assembler) IsCode64() bool { return a.mode == Code64 }

// Emit appends an instruction
func (a *Assembler) Emit(in Instr) {
	if in.Op == LABEL {
		if l, ok := in.Target(); ok {
			if _, seen := a.labels[l]; seen {
				a.dups = append(a.dups, l)
			} else {
				a.labels[l] = len(a.code)
			}
		}
	}
	a.code = append(a.code, in)
}

// Bind places label l at the current position
func (a *Assembler) Bind(l Label) {
	a.Emit(Instr{Op: LABEL, Args: []Operand{l}})
}

// Len returns the number of recorded instructions, labels included
func (a *Assembler) Len() int { return len(a.code) }

// Instructions returns the recorded instructions
func (a *Assembler) Instructions() []Instr { return a.code }

// Since returns the instructions recorded after position mark
func (a *Assembler) Since(mark int) []Instr {
	if mark >= len(a.code) {
		return nil
	}
	return a.code[mark:]
}

// LabelIndex returns the position of a bound label
func (a *Assembler) LabelIndex(l Label) (int, bool) {
	i, ok := a.labels[l]
	return i, ok
}

// Validate checks that every label is bound once and every local jump
// target is bound. External symbols (call targets) are not checked.
func (a *Assembler) Validate() error {
	if len(a.dups) > 0 {
		return fmt.Errorf("label %s bound more than once", a.dups[0])
	}
	for _, in := range a.code {
		if !in.Op.IsJump() {
			continue
		}
		l, ok := in.Target()
		if !ok {
			continue
		}
		if _, bound := a.labels[l]; !bound && !IsExternal(l) {
			return fmt.Errorf("jump to unbound label %s", l)
		}
	}
	return nil
}

// IsExternal reports whether l names a runtime symbol rather than a local label
func IsExternal(l Label) bool {
	return len(l) > 2 && l[0] == '$' && l[1] == '$'
}

// Count returns how many instructions in code use one of ops
func Count(code []Instr, ops ...Op) int {
	n := 0
	for _, in := range code {
		for _, op := range ops {
			if in.Op == op {
				n++
				break
			}
		}
	}
	return n
}

// Strings formats each instruction with Instr.String
func Strings(code []Instr) []string {
	out := make([]string, len(code))
	for i, in := range code {
		out[i] = in.String()
	}
	return out
}
