package x86

import (
	"fmt"
	"io"
)

// Printer outputs x86 assembly in NASM-flavoured Intel syntax
type Printer struct {
	w io.Writer
}

// NewPrinter creates a new assembly printer
func NewPrinter(w io.Writer) *Printer {
	return &Printer{w: w}
}

// PrintFunction outputs one compiled method
func (p *Printer) PrintFunction(name string, mode Mode, code []Instr) {
	fmt.Fprintf(p.w, "\tbits\t%s\n", mode)
	fmt.Fprintf(p.w, "\tglobal\t%s\n", name)
	fmt.Fprintf(p.w, "%s:\n", name)
	for _, in := range code {
		p.printInstruction(in)
	}
	fmt.Fprintf(p.w, "\n")
}

// PrintInstructions outputs a bare instruction list
func (p *Printer) PrintInstructions(code []Instr) {
	for _, in := range code {
		p.printInstruction(in)
	}
}

func (p *Printer) printInstruction(in Instr) {
	if in.Op == LABEL {
		if l, ok := in.Target(); ok {
			fmt.Fprintf(p.w, "%s:\n", l)
		}
		return
	}
	ops := in.Operands()
	if ops == "" {
		fmt.Fprintf(p.w, "\t%s\n", in.Op)
		return
	}
	fmt.Fprintf(p.w, "\t%s\t%s\n", in.Op, ops)
}
