package emitter

import "strings"

// Kind is the current location class of an Item. Kinds are bit flags so
// that a set of kinds can be passed to LoadIf.
type Kind uint8

// KindNone marks an item that has no location (released or in transition)
const KindNone Kind = 0

const (
	KindGPR Kind = 1 << iota
	KindLocal
	KindConstant
	KindStack
	KindFPUStack
	KindXMM
)

var kindNames = []struct {
	k    Kind
	name string
}{
	{KindGPR, "gpr"},
	{KindLocal, "local"},
	{KindConstant, "const"},
	{KindStack, "stack"},
	{KindFPUStack, "fpu"},
	{KindXMM, "xmm"},
}

func (k Kind) String() string {
	if k == KindNone {
		return "none"
	}
	var parts []string
	for _, kn := range kindNames {
		if k&kn.k != 0 {
			parts = append(parts, kn.name)
		}
	}
	return strings.Join(parts, "|")
}
