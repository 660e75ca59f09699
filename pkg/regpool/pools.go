package regpool

import (
	"github.com/raymyers/ralph-jit/pkg/jvmtype"
	"github.com/raymyers/ralph-jit/pkg/x86"
)

// word32 builds a 32-bit mode group: int, reference and float share one view
func word32(reg x86.Register, calleeSaved bool) *group {
	return &group{
		entries: []entry{
			{reg, jvmtype.Int},
			{reg, jvmtype.Reference},
			{reg, jvmtype.Float},
		},
		calleeSaved: calleeSaved,
	}
}

// word64 builds a 64-bit mode group: int and float use the 32-bit view,
// reference, long and double the 64-bit view.
func word64(reg x86.Register, calleeSaved bool) *group {
	r32, r64 := reg.To32(), reg.To64()
	return &group{
		entries: []entry{
			{r32, jvmtype.Int},
			{r32, jvmtype.Float},
			{r64, jvmtype.Reference},
			{r64, jvmtype.Long},
			{r64, jvmtype.Double},
		},
		calleeSaved: calleeSaved,
	}
}

func xmm(nr int) *group {
	reg := x86.XMM(nr)
	return &group{entries: []entry{{reg, jvmtype.Float}, {reg, jvmtype.Double}}}
}

// NewGPRs32 returns the general purpose pool for 32-bit mode.
// EDI always points to the statics and is not allocatable.
func NewGPRs32() *Pool {
	return newPool("gprs32", false, 2, []*group{
		word32(x86.EAX, false),
		word32(x86.EDX, false),
		word32(x86.ECX, false),
		word32(x86.ESI, true),
		word32(x86.EBX, true),
	})
}

// NewGPRs64 returns the general purpose pool for 64-bit mode.
// RDI points to the statics and R12 to the current processor.
func NewGPRs64() *Pool {
	return newPool("gprs64", false, 2, []*group{
		word64(x86.RAX, false),
		word64(x86.RDX, false),
		word64(x86.RCX, false),
		word64(x86.RBX, true),
		word64(x86.RSI, false),
		word64(x86.R8, false),
		word64(x86.R9, false),
		word64(x86.R10, false),
		word64(x86.R11, false),
		word64(x86.R13, true),
		word64(x86.R14, true),
		word64(x86.R15, true),
	})
}

// NewXMMs32 returns the SSE pool for 32-bit mode (xmm0-xmm7)
func NewXMMs32() *Pool {
	groups := make([]*group, 8)
	for i := range groups {
		groups[i] = xmm(i)
	}
	return newPool("xmms32", false, 0, groups)
}

// NewXMMs64 returns the SSE pool for 64-bit mode (xmm0-xmm15)
func NewXMMs64() *Pool {
	groups := make([]*group, 16)
	for i := range groups {
		groups[i] = xmm(i)
	}
	return newPool("xmms64", false, 0, groups)
}

// NewGPRs returns the general purpose pool for mode
func NewGPRs(mode x86.Mode) *Pool {
	if mode.Is64() {
		return NewGPRs64()
	}
	return NewGPRs32()
}

// NewXMMs returns the SSE pool for mode
func NewXMMs(mode x86.Mode) *Pool {
	if mode.Is64() {
		return NewXMMs64()
	}
	return NewXMMs32()
}
