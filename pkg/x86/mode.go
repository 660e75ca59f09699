package x86

import "fmt"

// Mode is the code generation mode
type Mode int

const (
	Code32 Mode = 32
	Code64 Mode = 64
)

// Is32 reports whether m is 32-bit mode
func (m Mode) Is32() bool { return m == Code32 }

// Is64 reports whether m is 64-bit mode
func (m Mode) Is64() bool { return m == Code64 }

// SlotSize returns the width of one native stack slot in bytes
func (m Mode) SlotSize() int {
	if m == Code64 {
		return 8
	}
	return 4
}

// SP returns the stack pointer register of the mode
func (m Mode) SP() Register {
	if m == Code64 {
		return RSP
	}
	return ESP
}

// BP returns the frame pointer register of the mode
func (m Mode) BP() Register {
	if m == Code64 {
		return RBP
	}
	return EBP
}

func (m Mode) String() string {
	switch m {
	case Code32:
		return "32"
	case Code64:
		return "64"
	}
	return "?"
}

// ParseMode parses "32" or "64"
func ParseMode(s string) (Mode, error) {
	switch s {
	case "32", "x86", "i386":
		return Code32, nil
	case "64", "x86_64", "amd64":
		return Code64, nil
	}
	return 0, fmt.Errorf("unknown code mode %q (want 32 or 64)", s)
}
