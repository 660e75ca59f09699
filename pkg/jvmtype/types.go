// Package jvmtype defines the value types carried on the operand stack.
package jvmtype

import "fmt"

// Type is the stack type of a value
type Type int

const (
	Void Type = iota
	Int
	Long
	Float
	Double
	Reference
)

// NumTypes is the number of distinct Type values, Void included
const NumTypes = int(Reference) + 1

func (t Type) String() string {
	names := []string{"void", "int", "long", "float", "double", "reference"}
	if t >= 0 && int(t) < len(names) {
		return names[t]
	}
	return "?"
}

// Category returns the number of operand stack slots a value of this type uses
func (t Type) Category() int {
	if t == Long || t == Double {
		return 2
	}
	if t == Void {
		return 0
	}
	return 1
}

// IsWide reports whether the type is a two-slot type (long or double)
func (t Type) IsWide() bool { return t.Category() == 2 }

// IsFloat reports whether the type is a floating point type
func (t Type) IsFloat() bool { return t == Float || t == Double }

// IsIntegral reports whether the type is int or long
func (t Type) IsIntegral() bool { return t == Int || t == Long }

// Prefix returns the bytecode mnemonic prefix for the type (i, l, f, d, a)
func (t Type) Prefix() byte {
	switch t {
	case Int:
		return 'i'
	case Long:
		return 'l'
	case Float:
		return 'f'
	case Double:
		return 'd'
	case Reference:
		return 'a'
	}
	return 'v'
}

// FromPrefix maps a bytecode mnemonic prefix back to its type
func FromPrefix(c byte) (Type, error) {
	switch c {
	case 'i':
		return Int, nil
	case 'l':
		return Long, nil
	case 'f':
		return Float, nil
	case 'd':
		return Double, nil
	case 'a':
		return Reference, nil
	}
	return Void, fmt.Errorf("unknown type prefix %q", c)
}
