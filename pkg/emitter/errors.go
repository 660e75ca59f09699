package emitter

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidKind      = errors.New("invalid item kind")
	ErrReleased         = errors.New("item used after release")
	ErrNotTop           = errors.New("item is not on top of the stack")
	ErrTypeMismatch     = errors.New("type mismatch")
	ErrStackOverflow    = errors.New("virtual stack overflow")
	ErrStackUnderflow   = errors.New("virtual stack underflow")
	ErrFPUStackOverflow = errors.New("fpu stack overflow")
	ErrRegisterInUse    = errors.New("register in use")
	ErrSpillFailed      = errors.New("register spill failed")
	ErrNotImplemented   = errors.New("not yet implemented")
	ErrInvalidState     = errors.New("inconsistent item state")
)

// InternalError reports a condition that can only arise from a bug in the
// code generator. It aborts the compilation of the current method.
type InternalError struct {
	Op   string // operation that detected the problem
	Item string // printed state of the offending item, if any
	Err  error
}

func (e *InternalError) Error() string {
	msg := fmt.Sprintf("internal error in %s: %v", e.Op, e.Err)
	if e.Item != "" {
		msg += " (item " + e.Item + ")"
	}
	return msg
}

func (e *InternalError) Unwrap() error { return e.Err }

// Fatal aborts the current compilation with an InternalError
func Fatal(op string, it *Item, err error) {
	ie := &InternalError{Op: op, Err: err}
	if it != nil {
		ie.Item = it.String()
	}
	panic(ie)
}

// Fatalf is Fatal with a formatted message wrapping err
func Fatalf(op string, it *Item, err error, format string, args ...any) {
	Fatal(op, it, fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err))
}

// Guard runs fn and returns the InternalError raised inside it, if any.
// Other panics propagate.
func Guard(fn func()) (err error) {
	defer func() {
		if r := recover(); r != nil {
			ie, ok := r.(*InternalError)
			if !ok {
				panic(r)
			}
			err = ie
		}
	}()
	fn()
	return nil
}
