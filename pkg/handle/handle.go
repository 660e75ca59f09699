// Package handle defines the identities used by the ownership tables.
// Register pools and the FPU stack model record which value owns a slot
// by ID instead of holding pointers back into the value graph.
package handle

import "strconv"

// ID identifies one live value within a single compilation
type ID uint32

// None is the zero ID, meaning "no owner"
const None ID = 0

// IsNone reports whether id is the zero ID
func (id ID) IsNone() bool { return id == None }

func (id ID) String() string {
	if id == None {
		return "none"
	}
	return "#" + strconv.FormatUint(uint64(id), 10)
}
