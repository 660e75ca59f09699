// Package regpool tracks which value owns each allocatable register.
//
// A pool is an ordered table of register groups. A group is one physical
// register viewed at several widths (eax/rax), so owning any view owns the
// group. The table order determines the cost of using a register: the cost
// is lower when the index is higher.
package regpool

import (
	"fmt"
	"strings"

	"github.com/raymyers/ralph-jit/pkg/handle"
	"github.com/raymyers/ralph-jit/pkg/jvmtype"
	"github.com/raymyers/ralph-jit/pkg/x86"
)

// entry is one view of a register group usable for a value type
type entry struct {
	reg x86.Register
	typ jvmtype.Type
}

// group is the usage record of one physical register
type group struct {
	entries     []entry
	owner       handle.ID    // handle.None for anonymous claims
	inuse       bool         // set while claimed, owned or not
	used        x86.Register // the view that was handed out
	calleeSaved bool         // preserved across calls by the called method
}

func (g *group) contains(reg x86.Register) bool {
	for _, e := range g.entries {
		if e.reg == reg {
			return true
		}
	}
	return false
}

func (g *group) find(typ jvmtype.Type, bits8 bool) (x86.Register, bool) {
	for _, e := range g.entries {
		if e.typ == typ && (!bits8 || e.reg.SuitableForBits8()) {
			return e.reg, true
		}
	}
	return x86.NoRegister, false
}

func (g *group) claim(owner handle.ID, reg x86.Register) {
	g.owner = owner
	g.inuse = true
	g.used = reg
}

func (g *group) release() {
	g.owner = handle.None
	g.inuse = false
	g.used = x86.NoRegister
}

// Pool is the ownership table for one register class
type Pool struct {
	name        string
	groups      []*group
	lastFirst   bool
	minRequest  int // lowest index the round robin may hand out
	lastRequest int // index of the last round robin request
}

func newPool(name string, lastFirst bool, minRequest int, groups []*group) *Pool {
	return &Pool{
		name:        name,
		groups:      groups,
		lastFirst:   lastFirst,
		minRequest:  minRequest,
		lastRequest: len(groups),
	}
}

// Name returns a short description of the pool
func (p *Pool) Name() string { return p.name }

// Request returns a free register suitable for typ and records owner as its
// owner. When the pool is not last-first, requests rotate over the indices
// above the minimum before falling back to a scan from the cheapest end.
func (p *Pool) Request(typ jvmtype.Type, owner handle.ID) (x86.Register, bool) {
	return p.request(typ, owner, false)
}

// RequestBits8 is like Request but only hands out byte addressable registers
func (p *Pool) RequestBits8(typ jvmtype.Type, owner handle.ID) (x86.Register, bool) {
	return p.request(typ, owner, true)
}

func (p *Pool) request(typ jvmtype.Type, owner handle.ID, bits8 bool) (x86.Register, bool) {
	n := len(p.groups)
	if !p.lastFirst {
		for i := n - 1 - p.minRequest; i >= 0; i-- {
			p.lastRequest--
			if p.lastRequest < p.minRequest {
				p.lastRequest = n - 1
			}
			g := p.groups[p.lastRequest]
			if g.inuse {
				continue
			}
			if reg, ok := g.find(typ, bits8); ok {
				g.claim(owner, reg)
				return reg, true
			}
		}
	}
	for i := n - 1; i >= 0; i-- {
		g := p.groups[i]
		if g.inuse {
			continue
		}
		if reg, ok := g.find(typ, bits8); ok {
			g.claim(owner, reg)
			return reg, true
		}
	}
	return x86.NoRegister, false
}

// Claim takes the given register for owner. It returns false, changing
// nothing, when the register is already in use.
func (p *Pool) Claim(reg x86.Register, owner handle.ID) bool {
	g := p.mustGet(reg)
	if g.inuse {
		return false
	}
	g.claim(owner, reg)
	return true
}

// IsFree reports whether the register's group is unclaimed
func (p *Pool) IsFree(reg x86.Register) bool {
	return !p.mustGet(reg).inuse
}

// IsCallerSaved reports whether a called method preserves the register,
// so that a value held in it survives a call.
func (p *Pool) IsCallerSaved(reg x86.Register) bool {
	return p.mustGet(reg).calleeSaved
}

// Owner returns the register's owner and whether the register is in use.
// An in-use register with owner handle.None is an anonymous scratch claim.
func (p *Pool) Owner(reg x86.Register) (handle.ID, bool) {
	g := p.mustGet(reg)
	return g.owner, g.inuse
}

// TransferOwnerTo moves ownership of an in-use register to owner
func (p *Pool) TransferOwnerTo(reg x86.Register, owner handle.ID) error {
	g := p.mustGet(reg)
	if !g.inuse {
		return fmt.Errorf("%s: transfer of free register %s", p.name, reg)
	}
	g.owner = owner
	g.used = reg
	return nil
}

// Release frees the register's group
func (p *Pool) Release(reg x86.Register) {
	p.mustGet(reg).release()
}

// Reset restarts the round robin. It fails, listing the offending
// registers, when any register is still in use.
func (p *Pool) Reset() error {
	p.lastRequest = len(p.groups)
	var inuse []string
	for _, g := range p.groups {
		if g.inuse {
			inuse = append(inuse, fmt.Sprintf("%s(%s)", g.used, g.owner))
		}
	}
	if len(inuse) > 0 {
		return fmt.Errorf("%s: register(s) in use: %s", p.name, strings.Join(inuse, ", "))
	}
	return nil
}

// RegisterInSameGroup returns the view of reg's group used for typ,
// e.g. RegisterInSameGroup(RAX, Int) is EAX in a 64-bit pool.
func (p *Pool) RegisterInSameGroup(reg x86.Register, typ jvmtype.Type) (x86.Register, bool) {
	return p.mustGet(reg).find(typ, false)
}

// Contains reports whether reg belongs to this pool
func (p *Pool) Contains(reg x86.Register) bool {
	return p.get(reg) != nil
}

// UsedRegisters returns the in-use registers in table order
func (p *Pool) UsedRegisters() []x86.Register {
	var regs []x86.Register
	for _, g := range p.groups {
		if g.inuse {
			regs = append(regs, g.used)
		}
	}
	return regs
}

// OwnedBy returns the registers owned by owner
func (p *Pool) OwnedBy(owner handle.ID) []x86.Register {
	var regs []x86.Register
	for _, g := range p.groups {
		if g.inuse && g.owner == owner {
			regs = append(regs, g.used)
		}
	}
	return regs
}

// FreeCount returns the number of free groups that have a view for typ
func (p *Pool) FreeCount(typ jvmtype.Type) int {
	n := 0
	for _, g := range p.groups {
		if _, ok := g.find(typ, false); ok && !g.inuse {
			n++
		}
	}
	return n
}

// Len returns the number of register groups
func (p *Pool) Len() int { return len(p.groups) }

func (p *Pool) get(reg x86.Register) *group {
	for i := len(p.groups) - 1; i >= 0; i-- {
		if p.groups[i].contains(reg) {
			return p.groups[i]
		}
	}
	return nil
}

func (p *Pool) mustGet(reg x86.Register) *group {
	g := p.get(reg)
	if g == nil {
		panic(fmt.Sprintf("regpool: unknown register %s in %s", reg, p.name))
	}
	return g
}

func (p *Pool) String() string {
	var sb strings.Builder
	for _, g := range p.groups {
		sb.WriteString(g.entries[0].reg.String())
		if g.inuse {
			fmt.Fprintf(&sb, " used as %s by %s", g.used, g.owner)
		} else {
			sb.WriteString(" free")
		}
		sb.WriteByte('\n')
	}
	return sb.String()
}
