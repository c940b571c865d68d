// Package testutil builds synthetic PUD files for tests.
package testutil

import (
	"encoding/binary"

	"github.com/WCArena/pudscan/internal/chunk"
)

// Unit is one placement written into the UNIT chunk.
type Unit struct {
	X, Y  uint16
	Type  uint8
	Owner uint8
	Aux   uint16
}

// PUD assembles a container chunk by chunk.
type PUD struct {
	buf []byte
}

// NewPUD starts a container with a valid TYPE chunk.
func NewPUD() *PUD {
	p := &PUD{}
	return p.Chunk("TYPE", append([]byte("WAR2 MAP"), 0x00, 0x00))
}

// Empty starts a container with no chunks at all.
func Empty() *PUD { return &PUD{} }

// Chunk appends a raw chunk.
func (p *PUD) Chunk(tag string, payload []byte) *PUD {
	p.buf = chunk.Append(p.buf, tag, payload)
	return p
}

func (p *PUD) Version(v uint16) *PUD {
	return p.Chunk("VER ", u16(v))
}

func (p *PUD) Era(id uint16) *PUD {
	return p.Chunk("ERA ", u16(id))
}

func (p *PUD) EraX(id uint16) *PUD {
	return p.Chunk("ERAX", u16(id))
}

func (p *PUD) Dim(w, h uint16) *PUD {
	return p.Chunk("DIM ", append(u16(w), u16(h)...))
}

func (p *PUD) Name(s string) *PUD {
	return p.Chunk("NAME", append([]byte(s), 0))
}

func (p *PUD) Desc(s string) *PUD {
	return p.Chunk("DESC", append([]byte(s), 0))
}

// Owners writes an OWNR chunk.
func (p *PUD) Owners(slots ...uint8) *PUD {
	return p.Chunk("OWNR", slots)
}

// Tiles writes an MTXM chunk from raw ids.
func (p *PUD) Tiles(ids []uint16) *PUD {
	b := make([]byte, 2*len(ids))
	for i, id := range ids {
		binary.LittleEndian.PutUint16(b[2*i:], id)
	}
	return p.Chunk("MTXM", b)
}

// Fill writes an MTXM chunk of w*h copies of id.
func (p *PUD) Fill(w, h int, id uint16) *PUD {
	ids := make([]uint16, w*h)
	for i := range ids {
		ids[i] = id
	}
	return p.Tiles(ids)
}

// Units writes a UNIT chunk.
func (p *PUD) Units(us ...Unit) *PUD {
	b := make([]byte, 0, 8*len(us))
	for _, u := range us {
		b = append(b, u16(u.X)...)
		b = append(b, u16(u.Y)...)
		b = append(b, u.Type, u.Owner)
		b = append(b, u16(u.Aux)...)
	}
	return p.Chunk("UNIT", b)
}

// Bytes returns a copy of the assembled container.
func (p *PUD) Bytes() []byte {
	out := make([]byte, len(p.buf))
	copy(out, p.buf)
	return out
}

// Goldmine returns a neutral goldmine placement worth aux*2500 gold.
func Goldmine(x, y, aux uint16) Unit {
	return Unit{X: x, Y: y, Type: 0x5C, Owner: 15, Aux: aux}
}

// HumanStart returns a human start location for the given slot.
func HumanStart(x, y uint16, owner uint8) Unit {
	return Unit{X: x, Y: y, Type: 0x5E, Owner: owner}
}

// OrcStart returns an orc start location for the given slot.
func OrcStart(x, y uint16, owner uint8) Unit {
	return Unit{X: x, Y: y, Type: 0x5F, Owner: owner}
}

// SimpleMap returns a small valid two-player forest map.
func SimpleMap(name string) []byte {
	return NewPUD().
		Version(0x13).
		Owners(0x05, 0x04, 0x03, 0x03, 0x03, 0x03, 0x03, 0x03).
		Era(0).
		Dim(32, 32).
		Name(name).
		Fill(32, 32, 0x00).
		Units(
			HumanStart(2, 2, 0),
			OrcStart(29, 29, 1),
			Goldmine(5, 5, 20),
			Goldmine(26, 26, 20),
		).
		Bytes()
}

func u16(v uint16) []byte {
	b := make([]byte, 2)
	binary.LittleEndian.PutUint16(b, v)
	return b
}
