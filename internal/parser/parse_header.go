package parser

import (
	"encoding/binary"
	"fmt"

	"github.com/WCArena/pudscan/internal/chunk"
)

const (
	minPlayerSlots = 2
	ownerSlots     = 8
)

func readU16(c chunk.Chunk) (uint16, bool) {
	if len(c.Payload) < 2 {
		return 0, false
	}
	return binary.LittleEndian.Uint16(c.Payload), true
}

func (s *decodeState) extractVersion(c chunk.Chunk) error {
	if v, ok := readU16(c); ok {
		s.doc.FormatVersion = v
	}
	return nil
}

func (s *decodeState) extractEra(c chunk.Chunk) error {
	if v, ok := readU16(c); ok {
		s.era, s.haveEra = v, true
	}
	return nil
}

func (s *decodeState) extractEraX(c chunk.Chunk) error {
	if v, ok := readU16(c); ok {
		s.eraX, s.haveEraX = v, true
	}
	return nil
}

// extractOwners counts the playable slots among the first eight entries:
// computer (0x04), human (0x05) and the two rescue kinds (0x06, 0x07).
func (s *decodeState) extractOwners(c chunk.Chunk) error {
	n := len(c.Payload)
	if n > ownerSlots {
		n = ownerSlots
	}
	slots := make([]uint8, n)
	copy(slots, c.Payload[:n])

	count := 0
	for _, v := range slots {
		if v >= 0x04 && v <= 0x07 {
			count++
		}
	}
	s.doc.PlayerSlots = slots
	s.doc.PlayerSlotCount = max(minPlayerSlots, count)
	return nil
}

func (s *decodeState) extractDimensions(c chunk.Chunk) error {
	if len(c.Payload) < 4 {
		return &DecodeError{
			Err:      ErrInvalidDimensions,
			Tag:      c.Tag,
			Offset:   c.Offset,
			Expected: "4 bytes",
			Actual:   fmt.Sprintf("%d bytes", len(c.Payload)),
		}
	}
	w := binary.LittleEndian.Uint16(c.Payload[0:2])
	h := binary.LittleEndian.Uint16(c.Payload[2:4])
	if w == 0 || h == 0 {
		return &DecodeError{
			Err:      ErrInvalidDimensions,
			Tag:      c.Tag,
			Offset:   c.Offset,
			Expected: "non-zero width and height",
			Actual:   fmt.Sprintf("%dx%d", w, h),
		}
	}

	// Once tiles are decoded the grid size is fixed.
	if s.haveTiles && (w != s.doc.Width || h != s.doc.Height) {
		return &DecodeError{
			Err:      ErrCorruptTileData,
			Tag:      c.Tag,
			Offset:   c.Offset,
			Expected: fmt.Sprintf("%dx%d", s.doc.Width, s.doc.Height),
			Actual:   fmt.Sprintf("%dx%d", w, h),
		}
	}

	s.doc.Width, s.doc.Height = w, h
	s.haveDim = true
	return nil
}
