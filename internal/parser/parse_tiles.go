package parser

import (
	"encoding/binary"
	"fmt"

	"github.com/WCArena/pudscan/internal/chunk"
)

func (s *decodeState) extractTiles(c chunk.Chunk) error {
	if !s.haveDim {
		return &DecodeError{
			Err:      ErrMissingRequiredChunk,
			Tag:      "DIM ",
			Offset:   c.Offset,
			Expected: "DIM before MTXM",
			Actual:   "MTXM",
		}
	}

	want := s.doc.TileCount() * 2
	if len(c.Payload) != want {
		return &DecodeError{
			Err:      ErrCorruptTileData,
			Tag:      c.Tag,
			Offset:   c.Offset,
			Expected: fmt.Sprintf("%d bytes (%dx%dx2)", want, s.doc.Width, s.doc.Height),
			Actual:   fmt.Sprintf("%d bytes", len(c.Payload)),
		}
	}

	tiles := make([]uint16, s.doc.TileCount())
	for i := range tiles {
		tiles[i] = binary.LittleEndian.Uint16(c.Payload[2*i:])
	}
	s.doc.Tiles = tiles
	s.haveTiles = true
	return nil
}
