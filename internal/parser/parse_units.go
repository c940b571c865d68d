package parser

import (
	"github.com/WCArena/pudscan/internal/chunk"
	"github.com/WCArena/pudscan/internal/units"
)

// extractUnits keeps goldmines and start locations. Multiple UNIT chunks
// accumulate in file order.
func (s *decodeState) extractUnits(c chunk.Chunk) error {
	res := units.Extract(c.Payload)
	s.doc.Goldmines = append(s.doc.Goldmines, res.Goldmines...)
	s.doc.StartingPositions = append(s.doc.StartingPositions, res.StartingPositions...)
	if rem := len(c.Payload) % units.RecordSize; rem != 0 {
		s.logger.Debug("Ignoring partial unit record", "offset", c.Offset, "bytes", rem)
	}
	return nil
}
