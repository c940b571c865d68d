package convert

import (
	"encoding/json"
	"fmt"

	"github.com/WCArena/pudscan/internal/model"
	"github.com/WCArena/pudscan/pkg/core"
	geom "github.com/peterstace/simplefeatures/geom"
)

// pointToTile converts a stored geom.Point back to tile coordinates
func pointToTile(p geom.Point) (uint16, uint16) {
	coord, ok := p.Coordinates()
	if !ok {
		return 0, 0
	}
	return uint16(coord.XY.X), uint16(coord.XY.Y)
}

// MapScanToCore rebuilds a ScanRecord from stored rows. The tile grid is not
// persisted, so Document.Tiles is nil.
func MapScanToCore(s model.MapScan) (core.ScanRecord, error) {
	var a core.StrategicAnalysis
	if len(s.Analysis) > 0 {
		if err := json.Unmarshal(s.Analysis, &a); err != nil {
			return core.ScanRecord{}, fmt.Errorf("failed to unmarshal analysis: %w", err)
		}
	}

	var ts core.Tileset
	if err := ts.UnmarshalText([]byte(s.Tileset)); err != nil {
		return core.ScanRecord{}, err
	}

	doc := core.MapDocument{
		Name:              s.Name,
		Width:             s.Width,
		Height:            s.Height,
		Tileset:           ts,
		PlayerSlotCount:   s.PlayerSlotCount,
		FormatVersion:     s.FormatVersion,
		Description:       s.Description,
		Author:            s.Author,
		Goldmines:         make([]core.Goldmine, 0, len(s.Goldmines)),
		StartingPositions: make([]core.StartingPosition, 0, len(s.StartLocations)),
	}
	for _, g := range s.Goldmines {
		x, y := pointToTile(g.Position)
		doc.Goldmines = append(doc.Goldmines, core.Goldmine{
			X: x, Y: y, OwnerSlot: g.OwnerSlot, GoldAmount: g.GoldAmount,
		})
	}
	for _, l := range s.StartLocations {
		x, y := pointToTile(l.Position)
		doc.StartingPositions = append(doc.StartingPositions, core.StartingPosition{
			X: x, Y: y, OwnerSlot: l.OwnerSlot, Race: core.Race(l.Race),
		})
	}

	return core.ScanRecord{
		ScanID:    s.ScanID,
		FileName:  s.FileName,
		FileHash:  s.FileHash,
		FileSize:  s.FileSize,
		ScannedAt: s.ScannedAt,
		Cached:    s.Cached,
		Document:  doc,
		Analysis:  a,
	}, nil
}

// RejectionToCore converts a stored rejection back to its core form.
func RejectionToCore(r model.Rejection) core.Rejection {
	return core.Rejection{
		ScanID:    r.ScanID,
		FileName:  r.FileName,
		FileHash:  r.FileHash,
		FileSize:  r.FileSize,
		ScannedAt: r.ScannedAt,
		Kind:      r.Kind,
		Message:   r.Message,
	}
}
