// Package convert provides functions to convert between GORM models and core models
package convert

import (
	"encoding/json"
	"fmt"

	"github.com/WCArena/pudscan/internal/model"
	"github.com/WCArena/pudscan/internal/units"
	"github.com/WCArena/pudscan/pkg/core"
	geom "github.com/peterstace/simplefeatures/geom"
	"gorm.io/datatypes"
)

// tileToPoint converts a tile coordinate to a geom.Point
func tileToPoint(x, y uint16) geom.Point {
	return geom.NewPoint(geom.Coordinates{XY: geom.XY{X: float64(x), Y: float64(y)}})
}

// CoreToMapScan converts an accepted scan to its GORM rows. The tile grid is
// not stored; the analysis is stored whole as JSON.
func CoreToMapScan(r core.ScanRecord) (model.MapScan, error) {
	analysis, err := json.Marshal(r.Analysis)
	if err != nil {
		return model.MapScan{}, fmt.Errorf("failed to marshal analysis: %w", err)
	}

	doc := r.Document
	a := r.Analysis
	scan := model.MapScan{
		ScanID:    r.ScanID,
		FileHash:  r.FileHash,
		FileName:  r.FileName,
		FileSize:  r.FileSize,
		ScannedAt: r.ScannedAt,
		Cached:    r.Cached,

		Name:            doc.Name,
		Description:     doc.Description,
		Author:          doc.Author,
		Width:           doc.Width,
		Height:          doc.Height,
		Tileset:         doc.Tileset.String(),
		PlayerSlotCount: doc.PlayerSlotCount,
		FormatVersion:   doc.FormatVersion,

		MapType:             string(a.MapType),
		Balance:             string(a.Balance),
		RushDistance:        string(a.RushDistance),
		ExpansionDifficulty: string(a.ExpansionDifficulty),
		WaterPercentage:     a.WaterPercentage,
		TreesPercentage:     a.TreesPercentage,
		GoldmineCount:       a.Goldmines.Count,
		TotalGold:           int64(a.Goldmines.TotalGold),

		Analysis: datatypes.JSON(analysis),
	}

	scan.Goldmines = make([]model.Goldmine, 0, len(doc.Goldmines))
	for _, g := range doc.Goldmines {
		scan.Goldmines = append(scan.Goldmines, model.Goldmine{
			Position:   tileToPoint(g.X, g.Y),
			OwnerSlot:  g.OwnerSlot,
			GoldAmount: g.GoldAmount,
			Category:   string(units.GoldCategoryFor(g.GoldAmount)),
		})
	}

	scan.StartLocations = make([]model.StartLocation, 0, len(a.Players))
	for _, p := range a.Players {
		scan.StartLocations = append(scan.StartLocations, model.StartLocation{
			OwnerSlot:       p.OwnerSlot,
			Race:            string(p.Race),
			Position:        tileToPoint(p.X, p.Y),
			ClosestGoldmine: p.ClosestDistance,
			GoldCategory:    string(p.Category),
		})
	}

	return scan, nil
}

// CoreToRejection converts a rejected upload to its GORM row.
func CoreToRejection(r core.Rejection) model.Rejection {
	return model.Rejection{
		ScanID:    r.ScanID,
		FileHash:  r.FileHash,
		FileName:  r.FileName,
		FileSize:  r.FileSize,
		ScannedAt: r.ScannedAt,
		Kind:      r.Kind,
		Message:   r.Message,
	}
}
