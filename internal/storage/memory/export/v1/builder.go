package v1

import (
	"fmt"
	"sort"
	"time"

	"github.com/WCArena/pudscan/pkg/core"
)

// CatalogData is the input to Build.
type CatalogData struct {
	GeneratedAt time.Time
	Scans       []core.ScanRecord
	Rejections  []core.Rejection
}

// Build converts stored scans into the v1 catalog. Maps are ordered by name,
// then by scan time; rejections keep arrival order.
func Build(data *CatalogData) Catalog {
	out := Catalog{
		FormatVersion: FormatVersion,
		GeneratedAt:   data.GeneratedAt.UTC().Format(time.RFC3339),
		Maps:          make([]Map, 0, len(data.Scans)),
		Rejections:    make([]Rejection, 0, len(data.Rejections)),
	}

	for i := range data.Scans {
		out.Maps = append(out.Maps, buildMap(&data.Scans[i]))
	}
	sort.SliceStable(out.Maps, func(i, j int) bool {
		if out.Maps[i].Name != out.Maps[j].Name {
			return out.Maps[i].Name < out.Maps[j].Name
		}
		return out.Maps[i].ScannedAt < out.Maps[j].ScannedAt
	})
	out.MapCount = len(out.Maps)

	for _, r := range data.Rejections {
		out.Rejections = append(out.Rejections, Rejection{
			ScanID:    r.ScanID,
			FileName:  r.FileName,
			FileHash:  r.FileHash,
			ScannedAt: formatTime(r.ScannedAt),
			Kind:      r.Kind,
			Message:   r.Message,
		})
	}

	return out
}

func buildMap(r *core.ScanRecord) Map {
	doc := &r.Document
	a := &r.Analysis

	m := Map{
		ScanID:      r.ScanID,
		FileName:    r.FileName,
		FileHash:    r.FileHash,
		FileSize:    r.FileSize,
		ScannedAt:   formatTime(r.ScannedAt),
		Name:        doc.Name,
		Author:      doc.Author,
		Description: doc.Description,
		Size:        fmt.Sprintf("%dx%d", doc.Width, doc.Height),
		Tileset:     doc.Tileset.String(),
		Players:     doc.PlayerSlotCount,
		MapType:     string(a.MapType),
		Balance:     string(a.Balance),
		Rush:        string(a.RushDistance),
		Expansion:   string(a.ExpansionDifficulty),
		Tags:        a.StrategyTags,
		Goldmines:   make([][3]uint32, 0, len(doc.Goldmines)),
		Starts:      make([][]any, 0, len(doc.StartingPositions)),
		Analysis:    *a,
	}
	if m.Tags == nil {
		m.Tags = []string{}
	}

	for _, g := range doc.Goldmines {
		m.Goldmines = append(m.Goldmines, [3]uint32{uint32(g.X), uint32(g.Y), g.GoldAmount})
	}
	for _, s := range doc.StartingPositions {
		m.Starts = append(m.Starts, []any{s.OwnerSlot, s.X, s.Y, string(s.Race)})
	}

	return m
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
