// Package terrain maps raw tile ids to coarse terrain categories.
package terrain

import (
	"cmp"
	"fmt"
	"slices"

	"github.com/WCArena/pudscan/pkg/core"
)

type band struct {
	lo, hi uint16 // inclusive
	cat    core.TerrainCategory
	label  string
}

// table is the categorizer for one tileset: exact-id overrides first, then
// contiguous id bands, then the fallback.
type table struct {
	special  map[uint16]core.TerrainCategory
	names    map[uint16]string
	bands    []band
	fallback core.TerrainCategory
}

func bandsFor(base core.TerrainCategory, label string) []band {
	return []band{
		{0x00, 0x0F, base, label},
		{0x10, 0x2F, core.TerrainWater, "Water"},
		{0x30, 0x4F, core.TerrainShore, "Shore"},
		{0x50, 0x5F, base, label + " variant"},
		{0x60, 0x6F, core.TerrainRock, "Rock"},
		{0x70, 0x7F, core.TerrainTrees, "Trees"},
	}
}

func tableFor(ts core.Tileset) table {
	t, ok := tables[ts]
	if !ok {
		t = tables[core.TilesetForest]
	}
	return t
}

func (t *table) band(id uint16) (band, bool) {
	for _, b := range t.bands {
		if id >= b.lo && id <= b.hi {
			return b, true
		}
	}
	return band{}, false
}

var tables = map[core.Tileset]table{
	core.TilesetForest: {
		special: map[uint16]core.TerrainCategory{
			0x50: core.TerrainGrass,
			0x51: core.TerrainGrass,
			0x52: core.TerrainGrass,
		},
		names:    map[uint16]string{0x52: "Dirt path"},
		bands:    bandsFor(core.TerrainGrass, "Grass"),
		fallback: core.TerrainGrass,
	},
	core.TilesetWinter: {
		bands:    bandsFor(core.TerrainGrass, "Grass"),
		fallback: core.TerrainGrass,
	},
	core.TilesetWasteland: {
		bands:    bandsFor(core.TerrainDirt, "Dirt"),
		fallback: core.TerrainDirt,
	},
	core.TilesetSwamp: {
		bands:    bandsFor(core.TerrainGrass, "Grass"),
		fallback: core.TerrainGrass,
	},
}

// Categorize returns the terrain category of tile id under tileset ts.
// Ids outside every band fall back to the tileset's base ground category.
func Categorize(ts core.Tileset, id uint16) core.TerrainCategory {
	t := tableFor(ts)
	if c, ok := t.special[id]; ok {
		return c
	}
	if b, ok := t.band(id); ok {
		return b.cat
	}
	return t.fallback
}

// InBand reports whether id is covered by an explicit id or a band of ts,
// as opposed to landing on the fallback.
func InBand(ts core.Tileset, id uint16) bool {
	t := tableFor(ts)
	if _, ok := t.special[id]; ok {
		return true
	}
	_, ok := t.band(id)
	return ok
}

// TileName returns a short label for a tile id, such as "Water 3" for the
// fourth id of the water band.
func TileName(ts core.Tileset, id uint16) string {
	t := tableFor(ts)
	if n, ok := t.names[id]; ok {
		return n
	}
	if b, ok := t.band(id); ok {
		return fmt.Sprintf("%s %d", b.label, id-b.lo)
	}
	return fmt.Sprintf("Unmapped 0x%04X", id)
}

// BaseCategory is the ground category a tileset falls back to.
func BaseCategory(ts core.Tileset) core.TerrainCategory {
	t, ok := tables[ts]
	if !ok {
		return core.TerrainGrass
	}
	return t.fallback
}

// Distribution counts tiles per category. Every category is present in the
// result, zero counts included.
func Distribution(ts core.Tileset, tiles []uint16) map[core.TerrainCategory]int {
	dist := make(map[core.TerrainCategory]int, len(core.TerrainCategories))
	for _, c := range core.TerrainCategories {
		dist[c] = 0
	}
	for _, id := range tiles {
		dist[Categorize(ts, id)]++
	}
	return dist
}

// Breakdown counts each distinct tile id, most frequent first and ties in id
// order. Percentages are relative to len(tiles). An empty grid yields nil.
func Breakdown(ts core.Tileset, tiles []uint16) []core.TileUsage {
	if len(tiles) == 0 {
		return nil
	}
	counts := make(map[uint16]int)
	for _, id := range tiles {
		counts[id]++
	}

	out := make([]core.TileUsage, 0, len(counts))
	for id, n := range counts {
		out = append(out, core.TileUsage{
			ID:         id,
			Count:      n,
			Percentage: float64(n) / float64(len(tiles)) * 100,
			Name:       TileName(ts, id),
			Category:   Categorize(ts, id),
			Unmapped:   !InBand(ts, id),
		})
	}
	slices.SortFunc(out, func(a, b core.TileUsage) int {
		if c := cmp.Compare(b.Count, a.Count); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return out
}
