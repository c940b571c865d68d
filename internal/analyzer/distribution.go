package analyzer

import (
	"github.com/WCArena/pudscan/internal/terrain"
	"github.com/WCArena/pudscan/pkg/core"
)

// gridTiles returns the tiles that fall inside the declared grid.
func gridTiles(doc *core.MapDocument) []uint16 {
	tiles := doc.Tiles
	if total := doc.TileCount(); len(tiles) > total {
		tiles = tiles[:total]
	}
	return tiles
}

// distribution tallies every grid cell by category. total is width*height.
func distribution(doc *core.MapDocument) (map[core.TerrainCategory]int, int) {
	return terrain.Distribution(doc.Tileset, gridTiles(doc)), doc.TileCount()
}

func tileBreakdown(doc *core.MapDocument) []core.TileUsage {
	return terrain.Breakdown(doc.Tileset, gridTiles(doc))
}

func percent(n, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(n) / float64(total) * 100
}

// categoryAt returns the category of the cell at (x, y), or false outside the grid.
func categoryAt(doc *core.MapDocument, x, y int) (core.TerrainCategory, bool) {
	id, ok := doc.TileAt(x, y)
	if !ok {
		return "", false
	}
	return terrain.Categorize(doc.Tileset, id), true
}
