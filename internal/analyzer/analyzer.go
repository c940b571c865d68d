// Package analyzer derives terrain statistics, resource distribution and
// play-balance metrics from a decoded map. Every function here is pure.
package analyzer

import (
	"github.com/WCArena/pudscan/internal/units"
	"github.com/WCArena/pudscan/pkg/core"
)

// Analyze computes the strategic summary of doc. It never fails: a map with
// no goldmines or start locations yields zero or default values.
func Analyze(doc *core.MapDocument) core.StrategicAnalysis {
	if doc == nil {
		doc = &core.MapDocument{}
	}

	dist, total := distribution(doc)
	a := core.StrategicAnalysis{
		TotalTiles:          total,
		TerrainDistribution: dist,
		WaterPercentage:     percent(dist[core.TerrainWater], total),
		ShorePercentage:     percent(dist[core.TerrainShore], total),
		GrassPercentage:     percent(dist[core.TerrainGrass], total),
		TreesPercentage:     percent(dist[core.TerrainTrees], total),
		RockPercentage:      percent(dist[core.TerrainRock], total),
		DirtPercentage:      percent(dist[core.TerrainDirt], total),
		Goldmines:           summarizeGoldmines(doc.Goldmines),
		Players:             units.Proximity(doc.StartingPositions, doc.Goldmines),
		TileBreakdown:       tileBreakdown(doc),
	}

	a.MapType, a.NavalScore = classifyMapType(doc, a.WaterPercentage)
	a.Balance, a.BalanceScore = rateBalance(len(doc.Goldmines), dist)
	a.RushDistance, a.RushRatio = rushDistance(doc)
	a.ExpansionDifficulty = expansionDifficulty(len(doc.Goldmines), dist, total)
	a.Advantages, a.StrategyTags = strategyTags(doc.Tileset, a.MapType, a.TreesPercentage)

	return a
}

func summarizeGoldmines(mines []core.Goldmine) core.GoldmineSummary {
	s := core.GoldmineSummary{
		Count:      len(mines),
		ByCategory: map[core.GoldCategory]int{},
	}
	for _, m := range mines {
		s.TotalGold += uint64(m.GoldAmount)
		s.ByCategory[units.GoldCategoryFor(m.GoldAmount)]++
	}
	if s.Count > 0 {
		s.AveragePerMine = float64(s.TotalGold) / float64(s.Count)
	}
	return s
}
