package analyzer

import (
	"math"

	"github.com/WCArena/pudscan/pkg/core"
)

const (
	goldWeight    = 0.6
	varietyWeight = 0.4
	varietyTarget = 5

	closeRushRatio  = 0.35
	mediumRushRatio = 0.6

	hardObstruction = 0.5
	easyObstruction = 0.3
	fewMines        = 4
	manyMines       = 8
)

func goldmineScore(n int) float64 {
	switch {
	case n >= 4 && n <= 12:
		return 1
	case (n >= 2 && n <= 3) || (n >= 13 && n <= 16):
		return 0.5
	default:
		return 0
	}
}

// rateBalance weighs goldmine count against terrain variety.
func rateBalance(mines int, dist map[core.TerrainCategory]int) (core.BalanceRating, float64) {
	distinct := 0
	for _, n := range dist {
		if n > 0 {
			distinct++
		}
	}
	variety := math.Min(1, float64(distinct)/varietyTarget)
	score := goldWeight*goldmineScore(mines) + varietyWeight*variety

	switch {
	case score >= 0.8:
		return core.BalanceExcellent, score
	case score >= 0.6:
		return core.BalanceGood, score
	case score >= 0.4:
		return core.BalanceFair, score
	default:
		return core.BalancePoor, score
	}
}

// rushDistance compares the first two start locations against the map diagonal.
func rushDistance(doc *core.MapDocument) (core.RushDistance, float64) {
	if len(doc.StartingPositions) < 2 {
		return core.RushMedium, 0
	}
	diag := math.Hypot(float64(doc.Width), float64(doc.Height))
	if diag == 0 {
		return core.RushMedium, 0
	}
	a, b := doc.StartingPositions[0], doc.StartingPositions[1]
	d := math.Hypot(float64(a.X)-float64(b.X), float64(a.Y)-float64(b.Y))
	ratio := d / diag

	switch {
	case ratio < closeRushRatio:
		return core.RushClose, ratio
	case ratio < mediumRushRatio:
		return core.RushMedium, ratio
	default:
		return core.RushFar, ratio
	}
}

// expansionDifficulty treats water and trees as obstacles between mines.
func expansionDifficulty(mines int, dist map[core.TerrainCategory]int, total int) core.ExpansionDifficulty {
	obstruction := 0.0
	if total > 0 {
		obstruction = float64(dist[core.TerrainWater]+dist[core.TerrainTrees]) / float64(total)
	}
	switch {
	case mines < fewMines || obstruction > hardObstruction:
		return core.ExpansionHard
	case mines >= manyMines && obstruction < easyObstruction:
		return core.ExpansionEasy
	default:
		return core.ExpansionModerate
	}
}
