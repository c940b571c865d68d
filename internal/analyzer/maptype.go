package analyzer

import (
	"math"

	"github.com/WCArena/pudscan/pkg/core"
)

const (
	landWaterPercent  = 10.0
	navalWaterPercent = 40.0

	pathSamples       = 21
	pathWaterFraction = 0.3

	mineWindowRadius  = 3
	mineWaterFraction = 0.5

	partialWaterPercent = 20.0
	fullWaterPercent    = 30.0

	navalScoreThreshold  = 0.7
	hybridScoreThreshold = 0.3
)

// classifyMapType decides Land/Naval/Hybrid. Outside the middle water band the
// answer is immediate; inside it the available signals are averaged.
func classifyMapType(doc *core.MapDocument, waterPct float64) (core.MapType, float64) {
	switch {
	case waterPct < landWaterPercent:
		return core.MapTypeLand, 0
	case waterPct > navalWaterPercent:
		return core.MapTypeNaval, 1
	}

	var scores []float64
	if s, ok := pathSignal(doc); ok {
		scores = append(scores, s)
	}
	if s, ok := goldmineSignal(doc); ok {
		scores = append(scores, s)
	}
	scores = append(scores, waterSignal(waterPct))

	sum := 0.0
	for _, s := range scores {
		sum += s
	}
	score := sum / float64(len(scores))

	switch {
	case score >= navalScoreThreshold:
		return core.MapTypeNaval, score
	case score >= hybridScoreThreshold:
		return core.MapTypeHybrid, score
	default:
		return core.MapTypeLand, score
	}
}

// pathSignal samples the straight line between the first two start locations.
func pathSignal(doc *core.MapDocument) (float64, bool) {
	if len(doc.StartingPositions) < 2 {
		return 0, false
	}
	a, b := doc.StartingPositions[0], doc.StartingPositions[1]

	water, valid := 0, 0
	for i := 0; i < pathSamples; i++ {
		t := float64(i) / float64(pathSamples-1)
		x := int(math.Round(float64(a.X) + (float64(b.X)-float64(a.X))*t))
		y := int(math.Round(float64(a.Y) + (float64(b.Y)-float64(a.Y))*t))
		cat, ok := categoryAt(doc, x, y)
		if !ok {
			continue
		}
		valid++
		if cat == core.TerrainWater {
			water++
		}
	}
	if valid == 0 {
		return 0, false
	}
	if float64(water)/float64(valid) > pathWaterFraction {
		return 1, true
	}
	return 0, true
}

// goldmineSignal reports whether any goldmine sits in a mostly-water window.
func goldmineSignal(doc *core.MapDocument) (float64, bool) {
	if len(doc.Goldmines) == 0 {
		return 0, false
	}
	for _, m := range doc.Goldmines {
		water, valid := 0, 0
		for dy := -mineWindowRadius; dy <= mineWindowRadius; dy++ {
			for dx := -mineWindowRadius; dx <= mineWindowRadius; dx++ {
				cat, ok := categoryAt(doc, int(m.X)+dx, int(m.Y)+dy)
				if !ok {
					continue
				}
				valid++
				if cat == core.TerrainWater {
					water++
				}
			}
		}
		if valid > 0 && float64(water)/float64(valid) > mineWaterFraction {
			return 1, true
		}
	}
	return 0, true
}

func waterSignal(waterPct float64) float64 {
	switch {
	case waterPct >= fullWaterPercent:
		return 1
	case waterPct >= partialWaterPercent:
		return 0.5
	default:
		return 0
	}
}
