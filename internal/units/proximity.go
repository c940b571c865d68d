package units

import (
	"math"
	"sort"

	"github.com/WCArena/pudscan/pkg/core"
)

// GoldCategoryFor buckets a goldmine's amount.
func GoldCategoryFor(amount uint32) core.GoldCategory {
	switch {
	case amount < 25000:
		return core.GoldVeryLow
	case amount < 50000:
		return core.GoldLow
	case amount < 75000:
		return core.GoldMedium
	case amount < 100000:
		return core.GoldHigh
	default:
		return core.GoldVeryHigh
	}
}

// Distance is the Euclidean distance between two tile coordinates.
func Distance(x1, y1, x2, y2 uint16) float64 {
	dx := float64(x1) - float64(x2)
	dy := float64(y1) - float64(y2)
	return math.Hypot(dx, dy)
}

// Proximity finds, for every start location, the closest goldmine. Ties keep
// the mine that appears first. The result is ordered by owner slot; positions
// sharing a slot keep their input order.
func Proximity(starts []core.StartingPosition, mines []core.Goldmine) []core.GoldmineProximity {
	out := make([]core.GoldmineProximity, 0, len(starts))
	for _, s := range starts {
		p := core.GoldmineProximity{
			OwnerSlot: s.OwnerSlot,
			Race:      s.Race,
			X:         s.X,
			Y:         s.Y,
			Category:  core.GoldNone,
		}
		best := math.Inf(1)
		for _, m := range mines {
			d := Distance(s.X, s.Y, m.X, m.Y)
			if d < best {
				best = d
				p.HasGoldmine = true
				p.ClosestX, p.ClosestY = m.X, m.Y
				p.ClosestDistance = d
				p.ClosestGold = m.GoldAmount
				p.Category = GoldCategoryFor(m.GoldAmount)
			}
		}
		out = append(out, p)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].OwnerSlot < out[j].OwnerSlot
	})
	return out
}
