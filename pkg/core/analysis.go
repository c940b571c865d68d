// pkg/core/analysis.go
package core

import (
	"maps"
	"slices"
)

// MapType classifies how much a map depends on water transport.
type MapType string

const (
	MapTypeLand   MapType = "Land"
	MapTypeNaval  MapType = "Naval"
	MapTypeHybrid MapType = "Hybrid"
)

// BalanceRating is a coarse four-level score of resource and terrain variety.
type BalanceRating string

const (
	BalancePoor      BalanceRating = "Poor"
	BalanceFair      BalanceRating = "Fair"
	BalanceGood      BalanceRating = "Good"
	BalanceExcellent BalanceRating = "Excellent"
)

// RushDistance buckets the distance between the first two start locations.
type RushDistance string

const (
	RushClose  RushDistance = "Close"
	RushMedium RushDistance = "Medium"
	RushFar    RushDistance = "Far"
)

// ExpansionDifficulty estimates how hard it is to take additional mines.
type ExpansionDifficulty string

const (
	ExpansionEasy     ExpansionDifficulty = "Easy"
	ExpansionModerate ExpansionDifficulty = "Moderate"
	ExpansionHard     ExpansionDifficulty = "Hard"
)

// GoldCategory buckets a goldmine's gold amount.
type GoldCategory string

const (
	GoldNone     GoldCategory = "None"
	GoldVeryLow  GoldCategory = "Very Low"
	GoldLow      GoldCategory = "Low"
	GoldMedium   GoldCategory = "Medium"
	GoldHigh     GoldCategory = "High"
	GoldVeryHigh GoldCategory = "Very High"
)

// GoldmineSummary aggregates every goldmine on the map.
type GoldmineSummary struct {
	Count          int                  `json:"count"`
	ByCategory     map[GoldCategory]int `json:"byCategory"`
	TotalGold      uint64               `json:"totalGold"`
	AveragePerMine float64              `json:"averagePerMine"`
}

// GoldmineProximity describes the goldmine closest to one start location.
type GoldmineProximity struct {
	OwnerSlot       uint8        `json:"ownerSlot"`
	Race            Race         `json:"race"`
	X               uint16       `json:"x"`
	Y               uint16       `json:"y"`
	HasGoldmine     bool         `json:"hasGoldmine"`
	ClosestX        uint16       `json:"closestX"`
	ClosestY        uint16       `json:"closestY"`
	ClosestDistance float64      `json:"closestDistance"`
	ClosestGold     uint32       `json:"closestGold"`
	Category        GoldCategory `json:"category"`
}

// TileUsage counts one raw tile id across the grid.
type TileUsage struct {
	ID         uint16          `json:"id"`
	Count      int             `json:"count"`
	Percentage float64         `json:"percentage"`
	Name       string          `json:"name"`
	Category   TerrainCategory `json:"category"`
	// Unmapped is set when no band of the tileset covers the id and the
	// category is the tileset's fallback.
	Unmapped bool `json:"unmapped,omitempty"`
}

// StrategicAnalysis is the read-only snapshot derived from one MapDocument.
type StrategicAnalysis struct {
	TotalTiles          int                     `json:"totalTiles"`
	TerrainDistribution map[TerrainCategory]int `json:"terrainDistribution"`

	WaterPercentage float64 `json:"waterPercentage"`
	ShorePercentage float64 `json:"shorePercentage"`
	GrassPercentage float64 `json:"grassPercentage"`
	TreesPercentage float64 `json:"treesPercentage"`
	RockPercentage  float64 `json:"rockPercentage"`
	DirtPercentage  float64 `json:"dirtPercentage"`

	Goldmines GoldmineSummary     `json:"goldmines"`
	Players   []GoldmineProximity `json:"players"`

	MapType             MapType             `json:"mapType"`
	NavalScore          float64             `json:"navalScore"`
	Balance             BalanceRating       `json:"balance"`
	BalanceScore        float64             `json:"balanceScore"`
	RushDistance        RushDistance        `json:"rushDistance"`
	RushRatio           float64             `json:"rushRatio"`
	ExpansionDifficulty ExpansionDifficulty `json:"expansionDifficulty"`

	Advantages   []string `json:"advantages"`
	StrategyTags []string `json:"strategyTags"`

	// TileBreakdown lists every distinct tile id, most frequent first.
	TileBreakdown []TileUsage `json:"tileBreakdown,omitempty"`
}

// Clone returns a copy of a that shares no maps or slices with it.
func (a *StrategicAnalysis) Clone() StrategicAnalysis {
	c := *a
	c.TerrainDistribution = maps.Clone(a.TerrainDistribution)
	c.Goldmines.ByCategory = maps.Clone(a.Goldmines.ByCategory)
	c.Players = slices.Clone(a.Players)
	c.Advantages = slices.Clone(a.Advantages)
	c.StrategyTags = slices.Clone(a.StrategyTags)
	c.TileBreakdown = slices.Clone(a.TileBreakdown)
	return c
}

// HasTag reports whether tag is one of the strategy tags.
func (a *StrategicAnalysis) HasTag(tag string) bool {
	for _, t := range a.StrategyTags {
		if t == tag {
			return true
		}
	}
	return false
}
