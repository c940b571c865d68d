package testutil

import (
	"time"

	"github.com/WCArena/pudscan/pkg/core"
)

// ScanTime is the fixed timestamp used by SampleRecord and SampleRejection.
var ScanTime = time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

// SampleRecord returns a fully populated two-player scan record. The values
// are consistent with each other but are not produced by the analyzer.
func SampleRecord(scanID string) core.ScanRecord {
	return core.ScanRecord{
		ScanID:    scanID,
		FileName:  "garden.pud",
		FileHash:  "9f86d081884c7d659a2feaa0c55ad015a3bf4f1b2b0b822cd15d6c15b0f00a08",
		FileSize:  2150,
		ScannedAt: ScanTime,
		Document: core.MapDocument{
			Name:            "Garden of War",
			Width:           32,
			Height:          32,
			Tileset:         core.TilesetWinter,
			PlayerSlotCount: 2,
			FormatVersion:   0x13,
			Author:          "Blizzard",
			Goldmines: []core.Goldmine{
				{X: 5, Y: 5, OwnerSlot: 15, RawUnitID: 0x5C, RawResourceValue: 20, GoldAmount: 50000},
				{X: 26, Y: 26, OwnerSlot: 15, RawUnitID: 0x5C, RawResourceValue: 20, GoldAmount: 50000},
			},
			StartingPositions: []core.StartingPosition{
				{X: 2, Y: 2, OwnerSlot: 0, Race: core.RaceHuman, RawUnitID: 0x5E},
				{X: 29, Y: 29, OwnerSlot: 1, Race: core.RaceOrc, RawUnitID: 0x5F},
			},
		},
		Analysis: core.StrategicAnalysis{
			TotalTiles: 1024,
			TerrainDistribution: map[core.TerrainCategory]int{
				core.TerrainGrass: 1024,
			},
			GrassPercentage: 100,
			Goldmines: core.GoldmineSummary{
				Count:          2,
				ByCategory:     map[core.GoldCategory]int{core.GoldMedium: 2},
				TotalGold:      100000,
				AveragePerMine: 50000,
			},
			Players: []core.GoldmineProximity{
				{OwnerSlot: 0, Race: core.RaceHuman, X: 2, Y: 2, HasGoldmine: true, ClosestX: 5, ClosestY: 5, ClosestDistance: 4.242640687119285, ClosestGold: 50000, Category: core.GoldMedium},
				{OwnerSlot: 1, Race: core.RaceOrc, X: 29, Y: 29, HasGoldmine: true, ClosestX: 26, ClosestY: 26, ClosestDistance: 4.242640687119285, ClosestGold: 50000, Category: core.GoldMedium},
			},
			MapType:             core.MapTypeLand,
			Balance:             core.BalanceExcellent,
			BalanceScore:        1,
			RushDistance:        core.RushFar,
			RushRatio:           0.84,
			ExpansionDifficulty: core.ExpansionHard,
			Advantages:          []string{"Slow ground travel"},
			StrategyTags:        []string{"Defensive play"},
		},
	}
}

// SampleRejection returns a rejection for a file without the WAR2 MAP header.
func SampleRejection(scanID string) core.Rejection {
	return core.Rejection{
		ScanID:    scanID,
		FileName:  "notamap.pud",
		FileHash:  "2c26b46b68ffc68ff99b453c1d30413413422d706483bfa0f98a5e886266e7ae",
		FileSize:  3,
		ScannedAt: ScanTime,
		Kind:      "invalid_signature",
		Message:   "invalid PUD signature",
	}
}
