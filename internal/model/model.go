package model

import (
	"time"

	geom "github.com/peterstace/simplefeatures/geom"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

////////////////////////
// DATABASE STRUCTURES //
////////////////////////

// DatabaseModels is a list of all the structs exported here which represent tables in the database schema
var DatabaseModels = []interface{}{
	&MapScan{},
	&Goldmine{},
	&StartLocation{},
	&Rejection{},
}

// MapScan is one accepted map. Summary fields are columns for querying; the
// full analysis is kept as JSON.
type MapScan struct {
	gorm.Model
	ScanID    string    `json:"scanId" gorm:"size:36;uniqueIndex"`
	FileHash  string    `json:"fileHash" gorm:"size:64;index:idx_mapscan_file_hash"`
	FileName  string    `json:"fileName" gorm:"size:255"`
	FileSize  int64     `json:"fileSize"`
	ScannedAt time.Time `json:"scannedAt" gorm:"index:idx_mapscan_scanned_at"`
	Cached    bool      `json:"cached"`

	Name            string `json:"name" gorm:"size:255"`
	Description     string `json:"description"`
	Author          string `json:"author" gorm:"size:255"`
	Width           uint16 `json:"width"`
	Height          uint16 `json:"height"`
	Tileset         string `json:"tileset" gorm:"size:16"`
	PlayerSlotCount int    `json:"playerSlotCount"`
	FormatVersion   uint16 `json:"formatVersion"`

	MapType             string  `json:"mapType" gorm:"size:16;index:idx_mapscan_map_type"`
	Balance             string  `json:"balance" gorm:"size:16"`
	RushDistance        string  `json:"rushDistance" gorm:"size:16"`
	ExpansionDifficulty string  `json:"expansionDifficulty" gorm:"size:16"`
	WaterPercentage     float64 `json:"waterPercentage"`
	TreesPercentage     float64 `json:"treesPercentage"`
	GoldmineCount       int     `json:"goldmineCount"`
	TotalGold           int64   `json:"totalGold"`

	Analysis datatypes.JSON `json:"analysis"`

	Goldmines      []Goldmine      `json:"goldmines" gorm:"foreignKey:MapScanID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;"`
	StartLocations []StartLocation `json:"startLocations" gorm:"foreignKey:MapScanID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;"`
}

func (*MapScan) TableName() string {
	return "map_scans"
}

// Goldmine is a goldmine of a scanned map.
type Goldmine struct {
	ID         uint       `json:"id" gorm:"primarykey"`
	MapScanID  uint       `json:"mapScanId" gorm:"index:idx_goldmine_map_scan_id"`
	Position   geom.Point `json:"position"` // tile coordinates
	OwnerSlot  uint8      `json:"ownerSlot"`
	GoldAmount uint32     `json:"goldAmount"`
	Category   string     `json:"category" gorm:"size:16"`
}

func (*Goldmine) TableName() string {
	return "goldmines"
}

// StartLocation is a player start marker of a scanned map.
type StartLocation struct {
	ID              uint       `json:"id" gorm:"primarykey"`
	MapScanID       uint       `json:"mapScanId" gorm:"index:idx_startlocation_map_scan_id"`
	OwnerSlot       uint8      `json:"ownerSlot"`
	Race            string     `json:"race" gorm:"size:8"`
	Position        geom.Point `json:"position"` // tile coordinates
	ClosestGoldmine float64    `json:"closestGoldmine"`
	GoldCategory    string     `json:"goldCategory" gorm:"size:16"`
}

func (*StartLocation) TableName() string {
	return "start_locations"
}

// Rejection is a file that failed to decode.
type Rejection struct {
	gorm.Model
	ScanID    string    `json:"scanId" gorm:"size:36;uniqueIndex"`
	FileHash  string    `json:"fileHash" gorm:"size:64"`
	FileName  string    `json:"fileName" gorm:"size:255"`
	FileSize  int64     `json:"fileSize"`
	ScannedAt time.Time `json:"scannedAt"`
	Kind      string    `json:"kind" gorm:"size:32;index:idx_rejection_kind"`
	Message   string    `json:"message"`
}

func (*Rejection) TableName() string {
	return "rejections"
}
