// pkg/core/terrain.go

// Package core holds the decoded map document and the derived analysis types
// shared by the decoder, the analyzer and every storage backend.
package core

import (
	"fmt"
	"strings"
)

// Tileset is one of the four terrain palettes a map is drawn with.
type Tileset uint8

const (
	TilesetForest Tileset = iota
	TilesetWinter
	TilesetWasteland
	TilesetSwamp
)

var tilesetNames = [...]string{"forest", "winter", "wasteland", "swamp"}

// TilesetFromID maps the raw ERA/ERAX value to a Tileset.
// The second return is false for ids outside the four known palettes.
func TilesetFromID(id uint16) (Tileset, bool) {
	if int(id) >= len(tilesetNames) {
		return TilesetForest, false
	}
	return Tileset(id), true
}

func (t Tileset) String() string {
	if int(t) < len(tilesetNames) {
		return tilesetNames[t]
	}
	return fmt.Sprintf("tileset(%d)", uint8(t))
}

// MarshalText encodes the tileset by name.
func (t Tileset) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// UnmarshalText decodes a tileset name.
func (t *Tileset) UnmarshalText(b []byte) error {
	name := strings.ToLower(string(b))
	for i, n := range tilesetNames {
		if n == name {
			*t = Tileset(i)
			return nil
		}
	}
	return fmt.Errorf("unknown tileset %q", string(b))
}

// TerrainCategory is the coarse terrain class of a single tile.
type TerrainCategory string

const (
	TerrainWater   TerrainCategory = "water"
	TerrainShore   TerrainCategory = "shore"
	TerrainGrass   TerrainCategory = "grass"
	TerrainTrees   TerrainCategory = "trees"
	TerrainRock    TerrainCategory = "rock"
	TerrainDirt    TerrainCategory = "dirt"
	TerrainWalls   TerrainCategory = "walls"
	TerrainRoads   TerrainCategory = "roads"
	TerrainUnknown TerrainCategory = "unknown"
)

// TerrainCategories lists every category in a stable order.
var TerrainCategories = []TerrainCategory{
	TerrainWater,
	TerrainShore,
	TerrainGrass,
	TerrainTrees,
	TerrainRock,
	TerrainDirt,
	TerrainWalls,
	TerrainRoads,
	TerrainUnknown,
}

// Race is the faction implied by a start-location marker.
type Race string

const (
	RaceHuman Race = "human"
	RaceOrc   Race = "orc"
)
