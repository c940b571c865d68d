// pkg/core/document.go
package core

import "slices"

// NameSource records which input a map's Name was taken from.
type NameSource string

const (
	NameFromMetadata    NameSource = "metadata"
	NameFromDescription NameSource = "description"
	NameFromFilename    NameSource = "filename"
	NameDefault         NameSource = "default"
)

// FromContent reports whether the name was read out of the file itself, so
// it holds for every upload of the same bytes.
func (s NameSource) FromContent() bool {
	return s == NameFromMetadata || s == NameFromDescription
}

// MapDocument is the validated result of decoding one PUD file.
// It is built once per parse and never mutated afterwards.
type MapDocument struct {
	Name            string     `json:"name"`
	NameSource      NameSource `json:"nameSource,omitempty"`
	Width           uint16     `json:"width"`
	Height          uint16     `json:"height"`
	Tileset         Tileset    `json:"tileset"`
	PlayerSlotCount int        `json:"playerSlotCount"`
	PlayerSlots     []uint8    `json:"playerSlots,omitempty"` // raw OWNR table
	FormatVersion   uint16     `json:"formatVersion"`
	Description     string     `json:"description,omitempty"`
	Author          string     `json:"author,omitempty"`

	// Tiles holds Width*Height raw tile ids, row-major.
	Tiles []uint16 `json:"tiles,omitempty"`

	Goldmines         []Goldmine         `json:"goldmines"`
	StartingPositions []StartingPosition `json:"startingPositions"`
}

// Clone returns a copy of d that shares no slices with it.
func (d *MapDocument) Clone() MapDocument {
	c := *d
	c.PlayerSlots = slices.Clone(d.PlayerSlots)
	c.Tiles = slices.Clone(d.Tiles)
	c.Goldmines = slices.Clone(d.Goldmines)
	c.StartingPositions = slices.Clone(d.StartingPositions)
	return c
}

// TileCount is the number of cells the declared dimensions describe.
func (d *MapDocument) TileCount() int {
	return int(d.Width) * int(d.Height)
}

// TileAt returns the raw tile id at (x, y). The second return is false when
// the coordinate lies outside the grid.
func (d *MapDocument) TileAt(x, y int) (uint16, bool) {
	if x < 0 || y < 0 || x >= int(d.Width) || y >= int(d.Height) {
		return 0, false
	}
	i := y*int(d.Width) + x
	if i >= len(d.Tiles) {
		return 0, false
	}
	return d.Tiles[i], true
}

// Goldmine is a neutral gold resource placed on the map.
type Goldmine struct {
	X                uint16 `json:"x"`
	Y                uint16 `json:"y"`
	OwnerSlot        uint8  `json:"ownerSlot"`
	RawUnitID        uint8  `json:"rawUnitId"`
	RawResourceValue uint16 `json:"rawResourceValue"`
	GoldAmount       uint32 `json:"goldAmount"`
}

// StartingPosition marks a player's initial base location.
type StartingPosition struct {
	X         uint16 `json:"x"`
	Y         uint16 `json:"y"`
	OwnerSlot uint8  `json:"ownerSlot"`
	Race      Race   `json:"race"`
	RawUnitID uint8  `json:"rawUnitId"`
}
