// Package v1 contains the v1 catalog format written by the memory backend.
package v1

import "github.com/WCArena/pudscan/pkg/core"

// FormatVersion is written into every catalog.
const FormatVersion = 1

// Catalog is the root JSON structure for v1 format
type Catalog struct {
	FormatVersion int         `json:"formatVersion"`
	GeneratedAt   string      `json:"generatedAt"` // RFC 3339, UTC
	MapCount      int         `json:"mapCount"`
	Maps          []Map       `json:"maps"`
	Rejections    []Rejection `json:"rejections"`
}

// Map is one accepted map with a flat summary for listing and the full
// analysis for detail views.
type Map struct {
	ScanID      string `json:"scanId"`
	FileName    string `json:"fileName"`
	FileHash    string `json:"fileHash"`
	FileSize    int64  `json:"fileSize"`
	ScannedAt   string `json:"scannedAt"`
	Name        string `json:"name"`
	Author      string `json:"author,omitempty"`
	Description string `json:"description,omitempty"`
	Size        string `json:"size"` // "WxH"
	Tileset     string `json:"tileset"`
	Players     int    `json:"players"`

	MapType   string   `json:"mapType"`
	Balance   string   `json:"balance"`
	Rush      string   `json:"rush"`
	Expansion string   `json:"expansion"`
	Tags      []string `json:"tags"`

	// [x, y, gold]
	Goldmines [][3]uint32 `json:"goldmines"`
	// [slot, x, y, race]
	Starts [][]any `json:"starts"`

	Analysis core.StrategicAnalysis `json:"analysis"`
}

// Rejection is a file that failed to decode.
type Rejection struct {
	ScanID    string `json:"scanId"`
	FileName  string `json:"fileName"`
	FileHash  string `json:"fileHash"`
	ScannedAt string `json:"scannedAt"`
	Kind      string `json:"kind"`
	Message   string `json:"message"`
}
