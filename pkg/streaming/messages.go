// Package streaming defines the messages the websocket sink exchanges with
// the arena web service.
package streaming

import (
	"encoding/json"

	"github.com/WCArena/pudscan/pkg/core"
)

// Message type constants matching the streaming protocol.
const (
	TypeMapScanned  = "map_scanned"
	TypeMapRejected = "map_rejected"
	TypeAck         = "ack"
)

// Envelope wraps all messages sent over the WebSocket.
type Envelope struct {
	Type    string          `json:"type"`
	ID      string          `json:"id,omitempty"` // scan id, echoed back in the ack
	Payload json.RawMessage `json:"payload"`
}

// AckMessage is the server's acknowledgement response.
type AckMessage struct {
	Type string `json:"type"` // always "ack"
	For  string `json:"for"`  // the message type being acknowledged
	ID   string `json:"id,omitempty"`
}

// MapScannedPayload carries an accepted map. The tile grid is omitted.
type MapScannedPayload struct {
	ScanID    string                 `json:"scanId"`
	FileName  string                 `json:"fileName"`
	FileHash  string                 `json:"fileHash"`
	FileSize  int64                  `json:"fileSize"`
	ScannedAt int64                  `json:"scannedAt"` // unix millis
	Document  core.MapDocument       `json:"document"`
	Analysis  core.StrategicAnalysis `json:"analysis"`
}

// NewMapScannedPayload builds the wire form of r.
func NewMapScannedPayload(r *core.ScanRecord) MapScannedPayload {
	doc := r.Document
	doc.Tiles = nil
	return MapScannedPayload{
		ScanID:    r.ScanID,
		FileName:  r.FileName,
		FileHash:  r.FileHash,
		FileSize:  r.FileSize,
		ScannedAt: r.ScannedAt.UnixMilli(),
		Document:  doc,
		Analysis:  r.Analysis,
	}
}
