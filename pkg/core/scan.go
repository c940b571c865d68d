// pkg/core/scan.go
package core

import "time"

// ScanRecord is one accepted map with its analysis, as handed to storage.
type ScanRecord struct {
	ScanID    string            `json:"scanId"`
	FileName  string            `json:"fileName"`
	FileHash  string            `json:"fileHash"`
	FileSize  int64             `json:"fileSize"`
	ScannedAt time.Time         `json:"scannedAt"`
	Cached    bool              `json:"cached"`
	Document  MapDocument       `json:"document"`
	Analysis  StrategicAnalysis `json:"analysis"`
}

// Rejection records a file that failed to decode.
type Rejection struct {
	ScanID    string    `json:"scanId"`
	FileName  string    `json:"fileName"`
	FileHash  string    `json:"fileHash"`
	FileSize  int64     `json:"fileSize"`
	ScannedAt time.Time `json:"scannedAt"`
	Kind      string    `json:"kind"`
	Message   string    `json:"message"`
}
