package websocket

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/WCArena/pudscan/pkg/core"
	"github.com/WCArena/pudscan/pkg/streaming"
)

// Config holds WebSocket backend configuration.
type Config struct {
	URL    string
	Secret string
	// AckTimeout bounds SaveScan; zero means the package default.
	AckTimeout time.Duration
}

// Backend streams scan results over WebSocket to the arena web service.
// Accepted maps wait for a server ack; rejections are fire-and-forget.
type Backend struct {
	conn *connection
	cfg  Config
}

// New creates a new WebSocket storage backend.
func New(cfg Config, logger *slog.Logger) *Backend {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.AckTimeout <= 0 {
		cfg.AckTimeout = ackTimeout
	}
	return &Backend{
		conn: newConnection(logger),
		cfg:  cfg,
	}
}

// Init connects to the WebSocket server.
func (b *Backend) Init() error {
	return b.conn.dial(b.cfg.URL, b.cfg.Secret)
}

// Close disconnects from the WebSocket server.
func (b *Backend) Close() error {
	return b.conn.close()
}

// marshalEnvelope builds a JSON-encoded Envelope from a message type and payload.
func marshalEnvelope(msgType, id string, payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", msgType, err)
	}
	env := streaming.Envelope{Type: msgType, ID: id, Payload: raw}
	data, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("marshal %s envelope: %w", msgType, err)
	}
	return data, nil
}

// SaveScan sends map_scanned and waits for the server ack.
func (b *Backend) SaveScan(r *core.ScanRecord) error {
	data, err := marshalEnvelope(streaming.TypeMapScanned, r.ScanID, streaming.NewMapScannedPayload(r))
	if err != nil {
		return err
	}
	return b.conn.sendAndWait(data, streaming.TypeMapScanned, r.ScanID, b.cfg.AckTimeout)
}

// SaveRejection sends map_rejected without waiting.
func (b *Backend) SaveRejection(r *core.Rejection) error {
	data, err := marshalEnvelope(streaming.TypeMapRejected, r.ScanID, r)
	if err != nil {
		return err
	}
	b.conn.send(data)
	return nil
}
