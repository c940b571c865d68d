package parser

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidSignature means the input does not start with a TYPE chunk
	// carrying the "WAR2 MAP" signature.
	ErrInvalidSignature = errors.New("invalid PUD signature")
	// ErrMissingRequiredChunk means DIM or MTXM was absent when required.
	ErrMissingRequiredChunk = errors.New("missing required chunk")
	// ErrCorruptTileData means the tile matrix does not match the dimensions.
	ErrCorruptTileData = errors.New("corrupt tile data")
	// ErrTruncatedChunk means a chunk header declares more bytes than remain.
	ErrTruncatedChunk = errors.New("truncated chunk")
	// ErrInvalidDimensions means the DIM chunk is short or has a zero side.
	ErrInvalidDimensions = errors.New("invalid dimensions")
)

// DecodeError describes where decoding stopped. Err is one of the sentinel
// errors above.
type DecodeError struct {
	Err      error
	Tag      string
	Offset   int
	Expected string
	Actual   string
}

func (e *DecodeError) Error() string {
	msg := fmt.Sprintf("%v at offset %d", e.Err, e.Offset)
	if e.Tag != "" {
		msg += fmt.Sprintf(" (chunk %q)", e.Tag)
	}
	if e.Expected != "" || e.Actual != "" {
		msg += fmt.Sprintf(": expected %s, got %s", e.Expected, e.Actual)
	}
	return msg
}

func (e *DecodeError) Unwrap() error { return e.Err }

// ErrorKind returns a stable identifier for the decode failure in err,
// suitable for API responses and metric attributes.
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInvalidSignature):
		return "invalid_signature"
	case errors.Is(err, ErrMissingRequiredChunk):
		return "missing_required_chunk"
	case errors.Is(err, ErrCorruptTileData):
		return "corrupt_tile_data"
	case errors.Is(err, ErrTruncatedChunk):
		return "truncated_chunk"
	case errors.Is(err, ErrInvalidDimensions):
		return "invalid_dimensions"
	default:
		return "unknown"
	}
}
