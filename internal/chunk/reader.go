// Package chunk iterates the tagged sections of a PUD container.
//
// Every section is an 8-byte header (4-byte ASCII tag followed by a
// little-endian uint32 payload length) and then the payload itself.
package chunk

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// HeaderSize is the size of a chunk header in bytes.
const HeaderSize = 8

// ErrTruncated is returned when a header declares more payload than remains.
var ErrTruncated = errors.New("chunk payload exceeds remaining input")

// TruncatedError carries the location of a chunk whose declared length runs
// past the end of the input.
type TruncatedError struct {
	Tag       string
	Offset    int
	Declared  uint32
	Available int
}

func (e *TruncatedError) Error() string {
	return fmt.Sprintf("chunk %q at offset %d declares %d bytes, %d available", e.Tag, e.Offset, e.Declared, e.Available)
}

func (e *TruncatedError) Unwrap() error { return ErrTruncated }

// Chunk is one section of the container. Payload aliases the input buffer.
type Chunk struct {
	Tag     string
	Offset  int // offset of the header
	Payload []byte
}

// Reader walks chunks sequentially. It does not copy the input.
type Reader struct {
	data []byte
	pos  int
}

// NewReader returns a Reader positioned at the start of data.
func NewReader(data []byte) *Reader {
	return &Reader{data: data}
}

// Offset is the position of the next header.
func (r *Reader) Offset() int { return r.pos }

// Next returns the next chunk. ok is false once fewer than HeaderSize bytes
// remain; any trailing bytes shorter than a header are ignored.
func (r *Reader) Next() (c Chunk, ok bool, err error) {
	if len(r.data)-r.pos < HeaderSize {
		return Chunk{}, false, nil
	}

	hdr := r.data[r.pos : r.pos+HeaderSize]
	tag := string(hdr[:4])
	size := binary.LittleEndian.Uint32(hdr[4:8])
	start := r.pos + HeaderSize
	avail := len(r.data) - start

	if uint64(size) > uint64(avail) {
		return Chunk{}, false, &TruncatedError{
			Tag:       tag,
			Offset:    r.pos,
			Declared:  size,
			Available: avail,
		}
	}

	c = Chunk{
		Tag:     tag,
		Offset:  r.pos,
		Payload: r.data[start : start+int(size)],
	}
	r.pos = start + int(size)
	return c, true, nil
}

// Append writes a chunk with the given tag and payload to dst.
// The tag is padded or cut to four bytes.
func Append(dst []byte, tag string, payload []byte) []byte {
	var hdr [HeaderSize]byte
	copy(hdr[:4], (tag + "    ")[:4])
	binary.LittleEndian.PutUint32(hdr[4:], uint32(len(payload)))
	dst = append(dst, hdr[:]...)
	return append(dst, payload...)
}
