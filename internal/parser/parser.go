// Package parser decodes PUD map containers into core.MapDocument values.
package parser

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"

	"github.com/WCArena/pudscan/internal/chunk"
	"github.com/WCArena/pudscan/pkg/core"
)

// Signature is the prefix every TYPE chunk payload must carry.
const Signature = "WAR2 MAP"

const typeTag = "TYPE"

// Option configures a Parser.
type Option func(*Parser)

// WithDebug enables per-chunk trace logging.
func WithDebug(enabled bool) Option {
	return func(p *Parser) {
		p.debug = enabled
	}
}

// Parser decodes PUD files. It keeps no per-call state and is safe for
// concurrent use.
type Parser struct {
	logger *slog.Logger
	debug  bool
}

// NewParser creates a parser that logs to logger.
func NewParser(logger *slog.Logger, opts ...Option) *Parser {
	if logger == nil {
		logger = slog.Default()
	}
	p := &Parser{logger: logger}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Parse decodes data into a MapDocument. filename is only used as a name
// fallback and may be empty. On error the returned document is the zero value.
func (p *Parser) Parse(data []byte, filename string) (core.MapDocument, error) {
	r := chunk.NewReader(data)

	if err := checkSignature(r); err != nil {
		return core.MapDocument{}, err
	}

	st := newDecodeState(p.logger)
	for {
		c, ok, err := r.Next()
		if err != nil {
			return core.MapDocument{}, truncated(err)
		}
		if !ok {
			break
		}

		extract, known := extractors[c.Tag]
		if p.debug {
			p.logger.Debug("PUD chunk",
				"tag", c.Tag,
				"offset", c.Offset,
				"size", len(c.Payload),
				"known", known)
		}
		if !known {
			st.skipped++
			continue
		}
		if err := extract(st, c); err != nil {
			return core.MapDocument{}, err
		}
	}

	doc, err := st.finish(filename, r.Offset())
	if err != nil {
		return core.MapDocument{}, err
	}

	if p.debug {
		p.logger.Debug("Parsed PUD",
			"name", doc.Name,
			"width", doc.Width,
			"height", doc.Height,
			"tileset", doc.Tileset.String(),
			"goldmines", len(doc.Goldmines),
			"startingPositions", len(doc.StartingPositions),
			"skippedChunks", st.skipped)
	}
	return doc, nil
}

func checkSignature(r *chunk.Reader) error {
	c, ok, err := r.Next()
	if err != nil {
		var te *chunk.TruncatedError
		if errors.As(err, &te) && te.Tag == typeTag {
			return truncated(err)
		}
		return &DecodeError{Err: ErrInvalidSignature, Expected: typeTag, Actual: "truncated header"}
	}
	if !ok {
		return &DecodeError{Err: ErrInvalidSignature, Expected: typeTag, Actual: "end of input"}
	}
	if c.Tag != typeTag {
		return &DecodeError{Err: ErrInvalidSignature, Tag: c.Tag, Offset: c.Offset, Expected: typeTag, Actual: fmt.Sprintf("%q", c.Tag)}
	}
	if len(c.Payload) < len(Signature) || !bytes.HasPrefix(c.Payload, []byte(Signature)) {
		return &DecodeError{
			Err:      ErrInvalidSignature,
			Tag:      c.Tag,
			Offset:   c.Offset,
			Expected: fmt.Sprintf("%q", Signature),
			Actual:   fmt.Sprintf("%q", prefix(c.Payload, len(Signature))),
		}
	}
	return nil
}

func truncated(err error) error {
	var te *chunk.TruncatedError
	if errors.As(err, &te) {
		return &DecodeError{
			Err:      ErrTruncatedChunk,
			Tag:      te.Tag,
			Offset:   te.Offset,
			Expected: fmt.Sprintf("%d bytes", te.Declared),
			Actual:   fmt.Sprintf("%d bytes", te.Available),
		}
	}
	return fmt.Errorf("read chunk: %w", err)
}

func prefix(b []byte, n int) []byte {
	if len(b) < n {
		return b
	}
	return b[:n]
}
