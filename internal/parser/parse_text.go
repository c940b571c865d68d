package parser

import (
	"bytes"
	"path/filepath"
	"strings"

	"github.com/WCArena/pudscan/internal/chunk"
	"github.com/WCArena/pudscan/pkg/core"
)

const unknownMapName = "Unknown Map"

// cString decodes a NUL-terminated, possibly non-UTF-8 payload.
func cString(b []byte) string {
	if i := bytes.IndexByte(b, 0); i >= 0 {
		b = b[:i]
	}
	return strings.TrimSpace(strings.ToValidUTF8(string(b), "�"))
}

func (s *decodeState) extractDescription(c chunk.Chunk) error {
	s.doc.Description = cString(c.Payload)
	return nil
}

func (s *decodeState) extractAuthor(c chunk.Chunk) error {
	s.doc.Author = cString(c.Payload)
	return nil
}

func (s *decodeState) extractName(c chunk.Chunk) error {
	s.metaName = cString(c.Payload)
	return nil
}

// resolveName picks the map name: explicit NAME chunk, then the first
// non-empty description line, then the file name without extension.
func resolveName(meta, desc, filename string) (string, core.NameSource) {
	if meta != "" {
		return meta, core.NameFromMetadata
	}
	for _, line := range strings.Split(desc, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			return line, core.NameFromDescription
		}
	}
	return FallbackName(filename)
}

// FallbackName derives a name for a map whose content carries none: the file
// name without extension, or "Unknown Map".
func FallbackName(filename string) (string, core.NameSource) {
	if filename != "" {
		base := filepath.Base(filename)
		base = strings.TrimSuffix(base, filepath.Ext(base))
		if base != "" && base != "." && base != string(filepath.Separator) {
			return base, core.NameFromFilename
		}
	}
	return unknownMapName, core.NameDefault
}
