package parser

import (
	"fmt"
	"log/slog"

	"github.com/WCArena/pudscan/internal/chunk"
	"github.com/WCArena/pudscan/pkg/core"
)

type extractor func(*decodeState, chunk.Chunk) error

var extractors = map[string]extractor{
	"VER ": (*decodeState).extractVersion,
	"OWNR": (*decodeState).extractOwners,
	"ERA ": (*decodeState).extractEra,
	"ERAX": (*decodeState).extractEraX,
	"DIM ": (*decodeState).extractDimensions,
	"MTXM": (*decodeState).extractTiles,
	"UNIT": (*decodeState).extractUnits,
	"DESC": (*decodeState).extractDescription,
	"AUTH": (*decodeState).extractAuthor,
	"NAME": (*decodeState).extractName,
}

// decodeState accumulates fields while chunks are dispatched. It lives for
// one Parse call.
type decodeState struct {
	logger *slog.Logger
	doc    core.MapDocument

	haveDim   bool
	haveTiles bool

	era      uint16
	haveEra  bool
	eraX     uint16
	haveEraX bool

	metaName string
	skipped  int
}

func newDecodeState(logger *slog.Logger) *decodeState {
	return &decodeState{
		logger: logger,
		doc: core.MapDocument{
			PlayerSlotCount:   minPlayerSlots,
			Goldmines:         []core.Goldmine{},
			StartingPositions: []core.StartingPosition{},
		},
	}
}

func (s *decodeState) finish(filename string, end int) (core.MapDocument, error) {
	if !s.haveDim {
		return core.MapDocument{}, &DecodeError{Err: ErrMissingRequiredChunk, Tag: "DIM ", Offset: end, Expected: "DIM chunk", Actual: "none"}
	}
	if !s.haveTiles {
		return core.MapDocument{}, &DecodeError{Err: ErrMissingRequiredChunk, Tag: "MTXM", Offset: end, Expected: "MTXM chunk", Actual: "none"}
	}

	s.doc.Tileset = s.resolveTileset()
	s.doc.Name, s.doc.NameSource = resolveName(s.metaName, s.doc.Description, filename)

	if len(s.doc.Tiles) != s.doc.TileCount() {
		return core.MapDocument{}, &DecodeError{
			Err:      ErrCorruptTileData,
			Tag:      "MTXM",
			Offset:   end,
			Expected: fmt.Sprintf("%d tiles", s.doc.TileCount()),
			Actual:   fmt.Sprintf("%d tiles", len(s.doc.Tiles)),
		}
	}
	return s.doc, nil
}

func (s *decodeState) resolveTileset() core.Tileset {
	id, ok := s.eraX, s.haveEraX
	if !ok {
		id, ok = s.era, s.haveEra
	}
	if !ok {
		return core.TilesetForest
	}
	ts, known := core.TilesetFromID(id)
	if !known {
		s.logger.Debug("Unknown tileset id, using forest", "id", id)
	}
	return ts
}
