package parser

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/WCArena/pudscan/internal/testutil"
	"github.com/WCArena/pudscan/internal/units"
	"github.com/WCArena/pudscan/pkg/core"
)

func newTestParser() *Parser {
	return NewParser(slog.Default())
}

func TestNewParser(t *testing.T) {
	p := NewParser(nil, WithDebug(true))
	require.NotNil(t, p)
	assert.True(t, p.debug)
	assert.NotNil(t, p.logger)
}

func TestParse_SimpleMap(t *testing.T) {
	doc, err := newTestParser().Parse(testutil.SimpleMap("Garden of War"), "ignored.pud")
	require.NoError(t, err)

	assert.Equal(t, "Garden of War", doc.Name)
	assert.Equal(t, uint16(32), doc.Width)
	assert.Equal(t, uint16(32), doc.Height)
	assert.Equal(t, core.TilesetForest, doc.Tileset)
	assert.Equal(t, uint16(0x13), doc.FormatVersion)
	assert.Equal(t, 2, doc.PlayerSlotCount)
	assert.Len(t, doc.Tiles, 32*32)
	assert.Len(t, doc.Goldmines, 2)
	assert.Len(t, doc.StartingPositions, 2)
	assert.Equal(t, core.RaceHuman, doc.StartingPositions[0].Race)
	assert.Equal(t, core.RaceOrc, doc.StartingPositions[1].Race)
}

func TestParse_InvalidSignature(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"empty", nil},
		{"short", []byte("WAR2")},
		{"wrong first tag", testutil.Empty().Chunk("VER ", []byte{1, 0}).Dim(32, 32).Fill(32, 32, 0).Bytes()},
		{"wrong signature", testutil.Empty().Chunk("TYPE", []byte("WAR1 MAP\x00\x00")).Dim(4, 4).Fill(4, 4, 0).Bytes()},
		{"short signature payload", testutil.Empty().Chunk("TYPE", []byte("WAR2")).Dim(4, 4).Fill(4, 4, 0).Bytes()},
		{"type not first", testutil.Empty().Dim(4, 4).Chunk("TYPE", []byte("WAR2 MAP\x00\x00")).Fill(4, 4, 0).Bytes()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc, err := newTestParser().Parse(tt.data, "")
			require.ErrorIs(t, err, ErrInvalidSignature)
			assert.Equal(t, core.MapDocument{}, doc)
			assert.Equal(t, "invalid_signature", ErrorKind(err))
		})
	}
}

func TestParse_MissingRequiredChunk(t *testing.T) {
	tests := []struct {
		name    string
		data    []byte
		wantTag string
	}{
		{"no dim", testutil.NewPUD().Fill(4, 4, 0).Bytes(), "DIM "},
		{"no tiles", testutil.NewPUD().Dim(4, 4).Bytes(), "MTXM"},
		{"nothing after type", testutil.NewPUD().Bytes(), "DIM "},
		{"tiles before dim", testutil.NewPUD().Fill(4, 4, 0).Dim(4, 4).Bytes(), "DIM "},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := newTestParser().Parse(tt.data, "")
			require.ErrorIs(t, err, ErrMissingRequiredChunk)

			var de *DecodeError
			require.ErrorAs(t, err, &de)
			assert.Equal(t, tt.wantTag, de.Tag)
		})
	}
}

func TestParse_CorruptTileData(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"short matrix", testutil.NewPUD().Dim(32, 32).Tiles(make([]uint16, 32*32-1)).Bytes()},
		{"long matrix", testutil.NewPUD().Dim(32, 32).Tiles(make([]uint16, 32*32+1)).Bytes()},
		{"odd byte count", testutil.NewPUD().Dim(2, 2).Chunk("MTXM", make([]byte, 7)).Bytes()},
		{"dim changes after tiles", testutil.NewPUD().Dim(4, 4).Fill(4, 4, 0).Dim(8, 8).Bytes()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := newTestParser().Parse(tt.data, "")
			require.ErrorIs(t, err, ErrCorruptTileData)
		})
	}
}

func TestParse_CorruptTileDataContext(t *testing.T) {
	data := testutil.NewPUD().Dim(32, 32).Tiles(make([]uint16, 100)).Bytes()

	_, err := newTestParser().Parse(data, "")
	var de *DecodeError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, "MTXM", de.Tag)
	assert.Equal(t, 30, de.Offset)
	assert.Contains(t, de.Expected, "2048 bytes")
	assert.Equal(t, "200 bytes", de.Actual)
	assert.Contains(t, err.Error(), "offset 30")
}

func TestParse_TruncatedChunk(t *testing.T) {
	full := testutil.NewPUD().Dim(4, 4).Fill(4, 4, 0).Bytes()
	data := full[:len(full)-5]

	_, err := newTestParser().Parse(data, "")
	require.ErrorIs(t, err, ErrTruncatedChunk)

	var de *DecodeError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, "MTXM", de.Tag)
	assert.Equal(t, "32 bytes", de.Expected)
	assert.Equal(t, "27 bytes", de.Actual)
}

func TestParse_TruncatedTypeChunk(t *testing.T) {
	data := testutil.NewPUD().Bytes()
	_, err := newTestParser().Parse(data[:12], "")
	require.ErrorIs(t, err, ErrTruncatedChunk)
}

func TestParse_InvalidDimensions(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"zero width", testutil.NewPUD().Dim(0, 32).Bytes()},
		{"zero height", testutil.NewPUD().Dim(32, 0).Bytes()},
		{"short payload", testutil.NewPUD().Chunk("DIM ", []byte{32, 0}).Bytes()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := newTestParser().Parse(tt.data, "")
			require.ErrorIs(t, err, ErrInvalidDimensions)
		})
	}
}

func TestParse_UnknownChunksSkipped(t *testing.T) {
	data := testutil.NewPUD().
		Chunk("SGLD", []byte{1, 2, 3}).
		Dim(4, 4).
		Chunk("ZZZZ", nil).
		Fill(4, 4, 0x10).
		Chunk("SIDE", make([]byte, 16)).
		Bytes()

	doc, err := newTestParser().Parse(data, "")
	require.NoError(t, err)
	assert.Len(t, doc.Tiles, 16)
}

func TestParse_TrailingGarbageIgnored(t *testing.T) {
	data := append(testutil.NewPUD().Dim(2, 2).Fill(2, 2, 0).Bytes(), 0x01, 0x02, 0x03)

	_, err := newTestParser().Parse(data, "")
	require.NoError(t, err)
}

func TestParse_Tileset(t *testing.T) {
	tests := []struct {
		name string
		pud  *testutil.PUD
		want core.Tileset
	}{
		{"default", testutil.NewPUD(), core.TilesetForest},
		{"era winter", testutil.NewPUD().Era(1), core.TilesetWinter},
		{"era wasteland", testutil.NewPUD().Era(2), core.TilesetWasteland},
		{"erax overrides era", testutil.NewPUD().Era(1).EraX(3), core.TilesetSwamp},
		{"erax before era still wins", testutil.NewPUD().EraX(2).Era(1), core.TilesetWasteland},
		{"unknown id", testutil.NewPUD().Era(9), core.TilesetForest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc, err := newTestParser().Parse(tt.pud.Dim(2, 2).Fill(2, 2, 0).Bytes(), "")
			require.NoError(t, err)
			assert.Equal(t, tt.want, doc.Tileset)
		})
	}
}

func TestParse_PlayerSlotCount(t *testing.T) {
	tests := []struct {
		name  string
		slots []uint8
		want  int
	}{
		{"two humans", []uint8{0x05, 0x05, 0x03, 0x03, 0x03, 0x03, 0x03, 0x03}, 2},
		{"one player still two", []uint8{0x05, 0x03, 0x03, 0x03, 0x03, 0x03, 0x03, 0x03}, 2},
		{"mixed", []uint8{0x05, 0x04, 0x04, 0x06, 0x07, 0x03, 0x02, 0x00}, 5},
		{"extra entries ignored", []uint8{0x05, 0x05, 0x05, 0x03, 0x03, 0x03, 0x03, 0x03, 0x05, 0x05}, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := testutil.NewPUD().Owners(tt.slots...).Dim(2, 2).Fill(2, 2, 0).Bytes()
			doc, err := newTestParser().Parse(data, "")
			require.NoError(t, err)
			assert.Equal(t, tt.want, doc.PlayerSlotCount)
		})
	}
}

func TestParse_NamePrecedence(t *testing.T) {
	tests := []struct {
		name       string
		pud        *testutil.PUD
		filename   string
		want       string
		wantSource core.NameSource
	}{
		{"name chunk", testutil.NewPUD().Name("Meta").Desc("Desc line"), "file.pud", "Meta", core.NameFromMetadata},
		{"description first line", testutil.NewPUD().Desc("\n  \nIsland Hopping\nsecond"), "file.pud", "Island Hopping", core.NameFromDescription},
		{"filename", testutil.NewPUD(), "/maps/Crossroads.pud", "Crossroads", core.NameFromFilename},
		{"filename without extension", testutil.NewPUD(), "bigmap", "bigmap", core.NameFromFilename},
		{"empty name falls through", testutil.NewPUD().Name(""), "x.pud", "x", core.NameFromFilename},
		{"nothing", testutil.NewPUD(), "", "Unknown Map", core.NameDefault},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc, err := newTestParser().Parse(tt.pud.Dim(2, 2).Fill(2, 2, 0).Bytes(), tt.filename)
			require.NoError(t, err)
			assert.Equal(t, tt.want, doc.Name)
			assert.Equal(t, tt.wantSource, doc.NameSource)
		})
	}
}

func TestFallbackName(t *testing.T) {
	tests := []struct {
		filename   string
		want       string
		wantSource core.NameSource
	}{
		{"Islands.pud", "Islands", core.NameFromFilename},
		{"maps/Garden of War.PUD", "Garden of War", core.NameFromFilename},
		{".pud", "Unknown Map", core.NameDefault},
		{"/", "Unknown Map", core.NameDefault},
		{"", "Unknown Map", core.NameDefault},
	}
	for _, tt := range tests {
		t.Run(tt.filename, func(t *testing.T) {
			name, source := FallbackName(tt.filename)
			assert.Equal(t, tt.want, name)
			assert.Equal(t, tt.wantSource, source)
		})
	}
}

func TestParse_Text(t *testing.T) {
	data := testutil.NewPUD().
		Desc("A map for two.\x00garbage").
		Chunk("AUTH", []byte("Blizzard\x00")).
		Dim(2, 2).
		Fill(2, 2, 0).
		Bytes()

	doc, err := newTestParser().Parse(data, "")
	require.NoError(t, err)
	assert.Equal(t, "A map for two.", doc.Description)
	assert.Equal(t, "Blizzard", doc.Author)
}

func TestParse_Goldmine(t *testing.T) {
	data := testutil.NewPUD().
		Dim(8, 8).
		Fill(8, 8, 0).
		Units(testutil.Goldmine(3, 4, 26)).
		Bytes()

	doc, err := newTestParser().Parse(data, "")
	require.NoError(t, err)
	require.Len(t, doc.Goldmines, 1)

	g := doc.Goldmines[0]
	assert.Equal(t, uint32(26*2500), g.GoldAmount)
	assert.Equal(t, uint16(26), g.RawResourceValue)
	assert.Equal(t, uint8(0x5C), g.RawUnitID)
	assert.Equal(t, uint16(3), g.X)
	assert.Equal(t, uint16(4), g.Y)
	assert.Equal(t, core.GoldMedium, units.GoldCategoryFor(g.GoldAmount))
}

func TestParse_MultipleUnitChunks(t *testing.T) {
	data := testutil.NewPUD().
		Dim(8, 8).
		Units(testutil.HumanStart(1, 1, 0)).
		Fill(8, 8, 0).
		Units(testutil.OrcStart(6, 6, 1), testutil.Goldmine(4, 4, 10)).
		Bytes()

	doc, err := newTestParser().Parse(data, "")
	require.NoError(t, err)
	assert.Len(t, doc.StartingPositions, 2)
	assert.Len(t, doc.Goldmines, 1)
}

func TestParse_TileValues(t *testing.T) {
	ids := []uint16{0x0000, 0x0010, 0x0030, 0xFFFF}
	data := testutil.NewPUD().Dim(2, 2).Tiles(ids).Bytes()

	doc, err := newTestParser().Parse(data, "")
	require.NoError(t, err)
	assert.Equal(t, ids, doc.Tiles)

	v, ok := doc.TileAt(1, 1)
	assert.True(t, ok)
	assert.Equal(t, uint16(0xFFFF), v)

	_, ok = doc.TileAt(2, 0)
	assert.False(t, ok)
}

func TestParse_DoesNotRetainInput(t *testing.T) {
	data := testutil.NewPUD().Name("Keep").Dim(2, 2).Fill(2, 2, 0x10).Bytes()

	doc, err := newTestParser().Parse(data, "")
	require.NoError(t, err)

	for i := range data {
		data[i] = 0
	}
	assert.Equal(t, "Keep", doc.Name)
	assert.Equal(t, []uint16{0x10, 0x10, 0x10, 0x10}, doc.Tiles)
}

func TestParse_DebugTrace(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	data := testutil.SimpleMap("Traced")

	_, err := NewParser(logger).Parse(data, "")
	require.NoError(t, err)
	assert.NotContains(t, buf.String(), "PUD chunk")

	_, err = NewParser(logger, WithDebug(true)).Parse(data, "")
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "PUD chunk")
	assert.Contains(t, buf.String(), "tag=MTXM")
}

func TestErrorKind(t *testing.T) {
	assert.Equal(t, "", ErrorKind(nil))
	assert.Equal(t, "corrupt_tile_data", ErrorKind(&DecodeError{Err: ErrCorruptTileData}))
	assert.Equal(t, "truncated_chunk", ErrorKind(&DecodeError{Err: ErrTruncatedChunk}))
	assert.Equal(t, "missing_required_chunk", ErrorKind(&DecodeError{Err: ErrMissingRequiredChunk}))
	assert.Equal(t, "invalid_dimensions", ErrorKind(&DecodeError{Err: ErrInvalidDimensions}))
	assert.Equal(t, "unknown", ErrorKind(assert.AnError))
}
