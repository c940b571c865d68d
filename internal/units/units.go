// Package units decodes UNIT records and keeps the placements that matter
// for analysis: neutral goldmines and player start locations.
package units

import (
	"encoding/binary"

	"github.com/WCArena/pudscan/pkg/core"
)

const (
	// RecordSize is the byte length of one UNIT record.
	RecordSize = 8

	// Unit type ids the analyzer keeps.
	GoldmineUnitID   = 0x5C
	HumanStartUnitID = 0x5E
	OrcStartUnitID   = 0x5F

	// NeutralOwner is the owner slot of unclaimed map objects.
	NeutralOwner = 15
	// MaxPlayerSlot is the highest slot a start location may belong to.
	MaxPlayerSlot = 7
	// GoldMultiplier converts a goldmine's aux value into gold.
	GoldMultiplier = 2500
)

// Record is one raw 8-byte placement.
type Record struct {
	X          uint16
	Y          uint16
	UnitTypeID uint8
	OwnerSlot  uint8
	AuxData    uint16
}

// DecodeRecords splits payload into records. A trailing partial record is
// ignored.
func DecodeRecords(payload []byte) []Record {
	n := len(payload) / RecordSize
	out := make([]Record, 0, n)
	for i := 0; i < n; i++ {
		b := payload[i*RecordSize : (i+1)*RecordSize]
		out = append(out, Record{
			X:          binary.LittleEndian.Uint16(b[0:2]),
			Y:          binary.LittleEndian.Uint16(b[2:4]),
			UnitTypeID: b[4],
			OwnerSlot:  b[5],
			AuxData:    binary.LittleEndian.Uint16(b[6:8]),
		})
	}
	return out
}

// Placement is the classified form of a record: either a GoldminePlacement
// or a StartPlacement.
type Placement interface {
	placement()
}

// GoldminePlacement is a neutral goldmine record.
type GoldminePlacement struct{ core.Goldmine }

// StartPlacement is a player start location record.
type StartPlacement struct{ core.StartingPosition }

func (GoldminePlacement) placement() {}
func (StartPlacement) placement()    {}

// Classify returns the placement a record describes, or false when the record
// is of no analytic interest.
func Classify(r Record) (Placement, bool) {
	switch r.UnitTypeID {
	case GoldmineUnitID:
		if r.OwnerSlot != NeutralOwner || r.AuxData == 0 {
			return nil, false
		}
		return GoldminePlacement{core.Goldmine{
			X:                r.X,
			Y:                r.Y,
			OwnerSlot:        r.OwnerSlot,
			RawUnitID:        r.UnitTypeID,
			RawResourceValue: r.AuxData,
			GoldAmount:       uint32(r.AuxData) * GoldMultiplier,
		}}, true
	case HumanStartUnitID, OrcStartUnitID:
		if r.OwnerSlot > MaxPlayerSlot {
			return nil, false
		}
		race := core.RaceHuman
		if r.UnitTypeID == OrcStartUnitID {
			race = core.RaceOrc
		}
		return StartPlacement{core.StartingPosition{
			X:         r.X,
			Y:         r.Y,
			OwnerSlot: r.OwnerSlot,
			Race:      race,
			RawUnitID: r.UnitTypeID,
		}}, true
	}
	return nil, false
}

// Result is what Extract keeps from a UNIT payload.
type Result struct {
	Goldmines         []core.Goldmine
	StartingPositions []core.StartingPosition
	Records           int
	Skipped           int
}

// Extract decodes and classifies every record in a UNIT payload, preserving
// record order within each list.
func Extract(payload []byte) Result {
	recs := DecodeRecords(payload)
	res := Result{
		Goldmines:         []core.Goldmine{},
		StartingPositions: []core.StartingPosition{},
		Records:           len(recs),
	}
	for _, r := range recs {
		p, ok := Classify(r)
		if !ok {
			res.Skipped++
			continue
		}
		switch v := p.(type) {
		case GoldminePlacement:
			res.Goldmines = append(res.Goldmines, v.Goldmine)
		case StartPlacement:
			res.StartingPositions = append(res.StartingPositions, v.StartingPosition)
		}
	}
	return res
}
