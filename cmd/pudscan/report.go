package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"gopkg.in/yaml.v3"

	"github.com/WCArena/pudscan/internal/scanner"
	"github.com/WCArena/pudscan/pkg/core"
)

// output formats for the scan command
const (
	formatText = "text"
	formatJSON = "json"
	formatYAML = "yaml"
)

type fileReport struct {
	Path      string           `json:"path" yaml:"path"`
	Status    string           `json:"status" yaml:"status"`
	Hash      string           `json:"hash,omitempty" yaml:"hash,omitempty"`
	Size      int64            `json:"size" yaml:"size"`
	Cached    bool             `json:"cached,omitempty" yaml:"cached,omitempty"`
	Map       *mapReport       `json:"map,omitempty" yaml:"map,omitempty"`
	Rejection *rejectionReport `json:"rejection,omitempty" yaml:"rejection,omitempty"`
	Error     string           `json:"error,omitempty" yaml:"error,omitempty"`
}

type mapReport struct {
	Name        string         `json:"name" yaml:"name"`
	Author      string         `json:"author,omitempty" yaml:"author,omitempty"`
	Description string         `json:"description,omitempty" yaml:"description,omitempty"`
	Width       uint16         `json:"width" yaml:"width"`
	Height      uint16         `json:"height" yaml:"height"`
	Tileset     string         `json:"tileset" yaml:"tileset"`
	Players     int            `json:"players" yaml:"players"`
	Version     uint16         `json:"version" yaml:"version"`
	Analysis    analysisReport `json:"analysis" yaml:"analysis"`
}

type analysisReport struct {
	MapType      string             `json:"mapType" yaml:"mapType"`
	Balance      string             `json:"balance" yaml:"balance"`
	RushDistance string             `json:"rushDistance" yaml:"rushDistance"`
	Expansion    string             `json:"expansion" yaml:"expansion"`
	Terrain      map[string]float64 `json:"terrain" yaml:"terrain"`
	Goldmines    int                `json:"goldmines" yaml:"goldmines"`
	TotalGold    uint64             `json:"totalGold" yaml:"totalGold"`
	Advantages   []string           `json:"advantages,omitempty" yaml:"advantages,omitempty"`
	Tags         []string           `json:"tags,omitempty" yaml:"tags,omitempty"`
	TopTiles     []tileReport       `json:"topTiles,omitempty" yaml:"topTiles,omitempty"`
	Unmapped     []tileReport       `json:"unmapped,omitempty" yaml:"unmapped,omitempty"`
}

type tileReport struct {
	ID      string  `json:"id" yaml:"id"`
	Name    string  `json:"name" yaml:"name"`
	Count   int     `json:"count" yaml:"count"`
	Percent float64 `json:"percent" yaml:"percent"`
}

// reportTiles is how many breakdown entries the report keeps per list.
const reportTiles = 5

// tileReports takes the first reportTiles entries of the breakdown, only the
// unmapped ones when unmapped is set. The breakdown is already ordered.
func tileReports(tiles []core.TileUsage, unmapped bool) []tileReport {
	var out []tileReport
	for _, t := range tiles {
		if len(out) == reportTiles {
			break
		}
		if unmapped && !t.Unmapped {
			continue
		}
		out = append(out, tileReport{
			ID:      fmt.Sprintf("0x%04X", t.ID),
			Name:    t.Name,
			Count:   t.Count,
			Percent: t.Percentage,
		})
	}
	return out
}

type rejectionReport struct {
	Kind    string `json:"kind" yaml:"kind"`
	Message string `json:"message" yaml:"message"`
}

type scanSummary struct {
	Files    int           `json:"files" yaml:"files"`
	Accepted int           `json:"accepted" yaml:"accepted"`
	Rejected int           `json:"rejected" yaml:"rejected"`
	Failed   int           `json:"failed" yaml:"failed"`
	Errors   int           `json:"errors" yaml:"errors"`
	Bytes    int64         `json:"bytes" yaml:"bytes"`
	Elapsed  time.Duration `json:"elapsed" yaml:"elapsed"`
}

type scanReport struct {
	Files   []fileReport `json:"files" yaml:"files"`
	Summary scanSummary  `json:"summary" yaml:"summary"`
}

func newScanReport(results []scanner.Result, elapsed time.Duration) scanReport {
	rep := scanReport{Files: make([]fileReport, 0, len(results))}
	for _, res := range results {
		fr := newFileReport(res)
		if res.Err != nil && !errors.Is(res.Err, scanner.ErrFileTooLarge) {
			rep.Summary.Errors++
		}
		rep.Summary.Bytes += fr.Size
		switch fr.Status {
		case "accepted":
			rep.Summary.Accepted++
		case "rejected":
			rep.Summary.Rejected++
		default:
			rep.Summary.Failed++
		}
		rep.Files = append(rep.Files, fr)
	}
	rep.Summary.Files = len(results)
	rep.Summary.Elapsed = elapsed
	return rep
}

func newFileReport(res scanner.Result) fileReport {
	fr := fileReport{Path: res.Path}
	if res.Err != nil {
		fr.Error = res.Err.Error()
	}
	switch {
	case res.Record != nil:
		r := res.Record
		fr.Status = "accepted"
		fr.Hash = r.FileHash
		fr.Size = r.FileSize
		fr.Cached = r.Cached
		fr.Map = newMapReport(&r.Document, &r.Analysis)
	case res.Rejection != nil:
		r := res.Rejection
		fr.Status = "rejected"
		fr.Hash = r.FileHash
		fr.Size = r.FileSize
		fr.Rejection = &rejectionReport{Kind: r.Kind, Message: r.Message}
	default:
		fr.Status = "failed"
	}
	return fr
}

func newMapReport(doc *core.MapDocument, a *core.StrategicAnalysis) *mapReport {
	return &mapReport{
		Name:        doc.Name,
		Author:      doc.Author,
		Description: doc.Description,
		Width:       doc.Width,
		Height:      doc.Height,
		Tileset:     doc.Tileset.String(),
		Players:     doc.PlayerSlotCount,
		Version:     doc.FormatVersion,
		Analysis: analysisReport{
			MapType:      string(a.MapType),
			Balance:      string(a.Balance),
			RushDistance: string(a.RushDistance),
			Expansion:    string(a.ExpansionDifficulty),
			Terrain: map[string]float64{
				"water": a.WaterPercentage,
				"shore": a.ShorePercentage,
				"grass": a.GrassPercentage,
				"trees": a.TreesPercentage,
				"rock":  a.RockPercentage,
				"dirt":  a.DirtPercentage,
			},
			Goldmines:  a.Goldmines.Count,
			TotalGold:  a.Goldmines.TotalGold,
			Advantages: a.Advantages,
			Tags:       a.StrategyTags,
			TopTiles:   tileReports(a.TileBreakdown, false),
			Unmapped:   tileReports(a.TileBreakdown, true),
		},
	}
}

func writeReport(w io.Writer, rep scanReport, format string) error {
	switch format {
	case formatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(rep)
	case formatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(rep); err != nil {
			return err
		}
		return enc.Close()
	case formatText:
		return writeText(w, rep)
	default:
		return fmt.Errorf("unknown output format %q", format)
	}
}

func writeText(w io.Writer, rep scanReport) error {
	var b strings.Builder
	for _, f := range rep.Files {
		switch f.Status {
		case "accepted":
			m := f.Map
			a := m.Analysis
			fmt.Fprintf(&b, "%s  ACCEPTED  %q  %dx%d %s  %d players\n",
				f.Path, m.Name, m.Width, m.Height, m.Tileset, m.Players)
			fmt.Fprintf(&b, "  type %s  balance %s  rush %s  expansion %s\n",
				a.MapType, a.Balance, a.RushDistance, a.Expansion)
			fmt.Fprintf(&b, "  gold %s in %d mines  water %.1f%%  trees %.1f%%\n",
				humanize.Comma(int64(a.TotalGold)), a.Goldmines, a.Terrain["water"], a.Terrain["trees"])
			if len(a.Tags) > 0 {
				fmt.Fprintf(&b, "  tags: %s\n", strings.Join(a.Tags, ", "))
			}
			if len(a.TopTiles) > 0 {
				parts := make([]string, 0, len(a.TopTiles))
				for _, t := range a.TopTiles {
					parts = append(parts, fmt.Sprintf("%s %.1f%%", t.Name, t.Percent))
				}
				fmt.Fprintf(&b, "  tiles: %s\n", strings.Join(parts, ", "))
			}
			if len(a.Unmapped) > 0 {
				parts := make([]string, 0, len(a.Unmapped))
				for _, t := range a.Unmapped {
					parts = append(parts, fmt.Sprintf("%s x%d", t.ID, t.Count))
				}
				fmt.Fprintf(&b, "  unmapped tile ids: %s\n", strings.Join(parts, ", "))
			}
			if f.Error != "" {
				fmt.Fprintf(&b, "  warning: %s\n", f.Error)
			}
		case "rejected":
			fmt.Fprintf(&b, "%s  REJECTED  %s: %s\n", f.Path, f.Rejection.Kind, f.Rejection.Message)
		default:
			fmt.Fprintf(&b, "%s  FAILED  %s\n", f.Path, f.Error)
		}
	}

	s := rep.Summary
	fmt.Fprintf(&b, "\nScanned %s files (%s) in %s: %d accepted, %d rejected, %d failed\n",
		humanize.Comma(int64(s.Files)), humanize.Bytes(uint64(s.Bytes)),
		s.Elapsed.Round(time.Millisecond), s.Accepted, s.Rejected, s.Failed)

	_, err := io.WriteString(w, b.String())
	return err
}
