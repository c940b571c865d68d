package analyzer

import "github.com/WCArena/pudscan/pkg/core"

const (
	TagNavalControl      = "Naval control decides expansions"
	TagTransportHarass   = "Transport harassment"
	TagForestChokepoints = "Dense forest chokepoints"

	denseForestPercent = 25.0
)

type tilesetProfile struct {
	advantages []string
	tags       []string
}

var profiles = map[core.Tileset]tilesetProfile{
	core.TilesetForest: {
		advantages: []string{"Plentiful lumber", "Open land routes"},
		tags:       []string{"Standard build orders", "Tower pushes viable"},
	},
	core.TilesetWinter: {
		advantages: []string{"Clear sight lines over snow fields", "Frozen shores narrow landings"},
		tags:       []string{"Ranged units favored", "Early scouting pays off"},
	},
	core.TilesetWasteland: {
		advantages: []string{"Sparse forests shorten harvest trips", "Wide dirt plains"},
		tags:       []string{"Aggressive ground pushes", "Fast expansions"},
	},
	core.TilesetSwamp: {
		advantages: []string{"Broken terrain hides flanks", "Scattered tree islands"},
		tags:       []string{"Ambush positioning", "Air units valuable"},
	},
}

// strategyTags returns fresh slices so callers may modify them.
func strategyTags(ts core.Tileset, mt core.MapType, treesPct float64) ([]string, []string) {
	p, ok := profiles[ts]
	if !ok {
		p = profiles[core.TilesetForest]
	}

	advantages := append([]string{}, p.advantages...)
	tags := append([]string{}, p.tags...)

	if mt == core.MapTypeNaval || mt == core.MapTypeHybrid {
		tags = append(tags, TagNavalControl, TagTransportHarass)
	}
	if treesPct > denseForestPercent {
		tags = append(tags, TagForestChokepoints)
	}
	return advantages, tags
}
