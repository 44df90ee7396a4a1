package board

import "slices"

// Palette lists the player colors the frontend understands, in the order
// they should be offered.
var Palette = []string{
	"rose",
	"amber",
	"emerald",
	"sky",
	"violet",
	"fuchsia",
	"lime",
	"cyan",
}

// AvailableColors returns the palette colors not yet claimed by a player in
// the session. Uniqueness itself is enforced at join time.
func AvailableColors(taken []string) []string {
	out := make([]string, 0, len(Palette))
	for _, c := range Palette {
		if !slices.Contains(taken, c) {
			out = append(out, c)
		}
	}
	return out
}
