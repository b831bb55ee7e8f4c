// Package scoring grades the detected pitch against the target melody and
// accumulates a score over a song.
package scoring

// Tier is the accuracy grade of one tick.
type Tier int

const (
	Silent Tier = iota
	Miss
	Ok
	Good
	Perfect

	tierCount = int(Perfect) + 1
)

// Tiers lists every tier from worst to best.
var Tiers = [tierCount]Tier{Silent, Miss, Ok, Good, Perfect}

func (t Tier) String() string {
	switch t {
	case Silent:
		return "silent"
	case Miss:
		return "miss"
	case Ok:
		return "ok"
	case Good:
		return "good"
	case Perfect:
		return "perfect"
	default:
		return "unknown"
	}
}

// Label is the text shown to the singer.
func (t Tier) Label() string {
	switch t {
	case Perfect:
		return "PERFECT!"
	case Good:
		return "GOOD"
	case Ok:
		return "OK"
	case Miss:
		return "MISS"
	default:
		return ""
	}
}

// Points is the score rate of the tier per second before the multiplier.
func (t Tier) Points() float64 {
	switch t {
	case Perfect:
		return 10
	case Good:
		return 5
	case Ok:
		return 1
	default:
		return 0
	}
}

func (t Tier) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}
