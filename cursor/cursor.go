package cursor

type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Roster maps a connection id to its last settled position.
type Roster map[string]Position

func (r Roster) Clone() Roster {
	out := make(Roster, len(r))
	for id, p := range r {
		out[id] = p
	}
	return out
}

// Interpolate blends prev towards curr at progress t in [0,1]. Only ids present
// in both with a changed position move; ids missing from curr are dropped.
func Interpolate(prev, curr Roster, t float64) Roster {
	out := make(Roster, len(curr))
	for id, to := range curr {
		from, ok := prev[id]
		if !ok || from == to {
			out[id] = to
			continue
		}
		out[id] = Position{
			X: lerp(from.X, to.X, t),
			Y: lerp(from.Y, to.Y, t),
		}
	}
	return out
}

func lerp(from, to, t float64) float64 {
	return from + (to-from)*t
}
