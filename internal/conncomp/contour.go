package conncomp

// Point is a pixel coordinate.
type Point struct {
	X, Y int
}

// Directions lists the eight neighbour offsets as (dy, dx), clockwise from
// the right-hand neighbour.
var Directions = [8][2]int{
	{0, 1}, {1, 1}, {1, 0}, {1, -1}, {0, -1}, {-1, -1}, {-1, 0}, {-1, 1},
}

// Trace is the result of following one contour.
type Trace struct {
	// Boundary holds the foreground pixels that receive the component label,
	// in visiting order. Start appears only when the path passes back
	// through it.
	Boundary []Point
	// Rejected holds background neighbours examined along the way.
	Rejected []Point
}

// probe searches up to seven neighbours of p clockwise from dir. It returns
// the first foreground neighbour and the direction it was found in, or p
// itself when every probed neighbour is background.
func probe(m *Mask, p Point, dir int, rejected *[]Point) (Point, int) {
	for i := 0; i < 7; i++ {
		q := Point{X: p.X + Directions[dir][1], Y: p.Y + Directions[dir][0]}
		if m.Bits[q.Y*m.Width+q.X] == 0 {
			*rejected = append(*rejected, q)
			dir = (dir + 1) % 8
			continue
		}
		return q, dir
	}
	return p, dir
}

// TraceContour follows the boundary through start using Moore neighbour
// tracing. Tracing stops once the path is back at start and the following
// step lands on the first pixel visited after start; a single return to
// start is not enough because boundaries can touch themselves.
//
// start must not lie on the mask border. An isolated pixel yields an empty
// boundary.
func TraceContour(m *Mask, start Point, dir int) Trace {
	var tr Trace

	cur, dir := probe(m, start, dir, &tr.Rejected)
	if cur == start {
		return tr
	}
	first := cur

	// Each boundary pixel can be entered from at most eight directions.
	limit := 8*len(m.Bits) + 8
	atStart := false
	for step := 0; step < limit; step++ {
		dir = (dir + 6) % 8
		tr.Boundary = append(tr.Boundary, cur)
		cur, dir = probe(m, cur, dir, &tr.Rejected)

		switch {
		case cur == start:
			atStart = true
		case atStart && cur == first:
			return tr
		default:
			atStart = false
		}
	}
	return tr
}
