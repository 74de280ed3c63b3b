package particle

// Centroid is the representative pixel of one connected component.
// ClusterIndex and Distances are filled in by the clusterer.
type Centroid struct {
	X            int       `json:"x"`
	Y            int       `json:"y"`
	ClusterIndex int       `json:"cluster_index"`
	Distances    []float64 `json:"distances,omitempty"`
}

// Center is a k-means cluster center in pixel coordinates.
type Center struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Vector is a frame-to-frame shift or a shift difference (acceleration).
type Vector struct {
	DX float64 `json:"dx"`
	DY float64 `json:"dy"`
}

// Sub returns v - o.
func (v Vector) Sub(o Vector) Vector {
	return Vector{DX: v.DX - o.DX, DY: v.DY - o.DY}
}

// Sum returns DX + DY, the scalar the downlink score weighs.
func (v Vector) Sum() float64 {
	return v.DX + v.DY
}

// Clone returns a deep copy of the centroid list.
func Clone(cents []Centroid) []Centroid {
	out := make([]Centroid, len(cents))
	for i, c := range cents {
		out[i] = c
		if c.Distances != nil {
			out[i].Distances = append([]float64(nil), c.Distances...)
		}
	}
	return out
}
