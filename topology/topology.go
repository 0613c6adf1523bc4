package topology

import (
	"fmt"
	"math"
)

// EarthRadiusKm is the mean Earth radius used for great-circle distances.
const EarthRadiusKm = 6371.0088

// Coord is a geographic position in decimal degrees.
type Coord struct {
	Lat float64 `yaml:"lat"`
	Lon float64 `yaml:"lon"`
}

// Distance returns the great-circle distance between two coordinates in km.
func Distance(a, b Coord) float64 {
	lat1 := a.Lat * math.Pi / 180
	lat2 := b.Lat * math.Pi / 180
	dLat := lat2 - lat1
	dLon := (b.Lon - a.Lon) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	if h > 1 {
		h = 1
	}
	return 2 * EarthRadiusKm * math.Asin(math.Sqrt(h))
}

// Table holds the precomputed pairwise distances between nodes and each
// node's nearest neighbor. Node i corresponds to coords[i].
type Table struct {
	dist     [][]float64
	nearest  []int
	nearestD []float64
}

// New precomputes the distance table for the given node coordinates.
func New(coords []Coord) (*Table, error) {
	for i, c := range coords {
		if c.Lat < -90 || c.Lat > 90 {
			return nil, fmt.Errorf("node %d: latitude %v out of range", i, c.Lat)
		}
		if c.Lon < -180 || c.Lon > 180 {
			return nil, fmt.Errorf("node %d: longitude %v out of range", i, c.Lon)
		}
	}

	n := len(coords)
	t := &Table{
		dist:     make([][]float64, n),
		nearest:  make([]int, n),
		nearestD: make([]float64, n),
	}
	for i := range t.dist {
		t.dist[i] = make([]float64, n)
	}
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			d := Distance(coords[i], coords[j])
			t.dist[i][j] = d
			t.dist[j][i] = d
		}
	}

	// A lone node is its own nearest neighbor at distance 0.
	for i := 0; i < n; i++ {
		best := i
		bestD := math.Inf(1)
		for j := 0; j < n; j++ {
			if j == i {
				continue
			}
			if t.dist[i][j] < bestD {
				best, bestD = j, t.dist[i][j]
			}
		}
		if best == i {
			bestD = 0
		}
		t.nearest[i] = best
		t.nearestD[i] = bestD
	}
	return t, nil
}

// Len returns the number of nodes in the table.
func (t *Table) Len() int {
	return len(t.dist)
}

// Distance returns the distance in km between nodes a and b.
func (t *Table) Distance(a, b int) float64 {
	return t.dist[a][b]
}

// Nearest returns the nearest neighbor of node i and the distance to it.
func (t *Table) Nearest(i int) (int, float64) {
	return t.nearest[i], t.nearestD[i]
}
