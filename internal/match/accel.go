package match

import (
	"sort"
	"sync"

	"github.com/coder/hnsw"

	"github.com/kozaktomas/face-attendance/internal/faceprint"
)

// maxNeighbors (M) is the maximum number of neighbors per HNSW node.
const maxNeighbors = 16

// Candidate is one nearest-neighbor result from the accelerated top-K
// search.
type Candidate struct {
	UserID   string
	Distance float64
}

// accel is an optional HNSW graph built alongside the flat entry list.
// It only serves the top-K diagnostic search: HNSW is approximate, and the
// accept/reject path requires the exact linear scan contract of
// Index.Search.
type accel struct {
	mu      sync.RWMutex
	enabled bool
	graph   *hnsw.Graph[int]
	users   []string
}

// EnableAccel turns on the HNSW graph. It takes effect on the next Rebuild.
func (ix *Index) EnableAccel() {
	ix.accel.mu.Lock()
	ix.accel.enabled = true
	ix.accel.mu.Unlock()
	ix.accel.rebuild(*ix.entries.Load())
}

func (a *accel) rebuild(entries []Entry) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.enabled {
		return
	}

	if len(entries) == 0 {
		a.graph = nil
		a.users = nil
		return
	}

	g := hnsw.NewGraph[int]()
	g.M = maxNeighbors
	g.Ml = 1.0 / float64(maxNeighbors) // Standard HNSW formula
	g.Distance = hnsw.EuclideanDistance

	users := make([]string, len(entries))
	for i, e := range entries {
		if len(e.Encoding) == 0 {
			continue
		}
		g.Add(hnsw.MakeNode(i, []float32(e.Encoding)))
		users[i] = e.UserID
	}

	a.graph = g
	a.users = users
}

// Nearest returns up to k approximate nearest neighbors with exact Euclidean
// distances recomputed from the node values. Returns nil when acceleration
// is disabled or the index is empty.
func (ix *Index) Nearest(query faceprint.Encoding, k int) []Candidate {
	ix.accel.mu.RLock()
	defer ix.accel.mu.RUnlock()

	if !ix.accel.enabled || ix.accel.graph == nil || k <= 0 {
		return nil
	}

	neighbors := ix.accel.graph.Search([]float32(query), k)
	candidates := make([]Candidate, 0, len(neighbors))
	for _, n := range neighbors {
		candidates = append(candidates, Candidate{
			UserID:   ix.accel.users[n.Key],
			Distance: EuclideanDistance(query, faceprint.Encoding(n.Value)),
		})
	}
	// the graph returns its own approximate order; the recomputed exact
	// distances decide the reported order
	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].Distance < candidates[j].Distance
	})
	return candidates
}
