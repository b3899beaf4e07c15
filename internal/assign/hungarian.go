// Package assign solves the function matching problem: a rectangular
// minimum-cost assignment over a similarity matrix, followed by a
// clustering pass that recovers split and merge relationships among the
// leftovers.
package assign

import (
	"math"

	"smartdiff/internal/config"
)

// infCost marks a forbidden pairing in the cost matrix.
const infCost = 1e9

// Assignment pairs a source function index with a target function index.
type Assignment struct {
	SourceIndex int     `json:"sourceIndex"`
	TargetIndex int     `json:"targetIndex"`
	Similarity  float64 `json:"similarity"`
	Cost        float64 `json:"cost"`
}

// Statistics summarizes a solver run.
type Statistics struct {
	MatchedPairs    int `json:"matchedPairs"`
	UnmatchedSource int `json:"unmatchedSource"`
	UnmatchedTarget int `json:"unmatchedTarget"`
	SplitCount      int `json:"splitCount"`
	MergeCount      int `json:"mergeCount"`
	ComplexCount    int `json:"complexCount"`
}

// Result is the outcome of a solver run. Every source and target index
// appears in exactly one of: an assignment, a many-to-many mapping, or an
// unmatched list.
type Result struct {
	Assignments       []Assignment        `json:"assignments"`
	UnmatchedSource   []int               `json:"unmatchedSource"`
	UnmatchedTarget   []int               `json:"unmatchedTarget"`
	ManyToMany        []ManyToManyMapping `json:"manyToMany,omitempty"`
	TotalCost         float64             `json:"totalCost"`
	AverageSimilarity float64             `json:"averageSimilarity"`
	Stats             Statistics          `json:"stats"`
}

// Solver runs optimal assignment with rejection above a maximum cost.
type Solver struct {
	maxCost        float64
	minSimilarity  float64
	maxClusterSize int
	maxCandidates  int
	manyToMany     bool
}

// NewSolver creates a solver from validated configuration.
func NewSolver(matching config.MatchingConfig, crossFile config.CrossFileConfig) *Solver {
	return &Solver{
		maxCost:        matching.MaxAssignmentCost,
		minSimilarity:  matching.MinSimilarityThreshold,
		maxClusterSize: crossFile.MaxClusterSize,
		maxCandidates:  matching.MaxCandidatesPerFunction,
		manyToMany:     matching.EnableManyToMany,
	}
}

// Solve finds the minimum-cost assignment over the similarity matrix
// sim[i][j] (source i, target j), rejects pairs whose cost exceeds the
// maximum, and clusters the residue into many-to-many mappings. raw holds
// the ungated similarities used for clustering; pass nil to reuse sim.
func (s *Solver) Solve(sim, raw [][]float64) *Result {
	if raw == nil {
		raw = sim
	}
	n := len(sim)
	m := 0
	if n > 0 {
		m = len(sim[0])
	}

	res := &Result{}
	if n == 0 && m == 0 {
		res.AverageSimilarity = 1.0
		return res
	}

	assignedTo := s.optimalAssignment(sim, n, m)

	usedTarget := make(map[int]bool, m)
	simSum := 0.0
	for i := 0; i < n; i++ {
		j := assignedTo[i]
		if j < 0 || j >= m {
			res.UnmatchedSource = append(res.UnmatchedSource, i)
			continue
		}
		cost := 1.0 - sim[i][j]
		if cost > s.maxCost {
			res.UnmatchedSource = append(res.UnmatchedSource, i)
			continue
		}
		res.Assignments = append(res.Assignments, Assignment{
			SourceIndex: i,
			TargetIndex: j,
			Similarity:  sim[i][j],
			Cost:        cost,
		})
		usedTarget[j] = true
		res.TotalCost += cost
		simSum += sim[i][j]
	}
	for j := 0; j < m; j++ {
		if !usedTarget[j] {
			res.UnmatchedTarget = append(res.UnmatchedTarget, j)
		}
	}

	if s.manyToMany {
		res.ManyToMany = s.clusterResidue(raw, res)
	}

	if len(res.Assignments) > 0 {
		res.AverageSimilarity = simSum / float64(len(res.Assignments))
	}
	res.Stats = Statistics{
		MatchedPairs:    len(res.Assignments),
		UnmatchedSource: len(res.UnmatchedSource),
		UnmatchedTarget: len(res.UnmatchedTarget),
	}
	for _, mm := range res.ManyToMany {
		switch mm.Type {
		case MappingSplit:
			res.Stats.SplitCount++
		case MappingMerge:
			res.Stats.MergeCount++
		default:
			res.Stats.ComplexCount++
		}
	}
	return res
}

// optimalAssignment returns, for each source row, the assigned target
// column or -1. The matrix is padded to square; forbidden pairs carry
// infCost, and padding columns cost just above the rejection boundary so a
// row prefers any acceptable real pairing over staying unmatched.
func (s *Solver) optimalAssignment(sim [][]float64, n, m int) []int {
	size := n
	if m > size {
		size = m
	}
	dummy := s.maxCost + 1e-6

	cost := make([][]float64, size)
	for i := range cost {
		cost[i] = make([]float64, size)
		for j := range cost[i] {
			switch {
			case i >= n || j >= m:
				cost[i][j] = dummy
			case 1.0-sim[i][j] > s.maxCost:
				cost[i][j] = infCost
			default:
				cost[i][j] = 1.0 - sim[i][j]
			}
		}
	}

	match := hungarian(cost)

	out := make([]int, n)
	for i := 0; i < n; i++ {
		out[i] = match[i]
	}
	return out
}

// hungarian solves the square minimum-cost assignment problem in O(n^3)
// using the potentials formulation. Returns the column assigned to each
// row.
func hungarian(cost [][]float64) []int {
	n := len(cost)
	u := make([]float64, n+1)
	v := make([]float64, n+1)
	p := make([]int, n+1)   // p[j] = row matched to column j (1-based)
	way := make([]int, n+1) // way[j] = previous column on the augmenting path

	for i := 1; i <= n; i++ {
		p[0] = i
		j0 := 0
		minv := make([]float64, n+1)
		used := make([]bool, n+1)
		for j := 0; j <= n; j++ {
			minv[j] = math.Inf(1)
		}
		for {
			used[j0] = true
			i0 := p[j0]
			delta := math.Inf(1)
			j1 := 0
			for j := 1; j <= n; j++ {
				if used[j] {
					continue
				}
				cur := cost[i0-1][j-1] - u[i0] - v[j]
				if cur < minv[j] {
					minv[j] = cur
					way[j] = j0
				}
				if minv[j] < delta {
					delta = minv[j]
					j1 = j
				}
			}
			for j := 0; j <= n; j++ {
				if used[j] {
					u[p[j]] += delta
					v[j] -= delta
				} else {
					minv[j] -= delta
				}
			}
			j0 = j1
			if p[j0] == 0 {
				break
			}
		}
		for j0 != 0 {
			j1 := way[j0]
			p[j0] = p[j1]
			j0 = j1
		}
	}

	result := make([]int, n)
	for j := 1; j <= n; j++ {
		if p[j] > 0 {
			result[p[j]-1] = j - 1
		}
	}
	return result
}
