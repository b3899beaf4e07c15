package assign

import (
	"sort"
)

// MappingType labels a many-to-many relationship.
type MappingType string

const (
	// MappingSplit is one source function distributed over several targets
	MappingSplit MappingType = "split"
	// MappingMerge is several source functions collapsed into one target
	MappingMerge MappingType = "merge"
	// MappingComplex has several functions on both sides
	MappingComplex MappingType = "complex"
)

// ManyToManyMapping relates groups of source and target functions that the
// one-to-one assignment could not pair. Confidence here is the structural
// base; callers holding the signatures may boost it with name and file
// heuristics.
type ManyToManyMapping struct {
	SourceIndices      []int       `json:"sourceIndices"`
	TargetIndices      []int       `json:"targetIndices"`
	Type               MappingType `json:"type"`
	CombinedSimilarity float64     `json:"combinedSimilarity"`
	Confidence         float64     `json:"confidence"`
}

// clusterResidue searches the unmatched residue for split, merge, and
// complex relationships using the raw (ungated) similarities. Matching
// policy gates exist to stop one-to-one mismatches; a split member
// legitimately scores below them against the whole source. Consumed
// indices are removed from the result's unmatched lists; every index lands
// in at most one mapping.
func (s *Solver) clusterResidue(raw [][]float64, res *Result) []ManyToManyMapping {
	var mappings []ManyToManyMapping

	freeSrc := make(map[int]bool, len(res.UnmatchedSource))
	for _, i := range res.UnmatchedSource {
		freeSrc[i] = true
	}
	freeTgt := make(map[int]bool, len(res.UnmatchedTarget))
	for _, j := range res.UnmatchedTarget {
		freeTgt[j] = true
	}

	// Splits: one unmatched source covered by a group of unmatched targets.
	for _, i := range res.UnmatchedSource {
		if !freeSrc[i] {
			continue
		}
		group, combined := s.candidateGroup(freeSet(freeTgt), func(j int) float64 { return raw[i][j] })
		if group == nil {
			continue
		}
		mappings = append(mappings, ManyToManyMapping{
			SourceIndices:      []int{i},
			TargetIndices:      group,
			Type:               MappingSplit,
			CombinedSimilarity: combined,
			Confidence:         0.6 * combined,
		})
		freeSrc[i] = false
		for _, j := range group {
			freeTgt[j] = false
		}
	}

	// Merges: a group of unmatched sources collapsed into one target.
	for _, j := range res.UnmatchedTarget {
		if !freeTgt[j] {
			continue
		}
		group, combined := s.candidateGroup(freeSet(freeSrc), func(i int) float64 { return raw[i][j] })
		if group == nil {
			continue
		}
		mappings = append(mappings, ManyToManyMapping{
			SourceIndices:      group,
			TargetIndices:      []int{j},
			Type:               MappingMerge,
			CombinedSimilarity: combined,
			Confidence:         0.6 * combined,
		})
		freeTgt[j] = false
		for _, i := range group {
			freeSrc[i] = false
		}
	}

	// Complex: small groups on both sides, found by combination search.
	if mapping := s.bestComplexMapping(raw, freeSet(freeSrc), freeSet(freeTgt)); mapping != nil {
		mappings = append(mappings, *mapping)
		for _, i := range mapping.SourceIndices {
			freeSrc[i] = false
		}
		for _, j := range mapping.TargetIndices {
			freeTgt[j] = false
		}
	}

	res.UnmatchedSource = keepFree(res.UnmatchedSource, freeSrc)
	res.UnmatchedTarget = keepFree(res.UnmatchedTarget, freeTgt)
	return mappings
}

// candidateGroup collects every candidate at or above the similarity
// threshold, best first, capped at maxCandidates. A group needs at least
// two members. Combined similarity is the mean over the group.
func (s *Solver) candidateGroup(candidates []int, simAt func(int) float64) ([]int, float64) {
	var group []int
	for _, idx := range candidates {
		if simAt(idx) >= s.minSimilarity {
			group = append(group, idx)
		}
	}
	if len(group) < 2 {
		return nil, 0
	}
	sort.Slice(group, func(a, b int) bool {
		return simAt(group[a]) > simAt(group[b])
	})
	if len(group) > s.maxCandidates {
		group = group[:s.maxCandidates]
	}
	sum := 0.0
	for _, idx := range group {
		sum += simAt(idx)
	}
	return group, sum / float64(len(group))
}

// bestComplexMapping searches group sizes 2..maxClusterSize on both sides
// for the pairing with the highest mean similarity, and keeps it when it
// clears the threshold. Combination enumeration is capped per side to
// bound the search.
func (s *Solver) bestComplexMapping(raw [][]float64, srcs, tgts []int) *ManyToManyMapping {
	if len(srcs) < 2 || len(tgts) < 2 {
		return nil
	}
	sort.Ints(srcs)
	sort.Ints(tgts)

	maxGroup := s.maxClusterSize
	if len(srcs) < maxGroup {
		maxGroup = len(srcs)
	}
	if len(tgts) < maxGroup {
		maxGroup = len(tgts)
	}

	const combinationLimit = 10

	var best *ManyToManyMapping
	bestScore := 0.0
	for srcSize := 2; srcSize <= maxGroup; srcSize++ {
		for tgtSize := 2; tgtSize <= maxGroup; tgtSize++ {
			srcGroups := combinations(srcs, srcSize, combinationLimit)
			tgtGroups := combinations(tgts, tgtSize, combinationLimit)
			for _, sg := range srcGroups {
				for _, tg := range tgtGroups {
					score := groupMean(raw, sg, tg)
					if score > bestScore {
						bestScore = score
						best = &ManyToManyMapping{
							SourceIndices:      sg,
							TargetIndices:      tg,
							Type:               MappingComplex,
							CombinedSimilarity: score,
							Confidence:         0.5 * score,
						}
					}
				}
			}
		}
	}
	if best == nil || best.CombinedSimilarity < s.minSimilarity {
		return nil
	}
	return best
}

// combinations enumerates size-k subsets of indices, at most limit of them.
func combinations(indices []int, k, limit int) [][]int {
	var out [][]int
	var rec func(start int, current []int)
	rec = func(start int, current []int) {
		if len(out) >= limit {
			return
		}
		if len(current) == k {
			out = append(out, append([]int(nil), current...))
			return
		}
		for i := start; i < len(indices); i++ {
			rec(i+1, append(current, indices[i]))
		}
	}
	rec(0, nil)
	return out
}

func groupMean(sim [][]float64, srcs, tgts []int) float64 {
	if len(srcs) == 0 || len(tgts) == 0 {
		return 0
	}
	sum := 0.0
	for _, i := range srcs {
		for _, j := range tgts {
			sum += sim[i][j]
		}
	}
	return sum / float64(len(srcs)*len(tgts))
}

func freeSet(free map[int]bool) []int {
	var out []int
	for idx, ok := range free {
		if ok {
			out = append(out, idx)
		}
	}
	sort.Ints(out)
	return out
}

func keepFree(indices []int, free map[int]bool) []int {
	var out []int
	for _, idx := range indices {
		if free[idx] {
			out = append(out, idx)
		}
	}
	return out
}
