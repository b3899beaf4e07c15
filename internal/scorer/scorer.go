// Package scorer computes multi-factor similarity between functions and
// applies the matching policy that decides whether two functions may be
// paired at all.
package scorer

import (
	"math"
	"strings"

	"smartdiff/internal/ast"
	"smartdiff/internal/config"
	"smartdiff/internal/treedit"
)

// MatchType bands a similarity score for reporting.
type MatchType string

const (
	// ExactMatch means the functions are the same or trivially different
	ExactMatch MatchType = "exact"
	// HighMatch is a confident match
	HighMatch MatchType = "high"
	// PotentialMatch is above the default acceptance threshold
	PotentialMatch MatchType = "potential"
	// WeakMatch has some signal but is below acceptance
	WeakMatch MatchType = "weak"
	// NoMatch has no usable signal
	NoMatch MatchType = "none"
)

// ClassifyMatchType bands a similarity value.
func ClassifyMatchType(similarity float64) MatchType {
	switch {
	case similarity >= 0.95:
		return ExactMatch
	case similarity >= 0.85:
		return HighMatch
	case similarity >= 0.7:
		return PotentialMatch
	case similarity >= 0.5:
		return WeakMatch
	default:
		return NoMatch
	}
}

// Score holds the factor breakdown of a comparison.
type Score struct {
	Overall   float64   `json:"overall"`
	Signature float64   `json:"signature"`
	Body      float64   `json:"body"`
	Context   float64   `json:"context"`
	MatchType MatchType `json:"matchType"`
}

// Match is the outcome of applying the matching policy to a pair.
type Match struct {
	Similarity float64 `json:"similarity"`
	Threshold  float64 `json:"threshold"`
	Accepted   bool    `json:"accepted"`
	SameFile   bool    `json:"sameFile"`
}

// Scorer computes similarities. Safe for concurrent use.
type Scorer struct {
	weights   config.WeightsConfig
	matching  config.MatchingConfig
	crossFile config.CrossFileConfig
	tree      *treedit.Calculator
}

// New creates a scorer from a validated configuration.
func New(cfg *config.Config) *Scorer {
	return &Scorer{
		weights:   cfg.Weights,
		matching:  cfg.Matching,
		crossFile: cfg.CrossFile,
		tree:      treedit.NewCalculator(cfg.TreeEdit),
	}
}

// Score computes the raw multi-factor similarity without policy gates.
func (s *Scorer) Score(src, tgt *ast.Function) Score {
	sig := s.SignatureSimilarity(&src.Signature, &tgt.Signature)
	body := s.BodySimilarity(src, tgt)
	ctx := s.ContextSimilarity(src, tgt)

	overall := s.weights.Signature*sig + s.weights.Body*body + s.weights.Context*ctx
	return Score{
		Overall:   overall,
		Signature: sig,
		Body:      body,
		Context:   ctx,
		MatchType: ClassifyMatchType(overall),
	}
}

// Match applies the matching policy to a pair and returns the effective
// similarity and whether the pair is allowed to match. Cross-file pairs
// face a raised threshold; the reported similarity is never penalized.
func (s *Scorer) Match(src, tgt *ast.Function) Match {
	sameFile := src.FilePath() == tgt.FilePath()

	threshold := s.matching.MinSimilarityThreshold
	if !sameFile {
		threshold = math.Max(threshold+s.crossFile.Penalty, s.crossFile.MinCrossFileSimilarity)
	}

	sameName := src.Name() == tgt.Name()

	if sameName && sameFile {
		// Same declaration site: this is the same function, edited.
		// Takes precedence over every other rule, including the
		// simple-function rule below, so a touched-up getter reports
		// as modified rather than deleted and re-added.
		sim := 0.7 + 0.3*s.BodySimilarity(src, tgt)
		return Match{Similarity: sim, Threshold: threshold, Accepted: sim >= threshold, SameFile: true}
	}

	// Tiny bodies carry no structural signal: trivial getters and
	// delegators look alike. They match only on identical content.
	if src.IsSimple() || tgt.IsSimple() {
		if sameName && src.Hash != "" && src.Hash == tgt.Hash {
			return Match{Similarity: 1.0, Threshold: threshold, Accepted: true, SameFile: sameFile}
		}
		return Match{Similarity: 0, Threshold: threshold, SameFile: sameFile}
	}

	body := s.BodySimilarity(src, tgt)

	if sameFile {
		// Different name in the same file only matches on near-identical
		// bodies, otherwise every sibling helper pairs with every other.
		if body < 0.95 {
			return Match{Similarity: 0, Threshold: threshold, SameFile: true}
		}
	} else {
		nameSim := NameSimilarity(src.Name(), tgt.Name())
		required := 0.95
		switch {
		case nameSim >= 0.8:
			required = 0.85
		case nameSim >= 0.5:
			required = 0.92
		}
		if body < required {
			return Match{Similarity: 0, Threshold: threshold, SameFile: false}
		}
	}

	sim := s.Score(src, tgt).Overall
	return Match{Similarity: sim, Threshold: threshold, Accepted: sim >= threshold, SameFile: sameFile}
}

// SignatureSimilarity compares declared interfaces: name, parameter count,
// return type, and modifiers, weighted 0.4/0.3/0.2/0.1.
func (s *Scorer) SignatureSimilarity(a, b *ast.Signature) float64 {
	nameSim := NameSimilarity(a.Name, b.Name)
	paramSim := countRatio(len(a.Parameters), len(b.Parameters))
	returnSim := returnTypeSimilarity(a.ReturnType, b.ReturnType)
	modSim := setJaccard(a.Modifiers, b.Modifiers)

	return 0.4*nameSim + 0.3*paramSim + 0.2*returnSim + 0.1*modSim
}

// BodySimilarity compares function bodies: tree edit distance for the
// structural part, character-set overlap of the flattened text for the
// content part, weighted 0.3/0.7. Pruned pairs fall back to node count and
// depth ratios for the structural part.
func (s *Scorer) BodySimilarity(src, tgt *ast.Function) float64 {
	if src.Body == nil && tgt.Body == nil {
		return 1.0
	}
	if src.Body == nil || tgt.Body == nil {
		return 0.0
	}

	content := charSetJaccard(src.Body.FlattenText(), tgt.Body.FlattenText())

	res := s.tree.Distance(src.Body, tgt.Body)
	if res.Pruned {
		countSim := countRatio(src.Body.Count(), tgt.Body.Count())
		depthSim := countRatio(src.Body.Depth(), tgt.Body.Depth())
		return 0.15*countSim + 0.15*depthSim + 0.7*content
	}
	return 0.3*res.Similarity + 0.7*content
}

// ContextSimilarity compares outgoing call sets. Two functions that call
// the same things from the same places are probably related even when
// their bodies drifted.
func (s *Scorer) ContextSimilarity(src, tgt *ast.Function) float64 {
	return setJaccard(src.Dependencies, tgt.Dependencies)
}

// TreeEdit exposes the underlying calculator so callers can pull the edit
// script for a matched pair.
func (s *Scorer) TreeEdit() *treedit.Calculator {
	return s.tree
}

// NameSimilarity is normalized Levenshtein similarity over lowercased
// identifiers.
func NameSimilarity(a, b string) float64 {
	a, b = strings.ToLower(a), strings.ToLower(b)
	if a == b {
		return 1.0
	}
	if len(a) == 0 || len(b) == 0 {
		return 0.0
	}
	dist := levenshtein(a, b)
	maxLen := len(a)
	if len(b) > maxLen {
		maxLen = len(b)
	}
	return 1.0 - float64(dist)/float64(maxLen)
}

func returnTypeSimilarity(a, b *ast.TypeRef) float64 {
	if a == nil && b == nil {
		return 1.0
	}
	if a == nil || b == nil {
		return 0.0
	}
	if a.Equivalent(*b) {
		return 1.0
	}
	return NameSimilarity(a.Normalized(), b.Normalized())
}

func countRatio(a, b int) float64 {
	if a == 0 && b == 0 {
		return 1.0
	}
	if a == 0 || b == 0 {
		return 0.0
	}
	if a > b {
		a, b = b, a
	}
	return float64(a) / float64(b)
}

// setJaccard computes Jaccard similarity over two string slices treated
// as sets. Two empty sets are identical.
func setJaccard(a, b []string) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 1.0
	}
	set := make(map[string]uint8, len(a)+len(b))
	for _, s := range a {
		set[s] |= 1
	}
	for _, s := range b {
		set[s] |= 2
	}
	inter := 0
	for _, mask := range set {
		if mask == 3 {
			inter++
		}
	}
	return float64(inter) / float64(len(set))
}

// charSetJaccard computes Jaccard similarity over the rune sets of two
// strings. Whitespace is ignored.
func charSetJaccard(a, b string) float64 {
	if a == "" && b == "" {
		return 1.0
	}
	set := make(map[rune]uint8)
	for _, r := range a {
		if r != ' ' && r != '\t' && r != '\n' {
			set[r] |= 1
		}
	}
	for _, r := range b {
		if r != ' ' && r != '\t' && r != '\n' {
			set[r] |= 2
		}
	}
	if len(set) == 0 {
		return 1.0
	}
	inter := 0
	for _, mask := range set {
		if mask == 3 {
			inter++
		}
	}
	return float64(inter) / float64(len(set))
}

// levenshtein computes edit distance between two strings, two-row variant.
func levenshtein(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	prev := make([]int, len(rb)+1)
	curr := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(ra); i++ {
		curr[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			curr[j] = minInt(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(rb)]
}

func minInt(vals ...int) int {
	m := vals[0]
	for _, v := range vals[1:] {
		if v < m {
			m = v
		}
	}
	return m
}
