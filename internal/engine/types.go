package engine

import (
	"smartdiff/internal/ast"
	"smartdiff/internal/classify"
)

// CodeElement is the lightweight identity of a function in a report.
type CodeElement struct {
	Name      string `json:"name"`
	FilePath  string `json:"filePath"`
	StartLine int    `json:"startLine"`
	EndLine   int    `json:"endLine"`
	Hash      string `json:"hash"`
}

// ElementFor projects a function onto the element shape reports carry.
func ElementFor(f *ast.Function) *CodeElement {
	if f == nil {
		return nil
	}
	return &CodeElement{
		Name:      f.Name(),
		FilePath:  f.FilePath(),
		StartLine: f.Location.StartLine,
		EndLine:   f.Location.EndLine,
		Hash:      f.Hash,
	}
}

// ChangeDetail carries the evidence behind a change record.
type ChangeDetail struct {
	Description     string            `json:"description"`
	AffectedLines   int               `json:"affectedLines,omitempty"`
	SimilarityScore float64           `json:"similarityScore,omitempty"`
	RefactoringType string            `json:"refactoringType,omitempty"`
	Metadata        map[string]string `json:"metadata,omitempty"`
}

// Change is one detected difference between the two versions. Group
// changes (split, merge) list all participants in Sources/Targets; Source
// and Target always hold the primary pair.
type Change struct {
	Type       classify.ChangeType `json:"type"`
	Source     *CodeElement        `json:"source,omitempty"`
	Target     *CodeElement        `json:"target,omitempty"`
	Sources    []*CodeElement      `json:"sources,omitempty"`
	Targets    []*CodeElement      `json:"targets,omitempty"`
	Details    ChangeDetail        `json:"details"`
	Confidence float64             `json:"confidence"`
}

// MatchStatistics summarizes a comparison run.
type MatchStatistics struct {
	SourceFunctions int     `json:"sourceFunctions"`
	TargetFunctions int     `json:"targetFunctions"`
	MatchedPairs    int     `json:"matchedPairs"`
	UnmatchedSource int     `json:"unmatchedSource"`
	UnmatchedTarget int     `json:"unmatchedTarget"`
	SplitCount      int     `json:"splitCount"`
	MergeCount      int     `json:"mergeCount"`
	ComplexCount    int     `json:"complexCount"`
	AverageMatched  float64 `json:"averageMatchedSimilarity"`
}

// MatchResult is the outcome of comparing two function sets.
//
// Mapping never contains an unmatched hash, and every function appears
// either in the mapping, in a group change, or in an unmatched list.
type MatchResult struct {
	Similarity      float64           `json:"similarity"`
	Mapping         map[string]string `json:"mapping"`
	Changes         []Change          `json:"changes"`
	UnmatchedSource []*CodeElement    `json:"unmatchedSource,omitempty"`
	UnmatchedTarget []*CodeElement    `json:"unmatchedTarget,omitempty"`
	Statistics      MatchStatistics   `json:"statistics"`
}
