// Package classify turns matched (or unmatched) function pairs into typed
// change records via a fixed-precedence decision table.
package classify

import (
	"strings"

	"smartdiff/internal/ast"
)

// ChangeType labels what happened to a function between two versions.
type ChangeType string

const (
	// ChangeAdd is a function present only in the target
	ChangeAdd ChangeType = "add"
	// ChangeDelete is a function present only in the source
	ChangeDelete ChangeType = "delete"
	// ChangeModify is an in-place edit
	ChangeModify ChangeType = "modify"
	// ChangeMove is the same function at a different position in its file
	ChangeMove ChangeType = "move"
	// ChangeRename is a renamed function within one file
	ChangeRename ChangeType = "rename"
	// ChangeCrossFileMove is a function relocated to another file
	ChangeCrossFileMove ChangeType = "cross_file_move"
	// ChangeSplit is one function distributed over several
	ChangeSplit ChangeType = "split"
	// ChangeMerge is several functions collapsed into one
	ChangeMerge ChangeType = "merge"
	// ChangeNone means the pair is identical; no change is reported
	ChangeNone ChangeType = "none"
)

// Classifier applies the decision table. The rename threshold guards
// against calling two merely similar functions a rename.
type Classifier struct {
	renameThreshold float64
}

// New creates a classifier. renameThreshold comes from validated config.
func New(renameThreshold float64) *Classifier {
	return &Classifier{renameThreshold: renameThreshold}
}

// Classify decides the change type for a pair. Either side may be nil:
// nil source means the function was added, nil target means deleted.
// Rules are checked in a fixed order; the first hit wins:
//
//  1. only target        -> add
//  2. only source        -> delete
//  3. name changed, file changed                  -> cross_file_move
//  4. name changed, similarity >= renameThreshold -> rename
//  5. name changed (below threshold)              -> modify
//  6. file changed       -> cross_file_move
//  7. line changed, identical otherwise -> move
//  8. similarity < 1     -> modify
//  9. otherwise          -> none
func (c *Classifier) Classify(source, target *ast.Function, similarity float64) ChangeType {
	switch {
	case source == nil && target == nil:
		return ChangeNone
	case source == nil:
		return ChangeAdd
	case target == nil:
		return ChangeDelete
	}

	sameName := source.Name() == target.Name()
	sameFile := source.FilePath() == target.FilePath()

	if !sameName {
		if !sameFile {
			return ChangeCrossFileMove
		}
		if similarity >= c.renameThreshold {
			return ChangeRename
		}
		return ChangeModify
	}
	if !sameFile {
		return ChangeCrossFileMove
	}
	if similarity >= 1.0 {
		if source.Location.StartLine != target.Location.StartLine {
			return ChangeMove
		}
		return ChangeNone
	}
	return ChangeModify
}

// Confidence scores how certain a classification is. Additions and
// deletions are facts; everything else inherits the match quality.
func (c *Classifier) Confidence(changeType ChangeType, similarity float64) float64 {
	switch changeType {
	case ChangeAdd, ChangeDelete:
		return 1.0
	case ChangeMove:
		return 0.95
	default:
		return similarity
	}
}

// IsPotentialSplitName reports whether a fragment name looks like it came
// out of splitting the original: one name contains the other, or the
// fragment carries a split-style suffix while sharing the original's root.
func IsPotentialSplitName(originalName, fragmentName string) bool {
	original := strings.ToLower(originalName)
	fragment := strings.ToLower(fragmentName)

	if strings.Contains(fragment, original) || strings.Contains(original, fragment) {
		return true
	}

	splitPatterns := []string{
		"part", "step", "phase", "stage", "helper", "util", "validate", "process", "handle",
	}
	for _, pattern := range splitPatterns {
		if strings.Contains(fragment, pattern) && len(original) > 5 {
			root := original[:5]
			if strings.Contains(fragment, root) {
				return true
			}
		}
	}
	return false
}

// IsPotentialMergeName reports whether a merged name plausibly absorbed a
// source function: containment either way, or a merge-style name.
func IsPotentialMergeName(sourceName, mergedName string) bool {
	source := strings.ToLower(sourceName)
	merged := strings.ToLower(mergedName)

	if strings.Contains(merged, source) || strings.Contains(source, merged) {
		return true
	}

	mergePatterns := []string{"combined", "unified", "merged", "consolidated", "integrated"}
	for _, pattern := range mergePatterns {
		if strings.Contains(merged, pattern) {
			return true
		}
	}
	return false
}

// AreFilesRelated reports whether two paths look like parts of the same
// area: same directory, one stem containing the other, or a shared prefix.
func AreFilesRelated(file1, file2 string) bool {
	if dir(file1) == dir(file2) {
		return true
	}
	n1, n2 := stem(file1), stem(file2)
	if n1 == "" || n2 == "" {
		return false
	}
	if strings.Contains(n1, n2) || strings.Contains(n2, n1) {
		return true
	}
	if len(n1) > 3 && len(n2) > 3 && n1[:3] == n2[:3] {
		return true
	}
	return false
}

func dir(path string) string {
	idx := strings.LastIndexByte(path, '/')
	if idx < 0 {
		return ""
	}
	return path[:idx]
}

func stem(path string) string {
	base := path
	if idx := strings.LastIndexByte(path, '/'); idx >= 0 {
		base = path[idx+1:]
	}
	if idx := strings.LastIndexByte(base, '.'); idx > 0 {
		base = base[:idx]
	}
	return strings.ToLower(base)
}
