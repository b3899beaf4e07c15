// Package engine orchestrates a comparison run: similarity matrix, optimal
// assignment, residue clustering, and change classification.
package engine

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"smartdiff/internal/assign"
	"smartdiff/internal/ast"
	"smartdiff/internal/classify"
	"smartdiff/internal/config"
	"smartdiff/internal/logging"
	"smartdiff/internal/scorer"
)

// Engine compares function sets. Construction validates the configuration;
// no algorithm re-checks it afterwards.
type Engine struct {
	cfg        *config.Config
	log        *logging.Logger
	scorer     *scorer.Scorer
	solver     *assign.Solver
	classifier *classify.Classifier
}

// New creates an engine. Returns an error when the configuration is
// invalid.
func New(cfg *config.Config, log *logging.Logger) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Engine{
		cfg:        cfg,
		log:        log,
		scorer:     scorer.New(cfg),
		solver:     assign.NewSolver(cfg.Matching, cfg.CrossFile),
		classifier: classify.New(cfg.Matching.RenameThreshold),
	}, nil
}

// Scorer exposes the engine's scorer for callers that need pairwise scores
// outside a full run.
func (e *Engine) Scorer() *scorer.Scorer { return e.scorer }

// Compare matches the source functions against the target functions and
// classifies what changed. Comparing two empty sets yields similarity 1.0
// and no changes.
func (e *Engine) Compare(ctx context.Context, source, target []*ast.Function) (*MatchResult, error) {
	result := &MatchResult{
		Mapping: make(map[string]string),
		Statistics: MatchStatistics{
			SourceFunctions: len(source),
			TargetFunctions: len(target),
		},
	}

	if len(source) == 0 && len(target) == 0 {
		result.Similarity = 1.0
		return result, nil
	}

	e.log.Debug("comparing function sets", map[string]interface{}{
		"source": len(source),
		"target": len(target),
	})

	solved, err := e.Match(ctx, source, target)
	if err != nil {
		return nil, err
	}

	matchedSim := 0.0
	for _, a := range solved.Assignments {
		src, tgt := source[a.SourceIndex], target[a.TargetIndex]
		result.Mapping[src.Hash] = tgt.Hash
		matchedSim += a.Similarity

		changeType := e.classifier.Classify(src, tgt, a.Similarity)
		if changeType == classify.ChangeNone {
			continue
		}
		result.Changes = append(result.Changes, e.pairChange(changeType, src, tgt, a.Similarity))
	}

	for _, mm := range solved.ManyToMany {
		result.Changes = append(result.Changes, GroupChange(mm, source, target))
		matchedSim += mm.CombinedSimilarity * float64(len(mm.SourceIndices))
	}

	for _, i := range solved.UnmatchedSource {
		src := source[i]
		result.UnmatchedSource = append(result.UnmatchedSource, ElementFor(src))
		result.Changes = append(result.Changes, Change{
			Type:       classify.ChangeDelete,
			Source:     ElementFor(src),
			Details:    ChangeDetail{Description: fmt.Sprintf("function %s deleted", src.Name())},
			Confidence: 1.0,
		})
	}
	for _, j := range solved.UnmatchedTarget {
		tgt := target[j]
		result.UnmatchedTarget = append(result.UnmatchedTarget, ElementFor(tgt))
		result.Changes = append(result.Changes, Change{
			Type:       classify.ChangeAdd,
			Target:     ElementFor(tgt),
			Details:    ChangeDetail{Description: fmt.Sprintf("function %s added", tgt.Name())},
			Confidence: 1.0,
		})
	}

	denom := len(source)
	if len(target) > denom {
		denom = len(target)
	}
	result.Similarity = matchedSim / float64(denom)
	if result.Similarity > 1.0 {
		result.Similarity = 1.0
	}

	result.Statistics.MatchedPairs = solved.Stats.MatchedPairs
	result.Statistics.UnmatchedSource = solved.Stats.UnmatchedSource
	result.Statistics.UnmatchedTarget = solved.Stats.UnmatchedTarget
	result.Statistics.SplitCount = solved.Stats.SplitCount
	result.Statistics.MergeCount = solved.Stats.MergeCount
	result.Statistics.ComplexCount = solved.Stats.ComplexCount
	result.Statistics.AverageMatched = solved.AverageSimilarity

	e.log.Info("comparison complete", map[string]interface{}{
		"matched":    solved.Stats.MatchedPairs,
		"changes":    len(result.Changes),
		"similarity": result.Similarity,
	})
	return result, nil
}

// Match runs the similarity-matrix and assignment phases without
// classification. Callers that need to reinterpret the residue, such as
// cross-file tracking, use this instead of Compare.
func (e *Engine) Match(ctx context.Context, source, target []*ast.Function) (*assign.Result, error) {
	gated, raw, err := e.similarityMatrices(ctx, source, target)
	if err != nil {
		return nil, err
	}
	if len(source) == 0 {
		solved := &assign.Result{}
		for j := range target {
			solved.UnmatchedTarget = append(solved.UnmatchedTarget, j)
		}
		solved.Stats.UnmatchedTarget = len(target)
		return solved, nil
	}
	return e.solver.Solve(gated, raw), nil
}

// similarityMatrices computes the policy-gated and raw similarity matrices
// in parallel. Rows are independent; each worker owns disjoint rows, so no
// cell is written twice and no locking is needed. The assignment phase
// that follows is sequential.
func (e *Engine) similarityMatrices(ctx context.Context, source, target []*ast.Function) ([][]float64, [][]float64, error) {
	n, m := len(source), len(target)
	gated := make([][]float64, n)
	raw := make([][]float64, n)
	for i := range gated {
		gated[i] = make([]float64, m)
		raw[i] = make([]float64, m)
	}
	if n == 0 || m == 0 {
		return gated, raw, ctx.Err()
	}

	workers := e.cfg.Workers
	if workers > n {
		workers = n
	}

	rows := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range rows {
				for j := 0; j < m; j++ {
					match := e.scorer.Match(source[i], target[j])
					if match.Accepted {
						gated[i][j] = match.Similarity
					}
					raw[i][j] = e.scorer.Score(source[i], target[j]).Overall
				}
			}
		}()
	}

	var cancelled error
	for i := 0; i < n; i++ {
		if err := ctx.Err(); err != nil {
			cancelled = err
			break
		}
		rows <- i
	}
	close(rows)
	wg.Wait()

	if cancelled != nil {
		return nil, nil, cancelled
	}
	return gated, raw, nil
}

func (e *Engine) pairChange(changeType classify.ChangeType, src, tgt *ast.Function, similarity float64) Change {
	detail := ChangeDetail{
		SimilarityScore: similarity,
		AffectedLines:   affectedLines(src, tgt),
	}
	switch changeType {
	case classify.ChangeModify:
		detail.Description = fmt.Sprintf("function %s modified", src.Name())
	case classify.ChangeMove:
		detail.Description = fmt.Sprintf("function %s moved from line %d to %d",
			src.Name(), src.Location.StartLine, tgt.Location.StartLine)
	case classify.ChangeRename:
		detail.Description = fmt.Sprintf("function %s renamed to %s", src.Name(), tgt.Name())
		detail.RefactoringType = "rename"
	case classify.ChangeCrossFileMove:
		detail.Description = fmt.Sprintf("function %s moved from %s to %s",
			src.Name(), src.FilePath(), tgt.FilePath())
		detail.RefactoringType = "cross_file_move"
		if src.Name() != tgt.Name() {
			detail.Description = fmt.Sprintf("function %s moved from %s to %s as %s",
				src.Name(), src.FilePath(), tgt.FilePath(), tgt.Name())
		}
	}
	return Change{
		Type:       changeType,
		Source:     ElementFor(src),
		Target:     ElementFor(tgt),
		Details:    detail,
		Confidence: e.classifier.Confidence(changeType, similarity),
	}
}

// GroupChange builds the change record for a many-to-many mapping,
// boosting confidence when member names or files look related.
func GroupChange(mm assign.ManyToManyMapping, source, target []*ast.Function) Change {
	sources := make([]*CodeElement, len(mm.SourceIndices))
	srcNames := make([]string, len(mm.SourceIndices))
	for k, i := range mm.SourceIndices {
		sources[k] = ElementFor(source[i])
		srcNames[k] = source[i].Name()
	}
	targets := make([]*CodeElement, len(mm.TargetIndices))
	tgtNames := make([]string, len(mm.TargetIndices))
	for k, j := range mm.TargetIndices {
		targets[k] = ElementFor(target[j])
		tgtNames[k] = target[j].Name()
	}

	var changeType classify.ChangeType
	var description string
	confidence := mm.Confidence
	switch mm.Type {
	case assign.MappingSplit:
		changeType = classify.ChangeSplit
		description = fmt.Sprintf("function %s split into %s", srcNames[0], strings.Join(tgtNames, ", "))
		confidence = boostGroupConfidence(confidence, srcNames[0], tgtNames, sources[0].FilePath, targets, classify.IsPotentialSplitName)
	case assign.MappingMerge:
		changeType = classify.ChangeMerge
		description = fmt.Sprintf("functions %s merged into %s", strings.Join(srcNames, ", "), tgtNames[0])
		confidence = boostGroupConfidence(confidence, tgtNames[0], srcNames, targets[0].FilePath, sources,
			func(mergedName, sourceName string) bool {
				return classify.IsPotentialMergeName(sourceName, mergedName)
			})
	default:
		changeType = classify.ChangeModify
		description = fmt.Sprintf("functions %s restructured into %s", strings.Join(srcNames, ", "), strings.Join(tgtNames, ", "))
	}

	return Change{
		Type:    changeType,
		Source:  sources[0],
		Target:  targets[0],
		Sources: sources,
		Targets: targets,
		Details: ChangeDetail{
			Description:     description,
			SimilarityScore: mm.CombinedSimilarity,
			RefactoringType: string(mm.Type),
		},
		Confidence: confidence,
	}
}

// boostGroupConfidence raises the structural base confidence when the
// group members carry related names or live in related files.
func boostGroupConfidence(base float64, anchorName string, memberNames []string, anchorFile string, members []*CodeElement, related func(string, string) bool) float64 {
	relatedNames := 0
	for _, name := range memberNames {
		if related(anchorName, name) {
			relatedNames++
		}
	}
	relatedFiles := 0
	for _, el := range members {
		if classify.AreFilesRelated(anchorFile, el.FilePath) {
			relatedFiles++
		}
	}
	confidence := base
	confidence += float64(relatedNames) / float64(len(memberNames)) * 0.2
	confidence += float64(relatedFiles) / float64(len(members)) * 0.1
	if confidence > 1.0 {
		confidence = 1.0
	}
	return confidence
}

func affectedLines(src, tgt *ast.Function) int {
	srcLines := src.Location.EndLine - src.Location.StartLine + 1
	tgtLines := tgt.Location.EndLine - tgt.Location.StartLine + 1
	if srcLines > tgtLines {
		return srcLines
	}
	return tgtLines
}
