package engine

import (
	"context"
	"io"
	"math"
	"testing"

	"smartdiff/internal/ast"
	"smartdiff/internal/classify"
	"smartdiff/internal/config"
	"smartdiff/internal/logging"
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	log := logging.NewLogger(logging.Config{
		Format: logging.JSONFormat,
		Level:  logging.ErrorLevel,
		Output: io.Discard,
	})
	e, err := New(config.DefaultConfig(), log)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return e
}

// makeFunc builds a function whose body is one call statement per text,
// large enough to clear the simple-function rule when given four or more
// texts.
func makeFunc(name, file string, line int, deps []string, texts ...string) *ast.Function {
	body := ast.NewNode(ast.KindBlock, "")
	for _, txt := range texts {
		stmt := body.AddChild(ast.NewNode(ast.KindExpressionStmt, ""))
		call := stmt.AddChild(ast.NewNode(ast.KindCall, txt))
		call.AddChild(ast.NewNode(ast.KindIdentifier, txt+"_arg"))
	}
	f := &ast.Function{
		Signature: ast.Signature{
			Name:       name,
			Parameters: []ast.Parameter{{Name: "order", Type: ast.TypeRef{Name: "str"}}},
			ReturnType: &ast.TypeRef{Name: "bool"},
		},
		Body:         body,
		Location:     ast.Location{FilePath: file, StartLine: line, EndLine: line + len(texts)},
		Dependencies: deps,
	}
	f.ComputeHash()
	return f
}

var stdTexts = []string{"parse", "validate", "transform", "persist"}

func changesOfType(changes []Change, ct classify.ChangeType) []Change {
	var out []Change
	for _, c := range changes {
		if c.Type == ct {
			out = append(out, c)
		}
	}
	return out
}

func TestCompareIdentity(t *testing.T) {
	e := newTestEngine(t)
	deps := []string{"db", "log"}
	source := []*ast.Function{
		makeFunc("parse_order", "orders.py", 10, deps, stdTexts...),
		makeFunc("charge_card", "billing.py", 40, deps, "auth", "capture", "record", "notify"),
	}
	target := []*ast.Function{
		makeFunc("parse_order", "orders.py", 10, deps, stdTexts...),
		makeFunc("charge_card", "billing.py", 40, deps, "auth", "capture", "record", "notify"),
	}

	res, err := e.Compare(context.Background(), source, target)
	if err != nil {
		t.Fatalf("Compare: %v", err)
	}
	if math.Abs(res.Similarity-1.0) > 1e-9 {
		t.Errorf("Similarity = %v, want 1.0", res.Similarity)
	}
	if len(res.Changes) != 0 {
		t.Errorf("got %d changes, want none: %+v", len(res.Changes), res.Changes)
	}
	if len(res.Mapping) != 2 {
		t.Errorf("Mapping has %d entries, want 2", len(res.Mapping))
	}
	for _, f := range source {
		if _, ok := res.Mapping[f.Hash]; !ok {
			t.Errorf("function %s missing from mapping", f.Name())
		}
	}
	if res.Statistics.MatchedPairs != 2 {
		t.Errorf("MatchedPairs = %d, want 2", res.Statistics.MatchedPairs)
	}
}

func TestCompareDisjointSets(t *testing.T) {
	e := newTestEngine(t)
	source := []*ast.Function{
		makeFunc("parse_order", "orders.py", 10, []string{"db"}, stdTexts...),
		makeFunc("charge_card", "billing.py", 40, []string{"gateway"}, "auth", "capture", "record", "notify"),
	}
	target := []*ast.Function{
		makeFunc("render_chart", "charts.py", 5, []string{"svg"}, "scale", "plot", "label", "export"),
		makeFunc("rotate_keys", "vault.py", 90, []string{"kms"}, "fetch", "rewrap", "store", "audit"),
	}

	res, err := e.Compare(context.Background(), source, target)
	if err != nil {
		t.Fatalf("Compare: %v", err)
	}
	if len(res.Mapping) != 0 {
		t.Errorf("Mapping = %v, want empty", res.Mapping)
	}
	if got := len(changesOfType(res.Changes, classify.ChangeDelete)); got != 2 {
		t.Errorf("got %d deletes, want 2", got)
	}
	if got := len(changesOfType(res.Changes, classify.ChangeAdd)); got != 2 {
		t.Errorf("got %d adds, want 2", got)
	}
	if len(res.UnmatchedSource) != 2 || len(res.UnmatchedTarget) != 2 {
		t.Errorf("unmatched = %d/%d, want 2/2",
			len(res.UnmatchedSource), len(res.UnmatchedTarget))
	}
	if res.Similarity != 0 {
		t.Errorf("Similarity = %v, want 0", res.Similarity)
	}
}

func TestCompareRenameInPlace(t *testing.T) {
	e := newTestEngine(t)
	deps := []string{"db", "tax"}
	source := []*ast.Function{
		makeFunc("calculate_total", "cart.py", 30, deps, stdTexts...),
	}
	target := []*ast.Function{
		makeFunc("compute_total", "cart.py", 30, deps, stdTexts...),
	}

	res, err := e.Compare(context.Background(), source, target)
	if err != nil {
		t.Fatalf("Compare: %v", err)
	}
	renames := changesOfType(res.Changes, classify.ChangeRename)
	if len(renames) != 1 || len(res.Changes) != 1 {
		t.Fatalf("changes = %+v, want exactly one rename", res.Changes)
	}
	r := renames[0]
	if r.Source.Name != "calculate_total" || r.Target.Name != "compute_total" {
		t.Errorf("rename %s -> %s, want calculate_total -> compute_total",
			r.Source.Name, r.Target.Name)
	}
	if r.Confidence < 0.9 {
		t.Errorf("Confidence = %v, want >= 0.9", r.Confidence)
	}
	if r.Details.RefactoringType != "rename" {
		t.Errorf("RefactoringType = %q, want rename", r.Details.RefactoringType)
	}
}

func TestCompareEditedTinyFunction(t *testing.T) {
	e := newTestEngine(t)
	// Seven nodes, well under the simple-function limit. The same
	// declaration site still pairs up, so a one-token edit to a getter
	// reports as a modify, never as a delete plus add.
	source := []*ast.Function{
		makeFunc("get_total", "cart.py", 5, nil, "fetch", "format"),
	}
	target := []*ast.Function{
		makeFunc("get_total", "cart.py", 5, nil, "fetch", "render"),
	}

	res, err := e.Compare(context.Background(), source, target)
	if err != nil {
		t.Fatalf("Compare: %v", err)
	}
	if n := len(changesOfType(res.Changes, classify.ChangeDelete)); n != 0 {
		t.Errorf("got %d deletes, want 0", n)
	}
	if n := len(changesOfType(res.Changes, classify.ChangeAdd)); n != 0 {
		t.Errorf("got %d adds, want 0", n)
	}
	mods := changesOfType(res.Changes, classify.ChangeModify)
	if len(mods) != 1 {
		t.Fatalf("changes = %+v, want exactly one modify", res.Changes)
	}
	if sim := mods[0].Details.SimilarityScore; sim < 0.7 {
		t.Errorf("SimilarityScore = %v, want >= 0.7 (same-name floor)", sim)
	}
	if len(res.Mapping) != 1 {
		t.Errorf("Mapping has %d entries, want 1", len(res.Mapping))
	}
}

func TestCompareCrossFileMove(t *testing.T) {
	e := newTestEngine(t)
	deps := []string{"smtp", "template"}
	source := []*ast.Function{
		makeFunc("send_invoice", "orders.py", 120, deps, stdTexts...),
	}
	target := []*ast.Function{
		makeFunc("send_invoice", "billing.py", 15, deps, stdTexts...),
	}

	res, err := e.Compare(context.Background(), source, target)
	if err != nil {
		t.Fatalf("Compare: %v", err)
	}
	moves := changesOfType(res.Changes, classify.ChangeCrossFileMove)
	if len(moves) != 1 {
		t.Fatalf("changes = %+v, want exactly one cross-file move", res.Changes)
	}
	if got := len(changesOfType(res.Changes, classify.ChangeModify)); got != 0 {
		t.Errorf("got %d modify changes, want 0", got)
	}
	m := moves[0]
	if m.Details.SimilarityScore < 0.95 {
		t.Errorf("SimilarityScore = %v, want >= 0.95", m.Details.SimilarityScore)
	}
	if m.Source.FilePath != "orders.py" || m.Target.FilePath != "billing.py" {
		t.Errorf("move %s -> %s, want orders.py -> billing.py",
			m.Source.FilePath, m.Target.FilePath)
	}
}

func TestCompareDetectsSplit(t *testing.T) {
	e := newTestEngine(t)
	deps := []string{"db", "log"}
	// The two fragments together reuse the whole vocabulary of the
	// original, so each fragment scores high against it while the bodies
	// diverge too much for a one-to-one match.
	half1 := []string{"alpha", "beta", "gamma", "delta"}
	half2 := []string{"delta", "gamma", "beta", "alpha"}
	source := []*ast.Function{
		makeFunc("process_order", "orders.py", 10, deps, append(append([]string{}, half1...), half2...)...),
	}
	target := []*ast.Function{
		makeFunc("process_order_validate", "orders.py", 10, deps, half1...),
		makeFunc("process_order_charge", "orders.py", 40, deps, half2...),
	}

	res, err := e.Compare(context.Background(), source, target)
	if err != nil {
		t.Fatalf("Compare: %v", err)
	}
	splits := changesOfType(res.Changes, classify.ChangeSplit)
	if len(splits) != 1 || len(res.Changes) != 1 {
		t.Fatalf("changes = %+v, want exactly one split", res.Changes)
	}
	sp := splits[0]
	if len(sp.Sources) != 1 || len(sp.Targets) != 2 {
		t.Errorf("split covers %d sources and %d targets, want 1 and 2",
			len(sp.Sources), len(sp.Targets))
	}
	if got := len(changesOfType(res.Changes, classify.ChangeAdd)); got != 0 {
		t.Errorf("got %d adds, want 0", got)
	}
	if got := len(changesOfType(res.Changes, classify.ChangeDelete)); got != 0 {
		t.Errorf("got %d deletes, want 0", got)
	}
	if res.Statistics.SplitCount != 1 {
		t.Errorf("SplitCount = %d, want 1", res.Statistics.SplitCount)
	}
	// Related names and the shared file raise the structural base
	// confidence of 0.6 * combined.
	if sp.Confidence < 0.6*sp.Details.SimilarityScore {
		t.Errorf("Confidence = %v, want >= %v", sp.Confidence, 0.6*sp.Details.SimilarityScore)
	}
}

func TestCompareEmptySets(t *testing.T) {
	e := newTestEngine(t)

	res, err := e.Compare(context.Background(), nil, nil)
	if err != nil {
		t.Fatalf("Compare: %v", err)
	}
	if res.Similarity != 1.0 || len(res.Changes) != 0 {
		t.Errorf("empty compare: similarity=%v changes=%d, want 1.0 and none",
			res.Similarity, len(res.Changes))
	}

	target := []*ast.Function{makeFunc("boot", "main.py", 1, nil, stdTexts...)}
	res, err = e.Compare(context.Background(), nil, target)
	if err != nil {
		t.Fatalf("Compare: %v", err)
	}
	if got := len(changesOfType(res.Changes, classify.ChangeAdd)); got != 1 {
		t.Errorf("got %d adds for empty source, want 1", got)
	}
}

func TestCompareCancelledContext(t *testing.T) {
	e := newTestEngine(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	source := []*ast.Function{makeFunc("a", "a.py", 1, nil, stdTexts...)}
	target := []*ast.Function{makeFunc("b", "b.py", 1, nil, stdTexts...)}
	if _, err := e.Compare(ctx, source, target); err == nil {
		t.Error("Compare with cancelled context should return an error")
	}
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Weights.Signature = 0.9 // weights no longer sum to 1.0
	log := logging.NewLogger(logging.Config{Output: io.Discard})
	if _, err := New(cfg, log); err == nil {
		t.Error("New should reject a config with invalid weights")
	}
}
