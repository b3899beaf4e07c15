package scorer

import (
	"math"
	"testing"

	"smartdiff/internal/ast"
	"smartdiff/internal/config"
)

// makeFunc builds a function with a body large enough to clear the
// simple-function rule (> 10 nodes). texts vary the body content.
func makeFunc(name, file string, texts ...string) *ast.Function {
	body := ast.NewNode(ast.KindBlock, "")
	for _, txt := range texts {
		stmt := body.AddChild(ast.NewNode(ast.KindExpressionStmt, ""))
		call := stmt.AddChild(ast.NewNode(ast.KindCall, txt))
		call.AddChild(ast.NewNode(ast.KindIdentifier, txt+"_arg"))
	}
	f := &ast.Function{
		Signature: ast.Signature{
			Name:       name,
			Parameters: []ast.Parameter{{Name: "input", Type: ast.TypeRef{Name: "str"}}},
			ReturnType: &ast.TypeRef{Name: "bool"},
		},
		Body:     body,
		Location: ast.Location{FilePath: file, StartLine: 1, EndLine: 20},
	}
	f.ComputeHash()
	return f
}

var stdTexts = []string{"parse", "validate", "transform", "persist"}

func TestMatchIdenticalFunction(t *testing.T) {
	s := New(config.DefaultConfig())
	a := makeFunc("process", "a.py", stdTexts...)
	b := makeFunc("process", "a.py", stdTexts...)

	m := s.Match(a, b)
	if !m.Accepted {
		t.Fatal("identical function should match")
	}
	if math.Abs(m.Similarity-1.0) > 1e-9 {
		t.Errorf("Similarity = %v, want 1.0", m.Similarity)
	}

	score := s.Score(a, b)
	if math.Abs(score.Overall-1.0) > 1e-9 {
		t.Errorf("Score.Overall = %v, want 1.0", score.Overall)
	}
	if score.MatchType != ExactMatch {
		t.Errorf("MatchType = %v, want exact", score.MatchType)
	}
}

func makeSimpleFunc(name, file, text string) *ast.Function {
	body := ast.NewNode(ast.KindBlock, "")
	ret := body.AddChild(ast.NewNode(ast.KindReturn, "return"))
	ret.AddChild(ast.NewNode(ast.KindIdentifier, text))
	f := &ast.Function{
		Signature: ast.Signature{Name: name},
		Body:      body,
		Location:  ast.Location{FilePath: file},
	}
	f.ComputeHash()
	return f
}

func TestMatchSimpleFunctions(t *testing.T) {
	s := New(config.DefaultConfig())

	same := s.Match(makeSimpleFunc("get_id", "a.py", "id"), makeSimpleFunc("get_id", "a.py", "id"))
	if !same.Accepted || same.Similarity != 1.0 {
		t.Errorf("identical simple functions: similarity=%v accepted=%v, want 1.0 true", same.Similarity, same.Accepted)
	}

	// Verbatim move keeps the identical-content acceptance.
	moved := s.Match(makeSimpleFunc("get_id", "a.py", "id"), makeSimpleFunc("get_id", "b.py", "id"))
	if !moved.Accepted || moved.Similarity != 1.0 {
		t.Errorf("moved simple function: similarity=%v accepted=%v, want 1.0 true", moved.Similarity, moved.Accepted)
	}

	// Different content across files never matches, nor does a renamed
	// copy: tiny bodies only match on identical content under the same name.
	crossDiff := s.Match(makeSimpleFunc("get_id", "a.py", "id"), makeSimpleFunc("get_id", "b.py", "name"))
	if crossDiff.Accepted || crossDiff.Similarity != 0 {
		t.Errorf("differing simple functions: similarity=%v accepted=%v, want 0 false", crossDiff.Similarity, crossDiff.Accepted)
	}
	renamed := s.Match(makeSimpleFunc("get_id", "a.py", "id"), makeSimpleFunc("fetch_id", "a.py", "id"))
	if renamed.Accepted || renamed.Similarity != 0 {
		t.Errorf("renamed simple function: similarity=%v accepted=%v, want 0 false", renamed.Similarity, renamed.Accepted)
	}
}

func TestMatchSimpleSameNameSameFilePrecedence(t *testing.T) {
	s := New(config.DefaultConfig())

	// A trivially edited getter is still the same declaration site: the
	// same-name floor applies before the simple-function rule, so the
	// pair matches instead of surfacing as delete plus add.
	m := s.Match(makeSimpleFunc("get_id", "a.py", "id"), makeSimpleFunc("get_id", "a.py", "identifier"))
	if !m.Accepted {
		t.Error("edited simple function at the same declaration site should match")
	}
	if m.Similarity < 0.7 {
		t.Errorf("Similarity = %v, want >= 0.7 (same-name floor)", m.Similarity)
	}
}

func TestMatchMixedSizePair(t *testing.T) {
	s := New(config.DefaultConfig())

	// One simple side is enough to trigger the identical-or-nothing rule:
	// a 5-node wrapper never pairs with a large body, same name or not.
	small := makeSimpleFunc("process", "a.py", "delegate")
	large := makeFunc("process", "b.py", stdTexts...)

	m := s.Match(small, large)
	if m.Accepted || m.Similarity != 0 {
		t.Errorf("simple vs complex: similarity=%v accepted=%v, want 0 false", m.Similarity, m.Accepted)
	}
}

func TestMatchSameNameSameFileFloor(t *testing.T) {
	s := New(config.DefaultConfig())
	a := makeFunc("process", "a.py", stdTexts...)
	// Heavily edited body, same declaration site.
	b := makeFunc("process", "a.py", "completely", "different", "logic", "here")

	m := s.Match(a, b)
	if !m.Accepted {
		t.Error("same name in same file should always clear the threshold")
	}
	if m.Similarity < 0.7 {
		t.Errorf("Similarity = %v, want >= 0.7 (same-name floor)", m.Similarity)
	}
}

func TestMatchDifferentNameSameFileRequiresNearIdenticalBody(t *testing.T) {
	s := New(config.DefaultConfig())
	a := makeFunc("process", "a.py", stdTexts...)
	b := makeFunc("handle", "a.py", "parse", "validate", "store", "notify")

	m := s.Match(a, b)
	if m.Accepted || m.Similarity != 0 {
		t.Errorf("different names with drifted bodies: similarity=%v accepted=%v, want rejection", m.Similarity, m.Accepted)
	}

	// Identical body, different name: allowed through the gate.
	c := makeFunc("process_v2", "a.py", stdTexts...)
	m = s.Match(a, c)
	if m.Similarity == 0 {
		t.Error("identical body should pass the same-file gate despite the rename")
	}
}

func TestMatchCrossFileRaisedThreshold(t *testing.T) {
	cfg := config.DefaultConfig()
	s := New(cfg)
	a := makeFunc("process", "a.py", stdTexts...)
	b := makeFunc("process", "b.py", stdTexts...)

	m := s.Match(a, b)
	want := math.Max(cfg.Matching.MinSimilarityThreshold+cfg.CrossFile.Penalty, cfg.CrossFile.MinCrossFileSimilarity)
	if m.Threshold != want {
		t.Errorf("cross-file threshold = %v, want %v", m.Threshold, want)
	}
	if !m.Accepted {
		t.Error("identical function moved to another file should match")
	}
	// The penalty raises the bar, it never lowers the reported score.
	if math.Abs(m.Similarity-1.0) > 1e-9 {
		t.Errorf("Similarity = %v, want 1.0 (no penalty on the score)", m.Similarity)
	}
}

func TestMatchHonorsMinCrossFileSimilarity(t *testing.T) {
	a := makeFunc("process", "a.py", stdTexts...)
	b := makeFunc("operate", "b.py", stdTexts...)

	def := New(config.DefaultConfig()).Match(a, b)
	if !def.Accepted {
		t.Fatalf("identical body across files should clear the default floor, got %v < %v",
			def.Similarity, def.Threshold)
	}

	strict := config.DefaultConfig()
	strict.CrossFile.MinCrossFileSimilarity = 0.99
	m := New(strict).Match(a, b)
	if m.Threshold != 0.99 {
		t.Errorf("cross-file threshold = %v, want the configured 0.99 floor", m.Threshold)
	}
	if m.Accepted {
		t.Errorf("similarity %v should not clear the raised floor", m.Similarity)
	}
}

func TestMatchCrossFileBodyGates(t *testing.T) {
	s := New(config.DefaultConfig())
	a := makeFunc("compute_total", "a.py", stdTexts...)

	// Unrelated name and drifted body: rejected outright.
	b := makeFunc("zzz", "b.py", "alpha", "beta", "gamma", "delta")
	if m := s.Match(a, b); m.Similarity != 0 {
		t.Errorf("unrelated cross-file pair: similarity = %v, want 0", m.Similarity)
	}

	// Unrelated name but identical body: survives the strictest gate.
	c := makeFunc("zzz", "b.py", stdTexts...)
	if m := s.Match(a, c); m.Similarity == 0 {
		t.Error("identical body should pass the cross-file gate even with an unrelated name")
	}
}

func TestThresholdMonotonicity(t *testing.T) {
	a := makeFunc("process", "a.py", stdTexts...)
	b := makeFunc("process", "a.py", "parse", "validate", "transform", "archive")

	low := config.DefaultConfig()
	low.Matching.MinSimilarityThreshold = 0.7
	high := config.DefaultConfig()
	high.Matching.MinSimilarityThreshold = 0.99

	mLow := New(low).Match(a, b)
	mHigh := New(high).Match(a, b)
	if !mLow.Accepted {
		t.Fatal("pair should match at the default threshold")
	}
	if mHigh.Accepted && !mLow.Accepted {
		t.Error("raising the threshold must never accept a pair the lower threshold rejected")
	}
	if mHigh.Similarity != mLow.Similarity {
		t.Errorf("threshold changed the similarity value: %v vs %v", mHigh.Similarity, mLow.Similarity)
	}
}

func TestScoreSymmetry(t *testing.T) {
	s := New(config.DefaultConfig())
	a := makeFunc("process", "a.py", stdTexts...)
	b := makeFunc("handle", "b.py", "parse", "validate", "emit", "log")

	ab := s.Score(a, b)
	ba := s.Score(b, a)
	if math.Abs(ab.Overall-ba.Overall) > 1e-9 {
		t.Errorf("score not symmetric: %v vs %v", ab.Overall, ba.Overall)
	}
}

func TestSignatureSimilarity(t *testing.T) {
	s := New(config.DefaultConfig())

	a := ast.Signature{
		Name:       "process",
		Parameters: []ast.Parameter{{Type: ast.TypeRef{Name: "i32"}}},
		ReturnType: &ast.TypeRef{Name: "bool"},
		Modifiers:  []string{"public"},
	}
	// Equivalent across languages: int vs i32, boolean vs bool.
	b := ast.Signature{
		Name:       "process",
		Parameters: []ast.Parameter{{Type: ast.TypeRef{Name: "int"}}},
		ReturnType: &ast.TypeRef{Name: "Boolean"},
		Modifiers:  []string{"public"},
	}
	if got := s.SignatureSimilarity(&a, &b); math.Abs(got-1.0) > 1e-9 {
		t.Errorf("equivalent signatures: similarity = %v, want 1.0", got)
	}

	c := ast.Signature{Name: "unrelated_thing"}
	if got := s.SignatureSimilarity(&a, &c); got >= 0.8 {
		t.Errorf("unrelated signatures: similarity = %v, want < 0.8", got)
	}
}

func TestContextSimilarity(t *testing.T) {
	s := New(config.DefaultConfig())

	a := &ast.Function{Dependencies: []string{"parse", "validate"}}
	b := &ast.Function{Dependencies: []string{"parse", "validate"}}
	if got := s.ContextSimilarity(a, b); got != 1.0 {
		t.Errorf("identical call sets: similarity = %v, want 1.0", got)
	}

	c := &ast.Function{Dependencies: []string{"parse", "emit"}}
	if got := s.ContextSimilarity(a, c); math.Abs(got-1.0/3.0) > 1e-9 {
		t.Errorf("partial overlap: similarity = %v, want 1/3", got)
	}

	empty := &ast.Function{}
	if got := s.ContextSimilarity(empty, empty); got != 1.0 {
		t.Errorf("two leaf functions: similarity = %v, want 1.0", got)
	}
}

func TestNameSimilarity(t *testing.T) {
	tests := []struct {
		a, b string
		min  float64
		max  float64
	}{
		{"process", "process", 1.0, 1.0},
		{"Process", "process", 1.0, 1.0},
		{"process", "process_v2", 0.6, 0.9},
		{"process", "zzzzzzz", 0.0, 0.1},
		{"", "", 1.0, 1.0},
		{"a", "", 0.0, 0.0},
	}
	for _, tt := range tests {
		got := NameSimilarity(tt.a, tt.b)
		if got < tt.min || got > tt.max {
			t.Errorf("NameSimilarity(%q, %q) = %v, want in [%v, %v]", tt.a, tt.b, got, tt.min, tt.max)
		}
	}
}

func TestClassifyMatchType(t *testing.T) {
	tests := []struct {
		sim  float64
		want MatchType
	}{
		{1.0, ExactMatch},
		{0.95, ExactMatch},
		{0.9, HighMatch},
		{0.8, PotentialMatch},
		{0.6, WeakMatch},
		{0.3, NoMatch},
	}
	for _, tt := range tests {
		if got := ClassifyMatchType(tt.sim); got != tt.want {
			t.Errorf("ClassifyMatchType(%v) = %v, want %v", tt.sim, got, tt.want)
		}
	}
}
