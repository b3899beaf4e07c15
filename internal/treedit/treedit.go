// Package treedit computes ordered tree edit distance between normalized
// syntax trees using the Zhang-Shasha algorithm, with configurable edit
// costs, pruning for oversized inputs, and a structural-hash keyed cache.
package treedit

import (
	"math"
	"sync"

	"smartdiff/internal/ast"
	"smartdiff/internal/config"
)

// OpType identifies an edit operation kind.
type OpType string

const (
	// OpInsert adds a target node absent from the source
	OpInsert OpType = "insert"
	// OpDelete removes a source node absent from the target
	OpDelete OpType = "delete"
	// OpUpdate relabels a source node into a target node
	OpUpdate OpType = "update"
	// OpMatch maps a source node to an identical target node at no cost
	OpMatch OpType = "match"
)

// EditOperation is a single step of the cheapest edit script.
type EditOperation struct {
	Type       OpType       `json:"type"`
	SourceID   string       `json:"sourceId,omitempty"`
	TargetID   string       `json:"targetId,omitempty"`
	SourceKind ast.NodeKind `json:"sourceKind,omitempty"`
	TargetKind ast.NodeKind `json:"targetKind,omitempty"`
	Cost       float64      `json:"cost"`
}

// Result holds the outcome of a tree comparison.
type Result struct {
	Distance   float64         `json:"distance"`
	Similarity float64         `json:"similarity"`
	Operations []EditOperation `json:"operations,omitempty"`
	Pruned     bool            `json:"pruned,omitempty"`
}

// Calculator computes tree edit distances. Safe for concurrent use; the
// result cache is shared across goroutines.
type Calculator struct {
	cfg    config.TreeEditConfig
	hasher *ast.Hasher

	mu    sync.Mutex
	cache map[string]*Result
}

// NewCalculator creates a calculator with the given cost and pruning
// configuration. The config is assumed valid.
func NewCalculator(cfg config.TreeEditConfig) *Calculator {
	return &Calculator{
		cfg:    cfg,
		hasher: ast.NewHasher(),
		cache:  make(map[string]*Result),
	}
}

// Distance computes the edit distance between two trees along with the
// normalized similarity and the operation sequence. Oversized or badly
// size-skewed pairs are approximated instead of solved exactly; such
// results are flagged Pruned and carry no operations.
func (c *Calculator) Distance(source, target *ast.Node) *Result {
	if source == nil && target == nil {
		return &Result{Distance: 0, Similarity: 1.0}
	}

	key := c.hasher.HashPair(source, target)
	c.mu.Lock()
	if cached, ok := c.cache[key]; ok {
		c.mu.Unlock()
		return cached
	}
	c.mu.Unlock()

	result := c.compute(source, target)

	c.mu.Lock()
	c.cache[key] = result
	c.mu.Unlock()
	return result
}

func (c *Calculator) compute(source, target *ast.Node) *Result {
	nSrc, nTgt := source.Count(), target.Count()
	maxCost := c.cfg.DeleteCost*float64(nSrc) + c.cfg.InsertCost*float64(nTgt)

	// One side empty: the script is all inserts or all deletes.
	if nSrc == 0 || nTgt == 0 {
		var ops []EditOperation
		for _, n := range source.Postorder() {
			ops = append(ops, EditOperation{Type: OpDelete, SourceID: n.ID, SourceKind: n.Kind, Cost: c.cfg.DeleteCost})
		}
		for _, n := range target.Postorder() {
			ops = append(ops, EditOperation{Type: OpInsert, TargetID: n.ID, TargetKind: n.Kind, Cost: c.cfg.InsertCost})
		}
		return &Result{Distance: maxCost, Similarity: 0, Operations: ops}
	}

	if c.shouldPrune(source, target, nSrc, nTgt) {
		return c.approximate(source, target, nSrc, nTgt, maxCost)
	}

	src := index(source)
	tgt := index(target)

	td := make([][]float64, len(src.nodes)+1)
	for i := range td {
		td[i] = make([]float64, len(tgt.nodes)+1)
	}

	for _, i := range src.keyroots {
		for _, j := range tgt.keyroots {
			c.forestDist(src, tgt, i, j, td, nil)
		}
	}

	dist := td[len(src.nodes)][len(tgt.nodes)]

	ops := make([]EditOperation, 0, nSrc+nTgt)
	c.backtrack(src, tgt, len(src.nodes), len(tgt.nodes), td, &ops)
	reverse(ops)

	sim := 1.0
	if maxCost > 0 {
		sim = 1.0 - dist/maxCost
		if sim < 0 {
			sim = 0
		}
	}
	return &Result{Distance: dist, Similarity: sim, Operations: ops}
}

func (c *Calculator) shouldPrune(source, target *ast.Node, nSrc, nTgt int) bool {
	if nSrc > c.cfg.MaxNodes || nTgt > c.cfg.MaxNodes {
		return true
	}
	if source.Depth() > c.cfg.MaxDepth || target.Depth() > c.cfg.MaxDepth {
		return true
	}
	if nSrc > 0 && nTgt > 0 {
		ratio := float64(min(nSrc, nTgt)) / float64(max(nSrc, nTgt))
		if ratio < c.cfg.MinSizeRatio {
			return true
		}
	}
	return false
}

// approximate estimates similarity from node counts and depths without
// running the full algorithm. Used for pruned pairs, where the exact
// distance would not change the matching decision.
func (c *Calculator) approximate(source, target *ast.Node, nSrc, nTgt int, maxCost float64) *Result {
	countSim := ratio(nSrc, nTgt)
	depthSim := ratio(source.Depth(), target.Depth())
	sim := 0.5*countSim + 0.5*depthSim
	return &Result{
		Distance:   (1.0 - sim) * maxCost,
		Similarity: sim,
		Pruned:     true,
	}
}

// updateCost prices relabeling a source node into a target node. Identical
// nodes cost nothing; nodes of the same kind cost a fraction of the
// configured update cost, and kinds in the same syntactic group are
// cheaper to exchange than unrelated kinds.
func (c *Calculator) updateCost(a, b *ast.Node) float64 {
	if a.Kind == b.Kind {
		if a.Text == b.Text {
			return 0
		}
		return 0.3 * c.cfg.UpdateCost
	}
	if a.Kind.IsStatement() && b.Kind.IsStatement() {
		return 0.5 * c.cfg.UpdateCost
	}
	if a.Kind.IsExpression() && b.Kind.IsExpression() {
		return 0.7 * c.cfg.UpdateCost
	}
	return c.cfg.UpdateCost
}

// indexedTree holds the postorder view a Zhang-Shasha run needs: nodes in
// postorder (1-based indexing throughout), the leftmost-leaf index per
// node, and the keyroots.
type indexedTree struct {
	nodes    []*ast.Node
	lml      []int // lml[i] = postorder index of leftmost leaf of node i, 1-based
	keys     map[*ast.Node]int
	keyroots []int
}

func index(root *ast.Node) *indexedTree {
	post := root.Postorder()
	t := &indexedTree{
		nodes: post,
		lml:   make([]int, len(post)+1),
		keys:  make(map[*ast.Node]int, len(post)),
	}
	for i, n := range post {
		t.keys[n] = i + 1
	}
	for i, n := range post {
		leaf := n
		for len(leaf.Children) > 0 {
			leaf = leaf.Children[0]
		}
		t.lml[i+1] = t.keys[leaf]
	}
	// A node is a keyroot when no node after it shares its leftmost leaf.
	seen := make(map[int]bool)
	for i := len(post); i >= 1; i-- {
		if !seen[t.lml[i]] {
			t.keyroots = append(t.keyroots, i)
			seen[t.lml[i]] = true
		}
	}
	// Keyroots must be processed in increasing order.
	for l, r := 0, len(t.keyroots)-1; l < r; l, r = l+1, r-1 {
		t.keyroots[l], t.keyroots[r] = t.keyroots[r], t.keyroots[l]
	}
	return t
}

// node returns the 1-based postorder node.
func (t *indexedTree) node(i int) *ast.Node { return t.nodes[i-1] }

// forestDist fills the tree distance table for the subtree pair rooted at
// postorder indices (i, j). When capture is non-nil the forest distance
// matrix is stored there for backtracking.
func (c *Calculator) forestDist(src, tgt *indexedTree, i, j int, td [][]float64, capture *[][]float64) {
	li, lj := src.lml[i], tgt.lml[j]
	rows, cols := i-li+2, j-lj+2

	fd := make([][]float64, rows)
	for r := range fd {
		fd[r] = make([]float64, cols)
	}
	for di := 1; di < rows; di++ {
		fd[di][0] = fd[di-1][0] + c.cfg.DeleteCost
	}
	for dj := 1; dj < cols; dj++ {
		fd[0][dj] = fd[0][dj-1] + c.cfg.InsertCost
	}

	for di := 1; di < rows; di++ {
		for dj := 1; dj < cols; dj++ {
			si, sj := li+di-1, lj+dj-1
			if src.lml[si] == li && tgt.lml[sj] == lj {
				u := c.updateCost(src.node(si), tgt.node(sj))
				fd[di][dj] = min3(
					fd[di-1][dj]+c.cfg.DeleteCost,
					fd[di][dj-1]+c.cfg.InsertCost,
					fd[di-1][dj-1]+u,
				)
				td[si][sj] = fd[di][dj]
			} else {
				fd[di][dj] = min3(
					fd[di-1][dj]+c.cfg.DeleteCost,
					fd[di][dj-1]+c.cfg.InsertCost,
					fd[src.lml[si]-li][tgt.lml[sj]-lj]+td[si][sj],
				)
			}
		}
	}

	if capture != nil {
		*capture = fd
	}
}

// backtrack recovers the edit script for the subtree pair rooted at (i, j)
// by recomputing its forest distance matrix and walking it backwards.
// Operations are appended in reverse order.
func (c *Calculator) backtrack(src, tgt *indexedTree, i, j int, td [][]float64, ops *[]EditOperation) {
	if i == 0 && j == 0 {
		return
	}
	if i == 0 {
		// Source forest empty: everything in the target subtree is inserted.
		for k := j; k >= tgt.lml[j]; k-- {
			n := tgt.node(k)
			*ops = append(*ops, EditOperation{Type: OpInsert, TargetID: n.ID, TargetKind: n.Kind, Cost: c.cfg.InsertCost})
		}
		return
	}
	if j == 0 {
		for k := i; k >= src.lml[i]; k-- {
			n := src.node(k)
			*ops = append(*ops, EditOperation{Type: OpDelete, SourceID: n.ID, SourceKind: n.Kind, Cost: c.cfg.DeleteCost})
		}
		return
	}

	var fd [][]float64
	c.forestDist(src, tgt, i, j, td, &fd)

	li, lj := src.lml[i], tgt.lml[j]
	di, dj := i-li+1, j-lj+1

	for di > 0 || dj > 0 {
		switch {
		case di > 0 && approxEq(fd[di][dj], fd[di-1][dj]+c.cfg.DeleteCost):
			n := src.node(li + di - 1)
			*ops = append(*ops, EditOperation{Type: OpDelete, SourceID: n.ID, SourceKind: n.Kind, Cost: c.cfg.DeleteCost})
			di--
		case dj > 0 && approxEq(fd[di][dj], fd[di][dj-1]+c.cfg.InsertCost):
			n := tgt.node(lj + dj - 1)
			*ops = append(*ops, EditOperation{Type: OpInsert, TargetID: n.ID, TargetKind: n.Kind, Cost: c.cfg.InsertCost})
			dj--
		default:
			si, sj := li+di-1, lj+dj-1
			if src.lml[si] == li && tgt.lml[sj] == lj {
				a, b := src.node(si), tgt.node(sj)
				u := c.updateCost(a, b)
				op := EditOperation{
					Type:       OpUpdate,
					SourceID:   a.ID,
					TargetID:   b.ID,
					SourceKind: a.Kind,
					TargetKind: b.Kind,
					Cost:       u,
				}
				if u == 0 {
					op.Type = OpMatch
				}
				*ops = append(*ops, op)
				di--
				dj--
			} else {
				// The pair (si, sj) was matched as whole subtrees; recover
				// their script recursively, then skip past both subtrees.
				c.backtrack(src, tgt, si, sj, td, ops)
				di = src.lml[si] - li
				dj = tgt.lml[sj] - lj
			}
		}
	}
}

func approxEq(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func min3(a, b, c float64) float64 {
	return math.Min(a, math.Min(b, c))
}

func ratio(a, b int) float64 {
	if a == 0 && b == 0 {
		return 1.0
	}
	if a == 0 || b == 0 {
		return 0.0
	}
	return float64(min(a, b)) / float64(max(a, b))
}

func reverse(ops []EditOperation) {
	for l, r := 0, len(ops)-1; l < r; l, r = l+1, r-1 {
		ops[l], ops[r] = ops[r], ops[l]
	}
}
