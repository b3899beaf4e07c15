// Package ast defines the language-neutral syntax tree and function model
// used by the comparison engine. Parsers for concrete languages normalize
// their output into this vocabulary so the engine never needs to know which
// language it is looking at.
package ast

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// NodeKind identifies the normalized syntactic category of a node.
type NodeKind string

const (
	// KindFunction is a function or method declaration
	KindFunction NodeKind = "function"
	// KindParameter is a formal parameter
	KindParameter NodeKind = "parameter"
	// KindBlock is a statement block
	KindBlock NodeKind = "block"
	// KindIf is a conditional statement
	KindIf NodeKind = "if"
	// KindLoop is any loop construct (for, while, do-while)
	KindLoop NodeKind = "loop"
	// KindSwitch is a switch or match statement
	KindSwitch NodeKind = "switch"
	// KindReturn is a return statement
	KindReturn NodeKind = "return"
	// KindAssignment is an assignment statement
	KindAssignment NodeKind = "assignment"
	// KindVariableDecl is a local variable declaration
	KindVariableDecl NodeKind = "variable_decl"
	// KindExpressionStmt is an expression used as a statement
	KindExpressionStmt NodeKind = "expression_stmt"
	// KindCall is a call expression
	KindCall NodeKind = "call"
	// KindBinaryExpr is a binary expression
	KindBinaryExpr NodeKind = "binary_expr"
	// KindUnaryExpr is a unary expression
	KindUnaryExpr NodeKind = "unary_expr"
	// KindIdentifier is an identifier reference
	KindIdentifier NodeKind = "identifier"
	// KindLiteral is a literal value
	KindLiteral NodeKind = "literal"
	// KindTypeRef is a type reference in source position
	KindTypeRef NodeKind = "type_ref"
	// KindComment is a comment node
	KindComment NodeKind = "comment"
	// KindOther covers node types with no normalized category
	KindOther NodeKind = "other"
)

// statementKinds groups kinds that play a statement role. Updates between two
// kinds in the same group are cheaper than arbitrary relabeling.
var statementKinds = map[NodeKind]bool{
	KindBlock:          true,
	KindIf:             true,
	KindLoop:           true,
	KindSwitch:         true,
	KindReturn:         true,
	KindAssignment:     true,
	KindVariableDecl:   true,
	KindExpressionStmt: true,
}

// expressionKinds groups kinds that play an expression role.
var expressionKinds = map[NodeKind]bool{
	KindCall:       true,
	KindBinaryExpr: true,
	KindUnaryExpr:  true,
	KindIdentifier: true,
	KindLiteral:    true,
}

// IsStatement reports whether the kind belongs to the statement group.
func (k NodeKind) IsStatement() bool { return statementKinds[k] }

// IsExpression reports whether the kind belongs to the expression group.
func (k NodeKind) IsExpression() bool { return expressionKinds[k] }

// Node is a single node of a normalized syntax tree. Children preserve
// source order; the tree is ordered for edit distance purposes.
type Node struct {
	ID         string            `json:"id"`
	Kind       NodeKind          `json:"kind"`
	Text       string            `json:"text,omitempty"`
	Line       int               `json:"line"`
	Column     int               `json:"column"`
	Attributes map[string]string `json:"attributes,omitempty"`
	Children   []*Node           `json:"children,omitempty"`
}

// NewNode creates a node with a fresh identity.
func NewNode(kind NodeKind, text string) *Node {
	return &Node{
		ID:   uuid.NewString(),
		Kind: kind,
		Text: text,
	}
}

// AddChild appends a child node and returns it for chaining.
func (n *Node) AddChild(child *Node) *Node {
	n.Children = append(n.Children, child)
	return child
}

// SetAttribute records a named attribute on the node.
func (n *Node) SetAttribute(key, value string) {
	if n.Attributes == nil {
		n.Attributes = make(map[string]string)
	}
	n.Attributes[key] = value
}

// Count returns the number of nodes in the subtree rooted at n.
func (n *Node) Count() int {
	if n == nil {
		return 0
	}
	total := 1
	for _, c := range n.Children {
		total += c.Count()
	}
	return total
}

// Depth returns the height of the subtree rooted at n. A leaf has depth 1.
func (n *Node) Depth() int {
	if n == nil {
		return 0
	}
	max := 0
	for _, c := range n.Children {
		if d := c.Depth(); d > max {
			max = d
		}
	}
	return max + 1
}

// Walk visits every node in the subtree in preorder.
func (n *Node) Walk(visit func(*Node)) {
	if n == nil {
		return
	}
	visit(n)
	for _, c := range n.Children {
		c.Walk(visit)
	}
}

// Postorder returns the nodes of the subtree in postorder, the traversal
// order tree edit distance operates on.
func (n *Node) Postorder() []*Node {
	if n == nil {
		return nil
	}
	var out []*Node
	var rec func(*Node)
	rec = func(node *Node) {
		for _, c := range node.Children {
			rec(c)
		}
		out = append(out, node)
	}
	rec(n)
	return out
}

// StructuralHash returns a hash of the subtree's shape and node kinds.
// Text and identity are excluded, so two structurally identical trees hash
// equal regardless of where they came from. Kinds are length-prefixed to
// avoid delimiter ambiguity.
func (n *Node) StructuralHash() string {
	if n == nil {
		return ""
	}
	var builder strings.Builder
	var rec func(*Node)
	rec = func(node *Node) {
		kind := string(node.Kind)
		builder.WriteString(strconv.Itoa(len(kind)))
		builder.WriteByte(':')
		builder.WriteString(kind)
		builder.WriteString(strconv.Itoa(len(node.Children)))
		builder.WriteByte('(')
		for _, c := range node.Children {
			rec(c)
		}
		builder.WriteByte(')')
	}
	rec(n)
	hash := sha256.Sum256([]byte(builder.String()))
	return hex.EncodeToString(hash[:])
}

// ContentHash returns a hash covering both the shape and the text of the
// subtree. Two trees hash equal iff they have the same kinds, structure,
// and node text. Used as a cache key where text differences matter.
func (n *Node) ContentHash() string {
	if n == nil {
		return ""
	}
	var builder strings.Builder
	var rec func(*Node)
	rec = func(node *Node) {
		kind := string(node.Kind)
		builder.WriteString(strconv.Itoa(len(kind)))
		builder.WriteByte(':')
		builder.WriteString(kind)
		builder.WriteString(strconv.Itoa(len(node.Text)))
		builder.WriteByte(':')
		builder.WriteString(node.Text)
		builder.WriteString(strconv.Itoa(len(node.Children)))
		builder.WriteByte('(')
		for _, c := range node.Children {
			rec(c)
		}
		builder.WriteByte(')')
	}
	rec(n)
	hash := sha256.Sum256([]byte(builder.String()))
	return hex.EncodeToString(hash[:])
}

// FlattenText concatenates the text of every node in the subtree, in
// preorder, separated by single spaces. Used for content-level comparison.
func (n *Node) FlattenText() string {
	var parts []string
	n.Walk(func(node *Node) {
		if node.Text != "" {
			parts = append(parts, node.Text)
		}
	})
	return strings.Join(parts, " ")
}
