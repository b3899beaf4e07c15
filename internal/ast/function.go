package ast

import (
	"strings"
)

// typeAliases maps language-specific type spellings to a canonical name so
// signatures survive cross-language comparison.
var typeAliases = map[string]string{
	"int":     "integer",
	"int32":   "integer",
	"int64":   "integer",
	"i32":     "integer",
	"i64":     "integer",
	"integer": "integer",
	"long":    "integer",
	"short":   "integer",
	"usize":   "integer",
	"u32":     "integer",
	"u64":     "integer",
	"float":   "float",
	"float32": "float",
	"float64": "float",
	"f32":     "float",
	"f64":     "float",
	"double":  "float",
	"str":     "string",
	"string":  "string",
	"char":    "string",
	"bool":    "boolean",
	"boolean": "boolean",
	"void":    "void",
	"unit":    "void",
	"none":    "void",
	"list":    "array",
	"array":   "array",
	"vec":     "array",
	"slice":   "array",
	"map":     "map",
	"dict":    "map",
	"hashmap": "map",
	"object":  "object",
	"any":     "object",
}

// TypeRef is a reference to a type in a signature.
type TypeRef struct {
	Name        string    `json:"name"`
	GenericArgs []TypeRef `json:"genericArgs,omitempty"`
	Nullable    bool      `json:"nullable,omitempty"`
}

// Normalized returns the canonical name for the type, collapsing
// language-specific aliases (i32, Int64, long all normalize to "integer").
func (t TypeRef) Normalized() string {
	name := strings.ToLower(strings.TrimSpace(t.Name))
	if canonical, ok := typeAliases[name]; ok {
		return canonical
	}
	return name
}

// Equivalent reports whether two types normalize to the same canonical name
// with equivalent generic arguments.
func (t TypeRef) Equivalent(other TypeRef) bool {
	if t.Normalized() != other.Normalized() {
		return false
	}
	if len(t.GenericArgs) != len(other.GenericArgs) {
		return false
	}
	for i := range t.GenericArgs {
		if !t.GenericArgs[i].Equivalent(other.GenericArgs[i]) {
			return false
		}
	}
	return true
}

// Parameter is a formal parameter of a function signature.
type Parameter struct {
	Name         string  `json:"name"`
	Type         TypeRef `json:"type"`
	DefaultValue string  `json:"defaultValue,omitempty"`
}

// Signature describes a function's declared interface.
type Signature struct {
	Name       string      `json:"name"`
	Parameters []Parameter `json:"parameters,omitempty"`
	ReturnType *TypeRef    `json:"returnType,omitempty"`
	Modifiers  []string    `json:"modifiers,omitempty"`
	Generics   []string    `json:"generics,omitempty"`
}

// Location identifies where a function lives in the source tree.
type Location struct {
	FilePath    string `json:"filePath"`
	StartLine   int    `json:"startLine"`
	EndLine     int    `json:"endLine"`
	StartColumn int    `json:"startColumn"`
	EndColumn   int    `json:"endColumn"`
}

// Function is the unit of comparison: a declared function with its
// normalized body tree, its outgoing call dependencies, and a content hash.
type Function struct {
	Signature    Signature `json:"signature"`
	Body         *Node     `json:"body,omitempty"`
	Location     Location  `json:"location"`
	Dependencies []string  `json:"dependencies,omitempty"`
	Hash         string    `json:"hash"`
}

// Name returns the declared name.
func (f *Function) Name() string { return f.Signature.Name }

// FilePath returns the path of the file the function is declared in.
func (f *Function) FilePath() string { return f.Location.FilePath }

// NodeCount returns the size of the body tree, 0 for declarations
// without a body.
func (f *Function) NodeCount() int { return f.Body.Count() }

// IsSimple reports whether the function body is small enough that
// structural similarity carries no signal. Simple functions only ever
// match on identical content.
func (f *Function) IsSimple() bool { return f.NodeCount() <= 10 }

// DependencySet returns the outgoing call names as a set.
func (f *Function) DependencySet() map[string]bool {
	set := make(map[string]bool, len(f.Dependencies))
	for _, d := range f.Dependencies {
		set[d] = true
	}
	return set
}

// ComputeHash fills in the canonical content hash. Parsers call this once
// the body and signature are complete.
func (f *Function) ComputeHash() {
	f.Hash = NewHasher().HashFunction(f)
}
