// Package symbols maintains the per-file symbol index used to
// disambiguate cross-file matches and label symbol migrations. The index
// is read-heavy: tracking queries it once per candidate move, so reads
// take a shared lock and writes are exclusive.
package symbols

import (
	"sort"
	"sync"
)

// Kind categorizes an indexed symbol.
type Kind string

const (
	KindFunction Kind = "function"
	KindMethod   Kind = "method"
	KindClass    Kind = "class"
	KindVariable Kind = "variable"
	KindOther    Kind = "other"
)

// Symbol is one definition site.
type Symbol struct {
	Name string `json:"name"`
	Kind Kind   `json:"kind"`
	File string `json:"file"`
	Line int    `json:"line"`
}

// Index maps symbol names to definitions and reference sites.
type Index struct {
	mu     sync.RWMutex
	defs   map[string][]Symbol
	byFile map[string][]Symbol
	refs   map[string]map[string]bool // name -> files referencing it
}

// NewIndex creates an empty index.
func NewIndex() *Index {
	return &Index{
		defs:   make(map[string][]Symbol),
		byFile: make(map[string][]Symbol),
		refs:   make(map[string]map[string]bool),
	}
}

// Add records a definition.
func (idx *Index) Add(sym Symbol) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.defs[sym.Name] = append(idx.defs[sym.Name], sym)
	idx.byFile[sym.File] = append(idx.byFile[sym.File], sym)
}

// AddReference records that a file references a symbol name.
func (idx *Index) AddReference(name, file string) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	files, ok := idx.refs[name]
	if !ok {
		files = make(map[string]bool)
		idx.refs[name] = files
	}
	files[file] = true
}

// Lookup returns every definition of a name.
func (idx *Index) Lookup(name string) []Symbol {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return append([]Symbol(nil), idx.defs[name]...)
}

// FileSymbols returns the definitions in one file, ordered by line.
func (idx *Index) FileSymbols(file string) []Symbol {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	out := append([]Symbol(nil), idx.byFile[file]...)
	sort.Slice(out, func(a, b int) bool { return out[a].Line < out[b].Line })
	return out
}

// IsReferenced reports whether a file references a symbol name. This is
// the signal tracking uses to raise move confidence: call sites that
// already point at the destination file corroborate the move.
func (idx *Index) IsReferenced(name, file string) bool {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.refs[name][file]
}

// Files returns every file with at least one definition, sorted.
func (idx *Index) Files() []string {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	out := make([]string, 0, len(idx.byFile))
	for f := range idx.byFile {
		out = append(out, f)
	}
	sort.Strings(out)
	return out
}
