package symbols

import (
	"smartdiff/internal/ast"
)

// BuildIndex constructs an index from already-parsed functions, used as
// a fallback when no SCIP index is available. Each function becomes a
// definition; each of its outgoing calls becomes a reference from the
// defining file.
func BuildIndex(functions map[string][]*ast.Function) *Index {
	idx := NewIndex()
	for file, fns := range functions {
		for _, fn := range fns {
			idx.Add(Symbol{
				Name: fn.Name(),
				Kind: KindFunction,
				File: file,
				Line: fn.Location.StartLine,
			})
			for _, dep := range fn.Dependencies {
				idx.AddReference(dep, file)
			}
		}
	}
	return idx
}
