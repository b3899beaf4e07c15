//go:build !cgo

package parser

import (
	"context"
	"errors"

	"smartdiff/internal/ast"
)

// ErrNoCGO is returned when parsing is unavailable due to missing CGO.
var ErrNoCGO = errors.New("parsing requires CGO (tree-sitter)")

// Parser extracts normalized functions from source files.
// This is a stub implementation for non-CGO builds.
type Parser struct{}

// NewParser creates a parser.
// Returns nil when CGO is disabled.
func NewParser() *Parser {
	return nil
}

// IsAvailable returns whether tree-sitter parsing is available.
// Returns false when CGO is disabled.
func IsAvailable() bool {
	return false
}

// OverrideLanguage replaces a normalization table.
// Stub implementation does nothing.
func (p *Parser) OverrideLanguage(cfg *LanguageConfig) {}

// ParseFile parses one source file.
// Stub implementation returns an error.
func (p *Parser) ParseFile(ctx context.Context, path string) ([]*ast.Function, error) {
	return nil, ErrNoCGO
}

// ParseSource parses source bytes.
// Stub implementation returns an error.
func (p *Parser) ParseSource(ctx context.Context, source []byte, lang Language, filePath string) ([]*ast.Function, error) {
	return nil, ErrNoCGO
}
