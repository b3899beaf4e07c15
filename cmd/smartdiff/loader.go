package main

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"smartdiff/internal/ast"
	"smartdiff/internal/logging"
	"smartdiff/internal/parser"
	"smartdiff/internal/storage"
)

// skipDirs are directory names never worth descending into.
var skipDirs = map[string]bool{
	".git":         true,
	".smartdiff":   true,
	"node_modules": true,
	"vendor":       true,
	"target":       true,
	"__pycache__":  true,
}

// loader parses the source trees under comparison, consulting the
// function cache when one is attached.
type loader struct {
	parser *parser.Parser
	cache  *storage.FunctionCache
	logger *logging.Logger
}

// loadTree parses every supported file under root and returns functions
// keyed by path relative to root. A single file is keyed by its base name.
func (l *loader) loadTree(ctx context.Context, root string) (map[string][]*ast.Function, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", root, err)
	}

	result := make(map[string][]*ast.Function)

	if !info.IsDir() {
		functions, err := l.loadFile(ctx, root, filepath.Base(root))
		if err != nil {
			return nil, err
		}
		if functions != nil {
			result[filepath.Base(root)] = functions
		}
		return result, nil
	}

	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if skipDirs[d.Name()] {
				return fs.SkipDir
			}
			return nil
		}
		if _, ok := parser.LanguageFromExtension(strings.ToLower(filepath.Ext(path))); !ok {
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)

		functions, err := l.loadFile(ctx, path, rel)
		if err != nil {
			// A file that fails to parse should not sink the whole
			// comparison; report it and move on.
			l.logger.Warn("skipping unparsable file", map[string]interface{}{
				"file":  rel,
				"error": err.Error(),
			})
			return nil
		}
		if functions != nil {
			result[rel] = functions
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// loadFile parses one file, going through the cache when possible. The
// relative path is what ends up in function locations and cache keys so
// the same file compares equal across the two roots.
func (l *loader) loadFile(ctx context.Context, path, rel string) ([]*ast.Function, error) {
	source, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	lang, ok := parser.LanguageFromExtension(strings.ToLower(filepath.Ext(path)))
	if !ok {
		return nil, nil
	}

	var contentHash string
	if l.cache != nil {
		sum := sha256.Sum256(source)
		contentHash = hex.EncodeToString(sum[:])
		if cached, hit, err := l.cache.Get(rel, contentHash); err == nil && hit {
			return cached, nil
		}
	}

	functions, err := l.parser.ParseSource(ctx, source, lang, rel)
	if err != nil {
		return nil, err
	}

	if l.cache != nil {
		if err := l.cache.Put(rel, contentHash, string(lang), functions); err != nil {
			l.logger.Warn("failed to cache parsed functions", map[string]interface{}{
				"file":  rel,
				"error": err.Error(),
			})
		}
	}
	return functions, nil
}
