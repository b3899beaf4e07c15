//go:build cgo

package parser

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/golang"
	"github.com/smacker/go-tree-sitter/java"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/kotlin"
	"github.com/smacker/go-tree-sitter/python"
	"github.com/smacker/go-tree-sitter/rust"
	"github.com/smacker/go-tree-sitter/typescript/tsx"
	"github.com/smacker/go-tree-sitter/typescript/typescript"

	"smartdiff/internal/ast"
	"smartdiff/internal/errors"
)

// Parser extracts normalized functions from source files. Not safe for
// concurrent use; create one per goroutine.
type Parser struct {
	parser  *sitter.Parser
	configs map[Language]*LanguageConfig
}

// NewParser creates a parser with the built-in normalization tables.
func NewParser() *Parser {
	configs := make(map[Language]*LanguageConfig)
	for _, lang := range SupportedLanguages() {
		configs[lang] = DefaultLanguageConfig(lang)
	}
	return &Parser{
		parser:  sitter.NewParser(),
		configs: configs,
	}
}

// IsAvailable returns whether tree-sitter parsing is available.
func IsAvailable() bool {
	return true
}

// OverrideLanguage replaces the normalization table for the config's
// language, typically after LoadLanguageConfig.
func (p *Parser) OverrideLanguage(cfg *LanguageConfig) {
	p.configs[cfg.Language] = cfg
}

// ParseFile parses one source file, inferring the language from the
// extension, and returns its functions.
func (p *Parser) ParseFile(ctx context.Context, path string) ([]*ast.Function, error) {
	ext := strings.ToLower(filepath.Ext(path))
	lang, ok := LanguageFromExtension(ext)
	if !ok {
		return nil, errors.NewDiffError(errors.UnsupportedLanguage,
			fmt.Sprintf("unsupported file extension: %s", ext), nil)
	}
	source, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.NewDiffError(errors.ParseFailed,
			fmt.Sprintf("failed to read %s", path), err)
	}
	return p.ParseSource(ctx, source, lang, path)
}

// ParseSource parses source bytes and returns the functions found,
// normalized and hashed. filePath only labels locations; nothing is read
// from disk.
func (p *Parser) ParseSource(ctx context.Context, source []byte, lang Language, filePath string) ([]*ast.Function, error) {
	cfg, ok := p.configs[lang]
	if !ok {
		return nil, errors.NewDiffError(errors.UnsupportedLanguage,
			fmt.Sprintf("unsupported language: %s", lang), nil)
	}
	tsLang, err := sitterLanguage(lang)
	if err != nil {
		return nil, err
	}

	p.parser.SetLanguage(tsLang)
	tree, err := p.parser.ParseCtx(ctx, nil, source)
	if err != nil {
		return nil, errors.NewDiffError(errors.ParseFailed,
			fmt.Sprintf("failed to parse %s", filePath), err)
	}
	defer tree.Close()

	var functions []*ast.Function
	collectFunctions(tree.RootNode(), source, cfg, filePath, &functions)
	return functions, nil
}

// sitterLanguage returns the grammar for a language identifier.
func sitterLanguage(lang Language) (*sitter.Language, error) {
	switch lang {
	case LangGo:
		return golang.GetLanguage(), nil
	case LangJavaScript:
		return javascript.GetLanguage(), nil
	case LangTypeScript:
		return typescript.GetLanguage(), nil
	case LangTSX:
		return tsx.GetLanguage(), nil
	case LangPython:
		return python.GetLanguage(), nil
	case LangRust:
		return rust.GetLanguage(), nil
	case LangJava:
		return java.GetLanguage(), nil
	case LangKotlin:
		return kotlin.GetLanguage(), nil
	default:
		return nil, errors.NewDiffError(errors.UnsupportedLanguage,
			fmt.Sprintf("unsupported language: %s", lang), nil)
	}
}

func collectFunctions(node *sitter.Node, source []byte, cfg *LanguageConfig, filePath string, out *[]*ast.Function) {
	if cfg.IsFunctionNode(node.Type()) {
		if fn := extractFunction(node, source, cfg, filePath); fn != nil {
			*out = append(*out, fn)
		}
		// Nested functions become their own entries; their bodies still
		// appear inside the enclosing function's tree.
	}
	for i := 0; i < int(node.NamedChildCount()); i++ {
		collectFunctions(node.NamedChild(i), source, cfg, filePath, out)
	}
}

func extractFunction(node *sitter.Node, source []byte, cfg *LanguageConfig, filePath string) *ast.Function {
	name := fieldContent(node, source, cfg.NameField)
	if name == "" {
		name = fieldContent(node, source, "name")
	}
	if name == "" {
		return nil // anonymous functions are not tracked
	}

	fn := &ast.Function{
		Signature: ast.Signature{
			Name:      name,
			Modifiers: extractModifiers(node, source),
		},
		Location: ast.Location{
			FilePath:    filePath,
			StartLine:   int(node.StartPoint().Row) + 1,
			EndLine:     int(node.EndPoint().Row) + 1,
			StartColumn: int(node.StartPoint().Column),
			EndColumn:   int(node.EndPoint().Column),
		},
	}

	if params := node.ChildByFieldName("parameters"); params != nil {
		fn.Signature.Parameters = extractParameters(params, source)
	}
	if ret := returnTypeNode(node); ret != nil {
		fn.Signature.ReturnType = &ast.TypeRef{Name: ret.Content(source)}
	}
	if body := node.ChildByFieldName("body"); body != nil {
		fn.Body = convertNode(body, source, cfg)
		fn.Dependencies = collectCalls(body, source, cfg)
	}

	fn.ComputeHash()
	return fn
}

// returnTypeNode probes the field names grammars use for the declared
// return type.
func returnTypeNode(node *sitter.Node) *sitter.Node {
	for _, field := range []string{"return_type", "result", "type"} {
		if n := node.ChildByFieldName(field); n != nil {
			return n
		}
	}
	return nil
}

func extractParameters(params *sitter.Node, source []byte) []ast.Parameter {
	var out []ast.Parameter
	for i := 0; i < int(params.NamedChildCount()); i++ {
		child := params.NamedChild(i)
		if !strings.Contains(child.Type(), "parameter") && child.Type() != "identifier" {
			continue
		}
		p := ast.Parameter{}
		if name := child.ChildByFieldName("name"); name != nil {
			p.Name = name.Content(source)
		} else if child.Type() == "identifier" {
			p.Name = child.Content(source)
		}
		if typ := child.ChildByFieldName("type"); typ != nil {
			p.Type = ast.TypeRef{Name: typ.Content(source)}
		}
		if p.Name != "" || p.Type.Name != "" {
			out = append(out, p)
		}
	}
	return out
}

func extractModifiers(node *sitter.Node, source []byte) []string {
	for i := 0; i < int(node.NamedChildCount()); i++ {
		child := node.NamedChild(i)
		if child.Type() == "modifiers" {
			return strings.Fields(child.Content(source))
		}
	}
	return nil
}

// convertNode maps a tree-sitter subtree onto the normalized node model.
// Leaves keep their source text; interior nodes keep only their kind,
// except calls, which carry the callee name so content hashing and
// flattened-text comparison see who is being called.
func convertNode(node *sitter.Node, source []byte, cfg *LanguageConfig) *ast.Node {
	kind := cfg.KindFor(node.Type())
	text := ""
	if node.NamedChildCount() == 0 {
		text = node.Content(source)
	} else if cfg.IsCallNode(node.Type()) {
		text = calleeName(node, source)
	}

	out := ast.NewNode(kind, text)
	out.Line = int(node.StartPoint().Row) + 1
	out.Column = int(node.StartPoint().Column)
	for i := 0; i < int(node.NamedChildCount()); i++ {
		child := node.NamedChild(i)
		if cfg.KindFor(child.Type()) == ast.KindComment {
			continue
		}
		out.AddChild(convertNode(child, source, cfg))
	}
	return out
}

// calleeName extracts the called name from a call node, preferring the
// grammar's function field.
func calleeName(node *sitter.Node, source []byte) string {
	if fn := node.ChildByFieldName("function"); fn != nil {
		return fn.Content(source)
	}
	if name := node.ChildByFieldName("name"); name != nil {
		return name.Content(source)
	}
	if node.NamedChildCount() > 0 {
		return node.NamedChild(0).Content(source)
	}
	return ""
}

// collectCalls gathers the distinct callee names in a body, in first-seen
// order. These feed context similarity.
func collectCalls(node *sitter.Node, source []byte, cfg *LanguageConfig) []string {
	var calls []string
	seen := make(map[string]bool)
	var walk func(n *sitter.Node)
	walk = func(n *sitter.Node) {
		if cfg.IsCallNode(n.Type()) {
			if name := calleeName(n, source); name != "" && !seen[name] {
				seen[name] = true
				calls = append(calls, name)
			}
		}
		for i := 0; i < int(n.NamedChildCount()); i++ {
			walk(n.NamedChild(i))
		}
	}
	walk(node)
	return calls
}
