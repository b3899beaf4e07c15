package parser

import (
	"fmt"
	"os"
	"strings"

	"github.com/BurntSushi/toml"

	"smartdiff/internal/ast"
	"smartdiff/internal/errors"
)

// LanguageConfig describes how one language's tree-sitter node types map
// onto the normalized vocabulary. The built-in tables cover every
// supported language; a TOML file can override or extend them for custom
// grammars.
type LanguageConfig struct {
	Language      Language          `toml:"language"`
	FunctionNodes []string          `toml:"function_nodes"`
	CallNodes     []string          `toml:"call_nodes"`
	NameField     string            `toml:"name_field"`
	KindMap       map[string]string `toml:"kind_map"`
}

// LoadLanguageConfig reads a normalization table from a TOML file and
// merges it over the built-in defaults for its language.
func LoadLanguageConfig(path string) (*LanguageConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.NewDiffError(errors.ConfigInvalid,
			fmt.Sprintf("failed to read language config %s", path), err)
	}
	var cfg LanguageConfig
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, errors.NewDiffError(errors.ConfigInvalid,
			fmt.Sprintf("failed to parse language config %s", path), err)
	}
	if cfg.Language == "" {
		return nil, errors.NewDiffError(errors.ConfigInvalid,
			fmt.Sprintf("language config %s does not name a language", path), nil)
	}
	for nodeType, kind := range cfg.KindMap {
		if !validKinds[ast.NodeKind(kind)] {
			return nil, errors.NewDiffError(errors.ConfigInvalid,
				fmt.Sprintf("language config %s maps %s to unknown kind %q", path, nodeType, kind), nil)
		}
	}

	merged := DefaultLanguageConfig(cfg.Language)
	if merged == nil {
		merged = &LanguageConfig{Language: cfg.Language, KindMap: map[string]string{}}
	}
	if len(cfg.FunctionNodes) > 0 {
		merged.FunctionNodes = cfg.FunctionNodes
	}
	if len(cfg.CallNodes) > 0 {
		merged.CallNodes = cfg.CallNodes
	}
	if cfg.NameField != "" {
		merged.NameField = cfg.NameField
	}
	for nodeType, kind := range cfg.KindMap {
		merged.KindMap[nodeType] = kind
	}
	return merged, nil
}

// KindFor normalizes one tree-sitter node type. Unmapped types fall back
// to suffix heuristics, then to the catch-all kind.
func (c *LanguageConfig) KindFor(nodeType string) ast.NodeKind {
	if kind, ok := c.KindMap[nodeType]; ok {
		return ast.NodeKind(kind)
	}
	switch {
	case strings.HasSuffix(nodeType, "comment"):
		return ast.KindComment
	case strings.HasSuffix(nodeType, "identifier"):
		return ast.KindIdentifier
	case strings.HasSuffix(nodeType, "literal") || strings.HasSuffix(nodeType, "string") || strings.HasSuffix(nodeType, "number"):
		return ast.KindLiteral
	case strings.HasSuffix(nodeType, "statement"):
		return ast.KindExpressionStmt
	case strings.HasSuffix(nodeType, "expression"):
		return ast.KindBinaryExpr
	case strings.HasSuffix(nodeType, "block") || strings.HasSuffix(nodeType, "body"):
		return ast.KindBlock
	case strings.HasSuffix(nodeType, "type"):
		return ast.KindTypeRef
	default:
		return ast.KindOther
	}
}

// IsFunctionNode reports whether a node type declares a function.
func (c *LanguageConfig) IsFunctionNode(nodeType string) bool {
	for _, t := range c.FunctionNodes {
		if t == nodeType {
			return true
		}
	}
	return false
}

// IsCallNode reports whether a node type is a call expression.
func (c *LanguageConfig) IsCallNode(nodeType string) bool {
	for _, t := range c.CallNodes {
		if t == nodeType {
			return true
		}
	}
	return false
}

// DefaultLanguageConfig returns the built-in table for a language, or nil
// for an unknown one. The returned config is a copy; callers may mutate
// it.
func DefaultLanguageConfig(lang Language) *LanguageConfig {
	base, ok := defaultConfigs[lang]
	if !ok {
		return nil
	}
	out := &LanguageConfig{
		Language:      lang,
		FunctionNodes: append([]string(nil), base.FunctionNodes...),
		CallNodes:     append([]string(nil), base.CallNodes...),
		NameField:     base.NameField,
		KindMap:       make(map[string]string, len(base.KindMap)+len(commonKindMap)),
	}
	for k, v := range commonKindMap {
		out.KindMap[k] = v
	}
	for k, v := range base.KindMap {
		out.KindMap[k] = v
	}
	return out
}

var validKinds = map[ast.NodeKind]bool{
	ast.KindFunction: true, ast.KindParameter: true, ast.KindBlock: true,
	ast.KindIf: true, ast.KindLoop: true, ast.KindSwitch: true,
	ast.KindReturn: true, ast.KindAssignment: true, ast.KindVariableDecl: true,
	ast.KindExpressionStmt: true, ast.KindCall: true, ast.KindBinaryExpr: true,
	ast.KindUnaryExpr: true, ast.KindIdentifier: true, ast.KindLiteral: true,
	ast.KindTypeRef: true, ast.KindComment: true, ast.KindOther: true,
}

// commonKindMap covers node types that keep the same name across most
// grammars.
var commonKindMap = map[string]string{
	"block":                 "block",
	"if_statement":          "if",
	"for_statement":         "loop",
	"while_statement":       "loop",
	"do_statement":          "loop",
	"switch_statement":      "switch",
	"return_statement":      "return",
	"assignment":            "assignment",
	"assignment_expression": "assignment",
	"call_expression":       "call",
	"binary_expression":     "binary_expr",
	"unary_expression":      "unary_expr",
	"identifier":            "identifier",
	"parameter":             "parameter",
	"comment":               "comment",
	"line_comment":          "comment",
	"block_comment":         "comment",
}

var defaultConfigs = map[Language]LanguageConfig{
	LangGo: {
		FunctionNodes: []string{"function_declaration", "method_declaration", "func_literal"},
		CallNodes:     []string{"call_expression"},
		NameField:     "name",
		KindMap: map[string]string{
			"short_var_declaration":       "variable_decl",
			"var_declaration":             "variable_decl",
			"expression_switch_statement": "switch",
			"type_switch_statement":       "switch",
			"range_clause":                "loop",
			"interpreted_string_literal":  "literal",
			"int_literal":                 "literal",
			"float_literal":               "literal",
		},
	},
	LangJavaScript: {
		FunctionNodes: []string{"function_declaration", "function_expression", "arrow_function", "method_definition", "generator_function_declaration"},
		CallNodes:     []string{"call_expression", "new_expression"},
		NameField:     "name",
		KindMap: map[string]string{
			"lexical_declaration":  "variable_decl",
			"variable_declaration": "variable_decl",
			"for_in_statement":     "loop",
			"ternary_expression":   "binary_expr",
			"string":               "literal",
			"number":               "literal",
		},
	},
	LangTypeScript: {
		FunctionNodes: []string{"function_declaration", "function_expression", "arrow_function", "method_definition", "generator_function_declaration"},
		CallNodes:     []string{"call_expression", "new_expression"},
		NameField:     "name",
		KindMap: map[string]string{
			"lexical_declaration":  "variable_decl",
			"variable_declaration": "variable_decl",
			"for_in_statement":     "loop",
			"type_annotation":      "type_ref",
		},
	},
	LangTSX: {
		FunctionNodes: []string{"function_declaration", "function_expression", "arrow_function", "method_definition"},
		CallNodes:     []string{"call_expression", "new_expression"},
		NameField:     "name",
		KindMap: map[string]string{
			"lexical_declaration": "variable_decl",
			"jsx_expression":      "other",
		},
	},
	LangPython: {
		FunctionNodes: []string{"function_definition"},
		CallNodes:     []string{"call"},
		NameField:     "name",
		KindMap: map[string]string{
			"call":                   "call",
			"elif_clause":            "if",
			"conditional_expression": "binary_expr",
			"boolean_operator":       "binary_expr",
			"not_operator":           "unary_expr",
			"string":                 "literal",
			"integer":                "literal",
			"float":                  "literal",
			"with_statement":         "expression_stmt",
		},
	},
	LangRust: {
		FunctionNodes: []string{"function_item", "closure_expression"},
		CallNodes:     []string{"call_expression", "macro_invocation"},
		NameField:     "name",
		KindMap: map[string]string{
			"if_expression":    "if",
			"match_expression": "switch",
			"match_arm":        "other",
			"while_expression": "loop",
			"loop_expression":  "loop",
			"for_expression":   "loop",
			"let_declaration":  "variable_decl",
			"string_literal":   "literal",
			"integer_literal":  "literal",
		},
	},
	LangJava: {
		FunctionNodes: []string{"method_declaration", "constructor_declaration"},
		CallNodes:     []string{"method_invocation", "object_creation_expression"},
		NameField:     "name",
		KindMap: map[string]string{
			"enhanced_for_statement":     "loop",
			"switch_expression":          "switch",
			"local_variable_declaration": "variable_decl",
			"ternary_expression":         "binary_expr",
			"string_literal":             "literal",
			"decimal_integer_literal":    "literal",
		},
	},
	LangKotlin: {
		FunctionNodes: []string{"function_declaration", "anonymous_function", "lambda_literal"},
		CallNodes:     []string{"call_expression"},
		NameField:     "simple_identifier",
		KindMap: map[string]string{
			"if_expression":        "if",
			"when_expression":      "switch",
			"for_statement":        "loop",
			"while_statement":      "loop",
			"property_declaration": "variable_decl",
			"string_literal":       "literal",
		},
	},
}
