// Package parser turns source files into the normalized function model the
// comparison engine consumes. Parsing uses tree-sitter grammars; the raw
// trees are mapped onto the neutral node-kind vocabulary through per-language
// normalization tables that can be overridden from TOML files.
package parser

// Language represents a supported programming language.
type Language string

const (
	LangGo         Language = "go"
	LangJavaScript Language = "javascript"
	LangTypeScript Language = "typescript"
	LangTSX        Language = "tsx"
	LangPython     Language = "python"
	LangRust       Language = "rust"
	LangJava       Language = "java"
	LangKotlin     Language = "kotlin"
)

// LanguageFromExtension maps a file extension (with leading dot) to its
// language.
func LanguageFromExtension(ext string) (Language, bool) {
	switch ext {
	case ".go":
		return LangGo, true
	case ".js", ".jsx", ".mjs", ".cjs":
		return LangJavaScript, true
	case ".ts", ".mts", ".cts":
		return LangTypeScript, true
	case ".tsx":
		return LangTSX, true
	case ".py", ".pyi":
		return LangPython, true
	case ".rs":
		return LangRust, true
	case ".java":
		return LangJava, true
	case ".kt", ".kts":
		return LangKotlin, true
	default:
		return "", false
	}
}

// SupportedLanguages lists every language with a built-in grammar and
// normalization table.
func SupportedLanguages() []Language {
	return []Language{
		LangGo, LangJavaScript, LangTypeScript, LangTSX,
		LangPython, LangRust, LangJava, LangKotlin,
	}
}
