package symbols

import (
	"fmt"
	"os"
	"strings"

	scippb "github.com/sourcegraph/scip/bindings/go/scip"
	"google.golang.org/protobuf/proto"

	"smartdiff/internal/errors"
)

// LoadSCIP builds an index from a SCIP protobuf index file. Definition
// occurrences become symbols; every other occurrence becomes a reference
// from the document that contains it.
func LoadSCIP(path string) (*Index, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, errors.NewDiffError(errors.IndexMissing,
			fmt.Sprintf("SCIP index not found at %s", path), err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.NewDiffError(errors.InternalError,
			fmt.Sprintf("failed to read SCIP index from %s", path), err)
	}

	var raw scippb.Index
	if err := proto.Unmarshal(data, &raw); err != nil {
		return nil, errors.NewDiffError(errors.IndexCorrupt,
			fmt.Sprintf("failed to parse SCIP index from %s", path), err)
	}

	idx := NewIndex()
	for _, doc := range raw.Documents {
		names := make(map[string]string, len(doc.Symbols))
		kinds := make(map[string]Kind, len(doc.Symbols))
		for _, info := range doc.Symbols {
			names[info.Symbol] = symbolName(info)
			kinds[info.Symbol] = symbolKind(info)
		}

		for _, occ := range doc.Occurrences {
			name, ok := names[occ.Symbol]
			if !ok {
				name = descriptorName(occ.Symbol)
			}
			if name == "" {
				continue
			}
			if occ.SymbolRoles&int32(scippb.SymbolRole_Definition) != 0 {
				line := 0
				if len(occ.Range) > 0 {
					line = int(occ.Range[0]) + 1
				}
				kind, ok := kinds[occ.Symbol]
				if !ok {
					kind = KindOther
				}
				idx.Add(Symbol{
					Name: name,
					Kind: kind,
					File: doc.RelativePath,
					Line: line,
				})
			} else {
				idx.AddReference(name, doc.RelativePath)
			}
		}
	}
	return idx, nil
}

func symbolName(info *scippb.SymbolInformation) string {
	if info.DisplayName != "" {
		return info.DisplayName
	}
	return descriptorName(info.Symbol)
}

// descriptorName recovers a plain name from a SCIP symbol identifier,
// e.g. "scip-go gomod acme deadbeef `acme/billing`/Charge()." -> "Charge".
func descriptorName(symbol string) string {
	s := symbol
	if i := strings.LastIndex(s, "/"); i >= 0 {
		s = s[i+1:]
	}
	s = strings.TrimRight(s, "().#`")
	if i := strings.LastIndex(s, " "); i >= 0 {
		s = s[i+1:]
	}
	return s
}

func symbolKind(info *scippb.SymbolInformation) Kind {
	switch info.Kind {
	case scippb.SymbolInformation_Function:
		return KindFunction
	case scippb.SymbolInformation_Method:
		return KindMethod
	case scippb.SymbolInformation_Class:
		return KindClass
	case scippb.SymbolInformation_Variable:
		return KindVariable
	default:
		return KindOther
	}
}
