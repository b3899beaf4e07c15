package symbols

import (
	"os"
	"path/filepath"
	"testing"

	scippb "github.com/sourcegraph/scip/bindings/go/scip"
	"google.golang.org/protobuf/proto"
)

func TestIndexDefinitionsAndReferences(t *testing.T) {
	idx := NewIndex()
	idx.Add(Symbol{Name: "charge", Kind: KindFunction, File: "billing.py", Line: 10})
	idx.Add(Symbol{Name: "charge", Kind: KindFunction, File: "legacy.py", Line: 50})
	idx.Add(Symbol{Name: "refund", Kind: KindFunction, File: "billing.py", Line: 3})
	idx.AddReference("charge", "orders.py")

	if got := idx.Lookup("charge"); len(got) != 2 {
		t.Errorf("Lookup(charge) = %v, want two definitions", got)
	}
	if got := idx.Lookup("missing"); len(got) != 0 {
		t.Errorf("Lookup(missing) = %v, want none", got)
	}

	fileSyms := idx.FileSymbols("billing.py")
	if len(fileSyms) != 2 || fileSyms[0].Name != "refund" {
		t.Errorf("FileSymbols(billing.py) = %v, want refund then charge by line", fileSyms)
	}

	if !idx.IsReferenced("charge", "orders.py") {
		t.Error("charge should be referenced from orders.py")
	}
	if idx.IsReferenced("charge", "billing.py") {
		t.Error("charge should not be referenced from billing.py")
	}

	files := idx.Files()
	if len(files) != 2 || files[0] != "billing.py" {
		t.Errorf("Files() = %v, want [billing.py legacy.py]", files)
	}
}

func TestDescriptorName(t *testing.T) {
	tests := []struct {
		symbol string
		want   string
	}{
		{"scip-go gomod acme deadbeef `acme/billing`/Charge().", "Charge"},
		{"scip-typescript npm pkg 1.0.0 src/`mod.ts`/refund().", "refund"},
		{"scip-java maven g a 1 Order#", "Order"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := descriptorName(tt.symbol); got != tt.want {
			t.Errorf("descriptorName(%q) = %q, want %q", tt.symbol, got, tt.want)
		}
	}
}

func TestLoadSCIP(t *testing.T) {
	raw := &scippb.Index{
		Metadata: &scippb.Metadata{
			ToolInfo: &scippb.ToolInfo{Name: "scip-test"},
		},
		Documents: []*scippb.Document{
			{
				RelativePath: "billing.py",
				Symbols: []*scippb.SymbolInformation{
					{
						Symbol:      "local charge().",
						DisplayName: "charge",
						Kind:        scippb.SymbolInformation_Function,
					},
				},
				Occurrences: []*scippb.Occurrence{
					{
						Symbol:      "local charge().",
						SymbolRoles: int32(scippb.SymbolRole_Definition),
						Range:       []int32{9, 0, 9, 6},
					},
				},
			},
			{
				RelativePath: "orders.py",
				Occurrences: []*scippb.Occurrence{
					{
						Symbol: "local charge().",
						Range:  []int32{20, 4, 20, 10},
					},
				},
			},
		},
	}
	data, err := proto.Marshal(raw)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	path := filepath.Join(t.TempDir(), "index.scip")
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatal(err)
	}

	idx, err := LoadSCIP(path)
	if err != nil {
		t.Fatalf("LoadSCIP: %v", err)
	}
	defs := idx.Lookup("charge")
	if len(defs) != 1 || defs[0].File != "billing.py" || defs[0].Line != 10 {
		t.Errorf("Lookup(charge) = %v, want one definition at billing.py:10", defs)
	}
	if defs[0].Kind != KindFunction {
		t.Errorf("Kind = %v, want function", defs[0].Kind)
	}
	if !idx.IsReferenced("charge", "orders.py") {
		t.Error("charge should be referenced from orders.py")
	}
}

func TestLoadSCIPMissingFile(t *testing.T) {
	if _, err := LoadSCIP(filepath.Join(t.TempDir(), "nope.scip")); err == nil {
		t.Error("LoadSCIP should fail for a missing index")
	}
}
