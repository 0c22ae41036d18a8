package ne

import (
	"sort"

	"github.com/derekparker/trie"
)

// SymbolKind is the table a Symbol comes from.
type SymbolKind uint8

const (
	SymbolExport SymbolKind = iota
	SymbolNonResident
	SymbolImport
)

func (k SymbolKind) String() string {
	switch k {
	case SymbolExport:
		return "export"
	case SymbolNonResident:
		return "nonresident"
	case SymbolImport:
		return "import"
	}
	return "unknown"
}

// Symbol is a named export or import.
type Symbol struct {
	Name       string     `json:"name" yaml:"name"`
	Kind       SymbolKind `json:"kind" yaml:"kind"`
	Module     string     `json:"module,omitempty" yaml:"module,omitempty"` // imports only
	Ordinal    uint16     `json:"ordinal" yaml:"ordinal"`
	FileOffset int64      `json:"file_offset" yaml:"file_offset"`
}

// SymbolTable indexes the names of an image's exports and imports.
type SymbolTable struct {
	t *trie.Trie
}

// Symbols returns the symbol index of the image. Imports by ordinal have
// no name and are not indexed. The module name entries of the name tables
// are skipped.
func (f *File) Symbols() *SymbolTable {
	if f.symbols != nil {
		return f.symbols
	}

	byName := map[string][]Symbol{}
	var order []string
	add := func(sym Symbol) {
		if sym.Name == "" {
			return
		}
		if _, ok := byName[sym.Name]; !ok {
			order = append(order, sym.Name)
		}
		byName[sym.Name] = append(byName[sym.Name], sym)
	}

	for i, fn := range f.Exports() {
		if i > 0 {
			add(Symbol{Name: fn.Name, Kind: SymbolExport, Ordinal: fn.Ordinal, FileOffset: fn.FileOffset})
		}
	}
	for i, fn := range f.NonResidentNames() {
		if i > 0 {
			add(Symbol{Name: fn.Name, Kind: SymbolNonResident, Ordinal: fn.Ordinal, FileOffset: fn.FileOffset})
		}
	}
	seen := map[string]bool{}
	for _, fn := range f.Imports() {
		if fn.Name == nil {
			continue
		}
		key := fn.ModuleName + "." + *fn.Name
		if seen[key] {
			continue
		}
		seen[key] = true
		add(Symbol{Name: *fn.Name, Kind: SymbolImport, Module: fn.ModuleName})
	}

	t := trie.New()
	for _, name := range order {
		t.Add(name, byName[name])
	}
	f.symbols = &SymbolTable{t: t}
	return f.symbols
}

// Find returns the symbols called name.
func (st *SymbolTable) Find(name string) []Symbol {
	node, ok := st.t.Find(name)
	if !ok {
		return nil
	}
	return node.Meta().([]Symbol)
}

// PrefixSearch returns the symbols whose name starts with prefix, sorted
// by name.
func (st *SymbolTable) PrefixSearch(prefix string) []Symbol {
	names := st.t.PrefixSearch(prefix)
	sort.Strings(names)
	r := []Symbol{}
	for _, name := range names {
		r = append(r, st.Find(name)...)
	}
	return r
}

// Names returns every indexed name, sorted.
func (st *SymbolTable) Names() []string {
	names := st.t.Keys()
	sort.Strings(names)
	return names
}
