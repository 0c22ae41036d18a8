package ne

import "fmt"

// ImportedFunction is a function referenced by a relocation, imported
// either by name or by ordinal.
type ImportedFunction struct {
	ModuleName string  `json:"module" yaml:"module"`
	Name       *string `json:"name,omitempty" yaml:"name,omitempty"`
	Ordinal    *uint16 `json:"ordinal,omitempty" yaml:"ordinal,omitempty"`
}

func (fn ImportedFunction) String() string {
	if fn.Name != nil {
		return fn.ModuleName + "." + *fn.Name
	}
	if fn.Ordinal != nil {
		return fmt.Sprintf("%s.@%d", fn.ModuleName, *fn.Ordinal)
	}
	return fn.ModuleName + ".?"
}

// Modules returns the names of the modules referenced by the module
// reference table, in table order. Relocations refer to them with 1-based
// indexes.
func (f *File) Modules() []string {
	if f.modules != nil {
		return f.modules
	}

	f.modules = make([]string, 0, f.ModuleRefCount)

	c := f.cursor("reading module reference table")
	c.seek(f.tableOffset(f.ModuleRefTable))
	offsets := make([]uint16, 0, f.ModuleRefCount)
	for i := 0; i < int(f.ModuleRefCount); i++ {
		off := c.u16()
		if c.err != nil {
			f.impLog.Errorf("module reference table truncated at %d of %d", i, f.ModuleRefCount)
			break
		}
		offsets = append(offsets, off)
	}

	imptab := f.tableOffset(f.ImportedNameTable)
	nc := f.cursor("reading imported names")
	for _, off := range offsets {
		f.modules = append(f.modules, f.names.pstring(nc, imptab+int64(off)))
	}
	return f.modules
}

// Imports returns one ImportedFunction for every import relocation, in
// segment and relocation order. Relocations naming a module that is not
// in the module reference table are logged and skipped.
func (f *File) Imports() []ImportedFunction {
	if f.imports != nil {
		return f.imports
	}

	f.imports = make([]ImportedFunction, 0)

	modules := f.Modules()
	imptab := f.tableOffset(f.ImportedNameTable)
	nc := f.cursor("reading imported names")
	for i, seg := range f.Segments() {
		for _, rel := range seg.Relocations {
			kind := rel.Kind()
			if kind != RelocImportOrdinal && kind != RelocImportName {
				continue
			}
			if rel.ModuleIndex == 0 || int(rel.ModuleIndex) > len(modules) {
				f.impLog.Errorf("segment %d relocation at %#x: module index %d out of range (%d modules)", i+1, rel.Offset, rel.ModuleIndex, len(modules))
				continue
			}
			fn := ImportedFunction{ModuleName: modules[rel.ModuleIndex-1]}
			if kind == RelocImportOrdinal {
				ord := rel.FuncIndex
				fn.Ordinal = &ord
			} else {
				name := f.names.pstring(nc, imptab+int64(rel.FuncIndex))
				fn.Name = &name
			}
			f.imports = append(f.imports, fn)
		}
	}
	return f.imports
}
