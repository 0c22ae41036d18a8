package cmds

import (
	"fmt"
	"sort"
	"strings"

	"github.com/go-delve/nedump/pkg/ne"
)

// action is something nedump can print about a file, either as a table
// or as a value for the json and yaml encoders.
type action struct {
	name  string
	help  string
	table func(p *printer, f *ne.File, opts options) error
	data  func(f *ne.File, opts options) (interface{}, error)
}

var actions = []action{
	{"header", "Print the NE header.", printHeader, headerData},
	{"segments", "Print the segment table.", printSegments, func(f *ne.File, opts options) (interface{}, error) { return f.Segments(), nil }},
	{"relocations", "Print the relocation records of every segment.", printRelocations, relocationsData},
	{"resource-directory", "Print the resource table.", printResourceDirectory, func(f *ne.File, opts options) (interface{}, error) { return f.ResourceDirectory(), nil }},
	{"resources", "Print the resources.", printResources, func(f *ne.File, opts options) (interface{}, error) { return f.Resources(), nil }},
	{"strings", "Print the STRING resources.", printStrings, stringsData},
	{"version-info", "Print the VERSION resources.", printVersionInfo, versionData},
	{"imports", "Print the imported functions.", printImports, func(f *ne.File, opts options) (interface{}, error) { return f.Imports(), nil }},
	{"exports", "Print the resident name table.", printExports, func(f *ne.File, opts options) (interface{}, error) { return f.Exports(), nil }},
	{"nonresident", "Print the nonresident name table.", printNonResident, func(f *ne.File, opts options) (interface{}, error) { return f.NonResidentNames(), nil }},
	{"entries", "Print the entry table.", printEntries, func(f *ne.File, opts options) (interface{}, error) { return f.EntryPoints(), nil }},
	{"disasm", "Disassemble the code at the entry point.", printDisasm, disasmData},
}

func lookupAction(name string) (action, bool) {
	for _, a := range actions {
		if a.name == name {
			return a, true
		}
	}
	return action{}, false
}

type headerInfo struct {
	Offset        int64  `json:"offset" yaml:"offset"`
	Library       bool   `json:"library" yaml:"library"`
	TargetOS      string `json:"target_os" yaml:"target_os"`
	Codepage      uint16 `json:"codepage" yaml:"codepage"`
	ne.FileHeader `yaml:",inline"`
}

var targetOSNames = map[uint8]string{
	ne.TargetUnknown: "unknown",
	ne.TargetOS2:     "OS/2",
	ne.TargetWindows: "Windows",
	ne.TargetDOS4:    "European DOS 4.x",
	ne.TargetWin386:  "Windows 386",
	ne.TargetBOSS:    "BOSS",
}

func targetOS(f *ne.File) string {
	if s, ok := targetOSNames[f.TargetOS]; ok {
		return s
	}
	return fmt.Sprintf("%#x", f.TargetOS)
}

func headerData(f *ne.File, opts options) (interface{}, error) {
	return headerInfo{
		Offset:     f.Offset,
		Library:    f.IsLibrary(),
		TargetOS:   targetOS(f),
		Codepage:   uint16(f.Codepage()),
		FileHeader: f.FileHeader,
	}, nil
}

func printHeader(p *printer, f *ne.File, opts options) error {
	p.title("NE header")
	w := p.table()
	seg, ip := f.StartAddress()
	kind := "program"
	if f.IsLibrary() {
		kind = "library"
	}
	fmt.Fprintf(w, "offset\t%#x\n", f.Offset)
	fmt.Fprintf(w, "linker\t%d.%d\n", f.LinkerVersion, f.LinkerRevision)
	fmt.Fprintf(w, "type\t%s for %s %d.%d\n", kind, targetOS(f), f.ExpectedWindowsVersion>>8, f.ExpectedWindowsVersion&0xff)
	fmt.Fprintf(w, "flags\t%#04x\n", f.Flags)
	fmt.Fprintf(w, "entry point\t%d:%#04x\n", seg, ip)
	fmt.Fprintf(w, "stack\t%#x\n", f.StackSize)
	fmt.Fprintf(w, "heap\t%#x\n", f.HeapSize)
	fmt.Fprintf(w, "auto data segment\t%d\n", f.AutoDataSegment)
	fmt.Fprintf(w, "segments\t%d (alignment %d)\n", f.SegmentCount, 1<<f.AlignmentShift)
	fmt.Fprintf(w, "modules\t%d\n", f.ModuleRefCount)
	fmt.Fprintf(w, "movable entries\t%d\n", f.MovableEntryCount)
	fmt.Fprintf(w, "codepage\t%d\n", f.Codepage())
	return w.Flush()
}

func printSegments(p *printer, f *ne.File, opts options) error {
	p.title("Segments")
	w := p.table()
	fmt.Fprintln(w, "#\tOFFSET\tSIZE\tMIN ALLOC\tRELOCS\tFLAGS")
	for i, seg := range f.Segments() {
		fmt.Fprintf(w, "%d\t%#08x\t%#06x\t%#06x\t%d\t%s\n", i+1, seg.FileOffset, seg.Size, seg.MinAllocSize, len(seg.Relocations), seg.FlagsString())
	}
	return w.Flush()
}

type segmentRelocations struct {
	Segment     int             `json:"segment" yaml:"segment"`
	Relocations []ne.Relocation `json:"relocations" yaml:"relocations"`
}

func relocationsData(f *ne.File, opts options) (interface{}, error) {
	r := []segmentRelocations{}
	for i, seg := range f.Segments() {
		if len(seg.Relocations) > 0 {
			r = append(r, segmentRelocations{i + 1, seg.Relocations})
		}
	}
	return r, nil
}

func printRelocations(p *printer, f *ne.File, opts options) error {
	p.title("Relocations")
	modules := f.Modules()
	module := func(idx uint16) string {
		if idx == 0 || int(idx) > len(modules) {
			return fmt.Sprintf("#%d", idx)
		}
		return modules[idx-1]
	}
	w := p.table()
	fmt.Fprintln(w, "SEGMENT\tOFFSET\tSOURCE\tTARGET")
	for i, seg := range f.Segments() {
		for _, r := range seg.Relocations {
			var target string
			switch r.Kind() {
			case ne.RelocImportOrdinal:
				target = fmt.Sprintf("%s.@%d", module(r.ModuleIndex), r.FuncIndex)
			case ne.RelocImportName:
				target = fmt.Sprintf("%s.<name at %#x>", module(r.ModuleIndex), r.FuncIndex)
			case ne.RelocInternalRef:
				target = fmt.Sprintf("%d:%#04x", r.ModuleIndex, r.FuncIndex)
			default:
				target = fmt.Sprintf("osfixup %d", r.ModuleIndex)
			}
			if r.Additive() {
				target += " (additive)"
			}
			fmt.Fprintf(w, "%d\t%#04x\t%d\t%s\n", i+1, r.Offset, r.SourceType, target)
		}
	}
	return w.Flush()
}

func printResourceDirectory(p *printer, f *ne.File, opts options) error {
	dir := f.ResourceDirectory()
	p.title(fmt.Sprintf("Resource table (shift %d)", dir.Shift))
	w := p.table()
	fmt.Fprintln(w, "TYPE\tNAME\tOFFSET\tSIZE\tFLAGS")
	for _, g := range dir.Groups {
		fmt.Fprintf(w, "%s\t(%d)\t\t\t\n", g.Type, g.Count)
		for _, e := range g.Entries {
			fmt.Fprintf(w, "\t%s\t%#08x\t%#x\t%#04x\n", e.Name, e.Offset, e.Size, e.Flags)
		}
	}
	return w.Flush()
}

func printResources(p *printer, f *ne.File, opts options) error {
	p.title("Resources")
	w := p.table()
	fmt.Fprintln(w, "TYPE\tNAME\tOFFSET\tSIZE\tCONTENT")
	for _, res := range f.Resources() {
		fmt.Fprintf(w, "%s\t%s\t%#08x\t%#x\t%s\n", res.Type, res.Name, res.FileOffset, res.Size, describePayload(res.Data))
	}
	return w.Flush()
}

func describePayload(pl ne.Payload) string {
	switch pl := pl.(type) {
	case ne.StringTable:
		return fmt.Sprintf("%d strings", len(pl))
	case *ne.VersionInfo:
		if pl.Fixed != nil {
			return "version " + pl.Fixed.FileVersion()
		}
		return "version"
	case ne.RawData:
		const n = 16
		if len(pl) > n {
			return fmt.Sprintf("% x ...", []byte(pl[:n]))
		}
		return fmt.Sprintf("% x", []byte(pl))
	}
	return ""
}

type namedStrings struct {
	Name    string   `json:"name" yaml:"name"`
	Strings []string `json:"strings" yaml:"strings"`
}

func stringsData(f *ne.File, opts options) (interface{}, error) {
	r := []namedStrings{}
	for _, res := range f.ResourcesOfType("STRING") {
		if strs, ok := res.Data.(ne.StringTable); ok {
			r = append(r, namedStrings{res.Name, strs})
		}
	}
	return r, nil
}

func printStrings(p *printer, f *ne.File, opts options) error {
	p.title("String tables")
	w := p.table()
	for _, res := range f.ResourcesOfType("STRING") {
		strs, ok := res.Data.(ne.StringTable)
		if !ok {
			continue
		}
		for i, s := range strs {
			if s == "" {
				continue
			}
			id := fmt.Sprintf("%s:%d", res.Name, i)
			if res.ID != nil {
				// string ids are (block-1)*16 + index
				id = fmt.Sprintf("%d", (int(*res.ID)-1)*16+i)
			}
			fmt.Fprintf(w, "%s\t%q\n", id, s)
		}
	}
	return w.Flush()
}

type namedVersion struct {
	Name         string            `json:"name" yaml:"name"`
	FileVersion  string            `json:"file_version,omitempty" yaml:"file_version,omitempty"`
	Strings      map[string]string `json:"strings" yaml:"strings"`
	Translations []ne.Translation  `json:"translations" yaml:"translations"`
}

func versionData(f *ne.File, opts options) (interface{}, error) {
	r := []namedVersion{}
	for _, res := range f.ResourcesOfType("VERSION") {
		vi, ok := res.Data.(*ne.VersionInfo)
		if !ok {
			continue
		}
		v := namedVersion{Name: res.Name, Strings: vi.Strings(), Translations: vi.Translations()}
		if vi.Fixed != nil {
			v.FileVersion = vi.Fixed.FileVersion()
		}
		r = append(r, v)
	}
	return r, nil
}

func printVersionInfo(p *printer, f *ne.File, opts options) error {
	data, _ := versionData(f, opts)
	for _, v := range data.([]namedVersion) {
		p.title("Version " + v.Name)
		w := p.table()
		if v.FileVersion != "" {
			fmt.Fprintf(w, "FileVersion\t%s\n", v.FileVersion)
		}
		keys := make([]string, 0, len(v.Strings))
		for k := range v.Strings {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(w, "%s\t%s\n", k, v.Strings[k])
		}
		for _, tr := range v.Translations {
			fmt.Fprintf(w, "Translation\t%#04x %d\n", tr.Language, tr.Codepage)
		}
		if err := w.Flush(); err != nil {
			return err
		}
	}
	return nil
}

func printImports(p *printer, f *ne.File, opts options) error {
	p.title("Imports")
	w := p.table()
	fmt.Fprintln(w, "MODULE\tNAME\tORDINAL")
	for _, fn := range f.Imports() {
		name, ord := "", ""
		if fn.Name != nil {
			name = *fn.Name
		}
		if fn.Ordinal != nil {
			ord = fmt.Sprintf("%d", *fn.Ordinal)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\n", fn.ModuleName, name, ord)
	}
	return w.Flush()
}

func printNameTable(p *printer, title string, names []ne.ExportedFunction) error {
	p.title(title)
	w := p.table()
	fmt.Fprintln(w, "ORDINAL\tNAME\tOFFSET")
	for _, fn := range names {
		off := ""
		if fn.FileOffset != 0 {
			off = fmt.Sprintf("%#08x", fn.FileOffset)
		}
		fmt.Fprintf(w, "%d\t%s\t%s\n", fn.Ordinal, fn.Name, off)
	}
	return w.Flush()
}

func printExports(p *printer, f *ne.File, opts options) error {
	return printNameTable(p, "Resident names", f.Exports())
}

func printNonResident(p *printer, f *ne.File, opts options) error {
	return printNameTable(p, "Nonresident names", f.NonResidentNames())
}

func printEntries(p *printer, f *ne.File, opts options) error {
	p.title("Entry table")
	w := p.table()
	fmt.Fprintln(w, "ORDINAL\tSEGMENT\tOFFSET\tFLAGS\tFILE OFFSET")
	for _, e := range f.EntryPoints() {
		var flags []string
		if e.Exported() {
			flags = append(flags, "EXPORTED")
		}
		if e.Flags&ne.EntrySharedData != 0 {
			flags = append(flags, "SHARED")
		}
		if e.Movable {
			flags = append(flags, "MOVABLE")
		}
		seg := "const"
		if e.Segment != 0 {
			seg = fmt.Sprintf("%d", e.Segment)
		}
		fmt.Fprintf(w, "%d\t%s\t%#04x\t%s\t%#08x\n", e.Ordinal, seg, e.Offset, strings.Join(flags, "|"), e.FileOffset)
	}
	return w.Flush()
}

type instruction struct {
	Address string `json:"address" yaml:"address"`
	Bytes   string `json:"bytes" yaml:"bytes"`
	Text    string `json:"text" yaml:"text"`
}

func disasmData(f *ne.File, opts options) (interface{}, error) {
	insts, err := f.DisassembleEntry(opts.disasmCount)
	if err == ne.ErrNoEntryPoint {
		return []instruction{}, nil
	}
	if err != nil {
		return nil, err
	}
	r := make([]instruction, 0, len(insts))
	for _, inst := range insts {
		r = append(r, instruction{
			Address: fmt.Sprintf("%d:%04x", inst.Segment, inst.Offset),
			Bytes:   fmt.Sprintf("%x", inst.Bytes),
			Text:    inst.Text,
		})
	}
	return r, nil
}

func printDisasm(p *printer, f *ne.File, opts options) error {
	p.title("Entry point")
	data, err := disasmData(f, opts)
	if err != nil {
		return err
	}
	w := p.table()
	for _, inst := range data.([]instruction) {
		fmt.Fprintf(w, "%s\t%s\t%s\n", inst.Address, inst.Bytes, inst.Text)
	}
	return w.Flush()
}

func printSymbols(p *printer, syms []ne.Symbol) error {
	w := p.table()
	fmt.Fprintln(w, "NAME\tKIND\tMODULE\tORDINAL\tOFFSET")
	for _, s := range syms {
		ord, off := "", ""
		if s.Kind != ne.SymbolImport {
			ord = fmt.Sprintf("%d", s.Ordinal)
			off = fmt.Sprintf("%#08x", s.FileOffset)
		}
		fmt.Fprintf(w, "%s\t%v\t%s\t%s\t%s\n", s.Name, s.Kind, s.Module, ord, off)
	}
	return w.Flush()
}
