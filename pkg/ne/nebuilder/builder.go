// Package nebuilder builds NE images with arbitrary contents, for tests.
//
// An image is laid out as a 64 byte MZ stub, the NE header, the header
// relative tables in the order segments, resources, resident names, module
// references, imported names, entries, then the nonresident name table,
// the segment data with its relocations and finally the resource data.
package nebuilder

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

const (
	stubSize   = 0x40
	headerSize = 0x40
)

// Reloc is a relocation record appended after a segment's data.
type Reloc struct {
	SourceType  uint8
	Type        uint8
	Offset      uint16
	ModuleIndex uint16
	FuncIndex   uint16
}

// ResID identifies a resource type or name, either by number or by string.
type ResID struct {
	ID   uint16
	Name string
}

// ID returns a numeric resource identifier.
func ID(id uint16) ResID { return ResID{ID: id} }

// Name returns a string resource identifier.
func Name(name string) ResID { return ResID{Name: name} }

type segment struct {
	flags   uint16
	data    []byte
	relocs  []Reloc
	minSize uint16
}

type resource struct {
	name  ResID
	flags uint16
	data  []byte
}

type resGroup struct {
	typ       ResID
	resources []resource
}

type name struct {
	name string
	ord  uint16
}

type entry struct {
	unused  int
	seg     uint8
	flags   uint8
	offset  uint16
	movable bool
}

// Builder accumulates the contents of an NE image.
type Builder struct {
	// AlignShift is written to ne_align, segment data is aligned to
	// 1<<AlignShift bytes.
	AlignShift uint16
	// ResourceShift is the resource table's alignment shift, resource data
	// is aligned to 1<<ResourceShift bytes.
	ResourceShift uint16

	Flags    uint16
	TargetOS uint8

	csip uint32

	segments    []segment
	groups      []resGroup
	resident    []name
	nonresident []name
	modules     []uint16
	imptab      bytes.Buffer
	entries     []entry
}

// Offsets are the absolute file positions of the parts of a built image.
type Offsets struct {
	Header               int64
	SegmentTable         int64
	ResourceTable        int64
	ResidentNameTable    int64
	ModuleRefTable       int64
	ImportedNameTable    int64
	EntryTable           int64
	NonResidentNameTable int64
	Segments             []int64
	Resources            []int64 // in resource table order
}

// New returns a Builder for a module called module. The module name is
// the first entry of the resident name table.
func New(module string) *Builder {
	b := &Builder{AlignShift: 4, TargetOS: 2}
	b.resident = append(b.resident, name{module, 0})
	b.imptab.WriteByte(0)
	return b
}

// AddSegment adds a segment with the given flags and contents and returns
// its 1-based number. Segments with relocations get the RELOCINFO flag.
func (b *Builder) AddSegment(flags uint16, data []byte, relocs ...Reloc) int {
	if len(relocs) > 0 {
		flags |= 0x0100
	}
	b.segments = append(b.segments, segment{flags: flags, data: data, relocs: relocs, minSize: uint16(len(data))})
	return len(b.segments)
}

// SetEntryPoint sets the initial CS:IP.
func (b *Builder) SetEntryPoint(seg int, ip uint16) {
	b.csip = uint32(seg)<<16 | uint32(ip)
}

// AddModule adds a module reference and returns its 1-based index.
func (b *Builder) AddModule(module string) uint16 {
	b.modules = append(b.modules, b.ImportedName(module))
	return uint16(len(b.modules))
}

// ImportedName appends name to the imported name table and returns its
// offset within the table.
func (b *Builder) ImportedName(name string) uint16 {
	off := uint16(b.imptab.Len())
	writePascal(&b.imptab, name)
	return off
}

// AddExport adds an entry to the resident name table.
func (b *Builder) AddExport(sym string, ord uint16) {
	b.resident = append(b.resident, name{sym, ord})
}

// AddNonResident adds an entry to the nonresident name table. The first
// entry is conventionally the module description, with ordinal 0.
func (b *Builder) AddNonResident(sym string, ord uint16) {
	b.nonresident = append(b.nonresident, name{sym, ord})
}

// AddEntry assigns the next ordinal to offset within segment seg. A seg of
// 0 adds a constant entry. It returns the ordinal.
func (b *Builder) AddEntry(seg uint8, flags uint8, offset uint16, movable bool) uint16 {
	b.entries = append(b.entries, entry{seg: seg, flags: flags, offset: offset, movable: movable})
	return b.nextOrdinal() - 1
}

// SkipOrdinals leaves n ordinals unused.
func (b *Builder) SkipOrdinals(n int) {
	b.entries = append(b.entries, entry{unused: n})
}

func (b *Builder) nextOrdinal() uint16 {
	ord := 1
	for _, e := range b.entries {
		if e.unused > 0 {
			ord += e.unused
		} else {
			ord++
		}
	}
	return uint16(ord)
}

// AddResource adds a resource. Resources of the same type are grouped in
// the order their type was first added.
func (b *Builder) AddResource(typ, name ResID, flags uint16, data []byte) {
	res := resource{name: name, flags: flags, data: data}
	for i := range b.groups {
		if b.groups[i].typ == typ {
			b.groups[i].resources = append(b.groups[i].resources, res)
			return
		}
	}
	b.groups = append(b.groups, resGroup{typ: typ, resources: []resource{res}})
}

// Build lays out the image and returns it with the positions of its
// parts.
func (b *Builder) Build() ([]byte, Offsets, error) {
	var off Offsets
	if b.ResourceShift > 15 {
		return nil, off, fmt.Errorf("resource shift %d too large to build", b.ResourceShift)
	}

	out := new(bytes.Buffer)
	out.Write(make([]byte, stubSize))
	off.Header = stubSize

	tables := new(bytes.Buffer)
	rel := func() uint16 { return uint16(headerSize + tables.Len()) }

	// segment table, offsets patched once the data is placed
	segtab := rel()
	tables.Write(make([]byte, 8*len(b.segments)))

	rsrctab := rel()
	resEntryPos := b.writeResourceTable(tables, int(rsrctab))

	restab := rel()
	writeNameTable(tables, b.resident)

	modtab := rel()
	for _, m := range b.modules {
		binary.Write(tables, binary.LittleEndian, m)
	}

	imptab := rel()
	tables.Write(b.imptab.Bytes())

	enttab := rel()
	b.writeEntryTable(tables)
	cbenttab := rel() - enttab

	nrestab := int64(stubSize + headerSize + tables.Len())
	nonres := new(bytes.Buffer)
	if len(b.nonresident) > 0 {
		writeNameTable(nonres, b.nonresident)
	}

	body := new(bytes.Buffer)
	body.Write(tables.Bytes())
	body.Write(nonres.Bytes())

	// segment data
	segAlign := int64(1) << b.AlignShift
	for i, seg := range b.segments {
		pos := padTo(body, stubSize, segAlign)
		off.Segments = append(off.Segments, pos)
		body.Write(seg.data)
		if len(seg.relocs) > 0 {
			binary.Write(body, binary.LittleEndian, uint16(len(seg.relocs)))
			for _, r := range seg.relocs {
				binary.Write(body, binary.LittleEndian, r)
			}
		}
		rec := body.Bytes()[int(segtab)-headerSize+8*i:]
		binary.LittleEndian.PutUint16(rec[0:], uint16(pos>>b.AlignShift))
		binary.LittleEndian.PutUint16(rec[2:], uint16(len(seg.data)))
		binary.LittleEndian.PutUint16(rec[4:], seg.flags)
		binary.LittleEndian.PutUint16(rec[6:], seg.minSize)
	}

	// resource data
	resAlign := int64(1) << b.ResourceShift
	k := 0
	for _, g := range b.groups {
		for _, res := range g.resources {
			pos := padTo(body, stubSize, resAlign)
			off.Resources = append(off.Resources, pos)
			body.Write(res.data)
			size := (int64(len(res.data)) + resAlign - 1) / resAlign
			rec := body.Bytes()[resEntryPos[k]-headerSize:]
			binary.LittleEndian.PutUint16(rec[0:], uint16(pos>>b.ResourceShift))
			binary.LittleEndian.PutUint16(rec[2:], uint16(size))
			k++
		}
	}
	padTo(body, stubSize, resAlign)

	hdr := header{
		Magic:                [2]byte{'N', 'E'},
		LinkerVersion:        5,
		LinkerRevision:       10,
		EntryTable:           enttab,
		EntryTableSize:       cbenttab,
		Flags:                b.Flags,
		CSIP:                 b.csip,
		SegmentCount:         uint16(len(b.segments)),
		ModuleRefCount:       uint16(len(b.modules)),
		NonResidentNameSize:  uint16(nonres.Len()),
		SegmentTable:         segtab,
		ResourceTable:        rsrctab,
		ResidentNameTable:    restab,
		ModuleRefTable:       modtab,
		ImportedNameTable:    imptab,
		NonResidentNameTable: uint32(nrestab),
		AlignmentShift:       b.AlignShift,
		TargetOS:             b.TargetOS,
		ExpectedVersion:      0x030a,
	}
	if nonres.Len() == 0 {
		hdr.NonResidentNameTable = 0
	}

	stub := out.Bytes()
	stub[0], stub[1] = 'M', 'Z'
	binary.LittleEndian.PutUint32(stub[0x3c:], stubSize)
	if err := binary.Write(out, binary.LittleEndian, &hdr); err != nil {
		return nil, off, err
	}
	out.Write(body.Bytes())

	off.SegmentTable = stubSize + int64(segtab)
	off.ResourceTable = stubSize + int64(rsrctab)
	off.ResidentNameTable = stubSize + int64(restab)
	off.ModuleRefTable = stubSize + int64(modtab)
	off.ImportedNameTable = stubSize + int64(imptab)
	off.EntryTable = stubSize + int64(enttab)
	off.NonResidentNameTable = int64(hdr.NonResidentNameTable)

	return out.Bytes(), off, nil
}

// writeResourceTable writes the resource table at header relative offset
// base and returns the header relative positions of each entry's offset
// field, to be patched when the data is placed.
func (b *Builder) writeResourceTable(buf *bytes.Buffer, base int) []int {
	start := buf.Len()
	binary.Write(buf, binary.LittleEndian, b.ResourceShift)

	// names go after the table, compute where
	tableLen := 2 + 2 // shift and terminator
	for _, g := range b.groups {
		tableLen += 8 + 12*len(g.resources)
	}
	names := new(bytes.Buffer)
	nameID := func(id ResID) uint16 {
		if id.Name == "" {
			return id.ID | 0x8000
		}
		off := uint16(tableLen + names.Len())
		writePascal(names, id.Name)
		return off
	}

	var pos []int
	for _, g := range b.groups {
		binary.Write(buf, binary.LittleEndian, nameID(g.typ))
		binary.Write(buf, binary.LittleEndian, uint16(len(g.resources)))
		binary.Write(buf, binary.LittleEndian, uint32(0))
		for _, res := range g.resources {
			pos = append(pos, base+buf.Len()-start)
			binary.Write(buf, binary.LittleEndian, uint16(0)) // offset
			binary.Write(buf, binary.LittleEndian, uint16(0)) // size
			binary.Write(buf, binary.LittleEndian, res.flags)
			binary.Write(buf, binary.LittleEndian, nameID(res.name))
			binary.Write(buf, binary.LittleEndian, uint32(0))
		}
	}
	binary.Write(buf, binary.LittleEndian, uint16(0))
	buf.Write(names.Bytes())
	buf.WriteByte(0)
	return pos
}

// writeEntryTable groups consecutive entries of the same kind into
// bundles.
func (b *Builder) writeEntryTable(buf *bytes.Buffer) {
	for i := 0; i < len(b.entries); {
		e := b.entries[i]
		if e.unused > 0 {
			for n := e.unused; n > 0; n -= 255 {
				buf.WriteByte(byte(minInt(n, 255)))
				buf.WriteByte(0)
			}
			i++
			continue
		}
		ind := bundleIndicator(e)
		j := i
		for j < len(b.entries) && j-i < 255 && b.entries[j].unused == 0 && bundleIndicator(b.entries[j]) == ind {
			j++
		}
		buf.WriteByte(byte(j - i))
		buf.WriteByte(ind)
		for _, e := range b.entries[i:j] {
			buf.WriteByte(e.flags)
			if e.movable {
				buf.Write([]byte{0xcd, 0x3f})
				buf.WriteByte(e.seg)
			}
			binary.Write(buf, binary.LittleEndian, e.offset)
		}
		i = j
	}
	buf.WriteByte(0)
}

func bundleIndicator(e entry) byte {
	switch {
	case e.movable:
		return 0xff
	case e.seg == 0:
		return 0xfe
	}
	return e.seg
}

func writeNameTable(buf *bytes.Buffer, names []name) {
	for _, n := range names {
		writePascal(buf, n.name)
		binary.Write(buf, binary.LittleEndian, n.ord)
	}
	buf.WriteByte(0)
}

func writePascal(buf *bytes.Buffer, s string) {
	buf.WriteByte(byte(len(s)))
	buf.WriteString(s)
}

// padTo pads buf so that base+buf.Len() is a multiple of align and
// returns that absolute position.
func padTo(buf *bytes.Buffer, base int64, align int64) int64 {
	pos := base + headerSize + int64(buf.Len())
	if rem := pos % align; rem != 0 {
		buf.Write(make([]byte, align-rem))
		pos += align - rem
	}
	return pos
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

type header struct {
	Magic                [2]byte
	LinkerVersion        uint8
	LinkerRevision       uint8
	EntryTable           uint16
	EntryTableSize       uint16
	CRC                  uint32
	Flags                uint16
	AutoDataSegment      uint16
	HeapSize             uint16
	StackSize            uint16
	CSIP                 uint32
	SSSP                 uint32
	SegmentCount         uint16
	ModuleRefCount       uint16
	NonResidentNameSize  uint16
	SegmentTable         uint16
	ResourceTable        uint16
	ResidentNameTable    uint16
	ModuleRefTable       uint16
	ImportedNameTable    uint16
	NonResidentNameTable uint32
	MovableEntryCount    uint16
	AlignmentShift       uint16
	ResourceSegmentCount uint16
	TargetOS             uint8
	OtherFlags           uint8
	ReturnThunks         uint16
	SegmentRefBytes      uint16
	SwapArea             uint16
	ExpectedVersion      uint16
}
