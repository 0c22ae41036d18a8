package ne

import (
	"fmt"
	"sort"
)

// Entry table bundle indicators. Any other value is the 1-based number of
// the fixed segment the bundle's entries are in.
const (
	bundleUnused   = 0x00
	bundleConstant = 0xfe
	bundleMovable  = 0xff
)

// Entry point flags.
const (
	EntryExported   = 0x01
	EntrySharedData = 0x02
)

// EntryPoint is an ordinal of the entry table.
type EntryPoint struct {
	Ordinal uint16 `json:"ordinal" yaml:"ordinal"`
	Flags   uint8  `json:"flags" yaml:"flags"`
	Movable bool   `json:"movable" yaml:"movable"`

	// Segment is the 1-based segment number, 0 for constant entries whose
	// Offset is a value rather than an address.
	Segment    uint8  `json:"segment" yaml:"segment"`
	Offset     uint16 `json:"offset" yaml:"offset"`
	FileOffset int64  `json:"file_offset" yaml:"file_offset"`
}

func (e EntryPoint) String() string {
	if e.Segment == 0 {
		return fmt.Sprintf("@%d = %#04x", e.Ordinal, e.Offset)
	}
	return fmt.Sprintf("@%d = %d:%#04x", e.Ordinal, e.Segment, e.Offset)
}

// Exported reports whether the entry is exported.
func (e EntryPoint) Exported() bool {
	return e.Flags&EntryExported != 0
}

// EntryPoints returns every used ordinal of the entry table in ordinal
// order. The table is bounded by EntryTableSize.
func (f *File) EntryPoints() []EntryPoint {
	if f.entries != nil {
		return f.entries
	}

	f.entries = make([]EntryPoint, 0)

	start := f.tableOffset(f.EntryTable)
	end := start + int64(f.EntryTableSize)
	c := f.cursor("reading entry table")
	c.seek(start)

	segs := f.Segments()
	ord := 1
bundles:
	for c.tell() < end && !c.eof() {
		count := int(c.u8())
		if count == 0 || c.err != nil {
			break
		}
		ind := c.u8()
		if c.err != nil {
			break
		}
		size := int64(3)
		switch ind {
		case bundleUnused:
			ord += count
			continue
		case bundleMovable:
			size = 6
		}
		for i := 0; i < count; i++ {
			if ord > 0xffff {
				f.log.Warnf("entry table has more than 65535 ordinals")
				break bundles
			}
			if c.tell()+size > end {
				f.log.Warnf("entry table bundle at ordinal %d overruns the table", ord)
				break bundles
			}
			e := EntryPoint{Ordinal: uint16(ord), Flags: c.u8()}
			switch ind {
			case bundleMovable:
				e.Movable = true
				c.u16() // INT 3Fh
				e.Segment = c.u8()
			case bundleConstant:
			default:
				e.Segment = ind
			}
			e.Offset = c.u16()
			if c.err != nil {
				f.log.Warnf("entry table truncated at ordinal %d", ord)
				break bundles
			}
			if e.Segment != 0 && int(e.Segment) <= len(segs) {
				e.FileOffset = segs[e.Segment-1].FileOffset + int64(e.Offset)
			}
			f.entries = append(f.entries, e)
			ord++
		}
	}
	return f.entries
}

// EntryPoint returns the entry for ordinal ord.
func (f *File) EntryPoint(ord uint16) (EntryPoint, bool) {
	entries := f.EntryPoints()
	i := sort.Search(len(entries), func(i int) bool { return entries[i].Ordinal >= ord })
	if i < len(entries) && entries[i].Ordinal == ord {
		return entries[i], true
	}
	return EntryPoint{}, false
}

func (f *File) entryFileOffset(ord uint16) int64 {
	if ord == 0 {
		return 0
	}
	e, ok := f.EntryPoint(ord)
	if !ok {
		return 0
	}
	return e.FileOffset
}
