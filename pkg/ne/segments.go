package ne

import (
	"fmt"
	"strings"
)

// Segment flags.
const (
	SegmentData      = 0x0001 // data segment, code if clear
	SegmentIterated  = 0x0008
	SegmentMovable   = 0x0010
	SegmentShared    = 0x0020
	SegmentPreload   = 0x0040
	SegmentReadOnly  = 0x0080 // execute-only for code segments
	SegmentRelocInfo = 0x0100 // relocation records follow the segment data
	SegmentDiscard   = 0x1000
)

// segmentRecord is one entry of the segment table.
type segmentRecord struct {
	Offset       uint16 // in units of 1<<AlignmentShift bytes, 0 means no data
	Size         uint16
	Flags        uint16
	MinAllocSize uint16
}

// Segment is a decoded entry of the segment table together with its
// relocation records.
type Segment struct {
	Offset       uint16 `json:"offset" yaml:"offset"`
	Size         uint16 `json:"size" yaml:"size"`
	Flags        uint16 `json:"flags" yaml:"flags"`
	MinAllocSize uint16 `json:"min_alloc_size" yaml:"min_alloc_size"`

	// FileOffset is Offset shifted by the header's alignment shift.
	FileOffset  int64        `json:"file_offset" yaml:"file_offset"`
	Relocations []Relocation `json:"relocations" yaml:"relocations"`
}

// IsData reports whether s is a data segment.
func (s *Segment) IsData() bool {
	return s.Flags&SegmentData != 0
}

// Length returns the number of bytes of segment data in the file, a Size
// of 0 stands for 64K.
func (s *Segment) Length() int {
	if s.Size == 0 {
		return 0x10000
	}
	return int(s.Size)
}

// HasRelocations reports whether relocation records follow the segment's
// data.
func (s *Segment) HasRelocations() bool {
	return s.Flags&SegmentRelocInfo != 0
}

// FlagsString returns a description of s.Flags.
func (s *Segment) FlagsString() string {
	out := []string{"CODE"}
	if s.IsData() {
		out[0] = "DATA"
	}
	for _, fl := range []struct {
		bit  uint16
		name string
	}{
		{SegmentIterated, "ITERATED"},
		{SegmentMovable, "MOVABLE"},
		{SegmentShared, "SHARED"},
		{SegmentPreload, "PRELOAD"},
		{SegmentReadOnly, "RO"},
		{SegmentRelocInfo, "RELOCINFO"},
		{SegmentDiscard, "DISCARDABLE"},
	} {
		if s.Flags&fl.bit != 0 {
			out = append(out, fl.name)
		}
	}
	return strings.Join(out, "|")
}

// Relocation target kinds, the low two bits of Relocation.Type.
const (
	RelocInternalRef   = 0
	RelocImportOrdinal = 1
	RelocImportName    = 2
	RelocOSFixup       = 3
	RelocAdditive      = 0x04
)

// Relocation is one fixup record following a segment's data.
//
// For RelocImportOrdinal records ModuleIndex is a 1-based index into the
// module reference table and FuncIndex is the imported ordinal. For
// RelocImportName records FuncIndex is an offset into the imported name
// table.
type Relocation struct {
	SourceType  uint8  `json:"source_type" yaml:"source_type"`
	Type        uint8  `json:"type" yaml:"type"`
	Offset      uint16 `json:"offset" yaml:"offset"` // offset of the fixup within the segment
	ModuleIndex uint16 `json:"module_idx" yaml:"module_idx"`
	FuncIndex   uint16 `json:"func_idx" yaml:"func_idx"`
}

// Kind returns the target kind of the relocation.
func (r Relocation) Kind() uint8 {
	return r.Type & 3
}

// Additive reports whether the target is added to the fixup location
// instead of replacing it.
func (r Relocation) Additive() bool {
	return r.Type&RelocAdditive != 0
}

func (r Relocation) String() string {
	switch r.Kind() {
	case RelocImportOrdinal:
		return fmt.Sprintf("%#04x: import module %d ordinal %d", r.Offset, r.ModuleIndex, r.FuncIndex)
	case RelocImportName:
		return fmt.Sprintf("%#04x: import module %d name at %#x", r.Offset, r.ModuleIndex, r.FuncIndex)
	case RelocInternalRef:
		return fmt.Sprintf("%#04x: internal %d:%#x", r.Offset, r.ModuleIndex, r.FuncIndex)
	}
	return fmt.Sprintf("%#04x: osfixup %d", r.Offset, r.ModuleIndex)
}

// Segments returns the segment table in table order. Segments with the
// RELOCINFO flag carry the relocation records stored after their data.
func (f *File) Segments() []Segment {
	if f.segments != nil {
		return f.segments
	}

	f.segments = make([]Segment, 0, f.SegmentCount)

	c := f.cursor("reading segment table")
	base := f.tableOffset(f.SegmentTable)
	for i := 0; i < int(f.SegmentCount); i++ {
		// re-seek every time, reading relocations moves the cursor
		c.seek(base + int64(i)*8)
		var rec segmentRecord
		if !c.record(&rec) {
			f.log.Errorf("segment table truncated at entry %d of %d: %v", i, f.SegmentCount, c.err)
			break
		}
		seg := Segment{
			Offset:       rec.Offset,
			Size:         rec.Size,
			Flags:        rec.Flags,
			MinAllocSize: rec.MinAllocSize,
			FileOffset:   int64(rec.Offset) << f.alignmentShift(),
			Relocations:  []Relocation{},
		}
		if seg.HasRelocations() {
			seg.Relocations = f.readRelocations(i, seg.FileOffset+int64(seg.Size))
		}
		f.segments = append(f.segments, seg)
	}

	return f.segments
}

// readRelocations reads the relocation count and records at off.
func (f *File) readRelocations(segIdx int, off int64) []Relocation {
	c := f.cursor(fmt.Sprintf("reading relocations of segment %d", segIdx+1))
	c.seek(off)
	n := c.u16()
	if c.err != nil {
		f.log.Errorf("no relocation count for segment %d at %#x", segIdx+1, off)
		return []Relocation{}
	}
	relocs := make([]Relocation, 0, n)
	for i := 0; i < int(n); i++ {
		var r Relocation
		if !c.record(&r) {
			f.log.Errorf("relocations of segment %d truncated at %d of %d", segIdx+1, i, n)
			break
		}
		relocs = append(relocs, r)
	}
	return relocs
}

// alignmentShift returns the logical sector alignment shift applied to
// segment offsets.
func (f *File) alignmentShift() uint {
	return uint(f.AlignmentShift)
}
