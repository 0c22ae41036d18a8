package ne

// ExportedFunction is an entry of the resident or nonresident name table.
// The first entry of each table is the module name or description, with
// ordinal 0.
type ExportedFunction struct {
	Name    string `json:"name" yaml:"name"`
	Ordinal uint16 `json:"ordinal" yaml:"ordinal"`

	// FileOffset is the file position of the code or data the ordinal
	// refers to, 0 when the entry table does not place it in a segment.
	FileOffset int64 `json:"file_offset" yaml:"file_offset"`
}

// Exports returns the resident name table, stopping at the zero length
// terminator or at the end of the file.
func (f *File) Exports() []ExportedFunction {
	if f.exports != nil {
		return f.exports
	}
	c := f.cursor("reading resident name table")
	c.seek(f.tableOffset(f.ResidentNameTable))
	f.exports = f.readNameTable(c, -1)
	return f.exports
}

// NonResidentNames returns the nonresident name table. Its offset in the
// header is relative to the start of the file.
func (f *File) NonResidentNames() []ExportedFunction {
	if f.nonresident != nil {
		return f.nonresident
	}
	if f.NonResidentNameTable == 0 || f.NonResidentNameSize == 0 {
		f.nonresident = make([]ExportedFunction, 0)
		return f.nonresident
	}
	c := f.cursor("reading nonresident name table")
	start := int64(f.NonResidentNameTable)
	c.seek(start)
	f.nonresident = f.readNameTable(c, start+int64(f.NonResidentNameSize))
	return f.nonresident
}

// readNameTable reads name/ordinal pairs until a zero length name, the end
// of the file or, when end is not negative, the offset end.
func (f *File) readNameTable(c *cursor, end int64) []ExportedFunction {
	r := make([]ExportedFunction, 0)
	for !c.eof() && (end < 0 || c.tell() < end) {
		n := int(c.u8())
		if n == 0 {
			break
		}
		name := c.read(n)
		ord := c.u16()
		if len(name) < n || c.err != nil {
			f.log.Warnf("name table truncated after %d entries", len(r))
			break
		}
		r = append(r, ExportedFunction{
			Name:       string(name),
			Ordinal:    ord,
			FileOffset: f.entryFileOffset(ord),
		})
	}
	return r
}

// ExportByOrdinal returns the resident or nonresident export with the
// given ordinal.
func (f *File) ExportByOrdinal(ord uint16) (ExportedFunction, bool) {
	for _, tab := range [][]ExportedFunction{f.Exports(), f.NonResidentNames()} {
		for i, fn := range tab {
			if i > 0 && fn.Ordinal == ord {
				return fn, true
			}
		}
	}
	return ExportedFunction{}, false
}
