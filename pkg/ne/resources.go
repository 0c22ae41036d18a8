package ne

import (
	"fmt"
)

// maxResourceShift is the largest resource alignment shift accepted.
// Larger values can only come from a corrupt table.
const maxResourceShift = 16

// stringTableSize is the number of strings in a STRING resource block.
const stringTableSize = 16

type resourceGroupRecord struct {
	TypeID   uint16
	Count    uint16
	Reserved uint32
}

type resourceEntryRecord struct {
	Offset     uint16
	Size       uint16
	Flags      uint16
	NameOffset uint16
	Reserved   uint32
}

// Resource entry flags.
const (
	ResourceMovable = 0x0010
	ResourcePure    = 0x0020
	ResourcePreload = 0x0040
)

// ResourceDirectory is the decoded resource table.
type ResourceDirectory struct {
	Shift  uint16          `json:"shift" yaml:"shift"`
	Groups []ResourceGroup `json:"groups" yaml:"groups"`
}

// ResourceGroup holds the resources of one type.
type ResourceGroup struct {
	TypeID   uint16 `json:"type_id" yaml:"type_id"`
	Count    uint16 `json:"count" yaml:"count"`
	Reserved uint32 `json:"reserved" yaml:"reserved"`

	// Type is the type's canonical name for well-known numeric types,
	// "#id" for other numeric types and the type string otherwise.
	Type    string          `json:"type" yaml:"type"`
	Entries []ResourceEntry `json:"entries" yaml:"entries"`
}

// ResourceEntry is one resource of a group. Offset and Size are in bytes,
// already scaled by the directory's shift.
type ResourceEntry struct {
	Offset     int64  `json:"offset" yaml:"offset"`
	Size       int64  `json:"size" yaml:"size"`
	Flags      uint16 `json:"flags" yaml:"flags"`
	NameOffset uint16 `json:"name_offset" yaml:"name_offset"`
	Reserved   uint32 `json:"reserved" yaml:"reserved"`
	Name       string `json:"name" yaml:"name"`
}

// Resource is a flattened resource with its decoded payload.
type Resource struct {
	Type       string  `json:"type" yaml:"type"`
	Name       string  `json:"name" yaml:"name"`
	ID         *uint16 `json:"id,omitempty" yaml:"id,omitempty"` // set for resources named by number
	FileOffset int64   `json:"file_offset" yaml:"file_offset"`
	Size       int64   `json:"size" yaml:"size"`
	Flags      uint16  `json:"flags" yaml:"flags"`
	Reserved   uint32  `json:"reserved" yaml:"reserved"`
	Data       Payload `json:"data" yaml:"data"`
}

// Payload is the decoded content of a resource: a StringTable, a
// *VersionInfo or RawData.
type Payload interface {
	payload()
}

// StringTable is the content of a STRING resource, up to 16 strings.
type StringTable []string

// RawData is the content of a resource of a type that is not decoded.
type RawData []byte

func (StringTable) payload() {}
func (RawData) payload()     {}

// ResourceDirectory returns the resource table. An invalid alignment shift
// yields an empty directory, a truncated table yields the groups and
// entries read before the end of the file.
func (f *File) ResourceDirectory() *ResourceDirectory {
	if f.resdir != nil {
		return f.resdir
	}

	f.resdir = &ResourceDirectory{Groups: []ResourceGroup{}}

	if f.ResourceTable == f.ResidentNameTable {
		f.resLog.Debugf("no resource table")
		return f.resdir
	}

	base := f.tableOffset(f.ResourceTable)
	c := f.cursor("reading resource table")
	c.seek(base)
	shift := c.u16()
	if c.err != nil {
		f.resLog.Errorf("resource table at %#x: %v", base, c.err)
		return f.resdir
	}
	if shift > maxResourceShift {
		f.resLog.Errorf("invalid resource alignment shift %d", shift)
		return f.resdir
	}
	f.resdir.Shift = shift

	groups := f.readResourceGroups(c)

	nc := f.cursor("reading resource names")
	for i := range groups {
		grp := &groups[i]
		grp.Type = f.resourceTypeName(nc, base, grp.TypeID)
		for j := range grp.Entries {
			e := &grp.Entries[j]
			e.Name = f.resourceName(nc, base, e.NameOffset)
			e.Offset <<= shift
			e.Size <<= shift
		}
	}

	f.resdir.Groups = groups
	return f.resdir
}

// readResourceGroups reads groups until the zero type terminator or the
// end of the file.
func (f *File) readResourceGroups(c *cursor) []ResourceGroup {
	groups := []ResourceGroup{}
	for !c.eof() {
		var rec resourceGroupRecord
		if !c.record(&rec) {
			f.resLog.Warnf("resource table truncated after %d groups", len(groups))
			break
		}
		if rec.TypeID == 0 {
			break
		}
		grp := ResourceGroup{
			TypeID:   rec.TypeID,
			Count:    rec.Count,
			Reserved: rec.Reserved,
			Entries:  make([]ResourceEntry, 0),
		}
		for i := 0; i < int(rec.Count) && !c.eof(); i++ {
			var e resourceEntryRecord
			if !c.record(&e) {
				break
			}
			grp.Entries = append(grp.Entries, ResourceEntry{
				Offset:     int64(e.Offset),
				Size:       int64(e.Size),
				Flags:      e.Flags,
				NameOffset: e.NameOffset,
				Reserved:   e.Reserved,
			})
		}
		if len(grp.Entries) < int(rec.Count) {
			f.resLog.Warnf("resource group %d truncated: %d of %d entries", len(groups), len(grp.Entries), rec.Count)
		}
		groups = append(groups, grp)
		if c.err != nil {
			break
		}
	}
	return groups
}

func (f *File) resourceTypeName(c *cursor, base int64, id uint16) string {
	if id&0x8000 == 0 {
		return f.names.pstring(c, base+int64(id))
	}
	id &= 0x7fff
	if name, ok := ResourceTypeName(id); ok {
		return name
	}
	return numericName(id)
}

func (f *File) resourceName(c *cursor, base int64, id uint16) string {
	if id&0x8000 == 0 {
		return f.names.pstring(c, base+int64(id))
	}
	return numericName(id & 0x7fff)
}

// Resources returns every resource in table order with its payload
// decoded. Resources are clamped to the file, the ones starting past its
// end are dropped.
func (f *File) Resources() []Resource {
	if f.resources != nil {
		return f.resources
	}

	resources := make([]Resource, 0)
	for _, grp := range f.ResourceDirectory().Groups {
		for _, e := range grp.Entries {
			res := Resource{
				Type:       grp.Type,
				Name:       e.Name,
				FileOffset: e.Offset,
				Size:       e.Size,
				Flags:      e.Flags,
				Reserved:   e.Reserved,
			}
			if e.NameOffset&0x8000 != 0 {
				id := e.NameOffset & 0x7fff
				res.ID = &id
			}
			if !f.clampResource(&res) {
				continue
			}
			resources = append(resources, res)
		}
	}

	if cp, ok := f.detectCodepage(resources); ok {
		f.resLog.Infof("codepage %d declared in version information", cp)
		f.codepage = cp
	} else {
		f.resLog.Infof("no codepage declared, using %d", f.defaultCodepage)
		f.codepage = f.defaultCodepage
	}

	for i := range resources {
		if resources[i].Data == nil {
			resources[i].Data = f.parsePayload(&resources[i], f.codepage)
		}
	}

	f.resources = resources
	return f.resources
}

// ResourcesOfType returns the resources whose type name is typ.
func (f *File) ResourcesOfType(typ string) []Resource {
	r := []Resource{}
	for _, res := range f.Resources() {
		if res.Type == typ {
			r = append(r, res)
		}
	}
	return r
}

func (f *File) clampResource(res *Resource) bool {
	if res.FileOffset > f.size {
		f.resLog.Warnf("resource %s/%s at %#x is past the end of the file (%#x), skipped", res.Type, res.Name, res.FileOffset, f.size)
		return false
	}
	if end := res.FileOffset + res.Size; end > f.size {
		f.resLog.Warnf("resource %s/%s at %#x truncated from %d to %d bytes", res.Type, res.Name, res.FileOffset, res.Size, f.size-res.FileOffset)
		res.Size = f.size - res.FileOffset
	}
	return true
}

type payloadParser func(f *File, c *cursor, res *Resource, cp Codepage) Payload

var payloadParsers = map[string]payloadParser{
	"STRING":  parseStringTable,
	"VERSION": parseVersionPayload,
}

func (f *File) parsePayload(res *Resource, cp Codepage) Payload {
	parse, ok := payloadParsers[res.Type]
	if !ok {
		parse = parseRaw
	}
	c := f.cursor(fmt.Sprintf("reading %s resource %s", res.Type, res.Name))
	c.seek(res.FileOffset)
	return parse(f, c, res, cp)
}

func parseRaw(f *File, c *cursor, res *Resource, cp Codepage) Payload {
	b := c.read(int(res.Size))
	if b == nil {
		b = []byte{}
	}
	return RawData(b)
}

// parseStringTable reads up to 16 length-prefixed strings. A string that
// claims more characters than are left in the resource is cut to what is
// left.
func parseStringTable(f *File, c *cursor, res *Resource, cp Codepage) Payload {
	end := res.FileOffset + res.Size
	strs := make(StringTable, 0, stringTableSize)
	for i := 0; i < stringTableSize; i++ {
		if c.tell() >= end || c.eof() {
			break
		}
		n := int64(c.u8())
		if c.err != nil {
			break
		}
		if rem := end - c.tell(); n > rem {
			f.resLog.Warnf("string %d of STRING %s: length %d exceeds the %d bytes left, truncating", i, res.Name, n, rem)
			n = rem
		}
		strs = append(strs, f.decodeString(c.read(int(n)), cp))
	}
	return strs
}

func parseVersionPayload(f *File, c *cursor, res *Resource, cp Codepage) Payload {
	b := c.read(int(res.Size))
	vi, err := ParseVersionInfo(b)
	if err != nil {
		f.resLog.Warnf("VERSION %s: %v", res.Name, err)
		if b == nil {
			b = []byte{}
		}
		return RawData(b)
	}
	return vi
}
