package ne

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
)

// VersionSignature is the value of FixedFileInfo.Signature.
const VersionSignature = 0xfeef04bd

// maxVersionDepth bounds the nesting of version nodes. Real resources
// never go past StringFileInfo/lang/key.
const maxVersionDepth = 8

// FixedFileInfo is the VS_FIXEDFILEINFO value of the root version node.
type FixedFileInfo struct {
	Signature        uint32 `json:"signature" yaml:"signature"`
	StructVersion    uint32 `json:"struct_version" yaml:"struct_version"`
	FileVersionHi    uint32 `json:"file_version_hi" yaml:"file_version_hi"`
	FileVersionLo    uint32 `json:"file_version_lo" yaml:"file_version_lo"`
	ProductVersionHi uint32 `json:"product_version_hi" yaml:"product_version_hi"`
	ProductVersionLo uint32 `json:"product_version_lo" yaml:"product_version_lo"`
	FileFlagsMask    uint32 `json:"file_flags_mask" yaml:"file_flags_mask"`
	FileFlags        uint32 `json:"file_flags" yaml:"file_flags"`
	FileOS           uint32 `json:"file_os" yaml:"file_os"`
	FileType         uint32 `json:"file_type" yaml:"file_type"`
	FileSubtype      uint32 `json:"file_subtype" yaml:"file_subtype"`
	FileDateHi       uint32 `json:"file_date_hi" yaml:"file_date_hi"`
	FileDateLo       uint32 `json:"file_date_lo" yaml:"file_date_lo"`
}

// FileVersion returns the file version as a dotted quad.
func (fi *FixedFileInfo) FileVersion() string {
	return dottedVersion(fi.FileVersionHi, fi.FileVersionLo)
}

// ProductVersion returns the product version as a dotted quad.
func (fi *FixedFileInfo) ProductVersion() string {
	return dottedVersion(fi.ProductVersionHi, fi.ProductVersionLo)
}

func dottedVersion(hi, lo uint32) string {
	return fmt.Sprintf("%d.%d.%d.%d", hi>>16, hi&0xffff, lo>>16, lo&0xffff)
}

// VersionNode is one block of a 16-bit version resource.
type VersionNode struct {
	Key      string         `json:"key" yaml:"key"`
	Value    []byte         `json:"value,omitempty" yaml:"value,omitempty"`
	Children []*VersionNode `json:"children,omitempty" yaml:"children,omitempty"`
}

// VersionInfo is a decoded VERSION resource: the VS_VERSION_INFO root node
// and its fixed file info, when present.
type VersionInfo struct {
	VersionNode `yaml:",inline"`
	Fixed       *FixedFileInfo `json:"fixed,omitempty" yaml:"fixed,omitempty"`
}

func (*VersionInfo) payload() {}

// Translation is one language and codepage pair of the VarFileInfo
// translation table.
type Translation struct {
	Language uint16   `json:"language" yaml:"language"`
	Codepage Codepage `json:"codepage" yaml:"codepage"`
}

// ParseVersionInfo decodes a 16-bit VS_VERSIONINFO block.
func ParseVersionInfo(b []byte) (*VersionInfo, error) {
	root, _ := parseVersionNode(b, 0)
	if root == nil {
		return nil, errors.New("version resource too short")
	}
	vi := &VersionInfo{VersionNode: *root}
	if len(root.Value) >= binary.Size(FixedFileInfo{}) {
		var fi FixedFileInfo
		if err := binary.Read(bytes.NewReader(root.Value), binary.LittleEndian, &fi); err == nil && fi.Signature == VersionSignature {
			vi.Fixed = &fi
		}
	}
	return vi, nil
}

// parseVersionNode decodes the node at the start of b and returns it with
// the number of bytes it spans. Lengths pointing past b are cut to b.
func parseVersionNode(b []byte, depth int) (*VersionNode, int) {
	if len(b) < 4 {
		return nil, 0
	}
	length := int(binary.LittleEndian.Uint16(b))
	valueLength := int(binary.LittleEndian.Uint16(b[2:]))
	if length < 4 {
		return nil, 0
	}
	if length > len(b) {
		length = len(b)
	}
	b = b[:length]

	n := &VersionNode{}
	p := 4
	if i := bytes.IndexByte(b[p:], 0); i >= 0 {
		n.Key = string(b[p : p+i])
		p += i + 1
	} else {
		n.Key = string(b[p:])
		p = len(b)
	}

	p = min(align4(p), len(b))
	end := min(p+valueLength, len(b))
	n.Value = b[p:end]
	p = align4(end)

	for depth < maxVersionDepth && p+4 <= len(b) {
		child, size := parseVersionNode(b[p:], depth+1)
		if child == nil {
			break
		}
		n.Children = append(n.Children, child)
		p += align4(size)
	}
	return n, length
}

func align4(n int) int {
	return (n + 3) &^ 3
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}

// Child returns the first direct child called key.
func (n *VersionNode) Child(key string) *VersionNode {
	for _, c := range n.Children {
		if c.Key == key {
			return c
		}
	}
	return nil
}

// Words returns the node's value as little endian 16-bit words.
func (n *VersionNode) Words() []uint16 {
	w := make([]uint16, len(n.Value)/2)
	for i := range w {
		w[i] = binary.LittleEndian.Uint16(n.Value[2*i:])
	}
	return w
}

// Text returns the node's value as a string, without trailing NULs.
func (n *VersionNode) Text() string {
	return string(bytes.TrimRight(n.Value, "\x00"))
}

// Codepage returns the codepage of the first translation found walking
// the tree depth first: the second word of a VarFileInfo child whose value
// is exactly two words.
func (n *VersionNode) Codepage() (Codepage, bool) {
	if n.Key == "VarFileInfo" {
		for _, c := range n.Children {
			if len(c.Value) == 4 {
				return Codepage(c.Words()[1]), true
			}
		}
	}
	for _, c := range n.Children {
		if cp, ok := c.Codepage(); ok {
			return cp, true
		}
	}
	return 0, false
}

// Translations returns the VarFileInfo translation table.
func (vi *VersionInfo) Translations() []Translation {
	r := []Translation{}
	vfi := vi.Child("VarFileInfo")
	if vfi == nil {
		return r
	}
	for _, c := range vfi.Children {
		w := c.Words()
		for i := 0; i+1 < len(w); i += 2 {
			r = append(r, Translation{Language: w[i], Codepage: Codepage(w[i+1])})
		}
	}
	return r
}

// Strings returns the key/value pairs of every StringFileInfo table. When
// a key appears in more than one language the first one wins.
func (vi *VersionInfo) Strings() map[string]string {
	r := map[string]string{}
	sfi := vi.Child("StringFileInfo")
	if sfi == nil {
		return r
	}
	for _, table := range sfi.Children {
		for _, kv := range table.Children {
			if _, ok := r[kv.Key]; !ok {
				r[kv.Key] = kv.Text()
			}
		}
	}
	return r
}
