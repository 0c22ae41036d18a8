package nebuilder

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// StringTable returns the contents of a STRING resource holding strs.
func StringTable(strs ...[]byte) []byte {
	buf := new(bytes.Buffer)
	for _, s := range strs {
		buf.WriteByte(byte(len(s)))
		buf.Write(s)
	}
	return buf.Bytes()
}

// VersionNode is a block of a 16-bit version resource.
type VersionNode struct {
	Key      string
	Value    []byte
	Children []VersionNode
}

// Bytes encodes n and its children.
func (n VersionNode) Bytes() []byte {
	buf := new(bytes.Buffer)
	buf.Write([]byte{0, 0}) // length
	binary.Write(buf, binary.LittleEndian, uint16(len(n.Value)))
	buf.WriteString(n.Key)
	buf.WriteByte(0)
	pad4(buf)
	buf.Write(n.Value)
	pad4(buf)
	for _, c := range n.Children {
		buf.Write(c.Bytes())
		pad4(buf)
	}
	b := buf.Bytes()
	binary.LittleEndian.PutUint16(b, uint16(len(b)))
	return b
}

func pad4(buf *bytes.Buffer) {
	for buf.Len()%4 != 0 {
		buf.WriteByte(0)
	}
}

// Version returns a VERSION resource with a fixed file info for version
// major.minor, a string table with the given key/value pairs and a
// translation table declaring lang and codepage.
func Version(major, minor uint16, lang, codepage uint16, kv ...string) []byte {
	fixed := make([]byte, 52)
	binary.LittleEndian.PutUint32(fixed[0:], 0xfeef04bd)
	binary.LittleEndian.PutUint32(fixed[4:], 0x00010000)
	binary.LittleEndian.PutUint32(fixed[8:], uint32(major)<<16|uint32(minor))
	binary.LittleEndian.PutUint32(fixed[16:], uint32(major)<<16|uint32(minor))

	table := VersionNode{Key: fmt.Sprintf("%04X%04X", lang, codepage)}
	for i := 0; i+1 < len(kv); i += 2 {
		table.Children = append(table.Children, VersionNode{Key: kv[i], Value: append([]byte(kv[i+1]), 0)})
	}

	translation := make([]byte, 4)
	binary.LittleEndian.PutUint16(translation[0:], lang)
	binary.LittleEndian.PutUint16(translation[2:], codepage)

	return VersionNode{
		Key:   "VS_VERSION_INFO",
		Value: fixed,
		Children: []VersionNode{
			{Key: "StringFileInfo", Children: []VersionNode{table}},
			{Key: "VarFileInfo", Children: []VersionNode{{Key: "Translation", Value: translation}}},
		},
	}.Bytes()
}
