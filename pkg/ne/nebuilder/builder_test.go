package nebuilder

import (
	"encoding/binary"
	"testing"
)

func TestBuildLayout(t *testing.T) {
	b := New("TEST")
	b.AlignShift = 5
	b.ResourceShift = 3
	b.AddSegment(0, []byte{0xc3}, Reloc{Type: 1, ModuleIndex: 1, FuncIndex: 2})
	b.AddResource(ID(6), ID(1), 0, StringTable([]byte("AB")))
	b.AddModule("KERNEL")
	img, off, err := b.Build()
	if err != nil {
		t.Fatal(err)
	}

	if string(img[:2]) != "MZ" || binary.LittleEndian.Uint32(img[0x3c:]) != 0x40 {
		t.Fatalf("bad DOS stub")
	}
	if string(img[off.Header:off.Header+2]) != "NE" {
		t.Fatalf("bad NE signature")
	}
	if off.Segments[0]%32 != 0 || off.Resources[0]%8 != 0 {
		t.Fatalf("misaligned data: segment %#x resource %#x", off.Segments[0], off.Resources[0])
	}
	if int64(len(img))%8 != 0 {
		t.Fatalf("resource data not padded")
	}

	seg := img[off.SegmentTable:]
	if got := int64(binary.LittleEndian.Uint16(seg)) << 5; got != off.Segments[0] {
		t.Fatalf("segment offset %#x, expected %#x", got, off.Segments[0])
	}
	if flags := binary.LittleEndian.Uint16(seg[4:]); flags&0x0100 == 0 {
		t.Fatalf("RELOCINFO not set")
	}
	if n := binary.LittleEndian.Uint16(img[off.Segments[0]+1:]); n != 1 {
		t.Fatalf("wrong relocation count %d", n)
	}

	// resource entry: shift, group header, then offset and size
	ent := img[off.ResourceTable+2+8:]
	if got := int64(binary.LittleEndian.Uint16(ent)) << 3; got != off.Resources[0] {
		t.Fatalf("resource offset %#x, expected %#x", got, off.Resources[0])
	}
	if size := binary.LittleEndian.Uint16(ent[2:]); size != 1 {
		t.Fatalf("resource size %d, expected 1 unit", size)
	}

	mod := img[off.ModuleRefTable:]
	if o := int64(binary.LittleEndian.Uint16(mod)); string(img[off.ImportedNameTable+o+1:off.ImportedNameTable+o+7]) != "KERNEL" {
		t.Fatalf("module reference does not point to KERNEL")
	}
}

func TestVersionNodeLength(t *testing.T) {
	n := VersionNode{Key: "A", Value: []byte{1, 2, 3}}
	b := n.Bytes()
	// header, "A\0", pad to 8, value, pad to 12
	if len(b) != 12 || binary.LittleEndian.Uint16(b) != 12 || binary.LittleEndian.Uint16(b[2:]) != 3 {
		t.Fatalf("wrong encoding % x", b)
	}
}
