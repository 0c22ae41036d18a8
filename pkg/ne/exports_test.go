package ne_test

import (
	"testing"

	"github.com/go-delve/nedump/pkg/ne"
	"github.com/go-delve/nedump/pkg/ne/nebuilder"
)

func TestExportsStopAtTerminator(t *testing.T) {
	b := nebuilder.New("LIB")
	b.AddExport("ONE", 1)
	b.AddExport("TWO", 2)
	// module table and imported names follow the terminator
	b.AddModule("KERNEL")
	b.AddModule("USER")
	img, _ := build(t, b)

	f, _ := decode(t, img)
	exps := f.Exports()
	want := []struct {
		name string
		ord  uint16
	}{{"LIB", 0}, {"ONE", 1}, {"TWO", 2}}
	if len(exps) != len(want) {
		t.Fatalf("expected %d exports, got %#v", len(want), exps)
	}
	for i := range want {
		if exps[i].Name != want[i].name || exps[i].Ordinal != want[i].ord {
			t.Errorf("export %d: got %s/%d, expected %s/%d", i, exps[i].Name, exps[i].Ordinal, want[i].name, want[i].ord)
		}
	}
}

func TestExportsTruncated(t *testing.T) {
	b := nebuilder.New("LIB")
	b.AddExport("ONE", 1)
	img, off := build(t, b)

	// cut inside the ordinal of ONE
	img = img[:off.ResidentNameTable+6+4+1]
	f, _ := decode(t, img)
	if exps := f.Exports(); len(exps) != 1 || exps[0].Name != "LIB" {
		t.Fatalf("wrong exports %#v", exps)
	}
}

func TestNonResidentNames(t *testing.T) {
	b := nebuilder.New("LIB")
	seg := uint8(b.AddSegment(0, []byte{0x90, 0x90, 0xc3}))
	b.AddEntry(seg, ne.EntryExported, 2, false)
	b.AddNonResident("Test library", 0)
	b.AddNonResident("HIDDEN", 1)
	img, off := build(t, b)

	f, _ := decode(t, img)
	names := f.NonResidentNames()
	if len(names) != 2 || names[0].Name != "Test library" || names[1].Name != "HIDDEN" || names[1].Ordinal != 1 {
		t.Fatalf("wrong nonresident names %#v", names)
	}
	if names[1].FileOffset != off.Segments[0]+2 {
		t.Fatalf("wrong file offset %#x", names[1].FileOffset)
	}
	if fn, ok := f.ExportByOrdinal(1); !ok || fn.Name != "HIDDEN" {
		t.Fatalf("ExportByOrdinal: %#v %v", fn, ok)
	}
	if _, ok := f.ExportByOrdinal(0); ok {
		t.Fatalf("module name returned by ExportByOrdinal")
	}

	// the table is bounded by its size in the header
	putU16(img, off.Header+0x20, uint16(1+len("Test library")+2))
	f, _ = decode(t, img)
	if names := f.NonResidentNames(); len(names) != 1 {
		t.Fatalf("size not honored: %#v", names)
	}
}

func TestEntryPoints(t *testing.T) {
	b := nebuilder.New("LIB")
	seg1 := uint8(b.AddSegment(0, make([]byte, 0x40)))
	seg2 := uint8(b.AddSegment(0, make([]byte, 0x40)))
	b.AddEntry(seg1, ne.EntryExported, 0x10, false)
	b.AddEntry(seg1, 0, 0x20, false)
	b.SkipOrdinals(2)
	b.AddEntry(seg2, ne.EntryExported|ne.EntrySharedData, 0x30, true)
	b.AddEntry(0, ne.EntryExported, 0x1234, false)
	img, off := build(t, b)

	f, _ := decode(t, img)
	entries := f.EntryPoints()
	if len(entries) != 4 {
		t.Fatalf("expected 4 entries, got %#v", entries)
	}

	want := []ne.EntryPoint{
		{Ordinal: 1, Flags: ne.EntryExported, Segment: seg1, Offset: 0x10, FileOffset: off.Segments[0] + 0x10},
		{Ordinal: 2, Flags: 0, Segment: seg1, Offset: 0x20, FileOffset: off.Segments[0] + 0x20},
		{Ordinal: 5, Flags: ne.EntryExported | ne.EntrySharedData, Movable: true, Segment: seg2, Offset: 0x30, FileOffset: off.Segments[1] + 0x30},
		{Ordinal: 6, Flags: ne.EntryExported, Segment: 0, Offset: 0x1234},
	}
	for i := range want {
		if entries[i] != want[i] {
			t.Errorf("entry %d: got %#v, expected %#v", i, entries[i], want[i])
		}
	}

	if e, ok := f.EntryPoint(5); !ok || !e.Movable {
		t.Fatalf("EntryPoint(5): %#v %v", e, ok)
	}
	if _, ok := f.EntryPoint(3); ok {
		t.Fatalf("unused ordinal found")
	}
	if got := entries[3].String(); got != "@6 = 0x1234" {
		t.Fatalf("wrong string %q", got)
	}
}

func TestEntryTableBounded(t *testing.T) {
	b := nebuilder.New("LIB")
	seg := uint8(b.AddSegment(0, make([]byte, 0x10)))
	b.AddEntry(seg, 0, 1, false)
	b.AddEntry(seg, 0, 2, false)
	img, off := build(t, b)

	putU16(img, off.Header+0x06, 0)
	f, _ := decode(t, img)
	if n := len(f.EntryPoints()); n != 0 {
		t.Fatalf("empty entry table produced %d entries", n)
	}

	// count, indicator and one of the two entries
	putU16(img, off.Header+0x06, 2+3)
	f, _ = decode(t, img)
	if n := len(f.EntryPoints()); n != 1 {
		t.Fatalf("expected 1 entry, got %d", n)
	}
}
