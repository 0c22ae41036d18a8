package ne_test

import (
	"bytes"
	"encoding/binary"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"

	"github.com/go-delve/nedump/pkg/logflags"
	"github.com/go-delve/nedump/pkg/mz"
	"github.com/go-delve/nedump/pkg/ne"
	"github.com/go-delve/nedump/pkg/ne/nebuilder"
)

func newLogger() (logflags.Logger, *test.Hook) {
	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)
	return logflags.WrapEntry(logrus.NewEntry(logger)), hook
}

func build(t *testing.T, b *nebuilder.Builder) ([]byte, nebuilder.Offsets) {
	t.Helper()
	img, off, err := b.Build()
	if err != nil {
		t.Fatalf("could not build image: %v", err)
	}
	return img, off
}

func decodeConfig(t *testing.T, img []byte, cfg ne.Config) (*ne.File, *test.Hook) {
	t.Helper()
	log, hook := newLogger()
	cfg.Logger = log
	f, err := ne.NewFile(bytes.NewReader(img), int64(len(img)), 0x40, &cfg)
	if err != nil {
		t.Fatalf("NewFile: %v", err)
	}
	return f, hook
}

func decode(t *testing.T, img []byte) (*ne.File, *test.Hook) {
	t.Helper()
	return decodeConfig(t, img, ne.Config{})
}

func logged(hook *test.Hook, level logrus.Level, substr string) bool {
	for _, e := range hook.AllEntries() {
		if e.Level == level && strings.Contains(e.Message, substr) {
			return true
		}
	}
	return false
}

func putU16(img []byte, off int64, v uint16) {
	binary.LittleEndian.PutUint16(img[off:], v)
}

func TestEndToEnd(t *testing.T) {
	b := nebuilder.New("TEST")
	b.AddSegment(0, []byte{0x90, 0xc3})
	b.AddResource(nebuilder.ID(ne.ResourceString), nebuilder.ID(1), 0, nebuilder.StringTable([]byte("AB"), []byte("CD")))
	b.AddEntry(1, ne.EntryExported, 1, false)
	b.AddExport("FOO", 1)
	img, off := build(t, b)

	f, _ := decode(t, img)

	segs := f.Segments()
	if len(segs) != 1 {
		t.Fatalf("expected 1 segment, got %d", len(segs))
	}
	if len(segs[0].Relocations) != 0 {
		t.Fatalf("expected no relocations, got %d", len(segs[0].Relocations))
	}
	if segs[0].FileOffset != off.Segments[0] {
		t.Fatalf("segment file offset %#x, expected %#x", segs[0].FileOffset, off.Segments[0])
	}

	res := f.Resources()
	if len(res) != 1 {
		t.Fatalf("expected 1 resource, got %d", len(res))
	}
	if res[0].Type != "STRING" {
		t.Fatalf("expected STRING resource, got %q", res[0].Type)
	}
	strs, ok := res[0].Data.(ne.StringTable)
	if !ok {
		t.Fatalf("expected a string table, got %T", res[0].Data)
	}
	if len(strs) != 2 || strs[0] != "AB" || strs[1] != "CD" {
		t.Fatalf("wrong strings %q", strs)
	}

	exports := f.Exports()
	if len(exports) != 2 {
		t.Fatalf("expected 2 exports, got %#v", exports)
	}
	if exports[0].Name != "TEST" || exports[0].Ordinal != 0 {
		t.Fatalf("wrong module name entry %#v", exports[0])
	}
	if exports[1].Name != "FOO" || exports[1].Ordinal != 1 {
		t.Fatalf("wrong export %#v", exports[1])
	}
	if exports[1].FileOffset != off.Segments[0]+1 {
		t.Fatalf("export file offset %#x, expected %#x", exports[1].FileOffset, off.Segments[0]+1)
	}
}

func TestNewFileErrors(t *testing.T) {
	img, _ := build(t, nebuilder.New("TEST"))
	log, _ := newLogger()

	_, err := ne.NewFile(bytes.NewReader(img), int64(len(img)), int64(len(img)), &ne.Config{Logger: log})
	if err != ne.ErrOffsetOutOfRange {
		t.Fatalf("expected ErrOffsetOutOfRange, got %v", err)
	}

	_, err = ne.NewFile(bytes.NewReader(img), int64(len(img)), 0, &ne.Config{Logger: log})
	var notNE ne.ErrNotNE
	if !errors.As(err, &notNE) {
		t.Fatalf("expected ErrNotNE, got %v", err)
	}
	if string(notNE.Got[:]) != "MZ" {
		t.Fatalf("wrong signature in error %q", notNE.Got[:])
	}

	// header cut in half
	_, err = ne.NewFile(bytes.NewReader(img[:0x60]), 0x60, 0x40, &ne.Config{Logger: log})
	if err == nil {
		t.Fatalf("expected error for truncated header")
	}
}

func TestOpen(t *testing.T) {
	b := nebuilder.New("TEST")
	b.Flags = ne.FlagLibrary
	b.AddSegment(0, []byte{0xc3})
	b.SetEntryPoint(1, 0)
	img, _ := build(t, b)

	dir := t.TempDir()
	path := filepath.Join(dir, "test.dll")
	if err := os.WriteFile(path, img, 0o644); err != nil {
		t.Fatal(err)
	}

	log, _ := newLogger()
	f, err := ne.Open(path, &ne.Config{Logger: log})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer f.Close()

	if f.Offset != 0x40 {
		t.Fatalf("wrong header offset %#x", f.Offset)
	}
	if !f.IsLibrary() {
		t.Fatalf("expected a library")
	}
	if seg, ip := f.StartAddress(); seg != 1 || ip != 0 {
		t.Fatalf("wrong start address %d:%#x", seg, ip)
	}
	if f.Size() != int64(len(img)) {
		t.Fatalf("wrong size %d", f.Size())
	}

	// null e_lfanew
	binary.LittleEndian.PutUint32(img[0x3c:], 0)
	if err := os.WriteFile(path, img, 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := ne.Open(path, &ne.Config{Logger: log}); err != mz.ErrNullHeaderOffset {
		t.Fatalf("expected ErrNullHeaderOffset, got %v", err)
	}
}

func TestProbe(t *testing.T) {
	img, _ := build(t, nebuilder.New("TEST"))
	if !ne.Probe(bytes.NewReader(img), 0x40) {
		t.Fatalf("NE signature not recognized")
	}
	if ne.Probe(bytes.NewReader(img), 0) {
		t.Fatalf("MZ signature recognized as NE")
	}
	if ne.Probe(bytes.NewReader(img), int64(len(img))) {
		t.Fatalf("probe past EOF succeeded")
	}
}

func TestSegmentRelocations(t *testing.T) {
	b := nebuilder.New("TEST")
	b.AlignShift = 9
	b.AddSegment(ne.SegmentData, []byte{1, 2, 3, 4})
	b.AddSegment(0, []byte{0x9a, 0, 0, 0, 0, 0xc3},
		nebuilder.Reloc{SourceType: 3, Type: ne.RelocImportOrdinal | ne.RelocAdditive, Offset: 1, ModuleIndex: 1, FuncIndex: 5})
	img, off := build(t, b)

	f, _ := decode(t, img)
	segs := f.Segments()
	if len(segs) != 2 {
		t.Fatalf("expected 2 segments, got %d", len(segs))
	}
	for i, seg := range segs {
		if seg.FileOffset != off.Segments[i] {
			t.Errorf("segment %d at %#x, expected %#x", i+1, seg.FileOffset, off.Segments[i])
		}
		if seg.FileOffset%512 != 0 {
			t.Errorf("segment %d not aligned: %#x", i+1, seg.FileOffset)
		}
	}
	if !segs[0].IsData() || segs[0].HasRelocations() {
		t.Fatalf("wrong flags for segment 1: %s", segs[0].FlagsString())
	}
	if !segs[1].HasRelocations() {
		t.Fatalf("segment 2 has no RELOCINFO flag")
	}
	if got := segs[1].FlagsString(); got != "CODE|RELOCINFO" {
		t.Fatalf("wrong flags string %q", got)
	}
	rels := segs[1].Relocations
	if len(rels) != 1 {
		t.Fatalf("expected 1 relocation, got %d", len(rels))
	}
	r := rels[0]
	if r.Kind() != ne.RelocImportOrdinal || !r.Additive() || r.Offset != 1 || r.ModuleIndex != 1 || r.FuncIndex != 5 {
		t.Fatalf("wrong relocation %#v", r)
	}
}

func TestSegmentTableTruncated(t *testing.T) {
	b := nebuilder.New("TEST")
	b.AddSegment(0, []byte{0xc3})
	img, off := build(t, b)

	// claim more segments than the file can hold
	putU16(img, off.Header+0x1c, 0xffff)
	f, hook := decode(t, img)
	if n := len(f.Segments()); n == 0 || n == 0xffff {
		t.Fatalf("unexpected number of segments %d", n)
	}
	if !logged(hook, logrus.ErrorLevel, "segment table truncated") {
		t.Fatalf("truncation not logged")
	}
}

func TestViewsAreMemoized(t *testing.T) {
	b := nebuilder.New("TEST")
	b.AddSegment(0, []byte{0xc3})
	img, _ := build(t, b)
	f, _ := decode(t, img)

	segs := f.Segments()
	segs[0].Size = 0x1234
	if f.Segments()[0].Size != 0x1234 {
		t.Fatalf("segments decoded twice")
	}
	if f.ResourceDirectory() != f.ResourceDirectory() {
		t.Fatalf("resource directory decoded twice")
	}
	if f.Symbols() != f.Symbols() {
		t.Fatalf("symbol table built twice")
	}
}
