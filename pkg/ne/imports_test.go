package ne_test

import (
	"testing"

	"github.com/sirupsen/logrus"

	"github.com/go-delve/nedump/pkg/ne"
	"github.com/go-delve/nedump/pkg/ne/nebuilder"
)

func TestImports(t *testing.T) {
	b := nebuilder.New("APP")
	kernel := b.AddModule("KERNEL")
	user := b.AddModule("USER")
	msgbox := b.ImportedName("MESSAGEBOX")
	code := []byte{0x9a, 0, 0, 0, 0, 0x9a, 0, 0, 0, 0, 0xc3}
	b.AddSegment(0, code,
		nebuilder.Reloc{SourceType: 3, Type: ne.RelocImportOrdinal, Offset: 1, ModuleIndex: kernel, FuncIndex: 91},
		nebuilder.Reloc{SourceType: 3, Type: ne.RelocImportName, Offset: 6, ModuleIndex: user, FuncIndex: msgbox},
		nebuilder.Reloc{SourceType: 3, Type: ne.RelocInternalRef, Offset: 8, ModuleIndex: 1, FuncIndex: 0})
	img, _ := build(t, b)

	f, _ := decode(t, img)

	mods := f.Modules()
	if len(mods) != 2 || mods[0] != "KERNEL" || mods[1] != "USER" {
		t.Fatalf("wrong modules %q", mods)
	}

	imps := f.Imports()
	if len(imps) != 2 {
		t.Fatalf("expected 2 imports, got %d", len(imps))
	}
	if imps[0].ModuleName != "KERNEL" || imps[0].Ordinal == nil || *imps[0].Ordinal != 91 || imps[0].Name != nil {
		t.Fatalf("wrong ordinal import %v", imps[0])
	}
	if imps[1].ModuleName != "USER" || imps[1].Name == nil || *imps[1].Name != "MESSAGEBOX" || imps[1].Ordinal != nil {
		t.Fatalf("wrong name import %v", imps[1])
	}
	if imps[0].String() != "KERNEL.@91" || imps[1].String() != "USER.MESSAGEBOX" {
		t.Fatalf("wrong strings %s %s", imps[0], imps[1])
	}
}

func TestImportBadModuleIndex(t *testing.T) {
	b := nebuilder.New("APP")
	kernel := b.AddModule("KERNEL")
	b.AddSegment(0, make([]byte, 16),
		nebuilder.Reloc{SourceType: 3, Type: ne.RelocImportOrdinal, Offset: 1, ModuleIndex: 7, FuncIndex: 1},
		nebuilder.Reloc{SourceType: 3, Type: ne.RelocImportOrdinal | ne.RelocAdditive, Offset: 6, ModuleIndex: kernel, FuncIndex: 2},
		nebuilder.Reloc{SourceType: 3, Type: ne.RelocImportName, Offset: 11, ModuleIndex: 0, FuncIndex: 1})
	img, _ := build(t, b)

	f, hook := decode(t, img)
	imps := f.Imports()
	if len(imps) != 1 {
		t.Fatalf("expected 1 import, got %d", len(imps))
	}
	if imps[0].ModuleName != "KERNEL" || *imps[0].Ordinal != 2 {
		t.Fatalf("wrong import %v", imps[0])
	}
	if !logged(hook, logrus.ErrorLevel, "module index 7 out of range") || !logged(hook, logrus.ErrorLevel, "module index 0 out of range") {
		t.Fatalf("bad module index not logged")
	}
}

func TestImportsAcrossSegments(t *testing.T) {
	b := nebuilder.New("APP")
	gdi := b.AddModule("GDI")
	b.AddSegment(0, make([]byte, 8), nebuilder.Reloc{SourceType: 3, Type: ne.RelocImportOrdinal, ModuleIndex: gdi, FuncIndex: 1})
	b.AddSegment(ne.SegmentData, make([]byte, 8))
	b.AddSegment(0, make([]byte, 8), nebuilder.Reloc{SourceType: 3, Type: ne.RelocImportOrdinal, ModuleIndex: gdi, FuncIndex: 2})
	img, _ := build(t, b)

	f, _ := decode(t, img)
	imps := f.Imports()
	if len(imps) != 2 || *imps[0].Ordinal != 1 || *imps[1].Ordinal != 2 {
		t.Fatalf("wrong imports %v", imps)
	}
}
