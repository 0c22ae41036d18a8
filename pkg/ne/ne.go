// Package ne decodes 16-bit New Executable (NE) images, the segmented
// executable format used by Windows 3.x and OS/2 1.x.
//
// A File is built from a byte source positioned at the NE header. Only the
// fixed header is read when the File is created, every other view
// (segments, resources, imports, exports, entry points) is decoded on first
// access and memoized for the lifetime of the File.
//
// Decoding is best effort: malformed tables are logged and produce empty or
// partial results instead of errors. Only failing to locate the header is
// fatal.
//
// The header layout is described in Wine's winnt.h as IMAGE_OS2_HEADER.
package ne

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/go-delve/nedump/pkg/logflags"
	"github.com/go-delve/nedump/pkg/mz"
)

// Signature is the magic at the start of the NE header.
const Signature = "NE"

// HeaderSize is the size of FileHeader in bytes.
const HeaderSize = 64

// FileHeader is the fixed NE header. Table offsets are relative to the
// start of the header, except NonResidentNameTable which is relative to
// the start of the file.
type FileHeader struct {
	Magic                  [2]byte // ne_magic
	LinkerVersion          uint8   // ne_ver
	LinkerRevision         uint8   // ne_rev
	EntryTable             uint16  // ne_enttab
	EntryTableSize         uint16  // ne_cbenttab
	CRC                    uint32  // ne_crc
	Flags                  uint16  // ne_flags
	AutoDataSegment        uint16  // ne_autodata
	HeapSize               uint16  // ne_heap
	StackSize              uint16  // ne_stack
	CSIP                   uint32  // ne_csip
	SSSP                   uint32  // ne_sssp
	SegmentCount           uint16  // ne_cseg
	ModuleRefCount         uint16  // ne_cmod
	NonResidentNameSize    uint16  // ne_cbnrestab
	SegmentTable           uint16  // ne_segtab
	ResourceTable          uint16  // ne_rsrctab
	ResidentNameTable      uint16  // ne_restab
	ModuleRefTable         uint16  // ne_modtab
	ImportedNameTable      uint16  // ne_imptab
	NonResidentNameTable   uint32  // ne_nrestab
	MovableEntryCount      uint16  // ne_cmovent
	AlignmentShift         uint16  // ne_align
	ResourceSegmentCount   uint16  // ne_cres
	TargetOS               uint8   // ne_exetyp
	OtherFlags             uint8   // ne_flagsothers
	ReturnThunks           uint16  // ne_pretthunks
	SegmentRefBytes        uint16  // ne_psegrefbytes
	SwapArea               uint16  // ne_swaparea
	ExpectedWindowsVersion uint16  // ne_expver
}

// TargetOS values.
const (
	TargetUnknown = 0
	TargetOS2     = 1
	TargetWindows = 2
	TargetDOS4    = 3
	TargetWin386  = 4
	TargetBOSS    = 5
)

// Header flags.
const (
	FlagSingleData   = 0x0001
	FlagMultipleData = 0x0002
	FlagLinkErrors   = 0x2000
	FlagLibrary      = 0x8000
)

// ErrNotNE is the error returned when the signature at the header offset
// is not "NE".
type ErrNotNE struct {
	Got [2]byte
}

func (err ErrNotNE) Error() string {
	return fmt.Sprintf("not an NE image, invalid signature %q", err.Got[:])
}

// ErrOffsetOutOfRange is returned when the NE header offset lies outside
// of the file.
var ErrOffsetOutOfRange = errors.New("NE offset beyond EOF")

// Config configures decoding of a File.
type Config struct {
	// DefaultCodepage is used to decode string resources when the image's
	// version information does not declare a codepage. Zero means
	// DefaultCodepage.
	DefaultCodepage Codepage

	// Logger receives every recoverable anomaly found while decoding. When
	// nil the loggers from logflags are used.
	Logger logflags.Logger
}

// File is a decoded NE image. A File is not safe for concurrent use: views
// are computed lazily and stored in the File on first access.
type File struct {
	FileHeader

	// Offset is the absolute file position of the NE header. Table offsets
	// in FileHeader are relative to it.
	Offset int64

	r      io.ReaderAt
	size   int64
	closer io.Closer

	defaultCodepage Codepage
	log             logflags.Logger
	resLog          logflags.Logger
	impLog          logflags.Logger

	names *nameCache

	segments    []Segment
	resdir      *ResourceDirectory
	resources   []Resource
	codepage    Codepage
	modules     []string
	imports     []ImportedFunction
	exports     []ExportedFunction
	nonresident []ExportedFunction
	entries     []EntryPoint
	symbols     *SymbolTable
}

// Probe reports whether the two bytes at off in r are the NE signature.
// This is the only check used to route a file to this package rather than
// to a PE decoder.
func Probe(r io.ReaderAt, off int64) bool {
	sig, ok := mz.Probe(r, off)
	return ok && string(sig[:]) == Signature
}

// Open opens the named file, locates the NE header through the DOS
// header's e_lfanew field and decodes it.
func Open(path string, cfg *Config) (*File, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	fi, err := fh.Stat()
	if err != nil {
		fh.Close()
		return nil, err
	}

	hdr, err := mz.ReadHeader(fh)
	if err != nil {
		fh.Close()
		return nil, err
	}
	off := int64(hdr.NewHeaderOffset)
	if off == 0 {
		fh.Close()
		return nil, mz.ErrNullHeaderOffset
	}

	f, err := NewFile(fh, fi.Size(), off, cfg)
	if err != nil {
		fh.Close()
		return nil, err
	}
	f.closer = fh
	return f, nil
}

// NewFile decodes the NE header found at offset off of r, a byte source of
// the given size.
func NewFile(r io.ReaderAt, size int64, off int64, cfg *Config) (*File, error) {
	if off < 0 || off >= size {
		return nil, ErrOffsetOutOfRange
	}
	if !Probe(r, off) {
		sig, _ := mz.Probe(r, off)
		return nil, ErrNotNE{sig}
	}

	f := &File{
		Offset:          off,
		r:               r,
		size:            size,
		defaultCodepage: DefaultCodepage,
	}
	if cfg != nil && cfg.DefaultCodepage != 0 {
		f.defaultCodepage = cfg.DefaultCodepage
	}
	if cfg != nil && cfg.Logger != nil {
		f.log, f.resLog, f.impLog = cfg.Logger, cfg.Logger, cfg.Logger
	} else {
		f.log, f.resLog, f.impLog = logflags.NELogger(), logflags.ResourcesLogger(), logflags.ImportsLogger()
	}
	f.names = newNameCache(f.log)

	c := f.cursor("reading NE header")
	c.seek(off)
	if !c.record(&f.FileHeader) {
		return nil, fmt.Errorf("failed to read NE header: %w", c.err)
	}

	f.log.Debugf("NE header at %#x: linker %d.%d, %d segments, %d modules, align %d", off, f.LinkerVersion, f.LinkerRevision, f.SegmentCount, f.ModuleRefCount, f.AlignmentShift)
	return f, nil
}

// Close closes the File. If the File was created using NewFile directly
// instead of Open, Close has no effect.
func (f *File) Close() error {
	if f.closer != nil {
		err := f.closer.Close()
		f.closer = nil
		return err
	}
	return nil
}

// Size returns the size of the underlying byte source.
func (f *File) Size() int64 {
	return f.size
}

// StartAddress returns the initial CS:IP as a 1-based segment number and an
// offset within that segment.
func (f *File) StartAddress() (seg int, ip uint16) {
	return int(f.CSIP >> 16), uint16(f.CSIP)
}

// IsLibrary reports whether the image is a DLL.
func (f *File) IsLibrary() bool {
	return f.Flags&FlagLibrary != 0
}

// tableOffset converts a header-relative table offset to a file offset.
func (f *File) tableOffset(rel uint16) int64 {
	return f.Offset + int64(rel)
}

func (f *File) cursor(ctx string) *cursor {
	return newCursor(f.r, f.size, ctx)
}
