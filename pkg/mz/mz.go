// Package mz reads the DOS (MZ) header found at the start of every
// Windows and OS/2 executable and routes the file to the decoder for the
// format announced by the signature at the new header offset.
//
// The header layout is described in Wine's winnt.h as IMAGE_DOS_HEADER.
package mz

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// HeaderSize is the size of the DOS header in bytes.
const HeaderSize = 64

// Signature is the magic at offset 0 of every DOS executable.
const Signature = "MZ"

// Header is the DOS executable header.
type Header struct {
	Magic            [2]byte
	BytesOnLastPage  uint16
	Pages            uint16
	Relocations      uint16
	HeaderParagraphs uint16
	MinAlloc         uint16
	MaxAlloc         uint16
	InitialSS        uint16
	InitialSP        uint16
	Checksum         uint16
	InitialIP        uint16
	InitialCS        uint16
	RelocationTable  uint16
	Overlay          uint16
	Reserved1        [4]uint16
	OEMID            uint16
	OEMInfo          uint16
	Reserved2        [10]uint16
	NewHeaderOffset  uint32 // e_lfanew
}

// ErrNotMZ is the error returned when the file does not start with the
// DOS signature.
type ErrNotMZ struct {
	Got [2]byte
}

func (err ErrNotMZ) Error() string {
	return fmt.Sprintf("not a DOS executable, invalid signature %q", err.Got[:])
}

var (
	// ErrNullHeaderOffset is returned when e_lfanew is zero.
	ErrNullHeaderOffset = errors.New("NULL new header offset (e_lfanew)")
	// ErrHeaderOffsetBeyondEOF is returned when e_lfanew points past the end of the file.
	ErrHeaderOffsetBeyondEOF = errors.New("new header offset beyond EOF")
)

// ReadHeader reads and validates the DOS header at the start of r.
func ReadHeader(r io.ReaderAt) (*Header, error) {
	var hdr Header
	if err := binary.Read(io.NewSectionReader(r, 0, HeaderSize), binary.LittleEndian, &hdr); err != nil {
		return nil, fmt.Errorf("failed to read DOS header: %w", err)
	}
	if string(hdr.Magic[:]) != Signature {
		return nil, ErrNotMZ{hdr.Magic}
	}
	return &hdr, nil
}

// Format identifies the executable format found at the new header offset.
type Format uint8

const (
	FormatUnknown Format = iota
	FormatNE             // 16-bit New Executable
	FormatPE             // 32/64-bit Portable Executable
	FormatLE             // linear executable (VxD)
	FormatLX             // OS/2 linear executable
)

func (f Format) String() string {
	switch f {
	case FormatNE:
		return "NE"
	case FormatPE:
		return "PE"
	case FormatLE:
		return "LE"
	case FormatLX:
		return "LX"
	}
	return "unknown"
}

// Probe reads the two byte signature at off.
func Probe(r io.ReaderAt, off int64) (sig [2]byte, ok bool) {
	n, _ := r.ReadAt(sig[:], off)
	return sig, n == len(sig)
}

// DetectFormat reads the DOS header of r, a file of the given size, and
// returns the format announced at the new header offset together with that
// offset.
func DetectFormat(r io.ReaderAt, size int64) (Format, int64, error) {
	hdr, err := ReadHeader(r)
	if err != nil {
		return FormatUnknown, 0, err
	}
	off := int64(hdr.NewHeaderOffset)
	switch {
	case off == 0:
		return FormatUnknown, 0, ErrNullHeaderOffset
	case off > size:
		return FormatUnknown, off, ErrHeaderOffsetBeyondEOF
	}

	sig, ok := Probe(r, off)
	if !ok {
		return FormatUnknown, off, nil
	}
	switch string(sig[:]) {
	case "NE":
		return FormatNE, off, nil
	case "LE":
		return FormatLE, off, nil
	case "LX":
		return FormatLX, off, nil
	case "PE":
		var tail [2]byte
		if n, _ := r.ReadAt(tail[:], off+2); n == 2 && tail == [2]byte{} {
			return FormatPE, off, nil
		}
	}
	return FormatUnknown, off, nil
}
