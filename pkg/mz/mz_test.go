package mz_test

import (
	"bytes"
	"encoding/binary"
	"errors"
	"testing"

	"github.com/go-delve/nedump/pkg/mz"
)

func image(lfanew uint32, sig string, size int) []byte {
	b := make([]byte, size)
	copy(b, "MZ")
	binary.LittleEndian.PutUint32(b[0x3c:], lfanew)
	copy(b[lfanew:], sig)
	return b
}

func TestDetectFormat(t *testing.T) {
	tests := []struct {
		sig  string
		want mz.Format
	}{
		{"NE", mz.FormatNE},
		{"PE\x00\x00", mz.FormatPE},
		{"PEXX", mz.FormatUnknown},
		{"LE", mz.FormatLE},
		{"LX", mz.FormatLX},
		{"ZZ", mz.FormatUnknown},
	}
	for _, tc := range tests {
		b := image(0x80, tc.sig, 0x100)
		got, off, err := mz.DetectFormat(bytes.NewReader(b), int64(len(b)))
		if err != nil {
			t.Fatalf("%q: %v", tc.sig, err)
		}
		if got != tc.want || off != 0x80 {
			t.Errorf("%q: got %v at %#x, expected %v", tc.sig, got, off, tc.want)
		}
	}
}

func TestDetectFormatErrors(t *testing.T) {
	b := image(0, "", 0x100)
	if _, _, err := mz.DetectFormat(bytes.NewReader(b), int64(len(b))); err != mz.ErrNullHeaderOffset {
		t.Errorf("expected ErrNullHeaderOffset, got %v", err)
	}

	b = image(0x40, "", 0x100)
	binary.LittleEndian.PutUint32(b[0x3c:], 0x1000)
	if _, _, err := mz.DetectFormat(bytes.NewReader(b), int64(len(b))); err != mz.ErrHeaderOffsetBeyondEOF {
		t.Errorf("expected ErrHeaderOffsetBeyondEOF, got %v", err)
	}

	b[0] = 'Z'
	_, _, err := mz.DetectFormat(bytes.NewReader(b), int64(len(b)))
	var notMZ mz.ErrNotMZ
	if !errors.As(err, &notMZ) || string(notMZ.Got[:]) != "ZZ" {
		t.Errorf("expected ErrNotMZ, got %v", err)
	}

	if _, err := mz.ReadHeader(bytes.NewReader(b[:10])); err == nil {
		t.Errorf("expected error for short header")
	}
}

func TestReadHeader(t *testing.T) {
	b := image(0x40, "NE", 0x80)
	hdr, err := mz.ReadHeader(bytes.NewReader(b))
	if err != nil {
		t.Fatal(err)
	}
	if hdr.NewHeaderOffset != 0x40 {
		t.Fatalf("wrong e_lfanew %#x", hdr.NewHeaderOffset)
	}
	if sig, ok := mz.Probe(bytes.NewReader(b), 0x40); !ok || string(sig[:]) != "NE" {
		t.Fatalf("wrong signature %q", sig[:])
	}
	if _, ok := mz.Probe(bytes.NewReader(b), 0x7f); ok {
		t.Fatalf("probe of one byte succeeded")
	}
}
