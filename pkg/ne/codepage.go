package ne

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/japanese"
	"golang.org/x/text/encoding/korean"
	"golang.org/x/text/encoding/simplifiedchinese"
	"golang.org/x/text/encoding/traditionalchinese"
)

// Codepage is a Windows codepage number.
type Codepage uint16

// DefaultCodepage is the codepage assumed when an image does not declare
// one in its version information.
const DefaultCodepage Codepage = 1252

var codepages = map[Codepage]encoding.Encoding{
	37:    charmap.CodePage037,
	437:   charmap.CodePage437,
	850:   charmap.CodePage850,
	852:   charmap.CodePage852,
	855:   charmap.CodePage855,
	858:   charmap.CodePage858,
	860:   charmap.CodePage860,
	862:   charmap.CodePage862,
	863:   charmap.CodePage863,
	865:   charmap.CodePage865,
	866:   charmap.CodePage866,
	874:   charmap.Windows874,
	932:   japanese.ShiftJIS,
	936:   simplifiedchinese.GBK,
	949:   korean.EUCKR,
	950:   traditionalchinese.Big5,
	1250:  charmap.Windows1250,
	1251:  charmap.Windows1251,
	1252:  charmap.Windows1252,
	1253:  charmap.Windows1253,
	1254:  charmap.Windows1254,
	1255:  charmap.Windows1255,
	1256:  charmap.Windows1256,
	1257:  charmap.Windows1257,
	1258:  charmap.Windows1258,
	10000: charmap.Macintosh,
	10007: charmap.MacintoshCyrillic,
	20866: charmap.KOI8R,
	21866: charmap.KOI8U,
	28591: charmap.ISO8859_1,
	28592: charmap.ISO8859_2,
	28595: charmap.ISO8859_5,
	28597: charmap.ISO8859_7,
}

// Supported reports whether strings in cp can be decoded.
func (cp Codepage) Supported() bool {
	_, ok := codepages[cp]
	return ok
}

func (cp Codepage) String() string {
	return fmt.Sprintf("cp%d", uint16(cp))
}

// Decode converts b from cp to UTF-8. Bytes that have no mapping in cp are
// an error.
func (cp Codepage) Decode(b []byte) (string, error) {
	enc, ok := codepages[cp]
	if !ok {
		return "", fmt.Errorf("unsupported codepage %d", uint16(cp))
	}
	out, err := enc.NewDecoder().Bytes(b)
	if err != nil {
		return "", err
	}
	s := string(out)
	if strings.ContainsRune(s, utf8.RuneError) {
		return "", fmt.Errorf("bytes %x are not valid in codepage %d", b, uint16(cp))
	}
	return s, nil
}

// decodeString decodes b using cp, falling back to Latin-1 which maps every
// byte.
func (f *File) decodeString(b []byte, cp Codepage) string {
	s, err := cp.Decode(b)
	if err == nil {
		return s
	}
	f.resLog.Debugf("%v, decoding as latin-1", err)
	out, _ := charmap.ISO8859_1.NewDecoder().Bytes(b)
	return string(out)
}

// detectCodepage returns the codepage declared by the first VERSION
// resource that has a translation table. Version payloads parsed here are
// stored in the resources so they are not parsed twice.
func (f *File) detectCodepage(resources []Resource) (Codepage, bool) {
	for i := range resources {
		res := &resources[i]
		if res.Type != resourceTypeNames[ResourceVersion] {
			continue
		}
		if res.Data == nil {
			res.Data = f.parsePayload(res, f.defaultCodepage)
		}
		vi, ok := res.Data.(*VersionInfo)
		if !ok {
			continue
		}
		if cp, ok := vi.Codepage(); ok {
			return cp, true
		}
	}
	return 0, false
}

// Codepage returns the codepage used to decode the image's strings, either
// the one declared in its version information or the configured default.
func (f *File) Codepage() Codepage {
	f.Resources()
	return f.codepage
}
