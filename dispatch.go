package buildinspect

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/h2non/filetype"
)

// sniffLen is the number of leading bytes filetype needs to recognize a
// ZIP container; 261 is filetype's own documented minimum header size.
const sniffLen = 261

// dispatchExtension maps a filename's extension to the platform it
// declares. Any other extension is fatal
// (ErrUnsupportedExtension short-circuits before any archive is opened).
func dispatchExtension(name string) (Platform, error) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".apk":
		return PlatformAPK, nil
	case ".aab":
		return PlatformAAB, nil
	case ".ipa":
		return PlatformIPA, nil
	default:
		return "", ErrUnsupportedExtension
	}
}

// confirmZipContainer is a defensive double-check layered over the
// extension-driven dispatch above: it sniffs the archive's leading bytes
// with filetype and, on a mismatch, sharpens ErrNotAnArchive with the
// detected MIME type rather than overriding the extension's verdict —
// which platform goes with which extension stays extension-driven.
func confirmZipContainer(header []byte) error {
	if len(header) == 0 {
		return nil
	}
	if len(header) > sniffLen {
		header = header[:sniffLen]
	}

	kind, err := filetype.Match(header)
	if err != nil || kind == filetype.Unknown {
		return nil
	}
	if kind.MIME.Value == "application/zip" {
		return nil
	}
	return fmt.Errorf("%w: sniffed as %s, not zip", ErrNotAnArchive, kind.MIME.Value)
}

// isAxmlMagic reports whether b begins with AXML's RES_XML_TYPE header:
// a 16-bit little-endian chunk type equal to 0x0003.
func isAxmlMagic(b []byte) bool {
	return len(b) >= 2 && b[0] == 0x03 && b[1] == 0x00
}

// isBplistMagic reports whether b begins with the bplist00 signature.
func isBplistMagic(b []byte) bool {
	return len(b) >= 6 && string(b[:6]) == "bplist"
}

// isPNGMagic reports whether b begins with the PNG file signature.
func isPNGMagic(b []byte) bool {
	sig := []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A}
	if len(b) < len(sig) {
		return false
	}
	for i, c := range sig {
		if b[i] != c {
			return false
		}
	}
	return true
}
