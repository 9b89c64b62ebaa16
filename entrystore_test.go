package buildinspect

import (
	"archive/zip"
	"bytes"
	"io"
	"testing"
)

func buildTestZip(t *testing.T, files map[string]string) *bytes.Reader {
	t.Helper()
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	for name, content := range files {
		f, err := w.Create(name)
		if err != nil {
			t.Fatalf("Create(%q): %v", name, err)
		}
		if _, err := f.Write([]byte(content)); err != nil {
			t.Fatalf("Write(%q): %v", name, err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("zip.Writer.Close: %v", err)
	}
	return bytes.NewReader(buf.Bytes())
}

func TestOpenZipReaderListAndOpen(t *testing.T) {
	r := buildTestZip(t, map[string]string{
		"AndroidManifest.xml": "<manifest/>",
		"classes.dex":         "dex bytes",
	})

	store, err := OpenZipReader(r)
	if err != nil {
		t.Fatalf("OpenZipReader: %v", err)
	}

	entries := store.List()
	if len(entries) != 2 {
		t.Fatalf("List() = %v, want 2 entries", entries)
	}

	rc, err := store.Open("AndroidManifest.xml")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if string(data) != "<manifest/>" {
		t.Fatalf("content = %q, want <manifest/>", data)
	}
}

func TestOpenZipReaderMissingEntry(t *testing.T) {
	r := buildTestZip(t, map[string]string{"a.txt": "a"})
	store, err := OpenZipReader(r)
	if err != nil {
		t.Fatalf("OpenZipReader: %v", err)
	}
	if _, err := store.Open("missing.txt"); err == nil {
		t.Fatal("Open(missing.txt) = nil error, want not-found error")
	}
}

func TestOpenZipReaderRejectsNonZip(t *testing.T) {
	r := bytes.NewReader([]byte("this is not a zip archive at all, just text"))
	if _, err := OpenZipReader(r); err == nil {
		t.Fatal("OpenZipReader on garbage input = nil error, want ErrNotAnArchive")
	}
}

func TestScanLocalHeadersFallback(t *testing.T) {
	// A minimal hand-built local-file-header stream with no central
	// directory — archive/zip refuses this, so OpenZipReader must fall
	// back to scanLocalHeaders.
	name := "entry.txt"
	content := []byte("hello")

	var buf []byte
	buf = append(buf, 0x50, 0x4B, 0x03, 0x04) // local file header signature
	buf = append(buf, make([]byte, 4)...)     // version needed + general-purpose flags
	buf = append(buf, le16Bytes(0)...)        // compression method: Store
	buf = append(buf, make([]byte, 4)...)     // mod time + mod date
	buf = append(buf, make([]byte, 4)...)     // crc32, unchecked by addLocalHeader
	buf = append(buf, le32Bytes(uint32(len(content)))...) // compressed size
	buf = append(buf, le32Bytes(uint32(len(content)))...) // uncompressed size
	buf = append(buf, le16Bytes(uint16(len(name)))...)
	buf = append(buf, le16Bytes(0)...) // extra length
	buf = append(buf, name...)
	buf = append(buf, content...)

	store, err := OpenZipReader(bytes.NewReader(buf))
	if err != nil {
		t.Fatalf("OpenZipReader fallback: %v", err)
	}
	rc, err := store.Open(name)
	if err != nil {
		t.Fatalf("Open(%q): %v", name, err)
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if string(data) != "hello" {
		t.Fatalf("content = %q, want hello", data)
	}
}

func le32Bytes(v uint32) []byte {
	return []byte{byte(v), byte(v >> 8), byte(v >> 16), byte(v >> 24)}
}

func le16Bytes(v uint16) []byte {
	return []byte{byte(v), byte(v >> 8)}
}
