package buildinspect

import (
	"archive/zip"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"sync"

	"github.com/klauspost/compress/flate"
)

// EntryStore is the archive abstraction callers inspect against: list the
// entries, open one for reading. Paths use forward slashes; matching is
// case-sensitive except where callers note otherwise.
type EntryStore interface {
	List() []string
	Open(name string) (io.ReadCloser, error)
}

// zipEntryStore is the default EntryStore, backed by a ZIP archive. It
// tolerates archives archive/zip rejects outright by falling back to a
// linear local-file-header scan, mirroring real-world Android tooling's
// leniency: Android's own ZIP reader does not enforce central-directory
// consistency the way Go's archive/zip does.
type zipEntryStore struct {
	entries map[string]*zipStoreEntry
	order   []string

	backing io.ReaderAt
	owned   *os.File
}

type zipStoreEntry struct {
	name   string
	offset int64 // local-header-relative fallback path only
	length int64 // compressed length, fallback path only
	method uint16
	zf     *zip.File // archive/zip path; nil when using the fallback scanner
	reader io.ReaderAt
}

func (s *zipEntryStore) List() []string {
	out := make([]string, len(s.order))
	copy(out, s.order)
	return out
}

func (s *zipEntryStore) Open(name string) (io.ReadCloser, error) {
	e, ok := s.entries[path.Clean(name)]
	if !ok {
		return nil, fmt.Errorf("buildinspect: entry %q not found", name)
	}

	if e.zf != nil {
		rc, err := e.zf.Open()
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrEntryDecompressFailed, name, err)
		}
		return rc, nil
	}

	sr := io.NewSectionReader(e.reader, e.offset, e.length)
	switch e.method {
	case zip.Store:
		return io.NopCloser(sr), nil
	default:
		fr := pooledFlateReader(sr)
		return fr, nil
	}
}

// Close releases the underlying file, if the store owns one (OpenZipFile).
func (s *zipEntryStore) Close() error {
	if s.owned != nil {
		err := s.owned.Close()
		s.owned = nil
		return err
	}
	return nil
}

// OpenZipFile opens path as a ZIP-backed EntryStore, owning the underlying
// *os.File (Close() releases it).
func OpenZipFile(p string) (*zipEntryStore, error) {
	f, err := os.Open(p)
	if err != nil {
		return nil, err
	}
	s, err := OpenZipReader(f)
	if err != nil {
		f.Close()
		return nil, err
	}
	s.owned = f
	return s, nil
}

// OpenZipReader opens a ZIP-backed EntryStore over an already-open reader.
// The caller retains ownership of r.
func OpenZipReader(r io.ReaderAt) (*zipEntryStore, error) {
	size, err := sizeOf(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotAnArchive, err)
	}

	s := &zipEntryStore{
		entries: make(map[string]*zipStoreEntry),
		backing: r,
	}

	if zr, err := tryArchiveZip(r, size); err == nil {
		for _, zf := range zr.File {
			cl := path.Clean(zf.Name)
			if _, exists := s.entries[cl]; exists {
				continue
			}
			e := &zipStoreEntry{name: cl, zf: zf}
			s.entries[cl] = e
			s.order = append(s.order, cl)
		}
		return s, nil
	}

	return scanLocalHeaders(r, size)
}

func sizeOf(r io.ReaderAt) (int64, error) {
	if sz, ok := r.(interface{ Size() int64 }); ok {
		return sz.Size(), nil
	}
	if seeker, ok := r.(io.Seeker); ok {
		return seeker.Seek(0, io.SeekEnd)
	}
	return 0, errors.New("reader does not support Size or Seek")
}

func tryArchiveZip(r io.ReaderAt, size int64) (zr *zip.Reader, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("panic opening zip: %v", p)
			zr = nil
		}
	}()
	return zip.NewReader(r, size)
}

// scanLocalHeaders walks the byte stream for PK\x03\x04 local file header
// signatures directly, the same technique avast/apkparser's zipreader.go
// uses for archives whose central directory archive/zip refuses to trust.
func scanLocalHeaders(r io.ReaderAt, size int64) (*zipEntryStore, error) {
	s := &zipEntryStore{
		entries: make(map[string]*zipStoreEntry),
		backing: r,
	}

	sig := []byte{0x50, 0x4B, 0x03, 0x04}
	buf := make([]byte, 64*1024)

	var off int64
	found := false
	for off < size {
		n, _ := r.ReadAt(buf, off)
		if n == 0 {
			break
		}
		next := int64(-1)
		for i := 0; i+4 <= n; i++ {
			if buf[i] == sig[0] && buf[i+1] == sig[1] && buf[i+2] == sig[2] && buf[i+3] == sig[3] {
				hdr := off + int64(i)
				consumed, err := s.addLocalHeader(r, hdr, size)
				if err == nil {
					found = true
				}
				if consumed > 0 {
					next = hdr + consumed
					break
				}
			}
		}
		if next >= 0 {
			// resume the scan right after this entry's data
			off = next
			continue
		}
		if n < len(buf) {
			break
		}
		off += int64(n) - 3 // allow signature to straddle the chunk boundary
	}

	if !found {
		return nil, ErrNotAnArchive
	}
	return s, nil
}

func (s *zipEntryStore) addLocalHeader(r io.ReaderAt, hdr, size int64) (int64, error) {
	fixed := make([]byte, 30)
	if _, err := r.ReadAt(fixed, hdr); err != nil {
		return 0, err
	}

	method := le16(fixed[8:10])
	nameLen := le16(fixed[26:28])
	extraLen := le16(fixed[28:30])
	compSize := le32(fixed[18:22])

	nameBuf := make([]byte, nameLen)
	if _, err := r.ReadAt(nameBuf, hdr+30); err != nil {
		return 0, err
	}

	name := path.Clean(string(nameBuf))
	dataOff := hdr + 30 + int64(nameLen) + int64(extraLen)

	if _, exists := s.entries[name]; !exists {
		e := &zipStoreEntry{
			name:   name,
			offset: dataOff,
			length: int64(compSize),
			method: method,
			reader: r,
		}
		s.entries[name] = e
		s.order = append(s.order, name)
	}

	return 30 + int64(nameLen) + int64(extraLen) + int64(compSize), nil
}

func le16(b []byte) uint16 { return uint16(b[0]) | uint16(b[1])<<8 }
func le32(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}

var flateReaderPool sync.Pool

// pooledFlateReader mirrors zipreader.go's pooledFlateReader: a sync.Pool
// of resettable flate.Reader instances, worthwhile because one Inspect
// call may open many entries (manifest, icon, .so listing, frameworks).
func pooledFlateReader(r io.Reader) io.ReadCloser {
	fr, ok := flateReaderPool.Get().(io.ReadCloser)
	if ok {
		fr.(flate.Resetter).Reset(r, nil)
	} else {
		fr = flate.NewReader(r)
	}
	return &pooledEntryReader{fr: fr}
}

type pooledEntryReader struct {
	mu sync.Mutex
	fr io.ReadCloser
}

func (p *pooledEntryReader) Read(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fr == nil {
		return 0, errors.New("buildinspect: read after close")
	}
	return p.fr.Read(b)
}

func (p *pooledEntryReader) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	var err error
	if p.fr != nil {
		err = p.fr.Close()
		flateReaderPool.Put(p.fr)
		p.fr = nil
	}
	return err
}
