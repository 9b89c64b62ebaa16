// Package cgbi restores Apple's CgBI-mangled PNGs (premultiplied BGRA,
// raw-deflate compressed, no zlib wrapper) back into a standard RGBA
// pixel plane. Grounded on klauspost/compress/flate for the raw-deflate
// inflate avast/apkparser's zipreader.go already depends on for ordinary
// ZIP entries.
package cgbi

import (
	"bytes"
	"encoding/binary"
	"errors"
	"image"

	"github.com/klauspost/compress/flate"
)

var (
	// ErrUnsupportedFormat is returned for a non-8-bit or non-RGB/RGBA IHDR.
	ErrUnsupportedFormat = errors.New("cgbi: unsupported pixel format")
	// ErrTruncated is returned when IHDR is missing or the IDAT payload
	// doesn't cover the declared raster.
	ErrTruncated = errors.New("cgbi: truncated png")
	// ErrInflateFailure is returned when the raw-deflate stream fails to
	// decompress.
	ErrInflateFailure = errors.New("cgbi: inflate failure")
)

var pngSignature = [8]byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A}

const (
	colorTypeRGB  = 2
	colorTypeRGBA = 6
)

// HasCgBI reports whether buf is a PNG carrying a CgBI chunk, without
// performing any restoration work.
func HasCgBI(buf []byte) bool {
	_, found := walkChunks(buf)
	return found
}

// Restore walks buf's PNG chunk stream and, if a CgBI chunk is present,
// reverses Apple's transform and returns a standard, straight-alpha RGBA
// image. If no CgBI chunk is found, buf is assumed to already be a
// standard PNG and is decoded as-is by the caller — Restore only handles
// the CgBI case and returns ok=false otherwise.
func Restore(buf []byte) (img *image.RGBA, ok bool, err error) {
	chunks, found := walkChunks(buf)
	if !found {
		return nil, false, nil
	}

	ihdr, hasIHDR := chunks["IHDR"]
	if !hasIHDR || len(ihdr) < 13 {
		return nil, true, ErrTruncated
	}
	width := int(binary.BigEndian.Uint32(ihdr[0:4]))
	height := int(binary.BigEndian.Uint32(ihdr[4:8]))
	bitDepth := ihdr[8]
	colorType := ihdr[9]

	if bitDepth != 8 || (colorType != colorTypeRGB && colorType != colorTypeRGBA) {
		return nil, true, ErrUnsupportedFormat
	}
	bpp := 3
	if colorType == colorTypeRGBA {
		bpp = 4
	}

	compressed := chunks["__IDAT__"]
	if len(compressed) == 0 {
		return nil, true, ErrTruncated
	}

	raw, err := inflateRaw(compressed)
	if err != nil {
		return nil, true, ErrInflateFailure
	}

	rowLen := 1 + width*bpp
	if len(raw) < rowLen*height {
		return nil, true, ErrTruncated
	}

	plane, err := unfilter(raw, width, height, bpp)
	if err != nil {
		return nil, true, err
	}

	nrgba := reorderAndUnpremultiply(plane, width, height, bpp)

	// image.RGBA.Pix is conventionally premultiplied, but the straight-alpha
	// bytes nrgba already holds are the correct output here: a NRGBA->RGBA
	// color-model conversion (e.g. via the draw package) would multiply each
	// channel by alpha again, undoing reorderAndUnpremultiply's work. Copy
	// the bytes across unchanged instead.
	rgba := image.NewRGBA(nrgba.Bounds())
	copy(rgba.Pix, nrgba.Pix)
	return rgba, true, nil
}

// walkChunks scans the PNG chunk stream, collecting every IDAT payload
// (concatenated, key "__IDAT__") and the first occurrence of every other
// chunk type keyed by its 4-byte type string. Walking stops at IEND.
// found reports whether a CgBI chunk was seen.
func walkChunks(buf []byte) (map[string][]byte, bool) {
	if len(buf) < 8 || !bytes.Equal(buf[:8], pngSignature[:]) {
		return nil, false
	}

	chunks := make(map[string][]byte)
	var idat bytes.Buffer
	foundCgBI := false

	pos := 8
	for pos+8 <= len(buf) {
		length := int(binary.BigEndian.Uint32(buf[pos : pos+4]))
		typ := string(buf[pos+4 : pos+8])
		dataStart := pos + 8
		dataEnd := dataStart + length
		if length < 0 || dataEnd+4 > len(buf) {
			break
		}
		data := buf[dataStart:dataEnd]

		switch typ {
		case "CgBI":
			foundCgBI = true
		case "IDAT":
			idat.Write(data)
		case "IEND":
			chunks["__IDAT__"] = idat.Bytes()
			return chunks, foundCgBI
		default:
			if _, seen := chunks[typ]; !seen {
				chunks[typ] = data
			}
		}

		pos = dataEnd + 4 // skip the trailing CRC
	}

	chunks["__IDAT__"] = idat.Bytes()
	return chunks, foundCgBI
}

// inflateRaw decompresses a raw DEFLATE stream with no zlib header or
// Adler-32 trailer — the form CgBI stores IDAT payloads in.
func inflateRaw(compressed []byte) ([]byte, error) {
	r := flate.NewReader(bytes.NewReader(compressed))
	defer r.Close()

	var out bytes.Buffer
	if _, err := out.ReadFrom(r); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}

// unfilter reverses the per-scanline PNG filter (None/Sub/Up/Average/
// Paeth), returning the unfiltered raster with its per-row filter bytes
// stripped.
func unfilter(raw []byte, width, height, bpp int) ([]byte, error) {
	rowLen := 1 + width*bpp
	if len(raw) < rowLen*height {
		return nil, ErrTruncated
	}

	plane := make([]byte, width*bpp*height)
	prevRow := make([]byte, width*bpp)

	for y := 0; y < height; y++ {
		rowStart := y * rowLen
		filterType := raw[rowStart]
		src := raw[rowStart+1 : rowStart+rowLen]

		dst := plane[y*width*bpp : (y+1)*width*bpp]

		for i := 0; i < len(src); i++ {
			var a, b, c byte
			if i >= bpp {
				a = dst[i-bpp]
			}
			b = prevRow[i]
			if i >= bpp {
				c = prevRow[i-bpp]
			}

			var cur byte
			switch filterType {
			case 0: // None
				cur = src[i]
			case 1: // Sub
				cur = src[i] + a
			case 2: // Up
				cur = src[i] + b
			case 3: // Average
				cur = src[i] + byte((int(a)+int(b))>>1)
			case 4: // Paeth
				cur = src[i] + paeth(a, b, c)
			default:
				cur = src[i]
			}
			dst[i] = cur
		}

		prevRow = dst
	}

	return plane, nil
}

func paeth(a, b, c byte) byte {
	p := int(a) + int(b) - int(c)
	pa := abs(p - int(a))
	pb := abs(p - int(b))
	pc := abs(p - int(c))

	// Ties break toward a, then b, then c.
	if pa <= pb && pa <= pc {
		return a
	}
	if pb <= pc {
		return b
	}
	return c
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

// reorderAndUnpremultiply converts a BGR(A) premultiplied-alpha plane into
// a standard *image.NRGBA (straight alpha, RGBA channel order).
func reorderAndUnpremultiply(plane []byte, width, height, bpp int) *image.NRGBA {
	out := image.NewNRGBA(image.Rect(0, 0, width, height))

	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			srcOff := (y*width + x) * bpp
			b := plane[srcOff+0]
			g := plane[srcOff+1]
			r := plane[srcOff+2]
			a := byte(255)
			if bpp == 4 {
				a = plane[srcOff+3]
			}

			dstOff := out.PixOffset(x, y)
			switch {
			case a == 0:
				out.Pix[dstOff+0] = 0
				out.Pix[dstOff+1] = 0
				out.Pix[dstOff+2] = 0
				out.Pix[dstOff+3] = 0
			case a < 255 && bpp == 4:
				out.Pix[dstOff+0] = unpremultiply(r, a)
				out.Pix[dstOff+1] = unpremultiply(g, a)
				out.Pix[dstOff+2] = unpremultiply(b, a)
				out.Pix[dstOff+3] = a
			default:
				out.Pix[dstOff+0] = r
				out.Pix[dstOff+1] = g
				out.Pix[dstOff+2] = b
				out.Pix[dstOff+3] = a
			}
		}
	}

	return out
}

// unpremultiply divides a premultiplied channel by alpha, rounding
// half-up as matches how Apple's decoders round.
func unpremultiply(channel, alpha byte) byte {
	v := (int(channel)*255*2 + int(alpha)) / (int(alpha) * 2)
	if v > 255 {
		v = 255
	}
	return byte(v)
}
