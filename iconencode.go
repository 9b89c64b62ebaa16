package buildinspect

import (
	"bytes"
	"image"
	"image/png"
)

// encodePNG re-encodes a restored RGBA plane as a standard PNG so callers
// get an ordinary, re-decodable image back.
func encodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
