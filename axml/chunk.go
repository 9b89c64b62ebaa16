// Package axml decodes Android's chunked binary XML format (AXML) into a
// tree.Element tree, with no resource-table resolution.
package axml

import (
	"encoding/binary"
	"io"
)

// Chunk type identifiers, frameworks/base/libs/androidfw/include/androidfw/ResourceTypes.h.
const (
	chunkNull        = 0x0000
	chunkStringPool  = 0x0001
	chunkTable       = 0x0002
	chunkXMLFile     = 0x0003
	chunkResourceMap = 0x0180

	chunkMaskXML    = 0x0100
	chunkXMLNSStart = 0x0100
	chunkXMLNSEnd   = 0x0101
	chunkXMLTagStart = 0x0102
	chunkXMLTagEnd   = 0x0103
	chunkXMLCData    = 0x0104

	chunkHeaderSize = 2 + 2 + 4 // type, headerSize, chunkSize
)

type chunkHeader struct {
	typ       uint16
	headerLen uint16
	size      uint32
}

func readChunkHeader(r io.Reader) (chunkHeader, error) {
	var h chunkHeader
	if err := binary.Read(r, binary.LittleEndian, &h.typ); err != nil {
		return h, err
	}
	if err := binary.Read(r, binary.LittleEndian, &h.headerLen); err != nil {
		return h, err
	}
	if err := binary.Read(r, binary.LittleEndian, &h.size); err != nil {
		return h, err
	}
	return h, nil
}
