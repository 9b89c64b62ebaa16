package axml

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/tramlinehq/buildinspect/tree"
)

// ErrNotAxml is returned when the input doesn't open with the AXML magic
// (RES_XML_TYPE, 0x0003 little-endian).
var ErrNotAxml = errors.New("axml: not a binary xml file")

var (
	errShortChunk     = errors.New("axml: chunk too short")
	errTooManyStrings = errors.New("axml: too many strings in pool")
)

const androidNamespaceURI = "http://schemas.android.com/apk/res/android"

type decoder struct {
	buf     []byte
	strings *stringPool
	resIDs  []uint32

	// nsPrefix maps a namespace URI to its declared prefix for this parse
	// call only — scoped per-instance, never process-wide.
	nsPrefix map[string]string
}

// Decode reads a complete AXML buffer from r and returns its root Element.
// If the file declares more than one top-level element, the first is
// returned.
func Decode(r io.Reader) (*tree.Element, error) {
	buf, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	return DecodeBytes(buf)
}

// DecodeBytes decodes a complete in-memory AXML buffer.
func DecodeBytes(buf []byte) (*tree.Element, error) {
	if len(buf) < 8 {
		return nil, ErrNotAxml
	}
	if binary.LittleEndian.Uint16(buf[0:2]) != chunkXMLFile {
		return nil, ErrNotAxml
	}

	fileSize := int(binary.LittleEndian.Uint32(buf[4:8]))
	end := len(buf)
	if fileSize > 0 && fileSize < end {
		end = fileSize
	}

	d := &decoder{
		buf:      buf,
		nsPrefix: make(map[string]string),
	}

	var root *tree.Element
	var stack []*tree.Element

	cursor := 8
	for cursor+8 <= end {
		typ := binary.LittleEndian.Uint16(buf[cursor : cursor+2])
		chunkSize := int(binary.LittleEndian.Uint32(buf[cursor+4 : cursor+8]))

		// Malformation is tolerated by truncating the tree, not erroring:
		// real artifacts occasionally pad their trailing chunk.
		if chunkSize < 8 || cursor+chunkSize > len(buf) {
			break
		}

		chunkStart := cursor
		chunk := buf[chunkStart : chunkStart+chunkSize]

		switch typ {
		case chunkStringPool:
			if sp, err := parseStringPool(chunk); err == nil {
				d.strings = sp
			}
		case chunkResourceMap:
			d.resIDs = parseResourceMap(chunk)
		case chunkXMLNSStart:
			d.handleNSStart(chunk)
		case chunkXMLNSEnd:
			// no state to undo: a malformed file could still reference a
			// namespace after its END_NAMESPACE; this decoder has no way
			// to observe tag ordering well enough to unwind safely.
		case chunkXMLTagStart:
			el, err := d.parseTagStart(chunkStart, chunk)
			if err == nil {
				if root == nil {
					root = el
					stack = []*tree.Element{el}
				} else if len(stack) > 0 {
					top := stack[len(stack)-1]
					top.Children = append(top.Children, el)
					stack = append(stack, el)
				}
			}
		case chunkXMLTagEnd:
			if len(stack) > 1 {
				stack = stack[:len(stack)-1]
			}
		case chunkXMLCData:
			// ignored: no callers need raw character data out of a manifest
		}

		cursor = chunkStart + chunkSize
	}

	if root == nil {
		return nil, fmt.Errorf("axml: no root element found")
	}
	return root, nil
}

func (d *decoder) handleNSStart(chunk []byte) {
	// body: lineNumber:u32, comment:u32, prefixIdx:u32, uriIdx:u32
	body := chunk[8:]
	if len(body) < 16 {
		return
	}
	prefixIdx := binary.LittleEndian.Uint32(body[8:12])
	uriIdx := binary.LittleEndian.Uint32(body[12:16])

	prefix, _ := d.strings.get(prefixIdx)
	uri, ok := d.strings.get(uriIdx)
	if ok && uri != "" {
		d.nsPrefix[uri] = prefix
	}
}

// parseResourceMap loads the RESOURCE_MAP chunk body into an index ->
// resource-id array, used to name attributes whose name string was
// stripped by an obfuscator/minimizer — these are not resolved against a
// real resource table; the projector simply has no name for such an
// attribute and falls back to its pool string, if any.
func parseResourceMap(chunk []byte) []uint32 {
	body := chunk[8:]
	count := len(body) / 4
	out := make([]uint32, count)
	for i := 0; i < count; i++ {
		out[i] = binary.LittleEndian.Uint32(body[i*4 : i*4+4])
	}
	return out
}

// parseTagStart decodes a START_ELEMENT chunk into an Element (with no
// children yet). chunkStart is the absolute offset of this chunk's common
// 8-byte header within the overall buffer.
func (d *decoder) parseTagStart(chunkStart int, chunk []byte) (*tree.Element, error) {
	// body: lineNumber:u32, comment:u32, then the attribute extension
	// (namespaceIdx:u32, nameIdx:u32, attrStart:u16, attrSize:u16,
	// attrCount:u16, idIdx:u16, classIdx:u16, styleIdx:u16).
	body := chunk[8:]
	if len(body) < 28 {
		return nil, errShortChunk
	}

	nameIdx := binary.LittleEndian.Uint32(body[12:16])
	attrStart := binary.LittleEndian.Uint16(body[16:18])
	attrSize := binary.LittleEndian.Uint16(body[18:20])
	attrCount := binary.LittleEndian.Uint16(body[20:22])

	name, _ := d.strings.get(nameIdx)

	el := tree.NewElement(name)

	if attrSize == 0 {
		attrSize = 20
	}

	// Attribute list begins at chunkStart + 16 + attrStart.
	attrBase := chunkStart + 16 + int(attrStart)

	for i := 0; i < int(attrCount); i++ {
		off := attrBase + i*int(attrSize)
		if off < 0 || off+int(attrSize) > len(d.buf) || attrSize < 20 {
			break
		}
		attr := d.buf[off : off+int(attrSize)]

		attrNamespaceIdx := binary.LittleEndian.Uint32(attr[0:4])
		attrNameIdx := binary.LittleEndian.Uint32(attr[4:8])
		rawValueIdx := int32(binary.LittleEndian.Uint32(attr[8:12]))
		typeTag := attr[14]
		data := binary.LittleEndian.Uint32(attr[16:20])

		localName, _ := d.strings.get(attrNameIdx)
		attrNamespaceURI, _ := d.strings.get(attrNamespaceIdx)

		var value tree.AttrValue
		typeTagName := ""
		if rawValueIdx >= 0 {
			s, ok := d.strings.get(uint32(rawValueIdx))
			if ok {
				value = tree.AttrValue{Kind: tree.AttrString, Str: s}
			} else {
				value = tree.AttrValue{Kind: tree.AttrNull}
			}
			typeTagName = "string"
		} else {
			value = resolveValue(typeTag, data)
			typeTagName = typeTagLabel(typeTag)
		}

		key := localName
		if attrNamespaceURI != "" {
			if prefix, ok := d.nsPrefix[attrNamespaceURI]; ok && prefix != "" {
				key = prefix + ":" + localName
			}
		}
		el.Attributes[key] = value
		el.RawAttrs = append(el.RawAttrs, tree.RawAttr{
			NamespaceURI: attrNamespaceURI,
			LocalName:    localName,
			Value:        value,
			TypeTag:      typeTagName,
		})
	}

	return el, nil
}

func typeTagLabel(tag byte) string {
	switch tag {
	case typeNull:
		return "null"
	case typeReference:
		return "reference"
	case typeAttribute:
		return "attribute"
	case typeFloat:
		return "float"
	case typeDimension:
		return "dimension"
	case typeFraction:
		return "fraction"
	case typeIntDec:
		return "intDec"
	case typeIntHex:
		return "intHex"
	case typeIntBool:
		return "bool"
	default:
		return "raw"
	}
}
