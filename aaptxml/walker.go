// Package aaptxml interprets a generic protobuf field index (package
// protobuf) as AAPT2's compiled XmlNode schema and reconstructs the same
// Element tree shape the axml package produces — with no schema compiler,
// just field-number dispatch.
package aaptxml

import (
	"errors"
	"math"

	"github.com/tramlinehq/buildinspect/protobuf"
	"github.com/tramlinehq/buildinspect/tree"
)

// errTooDeep is returned when an XmlNode/XmlElement chain nests past
// maxDepth, mirroring bplist's guard against a malformed or adversarial
// object graph.
var errTooDeep = errors.New("aaptxml: element tree too deep")

// maxDepth caps XmlNode->XmlElement->child recursion.
const maxDepth = 1024

// XmlNode field numbers.
const (
	fieldNodeElement = 1
	fieldNodeText    = 2
)

// XmlElement field numbers.
const (
	fieldElementNamespaceDecl = 1
	fieldElementNamespaceURI  = 2
	fieldElementName          = 3
	fieldElementAttribute     = 4
	fieldElementChild         = 5
)

// XmlAttribute field numbers.
const (
	fieldAttrNamespaceURI = 1
	fieldAttrName         = 2
	fieldAttrValueString  = 3
	fieldAttrResourceID   = 5
	fieldAttrCompiledItem = 6
)

// XmlNamespace field numbers.
const (
	fieldNamespacePrefix = 1
	fieldNamespaceURI    = 2
)

// Item field numbers.
const (
	fieldItemReference = 1
	fieldItemString    = 2
	fieldItemRawString = 3
	fieldItemPrimitive = 7
)

// Reference field numbers.
const fieldReferenceID = 1

// Primitive field numbers.
const (
	fieldPrimitiveNull   = 1
	fieldPrimitiveFloat  = 3
	fieldPrimitiveIntDec = 6
	fieldPrimitiveIntHex = 7
	fieldPrimitiveBool   = 8
)

// walker accumulates the uri -> prefix mapping for one parse call.
// Scoped per-instance, never package-level, and
// matching the scoping of axml's own decoder.
type walker struct {
	nsPrefix map[string]string
}

// Walk decodes buf as an AAPT2-compiled XmlNode and returns its Element.
// Returns nil, nil if the top-level node has no element field — not
// fatal, just "nothing here".
func Walk(buf []byte) (*tree.Element, error) {
	fields, err := protobuf.Parse(buf)
	if err != nil {
		return nil, err
	}

	w := &walker{nsPrefix: make(map[string]string)}

	elemBytes, ok := firstBytes(fields, fieldNodeElement)
	if !ok {
		return nil, nil
	}

	elemFields, err := protobuf.Parse(elemBytes)
	if err != nil {
		return nil, err
	}
	return w.walkElement(elemFields, 0)
}

func (w *walker) walkElement(fields protobuf.Fields, depth int) (*tree.Element, error) {
	if depth > maxDepth {
		return nil, errTooDeep
	}
	// Namespace declarations accumulate globally for the parse (AAPT2
	// declares them at the root), so register them before descending
	// into attributes or children.
	for _, v := range fields[fieldElementNamespaceDecl] {
		nsFields, err := protobuf.Parse(v.Bytes)
		if err != nil {
			continue
		}
		prefix := stringField(nsFields, fieldNamespacePrefix)
		uri := stringField(nsFields, fieldNamespaceURI)
		if uri != "" {
			w.nsPrefix[uri] = prefix
		}
	}

	name := stringField(fields, fieldElementName)
	el := tree.NewElement(name)

	for _, v := range fields[fieldElementAttribute] {
		attrFields, err := protobuf.Parse(v.Bytes)
		if err != nil {
			continue
		}
		w.addAttribute(el, attrFields)
	}

	for _, v := range fields[fieldElementChild] {
		childFields, err := protobuf.Parse(v.Bytes)
		if err != nil {
			continue
		}
		if elemBytes, ok := firstBytes(childFields, fieldNodeElement); ok {
			childElemFields, err := protobuf.Parse(elemBytes)
			if err != nil {
				continue
			}
			child, err := w.walkElement(childElemFields, depth+1)
			if err == errTooDeep {
				return nil, err
			}
			if err != nil || child == nil {
				continue
			}
			el.Children = append(el.Children, child)
		} else if text := stringField(childFields, fieldNodeText); text != "" {
			el.Text += text
		}
	}

	return el, nil
}

func (w *walker) addAttribute(el *tree.Element, fields protobuf.Fields) {
	namespaceURI := stringField(fields, fieldAttrNamespaceURI)
	name := stringField(fields, fieldAttrName)
	rawString := stringField(fields, fieldAttrValueString)

	var value tree.AttrValue
	typeTag := ""
	hasCompiled := false

	if itemBytes, ok := firstBytes(fields, fieldAttrCompiledItem); ok {
		if itemFields, err := protobuf.Parse(itemBytes); err == nil {
			if v, tag, ok := decodeItem(itemFields); ok {
				value = v
				typeTag = tag
				hasCompiled = true
			}
		}
	}

	// Value precedence: compiled_item overrides the raw string.
	if !hasCompiled {
		if rawString != "" {
			value = tree.AttrValue{Kind: tree.AttrString, Str: rawString}
			typeTag = "string"
		} else {
			value = tree.AttrValue{Kind: tree.AttrNull}
			typeTag = "null"
		}
	}

	key := name
	if namespaceURI != "" {
		if prefix, ok := w.nsPrefix[namespaceURI]; ok && prefix != "" {
			key = prefix + ":" + name
		}
	}

	el.Attributes[key] = value
	el.RawAttrs = append(el.RawAttrs, tree.RawAttr{
		NamespaceURI: namespaceURI,
		LocalName:    name,
		Value:        value,
		TypeTag:      typeTag,
	})
}

// decodeItem decodes an Item message into an AttrValue. Unknown primitive
// kinds report ok=false so the caller falls back to the raw string.
func decodeItem(fields protobuf.Fields) (tree.AttrValue, string, bool) {
	if refBytes, ok := firstBytes(fields, fieldItemReference); ok {
		refFields, err := protobuf.Parse(refBytes)
		if err == nil {
			id := varintField(refFields, fieldReferenceID)
			return tree.AttrValue{Kind: tree.AttrReference, Data: uint32(id)}, "reference", true
		}
	}

	if s, ok := firstString(fields, fieldItemString); ok {
		return tree.AttrValue{Kind: tree.AttrString, Str: s}, "string", true
	}

	if s, ok := firstString(fields, fieldItemRawString); ok {
		return tree.AttrValue{Kind: tree.AttrString, Str: s}, "rawString", true
	}

	if primBytes, ok := firstBytes(fields, fieldItemPrimitive); ok {
		primFields, err := protobuf.Parse(primBytes)
		if err == nil {
			return decodePrimitive(primFields)
		}
	}

	return tree.AttrValue{}, "", false
}

func decodePrimitive(fields protobuf.Fields) (tree.AttrValue, string, bool) {
	switch {
	case hasField(fields, fieldPrimitiveNull):
		return tree.AttrValue{Kind: tree.AttrNull}, "null", true
	case hasField(fields, fieldPrimitiveFloat):
		bits := fixed32Field(fields, fieldPrimitiveFloat)
		return tree.AttrValue{Kind: tree.AttrFloat, F32: math.Float32frombits(bits)}, "float", true
	case hasField(fields, fieldPrimitiveIntDec):
		v := varintField(fields, fieldPrimitiveIntDec)
		return tree.AttrValue{Kind: tree.AttrIntDec, I32: int32(v)}, "intDec", true
	case hasField(fields, fieldPrimitiveIntHex):
		v := varintField(fields, fieldPrimitiveIntHex)
		return tree.AttrValue{Kind: tree.AttrIntHex, Data: uint32(v)}, "intHex", true
	case hasField(fields, fieldPrimitiveBool):
		v := varintField(fields, fieldPrimitiveBool)
		return tree.AttrValue{Kind: tree.AttrBool, Bool: v != 0}, "bool", true
	default:
		return tree.AttrValue{}, "", false
	}
}

func firstBytes(fields protobuf.Fields, field int) ([]byte, bool) {
	vs := fields[field]
	if len(vs) == 0 {
		return nil, false
	}
	return vs[0].Bytes, true
}

func firstString(fields protobuf.Fields, field int) (string, bool) {
	b, ok := firstBytes(fields, field)
	if !ok {
		return "", false
	}
	return string(b), true
}

func stringField(fields protobuf.Fields, field int) string {
	s, _ := firstString(fields, field)
	return s
}

func varintField(fields protobuf.Fields, field int) uint64 {
	vs := fields[field]
	if len(vs) == 0 {
		return 0
	}
	return vs[0].Varint
}

func fixed32Field(fields protobuf.Fields, field int) uint32 {
	vs := fields[field]
	if len(vs) == 0 {
		return 0
	}
	return vs[0].Fixed32
}

func hasField(fields protobuf.Fields, field int) bool {
	return len(fields[field]) > 0
}
