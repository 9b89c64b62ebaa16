package buildinspect

import "github.com/tramlinehq/buildinspect/tree"

// Element is the common output shape of the AXML decoder (axml) and the
// AAPT2 proto-XML walker (aaptxml); both packages build tree.Element
// directly so they have no dependency on this package, and this alias
// lets the rest of buildinspect (and external callers) spell the type
// without naming the tree package explicitly.
type Element = tree.Element

// AttrValue is a tagged union over the eleven AXML/AAPT2 attribute value
// kinds; see tree.AttrValue.
type AttrValue = tree.AttrValue

// AttrKind tags the variant held by an AttrValue; see tree.AttrKind.
type AttrKind = tree.AttrKind

// RawAttr preserves one attribute's original wire order and namespace;
// see tree.RawAttr.
type RawAttr = tree.RawAttr

const (
	AttrNull         = tree.AttrNull
	AttrReference    = tree.AttrReference
	AttrAttributeRef = tree.AttrAttributeRef
	AttrString       = tree.AttrString
	AttrFloat        = tree.AttrFloat
	AttrDimension    = tree.AttrDimension
	AttrFraction     = tree.AttrFraction
	AttrIntDec       = tree.AttrIntDec
	AttrIntHex       = tree.AttrIntHex
	AttrBool         = tree.AttrBool
	AttrRawResource  = tree.AttrRawResource
)

// NewElement allocates an Element ready to receive attributes/children.
func NewElement(tag string) *Element {
	return tree.NewElement(tag)
}
