package axml

import (
	"math"

	"github.com/tramlinehq/buildinspect/tree"
)

// Attribute value type tags, frameworks/base Res_value::dataType.
const (
	typeNull          = 0x00
	typeReference     = 0x01
	typeAttribute     = 0x02
	typeString        = 0x03
	typeFloat         = 0x04
	typeIntDec        = 0x10
	typeIntHex        = 0x11
	typeIntBool       = 0x12
	typeFirstColorInt = 0x1c
	typeLastColorInt  = 0x1f
)

// resolveValue maps a typed attribute (typeTag, data) to an AttrValue,
// resolveValue and the eleven-kind AttrValue
// model in section 3.
func resolveValue(typeTag byte, data uint32) tree.AttrValue {
	switch {
	case typeTag == typeNull:
		return tree.AttrValue{Kind: tree.AttrNull}
	case typeTag == typeReference:
		return tree.AttrValue{Kind: tree.AttrReference, Data: data}
	case typeTag == typeAttribute:
		return tree.AttrValue{Kind: tree.AttrAttributeRef, Data: data}
	case typeTag == typeFloat:
		return tree.AttrValue{Kind: tree.AttrFloat, F32: math.Float32frombits(data)}
	case typeTag == typeIntBool:
		return tree.AttrValue{Kind: tree.AttrBool, Bool: data != 0}
	case typeTag == typeIntHex:
		return tree.AttrValue{Kind: tree.AttrIntHex, Data: data}
	case typeTag == typeIntDec:
		return tree.AttrValue{Kind: tree.AttrIntDec, I32: int32(data)}
	case isComplexDimension(typeTag):
		return resolveComplex(typeTag, data)
	case typeTag >= typeFirstColorInt && typeTag <= typeLastColorInt:
		return tree.AttrValue{Kind: tree.AttrIntHex, Data: data}
	default:
		return tree.AttrValue{Kind: tree.AttrRawResource, Data: data}
	}
}

const (
	typeDimension = 0x05
	typeFraction  = 0x06
)

func isComplexDimension(typeTag byte) bool {
	return typeTag == typeDimension || typeTag == typeFraction
}

// complexUnitDivisors are the "complex" fixed-point radix divisors
// Res_value::COMPLEX_RADIX_* scale a raw 24-bit mantissa by.
var complexUnitDivisors = [4]float32{1, 1.0 / 128, 1.0 / 32768, 1.0 / 8388608}

func resolveComplex(typeTag byte, data uint32) tree.AttrValue {
	mantissa := int32(data>>8) & 0xFFFFFF
	// sign-extend the 24-bit mantissa
	if mantissa&0x800000 != 0 {
		mantissa |= ^int32(0xFFFFFF)
	}
	radix := (data >> 4) & 3
	value := float32(mantissa) * complexUnitDivisors[radix]
	unit := int(data & 0x0f)

	if typeTag == typeDimension {
		if unit > 5 {
			unit = -1 // no suffix, value still preserved 
		}
		return tree.AttrValue{Kind: tree.AttrDimension, F32: value, Unit: unit}
	}

	fracUnit := 0
	if unit == 1 {
		fracUnit = 1
	}
	return tree.AttrValue{Kind: tree.AttrFraction, F32: value, Unit: fracUnit}
}
