package buildinspect

import (
	"encoding/base64"
	"strconv"
	"strings"

	"github.com/tramlinehq/buildinspect/bplist"
)

// valueFromPlistXML converts a textual Apple property-list document
// (decoded into an Element tree by XmlTreeReader) into a
// bplist.Value, so ProjectIOS and ProjectProvisioning can treat a
// textually-encoded plist exactly like a binary one. Grounded on
// the fallback rule: "falling back to XmlTreeReader if first six
// bytes are not bplist but the content matches <plist".
func valueFromPlistXML(root *Element) bplist.Value {
	top := root
	if top.Tag == "plist" {
		if len(top.Children) == 0 {
			return bplist.Value{Kind: bplist.KindNull}
		}
		top = top.Children[0]
	}
	return convertPlistElement(top)
}

func convertPlistElement(el *Element) bplist.Value {
	switch el.Tag {
	case "dict":
		dict := make(map[string]bplist.Value)
		var key string
		haveKey := false
		for _, child := range el.Children {
			if child.Tag == "key" {
				key = strings.TrimSpace(child.Text)
				haveKey = true
				continue
			}
			if haveKey {
				dict[key] = convertPlistElement(child)
				haveKey = false
			}
		}
		return bplist.Value{Kind: bplist.KindDict, Dict: dict}

	case "array":
		arr := make([]bplist.Value, 0, len(el.Children))
		for _, child := range el.Children {
			arr = append(arr, convertPlistElement(child))
		}
		return bplist.Value{Kind: bplist.KindArray, Array: arr}

	case "string":
		return bplist.Value{Kind: bplist.KindString, String: el.Text}

	case "integer":
		n, _ := strconv.ParseInt(strings.TrimSpace(el.Text), 10, 64)
		return bplist.Value{Kind: bplist.KindInt, Int: n}

	case "real":
		f, _ := strconv.ParseFloat(strings.TrimSpace(el.Text), 64)
		return bplist.Value{Kind: bplist.KindReal, Real: f}

	case "true":
		return bplist.Value{Kind: bplist.KindBool, Bool: true}

	case "false":
		return bplist.Value{Kind: bplist.KindBool, Bool: false}

	case "date":
		// Kept as text: plistDateString already accepts a KindString date.
		return bplist.Value{Kind: bplist.KindString, String: strings.TrimSpace(el.Text)}

	case "data":
		decoded, err := base64.StdEncoding.DecodeString(strings.TrimSpace(el.Text))
		if err != nil {
			return bplist.Value{Kind: bplist.KindData}
		}
		return bplist.Value{Kind: bplist.KindData, Data: decoded}

	default:
		return bplist.Value{Kind: bplist.KindNull}
	}
}
