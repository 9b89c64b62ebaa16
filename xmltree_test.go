package buildinspect

import "testing"

func TestReadXmlTreeParsesElementsAndText(t *testing.T) {
	doc := []byte(`<?xml version="1.0"?>
<plist version="1.0">
<dict>
<key>Name</key>
<string>Foo</string>
</dict>
</plist>`)

	root, err := NewXmlTreeReader().ReadXmlTree(doc)
	if err != nil {
		t.Fatalf("ReadXmlTree: %v", err)
	}
	if root.Tag != "plist" {
		t.Fatalf("root.Tag = %q, want plist", root.Tag)
	}
	if root.Attr("version") != "1.0" {
		t.Fatalf("version attr = %q, want 1.0", root.Attr("version"))
	}
	dict := root.Find("dict")
	if dict == nil || len(dict.Children) != 2 {
		t.Fatalf("dict children = %+v, want 2", dict)
	}
	if dict.Children[0].Text != "Name" || dict.Children[1].Text != "Foo" {
		t.Fatalf("key/string text = %q/%q", dict.Children[0].Text, dict.Children[1].Text)
	}
}

func TestReadXmlTreeToleratesDoctype(t *testing.T) {
	doc := []byte(`<?xml version="1.0" encoding="UTF-8"?>
<!DOCTYPE plist PUBLIC "-//Apple//DTD PLIST 1.0//EN" "http://www.apple.com/DTDs/PropertyList-1.0.dtd">
<plist version="1.0"><dict/></plist>`)

	root, err := NewXmlTreeReader().ReadXmlTree(doc)
	if err != nil {
		t.Fatalf("ReadXmlTree: %v", err)
	}
	if root.Tag != "plist" {
		t.Fatalf("root.Tag = %q, want plist", root.Tag)
	}
}

func TestReadXmlTreeEmptyDocument(t *testing.T) {
	if _, err := NewXmlTreeReader().ReadXmlTree([]byte("   ")); err == nil {
		t.Fatal("ReadXmlTree on an empty document = nil error")
	}
}
