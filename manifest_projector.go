package buildinspect

import (
	"bytes"
	"fmt"
	"io"
	"path"

	"github.com/tramlinehq/buildinspect/bplist"
)

// Project reduces a decoded manifest element tree (for APK/AAB; pass nil
// for IPA, which reads its own Info.plist from store) plus an archive's
// entries into a BuildInfo. Non-fatal failures (icon lookup, provisioning
// extraction, even manifest projection itself) are recorded on the result
// rather than returned as an error; the returned error is always nil.
func Project(root *Element, store EntryStore, platform Platform, xmlReader XmlTreeReader) (*BuildInfo, error) {
	entries := store.List()
	bi := &BuildInfo{
		Platform:   platform,
		EntryCount: len(entries),
	}

	switch platform {
	case PlatformAPK, PlatformAAB:
		projectAndroidInto(bi, root, store, entries, platform == PlatformAAB)
	case PlatformIPA:
		projectIOSInto(bi, store, entries, xmlReader)
	}

	return bi, nil
}

func projectAndroidInto(bi *BuildInfo, root *Element, store EntryStore, entries []string, isAAB bool) {
	info, iconRef, err := ProjectAndroid(root, entries, isAAB)
	if err != nil {
		bi.ManifestError = err.Error()
		// archive-level fields don't depend on the manifest
		info = &AndroidInfo{
			Architectures: detectArchitectures(entries, isAAB),
			DexCount:      countDex(entries),
		}
		if isAAB {
			info.Modules = detectModules(entries)
		}
		info.Signed, info.SignFiles = detectSigning(entries)
		bi.Android = info
		return
	}
	bi.Android = info

	iconPath := ResolveIconPath(entries, iconRef, isAAB)
	if iconPath == "" {
		bi.Warnings = append(bi.Warnings, "no launcher icon found")
		return
	}
	bi.IconPath = iconPath

	data, err := readEntry(store, iconPath)
	if err != nil {
		bi.Warnings = append(bi.Warnings, fmt.Sprintf("icon entry %s: %v", iconPath, err))
		return
	}
	bi.IconBytes = data
}

func projectIOSInto(bi *BuildInfo, store EntryStore, entries []string, xmlReader XmlTreeReader) {
	bundleRoot, ok := FindBundleRoot(entries)
	if !ok {
		bi.ManifestError = errNoBundleApp.Error()
		return
	}

	plistPath := path.Join(bundleRoot, "Info.plist")
	raw, err := readEntry(store, plistPath)
	if err != nil {
		bi.ManifestError = fmt.Errorf("%w: %v", errNoInfoPlist, err).Error()
		return
	}

	plistValue, err := decodePlist(raw, xmlReader)
	if err != nil {
		bi.ManifestError = err.Error()
		return
	}

	ios := ProjectIOS(plistValue, entries, bundleRoot)
	bi.IOS = ios

	if prov, ok := readProvisioning(store, bundleRoot, xmlReader); ok {
		ios.Provisioning = prov
	} else {
		bi.Warnings = append(bi.Warnings, "no usable embedded.mobileprovision")
	}

	for _, hint := range IconNameHints(plistValue) {
		if iconPath, ok := bundleIconPath(entries, bundleRoot, hint); ok {
			bi.IconPath = iconPath
			if data, err := readEntry(store, iconPath); err == nil {
				bi.IconBytes = data
			}
			break
		}
	}
	if bi.IconPath == "" {
		bi.Warnings = append(bi.Warnings, "no launcher icon found")
	}
}

func readProvisioning(store EntryStore, bundleRoot string, xmlReader XmlTreeReader) (*ProvisioningInfo, bool) {
	raw, err := readEntry(store, path.Join(bundleRoot, "embedded.mobileprovision"))
	if err != nil {
		return nil, false
	}
	prov, err := ProjectProvisioning(raw, func(r io.Reader) (bplist.Value, error) {
		data, err := io.ReadAll(r)
		if err != nil {
			return bplist.Value{}, err
		}
		parsed, err := xmlReader.ReadXmlTree(data)
		if err != nil {
			return bplist.Value{}, err
		}
		return valueFromPlistXML(parsed), nil
	})
	if err != nil {
		return nil, false
	}
	return prov, true
}

// decodePlist tries bplist first (the common case for Info.plist), then
// falls back to XmlTreeReader when the bytes aren't bplist-magic but look
// like a textual plist.
func decodePlist(raw []byte, xmlReader XmlTreeReader) (bplist.Value, error) {
	if len(raw) >= 6 && string(raw[:6]) == "bplist" {
		return bplist.Decode(raw)
	}
	if bytes.Contains(raw, []byte("<plist")) {
		parsed, err := xmlReader.ReadXmlTree(raw)
		if err != nil {
			return bplist.Value{}, err
		}
		return valueFromPlistXML(parsed), nil
	}
	return bplist.Value{}, errNoInfoPlist
}

func readEntry(store EntryStore, name string) ([]byte, error) {
	rc, err := store.Open(name)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}
