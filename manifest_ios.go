package buildinspect

import (
	"bytes"
	"io"
	"path"
	"strings"

	"github.com/tramlinehq/buildinspect/bplist"
)

const (
	keyBundleIdentifier        = "CFBundleIdentifier"
	keyBundleName              = "CFBundleName"
	keyBundleDisplayName       = "CFBundleDisplayName"
	keyBundleShortVersion      = "CFBundleShortVersionString"
	keyBundleVersion           = "CFBundleVersion"
	keyMinimumOSVersion        = "MinimumOSVersion"
	keyBundleExecutable        = "CFBundleExecutable"
	keyUIDeviceFamily          = "UIDeviceFamily"
	keyBundleSupportedPlatform = "CFBundleSupportedPlatforms"
	keyRequiredCapabilities    = "UIRequiredDeviceCapabilities"
	keyBackgroundModes         = "UIBackgroundModes"
	keyBundleIcons             = "CFBundleIcons"
	keyPrimaryIcon             = "CFBundlePrimaryIcon"
	keyIconFiles               = "CFBundleIconFiles"
)

// FindBundleRoot returns the "Payload/<App>.app" directory name, locating
// the single top-level .app bundle an IPA's Payload directory contains.
func FindBundleRoot(entries []string) (string, bool) {
	for _, e := range entries {
		if !strings.HasPrefix(e, "Payload/") {
			continue
		}
		rest := strings.TrimPrefix(e, "Payload/")
		if i := strings.Index(rest, "/"); i > 0 {
			name := rest[:i]
			if strings.HasSuffix(name, ".app") {
				return "Payload/" + name, true
			}
		}
	}
	return "", false
}

// ProjectIOS reduces an Info.plist value (already decoded via bplist or
// XmlTreeReader) and the archive's entry list into an IOSInfo.
func ProjectIOS(info bplist.Value, entries []string, bundleRoot string) *IOSInfo {
	out := &IOSInfo{
		BundleID:     getString(info, keyBundleIdentifier),
		AppName:      getString(info, keyBundleName),
		DisplayName:  getString(info, keyBundleDisplayName),
		Version:      getString(info, keyBundleShortVersion),
		BuildNumber:  getString(info, keyBundleVersion),
		MinOSVersion: getString(info, keyMinimumOSVersion),
		Executable:   getString(info, keyBundleExecutable),
	}

	if families, ok := info.Get(keyUIDeviceFamily); ok {
		for _, f := range families.ArrayValue() {
			if f.Kind == bplist.KindInt {
				out.DeviceFamilies = append(out.DeviceFamilies, deviceFamilyFromInt(f.Int))
			}
		}
	}

	if v, ok := info.Get(keyBundleSupportedPlatform); ok {
		out.SupportedPlatforms = v.StringArray()
	}
	if v, ok := info.Get(keyRequiredCapabilities); ok {
		out.RequiredCapabilities = v.StringArray()
	}
	if v, ok := info.Get(keyBackgroundModes); ok {
		out.BackgroundModes = v.StringArray()
	}

	out.Frameworks = detectFrameworks(entries, bundleRoot)

	return out
}

// IconNameHints gathers icon filename candidates from
// CFBundleIcons.CFBundlePrimaryIcon.CFBundleIconFiles and the legacy
// top-level CFBundleIconFiles key.
func IconNameHints(info bplist.Value) []string {
	var hints []string
	if icons, ok := info.Get(keyBundleIcons); ok {
		if primary, ok := icons.Get(keyPrimaryIcon); ok {
			if files, ok := primary.Get(keyIconFiles); ok {
				hints = append(hints, files.StringArray()...)
			}
		}
	}
	if files, ok := info.Get(keyIconFiles); ok {
		hints = append(hints, files.StringArray()...)
	}
	return hints
}

func getString(v bplist.Value, key string) string {
	child, ok := v.Get(key)
	if !ok {
		return ""
	}
	return child.StringValue()
}

func deviceFamilyFromInt(n int64) DeviceFamily {
	switch n {
	case 1:
		return DeviceFamilyIPhone
	case 2:
		return DeviceFamilyIPad
	case 3:
		return DeviceFamilyAppleTV
	case 4:
		return DeviceFamilyWatch
	default:
		return UnknownDeviceFamily(n)
	}
}

func detectFrameworks(entries []string, bundleRoot string) []string {
	prefix := bundleRoot + "/Frameworks/"
	seen := make(map[string]bool)
	var out []string
	for _, e := range entries {
		if !strings.HasPrefix(e, prefix) {
			continue
		}
		rest := strings.TrimPrefix(e, prefix)
		i := strings.Index(rest, "/")
		if i <= 0 {
			continue
		}
		name := rest[:i]
		if !strings.HasSuffix(name, ".framework") {
			continue
		}
		if !seen[name] {
			seen[name] = true
			out = append(out, strings.TrimSuffix(name, ".framework"))
		}
	}
	return out
}

const mobileProvisionStart = "<?xml"
const mobileProvisionEnd = "</plist>"

// sliceProvisioningPlist locates the embedded plist inside a CMS-signed
// embedded.mobileprovision by byte-slicing between its literal start/end
// markers, rather than parsing the CMS envelope itself. Kept as a
// standalone function so a real CMS parser
// can replace it later without touching ProjectProvisioning's callers.
func sliceProvisioningPlist(raw []byte) ([]byte, bool) {
	start := bytes.Index(raw, []byte(mobileProvisionStart))
	if start < 0 {
		return nil, false
	}
	endMarker := []byte(mobileProvisionEnd)
	end := bytes.Index(raw[start:], endMarker)
	if end < 0 {
		return nil, false
	}
	end += start + len(endMarker)
	return raw[start:end], true
}

// ProjectProvisioning extracts identity fields out of an
// embedded.mobileprovision's CMS envelope using the byte-slice-then-parse
// approach is required; plistDecode runs the result through
// XmlTreeReader since a slice-extracted plist is textual XML, not bplist.
func ProjectProvisioning(raw []byte, plistDecode func(io.Reader) (bplist.Value, error)) (*ProvisioningInfo, error) {
	sliced, ok := sliceProvisioningPlist(raw)
	if !ok {
		return nil, ErrPlistRegionNotFound
	}

	v, err := plistDecode(bytes.NewReader(sliced))
	if err != nil {
		return nil, err
	}

	info := &ProvisioningInfo{
		Name:           getString(v, "Name"),
		TeamName:       getString(v, "TeamName"),
		AppIDName:      getString(v, "AppIDName"),
		CreationDate:   plistDateString(v, "CreationDate"),
		ExpirationDate: plistDateString(v, "ExpirationDate"),
	}

	if teamIDs, ok := v.Get("TeamIdentifier"); ok {
		if arr := teamIDs.StringArray(); len(arr) > 0 {
			info.TeamIdentifier = arr[0]
		}
	}
	if xcodeManaged, ok := v.Get("IsXcodeManaged"); ok {
		info.IsXcodeManaged = xcodeManaged.Kind == bplist.KindBool && xcodeManaged.Bool
	}
	if devices, ok := v.Get("ProvisionedDevices"); ok {
		info.ProvisionedDevices = len(devices.ArrayValue())
	}
	if ent, ok := v.Get("Entitlements"); ok && ent.Kind == bplist.KindDict {
		keys := make([]string, 0, len(ent.Dict))
		for k := range ent.Dict {
			keys = append(keys, k)
		}
		info.EntitlementKeys = keys
	}

	return info, nil
}

func plistDateString(v bplist.Value, key string) string {
	child, ok := v.Get(key)
	if !ok {
		return ""
	}
	switch child.Kind {
	case bplist.KindDate:
		return child.Date.Format("2006-01-02T15:04:05Z")
	case bplist.KindString:
		return child.String
	default:
		return ""
	}
}

// bundleIconPath resolves an icon filename hint into a full archive path
// under the bundle root, trying the hint as given first and then with
// ".png", "@2x.png" and "@3x.png" appended (IconNameHints entries are
// usually extensionless).
func bundleIconPath(entries []string, bundleRoot, hint string) (string, bool) {
	exists := make(map[string]bool, len(entries))
	for _, e := range entries {
		exists[e] = true
	}
	candidates := []string{hint, hint + ".png", hint + "@2x.png", hint + "@3x.png"}
	for _, c := range candidates {
		full := path.Join(bundleRoot, c)
		if exists[full] {
			return full, true
		}
	}
	return "", false
}
