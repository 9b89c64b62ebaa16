// Manifest projection: reduces a decoded element tree (from axml or
// aaptxml) plus an archive's entry list into a normalized BuildInfo.
// Grounded on kotaroyamazaki-playcheck's manifest-parser.go for the shape
// of the Android manifest walk (AndroidManifest/Activity/Service/Receiver/
// Provider/IntentFilter), generalized here from its struct-field reader
// into one producing buildinspect's own types.
package buildinspect

import (
	"path"
	"regexp"
	"sort"
	"strings"
)

const (
	attrPackage       = "package"
	attrVersionCode   = "android:versionCode"
	attrVersionName   = "android:versionName"
	attrMinSdk        = "android:minSdkVersion"
	attrTargetSdk     = "android:targetSdkVersion"
	attrName          = "android:name"
	attrDebuggable    = "android:debuggable"
	attrIcon          = "android:icon"

	actionMain           = "android.intent.action.MAIN"
	categoryLauncher     = "android.intent.category.LAUNCHER"
)

// ProjectAndroid reduces a decoded AndroidManifest.xml element tree, plus
// an archive's entry listing, into an AndroidInfo. The element tree's root
// is expected to carry (or contain, if wrapped) a "manifest" tag; if none
// is found, an error is returned and the caller surfaces it as
// BuildInfo.ManifestError rather than aborting the whole inspection.
func ProjectAndroid(root *Element, entries []string, isAAB bool) (info *AndroidInfo, iconRef string, err error) {
	manifestEl := root
	if manifestEl != nil && manifestEl.Tag != "manifest" {
		manifestEl = root.Find("manifest")
	}
	if manifestEl == nil {
		return nil, "", errNoManifestElement
	}

	info = &AndroidInfo{
		Package:     manifestEl.Attr(attrPackage),
		VersionName: manifestEl.Attr(attrVersionName),
		VersionCode: manifestEl.Attr(attrVersionCode),
	}

	if usesSdk := manifestEl.Find("uses-sdk"); usesSdk != nil {
		info.MinSdk = usesSdk.Attr(attrMinSdk)
		info.TargetSdk = usesSdk.Attr(attrTargetSdk)
	}

	for _, perm := range manifestEl.FindAll("uses-permission") {
		if name := perm.Attr(attrName); name != "" {
			info.Permissions = append(info.Permissions, name)
		}
	}

	app := manifestEl.Find("application")
	if app != nil {
		info.Debuggable = app.Attr(attrDebuggable) == "true"
		iconRef = app.Attr(attrIcon)

		for _, activity := range app.FindAll("activity") {
			info.Activities = append(info.Activities, Activity{
				Name:       activity.Attr(attrName),
				IsLauncher: isLauncherActivity(activity),
			})
		}
		for _, svc := range app.FindAll("service") {
			info.Services = append(info.Services, Component{Name: svc.Attr(attrName)})
		}
		for _, rcv := range app.FindAll("receiver") {
			info.Receivers = append(info.Receivers, Component{Name: rcv.Attr(attrName)})
		}
	}

	info.Architectures = detectArchitectures(entries, isAAB)
	info.DexCount = countDex(entries)
	if isAAB {
		info.Modules = detectModules(entries)
	}
	info.Signed, info.SignFiles = detectSigning(entries)

	return info, iconRef, nil
}

// isLauncherActivity applies the launcher test: some intent-filter
// child carries both the MAIN action and the LAUNCHER category.
func isLauncherActivity(activity *Element) bool {
	for _, filter := range activity.FindAll("intent-filter") {
		hasMain := false
		hasLauncher := false
		for _, action := range filter.FindAll("action") {
			if action.Attr(attrName) == actionMain {
				hasMain = true
			}
		}
		for _, category := range filter.FindAll("category") {
			if category.Attr(attrName) == categoryLauncher {
				hasLauncher = true
			}
		}
		if hasMain && hasLauncher {
			return true
		}
	}
	return false
}

var archEntryPattern = regexp.MustCompile(`^(?:base/)?lib/([^/]+)/[^/]+\.so$`)

// detectArchitectures scans the archive's entries for native library
// directories, deduplicating while preserving discovery order.
func detectArchitectures(entries []string, isAAB bool) []string {
	seen := make(map[string]bool)
	var out []string
	for _, e := range entries {
		if m := archEntryPattern.FindStringSubmatch(e); m != nil {
			arch := m[1]
			if !seen[arch] {
				seen[arch] = true
				out = append(out, arch)
			}
		}
	}
	return out
}

func countDex(entries []string) int {
	n := 0
	for _, e := range entries {
		if strings.HasSuffix(e, ".dex") {
			n++
		}
	}
	return n
}

// detectModules finds AAB module directories by the presence of a
// manifest under <dir>/manifest/AndroidManifest.xml, sorting with "base"
// first.
func detectModules(entries []string) []string {
	seen := make(map[string]bool)
	var modules []string
	for _, e := range entries {
		const marker = "/manifest/AndroidManifest.xml"
		if !strings.HasSuffix(e, marker) {
			continue
		}
		dir := strings.TrimSuffix(e, marker)
		if dir == "" || strings.Contains(dir, "/") {
			continue
		}
		if !seen[dir] {
			seen[dir] = true
			modules = append(modules, dir)
		}
	}
	sort.Slice(modules, func(i, j int) bool {
		if modules[i] == "base" {
			return true
		}
		if modules[j] == "base" {
			return false
		}
		return modules[i] < modules[j]
	})
	return modules
}

var signatureFilePattern = regexp.MustCompile(`(?i)^META-INF/[^/]+\.(RSA|DSA|EC)$`)
var signatureCompanionPattern = regexp.MustCompile(`(?i)^META-INF/[^/]+\.(SF|MF)$`)

func detectSigning(entries []string) (bool, []string) {
	signed := false
	var companions []string
	for _, e := range entries {
		if signatureFilePattern.MatchString(e) {
			signed = true
		}
		if signatureCompanionPattern.MatchString(e) {
			companions = append(companions, e)
		}
	}
	return signed, companions
}

var iconDensities = []string{"xxxhdpi", "xxhdpi", "xhdpi", "hdpi", "mdpi"}
var iconNames = []string{"ic_launcher.png", "ic_launcher_round.png"}
var iconBuckets = []string{"mipmap", "drawable"}
var iconSuffixes = []string{"-v4", ""}

// ResolveIconPath determines which archive entry holds the launcher icon.
// If literalIcon is non-empty (the manifest's android:icon attribute, when
// it was a literal path rather than an unresolved reference), that entry
// is tried first. Otherwise a fixed priority search runs over density,
// name and bucket combinations, falling back to a regex match of any
// ic_launcher* entry ranked by density.
func ResolveIconPath(entries []string, literalIcon string, isAAB bool) string {
	prefix := "res/"
	if isAAB {
		prefix = "base/res/"
	}

	exists := make(map[string]bool, len(entries))
	for _, e := range entries {
		exists[e] = true
	}

	if literalIcon != "" {
		candidate := literalIcon
		if isAAB {
			candidate = "base/" + strings.TrimPrefix(literalIcon, "/")
		}
		if exists[candidate] {
			return candidate
		}
	}

	for _, density := range iconDensities {
		for _, name := range iconNames {
			for _, bucket := range iconBuckets {
				for _, suffix := range iconSuffixes {
					candidate := prefix + bucket + "-" + density + suffix + "/" + name
					if exists[candidate] {
						return candidate
					}
				}
			}
		}
	}

	return fallbackIconByRegex(entries, prefix)
}

var launcherIconPattern = regexp.MustCompile(`ic_launcher[^/]*\.png$`)

func fallbackIconByRegex(entries []string, prefix string) string {
	var best string
	bestRank := len(iconDensities)
	for _, e := range entries {
		if !strings.HasPrefix(e, prefix) || !launcherIconPattern.MatchString(path.Base(e)) {
			continue
		}
		rank := len(iconDensities)
		for i, d := range iconDensities {
			if strings.Contains(e, d) {
				rank = i
				break
			}
		}
		if rank < bestRank {
			bestRank = rank
			best = e
		}
	}
	return best
}
