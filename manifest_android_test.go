package buildinspect

import "testing"

func setAttr(el *Element, key, value string) {
	el.Attributes[key] = AttrValue{Kind: AttrString, Str: value}
}

func buildTestManifest() *Element {
	manifest := NewElement("manifest")
	setAttr(manifest, attrPackage, "com.example.app")
	setAttr(manifest, attrVersionName, "1.2.3")
	setAttr(manifest, attrVersionCode, "42")

	usesSdk := NewElement("uses-sdk")
	setAttr(usesSdk, attrMinSdk, "21")
	setAttr(usesSdk, attrTargetSdk, "34")
	manifest.Children = append(manifest.Children, usesSdk)

	perm := NewElement("uses-permission")
	setAttr(perm, attrName, "android.permission.INTERNET")
	manifest.Children = append(manifest.Children, perm)

	app := NewElement("application")
	setAttr(app, attrDebuggable, "true")
	setAttr(app, attrIcon, "@mipmap/ic_launcher")

	activity := NewElement("activity")
	setAttr(activity, attrName, ".MainActivity")
	filter := NewElement("intent-filter")
	action := NewElement("action")
	setAttr(action, attrName, actionMain)
	category := NewElement("category")
	setAttr(category, attrName, categoryLauncher)
	filter.Children = append(filter.Children, action, category)
	activity.Children = append(activity.Children, filter)
	app.Children = append(app.Children, activity)

	svc := NewElement("service")
	setAttr(svc, attrName, ".SyncService")
	app.Children = append(app.Children, svc)

	manifest.Children = append(manifest.Children, app)

	return manifest
}

func TestProjectAndroidPopulatesFields(t *testing.T) {
	entries := []string{
		"AndroidManifest.xml",
		"classes.dex",
		"classes2.dex",
		"lib/arm64-v8a/libnative.so",
		"lib/armeabi-v7a/libnative.so",
		"META-INF/CERT.RSA",
		"META-INF/CERT.SF",
		"res/mipmap-xxxhdpi/ic_launcher.png",
	}

	info, iconRef, err := ProjectAndroid(buildTestManifest(), entries, false)
	if err != nil {
		t.Fatalf("ProjectAndroid: %v", err)
	}

	if info.Package != "com.example.app" {
		t.Errorf("Package = %q, want com.example.app", info.Package)
	}
	if info.VersionName != "1.2.3" || info.VersionCode != "42" {
		t.Errorf("version = (%q, %q), want (1.2.3, 42)", info.VersionName, info.VersionCode)
	}
	if info.MinSdk != "21" || info.TargetSdk != "34" {
		t.Errorf("sdk = (%q, %q), want (21, 34)", info.MinSdk, info.TargetSdk)
	}
	if len(info.Permissions) != 1 || info.Permissions[0] != "android.permission.INTERNET" {
		t.Errorf("Permissions = %v", info.Permissions)
	}
	if !info.Debuggable {
		t.Error("Debuggable = false, want true")
	}
	if iconRef != "@mipmap/ic_launcher" {
		t.Errorf("iconRef = %q", iconRef)
	}
	if len(info.Activities) != 1 || info.Activities[0].Name != ".MainActivity" || !info.Activities[0].IsLauncher {
		t.Errorf("Activities = %+v", info.Activities)
	}
	if len(info.Services) != 1 || info.Services[0].Name != ".SyncService" {
		t.Errorf("Services = %+v", info.Services)
	}
	if len(info.Architectures) != 2 || info.Architectures[0] != "arm64-v8a" || info.Architectures[1] != "armeabi-v7a" {
		t.Errorf("Architectures = %v", info.Architectures)
	}
	if info.DexCount != 2 {
		t.Errorf("DexCount = %d, want 2", info.DexCount)
	}
	if !info.Signed || len(info.SignFiles) != 1 {
		t.Errorf("Signed = %v, SignFiles = %v", info.Signed, info.SignFiles)
	}
	if info.Modules != nil {
		t.Errorf("Modules = %v, want nil for a non-AAB", info.Modules)
	}
}

func TestProjectAndroidMissingManifestElement(t *testing.T) {
	root := NewElement("not-a-manifest")
	if _, _, err := ProjectAndroid(root, nil, false); err == nil {
		t.Fatal("ProjectAndroid with no manifest element = nil error")
	}
}

func TestProjectAndroidFindsWrappedManifest(t *testing.T) {
	wrapper := NewElement("root")
	wrapper.Children = append(wrapper.Children, buildTestManifest())
	info, _, err := ProjectAndroid(wrapper, nil, false)
	if err != nil {
		t.Fatalf("ProjectAndroid: %v", err)
	}
	if info.Package != "com.example.app" {
		t.Errorf("Package = %q", info.Package)
	}
}

func TestDetectModulesSortsBaseFirst(t *testing.T) {
	entries := []string{
		"feature_b/manifest/AndroidManifest.xml",
		"base/manifest/AndroidManifest.xml",
		"feature_a/manifest/AndroidManifest.xml",
	}
	got := detectModules(entries)
	want := []string{"base", "feature_a", "feature_b"}
	if len(got) != len(want) {
		t.Fatalf("detectModules = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("detectModules = %v, want %v", got, want)
		}
	}
}

func TestResolveIconPathLiteralWins(t *testing.T) {
	entries := []string{"res/mipmap-xhdpi/custom_icon.png"}
	got := ResolveIconPath(entries, "res/mipmap-xhdpi/custom_icon.png", false)
	if got != "res/mipmap-xhdpi/custom_icon.png" {
		t.Errorf("ResolveIconPath = %q", got)
	}
}

func TestResolveIconPathDensityFallback(t *testing.T) {
	entries := []string{
		"res/mipmap-hdpi/ic_launcher.png",
		"res/mipmap-xxhdpi/ic_launcher.png",
	}
	got := ResolveIconPath(entries, "", false)
	if got != "res/mipmap-xxhdpi/ic_launcher.png" {
		t.Errorf("ResolveIconPath = %q, want the higher-density match", got)
	}
}

func TestResolveIconPathRegexFallback(t *testing.T) {
	entries := []string{"res/drawable-mdpi-v4/ic_launcher_custom_name.png"}
	got := ResolveIconPath(entries, "", false)
	if got != "res/drawable-mdpi-v4/ic_launcher_custom_name.png" {
		t.Errorf("ResolveIconPath = %q", got)
	}
}

func TestResolveIconPathAABUsesBasePrefix(t *testing.T) {
	entries := []string{"base/res/mipmap-xxxhdpi/ic_launcher.png"}
	got := ResolveIconPath(entries, "", true)
	if got != "base/res/mipmap-xxxhdpi/ic_launcher.png" {
		t.Errorf("ResolveIconPath(AAB) = %q", got)
	}
}
