package buildinspect

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"

	"github.com/tramlinehq/buildinspect/aaptxml"
	"github.com/tramlinehq/buildinspect/axml"
	"github.com/tramlinehq/buildinspect/cgbi"
)

// Inspect opens path as an APK/AAB/IPA and returns its normalized
// BuildInfo. It's the single library entry point: dispatch picks the
// platform from the extension, an EntryStore opens the archive, the
// appropriate decoder (axml or aaptxml for Android, bplist for iOS)
// produces an element or value tree, and the manifest projector reduces
// that into BuildInfo. Apart from failing to open or stat the file and
// context cancellation, only ErrUnsupportedExtension and ErrNotAnArchive
// abort the call; every other failure is recorded on the returned
// BuildInfo (ManifestError / Warnings).
func Inspect(ctx context.Context, filePath string) (*BuildInfo, error) {
	platform, err := dispatchExtension(filePath)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("buildinspect: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("buildinspect: %w", err)
	}

	header := make([]byte, sniffLen)
	n, _ := f.ReadAt(header, 0)
	if err := confirmZipContainer(header[:n]); err != nil {
		return nil, err
	}

	store, err := OpenZipReader(f)
	if err != nil {
		return nil, err
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var manifestTree *Element
	var manifestErr error
	if platform == PlatformAPK || platform == PlatformAAB {
		manifestTree, manifestErr = decodeManifestTree(store, platform == PlatformAAB)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	bi, err := Project(manifestTree, store, platform, NewXmlTreeReader())
	if err != nil {
		return nil, err
	}
	if manifestErr != nil {
		bi.ManifestError = manifestErr.Error()
	}

	bi.ArchiveName = path.Base(filePath)
	bi.ArchiveSize = info.Size()

	if bi.IconPath != "" && len(bi.IconBytes) > 0 {
		restoreIconIfCgBI(bi)
	}

	return bi, nil
}

// decodeManifestTree reads AndroidManifest.xml out of store and decodes
// it with whichever of axml/aaptxml matches its leading bytes — an AAB's
// base module manifest is AAPT2 proto-XML, while a legacy or debug-built
// APK's may still be plain AXML. Input without the AXML magic goes to
// aaptxml first and falls back to axml if the proto-XML walk fails.
func decodeManifestTree(store EntryStore, isAAB bool) (*Element, error) {
	manifestPath := "AndroidManifest.xml"
	if isAAB {
		manifestPath = "base/manifest/AndroidManifest.xml"
	}

	rc, err := store.Open(manifestPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMissingManifest, err)
	}
	defer rc.Close()

	raw, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMissingManifest, err)
	}

	if isAxmlMagic(raw) {
		return axml.DecodeBytes(raw)
	}
	el, err := aaptxml.Walk(raw)
	if err != nil {
		return axml.DecodeBytes(raw)
	}
	return el, nil
}

// restoreIconIfCgBI swaps BuildInfo.IconBytes for a restored, standard
// RGBA PNG plane when the icon entry carries Apple's CgBI chunk. Any
// failure here is non-fatal: the caller still has the original bytes.
func restoreIconIfCgBI(bi *BuildInfo) {
	if !cgbi.HasCgBI(bi.IconBytes) {
		return
	}
	img, ok, err := cgbi.Restore(bi.IconBytes)
	if err != nil || !ok {
		bi.Warnings = append(bi.Warnings, "cgbi: icon restoration failed")
		return
	}
	encoded, err := encodePNG(img)
	if err != nil {
		bi.Warnings = append(bi.Warnings, "cgbi: failed to re-encode restored icon")
		return
	}
	bi.IconBytes = encoded
}
