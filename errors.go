package buildinspect

import "errors"

// Format dispatch.
var (
	// ErrUnsupportedExtension is returned when the input file's extension is
	// none of .apk, .aab or .ipa.
	ErrUnsupportedExtension = errors.New("buildinspect: unsupported file extension")
)

// Archive / EntryStore.
var (
	ErrNotAnArchive           = errors.New("buildinspect: not a zip archive")
	ErrMissingManifest        = errors.New("buildinspect: archive has no manifest entry")
	ErrEntryDecompressFailed  = errors.New("buildinspect: failed to decompress archive entry")
)

// Provisioning (best-effort, never fatal).
var ErrPlistRegionNotFound = errors.New("buildinspect: no plist region found in provisioning profile")
