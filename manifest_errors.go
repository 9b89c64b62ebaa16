package buildinspect

import "errors"

var errNoManifestElement = errors.New("manifest: no <manifest> element found")
var errNoInfoPlist = errors.New("manifest: no Info.plist found in payload")
var errNoBundleApp = errors.New("manifest: no Payload/*.app directory found")
