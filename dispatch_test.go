package buildinspect

import (
	"errors"
	"testing"
)

func TestDispatchExtension(t *testing.T) {
	cases := []struct {
		name string
		want Platform
	}{
		{"app.apk", PlatformAPK},
		{"app.APK", PlatformAPK},
		{"bundle.aab", PlatformAAB},
		{"ios.ipa", PlatformIPA},
	}
	for _, c := range cases {
		got, err := dispatchExtension(c.name)
		if err != nil {
			t.Errorf("dispatchExtension(%q): %v", c.name, err)
		}
		if got != c.want {
			t.Errorf("dispatchExtension(%q) = %q, want %q", c.name, got, c.want)
		}
	}
}

func TestDispatchExtensionUnsupported(t *testing.T) {
	_, err := dispatchExtension("archive.zip")
	if !errors.Is(err, ErrUnsupportedExtension) {
		t.Fatalf("err = %v, want ErrUnsupportedExtension", err)
	}
}

func TestConfirmZipContainerAcceptsZipAndEmpty(t *testing.T) {
	if err := confirmZipContainer(nil); err != nil {
		t.Errorf("confirmZipContainer(nil) = %v, want nil", err)
	}
	zipHeader := []byte{'P', 'K', 0x03, 0x04}
	if err := confirmZipContainer(zipHeader); err != nil {
		t.Errorf("confirmZipContainer(zip header) = %v, want nil", err)
	}
}

func TestConfirmZipContainerRejectsOtherKnownType(t *testing.T) {
	png := []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A, 0, 0, 0, 0}
	if err := confirmZipContainer(png); !errors.Is(err, ErrNotAnArchive) {
		t.Fatalf("err = %v, want ErrNotAnArchive", err)
	}
}

func TestMagicSniffers(t *testing.T) {
	if !isAxmlMagic([]byte{0x03, 0x00, 0x08, 0x00}) {
		t.Error("isAxmlMagic: false negative")
	}
	if isAxmlMagic([]byte{0x04, 0x00}) {
		t.Error("isAxmlMagic: false positive")
	}
	if !isBplistMagic([]byte("bplist00")) {
		t.Error("isBplistMagic: false negative")
	}
	if isBplistMagic([]byte("not bpl")) {
		t.Error("isBplistMagic: false positive")
	}
	png := []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A}
	if !isPNGMagic(png) {
		t.Error("isPNGMagic: false negative")
	}
	if isPNGMagic([]byte("not a png")) {
		t.Error("isPNGMagic: false positive")
	}
}
