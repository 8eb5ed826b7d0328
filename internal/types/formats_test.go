package types

import (
	"testing"
)

func TestLookupFormatKnown(t *testing.T) {
	spec, ok := LookupFormat(FormatBW)
	if !ok {
		t.Fatal("expected bw to be a registered format")
	}
	if spec.Extension != ".bmp" || spec.MIMEType != "image/bmp" {
		t.Errorf("unexpected spec for bw: %+v", spec)
	}
	if spec.Render.Theme != ThemeMono {
		t.Errorf("bw should render mono, got %s", spec.Render.Theme)
	}
}

func TestLookupFormatUnknown(t *testing.T) {
	if _, ok := LookupFormat("sepia"); ok {
		t.Error("sepia must not resolve")
	}
	if FormatID("sepia").Valid() {
		t.Error("sepia must not be valid")
	}
}

func TestAllFormatsDefaultFirst(t *testing.T) {
	specs := AllFormats()
	if len(specs) != 5 {
		t.Fatalf("expected 5 formats, got %d", len(specs))
	}
	if specs[0].ID != DefaultFormat {
		t.Errorf("default format must lead the list, got %s", specs[0].ID)
	}
	for i := 2; i < len(specs); i++ {
		if specs[i-1].ID > specs[i].ID {
			t.Errorf("formats after the default must be sorted: %s > %s", specs[i-1].ID, specs[i].ID)
		}
	}
}

func TestArtifactKey(t *testing.T) {
	tests := []struct {
		zip    string
		format FormatID
		want   string
	}{
		{"78729", FormatRGBLight, "78729/rgb_light.png"},
		{"78729", FormatBW, "78729/bw.bmp"},
		{"10001", FormatEInk, "10001/eink.bmp"},
	}
	for _, tc := range tests {
		if got := ArtifactKey(tc.zip, tc.format); got != tc.want {
			t.Errorf("ArtifactKey(%s, %s) = %s, want %s", tc.zip, tc.format, got, tc.want)
		}
	}
}

func TestParseArtifactKey(t *testing.T) {
	zip, format, ok := ParseArtifactKey("78729/rgb_light.png")
	if !ok || zip != "78729" || format != FormatRGBLight {
		t.Errorf("ParseArtifactKey round trip failed: %s %s %v", zip, format, ok)
	}

	bad := []string{
		"78729",                // no slash
		"78729/rgb_light.bmp",  // wrong extension for format
		"78729/sepia.png",      // unknown format
		"abcde/rgb_light.png",  // non-numeric prefix
		"787290/rgb_light.png", // six digits
		"78729/.png",           // empty format
	}
	for _, key := range bad {
		if _, _, ok := ParseArtifactKey(key); ok {
			t.Errorf("ParseArtifactKey(%q) should fail", key)
		}
	}
}

func TestParseArtifactKeyAgreesWithArtifactKey(t *testing.T) {
	for _, spec := range AllFormats() {
		key := ArtifactKey("33101", spec.ID)
		zip, format, ok := ParseArtifactKey(key)
		if !ok || zip != "33101" || format != spec.ID {
			t.Errorf("round trip failed for %s: key=%s", spec.ID, key)
		}
	}
}
