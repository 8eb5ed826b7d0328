package types

import (
	"fmt"
	"sort"
	"strings"
)

// FormatID identifies a named output variant of the landscape image.
// The set of formats is closed: every valid FormatID has an entry in the
// static format registry below. No reflection, no dynamic registration.
type FormatID string

const (
	FormatRGBLight FormatID = "rgb_light"
	FormatRGBDark  FormatID = "rgb_dark"
	FormatBW       FormatID = "bw"
	FormatEInk     FormatID = "eink"
	FormatBWI      FormatID = "bwi"
)

// DefaultFormat is always generated for every active ZIP and can never be
// removed from a ZIP's format list.
const DefaultFormat = FormatRGBLight

// RenderTheme selects the palette the renderer paints with.
type RenderTheme string

const (
	ThemeLight        RenderTheme = "light"
	ThemeDark         RenderTheme = "dark"
	ThemeMono         RenderTheme = "mono"
	ThemeMonoInverted RenderTheme = "mono_inverted"
)

// RenderSpec is the immutable render configuration resolved from a FormatID.
// It is everything the renderer needs besides the weather data itself.
type RenderSpec struct {
	Width   int
	Height  int
	Theme   RenderTheme
	Flipped bool // vertical flip for e-ink panels mounted upside down
}

// FormatSpec describes one output variant: its file extension, MIME type,
// human-readable title, and render configuration.
type FormatSpec struct {
	ID        FormatID
	Extension string
	MIMEType  string
	Title     string
	Render    RenderSpec
}

// formatRegistry is the static lookup table mapping format identifiers to
// immutable render configurations.
var formatRegistry = map[FormatID]FormatSpec{
	FormatRGBLight: {
		ID:        FormatRGBLight,
		Extension: ".png",
		MIMEType:  "image/png",
		Title:     "RGB Light Theme",
		Render:    RenderSpec{Width: 296, Height: 128, Theme: ThemeLight},
	},
	FormatRGBDark: {
		ID:        FormatRGBDark,
		Extension: ".png",
		MIMEType:  "image/png",
		Title:     "RGB Dark Theme",
		Render:    RenderSpec{Width: 296, Height: 128, Theme: ThemeDark},
	},
	FormatBW: {
		ID:        FormatBW,
		Extension: ".bmp",
		MIMEType:  "image/bmp",
		Title:     "Black & White",
		Render:    RenderSpec{Width: 296, Height: 128, Theme: ThemeMono},
	},
	FormatEInk: {
		ID:        FormatEInk,
		Extension: ".bmp",
		MIMEType:  "image/bmp",
		Title:     "E-Ink (Flipped)",
		Render:    RenderSpec{Width: 296, Height: 128, Theme: ThemeMono, Flipped: true},
	},
	FormatBWI: {
		ID:        FormatBWI,
		Extension: ".bmp",
		MIMEType:  "image/bmp",
		Title:     "Black & White Inverted",
		Render:    RenderSpec{Width: 296, Height: 128, Theme: ThemeMonoInverted},
	},
}

// LookupFormat resolves a FormatID to its FormatSpec.
func LookupFormat(id FormatID) (FormatSpec, bool) {
	spec, ok := formatRegistry[id]
	return spec, ok
}

// Valid reports whether the FormatID exists in the registry.
func (f FormatID) Valid() bool {
	_, ok := formatRegistry[f]
	return ok
}

// AllFormats returns every registered FormatSpec, default format first and
// the remainder in lexical order.
func AllFormats() []FormatSpec {
	specs := make([]FormatSpec, 0, len(formatRegistry))
	for id, spec := range formatRegistry {
		if id == DefaultFormat {
			continue
		}
		specs = append(specs, spec)
	}
	sort.Slice(specs, func(i, j int) bool { return specs[i].ID < specs[j].ID })
	return append([]FormatSpec{formatRegistry[DefaultFormat]}, specs...)
}

// ArtifactKey builds the canonical blob key for a (zip, format) pair:
// "{zip}/{format}{ext}". Exactly one live artifact exists per key.
func ArtifactKey(zip string, f FormatID) string {
	spec, ok := formatRegistry[f]
	if !ok {
		// Callers validate the format first; this keeps the key total anyway.
		return fmt.Sprintf("%s/%s", zip, f)
	}
	return fmt.Sprintf("%s/%s%s", zip, f, spec.Extension)
}

// ParseArtifactKey decomposes a blob key of the form "{zip}/{format}{ext}".
// It returns ok=false for keys that do not match the canonical convention,
// including unknown formats and non-ZIP prefixes.
func ParseArtifactKey(key string) (zip string, f FormatID, ok bool) {
	parts := strings.SplitN(key, "/", 2)
	if len(parts) != 2 {
		return "", "", false
	}
	zip = parts[0]
	if !IsValidZip(zip) {
		return "", "", false
	}
	name := parts[1]
	dot := strings.LastIndex(name, ".")
	if dot <= 0 {
		return "", "", false
	}
	f = FormatID(name[:dot])
	spec, known := formatRegistry[f]
	if !known || spec.Extension != name[dot:] {
		return "", "", false
	}
	return zip, f, true
}
