package render

import (
	"bytes"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"math"

	"golang.org/x/image/bmp"

	"weatherscape/internal/types"
)

// weatherView is the minimal projection of the provider payloads the painter
// needs. Unknown fields are ignored; missing fields fall back to neutral
// defaults so a sparse payload still renders.
type weatherView struct {
	Current struct {
		Main struct {
			Temp float64 `json:"temp"` // Kelvin
		} `json:"main"`
		Clouds struct {
			All float64 `json:"all"` // percent
		} `json:"clouds"`
		Weather []struct {
			ID int `json:"id"`
		} `json:"weather"`
	}
	Forecast struct {
		List []struct {
			Main struct {
				Temp float64 `json:"temp"`
			} `json:"main"`
		} `json:"list"`
	}
}

// palette holds the two colors a landscape is painted with.
type palette struct {
	background color.RGBA
	ink        color.RGBA
}

// themePalettes maps render themes to their colors. Mono themes stay within
// {black, white} so the BMP output suits 1-bit e-paper panels.
var themePalettes = map[types.RenderTheme]palette{
	types.ThemeLight:        {background: color.RGBA{245, 245, 240, 255}, ink: color.RGBA{40, 60, 90, 255}},
	types.ThemeDark:         {background: color.RGBA{18, 22, 34, 255}, ink: color.RGBA{220, 225, 235, 255}},
	types.ThemeMono:         {background: color.RGBA{255, 255, 255, 255}, ink: color.RGBA{0, 0, 0, 255}},
	types.ThemeMonoInverted: {background: color.RGBA{0, 0, 0, 255}, ink: color.RGBA{255, 255, 255, 255}},
}

// LandscapeRenderer paints a horizon silhouette whose shape encodes the
// forecast temperature curve, with cloud hatching proportional to cover.
type LandscapeRenderer struct{}

// NewLandscapeRenderer creates the default renderer.
func NewLandscapeRenderer() *LandscapeRenderer {
	return &LandscapeRenderer{}
}

// Compile-time assertion that LandscapeRenderer implements Renderer.
var _ Renderer = (*LandscapeRenderer)(nil)

// Render paints the landscape for one format and encodes it per the format's
// extension (.png or .bmp).
func (r *LandscapeRenderer) Render(bundle types.WeatherBundle, spec types.FormatSpec) ([]byte, error) {
	view, err := parseView(bundle)
	if err != nil {
		return nil, err
	}

	pal, ok := themePalettes[spec.Render.Theme]
	if !ok {
		pal = themePalettes[types.ThemeLight]
	}

	img := paint(view, spec.Render, pal)
	if spec.Render.Flipped {
		img = flipVertical(img)
	}

	var buf bytes.Buffer
	if spec.Extension == ".bmp" {
		err = bmp.Encode(&buf, img)
	} else {
		err = png.Encode(&buf, img)
	}
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalRender, "failed to encode image", err)
	}
	return buf.Bytes(), nil
}

func parseView(bundle types.WeatherBundle) (weatherView, error) {
	var view weatherView
	if len(bundle.Current) > 0 {
		if err := json.Unmarshal(bundle.Current, &view.Current); err != nil {
			return view, types.NewAppError(types.ErrCodeInternalRender, "current payload is not valid JSON", err)
		}
	}
	if len(bundle.Forecast) > 0 {
		if err := json.Unmarshal(bundle.Forecast, &view.Forecast); err != nil {
			return view, types.NewAppError(types.ErrCodeInternalRender, "forecast payload is not valid JSON", err)
		}
	}
	return view, nil
}

// paint draws the background, a horizon whose height follows the forecast
// temperature curve, and a cloud band whose dash density follows cloud cover.
func paint(view weatherView, rs types.RenderSpec, pal palette) *image.RGBA {
	w, h := rs.Width, rs.Height
	if w <= 0 {
		w = 296
	}
	if h <= 0 {
		h = 128
	}

	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, pal.background)
		}
	}

	curve := temperatureCurve(view, w)
	baseline := h * 3 / 4
	amplitude := float64(h) / 4

	for x := 0; x < w; x++ {
		horizon := baseline - int(curve[x]*amplitude)
		if horizon < 1 {
			horizon = 1
		}
		if horizon >= h {
			horizon = h - 1
		}
		for y := horizon; y < h; y++ {
			img.SetRGBA(x, y, pal.ink)
		}
	}

	// Cloud band: dashed line in the sky, denser with higher cover.
	cover := view.Current.Clouds.All
	if cover > 0 {
		period := 12 - int(cover/10)
		if period < 2 {
			period = 2
		}
		y := h / 5
		for x := 0; x < w; x++ {
			if x%period != 0 {
				img.SetRGBA(x, y, pal.ink)
				img.SetRGBA(x, y+1, pal.ink)
			}
		}
	}

	return img
}

// temperatureCurve maps the forecast temperature series onto [-1, 1] values,
// one per pixel column. Without forecast data the current temperature sets a
// flat level; without any data the horizon is flat at zero.
func temperatureCurve(view weatherView, width int) []float64 {
	temps := make([]float64, 0, len(view.Forecast.List)+1)
	if view.Current.Main.Temp > 0 {
		temps = append(temps, view.Current.Main.Temp)
	}
	for _, item := range view.Forecast.List {
		if item.Main.Temp > 0 {
			temps = append(temps, item.Main.Temp)
		}
	}

	curve := make([]float64, width)
	if len(temps) == 0 {
		return curve
	}

	min, max := temps[0], temps[0]
	for _, t := range temps {
		min = math.Min(min, t)
		max = math.Max(max, t)
	}
	span := max - min
	if span < 1 {
		span = 1
	}

	for x := 0; x < width; x++ {
		pos := float64(x) / float64(width) * float64(len(temps)-1)
		idx := int(pos)
		next := idx
		if idx+1 < len(temps) {
			next = idx + 1
		}
		frac := pos - float64(idx)
		t := temps[idx]*(1-frac) + temps[next]*frac
		curve[x] = (t-min)/span*2 - 1
	}
	return curve
}

// flipVertical mirrors the image top-to-bottom for panels mounted upside
// down.
func flipVertical(src *image.RGBA) *image.RGBA {
	b := src.Bounds()
	dst := image.NewRGBA(b)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			dst.Set(x, b.Max.Y-1-y, src.At(x, y))
		}
	}
	return dst
}
