// Package render turns cached weather payloads into image bytes. The
// pipeline's Generator depends only on the Renderer interface; the
// implementation here is a deliberately compact landscape painter that is a
// pure function of its inputs: same weather bundle and render spec, same
// bytes.
package render

import (
	"weatherscape/internal/types"
)

// Renderer produces an encoded image from a weather bundle and the render
// configuration resolved from the job's format. Implementations must be pure
// and safe for concurrent use; failures propagate as generation errors.
type Renderer interface {
	Render(bundle types.WeatherBundle, spec types.FormatSpec) ([]byte, error)
}
