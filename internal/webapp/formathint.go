package webapp

import (
	"net/url"
	"strings"

	"weatherscape/internal/types"
)

// formatQueryKeys are the query parameters checked for a format hint, in
// order.
var formatQueryKeys = []string{"format", "variant"}

// ParseFormatHint resolves the requested format from a request path and query
// string. Precedence is fixed: the first path segment naming a known format
// wins over any query parameter. Segments may carry the format's file
// extension ("bw.bmp" resolves to bw). ok=false means the request carries no
// recognizable hint and the caller should fall back to the default format.
func ParseFormatHint(path string, query url.Values) (types.FormatID, bool) {
	for _, segment := range strings.Split(path, "/") {
		if f, ok := matchFormat(segment); ok {
			return f, true
		}
	}
	for _, key := range formatQueryKeys {
		if f, ok := matchFormat(query.Get(key)); ok {
			return f, true
		}
	}
	return "", false
}

// matchFormat resolves one candidate token, with or without extension.
func matchFormat(s string) (types.FormatID, bool) {
	if s == "" {
		return "", false
	}
	f := types.FormatID(s)
	if f.Valid() {
		return f, true
	}
	if dot := strings.LastIndex(s, "."); dot > 0 {
		trimmed := types.FormatID(s[:dot])
		if spec, ok := types.LookupFormat(trimmed); ok && spec.Extension == s[dot:] {
			return trimmed, true
		}
	}
	return "", false
}
