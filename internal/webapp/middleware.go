package webapp

import (
	"crypto/subtle"
	"net/http"

	"weatherscape/internal/types"
)

// adminKeyHeader carries the admin API key on admin requests.
const adminKeyHeader = "X-Admin-Key"

// requireAdminKey guards the admin routes with a constant-time key
// comparison. A server configured without an admin key refuses all admin
// requests rather than running open.
func (s *Server) requireAdminKey(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.adminKey.IsSet() {
			s.respondError(w, r, types.NewAppError(types.ErrCodeAuthAdminKeyInvalid,
				"admin surface is not configured", nil))
			return
		}

		provided := r.Header.Get(adminKeyHeader)
		if provided == "" {
			s.respondError(w, r, types.NewAppError(types.ErrCodeAuthAdminKeyMissing,
				"missing "+adminKeyHeader+" header", nil))
			return
		}
		if subtle.ConstantTimeCompare([]byte(provided), []byte(s.adminKey.Reveal())) != 1 {
			s.respondError(w, r, types.NewAppError(types.ErrCodeAuthAdminKeyInvalid,
				"admin key rejected", nil))
			return
		}

		next.ServeHTTP(w, r)
	})
}
