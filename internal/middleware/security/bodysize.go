package security

import "net/http"

// MaxBodySizeMiddleware caps request bodies at maxSizeMB megabytes. A
// non-positive size disables the cap.
func MaxBodySizeMiddleware(maxSizeMB int) func(http.Handler) http.Handler {
	if maxSizeMB <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	maxBytes := int64(maxSizeMB) << 20
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.ContentLength > maxBytes {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusRequestEntityTooLarge)
				w.Write([]byte(`{"error":"Request body too large","code":"BODY_TOO_LARGE"}` + "\n"))
				return
			}
			r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
			next.ServeHTTP(w, r)
		})
	}
}
