package shield

import "net/http"

// HeadToGet serves HEAD through the GET routes (health checks from uptime
// monitors). The handler sees a copy of the request, and net/http drops the
// body from HEAD responses.
func HeadToGet(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodHead {
			next.ServeHTTP(w, r)
			return
		}
		get := r.Clone(r.Context())
		get.Method = http.MethodGet
		next.ServeHTTP(w, get)
	})
}
