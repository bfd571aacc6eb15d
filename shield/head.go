package shield

import "net/http"

// HeadToGet lets GET-only routes (page, layout, chart exports) answer HEAD
// requests from uptime checkers. net/http drops the body for HEAD responses.
func HeadToGet(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodHead {
			r.Method = http.MethodGet
		}
		next.ServeHTTP(w, r)
	})
}
