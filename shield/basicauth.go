package shield

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// BasicAuthConfig configures BasicAuth. PasswordHash is a bcrypt hash.
// Requests whose path starts with one of Exempt bypass the check.
type BasicAuthConfig struct {
	Realm        string
	Username     string
	PasswordHash []byte
	Exempt       []string
}

// BasicAuth returns middleware enforcing HTTP basic auth. With an empty
// Username it is a pass-through.
func BasicAuth(cfg BasicAuthConfig) func(http.Handler) http.Handler {
	if cfg.Realm == "" {
		cfg.Realm = "launchdash"
	}
	return func(next http.Handler) http.Handler {
		if cfg.Username == "" {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			for _, p := range cfg.Exempt {
				if strings.HasPrefix(r.URL.Path, p) {
					next.ServeHTTP(w, r)
					return
				}
			}
			user, pass, ok := r.BasicAuth()
			if ok &&
				subtle.ConstantTimeCompare([]byte(user), []byte(cfg.Username)) == 1 &&
				bcrypt.CompareHashAndPassword(cfg.PasswordHash, []byte(pass)) == nil {
				next.ServeHTTP(w, r)
				return
			}
			GetLogger(r.Context()).Warn("basicauth: rejected", "user", user)
			w.Header().Set("WWW-Authenticate", `Basic realm="`+cfg.Realm+`", charset="UTF-8"`)
			http.Error(w, "unauthorized", http.StatusUnauthorized)
		})
	}
}
