package shield

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/hazyhaar/launchdash/kit"
)

func stackRouter(extra ...func(http.Handler) http.Handler) *chi.Mux {
	r := chi.NewRouter()
	for _, mw := range DefaultStack() {
		r.Use(mw)
	}
	for _, mw := range extra {
		r.Use(mw)
	}
	return r
}

func TestDefaultStack_Headers(t *testing.T) {
	// WHAT: Responses carry security headers and an 8-char trace ID.
	// WHY: The page renders inline SVG; CSP must still forbid foreign scripts.
	r := stackRouter()
	r.Get("/test", func(w http.ResponseWriter, r *http.Request) {
		if kit.GetTraceID(r.Context()) == "" {
			t.Error("trace id missing from context")
		}
		w.WriteHeader(200)
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("GET", "/test", nil))

	checks := map[string]string{
		"X-Frame-Options":        "DENY",
		"X-Content-Type-Options": "nosniff",
	}
	for header, want := range checks {
		if got := w.Header().Get(header); got != want {
			t.Errorf("%s: got %q, want %q", header, got, want)
		}
	}
	if csp := w.Header().Get("Content-Security-Policy"); !strings.Contains(csp, "script-src 'self'") {
		t.Errorf("CSP = %q", csp)
	}
	if id := w.Header().Get("X-Trace-ID"); len(id) != 8 {
		t.Errorf("X-Trace-ID: got %q (len %d), want 8 chars", id, len(id))
	}
}

func TestHeadToGet(t *testing.T) {
	r := stackRouter()
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		io.WriteString(w, "ok")
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("HEAD", "/healthz", nil))
	if w.Code != 200 {
		t.Fatalf("HEAD status = %d, want 200", w.Code)
	}
}

func TestMaxBody(t *testing.T) {
	h := MaxBody(8)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, err := io.ReadAll(r.Body); err != nil {
			http.Error(w, err.Error(), http.StatusRequestEntityTooLarge)
			return
		}
		w.WriteHeader(200)
	}))

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest("POST", "/", strings.NewReader("0123456789")))
	if w.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("oversized POST status = %d, want 413", w.Code)
	}

	w = httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest("POST", "/", strings.NewReader("01234")))
	if w.Code != 200 {
		t.Fatalf("small POST status = %d, want 200", w.Code)
	}
}

func TestRateLimiter(t *testing.T) {
	rl := NewRateLimiter(map[string]RateLimitConfig{
		"POST /update": {MaxRequests: 2, Window: time.Minute},
	})
	now := time.Unix(1_700_000_000, 0)
	rl.now = func() time.Time { return now }

	r := stackRouter(rl.Middleware)
	r.Post("/update", func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(200) })
	r.Get("/free", func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(200) })

	post := func() int {
		req := httptest.NewRequest("POST", "/update", nil)
		req.RemoteAddr = "10.0.0.1:5000"
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w.Code
	}

	for i := 0; i < 2; i++ {
		if code := post(); code != 200 {
			t.Fatalf("request %d: status %d, want 200", i, code)
		}
	}
	if code := post(); code != http.StatusTooManyRequests {
		t.Fatalf("third request: status %d, want 429", code)
	}

	now = now.Add(2 * time.Minute)
	if code := post(); code != 200 {
		t.Fatalf("after window: status %d, want 200", code)
	}

	for i := 0; i < 5; i++ {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest("GET", "/free", nil))
		if w.Code != 200 {
			t.Fatalf("unlimited endpoint: status %d", w.Code)
		}
	}
}

func TestExtractIP(t *testing.T) {
	req := httptest.NewRequest("GET", "/", nil)
	req.RemoteAddr = "192.0.2.7:1234"
	if ip := ExtractIP(req); ip != "192.0.2.7" {
		t.Fatalf("RemoteAddr ip = %q", ip)
	}
	req.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")
	if ip := ExtractIP(req); ip != "203.0.113.9" {
		t.Fatalf("XFF ip = %q", ip)
	}
}

func TestBasicAuth(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("s3cret"), bcrypt.MinCost)
	if err != nil {
		t.Fatal(err)
	}
	r := stackRouter(BasicAuth(BasicAuthConfig{Username: "ops", PasswordHash: hash, Exempt: []string{"/healthz"}}))
	r.Get("/", func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(200) })
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(200) })

	tests := []struct {
		name       string
		path       string
		user, pass string
		want       int
	}{
		{"no credentials", "/", "", "", http.StatusUnauthorized},
		{"wrong password", "/", "ops", "nope", http.StatusUnauthorized},
		{"wrong user", "/", "root", "s3cret", http.StatusUnauthorized},
		{"valid", "/", "ops", "s3cret", http.StatusOK},
		{"exempt path", "/healthz", "", "", http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", tt.path, nil)
			if tt.user != "" {
				req.SetBasicAuth(tt.user, tt.pass)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			if w.Code != tt.want {
				t.Fatalf("status = %d, want %d", w.Code, tt.want)
			}
			if tt.want == http.StatusUnauthorized && w.Header().Get("WWW-Authenticate") == "" {
				t.Error("missing WWW-Authenticate challenge")
			}
		})
	}
}

func TestBasicAuth_DisabledWithoutUsername(t *testing.T) {
	h := BasicAuth(BasicAuthConfig{})(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(204)
	}))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest("GET", "/", nil))
	if w.Code != 204 {
		t.Fatalf("status = %d, want 204", w.Code)
	}
}
