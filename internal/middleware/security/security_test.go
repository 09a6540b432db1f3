package security

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"scuola/internal/log"
)

func TestExtractClientIP(t *testing.T) {
	tests := []struct {
		name   string
		remote string
		xff    string
		xri    string
		want   string
	}{
		{"direct public", "8.8.8.8:1234", "", "", "8.8.8.8"},
		{"untrusted forwarded ignored", "8.8.8.8:1234", "1.2.3.4", "", "8.8.8.8"},
		{"trusted proxy xff", "10.0.0.5:80", "1.2.3.4, 10.0.0.1", "", "1.2.3.4"},
		{"trusted proxy real ip", "127.0.0.1:80", "", "5.6.7.8", "5.6.7.8"},
		{"trusted proxy garbage", "192.168.1.1:80", "nope", "", "192.168.1.1"},
	}
	d := NewDetector()
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			r.RemoteAddr = tc.remote
			if tc.xff != "" {
				r.Header.Set("X-Forwarded-For", tc.xff)
			}
			if tc.xri != "" {
				r.Header.Set("X-Real-IP", tc.xri)
			}
			if got := d.ExtractClientIP(r); got != tc.want {
				t.Fatalf("got %q want %q", got, tc.want)
			}
		})
	}
}

func TestAddTrustedProxy(t *testing.T) {
	d := NewDetector()
	if err := d.AddTrustedProxy("bogus"); err == nil {
		t.Fatalf("expected error for bad CIDR")
	}
	if err := d.AddTrustedProxy("8.8.8.0/24"); err != nil {
		t.Fatalf("AddTrustedProxy: %v", err)
	}
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.RemoteAddr = "8.8.8.8:1"
	r.Header.Set("X-Forwarded-For", "1.1.1.1")
	if got := d.ExtractClientIP(r); got != "1.1.1.1" {
		t.Fatalf("got %q", got)
	}
}

func TestMiddlewareFlagsAndBlocksMethods(t *testing.T) {
	d := NewDetector()
	var reasons []string
	d.OnSuspicious(func(_ *http.Request, reason string) { reasons = append(reasons, reason) })

	h := d.Middleware(log.Discard())(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/.env", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("flagged path should pass through, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("TRACE", "/api", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("TRACE should be rejected, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api", nil))
	if len(reasons) != 2 {
		t.Fatalf("expected 2 flagged requests, got %v", reasons)
	}
}

func TestHeaders(t *testing.T) {
	h := NewHeadersMiddleware(DefaultHeadersConfig()).Middleware(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	for k, want := range map[string]string{
		"X-Content-Type-Options": "nosniff",
		"X-Frame-Options":        "DENY",
		"Cache-Control":          "no-store",
	} {
		if got := rec.Header().Get(k); got != want {
			t.Fatalf("%s=%q want %q", k, got, want)
		}
	}
	if rec.Header().Get("Strict-Transport-Security") != "" {
		t.Fatalf("HSTS must not be set over plain HTTP")
	}
}
