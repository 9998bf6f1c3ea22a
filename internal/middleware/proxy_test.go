package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestNewTrustedProxyMiddleware(t *testing.T) {
	tests := []struct {
		name    string
		proxies []string
		remote  string
		header  string
		want    string
	}{
		{"信頼済みCIDRからはX-Forwarded-Forを採用", []string{"10.0.0.0/8"}, "10.1.2.3:443", "203.0.113.9, 10.1.2.3", "203.0.113.9"},
		{"単一IP指定", []string{"192.0.2.10"}, "192.0.2.10:443", "203.0.113.9", "203.0.113.9"},
		{"信頼外の接続元はヘッダーを無視", []string{"10.0.0.0/8"}, "198.51.100.7:5000", "203.0.113.9", "198.51.100.7"},
		{"未設定ならヘッダーを無視", nil, "10.1.2.3:443", "203.0.113.9", "10.1.2.3"},
		{"不正なヘッダーは接続元を維持", []string{"10.0.0.0/8"}, "10.1.2.3:443", "garbage", "10.1.2.3"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mw, err := NewTrustedProxyMiddleware(tt.proxies)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			var got string
			handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				got = ClientIP(r)
			}))

			req := httptest.NewRequest(http.MethodGet, "/api/dashboard", nil)
			req.RemoteAddr = tt.remote
			req.Header.Set("X-Forwarded-For", tt.header)
			handler.ServeHTTP(httptest.NewRecorder(), req)

			if got != tt.want {
				t.Errorf("ClientIP() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestNewTrustedProxyMiddleware_InvalidEntry(t *testing.T) {
	for _, entry := range []string{"10.0.0.0/99", "not-an-ip"} {
		if _, err := NewTrustedProxyMiddleware([]string{entry}); err == nil {
			t.Errorf("NewTrustedProxyMiddleware(%q) should return error", entry)
		}
	}
}

func TestNewTrustedProxyMiddleware_BlankEntriesIgnored(t *testing.T) {
	mw, err := NewTrustedProxyMiddleware([]string{"", "  "})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	next := okHandler()
	if h := mw(next); h == nil {
		t.Fatal("middleware should return a handler")
	}
}
