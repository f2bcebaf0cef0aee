package observe

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestClientIP_IgnoresForwardedFor(t *testing.T) {
	tests := []struct {
		name       string
		xff        string
		remoteAddr string
		want       string
	}{
		{"remote addr", "", "198.51.100.1:1234", "198.51.100.1"},
		{"forwarded single", "203.0.113.5", "10.0.0.1:1", "10.0.0.1"},
		{"forwarded chain", " 203.0.113.5 , 10.0.0.2", "10.0.0.1:1", "10.0.0.1"},
		{"no port", "", "198.51.100.1", "198.51.100.1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remoteAddr
			if tt.xff != "" {
				req.Header.Set("X-Forwarded-For", tt.xff)
			}
			if got := ClientIP(req); got != tt.want {
				t.Errorf("ClientIP() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestProxyTrust_ClientIP(t *testing.T) {
	pt, err := NewProxyTrust([]string{"10.0.0.0/8", " 192.0.2.7 ", ""})
	if err != nil {
		t.Fatalf("NewProxyTrust() error = %v", err)
	}

	tests := []struct {
		name       string
		remoteAddr string
		xff        []string
		want       string
	}{
		{"untrusted peer spoofing", "198.51.100.1:1", []string{"1.2.3.4"}, "198.51.100.1"},
		{"trusted peer", "10.0.0.1:1", []string{"203.0.113.5"}, "203.0.113.5"},
		{"trusted chain", "10.0.0.1:1", []string{"203.0.113.5, 10.1.1.1, 192.0.2.7"}, "203.0.113.5"},
		{"client prepends fake hop", "10.0.0.1:1", []string{"1.2.3.4, 203.0.113.5"}, "203.0.113.5"},
		{"split headers", "10.0.0.1:1", []string{"203.0.113.5", "10.2.2.2"}, "203.0.113.5"},
		{"malformed hop", "10.0.0.1:1", []string{"203.0.113.5, garbage, 10.2.2.2"}, "10.2.2.2"},
		{"all trusted", "10.0.0.1:1", []string{"10.3.3.3"}, "10.3.3.3"},
		{"no header", "10.0.0.1:1", nil, "10.0.0.1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remoteAddr
			for _, v := range tt.xff {
				req.Header.Add("X-Forwarded-For", v)
			}
			if got := pt.ClientIP(req); got != tt.want {
				t.Errorf("ClientIP() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestProxyTrust_NilTrustsNothing(t *testing.T) {
	var pt *ProxyTrust
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.1:1"
	req.Header.Set("X-Forwarded-For", "1.2.3.4")

	if got := pt.ClientIP(req); got != "10.0.0.1" {
		t.Errorf("ClientIP() = %q, want 10.0.0.1", got)
	}
}

func TestNewProxyTrust_RejectsBadEntry(t *testing.T) {
	for _, entry := range []string{"not-an-ip", "10.0.0.0/99"} {
		if _, err := NewProxyTrust([]string{entry}); err == nil {
			t.Errorf("NewProxyTrust(%q) error = nil, want error", entry)
		}
	}
}

func TestProxyTrust_Middleware(t *testing.T) {
	pt, err := NewProxyTrust([]string{"10.0.0.1"})
	if err != nil {
		t.Fatalf("NewProxyTrust() error = %v", err)
	}

	var seen string
	h := pt.Middleware(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		seen = ClientIP(r)
	}))
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.1:1"
	req.Header.Set("X-Forwarded-For", "203.0.113.5")
	h.ServeHTTP(httptest.NewRecorder(), req)

	if seen != "203.0.113.5" {
		t.Errorf("downstream ClientIP() = %q, want 203.0.113.5", seen)
	}
}
