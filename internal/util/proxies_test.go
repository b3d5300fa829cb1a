package util

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestClientIP(t *testing.T) {
	edge, err := NewTrustedProxies([]string{"10.0.0.0/8", " 192.168.1.10 ", "fd00::/8"})
	if err != nil {
		t.Fatalf("trusted proxies: %v", err)
	}

	cases := []struct {
		name    string
		remote  string
		xff     string
		realIP  string
		trusted *TrustedProxies
		want    string
	}{
		{name: "direct client ignores headers", remote: "198.51.100.10:4711", xff: "203.0.113.5", realIP: "203.0.113.6", want: "198.51.100.10"},
		{name: "untrusted peer ignores headers", remote: "198.51.100.10:4711", xff: "203.0.113.5", trusted: edge, want: "198.51.100.10"},
		{name: "trusted peer forwards client", remote: "10.1.2.3:4711", xff: "203.0.113.5", trusted: edge, want: "203.0.113.5"},
		{name: "rightmost untrusted hop wins", remote: "10.1.2.3:4711", xff: "1.2.3.4, 203.0.113.5, 192.168.1.10", trusted: edge, want: "203.0.113.5"},
		{name: "all hops trusted gives leftmost", remote: "10.1.2.3:4711", xff: "10.0.0.5, 10.0.0.6", trusted: edge, want: "10.0.0.5"},
		{name: "garbage xff falls back to real ip", remote: "10.1.2.3:4711", xff: "unknown", realIP: "203.0.113.7", trusted: edge, want: "203.0.113.7"},
		{name: "ipv6 proxy", remote: "[fd00::1]:4711", xff: "2001:db8::9", trusted: edge, want: "2001:db8::9"},
		{name: "mapped ipv4 peer", remote: "[::ffff:10.0.0.9]:4711", xff: "203.0.113.8", trusted: edge, want: "203.0.113.8"},
		{name: "unparseable remote is returned as is", remote: "pipe", want: "pipe"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/session/auth/login", nil)
			req.RemoteAddr = tc.remote
			if tc.xff != "" {
				req.Header.Set("X-Forwarded-For", tc.xff)
			}
			if tc.realIP != "" {
				req.Header.Set("X-Real-IP", tc.realIP)
			}
			if got := ClientIP(req, tc.trusted); got != tc.want {
				t.Fatalf("ClientIP = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestNewTrustedProxies(t *testing.T) {
	p, err := NewTrustedProxies([]string{"", "  "})
	if err != nil || p != nil {
		t.Fatalf("blank entries should trust nobody, got %v err=%v", p, err)
	}
	for _, bad := range []string{"10.0.0.0/33", "proxy.internal"} {
		if _, err := NewTrustedProxies([]string{bad}); err == nil {
			t.Fatalf("expected error for %q", bad)
		}
	}
}
