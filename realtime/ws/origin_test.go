package ws

import (
	"net/http/httptest"
	"testing"
)

func TestIsOriginAllowed(t *testing.T) {
	cases := []struct {
		name          string
		origin        string
		allowed       []string
		allowNoOrigin bool
		want          bool
	}{
		{"full origin match", "http://example.com:5173", []string{"http://example.com:5173"}, false, true},
		{"full origin rejects different port", "http://example.com:5173", []string{"http://example.com"}, false, false},
		{"hostname match ignores port", "https://example.com:5173", []string{"example.com"}, false, true},
		{"hostname match is case-insensitive", "https://ExAmPlE.com:5173", []string{"example.com"}, false, true},
		{"host:port match", "https://example.com:5173", []string{"example.com:5173"}, false, true},
		{"host:port rejects wrong port", "https://example.com:5173", []string{"example.com:9999"}, false, false},
		{"wildcard matches subdomain", "https://a.example.com", []string{"*.example.com"}, false, true},
		{"wildcard rejects base domain", "https://example.com", []string{"*.example.com"}, false, false},
		{"wildcard is case-insensitive", "https://A.ExAmPlE.com", []string{"*.example.com"}, false, true},
		{"ipv6 hostname entry", "http://[::1]:5173", []string{"::1"}, false, true},
		{"null origin needs exact entry", "null", []string{"null"}, false, true},
		{"null origin rejected otherwise", "null", []string{"example.com"}, false, false},
		{"empty allow-list rejects", "https://example.com", nil, false, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := httptest.NewRequest("GET", "http://relay.local/ws", nil)
			r.Header.Set("Origin", tc.origin)
			if got := IsOriginAllowed(r, tc.allowed, tc.allowNoOrigin); got != tc.want {
				t.Fatalf("IsOriginAllowed(%q, %v) = %v, want %v", tc.origin, tc.allowed, got, tc.want)
			}
		})
	}
}

func TestIsOriginAllowedNoOriginHeader(t *testing.T) {
	r := httptest.NewRequest("GET", "http://relay.local/ws", nil)
	if !IsOriginAllowed(r, []string{"example.com"}, true) {
		t.Fatal("expected request without Origin to be allowed when allowNoOrigin is set")
	}
	if IsOriginAllowed(r, []string{"example.com"}, false) {
		t.Fatal("expected request without Origin to be rejected")
	}
}

func TestNewOriginChecker(t *testing.T) {
	check := NewOriginChecker([]string{"example.com"}, false)
	r := httptest.NewRequest("GET", "http://relay.local/ws", nil)
	r.Header.Set("Origin", "https://example.com")
	if !check(r) {
		t.Fatal("expected checker to allow listed origin")
	}
	r.Header.Set("Origin", "https://evil.test")
	if check(r) {
		t.Fatal("expected checker to reject unlisted origin")
	}
}
