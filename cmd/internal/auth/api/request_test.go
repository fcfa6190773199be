package api

import (
	"net/http/httptest"
	"testing"
)

func TestClientIP(t *testing.T) {
	cases := []struct {
		name       string
		trustProxy bool
		remoteAddr string
		headers    map[string]string
		want       string
	}{
		{"remote addr", false, "203.0.113.7:4000", nil, "203.0.113.7"},
		{"ignores xff without trust", false, "203.0.113.7:4000", map[string]string{"X-Forwarded-For": "198.51.100.1"}, "203.0.113.7"},
		{"xff first hop", true, "10.0.0.1:4000", map[string]string{"X-Forwarded-For": "198.51.100.1, 10.0.0.2"}, "198.51.100.1"},
		{"x-real-ip", true, "10.0.0.1:4000", map[string]string{"X-Real-IP": "198.51.100.9"}, "198.51.100.9"},
		{"garbage xff falls back", true, "10.0.0.1:4000", map[string]string{"X-Forwarded-For": "not-an-ip"}, "10.0.0.1"},
		{"unparseable remote", false, "somewhere", nil, unknownIP},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := &Handler{cfg: Config{TrustProxy: tc.trustProxy}}
			r := httptest.NewRequest("GET", "/", nil)
			r.RemoteAddr = tc.remoteAddr
			for k, v := range tc.headers {
				r.Header.Set(k, v)
			}
			if got := h.clientIP(r); got != tc.want {
				t.Fatalf("clientIP=%q want %q", got, tc.want)
			}
		})
	}
}

func TestBearerToken(t *testing.T) {
	cases := []struct {
		header string
		want   string
		ok     bool
	}{
		{"Bearer abc", "abc", true},
		{"bearer   abc  ", "abc", true},
		{"Basic abc", "", false},
		{"Bearer", "", false},
		{"Bearer   ", "", false},
		{"", "", false},
	}
	for _, tc := range cases {
		r := httptest.NewRequest("GET", "/", nil)
		if tc.header != "" {
			r.Header.Set("Authorization", tc.header)
		}
		got, ok := bearerToken(r)
		if got != tc.want || ok != tc.ok {
			t.Fatalf("bearerToken(%q)=(%q,%v) want (%q,%v)", tc.header, got, ok, tc.want, tc.ok)
		}
	}
}
