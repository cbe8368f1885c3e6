package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"aspirasi-gateway/identity"
)

func TestDefaultKeyFunc_HashesRemoteAddr(t *testing.T) {
	h := identity.NewHasher("secret")
	fn := DefaultKeyFunc(h, false)

	r := httptest.NewRequest(http.MethodGet, "http://example/", nil)
	r.RemoteAddr = "10.0.0.9:5555"

	want, _ := h.Hash("10.0.0.9")
	if got := fn(r); got != want {
		t.Fatalf("expected hashed remote host %q, got %q", want, got)
	}
}

func TestDefaultKeyFunc_TrustProxyUsesForwardedAddress(t *testing.T) {
	h := identity.NewHasher("")
	fn := DefaultKeyFunc(h, true)

	r := httptest.NewRequest(http.MethodGet, "http://example/", nil)
	r.RemoteAddr = "10.0.0.9:5555"
	r.Header.Set("X-Forwarded-For", "1.2.3.4, 5.6.7.8")

	want, _ := h.Hash("1.2.3.4")
	if got := fn(r); got != want {
		t.Fatalf("expected hash of first XFF ip, got %q", got)
	}
}

func TestDefaultKeyFunc_InvalidAddressSharesUnknownBucket(t *testing.T) {
	fn := DefaultKeyFunc(nil, false)

	r := httptest.NewRequest(http.MethodGet, "http://example/", nil)
	r.RemoteAddr = "garbage"

	if got := fn(r); got != "unknown" {
		t.Fatalf("expected unknown, got %q", got)
	}
}

func TestClassRouter_FirstMatchWins(t *testing.T) {
	router := NewClassRouter(
		ClassRule{Class: "email", Prefixes: []string{"/api/send-email"}},
		ClassRule{Class: "api", Prefixes: []string{"/api/"}},
	)

	if rule, ok := router.Match("/api/send-email"); !ok || rule.Class != "email" {
		t.Fatalf("expected email class, got %+v ok=%v", rule, ok)
	}
	if rule, ok := router.Match("/api/get-ip"); !ok || rule.Class != "api" {
		t.Fatalf("expected api class, got %+v ok=%v", rule, ok)
	}
	if _, ok := router.Match("/metrics"); ok {
		t.Fatalf("expected no class for /metrics")
	}
}
