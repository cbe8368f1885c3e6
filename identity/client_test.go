package identity

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClientAddress_PriorityWhenTrusted(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "http://example/", nil)
	r.RemoteAddr = "10.0.0.9:5555"
	r.Header.Set("X-Forwarded-For", "1.2.3.4, 5.6.7.8")
	r.Header.Set("X-Real-IP", "2.2.2.2")
	r.Header.Set("CF-Connecting-IP", "3.3.3.3")

	assert.Equal(t, "3.3.3.3", ClientAddress(r, true))

	r.Header.Del("CF-Connecting-IP")
	assert.Equal(t, "2.2.2.2", ClientAddress(r, true))

	r.Header.Del("X-Real-IP")
	assert.Equal(t, "1.2.3.4", ClientAddress(r, true))
}

func TestClientAddress_IgnoresHeadersWhenUntrusted(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "http://example/", nil)
	r.RemoteAddr = "10.0.0.9:5555"
	r.Header.Set("CF-Connecting-IP", "3.3.3.3")

	assert.Equal(t, "10.0.0.9", ClientAddress(r, false))
}

func TestClientAddress_UnknownWhenEmpty(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "http://example/", nil)
	r.RemoteAddr = ""

	assert.Equal(t, "unknown", ClientAddress(r, false))
}

func TestHasher_FromRequestInvalid(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "http://example/", nil)
	r.RemoteAddr = ""

	_, err := NewHasher("").FromRequest(r, false)
	assert.ErrorIs(t, err, ErrInvalidIdentity)
}
