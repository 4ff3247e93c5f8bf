package fingerprint_test

import (
	"net/http/httptest"
	"testing"

	"github.com/spendlyzer/auth/internal/auth/fingerprint"
	"github.com/stretchr/testify/require"
)

const (
	uaFirefoxMac  = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10.15; rv:128.0) Gecko/20100101 Firefox/128.0"
	uaChromeWin   = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0.0.0 Safari/537.36"
	uaSafariPhone = "Mozilla/5.0 (iPhone; CPU iPhone OS 17_5 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.5 Mobile/15E148 Safari/604.1"
)

func TestFromRequest(t *testing.T) {
	t.Parallel()

	r := httptest.NewRequest("POST", "/v1/auth/signin", nil)
	r.Header.Set("User-Agent", uaFirefoxMac)
	r.Header.Set("Accept-Language", "en-AU,en;q=0.9")
	r.RemoteAddr = "203.0.113.7:52100"

	dev := fingerprint.FromRequest(r)
	require.Equal(t, "Desktop - macOS - Firefox", dev.Name)
	require.Equal(t, "203.0.113.7", dev.IPAddress)
	require.Equal(t, "en-AU", dev.Language)
	require.NotEmpty(t, dev.Hash)
}

func TestFromRequest_MobileSafari(t *testing.T) {
	t.Parallel()

	r := httptest.NewRequest("POST", "/v1/auth/signin", nil)
	r.Header.Set("User-Agent", uaSafariPhone)

	dev := fingerprint.FromRequest(r)
	require.Equal(t, "Mobile - iOS - Safari", dev.Name)
}

func TestHash_StableAcrossVersionBumps(t *testing.T) {
	t.Parallel()

	r1 := httptest.NewRequest("GET", "/", nil)
	r1.Header.Set("User-Agent", uaFirefoxMac)

	// Same browser and OS with a newer version string.
	r2 := httptest.NewRequest("GET", "/", nil)
	r2.Header.Set("User-Agent", "Mozilla/5.0 (Macintosh; Intel Mac OS X 10.15; rv:129.0) Gecko/20100101 Firefox/129.0")

	require.Equal(t, fingerprint.FromRequest(r1).Hash, fingerprint.FromRequest(r2).Hash)
}

func TestHash_DiffersAcrossBrowsers(t *testing.T) {
	t.Parallel()

	r1 := httptest.NewRequest("GET", "/", nil)
	r1.Header.Set("User-Agent", uaFirefoxMac)

	r2 := httptest.NewRequest("GET", "/", nil)
	r2.Header.Set("User-Agent", uaChromeWin)

	require.NotEqual(t, fingerprint.FromRequest(r1).Hash, fingerprint.FromRequest(r2).Hash)
}

func TestClientIP_ForwardedFor(t *testing.T) {
	t.Parallel()

	r := httptest.NewRequest("GET", "/", nil)
	r.Header.Set("User-Agent", uaChromeWin)
	r.Header.Set("X-Forwarded-For", "198.51.100.4, 10.0.0.1")
	r.RemoteAddr = "10.0.0.1:9999"

	dev := fingerprint.FromRequest(r)
	require.Equal(t, "198.51.100.4", dev.IPAddress)
}
