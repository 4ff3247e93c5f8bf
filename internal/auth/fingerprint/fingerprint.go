// Package fingerprint derives a stable, server-side device identity from
// request attributes. The hash is computed from parsed user-agent
// characteristics rather than the raw header, so minor browser version
// bumps don't orphan a trusted device while a different browser or OS
// still reads as a different device.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net"
	"net/http"
	"strings"
)

// Device captures everything the service records about the client making
// a request. Hash is the canonical fingerprint; Name is for humans.
type Device struct {
	UserAgent string
	IPAddress string
	Hash      string
	Name      string
	Language  string
	Timezone  string
}

type kind int

const (
	kindDesktop kind = iota
	kindMobile
	kindTablet
)

func (k kind) String() string {
	switch k {
	case kindMobile:
		return "Mobile"
	case kindTablet:
		return "Tablet"
	default:
		return "Desktop"
	}
}

// FromRequest extracts the device identity from an incoming request.
// Language and timezone come from headers the SPA forwards; both are
// optional and simply widen the fingerprint when present.
func FromRequest(r *http.Request) Device {
	ua := r.Header.Get("User-Agent")
	lang := primaryLanguage(r.Header.Get("Accept-Language"))
	tz := r.Header.Get("X-Timezone")

	browser := detectBrowser(ua)
	os := detectOS(ua)
	k := detectKind(ua)

	return Device{
		UserAgent: ua,
		IPAddress: clientIP(r),
		Hash:      Hash(browser, os, k.String(), lang, tz),
		Name:      fmt.Sprintf("%s - %s - %s", k, os, browser),
		Language:  lang,
		Timezone:  tz,
	}
}

// Hash builds the canonical SHA-256 fingerprint over the device
// attributes. Field order is fixed so the hash is reproducible.
func Hash(browser, os, deviceType, language, timezone string) string {
	canonical := strings.Join([]string{
		"browser=" + browser,
		"os=" + os,
		"type=" + deviceType,
		"lang=" + language,
		"tz=" + timezone,
	}, ";")
	sum := sha256.Sum256([]byte(canonical))
	return hex.EncodeToString(sum[:])
}

func detectBrowser(ua string) string {
	switch {
	case strings.Contains(ua, "Edg/"), strings.Contains(ua, "Edge/"):
		return "Edge"
	case strings.Contains(ua, "OPR/"), strings.Contains(ua, "Opera"):
		return "Opera"
	case strings.Contains(ua, "Firefox/"):
		return "Firefox"
	case strings.Contains(ua, "Chrome/"), strings.Contains(ua, "CriOS/"):
		return "Chrome"
	case strings.Contains(ua, "Safari/"):
		return "Safari"
	case ua == "":
		return "Unknown Browser"
	default:
		return "Unknown Browser"
	}
}

func detectOS(ua string) string {
	switch {
	case strings.Contains(ua, "Windows"):
		return "Windows"
	case strings.Contains(ua, "iPhone"), strings.Contains(ua, "iPad"):
		return "iOS"
	case strings.Contains(ua, "Mac OS X"), strings.Contains(ua, "Macintosh"):
		return "macOS"
	case strings.Contains(ua, "Android"):
		return "Android"
	case strings.Contains(ua, "Linux"):
		return "Linux"
	default:
		return "Unknown OS"
	}
}

func detectKind(ua string) kind {
	switch {
	case strings.Contains(ua, "iPad"), strings.Contains(ua, "Tablet"):
		return kindTablet
	case strings.Contains(ua, "Mobi"), strings.Contains(ua, "iPhone"),
		strings.Contains(ua, "Android") && !strings.Contains(ua, "Tablet"):
		return kindMobile
	default:
		return kindDesktop
	}
}

// primaryLanguage reduces an Accept-Language header to its first tag,
// e.g. "en-AU,en;q=0.9" becomes "en-AU".
func primaryLanguage(header string) string {
	if header == "" {
		return ""
	}
	first := strings.SplitN(header, ",", 2)[0]
	first = strings.SplitN(first, ";", 2)[0]
	return strings.TrimSpace(first)
}

// clientIP prefers the first X-Forwarded-For hop when behind a proxy,
// falling back to the socket peer.
func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		return strings.TrimSpace(strings.SplitN(fwd, ",", 2)[0])
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
