// ABOUTME: Request-derived event properties and enrichment layers
// ABOUTME: Layered first-write-wins derivation of path, referrer, UA, and UTM data

package analytics

import (
	"net"
	"net/http"
	"net/url"
	"strings"

	"github.com/mileusna/useragent"
)

// Properties is the property bag attached to a tracked event or a
// profile sync.
type Properties map[string]any

// Options is the delivery metadata passed alongside an event: the
// client IP and, when a current user is known, the distinct ID.
type Options map[string]any

// setIfAbsent writes a value only when the key has not been set by an
// earlier layer or by the caller.
func (p Properties) setIfAbsent(key string, value any) {
	if _, ok := p[key]; !ok {
		p[key] = value
	}
}

// utmParams are the campaign query parameters copied verbatim into
// event properties when present.
var utmParams = []string{
	"utm_source",
	"utm_medium",
	"utm_campaign",
	"utm_content",
	"utm_term",
}

// layer enriches a property bag from the request. Layers run in order
// and use insert-if-absent semantics, so caller-supplied properties and
// earlier layers always win.
type layer func(p Properties, r *http.Request)

// enrichmentLayers is the ordered derivation pipeline applied by Track.
// The current-path value is written before these run and is the one
// unconditional overwrite.
var enrichmentLayers = []layer{
	referrerLayer,
	userAgentLayer,
	utmLayer,
}

// deriveProperties builds the full property bag for an event: a copy of
// the caller's properties, the current path, then each enrichment layer.
func deriveProperties(r *http.Request, caller Properties) Properties {
	props := make(Properties, len(caller)+8)
	for k, v := range caller {
		props[k] = v
	}

	// The page path always reflects the request being processed, even
	// when the caller passed its own value.
	props["Current Path"] = r.URL.Path

	for _, l := range enrichmentLayers {
		l(props, r)
	}
	return props
}

// referrerLayer sets $referrer and $referring_domain from the standard
// Referer header. A referrer whose URL has no parseable host yields no
// $referring_domain key.
func referrerLayer(p Properties, r *http.Request) {
	ref := r.Header.Get("Referer")
	if ref == "" {
		return
	}
	p.setIfAbsent("$referrer", ref)

	u, err := url.Parse(ref)
	if err != nil || u.Host == "" {
		return
	}
	p.setIfAbsent("$referring_domain", u.Host)
}

// userAgentLayer sets $os, $browser, $browser_version, and $device from
// the User-Agent header. A string the parser cannot attribute to any
// browser or OS is treated as unparseable and the layer is skipped.
// $device is omitted when the device family is unknown.
func userAgentLayer(p Properties, r *http.Request) {
	raw := r.Header.Get("User-Agent")
	if raw == "" {
		return
	}

	ua := useragent.Parse(raw)
	if ua.Name == "" && ua.OS == "" {
		return
	}

	p.setIfAbsent("$os", ua.OS)
	p.setIfAbsent("$browser", ua.Name)
	p.setIfAbsent("$browser_version", ua.Version)
	if ua.Device != "" {
		p.setIfAbsent("$device", ua.Device)
	}
}

// utmLayer copies each utm_* query parameter that is present on the
// request. Absent parameters produce no keys, not empty strings.
func utmLayer(p Properties, r *http.Request) {
	q := r.URL.Query()
	for _, k := range utmParams {
		if q.Has(k) {
			p.setIfAbsent(k, q.Get(k))
		}
	}
}

// clientIP extracts the originating client address: the first
// X-Forwarded-For hop when present, otherwise the connection's remote
// address without its port.
func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if i := strings.IndexByte(xff, ','); i >= 0 {
			return strings.TrimSpace(xff[:i])
		}
		return strings.TrimSpace(xff)
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
