package api

import (
	"net/url"
	"strings"
)

// ModelURLRules normalizes model URLs returned by the backend.
type ModelURLRules struct {
	// BaseURL is the backend origin that serves ProxyModelPath
	BaseURL string

	// ProxyHosts are third-party model hosts that must go through the proxy
	ProxyHosts []string

	// Fallback replaces an empty URL; empty keeps the placeholder subject
	Fallback string
}

// Normalize applies the model URL rules:
//   - empty input yields the fallback
//   - an http: scheme is coerced to https:
//   - URLs on a proxy host are rewritten to the local proxy endpoint with the
//     original URL percent-encoded in the url query parameter
func (r ModelURLRules) Normalize(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return r.Fallback
	}
	if r.IsProxy(raw) {
		return raw
	}

	secure := raw
	if len(secure) >= 5 && strings.EqualFold(secure[:5], "http:") {
		secure = "https:" + secure[5:]
	}

	if r.onProxyHost(secure) {
		return r.BaseURL + ProxyModelPath + "?url=" + url.QueryEscape(secure)
	}
	return secure
}

// IsProxy reports whether u already points at the backend proxy endpoint and
// therefore needs the authenticated blob path.
func (r ModelURLRules) IsProxy(u string) bool {
	if r.BaseURL == "" {
		return false
	}
	prefix := r.BaseURL + ProxyModelPath
	return u == prefix || strings.HasPrefix(u, prefix+"?")
}

func (r ModelURLRules) onProxyHost(raw string) bool {
	parsed, err := url.Parse(raw)
	if err != nil {
		return false
	}
	host := strings.ToLower(parsed.Hostname())
	if host == "" {
		return false
	}
	for _, h := range r.ProxyHosts {
		h = strings.ToLower(strings.TrimSpace(h))
		if h == "" {
			continue
		}
		if host == h || strings.HasSuffix(host, "."+h) {
			return true
		}
	}
	return false
}
