package service

import "strings"

type Protocol uint8

const (
	HTTPS Protocol = iota
	HTTP
)

func (p Protocol) Scheme() string {
	if p == HTTP {
		return "http://"
	}
	return "https://"
}

// URLMatcher is one allowed frame ancestor. SLD is empty for single-label
// hosts such as "localhost".
type URLMatcher struct {
	Protocol Protocol
	SLD      string
	TLD      string
}

// Host returns "sld.tld" or "tld".
func (m URLMatcher) Host() string {
	if m.SLD == "" {
		return m.TLD
	}
	return m.SLD + "." + m.TLD
}

// ParseURLMatcher turns a verified domain into a matcher. "http://" marks an
// explicit plain-http domain; "localhost" is always http; everything else is
// https. Paths and ports are dropped.
func ParseURLMatcher(domain string) (URLMatcher, bool) {
	d := strings.ToLower(strings.TrimSpace(domain))
	proto := HTTPS
	switch {
	case strings.HasPrefix(d, "http://"):
		proto = HTTP
		d = strings.TrimPrefix(d, "http://")
	case strings.HasPrefix(d, "https://"):
		d = strings.TrimPrefix(d, "https://")
	}
	if i := strings.IndexAny(d, "/:?#"); i >= 0 {
		d = d[:i]
	}
	d = strings.Trim(d, ".")
	if d == "" || strings.ContainsAny(d, " \t;,'\"*") {
		return URLMatcher{}, false
	}
	if d == "localhost" {
		proto = HTTP
	}

	i := strings.LastIndexByte(d, '.')
	if i < 0 {
		return URLMatcher{Protocol: proto, TLD: d}, true
	}
	return URLMatcher{Protocol: proto, SLD: d[:i], TLD: d[i+1:]}, true
}

// ContentSecurityPolicy renders the frame-ancestors directive for ms.
// "*.sld.tld" does not match "sld.tld", so both are listed.
func ContentSecurityPolicy(ms []URLMatcher) string {
	var sb strings.Builder
	sb.WriteString("frame-ancestors")
	for _, m := range ms {
		scheme, host := m.Protocol.Scheme(), m.Host()
		sb.WriteString(" " + scheme + "*." + host)
		sb.WriteString(" " + scheme + host)
	}
	return sb.String()
}
