package util

import (
	"net/url"
	"strings"
)

var profileRoots = map[string]bool{
	"company":  true,
	"in":       true,
	"school":   true,
	"showcase": true,
}

// profile sub-pages that resolve to the same organization or person
var profileSubpaths = map[string]bool{
	"about":           true,
	"life":            true,
	"jobs":            true,
	"people":          true,
	"posts":           true,
	"mycompany":       true,
	"overlay":         true,
	"recent-activity": true,
	"details":         true,
}

// NormalizeProfileURL canonicalizes a company or member profile URL so that
// variants of the same profile compare equal: https scheme, lower-case host
// without "www." variance, no query or fragment, no trailing slash and no
// trailing sub-page (".../company/acme/about" -> ".../company/acme").
func NormalizeProfileURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return strings.TrimRight(raw, "/")
	}

	u.Scheme = "https"
	u.Host = strings.ToLower(u.Host)
	if strings.HasSuffix(u.Host, "linkedin.com") {
		u.Host = "www.linkedin.com"
	}
	u.RawQuery = ""
	u.Fragment = ""
	u.User = nil

	segs := strings.FieldsFunc(u.Path, func(r rune) bool { return r == '/' })
	if len(segs) > 0 {
		segs[0] = strings.ToLower(segs[0])
	}
	// keep /company/<slug> or /in/<slug>; drop anything after. Slugs are
	// case-insensitive on the site.
	if len(segs) >= 2 && profileRoots[segs[0]] {
		segs = []string{segs[0], strings.ToLower(segs[1])}
	} else {
		for len(segs) > 1 && profileSubpaths[strings.ToLower(segs[len(segs)-1])] {
			segs = segs[:len(segs)-1]
		}
	}

	u.Path = "/" + strings.Join(segs, "/")
	u.RawPath = ""
	if u.Path == "/" {
		u.Path = ""
	}
	return u.String()
}

// NormalizeDomain reduces a website URL or host to its bare lower-case
// domain: "https://www.Acme.com/careers" -> "acme.com".
func NormalizeDomain(raw string) string {
	s := strings.ToLower(strings.TrimSpace(raw))
	if s == "" {
		return ""
	}
	if i := strings.Index(s, "://"); i >= 0 {
		s = s[i+3:]
	}
	if i := strings.IndexAny(s, "/?#"); i >= 0 {
		s = s[:i]
	}
	if i := strings.LastIndexByte(s, '@'); i >= 0 {
		s = s[i+1:]
	}
	if h, _, ok := strings.Cut(s, ":"); ok {
		s = h
	}
	s = strings.TrimPrefix(s, "www.")
	return strings.Trim(s, ".")
}

// IsLinkedInHost reports whether raw points at the networking site itself
// rather than at a company's own website.
func IsLinkedInHost(raw string) bool {
	d := NormalizeDomain(raw)
	return d == "linkedin.com" || strings.HasSuffix(d, ".linkedin.com") || d == "lnkd.in"
}
