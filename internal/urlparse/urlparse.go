// Package urlparse maps page URLs to (platform, handle, domain) triples and
// checks them against a contributor's known_accounts allowlist. The
// original implementation's src/utils/url_parser.py was referenced by
// matching/confidence.py but not present in the retrieval pack itself, so
// this is grounded directly on spec.md's URL-parsing rules.
package urlparse

import (
	"net/url"
	"strings"

	"github.com/divavault/scanner-core/internal/models"
)

// PlatformNone is returned for hosts that match no recognized platform.
const PlatformNone = "none"

// Parsed is the result of mapping a URL to its platform identity.
type Parsed struct {
	Platform string
	Handle   string
	Domain   string
}

type platformRule struct {
	hostSuffixes []string
	extractHandle func(path string) string
}

func stripLeadingSlash(path string) string {
	return strings.TrimPrefix(path, "/")
}

func firstPathSegment(path string) string {
	path = stripLeadingSlash(path)
	if i := strings.Index(path, "/"); i >= 0 {
		path = path[:i]
	}
	return path
}

var platformRules = map[string]platformRule{
	"instagram": {hostSuffixes: []string{"instagram.com"}, extractHandle: firstPathSegment},
	"twitter":   {hostSuffixes: []string{"twitter.com", "x.com"}, extractHandle: firstPathSegment},
	"tiktok": {hostSuffixes: []string{"tiktok.com"}, extractHandle: func(path string) string {
		return strings.TrimPrefix(firstPathSegment(path), "@")
	}},
	"facebook":   {hostSuffixes: []string{"facebook.com"}, extractHandle: firstPathSegment},
	"linkedin":   {hostSuffixes: []string{"linkedin.com"}, extractHandle: firstPathSegment},
	"deviantart": {hostSuffixes: []string{"deviantart.com"}, extractHandle: firstPathSegment},
	"reddit":     {hostSuffixes: []string{"reddit.com"}, extractHandle: firstPathSegment},
	"civitai":    {hostSuffixes: []string{"civitai.com"}, extractHandle: firstPathSegment},
	"youtube":    {hostSuffixes: []string{"youtube.com", "youtu.be"}, extractHandle: firstPathSegment},
}

// stripSubdomain removes a leading "m." or "www." label, per spec §6.
func stripSubdomain(host string) string {
	for _, prefix := range []string{"m.", "www."} {
		if strings.HasPrefix(host, prefix) {
			return host[len(prefix):]
		}
	}
	return host
}

// Parse maps a page URL to (platform, handle, domain). Unknown hosts yield
// platform=none with domain set to the (subdomain-stripped) host.
func Parse(pageURL string) Parsed {
	u, err := url.Parse(pageURL)
	if err != nil || u.Host == "" {
		return Parsed{Platform: PlatformNone}
	}

	host := strings.ToLower(stripSubdomain(u.Hostname()))

	for platform, rule := range platformRules {
		for _, suffix := range rule.hostSuffixes {
			if host == suffix || strings.HasSuffix(host, "."+suffix) {
				handle := strings.ToLower(rule.extractHandle(u.Path))
				return Parsed{Platform: platform, Handle: handle, Domain: host}
			}
		}
	}

	return Parsed{Platform: PlatformNone, Domain: host}
}

// CheckAllowlist returns the known account matching pageURL, checked first
// by (platform, handle) and falling back to domain, or nil if none match.
func CheckAllowlist(pageURL string, accounts []models.KnownAccount) *models.KnownAccount {
	if pageURL == "" || len(accounts) == 0 {
		return nil
	}

	parsed := Parse(pageURL)

	for i := range accounts {
		acc := &accounts[i]
		if acc.Platform != "" && acc.Handle != "" &&
			strings.EqualFold(acc.Platform, parsed.Platform) &&
			strings.EqualFold(acc.Handle, parsed.Handle) {
			return acc
		}
	}
	for i := range accounts {
		acc := &accounts[i]
		if acc.Domain != "" && strings.EqualFold(acc.Domain, parsed.Domain) {
			return acc
		}
	}
	return nil
}
