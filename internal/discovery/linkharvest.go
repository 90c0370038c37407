package discovery

import (
	"context"
	"net/url"
	"strings"

	"github.com/IGLOU-EU/go-wildcard/v2"
)

// LinkHarvestSource is a meta-discovery source: it does not call any
// external API, it mines external domains out of page_url values the
// scanner has already ingested, to seed scouting for platforms not yet
// under crawl. Grounded on the original implementation's
// scout/sources/link_harvest.py, which does the same distinct-domain scan
// over discovered_images.page_url.
//
// The caller supplies PageURLs already collected from storage (this
// package has no storage dependency); KnownPlatformPatterns are wildcard
// host patterns ("*.instagram.com", "civitai.com") already under crawl, so
// link harvesting never re-"discovers" a platform the scanner already
// watches.
type LinkHarvestSource struct {
	knownPlatformPatterns []string
}

// NewLinkHarvestSource builds a link-harvest source excluding any host
// matching one of knownPlatformPatterns.
func NewLinkHarvestSource(knownPlatformPatterns []string) *LinkHarvestSource {
	return &LinkHarvestSource{knownPlatformPatterns: knownPlatformPatterns}
}

func (s *LinkHarvestSource) SourceType() SourceType { return SourceURLCheck }
func (s *LinkHarvestSource) SourceName() string      { return "link_harvest" }

// isKnownPlatform reports whether host matches any already-crawled
// platform pattern. Patterns use shell-style wildcards ("*.") the way the
// teacher matches node name patterns against wildcard rules. A "*."
// pattern also covers the bare domain, since "www." is stripped first.
func (s *LinkHarvestSource) isKnownPlatform(host string) bool {
	for _, pattern := range s.knownPlatformPatterns {
		if wildcard.Match(pattern, host) || strings.TrimPrefix(pattern, "*.") == host {
			return true
		}
	}
	return false
}

// Discover extracts distinct, not-already-known domains from
// dctx.URLs (the caller populates this from DiscoveredImage.page_url rows)
// and emits one URLCheck candidate per new domain, deduplicated within
// the call. It never emits a candidate for a URL it cannot parse.
func (s *LinkHarvestSource) Discover(_ context.Context, dctx Context) (Result, error) {
	seen := make(map[string]bool, len(dctx.URLs))
	var images []ImageResult

	for _, raw := range dctx.URLs {
		u, err := url.Parse(raw)
		if err != nil || u.Host == "" {
			continue
		}

		host := strings.ToLower(strings.TrimPrefix(u.Hostname(), "www."))
		if host == "" || seen[host] || s.isKnownPlatform(host) {
			continue
		}
		seen[host] = true

		images = append(images, ImageResult{
			SourceURL: raw,
			PageURL:   raw,
			Platform:  host,
		})
	}

	return Result{Images: images}, nil
}
