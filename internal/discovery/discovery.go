// Package discovery finds candidate images that might contain a
// contributor's face. Grounded on the original implementation's
// discovery/base.py (Source contract) and scout/base.py + scout/sources
// (the link-harvest meta-discovery source).
package discovery

import "context"

// SourceType identifies which kind of discovery a Source performs.
type SourceType string

const (
	SourceReverseImage  SourceType = "reverse_image"
	SourcePlatformCrawl SourceType = "platform_crawl"
	SourceURLCheck      SourceType = "url_check"
)

// ReferenceImage is a contributor's stored reference photo, identified by
// object-store bucket and key.
type ReferenceImage struct {
	Bucket string
	Key    string
}

// Context is what a discovery source needs to do its job. Only the fields
// relevant to the source's type are populated.
type Context struct {
	ContributorID   string
	ContributorTier string
	Images          []ReferenceImage

	Platform    string
	SearchTerms []string

	URLs []string

	Cursor        string
	SearchCursors map[string]string
	ModelCursors  map[string]string
}

// ImageResult is one candidate image a source found.
type ImageResult struct {
	SourceURL string
	PageURL   string
	PageTitle string
	Platform  string
}

// Result wraps a discovery call's candidate images plus any pagination
// state needed to resume the crawl next time.
type Result struct {
	Images        []ImageResult
	NextCursor    string
	SearchCursors map[string]string
	ModelCursors  map[string]string
	TagsTotal     int
	TagsExhausted int
}

// Source is the contract every discovery mechanism implements: reverse
// image search against third-party APIs, platform-specific crawling, or
// one-off URL checks.
type Source interface {
	Discover(ctx context.Context, dctx Context) (Result, error)
	SourceType() SourceType
	SourceName() string
}
