package discovery

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/divavault/scanner-core/internal/httpclient"
	"github.com/divavault/scanner-core/internal/resilience"
)

// PlatformCrawlSource paginates a platform's public gallery/search API by
// tag, resuming from per-tag cursors across runs. Shaped after the civitai
// and deviantart crawl sources the original registers in
// discovery/platform_crawl.py / deviantart_crawl.py (present in name only,
// not retrieved) against the common discover() contract in
// discovery/base.py.
type PlatformCrawlSource struct {
	platform string
	apiBase  string
	tags     []string
	client   *http.Client
	limiter  *resilience.RateLimiter
	breaker  *resilience.Breaker
}

// NewPlatformCrawlSource builds a crawl source for one platform.
func NewPlatformCrawlSource(platform, apiBase string, tags []string, limiter *resilience.RateLimiter, breaker *resilience.Breaker) *PlatformCrawlSource {
	return &PlatformCrawlSource{platform: platform, apiBase: apiBase, tags: tags, client: httpclient.New(30 * time.Second), limiter: limiter, breaker: breaker}
}

func (s *PlatformCrawlSource) SourceType() SourceType { return SourcePlatformCrawl }
func (s *PlatformCrawlSource) SourceName() string      { return s.platform }

type platformPage struct {
	Items []struct {
		ImageURL string `json:"image_url"`
		PageURL  string `json:"page_url"`
		Title    string `json:"title"`
	} `json:"items"`
	NextCursor string `json:"next_cursor"`
	Exhausted  bool   `json:"exhausted"`
}

// Discover walks each configured tag one page at a time, carrying forward
// per-tag model cursors so an interrupted crawl resumes without
// re-emitting pages it already walked (dedup of individual images still
// happens downstream by source URL).
func (s *PlatformCrawlSource) Discover(ctx context.Context, dctx Context) (Result, error) {
	var images []ImageResult
	modelCursors := make(map[string]string, len(s.tags))
	exhaustedCount := 0

	for _, tag := range s.tags {
		cursor := ""
		if dctx.ModelCursors != nil {
			cursor = dctx.ModelCursors[tag]
		}

		var page platformPage
		err := s.breaker.Execute(func() error {
			return resilience.Retry(ctx, resilience.DefaultRetryConfig(), func() error {
				s.limiter.Wait(1)
				p, err := s.fetchPage(ctx, tag, cursor)
				if err != nil {
					return resilience.Retryable(err)
				}
				page = p
				return nil
			})
		})
		if err != nil {
			modelCursors[tag] = cursor
			continue
		}

		for _, item := range page.Items {
			images = append(images, ImageResult{
				SourceURL: item.ImageURL,
				PageURL:   item.PageURL,
				PageTitle: item.Title,
				Platform:  s.platform,
			})
		}

		modelCursors[tag] = page.NextCursor
		if page.Exhausted {
			exhaustedCount++
		}
	}

	return Result{
		Images:        images,
		ModelCursors:  modelCursors,
		TagsTotal:     len(s.tags),
		TagsExhausted: exhaustedCount,
	}, nil
}

func (s *PlatformCrawlSource) fetchPage(ctx context.Context, tag, cursor string) (platformPage, error) {
	url := fmt.Sprintf("%s/search?tag=%s&cursor=%s", s.apiBase, tag, cursor)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return platformPage{}, fmt.Errorf("discovery.platformcrawl: build request: %w", err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return platformPage{}, fmt.Errorf("discovery.platformcrawl: request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return platformPage{}, fmt.Errorf("discovery.platformcrawl: status %d", resp.StatusCode)
	}

	var out platformPage
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return platformPage{}, fmt.Errorf("discovery.platformcrawl: decode: %w", err)
	}
	return out, nil
}
