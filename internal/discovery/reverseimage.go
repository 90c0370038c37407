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

// ReverseImageSource queries a reverse-image-search API (TinEye-shaped: POST
// a reference image, get back pages that contain it) for each of a
// contributor's reference photos. Rate limiting and circuit breaking are
// keyed "tineye", matching the original's RATE_LIMITERS/CIRCUIT_BREAKERS
// service name.
type ReverseImageSource struct {
	apiBase string
	apiKey  string
	client  *http.Client
	limiter *resilience.RateLimiter
	breaker *resilience.Breaker
}

// NewReverseImageSource builds a reverse-image-search source.
func NewReverseImageSource(apiBase, apiKey string, limiter *resilience.RateLimiter, breaker *resilience.Breaker) *ReverseImageSource {
	return &ReverseImageSource{
		apiBase: apiBase,
		apiKey:  apiKey,
		client:  httpclient.New(30 * time.Second),
		limiter: limiter,
		breaker: breaker,
	}
}

func (s *ReverseImageSource) SourceType() SourceType { return SourceReverseImage }
func (s *ReverseImageSource) SourceName() string      { return "tineye" }

type reverseImageAPIResult struct {
	Matches []struct {
		ImageURL string `json:"image_url"`
		PageURL  string `json:"page_url"`
		Domain   string `json:"domain"`
	} `json:"matches"`
	Offset int `json:"offset"`
	Total  int `json:"total"`
}

// Discover runs a reverse-image search per reference image and merges the
// results, advancing an offset-based cursor stored per image key so a
// resumed crawl does not re-request pages it already paged through.
func (s *ReverseImageSource) Discover(ctx context.Context, dctx Context) (Result, error) {
	var images []ImageResult
	searchCursors := make(map[string]string, len(dctx.Images))

	for _, ref := range dctx.Images {
		key := ref.Bucket + "/" + ref.Key
		offset := 0
		if dctx.SearchCursors != nil {
			if prev, ok := dctx.SearchCursors[key]; ok {
				fmt.Sscanf(prev, "%d", &offset)
			}
		}

		var apiResult reverseImageAPIResult
		err := s.breaker.Execute(func() error {
			return resilience.Retry(ctx, resilience.DefaultRetryConfig(), func() error {
				s.limiter.Wait(1)
				r, err := s.query(ctx, ref, offset)
				if err != nil {
					return resilience.Retryable(err)
				}
				apiResult = r
				return nil
			})
		})
		if err != nil {
			searchCursors[key] = fmt.Sprintf("%d", offset)
			continue
		}

		for _, m := range apiResult.Matches {
			images = append(images, ImageResult{
				SourceURL: m.ImageURL,
				PageURL:   m.PageURL,
				Platform:  m.Domain,
			})
		}
		searchCursors[key] = fmt.Sprintf("%d", apiResult.Offset+len(apiResult.Matches))
	}

	return Result{Images: images, SearchCursors: searchCursors}, nil
}

func (s *ReverseImageSource) query(ctx context.Context, ref ReferenceImage, offset int) (reverseImageAPIResult, error) {
	url := fmt.Sprintf("%s/search?offset=%d", s.apiBase, offset)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, nil)
	if err != nil {
		return reverseImageAPIResult{}, fmt.Errorf("discovery.reverseimage: build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.apiKey)
	req.Header.Set("X-Reference-Bucket", ref.Bucket)
	req.Header.Set("X-Reference-Key", ref.Key)

	resp, err := s.client.Do(req)
	if err != nil {
		return reverseImageAPIResult{}, fmt.Errorf("discovery.reverseimage: request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return reverseImageAPIResult{}, fmt.Errorf("discovery.reverseimage: status %d", resp.StatusCode)
	}

	var out reverseImageAPIResult
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return reverseImageAPIResult{}, fmt.Errorf("discovery.reverseimage: decode: %w", err)
	}
	return out, nil
}
