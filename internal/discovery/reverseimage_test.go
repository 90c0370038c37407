package discovery

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/divavault/scanner-core/internal/resilience"
)

func newLimiterAndBreaker() (*resilience.RateLimiter, *resilience.Breaker) {
	return resilience.NewRateLimiter(1000, 1000), resilience.NewBreaker("test", 3, time.Minute)
}

func TestReverseImageSource_Discover_MergesMatchesAndAdvancesCursor(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		json.NewEncoder(w).Encode(reverseImageAPIResult{
			Matches: []struct {
				ImageURL string `json:"image_url"`
				PageURL  string `json:"page_url"`
				Domain   string `json:"domain"`
			}{
				{ImageURL: "https://host/a.jpg", PageURL: "https://host/page-a", Domain: "host"},
			},
			Offset: 0,
			Total:  1,
		})
	}))
	defer srv.Close()

	limiter, breaker := newLimiterAndBreaker()
	src := NewReverseImageSource(srv.URL, "test-key", limiter, breaker)

	result, err := src.Discover(context.Background(), Context{
		Images: []ReferenceImage{{Bucket: "contributor-references", Key: "c1/e1.jpg"}},
	})
	require.NoError(t, err)

	require.Len(t, result.Images, 1)
	assert.Equal(t, "https://host/page-a", result.Images[0].PageURL)
	assert.Equal(t, "1", result.SearchCursors["contributor-references/c1/e1.jpg"])
}

func TestReverseImageSource_Discover_FailureKeepsPriorCursor(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	limiter, breaker := newLimiterAndBreaker()
	src := NewReverseImageSource(srv.URL, "test-key", limiter, breaker)

	result, err := src.Discover(context.Background(), Context{
		Images:        []ReferenceImage{{Bucket: "b", Key: "k"}},
		SearchCursors: map[string]string{"b/k": "5"},
	})
	require.NoError(t, err)
	assert.Empty(t, result.Images)
	assert.Equal(t, "5", result.SearchCursors["b/k"])
}

func TestReverseImageSource_SourceTypeAndName(t *testing.T) {
	limiter, breaker := newLimiterAndBreaker()
	src := NewReverseImageSource("http://example.invalid", "k", limiter, breaker)
	assert.Equal(t, SourceReverseImage, src.SourceType())
	assert.Equal(t, "tineye", src.SourceName())
}
