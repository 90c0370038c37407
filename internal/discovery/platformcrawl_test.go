package discovery

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlatformCrawlSource_Discover_WalksEachTag(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tag := r.URL.Query().Get("tag")
		json.NewEncoder(w).Encode(platformPage{
			Items: []struct {
				ImageURL string `json:"image_url"`
				PageURL  string `json:"page_url"`
				Title    string `json:"title"`
			}{
				{ImageURL: "https://host/" + tag + ".jpg", PageURL: "https://host/p/" + tag, Title: tag},
			},
			NextCursor: "next-" + tag,
			Exhausted:  false,
		})
	}))
	defer srv.Close()

	limiter, breaker := newLimiterAndBreaker()
	src := NewPlatformCrawlSource("civitai", srv.URL, []string{"nsfw", "portrait"}, limiter, breaker)

	result, err := src.Discover(context.Background(), Context{})
	require.NoError(t, err)

	require.Len(t, result.Images, 2)
	assert.Equal(t, "civitai", result.Images[0].Platform)
	assert.Equal(t, "next-nsfw", result.ModelCursors["nsfw"])
	assert.Equal(t, "next-portrait", result.ModelCursors["portrait"])
	assert.Equal(t, 2, result.TagsTotal)
	assert.Equal(t, 0, result.TagsExhausted)
}

func TestPlatformCrawlSource_Discover_ResumesFromCursor(t *testing.T) {
	var gotCursor string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotCursor = r.URL.Query().Get("cursor")
		json.NewEncoder(w).Encode(platformPage{Exhausted: true})
	}))
	defer srv.Close()

	limiter, breaker := newLimiterAndBreaker()
	src := NewPlatformCrawlSource("civitai", srv.URL, []string{"nsfw"}, limiter, breaker)

	result, err := src.Discover(context.Background(), Context{ModelCursors: map[string]string{"nsfw": "page-7"}})
	require.NoError(t, err)
	assert.Equal(t, "page-7", gotCursor)
	assert.Equal(t, 1, result.TagsExhausted)
}

func TestPlatformCrawlSource_SourceTypeAndName(t *testing.T) {
	limiter, breaker := newLimiterAndBreaker()
	src := NewPlatformCrawlSource("civitai", "http://example.invalid", nil, limiter, breaker)
	assert.Equal(t, SourcePlatformCrawl, src.SourceType())
	assert.Equal(t, "civitai", src.SourceName())
}
