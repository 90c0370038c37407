package discovery

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLinkHarvestSource_Discover_SkipsKnownPlatforms(t *testing.T) {
	src := NewLinkHarvestSource([]string{"*.instagram.com", "civitai.com"})

	result, err := src.Discover(context.Background(), Context{URLs: []string{
		"https://www.instagram.com/alice",
		"https://civitai.com/models/1",
		"https://newsite.example/gallery/5",
	}})
	require.NoError(t, err)

	require.Len(t, result.Images, 1)
	assert.Equal(t, "newsite.example", result.Images[0].Platform)
}

func TestLinkHarvestSource_Discover_DedupesAndStripsWWW(t *testing.T) {
	src := NewLinkHarvestSource(nil)

	result, err := src.Discover(context.Background(), Context{URLs: []string{
		"https://www.example.org/a",
		"https://example.org/b",
	}})
	require.NoError(t, err)

	require.Len(t, result.Images, 1)
	assert.Equal(t, "example.org", result.Images[0].Platform)
}

func TestLinkHarvestSource_Discover_SkipsUnparseableURLs(t *testing.T) {
	src := NewLinkHarvestSource(nil)

	result, err := src.Discover(context.Background(), Context{URLs: []string{"not a url at all"}})
	require.NoError(t, err)
	assert.Empty(t, result.Images)
}

func TestLinkHarvestSource_SourceTypeAndName(t *testing.T) {
	src := NewLinkHarvestSource(nil)
	assert.Equal(t, SourceURLCheck, src.SourceType())
	assert.Equal(t, "link_harvest", src.SourceName())
}
