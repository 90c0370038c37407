package evidence

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHash_MatchesKnownDigest(t *testing.T) {
	digest, err := Hash(strings.NewReader("hello"))
	require.NoError(t, err)
	assert.Equal(t, "2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824", digest)
}

func TestKeyFor_BuildsExpectedFormat(t *testing.T) {
	ts := time.Unix(1700000000, 0)
	key := KeyFor("contrib-1", "match-1", "screenshot", ts, ".png")
	assert.Equal(t, "evidence/contrib-1/match-1/screenshot_1700000000.png", key)
}

func TestStubCaptureClient_RecordsRequestsAndReturnsDeterministicHash(t *testing.T) {
	c := &StubCaptureClient{}

	result, err := c.Capture(context.Background(), "https://host/page")
	require.NoError(t, err)
	assert.NotEmpty(t, result.SHA256)

	result2, err := c.Capture(context.Background(), "https://host/page")
	require.NoError(t, err)
	assert.Equal(t, result.SHA256, result2.SHA256)

	assert.Equal(t, []string{"https://host/page", "https://host/page"}, c.Requested())
}
