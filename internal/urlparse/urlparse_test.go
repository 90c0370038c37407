package urlparse

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/divavault/scanner-core/internal/models"
)

func TestParse_RecognizedPlatform(t *testing.T) {
	p := Parse("https://www.instagram.com/alice/reels/")
	assert.Equal(t, "instagram", p.Platform)
	assert.Equal(t, "alice", p.Handle)
	assert.Equal(t, "instagram.com", p.Domain)
}

func TestParse_StripsMobileSubdomain(t *testing.T) {
	p := Parse("https://m.facebook.com/bob")
	assert.Equal(t, "facebook", p.Platform)
	assert.Equal(t, "bob", p.Handle)
}

func TestParse_TikTokHandleStripsAtSign(t *testing.T) {
	p := Parse("https://www.tiktok.com/@carol/video/123")
	assert.Equal(t, "tiktok", p.Platform)
	assert.Equal(t, "carol", p.Handle)
}

func TestParse_UnknownHostIsPlatformNone(t *testing.T) {
	p := Parse("https://example.org/whatever")
	assert.Equal(t, PlatformNone, p.Platform)
	assert.Equal(t, "example.org", p.Domain)
}

func TestParse_InvalidURLIsPlatformNone(t *testing.T) {
	p := Parse("::not a url::")
	assert.Equal(t, PlatformNone, p.Platform)
}

func TestCheckAllowlist_PrefersHandleOverDomain(t *testing.T) {
	accounts := []models.KnownAccount{
		{Domain: "instagram.com"},
		{Platform: "instagram", Handle: "alice"},
	}
	acc := CheckAllowlist("https://instagram.com/alice", accounts)
	if assert.NotNil(t, acc) {
		assert.Equal(t, "alice", acc.Handle)
	}
}

func TestCheckAllowlist_FallsBackToDomain(t *testing.T) {
	accounts := []models.KnownAccount{{Domain: "example.org"}}
	acc := CheckAllowlist("https://example.org/anything", accounts)
	assert.NotNil(t, acc)
}

func TestCheckAllowlist_NoMatchReturnsNil(t *testing.T) {
	accounts := []models.KnownAccount{{Platform: "instagram", Handle: "alice"}}
	assert.Nil(t, CheckAllowlist("https://instagram.com/bob", accounts))
}
