// Package evidence builds the object-store keys and content hashes that
// anchor a Match to a captured proof artifact (spec §4.J). The actual
// headless-browser page capture is out of scope (the original
// implementation's screenshot worker isn't part of this repo's CORE);
// CaptureClient stands in as a narrow interface a real capture service
// would satisfy.
package evidence

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"
)

// Hash streams r through SHA-256 and returns the lowercase hex digest,
// without buffering the whole input in memory.
func Hash(r io.Reader) (string, error) {
	h := sha256.New()
	if _, err := io.Copy(h, r); err != nil {
		return "", fmt.Errorf("evidence.Hash: %w", err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// KeyFor builds the object-store key for one piece of evidence:
// evidence/{contributor_id}/{match_id}/{kind}_{timestamp}{ext}.
func KeyFor(contributorID, matchID, kind string, ts time.Time, ext string) string {
	return fmt.Sprintf("evidence/%s/%s/%s_%d%s", contributorID, matchID, kind, ts.Unix(), ext)
}

// CaptureResult is what a capture attempt produced.
type CaptureResult struct {
	Key    string
	SHA256 string
}

// CaptureClient captures a page (screenshot, DOM snapshot, etc.) backing a
// match's evidence trail.
type CaptureClient interface {
	Capture(ctx context.Context, pageURL string) (CaptureResult, error)
}

// StubCaptureClient records that a capture was requested without actually
// performing one — the headless-browser capture step is out of scope
// here; this satisfies CaptureClient so callers can be wired and tested
// without a real browser dependency.
type StubCaptureClient struct {
	mu        sync.Mutex
	requested []string
}

// Capture records pageURL and returns a deterministic placeholder result.
func (c *StubCaptureClient) Capture(ctx context.Context, pageURL string) (CaptureResult, error) {
	c.mu.Lock()
	c.requested = append(c.requested, pageURL)
	c.mu.Unlock()

	digest, err := Hash(strings.NewReader("capture-requested:" + pageURL))
	if err != nil {
		return CaptureResult{}, err
	}
	return CaptureResult{SHA256: digest}, nil
}

// Requested returns every page URL Capture has been called with, for tests.
func (c *StubCaptureClient) Requested() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.requested))
	copy(out, c.requested)
	return out
}
