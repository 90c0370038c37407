// Package aidetection implements AI-generated-image classification
// providers. Hive is grounded on the original implementation's
// providers/ai_detection/hive.py: a rate-limited, circuit-broken,
// retried POST to the Hive Moderation API.
package aidetection

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/divavault/scanner-core/internal/providers"
	"github.com/divavault/scanner-core/internal/resilience"
)

const hiveAPIURL = "https://api.thehive.ai/api/v2/task/sync"

var hiveGenerators = map[string]string{
	"stable_diffusion": "stable_diffusion",
	"midjourney":        "midjourney",
	"dall_e":            "dall_e",
	"dalle":             "dall_e",
	"flux":              "flux",
}

// Hive classifies images via the Hive Moderation API.
type Hive struct {
	apiKey  string
	client  *http.Client
	limiter *resilience.RateLimiter
	breaker *resilience.Breaker
}

// NewHive builds a Hive provider. A blank apiKey makes Classify a no-op
// that always returns (nil, nil), matching the original's
// hive_api_key_not_configured short-circuit.
func NewHive(apiKey string, limiter *resilience.RateLimiter, breaker *resilience.Breaker) *Hive {
	return &Hive{
		apiKey:  apiKey,
		client:  &http.Client{Timeout: 20 * time.Second},
		limiter: limiter,
		breaker: breaker,
	}
}

// Name implements providers.AIDetectionProvider.
func (h *Hive) Name() string { return "hive" }

// Classify implements providers.AIDetectionProvider. It never returns an
// error for transport/API failures — those are logged and reported as a
// nil classification, since an unclassifiable image should not fail the
// whole ingestion pipeline.
func (h *Hive) Classify(ctx context.Context, imageURL string) (*providers.AIClassification, error) {
	if h.apiKey == "" {
		log.Warn().Str("component", "aidetection.hive").Msg("hive api key not configured")
		return nil, nil
	}

	var result *providers.AIClassification
	err := h.breaker.Execute(func() error {
		return resilience.Retry(ctx, resilience.RetryConfig{MaxAttempts: 3, MinWait: time.Second, MaxWait: 30 * time.Second}, func() error {
			h.limiter.Wait(1)
			r, err := h.call(ctx, imageURL)
			if err != nil {
				return resilience.Retryable(err)
			}
			result = r
			return nil
		})
	})
	if err != nil {
		log.Warn().Str("component", "aidetection.hive").Err(err).Msg("hive classification failed")
		return nil, nil
	}
	return result, nil
}

func (h *Hive) call(ctx context.Context, imageURL string) (*providers.AIClassification, error) {
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	if err := w.WriteField("url", imageURL); err != nil {
		return nil, fmt.Errorf("aidetection.hive: build form: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("aidetection.hive: close form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, hiveAPIURL, &body)
	if err != nil {
		return nil, fmt.Errorf("aidetection.hive: build request: %w", err)
	}
	req.Header.Set("Authorization", "Token "+h.apiKey)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", w.FormDataContentType())

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("aidetection.hive: request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 500))
		return nil, fmt.Errorf("aidetection.hive: status %d: %s", resp.StatusCode, snippet)
	}

	var parsed hiveResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("aidetection.hive: decode response: %w", err)
	}
	return parseHiveResponse(parsed), nil
}

type hiveResponse struct {
	Status []struct {
		Response struct {
			Output []struct {
				Classes []struct {
					Class string  `json:"class"`
					Score float64 `json:"score"`
				} `json:"classes"`
			} `json:"output"`
		} `json:"response"`
	} `json:"status"`
}

func parseHiveResponse(result hiveResponse) *providers.AIClassification {
	if len(result.Status) == 0 {
		return nil
	}
	output := result.Status[0].Response.Output
	if len(output) == 0 {
		return nil
	}

	var aiScore float64
	var generator string
	for _, cls := range output[0].Classes {
		name := strings.ToLower(cls.Class)
		if strings.Contains(name, "ai_generated") || strings.Contains(name, "artificial") {
			if cls.Score > aiScore {
				aiScore = cls.Score
			}
		}
		for key, genName := range hiveGenerators {
			if strings.Contains(name, key) && cls.Score > 0.5 {
				generator = genName
			}
		}
	}

	return &providers.AIClassification{
		IsAIGenerated: aiScore > 0.5,
		Score:         float32(aiScore),
		Generator:     generator,
	}
}
