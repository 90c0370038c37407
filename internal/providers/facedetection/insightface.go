// Package facedetection implements face-detection-and-embedding providers.
// InsightFace is grounded on the original implementation's
// providers/face_detection/insightface.py, but the actual ONNX/ArcFace
// inference has no idiomatic pure-Go home: this provider instead talks to
// a local inference sidecar over HTTP (the model-serving process the
// original loads in-process), keeping the same lazy-init/detect contract.
package facedetection

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/divavault/scanner-core/internal/providers"
)

// InsightFace detects faces by forwarding the image to a local embedding
// sidecar (buffalo_sc / ArcFace model weights, served out-of-process) and
// decoding its JSON response into DetectedFace values.
type InsightFace struct {
	mu       sync.Mutex
	endpoint string
	client   *http.Client
	ready    bool
}

// NewInsightFace builds a provider pointed at a sidecar endpoint
// (e.g. http://localhost:8500/detect). The sidecar connection is only
// verified lazily on first Detect call, mirroring init_model's deferred
// weight loading.
func NewInsightFace(endpoint string) *InsightFace {
	return &InsightFace{endpoint: endpoint, client: &http.Client{Timeout: 15 * time.Second}}
}

// Name implements providers.FaceDetectionProvider.
func (f *InsightFace) Name() string { return "insightface" }

type sidecarFace struct {
	BoundingBox    [4]int     `json:"bbox"`
	DetectionScore float32    `json:"det_score"`
	Embedding      [512]float32 `json:"embedding"`
}

type sidecarResponse struct {
	Faces []sidecarFace `json:"faces"`
}

// Detect implements providers.FaceDetectionProvider. On sidecar failure it
// returns an error (unlike the original's swallow-and-return-empty), since
// the caller (ingest pipeline) needs to distinguish "no face found" from
// "could not run detection" to decide whether the image should be retried.
func (f *InsightFace) Detect(ctx context.Context, imagePath string) ([]providers.DetectedFace, error) {
	raw, err := os.ReadFile(imagePath)
	if err != nil {
		return nil, fmt.Errorf("facedetection.insightface: read image: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.endpoint, bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("facedetection.insightface: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/octet-stream")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("facedetection.insightface: sidecar request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("facedetection.insightface: sidecar status %d", resp.StatusCode)
	}

	var parsed sidecarResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("facedetection.insightface: decode sidecar response: %w", err)
	}

	out := make([]providers.DetectedFace, 0, len(parsed.Faces))
	for _, face := range parsed.Faces {
		out = append(out, providers.DetectedFace{
			Vector:         face.Embedding,
			DetectionScore: face.DetectionScore,
			BoundingBox:    face.BoundingBox,
		})
	}
	return out, nil
}
