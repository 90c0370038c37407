// Package models holds the scanner's core domain types — the shapes the
// storage layer persists and every pipeline stage passes between itself.
package models

import "time"

// Tier is a contributor's subscription class. It controls which pipeline
// stages run for their matches and at what cadence.
type Tier string

const (
	TierFree      Tier = "free"
	TierProtected Tier = "protected"
	TierPremium   Tier = "premium"
)

// Normalize falls an unrecognized tier back to free, per spec §6.
func (t Tier) Normalize() Tier {
	switch t {
	case TierFree, TierProtected, TierPremium:
		return t
	default:
		return TierFree
	}
}

// ImageStatus is a DiscoveredImage's position in the ingestion/matching
// status graph (spec §3 invariant 2): pending -> {no_face, has_face},
// has_face -> embedded, embedded -> {matched, no_match}. failed is reachable
// from pending at any point ingestion errors out.
type ImageStatus string

const (
	ImageStatusPending  ImageStatus = "pending"
	ImageStatusHasFace  ImageStatus = "has_face"
	ImageStatusNoFace   ImageStatus = "no_face"
	ImageStatusEmbedded ImageStatus = "embedded"
	ImageStatusMatched  ImageStatus = "matched"
	ImageStatusNoMatch  ImageStatus = "no_match"
	ImageStatusFailed   ImageStatus = "failed"
)

// ConfidenceTier buckets raw cosine similarity under the active threshold
// set. ConfidenceNone means the similarity fell below even the low threshold.
type ConfidenceTier string

const (
	ConfidenceNone   ConfidenceTier = ""
	ConfidenceLow    ConfidenceTier = "low"
	ConfidenceMedium ConfidenceTier = "medium"
	ConfidenceHigh   ConfidenceTier = "high"
)

// ReviewStatus is a Match's human-review state.
type ReviewStatus string

const (
	ReviewNew       ReviewStatus = "new"
	ReviewConfirmed ReviewStatus = "confirmed"
	ReviewRejected  ReviewStatus = "rejected"
	ReviewDismissed ReviewStatus = "dismissed"
)

// LeaseState is a ScanJob's scheduling state.
type LeaseState string

const (
	LeaseIdle        LeaseState = "idle"
	LeaseRunning     LeaseState = "running"
	LeaseInterrupted LeaseState = "interrupted"
	LeaseCompleted   LeaseState = "completed"
	LeaseFailed      LeaseState = "failed"
)

// JobKind enumerates the work a ScanJob can represent.
type JobKind string

const (
	JobContributorScan JobKind = "contributor_scan"
	JobPlatformCrawl   JobKind = "platform_crawl"
	JobCleanup         JobKind = "cleanup"
	JobMapper          JobKind = "mapper"
	JobScout           JobKind = "scout"
	JobAnalyzer        JobKind = "analyzer"
)

// EmbeddingDim is the fixed dimensionality of every face embedding the
// scanner stores or compares.
const EmbeddingDim = 512

// Embedding is a unit-norm 512-dim face vector belonging to a Contributor.
type Embedding struct {
	ID            string
	ContributorID string
	Vector        [EmbeddingDim]float32
	Primary       bool
	CreatedAt     time.Time
}

// KnownAccount is a platform+handle or bare domain a contributor has
// declared as their own. Matches against it are stored but never acted on.
type KnownAccount struct {
	ID            string
	ContributorID string
	Platform      string
	Handle        string
	Domain        string
}

// Contributor is a registered identity the scanner protects.
type Contributor struct {
	ID            string
	DisplayName   string
	Tier          Tier
	Embeddings    []Embedding
	KnownAccounts []KnownAccount
	CreatedAt     time.Time
}

// PrimaryEmbeddings returns only the embeddings flagged primary.
func (c Contributor) PrimaryEmbeddings() []Embedding {
	out := make([]Embedding, 0, len(c.Embeddings))
	for _, e := range c.Embeddings {
		if e.Primary {
			out = append(out, e)
		}
	}
	return out
}

// DiscoveredImage is a candidate image found by a discovery source.
type DiscoveredImage struct {
	ID          string
	SourceURL   string
	PageURL     string
	PageTitle   string
	Platform    string
	Status      ImageStatus
	FailReason  string
	DiscoveredAt time.Time
	UpdatedAt   time.Time
}

// DiscoveredFaceEmbedding is a 512-dim vector extracted from a
// DiscoveredImage during ingestion.
type DiscoveredFaceEmbedding struct {
	ID              string
	DiscoveredImageID string
	Vector          [EmbeddingDim]float32
	DetectionScore  float32
	CreatedAt       time.Time
}

// AIVerdict is the optional AI-generated-image classification recorded on a
// Match.
type AIVerdict struct {
	IsAIGenerated bool
	Score         float32
	Generator     string
}

// Match links a discovered face to a contributor.
type Match struct {
	ID                string
	ContributorID     string
	DiscoveredImageID string
	EmbeddingID       string
	FaceEmbeddingID   string
	Similarity        float32
	ConfidenceTier    ConfidenceTier
	KnownAccount      bool
	AIVerdict         *AIVerdict
	EvidenceSHA256    string
	ReviewStatus      ReviewStatus
	CreatedAt         time.Time
}

// Takedown is a drafted notice anchored to a Match, pending human submission.
type Takedown struct {
	ID        string
	MatchID   string
	Body      string
	Status    string
	CreatedAt time.Time
}

// Notification is a user-visible row enqueued by the matching stage.
type Notification struct {
	ID            string
	ContributorID string
	MatchID       string
	ReadAt        *time.Time
	CreatedAt     time.Time
}

// ScanJob is a unit of durable, leasable scheduler work.
type ScanJob struct {
	ID            string
	Kind          JobKind
	Target        string
	IntervalHours float64
	LastRunAt     *time.Time
	LeaseState    LeaseState
	LeaseOwner    string
	HeartbeatAt   *time.Time
	RunID         string
}

// PlatformCrawlSchedule tracks pagination state for a platform crawl so it
// can resume across restarts.
type PlatformCrawlSchedule struct {
	Platform       string
	IntervalHours  float64
	Cursor         string
	SearchCursors  map[string]string
	ModelCursors   map[string]string
	TagsTotal      int
	TagsExhausted  int
}

// FeedbackSignal is an append-only event the observer records for offline
// ML tuning.
type FeedbackSignal struct {
	ID         int64
	SignalType string
	EntityType string
	EntityID   string
	Context    map[string]any
	Actor      string
	EmittedAt  time.Time
}

// Recognized signal types (spec §6); the schema is extensible beyond these.
const (
	SignalCrawlCompleted  = "crawl_completed"
	SignalScanCompleted   = "scan_completed"
	SignalMatchCreated    = "match_created"
	SignalMatchConfirmed  = "match_confirmed"
	SignalMatchDismissed  = "match_dismissed"
	SignalPlatformDiscovered = "platform_discovered"
)

// MLModelState is the most recently promoted version of a trained model's
// parameters (e.g. learned confidence thresholds).
type MLModelState struct {
	ModelName  string
	Version    int
	Parameters map[string]any
}
