package matching

import (
	"github.com/divavault/scanner-core/internal/config"
	"github.com/divavault/scanner-core/internal/models"
)

// ShouldRunAIDetection decides whether a match should go through AI
// detection, per the original implementation's should_run_ai_detection:
// never for known accounts, never below medium confidence, otherwise
// gated on the tier's ai_detection flag.
func ShouldRunAIDetection(tier models.ConfidenceTier, knownAccount bool, flags config.TierFlags) bool {
	if knownAccount {
		return false
	}
	if !flags.AIDetection {
		return false
	}
	return tier != models.ConfidenceLow && tier != models.ConfidenceNone
}

// ShouldCaptureEvidence mirrors should_capture_evidence.
func ShouldCaptureEvidence(tier models.ConfidenceTier, knownAccount bool, flags config.TierFlags) bool {
	if knownAccount {
		return false
	}
	if !flags.CaptureEvidence {
		return false
	}
	return tier != models.ConfidenceLow && tier != models.ConfidenceNone
}

// ShouldNotify mirrors should_notify.
func ShouldNotify(tier models.ConfidenceTier, knownAccount bool, flags config.TierFlags) bool {
	if knownAccount {
		return false
	}
	if !flags.NotifyOnMatch {
		return false
	}
	return tier != models.ConfidenceLow && tier != models.ConfidenceNone
}

// ShouldGenerateTakedown applies the same medium+/non-known-account gate to
// takedown drafting, which the spec's tier table gates identically to
// evidence capture.
func ShouldGenerateTakedown(tier models.ConfidenceTier, knownAccount bool, flags config.TierFlags) bool {
	if knownAccount {
		return false
	}
	if !flags.GenerateTakedown {
		return false
	}
	return tier != models.ConfidenceLow && tier != models.ConfidenceNone
}
