// Package takedown drafts the one-page notice attached to a Match once a
// contributor's tier allows it (spec §4.J). Real legal-template rendering
// is out of scope for this repository's CORE; Drafter is the narrow seam
// a real templating/legal-review service would fill. PDFDrafter renders a
// minimal, fixed-layout notice with go-pdf/fpdf rather than a plain string
// body, so the drafted artifact is already in the format a provider takes
// delivery of.
package takedown

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/go-pdf/fpdf"

	"github.com/divavault/scanner-core/internal/models"
)

// Drafter produces a Takedown body for a confirmed match.
type Drafter interface {
	Draft(ctx context.Context, match *models.Match, contributor *models.Contributor) (string, error)
}

// PDFDrafter renders a single-page notice and returns it as a
// base64-encoded PDF, stored directly in Takedown.Body.
type PDFDrafter struct{}

// Draft implements Drafter.
func (PDFDrafter) Draft(ctx context.Context, match *models.Match, contributor *models.Contributor) (string, error) {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.AddPage()

	pdf.SetFont("Arial", "B", 16)
	pdf.CellFormat(190, 10, "Takedown Notice", "", 1, "C", false, 0, "")
	pdf.Ln(4)

	pdf.SetFont("Arial", "", 12)
	for _, line := range []string{
		fmt.Sprintf("Contributor: %s (%s)", contributor.DisplayName, contributor.ID),
		fmt.Sprintf("Match ID: %s", match.ID),
		fmt.Sprintf("Confidence tier: %s", match.ConfidenceTier),
		fmt.Sprintf("Similarity: %.4f", match.Similarity),
		fmt.Sprintf("Drafted: %s", time.Now().UTC().Format(time.RFC3339)),
	} {
		pdf.CellFormat(190, 8, line, "", 1, "L", false, 0, "")
	}

	pdf.Ln(6)
	pdf.MultiCell(190, 6,
		"This notice identifies unauthorized use of the above contributor's likeness. "+
			"Please remove the associated content and confirm removal.", "", "L", false)

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return "", fmt.Errorf("takedown.PDFDrafter.Draft: %w", err)
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

// StubDrafter returns a fixed placeholder body, for callers/tests that
// don't need a real rendered document.
type StubDrafter struct{}

// Draft implements Drafter.
func (StubDrafter) Draft(ctx context.Context, match *models.Match, contributor *models.Contributor) (string, error) {
	return fmt.Sprintf("takedown draft requested for match %s", match.ID), nil
}
