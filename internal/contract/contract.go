// Package contract defines the audit result shape shared by the backend,
// the web front end, and the Discord bot. Both clients decode exactly
// these types; the backend persists and serves them. Keep wire-compatible.
package contract

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
)

func (s Severity) Valid() bool {
	switch s {
	case SeverityCritical, SeverityHigh, SeverityMedium:
		return true
	}
	return false
}

// DocumentTypes is the closed set of recognized document types, in the
// canonical spelling the backend stores and returns.
var DocumentTypes = []string{"SOX 404", "10-K", "8-K", "Invoice"}

var documentTypeByLower = map[string]string{
	"sox 404": "SOX 404",
	"10-k":    "10-K",
	"8-k":     "8-K",
	"invoice": "Invoice",
}

// NormalizeDocumentType maps a client-supplied document type onto its
// canonical spelling, case-insensitively. ok is false for anything
// outside the closed set.
func NormalizeDocumentType(raw string) (string, bool) {
	canonical, ok := documentTypeByLower[strings.ToLower(strings.TrimSpace(raw))]
	return canonical, ok
}

// GapLocation points at the place in the source document where a gap
// was identified.
type GapLocation struct {
	Page    int    `json:"page"`
	Quote   string `json:"quote"`
	Context string `json:"context"`
}

// Gap is one identified compliance deficiency.
type Gap struct {
	Severity    Severity      `json:"severity"`
	Title       string        `json:"title"`
	Description string        `json:"description"`
	Regulation  string        `json:"regulation"`
	Locations   []GapLocation `json:"locations"`
}

// AuditRecord is the full result of one compliance check.
type AuditRecord struct {
	AuditID          string    `json:"audit_id"`
	Score            int       `json:"score"`
	Grade            string    `json:"grade"`
	DocumentName     string    `json:"document_name"`
	DocumentType     string    `json:"document_type"`
	Timestamp        time.Time `json:"timestamp"`
	Gaps             []Gap     `json:"gaps"`
	Remediation      []string  `json:"remediation"`
	ExecutiveSummary string    `json:"executive_summary"`
	ReportPDFURL     string    `json:"report_pdf_url"`
}

// AuditSummary is the subset of AuditRecord returned by history queries.
type AuditSummary struct {
	AuditID      string    `json:"audit_id"`
	DocumentName string    `json:"document_name"`
	DocumentType string    `json:"document_type"`
	Score        int       `json:"score"`
	Grade        string    `json:"grade"`
	Timestamp    time.Time `json:"timestamp"`
}

// HistoryResponse is the body of GET /api/history.
type HistoryResponse struct {
	Audits []AuditSummary `json:"audits"`
}

// NewAuditID returns a fresh opaque audit identifier ("aud_" plus the
// first eight hex characters of a v4 UUID). Assigned once, at creation,
// by the backend.
func NewAuditID() string {
	u := uuid.New()
	return "aud_" + strings.ReplaceAll(u.String(), "-", "")[:8]
}

// Validate enforces the closed enumerations and the score/grade
// agreement on a complete record. It is pure and has no side effects.
func Validate(r *AuditRecord) error {
	if r == nil {
		return fmt.Errorf("audit record is nil")
	}
	if r.AuditID == "" {
		return fmt.Errorf("audit_id is empty")
	}
	if r.Score < 0 || r.Score > 100 {
		return fmt.Errorf("score %d outside [0,100]", r.Score)
	}
	if want := GradeForScore(r.Score); r.Grade != want {
		return fmt.Errorf("grade %q disagrees with score %d (want %q)", r.Grade, r.Score, want)
	}
	if _, ok := NormalizeDocumentType(r.DocumentType); !ok {
		return fmt.Errorf("unrecognized document_type %q", r.DocumentType)
	}
	for i, g := range r.Gaps {
		if !g.Severity.Valid() {
			return fmt.Errorf("gap %d has unrecognized severity %q", i, g.Severity)
		}
	}
	return nil
}
