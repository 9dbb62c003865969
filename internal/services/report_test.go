package services

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/northstar-audit/northstar-backend/internal/contract"
)

func reportGaps() []contract.Gap {
	return []contract.Gap{
		{
			Severity:    contract.SeverityCritical,
			Title:       "Missing ITGC Documentation",
			Description: "No evidence of IT General Controls documentation.",
			Regulation:  "SOX Section 404(a)",
			Locations:   []contract.GapLocation{{Page: 1, Quote: "q", Context: "General"}},
		},
		{
			Severity:    contract.SeverityHigh,
			Title:       "Inadequate Segregation of Duties",
			Description: "Initiation and approval by the same personnel.",
			Regulation:  "SOX Section 404(b)",
			Locations:   []contract.GapLocation{{Page: 2, Quote: "q", Context: "General"}},
		},
	}
}

func TestGenerateScoresAndRendersPDF(t *testing.T) {
	svc := NewReportService(newTestLogger(t), nil)

	rep, err := svc.Generate(context.Background(), ReportInput{
		AuditID:      "aud_0a1b2c3d",
		DocumentName: "controls.pdf",
		DocumentType: "SOX 404",
		Gaps:         reportGaps(),
	})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if got, want := rep.Score, 77; got != want {
		t.Fatalf("score got=%d want=%d", got, want)
	}
	if got, want := rep.Grade, "C"; got != want {
		t.Fatalf("grade got=%s want=%s", got, want)
	}
	if got, want := len(rep.Remediation), 5; got != want {
		t.Fatalf("remediation count got=%d want=%d", got, want)
	}
	if !bytes.HasPrefix(rep.PDF, []byte("%PDF")) {
		t.Fatalf("report bytes are not a PDF, prefix=%q", rep.PDF[:min(8, len(rep.PDF))])
	}
}

func TestGenerateFallbackSummaryNamesCriticalFinding(t *testing.T) {
	svc := NewReportService(newTestLogger(t), nil)

	rep, err := svc.Generate(context.Background(), ReportInput{
		AuditID:      "aud_0a1b2c3d",
		DocumentName: "controls.pdf",
		DocumentType: "SOX 404",
		Gaps:         reportGaps(),
	})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if !strings.Contains(rep.ExecutiveSummary, "missing itgc documentation") {
		t.Fatalf("summary does not name the critical finding: %q", rep.ExecutiveSummary)
	}
	if !strings.Contains(rep.ExecutiveSummary, "77/100 (Grade: C)") {
		t.Fatalf("summary does not state score and grade: %q", rep.ExecutiveSummary)
	}
}

func TestGenerateUsesClientNarrative(t *testing.T) {
	client := &fakeDedalus{out: map[string]any{
		"executive_summary": "Two gaps were found. Posture is fair.",
		"remediation":       []any{"Fix controls within 14 days.", "Separate duties within 30 days."},
	}}
	svc := NewReportService(newTestLogger(t), client)

	rep, err := svc.Generate(context.Background(), ReportInput{
		AuditID:      "aud_0a1b2c3d",
		DocumentName: "controls.pdf",
		DocumentType: "SOX 404",
		Gaps:         reportGaps(),
	})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if rep.ExecutiveSummary != "Two gaps were found. Posture is fair." {
		t.Fatalf("unexpected summary: %q", rep.ExecutiveSummary)
	}
	if got, want := len(rep.Remediation), 5; got != want {
		t.Fatalf("remediation count got=%d want=%d", got, want)
	}
	if rep.Remediation[0] != "Fix controls within 14 days." {
		t.Fatalf("first step got=%q", rep.Remediation[0])
	}
	if rep.Remediation[2] != remediationDefaults[0] {
		t.Fatalf("padded step got=%q want=%q", rep.Remediation[2], remediationDefaults[0])
	}
}

func TestEnsureFiveItems(t *testing.T) {
	if got := ensureFiveItems(nil); len(got) != 5 {
		t.Fatalf("empty input got=%d items want=5", len(got))
	}
	seven := []string{"a", "b", "c", "d", "e", "f", "g"}
	if got := ensureFiveItems(seven); len(got) != 5 || got[4] != "e" {
		t.Fatalf("long input got=%v", got)
	}
}

func TestGenerateNoGapsIsCleanReport(t *testing.T) {
	svc := NewReportService(newTestLogger(t), nil)

	rep, err := svc.Generate(context.Background(), ReportInput{
		AuditID:      "aud_0a1b2c3d",
		DocumentName: "clean.pdf",
		DocumentType: "Invoice",
		Gaps:         nil,
	})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if rep.Score != 100 || rep.Grade != "A" {
		t.Fatalf("clean report got score=%d grade=%s", rep.Score, rep.Grade)
	}
	if len(rep.Remediation) != 5 {
		t.Fatalf("remediation count got=%d want=5", len(rep.Remediation))
	}
}
