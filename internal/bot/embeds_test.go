package bot

import (
	"strings"
	"testing"
	"time"

	"github.com/northstar-audit/northstar-backend/internal/contract"
)

func sampleRecord() *contract.AuditRecord {
	return &contract.AuditRecord{
		AuditID:      "aud_0a1b2c3d",
		Score:        77,
		Grade:        "C",
		DocumentName: "controls.pdf",
		DocumentType: "SOX 404",
		Timestamp:    time.Date(2026, 2, 7, 14, 32, 0, 0, time.UTC),
		Gaps: []contract.Gap{
			{Severity: contract.SeverityCritical, Title: "Gap One", Description: "d1", Regulation: "r1"},
			{Severity: contract.SeverityHigh, Title: "Gap Two", Description: "d2", Regulation: "r2"},
			{Severity: contract.SeverityMedium, Title: "Gap Three", Description: "d3", Regulation: "r3"},
			{Severity: contract.SeverityMedium, Title: "Gap Four", Description: "d4", Regulation: "r4"},
		},
		Remediation:      []string{"s1", "s2", "s3", "s4", "s5"},
		ExecutiveSummary: "Summary text.",
		ReportPDFURL:     "/api/files/report_aud_0a1b2c3d.pdf",
	}
}

func TestResultEmbedShowsTopThreeGaps(t *testing.T) {
	embed := resultEmbed(sampleRecord())

	if embed.Color != gradeColors["C"] {
		t.Fatalf("color got=%#x want=%#x", embed.Color, gradeColors["C"])
	}
	// score + type + 3 gaps + timestamp
	if got, want := len(embed.Fields), 6; got != want {
		t.Fatalf("field count got=%d want=%d", got, want)
	}
	var gapTitles []string
	for _, f := range embed.Fields {
		if strings.Contains(f.Name, "Gap") {
			gapTitles = append(gapTitles, f.Name)
		}
	}
	if len(gapTitles) != 3 {
		t.Fatalf("gap fields got=%d want=3", len(gapTitles))
	}
	if !strings.Contains(gapTitles[0], "\U0001f534") {
		t.Fatalf("critical gap missing red emoji: %q", gapTitles[0])
	}
	if embed.Footer == nil || embed.Footer.Text != "Audit ID: aud_0a1b2c3d" {
		t.Fatalf("footer got=%+v", embed.Footer)
	}
}

func TestDetailEmbedShowsAllGapsAndRemediation(t *testing.T) {
	embed := detailEmbed(sampleRecord())

	// score + type + 4 gaps + remediation + timestamp
	if got, want := len(embed.Fields), 8; got != want {
		t.Fatalf("field count got=%d want=%d", got, want)
	}
	var remediation string
	for _, f := range embed.Fields {
		if f.Name == "Remediation Steps" {
			remediation = f.Value
		}
	}
	if !strings.Contains(remediation, "**1.** s1") || !strings.Contains(remediation, "**5.** s5") {
		t.Fatalf("remediation field got=%q", remediation)
	}
}

func TestGradeColorFallsBackToRed(t *testing.T) {
	if got := gradeColor("?"); got != 0xFF0000 {
		t.Fatalf("unknown grade color got=%#x want=%#x", got, 0xFF0000)
	}
}

func TestTruncateRespectsFieldLimit(t *testing.T) {
	long := strings.Repeat("x", 2000)
	got := truncate(long, embedFieldLimit)
	if len(got) != embedFieldLimit {
		t.Fatalf("truncated length got=%d want=%d", len(got), embedFieldLimit)
	}
	if !strings.HasSuffix(got, "...") {
		t.Fatalf("truncated text missing ellipsis")
	}
	short := "short"
	if truncate(short, embedFieldLimit) != short {
		t.Fatalf("short text should be unchanged")
	}
}

func TestHistoryEmbedCapsAtTen(t *testing.T) {
	audits := make([]contract.AuditSummary, 12)
	for i := range audits {
		audits[i] = contract.AuditSummary{
			AuditID:      "aud_00000000",
			DocumentName: "doc.pdf",
			DocumentType: "Invoice",
			Score:        89,
			Grade:        "B",
			Timestamp:    time.Date(2026, 2, 7, 0, 0, 0, 0, time.UTC),
		}
	}
	embed := historyEmbed(audits)

	if got := strings.Count(embed.Description, "doc.pdf"); got != 10 {
		t.Fatalf("displayed entries got=%d want=10", got)
	}
	if embed.Footer.Text != "Showing 10 most recent of 12 audits" {
		t.Fatalf("footer got=%q", embed.Footer.Text)
	}
}
