package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jung-kurt/gofpdf"

	"github.com/northstar-audit/northstar-backend/internal/contract"
	"github.com/northstar-audit/northstar-backend/internal/logger"
)

// ReportService turns analysis gaps into the final scored report: an
// executive summary, exactly five remediation steps, and a rendered
// PDF. Narrative generation goes through Dedalus with a deterministic
// fallback.
type ReportService interface {
	Generate(ctx context.Context, in ReportInput) (*GeneratedReport, error)
}

type ReportInput struct {
	AuditID      string
	DocumentName string
	DocumentType string
	Gaps         []contract.Gap
}

type GeneratedReport struct {
	Score            int
	Grade            string
	ExecutiveSummary string
	Remediation      []string
	PDF              []byte
}

type reportService struct {
	log     *logger.Logger
	dedalus DedalusClient
}

func NewReportService(baseLog *logger.Logger, dedalus DedalusClient) ReportService {
	return &reportService{
		log:     baseLog.With("service", "ReportService"),
		dedalus: dedalus,
	}
}

var reportSchema = map[string]any{
	"type":                 "object",
	"additionalProperties": false,
	"required":             []string{"executive_summary", "remediation"},
	"properties": map[string]any{
		"executive_summary": map[string]any{"type": "string"},
		"remediation": map[string]any{
			"type":  "array",
			"items": map[string]any{"type": "string"},
		},
	},
}

func (rs *reportService) Generate(ctx context.Context, in ReportInput) (*GeneratedReport, error) {
	score := contract.ScoreFromGaps(in.Gaps)
	grade := contract.GradeForScore(score)

	summary, remediation := rs.narrative(ctx, in, score, grade)

	rep := &GeneratedReport{
		Score:            score,
		Grade:            grade,
		ExecutiveSummary: summary,
		Remediation:      ensureFiveItems(remediation),
	}

	pdfBytes, err := renderReportPDF(rep, in)
	if err != nil {
		return nil, fmt.Errorf("rendering report pdf: %w", err)
	}
	rep.PDF = pdfBytes
	return rep, nil
}

func (rs *reportService) narrative(ctx context.Context, in ReportInput, score int, grade string) (string, []string) {
	if rs.dedalus == nil {
		return fallbackNarrative(in, score, grade)
	}

	gapsJSON, err := json.MarshalIndent(in.Gaps, "", "  ")
	if err != nil {
		return fallbackNarrative(in, score, grade)
	}

	prompt := fmt.Sprintf(`You are a senior compliance officer writing an audit report.

DOCUMENT AUDITED:
- Filename: %s
- Type: %s
- Compliance Score: %d/100 (Grade: %s)

COMPLIANCE GAPS IDENTIFIED:
%s

TASK:
Generate two things:

1. EXECUTIVE SUMMARY (3-5 sentences):
   - Written for C-suite executives
   - State the number and severity of gaps found
   - Mention the compliance score and grade
   - Highlight the most critical finding
   - Recommend whether immediate action is needed

2. REMEDIATION STEPS (exactly 5 steps):
   - Specific, actionable steps to address the identified gaps
   - Ordered by priority (most urgent first)
   - Each step should reference which gap it addresses
   - Include timeframes (e.g., "within 30 days")
   - Be concrete, not generic
   - If fewer than 5 gaps, add general best-practice remediation steps to reach exactly 5.`,
		in.DocumentName, in.DocumentType, score, grade, string(gapsJSON))

	out, err := rs.dedalus.GenerateJSON(ctx,
		"You are a senior compliance officer. You write precise, executive-ready audit reports as structured JSON.",
		prompt, "compliance_report", reportSchema)
	if err != nil {
		rs.log.Warn("Dedalus report generation failed, using built-in narrative", "error", err, "audit_id", in.AuditID)
		return fallbackNarrative(in, score, grade)
	}

	summary, _ := out["executive_summary"].(string)
	var steps []string
	if raw, ok := out["remediation"].([]any); ok {
		for _, item := range raw {
			if s, ok := item.(string); ok && s != "" {
				steps = append(steps, s)
			}
		}
	}
	if summary == "" || len(steps) == 0 {
		rs.log.Warn("Dedalus report response incomplete, using built-in narrative", "audit_id", in.AuditID)
		return fallbackNarrative(in, score, grade)
	}
	return summary, steps
}

var remediationDefaults = []string{
	"Document all remediation actions taken with supporting evidence for audit trail.",
	"Conduct training for relevant personnel on updated compliance requirements.",
	"Schedule a follow-up compliance review within 60 days to verify remediation effectiveness.",
	"Update internal control documentation to reflect current processes.",
	"Establish a continuous monitoring program for high-risk areas.",
}

func ensureFiveItems(items []string) []string {
	if len(items) >= 5 {
		return items[:5]
	}
	out := make([]string, 0, 5)
	out = append(out, items...)
	return append(out, remediationDefaults[:5-len(items)]...)
}

var remediationTimeframes = map[contract.Severity]string{
	contract.SeverityCritical: "within 14 days",
	contract.SeverityHigh:     "within 30 days",
	contract.SeverityMedium:   "within 60 days",
}

func fallbackNarrative(in ReportInput, score int, grade string) (string, []string) {
	var criticalCount, highCount, mediumCount int
	for _, g := range in.Gaps {
		switch g.Severity {
		case contract.SeverityCritical:
			criticalCount++
		case contract.SeverityHigh:
			highCount++
		case contract.SeverityMedium:
			mediumCount++
		}
	}

	var parts []string
	if criticalCount > 0 {
		parts = append(parts, fmt.Sprintf("%d critical", criticalCount))
	}
	if highCount > 0 {
		parts = append(parts, fmt.Sprintf("%d high", highCount))
	}
	if mediumCount > 0 {
		parts = append(parts, fmt.Sprintf("%d medium", mediumCount))
	}
	severityText := strings.Join(parts, ", ")
	if severityText == "" {
		severityText = "various"
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "The audit of the %s document identified %d compliance gaps (%s severity). ",
		in.DocumentType, len(in.Gaps), severityText)
	fmt.Fprintf(&sb, "The overall compliance score is %d/100 (Grade: %s). ", score, grade)
	switch {
	case criticalCount > 0:
		title := "a critical deficiency"
		for _, g := range in.Gaps {
			if g.Severity == contract.SeverityCritical {
				title = strings.ToLower(g.Title)
				break
			}
		}
		fmt.Fprintf(&sb, "The most critical finding involves %s. "+
			"Immediate remediation is required for critical findings before the next reporting cycle.", title)
	case highCount > 0:
		sb.WriteString("High-priority gaps should be addressed within 30 days. " +
			"A follow-up review should be scheduled after remediation actions are completed.")
	default:
		sb.WriteString("The compliance posture is satisfactory with minor improvements recommended. " +
			"A follow-up review should be scheduled within the next quarter.")
	}

	var remediation []string
	for _, g := range in.Gaps {
		if len(remediation) == 5 {
			break
		}
		timeframe, ok := remediationTimeframes[g.Severity]
		if !ok {
			timeframe = "within 60 days"
		}
		regulation := g.Regulation
		if regulation == "" {
			regulation = "applicable regulations"
		}
		remediation = append(remediation,
			fmt.Sprintf("Address %q %s by reviewing compliance with %s.", g.Title, timeframe, regulation))
	}

	return sb.String(), remediation
}

// --- PDF rendering ---

type rgb struct{ r, g, b int }

var severityFill = map[contract.Severity]rgb{
	contract.SeverityCritical: {0xDC, 0x26, 0x26},
	contract.SeverityHigh:     {0xF9, 0x73, 0x16},
	contract.SeverityMedium:   {0xEA, 0xB3, 0x08},
}

func scoreColor(score int) rgb {
	switch {
	case score >= 80:
		return rgb{0x16, 0xA3, 0x4A}
	case score >= 60:
		return rgb{0xEA, 0xB3, 0x08}
	default:
		return rgb{0xDC, 0x26, 0x26}
	}
}

func renderReportPDF(rep *GeneratedReport, in ReportInput) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "Letter", "")
	pdf.SetMargins(19, 19, 19)
	pdf.SetAutoPageBreak(true, 19)
	pdf.AddPage()
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pageW, _ := pdf.GetPageSize()
	left, _, right, _ := pdf.GetMargins()
	contentW := pageW - left - right

	// Cover
	pdf.SetFont("Helvetica", "B", 20)
	pdf.SetTextColor(17, 24, 39)
	pdf.CellFormat(contentW, 10, "Compliance Audit Report", "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 11)
	pdf.SetTextColor(0x66, 0x66, 0x66)
	pdf.CellFormat(contentW, 6, tr(fmt.Sprintf("%s  |  %s", in.DocumentName, in.DocumentType)), "", 1, "L", false, 0, "")
	pdf.Ln(6)

	// Score card
	sc := scoreColor(rep.Score)
	half := contentW / 2
	pdf.SetFillColor(0xF3, 0xF4, 0xF6)
	pdf.SetDrawColor(0xE5, 0xE7, 0xEB)
	pdf.SetTextColor(0x37, 0x41, 0x51)
	pdf.SetFont("Helvetica", "B", 11)
	pdf.CellFormat(half, 9, "Compliance Score", "1", 0, "C", true, 0, "")
	pdf.CellFormat(half, 9, "Grade", "1", 1, "C", true, 0, "")
	pdf.SetFont("Helvetica", "B", 24)
	pdf.SetTextColor(sc.r, sc.g, sc.b)
	pdf.CellFormat(half, 16, fmt.Sprintf("%d/100", rep.Score), "1", 0, "C", false, 0, "")
	pdf.CellFormat(half, 16, rep.Grade, "1", 1, "C", false, 0, "")
	pdf.Ln(6)

	heading := func(text string) {
		pdf.SetFont("Helvetica", "B", 14)
		pdf.SetTextColor(17, 24, 39)
		pdf.CellFormat(contentW, 8, text, "", 1, "L", false, 0, "")
		pdf.Ln(1)
	}
	body := func(text string) {
		pdf.SetFont("Helvetica", "", 10)
		pdf.SetTextColor(55, 65, 81)
		pdf.MultiCell(contentW, 5, tr(text), "", "L", false)
		pdf.Ln(2)
	}

	heading("Executive Summary")
	body(rep.ExecutiveSummary)

	heading("Findings")
	for _, gap := range in.Gaps {
		fill, ok := severityFill[gap.Severity]
		if !ok {
			fill = rgb{0x6B, 0x72, 0x80}
		}
		pdf.SetFont("Helvetica", "B", 10)
		pdf.SetTextColor(fill.r, fill.g, fill.b)
		label := fmt.Sprintf("[%s] ", strings.ToUpper(string(gap.Severity)))
		pdf.CellFormat(pdf.GetStringWidth(label), 5, label, "", 0, "L", false, 0, "")
		pdf.SetTextColor(17, 24, 39)
		pdf.MultiCell(0, 5, tr(gap.Title), "", "L", false)
		body(gap.Description)
		pdf.SetFont("Helvetica", "I", 10)
		pdf.SetTextColor(0x6B, 0x72, 0x80)
		pdf.MultiCell(contentW, 5, tr("Regulation: "+gap.Regulation), "", "L", false)
		pdf.Ln(3)
	}

	heading("Remediation Steps")
	for i, step := range rep.Remediation {
		body(fmt.Sprintf("%d. %s", i+1, step))
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
