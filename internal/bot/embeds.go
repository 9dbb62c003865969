package bot

import (
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/northstar-audit/northstar-backend/internal/contract"
)

// embedFieldLimit is Discord's max length for an embed field value.
const embedFieldLimit = 1024

const blurple = 0x5865F2

var gradeColors = map[string]int{
	"A": 0x00FF00,
	"B": 0x0099FF,
	"C": 0xFFCC00,
	"D": 0xFF9900,
	"F": 0xFF0000,
}

var severityEmoji = map[contract.Severity]string{
	contract.SeverityCritical: "\U0001f534",
	contract.SeverityHigh:     "\U0001f7e0",
	contract.SeverityMedium:   "\U0001f7e1",
}

func truncate(text string, limit int) string {
	if len(text) <= limit {
		return text
	}
	return text[:limit-3] + "..."
}

func gradeColor(grade string) int {
	if c, ok := gradeColors[grade]; ok {
		return c
	}
	return gradeColors["F"]
}

func emojiFor(severity contract.Severity) string {
	if e, ok := severityEmoji[severity]; ok {
		return e
	}
	return "⚪"
}

func gapFields(gaps []contract.Gap) []*discordgo.MessageEmbedField {
	fields := make([]*discordgo.MessageEmbedField, 0, len(gaps))
	for _, gap := range gaps {
		fields = append(fields, &discordgo.MessageEmbedField{
			Name:  fmt.Sprintf("%s %s", emojiFor(gap.Severity), gap.Title),
			Value: truncate(fmt.Sprintf("%s\n*%s*", gap.Description, gap.Regulation), embedFieldLimit),
		})
	}
	return fields
}

func scoreField(record *contract.AuditRecord) *discordgo.MessageEmbedField {
	return &discordgo.MessageEmbedField{
		Name:   "Compliance Score",
		Value:  fmt.Sprintf("**%d/100** (Grade **%s**)", record.Score, record.Grade),
		Inline: true,
	}
}

func documentTypeField(record *contract.AuditRecord) *discordgo.MessageEmbedField {
	return &discordgo.MessageEmbedField{
		Name:   "Document Type",
		Value:  record.DocumentType,
		Inline: true,
	}
}

func timestampField(ts time.Time) *discordgo.MessageEmbedField {
	return &discordgo.MessageEmbedField{
		Name:   "Timestamp",
		Value:  ts.UTC().Format("Jan 02, 2006 03:04 PM UTC"),
		Inline: true,
	}
}

// resultEmbed summarizes a completed audit: score, type, and the top
// three gaps.
func resultEmbed(record *contract.AuditRecord) *discordgo.MessageEmbed {
	fields := []*discordgo.MessageEmbedField{scoreField(record), documentTypeField(record)}
	top := record.Gaps
	if len(top) > 3 {
		top = top[:3]
	}
	fields = append(fields, gapFields(top)...)
	fields = append(fields, timestampField(record.Timestamp))

	return &discordgo.MessageEmbed{
		Title:       "\U0001f4ca Audit Complete: " + record.DocumentName,
		Description: record.ExecutiveSummary,
		Color:       gradeColor(record.Grade),
		Fields:      fields,
		Footer:      &discordgo.MessageEmbedFooter{Text: "Audit ID: " + record.AuditID},
	}
}

// detailEmbed shows every gap plus the remediation plan.
func detailEmbed(record *contract.AuditRecord) *discordgo.MessageEmbed {
	fields := []*discordgo.MessageEmbedField{scoreField(record), documentTypeField(record)}
	fields = append(fields, gapFields(record.Gaps)...)

	if len(record.Remediation) > 0 {
		var lines []string
		for i, step := range record.Remediation {
			lines = append(lines, fmt.Sprintf("**%d.** %s", i+1, step))
		}
		fields = append(fields, &discordgo.MessageEmbedField{
			Name:  "Remediation Steps",
			Value: truncate(strings.Join(lines, "\n"), embedFieldLimit),
		})
	}
	fields = append(fields, timestampField(record.Timestamp))

	return &discordgo.MessageEmbed{
		Title:       "\U0001f4ca Audit Detail: " + record.DocumentName,
		Description: record.ExecutiveSummary,
		Color:       gradeColor(record.Grade),
		Fields:      fields,
		Footer:      &discordgo.MessageEmbedFooter{Text: "Audit ID: " + record.AuditID},
	}
}

// historyEmbed lists the 10 most recent audits.
func historyEmbed(audits []contract.AuditSummary) *discordgo.MessageEmbed {
	display := audits
	if len(display) > 10 {
		display = display[:10]
	}

	var lines []string
	for _, a := range display {
		var emoji string
		switch a.Grade {
		case "D", "F":
			emoji = emojiFor(contract.SeverityCritical)
		case "C":
			emoji = emojiFor(contract.SeverityMedium)
		default:
			emoji = "\U0001f7e2"
		}
		lines = append(lines, fmt.Sprintf("%s **%s** - %d/100 (%s) - %s\n`%s`",
			emoji, a.DocumentName, a.Score, a.Grade,
			a.Timestamp.UTC().Format("01/02/2006"), a.AuditID))
	}

	footer := fmt.Sprintf("%d audit(s) total", len(audits))
	if len(audits) > 10 {
		footer = fmt.Sprintf("Showing 10 most recent of %d audits", len(audits))
	}

	return &discordgo.MessageEmbed{
		Title:       "\U0001f4dc Audit History",
		Description: strings.Join(lines, "\n\n"),
		Color:       blurple,
		Footer:      &discordgo.MessageEmbedFooter{Text: footer},
	}
}

func emptyHistoryEmbed() *discordgo.MessageEmbed {
	return &discordgo.MessageEmbed{
		Title:       "\U0001f4dc Audit History",
		Description: "You haven't run any audits yet.\nUse `/audit` to get started!",
		Color:       blurple,
	}
}

func processingEmbed() *discordgo.MessageEmbed {
	return &discordgo.MessageEmbed{
		Title:       "⏳ Processing Your Audit...",
		Description: "Your document is being analyzed by our compliance pipeline.\nThis may take up to 2 minutes.",
		Color:       blurple,
	}
}

func errorEmbed(message string) *discordgo.MessageEmbed {
	return &discordgo.MessageEmbed{
		Title:       "❌ Error",
		Description: message,
		Color:       0xFF0000,
	}
}
