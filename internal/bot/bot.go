// Package bot is the Discord peer of the web client. It exposes the
// audit pipeline through slash commands, talking to the backend over
// the shared apiclient.
package bot

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/northstar-audit/northstar-backend/internal/apiclient"
	"github.com/northstar-audit/northstar-backend/internal/contract"
	"github.com/northstar-audit/northstar-backend/internal/logger"
)

const maxAttachmentBytes = 50 * 1024 * 1024

type Bot struct {
	log     *logger.Logger
	session *discordgo.Session
	api     *apiclient.Client
}

func New(baseLog *logger.Logger, token string, api *apiclient.Client) (*Bot, error) {
	session, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("creating discord session: %w", err)
	}
	session.Identify.Intents = discordgo.IntentsGuilds

	b := &Bot{
		log:     baseLog.With("component", "bot"),
		session: session,
		api:     api,
	}
	session.AddHandler(b.onReady)
	session.AddHandler(b.onInteraction)
	return b, nil
}

// Start opens the gateway connection and registers the slash
// commands. It blocks until the connection is established.
func (b *Bot) Start() error {
	if err := b.session.Open(); err != nil {
		return fmt.Errorf("opening discord session: %w", err)
	}
	if _, err := b.session.ApplicationCommandBulkOverwrite(b.session.State.User.ID, "", commands()); err != nil {
		b.session.Close()
		return fmt.Errorf("registering commands: %w", err)
	}
	b.log.Info("Slash commands registered", "count", len(commands()))
	return nil
}

func (b *Bot) Stop() error {
	return b.session.Close()
}

func commands() []*discordgo.ApplicationCommand {
	documentTypeChoices := make([]*discordgo.ApplicationCommandOptionChoice, 0, len(contract.DocumentTypes))
	for _, dt := range contract.DocumentTypes {
		documentTypeChoices = append(documentTypeChoices, &discordgo.ApplicationCommandOptionChoice{
			Name:  dt,
			Value: dt,
		})
	}

	return []*discordgo.ApplicationCommand{
		{
			Name:        "audit",
			Description: "Run compliance audit on a financial document",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "document_type",
					Description: "Type of financial document",
					Required:    true,
					Choices:     documentTypeChoices,
				},
				{
					Type:        discordgo.ApplicationCommandOptionAttachment,
					Name:        "file",
					Description: "PDF file to audit (max 50 MB)",
					Required:    true,
				},
			},
		},
		{
			Name:        "history",
			Description: "View your past audit history",
		},
		{
			Name:        "audit-detail",
			Description: "View detailed results for a specific audit",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "audit_id",
					Description: "Audit ID (e.g., aud_abc123)",
					Required:    true,
				},
			},
		},
	}
}

func (b *Bot) onReady(s *discordgo.Session, r *discordgo.Ready) {
	b.log.Info("Bot connected", "user", r.User.Username, "guilds", len(r.Guilds))
}

func (b *Bot) onInteraction(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if i.Type != discordgo.InteractionApplicationCommand {
		return
	}
	switch i.ApplicationCommandData().Name {
	case "audit":
		b.handleAudit(s, i)
	case "history":
		b.handleHistory(s, i)
	case "audit-detail":
		b.handleAuditDetail(s, i)
	}
}

func interactionUserID(i *discordgo.InteractionCreate) string {
	if i.Member != nil && i.Member.User != nil {
		return i.Member.User.ID
	}
	if i.User != nil {
		return i.User.ID
	}
	return ""
}

func (b *Bot) deferReply(s *discordgo.Session, i *discordgo.InteractionCreate) bool {
	err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
	})
	if err != nil {
		b.log.Error("Failed to defer interaction", "error", err)
		return false
	}
	return true
}

func (b *Bot) editEmbed(s *discordgo.Session, i *discordgo.InteractionCreate, embed *discordgo.MessageEmbed) {
	embeds := []*discordgo.MessageEmbed{embed}
	if _, err := s.InteractionResponseEdit(i.Interaction, &discordgo.WebhookEdit{Embeds: &embeds}); err != nil {
		b.log.Error("Failed to edit interaction response", "error", err)
	}
}

func (b *Bot) handleAudit(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if !b.deferReply(s, i) {
		return
	}

	data := i.ApplicationCommandData()
	var documentType string
	var attachment *discordgo.MessageAttachment
	for _, opt := range data.Options {
		switch opt.Name {
		case "document_type":
			documentType = opt.StringValue()
		case "file":
			if id, ok := opt.Value.(string); ok && data.Resolved != nil {
				attachment = data.Resolved.Attachments[id]
			}
		}
	}
	if attachment == nil {
		b.editEmbed(s, i, errorEmbed("Please upload a PDF file."))
		return
	}
	if !strings.HasSuffix(strings.ToLower(attachment.Filename), ".pdf") {
		b.editEmbed(s, i, errorEmbed("Please upload a PDF file."))
		return
	}
	if attachment.Size > maxAttachmentBytes {
		b.editEmbed(s, i, errorEmbed("File must be under 50 MB."))
		return
	}

	b.editEmbed(s, i, processingEmbed())

	pdfData, err := downloadAttachment(attachment.URL)
	if err != nil {
		b.log.Warn("Attachment download failed", "error", err, "url", attachment.URL)
		b.editEmbed(s, i, errorEmbed("Failed to download the attachment. Please try again."))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), apiclient.AuditTimeout)
	defer cancel()
	record, err := b.api.RunAudit(ctx, interactionUserID(i), attachment.Filename, documentType, pdfData)
	if err != nil {
		b.handleAuditError(s, i, err)
		return
	}

	b.editEmbed(s, i, resultEmbed(record))
	b.attachReport(s, i, record.AuditID, record.ReportPDFURL)
}

func (b *Bot) handleAuditError(s *discordgo.Session, i *discordgo.InteractionCreate, err error) {
	if errors.Is(err, context.DeadlineExceeded) {
		b.editEmbed(s, i, errorEmbed(
			"Audit is taking longer than expected. Please check `/history` later for your results."))
		return
	}
	var apiErr *apiclient.APIError
	if errors.As(err, &apiErr) && apiErr.Kind == apiclient.KindInvalidInput {
		b.editEmbed(s, i, errorEmbed(apiErr.Message))
		return
	}
	b.log.Error("Audit request failed", "error", err)
	b.editEmbed(s, i, errorEmbed("The audit service returned an error. Please try again."))
}

func (b *Bot) handleHistory(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if !b.deferReply(s, i) {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	history, err := b.api.GetHistory(ctx, interactionUserID(i))
	if err != nil {
		b.log.Error("History request failed", "error", err)
		b.editEmbed(s, i, errorEmbed("Failed to fetch audit history. Please try again."))
		return
	}

	if len(history.Audits) == 0 {
		b.editEmbed(s, i, emptyHistoryEmbed())
		return
	}
	b.editEmbed(s, i, historyEmbed(history.Audits))
}

func (b *Bot) handleAuditDetail(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if !b.deferReply(s, i) {
		return
	}

	var auditID string
	for _, opt := range i.ApplicationCommandData().Options {
		if opt.Name == "audit_id" {
			auditID = opt.StringValue()
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	record, err := b.api.GetAuditDetail(ctx, auditID)
	if err != nil {
		var apiErr *apiclient.APIError
		if errors.As(err, &apiErr) && apiErr.Kind == apiclient.KindNotFound {
			b.editEmbed(s, i, errorEmbed(fmt.Sprintf(
				"No audit found with ID `%s`.\nUse `/history` to see your past audits.", auditID)))
			return
		}
		b.log.Error("Audit detail request failed", "error", err, "audit_id", auditID)
		b.editEmbed(s, i, errorEmbed("Failed to fetch audit details. Please try again."))
		return
	}

	b.editEmbed(s, i, detailEmbed(record))
	b.attachReport(s, i, record.AuditID, record.ReportPDFURL)
}

// attachReport sends the generated PDF as a followup message. Failure
// here is non-fatal, the results embed is already visible.
func (b *Bot) attachReport(s *discordgo.Session, i *discordgo.InteractionCreate, auditID string, reportURL string) {
	if reportURL == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	pdfData, err := b.api.DownloadReport(ctx, reportURL)
	if err != nil {
		b.log.Warn("Failed to fetch report for attachment", "error", err, "audit_id", auditID)
		return
	}
	_, err = s.FollowupMessageCreate(i.Interaction, true, &discordgo.WebhookParams{
		Content: "Here is your full audit report:",
		Files: []*discordgo.File{{
			Name:        fmt.Sprintf("report_%s.pdf", auditID),
			ContentType: "application/pdf",
			Reader:      bytes.NewReader(pdfData),
		}},
	})
	if err != nil {
		b.log.Warn("Failed to attach report", "error", err, "audit_id", auditID)
	}
}

func downloadAttachment(url string) ([]byte, error) {
	resp, err := http.Get(url)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("attachment fetch returned status %d", resp.StatusCode)
	}
	return io.ReadAll(io.LimitReader(resp.Body, maxAttachmentBytes+1))
}
