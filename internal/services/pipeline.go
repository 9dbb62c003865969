package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/northstar-audit/northstar-backend/internal/contract"
	"github.com/northstar-audit/northstar-backend/internal/logger"
	apperrors "github.com/northstar-audit/northstar-backend/internal/pkg/errors"
	"github.com/northstar-audit/northstar-backend/internal/repos"
)

// PipelineService runs a full audit end to end: extract the PDF,
// gather the applicable rules, analyze for gaps, build the scored
// report, then persist everything in one transaction. Nothing is
// visible to readers until the transaction commits.
type PipelineService interface {
	Run(ctx context.Context, in RunInput) (*contract.AuditRecord, error)
}

type RunInput struct {
	Data         []byte
	DocumentName string
	DocumentType string
	UserID       string
	Source       string
}

type pipelineService struct {
	log       *logger.Logger
	db        *gorm.DB
	extractor Extractor
	research  ResearchService
	analyzer  AnalyzerService
	report    ReportService
	store     ReportStore
	users     repos.UserRepo
	audits    repos.AuditRepo
}

func NewPipelineService(
	baseLog *logger.Logger,
	db *gorm.DB,
	extractor Extractor,
	research ResearchService,
	analyzer AnalyzerService,
	report ReportService,
	store ReportStore,
	users repos.UserRepo,
	audits repos.AuditRepo,
) PipelineService {
	return &pipelineService{
		log:       baseLog.With("service", "PipelineService"),
		db:        db,
		extractor: extractor,
		research:  research,
		analyzer:  analyzer,
		report:    report,
		store:     store,
		users:     users,
		audits:    audits,
	}
}

func (ps *pipelineService) Run(ctx context.Context, in RunInput) (*contract.AuditRecord, error) {
	auditID := contract.NewAuditID()
	started := time.Now()
	log := ps.log.With("audit_id", auditID, "document_name", in.DocumentName, "document_type", in.DocumentType)
	log.Info("Starting audit pipeline")

	var (
		doc   *ExtractedDocument
		rules string
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		doc, err = ps.extractor.Extract(in.DocumentName, in.Data)
		if err != nil {
			return fmt.Errorf("extracting document: %w", err)
		}
		return gctx.Err()
	})
	g.Go(func() error {
		var err error
		rules, err = ps.research.Rules(gctx, in.DocumentType)
		if err != nil {
			return fmt.Errorf("researching rules: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	log.Info("Document extracted", "pages", doc.PageCount, "chars", len(doc.FullText))

	gaps, err := ps.analyzer.Analyze(ctx, doc, in.DocumentType, rules)
	if err != nil {
		return nil, fmt.Errorf("analyzing document: %w", err)
	}
	log.Info("Analysis complete", "gaps", len(gaps))

	rep, err := ps.report.Generate(ctx, ReportInput{
		AuditID:      auditID,
		DocumentName: in.DocumentName,
		DocumentType: in.DocumentType,
		Gaps:         gaps,
	})
	if err != nil {
		return nil, fmt.Errorf("generating report: %w", err)
	}

	reportFilename := fmt.Sprintf("report_%s.pdf", auditID)
	if err := ps.store.Save(reportFilename, rep.PDF); err != nil {
		return nil, fmt.Errorf("saving report: %w", err)
	}

	record := &contract.AuditRecord{
		AuditID:          auditID,
		Score:            rep.Score,
		Grade:            rep.Grade,
		DocumentName:     in.DocumentName,
		DocumentType:     in.DocumentType,
		Timestamp:        time.Now().UTC(),
		Gaps:             gaps,
		Remediation:      rep.Remediation,
		ExecutiveSummary: rep.ExecutiveSummary,
		ReportPDFURL:     "/api/files/" + reportFilename,
	}
	if err := contract.Validate(record); err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrRecordInvalid, err)
	}

	docMeta := marshalDocMeta(doc)
	err = ps.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := ps.users.EnsureExists(ctx, tx, in.UserID, in.Source); err != nil {
			return err
		}
		return ps.audits.CreateRecord(ctx, tx, record, in.UserID, docMeta)
	})
	if err != nil {
		if rmErr := ps.store.Remove(reportFilename); rmErr != nil {
			log.Warn("Failed to clean up report after persist failure", "error", rmErr)
		}
		return nil, fmt.Errorf("persisting audit: %w", err)
	}

	log.Info("Audit pipeline complete", "score", rep.Score, "grade", rep.Grade, "duration", time.Since(started))
	return record, nil
}

func marshalDocMeta(doc *ExtractedDocument) datatypes.JSON {
	meta := map[string]any{
		"page_count": doc.PageCount,
		"title":      doc.Metadata.Title,
		"author":     doc.Metadata.Author,
		"subject":    doc.Metadata.Subject,
		"creator":    doc.Metadata.Creator,
	}
	raw, err := json.Marshal(meta)
	if err != nil {
		return nil
	}
	return datatypes.JSON(raw)
}
