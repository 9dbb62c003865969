package repos

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/northstar-audit/northstar-backend/internal/contract"
	"github.com/northstar-audit/northstar-backend/internal/logger"
	apperrors "github.com/northstar-audit/northstar-backend/internal/pkg/errors"
	"github.com/northstar-audit/northstar-backend/internal/types"
)

type AuditRepo interface {
	// CreateRecord writes one full audit record (parent row plus gap,
	// location, and remediation children) inside the caller's
	// transaction. Callers own atomicity: pass the tx of a
	// gorm.DB.Transaction so the whole record lands or none of it does.
	CreateRecord(ctx context.Context, tx *gorm.DB, rec *contract.AuditRecord, userID string, docMeta datatypes.JSON) error
	// GetByAuditID reassembles the nested record from its rows. Returns
	// apperrors.ErrNotFound when the audit_id is unknown.
	GetByAuditID(ctx context.Context, tx *gorm.DB, auditID string) (*contract.AuditRecord, error)
	// ListByUserID returns summaries for exactly one user, most recent
	// first.
	ListByUserID(ctx context.Context, tx *gorm.DB, userID string) ([]contract.AuditSummary, error)
	// DeleteByAuditID removes an audit and its children. Administrative
	// use only; not exposed over HTTP.
	DeleteByAuditID(ctx context.Context, tx *gorm.DB, auditID string) error
}

type auditRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewAuditRepo(db *gorm.DB, baseLog *logger.Logger) AuditRepo {
	return &auditRepo{db: db, log: baseLog.With("repo", "AuditRepo")}
}

func (ar *auditRepo) CreateRecord(ctx context.Context, tx *gorm.DB, rec *contract.AuditRecord, userID string, docMeta datatypes.JSON) error {
	transaction := tx
	if transaction == nil {
		transaction = ar.db
	}
	if rec == nil {
		return fmt.Errorf("CreateRecord: record is nil")
	}

	audit := &types.Audit{
		AuditID:          rec.AuditID,
		UserID:           userID,
		DocumentName:     rec.DocumentName,
		DocumentType:     rec.DocumentType,
		Score:            rec.Score,
		Grade:            rec.Grade,
		ExecutiveSummary: rec.ExecutiveSummary,
		ReportPDFURL:     rec.ReportPDFURL,
		DocMetadata:      docMeta,
		CreatedAt:        rec.Timestamp,
	}
	if err := transaction.WithContext(ctx).Create(audit).Error; err != nil {
		return fmt.Errorf("CreateRecord: audit row: %w", err)
	}

	for i, g := range rec.Gaps {
		gap := &types.AuditGap{
			AuditID:     rec.AuditID,
			Seq:         i + 1,
			Severity:    string(g.Severity),
			Title:       g.Title,
			Description: g.Description,
			Regulation:  g.Regulation,
		}
		if err := transaction.WithContext(ctx).Create(gap).Error; err != nil {
			return fmt.Errorf("CreateRecord: gap row %d: %w", i, err)
		}
		for j, loc := range g.Locations {
			row := &types.GapLocation{
				GapID:   gap.ID,
				Seq:     j + 1,
				Page:    loc.Page,
				Quote:   loc.Quote,
				Context: loc.Context,
			}
			if err := transaction.WithContext(ctx).Create(row).Error; err != nil {
				return fmt.Errorf("CreateRecord: gap %d location %d: %w", i, j, err)
			}
		}
	}

	for i, step := range rec.Remediation {
		row := &types.AuditRemediation{
			AuditID:     rec.AuditID,
			StepNumber:  i + 1,
			Description: step,
		}
		if err := transaction.WithContext(ctx).Create(row).Error; err != nil {
			return fmt.Errorf("CreateRecord: remediation row %d: %w", i, err)
		}
	}
	return nil
}

func (ar *auditRepo) GetByAuditID(ctx context.Context, tx *gorm.DB, auditID string) (*contract.AuditRecord, error) {
	transaction := tx
	if transaction == nil {
		transaction = ar.db
	}

	var audit types.Audit
	if err := transaction.WithContext(ctx).
		Where("audit_id = ?", auditID).
		First(&audit).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("audit %s: %w", auditID, apperrors.ErrNotFound)
		}
		return nil, err
	}

	var gapRows []types.AuditGap
	if err := transaction.WithContext(ctx).
		Where("audit_id = ?", auditID).
		Order("seq ASC").
		Find(&gapRows).Error; err != nil {
		return nil, err
	}

	gaps := make([]contract.Gap, 0, len(gapRows))
	for _, gr := range gapRows {
		var locRows []types.GapLocation
		if err := transaction.WithContext(ctx).
			Where("gap_id = ?", gr.ID).
			Order("seq ASC").
			Find(&locRows).Error; err != nil {
			return nil, err
		}
		locs := make([]contract.GapLocation, 0, len(locRows))
		for _, lr := range locRows {
			locs = append(locs, contract.GapLocation{
				Page:    lr.Page,
				Quote:   lr.Quote,
				Context: lr.Context,
			})
		}
		gaps = append(gaps, contract.Gap{
			Severity:    contract.Severity(gr.Severity),
			Title:       gr.Title,
			Description: gr.Description,
			Regulation:  gr.Regulation,
			Locations:   locs,
		})
	}

	var remRows []types.AuditRemediation
	if err := transaction.WithContext(ctx).
		Where("audit_id = ?", auditID).
		Order("step_number ASC").
		Find(&remRows).Error; err != nil {
		return nil, err
	}
	remediation := make([]string, 0, len(remRows))
	for _, rr := range remRows {
		remediation = append(remediation, rr.Description)
	}

	return &contract.AuditRecord{
		AuditID:          audit.AuditID,
		Score:            audit.Score,
		Grade:            audit.Grade,
		DocumentName:     audit.DocumentName,
		DocumentType:     audit.DocumentType,
		Timestamp:        audit.CreatedAt,
		Gaps:             gaps,
		Remediation:      remediation,
		ExecutiveSummary: audit.ExecutiveSummary,
		ReportPDFURL:     audit.ReportPDFURL,
	}, nil
}

func (ar *auditRepo) ListByUserID(ctx context.Context, tx *gorm.DB, userID string) ([]contract.AuditSummary, error) {
	transaction := tx
	if transaction == nil {
		transaction = ar.db
	}

	var rows []types.Audit
	if err := transaction.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&rows).Error; err != nil {
		return nil, err
	}

	summaries := make([]contract.AuditSummary, 0, len(rows))
	for _, a := range rows {
		summaries = append(summaries, contract.AuditSummary{
			AuditID:      a.AuditID,
			DocumentName: a.DocumentName,
			DocumentType: a.DocumentType,
			Score:        a.Score,
			Grade:        a.Grade,
			Timestamp:    a.CreatedAt,
		})
	}
	return summaries, nil
}

func (ar *auditRepo) DeleteByAuditID(ctx context.Context, tx *gorm.DB, auditID string) error {
	run := func(transaction *gorm.DB) error {
		var gapIDs []string
		if err := transaction.WithContext(ctx).
			Model(&types.AuditGap{}).
			Where("audit_id = ?", auditID).
			Pluck("id", &gapIDs).Error; err != nil {
			return err
		}
		if len(gapIDs) > 0 {
			if err := transaction.WithContext(ctx).
				Where("gap_id IN ?", gapIDs).
				Delete(&types.GapLocation{}).Error; err != nil {
				return err
			}
		}
		if err := transaction.WithContext(ctx).
			Where("audit_id = ?", auditID).
			Delete(&types.AuditGap{}).Error; err != nil {
			return err
		}
		if err := transaction.WithContext(ctx).
			Where("audit_id = ?", auditID).
			Delete(&types.AuditRemediation{}).Error; err != nil {
			return err
		}
		res := transaction.WithContext(ctx).
			Where("audit_id = ?", auditID).
			Delete(&types.Audit{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("audit %s: %w", auditID, apperrors.ErrNotFound)
		}
		return nil
	}
	if tx != nil {
		return run(tx)
	}
	return ar.db.Transaction(run)
}
