package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Audit is the parent row of one compliance-audit result. Gaps and
// remediation steps live in child tables keyed by AuditID with cascade
// delete, so removing an audit (or its owning user) removes the whole
// record.
type Audit struct {
	ID               uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	AuditID          string         `gorm:"uniqueIndex;not null;column:audit_id" json:"audit_id"`
	UserID           string         `gorm:"not null;index;column:user_id" json:"user_id"`
	DocumentName     string         `gorm:"not null;column:document_name" json:"document_name"`
	DocumentType     string         `gorm:"not null;column:document_type" json:"document_type"`
	Score            int            `gorm:"not null;column:score" json:"score"`
	Grade            string         `gorm:"not null;column:grade" json:"grade"`
	ExecutiveSummary string         `gorm:"type:text;column:executive_summary" json:"executive_summary"`
	ReportPDFURL     string         `gorm:"column:report_pdf_url" json:"report_pdf_url"`
	DocMetadata      datatypes.JSON `gorm:"column:doc_metadata;type:jsonb" json:"doc_metadata,omitempty"`
	CreatedAt        time.Time      `gorm:"not null;index" json:"created_at"`
}

func (Audit) TableName() string { return "audits" }

func (a *Audit) BeforeCreate(tx *gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}
