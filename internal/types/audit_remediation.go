package types

import (
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// AuditRemediation is one ordered remediation step. StepNumber is
// 1-based and is the only ordering the reader may rely on.
type AuditRemediation struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	AuditID     string    `gorm:"not null;index;column:audit_id" json:"audit_id"`
	StepNumber  int       `gorm:"not null;column:step_number" json:"step_number"`
	Description string    `gorm:"type:text;not null;column:description" json:"description"`
}

func (AuditRemediation) TableName() string { return "audit_remediations" }

func (r *AuditRemediation) BeforeCreate(tx *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}
