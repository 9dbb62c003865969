package types

import (
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// AuditGap is one compliance deficiency found in an audited document.
// Seq preserves the analyzer's ordering; relational storage does not.
type AuditGap struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	AuditID     string    `gorm:"not null;index;column:audit_id" json:"audit_id"`
	Seq         int       `gorm:"not null;column:seq" json:"seq"`
	Severity    string    `gorm:"not null;column:severity" json:"severity"`
	Title       string    `gorm:"not null;column:title" json:"title"`
	Description string    `gorm:"type:text;column:description" json:"description"`
	Regulation  string    `gorm:"column:regulation" json:"regulation"`
}

func (AuditGap) TableName() string { return "audit_gaps" }

func (g *AuditGap) BeforeCreate(tx *gorm.DB) error {
	if g.ID == uuid.Nil {
		g.ID = uuid.New()
	}
	return nil
}

// GapLocation pins a gap to a page, quote, and surrounding context in
// the source document.
type GapLocation struct {
	ID      uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	GapID   uuid.UUID `gorm:"type:uuid;not null;index;column:gap_id" json:"gap_id"`
	Seq     int       `gorm:"not null;column:seq" json:"seq"`
	Page    int       `gorm:"not null;column:page" json:"page"`
	Quote   string    `gorm:"type:text;column:quote" json:"quote"`
	Context string    `gorm:"column:context" json:"context"`
}

func (GapLocation) TableName() string { return "gap_locations" }

func (l *GapLocation) BeforeCreate(tx *gorm.DB) error {
	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}
	return nil
}
