package repos

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/northstar-audit/northstar-backend/internal/contract"
	"github.com/northstar-audit/northstar-backend/internal/logger"
	apperrors "github.com/northstar-audit/northstar-backend/internal/pkg/errors"
	"github.com/northstar-audit/northstar-backend/internal/types"
)

func testDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(
		&types.User{},
		&types.Audit{},
		&types.AuditGap{},
		&types.GapLocation{},
		&types.AuditRemediation{},
	); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	t.Cleanup(func() {
		sqlDB, _ := db.DB()
		if sqlDB != nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New("development")
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	return log
}

func sampleRecord(auditID string, ts time.Time) *contract.AuditRecord {
	gaps := []contract.Gap{
		{
			Severity:    contract.SeverityCritical,
			Title:       "Missing ITGC Documentation",
			Description: "No evidence of IT General Controls documentation.",
			Regulation:  "SOX Section 404(a)",
			Locations: []contract.GapLocation{
				{Page: 3, Quote: "systems managed by the IT department", Context: "Section 2.1"},
				{Page: 5, Quote: "handled by the accounting team", Context: "Section 3.2"},
			},
		},
		{
			Severity:    contract.SeverityMedium,
			Title:       "No Quarterly Access Review",
			Description: "Access logs not reviewed quarterly.",
			Regulation:  "SOX Section 404 COSO CC6.1",
			Locations:   []contract.GapLocation{{Page: 8, Quote: "reviewed on an annual basis", Context: "Section 5.1"}},
		},
	}
	score := contract.ScoreFromGaps(gaps)
	return &contract.AuditRecord{
		AuditID:          auditID,
		Score:            score,
		Grade:            contract.GradeForScore(score),
		DocumentName:     "sox_404_report.pdf",
		DocumentType:     "SOX 404",
		Timestamp:        ts,
		Gaps:             gaps,
		Remediation:      []string{"Document ITGC controls.", "Implement RBAC.", "Schedule quarterly reviews."},
		ExecutiveSummary: "Two gaps identified.",
		ReportPDFURL:     "/api/files/report_" + auditID + ".pdf",
	}
}

func createFor(t *testing.T, db *gorm.DB, userRepo UserRepo, auditRepo AuditRepo, userID, source string, rec *contract.AuditRecord) {
	t.Helper()
	err := db.Transaction(func(tx *gorm.DB) error {
		if err := userRepo.EnsureExists(context.Background(), tx, userID, source); err != nil {
			return err
		}
		return auditRepo.CreateRecord(context.Background(), tx, rec, userID, nil)
	})
	if err != nil {
		t.Fatalf("create record: %v", err)
	}
}

func TestCreateThenGetRoundTrip(t *testing.T) {
	db := testDB(t)
	log := testLogger(t)
	userRepo := NewUserRepo(db, log)
	auditRepo := NewAuditRepo(db, log)

	ts := time.Date(2026, 2, 7, 14, 32, 0, 0, time.UTC)
	rec := sampleRecord("aud_abc12345", ts)
	createFor(t, db, userRepo, auditRepo, "u1", "web", rec)

	got, err := auditRepo.GetByAuditID(context.Background(), nil, "aud_abc12345")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Timestamp.Unix() != rec.Timestamp.Unix() {
		t.Fatalf("timestamp drift: got=%v want=%v", got.Timestamp, rec.Timestamp)
	}
	got.Timestamp = rec.Timestamp
	if !reflect.DeepEqual(got, rec) {
		t.Fatalf("record drift after persistence:\n got=%+v\nwant=%+v", got, rec)
	}
}

func TestGetUnknownAuditIsNotFound(t *testing.T) {
	db := testDB(t)
	log := testLogger(t)
	auditRepo := NewAuditRepo(db, log)

	_, err := auditRepo.GetByAuditID(context.Background(), nil, "aud_missing1")
	if !errors.Is(err, apperrors.ErrNotFound) {
		t.Fatalf("got=%v want ErrNotFound", err)
	}
}

func TestHistoryScopedPerUserMostRecentFirst(t *testing.T) {
	db := testDB(t)
	log := testLogger(t)
	userRepo := NewUserRepo(db, log)
	auditRepo := NewAuditRepo(db, log)

	base := time.Date(2026, 2, 7, 10, 0, 0, 0, time.UTC)
	createFor(t, db, userRepo, auditRepo, "u1", "web", sampleRecord("aud_00000001", base))
	createFor(t, db, userRepo, auditRepo, "u1", "web", sampleRecord("aud_00000002", base.Add(2*time.Hour)))
	createFor(t, db, userRepo, auditRepo, "u2", "discord", sampleRecord("aud_00000003", base.Add(time.Hour)))

	got, err := auditRepo.ListByUserID(context.Background(), nil, "u1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d summaries, want 2", len(got))
	}
	if got[0].AuditID != "aud_00000002" || got[1].AuditID != "aud_00000001" {
		t.Fatalf("unexpected order: %q then %q", got[0].AuditID, got[1].AuditID)
	}
	for _, s := range got {
		if s.AuditID == "aud_00000003" {
			t.Fatalf("cross-user leakage: %q belongs to u2", s.AuditID)
		}
	}

	empty, err := auditRepo.ListByUserID(context.Background(), nil, "u3")
	if err != nil {
		t.Fatalf("list empty: %v", err)
	}
	if len(empty) != 0 {
		t.Fatalf("got %d summaries for unknown user, want 0", len(empty))
	}
}

func TestDeleteRemovesChildRows(t *testing.T) {
	db := testDB(t)
	log := testLogger(t)
	userRepo := NewUserRepo(db, log)
	auditRepo := NewAuditRepo(db, log)

	rec := sampleRecord("aud_deadbeef", time.Now().UTC())
	createFor(t, db, userRepo, auditRepo, "u1", "web", rec)

	if err := auditRepo.DeleteByAuditID(context.Background(), nil, "aud_deadbeef"); err != nil {
		t.Fatalf("delete: %v", err)
	}

	var gaps, locations, steps int64
	if err := db.Model(&types.AuditGap{}).Where("audit_id = ?", "aud_deadbeef").Count(&gaps).Error; err != nil {
		t.Fatalf("count gaps: %v", err)
	}
	if err := db.Model(&types.GapLocation{}).Count(&locations).Error; err != nil {
		t.Fatalf("count locations: %v", err)
	}
	if err := db.Model(&types.AuditRemediation{}).Where("audit_id = ?", "aud_deadbeef").Count(&steps).Error; err != nil {
		t.Fatalf("count remediation: %v", err)
	}
	if gaps != 0 || locations != 0 || steps != 0 {
		t.Fatalf("orphaned child rows after delete: gaps=%d locations=%d steps=%d", gaps, locations, steps)
	}

	if err := auditRepo.DeleteByAuditID(context.Background(), nil, "aud_deadbeef"); !errors.Is(err, apperrors.ErrNotFound) {
		t.Fatalf("second delete: got=%v want ErrNotFound", err)
	}
}

func TestCreateIsAllOrNothing(t *testing.T) {
	db := testDB(t)
	log := testLogger(t)
	userRepo := NewUserRepo(db, log)
	auditRepo := NewAuditRepo(db, log)

	rec := sampleRecord("aud_rollback", time.Now().UTC())
	err := db.Transaction(func(tx *gorm.DB) error {
		if err := userRepo.EnsureExists(context.Background(), tx, "u1", "web"); err != nil {
			return err
		}
		if err := auditRepo.CreateRecord(context.Background(), tx, rec, "u1", nil); err != nil {
			return err
		}
		return errors.New("simulated pipeline failure")
	})
	if err == nil {
		t.Fatalf("expected transaction error")
	}

	if _, err := auditRepo.GetByAuditID(context.Background(), nil, "aud_rollback"); !errors.Is(err, apperrors.ErrNotFound) {
		t.Fatalf("partial record persisted: %v", err)
	}
	var gaps int64
	if err := db.Model(&types.AuditGap{}).Where("audit_id = ?", "aud_rollback").Count(&gaps).Error; err != nil {
		t.Fatalf("count gaps: %v", err)
	}
	if gaps != 0 {
		t.Fatalf("orphaned gap rows after rollback: %d", gaps)
	}
}
