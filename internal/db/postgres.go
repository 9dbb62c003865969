package db

import (
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/northstar-audit/northstar-backend/internal/logger"
	"github.com/northstar-audit/northstar-backend/internal/types"
	"github.com/northstar-audit/northstar-backend/internal/utils"
)

type PostgresService struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewPostgresService(log *logger.Logger) (*PostgresService, error) {
	serviceLog := log.With("service", "PostgresService")

	postgresHost := utils.GetEnv("POSTGRES_HOST", "localhost", log)
	postgresPort := utils.GetEnv("POSTGRES_PORT", "5432", log)
	postgresUser := utils.GetEnv("POSTGRES_USER", "postgres", log)
	postgresPassword := utils.GetEnv("POSTGRES_PASSWORD", "", log)
	postgresName := utils.GetEnv("POSTGRES_NAME", "northstar", log)
	postgresSSLMode := utils.GetEnv("POSTGRES_SSLMODE", "disable", log)

	dsn := fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		postgresUser, postgresPassword, postgresHost, postgresPort, postgresName, postgresSSLMode)

	serviceLog.Info("Connecting to Postgres...", "host", postgresHost, "database", postgresName)
	gdb, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
	})
	if err != nil {
		serviceLog.Error("Failed to connect to Postgres", "error", err)
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}

	return &PostgresService{db: gdb, log: serviceLog}, nil
}

func (s *PostgresService) DB() *gorm.DB { return s.db }

// AutoMigrateAll migrates the audit tables and then installs the
// cascade foreign keys explicitly: user -> audits and audit -> child
// rows all delete downward, so an out-of-band delete can never leave
// orphaned gap, location, or remediation rows.
func (s *PostgresService) AutoMigrateAll() error {
	s.log.Info("Auto migrating postgres tables...")
	if err := s.db.AutoMigrate(
		&types.User{},
		&types.Audit{},
		&types.AuditGap{},
		&types.GapLocation{},
		&types.AuditRemediation{},
	); err != nil {
		s.log.Error("Auto migration failed for postgres tables", "error", err)
		return err
	}

	s.log.Info("Configuring foreign key relationships for postgres tables...")
	constraints := []struct {
		name string
		stmt string
	}{
		{"fk_audits_user_id", `
			ALTER TABLE "audits"
			ADD CONSTRAINT "fk_audits_user_id"
			FOREIGN KEY ("user_id")
			REFERENCES "users"("id")
			ON DELETE CASCADE
		`},
		{"fk_audit_gaps_audit_id", `
			ALTER TABLE "audit_gaps"
			ADD CONSTRAINT "fk_audit_gaps_audit_id"
			FOREIGN KEY ("audit_id")
			REFERENCES "audits"("audit_id")
			ON DELETE CASCADE
		`},
		{"fk_gap_locations_gap_id", `
			ALTER TABLE "gap_locations"
			ADD CONSTRAINT "fk_gap_locations_gap_id"
			FOREIGN KEY ("gap_id")
			REFERENCES "audit_gaps"("id")
			ON DELETE CASCADE
		`},
		{"fk_audit_remediations_audit_id", `
			ALTER TABLE "audit_remediations"
			ADD CONSTRAINT "fk_audit_remediations_audit_id"
			FOREIGN KEY ("audit_id")
			REFERENCES "audits"("audit_id")
			ON DELETE CASCADE
		`},
	}
	for _, c := range constraints {
		var exists bool
		if err := s.db.Raw(
			`SELECT EXISTS (SELECT 1 FROM pg_constraint WHERE conname = ?)`, c.name,
		).Scan(&exists).Error; err != nil {
			return fmt.Errorf("check constraint %s: %w", c.name, err)
		}
		if exists {
			continue
		}
		if err := s.db.Exec(c.stmt).Error; err != nil {
			s.log.Error("Failed to add foreign key constraint", "constraint", c.name, "error", err)
			return fmt.Errorf("add constraint %s: %w", c.name, err)
		}
	}
	return nil
}
