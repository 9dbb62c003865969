package repos

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/northstar-audit/northstar-backend/internal/logger"
	"github.com/northstar-audit/northstar-backend/internal/types"
)

type UserRepo interface {
	// EnsureExists upserts the scoping row for a caller-supplied user id.
	// The source tag ("web" or "discord") is recorded on first sight and
	// never overwritten.
	EnsureExists(ctx context.Context, tx *gorm.DB, userID string, source string) error
}

type userRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewUserRepo(db *gorm.DB, baseLog *logger.Logger) UserRepo {
	return &userRepo{db: db, log: baseLog.With("repo", "UserRepo")}
}

func (ur *userRepo) EnsureExists(ctx context.Context, tx *gorm.DB, userID string, source string) error {
	transaction := tx
	if transaction == nil {
		transaction = ur.db
	}
	user := &types.User{ID: userID, Source: source}
	return transaction.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoNothing: true,
		}).
		Create(user).Error
}
