package postgresadapter

import (
	"context"
	"log/slog"

	"gridgate/internal/shared/markets"

	"gorm.io/gorm"
)

// AuthorizationStore answers sender authorization from the actor grants
// table. A row grants one caller identity the right to submit as one
// (actor number, role) pair.
type AuthorizationStore struct {
	db     *gorm.DB
	logger *slog.Logger
}

func NewAuthorizationStore(db *gorm.DB, logger *slog.Logger) *AuthorizationStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuthorizationStore{db: db, logger: logger}
}

func (s *AuthorizationStore) IsAuthorized(
	ctx context.Context,
	actorNumber markets.ActorNumber,
	role markets.ActorRole,
	callerIdentity string,
) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).
		Model(&actorGrantModel{}).
		Where(
			"actor_number = ? AND actor_role = ? AND caller_identity = ?",
			actorNumber.String(),
			string(role),
			callerIdentity,
		).
		Count(&count).
		Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

type actorGrantModel struct {
	ActorNumber    string `gorm:"column:actor_number;primaryKey"`
	ActorRole      string `gorm:"column:actor_role;primaryKey"`
	CallerIdentity string `gorm:"column:caller_identity;primaryKey"`
}

func (actorGrantModel) TableName() string {
	return "actor_grants"
}
