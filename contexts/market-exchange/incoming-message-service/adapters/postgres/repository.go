package postgresadapter

import (
	"context"
	"errors"
	"log/slog"
	"time"

	domainerrors "gridgate/contexts/market-exchange/incoming-message-service/domain/errors"
	"gridgate/contexts/market-exchange/incoming-message-service/ports"
	"gridgate/internal/shared/markets"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

// Repository persists the idempotency registry in Postgres. Uniqueness is
// enforced by composite unique indexes on (sender_number, message_id) and
// (sender_number, transaction_id); those constraints, not the pre-checks,
// decide races between concurrent submissions of the same envelope.
type Repository struct {
	db     *gorm.DB
	logger *slog.Logger
}

func NewRepository(db *gorm.DB, logger *slog.Logger) *Repository {
	if logger == nil {
		logger = slog.Default()
	}
	return &Repository{db: db, logger: logger}
}

func (r *Repository) MessageIDExists(
	ctx context.Context,
	sender markets.ActorNumber,
	messageID string,
) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&messageRegistryModel{}).
		Where("sender_number = ? AND message_id = ?", sender.String(), messageID).
		Count(&count).
		Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *Repository) ExistingTransactionIDs(
	ctx context.Context,
	sender markets.ActorNumber,
	transactionIDs []string,
) ([]string, error) {
	if len(transactionIDs) == 0 {
		return nil, nil
	}
	var existing []string
	err := r.db.WithContext(ctx).
		Model(&transactionRegistryModel{}).
		Where("sender_number = ? AND transaction_id IN ?", sender.String(), transactionIDs).
		Order("transaction_id ASC").
		Pluck("transaction_id", &existing).
		Error
	if err != nil {
		return nil, err
	}
	return existing, nil
}

func (r *Repository) CommitEnvelope(ctx context.Context, registration ports.EnvelopeRegistration) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		messageRow := messageRegistryModel{
			SenderNumber: registration.SenderNumber.String(),
			MessageID:    registration.MessageID,
			AcceptedAt:   registration.AcceptedAt.UTC(),
		}
		if err := tx.Create(&messageRow).Error; err != nil {
			return err
		}
		for _, transactionID := range registration.TransactionIDs {
			transactionRow := transactionRegistryModel{
				SenderNumber:  registration.SenderNumber.String(),
				TransactionID: transactionID,
				AcceptedAt:    registration.AcceptedAt.UTC(),
			}
			if err := tx.Create(&transactionRow).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		if isUniqueViolation(err) {
			return domainerrors.ErrDuplicateRegistration
		}
		return err
	}
	return nil
}

type messageRegistryModel struct {
	SenderNumber string    `gorm:"column:sender_number;primaryKey"`
	MessageID    string    `gorm:"column:message_id;primaryKey"`
	AcceptedAt   time.Time `gorm:"column:accepted_at"`
}

func (messageRegistryModel) TableName() string {
	return "inbound_message_registry"
}

type transactionRegistryModel struct {
	SenderNumber  string    `gorm:"column:sender_number;primaryKey"`
	TransactionID string    `gorm:"column:transaction_id;primaryKey"`
	AcceptedAt    time.Time `gorm:"column:accepted_at"`
}

func (transactionRegistryModel) TableName() string {
	return "inbound_transaction_registry"
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
