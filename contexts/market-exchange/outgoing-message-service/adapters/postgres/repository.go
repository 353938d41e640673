package postgresadapter

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"gridgate/contexts/market-exchange/outgoing-message-service/domain/entities"
	domainerrors "gridgate/contexts/market-exchange/outgoing-message-service/domain/errors"
	"gridgate/contexts/market-exchange/outgoing-message-service/ports"
	"gridgate/internal/shared/markets"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Repository persists the actor mailbox in Postgres. Two store-enforced
// constraints carry the concurrency model: the unique attach_slot column
// (one attachable bundle per mailbox) and the bundle_locks primary key
// (one build in progress per bundle, reclaimable after LockBuildTimeout).
// Handlers may run on multiple processes, so neither is an in-process lock.
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

func (r *Repository) Insert(ctx context.Context, message entities.OutgoingMessage) error {
	row := messageModelFromEntity(message)
	return r.db.WithContext(ctx).Create(&row).Error
}

func (r *Repository) MessagesForBundle(ctx context.Context, bundleID string) ([]entities.OutgoingMessage, error) {
	var rows []outgoingMessageModel
	err := r.db.WithContext(ctx).
		Where("assigned_bundle_id = ?", bundleID).
		Order("attach_seq ASC").
		Find(&rows).
		Error
	if err != nil {
		return nil, err
	}
	messages := make([]entities.OutgoingMessage, 0, len(rows))
	for _, row := range rows {
		messages = append(messages, row.toEntity())
	}
	return messages, nil
}

func (r *Repository) CountAvailable(ctx context.Context, receiverNumber markets.ActorNumber) (int, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&outgoingMessageModel{}).
		Joins("JOIN bundles ON bundles.id = outgoing_messages.assigned_bundle_id").
		Where("outgoing_messages.receiver_number = ? AND bundles.dequeued_at IS NULL", receiverNumber.String()).
		Count(&count).
		Error
	if err != nil {
		return 0, err
	}
	return int(count), nil
}

func (r *Repository) UnassignedBefore(
	ctx context.Context,
	cutoff time.Time,
	limit int,
) ([]entities.OutgoingMessage, error) {
	var rows []outgoingMessageModel
	err := r.db.WithContext(ctx).
		Where("assigned_bundle_id IS NULL AND created_at < ?", cutoff.UTC()).
		Order("created_at ASC").
		Limit(limit).
		Find(&rows).
		Error
	if err != nil {
		return nil, err
	}
	messages := make([]entities.OutgoingMessage, 0, len(rows))
	for _, row := range rows {
		messages = append(messages, row.toEntity())
	}
	return messages, nil
}

func (r *Repository) DeleteMessages(ctx context.Context, messageIDs []string) (int, error) {
	if len(messageIDs) == 0 {
		return 0, nil
	}
	result := r.db.WithContext(ctx).
		Where("id IN ?", messageIDs).
		Delete(&outgoingMessageModel{})
	if result.Error != nil {
		return 0, result.Error
	}
	return int(result.RowsAffected), nil
}

func (r *Repository) AttachableBundle(
	ctx context.Context,
	receiver markets.Actor,
	category markets.MessageCategory,
) (entities.Bundle, bool, error) {
	var row bundleModel
	err := r.db.WithContext(ctx).
		Where("attach_slot = ?", mailboxSlot(receiver, category)).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.Bundle{}, false, nil
		}
		return entities.Bundle{}, false, err
	}
	return row.toEntity(), true, nil
}

func (r *Repository) OpenBundle(ctx context.Context, bundle entities.Bundle, displacedBundleID string) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if displacedBundleID != "" {
			if err := tx.Model(&bundleModel{}).
				Where("id = ?", displacedBundleID).
				Update("attach_slot", nil).
				Error; err != nil {
				return err
			}
		}
		row := bundleModelFromEntity(bundle)
		slot := mailboxSlot(bundle.Receiver, bundle.Category)
		row.AttachSlot = &slot
		return tx.Create(&row).Error
	})
	if err != nil {
		if isUniqueViolation(err) {
			return domainerrors.ErrOpenBundleConflict
		}
		return err
	}
	return nil
}

func (r *Repository) AttachMessage(ctx context.Context, bundleID string, messageID string) (bool, error) {
	attached := false
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// The conditional increment is the attachment guard: it succeeds only
		// while the bundle is still attachable and below its payload limit.
		result := tx.Model(&bundleModel{}).
			Where("id = ? AND attach_slot IS NOT NULL AND message_count < max_message_count", bundleID).
			Update("message_count", gorm.Expr("message_count + 1"))
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return nil
		}
		attached = true
		return tx.Model(&outgoingMessageModel{}).
			Where("id = ?", messageID).
			Update("assigned_bundle_id", bundleID).
			Error
	})
	if err != nil {
		return false, err
	}
	return attached, nil
}

func (r *Repository) NextPeekableBundle(
	ctx context.Context,
	receiver markets.Actor,
	category markets.MessageCategory,
) (entities.Bundle, bool, error) {
	var row bundleModel
	err := r.db.WithContext(ctx).
		Where(
			"receiver_number = ? AND receiver_role = ? AND category = ? AND dequeued_at IS NULL AND message_count > 0",
			receiver.Number.String(),
			string(receiver.Role),
			string(category),
		).
		Order("created_at ASC, id ASC").
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.Bundle{}, false, nil
		}
		return entities.Bundle{}, false, err
	}
	return row.toEntity(), true, nil
}

func (r *Repository) FreezeBundle(ctx context.Context, bundleID string) error {
	return r.db.WithContext(ctx).
		Model(&bundleModel{}).
		Where("id = ?", bundleID).
		Update("attach_slot", nil).
		Error
}

func (r *Repository) SetPeeked(
	ctx context.Context,
	bundleID string,
	peekedMessageID string,
	documentRef string,
) error {
	result := r.db.WithContext(ctx).
		Model(&bundleModel{}).
		Where("id = ? AND peeked_message_id IS NULL", bundleID).
		Updates(map[string]any{
			"peeked_message_id": peekedMessageID,
			"document_ref":      documentRef,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domainerrors.ErrBundleAlreadyPeeked
	}
	return nil
}

func (r *Repository) BundleByPeekedMessageID(
	ctx context.Context,
	peekedMessageID string,
	receiver markets.Actor,
) (entities.Bundle, bool, error) {
	var row bundleModel
	err := r.db.WithContext(ctx).
		Where(
			"peeked_message_id = ? AND receiver_number = ? AND receiver_role = ?",
			peekedMessageID,
			receiver.Number.String(),
			string(receiver.Role),
		).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.Bundle{}, false, nil
		}
		return entities.Bundle{}, false, err
	}
	return row.toEntity(), true, nil
}

func (r *Repository) MarkDequeued(ctx context.Context, bundleID string, at time.Time) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&bundleModel{}).
		Where("id = ? AND peeked_message_id IS NOT NULL AND dequeued_at IS NULL", bundleID).
		Updates(map[string]any{
			"dequeued_at": at.UTC(),
			"attach_slot": nil,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *Repository) DequeuedBefore(ctx context.Context, cutoff time.Time, limit int) ([]entities.Bundle, error) {
	var rows []bundleModel
	err := r.db.WithContext(ctx).
		Where("dequeued_at IS NOT NULL AND dequeued_at < ?", cutoff.UTC()).
		Order("dequeued_at ASC").
		Limit(limit).
		Find(&rows).
		Error
	if err != nil {
		return nil, err
	}
	bundles := make([]entities.Bundle, 0, len(rows))
	for _, row := range rows {
		bundles = append(bundles, row.toEntity())
	}
	return bundles, nil
}

func (r *Repository) PurgeBundles(ctx context.Context, bundleIDs []string) (int, error) {
	if len(bundleIDs) == 0 {
		return 0, nil
	}
	deleted := 0
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("assigned_bundle_id IN ?", bundleIDs).
			Delete(&outgoingMessageModel{}).
			Error; err != nil {
			return err
		}
		if err := tx.Where("bundle_id IN ?", bundleIDs).
			Delete(&bundleLockModel{}).
			Error; err != nil {
			return err
		}
		result := tx.Where("id IN ?", bundleIDs).Delete(&bundleModel{})
		if result.Error != nil {
			return result.Error
		}
		deleted = int(result.RowsAffected)
		return nil
	})
	if err != nil {
		return 0, err
	}
	return deleted, nil
}

func (r *Repository) TryAcquire(ctx context.Context, bundleID string) (bool, error) {
	now := time.Now().UTC()
	row := bundleLockModel{
		BundleID:   bundleID,
		AcquiredAt: now,
	}
	// The conditional upsert takes over locks whose holder stopped renewing:
	// anything older than the build timeout counts as abandoned.
	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "bundle_id"}},
			DoUpdates: clause.Assignments(map[string]any{"acquired_at": now}),
			Where: clause.Where{Exprs: []clause.Expression{
				clause.Lt{
					Column: clause.Column{Table: "bundle_locks", Name: "acquired_at"},
					Value:  now.Add(-ports.LockBuildTimeout),
				},
			}},
		}).
		Create(&row)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *Repository) Release(ctx context.Context, bundleID string) error {
	return r.db.WithContext(ctx).
		Where("bundle_id = ?", bundleID).
		Delete(&bundleLockModel{}).
		Error
}

func (r *Repository) ReserveEvent(
	ctx context.Context,
	eventID string,
	payloadHash string,
	expiresAt time.Time,
) (bool, error) {
	row := eventDedupModel{
		EventID:     eventID,
		PayloadHash: payloadHash,
		ProcessedAt: time.Now().UTC(),
		ExpiresAt:   expiresAt.UTC(),
	}
	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "event_id"}},
			DoNothing: true,
		}).
		Create(&row)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *Repository) ReleaseEvent(ctx context.Context, eventID string) error {
	return r.db.WithContext(ctx).
		Where("event_id = ?", eventID).
		Delete(&eventDedupModel{}).
		Error
}

func mailboxSlot(receiver markets.Actor, category markets.MessageCategory) string {
	return receiver.Number.String() + "|" + string(receiver.Role) + "|" + string(category)
}

type outgoingMessageModel struct {
	ID                     string    `gorm:"column:id;primaryKey"`
	ReceiverNumber         string    `gorm:"column:receiver_number;index"`
	ReceiverRole           string    `gorm:"column:receiver_role"`
	DocumentReceiverNumber string    `gorm:"column:document_receiver_number"`
	DocumentReceiverRole   string    `gorm:"column:document_receiver_role"`
	DocumentType           string    `gorm:"column:document_type"`
	BusinessReason         string    `gorm:"column:business_reason"`
	PayloadRef             string    `gorm:"column:payload_ref"`
	AssignedBundleID       *string   `gorm:"column:assigned_bundle_id;index"`
	AttachSeq              int64     `gorm:"column:attach_seq;autoIncrement"`
	CreatedAt              time.Time `gorm:"column:created_at"`
}

func (outgoingMessageModel) TableName() string {
	return "outgoing_messages"
}

func messageModelFromEntity(item entities.OutgoingMessage) outgoingMessageModel {
	row := outgoingMessageModel{
		ID:                     item.ID,
		ReceiverNumber:         item.Receiver.Number.String(),
		ReceiverRole:           string(item.Receiver.Role),
		DocumentReceiverNumber: item.DocumentReceiver.Number.String(),
		DocumentReceiverRole:   string(item.DocumentReceiver.Role),
		DocumentType:           string(item.DocumentType),
		BusinessReason:         string(item.BusinessReason),
		PayloadRef:             item.PayloadRef,
		CreatedAt:              item.CreatedAt.UTC(),
	}
	if item.AssignedBundleID != "" {
		bundleID := item.AssignedBundleID
		row.AssignedBundleID = &bundleID
	}
	return row
}

func (m outgoingMessageModel) toEntity() entities.OutgoingMessage {
	item := entities.OutgoingMessage{
		ID: m.ID,
		Receiver: markets.Actor{
			Number: markets.ActorNumber(m.ReceiverNumber),
			Role:   markets.ActorRole(m.ReceiverRole),
		},
		DocumentReceiver: markets.Actor{
			Number: markets.ActorNumber(m.DocumentReceiverNumber),
			Role:   markets.ActorRole(m.DocumentReceiverRole),
		},
		DocumentType:   markets.DocumentType(m.DocumentType),
		BusinessReason: markets.BusinessReason(m.BusinessReason),
		PayloadRef:     m.PayloadRef,
		CreatedAt:      m.CreatedAt.UTC(),
	}
	if m.AssignedBundleID != nil {
		item.AssignedBundleID = *m.AssignedBundleID
	}
	return item
}

type bundleModel struct {
	ID                     string     `gorm:"column:id;primaryKey"`
	ReceiverNumber         string     `gorm:"column:receiver_number;index:idx_bundles_mailbox"`
	ReceiverRole           string     `gorm:"column:receiver_role;index:idx_bundles_mailbox"`
	DocumentReceiverNumber string     `gorm:"column:document_receiver_number"`
	DocumentReceiverRole   string     `gorm:"column:document_receiver_role"`
	Category               string     `gorm:"column:category;index:idx_bundles_mailbox"`
	DocumentType           string     `gorm:"column:document_type"`
	BusinessReason         string     `gorm:"column:business_reason"`
	MaxMessageCount        int        `gorm:"column:max_message_count"`
	MessageCount           int        `gorm:"column:message_count"`
	AttachSlot             *string    `gorm:"column:attach_slot;unique"`
	PeekedMessageID        *string    `gorm:"column:peeked_message_id;unique"`
	DocumentRef            string     `gorm:"column:document_ref"`
	CreatedAt              time.Time  `gorm:"column:created_at"`
	DequeuedAt             *time.Time `gorm:"column:dequeued_at"`
}

func (bundleModel) TableName() string {
	return "bundles"
}

func bundleModelFromEntity(item entities.Bundle) bundleModel {
	row := bundleModel{
		ID:                     item.ID,
		ReceiverNumber:         item.Receiver.Number.String(),
		ReceiverRole:           string(item.Receiver.Role),
		DocumentReceiverNumber: item.DocumentReceiver.Number.String(),
		DocumentReceiverRole:   string(item.DocumentReceiver.Role),
		Category:               string(item.Category),
		DocumentType:           string(item.DocumentType),
		BusinessReason:         string(item.BusinessReason),
		MaxMessageCount:        item.MaxMessageCount,
		MessageCount:           item.MessageCount,
		DocumentRef:            item.DocumentRef,
		CreatedAt:              item.CreatedAt.UTC(),
		DequeuedAt:             normalizeOptionalTime(item.DequeuedAt),
	}
	if item.PeekedMessageID != "" {
		peeked := item.PeekedMessageID
		row.PeekedMessageID = &peeked
	}
	return row
}

func (m bundleModel) toEntity() entities.Bundle {
	item := entities.Bundle{
		ID: m.ID,
		Receiver: markets.Actor{
			Number: markets.ActorNumber(m.ReceiverNumber),
			Role:   markets.ActorRole(m.ReceiverRole),
		},
		DocumentReceiver: markets.Actor{
			Number: markets.ActorNumber(m.DocumentReceiverNumber),
			Role:   markets.ActorRole(m.DocumentReceiverRole),
		},
		Category:        markets.MessageCategory(m.Category),
		DocumentType:    markets.DocumentType(m.DocumentType),
		BusinessReason:  markets.BusinessReason(m.BusinessReason),
		MaxMessageCount: m.MaxMessageCount,
		MessageCount:    m.MessageCount,
		DocumentRef:     m.DocumentRef,
		CreatedAt:       m.CreatedAt.UTC(),
		DequeuedAt:      normalizeOptionalTime(m.DequeuedAt),
	}
	if m.PeekedMessageID != nil {
		item.PeekedMessageID = *m.PeekedMessageID
	}
	return item
}

type bundleLockModel struct {
	BundleID   string    `gorm:"column:bundle_id;primaryKey"`
	AcquiredAt time.Time `gorm:"column:acquired_at"`
}

func (bundleLockModel) TableName() string {
	return "bundle_locks"
}

type eventDedupModel struct {
	EventID     string    `gorm:"column:event_id;primaryKey"`
	PayloadHash string    `gorm:"column:payload_hash"`
	ProcessedAt time.Time `gorm:"column:processed_at"`
	ExpiresAt   time.Time `gorm:"column:expires_at"`
}

func (eventDedupModel) TableName() string {
	return "outgoing_event_dedup"
}

func normalizeOptionalTime(value *time.Time) *time.Time {
	if value == nil {
		return nil
	}
	timestamp := value.UTC()
	return &timestamp
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
