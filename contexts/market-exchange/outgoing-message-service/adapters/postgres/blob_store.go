package postgresadapter

import (
	"context"
	"errors"
	"log/slog"

	domainerrors "gridgate/contexts/market-exchange/outgoing-message-service/domain/errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// BlobStore keeps message payloads and peeked documents out of the hot
// bundle tables. References are opaque to callers; the row key is the
// reference string handed out by the use cases.
type BlobStore struct {
	db     *gorm.DB
	logger *slog.Logger
}

func NewBlobStore(db *gorm.DB, logger *slog.Logger) *BlobStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &BlobStore{db: db, logger: logger}
}

func (s *BlobStore) Put(ctx context.Context, reference string, payload []byte) error {
	row := payloadBlobModel{
		Reference: reference,
		Payload:   payload,
	}
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "reference"}},
			UpdateAll: true,
		}).
		Create(&row).
		Error
}

func (s *BlobStore) Get(ctx context.Context, reference string) ([]byte, error) {
	var row payloadBlobModel
	err := s.db.WithContext(ctx).
		Where("reference = ?", reference).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domainerrors.ErrBlobNotFound
		}
		return nil, err
	}
	return row.Payload, nil
}

func (s *BlobStore) Delete(ctx context.Context, references []string) error {
	if len(references) == 0 {
		return nil
	}
	return s.db.WithContext(ctx).
		Where("reference IN ?", references).
		Delete(&payloadBlobModel{}).
		Error
}

type payloadBlobModel struct {
	Reference string `gorm:"column:reference;primaryKey"`
	Payload   []byte `gorm:"column:payload"`
}

func (payloadBlobModel) TableName() string {
	return "outgoing_payload_blobs"
}
