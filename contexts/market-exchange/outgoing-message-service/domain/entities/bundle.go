package entities

import (
	"time"

	domainerrors "gridgate/contexts/market-exchange/outgoing-message-service/domain/errors"
	"gridgate/internal/shared/markets"
)

// DefaultMaxBundleSize bounds the payload count of one bundle when no limit
// is configured.
const DefaultMaxBundleSize = 2000

// Bundle batches outgoing messages for one (receiver, category) mailbox into
// a single outgoing document. Lifecycle: open -> peeked -> dequeued, with
// dequeued terminal. The message set freezes at first peek so repeated peeks
// observe the identical document.
type Bundle struct {
	ID               string
	Receiver         markets.Actor
	DocumentReceiver markets.Actor
	Category         markets.MessageCategory
	DocumentType     markets.DocumentType
	BusinessReason   markets.BusinessReason
	MaxMessageCount  int
	MessageCount     int
	PeekedMessageID  string
	DocumentRef      string
	CreatedAt        time.Time
	DequeuedAt       *time.Time
}

func NewBundle(
	id string,
	message OutgoingMessage,
	maxMessageCount int,
	createdAt time.Time,
) (Bundle, error) {
	if id == "" {
		return Bundle{}, domainerrors.ErrInvalidOutgoingMessage
	}
	if maxMessageCount <= 0 {
		maxMessageCount = DefaultMaxBundleSize
	}
	return Bundle{
		ID:               id,
		Receiver:         message.Receiver,
		DocumentReceiver: message.DocumentReceiver,
		Category:         message.DocumentType.Category(),
		DocumentType:     message.DocumentType,
		BusinessReason:   message.BusinessReason,
		MaxMessageCount:  maxMessageCount,
		CreatedAt:        createdAt.UTC(),
	}, nil
}

// Peeked reports whether the bundle has been handed out at least once.
func (b Bundle) Peeked() bool {
	return b.PeekedMessageID != ""
}

// Dequeued reports whether the bundle reached its terminal state.
func (b Bundle) Dequeued() bool {
	return b.DequeuedAt != nil
}

// CanAccept reports whether the message may join the bundle: same receiver,
// homogeneous reason and document type, not frozen by a peek, below the
// payload limit.
func (b Bundle) CanAccept(message OutgoingMessage) bool {
	if b.Peeked() || b.Dequeued() {
		return false
	}
	if b.MessageCount >= b.MaxMessageCount {
		return false
	}
	if message.Receiver != b.Receiver {
		return false
	}
	return message.BusinessReason == b.BusinessReason && message.DocumentType == b.DocumentType
}

// MarkPeeked records the external message id and materialized document
// reference handed to the actor. Set at most once.
func (b *Bundle) MarkPeeked(messageID string, documentRef string) error {
	if b.Dequeued() {
		return domainerrors.ErrBundleAlreadyDequeued
	}
	if b.Peeked() {
		return domainerrors.ErrBundleAlreadyPeeked
	}
	if messageID == "" || documentRef == "" {
		return domainerrors.ErrInvalidOutgoingMessage
	}
	b.PeekedMessageID = messageID
	b.DocumentRef = documentRef
	return nil
}

// MarkDequeued retires the bundle. Valid only after a peek, at most once.
func (b *Bundle) MarkDequeued(now time.Time) error {
	if !b.Peeked() {
		return domainerrors.ErrBundleNotPeeked
	}
	if b.Dequeued() {
		return domainerrors.ErrBundleAlreadyDequeued
	}
	at := now.UTC()
	b.DequeuedAt = &at
	return nil
}
