package entities

import (
	"time"

	"gridgate/internal/shared/markets"
)

// IdentifierLength is the exact length of message and transaction
// identifiers on the wire (UUID-sized).
const IdentifierLength = 36

// TransactionRecord is one business transaction carried by an envelope.
type TransactionRecord struct {
	TransactionID string
	Payload       []byte
}

// InboundEnvelope is one submitted document as seen by the intake gatekeeper.
// It is consumed once: only its identifiers survive, in the idempotency
// registry, after a successful commit.
type InboundEnvelope struct {
	MessageID      string
	Sender         markets.Actor
	Receiver       markets.Actor
	DocumentType   markets.DocumentType
	BusinessReason markets.BusinessReason
	CreatedAt      time.Time
	Transactions   []TransactionRecord
}

// TransactionIDs returns the envelope's transaction ids in document order.
func (e InboundEnvelope) TransactionIDs() []string {
	ids := make([]string, 0, len(e.Transactions))
	for _, record := range e.Transactions {
		ids = append(ids, record.TransactionID)
	}
	return ids
}

// ValidIdentifier reports whether an external identifier has the required
// fixed length.
func ValidIdentifier(id string) bool {
	return len(id) == IdentifierLength
}
