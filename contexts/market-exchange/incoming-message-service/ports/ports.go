package ports

import (
	"context"
	"time"

	"gridgate/internal/shared/markets"
)

// EnvelopeRegistration is the unit of work committed for one accepted
// envelope: the message id plus every transaction id, all-or-nothing.
type EnvelopeRegistration struct {
	SenderNumber   markets.ActorNumber
	MessageID      string
	TransactionIDs []string
	AcceptedAt     time.Time
}

// IdempotencyRegistry is the durable record of every accepted message and
// transaction identifier. Rows are written exactly once; the registry's
// uniqueness constraints are the source of truth under concurrent submission,
// so CommitEnvelope must return domainerrors.ErrDuplicateRegistration on a
// store-level uniqueness violation.
type IdempotencyRegistry interface {
	MessageIDExists(ctx context.Context, sender markets.ActorNumber, messageID string) (bool, error)
	ExistingTransactionIDs(ctx context.Context, sender markets.ActorNumber, transactionIDs []string) ([]string, error)
	CommitEnvelope(ctx context.Context, registration EnvelopeRegistration) error
}

// AuthorizationService answers whether the authenticated caller may act as
// the envelope's sender. Lookup cost is dominated by I/O; adapters may cache.
type AuthorizationService interface {
	IsAuthorized(ctx context.Context, actorNumber markets.ActorNumber, role markets.ActorRole, callerIdentity string) (bool, error)
}

// Clock allows deterministic testing of acceptance timestamps.
type Clock interface {
	Now() time.Time
}
