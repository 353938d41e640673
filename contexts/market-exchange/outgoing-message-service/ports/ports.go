package ports

import (
	"context"
	"time"

	contractsv1 "gridgate/contracts/gen/events/v1"
	"gridgate/contexts/market-exchange/outgoing-message-service/domain/entities"
	"gridgate/internal/shared/markets"
)

// OutgoingMessageRepository owns the durable outgoing-message rows. Rows are
// append-mostly: AssignedBundleID is set by the mailbox attach step and rows
// disappear through PurgeBundles on the bundle repository or, for rows whose
// attach never completed, through the retention sweeper's orphan pass.
type OutgoingMessageRepository interface {
	Insert(ctx context.Context, message entities.OutgoingMessage) error
	// MessagesForBundle returns the bundle's messages in attachment order.
	MessagesForBundle(ctx context.Context, bundleID string) ([]entities.OutgoingMessage, error)
	// CountAvailable counts messages of non-dequeued bundles for an actor.
	CountAvailable(ctx context.Context, receiverNumber markets.ActorNumber) (int, error)
	// UnassignedBefore returns messages that never joined a bundle and are
	// older than cutoff.
	UnassignedBefore(ctx context.Context, cutoff time.Time, limit int) ([]entities.OutgoingMessage, error)
	DeleteMessages(ctx context.Context, messageIDs []string) (int, error)
}

// BundleRepository owns bundle rows and the one-attachable-bundle-per-mailbox
// invariant. The invariant is store-enforced: OpenBundle performs a
// conditional insert keyed by the mailbox and returns
// domainerrors.ErrOpenBundleConflict when it loses a race, and callers retry
// against the now-visible bundle.
type BundleRepository interface {
	// AttachableBundle returns the bundle currently accepting messages for
	// the mailbox, if any.
	AttachableBundle(ctx context.Context, receiver markets.Actor, category markets.MessageCategory) (entities.Bundle, bool, error)
	// OpenBundle inserts a new attachable bundle, closing displacedBundleID
	// for attachment in the same transaction when non-empty.
	OpenBundle(ctx context.Context, bundle entities.Bundle, displacedBundleID string) error
	// AttachMessage atomically joins a message to the bundle. It returns
	// false when the bundle is frozen or full; the caller re-resolves.
	AttachMessage(ctx context.Context, bundleID string, messageID string) (bool, error)
	// NextPeekableBundle returns the oldest non-dequeued bundle with
	// messages for the mailbox.
	NextPeekableBundle(ctx context.Context, receiver markets.Actor, category markets.MessageCategory) (entities.Bundle, bool, error)
	// FreezeBundle stops further attachment; part of the peek critical
	// section.
	FreezeBundle(ctx context.Context, bundleID string) error
	SetPeeked(ctx context.Context, bundleID string, peekedMessageID string, documentRef string) error
	BundleByPeekedMessageID(ctx context.Context, peekedMessageID string, receiver markets.Actor) (entities.Bundle, bool, error)
	// MarkDequeued sets DequeuedAt exactly once; false when the bundle was
	// already dequeued.
	MarkDequeued(ctx context.Context, bundleID string, at time.Time) (bool, error)
	DequeuedBefore(ctx context.Context, cutoff time.Time, limit int) ([]entities.Bundle, error)
	// PurgeBundles removes the bundles, their messages and their lock rows
	// in one transaction.
	PurgeBundles(ctx context.Context, bundleIDs []string) (int, error)
}

// LockBuildTimeout bounds how long a bundle build may hold its lock. A
// holder that crashed before releasing leaves its lock row behind; TryAcquire
// reclaims locks older than this so the mailbox does not stay blocked.
const LockBuildTimeout = 5 * time.Minute

// BundleLockStore registers a bundle build in progress. TryAcquire is a
// store-enforced conditional insert so at most one process materializes a
// bundle at a time; locks older than LockBuildTimeout count as abandoned and
// may be taken over.
type BundleLockStore interface {
	TryAcquire(ctx context.Context, bundleID string) (bool, error)
	Release(ctx context.Context, bundleID string) error
}

// BlobStore is the opaque payload store for serialized records and
// materialized documents.
type BlobStore interface {
	Put(ctx context.Context, ref string, data []byte) error
	Get(ctx context.Context, ref string) ([]byte, error)
	Delete(ctx context.Context, refs []string) error
}

// EventDedupStore provides idempotent processing for consumed result events.
// ReleaseEvent undoes a reservation whose processing failed so the broker's
// redelivery is not swallowed.
type EventDedupStore interface {
	ReserveEvent(ctx context.Context, eventID string, payloadHash string, expiresAt time.Time) (bool, error)
	ReleaseEvent(ctx context.Context, eventID string) error
}

// Clock allows deterministic testing of bundling and retention rules.
type Clock interface {
	Now() time.Time
}

// IDGenerator abstracts bundle/message/blob identifier generation.
type IDGenerator interface {
	NewID(ctx context.Context) (string, error)
}

// EventEnvelope reuses the canonical cross-runtime envelope contract.
type EventEnvelope = contractsv1.Envelope

// EventPublisher publishes canonical envelopes to a topic.
type EventPublisher interface {
	Publish(ctx context.Context, topic string, event EventEnvelope) error
}

// EventSubscriber registers a topic consumer callback.
type EventSubscriber interface {
	Subscribe(
		ctx context.Context,
		topic string,
		consumerGroup string,
		handler func(context.Context, EventEnvelope) error,
	) error
}
