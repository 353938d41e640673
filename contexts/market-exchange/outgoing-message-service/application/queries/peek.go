package queries

import (
	"context"
	"log/slog"
	"time"

	application "gridgate/contexts/market-exchange/outgoing-message-service/application"
	"gridgate/contexts/market-exchange/outgoing-message-service/domain/entities"
	"gridgate/contexts/market-exchange/outgoing-message-service/ports"
	"gridgate/internal/shared/documents"
	"gridgate/internal/shared/markets"
)

type PeekQuery struct {
	Actor    markets.Actor
	Category markets.MessageCategory
	Format   documents.DocumentFormat
}

// PeekResult carries the current bundle's document, or Found=false when the
// mailbox is empty or another caller holds the bundle lock (poll again).
type PeekResult struct {
	MessageID string
	Document  []byte
	Found     bool
}

// PeekUseCase materializes and returns the mailbox's current bundle.
// Repeated peeks before a dequeue return the identical message id and
// byte-identical document.
type PeekUseCase struct {
	Messages  ports.OutgoingMessageRepository
	Bundles   ports.BundleRepository
	Locks     ports.BundleLockStore
	Blobs     ports.BlobStore
	Documents *documents.Registry
	Clock     ports.Clock
	IDGen     ports.IDGenerator
	HubActor  markets.Actor
	Logger    *slog.Logger
}

func (u PeekUseCase) Execute(ctx context.Context, query PeekQuery) (PeekResult, error) {
	logger := application.ResolveLogger(u.Logger)
	format := query.Format
	if format == "" {
		format = documents.FormatJSON
	}

	bundle, found, err := u.Bundles.NextPeekableBundle(ctx, query.Actor, query.Category)
	if err != nil {
		return PeekResult{}, err
	}
	if !found {
		return PeekResult{}, nil
	}

	// An already-peeked bundle is served from its persisted document so
	// repeated peeks are idempotent.
	if bundle.Peeked() {
		data, err := u.Blobs.Get(ctx, bundle.DocumentRef)
		if err != nil {
			return PeekResult{}, err
		}
		return PeekResult{MessageID: bundle.PeekedMessageID, Document: data, Found: true}, nil
	}

	acquired, err := u.Locks.TryAcquire(ctx, bundle.ID)
	if err != nil {
		return PeekResult{}, err
	}
	if !acquired {
		// Another caller is materializing this bundle; an empty result tells
		// the actor to poll again rather than block.
		logger.Info("bundle build already registered",
			"event", "peek_bundle_lock_contended",
			"module", "market-exchange/outgoing-message-service",
			"layer", "application",
			"bundle_id", bundle.ID,
		)
		return PeekResult{}, nil
	}
	defer func() {
		if releaseErr := u.Locks.Release(ctx, bundle.ID); releaseErr != nil {
			logger.Error("bundle lock release failed",
				"event", "peek_bundle_lock_release_failed",
				"module", "market-exchange/outgoing-message-service",
				"layer", "application",
				"bundle_id", bundle.ID,
				"error", releaseErr.Error(),
			)
		}
	}()

	result, err := u.materialize(ctx, bundle, format)
	if err != nil {
		return PeekResult{}, err
	}
	logger.Info("bundle peeked",
		"event", "peek_bundle_materialized",
		"module", "market-exchange/outgoing-message-service",
		"layer", "application",
		"bundle_id", bundle.ID,
		"peeked_message_id", result.MessageID,
	)
	return result, nil
}

func (u PeekUseCase) materialize(
	ctx context.Context,
	bundle entities.Bundle,
	format documents.DocumentFormat,
) (PeekResult, error) {
	// Freezing first guarantees the writer sees a consistent message set:
	// enqueues racing this peek open a new bundle instead of growing this one.
	if err := u.Bundles.FreezeBundle(ctx, bundle.ID); err != nil {
		return PeekResult{}, err
	}

	messages, err := u.Messages.MessagesForBundle(ctx, bundle.ID)
	if err != nil {
		return PeekResult{}, err
	}
	payloads := make([][]byte, 0, len(messages))
	for _, message := range messages {
		payload, err := u.Blobs.Get(ctx, message.PayloadRef)
		if err != nil {
			return PeekResult{}, err
		}
		payloads = append(payloads, payload)
	}

	writer, err := u.Documents.Writer(bundle.DocumentType, format)
	if err != nil {
		return PeekResult{}, err
	}
	messageID, err := u.IDGen.NewID(ctx)
	if err != nil {
		return PeekResult{}, err
	}
	hub := u.HubActor
	if hub.Number == "" {
		hub = markets.HubActor
	}
	now := u.Clock.Now().UTC()
	document, err := writer.Write(documents.Header{
		MessageID:      messageID,
		SenderNumber:   hub.Number,
		SenderRole:     hub.Role,
		ReceiverNumber: bundle.DocumentReceiver.Number,
		ReceiverRole:   bundle.DocumentReceiver.Role,
		DocumentType:   bundle.DocumentType,
		BusinessReason: bundle.BusinessReason,
		CreatedAt:      now,
	}, payloads)
	if err != nil {
		return PeekResult{}, err
	}

	documentRef := documentReference(bundle, now, messageID)
	if err := u.Blobs.Put(ctx, documentRef, document); err != nil {
		return PeekResult{}, err
	}
	if err := u.Bundles.SetPeeked(ctx, bundle.ID, messageID, documentRef); err != nil {
		return PeekResult{}, err
	}
	return PeekResult{MessageID: messageID, Document: document, Found: true}, nil
}

func documentReference(bundle entities.Bundle, at time.Time, id string) string {
	return string(bundle.Category) + "/" + bundle.Receiver.Number.String() +
		"/" + at.Format("2006-01-02") + "/documents/" + id
}
