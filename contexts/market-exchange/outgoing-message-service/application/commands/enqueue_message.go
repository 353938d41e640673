package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	application "gridgate/contexts/market-exchange/outgoing-message-service/application"
	"gridgate/contexts/market-exchange/outgoing-message-service/domain/entities"
	domainerrors "gridgate/contexts/market-exchange/outgoing-message-service/domain/errors"
	"gridgate/contexts/market-exchange/outgoing-message-service/domain/services"
	"gridgate/contexts/market-exchange/outgoing-message-service/ports"
	"gridgate/internal/shared/markets"
)

// attachAttempts bounds the attach-or-create loop. Each iteration either
// attaches or observes a conflicting writer's progress, so a handful of
// retries is enough even under heavy contention.
const attachAttempts = 8

type EnqueueMessageCommand struct {
	DocumentReceiver markets.Actor
	DocumentType     markets.DocumentType
	BusinessReason   markets.BusinessReason
	Payload          []byte
}

type EnqueueMessageResult struct {
	MessageID string
	BundleID  string
}

// EnqueueMessageUseCase accepts one produced result message into the actor
// mailbox. Materialization is deferred to peek time so messages produced in
// quick succession batch into one outgoing document.
type EnqueueMessageUseCase struct {
	Messages      ports.OutgoingMessageRepository
	Bundles       ports.BundleRepository
	Blobs         ports.BlobStore
	Clock         ports.Clock
	IDGenerator   ports.IDGenerator
	MaxBundleSize int
	Logger        *slog.Logger
}

func (u EnqueueMessageUseCase) Execute(ctx context.Context, cmd EnqueueMessageCommand) (EnqueueMessageResult, error) {
	logger := application.ResolveLogger(u.Logger)
	now := u.Clock.Now().UTC()

	queueReceiver := services.ResolveQueueReceiver(cmd.DocumentReceiver, cmd.DocumentType)
	category := cmd.DocumentType.Category()

	messageID, err := u.IDGenerator.NewID(ctx)
	if err != nil {
		return EnqueueMessageResult{}, err
	}
	payloadRef := payloadReference(category, queueReceiver, now, messageID)
	message, err := entities.NewOutgoingMessage(
		messageID,
		queueReceiver,
		cmd.DocumentReceiver,
		cmd.DocumentType,
		cmd.BusinessReason,
		payloadRef,
		now,
	)
	if err != nil {
		return EnqueueMessageResult{}, err
	}

	if err := u.Blobs.Put(ctx, payloadRef, cmd.Payload); err != nil {
		return EnqueueMessageResult{}, err
	}
	if err := u.Messages.Insert(ctx, message); err != nil {
		return EnqueueMessageResult{}, err
	}

	bundleID, err := u.attach(ctx, queueReceiver, category, message)
	if err != nil {
		return EnqueueMessageResult{}, err
	}

	logger.Info("outgoing message enqueued",
		"event", "mailbox_message_enqueued",
		"module", "market-exchange/outgoing-message-service",
		"layer", "application",
		"message_id", message.ID,
		"bundle_id", bundleID,
		"receiver", queueReceiver.Number.String(),
		"category", string(category),
	)
	return EnqueueMessageResult{MessageID: message.ID, BundleID: bundleID}, nil
}

// attach joins the message to the mailbox's attachable bundle, opening a new
// bundle when none exists or the current one refuses the message. Conflicts
// with concurrent enqueues surface as ErrOpenBundleConflict or as a false
// AttachMessage result; both retry against the now-visible state.
func (u EnqueueMessageUseCase) attach(
	ctx context.Context,
	receiver markets.Actor,
	category markets.MessageCategory,
	message entities.OutgoingMessage,
) (string, error) {
	for attempt := 0; attempt < attachAttempts; attempt++ {
		current, found, err := u.Bundles.AttachableBundle(ctx, receiver, category)
		if err != nil {
			return "", err
		}
		if found && current.CanAccept(message) {
			attached, err := u.Bundles.AttachMessage(ctx, current.ID, message.ID)
			if err != nil {
				return "", err
			}
			if attached {
				return current.ID, nil
			}
			continue
		}

		bundleID, err := u.IDGenerator.NewID(ctx)
		if err != nil {
			return "", err
		}
		bundle, err := entities.NewBundle(bundleID, message, u.MaxBundleSize, u.Clock.Now().UTC())
		if err != nil {
			return "", err
		}
		displaced := ""
		if found {
			displaced = current.ID
		}
		if err := u.Bundles.OpenBundle(ctx, bundle, displaced); err != nil {
			if errors.Is(err, domainerrors.ErrOpenBundleConflict) {
				continue
			}
			return "", err
		}
		attached, err := u.Bundles.AttachMessage(ctx, bundle.ID, message.ID)
		if err != nil {
			return "", err
		}
		if attached {
			return bundle.ID, nil
		}
	}
	return "", domainerrors.ErrOpenBundleConflict
}

// payloadReference names blobs deterministically so references can be
// reconstructed from the message row alone.
func payloadReference(
	category markets.MessageCategory,
	receiver markets.Actor,
	createdAt time.Time,
	id string,
) string {
	return fmt.Sprintf("%s/%s/%s/%s",
		category,
		receiver.Number.String(),
		createdAt.Format("2006-01-02"),
		id,
	)
}
