package workers

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"log/slog"
	"time"

	application "gridgate/contexts/market-exchange/outgoing-message-service/application"
	"gridgate/contexts/market-exchange/outgoing-message-service/application/commands"
	"gridgate/contexts/market-exchange/outgoing-message-service/ports"
	"gridgate/internal/shared/markets"
)

// ResultAvailableTopic carries events from business processing announcing a
// produced result document for an actor.
const ResultAvailableTopic = "marketdata.result_available"

type resultAvailablePayload struct {
	ReceiverNumber     string          `json:"receiver_number"`
	ReceiverRoleCode   string          `json:"receiver_role_code"`
	DocumentType       string          `json:"document_type"`
	BusinessReasonCode string          `json:"business_reason_code"`
	Record             json.RawMessage `json:"record"`
}

// ResultAvailableConsumer turns result-available events into mailbox
// enqueues. Event ids are reserved in the dedup store first so redelivered
// events enqueue exactly once; a failed enqueue releases its reservation so
// the broker's redelivery gets another attempt.
type ResultAvailableConsumer struct {
	Subscriber    ports.EventSubscriber
	Enqueue       commands.EnqueueMessageUseCase
	Dedup         ports.EventDedupStore
	Clock         ports.Clock
	ConsumerGroup string
	DedupTTL      time.Duration
	Logger        *slog.Logger
}

func (c ResultAvailableConsumer) Start(ctx context.Context) error {
	return c.Subscriber.Subscribe(ctx, ResultAvailableTopic, c.consumerGroup(), c.handle)
}

func (c ResultAvailableConsumer) handle(ctx context.Context, event ports.EventEnvelope) error {
	logger := application.ResolveLogger(c.Logger)

	sum := sha256.Sum256(event.Data)
	firstDelivery, err := c.Dedup.ReserveEvent(
		ctx,
		event.EventID,
		hex.EncodeToString(sum[:]),
		c.Clock.Now().UTC().Add(c.dedupTTL()),
	)
	if err != nil {
		return err
	}
	if !firstDelivery {
		return nil
	}

	var payload resultAvailablePayload
	if err := json.Unmarshal(event.Data, &payload); err != nil {
		logger.Error("result event payload malformed",
			"event", "result_available_payload_malformed",
			"module", "market-exchange/outgoing-message-service",
			"layer", "worker",
			"event_id", event.EventID,
			"error", err.Error(),
		)
		// Not retryable, drop it.
		return nil
	}

	role, err := markets.RoleFromCode(payload.ReceiverRoleCode)
	if err != nil {
		return nil
	}
	documentType, err := markets.DocumentTypeFromName(payload.DocumentType)
	if err != nil {
		return nil
	}
	reason, err := markets.ReasonFromCode(payload.BusinessReasonCode)
	if err != nil {
		return nil
	}

	_, err = c.Enqueue.Execute(ctx, commands.EnqueueMessageCommand{
		DocumentReceiver: markets.Actor{
			Number: markets.ActorNumber(payload.ReceiverNumber),
			Role:   role,
		},
		DocumentType:   documentType,
		BusinessReason: reason,
		Payload:        payload.Record,
	})
	if err != nil {
		logger.Error("result event enqueue failed",
			"event", "result_available_enqueue_failed",
			"module", "market-exchange/outgoing-message-service",
			"layer", "worker",
			"event_id", event.EventID,
			"error", err.Error(),
		)
		if releaseErr := c.Dedup.ReleaseEvent(ctx, event.EventID); releaseErr != nil {
			logger.Error("event reservation release failed",
				"event", "result_available_release_failed",
				"module", "market-exchange/outgoing-message-service",
				"layer", "worker",
				"event_id", event.EventID,
				"error", releaseErr.Error(),
			)
		}
		return err
	}
	return nil
}

func (c ResultAvailableConsumer) consumerGroup() string {
	if c.ConsumerGroup != "" {
		return c.ConsumerGroup
	}
	return "outgoing-message-result-cg"
}

func (c ResultAvailableConsumer) dedupTTL() time.Duration {
	if c.DedupTTL <= 0 {
		return 7 * 24 * time.Hour
	}
	return c.DedupTTL
}
