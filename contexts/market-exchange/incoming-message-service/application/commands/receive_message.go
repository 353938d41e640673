package commands

import (
	"context"
	"errors"
	"log/slog"

	"golang.org/x/sync/errgroup"

	application "gridgate/contexts/market-exchange/incoming-message-service/application"
	"gridgate/contexts/market-exchange/incoming-message-service/domain/entities"
	domainerrors "gridgate/contexts/market-exchange/incoming-message-service/domain/errors"
	"gridgate/contexts/market-exchange/incoming-message-service/ports"
	"gridgate/internal/shared/documents"
	"gridgate/internal/shared/markets"
)

type ReceiveMessageCommand struct {
	Payload        []byte
	Format         documents.DocumentFormat
	DocumentType   markets.DocumentType
	Caller         markets.Actor
	CallerIdentity string
}

// ReceiveMessageResult reports either acceptance of the envelope or the
// complete, ordered list of violations found in it.
type ReceiveMessageResult struct {
	MessageID string
	Errors    []domainerrors.ValidationError
}

func (r ReceiveMessageResult) Success() bool {
	return len(r.Errors) == 0
}

// ReceiveMessageUseCase is the intake gatekeeper: parse, validate fail-slow,
// deduplicate against the idempotency registry, then commit the envelope's
// identifiers in one transaction.
type ReceiveMessageUseCase struct {
	Registry      ports.IdempotencyRegistry
	Authorization ports.AuthorizationService
	Documents     *documents.Registry
	Clock         ports.Clock
	HubActor      markets.Actor
	Logger        *slog.Logger
}

func (u ReceiveMessageUseCase) Execute(ctx context.Context, cmd ReceiveMessageCommand) (ReceiveMessageResult, error) {
	logger := application.ResolveLogger(u.Logger)

	parser, err := u.Documents.Parser(cmd.DocumentType, cmd.Format)
	if err != nil {
		return ReceiveMessageResult{
			Errors: []domainerrors.ValidationError{domainerrors.InvalidMessageType(string(cmd.DocumentType))},
		}, nil
	}
	parsed, err := parser.Parse(cmd.Payload)
	if err != nil {
		if errors.Is(err, documents.ErrMalformedDocument) {
			return ReceiveMessageResult{
				Errors: []domainerrors.ValidationError{domainerrors.MalformedDocument(string(cmd.Format))},
			}, nil
		}
		return ReceiveMessageResult{}, err
	}
	envelope := envelopeFromDocument(parsed)

	logger.Info("inbound envelope received",
		"event", "intake_envelope_received",
		"module", "market-exchange/incoming-message-service",
		"layer", "application",
		"message_id", envelope.MessageID,
		"sender", envelope.Sender.Number.String(),
		"document_type", string(envelope.DocumentType),
		"transaction_count", len(envelope.Transactions),
	)

	violations, err := u.validate(ctx, cmd, envelope)
	if err != nil {
		return ReceiveMessageResult{}, err
	}
	if len(violations) > 0 {
		logger.Info("inbound envelope rejected",
			"event", "intake_envelope_rejected",
			"module", "market-exchange/incoming-message-service",
			"layer", "application",
			"message_id", envelope.MessageID,
			"error_count", len(violations),
		)
		return ReceiveMessageResult{Errors: violations}, nil
	}

	registration := ports.EnvelopeRegistration{
		SenderNumber:   envelope.Sender.Number,
		MessageID:      envelope.MessageID,
		TransactionIDs: envelope.TransactionIDs(),
		AcceptedAt:     u.Clock.Now().UTC(),
	}
	if err := u.Registry.CommitEnvelope(ctx, registration); err != nil {
		// The pre-check and the commit are not atomic with respect to a
		// concurrent submission of the same ids. The registry's uniqueness
		// constraint is the source of truth: translate the violation into the
		// same duplicate errors the pre-check would have produced.
		if errors.Is(err, domainerrors.ErrDuplicateRegistration) {
			duplicates, recheckErr := u.duplicateErrors(ctx, envelope)
			if recheckErr != nil {
				return ReceiveMessageResult{}, recheckErr
			}
			if len(duplicates) == 0 {
				duplicates = []domainerrors.ValidationError{domainerrors.DuplicateMessageIDDetected(envelope.MessageID)}
			}
			return ReceiveMessageResult{Errors: duplicates}, nil
		}
		logger.Error("envelope commit failed",
			"event", "intake_commit_failed",
			"module", "market-exchange/incoming-message-service",
			"layer", "application",
			"message_id", envelope.MessageID,
			"error", err.Error(),
		)
		return ReceiveMessageResult{}, err
	}

	logger.Info("inbound envelope accepted",
		"event", "intake_envelope_accepted",
		"module", "market-exchange/incoming-message-service",
		"layer", "application",
		"message_id", envelope.MessageID,
		"sender", envelope.Sender.Number.String(),
	)
	return ReceiveMessageResult{MessageID: envelope.MessageID}, nil
}

// validate runs the independent header checks concurrently, then the
// identifier and duplicate checks. Results keep a stable order: header
// violations first, then message id, then per-transaction violations.
func (u ReceiveMessageUseCase) validate(
	ctx context.Context,
	cmd ReceiveMessageCommand,
	envelope entities.InboundEnvelope,
) ([]domainerrors.ValidationError, error) {
	headerSlots := make([][]domainerrors.ValidationError, 4)
	group, groupCtx := errgroup.WithContext(ctx)

	group.Go(func() error {
		errs, err := u.checkSenderAuthorization(groupCtx, cmd, envelope)
		headerSlots[0] = errs
		return err
	})
	group.Go(func() error {
		headerSlots[1] = u.checkReceiver(envelope)
		return nil
	})
	group.Go(func() error {
		headerSlots[2] = u.checkMessageType(cmd, envelope)
		return nil
	})
	group.Go(func() error {
		headerSlots[3] = u.checkBusinessReason(envelope)
		return nil
	})
	if err := group.Wait(); err != nil {
		return nil, err
	}

	var violations []domainerrors.ValidationError
	for _, slot := range headerSlots {
		violations = append(violations, slot...)
	}

	if !entities.ValidIdentifier(envelope.MessageID) {
		violations = append(violations, domainerrors.InvalidMessageID(envelope.MessageID))
	}

	seen := make(map[string]struct{}, len(envelope.Transactions))
	var checkable []string
	for _, record := range envelope.Transactions {
		if !entities.ValidIdentifier(record.TransactionID) {
			violations = append(violations, domainerrors.InvalidTransactionID(record.TransactionID))
			continue
		}
		// The later occurrence inside the same envelope is the duplicate.
		if _, dup := seen[record.TransactionID]; dup {
			violations = append(violations, domainerrors.DuplicateTransactionIDDetected(record.TransactionID))
			continue
		}
		seen[record.TransactionID] = struct{}{}
		checkable = append(checkable, record.TransactionID)
	}

	if entities.ValidIdentifier(envelope.MessageID) {
		exists, err := u.Registry.MessageIDExists(ctx, envelope.Sender.Number, envelope.MessageID)
		if err != nil {
			return nil, err
		}
		if exists {
			violations = append(violations, domainerrors.DuplicateMessageIDDetected(envelope.MessageID))
		}
	}
	if len(checkable) > 0 {
		existing, err := u.Registry.ExistingTransactionIDs(ctx, envelope.Sender.Number, checkable)
		if err != nil {
			return nil, err
		}
		for _, id := range existing {
			violations = append(violations, domainerrors.DuplicateTransactionIDDetected(id))
		}
	}
	return violations, nil
}

func (u ReceiveMessageUseCase) checkSenderAuthorization(
	ctx context.Context,
	cmd ReceiveMessageCommand,
	envelope entities.InboundEnvelope,
) ([]domainerrors.ValidationError, error) {
	sender := envelope.Sender
	if sender.Validate() != nil || sender != cmd.Caller {
		return []domainerrors.ValidationError{domainerrors.SenderNotAuthorized(sender.Number.String())}, nil
	}
	authorized, err := u.Authorization.IsAuthorized(ctx, sender.Number, sender.Role, cmd.CallerIdentity)
	if err != nil {
		return nil, err
	}
	if !authorized {
		return []domainerrors.ValidationError{domainerrors.SenderNotAuthorized(sender.Number.String())}, nil
	}
	return nil, nil
}

func (u ReceiveMessageUseCase) checkReceiver(envelope entities.InboundEnvelope) []domainerrors.ValidationError {
	hub := u.HubActor
	if hub.Number == "" {
		hub = markets.HubActor
	}
	if envelope.Receiver != hub {
		return []domainerrors.ValidationError{domainerrors.InvalidReceiver(envelope.Receiver.Number.String())}
	}
	return nil
}

func (u ReceiveMessageUseCase) checkMessageType(
	cmd ReceiveMessageCommand,
	envelope entities.InboundEnvelope,
) []domainerrors.ValidationError {
	if !envelope.DocumentType.Valid() || envelope.DocumentType != cmd.DocumentType {
		return []domainerrors.ValidationError{domainerrors.InvalidMessageType(string(envelope.DocumentType))}
	}
	if !envelope.DocumentType.SenderRoleAllowed(envelope.Sender.Role) {
		return []domainerrors.ValidationError{domainerrors.SenderNotAuthorized(envelope.Sender.Number.String())}
	}
	return nil
}

func (u ReceiveMessageUseCase) checkBusinessReason(envelope entities.InboundEnvelope) []domainerrors.ValidationError {
	if !envelope.BusinessReason.Valid() {
		return []domainerrors.ValidationError{domainerrors.InvalidBusinessReason(string(envelope.BusinessReason))}
	}
	return nil
}

func (u ReceiveMessageUseCase) duplicateErrors(
	ctx context.Context,
	envelope entities.InboundEnvelope,
) ([]domainerrors.ValidationError, error) {
	var duplicates []domainerrors.ValidationError
	exists, err := u.Registry.MessageIDExists(ctx, envelope.Sender.Number, envelope.MessageID)
	if err != nil {
		return nil, err
	}
	if exists {
		duplicates = append(duplicates, domainerrors.DuplicateMessageIDDetected(envelope.MessageID))
	}
	existing, err := u.Registry.ExistingTransactionIDs(ctx, envelope.Sender.Number, envelope.TransactionIDs())
	if err != nil {
		return nil, err
	}
	for _, id := range existing {
		duplicates = append(duplicates, domainerrors.DuplicateTransactionIDDetected(id))
	}
	return duplicates, nil
}

func envelopeFromDocument(parsed documents.ParsedDocument) entities.InboundEnvelope {
	envelope := entities.InboundEnvelope{
		MessageID: parsed.Header.MessageID,
		Sender: markets.Actor{
			Number: parsed.Header.SenderNumber,
			Role:   parsed.Header.SenderRole,
		},
		Receiver: markets.Actor{
			Number: parsed.Header.ReceiverNumber,
			Role:   parsed.Header.ReceiverRole,
		},
		DocumentType:   parsed.Header.DocumentType,
		BusinessReason: parsed.Header.BusinessReason,
		CreatedAt:      parsed.Header.CreatedAt,
	}
	for _, record := range parsed.Transactions {
		envelope.Transactions = append(envelope.Transactions, entities.TransactionRecord{
			TransactionID: record.TransactionID,
			Payload:       record.Payload,
		})
	}
	return envelope
}
