package commands_test

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"gridgate/contexts/market-exchange/incoming-message-service/adapters/memory"
	"gridgate/contexts/market-exchange/incoming-message-service/application/commands"
	"gridgate/contexts/market-exchange/incoming-message-service/domain/entities"
	domainerrors "gridgate/contexts/market-exchange/incoming-message-service/domain/errors"
	"gridgate/contexts/market-exchange/incoming-message-service/ports"
	"gridgate/internal/shared/documents"
	"gridgate/internal/shared/markets"
)

const (
	senderNumber = "5790000000001"
	hubNumber    = "5790001330552"
)

// fixedID pads a readable seed to the exact wire identifier length.
func fixedID(seed string) string {
	return seed + strings.Repeat("0", entities.IdentifierLength-len(seed))
}

func newIntakeUseCase(store *memory.Store) commands.ReceiveMessageUseCase {
	return commands.ReceiveMessageUseCase{
		Registry:      store,
		Authorization: store,
		Documents:     documents.NewDefaultRegistry(),
		Clock:         store,
		HubActor:      markets.HubActor,
	}
}

func supplierCommand(payload []byte) commands.ReceiveMessageCommand {
	return commands.ReceiveMessageCommand{
		Payload:      payload,
		Format:       documents.FormatJSON,
		DocumentType: markets.DocumentRequestAggregatedMeasureData,
		Caller: markets.Actor{
			Number: senderNumber,
			Role:   markets.RoleEnergySupplier,
		},
		CallerIdentity: senderNumber,
	}
}

func requestDocument(t *testing.T, messageID string, transactionIDs ...string) []byte {
	t.Helper()
	series := make([]map[string]any, 0, len(transactionIDs))
	for _, id := range transactionIDs {
		series = append(series, map[string]any{
			"transactionId": fixedID(id),
			"payload":       map[string]any{"meteringPoint": "571313100000000001"},
		})
	}
	raw, err := json.Marshal(map[string]any{
		"messageId":          fixedID(messageID),
		"senderNumber":       senderNumber,
		"senderRoleCode":     "DDQ",
		"receiverNumber":     hubNumber,
		"receiverRoleCode":   "DDZ",
		"businessReasonCode": "D04",
		"documentType":       "RequestAggregatedMeasureData",
		"createdAt":          "2026-02-01T10:00:00Z",
		"series":             series,
	})
	if err != nil {
		t.Fatalf("marshal request document: %v", err)
	}
	return raw
}

func errorCodes(errs []domainerrors.ValidationError) map[string]int {
	codes := make(map[string]int, len(errs))
	for _, item := range errs {
		codes[item.Code]++
	}
	return codes
}

func TestReceiveMessageAcceptsValidEnvelope(t *testing.T) {
	store := memory.NewStore()
	store.Grant(senderNumber, markets.RoleEnergySupplier, senderNumber)
	uc := newIntakeUseCase(store)

	result, err := uc.Execute(context.Background(), supplierCommand(requestDocument(t, "msg-001", "tx-001", "tx-002")))
	if err != nil {
		t.Fatalf("execute failed: %v", err)
	}
	if !result.Success() {
		t.Fatalf("expected acceptance, got errors %v", result.Errors)
	}
	if result.MessageID != fixedID("msg-001") {
		t.Fatalf("expected message id %q, got %q", fixedID("msg-001"), result.MessageID)
	}
}

func TestReceiveMessageRejectsReplayedEnvelope(t *testing.T) {
	store := memory.NewStore()
	store.Grant(senderNumber, markets.RoleEnergySupplier, senderNumber)
	uc := newIntakeUseCase(store)

	payload := requestDocument(t, "msg-001", "tx-001")
	if _, err := uc.Execute(context.Background(), supplierCommand(payload)); err != nil {
		t.Fatalf("first execute failed: %v", err)
	}
	replay, err := uc.Execute(context.Background(), supplierCommand(payload))
	if err != nil {
		t.Fatalf("replay execute failed: %v", err)
	}
	if replay.Success() {
		t.Fatalf("expected replay to be rejected")
	}
	codes := errorCodes(replay.Errors)
	if codes[domainerrors.CodeDuplicateMessageIDDetected] != 1 {
		t.Fatalf("expected duplicate message id error, got %v", replay.Errors)
	}
	if codes[domainerrors.CodeDuplicateTransactionIDDetected] != 1 {
		t.Fatalf("expected duplicate transaction id error, got %v", replay.Errors)
	}
}

func TestReceiveMessageRejectsCrossEnvelopeTransactionReplay(t *testing.T) {
	store := memory.NewStore()
	store.Grant(senderNumber, markets.RoleEnergySupplier, senderNumber)
	uc := newIntakeUseCase(store)

	if _, err := uc.Execute(context.Background(), supplierCommand(requestDocument(t, "msg-001", "tx-001"))); err != nil {
		t.Fatalf("first execute failed: %v", err)
	}
	second, err := uc.Execute(context.Background(), supplierCommand(requestDocument(t, "msg-002", "tx-001", "tx-002")))
	if err != nil {
		t.Fatalf("second execute failed: %v", err)
	}
	if second.Success() {
		t.Fatalf("expected rejection for replayed transaction id")
	}
	codes := errorCodes(second.Errors)
	if codes[domainerrors.CodeDuplicateTransactionIDDetected] != 1 {
		t.Fatalf("expected exactly one duplicate transaction error, got %v", second.Errors)
	}
	if codes[domainerrors.CodeDuplicateMessageIDDetected] != 0 {
		t.Fatalf("message id msg-002 is fresh, got %v", second.Errors)
	}

	// The whole envelope is rejected: tx-002 must still be free.
	third, err := uc.Execute(context.Background(), supplierCommand(requestDocument(t, "msg-003", "tx-002")))
	if err != nil {
		t.Fatalf("third execute failed: %v", err)
	}
	if !third.Success() {
		t.Fatalf("expected tx-002 to remain unregistered after rejection, got %v", third.Errors)
	}
}

func TestReceiveMessageRejectsDuplicateTransactionWithinEnvelope(t *testing.T) {
	store := memory.NewStore()
	store.Grant(senderNumber, markets.RoleEnergySupplier, senderNumber)
	uc := newIntakeUseCase(store)

	result, err := uc.Execute(context.Background(), supplierCommand(requestDocument(t, "msg-001", "tx-001", "tx-001")))
	if err != nil {
		t.Fatalf("execute failed: %v", err)
	}
	if result.Success() {
		t.Fatalf("expected rejection for intra-envelope duplicate")
	}
	codes := errorCodes(result.Errors)
	if codes[domainerrors.CodeDuplicateTransactionIDDetected] != 1 {
		t.Fatalf("expected one duplicate transaction error, got %v", result.Errors)
	}
}

func TestReceiveMessageReportsAllViolations(t *testing.T) {
	store := memory.NewStore()
	store.Grant(senderNumber, markets.RoleEnergySupplier, senderNumber)
	uc := newIntakeUseCase(store)

	longID := "123456789012345678901234567890123456789012345"
	raw, err := json.Marshal(map[string]any{
		"messageId":          longID,
		"senderNumber":       "5790000000099",
		"senderRoleCode":     "DDQ",
		"receiverNumber":     "5790000000055",
		"receiverRoleCode":   "DDZ",
		"businessReasonCode": "ZZZ",
		"documentType":       "RequestAggregatedMeasureData",
		"createdAt":          "2026-02-01T10:00:00Z",
		"series": []map[string]any{
			{"transactionId": "", "payload": map[string]any{}},
			{"transactionId": "tx-ok", "payload": map[string]any{}},
		},
	})
	if err != nil {
		t.Fatalf("marshal document: %v", err)
	}

	result, err := uc.Execute(context.Background(), supplierCommand(raw))
	if err != nil {
		t.Fatalf("execute failed: %v", err)
	}
	if result.Success() {
		t.Fatalf("expected rejection")
	}
	codes := errorCodes(result.Errors)
	for _, expected := range []string{
		domainerrors.CodeSenderNotAuthorized,
		domainerrors.CodeInvalidReceiver,
		domainerrors.CodeInvalidBusinessReason,
		domainerrors.CodeInvalidMessageID,
		domainerrors.CodeInvalidTransactionID,
	} {
		if codes[expected] == 0 {
			t.Fatalf("expected %s among errors, got %v", expected, result.Errors)
		}
	}
}

func TestReceiveMessageRejectsShortIdentifiers(t *testing.T) {
	store := memory.NewStore()
	store.Grant(senderNumber, markets.RoleEnergySupplier, senderNumber)
	uc := newIntakeUseCase(store)

	raw, err := json.Marshal(map[string]any{
		"messageId":          "short",
		"senderNumber":       senderNumber,
		"senderRoleCode":     "DDQ",
		"receiverNumber":     hubNumber,
		"receiverRoleCode":   "DDZ",
		"businessReasonCode": "D04",
		"documentType":       "RequestAggregatedMeasureData",
		"createdAt":          "2026-02-01T10:00:00Z",
		"series":             []map[string]any{{"transactionId": "tx-1", "payload": map[string]any{}}},
	})
	if err != nil {
		t.Fatalf("marshal document: %v", err)
	}

	result, err := uc.Execute(context.Background(), supplierCommand(raw))
	if err != nil {
		t.Fatalf("execute failed: %v", err)
	}
	if result.Success() {
		t.Fatalf("expected rejection for identifiers below the fixed length")
	}
	codes := errorCodes(result.Errors)
	if codes[domainerrors.CodeInvalidMessageID] != 1 {
		t.Fatalf("expected InvalidMessageId for a 5-char message id, got %v", result.Errors)
	}
	if codes[domainerrors.CodeInvalidTransactionID] != 1 {
		t.Fatalf("expected InvalidTransactionId for a 4-char transaction id, got %v", result.Errors)
	}
}

func TestReceiveMessageRejectsMalformedBody(t *testing.T) {
	store := memory.NewStore()
	store.Grant(senderNumber, markets.RoleEnergySupplier, senderNumber)
	uc := newIntakeUseCase(store)

	result, err := uc.Execute(context.Background(), supplierCommand([]byte(`{"messageId":`)))
	if err != nil {
		t.Fatalf("execute failed: %v", err)
	}
	if result.Success() {
		t.Fatalf("expected rejection for malformed body")
	}
	if len(result.Errors) != 1 || result.Errors[0].Code != domainerrors.CodeInvalidMessageFormat {
		t.Fatalf("expected single InvalidMessageFormat error, got %v", result.Errors)
	}
}

func TestReceiveMessageRejectsDisallowedSenderRole(t *testing.T) {
	store := memory.NewStore()
	store.Grant(senderNumber, markets.RoleDelegated, senderNumber)
	uc := newIntakeUseCase(store)

	raw, err := json.Marshal(map[string]any{
		"messageId":          fixedID("msg-001"),
		"senderNumber":       senderNumber,
		"senderRoleCode":     "DEL",
		"receiverNumber":     hubNumber,
		"receiverRoleCode":   "DDZ",
		"businessReasonCode": "D04",
		"documentType":       "RequestAggregatedMeasureData",
		"createdAt":          "2026-02-01T10:00:00Z",
		"series":             []map[string]any{{"transactionId": fixedID("tx-001"), "payload": map[string]any{}}},
	})
	if err != nil {
		t.Fatalf("marshal document: %v", err)
	}

	cmd := supplierCommand(raw)
	cmd.Caller = markets.Actor{Number: senderNumber, Role: markets.RoleDelegated}
	result, err := uc.Execute(context.Background(), cmd)
	if err != nil {
		t.Fatalf("execute failed: %v", err)
	}
	if result.Success() {
		t.Fatalf("expected rejection for role not allowed to submit requests")
	}
	if errorCodes(result.Errors)[domainerrors.CodeSenderNotAuthorized] == 0 {
		t.Fatalf("expected SenderNotAuthorized, got %v", result.Errors)
	}
}

// racingRegistry simulates a concurrent submitter winning between the
// pre-check and the commit: the first existence check reports the id as
// free while the committed store already holds it.
type racingRegistry struct {
	inner     *memory.Store
	prechecks int
}

func (r *racingRegistry) MessageIDExists(ctx context.Context, sender markets.ActorNumber, messageID string) (bool, error) {
	r.prechecks++
	if r.prechecks == 1 {
		return false, nil
	}
	return r.inner.MessageIDExists(ctx, sender, messageID)
}

func (r *racingRegistry) ExistingTransactionIDs(
	ctx context.Context,
	sender markets.ActorNumber,
	transactionIDs []string,
) ([]string, error) {
	if r.prechecks <= 1 {
		return nil, nil
	}
	return r.inner.ExistingTransactionIDs(ctx, sender, transactionIDs)
}

func (r *racingRegistry) CommitEnvelope(ctx context.Context, registration ports.EnvelopeRegistration) error {
	return r.inner.CommitEnvelope(ctx, registration)
}

func TestReceiveMessageTranslatesCommitRaceIntoDuplicateErrors(t *testing.T) {
	store := memory.NewStore()
	store.Grant(senderNumber, markets.RoleEnergySupplier, senderNumber)
	if err := store.CommitEnvelope(context.Background(), ports.EnvelopeRegistration{
		SenderNumber:   senderNumber,
		MessageID:      fixedID("msg-001"),
		TransactionIDs: []string{fixedID("tx-001")},
		AcceptedAt:     store.Now(),
	}); err != nil {
		t.Fatalf("seed commit failed: %v", err)
	}

	uc := newIntakeUseCase(store)
	uc.Registry = &racingRegistry{inner: store}

	result, err := uc.Execute(context.Background(), supplierCommand(requestDocument(t, "msg-001", "tx-001")))
	if err != nil {
		t.Fatalf("execute failed: %v", err)
	}
	if result.Success() {
		t.Fatalf("expected commit race to surface as duplicate rejection")
	}
	codes := errorCodes(result.Errors)
	if codes[domainerrors.CodeDuplicateMessageIDDetected] != 1 {
		t.Fatalf("expected duplicate message id error, got %v", result.Errors)
	}
	if codes[domainerrors.CodeDuplicateTransactionIDDetected] != 1 {
		t.Fatalf("expected duplicate transaction id error, got %v", result.Errors)
	}
}
