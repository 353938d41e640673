package entities_test

import (
	"errors"
	"testing"
	"time"

	"gridgate/contexts/market-exchange/outgoing-message-service/domain/entities"
	domainerrors "gridgate/contexts/market-exchange/outgoing-message-service/domain/errors"
	"gridgate/internal/shared/markets"
)

func testMessage(t *testing.T, id string, reason markets.BusinessReason) entities.OutgoingMessage {
	t.Helper()
	receiver := markets.Actor{Number: "5790000000001", Role: markets.RoleEnergySupplier}
	message, err := entities.NewOutgoingMessage(
		id,
		receiver,
		receiver,
		markets.DocumentNotifyAggregatedMeasureData,
		reason,
		"aggregations/5790000000001/2026-03-01/"+id,
		time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	)
	if err != nil {
		t.Fatalf("new message failed: %v", err)
	}
	return message
}

func TestBundleLifecycle(t *testing.T) {
	message := testMessage(t, "m1", markets.ReasonBalanceFixing)
	bundle, err := entities.NewBundle("b1", message, 2, time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("new bundle failed: %v", err)
	}

	if err := bundle.MarkDequeued(time.Now()); !errors.Is(err, domainerrors.ErrBundleNotPeeked) {
		t.Fatalf("expected dequeue before peek to fail, got %v", err)
	}
	if err := bundle.MarkPeeked("out-1", "ref-1"); err != nil {
		t.Fatalf("mark peeked failed: %v", err)
	}
	if err := bundle.MarkPeeked("out-2", "ref-2"); !errors.Is(err, domainerrors.ErrBundleAlreadyPeeked) {
		t.Fatalf("expected second peek mark to fail, got %v", err)
	}
	if err := bundle.MarkDequeued(time.Now()); err != nil {
		t.Fatalf("mark dequeued failed: %v", err)
	}
	if err := bundle.MarkDequeued(time.Now()); !errors.Is(err, domainerrors.ErrBundleAlreadyDequeued) {
		t.Fatalf("expected second dequeue mark to fail, got %v", err)
	}
}

func TestBundleCanAccept(t *testing.T) {
	base := testMessage(t, "m1", markets.ReasonBalanceFixing)
	bundle, err := entities.NewBundle("b1", base, 1, time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("new bundle failed: %v", err)
	}

	if !bundle.CanAccept(base) {
		t.Fatalf("expected fresh bundle to accept a matching message")
	}
	if bundle.CanAccept(testMessage(t, "m2", markets.ReasonCorrection)) {
		t.Fatalf("expected reason mismatch to be refused")
	}

	bundle.MessageCount = 1
	if bundle.CanAccept(base) {
		t.Fatalf("expected full bundle to refuse messages")
	}

	bundle.MessageCount = 0
	if err := bundle.MarkPeeked("out-1", "ref-1"); err != nil {
		t.Fatalf("mark peeked failed: %v", err)
	}
	if bundle.CanAccept(base) {
		t.Fatalf("expected peeked bundle to refuse messages")
	}
}
