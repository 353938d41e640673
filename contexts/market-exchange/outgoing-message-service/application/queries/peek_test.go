package queries_test

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"
	"time"

	"gridgate/contexts/market-exchange/outgoing-message-service/adapters/memory"
	"gridgate/contexts/market-exchange/outgoing-message-service/application/commands"
	"gridgate/contexts/market-exchange/outgoing-message-service/application/queries"
	"gridgate/contexts/market-exchange/outgoing-message-service/ports"
	"gridgate/internal/shared/documents"
	"gridgate/internal/shared/markets"
)

var supplier = markets.Actor{
	Number: "5790000000001",
	Role:   markets.RoleEnergySupplier,
}

type mailboxFixture struct {
	store   *memory.Store
	enqueue commands.EnqueueMessageUseCase
	peek    queries.PeekUseCase
	dequeue commands.DequeueUseCase
}

func newMailboxFixture(maxBundleSize int) mailboxFixture {
	store := memory.NewStore()
	store.SetNow(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	return mailboxFixture{
		store: store,
		enqueue: commands.EnqueueMessageUseCase{
			Messages:      store,
			Bundles:       store,
			Blobs:         store,
			Clock:         store,
			IDGenerator:   store,
			MaxBundleSize: maxBundleSize,
		},
		peek: queries.PeekUseCase{
			Messages:  store,
			Bundles:   store,
			Locks:     store,
			Blobs:     store,
			Documents: documents.NewDefaultRegistry(),
			Clock:     store,
			IDGen:     store,
			HubActor:  markets.HubActor,
		},
		dequeue: commands.DequeueUseCase{
			Bundles: store,
			Clock:   store,
		},
	}
}

func (f mailboxFixture) enqueueNotify(t *testing.T, payload string) commands.EnqueueMessageResult {
	t.Helper()
	result, err := f.enqueue.Execute(context.Background(), commands.EnqueueMessageCommand{
		DocumentReceiver: supplier,
		DocumentType:     markets.DocumentNotifyAggregatedMeasureData,
		BusinessReason:   markets.ReasonBalanceFixing,
		Payload:          []byte(payload),
	})
	if err != nil {
		t.Fatalf("enqueue failed: %v", err)
	}
	return result
}

func (f mailboxFixture) peekAggregations(t *testing.T) queries.PeekResult {
	t.Helper()
	result, err := f.peek.Execute(context.Background(), queries.PeekQuery{
		Actor:    supplier,
		Category: markets.CategoryAggregations,
	})
	if err != nil {
		t.Fatalf("peek failed: %v", err)
	}
	return result
}

func seriesCount(t *testing.T, document []byte) int {
	t.Helper()
	var body struct {
		Series []json.RawMessage `json:"series"`
	}
	if err := json.Unmarshal(document, &body); err != nil {
		t.Fatalf("unmarshal peeked document: %v", err)
	}
	return len(body.Series)
}

func TestPeekEmptyMailbox(t *testing.T) {
	f := newMailboxFixture(10)
	result := f.peekAggregations(t)
	if result.Found {
		t.Fatalf("expected empty mailbox, got message %s", result.MessageID)
	}
}

func TestPeekIsIdempotentUntilDequeue(t *testing.T) {
	f := newMailboxFixture(10)
	f.enqueueNotify(t, `{"point":"p1"}`)
	f.enqueueNotify(t, `{"point":"p2"}`)

	first := f.peekAggregations(t)
	if !first.Found {
		t.Fatalf("expected a document")
	}
	second := f.peekAggregations(t)
	if !second.Found {
		t.Fatalf("expected repeated peek to find the document")
	}
	if first.MessageID != second.MessageID {
		t.Fatalf("expected identical message id, got %s and %s", first.MessageID, second.MessageID)
	}
	if !bytes.Equal(first.Document, second.Document) {
		t.Fatalf("expected byte-identical document on repeated peek")
	}
}

// Three messages into bundles of at most two: the first peek serves a
// two-record document, the next peek after its dequeue serves the remaining
// one-record document, and a third peek finds the mailbox empty.
func TestPeekDequeueProgressionAcrossBundles(t *testing.T) {
	f := newMailboxFixture(2)
	f.enqueueNotify(t, `{"point":"p1"}`)
	f.enqueueNotify(t, `{"point":"p2"}`)
	f.enqueueNotify(t, `{"point":"p3"}`)

	first := f.peekAggregations(t)
	if !first.Found {
		t.Fatalf("expected first document")
	}
	if got := seriesCount(t, first.Document); got != 2 {
		t.Fatalf("expected 2 records in first document, got %d", got)
	}

	ack, err := f.dequeue.Execute(context.Background(), commands.DequeueCommand{
		MessageID: first.MessageID,
		Actor:     supplier,
	})
	if err != nil {
		t.Fatalf("dequeue failed: %v", err)
	}
	if !ack.Success {
		t.Fatalf("expected dequeue to succeed")
	}

	second := f.peekAggregations(t)
	if !second.Found {
		t.Fatalf("expected second document")
	}
	if second.MessageID == first.MessageID {
		t.Fatalf("expected a new message id after dequeue")
	}
	if got := seriesCount(t, second.Document); got != 1 {
		t.Fatalf("expected 1 record in second document, got %d", got)
	}

	if ack, err := f.dequeue.Execute(context.Background(), commands.DequeueCommand{
		MessageID: second.MessageID,
		Actor:     supplier,
	}); err != nil || !ack.Success {
		t.Fatalf("second dequeue failed: success=%v err=%v", ack.Success, err)
	}
	if final := f.peekAggregations(t); final.Found {
		t.Fatalf("expected empty mailbox after both dequeues")
	}
}

func TestPeekContendedLockReturnsEmpty(t *testing.T) {
	f := newMailboxFixture(10)
	enq := f.enqueueNotify(t, `{"point":"p1"}`)

	if acquired, err := f.store.TryAcquire(context.Background(), enq.BundleID); err != nil || !acquired {
		t.Fatalf("seed lock failed: acquired=%v err=%v", acquired, err)
	}
	contended := f.peekAggregations(t)
	if contended.Found {
		t.Fatalf("expected empty result while another caller holds the bundle lock")
	}

	if err := f.store.Release(context.Background(), enq.BundleID); err != nil {
		t.Fatalf("release failed: %v", err)
	}
	released := f.peekAggregations(t)
	if !released.Found {
		t.Fatalf("expected document after the lock is released")
	}
}

// A holder that crashed mid-build never releases its lock. Once the lock is
// older than the build timeout, the next peek must take it over instead of
// leaving the mailbox blocked forever.
func TestPeekRecoversAbandonedBundleLock(t *testing.T) {
	f := newMailboxFixture(10)
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	enq := f.enqueueNotify(t, `{"point":"p1"}`)

	if acquired, err := f.store.TryAcquire(context.Background(), enq.BundleID); err != nil || !acquired {
		t.Fatalf("seed lock failed: acquired=%v err=%v", acquired, err)
	}
	if blocked := f.peekAggregations(t); blocked.Found {
		t.Fatalf("expected empty result while the lock is fresh")
	}

	f.store.SetNow(start.Add(ports.LockBuildTimeout + time.Minute))
	recovered := f.peekAggregations(t)
	if !recovered.Found {
		t.Fatalf("expected peek to take over the abandoned lock and serve the document")
	}
}

func TestPeekFreezesBundleAgainstLaterEnqueues(t *testing.T) {
	f := newMailboxFixture(10)
	before := f.enqueueNotify(t, `{"point":"p1"}`)

	first := f.peekAggregations(t)
	if !first.Found || seriesCount(t, first.Document) != 1 {
		t.Fatalf("expected one-record document")
	}

	after := f.enqueueNotify(t, `{"point":"p2"}`)
	if after.BundleID == before.BundleID {
		t.Fatalf("expected enqueue after peek to open a new bundle")
	}

	repeat := f.peekAggregations(t)
	if repeat.MessageID != first.MessageID || seriesCount(t, repeat.Document) != 1 {
		t.Fatalf("expected frozen bundle to keep serving the original document")
	}
}

func TestPeekDocumentHeaderNamesHubAsSender(t *testing.T) {
	f := newMailboxFixture(10)
	f.enqueueNotify(t, `{"point":"p1"}`)

	result := f.peekAggregations(t)
	var body struct {
		MessageID      string `json:"messageId"`
		SenderNumber   string `json:"senderNumber"`
		ReceiverNumber string `json:"receiverNumber"`
		DocumentType   string `json:"documentType"`
	}
	if err := json.Unmarshal(result.Document, &body); err != nil {
		t.Fatalf("unmarshal document: %v", err)
	}
	if body.SenderNumber != markets.HubActor.Number.String() {
		t.Fatalf("expected hub as sender, got %s", body.SenderNumber)
	}
	if body.ReceiverNumber != supplier.Number.String() {
		t.Fatalf("expected supplier as receiver, got %s", body.ReceiverNumber)
	}
	if body.MessageID != result.MessageID {
		t.Fatalf("expected document message id %s, got %s", result.MessageID, body.MessageID)
	}
	if body.DocumentType != string(markets.DocumentNotifyAggregatedMeasureData) {
		t.Fatalf("unexpected document type %s", body.DocumentType)
	}
}
