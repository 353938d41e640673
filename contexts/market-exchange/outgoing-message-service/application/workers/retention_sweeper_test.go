package workers_test

import (
	"context"
	"testing"
	"time"

	"gridgate/contexts/market-exchange/outgoing-message-service/adapters/memory"
	"gridgate/contexts/market-exchange/outgoing-message-service/application/commands"
	"gridgate/contexts/market-exchange/outgoing-message-service/application/queries"
	"gridgate/contexts/market-exchange/outgoing-message-service/application/workers"
	"gridgate/contexts/market-exchange/outgoing-message-service/domain/entities"
	"gridgate/internal/shared/documents"
	"gridgate/internal/shared/markets"
)

var supplier = markets.Actor{
	Number: "5790000000001",
	Role:   markets.RoleEnergySupplier,
}

// dequeuedBundle drives one message through enqueue, peek and dequeue at the
// store's pinned clock, leaving a dequeued bundle behind.
func dequeuedBundle(t *testing.T, store *memory.Store) string {
	t.Helper()
	enqueue := commands.EnqueueMessageUseCase{
		Messages:    store,
		Bundles:     store,
		Blobs:       store,
		Clock:       store,
		IDGenerator: store,
	}
	if _, err := enqueue.Execute(context.Background(), commands.EnqueueMessageCommand{
		DocumentReceiver: supplier,
		DocumentType:     markets.DocumentNotifyAggregatedMeasureData,
		BusinessReason:   markets.ReasonBalanceFixing,
		Payload:          []byte(`{"point":"p1"}`),
	}); err != nil {
		t.Fatalf("enqueue failed: %v", err)
	}

	peek := queries.PeekUseCase{
		Messages:  store,
		Bundles:   store,
		Locks:     store,
		Blobs:     store,
		Documents: documents.NewDefaultRegistry(),
		Clock:     store,
		IDGen:     store,
		HubActor:  markets.HubActor,
	}
	peeked, err := peek.Execute(context.Background(), queries.PeekQuery{
		Actor:    supplier,
		Category: markets.CategoryAggregations,
	})
	if err != nil || !peeked.Found {
		t.Fatalf("peek failed: found=%v err=%v", peeked.Found, err)
	}

	dequeue := commands.DequeueUseCase{Bundles: store, Clock: store}
	ack, err := dequeue.Execute(context.Background(), commands.DequeueCommand{
		MessageID: peeked.MessageID,
		Actor:     supplier,
	})
	if err != nil || !ack.Success {
		t.Fatalf("dequeue failed: success=%v err=%v", ack.Success, err)
	}
	return peeked.MessageID
}

func TestRetentionSweeperHonorsWindowBoundary(t *testing.T) {
	store := memory.NewStore()
	now := time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)

	store.SetNow(now.Add(-31 * 24 * time.Hour))
	expiredMessage := dequeuedBundle(t, store)
	store.SetNow(now.Add(-29 * 24 * time.Hour))
	recentMessage := dequeuedBundle(t, store)

	store.SetNow(now)
	sweeper := workers.RetentionSweeper{
		Messages: store,
		Bundles:  store,
		Blobs:    store,
		Clock:    store,
	}
	deleted, err := sweeper.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("sweep failed: %v", err)
	}
	if deleted != 1 {
		t.Fatalf("expected 1 purged bundle, got %d", deleted)
	}

	if _, found, _ := store.BundleByPeekedMessageID(context.Background(), expiredMessage, supplier); found {
		t.Fatalf("expected 31-day-old bundle to be purged")
	}
	if _, found, _ := store.BundleByPeekedMessageID(context.Background(), recentMessage, supplier); !found {
		t.Fatalf("expected 29-day-old bundle to survive")
	}

	again, err := sweeper.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("second sweep failed: %v", err)
	}
	if again != 0 {
		t.Fatalf("expected idempotent sweep, got %d", again)
	}
}

func TestRetentionSweeperDrainsInBatches(t *testing.T) {
	store := memory.NewStore()
	now := time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)

	store.SetNow(now.Add(-40 * 24 * time.Hour))
	for i := 0; i < 3; i++ {
		dequeuedBundle(t, store)
	}

	store.SetNow(now)
	sweeper := workers.RetentionSweeper{
		Messages:  store,
		Bundles:   store,
		Blobs:     store,
		Clock:     store,
		BatchSize: 2,
	}
	deleted, err := sweeper.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("sweep failed: %v", err)
	}
	if deleted != 3 {
		t.Fatalf("expected all 3 bundles purged across batches, got %d", deleted)
	}
}

func TestRetentionSweeperReclaimsOrphanedMessages(t *testing.T) {
	store := memory.NewStore()
	now := time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)

	// A message whose enqueue died between insert and attach: blob and row
	// exist, but no bundle references them.
	orphanedAt := now.Add(-31 * 24 * time.Hour)
	orphan, err := entities.NewOutgoingMessage(
		"orphan-1",
		supplier,
		supplier,
		markets.DocumentNotifyAggregatedMeasureData,
		markets.ReasonBalanceFixing,
		"aggregations/5790000000001/2026-03-01/orphan-1",
		orphanedAt,
	)
	if err != nil {
		t.Fatalf("new message failed: %v", err)
	}
	if err := store.Put(context.Background(), orphan.PayloadRef, []byte(`{"point":"p1"}`)); err != nil {
		t.Fatalf("blob put failed: %v", err)
	}
	if err := store.Insert(context.Background(), orphan); err != nil {
		t.Fatalf("insert failed: %v", err)
	}

	store.SetNow(now)
	sweeper := workers.RetentionSweeper{
		Messages: store,
		Bundles:  store,
		Blobs:    store,
		Clock:    store,
	}
	deleted, err := sweeper.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("sweep failed: %v", err)
	}
	if deleted != 1 {
		t.Fatalf("expected the orphan to be reclaimed, got %d", deleted)
	}

	remaining, err := store.UnassignedBefore(context.Background(), now, 10)
	if err != nil {
		t.Fatalf("unassigned lookup failed: %v", err)
	}
	if len(remaining) != 0 {
		t.Fatalf("expected no orphaned rows after sweep, got %d", len(remaining))
	}
	if _, err := store.Get(context.Background(), orphan.PayloadRef); err == nil {
		t.Fatalf("expected the orphan's blob to be deleted")
	}
}

func TestRetentionSweeperDeletesMessageRows(t *testing.T) {
	store := memory.NewStore()
	now := time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)

	store.SetNow(now.Add(-31 * 24 * time.Hour))
	dequeuedBundle(t, store)

	store.SetNow(now)
	sweeper := workers.RetentionSweeper{
		Messages: store,
		Bundles:  store,
		Blobs:    store,
		Clock:    store,
	}
	if _, err := sweeper.RunOnce(context.Background()); err != nil {
		t.Fatalf("sweep failed: %v", err)
	}
	count, err := store.CountAvailable(context.Background(), supplier.Number)
	if err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected no message rows after purge, got %d", count)
	}
}
