package outgoingmessageservice

import (
	"log/slog"
	"time"

	"gridgate/contexts/market-exchange/outgoing-message-service/adapters/memory"
	"gridgate/contexts/market-exchange/outgoing-message-service/application/commands"
	"gridgate/contexts/market-exchange/outgoing-message-service/application/queries"
	"gridgate/contexts/market-exchange/outgoing-message-service/application/workers"
	"gridgate/contexts/market-exchange/outgoing-message-service/ports"
	"gridgate/internal/shared/documents"
	"gridgate/internal/shared/markets"
)

// Module is the composition surface of the mailbox side. Runtime wiring
// consumes the use cases and workers; Store is exposed for tests/inspection.
type Module struct {
	Enqueue          commands.EnqueueMessageUseCase
	Peek             queries.PeekUseCase
	Dequeue          commands.DequeueUseCase
	MessageCount     queries.MessageCountUseCase
	RetentionSweeper workers.RetentionSweeper
	ResultConsumer   workers.ResultAvailableConsumer
	Store            *memory.Store
}

type Dependencies struct {
	Messages        ports.OutgoingMessageRepository
	Bundles         ports.BundleRepository
	Locks           ports.BundleLockStore
	Blobs           ports.BlobStore
	Dedup           ports.EventDedupStore
	Subscriber      ports.EventSubscriber
	Documents       *documents.Registry
	Clock           ports.Clock
	IDGenerator     ports.IDGenerator
	HubActor        markets.Actor
	MaxBundleSize   int
	RetentionWindow time.Duration
	SweepBatchSize  int
	Logger          *slog.Logger
}

// NewModule wires the mailbox use cases and workers against explicit ports.
func NewModule(deps Dependencies) Module {
	enqueue := commands.EnqueueMessageUseCase{
		Messages:      deps.Messages,
		Bundles:       deps.Bundles,
		Blobs:         deps.Blobs,
		Clock:         deps.Clock,
		IDGenerator:   deps.IDGenerator,
		MaxBundleSize: deps.MaxBundleSize,
		Logger:        deps.Logger,
	}
	return Module{
		Enqueue: enqueue,
		Peek: queries.PeekUseCase{
			Messages:  deps.Messages,
			Bundles:   deps.Bundles,
			Locks:     deps.Locks,
			Blobs:     deps.Blobs,
			Documents: deps.Documents,
			Clock:     deps.Clock,
			IDGen:     deps.IDGenerator,
			HubActor:  deps.HubActor,
			Logger:    deps.Logger,
		},
		Dequeue: commands.DequeueUseCase{
			Bundles: deps.Bundles,
			Clock:   deps.Clock,
			Logger:  deps.Logger,
		},
		MessageCount: queries.MessageCountUseCase{
			Messages: deps.Messages,
		},
		RetentionSweeper: workers.RetentionSweeper{
			Messages:        deps.Messages,
			Bundles:         deps.Bundles,
			Blobs:           deps.Blobs,
			Clock:           deps.Clock,
			RetentionWindow: deps.RetentionWindow,
			BatchSize:       deps.SweepBatchSize,
			Logger:          deps.Logger,
		},
		ResultConsumer: workers.ResultAvailableConsumer{
			Subscriber: deps.Subscriber,
			Enqueue:    enqueue,
			Dedup:      deps.Dedup,
			Clock:      deps.Clock,
			Logger:     deps.Logger,
		},
	}
}

// NewInMemoryModule wires the mailbox use cases against in-memory adapters
// for tests and local runtime.
func NewInMemoryModule(logger *slog.Logger) Module {
	store := memory.NewStore()
	module := NewModule(Dependencies{
		Messages:    store,
		Bundles:     store,
		Locks:       store,
		Blobs:       store,
		Dedup:       store,
		Documents:   documents.NewDefaultRegistry(),
		Clock:       store,
		IDGenerator: store,
		HubActor:    markets.HubActor,
		Logger:      logger,
	})
	module.Store = store
	return module
}
