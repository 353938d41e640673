package incomingmessageservice

import (
	"log/slog"

	"gridgate/contexts/market-exchange/incoming-message-service/adapters/memory"
	"gridgate/contexts/market-exchange/incoming-message-service/application/commands"
	"gridgate/contexts/market-exchange/incoming-message-service/ports"
	"gridgate/internal/shared/documents"
	"gridgate/internal/shared/markets"
)

// Module is the composition surface of the intake side. Runtime wiring
// consumes ReceiveMessage; Store is exposed for tests/inspection.
type Module struct {
	ReceiveMessage commands.ReceiveMessageUseCase
	Store          *memory.Store
}

type Dependencies struct {
	Registry      ports.IdempotencyRegistry
	Authorization ports.AuthorizationService
	Documents     *documents.Registry
	Clock         ports.Clock
	HubActor      markets.Actor
	Logger        *slog.Logger
}

// NewModule wires the intake use case against explicit ports.
func NewModule(deps Dependencies) Module {
	return Module{
		ReceiveMessage: commands.ReceiveMessageUseCase{
			Registry:      deps.Registry,
			Authorization: deps.Authorization,
			Documents:     deps.Documents,
			Clock:         deps.Clock,
			HubActor:      deps.HubActor,
			Logger:        deps.Logger,
		},
	}
}

// NewInMemoryModule wires the intake use case against in-memory adapters for
// tests and local runtime.
func NewInMemoryModule(logger *slog.Logger) Module {
	store := memory.NewStore()
	module := NewModule(Dependencies{
		Registry:      store,
		Authorization: store,
		Documents:     documents.NewDefaultRegistry(),
		Clock:         store,
		HubActor:      markets.HubActor,
		Logger:        logger,
	})
	module.Store = store
	return module
}
