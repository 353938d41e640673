package commands

import (
	"context"
	"log/slog"

	application "gridgate/contexts/market-exchange/outgoing-message-service/application"
	"gridgate/contexts/market-exchange/outgoing-message-service/ports"
	"gridgate/internal/shared/markets"
)

type DequeueCommand struct {
	MessageID string
	Actor     markets.Actor
}

type DequeueResult struct {
	Success bool
}

// DequeueUseCase is the single acknowledgement point of the pull protocol.
// After a successful dequeue the actor is considered to have received the
// document exactly once; repeated or unknown acknowledgements report failure
// without side effects.
type DequeueUseCase struct {
	Bundles ports.BundleRepository
	Clock   ports.Clock
	Logger  *slog.Logger
}

func (u DequeueUseCase) Execute(ctx context.Context, cmd DequeueCommand) (DequeueResult, error) {
	logger := application.ResolveLogger(u.Logger)

	bundle, found, err := u.Bundles.BundleByPeekedMessageID(ctx, cmd.MessageID, cmd.Actor)
	if err != nil {
		return DequeueResult{}, err
	}
	if !found || bundle.Dequeued() {
		return DequeueResult{Success: false}, nil
	}

	dequeued, err := u.Bundles.MarkDequeued(ctx, bundle.ID, u.Clock.Now().UTC())
	if err != nil {
		return DequeueResult{}, err
	}
	if !dequeued {
		return DequeueResult{Success: false}, nil
	}

	logger.Info("bundle dequeued",
		"event", "mailbox_bundle_dequeued",
		"module", "market-exchange/outgoing-message-service",
		"layer", "application",
		"bundle_id", bundle.ID,
		"peeked_message_id", cmd.MessageID,
		"receiver", cmd.Actor.Number.String(),
	)
	return DequeueResult{Success: true}, nil
}
