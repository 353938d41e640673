package queries

import (
	"context"

	"gridgate/contexts/market-exchange/outgoing-message-service/ports"
	"gridgate/internal/shared/markets"
)

type MessageCountQuery struct {
	ActorNumber markets.ActorNumber
}

type MessageCountResult struct {
	Count int
}

// MessageCountUseCase reports how many messages currently await the actor
// across all of its mailboxes, so clients can poll cheaply before peeking.
type MessageCountUseCase struct {
	Messages ports.OutgoingMessageRepository
}

func (u MessageCountUseCase) Execute(ctx context.Context, query MessageCountQuery) (MessageCountResult, error) {
	count, err := u.Messages.CountAvailable(ctx, query.ActorNumber)
	if err != nil {
		return MessageCountResult{}, err
	}
	return MessageCountResult{Count: count}, nil
}
