package entities

import (
	"time"

	domainerrors "gridgate/contexts/market-exchange/outgoing-message-service/domain/errors"
	"gridgate/internal/shared/markets"
)

// OutgoingMessage is one produced result artifact waiting in an actor
// mailbox. The serialized record lives in the blob store under PayloadRef;
// the row is mutated only to set AssignedBundleID and deleted only by the
// retention sweeper.
type OutgoingMessage struct {
	ID               string
	Receiver         markets.Actor
	DocumentReceiver markets.Actor
	DocumentType     markets.DocumentType
	BusinessReason   markets.BusinessReason
	PayloadRef       string
	AssignedBundleID string
	CreatedAt        time.Time
}

func NewOutgoingMessage(
	id string,
	receiver markets.Actor,
	documentReceiver markets.Actor,
	documentType markets.DocumentType,
	reason markets.BusinessReason,
	payloadRef string,
	createdAt time.Time,
) (OutgoingMessage, error) {
	if id == "" || payloadRef == "" {
		return OutgoingMessage{}, domainerrors.ErrInvalidOutgoingMessage
	}
	if receiver.Validate() != nil || documentReceiver.Validate() != nil {
		return OutgoingMessage{}, domainerrors.ErrInvalidOutgoingMessage
	}
	if !documentType.Valid() || !reason.Valid() {
		return OutgoingMessage{}, domainerrors.ErrInvalidOutgoingMessage
	}
	return OutgoingMessage{
		ID:               id,
		Receiver:         receiver,
		DocumentReceiver: documentReceiver,
		DocumentType:     documentType,
		BusinessReason:   reason,
		PayloadRef:       payloadRef,
		CreatedAt:        createdAt.UTC(),
	}, nil
}
