package errors

import (
	"errors"
	"fmt"
)

var (
	ErrEnvelopeRequired      = errors.New("inbound envelope is required")
	ErrDuplicateRegistration = errors.New("message or transaction id already registered")
)

// Validation error codes returned to submitters. The intake validator is
// fail-slow: every violation found is reported, in discovery order.
const (
	CodeInvalidMessageID               = "InvalidMessageId"
	CodeInvalidTransactionID           = "InvalidTransactionId"
	CodeSenderNotAuthorized            = "SenderNotAuthorized"
	CodeInvalidReceiver                = "InvalidReceiver"
	CodeInvalidMessageType             = "InvalidMessageType"
	CodeInvalidBusinessReason          = "InvalidBusinessReason"
	CodeDuplicateMessageIDDetected     = "DuplicateMessageIdDetected"
	CodeDuplicateTransactionIDDetected = "DuplicateTransactionIdDetected"
	CodeInvalidMessageFormat           = "InvalidMessageFormat"
)

// ValidationError is one client-caused violation found in an envelope.
type ValidationError struct {
	Code    string
	Message string
	Target  string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func InvalidMessageID(id string) ValidationError {
	return ValidationError{
		Code:    CodeInvalidMessageID,
		Message: "message id must be exactly 36 characters",
		Target:  id,
	}
}

func InvalidTransactionID(id string) ValidationError {
	return ValidationError{
		Code:    CodeInvalidTransactionID,
		Message: "transaction id must be exactly 36 characters",
		Target:  id,
	}
}

func SenderNotAuthorized(actorNumber string) ValidationError {
	return ValidationError{
		Code:    CodeSenderNotAuthorized,
		Message: "sender is not authorized to submit this document type",
		Target:  actorNumber,
	}
}

func InvalidReceiver(actorNumber string) ValidationError {
	return ValidationError{
		Code:    CodeInvalidReceiver,
		Message: "receiver must be the market data hub",
		Target:  actorNumber,
	}
}

func InvalidMessageType(documentType string) ValidationError {
	return ValidationError{
		Code:    CodeInvalidMessageType,
		Message: "document type is not accepted by the exchange",
		Target:  documentType,
	}
}

func InvalidBusinessReason(reason string) ValidationError {
	return ValidationError{
		Code:    CodeInvalidBusinessReason,
		Message: "business reason is not in the accepted set",
		Target:  reason,
	}
}

func MalformedDocument(format string) ValidationError {
	return ValidationError{
		Code:    CodeInvalidMessageFormat,
		Message: "document body could not be parsed as the declared format",
		Target:  format,
	}
}

func DuplicateMessageIDDetected(id string) ValidationError {
	return ValidationError{
		Code:    CodeDuplicateMessageIDDetected,
		Message: fmt.Sprintf("message id %q was already accepted for this sender", id),
		Target:  id,
	}
}

func DuplicateTransactionIDDetected(id string) ValidationError {
	return ValidationError{
		Code:    CodeDuplicateTransactionIDDetected,
		Message: fmt.Sprintf("transaction id %q was already accepted for this sender", id),
		Target:  id,
	}
}
