package errors

import "errors"

var (
	ErrInvalidOutgoingMessage = errors.New("outgoing message is missing required fields")
	ErrBundleNotFound         = errors.New("bundle not found")
	ErrBundleNotPeeked        = errors.New("bundle has not been peeked")
	ErrBundleAlreadyPeeked    = errors.New("bundle was already peeked")
	ErrBundleAlreadyDequeued  = errors.New("bundle was already dequeued")
	ErrOpenBundleConflict     = errors.New("another open bundle exists for this mailbox")
	ErrBlobNotFound           = errors.New("blob reference not found")
)
