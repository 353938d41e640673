// Package incomingmessageservice contains the gateway's intake side: the
// fail-slow envelope validator and the durable idempotency registry that
// rejects replayed message and transaction identifiers.
//
// The module keeps domain/application logic decoupled from runtime/platform
// concerns through ports and adapter composition.
package incomingmessageservice
