// Package outgoingmessageservice contains the gateway's delivery side: the
// actor mailbox that accumulates produced result messages into bundles, the
// peek/dequeue protocol that serves them with exactly-once consumption
// semantics, and the retention sweeper that purges dequeued bundles.
//
// The module keeps domain/application logic decoupled from runtime/platform
// concerns through ports and adapter composition.
package outgoingmessageservice
