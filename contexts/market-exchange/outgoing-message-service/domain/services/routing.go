package services

import "gridgate/internal/shared/markets"

// queueRoleOverrides is the explicit rerouting policy for document types
// whose results are served from a different role's mailbox than the role
// written inside the document. Wholesale settlement results always land in
// the energy-supplier queue, also when the document receiver acts as
// balance responsible party. There is no general rule; rerouting a new
// document type means adding it here.
var queueRoleOverrides = map[markets.DocumentType]markets.ActorRole{
	markets.DocumentNotifyWholesaleServices:          markets.RoleEnergySupplier,
	markets.DocumentRejectRequestWholesaleSettlement: markets.RoleEnergySupplier,
}

// ResolveQueueReceiver returns the mailbox actor a message for the given
// document receiver is routed to.
func ResolveQueueReceiver(documentReceiver markets.Actor, documentType markets.DocumentType) markets.Actor {
	if role, ok := queueRoleOverrides[documentType]; ok {
		return markets.Actor{Number: documentReceiver.Number, Role: role}
	}
	return documentReceiver
}
