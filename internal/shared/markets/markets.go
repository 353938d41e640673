// Package markets holds the closed market vocabulary shared by the exchange
// services: actor identities, roles, business reasons, document types and
// message categories, with static code/name lookup tables.
package markets

import (
	"errors"
	"strings"
)

var (
	ErrInvalidActorNumber    = errors.New("actor number must be a 13-digit GLN or a 16-character EIC")
	ErrUnknownActorRole      = errors.New("unknown actor role")
	ErrUnknownBusinessReason = errors.New("unknown business reason")
	ErrUnknownDocumentType   = errors.New("unknown document type")
	ErrUnknownCategory       = errors.New("unknown message category")
)

// ActorNumber is a GLN (13 digits) or EIC (16 alphanumeric) market identifier.
type ActorNumber string

func (n ActorNumber) String() string { return string(n) }

func (n ActorNumber) Validate() error {
	value := strings.TrimSpace(string(n))
	switch len(value) {
	case 13:
		for _, r := range value {
			if r < '0' || r > '9' {
				return ErrInvalidActorNumber
			}
		}
		return nil
	case 16:
		for _, r := range value {
			if !(r >= '0' && r <= '9') && !(r >= 'A' && r <= 'Z') && r != '-' {
				return ErrInvalidActorNumber
			}
		}
		return nil
	default:
		return ErrInvalidActorNumber
	}
}

// ActorRole is the closed set of market participant roles.
type ActorRole string

const (
	RoleEnergySupplier             ActorRole = "EnergySupplier"
	RoleGridOperator               ActorRole = "GridOperator"
	RoleBalanceResponsibleParty    ActorRole = "BalanceResponsibleParty"
	RoleMeteredDataResponsible     ActorRole = "MeteredDataResponsible"
	RoleMeteringPointAdministrator ActorRole = "MeteringPointAdministrator"
	RoleSystemOperator             ActorRole = "SystemOperator"
	RoleDelegated                  ActorRole = "Delegated"
)

// roleCodes maps roles to their ebIX party role codes.
var roleCodes = map[ActorRole]string{
	RoleEnergySupplier:             "DDQ",
	RoleGridOperator:               "DDM",
	RoleBalanceResponsibleParty:    "DDK",
	RoleMeteredDataResponsible:     "MDR",
	RoleMeteringPointAdministrator: "DDZ",
	RoleSystemOperator:             "EZ",
	RoleDelegated:                  "DEL",
}

var rolesByCode = invert(roleCodes)

func (r ActorRole) Code() string { return roleCodes[r] }

func (r ActorRole) Valid() bool {
	_, ok := roleCodes[r]
	return ok
}

func RoleFromCode(code string) (ActorRole, error) {
	if role, ok := rolesByCode[strings.ToUpper(strings.TrimSpace(code))]; ok {
		return role, nil
	}
	return "", ErrUnknownActorRole
}

func RoleFromName(name string) (ActorRole, error) {
	role := ActorRole(strings.TrimSpace(name))
	if role.Valid() {
		return role, nil
	}
	return "", ErrUnknownActorRole
}

// Actor is the (number, role) identity tuple referenced by value everywhere.
type Actor struct {
	Number ActorNumber
	Role   ActorRole
}

func (a Actor) Validate() error {
	if err := a.Number.Validate(); err != nil {
		return err
	}
	if !a.Role.Valid() {
		return ErrUnknownActorRole
	}
	return nil
}

// BusinessReason classifies the business process a document belongs to.
// Messages in one bundle must all carry the same reason.
type BusinessReason string

const (
	ReasonPreliminaryAggregation BusinessReason = "PreliminaryAggregation"
	ReasonBalanceFixing          BusinessReason = "BalanceFixing"
	ReasonWholesaleFixing        BusinessReason = "WholesaleFixing"
	ReasonCorrection             BusinessReason = "Correction"
	ReasonPeriodicMetering       BusinessReason = "PeriodicMetering"
	ReasonMoveIn                 BusinessReason = "MoveIn"
)

var reasonCodes = map[BusinessReason]string{
	ReasonPreliminaryAggregation: "D03",
	ReasonBalanceFixing:          "D04",
	ReasonWholesaleFixing:        "D05",
	ReasonCorrection:             "D32",
	ReasonPeriodicMetering:       "E23",
	ReasonMoveIn:                 "E65",
}

var reasonsByCode = invert(reasonCodes)

func (b BusinessReason) Code() string { return reasonCodes[b] }

func (b BusinessReason) Valid() bool {
	_, ok := reasonCodes[b]
	return ok
}

func ReasonFromCode(code string) (BusinessReason, error) {
	if reason, ok := reasonsByCode[strings.ToUpper(strings.TrimSpace(code))]; ok {
		return reason, nil
	}
	return "", ErrUnknownBusinessReason
}

// MessageCategory routes outgoing messages into separate actor mailboxes.
type MessageCategory string

const (
	CategoryAggregations MessageCategory = "Aggregations"
	CategoryMasterData   MessageCategory = "MasterData"
	CategoryMeasureData  MessageCategory = "MeasureData"
	CategoryNone         MessageCategory = "None"
)

func (c MessageCategory) Valid() bool {
	switch c {
	case CategoryAggregations, CategoryMasterData, CategoryMeasureData, CategoryNone:
		return true
	default:
		return false
	}
}

func CategoryFromName(name string) (MessageCategory, error) {
	for _, c := range []MessageCategory{CategoryAggregations, CategoryMasterData, CategoryMeasureData, CategoryNone} {
		if strings.EqualFold(string(c), strings.TrimSpace(name)) {
			return c, nil
		}
	}
	return "", ErrUnknownCategory
}

// DocumentType identifies a market document family on the wire.
type DocumentType string

const (
	DocumentRequestAggregatedMeasureData       DocumentType = "RequestAggregatedMeasureData"
	DocumentNotifyAggregatedMeasureData        DocumentType = "NotifyAggregatedMeasureData"
	DocumentRejectRequestAggregatedMeasureData DocumentType = "RejectRequestAggregatedMeasureData"
	DocumentRequestWholesaleSettlement         DocumentType = "RequestWholesaleSettlement"
	DocumentNotifyWholesaleServices            DocumentType = "NotifyWholesaleServices"
	DocumentRejectRequestWholesaleSettlement   DocumentType = "RejectRequestWholesaleSettlement"
)

type documentProfile struct {
	category    MessageCategory
	senderRoles []ActorRole
}

// documentProfiles carries per-type routing and submission rules. Inbound
// request types list the roles permitted to submit them; outbound notify and
// reject types have no submitting role.
var documentProfiles = map[DocumentType]documentProfile{
	DocumentRequestAggregatedMeasureData: {
		category:    CategoryAggregations,
		senderRoles: []ActorRole{RoleEnergySupplier, RoleBalanceResponsibleParty, RoleMeteredDataResponsible, RoleGridOperator},
	},
	DocumentNotifyAggregatedMeasureData:        {category: CategoryAggregations},
	DocumentRejectRequestAggregatedMeasureData: {category: CategoryAggregations},
	DocumentRequestWholesaleSettlement: {
		category:    CategoryAggregations,
		senderRoles: []ActorRole{RoleEnergySupplier, RoleSystemOperator, RoleGridOperator},
	},
	DocumentNotifyWholesaleServices:          {category: CategoryAggregations},
	DocumentRejectRequestWholesaleSettlement: {category: CategoryAggregations},
}

func (d DocumentType) Valid() bool {
	_, ok := documentProfiles[d]
	return ok
}

// Category returns the mailbox category documents of this type are routed to.
func (d DocumentType) Category() MessageCategory {
	if profile, ok := documentProfiles[d]; ok {
		return profile.category
	}
	return CategoryNone
}

// SenderRoleAllowed reports whether the role may submit documents of this type.
func (d DocumentType) SenderRoleAllowed(role ActorRole) bool {
	profile, ok := documentProfiles[d]
	if !ok {
		return false
	}
	for _, allowed := range profile.senderRoles {
		if allowed == role {
			return true
		}
	}
	return false
}

func DocumentTypeFromName(name string) (DocumentType, error) {
	for candidate := range documentProfiles {
		if strings.EqualFold(string(candidate), strings.TrimSpace(name)) {
			return candidate, nil
		}
	}
	return "", ErrUnknownDocumentType
}

// HubActor is the exchange's own identity; inbound envelopes must name it as
// their receiver.
var HubActor = Actor{Number: "5790001330552", Role: RoleMeteringPointAdministrator}

func invert[K comparable, V comparable](in map[K]V) map[V]K {
	out := make(map[V]K, len(in))
	for k, v := range in {
		out[v] = k
	}
	return out
}
