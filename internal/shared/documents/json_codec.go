package documents

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"gridgate/internal/shared/markets"
)

type jsonDocument struct {
	MessageID          string            `json:"messageId"`
	SenderNumber       string            `json:"senderNumber"`
	SenderRoleCode     string            `json:"senderRoleCode"`
	ReceiverNumber     string            `json:"receiverNumber"`
	ReceiverRoleCode   string            `json:"receiverRoleCode"`
	BusinessReasonCode string            `json:"businessReasonCode"`
	DocumentType       string            `json:"documentType"`
	CreatedAt          time.Time         `json:"createdAt"`
	Series             []jsonTransaction `json:"series"`
}

type jsonTransaction struct {
	TransactionID string          `json:"transactionId"`
	Payload       json.RawMessage `json:"payload"`
}

// JSONParser decodes one inbound document type from its JSON body. Role and
// reason codes are resolved through the static market tables; resolution
// failures surface as zero values for the validator to reject, not as parse
// errors, so the caller can report every header problem at once.
type JSONParser struct {
	DocumentType markets.DocumentType
}

func (p JSONParser) Parse(raw []byte) (ParsedDocument, error) {
	var body jsonDocument
	decoder := json.NewDecoder(strings.NewReader(string(raw)))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&body); err != nil {
		return ParsedDocument{}, fmt.Errorf("%w: %v", ErrMalformedDocument, err)
	}

	senderRole, _ := markets.RoleFromCode(body.SenderRoleCode)
	receiverRole, _ := markets.RoleFromCode(body.ReceiverRoleCode)
	reason, _ := markets.ReasonFromCode(body.BusinessReasonCode)

	document := ParsedDocument{
		Header: Header{
			MessageID:      strings.TrimSpace(body.MessageID),
			SenderNumber:   markets.ActorNumber(strings.TrimSpace(body.SenderNumber)),
			SenderRole:     senderRole,
			ReceiverNumber: markets.ActorNumber(strings.TrimSpace(body.ReceiverNumber)),
			ReceiverRole:   receiverRole,
			DocumentType:   p.DocumentType,
			BusinessReason: reason,
			CreatedAt:      body.CreatedAt,
		},
	}
	for _, series := range body.Series {
		document.Transactions = append(document.Transactions, Transaction{
			TransactionID: strings.TrimSpace(series.TransactionID),
			Payload:       append([]byte(nil), series.Payload...),
		})
	}
	return document, nil
}

// JSONWriter serializes a bundle into the outgoing JSON document shape.
type JSONWriter struct {
	DocumentType markets.DocumentType
}

func (w JSONWriter) Write(header Header, payloads [][]byte) ([]byte, error) {
	body := jsonDocument{
		MessageID:          header.MessageID,
		SenderNumber:       header.SenderNumber.String(),
		SenderRoleCode:     header.SenderRole.Code(),
		ReceiverNumber:     header.ReceiverNumber.String(),
		ReceiverRoleCode:   header.ReceiverRole.Code(),
		BusinessReasonCode: header.BusinessReason.Code(),
		DocumentType:       string(w.DocumentType),
		CreatedAt:          header.CreatedAt.UTC(),
		Series:             make([]jsonTransaction, 0, len(payloads)),
	}
	for i, payload := range payloads {
		body.Series = append(body.Series, jsonTransaction{
			TransactionID: fmt.Sprintf("%s-%d", header.MessageID, i+1),
			Payload:       json.RawMessage(payload),
		})
	}
	return json.MarshalIndent(body, "", "  ")
}
