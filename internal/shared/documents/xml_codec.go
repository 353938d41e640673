package documents

import (
	"encoding/xml"
	"fmt"
	"time"

	"gridgate/internal/shared/markets"
)

type xmlDocument struct {
	XMLName            xml.Name `xml:"MarketDocument"`
	MessageID          string   `xml:"MessageId"`
	DocumentType       string   `xml:"Type"`
	SenderNumber       string   `xml:"Sender>Number"`
	SenderRoleCode     string   `xml:"Sender>Role"`
	ReceiverNumber     string   `xml:"Receiver>Number"`
	ReceiverRoleCode   string   `xml:"Receiver>Role"`
	BusinessReasonCode string   `xml:"BusinessReason"`
	CreatedAt          string   `xml:"CreatedAt"`
	Series             []xmlTransaction
}

type xmlTransaction struct {
	XMLName       xml.Name `xml:"Series"`
	TransactionID string   `xml:"TransactionId"`
	Payload       string   `xml:",cdata"`
}

// XMLWriter serializes a bundle into the outgoing XML document shape. Record
// payloads are carried verbatim inside CDATA sections.
type XMLWriter struct {
	DocumentType markets.DocumentType
}

func (w XMLWriter) Write(header Header, payloads [][]byte) ([]byte, error) {
	body := xmlDocument{
		MessageID:          header.MessageID,
		DocumentType:       string(w.DocumentType),
		SenderNumber:       header.SenderNumber.String(),
		SenderRoleCode:     header.SenderRole.Code(),
		ReceiverNumber:     header.ReceiverNumber.String(),
		ReceiverRoleCode:   header.ReceiverRole.Code(),
		BusinessReasonCode: header.BusinessReason.Code(),
		CreatedAt:          header.CreatedAt.UTC().Format(time.RFC3339),
	}
	for i, payload := range payloads {
		body.Series = append(body.Series, xmlTransaction{
			TransactionID: fmt.Sprintf("%s-%d", header.MessageID, i+1),
			Payload:       string(payload),
		})
	}
	encoded, err := xml.MarshalIndent(body, "", "  ")
	if err != nil {
		return nil, err
	}
	return append([]byte(xml.Header), encoded...), nil
}
