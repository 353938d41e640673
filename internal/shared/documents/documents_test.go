package documents_test

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"gridgate/internal/shared/documents"
	"gridgate/internal/shared/markets"
)

func TestRegistryResolvesInboundParsers(t *testing.T) {
	registry := documents.NewDefaultRegistry()
	if _, err := registry.Parser(markets.DocumentRequestAggregatedMeasureData, documents.FormatJSON); err != nil {
		t.Fatalf("expected JSON parser for aggregation requests: %v", err)
	}
	if _, err := registry.Parser(markets.DocumentNotifyAggregatedMeasureData, documents.FormatJSON); err == nil {
		t.Fatalf("notify documents are outbound only; no parser expected")
	}
	if _, err := registry.Writer(markets.DocumentNotifyAggregatedMeasureData, documents.FormatXML); err != nil {
		t.Fatalf("expected XML writer for notify documents: %v", err)
	}
}

func TestJSONParserResolvesHeaderCodes(t *testing.T) {
	parser := documents.JSONParser{DocumentType: markets.DocumentRequestAggregatedMeasureData}
	parsed, err := parser.Parse([]byte(`{
		"messageId": " msg-001 ",
		"senderNumber": "5790000000001",
		"senderRoleCode": "DDQ",
		"receiverNumber": "5790001330552",
		"receiverRoleCode": "DDZ",
		"businessReasonCode": "D04",
		"documentType": "RequestAggregatedMeasureData",
		"createdAt": "2026-02-01T10:00:00Z",
		"series": [{"transactionId": "tx-001", "payload": {"point": "p1"}}]
	}`))
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if parsed.Header.MessageID != "msg-001" {
		t.Fatalf("expected trimmed message id, got %q", parsed.Header.MessageID)
	}
	if parsed.Header.SenderRole != markets.RoleEnergySupplier {
		t.Fatalf("expected resolved sender role, got %q", parsed.Header.SenderRole)
	}
	if parsed.Header.BusinessReason != markets.ReasonBalanceFixing {
		t.Fatalf("expected resolved business reason, got %q", parsed.Header.BusinessReason)
	}
	if len(parsed.Transactions) != 1 || parsed.Transactions[0].TransactionID != "tx-001" {
		t.Fatalf("unexpected transactions %v", parsed.Transactions)
	}
}

func TestJSONParserRejectsUnknownFields(t *testing.T) {
	parser := documents.JSONParser{DocumentType: markets.DocumentRequestAggregatedMeasureData}
	_, err := parser.Parse([]byte(`{"messageId": "m", "surprise": true}`))
	if err == nil {
		t.Fatalf("expected error for unknown field")
	}
}

func TestJSONWriterNumbersSeries(t *testing.T) {
	writer := documents.JSONWriter{DocumentType: markets.DocumentNotifyAggregatedMeasureData}
	document, err := writer.Write(documents.Header{
		MessageID:      "out-001",
		SenderNumber:   markets.HubActor.Number,
		SenderRole:     markets.HubActor.Role,
		ReceiverNumber: "5790000000001",
		ReceiverRole:   markets.RoleEnergySupplier,
		DocumentType:   markets.DocumentNotifyAggregatedMeasureData,
		BusinessReason: markets.ReasonBalanceFixing,
		CreatedAt:      time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}, [][]byte{[]byte(`{"point":"p1"}`), []byte(`{"point":"p2"}`)})
	if err != nil {
		t.Fatalf("write failed: %v", err)
	}

	var body struct {
		Series []struct {
			TransactionID string          `json:"transactionId"`
			Payload       json.RawMessage `json:"payload"`
		} `json:"series"`
	}
	if err := json.Unmarshal(document, &body); err != nil {
		t.Fatalf("unmarshal written document: %v", err)
	}
	if len(body.Series) != 2 {
		t.Fatalf("expected 2 series entries, got %d", len(body.Series))
	}
	if body.Series[0].TransactionID != "out-001-1" || body.Series[1].TransactionID != "out-001-2" {
		t.Fatalf("unexpected transaction ids %s, %s", body.Series[0].TransactionID, body.Series[1].TransactionID)
	}
}

func TestXMLWriterEmitsDeclaration(t *testing.T) {
	writer := documents.XMLWriter{DocumentType: markets.DocumentNotifyAggregatedMeasureData}
	document, err := writer.Write(documents.Header{
		MessageID:      "out-001",
		SenderNumber:   markets.HubActor.Number,
		SenderRole:     markets.HubActor.Role,
		ReceiverNumber: "5790000000001",
		ReceiverRole:   markets.RoleEnergySupplier,
		DocumentType:   markets.DocumentNotifyAggregatedMeasureData,
		BusinessReason: markets.ReasonBalanceFixing,
		CreatedAt:      time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}, [][]byte{[]byte(`{"point":"p1"}`)})
	if err != nil {
		t.Fatalf("write failed: %v", err)
	}
	if !strings.HasPrefix(string(document), "<?xml") {
		t.Fatalf("expected XML declaration prefix, got %q", string(document[:20]))
	}
}

func TestFormatFromContentType(t *testing.T) {
	if format, ok := documents.FormatFromContentType("application/json; charset=utf-8"); !ok || format != documents.FormatJSON {
		t.Fatalf("expected JSON format, got %q ok=%v", format, ok)
	}
	if format, ok := documents.FormatFromContentType("application/xml"); !ok || format != documents.FormatXML {
		t.Fatalf("expected XML format, got %q ok=%v", format, ok)
	}
	if _, ok := documents.FormatFromContentType("text/csv"); ok {
		t.Fatalf("expected csv to be unsupported")
	}
}
