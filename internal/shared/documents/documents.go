// Package documents holds the wire-format boundary of the exchange: a parser
// registry for inbound market documents and a writer registry for outbound
// ones, both keyed by (DocumentType, DocumentFormat).
package documents

import (
	"errors"
	"strings"
	"time"

	"gridgate/internal/shared/markets"
)

var (
	ErrUnsupportedDocumentFormat = errors.New("no codec registered for document type and format")
	ErrMalformedDocument         = errors.New("document body could not be parsed")
)

// DocumentFormat is the declared serialization of a document body.
type DocumentFormat string

const (
	FormatJSON DocumentFormat = "Json"
	FormatXML  DocumentFormat = "Xml"
)

func FormatFromContentType(contentType string) (DocumentFormat, bool) {
	mediaType, _, _ := strings.Cut(contentType, ";")
	switch strings.ToLower(strings.TrimSpace(mediaType)) {
	case "application/json", "":
		return FormatJSON, true
	case "application/xml", "text/xml":
		return FormatXML, true
	default:
		return "", false
	}
}

// Header carries the identifying fields of a market document. The gateway
// core only ever needs the header and the transaction id list, never the
// business payload itself.
type Header struct {
	MessageID      string
	SenderNumber   markets.ActorNumber
	SenderRole     markets.ActorRole
	ReceiverNumber markets.ActorNumber
	ReceiverRole   markets.ActorRole
	DocumentType   markets.DocumentType
	BusinessReason markets.BusinessReason
	CreatedAt      time.Time
}

// Transaction is one business transaction inside a parsed document.
type Transaction struct {
	TransactionID string
	Payload       []byte
}

// ParsedDocument is the format-neutral result of parsing an inbound body.
type ParsedDocument struct {
	Header       Header
	Transactions []Transaction
}

// Parser decodes one (DocumentType, DocumentFormat) pair.
type Parser interface {
	Parse(raw []byte) (ParsedDocument, error)
}

// Writer serializes a materialized bundle into one outgoing document.
type Writer interface {
	Write(header Header, payloads [][]byte) ([]byte, error)
}

type codecKey struct {
	documentType markets.DocumentType
	format       DocumentFormat
}

// Registry maps codec keys to implementations. Lookup is a plain key match;
// registering the same key twice replaces the earlier codec.
type Registry struct {
	parsers map[codecKey]Parser
	writers map[codecKey]Writer
}

func NewRegistry() *Registry {
	return &Registry{
		parsers: make(map[codecKey]Parser),
		writers: make(map[codecKey]Writer),
	}
}

func (r *Registry) RegisterParser(documentType markets.DocumentType, format DocumentFormat, parser Parser) {
	r.parsers[codecKey{documentType: documentType, format: format}] = parser
}

func (r *Registry) RegisterWriter(documentType markets.DocumentType, format DocumentFormat, writer Writer) {
	r.writers[codecKey{documentType: documentType, format: format}] = writer
}

func (r *Registry) Parser(documentType markets.DocumentType, format DocumentFormat) (Parser, error) {
	if parser, ok := r.parsers[codecKey{documentType: documentType, format: format}]; ok {
		return parser, nil
	}
	return nil, ErrUnsupportedDocumentFormat
}

func (r *Registry) Writer(documentType markets.DocumentType, format DocumentFormat) (Writer, error) {
	if writer, ok := r.writers[codecKey{documentType: documentType, format: format}]; ok {
		return writer, nil
	}
	return nil, ErrUnsupportedDocumentFormat
}

// NewDefaultRegistry wires the codecs the gateway ships with: JSON for the
// request/notify/reject families and XML for the notify families.
func NewDefaultRegistry() *Registry {
	registry := NewRegistry()
	for _, documentType := range []markets.DocumentType{
		markets.DocumentRequestAggregatedMeasureData,
		markets.DocumentRequestWholesaleSettlement,
	} {
		registry.RegisterParser(documentType, FormatJSON, JSONParser{DocumentType: documentType})
	}
	for _, documentType := range []markets.DocumentType{
		markets.DocumentNotifyAggregatedMeasureData,
		markets.DocumentRejectRequestAggregatedMeasureData,
		markets.DocumentNotifyWholesaleServices,
		markets.DocumentRejectRequestWholesaleSettlement,
	} {
		registry.RegisterWriter(documentType, FormatJSON, JSONWriter{DocumentType: documentType})
		registry.RegisterWriter(documentType, FormatXML, XMLWriter{DocumentType: documentType})
	}
	return registry
}
