package httpserver

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strings"

	incomingmessageservice "gridgate/contexts/market-exchange/incoming-message-service"
	intakecommands "gridgate/contexts/market-exchange/incoming-message-service/application/commands"
	intakehttp "gridgate/contexts/market-exchange/incoming-message-service/transport/http"
	outgoingmessageservice "gridgate/contexts/market-exchange/outgoing-message-service"
	mailboxcommands "gridgate/contexts/market-exchange/outgoing-message-service/application/commands"
	mailboxqueries "gridgate/contexts/market-exchange/outgoing-message-service/application/queries"
	mailboxhttp "gridgate/contexts/market-exchange/outgoing-message-service/transport/http"
	"gridgate/internal/shared/documents"
	"gridgate/internal/shared/markets"

	httpSwagger "github.com/swaggo/http-swagger"
	_ "gridgate/internal/platform/httpserver/docs"
)

type Server struct {
	mux      *http.ServeMux
	logger   *slog.Logger
	addr     string
	intake   incomingmessageservice.Module
	mailbox  outgoingmessageservice.Module
}

func New(
	intake incomingmessageservice.Module,
	mailbox outgoingmessageservice.Module,
	logger *slog.Logger,
	addr string,
) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if addr == "" {
		addr = ":8080"
	}

	s := &Server{
		mux:     http.NewServeMux(),
		logger:  logger,
		addr:    addr,
		intake:  intake,
		mailbox: mailbox,
	}
	s.registerRoutes()
	return s
}

func (s *Server) Start() error {
	s.logger.Info("http server starting",
		"event", "http_server_starting",
		"module", "internal/platform/httpserver",
		"layer", "platform",
		"addr", s.addr,
	)
	return http.ListenAndServe(s.addr, s.mux)
}

// Handler exposes the routed mux for tests.
func (s *Server) Handler() http.Handler {
	return s.mux
}

func (s *Server) registerRoutes() {
	s.mux.Handle("/swagger/", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
	))

	s.mux.HandleFunc("POST /v1/messages/{document_type}", s.handleReceiveMessage)
	s.mux.HandleFunc("GET /v1/peek/{category}", s.handlePeek)
	s.mux.HandleFunc("DELETE /v1/dequeue/{message_id}", s.handleDequeue)
	s.mux.HandleFunc("GET /v1/messagecount", s.handleMessageCount)
}

func (s *Server) handleReceiveMessage(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.resolveActor(w, r)
	if !ok {
		return
	}

	documentType, err := markets.DocumentTypeFromName(r.PathValue("document_type"))
	if err != nil {
		writeError(w, http.StatusNotFound, "unknown_document_type", err.Error())
		return
	}

	format, ok := documents.FormatFromContentType(r.Header.Get("Content-Type"))
	if !ok {
		writeError(w, http.StatusUnsupportedMediaType, "unsupported_content_type",
			"content type must be application/json or application/xml")
		return
	}

	payload, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "unreadable_body", "request body could not be read")
		return
	}

	result, err := s.intake.ReceiveMessage.Execute(r.Context(), intakecommands.ReceiveMessageCommand{
		Payload:        payload,
		Format:         format,
		DocumentType:   documentType,
		Caller:         caller,
		CallerIdentity: caller.Number.String(),
	})
	if err != nil {
		s.logger.Error("intake failed",
			"event", "http_intake_failed",
			"module", "internal/platform/httpserver",
			"layer", "platform",
			"document_type", string(documentType),
			"error", err.Error(),
		)
		writeError(w, http.StatusInternalServerError, "internal_error", "internal server error")
		return
	}

	if !result.Success() {
		rejected := intakehttp.IntakeRejectedResponse{
			Errors: make([]intakehttp.IntakeErrorDTO, 0, len(result.Errors)),
		}
		for _, item := range result.Errors {
			rejected.Errors = append(rejected.Errors, intakehttp.IntakeErrorDTO{
				Code:    item.Code,
				Message: item.Message,
				Target:  item.Target,
			})
		}
		writeJSON(w, http.StatusBadRequest, rejected)
		return
	}
	writeJSON(w, http.StatusAccepted, intakehttp.IntakeAcceptedResponse{
		CorrelationID: result.MessageID,
	})
}

func (s *Server) handlePeek(w http.ResponseWriter, r *http.Request) {
	actor, ok := s.resolveActor(w, r)
	if !ok {
		return
	}

	category, err := markets.CategoryFromName(r.PathValue("category"))
	if err != nil {
		writeError(w, http.StatusNotFound, "unknown_category", err.Error())
		return
	}

	format := documents.FormatJSON
	if accepted, ok := documents.FormatFromContentType(r.Header.Get("Accept")); ok {
		format = accepted
	}

	result, err := s.mailbox.Peek.Execute(r.Context(), mailboxqueries.PeekQuery{
		Actor:    actor,
		Category: category,
		Format:   format,
	})
	if err != nil {
		s.logger.Error("peek failed",
			"event", "http_peek_failed",
			"module", "internal/platform/httpserver",
			"layer", "platform",
			"category", string(category),
			"error", err.Error(),
		)
		writeError(w, http.StatusInternalServerError, "internal_error", "internal server error")
		return
	}
	if !result.Found {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, mailboxhttp.PeekResponse{
		MessageID: result.MessageID,
		Document:  string(result.Document),
	})
}

func (s *Server) handleDequeue(w http.ResponseWriter, r *http.Request) {
	actor, ok := s.resolveActor(w, r)
	if !ok {
		return
	}

	result, err := s.mailbox.Dequeue.Execute(r.Context(), mailboxcommands.DequeueCommand{
		MessageID: r.PathValue("message_id"),
		Actor:     actor,
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", "internal server error")
		return
	}
	if !result.Success {
		writeError(w, http.StatusNotFound, "message_not_found",
			"no peeked message with that id awaits acknowledgement")
		return
	}
	writeJSON(w, http.StatusOK, mailboxhttp.DequeueResponse{Success: true})
}

func (s *Server) handleMessageCount(w http.ResponseWriter, r *http.Request) {
	actor, ok := s.resolveActor(w, r)
	if !ok {
		return
	}

	result, err := s.mailbox.MessageCount.Execute(r.Context(), mailboxqueries.MessageCountQuery{
		ActorNumber: actor.Number,
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", "internal server error")
		return
	}
	writeJSON(w, http.StatusOK, mailboxhttp.MessageCountResponse{Count: result.Count})
}

// resolveActor reads the gateway-injected identity headers. Authentication
// happens upstream; the gateway only validates the identifier shapes.
func (s *Server) resolveActor(w http.ResponseWriter, r *http.Request) (markets.Actor, bool) {
	number := strings.TrimSpace(r.Header.Get("X-Actor-Number"))
	roleRaw := strings.TrimSpace(r.Header.Get("X-Actor-Role"))
	if number == "" || roleRaw == "" {
		writeError(w, http.StatusUnauthorized, "missing_actor",
			"X-Actor-Number and X-Actor-Role headers are required")
		return markets.Actor{}, false
	}

	role, err := markets.RoleFromCode(roleRaw)
	if err != nil {
		role, err = markets.RoleFromName(roleRaw)
	}
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_actor_role", err.Error())
		return markets.Actor{}, false
	}

	actor := markets.Actor{Number: markets.ActorNumber(number), Role: role}
	if err := actor.Number.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_actor_number", err.Error())
		return markets.Actor{}, false
	}
	return actor, true
}

func writeError(w http.ResponseWriter, status int, code string, message string) {
	writeJSON(w, status, intakehttp.ErrorResponse{
		Code:    code,
		Message: message,
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
