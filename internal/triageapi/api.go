// Package triageapi exposes triage sessions over HTTP.
package triageapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/go-chi/chi/v5"
	"github.com/linnemanlabs/go-core/log"
	"github.com/linnemanlabs/go-core/xerrors"

	"github.com/linnemanlabs/acuity/internal/triage"
)

// Controller defines the business operations the API needs.
type Controller interface {
	CreateSession(ctx context.Context, patient triage.PatientContext) (*triage.Session, error)
	Submit(ctx context.Context, sessionID, message string) (*triage.TurnResult, error)
	GetResult(ctx context.Context, sessionID string) (*triage.Result, triage.Status, error)
	Abandon(ctx context.Context, sessionID string) error
}

// API holds dependencies for HTTP handlers.
type API struct {
	logger log.Logger
	ctrl   Controller
}

// New creates a new API handler.
func New(logger log.Logger, ctrl Controller) *API {
	if logger == nil {
		logger = log.Nop()
	}
	if ctrl == nil {
		panic(xerrors.New("triage controller is required"))
	}
	return &API{logger: logger, ctrl: ctrl}
}

// RegisterRoutes attaches API endpoints to the router.
func (a *API) RegisterRoutes(r chi.Router) {
	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/sessions", a.handleCreateSession)
		r.Post("/sessions/{id}/messages", a.handleSubmitMessage)
		r.Get("/sessions/{id}/result", a.handleGetResult)
		r.Delete("/sessions/{id}", a.handleAbandonSession)
	})
}

type createSessionRequest struct {
	Patient triage.PatientContext `json:"patient"`
}

type createSessionResponse struct {
	ID      string        `json:"id"`
	Status  triage.Status `json:"status"`
	Message string        `json:"message"`
}

func (a *API) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid payload"}`, http.StatusBadRequest)
		return
	}

	s, err := a.ctrl.CreateSession(r.Context(), req.Patient)
	if err != nil {
		a.writeError(w, r, err, "failed to create session")
		return
	}

	span := trace.SpanFromContext(r.Context())
	span.SetAttributes(attribute.String("acuity.session.id", s.ID))

	opening := ""
	if n := len(s.Messages); n > 0 {
		opening = s.Messages[n-1].Content
	}
	writeJSON(w, http.StatusCreated, createSessionResponse{
		ID:      s.ID,
		Status:  s.Status,
		Message: opening,
	})
}

type submitMessageRequest struct {
	Message string `json:"message"`
}

func (a *API) handleSubmitMessage(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	span := trace.SpanFromContext(r.Context())
	span.SetAttributes(attribute.String("acuity.session.id", id))

	var req submitMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid payload"}`, http.StatusBadRequest)
		return
	}

	tr, err := a.ctrl.Submit(r.Context(), id, req.Message)
	if err != nil {
		a.writeError(w, r, err, "failed to submit message")
		return
	}

	span.SetAttributes(attribute.Bool("acuity.session.complete", tr.Complete))
	writeJSON(w, http.StatusOK, tr)
}

type resultResponse struct {
	Status triage.Status  `json:"status"`
	Result *triage.Result `json:"result,omitempty"`
}

func (a *API) handleGetResult(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	span := trace.SpanFromContext(r.Context())
	span.SetAttributes(attribute.String("acuity.session.id", id))

	res, status, err := a.ctrl.GetResult(r.Context(), id)
	if err != nil {
		a.writeError(w, r, err, "failed to get result")
		return
	}

	span.SetAttributes(attribute.String("acuity.session.status", string(status)))
	writeJSON(w, http.StatusOK, resultResponse{Status: status, Result: res})
}

func (a *API) handleAbandonSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := a.ctrl.Abandon(r.Context(), id); err != nil {
		a.writeError(w, r, err, "failed to abandon session")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// writeError maps domain errors to HTTP status codes.
func (a *API) writeError(w http.ResponseWriter, r *http.Request, err error, msg string) {
	var ve *triage.ValidationError
	switch {
	case errors.As(err, &ve):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": ve.Error()})
	case errors.Is(err, triage.ErrSessionNotFound):
		http.Error(w, `{"error":"not found"}`, http.StatusNotFound)
	case errors.Is(err, triage.ErrSessionComplete):
		http.Error(w, `{"error":"session already complete"}`, http.StatusConflict)
	case errors.Is(err, triage.ErrTurnInFlight):
		http.Error(w, `{"error":"turn already in flight"}`, http.StatusConflict)
	default:
		a.logger.Error(r.Context(), err, msg, "session_id", chi.URLParam(r, "id"))
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
