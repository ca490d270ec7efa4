package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/sakif/drink-tracker/internal/model"
	"github.com/sakif/drink-tracker/internal/repository"
)

type SessionService interface {
	Create(ctx context.Context, owner int64) (int64, error)
	List(ctx context.Context, f repository.SessionFilter) ([]model.SessionOverview, error)
	Get(ctx context.Context, id, owner int64) (*model.DrinkingSession, error)
	AddDrink(ctx context.Context, owner, sessionID int64, in model.NewSessionDrink) (int64, error)
	RemoveDrink(ctx context.Context, owner, sessionID, pairingID int64) error
	Delete(ctx context.Context, owner, id int64) error
}

// SessionHandler serves drinking sessions. Every route is owner-only.
type SessionHandler struct {
	sessions SessionService
	logger   *slog.Logger
}

func NewSessionHandler(sessions SessionService, logger *slog.Logger) *SessionHandler {
	return &SessionHandler{sessions: sessions, logger: logger}
}

type sessionsResponse struct {
	Sessions []model.SessionOverview `json:"sessions"`
}

type newSessionResponse struct {
	NewSessionID int64 `json:"new_session_id"`
}

type newPairingResponse struct {
	NewPairingID int64 `json:"new_pairing_id"`
}

// HandleCreate opens an empty session.
//
// HTTP: POST /api/sessions
func (h *SessionHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	owner, err := currentUser(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	id, err := h.sessions.Create(r.Context(), owner)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, newSessionResponse{NewSessionID: id})
}

// HandleList returns the caller's session overviews.
//
// HTTP: GET /api/sessions?min_standards=&max_standards=&min_sugar=&max_sugar=
// &min_date=&max_date=&min_duration=&max_duration=
func (h *SessionHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	owner, err := currentUser(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	p := newQueryParams(r)
	f := repository.SessionFilter{
		OwnerID:      owner,
		MinStandards: p.Float("min_standards"),
		MaxStandards: p.Float("max_standards"),
		MinSugar:     p.Float("min_sugar"),
		MaxSugar:     p.Float("max_sugar"),
		MinDuration:  p.Float("min_duration"),
		MaxDuration:  p.Float("max_duration"),
		MinDate:      p.Time("min_date"),
		MaxDate:      p.Time("max_date"),
	}
	if err := p.Err(); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	list, err := h.sessions.List(r.Context(), f)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if list == nil {
		list = []model.SessionOverview{}
	}
	writeJSON(w, http.StatusOK, sessionsResponse{Sessions: list})
}

// HandleGet returns one session with its drink entries in start order.
//
// HTTP: GET /api/sessions/{id}
func (h *SessionHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	owner, err := currentUser(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	session, err := h.sessions.Get(r.Context(), id, owner)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, session)
}

// HandleAddDrink records a drink in a session.
//
// HTTP: POST /api/sessions/{id}/sessiondrinks
// REQUEST BODY: {"drink_id", "quantity", "start_time", "end_time"?}
func (h *SessionHandler) HandleAddDrink(w http.ResponseWriter, r *http.Request) {
	owner, err := currentUser(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	sessionID, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	var in model.NewSessionDrink
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	id, err := h.sessions.AddDrink(r.Context(), owner, sessionID, in)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, newPairingResponse{NewPairingID: id})
}

// HandleRemoveDrink deletes one entry from a session.
//
// HTTP: DELETE /api/sessions/{id}/sessiondrinks/{pairing_id}
func (h *SessionHandler) HandleRemoveDrink(w http.ResponseWriter, r *http.Request) {
	owner, err := currentUser(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	sessionID, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	pairingID, err := pathID(r, "pairing_id")
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	if err := h.sessions.RemoveDrink(r.Context(), owner, sessionID, pairingID); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleDelete removes a session and all of its entries.
//
// HTTP: DELETE /api/sessions/{id}
func (h *SessionHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	owner, err := currentUser(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	if err := h.sessions.Delete(r.Context(), owner, id); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
