package handler

import (
	"encoding/json"
	"net/http"

	"slotbook/internal/appointments/service"
	"slotbook/internal/appointments/validator"
	"slotbook/internal/auth/token"
	apperrors "slotbook/pkg/errors"
	httputil "slotbook/pkg/http"
	"slotbook/pkg/logger"
	"slotbook/pkg/model"

	"github.com/julienschmidt/httprouter"
)

type AppointmentHandler struct {
	engine service.Engine
	tokens *token.Manager
	log    *logger.Logger
}

func NewAppointmentHandler(engine service.Engine, tokens *token.Manager, log *logger.Logger) *AppointmentHandler {
	return &AppointmentHandler{
		engine: engine,
		tokens: tokens,
		log:    log,
	}
}

func (h *AppointmentHandler) RegisterRoutes(router *httprouter.Router) {
	router.POST("/api/v1/appointments", h.tokens.RequireAuth(h.Book))
	router.GET("/api/v1/appointments", h.tokens.RequireAuth(h.ListOccupied))
	router.DELETE("/api/v1/appointments/id/:id", h.tokens.RequireAuth(h.Cancel))
	router.PUT("/api/v1/appointments/id/:id", h.tokens.RequireAuth(h.Reschedule))
	router.GET("/api/v1/appointments/status", h.tokens.RequireAuth(h.Status))
	// Availability is public so callers can browse before registering.
	router.GET("/api/v1/slots", h.Slots)
}

type statusResponse struct {
	*model.UserStatus
	Upcoming []*service.DayAvailability `json:"upcoming"`
}

func (h *AppointmentHandler) caller(w http.ResponseWriter, r *http.Request) (model.Identity, bool) {
	identity, ok := token.IdentityFromContext(r.Context())
	if !ok {
		if writeErr := httputil.WriteError(w, apperrors.Unauthorized("missing identity")); writeErr != nil {
			h.log.Error("failed to write error response", "operation", "WriteError", "error", writeErr)
		}
		return model.Identity{}, false
	}
	return identity, true
}

// Book responds 201 when the slot was claimed and 202 when the caller was
// queued on its waitlist.
func (h *AppointmentHandler) Book(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	identity, ok := h.caller(w, r)
	if !ok {
		return
	}

	var req validator.SlotRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		if writeErr := httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{
			Error: "Invalid request body",
		}); writeErr != nil {
			h.log.Error("failed to write JSON response", "handler", "Book", "operation", "WriteJSON", "error", writeErr)
		}
		return
	}

	outcome, err := h.engine.Book(r.Context(), identity, &req)
	if err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "Book", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	if outcome.Kind == model.OutcomeQueued {
		if err := httputil.WriteAccepted(w, outcome); err != nil {
			h.log.Error("failed to write accepted response", "handler", "Book", "operation", "WriteAccepted", "error", err)
		}
		return
	}

	if err := httputil.WriteCreated(w, outcome); err != nil {
		h.log.Error("failed to write created response", "handler", "Book", "operation", "WriteCreated", "error", err)
	}
}

func (h *AppointmentHandler) Cancel(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	identity, ok := h.caller(w, r)
	if !ok {
		return
	}

	outcome, err := h.engine.Cancel(r.Context(), identity, ps.ByName("id"))
	if err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "Cancel", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	if err := httputil.WriteSuccess(w, outcome); err != nil {
		h.log.Error("failed to write success response", "handler", "Cancel", "operation", "WriteSuccess", "error", err)
	}
}

// Reschedule responds 200 when the booking moved and 202 when the target
// slot was occupied and the caller was queued instead, leaving the original
// booking untouched.
func (h *AppointmentHandler) Reschedule(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	identity, ok := h.caller(w, r)
	if !ok {
		return
	}

	var req validator.SlotRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		if writeErr := httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{
			Error: "Invalid request body",
		}); writeErr != nil {
			h.log.Error("failed to write JSON response", "handler", "Reschedule", "operation", "WriteJSON", "error", writeErr)
		}
		return
	}

	outcome, err := h.engine.Reschedule(r.Context(), identity, ps.ByName("id"), &req)
	if err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "Reschedule", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	if outcome.Kind == model.OutcomeQueued {
		if err := httputil.WriteAccepted(w, outcome); err != nil {
			h.log.Error("failed to write accepted response", "handler", "Reschedule", "operation", "WriteAccepted", "error", err)
		}
		return
	}

	if err := httputil.WriteSuccess(w, outcome); err != nil {
		h.log.Error("failed to write success response", "handler", "Reschedule", "operation", "WriteSuccess", "error", err)
	}
}

func (h *AppointmentHandler) Status(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	identity, ok := h.caller(w, r)
	if !ok {
		return
	}

	status, err := h.engine.Status(r.Context(), identity)
	if err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "Status", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	upcoming, err := h.engine.Upcoming(r.Context())
	if err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "Status", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	if err := httputil.WriteSuccess(w, statusResponse{UserStatus: status, Upcoming: upcoming}); err != nil {
		h.log.Error("failed to write success response", "handler", "Status", "operation", "WriteSuccess", "error", err)
	}
}

// Slots reports availability for one date, or for the whole booking window
// when no date is given.
func (h *AppointmentHandler) Slots(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	date := r.URL.Query().Get("date")
	if date == "" {
		days, err := h.engine.Upcoming(r.Context())
		if err != nil {
			if writeErr := httputil.WriteError(w, err); writeErr != nil {
				h.log.Error("failed to write error response", "handler", "Slots", "operation", "WriteError", "error", writeErr)
			}
			return
		}
		if err := httputil.WriteSuccess(w, days); err != nil {
			h.log.Error("failed to write success response", "handler", "Slots", "operation", "WriteSuccess", "error", err)
		}
		return
	}

	day, err := h.engine.Availability(r.Context(), date)
	if err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "Slots", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	if err := httputil.WriteSuccess(w, day); err != nil {
		h.log.Error("failed to write success response", "handler", "Slots", "operation", "WriteSuccess", "error", err)
	}
}

func (h *AppointmentHandler) ListOccupied(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	if _, ok := h.caller(w, r); !ok {
		return
	}

	limit, offset, err := httputil.ExtractLimitOffset(r)
	if err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "ListOccupied", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	bookings, total, err := h.engine.ListOccupied(r.Context(), limit, offset)
	if err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "ListOccupied", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	if err := httputil.WritePaginated(w, bookings, total, limit, offset); err != nil {
		h.log.Error("failed to write paginated response", "handler", "ListOccupied", "operation", "WritePaginated", "error", err)
	}
}
