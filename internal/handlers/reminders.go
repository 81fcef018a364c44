package handlers

import (
	"net/http"
	"strconv"

	"barberbook/internal/booking"
	"barberbook/internal/model"
	"barberbook/internal/reminders"
)

// ReminderHandler exposes the pull-based reminder API used by delivery
// workers.
type ReminderHandler struct {
	reminders *reminders.Service
}

func NewReminderHandler(svc *reminders.Service) *ReminderHandler {
	return &ReminderHandler{reminders: svc}
}

func (h *ReminderHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/reminders/pending", h.listDue)
	mux.HandleFunc("PATCH /api/v1/reminders/{id}/mark-sent", h.markSent)
}

func (h *ReminderHandler) listDue(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeError(w, booking.E(booking.KindValidation, "limit must be a positive integer"))
			return
		}
		limit = n
	}

	due, err := h.reminders.ListDue(r.Context(), limit)
	if err != nil {
		writeError(w, err)
		return
	}
	if due == nil {
		due = []model.Appointment{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"reminders": due})
}

func (h *ReminderHandler) markSent(w http.ResponseWriter, r *http.Request) {
	sent, err := h.reminders.MarkSent(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"sent": sent})
}
