package handlers

import (
	"log/slog"
	"net/http"
	"time"

	"barberbook/internal/booking"
	"barberbook/internal/model"
	"barberbook/libs/httpx"
)

// AppointmentHandler exposes the appointment lifecycle over HTTP.
type AppointmentHandler struct {
	bookings *booking.Service
	logger   *slog.Logger
}

func NewAppointmentHandler(bookings *booking.Service, logger *slog.Logger) *AppointmentHandler {
	return &AppointmentHandler{bookings: bookings, logger: logger}
}

func (h *AppointmentHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/v1/appointments", h.create)
	mux.HandleFunc("GET /api/v1/appointments", h.listMine)
	mux.HandleFunc("GET /api/v1/appointments/stats", h.stats)
	mux.HandleFunc("GET /api/v1/appointments/{id}", h.get)
	mux.HandleFunc("PATCH /api/v1/appointments/{id}/status", h.updateStatus)
	mux.HandleFunc("POST /api/v1/appointments/{id}/cancel", h.cancel)
	mux.HandleFunc("PATCH /api/v1/appointments/{id}/reschedule", h.reschedule)
	mux.HandleFunc("GET /api/v1/shop/appointments", h.listShop)
}

func actor(r *http.Request) booking.Actor {
	ident, _ := httpx.IdentityFromContext(r.Context())
	return booking.Actor{ID: ident.ID, Role: ident.Role}
}

type createRequest struct {
	ShopID     string   `json:"shopId"`
	Date       string   `json:"date"`
	ServiceIDs []string `json:"serviceIds"`
	Notes      string   `json:"notes"`
}

func (h *AppointmentHandler) create(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	date, err := time.Parse(time.RFC3339, req.Date)
	if err != nil {
		writeError(w, booking.E(booking.KindValidation, "date must be RFC 3339, e.g. 2026-03-10T10:00:00Z"))
		return
	}

	appt, err := h.bookings.Create(r.Context(), booking.CreateInput{
		CustomerID: actor(r).ID,
		ShopID:     req.ShopID,
		Date:       date,
		ServiceIDs: req.ServiceIDs,
		Notes:      req.Notes,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	h.logger.Info("appointment created",
		"appointment_id", appt.ID, "shop_id", appt.ShopID, "date", appt.AppointmentDate)
	writeJSON(w, http.StatusCreated, appt)
}

func (h *AppointmentHandler) get(w http.ResponseWriter, r *http.Request) {
	appt, err := h.bookings.Get(r.Context(), r.PathValue("id"), actor(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, appt)
}

type listResponse struct {
	Appointments []model.Appointment `json:"appointments"`
	Total        int                 `json:"total"`
	Page         int                 `json:"page"`
	Limit        int                 `json:"limit"`
}

func (h *AppointmentHandler) listMine(w http.ResponseWriter, r *http.Request) {
	q, err := parseListQuery(r)
	if err != nil {
		writeError(w, err)
		return
	}
	appts, total, err := h.bookings.ListForCustomer(r.Context(), actor(r).ID, q)
	if err != nil {
		writeError(w, err)
		return
	}
	q = q.Normalize()
	writeJSON(w, http.StatusOK, listResponse{
		Appointments: orEmpty(appts), Total: total, Page: q.Page, Limit: q.Limit,
	})
}

func (h *AppointmentHandler) listShop(w http.ResponseWriter, r *http.Request) {
	q, err := parseListQuery(r)
	if err != nil {
		writeError(w, err)
		return
	}
	appts, total, err := h.bookings.ListForShop(r.Context(), actor(r), q)
	if err != nil {
		writeError(w, err)
		return
	}
	q = q.Normalize()
	writeJSON(w, http.StatusOK, listResponse{
		Appointments: orEmpty(appts), Total: total, Page: q.Page, Limit: q.Limit,
	})
}

type statusRequest struct {
	Status string `json:"status"`
}

func (h *AppointmentHandler) updateStatus(w http.ResponseWriter, r *http.Request) {
	var req statusRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	appt, err := h.bookings.UpdateStatus(r.Context(), r.PathValue("id"), model.Status(req.Status), actor(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, appt)
}

func (h *AppointmentHandler) cancel(w http.ResponseWriter, r *http.Request) {
	appt, err := h.bookings.Cancel(r.Context(), r.PathValue("id"), actor(r))
	if err != nil {
		writeError(w, err)
		return
	}
	h.logger.Info("appointment cancelled", "appointment_id", appt.ID)
	writeJSON(w, http.StatusOK, appt)
}

type rescheduleRequest struct {
	Date       string   `json:"date"`
	ServiceIDs []string `json:"serviceIds"`
}

func (h *AppointmentHandler) reschedule(w http.ResponseWriter, r *http.Request) {
	var req rescheduleRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	date, err := time.Parse(time.RFC3339, req.Date)
	if err != nil {
		writeError(w, booking.E(booking.KindValidation, "date must be RFC 3339, e.g. 2026-03-10T10:00:00Z"))
		return
	}

	appt, err := h.bookings.Reschedule(r.Context(), r.PathValue("id"), booking.RescheduleInput{
		Date:       date,
		ServiceIDs: req.ServiceIDs,
	}, actor(r))
	if err != nil {
		writeError(w, err)
		return
	}
	h.logger.Info("appointment rescheduled", "appointment_id", appt.ID, "date", appt.AppointmentDate)
	writeJSON(w, http.StatusOK, appt)
}

func (h *AppointmentHandler) stats(w http.ResponseWriter, r *http.Request) {
	st, err := h.bookings.StatsForCustomer(r.Context(), actor(r).ID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func orEmpty(appts []model.Appointment) []model.Appointment {
	if appts == nil {
		return []model.Appointment{}
	}
	return appts
}
