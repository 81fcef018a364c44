package handlers

import (
	"net/http"
	"strconv"
	"time"

	"barberbook/internal/availability"
	"barberbook/internal/booking"
	"barberbook/internal/timewindow"
)

// SlotHandler exposes shop availability.
type SlotHandler struct {
	slots *availability.Service
}

func NewSlotHandler(slots *availability.Service) *SlotHandler {
	return &SlotHandler{slots: slots}
}

func (h *SlotHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/shops/{shopID}/slots", h.daySlots)
	mux.HandleFunc("GET /api/v1/shops/{shopID}/slots/check", h.checkSlot)
}

func (h *SlotHandler) daySlots(w http.ResponseWriter, r *http.Request) {
	date := r.URL.Query().Get("date")
	if date == "" {
		writeError(w, booking.E(booking.KindValidation, "date query parameter is required"))
		return
	}
	duration, err := parseDuration(r)
	if err != nil {
		writeError(w, err)
		return
	}

	day, err := h.slots.Slots(r.Context(), r.PathValue("shopID"), date, duration)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, day)
}

type checkSlotResponse struct {
	ShopID         string `json:"shopId"`
	Date           string `json:"date"`
	Time           string `json:"time"`
	Duration       int    `json:"durationMinutes"`
	Available      bool   `json:"available"`
	ConflictReason string `json:"conflictReason,omitempty"`
}

func (h *SlotHandler) checkSlot(w http.ResponseWriter, r *http.Request) {
	date := r.URL.Query().Get("date")
	clock := r.URL.Query().Get("time")
	if date == "" || clock == "" {
		writeError(w, booking.E(booking.KindValidation, "date and time query parameters are required"))
		return
	}
	duration, err := parseDuration(r)
	if err != nil {
		writeError(w, err)
		return
	}
	if duration == 0 {
		duration = availability.SlotInterval
	}

	day, err := time.ParseInLocation(time.DateOnly, date, time.UTC)
	if err != nil {
		writeError(w, booking.E(booking.KindValidation, "date must be YYYY-MM-DD"))
		return
	}
	minutes, err := timewindow.Parse(clock)
	if err != nil {
		writeError(w, booking.E(booking.KindValidation, "time must be HH:MM or H:MM AM/PM"))
		return
	}

	shopID := r.PathValue("shopID")
	start := day.Add(time.Duration(minutes) * time.Minute)
	ok, reason, err := h.slots.CheckSlot(r.Context(), shopID, start, duration, "")
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, checkSlotResponse{
		ShopID:         shopID,
		Date:           date,
		Time:           timewindow.Format(minutes),
		Duration:       duration,
		Available:      ok,
		ConflictReason: reason,
	})
}

func parseDuration(r *http.Request) (int, error) {
	raw := r.URL.Query().Get("duration_minutes")
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0, booking.E(booking.KindValidation, "duration_minutes must be a positive number")
	}
	return n, nil
}
