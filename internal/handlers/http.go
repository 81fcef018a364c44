package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"barberbook/internal/availability"
	"barberbook/internal/booking"
	"barberbook/internal/model"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type errorBody struct {
	Error string `json:"error"`
}

// writeError maps domain errors to HTTP statuses. Unclassified errors
// become a generic 500 so internals never leak to clients.
func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, availability.ErrPastDate),
		errors.Is(err, availability.ErrInvalidDate),
		errors.Is(err, availability.ErrHoursNotSet):
		writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error()})
		return
	}

	status := http.StatusInternalServerError
	switch booking.KindOf(err) {
	case booking.KindValidation:
		status = http.StatusBadRequest
	case booking.KindNotFound:
		status = http.StatusNotFound
	case booking.KindForbidden:
		status = http.StatusForbidden
	case booking.KindConflict:
		status = http.StatusConflict
	case booking.KindUnauthorized:
		status = http.StatusUnauthorized
	}
	writeJSON(w, status, errorBody{Error: booking.Message(err)})
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return booking.Wrap(booking.KindValidation, "invalid request body", err)
	}
	return nil
}

func parseListQuery(r *http.Request) (booking.ListQuery, error) {
	q := booking.ListQuery{}
	values := r.URL.Query()

	if raw := values.Get("page"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			return q, booking.E(booking.KindValidation, "page must be a positive integer")
		}
		q.Page = n
	}
	if raw := values.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			return q, booking.E(booking.KindValidation, "limit must be a positive integer")
		}
		q.Limit = n
	}
	if raw := values.Get("status"); raw != "" {
		status := model.Status(raw)
		if !status.Valid() {
			return q, booking.Ef(booking.KindValidation, "unknown status %q", raw)
		}
		q.Status = status
	}
	if raw := values.Get("sort"); raw != "" {
		if raw != booking.SortByCreated && raw != booking.SortByDate {
			return q, booking.Ef(booking.KindValidation, "sort must be %q or %q", booking.SortByCreated, booking.SortByDate)
		}
		q.SortBy = raw
	}
	if raw := values.Get("order"); raw != "" {
		if raw != booking.SortAsc && raw != booking.SortDesc {
			return q, booking.Ef(booking.KindValidation, "order must be %q or %q", booking.SortAsc, booking.SortDesc)
		}
		q.SortDir = raw
	}
	return q, nil
}
