package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"parkmarket/internal/database"
	"parkmarket/internal/metrics"
	"parkmarket/internal/models"
)

type spaceResponse struct {
	ID               string  `json:"id"`
	Code             string  `json:"code"`
	Address          string  `json:"address"`
	HourlyRate       float64 `json:"hourly_rate"`
	SlotCount        int     `json:"slot_count"`
	MaxDurationHours *int64  `json:"max_duration_hours,omitempty"`
	Description      string  `json:"description,omitempty"`
}

func toSpaceResponse(s *models.ParkingSpace) spaceResponse {
	resp := spaceResponse{
		ID:          s.ID,
		Code:        s.Code,
		Address:     s.Address,
		HourlyRate:  s.HourlyRate,
		SlotCount:   s.SlotCount,
		Description: s.Description,
	}
	if s.MaxDurationHours.Valid {
		v := s.MaxDurationHours.Int64
		resp.MaxDurationHours = &v
	}
	return resp
}

type slotResponse struct {
	Token     string `json:"token"`
	SpaceID   string `json:"space_id"`
	Ordinal   int    `json:"ordinal"`
	Available bool   `json:"available"`
}

type reservationResponse struct {
	ID          int64   `json:"id"`
	SpaceID     string  `json:"space_id"`
	SlotOrdinal int     `json:"slot_ordinal"`
	VehicleID   string  `json:"vehicle_id"`
	StartAt     string  `json:"start_at"`
	EndAt       string  `json:"end_at"`
	Status      string  `json:"status"`
	Fee         float64 `json:"fee"`
}

func toReservationResponse(r *models.Reservation) reservationResponse {
	return reservationResponse{
		ID:          r.ID,
		SpaceID:     r.SpaceID,
		SlotOrdinal: r.SlotOrdinal,
		VehicleID:   r.VehicleID,
		StartAt:     r.StartAt.Format(time.RFC3339),
		EndAt:       r.EndAt.Format(time.RFC3339),
		Status:      r.Status,
		Fee:         r.Fee,
	}
}

func (s *HTTPServer) handleSpaces(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	spaces, err := s.spaces.ListSpaces(r.Context())
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	out := make([]spaceResponse, 0, len(spaces))
	for _, sp := range spaces {
		out = append(out, toSpaceResponse(sp))
	}
	writeJSON(w, http.StatusOK, map[string]any{"spaces": out})
}

// handleSpaceSubresource serves /api/v1/spaces/{id}/slots and
// /api/v1/spaces/{id}/schedule.
func (s *HTTPServer) handleSpaceSubresource(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/v1/spaces/")
	parts := strings.Split(rest, "/")
	if len(parts) != 2 || parts[0] == "" {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	spaceID := parts[0]

	switch parts[1] {
	case "slots":
		switch r.Method {
		case http.MethodGet:
			s.listSlots(w, r, spaceID)
		case http.MethodPost:
			s.addSlot(w, r, spaceID)
		default:
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		}
	case "schedule":
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		s.getSchedule(w, r, spaceID)
	default:
		writeError(w, http.StatusNotFound, "not found")
	}
}

func (s *HTTPServer) listSlots(w http.ResponseWriter, r *http.Request, spaceID string) {
	space, err := s.spaces.GetSpace(r.Context(), spaceID)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	slots, err := s.spaces.ListSlots(r.Context(), spaceID)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	out := make([]slotResponse, 0, len(slots))
	for _, slot := range slots {
		out = append(out, slotResponse{
			Token:     models.FormatToken(slot.Ordinal, space.Code),
			SpaceID:   slot.SpaceID,
			Ordinal:   slot.Ordinal,
			Available: slot.Available,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"slots": out})
}

func (s *HTTPServer) addSlot(w http.ResponseWriter, r *http.Request, spaceID string) {
	space, err := s.spaces.GetSpace(r.Context(), spaceID)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	slot, err := s.spaces.AddSlot(r.Context(), spaceID)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, slotResponse{
		Token:     models.FormatToken(slot.Ordinal, space.Code),
		SpaceID:   slot.SpaceID,
		Ordinal:   slot.Ordinal,
		Available: slot.Available,
	})
}

func (s *HTTPServer) getSchedule(w http.ResponseWriter, r *http.Request, spaceID string) {
	if _, err := s.spaces.GetSpace(r.Context(), spaceID); err != nil {
		s.writeDomainError(w, err)
		return
	}

	windows, err := s.spaces.SpaceSchedule(r.Context(), spaceID)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"schedule": windows})
}

// handleAvailability serves /api/v1/availability/{token} and
// /api/v1/availability/{token}/calendar.
func (s *HTTPServer) handleAvailability(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	rest := strings.TrimPrefix(r.URL.Path, "/api/v1/availability/")
	parts := strings.Split(rest, "/")

	switch {
	case len(parts) == 1 && parts[0] != "":
		s.getAvailability(w, r, parts[0])
	case len(parts) == 2 && parts[0] != "" && parts[1] == "calendar":
		s.getCalendar(w, r, parts[0])
	default:
		writeError(w, http.StatusNotFound, "not found")
	}
}

func (s *HTTPServer) getAvailability(w http.ResponseWriter, r *http.Request, token string) {
	start, err := parseTimeParam(r, "start")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	end, err := parseTimeParam(r, "end")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	available, err := s.spaces.SlotAvailability(r.Context(), token, start, end)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"token":     token,
		"available": available,
	})
}

func (s *HTTPServer) getCalendar(w http.ResponseWriter, r *http.Request, token string) {
	from := time.Now()
	if raw := strings.TrimSpace(r.URL.Query().Get("from")); raw != "" {
		parsed, err := time.ParseInLocation(models.DateLayout, raw, time.Local)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid from date; expected YYYY-MM-DD")
			return
		}
		from = parsed
	}

	days := 0
	if raw := strings.TrimSpace(r.URL.Query().Get("days")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 || parsed > 31 {
			writeError(w, http.StatusBadRequest, "days must be between 1 and 31")
			return
		}
		days = parsed
	}

	calendar, err := s.spaces.Calendar(r.Context(), token, from, days)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"token":    token,
		"calendar": calendar,
	})
}

type createReservationRequest struct {
	UserID    int64  `json:"user_id"`
	VehicleID string `json:"vehicle_id"`
	SlotToken string `json:"slot_token"`
	StartAt   string `json:"start_at"`
	EndAt     string `json:"end_at"`
}

func (s *HTTPServer) handleReservations(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var body createReservationRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if body.UserID == 0 || body.VehicleID == "" || body.SlotToken == "" {
		writeError(w, http.StatusBadRequest, "user_id, vehicle_id and slot_token are required")
		return
	}

	start, err := time.Parse(time.RFC3339, body.StartAt)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid start_at; expected RFC3339")
		return
	}
	end, err := time.Parse(time.RFC3339, body.EndAt)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid end_at; expected RFC3339")
		return
	}

	space, ordinal, err := s.spaces.ResolveToken(r.Context(), body.SlotToken)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	reservation, err := s.reservations.Create(r.Context(), body.UserID, body.VehicleID, space.ID, ordinal, start, end)
	if err != nil {
		if errors.Is(err, database.ErrNotAvailable) {
			metrics.IncConflict()
		}
		s.writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toReservationResponse(reservation))
}

// handleReservationAction serves /api/v1/reservations/{id} and its
// pay/cancel/complete/extension subresources.
func (s *HTTPServer) handleReservationAction(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/v1/reservations/")
	parts := strings.Split(rest, "/")
	if len(parts) < 1 || parts[0] == "" {
		writeError(w, http.StatusNotFound, "not found")
		return
	}

	id, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid reservation id")
		return
	}

	switch {
	case len(parts) == 1:
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		s.getReservation(w, r, id)
	case len(parts) == 2 && parts[1] == "extension":
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		s.checkExtension(w, r, id)
	case len(parts) == 2:
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		s.transition(w, r, id, parts[1])
	default:
		writeError(w, http.StatusNotFound, "not found")
	}
}

func (s *HTTPServer) getReservation(w http.ResponseWriter, r *http.Request, id int64) {
	reservation, err := s.reservations.Get(r.Context(), id)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toReservationResponse(reservation))
}

type transitionRequest struct {
	UserID int64 `json:"user_id"`
}

func (s *HTTPServer) transition(w http.ResponseWriter, r *http.Request, id int64, action string) {
	var body transitionRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if body.UserID == 0 {
		writeError(w, http.StatusBadRequest, "user_id is required")
		return
	}

	var err error
	switch action {
	case "pay":
		err = s.reservations.Pay(r.Context(), id, body.UserID)
	case "cancel":
		err = s.reservations.Cancel(r.Context(), id, body.UserID)
	case "complete":
		err = s.reservations.Complete(r.Context(), id, body.UserID)
	default:
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	reservation, err := s.reservations.Get(r.Context(), id)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toReservationResponse(reservation))
}

func (s *HTTPServer) checkExtension(w http.ResponseWriter, r *http.Request, id int64) {
	userID, err := strconv.ParseInt(strings.TrimSpace(r.URL.Query().Get("user_id")), 10, 64)
	if err != nil || userID == 0 {
		writeError(w, http.StatusBadRequest, "user_id is required")
		return
	}

	newEnd, err := parseTimeParam(r, "new_end")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	possible, err := s.reservations.CheckExtension(r.Context(), id, userID, newEnd)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"extension_possible": possible})
}

// handleSlot serves DELETE /api/v1/slots/{token}. The force query flag
// switches to the gap-leaving removal.
func (s *HTTPServer) handleSlot(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	token := strings.TrimPrefix(r.URL.Path, "/api/v1/slots/")
	if token == "" || strings.Contains(token, "/") {
		writeError(w, http.StatusNotFound, "not found")
		return
	}

	force := r.URL.Query().Get("force") == "true"
	if err := s.spaces.RemoveSlot(r.Context(), token, force); err != nil {
		s.writeDomainError(w, err)
		return
	}

	mode := "renumbered"
	if force {
		mode = "forced"
	}
	metrics.IncSlotRemoval(mode)

	writeJSON(w, http.StatusOK, map[string]any{"removed": token, "forced": force})
}

func parseTimeParam(r *http.Request, name string) (time.Time, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return time.Time{}, errors.New(name + " is required")
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, errors.New("invalid " + name + "; expected RFC3339")
	}
	return t, nil
}

// writeDomainError maps the domain sentinels onto HTTP statuses.
func (s *HTTPServer) writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, database.ErrSpaceNotFound),
		errors.Is(err, database.ErrSlotNotFound),
		errors.Is(err, database.ErrVehicleNotFound),
		errors.Is(err, database.ErrReservationNotFound):
		writeError(w, http.StatusNotFound, err.Error())

	case errors.Is(err, database.ErrNotOwner):
		writeError(w, http.StatusForbidden, err.Error())

	case errors.Is(err, database.ErrInvalidInterval),
		errors.Is(err, database.ErrPastStart),
		errors.Is(err, database.ErrTooFarAhead),
		errors.Is(err, database.ErrTooLong),
		errors.Is(err, database.ErrOutsideHours):
		writeError(w, http.StatusBadRequest, err.Error())

	case errors.Is(err, database.ErrNotAvailable),
		errors.Is(err, database.ErrActiveReservations),
		errors.Is(err, database.ErrAlreadyCompleted),
		errors.Is(err, database.ErrAlreadyCancelled),
		errors.Is(err, database.ErrNotPayable),
		errors.Is(err, database.ErrConcurrentModification):
		writeError(w, http.StatusConflict, err.Error())

	case errors.Is(err, models.ErrBadToken):
		writeError(w, http.StatusBadRequest, err.Error())

	default:
		s.logger.Error().Err(err).Msg("internal error")
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
