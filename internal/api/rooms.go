package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/roomwatch-core/internal/device"
)

// roomStatusView is the status block of GET /rooms/{id}/status.
//
// PeopleCount is derived from today's attendance; SensorPeopleCount is the
// last headcount a camera reported.
type roomStatusView struct {
	PeopleCount       int       `json:"people_count"`
	SensorPeopleCount int       `json:"sensor_people_count"`
	Temperature       *float64  `json:"temperature"`
	Humidity          float64   `json:"humidity"`
	UpdatedAt         time.Time `json:"updated_at"`
}

type roomView struct {
	ID          int64           `json:"id"`
	Name        string          `json:"name"`
	Description *string         `json:"description"`
	Status      roomStatusView  `json:"status"`
	Devices     []device.Device `json:"devices"`
}

// handleListRooms returns all rooms.
func (s *Server) handleListRooms(w http.ResponseWriter, r *http.Request) {
	rooms, err := s.rooms.ListRooms(r.Context())
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"rooms": rooms})
}

// handleRoomStatus returns a room with its reconciled status and devices.
func (s *Server) handleRoomStatus(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		writeBadRequest(w, "invalid room id")
		return
	}

	ctx := r.Context()
	room, err := s.rooms.GetRoom(ctx, id)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	view := roomView{ID: room.ID, Name: room.Name, Description: room.Description}

	status, err := s.rooms.GetOrCreateStatus(ctx, id)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	view.Status.SensorPeopleCount = status.PeopleCount
	view.Status.Temperature = status.Temperature
	view.Status.Humidity = status.Humidity
	view.Status.UpdatedAt = status.UpdatedAt

	view.Status.PeopleCount, err = s.presence.ComputeOccupancy(ctx, id)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	view.Devices, err = s.registry.ListByRoom(ctx, id)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"room": view})
}
