package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/qrave1/RoomCall/internal/application/constant"
	"github.com/qrave1/RoomCall/internal/infra/adapters/memory"
	"github.com/qrave1/RoomCall/internal/infra/ports/http/dto"
	"github.com/qrave1/RoomCall/internal/usecase"
)

const (
	defaultJournalLimit = 50
	maxJournalLimit     = 500
)

type RoomHandler struct {
	directory memory.RoomDirectory
	journal   usecase.JournalUsecase
}

func NewRoomHandler(directory memory.RoomDirectory, journal usecase.JournalUsecase) *RoomHandler {
	return &RoomHandler{directory: directory, journal: journal}
}

// ListRooms - активные комнаты процесса
func (h *RoomHandler) ListRooms(c echo.Context) error {
	rooms := h.directory.Rooms(c.Request().Context())

	resp := dto.RoomsResponse{Rooms: make([]dto.RoomResponse, 0, len(rooms))}
	for _, r := range rooms {
		resp.Rooms = append(resp.Rooms, dto.RoomResponse{
			ID:           r.RoomID,
			HostID:       r.HostID,
			Participants: r.Participants,
		})
	}

	return c.JSON(http.StatusOK, resp)
}

// GetRoom - участники одной комнаты
func (h *RoomHandler) GetRoom(c echo.Context) error {
	roomID := c.Param("id")

	participants := h.directory.Participants(c.Request().Context(), roomID)
	if len(participants) == 0 {
		return c.JSON(http.StatusNotFound, dto.ErrorResponse{Error: "room not found"})
	}

	return c.JSON(http.StatusOK, dto.RoomDetailsResponse{ID: roomID, Participants: participants})
}

func (h *RoomHandler) Journal(c echo.Context) error {
	limit := defaultJournalLimit

	if raw := c.QueryParam("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			return c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "invalid limit"})
		}

		limit = min(n, maxJournalLimit)
	}

	entries, err := h.journal.History(c.Request().Context(), c.Param("id"), limit)
	switch {
	case errors.Is(err, usecase.ErrJournalDisabled):
		return c.JSON(http.StatusNotImplemented, dto.ErrorResponse{Error: "session journal is disabled"})
	case err != nil:
		slog.Error("get room journal", slog.Any(constant.Error, err), slog.String(constant.RoomID, c.Param("id")))
		return c.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: "internal error"})
	}

	return c.JSON(http.StatusOK, dto.JournalResponse{Entries: entries})
}
