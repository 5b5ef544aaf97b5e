package dto

import "github.com/qrave1/RoomCall/internal/domain/models"

type RoomResponse struct {
	ID           string `json:"id"`
	HostID       string `json:"host_id"`
	Participants int    `json:"participants"`
}

type RoomsResponse struct {
	Rooms []RoomResponse `json:"rooms"`
}

type RoomDetailsResponse struct {
	ID           string                        `json:"id"`
	Participants map[string]models.Participant `json:"participants"`
}

type JournalResponse struct {
	Entries []models.JournalEntry `json:"entries"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}
