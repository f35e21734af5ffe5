package entity

import (
	"time"

	"github.com/google/uuid"
)

// Upload represents a stored input file awaiting job creation.
type Upload struct {
	ID           uuid.UUID `json:"id"`
	Path         string    `json:"path"`
	OriginalName string    `json:"original_name"`
	CreatedAt    time.Time `json:"created_at"`
}
