package shared

import (
	"time"

	"github.com/google/uuid"
)

// User represents a registered identity in the system
type User struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Contact   string    `json:"contact"`
	CreatedAt time.Time `json:"created_at"`
}
