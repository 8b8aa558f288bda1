package employee

import (
	"time"

	"github.com/google/uuid"
)

type Employee struct {
	ID           uuid.UUID
	FirstName    string
	LastName     string
	Email        string
	PasswordHash string
	IsAdmin      bool
	DateJoined   time.Time
	UpdatedAt    time.Time
	ProjectIDs   []uuid.UUID
}
