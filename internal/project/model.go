package project

import (
	"time"

	"github.com/google/uuid"
)

type Project struct {
	ID            uuid.UUID
	Name          string
	Description   string
	StartDate     *time.Time
	EndDate       *time.Time
	Status        string
	EstimatedSpan int
	CreatedAt     time.Time
	UpdatedAt     time.Time
	EmployeeIDs   []uuid.UUID
}
