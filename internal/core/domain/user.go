package domain

import (
	"time"

	"github.com/google/uuid"
)

// User is a read-only view of the external directory: just enough identity
// to resolve parties and notification targets.
type User struct {
	ID        uuid.UUID  `json:"id"`
	Name      string     `json:"name"`
	Phone     string     `json:"phone"`
	CompanyID *uuid.UUID `json:"company_id,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}
