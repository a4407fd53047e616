package models

import (
	"time"

	"github.com/google/uuid"
)

// Account role enums.
const (
	AccountRoleClient     = "client"
	AccountRoleFreelancer = "freelancer"
	AccountRoleBoth       = "both"
)

type Account struct {
	ID           uuid.UUID `json:"id"`
	Email        string    `json:"email"`
	DisplayName  string    `json:"display_name"`
	Role         string    `json:"role"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}
