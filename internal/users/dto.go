package users

import (
	"time"

	"github.com/google/uuid"

	"github.com/routong/routong-backend/pkg/db/models"
)

// UserDTO is the API-facing view of an account. The password hash never
// leaves the model.
type UserDTO struct {
	ID          uuid.UUID  `json:"id"`
	Phone       string     `json:"phone"`
	Nickname    string     `json:"nickname"`
	IsActive    bool       `json:"is_active"`
	LastLoginAt *time.Time `json:"last_login_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// CreateUserDTO carries a new signup into the repo. IsActive nil means the
// account starts active.
type CreateUserDTO struct {
	Phone        string
	Nickname     string
	PasswordHash string
	IsActive     *bool
}

func FromModel(u *models.User) *UserDTO {
	if u == nil {
		return nil
	}
	return &UserDTO{
		ID:          u.ID,
		Phone:       u.Phone,
		Nickname:    u.Nickname,
		IsActive:    u.IsActive,
		LastLoginAt: u.LastLoginAt,
		CreatedAt:   u.CreatedAt,
		UpdatedAt:   u.UpdatedAt,
	}
}

func (c CreateUserDTO) ToModel() *models.User {
	active := c.IsActive == nil || *c.IsActive
	return &models.User{
		ID:           uuid.New(),
		Phone:        c.Phone,
		Nickname:     c.Nickname,
		PasswordHash: c.PasswordHash,
		IsActive:     active,
	}
}
