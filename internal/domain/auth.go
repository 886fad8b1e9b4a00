package domain

import (
	"time"

	"github.com/google/uuid"
)

// Admin is a back-office account allowed to verify professionals.
type Admin struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"createdAt"`
}

// Roles carried in JWT claims.
const (
	RoleAdmin        = "admin"
	RoleProfessional = "professional"
)

// LoginRequest is the input for authentication.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// LoginResponse returns the signed token and the authenticated identity.
type LoginResponse struct {
	Token string    `json:"token"`
	User  LoginUser `json:"user"`
}

// LoginUser is the identity summary embedded in a login response.
type LoginUser struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

// JWTClaims are the verified claims extracted from a bearer token.
type JWTClaims struct {
	Sub   string
	Email string
	Role  string
}

// NewID returns a fresh identifier for a persisted record.
func NewID() string {
	return uuid.New().String()
}
