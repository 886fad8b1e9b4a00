package service

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/protown/backend/internal/domain"
	"golang.org/x/crypto/bcrypt"
)

// AuthService handles authentication and JWT issuance for admins and
// professionals.
type AuthService struct {
	jwtSecret     string
	adminEmail    string
	adminPassword string
	admins        AdminStore
	pros          ProfessionalStore
}

// NewAuthService creates a new AuthService.
func NewAuthService(jwtSecret, adminEmail, adminPassword string, admins AdminStore, pros ProfessionalStore) *AuthService {
	return &AuthService{
		jwtSecret:     jwtSecret,
		adminEmail:    adminEmail,
		adminPassword: adminPassword,
		admins:        admins,
		pros:          pros,
	}
}

// SeedAdmin creates the default admin account if it doesn't exist.
func (s *AuthService) SeedAdmin(ctx context.Context) error {
	exists, err := s.admins.Exists(ctx, s.adminEmail)
	if err != nil {
		return fmt.Errorf("failed to check admin existence: %w", err)
	}
	if exists {
		log.Printf("✅ Admin account already exists (%s)", s.adminEmail)
		return nil
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(s.adminPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash admin password: %w", err)
	}

	admin := &domain.Admin{
		ID:           domain.NewID(),
		Email:        s.adminEmail,
		PasswordHash: string(hashedPassword),
		CreatedAt:    time.Now().UTC(),
	}

	if err := s.admins.Create(ctx, admin); err != nil {
		return fmt.Errorf("failed to create admin account: %w", err)
	}

	log.Printf("✅ Admin account created (%s)", s.adminEmail)
	return nil
}

// Login validates credentials and returns a JWT token. Admin accounts are
// checked first, then professionals.
func (s *AuthService) Login(ctx context.Context, email, password string) (*domain.LoginResponse, error) {
	admin, err := s.admins.FindByEmail(ctx, email)
	if err != nil {
		return nil, domain.ErrInternal("failed to find account", err)
	}
	if admin != nil {
		if bcrypt.CompareHashAndPassword([]byte(admin.PasswordHash), []byte(password)) != nil {
			return nil, domain.ErrUnauthorized("invalid credentials")
		}
		return s.issueToken(admin.ID, admin.Email, domain.RoleAdmin)
	}

	p, err := s.pros.FindByEmail(ctx, email)
	if err != nil {
		return nil, domain.ErrInternal("failed to find account", err)
	}
	if p == nil {
		return nil, domain.ErrUnauthorized("invalid credentials")
	}
	if bcrypt.CompareHashAndPassword([]byte(p.PasswordHash), []byte(password)) != nil {
		return nil, domain.ErrUnauthorized("invalid credentials")
	}
	return s.issueToken(p.ID, p.Email, domain.RoleProfessional)
}

func (s *AuthService) issueToken(id, email, role string) (*domain.LoginResponse, error) {
	claims := jwt.MapClaims{
		"sub":   id,
		"email": email,
		"role":  role,
		"exp":   time.Now().Add(7 * 24 * time.Hour).Unix(),
		"iat":   time.Now().Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(s.jwtSecret))
	if err != nil {
		return nil, domain.ErrInternal("failed to sign token", err)
	}

	return &domain.LoginResponse{
		Token: signed,
		User: domain.LoginUser{
			ID:    id,
			Email: email,
			Role:  role,
		},
	}, nil
}

// VerifyToken validates a JWT token and returns the claims.
func (s *AuthService) VerifyToken(tokenStr string) (*domain.JWTClaims, error) {
	token, err := jwt.Parse(tokenStr, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(s.jwtSecret), nil
	})
	if err != nil {
		return nil, domain.ErrUnauthorized("invalid or expired token")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, domain.ErrUnauthorized("invalid token claims")
	}

	return &domain.JWTClaims{
		Sub:   getClaimString(claims, "sub"),
		Email: getClaimString(claims, "email"),
		Role:  getClaimString(claims, "role"),
	}, nil
}

func getClaimString(claims jwt.MapClaims, key string) string {
	if v, ok := claims[key].(string); ok {
		return v
	}
	return ""
}
