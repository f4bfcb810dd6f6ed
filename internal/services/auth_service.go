package services

import (
	"strings"
	"time"

	"github.com/saeid-a/ConsultBookBack/pkg/utils"
)

const RoleAdmin = "admin"

// AuthService authenticates the single admin account configured through the
// environment. The configured password may be plain text or a bcrypt hash.
type AuthService struct {
	adminEmail   string
	passwordHash string
	jwtSecret    string
	tokenTTL     time.Duration
}

func NewAuthService(adminEmail, adminPassword, jwtSecret string, tokenTTL time.Duration) (*AuthService, error) {
	hash := adminPassword
	if adminPassword != "" && !strings.HasPrefix(adminPassword, "$2") {
		hashed, err := utils.HashPassword(adminPassword)
		if err != nil {
			return nil, err
		}
		hash = hashed
	}
	if tokenTTL <= 0 {
		tokenTTL = utils.DefaultTokenTTL
	}
	return &AuthService{
		adminEmail:   strings.ToLower(strings.TrimSpace(adminEmail)),
		passwordHash: hash,
		jwtSecret:    jwtSecret,
		tokenTTL:     tokenTTL,
	}, nil
}

type LoginResult struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	Role      string    `json:"role"`
}

func (s *AuthService) Login(email, password string) (*LoginResult, error) {
	if s.adminEmail == "" || s.passwordHash == "" {
		return nil, ErrInvalidCredentials
	}
	if strings.ToLower(strings.TrimSpace(email)) != s.adminEmail || !utils.CheckPassword(password, s.passwordHash) {
		return nil, ErrInvalidCredentials
	}

	token, err := utils.GenerateTokenWithTTL(s.adminEmail, RoleAdmin, s.jwtSecret, s.tokenTTL)
	if err != nil {
		return nil, err
	}
	return &LoginResult{
		Token:     token,
		ExpiresAt: time.Now().Add(s.tokenTTL).UTC(),
		Role:      RoleAdmin,
	}, nil
}
