package httpapi

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"mercadinho/backend/internal/domain"
	"mercadinho/backend/internal/store"
)

type AuthManager struct {
	secret     []byte
	tokenTTL   time.Duration
	managerPIN string
	repo       store.Repository
}

type posCustomClaims struct {
	jwtlib.RegisteredClaims
	Role          string `json:"role"`
	SupermarketID string `json:"supermarket_id"`
}

func NewAuthManager(secret string, tokenTTL time.Duration, managerPIN string, repo store.Repository) *AuthManager {
	if secret == "" {
		secret = "dev-change-me"
	}
	if tokenTTL <= 0 {
		tokenTTL = 8 * time.Hour
	}
	managerPIN = strings.TrimSpace(managerPIN)
	if managerPIN == "" {
		managerPIN = "disabled"
	}
	hashedPIN, err := hashPassword(managerPIN)
	if err == nil {
		managerPIN = hashedPIN
	}

	return &AuthManager{
		secret:     []byte(secret),
		tokenTTL:   tokenTTL,
		managerPIN: managerPIN,
		repo:       repo,
	}
}

// Register creates a supermarket and its owner account in one atomic store
// call and signs the owner straight in.
func (a *AuthManager) Register(ctx context.Context, req domain.RegisterRequest) (domain.LoginResponse, error) {
	ownerName := strings.TrimSpace(req.OwnerName)
	email := strings.ToLower(strings.TrimSpace(req.Email))
	marketName := strings.TrimSpace(req.SupermarketName)
	if ownerName == "" || email == "" || marketName == "" {
		return domain.LoginResponse{}, store.ErrInvalidInput
	}
	if !strings.Contains(email, "@") {
		return domain.LoginResponse{}, store.ErrInvalidInput
	}
	if len(req.Password) < 8 {
		return domain.LoginResponse{}, fmt.Errorf("%w: password must be at least 8 characters", store.ErrInvalidInput)
	}

	passwordHash, err := hashPassword(req.Password)
	if err != nil {
		return domain.LoginResponse{}, fmt.Errorf("hash password: %w", err)
	}

	owner, market, err := a.repo.Register(ctx, domain.User{
		Name:         ownerName,
		Email:        email,
		PasswordHash: passwordHash,
		Role:         domain.RoleOwner,
	}, domain.Supermarket{
		Name:  marketName,
		Theme: domain.ThemeLight,
	})
	if err != nil {
		return domain.LoginResponse{}, err
	}

	expiresAt := time.Now().UTC().Add(a.tokenTTL)
	token, err := a.sign(*owner, expiresAt)
	if err != nil {
		return domain.LoginResponse{}, err
	}

	return domain.LoginResponse{
		AccessToken: token,
		Role:        owner.Role,
		ExpiresAt:   expiresAt.Format(time.RFC3339),
		User:        *owner,
		Supermarket: *market,
	}, nil
}

// Login verifies credentials against the store. All failure paths collapse
// into one "invalid credentials" error so callers cannot tell which emails
// exist.
func (a *AuthManager) Login(ctx context.Context, req domain.LoginRequest) (domain.LoginResponse, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if email == "" {
		return domain.LoginResponse{}, errors.New("invalid credentials")
	}

	user, err := a.repo.GetUserByEmail(ctx, email)
	if err != nil {
		return domain.LoginResponse{}, errors.New("invalid credentials")
	}
	if !verifyPassword(user.PasswordHash, req.Password) {
		return domain.LoginResponse{}, errors.New("invalid credentials")
	}

	market, err := a.repo.GetSupermarket(ctx, user.SupermarketID)
	if err != nil {
		return domain.LoginResponse{}, errors.New("invalid credentials")
	}

	expiresAt := time.Now().UTC().Add(a.tokenTTL)
	token, err := a.sign(*user, expiresAt)
	if err != nil {
		return domain.LoginResponse{}, err
	}

	return domain.LoginResponse{
		AccessToken: token,
		Role:        user.Role,
		ExpiresAt:   expiresAt.Format(time.RFC3339),
		User:        *user,
		Supermarket: *market,
	}, nil
}

func (a *AuthManager) ParseToken(tokenStr string) (domain.Actor, error) {
	claims := &posCustomClaims{}
	token, err := jwtlib.ParseWithClaims(tokenStr, claims, func(t *jwtlib.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwtlib.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return a.secret, nil
	}, jwtlib.WithValidMethods([]string{"HS256"}))
	if err != nil || !token.Valid {
		return domain.Actor{}, errors.New("invalid or expired token")
	}
	sub, err := claims.GetSubject()
	if err != nil || sub == "" {
		return domain.Actor{}, errors.New("invalid token subject")
	}
	role := domain.Role(claims.Role)
	if !role.Valid() || claims.SupermarketID == "" {
		return domain.Actor{}, errors.New("invalid token claims")
	}
	return domain.Actor{UserID: sub, SupermarketID: claims.SupermarketID, Role: role}, nil
}

func (a *AuthManager) sign(user domain.User, expiresAt time.Time) (string, error) {
	claims := posCustomClaims{
		RegisteredClaims: jwtlib.RegisteredClaims{
			Subject:   user.ID,
			IssuedAt:  jwtlib.NewNumericDate(time.Now().UTC()),
			ExpiresAt: jwtlib.NewNumericDate(expiresAt),
			Issuer:    "mercadinho",
		},
		Role:          string(user.Role),
		SupermarketID: user.SupermarketID,
	}
	token := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims)
	return token.SignedString(a.secret)
}

func (a *AuthManager) ValidateManagerPIN(pin string) bool {
	input := strings.TrimSpace(pin)
	if input == "" || !isPasswordHash(a.managerPIN) {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(a.managerPIN), []byte(input)) == nil
}

func verifyPassword(stored string, input string) bool {
	if stored == "" || strings.TrimSpace(input) == "" || !isPasswordHash(stored) {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(stored), []byte(input)) == nil
}

func hashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(bytes), nil
}

func isPasswordHash(value string) bool {
	return strings.HasPrefix(value, "$2a$") || strings.HasPrefix(value, "$2b$") || strings.HasPrefix(value, "$2y$")
}
