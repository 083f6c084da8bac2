package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"inventory-service/internal/models"
	"inventory-service/internal/store"
	"inventory-service/internal/util"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

const (
	tokenIssuer       = "inventory-service"
	purposeAccess     = "access"
	purposeReset      = "password_reset"
	minPasswordLength = 8
	defaultTokenTTL   = time.Hour
	defaultResetTTL   = 30 * time.Minute
)

// Claims are carried by every token this service signs
type Claims struct {
	jwtlib.RegisteredClaims
	Role    string `json:"role"`
	UserID  int64  `json:"id"`
	Purpose string `json:"purpose"`
	// Stamp ties a reset token to the password it replaces
	Stamp string `json:"stamp,omitempty"`
}

// Actor is the authenticated caller
type Actor struct {
	UserID int64
	Email  string
	Role   string
}

func (a Actor) IsManager() bool  { return a.Role == models.RoleManager }
func (a Actor) IsSupplier() bool { return a.Role == models.RoleSupplier }

// AuthService handles accounts and tokens
type AuthService struct {
	repo     store.Repository
	mailer   Mailer
	secret   []byte
	tokenTTL time.Duration
	resetTTL time.Duration
	logger   *zap.Logger
}

func NewAuthService(repo store.Repository, mailer Mailer, secret string, tokenTTL, resetTTL time.Duration) *AuthService {
	if mailer == nil {
		mailer = NewLogMailer()
	}
	if tokenTTL <= 0 {
		tokenTTL = defaultTokenTTL
	}
	if resetTTL <= 0 {
		resetTTL = defaultResetTTL
	}
	return &AuthService{
		repo:     repo,
		mailer:   mailer,
		secret:   []byte(secret),
		tokenTTL: tokenTTL,
		resetTTL: resetTTL,
		logger:   util.GetLogger(),
	}
}

type RegisterRequest struct {
	Email       string `json:"email" binding:"required,email,max=100"`
	Password    string `json:"password" binding:"required,min=8"`
	FullName    string `json:"full_name" binding:"required,max=100"`
	PhoneNumber string `json:"phone_number" binding:"omitempty,max=20"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type TokenResponse struct {
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type"`
	ExpiresAt   time.Time `json:"expires_at"`
	Role        string    `json:"role"`
	UserID      int64     `json:"user_id"`
}

// Register creates a supplier account
func (s *AuthService) Register(ctx context.Context, req *RegisterRequest) (*models.User, error) {
	if len(req.Password) < minPasswordLength {
		return nil, invalidInput("password must be at least %d characters", minPasswordLength)
	}
	hash, err := hashPassword(req.Password)
	if err != nil {
		return nil, err
	}

	u := &models.User{
		Email:        normalizeEmail(req.Email),
		PasswordHash: hash,
		FullName:     strings.TrimSpace(req.FullName),
		Role:         models.RoleSupplier,
		PhoneNumber:  strings.TrimSpace(req.PhoneNumber),
	}
	if err := s.repo.CreateUser(ctx, u); err != nil {
		if errors.Is(err, store.ErrConflict) {
			return nil, fmt.Errorf("%w: email %s is already registered", store.ErrConflict, u.Email)
		}
		return nil, err
	}

	s.logger.Info("Supplier registered", zap.Int64("user_id", u.ID))
	return u, nil
}

// Login checks credentials and issues an access token
func (s *AuthService) Login(ctx context.Context, req *LoginRequest) (*TokenResponse, error) {
	u, err := s.repo.GetUserByEmail(ctx, normalizeEmail(req.Email))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("%w: invalid credentials", ErrUnauthorized)
		}
		return nil, err
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(req.Password)) != nil {
		return nil, fmt.Errorf("%w: invalid credentials", ErrUnauthorized)
	}

	expiresAt := time.Now().UTC().Add(s.tokenTTL)
	token, err := s.sign(u, purposeAccess, expiresAt)
	if err != nil {
		return nil, err
	}

	return &TokenResponse{
		AccessToken: token,
		TokenType:   "bearer",
		ExpiresAt:   expiresAt,
		Role:        u.Role,
		UserID:      u.ID,
	}, nil
}

// Authenticate turns an access token into the caller it was issued to
func (s *AuthService) Authenticate(tokenStr string) (Actor, error) {
	claims, err := s.parse(tokenStr)
	if err != nil {
		return Actor{}, err
	}
	if claims.Purpose != purposeAccess {
		return Actor{}, fmt.Errorf("%w: not an access token", ErrUnauthorized)
	}
	return Actor{UserID: claims.UserID, Email: claims.Subject, Role: claims.Role}, nil
}

// ForgotPassword mails a reset token. Unknown emails succeed silently.
func (s *AuthService) ForgotPassword(ctx context.Context, email string) error {
	u, err := s.repo.GetUserByEmail(ctx, normalizeEmail(email))
	if errors.Is(err, store.ErrNotFound) {
		s.logger.Info("Password reset requested for unknown email")
		return nil
	}
	if err != nil {
		return err
	}

	token, err := s.sign(u, purposeReset, time.Now().UTC().Add(s.resetTTL))
	if err != nil {
		return err
	}
	return s.mailer.SendPasswordReset(ctx, u.Email, token)
}

// ResetPassword sets a new password using a reset token. The new password must differ,
// and a token stops working once the password it was issued against has changed.
func (s *AuthService) ResetPassword(ctx context.Context, token, newPassword string) error {
	claims, err := s.parse(token)
	if err != nil {
		return err
	}
	if claims.Purpose != purposeReset {
		return fmt.Errorf("%w: not a reset token", ErrUnauthorized)
	}
	if len(newPassword) < minPasswordLength {
		return invalidInput("password must be at least %d characters", minPasswordLength)
	}

	u, err := s.repo.GetUserByID(ctx, claims.UserID)
	if err != nil {
		return fmt.Errorf("user %d: %w", claims.UserID, err)
	}
	if claims.Stamp != passwordStamp(u.PasswordHash) {
		return fmt.Errorf("%w: reset token already used", ErrUnauthorized)
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(newPassword)) == nil {
		return invalidInput("new password must be different from the old one")
	}

	hash, err := hashPassword(newPassword)
	if err != nil {
		return err
	}
	if err := s.repo.UpdateUserPassword(ctx, u.ID, hash); err != nil {
		return err
	}

	s.logger.Info("Password reset", zap.Int64("user_id", u.ID))
	return nil
}

// SeedManager creates the manager account if it does not exist yet
func (s *AuthService) SeedManager(ctx context.Context, email, password, name string) error {
	if email == "" || password == "" {
		return nil
	}
	email = normalizeEmail(email)
	if _, err := s.repo.GetUserByEmail(ctx, email); err == nil {
		return nil
	} else if !errors.Is(err, store.ErrNotFound) {
		return err
	}

	hash, err := hashPassword(password)
	if err != nil {
		return err
	}
	u := &models.User{Email: email, PasswordHash: hash, FullName: name, Role: models.RoleManager}
	if err := s.repo.CreateUser(ctx, u); err != nil && !errors.Is(err, store.ErrConflict) {
		return err
	}

	s.logger.Info("Manager account seeded", zap.String("email", email))
	return nil
}

func (s *AuthService) sign(u *models.User, purpose string, expiresAt time.Time) (string, error) {
	claims := Claims{
		RegisteredClaims: jwtlib.RegisteredClaims{
			Subject:   u.Email,
			ID:        strconv.FormatInt(time.Now().UnixNano(), 36),
			IssuedAt:  jwtlib.NewNumericDate(time.Now().UTC()),
			ExpiresAt: jwtlib.NewNumericDate(expiresAt),
			Issuer:    tokenIssuer,
		},
		Role:    u.Role,
		UserID:  u.ID,
		Purpose: purpose,
	}
	if purpose == purposeReset {
		claims.Stamp = passwordStamp(u.PasswordHash)
	}
	token := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

func (s *AuthService) parse(tokenStr string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwtlib.ParseWithClaims(tokenStr, claims, func(t *jwtlib.Token) (interface{}, error) {
		return s.secret, nil
	}, jwtlib.WithValidMethods([]string{"HS256"}), jwtlib.WithIssuer(tokenIssuer))
	if err != nil || !token.Valid {
		return nil, fmt.Errorf("%w: invalid or expired token", ErrUnauthorized)
	}
	return claims, nil
}

func passwordStamp(passwordHash string) string {
	sum := sha256.Sum256([]byte(passwordHash))
	return hex.EncodeToString(sum[:8])
}

func hashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hash), nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
