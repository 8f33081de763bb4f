package services

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/civicware/report-server/internal/apperr"
	"github.com/civicware/report-server/internal/models"
	"github.com/civicware/report-server/internal/store"
)

// AuthService verifies credentials and mints the tokens used by both the
// HTTP routes and the websocket handshake.
type AuthService struct {
	store    store.Store
	secret   []byte
	tokenTTL time.Duration
	logger   *zap.SugaredLogger
}

// NewAuthService creates a new auth service
func NewAuthService(st store.Store, secret string, tokenTTL time.Duration, logger *zap.SugaredLogger) *AuthService {
	return &AuthService{store: st, secret: []byte(secret), tokenTTL: tokenTTL, logger: logger}
}

// Login checks a username/password pair and returns a signed token plus the
// authenticated user.
func (s *AuthService) Login(ctx context.Context, username, password string) (string, *models.User, error) {
	if username == "" || password == "" {
		return "", nil, apperr.BadRequest("username and password are required")
	}

	user, err := s.store.GetUserByUsername(ctx, username)
	if err != nil {
		return "", nil, err
	}
	if user == nil {
		return "", nil, apperr.InsufficientRights("invalid credentials")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return "", nil, apperr.InsufficientRights("invalid credentials")
	}

	now := time.Now()
	claims := jwt.MapClaims{
		"sub":  strconv.FormatInt(user.ID, 10),
		"role": user.Role,
		"iat":  now.Unix(),
		"exp":  now.Add(s.tokenTTL).Unix(),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", nil, fmt.Errorf("sign token: %w", err)
	}

	s.logger.Infow("User logged in", "user_id", user.ID, "role", user.Role)
	return token, user, nil
}

// VerifyToken parses a token and returns the user id it carries. Used by the
// websocket handshake, which must reject before registering the connection.
func (s *AuthService) VerifyToken(tokenStr string) (int64, error) {
	token, err := jwt.Parse(tokenStr, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil || !token.Valid {
		return 0, apperr.InsufficientRights("invalid or expired token")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return 0, apperr.InsufficientRights("invalid token claims")
	}
	sub, err := claims.GetSubject()
	if err != nil {
		return 0, apperr.InsufficientRights("invalid token subject")
	}
	userID, err := strconv.ParseInt(sub, 10, 64)
	if err != nil {
		return 0, apperr.InsufficientRights("invalid token subject")
	}
	return userID, nil
}
