package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/civicware/report-server/internal/apperr"
	"github.com/civicware/report-server/internal/models"
)

func TestLoginAndVerifyToken(t *testing.T) {
	st := newMemStore()
	hash, err := bcrypt.GenerateFromPassword([]byte("hunter2"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("bcrypt: %v", err)
	}
	st.users[7] = models.User{ID: 7, Username: "rossi", PasswordHash: string(hash), Role: "staff"}

	svc := NewAuthService(st, "test-secret", time.Hour, zap.NewNop().Sugar())

	token, user, err := svc.Login(context.Background(), "rossi", "hunter2")
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	if user.ID != 7 {
		t.Errorf("user id = %d, want 7", user.ID)
	}

	userID, err := svc.VerifyToken(token)
	if err != nil {
		t.Fatalf("VerifyToken() error = %v", err)
	}
	if userID != 7 {
		t.Errorf("token subject = %d, want 7", userID)
	}
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	st := newMemStore()
	hash, _ := bcrypt.GenerateFromPassword([]byte("hunter2"), bcrypt.MinCost)
	st.users[7] = models.User{ID: 7, Username: "rossi", PasswordHash: string(hash), Role: "staff"}

	svc := NewAuthService(st, "test-secret", time.Hour, zap.NewNop().Sugar())

	var forbidden *apperr.InsufficientRightsError
	if _, _, err := svc.Login(context.Background(), "rossi", "wrong"); !errors.As(err, &forbidden) {
		t.Errorf("wrong password: error = %v, want InsufficientRightsError", err)
	}
	if _, _, err := svc.Login(context.Background(), "nobody", "hunter2"); !errors.As(err, &forbidden) {
		t.Errorf("unknown user: error = %v, want InsufficientRightsError", err)
	}

	var badRequest *apperr.BadRequestError
	if _, _, err := svc.Login(context.Background(), "", ""); !errors.As(err, &badRequest) {
		t.Errorf("empty credentials: error = %v, want BadRequestError", err)
	}
}

func TestVerifyTokenRejectsGarbage(t *testing.T) {
	st := newMemStore()
	svc := NewAuthService(st, "test-secret", time.Hour, zap.NewNop().Sugar())

	if _, err := svc.VerifyToken("not-a-token"); err == nil {
		t.Error("garbage token accepted")
	}

	other := NewAuthService(st, "other-secret", time.Hour, zap.NewNop().Sugar())
	hash, _ := bcrypt.GenerateFromPassword([]byte("pw"), bcrypt.MinCost)
	st.users[1] = models.User{ID: 1, Username: "u", PasswordHash: string(hash)}
	token, _, err := other.Login(context.Background(), "u", "pw")
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	if _, err := svc.VerifyToken(token); err == nil {
		t.Error("token signed with a different secret accepted")
	}
}
