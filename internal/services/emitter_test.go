package services

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"

	"github.com/civicware/report-server/internal/apperr"
)

func newEmitterFixture() (*memStore, *Emitter, int64) {
	st := newMemStore()
	seedWorld(st)
	report := seedReport(st)

	conversations := NewConversationService(st, zap.NewNop().Sugar())
	conv, _ := conversations.GetOrCreatePublic(context.Background(), report)

	return st, NewEmitter(st, nil, zap.NewNop().Sugar()), conv.ID
}

func TestEmitSystem(t *testing.T) {
	_, emitter, convID := newEmitterFixture()

	msg, err := emitter.EmitSystem(context.Background(), convID, "Report status change to: Assigned")
	if err != nil {
		t.Fatalf("EmitSystem() error = %v", err)
	}
	if !msg.System {
		t.Error("is_system not set")
	}
	if msg.SenderID != nil {
		t.Errorf("sender = %v, want nil", msg.SenderID)
	}
	if msg.ID == 0 {
		t.Error("message id not assigned")
	}
}

func TestEmitUserRequiresMembership(t *testing.T) {
	_, emitter, convID := newEmitterFixture()

	// The citizen is a seeded participant; staff is not.
	msg, err := emitter.EmitUser(context.Background(), convID, citizenID, "any update?")
	if err != nil {
		t.Fatalf("EmitUser() error = %v", err)
	}
	if msg.System || msg.SenderID == nil || *msg.SenderID != citizenID {
		t.Errorf("message = %+v, want user message from %d", msg, citizenID)
	}

	var forbidden *apperr.InsufficientRightsError
	if _, err := emitter.EmitUser(context.Background(), convID, staffID, "hi"); !errors.As(err, &forbidden) {
		t.Errorf("non-participant: error = %v, want InsufficientRightsError", err)
	}

	var badRequest *apperr.BadRequestError
	if _, err := emitter.EmitUser(context.Background(), convID, citizenID, ""); !errors.As(err, &badRequest) {
		t.Errorf("empty content: error = %v, want BadRequestError", err)
	}
}

func TestCreateNotificationDedupesPair(t *testing.T) {
	st, emitter, convID := newEmitterFixture()

	msg, _ := emitter.EmitSystem(context.Background(), convID, "x")
	for i := 0; i < 2; i++ {
		if err := emitter.CreateNotification(context.Background(), officerAID, msg.ID); err != nil {
			t.Fatalf("CreateNotification() #%d error = %v", i+1, err)
		}
	}

	notes, _ := st.ListNotificationsForUser(context.Background(), officerAID)
	if len(notes) != 1 {
		t.Fatalf("notifications = %d, want 1", len(notes))
	}
	if notes[0].Read {
		t.Error("notification created already read")
	}
}
