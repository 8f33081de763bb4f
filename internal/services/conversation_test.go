package services

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"

	"github.com/civicware/report-server/internal/apperr"
	"github.com/civicware/report-server/internal/models"
)

func newConversationFixture() (*memStore, *ConversationService) {
	st := newMemStore()
	seedWorld(st)
	return st, NewConversationService(st, zap.NewNop().Sugar())
}

func seedReport(st *memStore) *models.Report {
	report := &models.Report{
		Title: "t", Description: "d",
		CategoryID: categoryID, ReporterID: citizenID,
		Status: models.StatusPending,
	}
	st.CreateReport(context.Background(), report)
	return report
}

func TestGetOrCreatePublicIsLazy(t *testing.T) {
	st, svc := newConversationFixture()
	report := seedReport(st)

	first, err := svc.GetOrCreatePublic(context.Background(), report)
	if err != nil {
		t.Fatalf("GetOrCreatePublic() error = %v", err)
	}
	second, err := svc.GetOrCreatePublic(context.Background(), report)
	if err != nil {
		t.Fatalf("second GetOrCreatePublic() error = %v", err)
	}
	if first.ID != second.ID {
		t.Fatalf("conversation recreated: %d then %d", first.ID, second.ID)
	}

	loaded, _ := st.GetConversation(context.Background(), first.ID)
	if len(loaded.Participants) != 3 {
		t.Errorf("participants = %d, want reporter + 2 officers", len(loaded.Participants))
	}
}

func TestGetOrCreateInternalSeededEmpty(t *testing.T) {
	st, svc := newConversationFixture()
	report := seedReport(st)

	conv, err := svc.GetOrCreateInternal(context.Background(), report)
	if err != nil {
		t.Fatalf("GetOrCreateInternal() error = %v", err)
	}
	if !conv.Internal {
		t.Error("internal flag not set")
	}

	loaded, _ := st.GetConversation(context.Background(), conv.ID)
	if len(loaded.Participants) != 0 {
		t.Errorf("participants = %d, want 0", len(loaded.Participants))
	}
}

func TestPublicAndInternalAreSeparateThreads(t *testing.T) {
	st, svc := newConversationFixture()
	report := seedReport(st)

	public, _ := svc.GetOrCreatePublic(context.Background(), report)
	internal, _ := svc.GetOrCreateInternal(context.Background(), report)
	if public.ID == internal.ID {
		t.Fatal("public and internal threads share an id")
	}

	convs, _ := st.ListConversationsForReport(context.Background(), report.ID)
	if len(convs) != 2 {
		t.Fatalf("conversations = %d, want 2", len(convs))
	}
}

func TestAddParticipantIsIdempotent(t *testing.T) {
	st, svc := newConversationFixture()
	report := seedReport(st)
	conv, _ := svc.GetOrCreateInternal(context.Background(), report)

	for i := 0; i < 2; i++ {
		if err := svc.AddParticipant(context.Background(), conv.ID, staffID); err != nil {
			t.Fatalf("AddParticipant() #%d error = %v", i+1, err)
		}
	}

	loaded, _ := st.GetConversation(context.Background(), conv.ID)
	if len(loaded.Participants) != 1 {
		t.Fatalf("participants = %d, want 1", len(loaded.Participants))
	}
}

func TestAddParticipantUnknownRefs(t *testing.T) {
	st, svc := newConversationFixture()
	report := seedReport(st)
	conv, _ := svc.GetOrCreateInternal(context.Background(), report)

	var notFound *apperr.NotFoundError

	if err := svc.AddParticipant(context.Background(), 999, staffID); !errors.As(err, &notFound) {
		t.Errorf("unknown conversation: error = %v, want NotFoundError", err)
	}
	if err := svc.AddParticipant(context.Background(), conv.ID, 999); !errors.As(err, &notFound) {
		t.Errorf("unknown user: error = %v, want NotFoundError", err)
	}
}
