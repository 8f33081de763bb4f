// Package services contains business logic layers.
// Services are called by handlers and interact with the persistence gateway.
package services

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/civicware/report-server/internal/apperr"
	"github.com/civicware/report-server/internal/models"
	"github.com/civicware/report-server/internal/store"
)

// ConversationService manages report threads and their membership.
// Threads are created lazily: which staff and external users ever touch a
// report is not known upfront, so membership grows as the report progresses.
type ConversationService struct {
	store  store.Store
	logger *zap.SugaredLogger
}

// NewConversationService creates a new conversation service
func NewConversationService(st store.Store, logger *zap.SugaredLogger) *ConversationService {
	return &ConversationService{store: st, logger: logger}
}

// GetOrCreatePublic returns the report's citizen-facing thread, creating it
// on first need. A new thread is seeded with the reporting user plus every
// staff member holding the public relations officer role.
func (s *ConversationService) GetOrCreatePublic(ctx context.Context, report *models.Report) (*models.Conversation, error) {
	conv, err := s.store.GetConversationForReport(ctx, report.ID, false)
	if err != nil {
		return nil, err
	}
	if conv != nil {
		return conv, nil
	}

	conv = &models.Conversation{ReportID: report.ID, Internal: false}
	if err := s.store.CreateConversation(ctx, conv); err != nil {
		return nil, err
	}

	if err := s.store.AddParticipant(ctx, conv.ID, report.ReporterID); err != nil {
		return nil, fmt.Errorf("seed reporter: %w", err)
	}

	officers, err := s.store.ListStaffByRole(ctx, models.RolePublicRelations)
	if err != nil {
		return nil, fmt.Errorf("resolve pr officers: %w", err)
	}
	for _, officer := range officers {
		if err := s.store.AddParticipant(ctx, conv.ID, officer.ID); err != nil {
			return nil, fmt.Errorf("seed officer %d: %w", officer.ID, err)
		}
	}

	s.logger.Infow("Public conversation created",
		"conversation_id", conv.ID,
		"report_id", report.ID,
		"seeded_officers", len(officers),
	)
	return conv, nil
}

// GetOrCreateInternal returns the staff/external-office thread, creating it
// empty on first need.
func (s *ConversationService) GetOrCreateInternal(ctx context.Context, report *models.Report) (*models.Conversation, error) {
	conv, err := s.store.GetConversationForReport(ctx, report.ID, true)
	if err != nil {
		return nil, err
	}
	if conv != nil {
		return conv, nil
	}

	conv = &models.Conversation{ReportID: report.ID, Internal: true}
	if err := s.store.CreateConversation(ctx, conv); err != nil {
		return nil, err
	}

	s.logger.Infow("Internal conversation created",
		"conversation_id", conv.ID,
		"report_id", report.ID,
	)
	return conv, nil
}

// AddParticipant adds a user to a conversation. Adding an existing
// participant is a no-op; membership is unique by user id.
func (s *ConversationService) AddParticipant(ctx context.Context, conversationID, userID int64) error {
	conv, err := s.store.GetConversation(ctx, conversationID)
	if err != nil {
		return err
	}
	if conv == nil {
		return apperr.NotFound("conversation", conversationID)
	}

	user, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return err
	}
	if user == nil {
		return apperr.NotFound("user", userID)
	}

	return s.store.AddParticipant(ctx, conversationID, userID)
}

// ListForReport returns every thread attached to a report.
func (s *ConversationService) ListForReport(ctx context.Context, reportID int64) ([]models.Conversation, error) {
	return s.store.ListConversationsForReport(ctx, reportID)
}

// Messages returns a conversation's messages in persistence order.
func (s *ConversationService) Messages(ctx context.Context, conversationID int64) ([]models.Message, error) {
	conv, err := s.store.GetConversation(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if conv == nil {
		return nil, apperr.NotFound("conversation", conversationID)
	}
	return s.store.ListMessages(ctx, conversationID)
}
