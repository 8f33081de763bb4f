package services

import (
	"context"

	"go.uber.org/zap"

	"github.com/civicware/report-server/internal/apperr"
	"github.com/civicware/report-server/internal/models"
	"github.com/civicware/report-server/internal/store"
)

// UnreadInvalidator drops a user's cached unread count after a notification
// write. Implemented by NotificationService; may be nil.
type UnreadInvalidator interface {
	Invalidate(ctx context.Context, userID int64)
}

// Emitter creates message and notification records. It is a pure
// record-creation step: fan-out to live connections is the broadcast
// engine's job.
type Emitter struct {
	store  store.Store
	unread UnreadInvalidator
	logger *zap.SugaredLogger
}

// NewEmitter creates a new emitter
func NewEmitter(st store.Store, unread UnreadInvalidator, logger *zap.SugaredLogger) *Emitter {
	return &Emitter{store: st, unread: unread, logger: logger}
}

// EmitSystem records a system-generated message with no sender.
func (e *Emitter) EmitSystem(ctx context.Context, conversationID int64, text string) (*models.Message, error) {
	msg := &models.Message{
		ConversationID: conversationID,
		Content:        text,
		System:         true,
	}
	if err := e.store.CreateMessage(ctx, msg); err != nil {
		return nil, err
	}
	return msg, nil
}

// EmitUser records a message from a participant. The sender must already be
// a member of the conversation.
func (e *Emitter) EmitUser(ctx context.Context, conversationID, senderID int64, text string) (*models.Message, error) {
	if text == "" {
		return nil, apperr.BadRequest("message content is required")
	}

	member, err := e.store.IsParticipant(ctx, conversationID, senderID)
	if err != nil {
		return nil, err
	}
	if !member {
		return nil, apperr.InsufficientRights("sender is not a participant of the conversation")
	}

	msg := &models.Message{
		ConversationID: conversationID,
		Content:        text,
		SenderID:       &senderID,
	}
	if err := e.store.CreateMessage(ctx, msg); err != nil {
		return nil, err
	}
	return msg, nil
}

// CreateNotification records one unread marker for a (recipient, message)
// pair. The store guarantees the pair is never duplicated.
func (e *Emitter) CreateNotification(ctx context.Context, recipientID, messageID int64) error {
	n := &models.Notification{RecipientID: recipientID, MessageID: messageID}
	if err := e.store.CreateNotification(ctx, n); err != nil {
		return err
	}
	if e.unread != nil {
		e.unread.Invalidate(ctx, recipientID)
	}
	return nil
}
