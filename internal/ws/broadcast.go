package ws

import (
	"context"

	"go.uber.org/zap"

	"github.com/civicware/report-server/internal/models"
	"github.com/civicware/report-server/internal/services"
	"github.com/civicware/report-server/internal/store"
)

// Engine fans a persisted message out to a conversation's participants:
// one unread notification per recipient, plus a push to every live
// connection. This is the best-effort notification path, not a
// correctness-critical write path.
type Engine struct {
	store    store.Store
	emitter  *services.Emitter
	registry *Registry
	logger   *zap.SugaredLogger
}

// NewEngine creates a broadcast engine.
func NewEngine(st store.Store, emitter *services.Emitter, registry *Registry, logger *zap.SugaredLogger) *Engine {
	return &Engine{store: st, emitter: emitter, registry: registry, logger: logger}
}

// Broadcast resolves the conversation's current participants and delivers
// the message. The sender is skipped entirely: no notification, no push.
// A failure for one participant is logged and never blocks the rest.
func (e *Engine) Broadcast(ctx context.Context, conversationID int64, msg *models.Message) {
	conv, err := e.store.GetConversation(ctx, conversationID)
	if err != nil {
		e.logger.Errorw("Broadcast conversation load failed",
			"conversation_id", conversationID, "error", err)
		return
	}
	if conv == nil {
		return
	}

	payload := e.wirePayload(ctx, conv, msg)

	for _, participant := range conv.Participants {
		if msg.SenderID != nil && *msg.SenderID == participant.ID {
			continue
		}

		if err := e.emitter.CreateNotification(ctx, participant.ID, msg.ID); err != nil {
			e.logger.Errorw("Notification creation failed",
				"conversation_id", conversationID,
				"message_id", msg.ID,
				"recipient_id", participant.ID,
				"error", err,
			)
		}

		for _, client := range e.registry.ListFor(participant.ID) {
			if !client.Push(payload) {
				e.logger.Warnw("Live push dropped",
					"recipient_id", participant.ID,
					"connection_id", client.ID,
					"message_id", msg.ID,
				)
			}
		}
	}
}

// wirePayload shapes the socket payload. The sender's username is resolved
// from the participant set, falling back to a lookup for senders that have
// since left the thread.
func (e *Engine) wirePayload(ctx context.Context, conv *models.Conversation, msg *models.Message) models.WirePayload {
	wire := models.WireMessage{
		ID:        msg.ID,
		Content:   msg.Content,
		CreatedAt: msg.CreatedAt,
		System:    msg.System,
	}

	if msg.SenderID != nil {
		sender := &models.WireSender{ID: *msg.SenderID}
		for _, p := range conv.Participants {
			if p.ID == *msg.SenderID {
				sender.Username = p.Username
				break
			}
		}
		if sender.Username == "" {
			if u, err := e.store.GetUser(ctx, *msg.SenderID); err == nil && u != nil {
				sender.Username = u.Username
			}
		}
		wire.Sender = sender
	}

	return models.WirePayload{Message: wire}
}
