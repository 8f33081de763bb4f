// Package store is the persistence gateway. Services consume the Store
// interface; the pgx-backed implementation lives in postgres.go. Point
// lookups return (nil, nil) when the row is absent so callers can treat
// missing entities as a normal outcome rather than an error.
package store

import (
	"context"

	"github.com/civicware/report-server/internal/models"
)

// Store is the persistence contract consumed by the core services.
// Writes are independent single-entity saves; there are no cross-entity
// transactions, so every caller must tolerate partial failure.
type Store interface {
	// Users and offices.
	GetUser(ctx context.Context, id int64) (*models.User, error)
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)
	ListStaffByRole(ctx context.Context, role string) ([]models.User, error)
	GetOffice(ctx context.Context, id int64) (*models.Office, error)
	IsOfficeMember(ctx context.Context, userID, officeID int64) (bool, error)

	// Categories.
	GetCategory(ctx context.Context, id int64) (*models.Category, error)

	// Reports and photos.
	CreateReport(ctx context.Context, r *models.Report) error
	GetReport(ctx context.Context, id int64) (*models.Report, error)
	UpdateReport(ctx context.Context, r *models.Report) error
	ListReportsByStatus(ctx context.Context, statuses []models.ReportStatus) ([]models.Report, error)
	ListReportsByReporter(ctx context.Context, reporterID int64) ([]models.Report, error)
	CreatePhoto(ctx context.Context, p *models.Photo) error

	// Conversations and membership.
	CreateConversation(ctx context.Context, c *models.Conversation) error
	GetConversation(ctx context.Context, id int64) (*models.Conversation, error)
	GetConversationForReport(ctx context.Context, reportID int64, internal bool) (*models.Conversation, error)
	ListConversationsForReport(ctx context.Context, reportID int64) ([]models.Conversation, error)
	AddParticipant(ctx context.Context, conversationID, userID int64) error
	IsParticipant(ctx context.Context, conversationID, userID int64) (bool, error)

	// Messages.
	CreateMessage(ctx context.Context, m *models.Message) error
	ListMessages(ctx context.Context, conversationID int64) ([]models.Message, error)

	// Notifications.
	CreateNotification(ctx context.Context, n *models.Notification) error
	ListNotificationsForUser(ctx context.Context, userID int64) ([]models.Notification, error)
	MarkNotificationRead(ctx context.Context, id, userID int64) (bool, error)
	CountUnread(ctx context.Context, userID int64) (int64, error)
}
