// Package models defines the data structures used across the application.
// These map to the PostgreSQL schema.
package models

import (
	"time"
)

// ReportStatus is the lifecycle state of a report.
type ReportStatus string

const (
	StatusPending    ReportStatus = "pending"
	StatusAssigned   ReportStatus = "assigned"
	StatusRejected   ReportStatus = "rejected"
	StatusInProgress ReportStatus = "in_progress"
	StatusSuspended  ReportStatus = "suspended"
	StatusResolved   ReportStatus = "resolved"
)

// Report is a citizen-filed municipal issue with a status lifecycle.
// Status is mutated only by the report state machine; rows are never deleted.
type Report struct {
	ID               int64        `json:"id" db:"id"`
	Title            string       `json:"title" db:"title"`
	Description      string       `json:"description" db:"description"`
	Latitude         float64      `json:"latitude" db:"latitude"`
	Longitude        float64      `json:"longitude" db:"longitude"`
	CategoryID       int64        `json:"category_id" db:"category_id"`
	ReporterID       int64        `json:"reporter_id" db:"reporter_id"`
	Status           ReportStatus `json:"status" db:"status"`
	Explanation      string       `json:"explanation,omitempty" db:"explanation"`
	TechnicianID     *int64       `json:"technician_id,omitempty" db:"technician_id"`
	AssignedExternal bool         `json:"assigned_external" db:"assigned_external"`
	CreatedAt        time.Time    `json:"created_at" db:"created_at"`
}

// Category routes reports to an internal office and optionally an external one.
type Category struct {
	ID               int64  `json:"id" db:"id"`
	Name             string `json:"name" db:"name"`
	OfficeID         int64  `json:"office_id" db:"office_id"`
	ExternalOfficeID *int64 `json:"external_office_id,omitempty" db:"external_office_id"`
}

// Office is an organizational unit; external offices belong to third-party maintainers.
type Office struct {
	ID       int64  `json:"id" db:"id"`
	Name     string `json:"name" db:"name"`
	External bool   `json:"external" db:"external"`
}

// User is any actor: citizen, staff member or external maintainer.
// Office membership lives in a separate membership set (user_offices); the
// historical one-to-one office column is normalized away at this boundary.
type User struct {
	ID           int64  `json:"id" db:"id"`
	Username     string `json:"username" db:"username"`
	PasswordHash string `json:"-" db:"password_hash"`
	Role         string `json:"role" db:"role"`
}

// RolePublicRelations is the staff role seeded into every public conversation.
const RolePublicRelations = "public relations officer"

// Photo references an uploaded image attached to a report. The upload itself
// is handled outside this service; only the reference is stored here.
type Photo struct {
	ID       int64  `json:"id" db:"id"`
	ReportID int64  `json:"report_id" db:"report_id"`
	Path     string `json:"path" db:"path"`
}

// Conversation is a message thread attached to a report. A report has at most
// one public and one internal thread, created lazily.
type Conversation struct {
	ID        int64     `json:"id" db:"id"`
	ReportID  int64     `json:"report_id" db:"report_id"`
	Internal  bool      `json:"internal" db:"internal"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`

	// Participants is populated on loads that request membership.
	Participants []User `json:"participants,omitempty" db:"-"`
}

// Message is immutable once created. A nil SenderID marks a system message.
type Message struct {
	ID             int64     `json:"id" db:"id"`
	ConversationID int64     `json:"conversation_id" db:"conversation_id"`
	Content        string    `json:"content" db:"content"`
	SenderID       *int64    `json:"sender_id,omitempty" db:"sender_id"`
	System         bool      `json:"is_system" db:"is_system"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
}

// Notification is one unread marker per (recipient, message) pair.
// Only the Read flag is ever mutated.
type Notification struct {
	ID          int64     `json:"id" db:"id"`
	RecipientID int64     `json:"recipient_id" db:"recipient_id"`
	MessageID   int64     `json:"message_id" db:"message_id"`
	Read        bool      `json:"read" db:"read"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}

// CreateReportInput is the request body for filing a new report.
type CreateReportInput struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	CategoryID  int64    `json:"category_id"`
	ReporterID  int64    `json:"reporter_id"`
	Latitude    float64  `json:"latitude"`
	Longitude   float64  `json:"longitude"`
	Photos      []string `json:"photos,omitempty"`
}

// ReviewAction is the triage decision on a pending report.
type ReviewAction string

const (
	ReviewAccept ReviewAction = "accept"
	ReviewReject ReviewAction = "reject"
)

// ReviewInput is the request body for the review transition.
type ReviewInput struct {
	Action      ReviewAction `json:"action"`
	Explanation string       `json:"explanation,omitempty"`
	CategoryID  *int64       `json:"category_id,omitempty"`
}

// WireSender is the sender shape pushed over live connections.
type WireSender struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
}

// WireMessage is the payload pushed to live connections on broadcast.
type WireMessage struct {
	ID        int64       `json:"id"`
	Content   string      `json:"content"`
	CreatedAt time.Time   `json:"createdAt"`
	System    bool        `json:"isSystem"`
	Sender    *WireSender `json:"sender"`
}

// WirePayload wraps a broadcast message on the socket.
type WirePayload struct {
	Message WireMessage `json:"message"`
}

// HealthStatus is the health check response.
type HealthStatus struct {
	Status   string `json:"status"`
	Version  string `json:"version"`
	Uptime   string `json:"uptime,omitempty"`
	Database string `json:"database,omitempty"`
}
