package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/civicware/report-server/internal/models"
)

// Postgres implements Store on a pgx connection pool.
type Postgres struct {
	db *pgxpool.Pool
}

// NewPostgres creates a Postgres store backed by the given pool.
func NewPostgres(db *pgxpool.Pool) *Postgres {
	return &Postgres{db: db}
}

// GetUser looks up a user by id.
func (s *Postgres) GetUser(ctx context.Context, id int64) (*models.User, error) {
	query := `SELECT id, username, password_hash, role FROM users WHERE id = $1`

	var u models.User
	err := s.db.QueryRow(ctx, query, id).Scan(&u.ID, &u.Username, &u.PasswordHash, &u.Role)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("select user: %w", err)
	}
	return &u, nil
}

// GetUserByUsername looks up a user by username for login.
func (s *Postgres) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	query := `SELECT id, username, password_hash, role FROM users WHERE username = $1`

	var u models.User
	err := s.db.QueryRow(ctx, query, username).Scan(&u.ID, &u.Username, &u.PasswordHash, &u.Role)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("select user by username: %w", err)
	}
	return &u, nil
}

// ListStaffByRole returns every user holding the given role. Used to seed
// public conversations with public relations officers.
func (s *Postgres) ListStaffByRole(ctx context.Context, role string) ([]models.User, error) {
	query := `SELECT id, username, password_hash, role FROM users WHERE role = $1 ORDER BY id`

	rows, err := s.db.Query(ctx, query, role)
	if err != nil {
		return nil, fmt.Errorf("select staff by role: %w", err)
	}
	defer rows.Close()

	var users []models.User
	for rows.Next() {
		var u models.User
		if err := rows.Scan(&u.ID, &u.Username, &u.PasswordHash, &u.Role); err != nil {
			continue
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// IsOfficeMember reports whether the user belongs to the office. Membership
// is a set: a user may belong to several offices or none.
func (s *Postgres) IsOfficeMember(ctx context.Context, userID, officeID int64) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM user_offices WHERE user_id = $1 AND office_id = $2)`

	var ok bool
	if err := s.db.QueryRow(ctx, query, userID, officeID).Scan(&ok); err != nil {
		return false, fmt.Errorf("select office membership: %w", err)
	}
	return ok, nil
}

// GetOffice looks up an office by id.
func (s *Postgres) GetOffice(ctx context.Context, id int64) (*models.Office, error) {
	query := `SELECT id, name, external FROM offices WHERE id = $1`

	var o models.Office
	err := s.db.QueryRow(ctx, query, id).Scan(&o.ID, &o.Name, &o.External)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("select office: %w", err)
	}
	return &o, nil
}

// GetCategory looks up a category by id.
func (s *Postgres) GetCategory(ctx context.Context, id int64) (*models.Category, error) {
	query := `SELECT id, name, office_id, external_office_id FROM categories WHERE id = $1`

	var c models.Category
	err := s.db.QueryRow(ctx, query, id).Scan(&c.ID, &c.Name, &c.OfficeID, &c.ExternalOfficeID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("select category: %w", err)
	}
	return &c, nil
}

// CreateReport inserts a new report and fills its id and creation time.
func (s *Postgres) CreateReport(ctx context.Context, r *models.Report) error {
	now := time.Now()
	query := `
		INSERT INTO reports (title, description, latitude, longitude, category_id, reporter_id, status, explanation, technician_id, assigned_external, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id
	`

	r.CreatedAt = now
	err := s.db.QueryRow(ctx, query,
		r.Title, r.Description, r.Latitude, r.Longitude,
		r.CategoryID, r.ReporterID, r.Status, r.Explanation,
		r.TechnicianID, r.AssignedExternal, now,
	).Scan(&r.ID)
	if err != nil {
		return fmt.Errorf("insert report: %w", err)
	}
	return nil
}

// GetReport looks up a report by id.
func (s *Postgres) GetReport(ctx context.Context, id int64) (*models.Report, error) {
	query := `
		SELECT id, title, description, latitude, longitude, category_id, reporter_id, status, explanation, technician_id, assigned_external, created_at
		FROM reports WHERE id = $1
	`

	var r models.Report
	err := s.db.QueryRow(ctx, query, id).Scan(
		&r.ID, &r.Title, &r.Description, &r.Latitude, &r.Longitude,
		&r.CategoryID, &r.ReporterID, &r.Status, &r.Explanation,
		&r.TechnicianID, &r.AssignedExternal, &r.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("select report: %w", err)
	}
	return &r, nil
}

// UpdateReport saves the mutable fields of a report. Last write wins; there
// is no version column.
func (s *Postgres) UpdateReport(ctx context.Context, r *models.Report) error {
	query := `
		UPDATE reports
		SET status = $2, explanation = $3, technician_id = $4, assigned_external = $5, category_id = $6
		WHERE id = $1
	`

	_, err := s.db.Exec(ctx, query, r.ID, r.Status, r.Explanation, r.TechnicianID, r.AssignedExternal, r.CategoryID)
	if err != nil {
		return fmt.Errorf("update report: %w", err)
	}
	return nil
}

// ListReportsByStatus returns reports whose status is in the given set,
// newest first.
func (s *Postgres) ListReportsByStatus(ctx context.Context, statuses []models.ReportStatus) ([]models.Report, error) {
	query := `
		SELECT id, title, description, latitude, longitude, category_id, reporter_id, status, explanation, technician_id, assigned_external, created_at
		FROM reports WHERE status = ANY($1)
		ORDER BY created_at DESC
	`

	set := make([]string, len(statuses))
	for i, st := range statuses {
		set[i] = string(st)
	}

	rows, err := s.db.Query(ctx, query, set)
	if err != nil {
		return nil, fmt.Errorf("select reports by status: %w", err)
	}
	defer rows.Close()

	return scanReports(rows)
}

// ListReportsByReporter returns every report filed by the given user, newest first.
func (s *Postgres) ListReportsByReporter(ctx context.Context, reporterID int64) ([]models.Report, error) {
	query := `
		SELECT id, title, description, latitude, longitude, category_id, reporter_id, status, explanation, technician_id, assigned_external, created_at
		FROM reports WHERE reporter_id = $1
		ORDER BY created_at DESC
	`

	rows, err := s.db.Query(ctx, query, reporterID)
	if err != nil {
		return nil, fmt.Errorf("select reports by reporter: %w", err)
	}
	defer rows.Close()

	return scanReports(rows)
}

func scanReports(rows pgx.Rows) ([]models.Report, error) {
	var reports []models.Report
	for rows.Next() {
		var r models.Report
		if err := rows.Scan(
			&r.ID, &r.Title, &r.Description, &r.Latitude, &r.Longitude,
			&r.CategoryID, &r.ReporterID, &r.Status, &r.Explanation,
			&r.TechnicianID, &r.AssignedExternal, &r.CreatedAt,
		); err != nil {
			continue
		}
		reports = append(reports, r)
	}
	return reports, rows.Err()
}

// CreatePhoto inserts a photo reference for a report.
func (s *Postgres) CreatePhoto(ctx context.Context, p *models.Photo) error {
	query := `INSERT INTO photos (report_id, path) VALUES ($1, $2) RETURNING id`

	if err := s.db.QueryRow(ctx, query, p.ReportID, p.Path).Scan(&p.ID); err != nil {
		return fmt.Errorf("insert photo: %w", err)
	}
	return nil
}

// CreateConversation inserts a conversation and fills its id and creation time.
func (s *Postgres) CreateConversation(ctx context.Context, c *models.Conversation) error {
	now := time.Now()
	query := `INSERT INTO conversations (report_id, internal, created_at) VALUES ($1, $2, $3) RETURNING id`

	c.CreatedAt = now
	if err := s.db.QueryRow(ctx, query, c.ReportID, c.Internal, now).Scan(&c.ID); err != nil {
		return fmt.Errorf("insert conversation: %w", err)
	}
	return nil
}

// GetConversation loads a conversation together with its participant set.
func (s *Postgres) GetConversation(ctx context.Context, id int64) (*models.Conversation, error) {
	query := `SELECT id, report_id, internal, created_at FROM conversations WHERE id = $1`

	var c models.Conversation
	err := s.db.QueryRow(ctx, query, id).Scan(&c.ID, &c.ReportID, &c.Internal, &c.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("select conversation: %w", err)
	}

	participants, err := s.listParticipants(ctx, c.ID)
	if err != nil {
		return nil, err
	}
	c.Participants = participants
	return &c, nil
}

// GetConversationForReport returns the public or internal thread of a report,
// or nil when it has not been created yet.
func (s *Postgres) GetConversationForReport(ctx context.Context, reportID int64, internal bool) (*models.Conversation, error) {
	query := `SELECT id, report_id, internal, created_at FROM conversations WHERE report_id = $1 AND internal = $2`

	var c models.Conversation
	err := s.db.QueryRow(ctx, query, reportID, internal).Scan(&c.ID, &c.ReportID, &c.Internal, &c.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("select conversation for report: %w", err)
	}
	return &c, nil
}

// ListConversationsForReport returns every thread attached to a report.
func (s *Postgres) ListConversationsForReport(ctx context.Context, reportID int64) ([]models.Conversation, error) {
	query := `SELECT id, report_id, internal, created_at FROM conversations WHERE report_id = $1 ORDER BY id`

	rows, err := s.db.Query(ctx, query, reportID)
	if err != nil {
		return nil, fmt.Errorf("select conversations for report: %w", err)
	}
	defer rows.Close()

	var convs []models.Conversation
	for rows.Next() {
		var c models.Conversation
		if err := rows.Scan(&c.ID, &c.ReportID, &c.Internal, &c.CreatedAt); err != nil {
			continue
		}
		convs = append(convs, c)
	}
	return convs, rows.Err()
}

func (s *Postgres) listParticipants(ctx context.Context, conversationID int64) ([]models.User, error) {
	query := `
		SELECT u.id, u.username, u.password_hash, u.role
		FROM users u
		JOIN conversation_participants cp ON cp.user_id = u.id
		WHERE cp.conversation_id = $1
		ORDER BY u.id
	`

	rows, err := s.db.Query(ctx, query, conversationID)
	if err != nil {
		return nil, fmt.Errorf("select participants: %w", err)
	}
	defer rows.Close()

	var users []models.User
	for rows.Next() {
		var u models.User
		if err := rows.Scan(&u.ID, &u.Username, &u.PasswordHash, &u.Role); err != nil {
			continue
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// AddParticipant adds a user to a conversation. The membership table has a
// primary key on (conversation_id, user_id) so re-adding is a no-op.
func (s *Postgres) AddParticipant(ctx context.Context, conversationID, userID int64) error {
	query := `
		INSERT INTO conversation_participants (conversation_id, user_id)
		VALUES ($1, $2)
		ON CONFLICT (conversation_id, user_id) DO NOTHING
	`

	if _, err := s.db.Exec(ctx, query, conversationID, userID); err != nil {
		return fmt.Errorf("insert participant: %w", err)
	}
	return nil
}

// IsParticipant reports whether the user is a member of the conversation.
func (s *Postgres) IsParticipant(ctx context.Context, conversationID, userID int64) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM conversation_participants WHERE conversation_id = $1 AND user_id = $2)`

	var ok bool
	if err := s.db.QueryRow(ctx, query, conversationID, userID).Scan(&ok); err != nil {
		return false, fmt.Errorf("select participant: %w", err)
	}
	return ok, nil
}

// CreateMessage inserts a message and fills its id and creation time.
func (s *Postgres) CreateMessage(ctx context.Context, m *models.Message) error {
	now := time.Now()
	query := `
		INSERT INTO messages (conversation_id, content, sender_id, is_system, created_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`

	m.CreatedAt = now
	err := s.db.QueryRow(ctx, query, m.ConversationID, m.Content, m.SenderID, m.System, now).Scan(&m.ID)
	if err != nil {
		return fmt.Errorf("insert message: %w", err)
	}
	return nil
}

// ListMessages returns a conversation's messages in persistence order:
// creation time, tie-broken by id.
func (s *Postgres) ListMessages(ctx context.Context, conversationID int64) ([]models.Message, error) {
	query := `
		SELECT id, conversation_id, content, sender_id, is_system, created_at
		FROM messages WHERE conversation_id = $1
		ORDER BY created_at, id
	`

	rows, err := s.db.Query(ctx, query, conversationID)
	if err != nil {
		return nil, fmt.Errorf("select messages: %w", err)
	}
	defer rows.Close()

	var msgs []models.Message
	for rows.Next() {
		var m models.Message
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.Content, &m.SenderID, &m.System, &m.CreatedAt); err != nil {
			continue
		}
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}

// CreateNotification inserts an unread marker. The table is unique on
// (recipient_id, message_id); a duplicate insert is a no-op so a pair is
// never notified twice for the same message.
func (s *Postgres) CreateNotification(ctx context.Context, n *models.Notification) error {
	now := time.Now()
	query := `
		INSERT INTO notifications (recipient_id, message_id, read, created_at)
		VALUES ($1, $2, false, $3)
		ON CONFLICT (recipient_id, message_id) DO NOTHING
		RETURNING id
	`

	n.CreatedAt = now
	err := s.db.QueryRow(ctx, query, n.RecipientID, n.MessageID, now).Scan(&n.ID)
	if errors.Is(err, pgx.ErrNoRows) {
		// Conflict path: the pair already exists.
		return nil
	}
	if err != nil {
		return fmt.Errorf("insert notification: %w", err)
	}
	return nil
}

// ListNotificationsForUser returns a user's notifications, newest first.
func (s *Postgres) ListNotificationsForUser(ctx context.Context, userID int64) ([]models.Notification, error) {
	query := `
		SELECT id, recipient_id, message_id, read, created_at
		FROM notifications WHERE recipient_id = $1
		ORDER BY created_at DESC, id DESC
	`

	rows, err := s.db.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("select notifications: %w", err)
	}
	defer rows.Close()

	var notes []models.Notification
	for rows.Next() {
		var n models.Notification
		if err := rows.Scan(&n.ID, &n.RecipientID, &n.MessageID, &n.Read, &n.CreatedAt); err != nil {
			continue
		}
		notes = append(notes, n)
	}
	return notes, rows.Err()
}

// MarkNotificationRead flips the read flag. Returns false when the
// notification does not exist or belongs to another user.
func (s *Postgres) MarkNotificationRead(ctx context.Context, id, userID int64) (bool, error) {
	query := `UPDATE notifications SET read = true WHERE id = $1 AND recipient_id = $2`

	tag, err := s.db.Exec(ctx, query, id, userID)
	if err != nil {
		return false, fmt.Errorf("update notification: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// CountUnread returns the number of unread notifications for a user.
func (s *Postgres) CountUnread(ctx context.Context, userID int64) (int64, error) {
	var count int64
	err := s.db.QueryRow(ctx, `SELECT COUNT(*) FROM notifications WHERE recipient_id = $1 AND read = false`, userID).Scan(&count)
	return count, err
}
