package services

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/civicware/report-server/internal/models"
)

// memStore is an in-memory Store used by the service tests. Error hooks let
// individual tests fail specific writes.
type memStore struct {
	mu sync.Mutex

	users         map[int64]models.User
	offices       map[int64]models.Office
	officeMembers map[int64]map[int64]bool
	categories    map[int64]models.Category

	reports map[int64]models.Report
	photos  []models.Photo

	convs        map[int64]models.Conversation
	participants map[int64][]int64

	messages      []models.Message
	notifications []models.Notification
	notified      map[string]bool

	nextID int64

	// Error hook for tests that need a failing report save.
	updateReportErr error
}

func newMemStore() *memStore {
	return &memStore{
		users:         make(map[int64]models.User),
		offices:       make(map[int64]models.Office),
		officeMembers: make(map[int64]map[int64]bool),
		categories:    make(map[int64]models.Category),
		reports:       make(map[int64]models.Report),
		convs:         make(map[int64]models.Conversation),
		participants:  make(map[int64][]int64),
		notified:      make(map[string]bool),
		nextID:        1000,
	}
}

func (m *memStore) id() int64 {
	m.nextID++
	return m.nextID
}

func (m *memStore) addUser(id int64, username, role string) {
	m.users[id] = models.User{ID: id, Username: username, Role: role}
}

func (m *memStore) addOffice(id int64, external bool) {
	m.offices[id] = models.Office{ID: id, Name: fmt.Sprintf("office-%d", id), External: external}
}

func (m *memStore) addMembership(userID, officeID int64) {
	if m.officeMembers[userID] == nil {
		m.officeMembers[userID] = make(map[int64]bool)
	}
	m.officeMembers[userID][officeID] = true
}

func (m *memStore) addCategory(id, officeID int64, externalOfficeID *int64) {
	m.categories[id] = models.Category{ID: id, Name: fmt.Sprintf("cat-%d", id), OfficeID: officeID, ExternalOfficeID: externalOfficeID}
}

func (m *memStore) GetUser(_ context.Context, id int64) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.users[id]; ok {
		return &u, nil
	}
	return nil, nil
}

func (m *memStore) GetUserByUsername(_ context.Context, username string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Username == username {
			u := u
			return &u, nil
		}
	}
	return nil, nil
}

func (m *memStore) ListStaffByRole(_ context.Context, role string) ([]models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.User
	for id := int64(0); id <= m.nextID; id++ {
		if u, ok := m.users[id]; ok && u.Role == role {
			out = append(out, u)
		}
	}
	return out, nil
}

func (m *memStore) GetOffice(_ context.Context, id int64) (*models.Office, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if o, ok := m.offices[id]; ok {
		return &o, nil
	}
	return nil, nil
}

func (m *memStore) IsOfficeMember(_ context.Context, userID, officeID int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.officeMembers[userID][officeID], nil
}

func (m *memStore) GetCategory(_ context.Context, id int64) (*models.Category, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok := m.categories[id]; ok {
		return &c, nil
	}
	return nil, nil
}

func (m *memStore) CreateReport(_ context.Context, r *models.Report) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r.ID = m.id()
	m.reports[r.ID] = *r
	return nil
}

func (m *memStore) GetReport(_ context.Context, id int64) (*models.Report, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r, ok := m.reports[id]; ok {
		return &r, nil
	}
	return nil, nil
}

func (m *memStore) UpdateReport(_ context.Context, r *models.Report) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.updateReportErr != nil {
		return m.updateReportErr
	}
	m.reports[r.ID] = *r
	return nil
}

func (m *memStore) ListReportsByStatus(_ context.Context, statuses []models.ReportStatus) ([]models.Report, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Report
	for _, r := range m.reports {
		for _, st := range statuses {
			if r.Status == st {
				out = append(out, r)
				break
			}
		}
	}
	return out, nil
}

func (m *memStore) ListReportsByReporter(_ context.Context, reporterID int64) ([]models.Report, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Report
	for _, r := range m.reports {
		if r.ReporterID == reporterID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *memStore) CreatePhoto(_ context.Context, p *models.Photo) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p.ID = m.id()
	m.photos = append(m.photos, *p)
	return nil
}

func (m *memStore) CreateConversation(_ context.Context, c *models.Conversation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c.ID = m.id()
	m.convs[c.ID] = *c
	return nil
}

func (m *memStore) GetConversation(_ context.Context, id int64) (*models.Conversation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.convs[id]
	if !ok {
		return nil, nil
	}
	for _, uid := range m.participants[id] {
		c.Participants = append(c.Participants, m.users[uid])
	}
	return &c, nil
}

func (m *memStore) GetConversationForReport(_ context.Context, reportID int64, internal bool) (*models.Conversation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.convs {
		if c.ReportID == reportID && c.Internal == internal {
			c := c
			return &c, nil
		}
	}
	return nil, nil
}

func (m *memStore) ListConversationsForReport(_ context.Context, reportID int64) ([]models.Conversation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Conversation
	for _, c := range m.convs {
		if c.ReportID == reportID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (m *memStore) AddParticipant(_ context.Context, conversationID, userID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.participants[conversationID] {
		if existing == userID {
			return nil
		}
	}
	m.participants[conversationID] = append(m.participants[conversationID], userID)
	return nil
}

func (m *memStore) IsParticipant(_ context.Context, conversationID, userID int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.participants[conversationID] {
		if existing == userID {
			return true, nil
		}
	}
	return false, nil
}

func (m *memStore) CreateMessage(_ context.Context, msg *models.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	msg.ID = m.id()
	m.messages = append(m.messages, *msg)
	return nil
}

func (m *memStore) ListMessages(_ context.Context, conversationID int64) ([]models.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Message
	for _, msg := range m.messages {
		if msg.ConversationID == conversationID {
			out = append(out, msg)
		}
	}
	return out, nil
}

func (m *memStore) CreateNotification(_ context.Context, n *models.Notification) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := fmt.Sprintf("%d/%d", n.RecipientID, n.MessageID)
	if m.notified[key] {
		return nil
	}
	m.notified[key] = true
	n.ID = m.id()
	m.notifications = append(m.notifications, *n)
	return nil
}

func (m *memStore) ListNotificationsForUser(_ context.Context, userID int64) ([]models.Notification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Notification
	for _, n := range m.notifications {
		if n.RecipientID == userID {
			out = append(out, n)
		}
	}
	return out, nil
}

func (m *memStore) MarkNotificationRead(_ context.Context, id, userID int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, n := range m.notifications {
		if n.ID == id && n.RecipientID == userID {
			m.notifications[i].Read = true
			return true, nil
		}
	}
	return false, nil
}

func (m *memStore) CountUnread(_ context.Context, userID int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var count int64
	for _, n := range m.notifications {
		if n.RecipientID == userID && !n.Read {
			count++
		}
	}
	return count, nil
}

// messagesIn returns the message contents recorded for a conversation.
func (m *memStore) messagesIn(conversationID int64) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for _, msg := range m.messages {
		if msg.ConversationID == conversationID {
			out = append(out, msg.Content)
		}
	}
	return out
}

// recordingBroadcaster captures broadcast calls instead of fanning out.
type recordingBroadcaster struct {
	mu    sync.Mutex
	calls []broadcastCall
}

type broadcastCall struct {
	conversationID int64
	msg            models.Message
}

func (b *recordingBroadcaster) Broadcast(_ context.Context, conversationID int64, msg *models.Message) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls = append(b.calls, broadcastCall{conversationID: conversationID, msg: *msg})
}

func (b *recordingBroadcaster) count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.calls)
}

// newReportFixture wires a report service over a fresh memStore.
func newReportFixture() (*memStore, *recordingBroadcaster, *ReportService) {
	st := newMemStore()
	logger := zap.NewNop().Sugar()
	emitter := NewEmitter(st, nil, logger)
	conversations := NewConversationService(st, logger)
	broadcaster := &recordingBroadcaster{}
	svc := NewReportService(st, conversations, emitter, broadcaster, logger)
	return st, broadcaster, svc
}
