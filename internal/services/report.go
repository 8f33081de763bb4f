package services

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/civicware/report-server/internal/apperr"
	"github.com/civicware/report-server/internal/models"
	"github.com/civicware/report-server/internal/store"
)

// Broadcaster pushes an already-persisted message to the live connections of
// a conversation's participants and records their unread notifications.
type Broadcaster interface {
	Broadcast(ctx context.Context, conversationID int64, msg *models.Message)
}

// System message texts appended on each status transition.
const (
	MsgPending          = "Report status change to: Pending Approval"
	MsgAssigned         = "Report status change to: Assigned"
	MsgRejected         = "Report status change to: Rejected"
	MsgInProgress       = "Report status change to: In Progress"
	MsgSuspended        = "Report status change to: Suspended"
	MsgResolved         = "Report status change to: Resolved"
	MsgInProgressResume = "Report status change to: In Progress (Resumed)"
	MsgAssignedResume   = "Report status change to: Assigned (Resumed)"
	MsgExternalAssigned = "Report assigned to external office"
)

// ReportService is the report state machine. Each public method is one
// business transition: it validates preconditions, persists the new status,
// then records and broadcasts a system message in the right conversations.
//
// Missing reports and failed preconditions yield (nil, nil) so the HTTP
// layer can answer 404 uniformly; typed errors are reserved for invalid
// input. The status write is the source of truth: once it has been
// persisted, conversation and notification side effects are best-effort and
// never roll it back.
type ReportService struct {
	store         store.Store
	conversations *ConversationService
	emitter       *Emitter
	broadcaster   Broadcaster
	logger        *zap.SugaredLogger
}

// NewReportService creates a new report service
func NewReportService(st store.Store, conversations *ConversationService, emitter *Emitter, broadcaster Broadcaster, logger *zap.SugaredLogger) *ReportService {
	return &ReportService{
		store:         st,
		conversations: conversations,
		emitter:       emitter,
		broadcaster:   broadcaster,
		logger:        logger,
	}
}

// Get returns a report by id, or nil when absent.
func (s *ReportService) Get(ctx context.Context, id int64) (*models.Report, error) {
	return s.store.GetReport(ctx, id)
}

// ListByStatus returns reports whose status is in the given set.
func (s *ReportService) ListByStatus(ctx context.Context, statuses []models.ReportStatus) ([]models.Report, error) {
	if len(statuses) == 0 {
		return nil, apperr.BadRequest("at least one status is required")
	}
	return s.store.ListReportsByStatus(ctx, statuses)
}

// ListByReporter returns every report filed by the given user.
func (s *ReportService) ListByReporter(ctx context.Context, reporterID int64) ([]models.Report, error) {
	return s.store.ListReportsByReporter(ctx, reporterID)
}

// Create files a new report with status pending, opens its public
// conversation and announces the initial status there.
func (s *ReportService) Create(ctx context.Context, in models.CreateReportInput) (*models.Report, error) {
	if in.Title == "" || in.Description == "" {
		return nil, apperr.BadRequest("title and description are required")
	}

	reporter, err := s.store.GetUser(ctx, in.ReporterID)
	if err != nil {
		return nil, err
	}
	if reporter == nil {
		return nil, apperr.NotFound("user", in.ReporterID)
	}

	category, err := s.store.GetCategory(ctx, in.CategoryID)
	if err != nil {
		return nil, err
	}
	if category == nil {
		return nil, apperr.NotFound("category", in.CategoryID)
	}

	report := &models.Report{
		Title:       in.Title,
		Description: in.Description,
		Latitude:    in.Latitude,
		Longitude:   in.Longitude,
		CategoryID:  in.CategoryID,
		ReporterID:  in.ReporterID,
		Status:      models.StatusPending,
	}
	if err := s.store.CreateReport(ctx, report); err != nil {
		return nil, err
	}

	for _, path := range in.Photos {
		s.sideEffect("create/photo", report.ID, func() error {
			return s.store.CreatePhoto(ctx, &models.Photo{ReportID: report.ID, Path: path})
		})
	}

	s.sideEffect("create/announce", report.ID, func() error {
		conv, err := s.conversations.GetOrCreatePublic(ctx, report)
		if err != nil {
			return err
		}
		return s.announce(ctx, conv.ID, MsgPending)
	})

	s.logger.Infow("Report created", "report_id", report.ID, "category_id", report.CategoryID)
	return report, nil
}

// Review accepts or rejects a pending report. Accept moves it to assigned
// and may reassign its category; reject is terminal and stores the
// explanation given to the citizen.
func (s *ReportService) Review(ctx context.Context, reportID int64, in models.ReviewInput) (*models.Report, error) {
	if in.Action != models.ReviewAccept && in.Action != models.ReviewReject {
		return nil, apperr.BadRequest("action must be accept or reject")
	}

	report, err := s.store.GetReport(ctx, reportID)
	if err != nil {
		return nil, err
	}
	if report == nil {
		return nil, nil
	}

	var text string
	if in.Action == models.ReviewReject {
		report.Status = models.StatusRejected
		report.Explanation = in.Explanation
		text = MsgRejected
		if in.Explanation != "" {
			text = fmt.Sprintf("%s: %s", MsgRejected, in.Explanation)
		}
	} else {
		report.Status = models.StatusAssigned
		report.Explanation = ""
		if in.CategoryID != nil {
			report.CategoryID = *in.CategoryID
		}
		text = MsgAssigned
	}

	if err := s.store.UpdateReport(ctx, report); err != nil {
		return nil, err
	}

	s.announcePublic(ctx, "review", report, text)

	s.logger.Infow("Report reviewed", "report_id", report.ID, "action", in.Action, "status", report.Status)
	return report, nil
}

// Start puts a report in progress under the given technician. The
// technician joins every thread attached to the report.
func (s *ReportService) Start(ctx context.Context, reportID, technicianID int64) (*models.Report, error) {
	report, err := s.store.GetReport(ctx, reportID)
	if err != nil {
		return nil, err
	}
	if report == nil {
		return nil, nil
	}

	report.Status = models.StatusInProgress
	report.TechnicianID = &technicianID
	if err := s.store.UpdateReport(ctx, report); err != nil {
		return nil, err
	}

	s.sideEffect("start/announce", report.ID, func() error {
		convs, err := s.conversations.ListForReport(ctx, report.ID)
		if err != nil {
			return err
		}
		for _, conv := range convs {
			if err := s.conversations.AddParticipant(ctx, conv.ID, technicianID); err != nil {
				s.logger.Errorw("Adding technician to conversation failed",
					"report_id", report.ID, "conversation_id", conv.ID, "error", err)
			}
			if err := s.announce(ctx, conv.ID, MsgInProgress); err != nil {
				s.logger.Errorw("Status announcement failed",
					"report_id", report.ID, "conversation_id", conv.ID, "error", err)
			}
		}
		return nil
	})

	s.logger.Infow("Report started", "report_id", report.ID, "technician_id", technicianID)
	return report, nil
}

// Finish resolves a report. The caller must be the technician the report is
// assigned to; a mismatch yields (nil, nil) and leaves the status untouched.
func (s *ReportService) Finish(ctx context.Context, reportID, technicianID int64) (*models.Report, error) {
	report, err := s.store.GetReport(ctx, reportID)
	if err != nil {
		return nil, err
	}
	if report == nil || report.TechnicianID == nil || *report.TechnicianID != technicianID {
		return nil, nil
	}

	report.Status = models.StatusResolved
	if err := s.store.UpdateReport(ctx, report); err != nil {
		return nil, err
	}

	s.announcePublic(ctx, "finish", report, MsgResolved)

	s.logger.Infow("Report resolved", "report_id", report.ID, "technician_id", technicianID)
	return report, nil
}

// Suspend pauses work on a report. The technician reference is left as-is so
// Resume can infer whether work had already started.
func (s *ReportService) Suspend(ctx context.Context, reportID, technicianID int64) (*models.Report, error) {
	report, err := s.store.GetReport(ctx, reportID)
	if err != nil {
		return nil, err
	}
	if report == nil {
		return nil, nil
	}

	report.Status = models.StatusSuspended
	if err := s.store.UpdateReport(ctx, report); err != nil {
		return nil, err
	}

	s.announcePublic(ctx, "suspend", report, MsgSuspended)

	s.logger.Infow("Report suspended", "report_id", report.ID)
	return report, nil
}

// Resume restores a suspended report: back to in_progress when a technician
// is assigned, otherwise back to assigned.
func (s *ReportService) Resume(ctx context.Context, reportID, technicianID int64) (*models.Report, error) {
	report, err := s.store.GetReport(ctx, reportID)
	if err != nil {
		return nil, err
	}
	if report == nil {
		return nil, nil
	}

	text := MsgAssignedResume
	report.Status = models.StatusAssigned
	if report.TechnicianID != nil {
		report.Status = models.StatusInProgress
		text = MsgInProgressResume
	}
	if err := s.store.UpdateReport(ctx, report); err != nil {
		return nil, err
	}

	s.announcePublic(ctx, "resume", report, text)

	s.logger.Infow("Report resumed", "report_id", report.ID, "status", report.Status)
	return report, nil
}

// AssignToExternalMaintainer flags the report for external handling, joins
// the internal staff member to both threads and announces the delegation in
// each. The internal thread is created here on first need.
func (s *ReportService) AssignToExternalMaintainer(ctx context.Context, reportID, staffID int64) (*models.Report, error) {
	report, err := s.store.GetReport(ctx, reportID)
	if err != nil {
		return nil, err
	}
	if report == nil {
		return nil, nil
	}

	report.AssignedExternal = true

	s.sideEffect("assign-external/public", report.ID, func() error {
		conv, err := s.store.GetConversationForReport(ctx, report.ID, false)
		if err != nil {
			return err
		}
		if conv == nil {
			return nil
		}
		if err := s.conversations.AddParticipant(ctx, conv.ID, staffID); err != nil {
			return err
		}
		return s.announce(ctx, conv.ID, MsgExternalAssigned)
	})

	s.sideEffect("assign-external/internal", report.ID, func() error {
		conv, err := s.conversations.GetOrCreateInternal(ctx, report)
		if err != nil {
			return err
		}
		if err := s.conversations.AddParticipant(ctx, conv.ID, staffID); err != nil {
			return err
		}
		return s.announce(ctx, conv.ID, MsgExternalAssigned)
	})

	if err := s.store.UpdateReport(ctx, report); err != nil {
		return nil, err
	}

	s.logger.Infow("Report assigned to external office", "report_id", report.ID, "staff_id", staffID)
	return report, nil
}

// ExternalStart is Start driven by an external maintainer.
func (s *ReportService) ExternalStart(ctx context.Context, reportID, maintainerID int64) (*models.Report, error) {
	return s.externalTransition(ctx, "external-start", reportID, maintainerID, func(r *models.Report) string {
		r.Status = models.StatusInProgress
		r.TechnicianID = &maintainerID
		return MsgInProgress
	})
}

// ExternalFinish is Finish driven by an external maintainer. The office
// membership checks replace the internal technician-match precondition.
func (s *ReportService) ExternalFinish(ctx context.Context, reportID, maintainerID int64) (*models.Report, error) {
	return s.externalTransition(ctx, "external-finish", reportID, maintainerID, func(r *models.Report) string {
		r.Status = models.StatusResolved
		return MsgResolved
	})
}

// ExternalSuspend is Suspend driven by an external maintainer.
func (s *ReportService) ExternalSuspend(ctx context.Context, reportID, maintainerID int64) (*models.Report, error) {
	return s.externalTransition(ctx, "external-suspend", reportID, maintainerID, func(r *models.Report) string {
		r.Status = models.StatusSuspended
		return MsgSuspended
	})
}

// ExternalResume is Resume driven by an external maintainer.
func (s *ReportService) ExternalResume(ctx context.Context, reportID, maintainerID int64) (*models.Report, error) {
	return s.externalTransition(ctx, "external-resume", reportID, maintainerID, func(r *models.Report) string {
		if r.TechnicianID != nil {
			r.Status = models.StatusInProgress
			return MsgInProgressResume
		}
		r.Status = models.StatusAssigned
		return MsgAssignedResume
	})
}

// externalTransition runs one external-maintainer transition: re-validate
// the delegation preconditions, apply the status change, then join the
// maintainer to the public thread and announce there.
func (s *ReportService) externalTransition(ctx context.Context, op string, reportID, maintainerID int64, apply func(*models.Report) string) (*models.Report, error) {
	report, err := s.store.GetReport(ctx, reportID)
	if err != nil {
		return nil, err
	}
	if report == nil {
		return nil, nil
	}

	ok, err := s.externalPreconditions(ctx, report, maintainerID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}

	text := apply(report)
	if err := s.store.UpdateReport(ctx, report); err != nil {
		return nil, err
	}

	s.sideEffect(op+"/announce", report.ID, func() error {
		conv, err := s.store.GetConversationForReport(ctx, report.ID, false)
		if err != nil {
			return err
		}
		if conv == nil {
			return nil
		}
		if err := s.conversations.AddParticipant(ctx, conv.ID, maintainerID); err != nil {
			return err
		}
		return s.announce(ctx, conv.ID, text)
	})

	s.logger.Infow("External transition applied", "op", op, "report_id", report.ID, "maintainer_id", maintainerID)
	return report, nil
}

// externalPreconditions checks that the report is delegated, its category
// routes to an external office, and the maintainer belongs to that office.
// Any failed check reads as "precondition not met", never as an error.
func (s *ReportService) externalPreconditions(ctx context.Context, report *models.Report, maintainerID int64) (bool, error) {
	if !report.AssignedExternal {
		return false, nil
	}

	category, err := s.store.GetCategory(ctx, report.CategoryID)
	if err != nil {
		return false, err
	}
	if category == nil || category.ExternalOfficeID == nil {
		return false, nil
	}

	member, err := s.store.IsOfficeMember(ctx, maintainerID, *category.ExternalOfficeID)
	if err != nil {
		return false, err
	}
	if !member {
		return false, nil
	}

	office, err := s.store.GetOffice(ctx, *category.ExternalOfficeID)
	if err != nil {
		return false, err
	}
	return office != nil && office.External, nil
}

// announce records a system message and hands it to the broadcast engine.
func (s *ReportService) announce(ctx context.Context, conversationID int64, text string) error {
	msg, err := s.emitter.EmitSystem(ctx, conversationID, text)
	if err != nil {
		return err
	}
	s.broadcaster.Broadcast(ctx, conversationID, msg)
	return nil
}

// announcePublic announces in the public thread if it exists; a report with
// no public thread yet simply gets no audit message.
func (s *ReportService) announcePublic(ctx context.Context, op string, report *models.Report, text string) {
	s.sideEffect(op+"/announce", report.ID, func() error {
		conv, err := s.store.GetConversationForReport(ctx, report.ID, false)
		if err != nil {
			return err
		}
		if conv == nil {
			return nil
		}
		return s.announce(ctx, conv.ID, text)
	})
}

// sideEffect runs an advisory step and records its failure instead of
// propagating it. The persisted status is the source of truth; the
// conversation trail must not make the workflow fragile.
func (s *ReportService) sideEffect(op string, reportID int64, fn func() error) {
	if err := fn(); err != nil {
		s.logger.Errorw("Side effect failed", "op", op, "report_id", reportID, "error", err)
	}
}
