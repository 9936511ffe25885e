package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/event-nexus-api/internal/models"
	"github.com/noah-isme/event-nexus-api/internal/repository"
	appErrors "github.com/noah-isme/event-nexus-api/pkg/errors"
)

type enrollmentRepository interface {
	ExistsActive(ctx context.Context, eventID, userID string) (bool, error)
	CountActive(ctx context.Context, eventID string) (int, error)
	Enroll(ctx context.Context, eventID, userID string, now time.Time) (*models.Enrollment, error)
	Cancel(ctx context.Context, eventID, userID string) (bool, error)
	ListEventsForUser(ctx context.Context, userID string) ([]models.EventSummary, error)
	ListParticipants(ctx context.Context, eventID string) ([]models.Participant, error)
}

type eventReader interface {
	FindByID(ctx context.Context, id string) (*models.Event, error)
}

// EnrollmentService owns the participant roster: it enforces the capacity,
// duplicate and temporal constraints around enrollment.
type EnrollmentService struct {
	repo   enrollmentRepository
	events eventReader
	logger *zap.Logger
	now    func() time.Time
}

// NewEnrollmentService constructs EnrollmentService.
func NewEnrollmentService(repo enrollmentRepository, events eventReader, logger *zap.Logger) *EnrollmentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EnrollmentService{
		repo:   repo,
		events: events,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Enroll registers the user for the event. The duplicate and capacity checks
// here are advisory for a friendly error in the common case; the repository
// transaction and the store's unique constraint are the authoritative
// defense under concurrent requests.
func (s *EnrollmentService) Enroll(ctx context.Context, eventID, userID string) (*models.Enrollment, error) {
	event, err := s.loadEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	if event.StartsAt.Before(now) {
		return nil, appErrors.BusinessRule("event", "cannot enroll in a past event")
	}

	exists, err := s.repo.ExistsActive(ctx, eventID, userID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check enrollment")
	}
	if exists {
		return nil, appErrors.BusinessRule("enrollment", "you are already enrolled in this event")
	}

	if event.Capacity != nil {
		enrolled, err := s.repo.CountActive(ctx, eventID)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count enrollments")
		}
		if enrolled >= *event.Capacity {
			return nil, appErrors.BusinessRule("event", "this event is full")
		}
	}

	enrollment, err := s.repo.Enroll(ctx, eventID, userID, now)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrDuplicateEnrollment):
			return nil, appErrors.BusinessRule("enrollment", "you are already enrolled in this event")
		case errors.Is(err, repository.ErrCapacityExceeded):
			return nil, appErrors.BusinessRule("event", "this event is full")
		case errors.Is(err, sql.ErrNoRows):
			return nil, appErrors.Clone(appErrors.ErrNotFound, "event not found")
		default:
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to enroll")
		}
	}
	return enrollment, nil
}

// Cancel deactivates the user's roster row. Enrollment for an event that has
// already started cannot be cancelled.
func (s *EnrollmentService) Cancel(ctx context.Context, eventID, userID string) error {
	event, err := s.loadEvent(ctx, eventID)
	if err != nil {
		return err
	}

	if event.StartsAt.Before(s.now()) {
		return appErrors.BusinessRule("event", "cannot cancel enrollment for a past event")
	}

	cancelled, err := s.repo.Cancel(ctx, eventID, userID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to cancel enrollment")
	}
	if !cancelled {
		return appErrors.Clone(appErrors.ErrNotFound, "you are not enrolled in this event")
	}
	return nil
}

// ListForUser returns the active events the user is enrolled in, ascending
// by start, each with its remaining slots.
func (s *EnrollmentService) ListForUser(ctx context.Context, userID string) ([]models.EventSummary, error) {
	events, err := s.repo.ListEventsForUser(ctx, userID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list enrollments")
	}
	for i := range events {
		events[i].RemainingSlots = remainingSlots(events[i].Capacity, events[i].EnrolledCount)
	}
	return events, nil
}

// ListParticipants returns the event's active roster. Only the event's
// creator may see it.
func (s *EnrollmentService) ListParticipants(ctx context.Context, eventID, requesterID string) ([]models.Participant, error) {
	event, err := s.loadEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if event.CreatedBy != requesterID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "you do not have permission to view this event's participants")
	}

	participants, err := s.repo.ListParticipants(ctx, eventID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list participants")
	}
	return participants, nil
}

func (s *EnrollmentService) loadEvent(ctx context.Context, eventID string) (*models.Event, error) {
	event, err := s.events.FindByID(ctx, eventID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "event not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load event")
	}
	return event, nil
}
