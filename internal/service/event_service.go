package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/event-nexus-api/internal/models"
	appErrors "github.com/noah-isme/event-nexus-api/pkg/errors"
)

type eventRepository interface {
	Create(ctx context.Context, event *models.Event) error
	Update(ctx context.Context, event *models.Event) error
	SoftDelete(ctx context.Context, id string) error
	SoftDeleteByOwner(ctx context.Context, ownerID string) (int64, error)
	FindByID(ctx context.Context, id string) (*models.Event, error)
	ListByOwner(ctx context.Context, ownerID string) ([]models.Event, error)
	ListAvailable(ctx context.Context, now time.Time) ([]models.EventSummary, error)
}

type enrollmentCounter interface {
	CountActive(ctx context.Context, eventID string) (int, error)
}

type cacheObserver interface {
	ObserveCacheHit()
	ObserveCacheMiss()
}

// EventRequest describes the payload for creating or updating an event. The
// type arrives as a string and is strictly parsed against the closed
// enumeration; nothing is silently defaulted.
type EventRequest struct {
	Title                string    `json:"title" validate:"required"`
	Description          *string   `json:"description"`
	StartsAt             time.Time `json:"starts_at" validate:"required"`
	Location             string    `json:"location" validate:"required"`
	Capacity             *int      `json:"capacity"`
	Type                 string    `json:"type" validate:"required"`
	Speaker              *string   `json:"speaker"`
	InstitutionOrganizer string    `json:"institution_organizer" validate:"required"`
}

const availableEventsCacheKey = "events:available"

// EventService owns event lifecycle and ownership authorization.
type EventService struct {
	repo        eventRepository
	enrollments enrollmentCounter
	cache       *CacheService
	metrics     cacheObserver
	validator   *validator.Validate
	logger      *zap.Logger
	now         func() time.Time
}

// NewEventService constructs EventService. The cache and its observer are
// optional.
func NewEventService(repo eventRepository, enrollments enrollmentCounter, cache *CacheService, metrics cacheObserver, validate *validator.Validate, logger *zap.Logger) *EventService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EventService{
		repo:        repo,
		enrollments: enrollments,
		cache:       cache,
		metrics:     metrics,
		validator:   validate,
		logger:      logger,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// validateEvent runs every domain rule and accumulates the failures so the
// caller gets the complete list in one response.
func (s *EventService) validateEvent(req EventRequest) ([]appErrors.FieldError, models.EventType) {
	var details []appErrors.FieldError
	now := s.now()

	title := strings.TrimSpace(req.Title)
	if title == "" {
		details = append(details, appErrors.FieldError{Field: "title", Message: "title is required"})
	} else if len(req.Title) > 100 {
		details = append(details, appErrors.FieldError{Field: "title", Message: "title must be at most 100 characters"})
	}

	if req.StartsAt.IsZero() {
		details = append(details, appErrors.FieldError{Field: "starts_at", Message: "event date is required"})
	} else {
		eventDay := req.StartsAt.Truncate(24 * time.Hour)
		today := now.Truncate(24 * time.Hour)
		if eventDay.Before(today) {
			details = append(details, appErrors.FieldError{Field: "starts_at", Message: "event date must not be in the past"})
		} else if eventDay.Equal(today) && req.StartsAt.Before(now) {
			details = append(details, appErrors.FieldError{Field: "starts_at", Message: "event time must not already be in the past"})
		}
	}

	if strings.TrimSpace(req.Location) == "" {
		details = append(details, appErrors.FieldError{Field: "location", Message: "location is required"})
	} else if len(req.Location) > 200 {
		details = append(details, appErrors.FieldError{Field: "location", Message: "location must be at most 200 characters"})
	}

	if req.Capacity != nil && *req.Capacity <= 0 {
		details = append(details, appErrors.FieldError{Field: "capacity", Message: "capacity must be greater than zero"})
	}

	var eventType models.EventType
	if strings.TrimSpace(req.Type) == "" {
		details = append(details, appErrors.FieldError{Field: "type", Message: "event type is required"})
	} else {
		parsed, ok := models.ParseEventType(req.Type)
		if !ok {
			details = append(details, appErrors.FieldError{Field: "type", Message: "unknown event type"})
		}
		eventType = parsed
	}

	if req.Speaker != nil && len(*req.Speaker) > 100 {
		details = append(details, appErrors.FieldError{Field: "speaker", Message: "speaker must be at most 100 characters"})
	}

	if strings.TrimSpace(req.InstitutionOrganizer) == "" {
		details = append(details, appErrors.FieldError{Field: "institution_organizer", Message: "institution organizer is required"})
	} else if len(req.InstitutionOrganizer) > 200 {
		details = append(details, appErrors.FieldError{Field: "institution_organizer", Message: "institution organizer must be at most 200 characters"})
	}

	return details, eventType
}

// Create validates and persists a new event owned by the requester.
func (s *EventService) Create(ctx context.Context, req EventRequest, requesterID string) (*models.Event, error) {
	details, eventType := s.validateEvent(req)
	if requesterID == "" {
		details = append(details, appErrors.FieldError{Field: "created_by", Message: "event creator is required"})
	}
	if len(details) > 0 {
		return nil, appErrors.Validation(details)
	}

	event := &models.Event{
		Title:                strings.TrimSpace(req.Title),
		Description:          req.Description,
		StartsAt:             req.StartsAt,
		Location:             strings.TrimSpace(req.Location),
		Capacity:             req.Capacity,
		Type:                 eventType,
		Speaker:              req.Speaker,
		InstitutionOrganizer: strings.TrimSpace(req.InstitutionOrganizer),
		CreatedBy:            requesterID,
	}
	if err := s.repo.Create(ctx, event); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create event")
	}
	s.invalidateListing(ctx)
	return event, nil
}

// Update re-validates and replaces an event. Only the creator may mutate it
// and the original ownership is always preserved.
func (s *EventService) Update(ctx context.Context, id string, req EventRequest, requesterID string) (*models.Event, error) {
	existing, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "event not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load event")
	}
	if existing.CreatedBy != requesterID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "you do not have permission to edit this event")
	}

	details, eventType := s.validateEvent(req)
	if len(details) > 0 {
		return nil, appErrors.Validation(details)
	}

	event := &models.Event{
		ID:                   existing.ID,
		Title:                strings.TrimSpace(req.Title),
		Description:          req.Description,
		StartsAt:             req.StartsAt,
		Location:             strings.TrimSpace(req.Location),
		Capacity:             req.Capacity,
		Type:                 eventType,
		Speaker:              req.Speaker,
		InstitutionOrganizer: strings.TrimSpace(req.InstitutionOrganizer),
		CreatedBy:            existing.CreatedBy,
		Active:               true,
		CreatedAt:            existing.CreatedAt,
	}
	if err := s.repo.Update(ctx, event); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update event")
	}
	s.invalidateListing(ctx)
	return event, nil
}

// Delete soft-deletes an event after the same lookup and ownership checks as
// Update.
func (s *EventService) Delete(ctx context.Context, id, requesterID string) error {
	existing, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "event not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load event")
	}
	if existing.CreatedBy != requesterID {
		return appErrors.Clone(appErrors.ErrForbidden, "you do not have permission to delete this event")
	}
	if err := s.repo.SoftDelete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete event")
	}
	s.invalidateListing(ctx)
	return nil
}

// DeleteAllByOwner soft-deletes every active event created by the owner.
// Used when an account is deactivated.
func (s *EventService) DeleteAllByOwner(ctx context.Context, ownerID string) error {
	if _, err := s.repo.SoftDeleteByOwner(ctx, ownerID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete owner events")
	}
	s.invalidateListing(ctx)
	return nil
}

// Get returns an active event by ID.
func (s *EventService) Get(ctx context.Context, id string) (*models.Event, error) {
	event, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "event not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load event")
	}
	return event, nil
}

// ListByOwner returns the requester's active events.
func (s *EventService) ListByOwner(ctx context.Context, ownerID string) ([]models.Event, error) {
	events, err := s.repo.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list events")
	}
	return events, nil
}

// ListAvailable returns upcoming active events open for enrollment with
// their remaining slots, ascending by start. Results are served from the
// cache when one is configured.
func (s *EventService) ListAvailable(ctx context.Context) ([]models.EventSummary, error) {
	if s.cache != nil {
		var cached []models.EventSummary
		hit, err := s.cache.GetJSON(ctx, availableEventsCacheKey, &cached)
		if err == nil && hit {
			if s.metrics != nil {
				s.metrics.ObserveCacheHit()
			}
			return cached, nil
		}
		if s.metrics != nil {
			s.metrics.ObserveCacheMiss()
		}
	}

	events, err := s.repo.ListAvailable(ctx, s.now())
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list available events")
	}
	for i := range events {
		events[i].RemainingSlots = remainingSlots(events[i].Capacity, events[i].EnrolledCount)
	}

	if s.cache != nil {
		if err := s.cache.SetJSON(ctx, availableEventsCacheKey, events); err != nil {
			s.logger.Warn("failed to cache available events", zap.Error(err))
		}
	}
	return events, nil
}

// PublicDetail returns the enrollment-facing view of an event, including
// occupancy and whether the event already started.
func (s *EventService) PublicDetail(ctx context.Context, id string) (*models.PublicEventDetail, error) {
	event, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	enrolled, err := s.enrollments.CountActive(ctx, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count enrollments")
	}

	detail := &models.PublicEventDetail{
		EventSummary: models.EventSummary{
			Event:          *event,
			EnrolledCount:  enrolled,
			RemainingSlots: remainingSlots(event.Capacity, enrolled),
		},
		IsPast: event.StartsAt.Before(s.now()),
	}
	if detail.RemainingSlots != nil {
		detail.IsFull = *detail.RemainingSlots <= 0
	}
	return detail, nil
}

func (s *EventService) invalidateListing(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, availableEventsCacheKey); err != nil {
		s.logger.Warn("failed to invalidate events cache", zap.Error(err))
	}
}

func remainingSlots(capacity *int, enrolled int) *int {
	if capacity == nil {
		return nil
	}
	remaining := *capacity - enrolled
	return &remaining
}
