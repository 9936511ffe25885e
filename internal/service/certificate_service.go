package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/event-nexus-api/internal/models"
	"github.com/noah-isme/event-nexus-api/internal/repository"
	appErrors "github.com/noah-isme/event-nexus-api/pkg/errors"
	"github.com/noah-isme/event-nexus-api/pkg/export"
	"github.com/noah-isme/event-nexus-api/pkg/mailer"
)

type certificateRepository interface {
	FindActiveByUserAndEvent(ctx context.Context, userID, eventID string) (*models.Certificate, error)
	Create(ctx context.Context, cert *models.Certificate) error
	ListByUser(ctx context.Context, userID string) ([]models.CertificateDetail, error)
	FindByID(ctx context.Context, id, ownerID string) (*models.Certificate, error)
	CountActiveByEvent(ctx context.Context, eventID string) (int, error)
}

type userReader interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
}

type rosterReader interface {
	ExistsActive(ctx context.Context, eventID, userID string) (bool, error)
	ListParticipants(ctx context.Context, eventID string) ([]models.Participant, error)
}

type documentRenderer interface {
	Render(data export.CertificateData) ([]byte, error)
}

type documentStore interface {
	Save(filename string, data []byte) (string, error)
	Read(filename string) ([]byte, error)
}

type emailDispatcher interface {
	Send(ctx context.Context, to, subject, body string, attachment *mailer.Attachment) error
}

type notificationWriter interface {
	Create(ctx context.Context, n *models.Notification) error
}

// CertificateService issues participation certificates after an event has
// concluded, one per verified (user, event) pair.
type CertificateService struct {
	repo          certificateRepository
	users         userReader
	events        eventReader
	roster        rosterReader
	renderer      documentRenderer
	store         documentStore
	mail          emailDispatcher
	notifications notificationWriter
	logger        *zap.Logger
	now           func() time.Time
}

// NewCertificateService constructs CertificateService. The notification
// writer is optional.
func NewCertificateService(
	repo certificateRepository,
	users userReader,
	events eventReader,
	roster rosterReader,
	renderer documentRenderer,
	store documentStore,
	mail emailDispatcher,
	notifications notificationWriter,
	logger *zap.Logger,
) *CertificateService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CertificateService{
		repo:          repo,
		users:         users,
		events:        events,
		roster:        roster,
		renderer:      renderer,
		store:         store,
		mail:          mail,
		notifications: notifications,
		logger:        logger,
		now:           func() time.Time { return time.Now().UTC() },
	}
}

// IssueFor generates the certificate for one participant. Re-invoking it for
// a pair that already holds an active certificate returns the existing row
// unchanged and renders nothing.
func (s *CertificateService) IssueFor(ctx context.Context, userID, eventID string) (*models.Certificate, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load user")
	}

	event, err := s.events.FindByID(ctx, eventID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "event not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load event")
	}

	now := s.now()
	if event.StartsAt.After(now) {
		return nil, appErrors.BusinessRule("event", "certificates can only be generated after the event has concluded")
	}

	enrolled, err := s.roster.ExistsActive(ctx, eventID, userID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check participation")
	}
	if !enrolled {
		return nil, appErrors.BusinessRule("participation", "user was not enrolled in this event")
	}

	if existing, err := s.repo.FindActiveByUserAndEvent(ctx, userID, eventID); err == nil {
		return existing, nil
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check existing certificate")
	}

	speaker := ""
	if event.Speaker != nil {
		speaker = *event.Speaker
	}
	pdf, err := s.renderer.Render(export.CertificateData{
		ParticipantName: user.Name,
		EventTitle:      event.Title,
		EventDate:       event.StartsAt,
		EventLocation:   event.Location,
		EventSpeaker:    speaker,
		Institution:     event.InstitutionOrganizer,
		IssuedAt:        now,
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render certificate")
	}

	filename := fmt.Sprintf("certificate_%s_%s_%s.pdf", user.ID, event.ID, now.Format("20060102_150405"))
	path, err := s.store.Save(filename, pdf)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store certificate")
	}

	cert := &models.Certificate{
		UserID:          userID,
		EventID:         eventID,
		GeneratedAt:     now,
		CertificatePath: path,
	}
	if err := s.repo.Create(ctx, cert); err != nil {
		if errors.Is(err, repository.ErrDuplicateCertificate) {
			// A concurrent issuance won the insert; serve its row.
			existing, findErr := s.repo.FindActiveByUserAndEvent(ctx, userID, eventID)
			if findErr != nil {
				return nil, appErrors.Wrap(findErr, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load certificate")
			}
			return existing, nil
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save certificate")
	}
	return cert, nil
}

// IssueForEvent issues certificates for every actively enrolled participant
// of a concluded event. A per-participant failure is logged and skipped so
// the batch always completes.
func (s *CertificateService) IssueForEvent(ctx context.Context, eventID string) ([]*models.Certificate, error) {
	event, err := s.events.FindByID(ctx, eventID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "event not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load event")
	}
	if event.StartsAt.After(s.now()) {
		return nil, appErrors.BusinessRule("event", "certificates can only be generated after the event has concluded")
	}

	participants, err := s.roster.ListParticipants(ctx, eventID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list participants")
	}

	certificates := make([]*models.Certificate, 0, len(participants))
	for _, participant := range participants {
		cert, err := s.IssueFor(ctx, participant.UserID, eventID)
		if err != nil {
			s.logger.Error("failed to issue certificate",
				zap.String("event_id", eventID),
				zap.String("user_id", participant.UserID),
				zap.Error(err),
			)
			continue
		}
		certificates = append(certificates, cert)
	}
	return certificates, nil
}

// ListForUser returns the user's active certificates, newest first.
func (s *CertificateService) ListForUser(ctx context.Context, userID string) ([]models.CertificateDetail, error) {
	certs, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list certificates")
	}
	return certs, nil
}

// GetByID returns an active certificate. When ownerID is non-empty the
// certificate must belong to that user; otherwise it behaves as absent.
func (s *CertificateService) GetByID(ctx context.Context, id, ownerID string) (*models.Certificate, error) {
	cert, err := s.repo.FindByID(ctx, id, ownerID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "certificate not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load certificate")
	}
	return cert, nil
}

// OpenDocument returns the stored PDF bytes for a certificate.
func (s *CertificateService) OpenDocument(ctx context.Context, cert *models.Certificate) ([]byte, error) {
	data, err := s.store.Read(cert.CertificatePath)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to read certificate document")
	}
	return data, nil
}

// SendByEmail delivers an issued certificate to its holder with the PDF
// attached, then records an in-app notification. Email is best-effort: the
// certificate row is already committed and a dispatch failure never touches
// it.
func (s *CertificateService) SendByEmail(ctx context.Context, cert *models.Certificate) error {
	user, err := s.users.FindByID(ctx, cert.UserID)
	if err != nil {
		return fmt.Errorf("load certificate holder: %w", err)
	}
	event, err := s.events.FindByID(ctx, cert.EventID)
	if err != nil {
		return fmt.Errorf("load certificate event: %w", err)
	}

	pdf, err := s.store.Read(cert.CertificatePath)
	if err != nil {
		return fmt.Errorf("read certificate document: %w", err)
	}

	subject := fmt.Sprintf("Your certificate for %q", event.Title)
	body := fmt.Sprintf("Hello %s,\n\nYour participation certificate for the event %q is attached.\n\nEvent Nexus", user.Name, event.Title)
	attachment := &mailer.Attachment{
		Filename: fmt.Sprintf("certificate_%s.pdf", event.ID),
		Content:  pdf,
	}
	if err := s.mail.Send(ctx, user.Email, subject, body, attachment); err != nil {
		return fmt.Errorf("dispatch certificate email: %w", err)
	}

	if s.notifications != nil {
		notification := &models.Notification{
			UserID:  user.ID,
			Title:   "Certificate available",
			Message: fmt.Sprintf("Your certificate for %q has been issued and emailed to you.", event.Title),
		}
		if err := s.notifications.Create(ctx, notification); err != nil {
			s.logger.Warn("failed to record certificate notification",
				zap.String("certificate_id", cert.ID),
				zap.Error(err),
			)
		}
	}
	return nil
}
