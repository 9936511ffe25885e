package service

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/event-nexus-api/internal/models"
	appErrors "github.com/noah-isme/event-nexus-api/pkg/errors"
	"github.com/noah-isme/event-nexus-api/pkg/export"
)

type reportRepository interface {
	CountEventsByType(ctx context.Context, ownerID string) ([]models.TypeCount, error)
	CountEvents(ctx context.Context, ownerID string) (int, int, error)
	EventStats(ctx context.Context, ownerID string) ([]models.EventStat, error)
}

type datasetExporter interface {
	Render(data export.Dataset) ([]byte, error)
}

// ReportService builds organizer dashboard aggregates and exports.
type ReportService struct {
	repo     reportRepository
	exporter datasetExporter
	logger   *zap.Logger
}

// NewReportService constructs a ReportService instance.
func NewReportService(repo reportRepository, exporter datasetExporter, logger *zap.Logger) *ReportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReportService{repo: repo, exporter: exporter, logger: logger}
}

// OrganizerSummary aggregates the owner's event portfolio with per-type
// percentages computed over active events.
func (s *ReportService) OrganizerSummary(ctx context.Context, ownerID string) (*models.OrganizerSummary, error) {
	total, active, err := s.repo.CountEvents(ctx, ownerID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count events")
	}

	byType, err := s.repo.CountEventsByType(ctx, ownerID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to aggregate events by type")
	}
	for i := range byType {
		if active > 0 {
			byType[i].Percentage = float64(byType[i].Count) / float64(active) * 100
		}
	}

	return &models.OrganizerSummary{
		TotalEvents:    total,
		ActiveEvents:   active,
		InactiveEvents: total - active,
		ByType:         byType,
	}, nil
}

// EventStats returns per-event roster and issuance numbers with occupancy
// rates for capacity-bounded events.
func (s *ReportService) EventStats(ctx context.Context, ownerID string) ([]models.EventStat, error) {
	stats, err := s.repo.EventStats(ctx, ownerID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch event stats")
	}
	for i := range stats {
		if stats[i].Capacity != nil && *stats[i].Capacity > 0 {
			rate := float64(stats[i].EnrolledCount) / float64(*stats[i].Capacity) * 100
			stats[i].OccupancyRate = &rate
		}
	}
	return stats, nil
}

// ExportEventStatsCSV renders the owner's event stats as a CSV document.
func (s *ReportService) ExportEventStatsCSV(ctx context.Context, ownerID string) ([]byte, error) {
	stats, err := s.EventStats(ctx, ownerID)
	if err != nil {
		return nil, err
	}

	dataset := export.Dataset{
		Headers: []string{"Event", "Type", "Date", "Capacity", "Enrolled", "Certificates", "Occupancy"},
		Rows:    make([]map[string]string, 0, len(stats)),
	}
	for _, stat := range stats {
		capacity := "unlimited"
		if stat.Capacity != nil {
			capacity = strconv.Itoa(*stat.Capacity)
		}
		occupancy := "-"
		if stat.OccupancyRate != nil {
			occupancy = fmt.Sprintf("%.1f%%", *stat.OccupancyRate)
		}
		dataset.Rows = append(dataset.Rows, map[string]string{
			"Event":        stat.Title,
			"Type":         stat.Type.Label(),
			"Date":         stat.StartsAt.Format(time.RFC3339),
			"Capacity":     capacity,
			"Enrolled":     strconv.Itoa(stat.EnrolledCount),
			"Certificates": strconv.Itoa(stat.CertificatesCount),
			"Occupancy":    occupancy,
		})
	}

	content, err := s.exporter.Render(dataset)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render csv")
	}
	return content, nil
}
