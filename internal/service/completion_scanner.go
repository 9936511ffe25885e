package service

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/event-nexus-api/internal/models"
)

type completedEventsSource interface {
	ListCompletedWithin(ctx context.Context, now time.Time, window time.Duration) ([]models.Event, error)
}

type rosterCounter interface {
	CountActive(ctx context.Context, eventID string) (int, error)
}

type certificateCounter interface {
	CountActiveByEvent(ctx context.Context, eventID string) (int, error)
}

type certificateIssuer interface {
	IssueForEvent(ctx context.Context, eventID string) ([]*models.Certificate, error)
	SendByEmail(ctx context.Context, cert *models.Certificate) error
}

type scanObserver interface {
	ObserveScanRun(duration time.Duration)
}

// CompletionScanner periodically finds events that concluded within a
// trailing window and drives certificate issuance and delivery for their
// rosters. It runs as a single background goroutine with an explicit
// start/stop lifecycle; a tick is skipped while a previous run is still in
// progress so scans never overlap.
type CompletionScanner struct {
	events   completedEventsSource
	roster   rosterCounter
	certs    certificateCounter
	issuer   certificateIssuer
	metrics  scanObserver
	interval time.Duration
	window   time.Duration
	logger   *zap.Logger
	now      func() time.Time

	mu      sync.Mutex
	started bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	busy    sync.Mutex
}

// NewCompletionScanner constructs the scanner.
func NewCompletionScanner(
	events completedEventsSource,
	roster rosterCounter,
	certs certificateCounter,
	issuer certificateIssuer,
	metrics scanObserver,
	interval time.Duration,
	window time.Duration,
	logger *zap.Logger,
) *CompletionScanner {
	if interval <= 0 {
		interval = 6 * time.Hour
	}
	if window <= 0 {
		window = 24 * time.Hour
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CompletionScanner{
		events:   events,
		roster:   roster,
		certs:    certs,
		issuer:   issuer,
		metrics:  metrics,
		interval: interval,
		window:   window,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Start launches the background loop. Safe to call once; subsequent calls
// are ignored.
func (s *CompletionScanner) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return
	}
	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.started = true

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		for {
			select {
			case <-runCtx.Done():
				return
			case <-ticker.C:
				s.tick(runCtx)
			}
		}
	}()
	s.logger.Info("completion scanner started",
		zap.Duration("interval", s.interval),
		zap.Duration("window", s.window),
	)
}

// Stop cancels the loop and waits for an in-flight run to finish.
func (s *CompletionScanner) Stop() {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return
	}
	s.cancel()
	s.started = false
	s.mu.Unlock()
	s.wg.Wait()
	s.logger.Info("completion scanner stopped")
}

// tick runs a scan unless one is already in progress.
func (s *CompletionScanner) tick(ctx context.Context) {
	if !s.busy.TryLock() {
		s.logger.Warn("completion scan still running, skipping tick")
		return
	}
	defer s.busy.Unlock()
	s.ScanOnce(ctx)
}

// ScanOnce performs a single scan pass. Per-event and per-certificate
// failures are logged and skipped so a bad record never halts the scan.
func (s *CompletionScanner) ScanOnce(ctx context.Context) {
	now := s.now()
	if s.metrics != nil {
		defer func(start time.Time) { s.metrics.ObserveScanRun(time.Since(start)) }(time.Now())
	}
	events, err := s.events.ListCompletedWithin(ctx, now, s.window)
	if err != nil {
		s.logger.Error("completion scan failed to list events", zap.Error(err))
		return
	}

	for _, event := range events {
		if err := s.processEvent(ctx, event); err != nil {
			s.logger.Error("completion scan failed to process event",
				zap.String("event_id", event.ID),
				zap.Error(err),
			)
		}
	}
}

func (s *CompletionScanner) processEvent(ctx context.Context, event models.Event) error {
	issued, err := s.certs.CountActiveByEvent(ctx, event.ID)
	if err != nil {
		return err
	}
	enrolled, err := s.roster.CountActive(ctx, event.ID)
	if err != nil {
		return err
	}
	if issued >= enrolled {
		return nil
	}

	certificates, err := s.issuer.IssueForEvent(ctx, event.ID)
	if err != nil {
		return err
	}
	s.logger.Info("issued certificates for concluded event",
		zap.String("event_id", event.ID),
		zap.Int("certificates", len(certificates)),
	)

	for _, cert := range certificates {
		if err := s.issuer.SendByEmail(ctx, cert); err != nil {
			s.logger.Error("failed to deliver certificate",
				zap.String("certificate_id", cert.ID),
				zap.String("user_id", cert.UserID),
				zap.Error(err),
			)
		}
	}
	return nil
}
