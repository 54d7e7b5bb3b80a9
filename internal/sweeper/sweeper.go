package sweeper

import (
	"context"
	"log"
	"time"

	"curalink/internal/repository"
	"curalink/internal/service"
)

const batchSize = 500

// Sweeper periodically advances consultations through the expiry stages:
// approved-but-never-started ones become expired after the start grace, and
// stale expired ones become permanently expired with a refund notification.
type Sweeper struct {
	consultRepo *repository.ConsultationRepository
	notifSvc    *service.NotificationService
	startGrace  time.Duration
	expiryHold  time.Duration
	interval    time.Duration
	now         func() time.Time
}

func New(consultRepo *repository.ConsultationRepository, notifSvc *service.NotificationService, startGrace, expiryHold, interval time.Duration) *Sweeper {
	return &Sweeper{
		consultRepo: consultRepo,
		notifSvc:    notifSvc,
		startGrace:  startGrace,
		expiryHold:  expiryHold,
		interval:    interval,
		now:         time.Now,
	}
}

// SetClock overrides the time source (tests only).
func (s *Sweeper) SetClock(now func() time.Time) { s.now = now }

// Run executes the sweep on a fixed interval until the context is cancelled.
// One run happens immediately at startup.
func (s *Sweeper) Run(ctx context.Context) {
	s.runOnce(ctx)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			log.Println("[Sweeper] shutting down")
			return
		case <-ticker.C:
			s.runOnce(ctx)
		}
	}
}

func (s *Sweeper) runOnce(ctx context.Context) {
	runCtx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()
	start := s.now()
	n, err := s.RunOnce(runCtx)
	if err != nil {
		log.Printf("[Sweeper] run error: %v", err)
		return
	}
	if n > 0 {
		log.Printf("[Sweeper] applied %d transitions in %s", n, time.Since(start))
	}
}

// RunOnce performs both sweeps and returns the number of transitions
// applied. A failure on one consultation never aborts the rest of the batch.
func (s *Sweeper) RunOnce(ctx context.Context) (int, error) {
	total := 0

	n, err := s.sweepMissedStarts()
	total += n
	if err != nil {
		return total, err
	}
	if err := ctx.Err(); err != nil {
		return total, err
	}
	n, err = s.sweepStaleExpired()
	total += n
	return total, err
}

// sweepMissedStarts expires approved consultations whose provider never
// started them within the grace window.
func (s *Sweeper) sweepMissedStarts() (int, error) {
	now := s.now()
	cutoff := now.Add(-s.startGrace)
	list, err := s.consultRepo.ListMissedStartBefore(cutoff, batchSize)
	if err != nil {
		return 0, err
	}
	count := 0
	for i := range list {
		c := &list[i]
		ok, err := s.consultRepo.MarkExpired(c.ID, now)
		if err != nil {
			log.Printf("[Sweeper] expire consultation %d: %v", c.ID, err)
			continue
		}
		if ok {
			count++
		}
	}
	return count, nil
}

// sweepStaleExpired promotes long-expired consultations to permanently
// expired and kicks off the refund notifications.
func (s *Sweeper) sweepStaleExpired() (int, error) {
	cutoff := s.now().Add(-s.expiryHold)
	list, err := s.consultRepo.ListExpiredBefore(cutoff, batchSize)
	if err != nil {
		return 0, err
	}
	count := 0
	for i := range list {
		c := &list[i]
		ok, err := s.consultRepo.MarkPermanentlyExpired(c.ID)
		if err != nil {
			log.Printf("[Sweeper] permanently expire consultation %d: %v", c.ID, err)
			continue
		}
		if !ok {
			continue
		}
		count++
		// notification failures are logged, never fatal to the sweep
		if err := s.notifSvc.NotifyRefundInitiated(c.PatientID, c.ID, "consultation expired without being started"); err != nil {
			log.Printf("[Sweeper] refund notice to patient %d: %v", c.PatientID, err)
		}
		if err := s.notifSvc.NotifyRefundInitiated(c.ProviderID, c.ID, "consultation expired without being started"); err != nil {
			log.Printf("[Sweeper] refund notice to provider %d: %v", c.ProviderID, err)
		}
	}
	return count, nil
}
