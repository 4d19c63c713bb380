// Package jobs runs the background cron tasks: the daily pending-review
// digest for administrators and the weekly purge of resolved join requests.
package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	log "github.com/sirupsen/logrus"

	"belenavidad.es/discord-bot/internal/features/access"
	"belenavidad.es/discord-bot/internal/features/belenes"
	"belenavidad.es/discord-bot/internal/features/tasks"
)

// Scheduler manages the background tasks.
type Scheduler struct {
	cron          *cron.Cron
	taskService   *tasks.Service
	belenService  *belenes.Service
	accessService *access.Service
	sendFunc      func(userID, text string)
	purgeAge      time.Duration
}

func NewScheduler(
	timezone string,
	taskService *tasks.Service,
	belenService *belenes.Service,
	accessService *access.Service,
	sendFunc func(userID, text string),
	purgeAge time.Duration,
) *Scheduler {
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		log.WithError(err).WithField("timezone", timezone).Warn("load timezone failed, falling back to UTC")
		loc = time.UTC
	}

	return &Scheduler{
		cron:          cron.New(cron.WithLocation(loc)),
		taskService:   taskService,
		belenService:  belenService,
		accessService: accessService,
		sendFunc:      sendFunc,
		purgeAge:      purgeAge,
	}
}

// Start registers and launches all background tasks.
func (s *Scheduler) Start(ctx context.Context) {
	// Daily digest at 10:00: remind the admins of pending task reviews.
	s.cron.AddFunc("0 10 * * *", func() {
		log.Info("[CRON] pending review digest")
		if err := s.sendReviewDigest(ctx); err != nil {
			log.WithError(err).Error("[CRON] review digest failed")
		}
	})

	// Weekly cleanup on Monday 04:00: drop old resolved join requests.
	s.cron.AddFunc("0 4 * * 1", func() {
		log.Info("[CRON] purge resolved join requests")
		purged, err := s.belenService.PurgeResolved(ctx, s.purgeAge)
		if err != nil {
			log.WithError(err).Error("[CRON] purge failed")
			return
		}
		log.WithField("purged", purged).Info("[CRON] purge done")
	})

	s.cron.Start()
	log.Info("scheduler started")
}

func (s *Scheduler) sendReviewDigest(ctx context.Context) error {
	count, err := s.taskService.PendingCount(ctx)
	if err != nil {
		return err
	}
	if count == 0 {
		return nil
	}

	admins, err := s.accessService.ListAdmins(ctx)
	if err != nil {
		return err
	}

	text := fmt.Sprintf("📬 Hay %d solicitudes de tareas esperando revisión. Usa `admin_ver_solicitudes_tareas`.", count)
	for _, id := range admins {
		s.sendFunc(id, text)
	}
	return nil
}

// Stop shuts the scheduler down and waits for running jobs.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	log.Info("scheduler stopped")
}
