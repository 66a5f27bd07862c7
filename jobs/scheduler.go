// Package jobs runs the background work of the API: recurring entries,
// WhatsApp report delivery and housekeeping.
package jobs

import (
	"context"
	"time"

	"github.com/jasonlvhit/gocron"
	"github.com/jbapex/financeiro-api/services"
	"github.com/jbapex/financeiro-api/utils"
	"github.com/sirupsen/logrus"
)

const jobTimeout = 5 * time.Minute

type Runner struct {
	Recurring *services.RecurringService
	Scheduled *services.ScheduledReportService
	Team      *services.TeamService
	Auth      *services.AuthService
	Log       *logrus.Logger

	scheduler *gocron.Scheduler
	stop      chan bool
}

// Start registers every job on the business timezone and returns immediately.
func (r *Runner) Start() error {
	gocron.ChangeLoc(utils.Location)
	r.scheduler = gocron.NewScheduler()

	if err := r.scheduler.Every(1).Day().At("00:05:00").Do(r.generateRecurring); err != nil {
		return err
	}
	if err := r.scheduler.Every(1).Minute().Do(r.dispatchReports); err != nil {
		return err
	}
	if err := r.scheduler.Every(1).Day().At("03:00:00").Do(r.cleanup); err != nil {
		return err
	}

	r.stop = r.scheduler.Start()
	r.Log.Info("background jobs started")
	return nil
}

func (r *Runner) Stop() {
	if r.stop == nil {
		return
	}
	r.stop <- true
	r.scheduler.Clear()
	r.stop = nil
}

func (r *Runner) generateRecurring() {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	result, err := r.Recurring.Generate(ctx, "", utils.Today())
	if err != nil {
		r.Log.WithError(err).Error("recurring generation failed")
		return
	}
	if result.Generated > 0 {
		r.Log.WithFields(logrus.Fields{
			"generated": result.Generated,
			"templates": result.Templates,
		}).Info("recurring entries generated")
	}
}

func (r *Runner) dispatchReports() {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	sent, err := r.Scheduled.DispatchDue(ctx, time.Now().In(utils.Location))
	if err != nil {
		r.Log.WithError(err).Error("scheduled report dispatch failed")
		return
	}
	if sent > 0 {
		r.Log.WithField("reports", sent).Info("scheduled reports dispatched")
	}
}

func (r *Runner) cleanup() {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	expired, err := r.Team.CleanupExpired(ctx)
	if err != nil {
		r.Log.WithError(err).Error("invitation cleanup failed")
	}
	sessions, err := r.Auth.CleanupSessions(ctx)
	if err != nil {
		r.Log.WithError(err).Error("session cleanup failed")
	}
	if expired > 0 || sessions > 0 {
		r.Log.WithFields(logrus.Fields{
			"invitations": expired,
			"sessions":    sessions,
		}).Info("🧹 housekeeping done")
	}
}
