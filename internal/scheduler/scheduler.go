package scheduler

import (
	"context"
	"time"

	"online-booking-backend/config"
	"online-booking-backend/internal/service"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// Scheduler runs the background payment reconciliation sweep. It is the
// safety net behind the request-path retries: any booking left pending with
// an intent reference eventually gets re-read against the gateway.
type Scheduler struct {
	cron       *cron.Cron
	log        *logrus.Logger
	reconciler *service.PaymentReconciler
	cfg        config.SchedulerConfig
}

func New(log *logrus.Logger, reconciler *service.PaymentReconciler, cfg config.SchedulerConfig) *Scheduler {
	return &Scheduler{
		cron:       cron.New(cron.WithSeconds()),
		log:        log,
		reconciler: reconciler,
		cfg:        cfg,
	}
}

// Start registers the reconcile job and launches the cron loop.
func (s *Scheduler) Start() error {
	_, err := s.cron.AddFunc(s.cfg.ReconcilePayments, s.reconcileStalePending)
	if err != nil {
		return err
	}

	s.cron.Start()
	s.log.Infof("Scheduler started, payment reconciliation on %q", s.cfg.ReconcilePayments)
	return nil
}

// Stop halts the cron loop and waits for any running job to finish.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.log.Info("Scheduler stopped")
}

func (s *Scheduler) reconcileStalePending() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	if err := s.reconciler.ReconcileStalePending(ctx, s.cfg.PendingMaxAge); err != nil {
		s.log.Warnf("Payment reconciliation sweep finished with errors: %+v", err)
	}
}
