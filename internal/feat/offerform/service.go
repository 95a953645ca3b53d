package offerform

import (
	"context"
	"time"

	"github.com/patientcare/offers/internal/feat/attempts"
	"github.com/patientcare/offers/pkg/pc/config"
	"github.com/patientcare/offers/pkg/pc/logger"
	"github.com/patientcare/offers/pkg/pc/metrics"
	"github.com/patientcare/offers/pkg/pc/model"
)

// Service owns the per-visitor views and reports submission outcomes.
type Service interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	View(visitorID string) *View
}

type service struct {
	submitter Submitter
	attempts  attempts.Service
	metrics   *metrics.Metrics
	views     *views
	stop      chan struct{}
	done      chan struct{}
	cfg       *config.Config
	log       logger.Logger
}

// NewService creates the offer form service. attemptLog and m may be nil.
func NewService(submitter Submitter, attemptLog attempts.Service, m *metrics.Metrics, cfg *config.Config, log logger.Logger) Service {
	s := &service{
		submitter: submitter,
		attempts:  attemptLog,
		metrics:   m,
		cfg:       cfg,
		log:       log,
	}
	s.views = newViews(cfg.Forms.ViewTTLDuration(), func(visitorID string) *View {
		return NewView(visitorID, s.submitter, s.observe, s.log)
	})
	return s
}

// Start launches the idle view sweeper.
func (s *service) Start(ctx context.Context) error {
	stop, done := make(chan struct{}), make(chan struct{})
	s.stop, s.done = stop, done

	interval := s.views.ttl / 2
	if interval < time.Second {
		interval = time.Second
	}
	go func() {
		defer close(done)
		s.views.run(interval, stop, func(n int) {
			s.log.Debugf("Dropped %d idle offer form view(s)", n)
		})
	}()

	s.log.Info("Offer form service started")
	return nil
}

func (s *service) Stop(ctx context.Context) error {
	if s.stop == nil {
		return nil
	}
	close(s.stop)
	s.stop = nil

	select {
	case <-s.done:
	case <-ctx.Done():
		return ctx.Err()
	}
	return nil
}

func (s *service) View(visitorID string) *View {
	return s.views.get(visitorID)
}

// observe counts every submit and stores the ones that reached the patient service.
func (s *service) observe(ctx context.Context, e Event) {
	if s.metrics != nil {
		s.metrics.ObserveSubmission(e.Outcome)
		if e.Duration > 0 {
			s.metrics.ObserveCall(e.Duration)
		}
	}

	if s.attempts == nil || (e.Outcome != string(StateSuccess) && e.Outcome != string(StateError)) {
		return
	}

	digest, err := s.attempts.PhoneDigest(e.Form.Phone)
	if err != nil {
		s.log.Errorf("Cannot record submission attempt: %v", err)
		return
	}

	a := attempts.NewAttempt(e.VisitorID, e.OfferSlug, digest, e.Form.Months)
	a.Outcome = attempts.Outcome(e.Outcome)
	a.StatusCode = e.StatusCode
	if e.Err != nil {
		a.Error = e.Err.Error()
	}

	if err := s.attempts.Record(context.WithoutCancel(ctx), a); err != nil {
		s.log.Errorf("Cannot record submission attempt %s: %v", model.ShortID(a.ID), err)
	}
}
