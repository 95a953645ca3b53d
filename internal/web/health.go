package web

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/patientcare/offers/pkg/pc/logger"
)

// Pinger is anything whose liveness /health should report, usually the database.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// Health serves GET /health.
type Health struct {
	checks  map[string]Pinger
	started time.Time
	log     logger.Logger
}

func NewHealth(log logger.Logger) *Health {
	return &Health{
		checks:  make(map[string]Pinger),
		started: time.Now(),
		log:     log,
	}
}

// Add registers a named dependency check.
func (h *Health) Add(name string, p Pinger) {
	h.checks[name] = p
}

func (h *Health) RegisterRoutes(r chi.Router) {
	r.Get("/health", h.ServeHTTP)
}

type healthResponse struct {
	Status string            `json:"status"`
	Uptime string            `json:"uptime"`
	Checks map[string]string `json:"checks,omitempty"`
}

func (h *Health) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	resp := healthResponse{
		Status: "ok",
		Uptime: time.Since(h.started).Round(time.Second).String(),
	}
	if len(h.checks) > 0 {
		resp.Checks = make(map[string]string, len(h.checks))
	}
	for name, p := range h.checks {
		if err := p.PingContext(ctx); err != nil {
			h.log.Errorf("Health check %s failed: %v", name, err)
			resp.Status = "degraded"
			resp.Checks[name] = "down"
			continue
		}
		resp.Checks[name] = "up"
	}

	if resp.Status != "ok" {
		render.Status(r, http.StatusServiceUnavailable)
	}
	render.JSON(w, r, resp)
}
