package app

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/patientcare/offers/pkg/pc/logger"
)

// Startable is a component with work to do before routes are served.
type Startable interface {
	Start(context.Context) error
}

// Stoppable is a component that releases resources on shutdown.
type Stoppable interface {
	Stop(context.Context) error
}

// RouteRegistrar is a component that mounts HTTP routes.
type RouteRegistrar interface {
	RegisterRoutes(chi.Router)
}

// Lifecycle is the ordered start/stop pipeline discovered from components.
type Lifecycle struct {
	starts     []func(context.Context) error
	stops      []func(context.Context) error
	registrars []RouteRegistrar
	started    int
	log        logger.Logger
}

// Setup inspects each component for RouteRegistrar, Startable and Stoppable,
// keeping the order in which components were given.
func Setup(log logger.Logger, comps ...any) *Lifecycle {
	lc := &Lifecycle{log: log}
	for _, c := range comps {
		if rr, ok := c.(RouteRegistrar); ok {
			lc.registrars = append(lc.registrars, rr)
		}
		// Stops are indexed alongside starts so a rollback only reaches
		// components that actually started.
		if s, ok := c.(Startable); ok {
			lc.starts = append(lc.starts, s.Start)
			if st, ok := c.(Stoppable); ok {
				lc.stops = append(lc.stops, st.Stop)
			} else {
				lc.stops = append(lc.stops, nil)
			}
		} else if st, ok := c.(Stoppable); ok {
			lc.starts = append(lc.starts, nil)
			lc.stops = append(lc.stops, st.Stop)
		}
	}
	return lc
}

// Start runs startup functions in order. If one fails, the components already
// started are stopped in reverse order and the error is returned. Routes are
// registered only after every component started.
func (lc *Lifecycle) Start(ctx context.Context, router chi.Router) error {
	for i, start := range lc.starts {
		if start != nil {
			if err := start(ctx); err != nil {
				lc.log.Errorf("error starting component #%d: %v", i, err)
				lc.Stop(context.Background())
				return err
			}
		}
		lc.started = i + 1
	}

	for _, rr := range lc.registrars {
		rr.RegisterRoutes(router)
	}

	return nil
}

// Stop stops started components in reverse order (LIFO).
func (lc *Lifecycle) Stop(ctx context.Context) {
	for i := lc.started - 1; i >= 0; i-- {
		if lc.stops[i] == nil {
			continue
		}
		if err := lc.stops[i](ctx); err != nil {
			lc.log.Errorf("error stopping component #%d: %v", i, err)
		}
	}
	lc.started = 0
}

// NewServer builds the HTTP server with conservative timeouts.
func NewServer(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
}

// Serve blocks until the server is shut down.
func Serve(srv *http.Server) error {
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown drains the HTTP server and then stops all components.
func Shutdown(srv *http.Server, lc *Lifecycle, log logger.Logger) {
	log.Info("Shutting down gracefully, press Ctrl+C again to force")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Errorf("server shutdown failed: %v", err)
	}

	lc.Stop(shutdownCtx)
}
