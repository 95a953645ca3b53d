package app

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/patientcare/offers/pkg/pc/logger"
)

type recorder struct {
	events *[]string
}

type component struct {
	recorder
	name     string
	startErr error
}

func (c *component) Start(context.Context) error {
	*c.events = append(*c.events, "start:"+c.name)
	return c.startErr
}

func (c *component) Stop(context.Context) error {
	*c.events = append(*c.events, "stop:"+c.name)
	return nil
}

type stopOnly struct {
	recorder
}

func (s *stopOnly) Stop(context.Context) error {
	*s.events = append(*s.events, "stop:only")
	return nil
}

type routes struct{}

func (routes) RegisterRoutes(r chi.Router) {
	r.Get("/ping", func(w http.ResponseWriter, r *http.Request) { w.Write([]byte("pong")) })
}

func TestLifecycleStartStopOrder(t *testing.T) {
	var events []string
	a := &component{recorder: recorder{&events}, name: "a"}
	b := &stopOnly{recorder: recorder{&events}}
	c := &component{recorder: recorder{&events}, name: "c"}

	lc := Setup(logger.NewNoopLogger(), a, b, routes{}, c)
	router := chi.NewRouter()
	if err := lc.Start(context.Background(), router); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	lc.Stop(context.Background())

	want := []string{"start:a", "start:c", "stop:c", "stop:only", "stop:a"}
	if !reflect.DeepEqual(events, want) {
		t.Errorf("events = %v, want %v", events, want)
	}

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ping", nil))
	if rec.Body.String() != "pong" {
		t.Errorf("route not registered, body = %q", rec.Body.String())
	}
}

func TestLifecycleRollback(t *testing.T) {
	var events []string
	boom := errors.New("boom")
	a := &component{recorder: recorder{&events}, name: "a"}
	b := &component{recorder: recorder{&events}, name: "b", startErr: boom}
	c := &component{recorder: recorder{&events}, name: "c"}

	lc := Setup(logger.NewNoopLogger(), a, b, routes{}, c)
	router := chi.NewRouter()
	if err := lc.Start(context.Background(), router); !errors.Is(err, boom) {
		t.Fatalf("Start() error = %v, want %v", err, boom)
	}

	want := []string{"start:a", "start:b", "stop:a"}
	if !reflect.DeepEqual(events, want) {
		t.Errorf("events = %v, want %v", events, want)
	}

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ping", nil))
	if rec.Code != http.StatusNotFound {
		t.Error("routes must not be registered after a failed start")
	}
}
