package attempts

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/patientcare/offers/pkg/pc/logger"
	"github.com/patientcare/offers/pkg/pc/middleware"
)

// Handler exposes the attempt log to operators on the local machine.
type Handler struct {
	service Service
	log     logger.Logger
}

func NewHandler(service Service, log logger.Logger) *Handler {
	return &Handler{
		service: service,
		log:     log,
	}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	h.log.Info("Registering attempt log routes")

	r.Group(func(r chi.Router) {
		r.Use(middleware.LocalhostOnly)
		r.Get("/ops/attempts", h.HandleList)
	})
}

type listResponse struct {
	Attempts []*Attempt        `json:"attempts"`
	Counts   map[Outcome]int64 `json:"counts"`
}

// HandleList returns recent attempts and totals per outcome. ?limit=N caps the list.
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	list, err := h.service.List(r.Context(), limit)
	if err != nil {
		h.log.Errorf("Cannot list attempts: %v", err)
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, map[string]string{"error": "cannot list attempts"})
		return
	}

	counts, err := h.service.CountByOutcome(r.Context())
	if err != nil {
		h.log.Errorf("Cannot count attempts: %v", err)
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, map[string]string{"error": "cannot count attempts"})
		return
	}

	render.JSON(w, r, listResponse{Attempts: list, Counts: counts})
}
