package catalog

import (
	"context"
	"io/fs"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/patientcare/offers/pkg/pc/config"
	"github.com/patientcare/offers/pkg/pc/logger"
	"github.com/patientcare/offers/pkg/pc/middleware"
	pcrender "github.com/patientcare/offers/pkg/pc/render"
)

const listPage = "catalog/list"

// Handler serves the catalog page and its JSON mirror.
type Handler struct {
	service     Service
	templatesFS fs.FS
	pages       *pcrender.Renderer
	cfg         *config.Config
	log         logger.Logger
}

// NewHandler creates a new catalog handler.
func NewHandler(service Service, templatesFS fs.FS, cfg *config.Config, log logger.Logger) *Handler {
	return &Handler{
		service:     service,
		templatesFS: templatesFS,
		cfg:         cfg,
		log:         log,
	}
}

// Start parses the catalog templates.
func (h *Handler) Start(ctx context.Context) error {
	pages, err := pcrender.NewRenderer(h.templatesFS, "assets/templates", nil, listPage)
	if err != nil {
		return err
	}
	h.pages = pages
	h.log.Info("Catalog handler started")
	return nil
}

// RegisterRoutes registers catalog routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	h.log.Info("Registering catalog routes")

	r.Get("/", h.HandleList)

	r.Group(func(r chi.Router) {
		r.Use(middleware.CORS(h.cfg.Forms.AllowedOrigins))
		r.Get("/api/v1/offers", h.APIListOffers)
		r.Options("/api/v1/offers", func(w http.ResponseWriter, r *http.Request) {})
	})
}

type listPageData struct {
	Title  string
	Offers []*Offer
}

// HandleList renders one card per offer. Each card links to the form.
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	data := listPageData{
		Title:  "Patient Care Offers",
		Offers: h.service.List(r.Context()),
	}
	if err := h.pages.Render(w, http.StatusOK, listPage, data); err != nil {
		h.log.Errorf("Cannot render catalog: %v", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}

func (h *Handler) APIListOffers(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, map[string]any{"offers": h.service.List(r.Context())})
}
