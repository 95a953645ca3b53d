package offerform

import (
	"context"
	"errors"
	"io/fs"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/patientcare/offers/internal/feat/catalog"
	"github.com/patientcare/offers/pkg/pc/config"
	"github.com/patientcare/offers/pkg/pc/logger"
	"github.com/patientcare/offers/pkg/pc/middleware"
	pcrender "github.com/patientcare/offers/pkg/pc/render"
	"github.com/patientcare/offers/pkg/pc/validation"
)

const (
	formPage = "offerform/form"
	formPath = "/offer-form"
)

// Handler serves the offer form page and its JSON variant.
type Handler struct {
	service     Service
	catalog     catalog.Service
	templatesFS fs.FS
	pages       *pcrender.Renderer
	limiter     *rateLimiter
	stop        chan struct{}
	cfg         *config.Config
	log         logger.Logger
}

// NewHandler creates a new offer form handler.
func NewHandler(service Service, offers catalog.Service, templatesFS fs.FS, cfg *config.Config, log logger.Logger) *Handler {
	return &Handler{
		service:     service,
		catalog:     offers,
		templatesFS: templatesFS,
		limiter:     newRateLimiter(cfg.Forms.RateLimit),
		cfg:         cfg,
		log:         log,
	}
}

// Start parses the form template and starts the limiter cleanup.
func (h *Handler) Start(ctx context.Context) error {
	pages, err := pcrender.NewRenderer(h.templatesFS, "assets/templates", nil, formPage)
	if err != nil {
		return err
	}
	h.pages = pages

	h.stop = make(chan struct{})
	go h.limiter.run(h.stop)

	h.log.Info("Offer form handler started")
	return nil
}

func (h *Handler) Stop(ctx context.Context) error {
	if h.stop != nil {
		close(h.stop)
		h.stop = nil
	}
	return nil
}

// RegisterRoutes registers offer form routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	h.log.Info("Registering offer form routes")

	r.Get(formPath, h.HandleShow)
	r.Post(formPath+"/cancel", h.HandleCancel)
	r.Post(formPath+"/dismiss", h.HandleDismiss)

	r.Group(func(r chi.Router) {
		r.Use(h.rateLimitMiddleware)
		r.Post(formPath, h.HandleSubmit)
	})

	r.Group(func(r chi.Router) {
		r.Use(middleware.CORS(h.cfg.Forms.AllowedOrigins))
		r.Options("/api/v1/offer-form", func(w http.ResponseWriter, r *http.Request) {})
		r.With(h.rateLimitMiddleware).Post("/api/v1/offer-form", h.APISubmit)
	})
}

type formPageData struct {
	Title        string
	Offer        *catalog.Offer
	Form         SubmissionForm
	Focus        string
	InFlight     bool
	ErrorMessage string
	ShowSuccess  bool
}

func (h *Handler) view(r *http.Request) *View {
	return h.service.View(middleware.GetVisitorID(r.Context()))
}

// selectOffer applies the ?offer= (or posted offer) slug when the request
// carries one. r.ParseForm must have run.
func (h *Handler) selectOffer(r *http.Request, v *View) {
	if _, ok := r.Form["offer"]; !ok {
		return
	}
	slug := r.FormValue("offer")
	if slug == "" {
		v.SetOffer("")
		return
	}
	if _, err := h.catalog.Get(r.Context(), slug); err != nil {
		h.log.Debugf("Ignoring unknown offer %q", slug)
		v.SetOffer("")
		return
	}
	v.SetOffer(slug)
}

func (h *Handler) HandleShow(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Bad request", http.StatusBadRequest)
		return
	}
	v := h.view(r)
	h.selectOffer(r, v)
	h.renderForm(w, r, http.StatusOK, v)
}

// HandleSubmit applies the posted fields and submits them.
func (h *Handler) HandleSubmit(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Bad request", http.StatusBadRequest)
		return
	}

	v := h.view(r)
	h.selectOffer(r, v)
	for _, f := range Fields {
		if _, ok := r.PostForm[string(f)]; ok {
			v.UpdateField(f, r.PostFormValue(string(f)))
		}
	}

	err := v.Submit(r.Context())
	switch {
	case err == nil:
		http.Redirect(w, r, formPath, http.StatusSeeOther)
	case errors.Is(err, ErrInvalid):
		h.renderForm(w, r, http.StatusUnprocessableEntity, v)
	case errors.Is(err, ErrInFlight):
		h.renderForm(w, r, http.StatusConflict, v)
	default:
		h.renderForm(w, r, http.StatusBadGateway, v)
	}
}

func (h *Handler) HandleCancel(w http.ResponseWriter, r *http.Request) {
	h.view(r).Cancel()
	http.Redirect(w, r, formPath, http.StatusSeeOther)
}

func (h *Handler) HandleDismiss(w http.ResponseWriter, r *http.Request) {
	h.view(r).DismissSuccess()
	http.Redirect(w, r, formPath, http.StatusSeeOther)
}

func (h *Handler) renderForm(w http.ResponseWriter, r *http.Request, status int, v *View) {
	snap := v.Snapshot()
	data := formPageData{
		Title:        "Patient Offer Form",
		Form:         snap.Form,
		Focus:        string(snap.Focus),
		InFlight:     snap.InFlight,
		ErrorMessage: snap.ErrorMessage,
		ShowSuccess:  snap.Result == StateSuccess,
	}
	if snap.OfferSlug != "" {
		if o, err := h.catalog.Get(r.Context(), snap.OfferSlug); err == nil {
			data.Offer = o
		}
	}

	if err := h.pages.Render(w, status, formPage, data); err != nil {
		h.log.Errorf("Cannot render offer form: %v", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}

// --- JSON API ---

type apiRequest struct {
	SubmissionForm
	Offer string `json:"offer,omitempty"`
}

type apiResponse struct {
	Status string `json:"status"`
	Field  string `json:"field,omitempty"`
	Error  string `json:"error,omitempty"`
}

// APISubmit is the JSON form of HandleSubmit. It answers 200, 422, 409 or 502.
func (h *Handler) APISubmit(w http.ResponseWriter, r *http.Request) {
	var req apiRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, apiResponse{Status: "invalid", Error: "invalid JSON body"})
		return
	}

	v := h.view(r)
	if req.Offer != "" {
		if _, err := h.catalog.Get(r.Context(), req.Offer); err == nil {
			v.SetOffer(req.Offer)
		}
	}
	v.UpdateField(FieldName, req.Name)
	v.UpdateField(FieldAddress, req.Address)
	v.UpdateField(FieldPhone, req.Phone)
	v.UpdateField(FieldMonths, req.Months)

	err := v.Submit(r.Context())

	var failure validation.ValidationError
	switch {
	case err == nil:
		render.JSON(w, r, apiResponse{Status: string(StateSuccess)})
	case errors.As(err, &failure):
		render.Status(r, http.StatusUnprocessableEntity)
		render.JSON(w, r, apiResponse{Status: "invalid", Field: failure.Field, Error: failure.Error()})
	case errors.Is(err, ErrInFlight):
		render.Status(r, http.StatusConflict)
		render.JSON(w, r, apiResponse{Status: "in_flight", Error: ErrInFlight.Error()})
	default:
		render.Status(r, http.StatusBadGateway)
		render.JSON(w, r, apiResponse{Status: string(StateError), Error: SubmitErrorMessage})
	}
}
