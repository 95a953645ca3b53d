package offerform

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/patientcare/offers/internal/feat/catalog"
	"github.com/patientcare/offers/internal/testutil"
	"github.com/patientcare/offers/pkg/pc/config"
	"github.com/patientcare/offers/pkg/pc/logger"
	"github.com/patientcare/offers/pkg/pc/middleware"
)

type testServer struct {
	router  chi.Router
	sub     *fakeSubmitter
	service Service
	cookie  *http.Cookie
}

func newTestServer(t *testing.T, rateLimit int) *testServer {
	t.Helper()
	ctx := context.Background()
	cfg := &config.Config{Forms: config.FormsConfig{RateLimit: rateLimit}}
	log := logger.NewNoopLogger()

	offers := catalog.NewService(testutil.ReadAsset(t, "assets/offers.yaml"), cfg, log)
	if err := offers.Start(ctx); err != nil {
		t.Fatalf("catalog Start() error = %v", err)
	}

	sub := &fakeSubmitter{status: http.StatusOK}
	svc := NewService(sub, nil, nil, cfg, log)
	h := NewHandler(svc, offers, testutil.ModuleFS(t), cfg, log)
	if err := h.Start(ctx); err != nil {
		t.Fatalf("handler Start() error = %v", err)
	}
	t.Cleanup(func() { h.Stop(ctx) })

	r := chi.NewRouter()
	r.Use(middleware.Visitor(time.Hour))
	h.RegisterRoutes(r)

	return &testServer{router: r, sub: sub, service: svc}
}

func (s *testServer) do(t *testing.T, method, target string, form url.Values) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if form != nil {
		req = httptest.NewRequest(method, target, strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	if s.cookie != nil {
		req.AddCookie(s.cookie)
	}

	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	for _, c := range rec.Result().Cookies() {
		if c.Name == middleware.VisitorCookieName {
			s.cookie = c
		}
	}
	return rec
}

func formValues(f SubmissionForm) url.Values {
	return url.Values{
		"name":    {f.Name},
		"address": {f.Address},
		"phone":   {f.Phone},
		"months":  {f.Months},
	}
}

func TestHandleShowSelectsOffer(t *testing.T) {
	s := newTestServer(t, 10)

	rec := s.do(t, http.MethodGet, "/offer-form?offer=6-month-offer", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body := rec.Body.String()
	for _, want := range []string{"PATIENT OFFER FORM", "Selected: 6 Month Offer", `name="phone"`} {
		if !strings.Contains(body, want) {
			t.Errorf("body missing %q", want)
		}
	}

	// The selection sticks to the visitor.
	rec = s.do(t, http.MethodGet, "/offer-form", nil)
	if !strings.Contains(rec.Body.String(), "Selected: 6 Month Offer") {
		t.Error("offer selection was lost")
	}

	rec = s.do(t, http.MethodGet, "/offer-form?offer=unknown", nil)
	if strings.Contains(rec.Body.String(), "Selected:") {
		t.Error("unknown offer was shown")
	}
}

func TestHandleSubmitSuccess(t *testing.T) {
	s := newTestServer(t, 10)
	s.do(t, http.MethodGet, "/offer-form", nil)

	rec := s.do(t, http.MethodPost, "/offer-form", formValues(validForm))
	if rec.Code != http.StatusSeeOther {
		t.Fatalf("status = %d, want 303", rec.Code)
	}
	if loc := rec.Header().Get("Location"); loc != "/offer-form" {
		t.Errorf("Location = %q", loc)
	}

	rec = s.do(t, http.MethodGet, "/offer-form", nil)
	body := rec.Body.String()
	if !strings.Contains(body, "Submitted Successfully!") {
		t.Error("success overlay not shown")
	}
	if strings.Contains(body, `value="Ann"`) {
		t.Error("form was not cleared")
	}

	rec = s.do(t, http.MethodPost, "/offer-form/dismiss", url.Values{})
	if rec.Code != http.StatusSeeOther {
		t.Fatalf("dismiss status = %d, want 303", rec.Code)
	}
	rec = s.do(t, http.MethodGet, "/offer-form", nil)
	if strings.Contains(rec.Body.String(), "Submitted Successfully!") {
		t.Error("success overlay still shown after dismiss")
	}
}

func TestHandleSubmitValidationFocus(t *testing.T) {
	tests := []struct {
		name  string
		form  SubmissionForm
		field string
	}{
		{"name", SubmissionForm{Address: "Colombo", Phone: "712345678", Months: "3"}, "name"},
		{"address", SubmissionForm{Name: "Ann", Phone: "712345678", Months: "3"}, "address"},
		{"phone", SubmissionForm{Name: "Ann", Address: "Colombo", Phone: "12", Months: "3"}, "phone"},
		{"months", SubmissionForm{Name: "Ann", Address: "Colombo", Phone: "712345678", Months: "0"}, "months"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t, 10)

			rec := s.do(t, http.MethodPost, "/offer-form", formValues(tt.form))
			if rec.Code != http.StatusUnprocessableEntity {
				t.Fatalf("status = %d, want 422", rec.Code)
			}
			body := rec.Body.String()
			if strings.Count(body, "autofocus") != 1 {
				t.Errorf("autofocus count = %d, want 1", strings.Count(body, "autofocus"))
			}
			want := `name="` + tt.field + `" placeholder=`
			idx := strings.Index(body, want)
			if idx < 0 {
				t.Fatalf("input %q not rendered", tt.field)
			}
			tag := body[idx:]
			tag = tag[:strings.Index(tag, ">")]
			if !strings.Contains(tag, "autofocus") {
				t.Errorf("field %q is not autofocused", tt.field)
			}
			if s.sub.callCount() != 0 {
				t.Errorf("network calls = %d, want 0", s.sub.callCount())
			}
		})
	}
}

func TestHandleSubmitFailureKeepsValues(t *testing.T) {
	s := newTestServer(t, 10)
	s.sub.status = http.StatusInternalServerError

	rec := s.do(t, http.MethodPost, "/offer-form", formValues(validForm))
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, SubmitErrorMessage) {
		t.Error("error message not shown")
	}
	for _, want := range []string{`value="Ann"`, `value="Colombo"`, `value="712345678"`, `value="3"`} {
		if !strings.Contains(body, want) {
			t.Errorf("body missing %s", want)
		}
	}
}

func TestHandleCancel(t *testing.T) {
	s := newTestServer(t, 10)
	s.do(t, http.MethodPost, "/offer-form", formValues(SubmissionForm{Name: "Ann", Phone: "12"}))

	rec := s.do(t, http.MethodPost, "/offer-form/cancel", formValues(validForm))
	if rec.Code != http.StatusSeeOther {
		t.Fatalf("status = %d, want 303", rec.Code)
	}

	rec = s.do(t, http.MethodGet, "/offer-form", nil)
	if strings.Contains(rec.Body.String(), `value="Ann"`) {
		t.Error("form was not cleared by cancel")
	}
	if s.sub.callCount() != 0 {
		t.Error("cancel made a network call")
	}
}

func TestHandleSubmitRateLimited(t *testing.T) {
	s := newTestServer(t, 1)

	if rec := s.do(t, http.MethodPost, "/offer-form", formValues(validForm)); rec.Code != http.StatusSeeOther {
		t.Fatalf("first submit status = %d, want 303", rec.Code)
	}
	if rec := s.do(t, http.MethodPost, "/offer-form", formValues(validForm)); rec.Code != http.StatusTooManyRequests {
		t.Errorf("second submit status = %d, want 429", rec.Code)
	}
}

func TestAPISubmit(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		status     int
		wantCode   int
		wantStatus string
		wantField  string
	}{
		{"success", `{"name":"Ann","address":"Colombo","phone":"712345678","months":"3"}`, http.StatusOK, http.StatusOK, "success", ""},
		{"invalid phone", `{"name":"Ann","address":"Colombo","phone":"12","months":"3"}`, http.StatusOK, http.StatusUnprocessableEntity, "invalid", "phone"},
		{"upstream failure", `{"name":"Ann","address":"Colombo","phone":"712345678","months":"3"}`, http.StatusServiceUnavailable, http.StatusBadGateway, "error", ""},
		{"bad json", `{"name":`, http.StatusOK, http.StatusBadRequest, "invalid", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t, 10)
			s.sub.status = tt.status

			req := httptest.NewRequest(http.MethodPost, "/api/v1/offer-form", strings.NewReader(tt.body))
			req.Header.Set("Content-Type", "application/json")
			rec := httptest.NewRecorder()
			s.router.ServeHTTP(rec, req)

			if rec.Code != tt.wantCode {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantCode)
			}
			var resp apiResponse
			if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
				t.Fatalf("invalid JSON: %v", err)
			}
			if resp.Status != tt.wantStatus || resp.Field != tt.wantField {
				t.Errorf("response = %+v, want status %q field %q", resp, tt.wantStatus, tt.wantField)
			}
		})
	}
}
