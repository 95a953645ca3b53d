package offerform

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/patientcare/offers/pkg/pc/careapi"
	"github.com/patientcare/offers/pkg/pc/logger"
	"github.com/patientcare/offers/pkg/pc/validation"
)

var (
	ErrInvalid      = errors.New("offer form is invalid")
	ErrInFlight     = errors.New("a submission is already in flight")
	ErrSubmitFailed = errors.New("offer form submission failed")
)

// Submitter sends a completed form to the patient service.
type Submitter interface {
	Create(ctx context.Context, sub careapi.Submission) (int, error)
}

// Focuser moves input focus to one field.
type Focuser interface {
	Focus()
}

// Event describes how one Submit call ended.
type Event struct {
	VisitorID  string
	OfferSlug  string
	Form       SubmissionForm
	Outcome    string // success, error, invalid or in_flight
	StatusCode int
	Err        error
	Duration   time.Duration
}

// ObserveFunc is told about every Submit call after the view state has settled.
type ObserveFunc func(ctx context.Context, e Event)

// View is the state of one visitor's offer form.
type View struct {
	mu           sync.Mutex
	visitorID    string
	form         SubmissionForm
	result       ResultState
	errorMessage string
	focused      Field
	inFlight     bool
	offerSlug    string

	focus     map[Field]Focuser
	submitter Submitter
	observe   ObserveFunc
	log       logger.Logger
}

// fieldFocus marks its field as focused. It runs with the view lock held.
type fieldFocus struct {
	view  *View
	field Field
}

func (f fieldFocus) Focus() {
	f.view.focused = f.field
}

// NewView creates an empty idle view. observe may be nil.
func NewView(visitorID string, submitter Submitter, observe ObserveFunc, log logger.Logger) *View {
	v := &View{
		visitorID: visitorID,
		result:    StateIdle,
		submitter: submitter,
		observe:   observe,
		log:       log,
	}
	v.focus = make(map[Field]Focuser, len(Fields))
	for _, f := range Fields {
		v.focus[f] = fieldFocus{view: v, field: f}
	}
	return v
}

// UpdateField writes one field. Unknown fields are ignored.
func (v *View) UpdateField(field Field, value string) {
	v.mu.Lock()
	defer v.mu.Unlock()

	switch field {
	case FieldName:
		v.form.Name = value
	case FieldAddress:
		v.form.Address = value
	case FieldPhone:
		v.form.Phone = value
	case FieldMonths:
		v.form.Months = value
	}
}

// SetOffer records which catalog offer led the visitor here.
func (v *View) SetOffer(slug string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.offerSlug = slug
}

// Validate checks the fields in order and focuses the first one that fails.
func (v *View) Validate() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	_, ok := v.validateLocked()
	return ok
}

func (v *View) validateLocked() (validation.ValidationError, bool) {
	f := v.form
	failure, failed := validation.FirstFailure(
		check(validation.RequiredString, FieldName, f.Name),
		check(validation.RequiredString, FieldAddress, f.Address),
		check(phoneNumber, FieldPhone, f.Phone),
		check(validation.PositiveNumber, FieldMonths, f.Months),
	)
	if failed {
		if focuser, ok := v.focus[Field(failure.Field)]; ok {
			focuser.Focus()
		}
		return failure, false
	}
	v.focused = ""
	return validation.ValidationError{}, true
}

func check(rule func(field, value string) validation.ValidationError, field Field, value string) validation.Check {
	return func() validation.ValidationError { return rule(string(field), value) }
}

func phoneNumber(field, value string) validation.ValidationError {
	return validation.ExactDigits(field, value, phoneDigits)
}

// Submit validates the form and, if it passes, sends it to the patient service.
// It returns ErrInvalid (wrapping the first validation failure) without any
// network call, ErrInFlight while an earlier call for this view is pending, and
// ErrSubmitFailed when the call failed or answered anything but 200.
func (v *View) Submit(ctx context.Context) error {
	v.mu.Lock()

	failure, ok := v.validateLocked()
	if !ok {
		e := v.eventLocked("invalid")
		v.mu.Unlock()
		v.emit(ctx, e)
		return fmt.Errorf("%w: %w", ErrInvalid, failure)
	}

	if v.inFlight {
		e := v.eventLocked("in_flight")
		v.mu.Unlock()
		v.emit(ctx, e)
		return ErrInFlight
	}

	v.inFlight = true
	v.errorMessage = ""
	if v.result == StateError {
		v.result = StateIdle
	}
	e := v.eventLocked("")
	v.mu.Unlock()

	start := time.Now()
	status, err := v.submitter.Create(ctx, e.Form.toSubmission())
	e.Duration = time.Since(start)
	e.StatusCode = status

	v.mu.Lock()
	v.inFlight = false
	if err != nil {
		v.result = StateError
		v.errorMessage = SubmitErrorMessage
	} else {
		v.form = SubmissionForm{}
		v.result = StateSuccess
		v.errorMessage = ""
	}
	v.mu.Unlock()

	if err != nil {
		v.log.Errorf("Cannot submit offer form for visitor %s: %v", v.visitorID, err)
		e.Outcome = string(StateError)
		e.Err = err
		v.emit(ctx, e)
		return fmt.Errorf("%w: %w", ErrSubmitFailed, err)
	}

	v.log.Infof("Offer form submitted for visitor %s in %s", v.visitorID, e.Duration.Round(time.Millisecond))
	e.Outcome = string(StateSuccess)
	v.emit(ctx, e)
	return nil
}

func (v *View) eventLocked(outcome string) Event {
	return Event{
		VisitorID: v.visitorID,
		OfferSlug: v.offerSlug,
		Form:      v.form,
		Outcome:   outcome,
	}
}

func (v *View) emit(ctx context.Context, e Event) {
	if v.observe != nil {
		v.observe(ctx, e)
	}
}

// Cancel clears the form. The result banner is left as it is.
func (v *View) Cancel() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.form = SubmissionForm{}
}

// DismissSuccess closes the success overlay.
func (v *View) DismissSuccess() {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.result == StateSuccess {
		v.result = StateIdle
	}
}

func (v *View) Snapshot() Snapshot {
	v.mu.Lock()
	defer v.mu.Unlock()
	return Snapshot{
		Form:         v.form,
		Result:       v.result,
		ErrorMessage: v.errorMessage,
		Focus:        v.focused,
		InFlight:     v.inFlight,
		OfferSlug:    v.offerSlug,
	}
}

func (v *View) isInFlight() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.inFlight
}
