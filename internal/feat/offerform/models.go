package offerform

import (
	"github.com/patientcare/offers/pkg/pc/careapi"
)

// Field names one input of the offer form. The values match the HTML input names.
type Field string

const (
	FieldName    Field = "name"
	FieldAddress Field = "address"
	FieldPhone   Field = "phone"
	FieldMonths  Field = "months"
)

// Fields lists the form inputs in validation order.
var Fields = []Field{FieldName, FieldAddress, FieldPhone, FieldMonths}

const (
	phoneDigits = 9

	// SubmitErrorMessage is shown for every failed submission regardless of cause.
	SubmitErrorMessage = "Failed to submit. Please try again later."
)

// SubmissionForm holds the raw text of the four inputs.
type SubmissionForm struct {
	Name    string `json:"name"`
	Address string `json:"address"`
	Phone   string `json:"phone"`
	Months  string `json:"months"`
}

// IsEmpty reports whether every field is the empty string.
func (f SubmissionForm) IsEmpty() bool {
	return f == SubmissionForm{}
}

func (f SubmissionForm) toSubmission() careapi.Submission {
	return careapi.Submission{
		Name:    f.Name,
		Address: f.Address,
		Phone:   f.Phone,
		Months:  f.Months,
	}
}

// ResultState is the outcome banner shown under the form.
type ResultState string

const (
	StateIdle    ResultState = "idle"
	StateSuccess ResultState = "success"
	StateError   ResultState = "error"
)

// Snapshot is a consistent copy of a view taken under its lock.
type Snapshot struct {
	Form         SubmissionForm
	Result       ResultState
	ErrorMessage string
	Focus        Field
	InFlight     bool
	OfferSlug    string
}
