// Package settings edits a tournament's own fields: name, dates and
// visibility. The form is always submitted whole.
package settings

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"pelotourney-cli/internal/model"

	"github.com/go-playground/validator/v10"
)

const (
	FieldName       = "name"
	FieldStartDate  = "start_date"
	FieldEndDate    = "end_date"
	FieldVisibility = "visibility"
)

// Fields lists the editable fields in display order.
var Fields = []string{FieldName, FieldStartDate, FieldEndDate, FieldVisibility}

var (
	ErrUnknownField = errors.New("settings: unknown field")
	ErrInvalid      = errors.New("settings: invalid tournament settings")
)

var validate = validator.New(validator.WithRequiredStructEnabled())

type Form struct {
	current  model.TournamentPayload
	original model.TournamentPayload
}

func NewForm(t model.Tournament) *Form {
	p := model.TournamentPayload{
		Name:       t.Name,
		StartDate:  t.StartDate,
		EndDate:    t.EndDate,
		Visibility: t.Visibility,
	}
	if p.Visibility == "" {
		p.Visibility = model.VisibilityPrivate
	}
	return &Form{current: p, original: p}
}

func (f *Form) Get(field string) string {
	v, _ := f.field(&f.current, field)
	if v == nil {
		return ""
	}
	return *v
}

// Set stores a field value as typed. Values are only checked by Payload, so
// a half-typed date can sit in the form.
func (f *Form) Set(field, value string) error {
	v, err := f.field(&f.current, field)
	if err != nil {
		return err
	}
	value = strings.TrimSpace(value)
	if field == FieldVisibility {
		value = strings.ToLower(value)
	}
	*v = value
	return nil
}

// CycleVisibility moves step positions through model.Visibilities.
func (f *Form) CycleVisibility(step int) {
	idx := 0
	for i, v := range model.Visibilities {
		if v == f.current.Visibility {
			idx = i
			break
		}
	}
	n := len(model.Visibilities)
	f.current.Visibility = model.Visibilities[((idx+step)%n+n)%n]
}

func (f *Form) Dirty(field string) bool {
	cur, err := f.field(&f.current, field)
	if err != nil {
		return false
	}
	orig, _ := f.field(&f.original, field)
	return *cur != *orig
}

func (f *Form) DirtyCount() int {
	n := 0
	for _, field := range Fields {
		if f.Dirty(field) {
			n++
		}
	}
	return n
}

// Payload validates the form and returns it whole.
func (f *Form) Payload() (model.TournamentPayload, error) {
	p := f.current
	if err := validate.Struct(p); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				fields = append(fields, payloadField(fe.StructField()))
			}
			return model.TournamentPayload{}, fmt.Errorf("%w: %s", ErrInvalid, strings.Join(fields, ", "))
		}
		return model.TournamentPayload{}, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	start, _ := time.Parse(model.DateLayout, p.StartDate)
	end, _ := time.Parse(model.DateLayout, p.EndDate)
	if end.Before(start) {
		return model.TournamentPayload{}, fmt.Errorf("%w: end_date is before start_date", ErrInvalid)
	}
	return p, nil
}

func (f *Form) field(p *model.TournamentPayload, field string) (*string, error) {
	switch field {
	case FieldName:
		return &p.Name, nil
	case FieldStartDate:
		return &p.StartDate, nil
	case FieldEndDate:
		return &p.EndDate, nil
	case FieldVisibility:
		return &p.Visibility, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownField, field)
	}
}

func payloadField(structField string) string {
	switch structField {
	case "StartDate":
		return FieldStartDate
	case "EndDate":
		return FieldEndDate
	case "Visibility":
		return FieldVisibility
	default:
		return FieldName
	}
}
