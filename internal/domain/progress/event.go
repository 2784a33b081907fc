// Package progress is the analytics core of Progress Hub. It turns a stream
// of learning events into daily summaries, a strict consecutive-day streak,
// a confidence rating and milestone rewards.
//
// Every computation here is pure: callers load history through the store
// ports in repository.go and hand snapshots to these functions.
package progress

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/go-playground/validator/v10/non-standard/validators"
	enTranslations "github.com/go-playground/validator/v10/translations/en"

	"github.com/alem-hub/progress-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// ACTIVITY KIND
// ══════════════════════════════════════════════════════════════════════════════

// ActivityKind is the kind of learning activity an event records.
type ActivityKind string

const (
	KindQuiz     ActivityKind = "quiz"
	KindPractice ActivityKind = "practice"
	KindRevision ActivityKind = "revision"
	KindTest     ActivityKind = "test"
)

// AllKinds returns every accepted activity kind in display order.
func AllKinds() []ActivityKind {
	return []ActivityKind{KindQuiz, KindPractice, KindRevision, KindTest}
}

// IsValid checks if the kind is one of the enumerated values.
func (k ActivityKind) IsValid() bool {
	switch k {
	case KindQuiz, KindPractice, KindRevision, KindTest:
		return true
	}
	return false
}

// String returns the string representation.
func (k ActivityKind) String() string {
	return string(k)
}

// ══════════════════════════════════════════════════════════════════════════════
// LEARNING EVENT
// ══════════════════════════════════════════════════════════════════════════════

// LearningEvent is one recorded activity instance. Immutable once accepted.
type LearningEvent struct {
	ID        string       `json:"id"`
	StudentID string       `json:"student_id" validate:"notblank"`
	Date      time.Time    `json:"date" validate:"required"`
	Kind      ActivityKind `json:"activity_type" validate:"oneof=quiz practice revision test"`
	Topic     string       `json:"topic" validate:"notblank"`
	Score     int          `json:"score" validate:"min=0,max=100"`

	// TimeSpent is in whole minutes.
	TimeSpent int `json:"time_spent" validate:"min=1"`

	Attempt    int       `json:"attempt_number" validate:"min=1"`
	RecordedAt time.Time `json:"recorded_at"`
}

// ══════════════════════════════════════════════════════════════════════════════
// VALIDATION
// ══════════════════════════════════════════════════════════════════════════════

// ValidationError reports the first field of an event that violates a constraint.
type ValidationError struct {
	Field  string
	Reason string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// Unwrap lets errors.Is match shared.ErrValidation.
func (e *ValidationError) Unwrap() error {
	return shared.ErrValidation
}

// AsValidationError extracts a *ValidationError from an error chain.
func AsValidationError(err error) (*ValidationError, bool) {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve, true
	}
	return nil, false
}

// Validator checks incoming events before they are stored.
// It is safe for concurrent use.
type Validator struct {
	validate *validator.Validate
	trans    ut.Translator
}

// NewValidator builds a Validator with English messages keyed by JSON field names.
func NewValidator() (*Validator, error) {
	validate := validator.New()

	enLocale := en.New()
	uni := ut.New(enLocale, enLocale)
	trans, _ := uni.GetTranslator("en")
	if err := enTranslations.RegisterDefaultTranslations(validate, trans); err != nil {
		return nil, fmt.Errorf("failed to register default translations: %w", err)
	}

	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	if err := validate.RegisterValidation("notblank", validators.NotBlank); err != nil {
		return nil, fmt.Errorf("failed to register notblank validation: %w", err)
	}
	if err := validate.RegisterTranslation("notblank", trans, func(ut ut.Translator) error {
		return ut.Add("notblank", "{0} must not be empty", true)
	}, func(ut ut.Translator, fe validator.FieldError) string {
		t, _ := ut.T("notblank", fe.Field())
		return t
	}); err != nil {
		return nil, fmt.Errorf("failed to register notblank translation: %w", err)
	}

	return &Validator{validate: validate, trans: trans}, nil
}

// MustNewValidator is like NewValidator but panics on setup failure.
func MustNewValidator() *Validator {
	v, err := NewValidator()
	if err != nil {
		panic(err)
	}
	return v
}

// Validate accepts or rejects an event. A rejection is always a *ValidationError.
func (v *Validator) Validate(e LearningEvent) error {
	return v.Check(e)
}

// Check validates any struct tagged with the event rules, such as a wire
// payload. Fields are checked in declaration order and the first violation
// is reported as a *ValidationError.
func (v *Validator) Check(s interface{}) error {
	err := v.validate.Struct(s)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return &ValidationError{Field: "event", Reason: err.Error()}
	}

	fe := fieldErrs[0]
	return &ValidationError{
		Field:  fe.Field(),
		Reason: fe.Translate(v.trans),
	}
}
