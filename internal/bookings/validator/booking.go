package validator

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"roomdesk/pkg/logger"
	"roomdesk/pkg/model"

	"github.com/go-playground/validator/v10"
)

const minRejectionReasonLength = 5

type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (v ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", v.Field, v.Message)
}

type ValidationErrors []ValidationError

func (v ValidationErrors) Error() string {
	if len(v) == 0 {
		return ""
	}
	var messages []string
	for _, err := range v {
		messages = append(messages, err.Error())
	}
	return fmt.Sprintf("validation failed: %d error(s): [%s]", len(v), strings.Join(messages, "; "))
}

type BookingValidator struct {
	validate *validator.Validate
	logger   *logger.Logger
	now      func() time.Time
}

func NewBookingValidator(log *logger.Logger) *BookingValidator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})

	if err := v.RegisterValidation("not_blank", validateNotBlank); err != nil {
		log.Fatal("Failed to register 'not_blank' validator", "error", err)
	}

	log.Info("Booking validator initialized successfully")

	return &BookingValidator{
		validate: v,
		logger:   log,
		now:      time.Now,
	}
}

// WithClock replaces the clock used for the "not in the past" rules.
func (v *BookingValidator) WithClock(now func() time.Time) *BookingValidator {
	v.now = now
	return v
}

func validateNotBlank(fl validator.FieldLevel) bool {
	return strings.TrimSpace(fl.Field().String()) != ""
}

// ValidateNew checks a booking about to be submitted. Besides the field rules
// its start must not lie in the past.
func (v *BookingValidator) ValidateNew(booking *model.Booking) error {
	if err := v.Validate(booking); err != nil {
		return err
	}

	if booking.StartTime.Before(v.now()) {
		return ValidationErrors{
			ValidationError{
				Field:   "start_time",
				Message: "start_time cannot be in the past",
			},
		}
	}

	return nil
}

// Validate checks field rules and the interval of a stored or merged booking.
func (v *BookingValidator) Validate(booking *model.Booking) error {
	if err := v.validate.Struct(booking); err != nil {
		var validationErrs validator.ValidationErrors
		if errors.As(err, &validationErrs) {
			return v.translateValidationErrors(validationErrs)
		}
		return err
	}

	if !booking.EndTime.After(booking.StartTime) {
		return ValidationErrors{
			ValidationError{
				Field:   "end_time",
				Message: "end_time must be after start_time",
			},
		}
	}

	for _, res := range booking.RequestedResources {
		if res == booking.ResourceID {
			return ValidationErrors{
				ValidationError{
					Field:   "requested_resources",
					Message: "requested_resources must not repeat the booked resource",
				},
			}
		}
	}

	return nil
}

func (v *BookingValidator) ValidateUpdate(update *model.BookingUpdate) error {
	if err := v.validate.Struct(update); err != nil {
		var validationErrs validator.ValidationErrors
		if errors.As(err, &validationErrs) {
			return v.translateValidationErrors(validationErrs)
		}
		return err
	}

	if update.StartTime != nil && update.EndTime != nil {
		if !update.EndTime.After(*update.StartTime) {
			return ValidationErrors{
				ValidationError{
					Field:   "end_time",
					Message: "end_time must be after start_time",
				},
			}
		}
	}

	if update.StartTime != nil && update.StartTime.Before(v.now()) {
		return ValidationErrors{
			ValidationError{
				Field:   "start_time",
				Message: "start_time cannot be moved into the past",
			},
		}
	}

	return nil
}

// ValidateDecision checks a single-booking decision. Rejections need a
// reason of at least five characters after trimming.
func (v *BookingValidator) ValidateDecision(decision *model.BookingDecision) error {
	if decision == nil {
		return ValidationErrors{ValidationError{Field: "decision", Message: "decision is required"}}
	}

	if err := v.validate.Struct(decision); err != nil {
		var validationErrs validator.ValidationErrors
		if errors.As(err, &validationErrs) {
			return v.translateValidationErrors(validationErrs)
		}
		return err
	}

	if decision.Decision == model.DecisionReject {
		if len([]rune(strings.TrimSpace(decision.Reason))) < minRejectionReasonLength {
			return ValidationErrors{
				ValidationError{
					Field:   "reason",
					Message: fmt.Sprintf("reason must be at least %d characters when rejecting", minRejectionReasonLength),
				},
			}
		}
	}

	return nil
}

func (v *BookingValidator) translateValidationErrors(errs validator.ValidationErrors) ValidationErrors {
	var validationErrors ValidationErrors

	for _, err := range errs {
		message := err.Error()

		switch err.Tag() {
		case "required":
			message = fmt.Sprintf("%s is required", err.Field())
		case "min":
			message = fmt.Sprintf("%s must be at least %s", err.Field(), err.Param())
		case "max":
			message = fmt.Sprintf("%s must be at most %s", err.Field(), err.Param())
		case "mongodb":
			message = fmt.Sprintf("%s must be a valid MongoDB ObjectID", err.Field())
		case "oneof":
			message = fmt.Sprintf("%s must be one of: %s", err.Field(), err.Param())
		case "gtfield":
			message = fmt.Sprintf("%s must be after %s", err.Field(), err.Param())
		case "unique":
			message = fmt.Sprintf("%s must not contain duplicates", err.Field())
		case "not_blank":
			message = fmt.Sprintf("%s must not be blank", err.Field())
		}

		validationErrors = append(validationErrors, ValidationError{
			Field:   err.Field(),
			Message: message,
		})
	}

	return validationErrors
}
