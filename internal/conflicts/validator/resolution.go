package validator

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	conflicterrors "roomdesk/internal/conflicts/errors"
	"roomdesk/pkg/logger"
	"roomdesk/pkg/model"

	"github.com/go-playground/validator/v10"
)

const maxRejectionReasonLength = 1000

type ResolutionValidator struct {
	validate *validator.Validate
	logger   *logger.Logger
}

func NewResolutionValidator(log *logger.Logger) *ResolutionValidator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(jsonFieldName)

	if err := v.RegisterValidation("resolution_action", validateResolutionAction); err != nil {
		log.Fatal("Failed to register 'resolution_action' validator", "error", err)
	}
	if err := v.RegisterValidation("rejection_reason", validateRejectionReason); err != nil {
		log.Fatal("Failed to register 'rejection_reason' validator", "error", err)
	}

	return &ResolutionValidator{
		validate: v,
		logger:   log,
	}
}

func jsonFieldName(fld reflect.StructField) string {
	name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
	if name == "-" || name == "" {
		return fld.Name
	}
	return name
}

func validateResolutionAction(fl validator.FieldLevel) bool {
	switch model.ResolutionAction(fl.Field().String()) {
	case model.ActionApprove, model.ActionRejectAll:
		return true
	}
	return false
}

func validateRejectionReason(fl validator.FieldLevel) bool {
	reason := strings.TrimSpace(fl.Field().String())
	return reason != "" && len([]rune(reason)) <= maxRejectionReasonLength
}

// Validate checks the shape of a resolution command. Rules that depend on the
// conflict itself (membership, minimum reason length for approvals) are left
// to the engine.
func (v *ResolutionValidator) Validate(cmd *model.ResolutionCommand) error {
	if cmd == nil {
		return conflicterrors.Validation("command", "resolution command is required")
	}

	if err := v.validate.Struct(cmd); err != nil {
		var validationErrs validator.ValidationErrors
		if errors.As(err, &validationErrs) && len(validationErrs) > 0 {
			return translate(validationErrs[0])
		}
		return err
	}

	if cmd.Action == model.ActionRejectAll && strings.TrimSpace(cmd.ChosenBookingID) != "" {
		return conflicterrors.Validation("chosen_booking_id", "chosen_booking_id is only allowed with the approve action")
	}

	return nil
}

func translate(err validator.FieldError) *conflicterrors.ResolutionError {
	field := err.Field()
	var message string

	switch err.Tag() {
	case "required", "required_if":
		message = fmt.Sprintf("%s is required", field)
	case "max":
		message = fmt.Sprintf("%s must be at most %s characters", field, err.Param())
	case "resolution_action":
		message = fmt.Sprintf("%s must be one of: %s, %s", field, model.ActionApprove, model.ActionRejectAll)
	case "rejection_reason":
		message = fmt.Sprintf("%s must be non-blank and at most %d characters", field, maxRejectionReasonLength)
	default:
		message = err.Error()
	}

	return conflicterrors.Validation(field, "%s", message)
}
