package validator

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"slotbook/pkg/config"
	"slotbook/pkg/logger"
	"slotbook/pkg/model"

	"github.com/go-playground/validator/v10"
)

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

// SlotRequest is the wire shape of a slot in book and reschedule payloads.
type SlotRequest struct {
	Date string `json:"date" validate:"required,datetime=2006-01-02"`
	Time string `json:"time" validate:"required"`
}

type SlotValidator struct {
	validate *validator.Validate
	cfg      *config.Config
	log      *logger.Logger
	now      func() time.Time
}

func NewSlotValidator(cfg *config.Config, log *logger.Logger) *SlotValidator {
	v := validator.New()

	log.Info("Slot validator initialized successfully")

	return &SlotValidator{
		validate: v,
		cfg:      cfg,
		log:      log,
		now:      time.Now,
	}
}

// Validate checks a slot request against the enumerated slot times and
// rejects slots in the past. Returns the normalized slot on success.
func (v *SlotValidator) Validate(req *SlotRequest) (model.Slot, error) {
	if err := v.validate.Struct(req); err != nil {
		var validationErrs validator.ValidationErrors
		if errors.As(err, &validationErrs) {
			return model.Slot{}, v.translateValidationErrors(validationErrs)
		}
		return model.Slot{}, err
	}

	if !v.cfg.IsValidSlotTime(req.Time) {
		return model.Slot{}, ValidationErrors{
			ValidationError{
				Field:   "time",
				Message: fmt.Sprintf("time must be one of %s", strings.Join(v.cfg.SlotTimes, ", ")),
			},
		}
	}

	slotStart, err := time.ParseInLocation("2006-01-02 15:04", req.Date+" "+req.Time, time.Local)
	if err != nil {
		return model.Slot{}, ValidationErrors{
			ValidationError{
				Field:   "date",
				Message: "date and time do not form a valid timestamp",
			},
		}
	}

	if slotStart.Before(v.now()) {
		return model.Slot{}, ValidationErrors{
			ValidationError{
				Field:   "date",
				Message: "slot is in the past",
			},
		}
	}

	return model.Slot{Date: req.Date, Time: req.Time}, nil
}

// ValidateDate checks a bare date query parameter.
func (v *SlotValidator) ValidateDate(date string) error {
	if _, err := time.Parse("2006-01-02", date); err != nil {
		return ValidationErrors{
			ValidationError{
				Field:   "date",
				Message: "date must be in YYYY-MM-DD format",
			},
		}
	}
	return nil
}

func (v *SlotValidator) translateValidationErrors(errs validator.ValidationErrors) ValidationErrors {
	var translated ValidationErrors
	for _, err := range errs {
		var message string
		switch err.Tag() {
		case "required":
			message = "this field is required"
		case "datetime":
			message = "must be in YYYY-MM-DD format"
		default:
			message = fmt.Sprintf("failed validation on '%s'", err.Tag())
		}
		translated = append(translated, ValidationError{
			Field:   strings.ToLower(err.Field()),
			Message: message,
		})
	}
	return translated
}
