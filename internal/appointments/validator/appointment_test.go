package validator

import (
	"errors"
	"testing"
	"time"

	"slotbook/pkg/config"
	"slotbook/pkg/logger"
)

func testValidator() *SlotValidator {
	log := logger.New(logger.Config{Level: "error", Format: logger.TEXT, Service: "test"})
	cfg := &config.Config{
		SlotTimes: []string{"09:00", "10:00"},
		Log:       log,
	}
	return NewSlotValidator(cfg, log)
}

func TestValidate_AcceptsKnownFutureSlot(t *testing.T) {
	v := testValidator()
	date := time.Now().AddDate(0, 0, 1).Format("2006-01-02")

	slot, err := v.Validate(&SlotRequest{Date: date, Time: "09:00"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if slot.Date != date || slot.Time != "09:00" {
		t.Errorf("unexpected slot: %+v", slot)
	}
}

func TestValidate_RejectsBadInput(t *testing.T) {
	v := testValidator()
	tomorrow := time.Now().AddDate(0, 0, 1).Format("2006-01-02")

	cases := []struct {
		name string
		req  SlotRequest
	}{
		{"missing date", SlotRequest{Time: "09:00"}},
		{"missing time", SlotRequest{Date: tomorrow}},
		{"malformed date", SlotRequest{Date: "01/10/2026", Time: "09:00"}},
		{"unknown slot time", SlotRequest{Date: tomorrow, Time: "09:30"}},
		{"past slot", SlotRequest{Date: "2020-01-01", Time: "09:00"}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := v.Validate(&tc.req)
			if err == nil {
				t.Fatal("expected validation error, got nil")
			}
			var validationErrs ValidationErrors
			if !errors.As(err, &validationErrs) {
				t.Fatalf("expected ValidationErrors, got %T: %v", err, err)
			}
		})
	}
}

func TestValidateDate(t *testing.T) {
	v := testValidator()

	if err := v.ValidateDate("2026-10-01"); err != nil {
		t.Errorf("valid date rejected: %v", err)
	}
	if err := v.ValidateDate("not-a-date"); err == nil {
		t.Error("malformed date accepted")
	}
}
