package model

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

func TestValidateEmployee(t *testing.T) {
	valid := Employee{FirstName: "Ada", LastName: "Lovelace", Email: "ada@clutch.app", Status: "active"}
	if err := Validate(valid); err != nil {
		t.Fatalf("expected valid employee, got %v", err)
	}

	tests := []struct {
		name  string
		edit  func(*Employee)
		field string
		rule  string
	}{
		{name: "missing email", edit: func(e *Employee) { e.Email = "" }, field: "email", rule: "required"},
		{name: "bad email", edit: func(e *Employee) { e.Email = "not-an-email" }, field: "email", rule: "email"},
		{name: "unknown status", edit: func(e *Employee) { e.Status = "retired" }, field: "status", rule: "oneof"},
		{name: "missing first name", edit: func(e *Employee) { e.FirstName = "" }, field: "firstName", rule: "required"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			employee := valid
			tc.edit(&employee)

			err := Validate(employee)
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
			if verr.Field != tc.field || verr.Rule != tc.rule {
				t.Fatalf("expected %s/%s, got %s/%s", tc.field, tc.rule, verr.Field, verr.Rule)
			}
		})
	}
}

func TestValidateInventoryRejectsNegativePrice(t *testing.T) {
	item := InventoryItem{SKU: "BRK-1", Name: "Brake pad", Quantity: 3, Price: decimal.RequireFromString("-1.50")}
	err := Validate(item)
	var verr *ValidationError
	if !errors.As(err, &verr) || verr.Field != "price" {
		t.Fatalf("expected price validation error, got %v", err)
	}

	item.Price = decimal.RequireFromString("12.99")
	if err := Validate(item); err != nil {
		t.Fatalf("expected valid item, got %v", err)
	}
}

func TestValidateAppointmentRequiresSchedule(t *testing.T) {
	appt := Appointment{CustomerName: "Omar", ServiceType: "oil change"}
	if err := Validate(appt); err == nil {
		t.Fatalf("expected missing scheduledAt to fail")
	}
	appt.ScheduledAt = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	if err := Validate(appt); err != nil {
		t.Fatalf("expected valid appointment, got %v", err)
	}
}

func TestListingRoundTripKeepsKind(t *testing.T) {
	payload := `[{"type":"job_posting","id":"j1","title":"Mechanic","status":"open"},{"type":"invitation","id":"i1","email":"x@clutch.app","role":"hr_manager","status":"pending"}]`

	var listings []Listing
	if err := json.Unmarshal([]byte(payload), &listings); err != nil {
		t.Fatalf("decode listings: %v", err)
	}
	if len(listings) != 2 {
		t.Fatalf("expected 2 listings, got %d", len(listings))
	}
	if listings[0].Job == nil || listings[0].Key() != "j1" || listings[0].StatusValue() != "open" {
		t.Fatalf("unexpected job listing: %+v", listings[0])
	}
	if listings[1].Invitation == nil || listings[1].Title() != "x@clutch.app" {
		t.Fatalf("unexpected invitation listing: %+v", listings[1])
	}

	encoded, err := json.Marshal(listings[1])
	if err != nil {
		t.Fatalf("encode listing: %v", err)
	}
	var back Listing
	if err := json.Unmarshal(encoded, &back); err != nil {
		t.Fatalf("decode encoded listing: %v", err)
	}
	if back.Kind != ListingInvitation || back.Invitation.Role != "hr_manager" {
		t.Fatalf("unexpected listing after re-decode: %+v", back)
	}
}

func TestListingUnknownTypeFails(t *testing.T) {
	var listing Listing
	err := json.Unmarshal([]byte(`{"type":"offer","id":"o1"}`), &listing)
	if !errors.Is(err, ErrUnknownListing) {
		t.Fatalf("expected ErrUnknownListing, got %v", err)
	}
}

func TestStatusTone(t *testing.T) {
	cases := map[string]Tone{
		"active":       TonePositive,
		"On_Leave":     ToneWarning,
		"out_of_stock": ToneNegative,
		"":             ToneNeutral,
		"mystery":      ToneNeutral,
	}
	for status, want := range cases {
		if got := StatusTone(status); got != want {
			t.Fatalf("StatusTone(%q) = %s, want %s", status, got, want)
		}
	}
}
