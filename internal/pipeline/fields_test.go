package pipeline

import (
	"errors"
	"testing"
	"time"
)

func TestExtractOrderNumber(t *testing.T) {
	cases := []struct {
		name string
		body string
		want string
		ok   bool
	}{
		{"order ref", "Order ref: 1234567890\nThanks for shopping", "1234567890", true},
		{"order reference", "Order reference:\n9876543210", "9876543210", true},
		{"order is", "Your Order is 1122334455.", "1122334455", true},
		{"bare number after space", "delivery for 5556667778 confirmed", "5556667778", true},
		{"too short", "Order ref: 123456789", "", false},
		{"no number", "Thanks for shopping with us", "", false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ExtractOrderNumber(tc.body)
			if tc.ok != (err == nil) {
				t.Fatalf("err=%v", err)
			}
			if got != tc.want {
				t.Fatalf("got %q want %q", got, tc.want)
			}
		})
	}
}

func TestExtractDeliveryWindow(t *testing.T) {
	body := "Delivery date:   Saturday 21 December\n" +
		"Delivery time:   5:30pm and 6:30pm\n" +
		"You can edit this order until 11:55 on 20th December 2024\n"

	start, end, err := ExtractDeliveryWindow(body)
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	wantStart := time.Date(2024, time.December, 21, 17, 30, 0, 0, time.UTC)
	wantEnd := time.Date(2024, time.December, 21, 18, 30, 0, 0, time.UTC)
	if !start.Equal(wantStart) {
		t.Fatalf("start=%v", start)
	}
	if !end.Equal(wantEnd) {
		t.Fatalf("end=%v", end)
	}
}

func TestExtractDeliveryWindowYearRollover(t *testing.T) {
	// The delivery date sentence carries no year; a December edit deadline
	// with a January delivery means the delivery is next year.
	body := "Delivery date:   Thursday 2 January\n" +
		"Delivery time:   8:00am and 9:00am\n" +
		"You can edit this order until 11:55 on 31st December 2024\n"

	start, _, err := ExtractDeliveryWindow(body)
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if start.Year() != 2025 {
		t.Fatalf("year=%d", start.Year())
	}
	if start.Month() != time.January || start.Day() != 2 {
		t.Fatalf("date=%v", start)
	}
}

func TestExtractDeliveryWindowMissingParts(t *testing.T) {
	var fieldErr *FieldNotFoundError

	_, _, err := ExtractDeliveryWindow("no delivery info here")
	if !errors.As(err, &fieldErr) {
		t.Fatalf("err=%v", err)
	}

	// Date present but no slot times.
	body := "Delivery date:   Saturday 21 December\n" +
		"You can edit this order until 11:55 on 20th December 2024\n"
	_, _, err = ExtractDeliveryWindow(body)
	if !errors.As(err, &fieldErr) {
		t.Fatalf("err=%v", err)
	}
	if fieldErr.Field != "delivery time" {
		t.Fatalf("field=%q", fieldErr.Field)
	}
}

func TestExtractEditDeadline(t *testing.T) {
	body := "You can edit this order until 11:55 on 20th December 2024"
	got, err := ExtractEditDeadline(body)
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	want := time.Date(2024, time.December, 20, 11, 55, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("got=%v", got)
	}
}

func TestExtractEditDeadlinePM(t *testing.T) {
	body := "You can edit this order until: 11:55pm on 20th December 2024"
	got, err := ExtractEditDeadline(body)
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if got.Hour() != 23 || got.Minute() != 55 {
		t.Fatalf("got=%v", got)
	}
}

func TestExtractEstimatedTotal(t *testing.T) {
	got, err := ExtractEstimatedTotal("Total (estimated):   109.15 GBP")
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if got != "109.15" {
		t.Fatalf("got=%q", got)
	}

	got, err = ExtractEstimatedTotal("Total (estimated): 3.50 GBP")
	if err != nil || got != "3.50" {
		t.Fatalf("got=%q err=%v", got, err)
	}

	var fieldErr *FieldNotFoundError
	if _, err := ExtractEstimatedTotal("no totals here"); !errors.As(err, &fieldErr) {
		t.Fatalf("err=%v", err)
	}
}

func TestExtractNewOrderTotalPadsDecimals(t *testing.T) {
	got, err := ExtractNewOrderTotal("New order total: 12.5 GBP")
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if got != "12.50" {
		t.Fatalf("got=%q", got)
	}
}
