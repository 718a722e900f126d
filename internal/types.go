package internal

import (
	"time"
)

// EmailKind classifies a retailer notification by its exact subject line.
type EmailKind string

const (
	KindConfirmation EmailKind = "confirmation"
	KindCancellation EmailKind = "cancellation"
	KindNewTotal     EmailKind = "new_total"
	KindReceipt      EmailKind = "receipt"
	KindUnknown      EmailKind = "unknown"
)

// RequiresOrderNumber reports whether a kind cannot be processed without a
// parsed 10-digit order number.
func (k EmailKind) RequiresOrderNumber() bool {
	switch k {
	case KindConfirmation, KindCancellation, KindNewTotal:
		return true
	}
	return false
}

// ParsedEmail is one decoded notification. Immutable once built.
type ParsedEmail struct {
	MessageID   string    `json:"message_id"`
	Kind        EmailKind `json:"kind"`
	Date        time.Time `json:"date"`
	FromAddress string    `json:"from_address"`
	Subject     string    `json:"subject"`
	Body        string    `json:"body"`
	OrderNumber string    `json:"order_number"`
}

// Order is the structured record derived from a confirmation email, or a
// total-only record derived from a new-total email. Temporal fields are
// pointers so partially derivable records stay representable.
type Order struct {
	Updated        time.Time  `json:"updated"`
	OrderNumber    string     `json:"order_number"`
	DeliveryStart  *time.Time `json:"delivery_start"`
	DeliveryEnd    *time.Time `json:"delivery_end"`
	EditDeadline   *time.Time `json:"edit_deadline"`
	EstimatedTotal *string    `json:"estimated_total"`
}

// IsEmpty reports whether the order is the empty sentinel.
func (o Order) IsEmpty() bool {
	return o.OrderNumber == ""
}

// DeliveryWindow renders the slot as "15:00 - 16:00", or "" when either end
// is unknown.
func (o Order) DeliveryWindow() string {
	if o.DeliveryStart == nil || o.DeliveryEnd == nil {
		return ""
	}
	return o.DeliveryStart.Format("15:04") + " - " + o.DeliveryEnd.Format("15:04")
}

// DaysUntilDelivery returns whole calendar days from now to the delivery
// date: 0 for today, negative once the date has passed, -1 when no window is
// known.
func (o Order) DaysUntilDelivery(now time.Time) int {
	if o.DeliveryStart == nil {
		return -1
	}
	return daysBetween(now, *o.DeliveryStart)
}

// BucketLonger is the almanac slot for products dated beyond one week.
const BucketLonger = 7

const almanacBuckets = 8

// BBDAlmanac holds per-weekday product lists extracted from a receipt PDF.
// Buckets 0..6 are Monday..Sunday, bucket 7 collects items dated beyond one
// week. Dates maps weekday index to the concrete calendar date the bucket
// refers to (delivery date + 1..7 days).
type BBDAlmanac struct {
	DeliveryDate time.Time                `json:"delivery_date"`
	Buckets      [almanacBuckets][]string `json:"buckets"`
	Dates        [7]time.Time             `json:"dates"`
}

// For returns the product list and calendar date for a weekday index
// (0=Monday..6=Sunday).
func (a *BBDAlmanac) For(weekday int) ([]string, time.Time) {
	if a == nil || weekday < 0 || weekday > 6 {
		return nil, time.Time{}
	}
	return a.Buckets[weekday], a.Dates[weekday]
}

// DaysUntil returns whole calendar days from now to a weekday bucket's date,
// or -1 for an out-of-range weekday.
func (a *BBDAlmanac) DaysUntil(weekday int, now time.Time) int {
	if a == nil || weekday < 0 || weekday > 6 {
		return -1
	}
	return daysBetween(now, a.Dates[weekday])
}

// Longer returns the over-one-week bucket.
func (a *BBDAlmanac) Longer() []string {
	if a == nil {
		return nil
	}
	return a.Buckets[BucketLonger]
}

// Receipt is the most recent delivery receipt found during triage. Almanac is
// nil when the attached PDF could not be parsed.
type Receipt struct {
	Updated     time.Time   `json:"updated"`
	OrderNumber string      `json:"order_number"`
	Almanac     *BBDAlmanac `json:"almanac"`
}

// Snapshot is the immutable output of one full pipeline cycle. A new one
// replaces the previous wholesale; nothing mutates a published snapshot.
type Snapshot struct {
	Updated               time.Time `json:"updated"`
	RunID                 string    `json:"run_id"`
	MessageIDs            []string  `json:"message_ids"`
	LiveOrderNumbers      []string  `json:"live_order_numbers"`
	CancelledOrderNumbers []string  `json:"cancelled_order_numbers"`
	Orders                []Order   `json:"orders"`
	Next                  Order     `json:"next"`
	Upcoming              Order     `json:"upcoming"`
	Total                 Order     `json:"total"`
	Receipt               *Receipt  `json:"receipt"`
}

func daysBetween(from, to time.Time) int {
	fromDate := time.Date(from.Year(), from.Month(), from.Day(), 0, 0, 0, 0, time.UTC)
	toDate := time.Date(to.Year(), to.Month(), to.Day(), 0, 0, 0, 0, time.UTC)
	return int(toDate.Sub(fromDate).Hours() / 24)
}

// CycleStats summarises one pipeline run for the run history table.
type CycleStats struct {
	Messages      int `json:"messages"`
	Parsed        int `json:"parsed"`
	Skipped       int `json:"skipped"`
	Confirmations int `json:"confirmations"`
	Cancellations int `json:"cancellations"`
}
