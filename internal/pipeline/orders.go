package pipeline

import (
	"sort"
	"time"

	internal "github.com/bbrks/ocado-ha/internal"
)

// OrderFromConfirmation builds a full Order from a confirmation email. Any
// missing field fails the whole record.
func OrderFromConfirmation(email internal.ParsedEmail) (internal.Order, error) {
	start, end, err := ExtractDeliveryWindow(email.Body)
	if err != nil {
		return internal.Order{}, err
	}
	deadline, err := ExtractEditDeadline(email.Body)
	if err != nil {
		return internal.Order{}, err
	}
	total, err := ExtractEstimatedTotal(email.Body)
	if err != nil {
		return internal.Order{}, err
	}

	return internal.Order{
		Updated:        email.Date,
		OrderNumber:    email.OrderNumber,
		DeliveryStart:  &start,
		DeliveryEnd:    &end,
		EditDeadline:   &deadline,
		EstimatedTotal: &total,
	}, nil
}

// OrderFromNewTotal synthesizes a total-only Order from a new-total email.
// A body without the total phrase still yields a record; the amount is just
// absent.
func OrderFromNewTotal(email internal.ParsedEmail) internal.Order {
	order := internal.Order{
		Updated:     email.Date,
		OrderNumber: email.OrderNumber,
	}
	if total, err := ExtractNewOrderTotal(email.Body); err == nil {
		order.EstimatedTotal = &total
	}
	return order
}

// SortOrders picks the next and second-next future deliveries. Orders are
// sorted descending by delivery start (missing starts sort last), then a
// single pass tracks the strictly smallest day difference from today;
// deliveries already completed today are skipped. Ties on the same day keep
// the first order met in sort order.
func SortOrders(orders []internal.Order, now time.Time) (internal.Order, internal.Order) {
	sorted := make([]internal.Order, len(orders))
	copy(sorted, orders)
	sort.SliceStable(sorted, func(i, j int) bool {
		return startOf(sorted[i]).After(startOf(sorted[j]))
	})

	today := dateOf(now)
	best := 1 << 31
	next := internal.Order{}
	upcoming := internal.Order{}

	for _, order := range sorted {
		if order.DeliveryStart == nil || order.DeliveryEnd == nil {
			continue
		}
		orderDate := dateOf(*order.DeliveryStart)
		if orderDate.Before(today) {
			continue
		}
		if orderDate.Equal(today) && order.DeliveryEnd.Before(now) {
			continue
		}
		diff := int(orderDate.Sub(today).Hours() / 24)
		if diff < best {
			upcoming = next
			next = order
			best = diff
		}
	}
	return next, upcoming
}

func startOf(order internal.Order) time.Time {
	if order.DeliveryStart == nil {
		return time.Time{}
	}
	return *order.DeliveryStart
}

// dateOf strips a timestamp to its wall-clock date, rebuilt in UTC so dates
// parsed in different zones compare by calendar day.
func dateOf(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
