package pipeline

import (
	internal "github.com/bbrks/ocado-ha/internal"
)

// Subject lines Ocado UK uses for order notifications. Classification is an
// exact match; anything else is unknown and ignored by triage.
const (
	RetailerAddress = "customerservices@ocado.com"

	SubjectCancellation = "Order cancellation confirmation"
	SubjectConfirmation = "Confirmation of your order"
	SubjectNewTotal     = "What you returned, and your new total"
	SubjectReceipt      = "Your receipt for today's Ocado delivery"

	// Reminder subjects excluded at search time; they carry no order data.
	SubjectCutoff    = "Don't miss the cut-off time for editing your order"
	SubjectSmartPass = "Your Ocado Smart Pass payment"
)

var subjectKinds = map[string]internal.EmailKind{
	SubjectCancellation: internal.KindCancellation,
	SubjectConfirmation: internal.KindConfirmation,
	SubjectNewTotal:     internal.KindNewTotal,
	SubjectReceipt:      internal.KindReceipt,
}

// ExcludedSubjects is the search-time subject blocklist.
func ExcludedSubjects() []string {
	return []string{SubjectCutoff, SubjectSmartPass}
}

// Classify maps a subject line to its email kind. Total function: unmatched
// subjects yield KindUnknown.
func Classify(subject string) internal.EmailKind {
	if kind, ok := subjectKinds[subject]; ok {
		return kind
	}
	return internal.KindUnknown
}
