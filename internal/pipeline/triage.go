package pipeline

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/jhillyerd/enmime"
	"github.com/rs/zerolog"

	internal "github.com/bbrks/ocado-ha/internal"
)

// FetchFunc retrieves the raw bytes for one message id. A failure here is a
// transport failure and aborts the whole cycle.
type FetchFunc func(messageID string) ([]byte, error)

// TriageResult is the reconciled view of one batch of messages.
type TriageResult struct {
	LiveOrderNumbers      []string
	CancelledOrderNumbers []string
	Confirmations         []internal.ParsedEmail
	NewTotal              *internal.ParsedEmail
	Receipt               *internal.Receipt
	Stats                 internal.CycleStats
}

// Triage walks a batch newest-first and reconciles it into a single
// consistent result. Cancellations are recorded before the older emails for
// the same order are reached, so a cancelled order number suppresses every
// later record for it; duplicate confirmations keep only the most recent;
// only the newest new-total and receipt matter.
//
// Per-message parse failures exclude just that message and are logged; a
// fetch failure aborts the batch so a partial result is never returned.
func Triage(messageIDs []string, fetch FetchFunc, log zerolog.Logger) (TriageResult, error) {
	cancelled := map[string]struct{}{}
	seenConfirmed := map[string]struct{}{}
	confirmedOrder := []string{}

	result := TriageResult{}
	result.Stats.Messages = len(messageIDs)

	for i := len(messageIDs) - 1; i >= 0; i-- {
		id := messageIDs[i]
		raw, err := fetch(id)
		if err != nil {
			return TriageResult{}, fmt.Errorf("fetch message %s: %w", id, err)
		}

		email, env, err := ParseEmail(id, raw)
		if err != nil {
			result.Stats.Skipped++
			logParseFailure(log, id, err)
			continue
		}
		if email.Kind == internal.KindUnknown {
			result.Stats.Skipped++
			continue
		}
		result.Stats.Parsed++

		if email.Kind == internal.KindCancellation {
			if _, ok := cancelled[email.OrderNumber]; !ok {
				cancelled[email.OrderNumber] = struct{}{}
				result.CancelledOrderNumbers = append(result.CancelledOrderNumbers, email.OrderNumber)
			}
			result.Stats.Cancellations++
			continue
		}
		if email.OrderNumber != "" {
			if _, ok := cancelled[email.OrderNumber]; ok {
				continue
			}
		}

		switch email.Kind {
		case internal.KindReceipt:
			if result.Receipt == nil {
				result.Receipt = buildReceipt(email, env, log)
			}
		case internal.KindConfirmation:
			if _, ok := seenConfirmed[email.OrderNumber]; !ok {
				seenConfirmed[email.OrderNumber] = struct{}{}
				confirmedOrder = append(confirmedOrder, email.OrderNumber)
				result.Confirmations = append(result.Confirmations, email)
				result.Stats.Confirmations++
			}
		case internal.KindNewTotal:
			if result.NewTotal == nil {
				copied := email
				result.NewTotal = &copied
				// A standalone total still evidences a real order.
				confirmedOrder = append(confirmedOrder, email.OrderNumber)
			}
		}
	}

	result.LiveOrderNumbers = dedupeSorted(confirmedOrder)
	return result, nil
}

// buildReceipt fills the receipt slot and extracts the almanac from the PDF
// attachment. A malformed or missing PDF yields a receipt without an almanac.
func buildReceipt(email internal.ParsedEmail, env *enmime.Envelope, log zerolog.Logger) *internal.Receipt {
	receipt := &internal.Receipt{
		Updated:     email.Date,
		OrderNumber: email.OrderNumber,
	}

	pdfContent := findPDFAttachment(env)
	if pdfContent == nil {
		log.Warn().Str("message_id", email.MessageID).Msg("receipt email has no pdf attachment")
		return receipt
	}

	almanac, err := AlmanacFromPDF(pdfContent)
	if err != nil {
		log.Warn().Err(err).Str("message_id", email.MessageID).Msg("receipt pdf extraction failed")
		return receipt
	}
	receipt.Almanac = almanac
	return receipt
}

func findPDFAttachment(env *enmime.Envelope) []byte {
	if env == nil {
		return nil
	}
	for _, att := range env.Attachments {
		if att.ContentType == "application/pdf" ||
			strings.HasSuffix(strings.ToLower(att.FileName), ".pdf") {
			return att.Content
		}
	}
	return nil
}

func logParseFailure(log zerolog.Logger, id string, err error) {
	var fieldErr *FieldNotFoundError
	switch {
	case errors.Is(err, ErrBodyNotFound):
		log.Warn().Str("message_id", id).Msg("message has no text body, dropped")
	case errors.As(err, &fieldErr):
		log.Warn().Str("message_id", id).Str("field", fieldErr.Field).Msg("required field missing, message dropped")
	default:
		log.Warn().Err(err).Str("message_id", id).Msg("message parse failed, dropped")
	}
}

func dedupeSorted(values []string) []string {
	seen := map[string]struct{}{}
	out := make([]string, 0, len(values))
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}
