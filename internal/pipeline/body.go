package pipeline

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"net/mail"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/jhillyerd/enmime"

	internal "github.com/bbrks/ocado-ha/internal"
	"github.com/bbrks/ocado-ha/internal/util"
)

// ErrBodyNotFound means the message had no usable text or HTML part. The
// message is dropped from triage; the batch continues.
var ErrBodyNotFound = errors.New("no text body found in message")

// base64Declaration matches a leftover transfer-encoding declaration ahead of
// an undecoded base64 segment.
var base64Declaration = regexp.MustCompile(`(?s)^.*base64\s*\r?\n\s*\r?\n`)

// ParseEmail decodes a raw MIME message into a ParsedEmail. The envelope is
// returned alongside so receipt handling can reach the PDF attachment without
// re-parsing the raw bytes.
func ParseEmail(messageID string, raw []byte) (internal.ParsedEmail, *enmime.Envelope, error) {
	env, err := enmime.ReadEnvelope(bytes.NewReader(raw))
	if err != nil {
		return internal.ParsedEmail{}, nil, fmt.Errorf("read envelope: %w", err)
	}

	subject := env.GetHeader("Subject")
	kind := Classify(subject)

	date, err := mail.ParseDate(env.GetHeader("Date"))
	if err != nil {
		return internal.ParsedEmail{}, nil, fmt.Errorf("parse date header: %w", err)
	}

	body, err := decodeBody(env)
	if err != nil {
		return internal.ParsedEmail{}, nil, err
	}

	orderNumber, err := ExtractOrderNumber(body)
	if err != nil {
		if kind.RequiresOrderNumber() {
			return internal.ParsedEmail{}, nil, err
		}
		orderNumber = ""
	}

	return internal.ParsedEmail{
		MessageID:   messageID,
		Kind:        kind,
		Date:        date,
		FromAddress: fromAddress(env.GetHeader("From")),
		Subject:     subject,
		Body:        body,
		OrderNumber: orderNumber,
	}, env, nil
}

// decodeBody selects the best body part, preferring plain text over HTML, and
// recovers a nested base64 segment the MIME decoder left encoded.
func decodeBody(env *enmime.Envelope) (string, error) {
	body := ""
	switch {
	case strings.TrimSpace(env.Text) != "":
		body = stripSoftBreaks(env.Text)
	case strings.TrimSpace(env.HTML) != "":
		flat, err := flattenHTML(env.HTML)
		if err != nil || strings.TrimSpace(flat) == "" {
			return "", ErrBodyNotFound
		}
		body = flat
	default:
		return "", ErrBodyNotFound
	}

	if strings.Contains(body, "base64") {
		stripped := base64Declaration.ReplaceAllString(body, "")
		compact := strings.Map(dropSpace, stripped)
		if decoded, err := base64.StdEncoding.DecodeString(compact); err == nil {
			body = string(decoded)
		}
	}
	return body, nil
}

// stripSoftBreaks removes quoted-printable soft line breaks that survive in
// re-encoded bodies.
func stripSoftBreaks(text string) string {
	text = strings.ReplaceAll(text, "=\r\n", "")
	return strings.ReplaceAll(text, "=\n", "")
}

func flattenHTML(html string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", err
	}
	doc.Find("script,style").Remove()
	return util.NormalizeSpaces(doc.Text()), nil
}

func dropSpace(r rune) rune {
	if r == ' ' || r == '\t' || r == '\n' || r == '\r' {
		return -1
	}
	return r
}

// fromAddress pulls the bare address out of a From header, lower-cased.
func fromAddress(header string) string {
	if addr, err := mail.ParseAddress(header); err == nil {
		return strings.ToLower(addr.Address)
	}
	return strings.ToLower(strings.TrimSpace(header))
}
