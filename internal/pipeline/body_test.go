package pipeline

import (
	"encoding/base64"
	"errors"
	"strings"
	"testing"

	internal "github.com/bbrks/ocado-ha/internal"
)

const testDateHeader = "Mon, 02 Dec 2024 10:00:00 +0000"

func plainEmail(subject, body string) []byte {
	raw := "From: Ocado <customerservices@ocado.com>\r\n" +
		"To: someone@example.com\r\n" +
		"Date: " + testDateHeader + "\r\n" +
		"Subject: " + subject + "\r\n" +
		"Content-Type: text/plain; charset=utf-8\r\n" +
		"\r\n" +
		body
	return []byte(raw)
}

func TestParseEmailPlain(t *testing.T) {
	raw := plainEmail(SubjectConfirmation, "Order ref: 1234567890\r\nThanks for shopping\r\n")

	email, env, err := ParseEmail("msg-1", raw)
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if env == nil {
		t.Fatal("nil envelope")
	}
	if email.Kind != internal.KindConfirmation {
		t.Fatalf("kind=%s", email.Kind)
	}
	if email.OrderNumber != "1234567890" {
		t.Fatalf("order=%s", email.OrderNumber)
	}
	if email.FromAddress != "customerservices@ocado.com" {
		t.Fatalf("from=%s", email.FromAddress)
	}
	if email.Date.Day() != 2 || email.Date.Hour() != 10 {
		t.Fatalf("date=%v", email.Date)
	}
}

func TestParseEmailPrefersPlainOverHTML(t *testing.T) {
	raw := "From: customerservices@ocado.com\r\n" +
		"Date: " + testDateHeader + "\r\n" +
		"Subject: " + SubjectConfirmation + "\r\n" +
		"MIME-Version: 1.0\r\n" +
		"Content-Type: multipart/alternative; boundary=\"frontier\"\r\n" +
		"\r\n" +
		"--frontier\r\n" +
		"Content-Type: text/plain; charset=utf-8\r\n" +
		"\r\n" +
		"Order ref: 1234567890\r\n" +
		"--frontier\r\n" +
		"Content-Type: text/html; charset=utf-8\r\n" +
		"\r\n" +
		"<p>Order ref: 9999999999</p>\r\n" +
		"--frontier--\r\n"

	email, _, err := ParseEmail("msg-2", []byte(raw))
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if email.OrderNumber != "1234567890" {
		t.Fatalf("order=%s", email.OrderNumber)
	}
}

func TestParseEmailHTMLFallback(t *testing.T) {
	raw := "From: customerservices@ocado.com\r\n" +
		"Date: " + testDateHeader + "\r\n" +
		"Subject: " + SubjectNewTotal + "\r\n" +
		"Content-Type: text/html; charset=utf-8\r\n" +
		"\r\n" +
		"<html><body><style>td{color:red}</style>" +
		"<table><tr><td>Order ref:</td><td>1234567890</td></tr>" +
		"<tr><td>New order total:</td><td>12.50 GBP</td></tr></table></body></html>\r\n"

	email, _, err := ParseEmail("msg-3", []byte(raw))
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if email.OrderNumber != "1234567890" {
		t.Fatalf("order=%s", email.OrderNumber)
	}
	if strings.Contains(email.Body, "color:red") {
		t.Fatal("style text leaked into body")
	}
	if total, err := ExtractNewOrderTotal(email.Body); err != nil || total != "12.50" {
		t.Fatalf("total=%q err=%v", total, err)
	}
}

func TestParseEmailRecoversNestedBase64(t *testing.T) {
	inner := "Order ref: 1234567890\nThanks for shopping"
	encoded := base64.StdEncoding.EncodeToString([]byte(inner))
	body := "Content-Transfer-Encoding: base64\r\n\r\n" + encoded + "\r\n"

	email, _, err := ParseEmail("msg-4", plainEmail(SubjectConfirmation, body))
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if email.OrderNumber != "1234567890" {
		t.Fatalf("order=%s", email.OrderNumber)
	}
	if !strings.Contains(email.Body, "Thanks for shopping") {
		t.Fatalf("body=%q", email.Body)
	}
}

func TestParseEmailNoBody(t *testing.T) {
	raw := "From: customerservices@ocado.com\r\n" +
		"Date: " + testDateHeader + "\r\n" +
		"Subject: " + SubjectReceipt + "\r\n" +
		"Content-Type: multipart/mixed; boundary=\"frontier\"\r\n" +
		"\r\n" +
		"--frontier\r\n" +
		"Content-Type: application/pdf\r\n" +
		"Content-Disposition: attachment; filename=\"receipt.pdf\"\r\n" +
		"\r\n" +
		"%PDF-1.4 not really\r\n" +
		"--frontier--\r\n"

	_, _, err := ParseEmail("msg-5", []byte(raw))
	if !errors.Is(err, ErrBodyNotFound) {
		t.Fatalf("err=%v", err)
	}
}

func TestParseEmailMissingRequiredOrderNumber(t *testing.T) {
	raw := plainEmail(SubjectConfirmation, "Thanks for shopping, no reference here\r\n")

	var fieldErr *FieldNotFoundError
	_, _, err := ParseEmail("msg-6", raw)
	if !errors.As(err, &fieldErr) {
		t.Fatalf("err=%v", err)
	}
}

func TestParseEmailUnknownKindSkipsOrderNumber(t *testing.T) {
	raw := plainEmail("Something else entirely", "no reference here\r\n")

	email, _, err := ParseEmail("msg-7", raw)
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if email.Kind != internal.KindUnknown {
		t.Fatalf("kind=%s", email.Kind)
	}
	if email.OrderNumber != "" {
		t.Fatalf("order=%s", email.OrderNumber)
	}
}
