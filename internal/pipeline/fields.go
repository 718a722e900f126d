package pipeline

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// FieldNotFoundError reports a required field missing from a message body.
// Hard for the record being built: the whole email is excluded from the
// snapshot, never defaulted.
type FieldNotFoundError struct {
	Field string
}

func (e *FieldNotFoundError) Error() string {
	return fmt.Sprintf("field not found in message body: %s", e.Field)
}

// Building blocks for the retailer's date phrasing.
const (
	reDate      = `3[01]|[12][0-9]|0?[1-9]`
	reDayFull   = `Monday|Tuesday|Wednesday|Thursday|Friday|Saturday|Sunday`
	reMonthFull = `January|February|March|April|May|June|July|August|September|October|November|December`
	reYear      = `(?:19|20)\d{2}`
	reTime      = `(?:0?[1-9]|1[0-2]):[0-5][0-9] ?(?:[AaPp][Mm])?`
	reOrdinals  = `st|nd|rd|th`
)

var (
	reOrderNumber = regexp.MustCompile(`(?:Order\sref(?:\.|erence):)?(?:Order\sis\s)?(?:\s{1,20})(?P<order_number>\d{10})`)

	reDeliveryDate = regexp.MustCompile(
		`Delivery\sdate:\s{1,20}(?:` + reDayFull + `)\s(?P<day>` + reDate + `)\s(?P<month>` + reMonthFull + `)`)
	reYearBearing = regexp.MustCompile(
		`(?P<day>` + reDate + `)(?:` + reOrdinals + `)\s(?P<month>` + reMonthFull + `)\s(?P<year>` + reYear + `)`)
	reDeliveryTime = regexp.MustCompile(
		`Delivery\stime:\s{1,20}(?P<start>` + reTime + `)\sand\s(?P<end>` + reTime + `)`)

	reEditDeadline = regexp.MustCompile(
		`(?:You\scan\sedit\sthis\sorder\suntil:?\s)(?P<time>` + reTime + `)(?:\son\s)(?P<day>` + reDate + `)(?:` + reOrdinals + `)\s(?P<month>` + reMonthFull + `)\s(?P<year>` + reYear + `)`)

	reEstimatedTotal = regexp.MustCompile(`Total\s\(estimated\):\s{1,20}(?P<total>\d+.\d{2})\sGBP`)
	reNewOrderTotal  = regexp.MustCompile(`New\sorder\stotal:\s{1,20}(?P<total>\d+.\d{1,2})\sGBP`)
)

// ExtractOrderNumber pulls the 10-digit order reference out of a body.
func ExtractOrderNumber(body string) (string, error) {
	if m := namedGroups(reOrderNumber, body); m != nil {
		return m["order_number"], nil
	}
	return "", &FieldNotFoundError{Field: "order number"}
}

// ExtractDeliveryWindow parses the delivery slot start and end. The delivery
// date sentence never carries a year, so the year comes from the edit
// deadline sentence elsewhere in the body; a December edit deadline paired
// with a January delivery means the delivery is in the following year.
func ExtractDeliveryWindow(body string) (time.Time, time.Time, error) {
	dateMatch := namedGroups(reDeliveryDate, body)
	if dateMatch == nil {
		return time.Time{}, time.Time{}, &FieldNotFoundError{Field: "delivery date"}
	}
	day := dateMatch["day"]
	month := dateMatch["month"]

	yearMatch := namedGroups(reYearBearing, body)
	if yearMatch == nil {
		return time.Time{}, time.Time{}, &FieldNotFoundError{Field: "delivery year"}
	}
	year, _ := strconv.Atoi(yearMatch["year"])
	if yearMatch["month"] == "December" && month == "January" {
		year++
	}

	timeMatch := namedGroups(reDeliveryTime, body)
	if timeMatch == nil {
		return time.Time{}, time.Time{}, &FieldNotFoundError{Field: "delivery time"}
	}

	start, err := parseSlotTime(year, month, day, timeMatch["start"])
	if err != nil {
		return time.Time{}, time.Time{}, &FieldNotFoundError{Field: "delivery window start"}
	}
	end, err := parseSlotTime(year, month, day, timeMatch["end"])
	if err != nil {
		return time.Time{}, time.Time{}, &FieldNotFoundError{Field: "delivery window end"}
	}
	return start, end, nil
}

// ExtractEditDeadline parses the edit cutoff timestamp. The clock comes
// either bare ("11:55") or with an am/pm suffix.
func ExtractEditDeadline(body string) (time.Time, error) {
	m := namedGroups(reEditDeadline, body)
	if m == nil {
		return time.Time{}, &FieldNotFoundError{Field: "edit deadline"}
	}

	clock := strings.ToLower(strings.TrimSpace(m["time"]))
	if strings.HasSuffix(clock, "am") || strings.HasSuffix(clock, "pm") {
		year, _ := strconv.Atoi(m["year"])
		deadline, err := parseSlotTime(year, m["month"], m["day"], m["time"])
		if err != nil {
			return time.Time{}, &FieldNotFoundError{Field: "edit deadline"}
		}
		return deadline, nil
	}

	raw := fmt.Sprintf("%s-%s-%s %s", m["year"], m["month"], m["day"], clock)
	deadline, err := time.Parse("2006-January-2 15:04", raw)
	if err != nil {
		return time.Time{}, &FieldNotFoundError{Field: "edit deadline"}
	}
	return deadline, nil
}

// ExtractEstimatedTotal parses "Total (estimated): <amount> GBP" from a
// confirmation body and returns a fixed two-decimal string.
func ExtractEstimatedTotal(body string) (string, error) {
	return extractTotal(reEstimatedTotal, body, "estimated total")
}

// ExtractNewOrderTotal parses "New order total: <amount> GBP" from a
// returns/new-total body.
func ExtractNewOrderTotal(body string) (string, error) {
	return extractTotal(reNewOrderTotal, body, "new order total")
}

// extractTotal keeps monetary amounts as strings end to end; decimal only
// normalizes the representation to two places.
func extractTotal(re *regexp.Regexp, body, field string) (string, error) {
	m := namedGroups(re, body)
	if m == nil {
		return "", &FieldNotFoundError{Field: field}
	}
	amount, err := decimal.NewFromString(m["total"])
	if err != nil {
		return "", &FieldNotFoundError{Field: field}
	}
	return amount.StringFixed(2), nil
}

// parseSlotTime builds a delivery timestamp from the retailer's 12-hour
// phrasing, upper-casing am/pm before parsing.
func parseSlotTime(year int, month, day, clock string) (time.Time, error) {
	clock = strings.NewReplacer("am", "AM", "pm", "PM", " ", "").Replace(clock)
	raw := fmt.Sprintf("%d-%s-%s %s", year, month, day, clock)
	return time.Parse("2006-January-2 3:04PM", raw)
}

// namedGroups returns a map of named submatches, or nil when the pattern does
// not match.
func namedGroups(re *regexp.Regexp, body string) map[string]string {
	match := re.FindStringSubmatch(body)
	if match == nil {
		return nil
	}
	out := make(map[string]string, len(match))
	for i, name := range re.SubexpNames() {
		if name != "" {
			out[name] = match[i]
		}
	}
	return out
}
