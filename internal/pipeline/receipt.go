package pipeline

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	internal "github.com/bbrks/ocado-ha/internal"
	"github.com/bbrks/ocado-ha/internal/util"
)

// ErrMalformedReceipt means the receipt PDF text carried no delivery date
// line. The cycle keeps its confirmations and totals; only the almanac is
// dropped.
var ErrMalformedReceipt = errors.New("no delivery date found in receipt text")

// Receipt section headers and markers as they appear in the PDF text.
const (
	headerFridge   = "Fridge"
	headerCupboard = "Cupboard"
	headerFreezer  = "Freezer"

	markerNoBBD  = "Products with no 'use-by' date"
	markerLonger = "Products with a 'use-by' date over one week"

	useByPrefix = "Use by end of "
)

var weekdayNames = [7]string{"Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday", "Sunday"}

var (
	reReceiptDate = regexp.MustCompile(
		`(?:` + reDayFull + `)\s(?P<day>` + reDate + `)(?:` + reOrdinals + `)?\s(?P<month>` + reMonthFull + `)\s(?P<year>` + reYear + `)`)
	reSavedToday = regexp.MustCompile(`(?i)you(?:'ve)?\s?saved\s£\d{1,3}\.\d{2}\stoday`)

	// Whole lines that are only tabular column values or the column header
	// row; neither names a product.
	reColumnValues = regexp.MustCompile(`^\s*(?:\d+(?:\.\d+)?)?k?g?\s?\d/\d{1,2}\s?\d{1,3}\.\d{1,2}\s*$`)
	reColumnHeader = regexp.MustCompile(`^\s*Product\s+Qty(?:/Weight)?\s+Price`)

	// Stripped out of bucket text, most specific first; each hit becomes a
	// split delimiter.
	reWeight   = `(?:\d+)?k?g?\s?`
	reEach     = regexp.MustCompile(reWeight + `\(£\d{1,2}\.\d{2}/EACH\)`)
	reQtyCost  = regexp.MustCompile(reWeight + `\d/\d{1,2}\s?\d{1,3}\.\d{1,2}`)
	reQtyEach  = regexp.MustCompile(reWeight + `\(£\d{1,2}\.\d{2}/EACH\)\s?\d/\d{1,2}\.?\d{0,2}\s?\d{1,3}\.\d{2}`)
	reDelimRun = regexp.MustCompile(`\|+`)
)

// AlmanacFromPDF extracts the best-before almanac from a receipt PDF
// attachment.
func AlmanacFromPDF(content []byte) (*internal.BBDAlmanac, error) {
	lines, err := FirstPageLines(content)
	if err != nil {
		return nil, err
	}
	return BuildAlmanac(lines)
}

// BuildAlmanac turns the flat first-page line list of a receipt into
// per-weekday product buckets. A receipt with neither Fridge nor Cupboard
// section yields empty buckets without error; a receipt with no delivery
// date line is malformed.
func BuildAlmanac(lines []string) (*internal.BBDAlmanac, error) {
	deliveryDate, err := receiptDeliveryDate(lines)
	if err != nil {
		return nil, err
	}

	fridgeIdx, lines := headerIndex(headerFridge, lines)
	cupboardIdx, lines := headerIndex(headerCupboard, lines)
	endIdx := findEndIndex(lines)

	almanac := &internal.BBDAlmanac{DeliveryDate: deliveryDate}
	for d := 1; d <= 7; d++ {
		date := deliveryDate.AddDate(0, 0, d)
		almanac.Dates[mondayIndex(date.Weekday())] = date
	}

	if fridgeIdx >= 0 {
		fridgeEnd := endIdx
		if cupboardIdx >= 0 {
			fridgeEnd = cupboardIdx - 2
		}
		scanSection(almanac, lines, fridgeIdx+1, fridgeEnd, deliveryDate)
	}
	if cupboardIdx >= 0 {
		scanSection(almanac, lines, cupboardIdx+1, endIdx, deliveryDate)
	}

	for i := range almanac.Buckets {
		almanac.Buckets[i] = cleanBucket(almanac.Buckets[i])
	}
	return almanac, nil
}

// receiptDeliveryDate finds the first full-date line anywhere on the page.
func receiptDeliveryDate(lines []string) (time.Time, error) {
	for _, line := range lines {
		m := namedGroups(reReceiptDate, line)
		if m == nil {
			continue
		}
		raw := fmt.Sprintf("%s-%s-%s", m["year"], m["month"], m["day"])
		date, err := time.Parse("2006-January-2", raw)
		if err != nil {
			continue
		}
		return date, nil
	}
	return time.Time{}, ErrMalformedReceipt
}

// headerIndex returns the first index of an exact header line and a copy of
// the list with any duplicate occurrences removed. Absent headers yield -1.
func headerIndex(header string, lines []string) (int, []string) {
	first := -1
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		if line == header {
			if first >= 0 {
				continue
			}
			first = len(out)
		}
		out = append(out, line)
	}
	return first, out
}

// findEndIndex locates the end of the best-before sections: the no-BBD
// marker, then the Freezer header, then the savings line, in that priority
// order. With no marker the sections run to the end of the page.
func findEndIndex(lines []string) int {
	for i, line := range lines {
		if line == markerNoBBD {
			return i
		}
	}
	for i, line := range lines {
		if line == headerFreezer {
			return i
		}
	}
	for i, line := range lines {
		if reSavedToday.MatchString(line) {
			return i
		}
	}
	return len(lines)
}

// scanSection walks one section's lines, switching the active bucket on
// weekday headers and appending product lines to it.
func scanSection(almanac *internal.BBDAlmanac, lines []string, start, end int, deliveryDate time.Time) {
	if start < 0 || start >= len(lines) {
		return
	}
	if end > len(lines) {
		end = len(lines)
	}
	if end <= start {
		return
	}

	active, ok := startingWeekday(lines[start], deliveryDate)
	if !ok {
		return
	}

	for _, line := range lines[start+1 : end] {
		if idx, ok := weekdayIndex(line); ok {
			active = idx
			continue
		}
		if line == markerLonger {
			active = internal.BucketLonger
			continue
		}
		if reColumnValues.MatchString(line) || reColumnHeader.MatchString(line) {
			continue
		}
		if strings.TrimSpace(line) == "" {
			continue
		}
		almanac.Buckets[active] = append(almanac.Buckets[active], line)
	}
}

// startingWeekday resolves the section's opening "Use by end of <day>" line.
// The literal "tomorrow" maps to the weekday after the delivery date.
func startingWeekday(line string, deliveryDate time.Time) (int, bool) {
	line = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(line), useByPrefix))
	tokens := strings.Fields(line)
	if len(tokens) == 0 {
		return 0, false
	}
	token := tokens[len(tokens)-1]
	if strings.EqualFold(token, "tomorrow") {
		return mondayIndex(deliveryDate.AddDate(0, 0, 1).Weekday()), true
	}
	return weekdayIndex(token)
}

// cleanBucket strips column values, unit amounts and per-item pricing out of
// a bucket's lines, re-splits on the stripped spans and normalizes
// capitalization.
func cleanBucket(bucket []string) []string {
	if len(bucket) == 0 {
		return nil
	}
	joined := strings.Join(bucket, "\n")
	joined = reQtyEach.ReplaceAllString(joined, "|")
	joined = reQtyCost.ReplaceAllString(joined, "|")
	joined = reEach.ReplaceAllString(joined, "|")
	joined = strings.ReplaceAll(joined, "\n", "|")
	joined = reDelimRun.ReplaceAllString(joined, "|")

	out := make([]string, 0, len(bucket))
	for _, part := range strings.Split(joined, "|") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		out = append(out, util.Capitalise(part))
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// weekdayIndex maps a full weekday name to the Monday-based bucket index.
func weekdayIndex(name string) (int, bool) {
	for i, day := range weekdayNames {
		if name == day {
			return i, true
		}
	}
	return 0, false
}

// mondayIndex converts Go's Sunday-based weekday to the Monday-based index.
func mondayIndex(w time.Weekday) int {
	return (int(w) + 6) % 7
}
