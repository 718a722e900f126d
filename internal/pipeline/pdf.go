package pipeline

import (
	"bytes"
	"fmt"
	"strings"

	pdf "github.com/ledongthuc/pdf"
)

// FirstPageLines extracts the text of a PDF's first page as an ordered list
// of lines. Lines are kept as-is, empties included: the receipt layout
// arithmetic depends on positions.
func FirstPageLines(content []byte) ([]string, error) {
	r, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return nil, err
	}
	if r.NumPage() < 1 {
		return nil, fmt.Errorf("pdf has no pages")
	}

	page := r.Page(1)
	if page.V.IsNull() {
		return nil, fmt.Errorf("pdf first page is empty")
	}
	text, err := page.GetPlainText(nil)
	if err != nil {
		return nil, err
	}

	text = strings.ReplaceAll(text, "\r\n", "\n")
	return strings.Split(text, "\n"), nil
}
