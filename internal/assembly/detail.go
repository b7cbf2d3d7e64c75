package assembly

import (
	"fmt"
	"html"
	"io"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/microcosm-cc/bluemonday"
)

// purposeSelector matches the "제안이유 및 주요내용" block of the bill summary popup.
const purposeSelector = "div.textType02.mt30"

var (
	lineBreakPattern = regexp.MustCompile(`(?i)<br\s*/?>`)
	stripPolicy      = bluemonday.StrictPolicy()
)

// DetailURL builds the summary popup address for billID.
func DetailURL(base, billID string) string {
	return base + "?billId=" + url.QueryEscape(billID)
}

// ParseBillPurpose extracts the purpose text from a summary popup page,
// keeping the page's line breaks as newlines.
func ParseBillPurpose(r io.Reader) (string, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrParse, err)
	}

	container := doc.Find(purposeSelector).First()
	if container.Length() == 0 {
		return "", fmt.Errorf("%w: %s not found", ErrParse, purposeSelector)
	}

	inner, err := container.Html()
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrParse, err)
	}
	return StripMarkup(lineBreakPattern.ReplaceAllString(inner, "\n")), nil
}

// StripMarkup drops every tag from s and decodes entities.
func StripMarkup(s string) string {
	return strings.TrimSpace(html.UnescapeString(stripPolicy.Sanitize(s)))
}
