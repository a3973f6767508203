package browser

import (
	"strings"

	"github.com/PuerkitoBio/goquery"

	errs "eoscraper/pkg/errors"
	"eoscraper/pkg/models"
)

// MissingValue stands in for a field rendered without a value
const MissingValue = "-"

// ParseDetail turns the detail container markup into a record. Each block
// matched by blockSel contributes one field: its first text line is the
// name and its second the value. A block with a single line is a field with
// MissingValue, unless that line is one of the section headings in skip.
func ParseDetail(html, blockSel string, skip []string) (models.Record, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, errs.Wrap(errs.ErrorTypeExtraction, "parse detail", err)
	}

	// Line breaks render as new lines
	doc.Find("br").ReplaceWithHtml("\n")

	headings := make(map[string]bool, len(skip))
	for _, h := range skip {
		headings[h] = true
	}

	rec := models.Record{}
	doc.Find(blockSel).Each(func(_ int, block *goquery.Selection) {
		lines := blockLines(block)
		switch {
		case len(lines) == 0:
		case len(lines) == 1:
			if !headings[lines[0]] {
				rec.Set(lines[0], MissingValue)
			}
		default:
			rec.Set(lines[0], lines[1])
		}
	})

	if len(rec) == 0 {
		return nil, errs.Extraction("parse detail", "no %q blocks with text in detail view", blockSel)
	}
	return rec, nil
}

// blockLines collects the non-empty text lines of a block the way a browser
// renders them: one line per child element, plus explicit line breaks
func blockLines(block *goquery.Selection) []string {
	var raw []string
	children := block.Children()
	if children.Length() == 0 {
		raw = append(raw, block.Text())
	} else {
		children.Each(func(_ int, child *goquery.Selection) {
			raw = append(raw, child.Text())
		})
	}

	var lines []string
	for _, chunk := range raw {
		for _, line := range strings.Split(chunk, "\n") {
			if line = strings.TrimSpace(line); line != "" {
				lines = append(lines, line)
			}
		}
	}
	return lines
}

// ParseLastUpdated splits a history entry such as "Last update date: 21/02/2024"
func ParseLastUpdated(text string) (string, string, error) {
	key, value, ok := strings.Cut(strings.TrimSpace(text), ": ")
	if !ok {
		return "", "", errs.Extraction("parse last updated", "unexpected history entry %q", text)
	}
	return strings.TrimSpace(key), strings.TrimSpace(value), nil
}
