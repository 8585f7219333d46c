package scraper

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/FranksOps/reliefscope/internal/table"
)

// CSVColumn is the single column written by CSV scrapes.
const CSVColumn = "Title"

// ExtractText returns the trimmed text of every element matching selector,
// in document order. Empty elements yield empty strings.
func ExtractText(body []byte, selector string) ([]string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	texts := []string{}
	doc.Find(selector).Each(func(i int, s *goquery.Selection) {
		texts = append(texts, strings.TrimSpace(s.Text()))
	})
	return texts, nil
}

// RenderCSV writes texts as a one-column CSV under CSVColumn.
func RenderCSV(texts []string) ([]byte, error) {
	t := table.MustNew(CSVColumn)
	for _, text := range texts {
		if err := t.Append(text); err != nil {
			return nil, err
		}
	}
	return t.CSV()
}

// RenderTXT writes one line per text, each terminated by a newline.
func RenderTXT(texts []string) []byte {
	var b bytes.Buffer
	for _, text := range texts {
		b.WriteString(text)
		b.WriteByte('\n')
	}
	return b.Bytes()
}
