package scraper

import (
	"fmt"
	"io"
	"strings"

	"github.com/antchfx/htmlquery"
	"github.com/fiffu/timetablewatch/lib/models"
	"golang.org/x/net/html"
)

const DefaultTableID = "tablepress-99"

// Column order of the timetable: province, city, code, line name, timetable url.
var DefaultHeaders = []string{"provincia", "comune", "codice", "linea", "url"}

const (
	colCity = 1
	colCode = 2
	colName = 3
	colURL  = 4
)

type Parser struct {
	tableID string
	headers []string
}

func NewParser(tableID string) *Parser {
	if tableID == "" {
		tableID = DefaultTableID
	}
	return &Parser{tableID, DefaultHeaders}
}

// Parse extracts one Line per distinct code, in order of first appearance.
// Rows repeating a code add their city to the line created by the first row.
func (p *Parser) Parse(r io.Reader) (models.Lines, error) {
	doc, err := htmlquery.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parsing timetable page: %w", err)
	}

	table := htmlquery.FindOne(doc, fmt.Sprintf("//table[@id='%s']", p.tableID))
	if table == nil {
		return nil, &SchemaError{Reason: fmt.Sprintf("table #%s not found", p.tableID)}
	}
	if err := p.verifyHeaders(table); err != nil {
		return nil, err
	}

	lines := make(models.Lines, 0)
	seen := make(map[string]int)

	for i, row := range htmlquery.Find(table, "./tbody/tr") {
		cells := htmlquery.Find(row, "./td")
		if len(cells) < len(p.headers) {
			return nil, &SchemaError{Reason: fmt.Sprintf("row %d has %d cells, want %d", i+1, len(cells), len(p.headers))}
		}

		code := digForText(cells[colCode])
		if code == "" {
			continue
		}

		idx, ok := seen[code]
		if !ok {
			lines = append(lines, models.Line{
				Code: code,
				Name: digForText(cells[colName]),
				URL:  selectHref(cells[colURL]),
			})
			idx = len(lines) - 1
			seen[code] = idx
		}
		lines[idx].Cities = append(lines[idx].Cities, digForText(cells[colCity]))
	}

	return lines, nil
}

func (p *Parser) verifyHeaders(table *html.Node) error {
	ths := htmlquery.Find(table, "./thead/tr/th")
	if len(ths) != len(p.headers) {
		return &SchemaError{Reason: fmt.Sprintf("found %d header columns, want %d", len(ths), len(p.headers))}
	}

	for i, th := range ths {
		got := strings.ToLower(digForText(th))
		if got != p.headers[i] {
			return &SchemaError{Reason: fmt.Sprintf("header column %d is %q, want %q", i+1, got, p.headers[i])}
		}
	}
	return nil
}
