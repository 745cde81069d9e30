package adapter

import (
	"bytes"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/tejusbharadwaj/gridfeed/internal/models"
)

// ParseHTML parses an upstream HTML page.
func ParseHTML(body []byte) (*goquery.Document, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, models.Malformed("html: %v", err)
	}
	return doc, nil
}

// HTMLTables returns every table matched by selector, using its first row as
// the header. Cell text is whitespace-collapsed.
func HTMLTables(doc *goquery.Document, selector string) []*Table {
	var tables []*Table
	doc.Find(selector).Each(func(_ int, table *goquery.Selection) {
		var rows [][]string
		table.Find("tr").Each(func(_ int, tr *goquery.Selection) {
			var cells []string
			tr.ChildrenFiltered("th, td").Each(func(_ int, c *goquery.Selection) {
				cells = append(cells, strings.Join(strings.Fields(c.Text()), " "))
			})
			if len(cells) > 0 {
				rows = append(rows, cells)
			}
		})
		if len(rows) > 0 {
			tables = append(tables, NewTable(rows[0], rows[1:]))
		}
	})
	return tables
}
