package extractor

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"TenderScanner/internal/domain"
)

// parseItems reads the products/services grid from the table's HTML. Each
// row carries five cells: line number, expense object, item code,
// description and quantity.
func parseItems(html string) ([]domain.Item, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse items table: %w", err)
	}

	var items []domain.Item
	doc.Find("tbody tr").Each(func(_ int, row *goquery.Selection) {
		cells := row.Find("td")
		if cells.Length() == 0 {
			return
		}
		items = append(items, domain.Item{
			LineNumber:  cellText(cells, 0),
			ExpenseCode: cellText(cells, 1),
			ItemCode:    cellText(cells, 2),
			Description: cellText(cells, 3),
			Quantity:    cellText(cells, 4),
		})
	})
	return items, nil
}

func cellText(cells *goquery.Selection, i int) string {
	return strings.TrimSpace(cells.Eq(i).Text())
}

// parseRequirements reads the grouped participation requirements from the
// list-group HTML. Every group carries a heading and a table of numbered
// requirement rows.
func parseRequirements(html string) ([]domain.RequirementGroup, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse requirements: %w", err)
	}

	var groups []domain.RequirementGroup
	doc.Find(".list-group-item").Each(func(_ int, section *goquery.Selection) {
		group := domain.RequirementGroup{
			Heading: spanText(section, "h5 span", "Encabezado desconocido"),
		}
		section.Find("tbody tr").Each(func(_ int, row *goquery.Selection) {
			group.Requirements = append(group.Requirements, domain.Requirement{
				Number:       spanText(row, "span[id*='Label']", "N/A"),
				Description:  spanText(row, "span[id*='Label1']", "No disponible"),
				DocumentType: spanText(row, "span[id*='TipoDocumento']", "No especificado"),
			})
		})
		groups = append(groups, group)
	})
	return groups, nil
}

func spanText(s *goquery.Selection, selector, fallback string) string {
	found := s.Find(selector).First()
	if found.Length() == 0 {
		return fallback
	}
	return strings.TrimSpace(found.Text())
}
