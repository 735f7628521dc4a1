// Package lister converts downloaded listing payloads into candidate
// process identifiers.
package lister

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"TenderScanner/internal/domain"
	"TenderScanner/internal/ports"
)

// Column headers accepted for the process-number field. Portal exports use
// the display header; already-normalized payloads use the snake_case one.
var processNumberHeaders = []string{
	"Número de proceso",
	"numero_proceso",
}

// CSVLister extracts candidate identifiers from CSV listing payloads in
// listing order. Each call reprocesses the payload deterministically.
type CSVLister struct{}

var _ ports.CandidateLister = (*CSVLister)(nil)

// NewCSVLister returns a stateless lister.
func NewCSVLister() *CSVLister {
	return &CSVLister{}
}

// List reads the payload and returns trimmed process identifiers, skipping
// blank cells. Duplicate identifiers within one listing are collapsed to
// their first occurrence.
func (l *CSVLister) List(source domain.Source, payload io.Reader) ([]string, error) {
	reader := csv.NewReader(payload)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("listing for %s is empty", source)
	}
	if err != nil {
		return nil, fmt.Errorf("read listing header: %w", err)
	}

	col := findProcessColumn(header)
	if col < 0 {
		return nil, fmt.Errorf("listing for %s has no process-number column", source)
	}

	var (
		ids  []string
		seen = map[string]struct{}{}
	)
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read listing row: %w", err)
		}
		if col >= len(row) {
			continue
		}

		id := strings.TrimSpace(row[col])
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}

	return ids, nil
}

func findProcessColumn(header []string) int {
	for i, cell := range header {
		cell = strings.TrimSpace(strings.TrimPrefix(cell, "\uFEFF"))
		for _, want := range processNumberHeaders {
			if strings.EqualFold(cell, want) {
				return i
			}
		}
	}
	return -1
}
