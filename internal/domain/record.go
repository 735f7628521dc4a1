package domain

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"
)

// Source identifies one procurement portal.
type Source string

const (
	SourceCABA   Source = "caba"
	SourcePBA    Source = "pba"
	SourceNacion Source = "nacion"
)

// Section names one block of fields scraped from a process detail page.
type Section string

const (
	SectionBasicInfo    Section = "basic_info"
	SectionSchedule     Section = "schedule"
	SectionAmount       Section = "amount"
	SectionItems        Section = "items"
	SectionRequirements Section = "requirements"
)

// Status marks whether every section of a record was extracted.
type Status string

const (
	StatusComplete Status = "complete"
	StatusPartial  Status = "partial"
)

// Record is one tender/procurement process with its extracted sections.
// A (Source, ID) pair is stored at most once.
type Record struct {
	ID             string
	Source         Source
	DepartmentCode *int
	Fields         map[Section]json.RawMessage
	CreatedAt      time.Time
	Status         Status
}

// DepartmentCodeFromID derives the numeric department prefix from a process
// number such as "401-0123-LPU24". Returns nil when the prefix is absent or
// not numeric.
func DepartmentCodeFromID(id string) *int {
	prefix, _, ok := strings.Cut(id, "-")
	if !ok {
		return nil
	}
	code, err := strconv.Atoi(strings.TrimSpace(prefix))
	if err != nil {
		return nil
	}
	return &code
}

// SectionMap returns the decoded payload of one section as a generic map,
// or an empty map when the section is absent or malformed.
func (r Record) SectionMap(name Section) map[string]string {
	raw, ok := r.Fields[name]
	if !ok || len(raw) == 0 {
		return map[string]string{}
	}
	var m map[string]string
	if err := json.Unmarshal(raw, &m); err != nil {
		return map[string]string{}
	}
	return m
}

// Items decodes the line-item section. Malformed payloads yield nil.
func (r Record) Items() []Item {
	raw, ok := r.Fields[SectionItems]
	if !ok || len(raw) == 0 {
		return nil
	}
	var items []Item
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil
	}
	return items
}

// Item is one line of the products/services table of a process.
type Item struct {
	LineNumber  string `json:"numero_renglon"`
	ExpenseCode string `json:"objeto_gasto"`
	ItemCode    string `json:"codigo_item"`
	Description string `json:"descripcion"`
	Quantity    string `json:"cantidad"`
}

// RequirementGroup is one heading with its participation requirements.
type RequirementGroup struct {
	Heading      string        `json:"encabezado"`
	Requirements []Requirement `json:"requisitos"`
}

// Requirement is a single minimum participation requirement row.
type Requirement struct {
	Number       string `json:"numero"`
	Description  string `json:"descripcion"`
	DocumentType string `json:"tipo_documento"`
}
