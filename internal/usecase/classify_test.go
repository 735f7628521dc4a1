package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"TenderScanner/internal/domain"
)

func TestProjectAllFallsBackToSentinel(t *testing.T) {
	fx := newFixture(t, cabaOnly(), map[domain.Source][]string{
		domain.SourceCABA: {"100-1-LPU24"},
	})
	fx.pipeline.classifier = &staticClassifier{err: errors.New("model unavailable")}

	summary, err := fx.pipeline.Run(context.Background(), time.Now())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if summary.Projected != 1 {
		t.Fatalf("projected = %d, want 1", summary.Projected)
	}

	p := fx.store.projections["caba|100-1-LPU24"]
	if p.Classification.GeneralCategory != domain.GeneralCategoryUnclassified {
		t.Errorf("general category = %q, want sentinel", p.Classification.GeneralCategory)
	}
}

func TestProjectAllClassifiesOnlyOnce(t *testing.T) {
	fx := newFixture(t, cabaOnly(), map[domain.Source][]string{
		domain.SourceCABA: {"100-1-LPU24"},
	})
	classifier := &staticClassifier{classification: domain.Classification{
		Category:        "Insumos de oficina",
		GeneralCategory: "Servicios Generales",
	}}
	fx.pipeline.classifier = classifier

	if _, err := fx.pipeline.Run(context.Background(), time.Now()); err != nil {
		t.Fatalf("first run failed: %v", err)
	}
	if _, err := fx.pipeline.Run(context.Background(), time.Now()); err != nil {
		t.Fatalf("second run failed: %v", err)
	}
	if classifier.calls != 1 {
		t.Errorf("classifier calls = %d, want 1", classifier.calls)
	}
}

func TestProjectAllHealthRecordsStayOffDashboard(t *testing.T) {
	fx := newFixture(t, cabaOnly(), map[domain.Source][]string{
		domain.SourceCABA: {"401-7-LPU24"},
	})
	classifier := &staticClassifier{classification: domain.Classification{
		Category:        "Insumos médicos",
		GeneralCategory: "Salud y Bienestar",
	}}
	fx.pipeline.classifier = classifier

	summary, err := fx.pipeline.Run(context.Background(), time.Now())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if summary.Projected != 0 {
		t.Errorf("projected = %d, want 0 for health record", summary.Projected)
	}
	if classifier.calls != 0 {
		t.Errorf("classifier calls = %d, want 0", classifier.calls)
	}
}

func TestProjectionFallsBackToRecordID(t *testing.T) {
	fx := newFixture(t, cabaOnly(), nil)
	rec := domain.Record{
		ID: "100-9-LPU24", Source: domain.SourceCABA,
		Fields:    map[domain.Section]json.RawMessage{},
		CreatedAt: time.Now().UTC(), Status: domain.StatusPartial,
	}
	if err := fx.store.Put(context.Background(), rec); err != nil {
		t.Fatal(err)
	}

	if _, err := fx.pipeline.projectAll(context.Background()); err != nil {
		t.Fatalf("projectAll failed: %v", err)
	}
	p := fx.store.projections["caba|100-9-LPU24"]
	if p.ProcessNumber != "100-9-LPU24" {
		t.Errorf("process number = %q, want record id fallback", p.ProcessNumber)
	}
}

func TestClassificationExcerpt(t *testing.T) {
	rec := domain.Record{
		Fields: map[domain.Section]json.RawMessage{
			domain.SectionBasicInfo: json.RawMessage(`{"nombre_proceso":"Compra de notebooks"}`),
			domain.SectionItems:     json.RawMessage(`[{"codigo_item":"43.21.001.1"}]`),
		},
	}
	excerpt := classificationExcerpt(rec)
	if !strings.Contains(excerpt, "Compra de notebooks") {
		t.Errorf("excerpt missing process name: %q", excerpt)
	}
	if !strings.Contains(excerpt, "43.21.001.1") {
		t.Errorf("excerpt missing item payload: %q", excerpt)
	}
}
