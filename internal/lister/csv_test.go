package lister

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"TenderScanner/internal/domain"
)

func TestListPreservesOrderAndSkipsBlanks(t *testing.T) {
	t.Parallel()

	payload := "Número de proceso,Nombre\n" +
		"401-0099-LPU24,Insumos\n" +
		",Sin numero\n" +
		"120-0001-CDI24,Obras\n" +
		"401-0099-LPU24,Duplicado\n"

	ids, err := NewCSVLister().List(domain.SourceCABA, strings.NewReader(payload))
	if err != nil {
		t.Fatalf("List returned error: %v", err)
	}

	want := []string{"401-0099-LPU24", "120-0001-CDI24"}
	if len(ids) != len(want) {
		t.Fatalf("expected %d ids, got %d: %v", len(want), len(ids), ids)
	}
	for i := range want {
		if ids[i] != want[i] {
			t.Fatalf("position %d: expected %s, got %s", i, want[i], ids[i])
		}
	}
}

func TestListAcceptsNormalizedHeader(t *testing.T) {
	t.Parallel()

	payload := "numero_proceso\n2024-001\n2024-002\n"
	ids, err := NewCSVLister().List(domain.SourceNacion, strings.NewReader(payload))
	if err != nil {
		t.Fatalf("List returned error: %v", err)
	}
	if len(ids) != 2 || ids[0] != "2024-001" || ids[1] != "2024-002" {
		t.Fatalf("unexpected ids: %v", ids)
	}
}

func TestListIsRestartable(t *testing.T) {
	t.Parallel()

	payload := "numero_proceso\nA-1\nB-2\n"
	l := NewCSVLister()

	first, err := l.List(domain.SourcePBA, strings.NewReader(payload))
	if err != nil {
		t.Fatalf("first List: %v", err)
	}
	second, err := l.List(domain.SourcePBA, strings.NewReader(payload))
	if err != nil {
		t.Fatalf("second List: %v", err)
	}
	if len(first) != len(second) {
		t.Fatalf("non-deterministic listing: %v vs %v", first, second)
	}
}

func TestListRejectsMissingColumn(t *testing.T) {
	t.Parallel()

	_, err := NewCSVLister().List(domain.SourceCABA, strings.NewReader("foo,bar\n1,2\n"))
	if err == nil {
		t.Fatal("expected error for missing process-number column")
	}
}

func TestDirProviderPicksNewestCSV(t *testing.T) {
	t.Parallel()

	base := t.TempDir()
	dir := filepath.Join(base, "caba")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	older := filepath.Join(dir, "listado_2024-01-01.csv")
	newer := filepath.Join(dir, "listado_2024-01-02.csv")
	if err := os.WriteFile(older, []byte("numero_proceso\nOLD-1\n"), 0o644); err != nil {
		t.Fatalf("write older: %v", err)
	}
	if err := os.WriteFile(newer, []byte("numero_proceso\nNEW-1\n"), 0o644); err != nil {
		t.Fatalf("write newer: %v", err)
	}
	past := time.Now().Add(-time.Hour)
	if err := os.Chtimes(older, past, past); err != nil {
		t.Fatalf("chtimes: %v", err)
	}

	rc, err := NewDirProvider(base).Fetch(context.Background(), domain.SourceCABA)
	if err != nil {
		t.Fatalf("Fetch returned error: %v", err)
	}
	defer rc.Close()

	ids, err := NewCSVLister().List(domain.SourceCABA, rc)
	if err != nil {
		t.Fatalf("List returned error: %v", err)
	}
	if len(ids) != 1 || ids[0] != "NEW-1" {
		t.Fatalf("expected newest listing, got %v", ids)
	}
}

func TestDirProviderErrorsWhenEmpty(t *testing.T) {
	t.Parallel()

	base := t.TempDir()
	if err := os.MkdirAll(filepath.Join(base, "pba"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	if _, err := NewDirProvider(base).Fetch(context.Background(), domain.SourcePBA); err == nil {
		t.Fatal("expected error for empty listings directory")
	}
}
