package notify

import (
	"encoding/json"
	"testing"
	"time"

	"TenderScanner/internal/config"
	"TenderScanner/internal/domain"
)

func record(id string, dept *int) domain.Record {
	return domain.Record{
		ID:             id,
		Source:         domain.SourceCABA,
		DepartmentCode: dept,
		Fields:         map[domain.Section]json.RawMessage{},
		Status:         domain.StatusComplete,
	}
}

func intPtr(v int) *int { return &v }

func withItems(rec domain.Record, codes ...string) domain.Record {
	items := make([]domain.Item, len(codes))
	for i, c := range codes {
		items[i] = domain.Item{ItemCode: c}
	}
	raw, _ := json.Marshal(items)
	rec.Fields[domain.SectionItems] = raw
	return rec
}

func withOpenDate(rec domain.Record, date string) domain.Record {
	raw, _ := json.Marshal(map[string]string{"fecha_acto_apertura": date})
	rec.Fields[domain.SectionSchedule] = raw
	return rec
}

func TestDefaultChannelExcludesHealth(t *testing.T) {
	ch := Channel{Name: "caba-general", Source: domain.SourceCABA, Kind: KindDefault}
	now := time.Now()

	if !ch.Wants(record("100-1-LPU24", intPtr(100)), now) {
		t.Error("non-health record should route to default channel")
	}
	if ch.Wants(record("450-1-LPU24", intPtr(450)), now) {
		t.Error("health record must not route to default channel")
	}
	if !ch.Wants(record("SINPREFIJO", nil), now) {
		t.Error("record without department code routes to default channel")
	}
}

func TestHealthChannelRange(t *testing.T) {
	ch := Channel{Name: "caba-salud", Source: domain.SourceCABA, Kind: KindHealth}
	now := time.Now()

	cases := []struct {
		dept *int
		want bool
	}{
		{intPtr(399), false},
		{intPtr(400), true},
		{intPtr(450), true},
		{intPtr(499), true},
		{intPtr(500), false},
		{nil, false},
	}
	for _, tc := range cases {
		got := ch.Wants(record("x-1", tc.dept), now)
		if got != tc.want {
			t.Errorf("dept %v: got %v, want %v", tc.dept, got, tc.want)
		}
	}
}

func TestSuppliesChannelNeedsHealthAndPrefix(t *testing.T) {
	ch := Channel{
		Name:             "caba-insumos",
		Source:           domain.SourceCABA,
		Kind:             KindSupplies,
		ItemCodePrefixes: []string{"33.11.001.", "35.01.001."},
	}
	now := time.Now()

	match := withItems(record("450-1-LPU24", intPtr(450)), "29.10.002.1", "33.11.001.0015")
	if !ch.Wants(match, now) {
		t.Error("health record with matching item code should route")
	}

	noMatch := withItems(record("450-2-LPU24", intPtr(450)), "29.10.002.1")
	if ch.Wants(noMatch, now) {
		t.Error("health record without matching item code must not route")
	}

	outsideHealth := withItems(record("100-1-LPU24", intPtr(100)), "33.11.001.0015")
	if ch.Wants(outsideHealth, now) {
		t.Error("matching item outside health range must not route")
	}

	noItems := record("450-3-LPU24", intPtr(450))
	if ch.Wants(noItems, now) {
		t.Error("health record without items must not route to supplies")
	}
}

func TestChannelIgnoresOtherSources(t *testing.T) {
	ch := Channel{Name: "nacion-general", Source: domain.SourceNacion, Kind: KindDefault}
	if ch.Wants(record("100-1-LPU24", intPtr(100)), time.Now()) {
		t.Error("caba record must not route to a nacion channel")
	}
}

func TestRequireOpenDate(t *testing.T) {
	ch := Channel{Name: "nacion-general", Source: domain.SourceNacion, Kind: KindDefault, RequireOpenDate: true}
	now := time.Date(2025, 4, 10, 12, 0, 0, 0, time.UTC)

	future := withOpenDate(record("100-1-LPU24", intPtr(100)), "15/04/2025 10:00 Hrs.")
	future.Source = domain.SourceNacion
	if !ch.Wants(future, now) {
		t.Error("future opening date should pass the filter")
	}

	past := withOpenDate(record("100-2-LPU24", intPtr(100)), "01/04/2025 10:00 Hrs.")
	past.Source = domain.SourceNacion
	if ch.Wants(past, now) {
		t.Error("past opening date must be dropped")
	}

	iso := withOpenDate(record("100-3-LPU24", intPtr(100)), "2025-04-20T10:00:00Z")
	iso.Source = domain.SourceNacion
	if !ch.Wants(iso, now) {
		t.Error("ISO opening date should be recognized")
	}

	missing := record("100-4-LPU24", intPtr(100))
	missing.Source = domain.SourceNacion
	if ch.Wants(missing, now) {
		t.Error("record without opening date must be dropped")
	}

	garbled := withOpenDate(record("100-5-LPU24", intPtr(100)), "proximamente")
	garbled.Source = domain.SourceNacion
	if ch.Wants(garbled, now) {
		t.Error("unparseable opening date must be dropped")
	}
}

func TestChannelFromConfigUnknownKind(t *testing.T) {
	ch := ChannelFromConfig(config.ChannelConfig{Name: "x", Source: "caba", Kind: "mystery"})
	if ch.Kind != KindDefault {
		t.Errorf("kind = %s, want default fallback", ch.Kind)
	}
}
