package notify

import (
	"encoding/json"
	"strings"
	"testing"
	"unicode/utf8"

	"TenderScanner/internal/domain"
)

func fullRecord() domain.Record {
	rec := record("401-0123-LPU24", intPtr(401))
	info, _ := json.Marshal(map[string]string{
		"numero_proceso":          "401-0123-LPU24",
		"nombre_proceso":          "Adquisición de insumos",
		"objeto_contratacion":     "Insumos hospitalarios",
		"procedimiento_seleccion": "Licitación Pública",
		"modalidad":               "Sin Modalidad",
	})
	amount, _ := json.Marshal(map[string]string{
		"monto":             "$ 1.500.000,00",
		"duracion_contrato": "6 Meses",
	})
	schedule, _ := json.Marshal(map[string]string{
		"fecha_publicacion":      "10/04/2025",
		"fecha_inicio_consultas": "11/04/2025 10:00 Hrs.",
		"fecha_final_consultas":  "15/04/2025 10:00 Hrs.",
		"fecha_acto_apertura":    "20/04/2025 12:00 Hrs.",
	})
	rec.Fields[domain.SectionBasicInfo] = info
	rec.Fields[domain.SectionAmount] = amount
	rec.Fields[domain.SectionSchedule] = schedule
	return rec
}

func TestRenderStandardMessage(t *testing.T) {
	msg := RenderMessage(fullRecord(), KindDefault)

	if !strings.HasPrefix(msg, "*Nuevo Proceso Agregado*") {
		t.Errorf("unexpected header: %q", msg[:40])
	}
	for _, want := range []string{
		"*N° de proceso:* `401-0123-LPU24`",
		"*Nombre de proceso:* Adquisición de insumos",
		"*Monto:* $ 1.500.000,00",
		"*Apertura:* 20/04/2025 12:00 Hrs.",
	} {
		if !strings.Contains(msg, want) {
			t.Errorf("message missing %q", want)
		}
	}
}

func TestRenderMissingFieldsBecomeNA(t *testing.T) {
	msg := RenderMessage(record("401-1-LPU24", intPtr(401)), KindDefault)

	if !strings.Contains(msg, "*Monto:* N/A") {
		t.Error("missing amount should render as N/A")
	}
	if !strings.Contains(msg, "*N° de proceso:* `N/A`") {
		t.Error("missing process number should render as N/A")
	}
}

func TestRenderSuppliesAlert(t *testing.T) {
	msg := RenderMessage(fullRecord(), KindSupplies)

	if !strings.Contains(msg, "¡ALERTA INSUMOS ESPECÍFICOS!") {
		t.Error("supplies channel should get the alert variant")
	}
	if !strings.Contains(msg, "insumos específicos de salud") {
		t.Error("alert footer missing")
	}
}

func TestRenderTruncatesLongMessages(t *testing.T) {
	rec := fullRecord()
	info, _ := json.Marshal(map[string]string{
		"numero_proceso": "401-0123-LPU24",
		"nombre_proceso": strings.Repeat("ñ", 6000),
	})
	rec.Fields[domain.SectionBasicInfo] = info

	msg := RenderMessage(rec, KindDefault)
	if got := utf8.RuneCountInString(msg); got > maxMessageLen {
		t.Errorf("message length = %d runes, want <= %d", got, maxMessageLen)
	}
	if !strings.HasSuffix(msg, "...") {
		t.Error("truncated message should end with ellipsis marker")
	}
}
