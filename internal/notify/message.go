package notify

import (
	"fmt"
	"strings"

	"TenderScanner/internal/domain"
)

// maxMessageLen is the Telegram plain-message limit.
const maxMessageLen = 4096

// RenderMessage builds the Markdown notification for one record. Supplies
// channels get the high-visibility alert variant.
func RenderMessage(rec domain.Record, kind Kind) string {
	if kind == KindSupplies {
		return renderAlert(rec)
	}
	return renderStandard(rec)
}

func renderStandard(rec domain.Record) string {
	info := rec.SectionMap(domain.SectionBasicInfo)
	amount := rec.SectionMap(domain.SectionAmount)
	schedule := rec.SectionMap(domain.SectionSchedule)

	var b strings.Builder
	b.WriteString("*Nuevo Proceso Agregado*\n\n")

	fmt.Fprintf(&b, "*N° de proceso:* `%s`\n", fieldOr(info, "numero_proceso"))
	fmt.Fprintf(&b, "*Nombre de proceso:* %s\n", fieldOr(info, "nombre_proceso"))
	fmt.Fprintf(&b, "*Objeto del proceso:* %s\n", fieldOr(info, "objeto_contratacion"))
	fmt.Fprintf(&b, "*Procedimiento:* %s\n", fieldOr(info, "procedimiento_seleccion"))
	fmt.Fprintf(&b, "*Modalidad:* %s\n\n", fieldOr(info, "modalidad"))

	fmt.Fprintf(&b, "*Monto:* %s\n", fieldOr(amount, "monto"))
	fmt.Fprintf(&b, "*Duración:* %s\n\n", fieldOr(amount, "duracion_contrato"))

	fmt.Fprintf(&b, "*Publicación:* %s\n", fieldOr(schedule, "fecha_publicacion"))
	fmt.Fprintf(&b, "*Inicio Consultas:* %s\n", fieldOr(schedule, "fecha_inicio_consultas"))
	fmt.Fprintf(&b, "*Fin Consultas:* %s\n", fieldOr(schedule, "fecha_final_consultas"))
	fmt.Fprintf(&b, "*Apertura:* %s\n", fieldOr(schedule, "fecha_acto_apertura"))

	return truncate(b.String())
}

func renderAlert(rec domain.Record) string {
	info := rec.SectionMap(domain.SectionBasicInfo)
	amount := rec.SectionMap(domain.SectionAmount)
	schedule := rec.SectionMap(domain.SectionSchedule)

	var b strings.Builder
	b.WriteString("🚨🚨 *¡ALERTA INSUMOS ESPECÍFICOS!* 🚨🚨\n")
	b.WriteString("🏥💊 *PROCESO DE SALUD PRIORITARIO* 💊🏥\n\n")

	fmt.Fprintf(&b, "🔢 *N° de proceso:* `%s`\n", fieldOr(info, "numero_proceso"))
	fmt.Fprintf(&b, "📋 *Nombre de proceso:* %s\n", fieldOr(info, "nombre_proceso"))
	fmt.Fprintf(&b, "🎯 *Objeto del proceso:* %s\n", fieldOr(info, "objeto_contratacion"))
	fmt.Fprintf(&b, "⚙️ *Procedimiento:* %s\n", fieldOr(info, "procedimiento_seleccion"))
	fmt.Fprintf(&b, "📊 *Modalidad:* %s\n\n", fieldOr(info, "modalidad"))

	fmt.Fprintf(&b, "💰 *Monto:* %s\n", fieldOr(amount, "monto"))
	fmt.Fprintf(&b, "⏱️ *Duración:* %s\n\n", fieldOr(amount, "duracion_contrato"))

	b.WriteString("📅 *FECHAS IMPORTANTES:*\n")
	fmt.Fprintf(&b, "📢 *Publicación:* %s\n", fieldOr(schedule, "fecha_publicacion"))
	fmt.Fprintf(&b, "❓ *Inicio Consultas:* %s\n", fieldOr(schedule, "fecha_inicio_consultas"))
	fmt.Fprintf(&b, "⏰ *Fin Consultas:* %s\n", fieldOr(schedule, "fecha_final_consultas"))
	fmt.Fprintf(&b, "🔓 *Apertura:* %s\n\n", fieldOr(schedule, "fecha_acto_apertura"))

	b.WriteString("⚡ *¡ATENCIÓN ESPECIAL REQUERIDA!* ⚡\n")
	b.WriteString("🎯 Este proceso incluye insumos específicos de salud")

	return truncate(b.String())
}

func fieldOr(m map[string]string, key string) string {
	if v := strings.TrimSpace(m[key]); v != "" {
		return v
	}
	return "N/A"
}

func truncate(msg string) string {
	runes := []rune(msg)
	if len(runes) <= maxMessageLen {
		return msg
	}
	return string(runes[:maxMessageLen-3]) + "..."
}
