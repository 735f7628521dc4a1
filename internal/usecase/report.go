package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"TenderScanner/internal/ports"
)

// Reporter sends the run summary to the operations chat.
type Reporter struct {
	notifier ports.Notifier
	chatID   int64
}

func NewReporter(notifier ports.Notifier, chatID int64) *Reporter {
	return &Reporter{notifier: notifier, chatID: chatID}
}

// Send delivers the formatted summary. A nil notifier or zero chat id
// disables reporting.
func (r *Reporter) Send(ctx context.Context, summary RunSummary) error {
	if r == nil || r.notifier == nil || r.chatID == 0 {
		return nil
	}
	return r.notifier.Send(ctx, r.chatID, FormatSummary(summary))
}

// FormatSummary renders the run summary as a Markdown status message.
func FormatSummary(summary RunSummary) string {
	var b strings.Builder

	b.WriteString("🧩 *Resumen de ejecución del pipeline*\n")
	fmt.Fprintf(&b, "🕐 Inicio: %s\n", summary.StartedAt.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(&b, "⏱️ Duración: %s\n\n", summary.Duration.Round(time.Second))

	for _, src := range summary.Sources {
		if src.Err != nil {
			fmt.Fprintf(&b, "❌ *%s*: %v\n", src.Source, src.Err)
			continue
		}
		fmt.Fprintf(&b, "✅ *%s*: %d candidatos, %d nuevos guardados (%d parciales), %d omitidos, %d fallidos\n",
			src.Source, src.Candidates, src.Persisted, src.Partial, src.Skipped, src.Failed)
	}

	fmt.Fprintf(&b, "\n📊 Proyecciones creadas: %d\n", summary.Projected)

	if len(summary.Channels) > 0 {
		b.WriteString("\n📨 *Notificaciones:*\n")
		for _, ch := range summary.Channels {
			fmt.Fprintf(&b, "• %s: %d enviadas de %d ruteadas (%d fallidas)\n",
				ch.Channel, ch.Dispatched, ch.Routed, ch.Failed)
		}
	}

	if summary.Err != nil {
		fmt.Fprintf(&b, "\n🚨 *Ejecución abortada:* %v\n", summary.Err)
	}

	return b.String()
}
