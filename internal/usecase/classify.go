package usecase

import (
	"context"
	"fmt"

	"TenderScanner/internal/domain"
)

// projectAll creates the dashboard projection for every stored record that
// does not have one yet. Health-department records never reach the
// dashboard. A record is classified once; when classification fails it is
// projected with the unclassified sentinel rather than retried forever.
func (p *Pipeline) projectAll(ctx context.Context) (int, error) {
	if p.classifier == nil {
		return 0, nil
	}

	projected := 0
	for _, src := range p.sources {
		source := domain.Source(src.Name)
		pending, err := p.records.Unprojected(ctx, source)
		if err != nil {
			return projected, fmt.Errorf("list unprojected for %s: %w", source, err)
		}

		for _, rec := range pending {
			if isHealthRecord(rec) {
				continue
			}

			classification, err := p.classifier.Classify(ctx, classificationExcerpt(rec))
			if err != nil {
				p.logger.Warn("classification failed, using sentinel",
					"source", source, "record", rec.ID, "error", err)
				classification = domain.Unclassified()
			}

			info := rec.SectionMap(domain.SectionBasicInfo)
			projection := domain.Projection{
				RecordID:       rec.ID,
				Source:         source,
				Classification: classification,
				ProcessNumber:  info["numero_proceso"],
				ProcessName:    info["nombre_proceso"],
			}
			if projection.ProcessNumber == "" {
				projection.ProcessNumber = rec.ID
			}
			if err := p.records.PutProjection(ctx, projection); err != nil {
				return projected, fmt.Errorf("store projection %s: %w", rec.ID, err)
			}
			projected++
		}
	}
	return projected, nil
}

func isHealthRecord(rec domain.Record) bool {
	if rec.DepartmentCode == nil {
		return false
	}
	code := *rec.DepartmentCode
	return code >= 400 && code <= 499
}

// classificationExcerpt assembles the classifier input: the process name
// plus the raw line-item payload.
func classificationExcerpt(rec domain.Record) string {
	name := rec.SectionMap(domain.SectionBasicInfo)["nombre_proceso"]
	items := string(rec.Fields[domain.SectionItems])
	return fmt.Sprintf("Nombre del Proceso: %s\nDetalle de Productos: %s", name, items)
}
