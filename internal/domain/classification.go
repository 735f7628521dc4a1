package domain

// GeneralCategoryUnclassified is the sentinel used whenever classification
// fails or returns a value outside the closed category set.
const GeneralCategoryUnclassified = "Sin Clasificación"

// GeneralCategories is the closed set of dashboard categories. Anything the
// classifier returns outside this list collapses to the sentinel.
var GeneralCategories = []string{
	"Tecnología e Infraestructura IT",
	"Servicios Generales",
	"Infraestructura y Construcción",
	"Gastronomía y Eventos",
	"Concesiones y Predios",
	"Educación y Capacitación",
	"Marketing y Comercialización",
	"Salud y Bienestar",
	GeneralCategoryUnclassified,
}

// Classification is the derived category pair attached to a record's
// dashboard projection. It never influences channel routing.
type Classification struct {
	Category        string `json:"category"`
	GeneralCategory string `json:"general_category"`
}

// Normalize forces the general category into the closed set.
func (c Classification) Normalize() Classification {
	for _, known := range GeneralCategories {
		if c.GeneralCategory == known {
			return c
		}
	}
	c.GeneralCategory = GeneralCategoryUnclassified
	return c
}

// Unclassified returns the fallback classification.
func Unclassified() Classification {
	return Classification{
		Category:        "Sin clasificación",
		GeneralCategory: GeneralCategoryUnclassified,
	}
}

// Projection is the derived dashboard document for one record, created at
// most once and never updated afterwards.
type Projection struct {
	RecordID       string
	Source         Source
	Classification Classification
	ProcessNumber  string
	ProcessName    string
}
