// Package extractor drives a page session through the fixed per-record
// scraping state machine and assembles tender records from it.
package extractor

import (
	"time"

	"TenderScanner/internal/domain"
)

// SectionKind selects how a section's payload is read from the page.
type SectionKind int

const (
	// SectionScalar reads a fixed set of labeled fields one by one.
	SectionScalar SectionKind = iota
	// SectionItems parses the products/services table.
	SectionItems
	// SectionRequirements parses the grouped participation requirements.
	SectionRequirements
)

// SectionSpec describes one scrape step of the detail page.
type SectionSpec struct {
	Name      domain.Section
	Kind      SectionKind
	Container string
	// Fields maps payload keys to selectors for scalar sections.
	Fields map[string]string
}

// Profile carries everything source-specific the state machine needs:
// the portal entry point, the search form selectors, and the section map.
type Profile struct {
	Source domain.Source
	URL    string
	// EntryLink, when set, is clicked once after the initial navigation
	// to reach the process search form.
	EntryLink string

	SearchInput    string
	SearchButton   string
	ResultLink     string
	DetailMarker   string
	LoadingOverlay string
	BackLink       string

	Sections []SectionSpec

	SearchTimeout  time.Duration
	DetailTimeout  time.Duration
	SectionTimeout time.Duration
	NavTimeout     time.Duration
}

func (p Profile) withDefaults() Profile {
	if p.SearchTimeout == 0 {
		p.SearchTimeout = 5 * time.Second
	}
	if p.DetailTimeout == 0 {
		p.DetailTimeout = 10 * time.Second
	}
	if p.SectionTimeout == 0 {
		p.SectionTimeout = 7 * time.Second
	}
	if p.NavTimeout == 0 {
		p.NavTimeout = 15 * time.Second
	}
	return p
}

// ProfileFor returns the built-in profile of a source. PBA runs the same
// platform as CABA and shares its selector set.
func ProfileFor(source domain.Source, url string) (Profile, bool) {
	switch source {
	case domain.SourceCABA, domain.SourcePBA:
		p := bacProfile
		p.Source = source
		p.URL = url
		return p, true
	case domain.SourceNacion:
		p := comprarProfile
		p.URL = url
		return p, true
	default:
		return Profile{}, false
	}
}

const (
	bacPrefix     = "#ctl00_CPH1_UCVistaPreviaPliego_"
	bacBasicInfo  = bacPrefix + "UC_InformacionBasica_"
	bacSchedule   = bacPrefix + "UC_Cronograma_"
	bacAmount     = bacPrefix + "UC_MontoDuracion_"
	bacItemsTable = bacPrefix + "UC_DetalleProductos_gvLineaPliego"
)

var bacProfile = Profile{
	EntryLink:      "#aspnetForm section div div a.btn-procesos",
	SearchInput:    "#ctl00_CPH1_txtNumeroProceso",
	SearchButton:   "#ctl00_CPH1_btnListarPliegoNumero",
	ResultLink:     "#ctl00_CPH1_GridListaPliegos_ctl02_lnkNumeroProceso",
	DetailMarker:   bacBasicInfo + "lblNumeroProceso",
	LoadingOverlay: "#ctl00_CPH1_updPgsAjaxPanelProgreso",
	BackLink:       "#ctl00_CPH1_lnkVolver",
	Sections: []SectionSpec{
		{
			Name:      domain.SectionBasicInfo,
			Kind:      SectionScalar,
			Container: bacBasicInfo + "lblNumeroProceso",
			Fields: map[string]string{
				"numero_proceso":          bacBasicInfo + "lblNumeroProceso",
				"nombre_proceso":          bacBasicInfo + "lblNombreProceso",
				"objeto_contratacion":     bacBasicInfo + "lblObjetoContratacion",
				"procedimiento_seleccion": bacBasicInfo + "lblProcedimientoSeleccion",
				"etapa":                   bacBasicInfo + "lblEtapa",
				"modalidad":               bacBasicInfo + "lblModalidad",
				"alcance":                 bacBasicInfo + "lblAlcance",
				"moneda":                  bacBasicInfo + "rptMonedasPliego_ctl00_lblMonedaPliego",
				"tipo_cotizacion":         bacBasicInfo + "lblTipoCotizacionCantidad",
				"tipo_adjudicacion":       bacBasicInfo + "lblTipoAdjudicacionCantidad",
				"cantidad_ofertas":        bacBasicInfo + "lblCantidadOferta",
				"lugar_recepcion":         bacBasicInfo + "lblLugarRecepcionFisica",
				"plazo_mantenimiento":     bacBasicInfo + "lblPlazoMantenimientoOferta",
				"telefono_contacto":       bacBasicInfo + "lblTelefonoContactoUOA",
				"encuadre_legal":          bacBasicInfo + "lblEncuadreLegal",
				"acepta_redeterminacion":  bacBasicInfo + "lblAceptaRedeterminacion",
				"requiere_pago":           bacBasicInfo + "lblRequierePago",
				"inciso":                  bacBasicInfo + "lblInciso",
				"acepta_prorroga":         bacBasicInfo + "lblAceptaProrroga",
				"valor_unidad_compra":     bacBasicInfo + "lblUnidadCompra",
			},
		},
		{
			Name:      domain.SectionSchedule,
			Kind:      SectionScalar,
			Container: bacSchedule + "lblFechaPublicacion",
			Fields: map[string]string{
				"fecha_publicacion":                 bacSchedule + "lblFechaPublicacion",
				"fecha_inicio_consultas":            bacSchedule + "lblFechaInicioConsultas",
				"fecha_final_consultas":             bacSchedule + "lblFechaFinalConsultas",
				"fecha_inicio_recepcion_documentos": bacSchedule + "lblFechaInicioRecepcionDocumentos",
				"fecha_fin_recepcion_documentos":    bacSchedule + "lblFechaFinRecepcionDocumentos",
				"fecha_acto_apertura":               bacSchedule + "lblFechaActoApertura",
			},
		},
		{
			Name:      domain.SectionAmount,
			Kind:      SectionScalar,
			Container: bacAmount + "lblMontoDuracionMonto",
			Fields: map[string]string{
				"monto":                  bacAmount + "lblMontoDuracionMonto",
				"moneda":                 bacAmount + "lblMontoDuracionMoneda",
				"periodicidad_recepcion": bacAmount + "lblPeriodicidadRecepcion",
				"fecha_inicio_contrato":  bacAmount + "lblMontoDuracionFechaInicioContrato",
				"duracion_contrato":      bacAmount + "lblMontoDuracionDuracionContrato",
			},
		},
		{
			Name:      domain.SectionItems,
			Kind:      SectionItems,
			Container: bacItemsTable,
		},
		{
			Name:      domain.SectionRequirements,
			Kind:      SectionRequirements,
			Container: "div.list-group",
		},
	},
}

const (
	comprarHeader    = "#ctl00_CPH1_UCVistaPreviaPliego_usrCabeceraPliego_"
	comprarBasicInfo = bacBasicInfo
)

var comprarProfile = Profile{
	Source:         domain.SourceNacion,
	SearchInput:    "#ctl00_CPH1_txtNumeroProceso",
	SearchButton:   "#ctl00_CPH1_btnListarPliegoNumero",
	ResultLink:     "#ctl00_CPH1_GridListaPliegos_ctl02_lnkNumeroProceso",
	DetailMarker:   comprarHeader + "lblNumPliego",
	LoadingOverlay: "#ctl00_CPH1_updPgsAjaxPanelProgreso",
	BackLink:       "#ctl00_CPH1_lnkVolver",
	Sections: []SectionSpec{
		{
			Name:      domain.SectionBasicInfo,
			Kind:      SectionScalar,
			Container: comprarHeader + "lblNumPliego",
			Fields: map[string]string{
				"numero_proceso_cabecera":   comprarHeader + "lblNumPliego",
				"numero_expediente":         comprarHeader + "lblNumExpediente",
				"nombre_proceso_cabecera":   comprarHeader + "lblNomPliego",
				"unidad_operativa":          comprarHeader + "lblUnidadOperativa",
				"numero_proceso":            comprarBasicInfo + "lblNumeroProceso",
				"nombre_proceso":            comprarBasicInfo + "lblNombreProceso",
				"objeto_contratacion":       comprarBasicInfo + "lblObjetoContratacion",
				"procedimiento_seleccion":   comprarBasicInfo + "lblProcedimientoSeleccion",
				"etapa":                     comprarBasicInfo + "lblEtapa",
				"modalidad":                 comprarBasicInfo + "lblModalidad",
				"alcance":                   comprarBasicInfo + "lblAlcance",
				"moneda":                    comprarBasicInfo + "lblMoneda",
				"encuadre_legal":            comprarBasicInfo + "lblEncuadreLegal",
				"tipo_cotizacion":           comprarBasicInfo + "lblTipoCotizacionCantidad",
				"tipo_adjudicacion":         comprarBasicInfo + "lblTipoAdjudicacionCantidad",
				"lugar_recepcion":           comprarBasicInfo + "lblLugarRecepcionFisica",
				"plazo_mantenimiento":       comprarBasicInfo + "lblPlazoMantenimientoOferta",
				"requiere_pago":             comprarBasicInfo + "lblRequierePago",
				"genera_recursos":           comprarBasicInfo + "GeneraRecursos",
				"financiamiento_externo":    comprarBasicInfo + "FinanciamientoExterno",
				"acepta_prorroga":           comprarBasicInfo + "lblAceptaProrroga",
				"tipo_documento_genera":     comprarBasicInfo + "lblTipoProcesoGen",
			},
		},
		{
			Name:      domain.SectionSchedule,
			Kind:      SectionScalar,
			Container: bacSchedule + "lblFechaPublicacion",
			Fields: map[string]string{
				"fecha_publicacion":                 bacSchedule + "lblFechaPublicacion",
				"fecha_inicio_consultas":            bacSchedule + "lblFechaInicioConsultas",
				"fecha_final_consultas":             bacSchedule + "lblFechaFinalConsultas",
				"fecha_inicio_recepcion_documentos": bacSchedule + "lblFechaInicioRecepcionDocumentos",
				"fecha_fin_recepcion_documentos":    bacSchedule + "lblFechaFinRecepcionDocumentos",
				"fecha_acto_apertura":               bacSchedule + "lblFechaActoApertura",
			},
		},
		{
			// Compr.AR publishes no amount; only the contract terms.
			Name:      domain.SectionAmount,
			Kind:      SectionScalar,
			Container: bacAmount + "lblMontoDuracionFechaInicioContrato",
			Fields: map[string]string{
				"fecha_inicio_contrato": bacAmount + "lblMontoDuracionFechaInicioContrato",
				"duracion_contrato":     bacAmount + "lblMontoDuracionDuracionContrato",
			},
		},
		{
			Name:      domain.SectionItems,
			Kind:      SectionItems,
			Container: bacItemsTable,
		},
		{
			Name:      domain.SectionRequirements,
			Kind:      SectionRequirements,
			Container: "div.list-group",
		},
	},
}
