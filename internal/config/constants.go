package config

// Application constants - all hardcoded values for the GBO swap flow processor
const (
	// Application Info
	AppName    = "GBO Swap Flow Processor"
	AppVersion = "1.0.0"

	// Input File Naming
	FlowsFilePrefix     = "flujos_swap_gbo_"
	FlowsFileExt        = ".csv"
	EstimatesFilePrefix = "COL_ESTIM_FLOWS_"
	EstimatesFileExt    = ".dat"
	ReportFilePrefix    = "Informe_R5_GBO_"
	ReportFileExt       = ".csv"

	// Filename Date Layouts (Go reference time)
	FlowsDateLayout     = "20060102" // flujos_swap_gbo_20240115.csv
	EstimatesDateLayout = "02012006" // COL_ESTIM_FLOWS_15012024.dat
	ReportDateLayout    = "060102"   // Informe_R5_GBO_240115.csv

	// In-File Date Layouts
	FlowDateLayoutISO   = "2006-01-02" // fecha_cobro in the flows CSV
	FlowDateLayoutLatin = "02/01/2006" // fecha_cobro in legacy flows files
	EstimateDateLayout  = "02/01/2006" // M_DATE in the estimates DAT

	// Flows Columns
	ColCodEmp       = "cod_emp"
	ColFechaCobro   = "fecha_cobro"
	ColDerIntereses = "der_intereses"
	ColOblIntereses = "obl_intereses"
	ColDerVP        = "der_vp"
	ColOblVP        = "obl_vp"
	ColNroPapeleta  = "nro_papeleta" // identifier column of the legacy feed

	// Estimates Columns
	ColContract = "m_contract_"
	ColDate     = "m_date"
	ColDiscFlow = "m_discflow"
	ColFlowCol  = "m_flow_col"
	ColLeg      = "m_leg"

	// Report Columns
	ColCodigoOperacion = "codigo_operacion"
	ColCupon           = "cupon"
	ColCupon1          = "cupon_1"

	// File Paths (relative to executable)
	DefaultDataDir   = "data"
	DefaultOutputDir = "procesados"
	DefaultLogsDir   = "logs"

	// Output Naming
	DefaultOutputSuffix = "_procesado"

	// Log Settings
	DefaultLogLevel  = "info"
	DefaultLogFormat = "json"
	DefaultLogFile   = "logs/procesamiento.log"

	// Metrics
	DefaultMetricsJobName = "gbo_swap_processor"
)

// Routing modes for estimate values
const (
	RoutingModeSign = "sign" // route by the sign of the estimate value
	RoutingModeLeg  = "leg"  // route by the M_LEG column of the legacy feed
)

// DefaultReplacements are the literal token fixups applied by the sanitizer.
// The provider zero-pads some branch codes; downstream systems expect them bare.
var DefaultReplacements = map[string]string{
	";033;":    ";33;",
	";011001;": ";11001;",
}
