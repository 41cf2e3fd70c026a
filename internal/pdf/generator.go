package pdf

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/jung-kurt/gofpdf"
	"github.com/vcscsvcscs/rarecare-backend/pkg/model"
	"go.uber.org/zap"
)

const maxEntryRows = 200

// PDFGenerator renders tracking records as printable reports
type PDFGenerator struct {
	logger *zap.Logger
}

// NewPDFGenerator creates a new PDFGenerator
func NewPDFGenerator(logger *zap.Logger) *PDFGenerator {
	return &PDFGenerator{
		logger: logger,
	}
}

// ReportData contains all data needed for report generation
type ReportData struct {
	Record      *model.TrackingRecord
	Stats       model.Statistics
	Insights    []model.Insight
	Language    string
	GeneratedAt time.Time
}

type labels struct {
	title, patient, condition, source, generated     string
	summary, totalEvents, daysSinceLast, monthlyAvg string
	trend, mostCommonType, mostCommonHour, none     string
	insights, medications, entries, noEntries       string
	noMedications, truncated                        string
	date, typ, duration, severity, value, triggers  string
}

var reportLabels = map[string]labels{
	"en": {
		title: "Condition Tracking Report", patient: "Patient", condition: "Condition", source: "Source",
		generated: "Generated", summary: "Summary", totalEvents: "Total events",
		daysSinceLast: "Days since last event", monthlyAvg: "Monthly average", trend: "Trend",
		mostCommonType: "Most common type", mostCommonHour: "Most common hour", none: "n/a",
		insights: "Insights", medications: "Medications", entries: "Entries",
		noEntries: "No entries recorded.", noMedications: "No medications recorded.",
		truncated: "Showing the %d most recent of %d entries.",
		date: "Date", typ: "Type", duration: "Duration", severity: "Severity", value: "Value", triggers: "Triggers",
	},
	"es": {
		title: "Informe de seguimiento", patient: "Paciente", condition: "Condición", source: "Origen",
		generated: "Generado", summary: "Resumen", totalEvents: "Eventos totales",
		daysSinceLast: "Días desde el último evento", monthlyAvg: "Media mensual", trend: "Tendencia",
		mostCommonType: "Tipo más frecuente", mostCommonHour: "Hora más frecuente", none: "n/d",
		insights: "Observaciones", medications: "Medicación", entries: "Registros",
		noEntries: "No hay registros.", noMedications: "No hay medicación registrada.",
		truncated: "Se muestran los %d registros más recientes de %d.",
		date: "Fecha", typ: "Tipo", duration: "Duración", severity: "Gravedad", value: "Valor", triggers: "Desencadenantes",
	},
}

// Generate creates a PDF report from the provided data
func (g *PDFGenerator) Generate(data *ReportData) ([]byte, error) {
	if data == nil || data.Record == nil {
		return nil, fmt.Errorf("report data requires a tracking record")
	}

	l, ok := reportLabels[data.Language]
	if !ok {
		l = reportLabels["en"]
	}
	if data.GeneratedAt.IsZero() {
		data.GeneratedAt = time.Now().UTC()
	}

	g.logger.Info("generating PDF report",
		zap.String("patient_id", data.Record.PatientID),
		zap.String("condition_type", string(data.Record.ConditionType)),
		zap.Int("entry_count", len(data.Record.Entries)),
	)

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(20, 20, 20)
	pdf.SetAutoPageBreak(true, 20)
	// core fonts are cp1252, so Spanish text needs translating
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	text := func(s string) string { return tr(stripUnsupported(s)) }

	pdf.AddPage()

	g.addTitle(pdf, text, l, data)
	g.addSummary(pdf, text, l, data.Stats)
	g.addInsights(pdf, text, l, data.Insights)
	g.addMedicationList(pdf, text, l, data.Record.Medications)
	g.addEntries(pdf, text, l, data.Record.Entries)

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		g.logger.Error("failed to generate PDF", zap.Error(err))
		return nil, fmt.Errorf("failed to generate PDF: %w", err)
	}

	g.logger.Info("PDF report generated successfully",
		zap.Int("size_bytes", buf.Len()),
	)

	return buf.Bytes(), nil
}

func (g *PDFGenerator) addTitle(pdf *gofpdf.Fpdf, text func(string) string, l labels, data *ReportData) {
	pdf.SetFont("Arial", "B", 20)
	pdf.CellFormat(0, 10, text(l.title), "", 1, "C", false, 0, "")
	pdf.Ln(5)

	patient := data.Record.Metadata.PatientName
	if patient == "" {
		patient = l.none
	}
	source := data.Record.Metadata.Source
	if source == "" {
		source = l.none
	}

	pdf.SetFont("Arial", "", 12)
	pdf.CellFormat(0, 8, text(fmt.Sprintf("%s: %s", l.patient, patient)), "", 1, "L", false, 0, "")
	pdf.CellFormat(0, 8, text(fmt.Sprintf("%s: %s", l.condition, data.Record.ConditionType)), "", 1, "L", false, 0, "")
	pdf.CellFormat(0, 8, text(fmt.Sprintf("%s: %s", l.source, source)), "", 1, "L", false, 0, "")
	pdf.CellFormat(0, 8, text(fmt.Sprintf("%s: %s", l.generated, data.GeneratedAt.Format("2006-01-02 15:04"))), "", 1, "L", false, 0, "")
	pdf.Ln(8)
}

func (g *PDFGenerator) addSectionHeader(pdf *gofpdf.Fpdf, text func(string) string, title string) {
	pdf.SetFont("Arial", "B", 14)
	pdf.SetFillColor(230, 230, 230)
	pdf.CellFormat(0, 10, text(title), "", 1, "L", true, 0, "")
	pdf.Ln(3)
	pdf.SetFont("Arial", "", 10)
}

func (g *PDFGenerator) addSummary(pdf *gofpdf.Fpdf, text func(string) string, l labels, stats model.Statistics) {
	g.addSectionHeader(pdf, text, l.summary)

	rows := [][2]string{
		{l.totalEvents, fmt.Sprintf("%d", stats.TotalEvents)},
		{l.daysSinceLast, intOr(stats.DaysSinceLast, l.none)},
		{l.monthlyAvg, fmt.Sprintf("%.1f", stats.MonthlyAvg)},
		{l.trend, trendText(stats, l.none)},
		{l.mostCommonType, stringOr(stats.MostCommonType, l.none)},
		{l.mostCommonHour, hourText(stats.MostCommonHour, l.none)},
	}
	for _, row := range rows {
		pdf.SetFont("Arial", "B", 10)
		pdf.CellFormat(70, 6, text(row[0]), "", 0, "L", false, 0, "")
		pdf.SetFont("Arial", "", 10)
		pdf.CellFormat(0, 6, text(row[1]), "", 1, "L", false, 0, "")
	}
	pdf.Ln(5)
}

func (g *PDFGenerator) addInsights(pdf *gofpdf.Fpdf, text func(string) string, l labels, insights []model.Insight) {
	if len(insights) == 0 {
		return
	}
	g.addSectionHeader(pdf, text, l.insights)

	for _, insight := range insights {
		pdf.SetFont("Arial", "B", 10)
		pdf.CellFormat(0, 6, text(insight.Title), "", 1, "L", false, 0, "")
		pdf.SetFont("Arial", "", 10)
		pdf.MultiCell(0, 5, text(insight.Description), "", "L", false)
		pdf.Ln(2)
	}
	pdf.Ln(3)
}

func (g *PDFGenerator) addMedicationList(pdf *gofpdf.Fpdf, text func(string) string, l labels, medications []model.Medication) {
	g.addSectionHeader(pdf, text, l.medications)

	if len(medications) == 0 {
		pdf.CellFormat(0, 8, text(l.noMedications), "", 1, "L", false, 0, "")
		pdf.Ln(5)
		return
	}

	for _, med := range medications {
		pdf.SetFont("Arial", "B", 10)
		pdf.CellFormat(0, 6, text(med.Name), "", 1, "L", false, 0, "")
		pdf.SetFont("Arial", "", 10)

		details := []string{}
		if med.Dose != "" {
			details = append(details, strings.TrimSpace(med.Dose+" "+med.DoseUnit))
		}
		if med.Frequency != "" {
			details = append(details, med.Frequency)
		}
		if med.StartDate != "" || med.EndDate != "" {
			details = append(details, fmt.Sprintf("%s - %s", med.StartDate, med.EndDate))
		}
		if len(details) > 0 {
			pdf.CellFormat(0, 5, text("  "+strings.Join(details, ", ")), "", 1, "L", false, 0, "")
		}
		if len(med.SideEffects) > 0 {
			pdf.CellFormat(0, 5, text("  "+strings.Join(med.SideEffects, ", ")), "", 1, "L", false, 0, "")
		}
		pdf.Ln(2)
	}
	pdf.Ln(3)
}

func (g *PDFGenerator) addEntries(pdf *gofpdf.Fpdf, text func(string) string, l labels, entries []model.TrackingEntry) {
	g.addSectionHeader(pdf, text, l.entries)

	if len(entries) == 0 {
		pdf.CellFormat(0, 8, text(l.noEntries), "", 1, "L", false, 0, "")
		return
	}

	widths := []float64{35, 35, 20, 20, 20, 40}
	headers := []string{l.date, l.typ, l.duration, l.severity, l.value, l.triggers}
	pdf.SetFont("Arial", "B", 9)
	for i, h := range headers {
		pdf.CellFormat(widths[i], 7, text(h), "1", 0, "L", true, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Arial", "", 9)
	shown := entries
	if len(shown) > maxEntryRows {
		shown = shown[:maxEntryRows]
	}
	for _, e := range shown {
		cells := []string{
			e.Date.UTC().Format("2006-01-02 15:04"),
			truncate(e.Type, 20),
			floatOr(e.Duration, "%.0fs"),
			intOr(e.Severity, ""),
			floatOr(e.Value, "%.1f"),
			truncate(strings.Join(e.Triggers, ", "), 24),
		}
		for i, cell := range cells {
			pdf.CellFormat(widths[i], 6, text(cell), "1", 0, "L", false, 0, "")
		}
		pdf.Ln(-1)
	}

	if len(entries) > maxEntryRows {
		pdf.Ln(2)
		pdf.CellFormat(0, 6, text(fmt.Sprintf(l.truncated, maxEntryRows, len(entries))), "", 1, "L", false, 0, "")
	}
}

// stripUnsupported drops runes outside the Latin-1 range, which the core fonts cannot render
func stripUnsupported(s string) string {
	return strings.Map(func(r rune) rune {
		if r > 0xFF {
			return -1
		}
		return r
	}, s)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "."
}

func intOr(v *int, fallback string) string {
	if v == nil {
		return fallback
	}
	return fmt.Sprintf("%d", *v)
}

func floatOr(v *float64, format string) string {
	if v == nil {
		return ""
	}
	return fmt.Sprintf(format, *v)
}

func stringOr(v *string, fallback string) string {
	if v == nil || *v == "" {
		return fallback
	}
	return *v
}

func hourText(v *int, fallback string) string {
	if v == nil {
		return fallback
	}
	return fmt.Sprintf("%02d:00", *v)
}

func trendText(stats model.Statistics, fallback string) string {
	if stats.Trend == nil {
		return fallback
	}
	if stats.TrendPercent == nil {
		return string(*stats.Trend)
	}
	return fmt.Sprintf("%s (%d%%)", *stats.Trend, *stats.TrendPercent)
}
