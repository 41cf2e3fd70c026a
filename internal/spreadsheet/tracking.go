// Package spreadsheet exports tracking records as XLSX workbooks.
package spreadsheet

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/vcscsvcscs/rarecare-backend/pkg/model"
	"github.com/xuri/excelize/v2"
)

// Sheet names of the exported workbook
const (
	EntriesSheet     = "Entries"
	MedicationsSheet = "Medications"
	SummarySheet     = "Summary"
)

// EntryHeader is the header row of the entries sheet
var EntryHeader = []string{"Date", "Type", "Duration (s)", "Severity", "Value", "Triggers", "Notes"}

// MedicationHeader is the header row of the medications sheet
var MedicationHeader = []string{"Name", "Dose", "Dose Value", "Dose Unit", "Frequency", "Start Date", "End Date", "Side Effects", "Notes"}

var entryColumnWidths = []float64{20, 20, 14, 10, 10, 40, 50}

// GenerateTrackingWorkbook renders a record's entries, medications and statistics as an XLSX file
func GenerateTrackingWorkbook(record *model.TrackingRecord, stats model.Statistics) ([]byte, error) {
	if record == nil {
		return nil, fmt.Errorf("record is required")
	}

	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(EntriesSheet)
	if err != nil {
		return nil, fmt.Errorf("failed to create sheet: %w", err)
	}
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return nil, fmt.Errorf("failed to delete default sheet: %w", err)
	}
	f.SetActiveSheet(index)

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#E6F3FF"}, Pattern: 1},
		Border: []excelize.Border{
			{Type: "left", Color: "000000", Style: 1},
			{Type: "top", Color: "000000", Style: 1},
			{Type: "bottom", Color: "000000", Style: 1},
			{Type: "right", Color: "000000", Style: 1},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create header style: %w", err)
	}

	if err := writeHeader(f, EntriesSheet, EntryHeader, headerStyle); err != nil {
		return nil, err
	}
	for i, width := range entryColumnWidths {
		col, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return nil, fmt.Errorf("failed to convert column number: %w", err)
		}
		if err := f.SetColWidth(EntriesSheet, col, col, width); err != nil {
			return nil, fmt.Errorf("failed to set column width: %w", err)
		}
	}

	for i, e := range record.Entries {
		row := []any{
			e.Date.UTC().Format("2006-01-02 15:04:05"),
			e.Type,
			floatCell(e.Duration),
			intCell(e.Severity),
			floatCell(e.Value),
			strings.Join(e.Triggers, ", "),
			e.Notes,
		}
		if err := writeRow(f, EntriesSheet, i+2, row); err != nil {
			return nil, err
		}
	}

	if _, err := f.NewSheet(MedicationsSheet); err != nil {
		return nil, fmt.Errorf("failed to create sheet: %w", err)
	}
	if err := writeHeader(f, MedicationsSheet, MedicationHeader, headerStyle); err != nil {
		return nil, err
	}
	for i, m := range record.Medications {
		row := []any{
			m.Name, m.Dose, floatCell(m.DoseValue), m.DoseUnit, m.Frequency,
			m.StartDate, m.EndDate, strings.Join(m.SideEffects, ", "), m.Notes,
		}
		if err := writeRow(f, MedicationsSheet, i+2, row); err != nil {
			return nil, err
		}
	}

	if _, err := f.NewSheet(SummarySheet); err != nil {
		return nil, fmt.Errorf("failed to create sheet: %w", err)
	}
	if err := writeSummary(f, record, stats, headerStyle); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("failed to write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func writeSummary(f *excelize.File, record *model.TrackingRecord, stats model.Statistics, headerStyle int) error {
	if err := writeHeader(f, SummarySheet, []string{"Metric", "Value"}, headerStyle); err != nil {
		return err
	}

	var trend, mostCommonType any
	if stats.Trend != nil {
		trend = string(*stats.Trend)
	}
	if stats.MostCommonType != nil {
		mostCommonType = *stats.MostCommonType
	}

	rows := [][]any{
		{"Condition", string(record.ConditionType)},
		{"Source", record.Metadata.Source},
		{"Total events", stats.TotalEvents},
		{"Days since last event", intCell(stats.DaysSinceLast)},
		{"Monthly average", stats.MonthlyAvg},
		{"Trend", trend},
		{"Trend percent", intCell(stats.TrendPercent)},
		{"Most common type", mostCommonType},
		{"Most common hour", intCell(stats.MostCommonHour)},
		{"Events last 3 months", stats.RecentCount},
		{"Events previous 3 months", stats.PreviousCount},
	}
	for i, row := range rows {
		if err := writeRow(f, SummarySheet, i+2, row); err != nil {
			return err
		}
	}
	return f.SetColWidth(SummarySheet, "A", "A", 28)
}

func writeHeader(f *excelize.File, sheet string, headers []string, style int) error {
	for col, header := range headers {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return fmt.Errorf("failed to convert coordinates: %w", err)
		}
		if err := f.SetCellValue(sheet, cell, header); err != nil {
			return fmt.Errorf("failed to set header cell %s: %w", cell, err)
		}
		if err := f.SetCellStyle(sheet, cell, cell, style); err != nil {
			return fmt.Errorf("failed to set header style: %w", err)
		}
	}
	return nil
}

func writeRow(f *excelize.File, sheet string, row int, values []any) error {
	for col, value := range values {
		if value == nil || value == "" {
			continue
		}
		cell, err := excelize.CoordinatesToCellName(col+1, row)
		if err != nil {
			return fmt.Errorf("failed to convert coordinates: %w", err)
		}
		if err := f.SetCellValue(sheet, cell, value); err != nil {
			return fmt.Errorf("failed to set cell %s!%s: %w", sheet, cell, err)
		}
	}
	return nil
}

func floatCell(v *float64) any {
	if v == nil {
		return nil
	}
	return *v
}

func intCell(v *int) any {
	if v == nil {
		return nil
	}
	return *v
}
