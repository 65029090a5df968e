package report

import (
	"context"
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"

	"neuro-triage/internal/assessment"
)

const sheetName = "Assessments"

var ExportHeader = []string{
	"ID",
	"Created At",
	"Age",
	"Severity",
	"Onset (h)",
	"Verdict",
	"Symptoms",
	"Notes",
	"Recommendations",
	"Subjective",
	"Objective",
	"Assessment",
	"Plan",
}

var columnWidths = []float64{38, 20, 6, 10, 10, 12, 30, 40, 60, 40, 30, 30, 40}

// ExportXLSX writes one row per assessment under a styled header. Urgent rows
// are highlighted.
func (s *Service) ExportXLSX(ctx context.Context, list []assessment.Assessment) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(sheetName)
	if err != nil {
		return nil, fmt.Errorf("failed to create sheet: %w", err)
	}
	f.DeleteSheet("Sheet1")
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
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create header style: %w", err)
	}
	urgentStyle, err := f.NewStyle(&excelize.Style{
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#FDE2E1"}, Pattern: 1},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create row style: %w", err)
	}

	for col, header := range ExportHeader {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return nil, fmt.Errorf("failed to convert coordinates: %w", err)
		}
		if err := f.SetCellValue(sheetName, cell, header); err != nil {
			return nil, fmt.Errorf("failed to set header cell %s: %w", cell, err)
		}
		if err := f.SetCellStyle(sheetName, cell, cell, headerStyle); err != nil {
			return nil, fmt.Errorf("failed to set header style: %w", err)
		}
	}
	for i, width := range columnWidths {
		col, _ := excelize.ColumnNumberToName(i + 1)
		if err := f.SetColWidth(sheetName, col, col, width); err != nil {
			return nil, fmt.Errorf("failed to set column width: %w", err)
		}
	}

	for i, a := range list {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		row := i + 2
		values := []interface{}{
			a.ID.String(),
			a.CreatedAt.Format("2006-01-02 15:04:05"),
			a.Patient.Age,
			string(a.Patient.Severity),
			a.Patient.OnsetHours,
			string(a.Verdict),
			strings.Join(a.Symptoms, ", "),
			a.Notes,
			strings.Join(a.Recommendations.Lines, "\n"),
			a.SOAP.Subjective,
			a.SOAP.Objective,
			a.SOAP.Assessment,
			a.SOAP.Plan,
		}
		start, _ := excelize.CoordinatesToCellName(1, row)
		if err := f.SetSheetRow(sheetName, start, &values); err != nil {
			return nil, fmt.Errorf("failed to write row %d: %w", row, err)
		}
		if a.Urgent() {
			end, _ := excelize.CoordinatesToCellName(len(values), row)
			if err := f.SetCellStyle(sheetName, start, end, urgentStyle); err != nil {
				return nil, fmt.Errorf("failed to style row %d: %w", row, err)
			}
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to write workbook: %w", err)
	}
	return buf.Bytes(), nil
}
