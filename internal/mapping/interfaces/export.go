package interfaces

import (
	"bytes"
	"fmt"
	"time"

	"github.com/jung-kurt/gofpdf"
	"github.com/xuri/excelize/v2"

	mapping "axis-studio/internal/mapping/domain"
)

// ExportScope labels an exported binding sheet.
type ExportScope struct {
	ProfileName    string
	SubProfileName string
	GeneratedAt    time.Time
}

// BuildBindingsPDF renders a binding sheet PDF for one profile scope.
func BuildBindingsPDF(scope ExportScope, records []*mapping.Record) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetFont("Arial", "", 12)
	pdf.AddPage()

	pdf.Cell(0, 8, "Input Binding Sheet")
	pdf.Ln(10)
	pdf.SetFont("Arial", "", 10)
	pdf.Cell(0, 6, fmt.Sprintf("Profile: %s", scope.ProfileName))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Sub-profile: %s", scope.SubProfileName))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Generated: %s", scope.GeneratedAt.Format(time.RFC3339)))
	pdf.Ln(8)

	pdf.SetFont("Arial", "B", 10)
	pdf.CellFormat(45, 6, "Input", "1", 0, "C", false, 0, "")
	pdf.CellFormat(45, 6, "Output", "1", 0, "C", false, 0, "")
	pdf.CellFormat(25, 6, "Curve", "1", 0, "C", false, 0, "")
	pdf.CellFormat(30, 6, "Dead Zone (%)", "1", 0, "C", false, 0, "")
	pdf.CellFormat(25, 6, "Conflict", "1", 0, "C", false, 0, "")
	pdf.Ln(-1)
	pdf.SetFont("Arial", "", 10)
	for _, record := range records {
		conflict := ""
		if record.HasWarning {
			conflict = "yes"
		}
		pdf.CellFormat(45, 6, record.SourceKey, "1", 0, "L", false, 0, "")
		pdf.CellFormat(45, 6, record.OutputControl, "1", 0, "L", false, 0, "")
		pdf.CellFormat(25, 6, curveLabel(record), "1", 0, "C", false, 0, "")
		pdf.CellFormat(30, 6, deadZoneLabel(record), "1", 0, "C", false, 0, "")
		pdf.CellFormat(25, 6, conflict, "1", 0, "C", false, 0, "")
		pdf.Ln(-1)
	}

	var buf bytes.Buffer
	err := pdf.Output(&buf)
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// BuildBindingsXLSX renders a binding workbook for one profile scope,
// with curve points broken out on their own sheet.
func BuildBindingsXLSX(scope ExportScope, records []*mapping.Record) ([]byte, error) {
	f := excelize.NewFile()
	bindingsSheet := "bindings"
	curvesSheet := "curves"
	f.SetSheetName("Sheet1", bindingsSheet)
	f.NewSheet(curvesSheet)

	_ = f.SetCellValue(bindingsSheet, "A1", "Input Binding Sheet")
	_ = f.SetCellValue(bindingsSheet, "A2", "Profile")
	_ = f.SetCellValue(bindingsSheet, "B2", scope.ProfileName)
	_ = f.SetCellValue(bindingsSheet, "A3", "Sub-profile")
	_ = f.SetCellValue(bindingsSheet, "B3", scope.SubProfileName)
	_ = f.SetCellValue(bindingsSheet, "A4", "Generated")
	_ = f.SetCellValue(bindingsSheet, "B4", scope.GeneratedAt.Format(time.RFC3339))

	_ = f.SetCellValue(bindingsSheet, "A6", "Input")
	_ = f.SetCellValue(bindingsSheet, "B6", "Output")
	_ = f.SetCellValue(bindingsSheet, "C6", "Curve")
	_ = f.SetCellValue(bindingsSheet, "D6", "Smooth")
	_ = f.SetCellValue(bindingsSheet, "E6", "Dead Zone Inner (%)")
	_ = f.SetCellValue(bindingsSheet, "F6", "Dead Zone Outer (%)")
	_ = f.SetCellValue(bindingsSheet, "G6", "Conflict")
	for i, record := range records {
		row := i + 7
		_ = f.SetCellValue(bindingsSheet, fmt.Sprintf("A%d", row), record.SourceKey)
		_ = f.SetCellValue(bindingsSheet, fmt.Sprintf("B%d", row), record.OutputControl)
		_ = f.SetCellValue(bindingsSheet, fmt.Sprintf("C%d", row), string(record.CurveType))
		_ = f.SetCellValue(bindingsSheet, fmt.Sprintf("D%d", row), record.Smooth)
		_ = f.SetCellValue(bindingsSheet, fmt.Sprintf("E%d", row), record.DeadZoneInner*100)
		_ = f.SetCellValue(bindingsSheet, fmt.Sprintf("F%d", row), record.DeadZoneOuter*100)
		_ = f.SetCellValue(bindingsSheet, fmt.Sprintf("G%d", row), record.HasWarning)
	}

	_ = f.SetCellValue(curvesSheet, "A1", "Input")
	_ = f.SetCellValue(curvesSheet, "B1", "Point X")
	_ = f.SetCellValue(curvesSheet, "C1", "Point Y")
	row := 2
	for _, record := range records {
		if record.CurveType != mapping.CurveCustom {
			continue
		}
		for _, point := range record.Points {
			_ = f.SetCellValue(curvesSheet, fmt.Sprintf("A%d", row), record.SourceKey)
			_ = f.SetCellValue(curvesSheet, fmt.Sprintf("B%d", row), point.X)
			_ = f.SetCellValue(curvesSheet, fmt.Sprintf("C%d", row), point.Y)
			row++
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func curveLabel(record *mapping.Record) string {
	if record.CurveType == mapping.CurveCustom && record.Smooth {
		return "custom (smooth)"
	}
	return string(record.CurveType)
}

func deadZoneLabel(record *mapping.Record) string {
	return fmt.Sprintf("%.0f - %.0f", record.DeadZoneInner*100, record.DeadZoneOuter*100)
}
