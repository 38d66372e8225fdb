package excel

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"github.com/nurpe/marketplace-api/internal/model"
)

const summarySheet = "Summary"

type Generator struct{}

func NewGenerator() *Generator {
	return &Generator{}
}

func (g *Generator) Generate(report model.EarningsReport) ([]byte, error) {
	file := excelize.NewFile()
	defer file.Close()

	if err := file.SetSheetName("Sheet1", summarySheet); err != nil {
		return nil, err
	}
	g.writeSummary(file, report)

	detail := sanitizeSheetName(reportTitle(report.Kind))
	if _, err := file.NewSheet(detail); err != nil {
		return nil, err
	}
	switch report.Kind {
	case model.ReportKindBestProfession:
		g.writeProfessions(file, detail, report.Professions)
	case model.ReportKindBestClients:
		g.writeClients(file, detail, report.Clients)
	default:
		return nil, fmt.Errorf("unsupported report kind %q", report.Kind)
	}

	file.SetActiveSheet(0)
	buf, err := file.WriteToBuffer()
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (g *Generator) writeSummary(file *excelize.File, report model.EarningsReport) {
	set := func(cell string, value interface{}) {
		_ = file.SetCellValue(summarySheet, cell, value)
	}

	total := decimal.Zero
	rows := 0
	for _, p := range report.Professions {
		total = total.Add(p.Earned)
		rows++
	}
	for _, c := range report.Clients {
		total = total.Add(c.Paid)
		rows++
	}

	set("A1", "Report")
	set("B1", reportTitle(report.Kind))
	set("A2", "Period start")
	set("B2", formatDate(report.PeriodStart))
	set("A3", "Period end")
	set("B3", formatDate(report.PeriodEnd))
	set("A4", "Rows")
	set("B4", rows)
	set("A5", "Total paid")
	set("B5", total.StringFixed(2))

	_ = file.SetColWidth(summarySheet, "A", "A", 18)
	_ = file.SetColWidth(summarySheet, "B", "B", 24)
}

func (g *Generator) writeProfessions(file *excelize.File, sheet string, rows []model.ProfessionEarnings) {
	writeHeader(file, sheet, "Rank", "Profession", "Earned")
	for i, row := range rows {
		line := i + 2
		_ = file.SetCellValue(sheet, fmt.Sprintf("A%d", line), i+1)
		_ = file.SetCellValue(sheet, fmt.Sprintf("B%d", line), row.Profession)
		_ = file.SetCellValue(sheet, fmt.Sprintf("C%d", line), row.Earned.StringFixed(2))
	}
	_ = file.SetColWidth(sheet, "B", "B", 32)
	_ = file.SetColWidth(sheet, "C", "C", 16)
}

func (g *Generator) writeClients(file *excelize.File, sheet string, rows []model.ClientPayments) {
	writeHeader(file, sheet, "Rank", "Client ID", "Full name", "Paid")
	for i, row := range rows {
		line := i + 2
		_ = file.SetCellValue(sheet, fmt.Sprintf("A%d", line), i+1)
		_ = file.SetCellValue(sheet, fmt.Sprintf("B%d", line), row.ID)
		_ = file.SetCellValue(sheet, fmt.Sprintf("C%d", line), row.FullName)
		_ = file.SetCellValue(sheet, fmt.Sprintf("D%d", line), row.Paid.StringFixed(2))
	}
	_ = file.SetColWidth(sheet, "C", "C", 32)
	_ = file.SetColWidth(sheet, "D", "D", 16)
}

func writeHeader(file *excelize.File, sheet string, headers ...string) {
	for i, header := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = file.SetCellValue(sheet, cell, header)
	}
}

func reportTitle(kind model.ReportKind) string {
	switch kind {
	case model.ReportKindBestProfession:
		return "Best professions"
	case model.ReportKindBestClients:
		return "Best clients"
	default:
		return "Report"
	}
}

func sanitizeSheetName(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return "Sheet"
	}

	replacer := strings.NewReplacer(
		"[", "-",
		"]", "-",
		":", "-",
		"*", "-",
		"?", "-",
		"/", "-",
		"\\", "-",
	)
	value = strings.TrimSpace(replacer.Replace(value))
	if value == "" {
		return "Sheet"
	}
	if len(value) > 31 {
		value = value[:31]
	}
	return value
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format("2006-01-02")
}
