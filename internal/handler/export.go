package handler

import (
	"io"

	"tokenguard/internal/domain"
	"tokenguard/internal/models"

	"github.com/xuri/excelize/v2"
)

const (
	xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	exportSheet     = "Transactions"
)

var exportHeaders = []string{
	"ID", "Reference", "User ID", "Method", "Status", "Amount", "Currency",
	"Tokens", "Provider Ref", "Note", "Created At", "Completed At",
}

// writeTransactionsXLSX renders transactions as a single-sheet workbook.
func writeTransactionsXLSX(w io.Writer, list []models.Transaction) error {
	f := excelize.NewFile()
	defer f.Close()
	if err := f.SetSheetName("Sheet1", exportSheet); err != nil {
		return err
	}

	header := make([]interface{}, len(exportHeaders))
	for i, h := range exportHeaders {
		header[i] = h
	}
	if err := f.SetSheetRow(exportSheet, "A1", &header); err != nil {
		return err
	}
	headerStyle, _ := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Color: "#FFFFFF"},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#1F2937"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	lastCol, _ := excelize.ColumnNumberToName(len(exportHeaders))
	f.SetCellStyle(exportSheet, "A1", lastCol+"1", headerStyle)

	completed, _ := f.NewStyle(&excelize.Style{Font: &excelize.Font{Color: "#059669"}})
	failed, _ := f.NewStyle(&excelize.Style{Font: &excelize.Font{Color: "#DC2626"}})

	for i, t := range list {
		row := i + 2
		completedAt := ""
		if t.CompletedAt != nil {
			completedAt = t.CompletedAt.Format("2006-01-02 15:04:05")
		}
		amount, _ := t.Amount.Float64()
		values := []interface{}{
			t.ID, t.Reference, t.UserID, t.Method, t.Status, amount, t.Currency,
			t.Tokens, t.ProviderRef, t.Note, t.CreatedAt.Format("2006-01-02 15:04:05"), completedAt,
		}
		cell, _ := excelize.CoordinatesToCellName(1, row)
		if err := f.SetSheetRow(exportSheet, cell, &values); err != nil {
			return err
		}
		statusCell, _ := excelize.CoordinatesToCellName(5, row)
		switch t.Status {
		case domain.TxStatusCompleted:
			f.SetCellStyle(exportSheet, statusCell, statusCell, completed)
		case domain.TxStatusFailed:
			f.SetCellStyle(exportSheet, statusCell, statusCell, failed)
		}
	}

	f.SetColWidth(exportSheet, "A", "A", 8)
	f.SetColWidth(exportSheet, "B", "B", 40)
	f.SetColWidth(exportSheet, "C", "I", 15)
	f.SetColWidth(exportSheet, "J", "J", 40)
	f.SetColWidth(exportSheet, "K", "L", 20)
	return f.Write(w)
}
