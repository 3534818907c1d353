package reports

import (
	"context"
	"fmt"
	"io"

	"github.com/openshelf/library_backend/models"
	"github.com/xuri/excelize/v2"
)

// ExportFinesExcel streams the fine ledger as an xlsx workbook.
func ExportFinesExcel(ctx context.Context, w io.Writer, status string) error {

	data, err := models.GetFineLedger(ctx, status)
	if err != nil {
		return err
	}

	f := excelize.NewFile()
	sheetName := "Fines"
	index, err := f.NewSheet(sheetName)
	if err != nil {
		return err
	}
	f.SetActiveSheet(index)
	f.DeleteSheet("Sheet1")

	// Add headers
	f.SetCellValue(sheetName, "A1", "FineId")
	f.SetCellValue(sheetName, "B1", "Member")
	f.SetCellValue(sheetName, "C1", "Email")
	f.SetCellValue(sheetName, "D1", "Title")
	f.SetCellValue(sheetName, "E1", "Author")
	f.SetCellValue(sheetName, "F1", "OverdueDays")
	f.SetCellValue(sheetName, "G1", "FineAmount")
	f.SetCellValue(sheetName, "H1", "Status")
	f.SetCellValue(sheetName, "I1", "DueDate")
	f.SetCellValue(sheetName, "J1", "PaidAt")

	// Add data
	for i, d := range data {
		row := fmt.Sprint(i + 2)
		f.SetCellValue(sheetName, "A"+row, d.ID)
		f.SetCellValue(sheetName, "B"+row, d.UserName)
		f.SetCellValue(sheetName, "C"+row, d.UserEmail)
		f.SetCellValue(sheetName, "D"+row, d.Title)
		f.SetCellValue(sheetName, "E"+row, d.Author)
		f.SetCellValue(sheetName, "F"+row, d.OverdueDays)
		f.SetCellValue(sheetName, "G"+row, d.FineAmount.StringFixed(2))
		f.SetCellValue(sheetName, "H"+row, d.Status)
		f.SetCellValue(sheetName, "I"+row, d.DueDate.Format("2006-01-02"))
		if d.PaidAt != nil {
			f.SetCellValue(sheetName, "J"+row, d.PaidAt.Format("2006-01-02"))
		}
	}

	return f.Write(w)
}
