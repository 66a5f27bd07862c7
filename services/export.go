package services

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/jbapex/financeiro-api/models"

	"github.com/xuri/excelize/v2"
)

var transactionExportHeader = []string{
	"Data", "Tipo", "Descrição", "Categoria", "Contato", "Valor", "Status", "Forma de pagamento", "Tags", "Observações",
}

func transactionRecord(t models.Transaction) []string {
	return []string{
		t.Date.Format("02/01/2006"),
		t.Type,
		t.Description,
		t.CategoryName,
		t.ContactName,
		strings.Replace(SignedAmount(t).StringFixed(2), ".", ",", 1),
		t.Status,
		t.PaymentMethod,
		strings.Join(t.Tags, ","),
		t.Notes,
	}
}

// WriteTransactionsCSV writes a ';' separated file with comma decimals, the
// layout spreadsheet tools open directly in pt-BR locales.
func WriteTransactionsCSV(w io.Writer, txs []models.Transaction) error {
	writer := csv.NewWriter(w)
	writer.Comma = ';'

	if err := writer.Write(transactionExportHeader); err != nil {
		return err
	}
	for _, t := range txs {
		if err := writer.Write(transactionRecord(t)); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

func WriteTransactionsXLSX(w io.Writer, txs []models.Transaction) error {
	f := excelize.NewFile()
	defer f.Close()

	sheetName := "Lançamentos"
	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		return err
	}

	for i, header := range transactionExportHeader {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(sheetName, cell, header)
	}

	for i, t := range txs {
		row := i + 2
		f.SetCellValue(sheetName, fmt.Sprintf("A%d", row), t.Date.Format("02/01/2006"))
		f.SetCellValue(sheetName, fmt.Sprintf("B%d", row), t.Type)
		f.SetCellValue(sheetName, fmt.Sprintf("C%d", row), t.Description)
		f.SetCellValue(sheetName, fmt.Sprintf("D%d", row), t.CategoryName)
		f.SetCellValue(sheetName, fmt.Sprintf("E%d", row), t.ContactName)
		f.SetCellValue(sheetName, fmt.Sprintf("F%d", row), SignedAmount(t).InexactFloat64())
		f.SetCellValue(sheetName, fmt.Sprintf("G%d", row), t.Status)
		f.SetCellValue(sheetName, fmt.Sprintf("H%d", row), t.PaymentMethod)
		f.SetCellValue(sheetName, fmt.Sprintf("I%d", row), strings.Join(t.Tags, ","))
		f.SetCellValue(sheetName, fmt.Sprintf("J%d", row), t.Notes)
	}

	return f.Write(w)
}

// WriteDREXLSX renders the statement with the category breakdown indented
// under each group line.
func WriteDREXLSX(w io.Writer, dre *models.DRE) error {
	f := excelize.NewFile()
	defer f.Close()

	sheetName := "DRE"
	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		return err
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return err
	}

	f.SetCellValue(sheetName, "A1", fmt.Sprintf("DRE %s a %s", dre.From, dre.To))
	f.SetCellValue(sheetName, "A2", "Linha")
	f.SetCellValue(sheetName, "B2", "Valor")
	f.SetCellValue(sheetName, "C2", "% Receita Bruta")
	_ = f.SetCellStyle(sheetName, "A1", "C2", bold)

	row := 3
	for _, line := range dre.Lines {
		f.SetCellValue(sheetName, fmt.Sprintf("A%d", row), line.Label)
		f.SetCellValue(sheetName, fmt.Sprintf("B%d", row), line.Amount.InexactFloat64())
		f.SetCellValue(sheetName, fmt.Sprintf("C%d", row), line.Percentage.InexactFloat64())
		if line.Subtotal {
			_ = f.SetCellStyle(sheetName, fmt.Sprintf("A%d", row), fmt.Sprintf("C%d", row), bold)
		}
		row++
		for _, c := range line.Categories {
			f.SetCellValue(sheetName, fmt.Sprintf("A%d", row), "    "+c.CategoryName)
			f.SetCellValue(sheetName, fmt.Sprintf("B%d", row), c.Amount.InexactFloat64())
			f.SetCellValue(sheetName, fmt.Sprintf("C%d", row), c.Percentage.InexactFloat64())
			row++
		}
	}
	_ = f.SetColWidth(sheetName, "A", "A", 40)

	return f.Write(w)
}
