package notify

import (
	"bytes"
	"fmt"

	"github.com/jung-kurt/gofpdf"
)

// RenderReceipt renders a one-page PDF receipt for a settled notice
func RenderReceipt(n Notice) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.AddPage()

	pdf.SetFont("Arial", "B", 18)
	pdf.Cell(100, 10, "SettleSphere")
	pdf.Ln(12)

	pdf.SetFont("Arial", "B", 16)
	pdf.Cell(100, 10, "PAYMENT RECEIPT")
	pdf.Ln(12)

	pdf.SetFont("Arial", "", 12)
	pdf.Cell(50, 8, "Reference: "+n.Reference)
	pdf.Ln(8)
	pdf.Cell(50, 8, "Date: "+n.At.Format("2006-01-02 15:04:05"))
	pdf.Ln(8)
	pdf.Cell(50, 8, "Type: "+n.Kind)
	pdf.Ln(12)

	pdf.SetFont("Arial", "B", 12)
	pdf.CellFormat(120, 8, "Description", "1", 0, "C", false, 0, "")
	pdf.CellFormat(40, 8, "Amount", "1", 0, "C", false, 0, "")
	pdf.Ln(-1)
	pdf.SetFont("Arial", "", 12)
	pdf.CellFormat(120, 8, n.Title, "1", 0, "L", false, 0, "")
	pdf.CellFormat(40, 8, formatAmount(n), "1", 0, "R", false, 0, "")
	pdf.Ln(-1)

	if n.Balance != nil {
		pdf.Ln(4)
		pdf.SetFont("Arial", "B", 12)
		pdf.CellFormat(120, 8, "Wallet balance:", "", 0, "L", false, 0, "")
		pdf.SetFont("Arial", "", 12)
		pdf.CellFormat(40, 8, n.Balance.StringFixed(2), "", 1, "R", false, 0, "")
	}

	pdf.Ln(10)
	pdf.SetFont("Arial", "I", 12)
	pdf.Cell(0, 10, "Thank you for your payment.")

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("failed to render receipt: %w", err)
	}
	return buf.Bytes(), nil
}

func formatAmount(n Notice) string {
	if n.Currency == "" {
		return n.Amount.StringFixed(2)
	}
	return n.Amount.StringFixed(2) + " " + n.Currency
}
