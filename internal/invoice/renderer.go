// Package invoice renders persisted orders into printable PDF documents.
//
// Rendering is a pure function of the order aggregate: no I/O, and the PDF
// metadata dates are pinned to the order's creation time, so the same order
// always produces byte-identical output. Invoices can therefore be re-served
// on demand and compared byte-for-byte in tests.
package invoice

import (
	"bytes"
	"fmt"

	"shopfront/internal/domain"

	"github.com/go-pdf/fpdf"
)

const (
	pageMargin  = 20.0
	lineHeight  = 8.0
	titleHeight = 12.0
)

// Render produces the invoice PDF for an order and its lines.
func Render(order *domain.Order, lines []domain.OrderLine) ([]byte, error) {
	pdf := fpdf.New("P", "mm", "A4", "")

	// Pin document metadata to the order so output is deterministic.
	pdf.SetCreationDate(order.CreatedAt.UTC())
	pdf.SetModificationDate(order.CreatedAt.UTC())
	pdf.SetTitle(fmt.Sprintf("Invoice %s", order.Reference), false)
	pdf.SetProducer("shopfront", false)

	pdf.SetMargins(pageMargin, pageMargin, pageMargin)
	pdf.SetAutoPageBreak(true, pageMargin)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 18)
	pdf.CellFormat(0, titleHeight, "Invoice", "", 1, "L", false, 0, "")

	pdf.SetFont("Helvetica", "", 11)
	pdf.CellFormat(0, lineHeight, fmt.Sprintf("Order %s", order.Reference), "", 1, "L", false, 0, "")
	pdf.CellFormat(0, lineHeight, fmt.Sprintf("Date: %s", order.CreatedAt.UTC().Format("2006-01-02 15:04:05 UTC")), "", 1, "L", false, 0, "")
	pdf.Ln(lineHeight / 2)

	pdf.SetFont("Helvetica", "B", 11)
	pdf.CellFormat(120, lineHeight, "Item", "B", 0, "L", false, 0, "")
	pdf.CellFormat(0, lineHeight, "Amount", "B", 1, "R", false, 0, "")

	pdf.SetFont("Helvetica", "", 11)
	for _, line := range lines {
		pdf.CellFormat(120, lineHeight,
			fmt.Sprintf("%s x %d", line.Title, line.Quantity),
			"", 0, "L", false, 0, "")
		pdf.CellFormat(0, lineHeight, line.LineTotal().StringFixed(2), "", 1, "R", false, 0, "")
	}

	pdf.Ln(lineHeight / 2)
	pdf.CellFormat(120, lineHeight, "Subtotal", "T", 0, "L", false, 0, "")
	pdf.CellFormat(0, lineHeight, order.Subtotal.StringFixed(2), "T", 1, "R", false, 0, "")

	pdf.CellFormat(120, lineHeight, "Tax (10%)", "", 0, "L", false, 0, "")
	pdf.CellFormat(0, lineHeight, order.Tax.StringFixed(2), "", 1, "R", false, 0, "")

	pdf.SetFont("Helvetica", "B", 11)
	pdf.CellFormat(120, lineHeight, "Total", "", 0, "L", false, 0, "")
	pdf.CellFormat(0, lineHeight, order.Total.StringFixed(2), "", 1, "R", false, 0, "")

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("failed to render invoice: %w", err)
	}

	return buf.Bytes(), nil
}
