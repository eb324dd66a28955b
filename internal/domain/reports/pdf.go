package reports

import (
	"fmt"
	"io"

	"github.com/jung-kurt/gofpdf"
	"github.com/m-mizutani/goerr/v2"

	"workforce/internal/domain/compliance"
)

var pdfColumns = []struct {
	title string
	width float64
	index int
}{
	{"Employee", 55, 1},
	{"Line", 20, 2},
	{"Requirement", 60, 5},
	{"Valid to", 25, 8},
	{"Status", 22, 9},
	{"Days", 15, 10},
}

// WriteMatrixPDF renders the matrix as a landscape table with the bucket counts on top.
func WriteMatrixPDF(w io.Writer, m compliance.Matrix, style compliance.NameStyle) error {
	summary := compliance.Aggregate(m.Items, 0)

	pdf := gofpdf.New("L", "mm", "A4", "")
	pdf.SetTitle("Compliance matrix "+m.AsOf.String(), false)
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.AddPage()
	pdf.SetFont("Helvetica", "B", 16)
	pdf.Cell(0, 10, "Compliance matrix")
	pdf.Ln(10)
	pdf.SetFont("Helvetica", "", 11)
	pdf.Cell(0, 7, fmt.Sprintf("As of %s: %d employees, %d items", m.AsOf, summary.Employees, summary.Items))
	pdf.Ln(6)
	counts := summary.ItemsByStatus
	pdf.Cell(0, 7, fmt.Sprintf("%s %d, %s %d, missing %d, valid %d, waived %d",
		compliance.StatusOverdue.Label(style), counts.Overdue,
		compliance.StatusExpiring.Label(style), counts.Expiring,
		counts.Missing, counts.Valid, counts.Waived))
	pdf.Ln(10)

	header := func() {
		pdf.SetFont("Helvetica", "B", 10)
		pdf.SetFillColor(230, 230, 230)
		for _, col := range pdfColumns {
			pdf.CellFormat(col.width, 7, col.title, "1", 0, "L", true, 0, "")
		}
		pdf.Ln(-1)
		pdf.SetFont("Helvetica", "", 9)
	}
	header()

	_, pageHeight := pdf.GetPageSize()
	_, _, _, bottom := pdf.GetMargins()
	for _, row := range MatrixRows(m, style) {
		if pdf.GetY()+6 > pageHeight-bottom {
			pdf.AddPage()
			header()
		}
		for _, col := range pdfColumns {
			text := row[col.index]
			if col.index == 5 {
				text = fmt.Sprintf("%s (%s)", row[5], row[4])
			}
			pdf.CellFormat(col.width, 6, tr(text), "1", 0, "L", false, 0, "")
		}
		pdf.Ln(-1)
	}

	if err := pdf.Output(w); err != nil {
		return goerr.Wrap(err, "failed to render matrix pdf")
	}
	return nil
}
