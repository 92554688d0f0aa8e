package report

import (
	"bytes"
	"fmt"

	"github.com/go-pdf/fpdf"
)

const (
	pageMargin   = 14.0
	contentWidth = 210.0 - 2*pageMargin
)

type rgb struct{ r, g, b int }

var (
	colorInk      = rgb{0x22, 0x22, 0x3b}
	colorAccent   = rgb{0x4a, 0x4e, 0x69}
	colorMuted    = rgb{0x9a, 0x8c, 0x98}
	colorPositive = rgb{0x16, 0xa3, 0x4a}
	colorNegative = rgb{0xdc, 0x26, 0x26}
)

// PDFRenderer lays out a report on A4 pages with the core Helvetica font.
type PDFRenderer struct {
	Currency string
}

func NewPDFRenderer(currency string) *PDFRenderer {
	if currency == "" {
		currency = "IDR"
	}
	return &PDFRenderer{Currency: currency}
}

func (r *PDFRenderer) Render(doc Document) ([]byte, error) {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(pageMargin, pageMargin, pageMargin)
	pdf.SetAutoPageBreak(true, pageMargin)
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pdf.SetFooterFunc(func() {
		pdf.SetY(-12)
		setColor(pdf, colorMuted)
		pdf.SetFont("Helvetica", "", 8)
		pdf.CellFormat(0, 6, "Generated by Split the Bill", "", 0, "C", false, 0, "")
	})
	pdf.AddPage()

	setColor(pdf, colorInk)
	pdf.SetFont("Helvetica", "BU", 20)
	pdf.CellFormat(0, 10, "Expense Report", "", 1, "C", false, 0, "")

	setColor(pdf, colorAccent)
	pdf.SetFont("Helvetica", "", 14)
	pdf.CellFormat(0, 8, tr(doc.GroupName), "", 1, "C", false, 0, "")

	setColor(pdf, colorMuted)
	pdf.SetFont("Helvetica", "", 9)
	subtitle := "Generated: " + doc.GeneratedAt.UTC().Format("02 Jan 2006 15:04 MST")
	if doc.Period != "" {
		subtitle = "Period: " + doc.Period + "   " + subtitle
	}
	pdf.CellFormat(0, 6, subtitle, "", 1, "C", false, 0, "")
	pdf.Ln(2)
	pdf.SetDrawColor(colorAccent.r, colorAccent.g, colorAccent.b)
	pdf.Line(pageMargin, pdf.GetY(), pageMargin+contentWidth, pdf.GetY())
	pdf.Ln(6)

	section(pdf, "Members")
	for _, m := range doc.Members {
		setColor(pdf, colorInk)
		pdf.CellFormat(0, 6, tr(fmt.Sprintf("• %s (%s)", m.Name, m.Role)), "", 1, "L", false, 0, "")
	}
	pdf.Ln(4)

	section(pdf, "Balances")
	for _, m := range doc.Members {
		balance := doc.Balances[m.ID]
		setColor(pdf, colorInk)
		pdf.CellFormat(70, 6, tr("• "+m.Name+":"), "", 0, "L", false, 0, "")
		if balance.IsNegative() {
			setColor(pdf, colorNegative)
		} else {
			setColor(pdf, colorPositive)
		}
		pdf.CellFormat(0, 6, FormatAmount(balance, r.Currency), "", 1, "L", false, 0, "")
	}
	pdf.Ln(4)

	section(pdf, "Expenses")
	if len(doc.Expenses) == 0 {
		setColor(pdf, colorMuted)
		pdf.CellFormat(0, 6, "No expenses recorded.", "", 1, "L", false, 0, "")
	} else {
		r.expenseTable(pdf, tr, doc.Expenses)
	}

	if err := pdf.Error(); err != nil {
		return nil, fmt.Errorf("layout report: %w", err)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("write report: %w", err)
	}
	return buf.Bytes(), nil
}

func (r *PDFRenderer) expenseTable(pdf *fpdf.Fpdf, tr func(string) string, lines []Line) {
	widths := []float64{28, 72, 42, 40}

	setColor(pdf, colorAccent)
	pdf.SetFont("Helvetica", "B", 11)
	for i, header := range []string{"Date", "Title", "Amount", "Paid By"} {
		align := "L"
		if i == 2 {
			align = "R"
		}
		pdf.CellFormat(widths[i], 7, header, "B", 0, align, false, 0, "")
	}
	pdf.Ln(-1)

	setColor(pdf, colorInk)
	pdf.SetFont("Helvetica", "", 10)
	for _, line := range lines {
		paidBy := line.PaidBy
		if paidBy == "" {
			paidBy = "-"
		}
		pdf.CellFormat(widths[0], 6, line.Date.UTC().Format("02/01/2006"), "", 0, "L", false, 0, "")
		pdf.CellFormat(widths[1], 6, tr(truncate(line.Title, 40)), "", 0, "L", false, 0, "")
		pdf.CellFormat(widths[2], 6, FormatAmount(line.Amount, r.Currency), "", 0, "R", false, 0, "")
		pdf.CellFormat(widths[3], 6, tr("  "+truncate(paidBy, 22)), "", 1, "L", false, 0, "")
	}
}

func section(pdf *fpdf.Fpdf, title string) {
	setColor(pdf, colorInk)
	pdf.SetFont("Helvetica", "BU", 13)
	pdf.CellFormat(0, 8, title, "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 11)
}

func setColor(pdf *fpdf.Fpdf, c rgb) {
	pdf.SetTextColor(c.r, c.g, c.b)
}

func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max-1]) + "…"
}
