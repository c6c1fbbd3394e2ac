package export

import (
	_ "embed"
	"io"
	"strings"
	"unicode"

	"github.com/go-pdf/fpdf"
	"github.com/muesli/reflow/wordwrap"
	"github.com/muesli/reflow/wrap"
	"github.com/neilberkman/supportchat/internal/core/models"
)

// DejaVu covers Latin and the Arabic block; the PDF core fonts are cp1252 only
//
//go:embed fonts/DejaVuSansCondensed.ttf
var dejaVuSans []byte

const pdfFont = "DejaVu"

const (
	pdfWrapColumns = 90
	pdfPageBreakY  = 280.0 // mm
	pdfMarginLeft  = 10.0
	pdfMarginTop   = 10.0
	pdfLineHeight  = 6.0
	pdfFontSize    = 11
	pdfTitleSize   = 14
)

// PDFExporter exports documents as paginated A4 PDFs
type PDFExporter struct{}

// Export exports a document to PDF
func (e *PDFExporter) Export(doc Document, w io.Writer) error {
	return buildPDF(doc).Output(w)
}

// Extension returns the file extension for this format
func (e *PDFExporter) Extension() string {
	return "pdf"
}

func buildPDF(doc Document) *fpdf.Fpdf {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(pdfMarginLeft, pdfMarginTop, pdfMarginLeft)
	pdf.SetAutoPageBreak(false, 0)
	pdf.SetCreationDate(doc.ExportedAt)
	pdf.SetModificationDate(doc.ExportedAt)
	pdf.SetTitle(doc.Heading, true)

	pdf.AddUTF8FontFromBytes(pdfFont, "", dejaVuSans)

	pdf.AddPage()
	pdf.SetFont(pdfFont, "", pdfTitleSize)
	heading, align := pdfLine(doc.Heading)
	pdf.CellFormat(0, pdfLineHeight+2, heading, "", 1, align, false, 0, "")
	pdf.Ln(pdfLineHeight / 2)

	pdf.SetFont(pdfFont, "", pdfFontSize)
	put := func(text, align string) {
		if pdf.GetY() > pdfPageBreakY {
			pdf.AddPage()
		}
		pdf.CellFormat(0, pdfLineHeight, text, "", 1, align, false, 0, "")
	}
	for _, l := range doc.Lines {
		if dir, _ := models.DetectDirection(l.Text); dir == models.RTL {
			// right-aligned block under its own label, as on screen
			put(l.Label+":", "R")
			for _, line := range wrapLines(l.Text, pdfWrapColumns) {
				put(visualOrder(line), "R")
			}
			continue
		}
		for _, line := range wrapLines(l.Label+": "+l.Text, pdfWrapColumns) {
			put(line, "L")
		}
	}
	return pdf
}

func pdfLine(text string) (string, string) {
	if dir, _ := models.DetectDirection(text); dir == models.RTL {
		return visualOrder(text), "R"
	}
	return text, "L"
}

// visualOrder lays out one line of a right-to-left paragraph left to right,
// the order fpdf draws in. Arabic runs are reversed and the runs are placed
// right to left; Latin words and digits keep their own order. Neutral runes
// between two left-to-right runes stay with them. Letters are not shaped
// into their joined forms.
func visualOrder(line string) string {
	runes := []rune(line)
	ltr := make([]bool, len(runes))
	strong := make([]int8, len(runes)) // 1 ltr, -1 rtl, 0 neutral
	for i, r := range runes {
		switch {
		case models.IsRTLRune(r):
			strong[i] = -1
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			strong[i] = 1
		}
	}
	for i := range runes {
		if strong[i] != 0 {
			ltr[i] = strong[i] > 0
			continue
		}
		prev, next := int8(-1), int8(-1)
		for j := i - 1; j >= 0; j-- {
			if strong[j] != 0 {
				prev = strong[j]
				break
			}
		}
		for j := i + 1; j < len(runes); j++ {
			if strong[j] != 0 {
				next = strong[j]
				break
			}
		}
		ltr[i] = prev > 0 && next > 0
	}

	var runs [][]rune
	for i := 0; i < len(runes); {
		j := i
		for j < len(runes) && ltr[j] == ltr[i] {
			j++
		}
		run := append([]rune(nil), runes[i:j]...)
		if !ltr[i] {
			for a, b := 0, len(run)-1; a < b; a, b = a+1, b-1 {
				run[a], run[b] = run[b], run[a]
			}
		}
		runs = append(runs, run)
		i = j
	}

	var b strings.Builder
	for i := len(runs) - 1; i >= 0; i-- {
		b.WriteString(string(runs[i]))
	}
	return b.String()
}

// wrapLines word-wraps text at width columns and hard-wraps words that are
// longer than a line
func wrapLines(text string, width int) []string {
	wrapped := wrap.String(wordwrap.String(text, width), width)
	return strings.Split(wrapped, "\n")
}
