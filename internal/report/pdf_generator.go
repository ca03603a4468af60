package report

import (
	"bytes"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/jung-kurt/gofpdf"

	"github.com/user/arccheck_drc_go/internal/analysis"
	perr "github.com/user/arccheck_drc_go/internal/platform/errors"
	"github.com/user/arccheck_drc_go/internal/platform/logger"
)

const (
	inchToMm               = 25.4
	pdfPageWidthLandscape  = 11 * inchToMm // Letter landscape
	pdfPageHeightLandscape = 8.5 * inchToMm
	pdfMargin              = 0.5 * inchToMm
	pdfContentWidth        = pdfPageWidthLandscape - (2 * pdfMargin)
)

// Plot keys understood by BuildPDFReport.
const (
	PlotRelativeChange = "heatmap_relative_change"
	PlotCorrectedDose  = "heatmap_corrected_dose"
	PlotDoseCurve      = "line_dose_curve"
	PlotHistogram      = "bar_dose_rate_histogram"
)

// Metadata describes the run on the report's first page.
type Metadata struct {
	RunID           string
	Model           string
	MeasurementFile string
	CalibrationFile string
	Frames          int
	Generated       time.Time
	Header          [][2]string // measurement header key/value pairs, file order
}

// pdfStyler holds reusable styling and state for PDF generation
type pdfStyler struct {
	pdf         *gofpdf.Fpdf
	styles      map[string]func()
	lineHeight  float64
	currentY    float64
	pageHeight  float64
	contentTopY float64
}

func newPDFStyler(pdf *gofpdf.Fpdf) *pdfStyler {
	s := &pdfStyler{
		pdf:         pdf,
		styles:      make(map[string]func()),
		lineHeight:  6, // mm
		pageHeight:  pdfPageHeightLandscape - pdfMargin,
		contentTopY: pdfMargin,
	}
	s.currentY = s.contentTopY
	s.defineStyles()
	return s
}

func (s *pdfStyler) defineStyles() {
	s.styles["h1"] = func() {
		s.pdf.SetFont("Arial", "B", 16)
		s.pdf.SetTextColor(0, 0, 0)
	}
	s.styles["h2"] = func() {
		s.pdf.SetFont("Arial", "B", 14)
		s.pdf.SetTextColor(0, 0, 0)
	}
	s.styles["normal"] = func() {
		s.pdf.SetFont("Arial", "", 10)
		s.pdf.SetTextColor(0, 0, 0)
	}
	s.styles["tableHeader"] = func() {
		s.pdf.SetFont("Arial", "B", 9)
		s.pdf.SetFillColor(200, 200, 200)
		s.pdf.SetTextColor(0, 0, 0)
	}
	s.styles["tableCell"] = func() {
		s.pdf.SetFont("Arial", "", 9)
		s.pdf.SetTextColor(50, 50, 50)
	}
	s.styles["tableCellRed"] = func() { // negative change
		s.pdf.SetFont("Arial", "B", 9)
		s.pdf.SetTextColor(200, 0, 0)
	}
}

func (s *pdfStyler) applyStyle(styleName string) {
	if fn, ok := s.styles[styleName]; ok {
		fn()
	} else {
		s.styles["normal"]()
	}
}

func (s *pdfStyler) newPage() {
	s.pdf.AddPage()
	s.currentY = s.contentTopY
}

func (s *pdfStyler) checkAddPage(neededHeight float64) {
	if s.currentY+neededHeight > s.pageHeight {
		s.newPage()
	}
}

func (s *pdfStyler) writeParagraph(text string, styleName string, align string) {
	s.applyStyle(styleName)
	lines := len(s.pdf.SplitLines([]byte(text), pdfContentWidth))
	s.checkAddPage(float64(max(lines, 1)) * s.lineHeight)

	s.pdf.SetXY(pdfMargin, s.currentY)
	s.pdf.MultiCell(pdfContentWidth, s.lineHeight, text, "", align, false)
	s.currentY = s.pdf.GetY() + 1
}

func (s *pdfStyler) addSpacer(height float64) {
	s.checkAddPage(height)
	s.currentY += height
}

func (s *pdfStyler) addImage(imageBytes []byte, imageName string, width, height float64, caption string) {
	s.pdf.RegisterImageOptionsReader(imageName, gofpdf.ImageOptions{ImageType: "PNG"}, bytes.NewReader(imageBytes))

	if width > pdfContentWidth {
		ratio := pdfContentWidth / width
		width = pdfContentWidth
		height *= ratio
	}
	captionHeight := 0.0
	if caption != "" {
		captionHeight = s.lineHeight + 1
	}
	s.checkAddPage(height + captionHeight)

	x := pdfMargin + (pdfContentWidth-width)/2
	s.pdf.ImageOptions(imageName, x, s.currentY, width, height, false, gofpdf.ImageOptions{ImageType: "PNG"}, 0, "")
	s.currentY += height

	if caption != "" {
		s.addSpacer(1)
		s.writeParagraph(caption, "normal", "C")
	}
	s.addSpacer(2)
}

// table draws a header row and body rows. cellStyle picks the style of a
// body cell.
func (s *pdfStyler) table(headers []string, widthsRel []float64, rows [][]string, cellStyle func(row, col int) string) {
	widths := make([]float64, len(widthsRel))
	for i, rel := range widthsRel {
		widths[i] = rel * pdfContentWidth
	}
	header := func() {
		s.applyStyle("tableHeader")
		x := pdfMargin
		for i, h := range headers {
			s.pdf.SetXY(x, s.currentY)
			s.pdf.CellFormat(widths[i], s.lineHeight, h, "1", 0, "C", true, 0, "")
			x += widths[i]
		}
		s.currentY += s.lineHeight
	}

	s.checkAddPage(s.lineHeight * float64(min(len(rows), 10)+1))
	header()
	for r, row := range rows {
		if s.currentY+s.lineHeight > s.pageHeight {
			s.newPage()
			header()
		}
		x := pdfMargin
		for c, cell := range row {
			s.applyStyle(cellStyle(r, c))
			s.pdf.SetXY(x, s.currentY)
			s.pdf.CellFormat(widths[c], s.lineHeight, cell, "1", 0, "C", false, 0, "")
			x += widths[c]
		}
		s.currentY += s.lineHeight
	}
}

func formatValue(v float64, prec int) string {
	if math.IsNaN(v) {
		return "n/a"
	}
	return strconv.FormatFloat(v, 'f', prec, 64)
}

// BuildPDFReport writes a landscape Letter PDF with the run metadata, the
// ten diodes changed most by correction and the rendered plots.
func BuildPDFReport(path string, meta Metadata, summary *analysis.Summary, plotImages map[string][]byte) error {
	pdf := gofpdf.New("L", "mm", "Letter", "")
	pdf.SetMargins(pdfMargin, pdfMargin, pdfMargin)
	pdf.SetAutoPageBreak(false, pdfMargin)
	pdf.SetTitle("ArcCheck dose-rate correction report", true)
	pdf.AddPage()

	styler := newPDFStyler(pdf)
	styler.writeParagraph("ArcCheck Dose-Rate Dependence Correction Report", "h1", "C")
	styler.addSpacer(5)

	generated := meta.Generated
	if generated.IsZero() {
		generated = time.Now()
	}
	info := []string{
		"Run: " + meta.RunID,
		"Detector model: " + meta.Model,
		"Measurement: " + meta.MeasurementFile,
		"Calibration: " + meta.CalibrationFile,
		fmt.Sprintf("Frames: %d", meta.Frames),
		"Generated: " + generated.Format(time.RFC3339),
	}
	styler.writeParagraph(strings.Join(info, "\n"), "normal", "L")
	styler.addSpacer(3)

	if len(meta.Header) > 0 {
		styler.writeParagraph("Measurement Header", "h2", "L")
		rows := make([][]string, len(meta.Header))
		for i, kv := range meta.Header {
			rows[i] = []string{kv[0], kv[1]}
		}
		styler.table([]string{"Key", "Value"}, []float64{0.35, 0.65}, rows,
			func(int, int) string { return "tableCell" })
		styler.addSpacer(5)
	}

	if summary == nil || len(summary.Results) == 0 {
		styler.writeParagraph("No correction results to display.", "normal", "L")
		return finish(pdf, path)
	}

	styler.newPage()
	styler.writeParagraph("Correction Summary", "h2", "L")
	styler.writeParagraph(fmt.Sprintf("Mean relative change: %s %%   Std: %s %%   Range: %s %%",
		formatValue(summary.MeanRelativeChange*100, 3),
		formatValue(summary.StdRelativeChange*100, 3),
		formatValue(summary.RelativeChangeRange*100, 3)), "normal", "L")
	for _, w := range summary.Warnings {
		styler.writeParagraph("Warning: "+w, "normal", "L")
	}
	styler.addSpacer(3)

	byDiode := make(map[int]analysis.DiodeSummary, len(summary.Results))
	for _, r := range summary.Results {
		byDiode[r.Diode] = r
	}

	styler.writeParagraph("Top 10 Diodes by Absolute Change", "h2", "L")
	top := analysis.Top(summary.RankedByChange, 10)
	rows := make([][]string, len(top))
	for i, item := range top {
		r := byDiode[item.Diode]
		rows[i] = []string{
			strconv.Itoa(i + 1),
			strconv.Itoa(r.Diode),
			fmt.Sprintf("%d/%d", r.Row, r.Col),
			formatValue(r.RawFinal, 0),
			formatValue(r.CorrectedFinal, 1),
			formatValue(r.Change, 1),
			formatValue(r.RelativeChange*100, 3),
		}
	}
	styler.table(
		[]string{"Rank", "Diode", "Row/Col", "Raw counts", "Corrected counts", "Change", "Change (%)"},
		[]float64{0.08, 0.1, 0.12, 0.17, 0.19, 0.17, 0.17},
		rows,
		func(r, c int) string {
			if c >= 5 && byDiode[top[r].Diode].Change < 0 {
				return "tableCellRed"
			}
			return "tableCell"
		})
	styler.addSpacer(5)

	plotDefs := []struct {
		Key, Title, Caption string
	}{
		{PlotRelativeChange, "Relative Change", "Relative change of final accumulated counts per diode"},
		{PlotCorrectedDose, "Corrected Dose", "Corrected final dose (cGy) per diode"},
		{PlotDoseCurve, "Dose Curves", "Accumulated dose, raw (dashed) and corrected (solid)"},
		{PlotHistogram, "Dose-Rate Histogram", "Corrected dose delivered per dose-rate interval"},
	}
	imgWidth := pdfContentWidth * 0.9
	for _, pDef := range plotDefs {
		imgBytes, ok := plotImages[pDef.Key]
		if !ok || len(imgBytes) == 0 {
			continue
		}
		styler.newPage()
		styler.writeParagraph(pDef.Title, "h2", "L")
		styler.addImage(imgBytes, pDef.Key, imgWidth, imgWidth/2, pDef.Caption)
	}

	return finish(pdf, path)
}

func finish(pdf *gofpdf.Fpdf, path string) error {
	if err := pdf.OutputFileAndClose(path); err != nil {
		return perr.WithOp(perr.IOf(err, "failed to write PDF report"), path)
	}
	logger.Named("report").Info().Str("path", path).Msg("PDF report written")
	return nil
}
