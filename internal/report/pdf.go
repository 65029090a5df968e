package report

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"github.com/signintech/gopdf"

	"neuro-triage/internal/assessment"
)

var ErrFontUnavailable = errors.New("no TTF font available for PDF rendering")

// DefaultFontPaths covers the DejaVu locations of Alpine and Debian images.
var DefaultFontPaths = []string{
	"/usr/share/fonts/ttf-dejavu/DejaVuSans.ttf",
	"/usr/share/fonts/dejavu/DejaVuSans.ttf",
	"/usr/share/fonts/truetype/dejavu/DejaVuSans.ttf",
}

const (
	fontName     = "DejaVu"
	pageMargin   = 40.0
	contentWidth = 515.0
	pageBottom   = 790.0
)

// pdfWriter tracks the cursor and starts a new page when it runs out of room.
type pdfWriter struct {
	pdf *gopdf.GoPdf
	err error
}

func (w *pdfWriter) font(size float64) {
	if w.err == nil {
		w.err = w.pdf.SetFont(fontName, "", size)
	}
}

func (w *pdfWriter) line(text string, height float64) {
	if w.err != nil {
		return
	}
	lines, err := w.pdf.SplitText(text, contentWidth)
	if err != nil {
		// SplitText rejects empty strings.
		lines = []string{text}
	}
	for _, l := range lines {
		if w.pdf.GetY()+height > pageBottom {
			w.pdf.AddPage()
			w.pdf.SetY(pageMargin)
		}
		w.pdf.SetX(pageMargin)
		if err := w.pdf.Cell(nil, l); err != nil {
			w.err = err
			return
		}
		w.pdf.Br(height)
	}
}

func (w *pdfWriter) section(title string) {
	w.pdf.Br(8)
	w.font(14)
	w.line(title, 18)
	w.font(11)
}

// RenderPDF lays out one assessment as an A4 summary.
func (s *Service) RenderPDF(a assessment.Assessment) ([]byte, error) {
	pdf := &gopdf.GoPdf{}
	pdf.Start(gopdf.Config{PageSize: *gopdf.PageSizeA4})
	pdf.AddPage()

	if err := s.loadFont(pdf); err != nil {
		return nil, err
	}
	pdf.SetY(pageMargin)
	w := &pdfWriter{pdf: pdf}

	w.font(20)
	w.line("Stroke Triage Summary", 28)

	w.font(11)
	w.line(fmt.Sprintf("Assessment: %s", a.ID), 15)
	w.line(fmt.Sprintf("Date: %s", a.CreatedAt.Format("02.01.2006 15:04 MST")), 15)
	w.line(fmt.Sprintf("Age: %d   Severity: %s   Onset: %.1f h", a.Patient.Age, a.Patient.Severity, a.Patient.OnsetHours), 15)

	w.section("Triage level")
	w.font(16)
	w.line(string(a.Verdict), 20)
	w.font(11)

	w.section("Reported symptoms")
	if len(a.Symptoms) == 0 {
		w.line("- None selected.", 14)
	}
	for _, sym := range a.Symptoms {
		w.line("- "+sym, 14)
	}
	if a.Notes != "" {
		w.line("Notes: "+a.Notes, 14)
	}

	w.section("Recommendations")
	for _, l := range a.Recommendations.Lines {
		w.line("- "+l, 14)
	}

	w.section("Recovery plan")
	for _, step := range a.Plan {
		w.line(fmt.Sprintf("%s: %s", step.Week, step.Activity), 14)
	}

	w.section("SOAP summary")
	for _, f := range []struct{ label, text string }{
		{"S", a.SOAP.Subjective},
		{"O", a.SOAP.Objective},
		{"A", a.SOAP.Assessment},
		{"P", a.SOAP.Plan},
	} {
		text := strings.TrimSpace(f.text)
		if text == "" {
			text = "-"
		}
		w.line(fmt.Sprintf("%s: %s", f.label, text), 14)
	}
	if a.Notice != "" {
		w.line(a.Notice, 14)
	}

	w.pdf.Br(12)
	w.font(9)
	w.line(assessment.Disclaimer, 12)

	if w.err != nil {
		return nil, fmt.Errorf("failed to render PDF: %w", w.err)
	}

	var buf bytes.Buffer
	if _, err := pdf.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("failed to write PDF: %w", err)
	}
	return buf.Bytes(), nil
}

func (s *Service) loadFont(pdf *gopdf.GoPdf) error {
	var lastErr error
	for _, path := range s.fontPaths {
		if err := pdf.AddTTFFont(fontName, path); err != nil {
			lastErr = err
			continue
		}
		return nil
	}
	if lastErr == nil {
		return ErrFontUnavailable
	}
	return fmt.Errorf("%w: %v", ErrFontUnavailable, lastErr)
}
