package service

import (
	"bytes"
	"fmt"

	"skillsnap_backend/internal/model"
	"skillsnap_backend/internal/util"

	"github.com/go-pdf/fpdf"
)

// PDFRenderer 生成单页 A4 横版证书
type PDFRenderer struct {
	Title string
}

func NewPDFRenderer(title string) *PDFRenderer {
	if title == "" {
		title = "Certificate of Achievement"
	}
	return &PDFRenderer{Title: title}
}

func (r *PDFRenderer) Render(c *model.Certificate) ([]byte, error) {
	pdf := fpdf.New("L", "mm", "A4", "")
	pdf.SetTitle(r.Title, true)
	pdf.SetMargins(20, 20, 20)
	pdf.SetAutoPageBreak(false, 0)
	pdf.AddPage()

	// 内置字体只支持 cp1252
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	w, h := pdf.GetPageSize()
	pdf.SetLineWidth(1.2)
	pdf.Rect(10, 10, w-20, h-20, "D")

	pdf.SetY(40)
	pdf.SetFont("Helvetica", "B", 30)
	pdf.CellFormat(0, 16, tr(r.Title), "", 1, "C", false, 0, "")

	pdf.Ln(10)
	pdf.SetFont("Helvetica", "", 14)
	pdf.CellFormat(0, 10, "This certifies that", "", 1, "C", false, 0, "")

	pdf.SetFont("Helvetica", "B", 24)
	pdf.CellFormat(0, 14, tr(c.UserName), "", 1, "C", false, 0, "")

	pdf.SetFont("Helvetica", "", 14)
	pdf.CellFormat(0, 10, "has successfully completed the assessment", "", 1, "C", false, 0, "")

	pdf.SetFont("Helvetica", "B", 20)
	pdf.CellFormat(0, 12, tr(c.SkillName), "", 1, "C", false, 0, "")

	pdf.SetY(h - 45)
	pdf.SetFont("Helvetica", "", 11)
	pdf.CellFormat(0, 7, fmt.Sprintf("Issued on %s", c.IssuedAt.Format(util.DateFormat)), "", 1, "C", false, 0, "")
	pdf.CellFormat(0, 7, tr(fmt.Sprintf("Verification ID: %s", c.VerifiedID)), "", 1, "C", false, 0, "")

	if err := pdf.Error(); err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
