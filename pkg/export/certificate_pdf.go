package export

import (
	"bytes"
	"fmt"
	"time"

	"github.com/jung-kurt/gofpdf"
)

// CertificateData carries the fields rendered onto a participation
// certificate.
type CertificateData struct {
	ParticipantName string
	EventTitle      string
	EventDate       time.Time
	EventLocation   string
	EventSpeaker    string
	Institution     string
	IssuedAt        time.Time
}

// CertificateRenderer produces participation certificates as PDF documents.
type CertificateRenderer struct{}

// NewCertificateRenderer constructs a certificate renderer.
func NewCertificateRenderer() *CertificateRenderer {
	return &CertificateRenderer{}
}

// Render builds the certificate PDF and returns its bytes.
func (r *CertificateRenderer) Render(data CertificateData) ([]byte, error) {
	if data.ParticipantName == "" {
		return nil, fmt.Errorf("certificate requires a participant name")
	}
	if data.EventTitle == "" {
		return nil, fmt.Errorf("certificate requires an event title")
	}

	pdf := gofpdf.New("L", "mm", "A4", "")
	pdf.SetMargins(20, 30, 20)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 24)
	pdf.SetTextColor(0, 0, 139)
	pdf.CellFormat(0, 14, "CERTIFICATE OF PARTICIPATION", "", 1, "C", false, 0, "")
	pdf.Ln(8)

	pdf.SetTextColor(0, 0, 0)
	pdf.SetFont("Helvetica", "", 14)
	pdf.CellFormat(0, 8, "This is to certify that", "", 1, "C", false, 0, "")
	pdf.Ln(4)

	pdf.SetFont("Helvetica", "B", 18)
	pdf.CellFormat(0, 10, data.ParticipantName, "", 1, "C", false, 0, "")
	pdf.Ln(6)

	body := fmt.Sprintf("participated in the event \"%s\", held on %s at %s, in %s.",
		data.EventTitle,
		data.EventDate.Format("January 2, 2006"),
		data.EventDate.Format("15:04"),
		data.EventLocation,
	)
	if data.EventSpeaker != "" {
		body += fmt.Sprintf(" The event was conducted by %s.", data.EventSpeaker)
	}
	pdf.SetFont("Helvetica", "", 13)
	pdf.MultiCell(0, 7, body, "", "C", false)
	pdf.Ln(12)

	pdf.SetFont("Helvetica", "B", 12)
	pdf.CellFormat(0, 7, data.Institution, "", 1, "C", false, 0, "")

	issued := data.IssuedAt
	if issued.IsZero() {
		issued = time.Now()
	}
	pdf.SetFont("Helvetica", "", 11)
	pdf.CellFormat(0, 7, "Issued on "+issued.Format("January 2, 2006"), "", 1, "C", false, 0, "")
	pdf.Ln(14)

	pdf.CellFormat(0, 6, "____________________________________", "", 1, "C", false, 0, "")
	pdf.CellFormat(0, 6, "Authorized signature", "", 1, "C", false, 0, "")

	buf := &bytes.Buffer{}
	if err := pdf.Output(buf); err != nil {
		return nil, fmt.Errorf("render certificate pdf: %w", err)
	}
	return buf.Bytes(), nil
}
