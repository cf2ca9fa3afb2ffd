// confirmation.go renders the A4 membership confirmation letter sent with the
// approval email.
package pdf

import (
	"bytes"
	"fmt"
	"time"

	"github.com/go-pdf/fpdf"
)

// ConfirmationData carries the member fields printed on the confirmation letter.
type ConfirmationData struct {
	FullName     string
	Email        string
	QuicklookID  string
	City         string
	Organization string
	MemberNumber string
	JoinedAt     time.Time
}

// ConfirmationLetter renders the confirmation letter and returns the PDF bytes.
func ConfirmationLetter(d *ConfirmationData) ([]byte, error) {
	doc := fpdf.New("P", "mm", "A4", "")
	doc.SetTitle("Potvrda o clanstvu", false)
	doc.AddPage()
	pageW, _ := doc.GetPageSize()

	doc.SetFont("Helvetica", "B", 20)
	doc.Text(70, 35, "POTVRDA O CLANSTVU")

	doc.SetLineWidth(0.7)
	doc.Line(18, 46, pageW-18, 46)

	joined := "-"
	if !d.JoinedAt.IsZero() {
		joined = d.JoinedAt.Format("02.01.2006.")
	}

	rows := []struct {
		label string
		value string
	}{
		{"Ime i prezime:", d.FullName},
		{"Quicklook ID:", d.QuicklookID},
		{"Organizacija:", d.Organization},
		{"Mesto:", d.City},
		{"Datum uclanjenja:", joined},
		{"Status:", "Aktivan"},
		{"Email:", d.Email},
		{"Clanski broj:", d.MemberNumber},
	}

	y := 64.0
	for _, row := range rows {
		doc.SetFont("Helvetica", "B", 12)
		doc.Text(28, y, toASCII(row.label))
		doc.SetFont("Helvetica", "", 12)
		doc.Text(78, y, toASCII(row.value))
		y += 10
	}

	doc.SetLineWidth(0.35)
	doc.Line(18, 262, pageW-18, 262)

	doc.SetFont("Helvetica", "", 11)
	doc.Text(28, 244, "S postovanjem,")
	doc.SetFont("Helvetica", "B", 12)
	doc.Text(28, 252, "Sindikat Radnika NCR Atleos Beograd")
	doc.SetFont("Helvetica", "", 10)
	doc.Text(140, 272, fmt.Sprintf("Datum izdavanja: %s", time.Now().Format("02.01.2006.")))

	var buf bytes.Buffer
	if err := doc.Output(&buf); err != nil {
		return nil, fmt.Errorf("render confirmation letter: %w", err)
	}
	return buf.Bytes(), nil
}
