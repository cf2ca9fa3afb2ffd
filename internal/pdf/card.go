// card.go renders membership cards at credit-card size (85.6 x 53.98 mm), one
// per page for the approval email or six to an A4 sheet for batch printing.
// Each card carries a QR code encoding the member identity.
package pdf

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/go-pdf/fpdf"
	qrcode "github.com/skip2/go-qrcode"
)

const (
	cardWidth  = 85.6
	cardHeight = 53.98
)

// CardData carries the member fields printed on one membership card.
type CardData struct {
	FirstName    string
	LastName     string
	MemberNumber string
	JoinedAt     time.Time
}

// qrPayload is the machine-readable identity encoded on the card.
func qrPayload(d *CardData) string {
	return fmt.Sprintf("MEMBER_ID:%s|NAME:%s|LASTNAME:%s", d.MemberNumber, d.FirstName, d.LastName)
}

// MembershipCard renders a single card on a card-sized page with a 10mm margin.
func MembershipCard(d *CardData) ([]byte, error) {
	doc := fpdf.NewCustom(&fpdf.InitType{
		OrientationStr: "L",
		UnitStr:        "mm",
		Size:           fpdf.SizeType{Wd: cardWidth + 20, Ht: cardHeight + 20},
	})
	doc.SetTitle("Clanska karta", false)
	doc.AddPage()

	if err := drawCard(doc, 10, 10, d, 0); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := doc.Output(&buf); err != nil {
		return nil, fmt.Errorf("render membership card: %w", err)
	}
	return buf.Bytes(), nil
}

// MembershipCardSheet lays cards out two across, three down per A4 page.
func MembershipCardSheet(members []*CardData) ([]byte, error) {
	if len(members) == 0 {
		return nil, fmt.Errorf("no members to render")
	}

	doc := fpdf.New("P", "mm", "A4", "")
	doc.SetTitle("Clanske karte", false)

	const (
		perRow  = 2
		perPage = 6
		marginX = 12.0
		marginY = 15.0
		gapX    = 8.0
		gapY    = 10.0
	)

	for i, d := range members {
		slot := i % perPage
		if slot == 0 {
			doc.AddPage()
		}
		row := slot / perRow
		col := slot % perRow

		x := marginX + float64(col)*(cardWidth+gapX)
		y := marginY + float64(row)*(cardHeight+gapY)
		if err := drawCard(doc, x, y, d, i); err != nil {
			return nil, err
		}
	}

	var buf bytes.Buffer
	if err := doc.Output(&buf); err != nil {
		return nil, fmt.Errorf("render card sheet: %w", err)
	}
	return buf.Bytes(), nil
}

// drawCard draws one card with its top-left corner at (x, y). The index keys
// the registered QR image so cards on a shared page get distinct images.
func drawCard(doc *fpdf.Fpdf, x, y float64, d *CardData, index int) error {
	doc.SetFillColor(255, 255, 255)
	doc.SetDrawColor(224, 224, 224)
	doc.SetLineWidth(0.4)
	doc.RoundedRect(x, y, cardWidth, cardHeight, 4, "1234", "FD")

	doc.SetTextColor(26, 77, 110)
	doc.SetFont("Helvetica", "B", 11)
	doc.Text(x+7, y+9, "SINDIKAT RADNIKA")
	doc.SetFont("Helvetica", "B", 7)
	doc.Text(x+7, y+13.5, "NCR ATLEOS - BEOGRAD")

	png, err := qrcode.Encode(qrPayload(d), qrcode.Medium, 256)
	if err != nil {
		return fmt.Errorf("encode qr code: %w", err)
	}
	imgName := fmt.Sprintf("qr-%s-%d", d.MemberNumber, index)
	opts := fpdf.ImageOptions{ImageType: "PNG"}
	doc.RegisterImageOptionsReader(imgName, opts, bytes.NewReader(png))

	const qrSize = 17.0
	doc.ImageOptions(imgName, x+cardWidth-qrSize-1.5, y+cardHeight-qrSize-3, qrSize, qrSize, false, opts, 0, "")

	infoY := y + 30
	doc.SetFont("Helvetica", "", 7)
	doc.Text(x+8, infoY, "IME I PREZIME:")
	doc.SetFont("Helvetica", "B", 11)
	fullName := strings.ToUpper(toASCII(d.FirstName + " " + d.LastName))
	doc.Text(x+8, infoY+5, fullName)

	doc.SetFont("Helvetica", "", 7)
	doc.Text(x+8, infoY+11, "BROJ CLANSKE KARTE:")
	doc.SetFont("Helvetica", "B", 10)
	doc.Text(x+8, infoY+16, d.MemberNumber)

	doc.SetFont("Helvetica", "", 7)
	doc.Text(x+8, infoY+21.5, "UCLANJEN:")
	doc.SetFont("Helvetica", "B", 7)
	joined := "-"
	if !d.JoinedAt.IsZero() {
		joined = d.JoinedAt.Format("01/2006")
	}
	doc.Text(x+22, infoY+21.5, joined)

	return nil
}
