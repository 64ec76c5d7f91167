// Package ticket prints queue tickets: a one-page PDF with the booking's
// place in line and a signed QR code the car-wash can scan at the bay.
package ticket

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/MS0C54073/CarWashApp-sub000/models"

	"github.com/phpdave11/gofpdf"
	"github.com/skip2/go-qrcode"
)

var ErrBadSignature = errors.New("ticket signature mismatch")

type Printer struct {
	secret []byte
}

func NewPrinter(secret string) *Printer {
	return &Printer{secret: []byte(secret)}
}

// Payload returns queueId|bookingId|position|signature.
func (p *Printer) Payload(e models.QueueEntry) string {
	data := fmt.Sprintf("%s|%s|%d", e.ID, e.BookingID, e.Position)
	return data + "|" + p.sign(data)
}

func (p *Printer) sign(data string) string {
	h := hmac.New(sha256.New, p.secret)
	h.Write([]byte(data))
	return base64.StdEncoding.EncodeToString(h.Sum(nil))
}

// Claim is what a scanned ticket asserts.
type Claim struct {
	QueueID   string
	BookingID string
	Position  int
}

// Verify checks a scanned payload and returns what it claims.
func (p *Printer) Verify(payload string) (Claim, error) {
	parts := strings.Split(payload, "|")
	if len(parts) != 4 {
		return Claim{}, fmt.Errorf("ticket payload has %d fields, want 4", len(parts))
	}
	data := strings.Join(parts[:3], "|")
	if !hmac.Equal([]byte(p.sign(data)), []byte(parts[3])) {
		return Claim{}, ErrBadSignature
	}
	pos, err := strconv.Atoi(parts[2])
	if err != nil {
		return Claim{}, fmt.Errorf("ticket position: %w", err)
	}
	return Claim{QueueID: parts[0], BookingID: parts[1], Position: pos}, nil
}

// Render writes the ticket PDF for e.
func (p *Printer) Render(e models.QueueEntry, b models.Booking) ([]byte, error) {
	qrPNG, err := qrcode.Encode(p.Payload(e), qrcode.Medium, 256)
	if err != nil {
		return nil, fmt.Errorf("encode qr: %w", err)
	}

	pdf := gofpdf.New("P", "mm", "A5", "")
	pdf.AddPage()
	pdf.SetFont("Arial", "B", 18)
	pdf.Cell(0, 10, "Car Wash Queue Ticket")
	pdf.Ln(14)

	pdf.SetFont("Arial", "B", 40)
	pdf.Cell(0, 18, fmt.Sprintf("#%d", e.Position))
	pdf.Ln(22)

	pdf.SetFont("Arial", "", 11)
	lines := []string{
		"Booking: " + b.ID,
		"Car wash: " + e.CarWashID,
		"Estimated start: " + e.EstimatedStartTime.Format(time.Kitchen),
		"Estimated completion: " + e.EstimatedCompletionTime.Format(time.Kitchen),
		fmt.Sprintf("Service duration: %d min", e.ServiceDurationMinutes),
	}
	for _, l := range lines {
		pdf.Cell(0, 8, l)
		pdf.Ln(7)
	}

	opts := gofpdf.ImageOptions{ImageType: "PNG"}
	pdf.RegisterImageOptionsReader("qr", opts, bytes.NewReader(qrPNG))
	pdf.ImageOptions("qr", 45, 110, 55, 55, false, opts, 0, "")

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return buf.Bytes(), nil
}
