package pdf

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-pdf/fpdf"
	qrcode "github.com/skip2/go-qrcode"
	"go.uber.org/zap"

	"github.com/quickvoicy/quickvoicy/internal/domain"
	"github.com/quickvoicy/quickvoicy/internal/service/invoiceservice"
)

const qrSize = 512

// Generator renders invoice PDFs into a scratch directory. Files are
// transient: callers send them to the chat and then Cleanup them.
type Generator struct {
	dir string
}

func New(dir string) (*Generator, error) {
	if dir == "" {
		dir = filepath.Join(os.TempDir(), "quickvoicy")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("can't create pdf dir: %w", err)
	}
	return &Generator{dir: dir}, nil
}

// Generate writes the invoice document and returns its path.
func (g *Generator) Generate(inv *domain.Invoice) (string, error) {
	doc := fpdf.New("P", "mm", "A4", "")
	doc.AddPage()

	// Header
	doc.SetFont("Helvetica", "B", 24)
	doc.SetTextColor(255, 193, 7)
	doc.CellFormat(0, 12, "Quickvoicy", "", 1, "L", false, 0, "")

	doc.SetTextColor(0, 0, 0)
	doc.SetFont("Helvetica", "", 12)
	doc.Ln(4)
	doc.CellFormat(0, 6, fmt.Sprintf("Invoice #%s", inv.ID), "", 1, "L", false, 0, "")
	doc.CellFormat(0, 6, fmt.Sprintf("Date: %s", inv.CreatedAt.Format("02 Jan 2006")), "", 1, "L", false, 0, "")

	// Client block
	doc.Ln(6)
	doc.SetFont("Helvetica", "B", 14)
	doc.CellFormat(0, 7, "Bill To:", "", 1, "L", false, 0, "")
	doc.SetFont("Helvetica", "", 12)
	doc.CellFormat(0, 6, inv.ClientName, "", 1, "L", false, 0, "")
	if inv.ClientEmail != "" {
		doc.CellFormat(0, 6, inv.ClientEmail, "", 1, "L", false, 0, "")
	}

	doc.Ln(6)
	doc.SetFont("Helvetica", "B", 14)
	doc.CellFormat(0, 7, "Description:", "", 1, "L", false, 0, "")
	doc.SetFont("Helvetica", "", 12)
	doc.MultiCell(0, 6, inv.Description, "", "L", false)

	doc.Ln(4)
	doc.SetFont("Helvetica", "B", 16)
	doc.CellFormat(0, 8, fmt.Sprintf("Amount: %d sats", inv.Amount), "", 1, "L", false, 0, "")

	if inv.LightningInvoice != "" {
		png, err := qrcode.Encode(inv.LightningInvoice, qrcode.Medium, qrSize)
		if err != nil {
			return "", fmt.Errorf("can't encode payment QR: %w", err)
		}
		opts := fpdf.ImageOptions{ImageType: "PNG"}
		doc.RegisterImageOptionsReader("payment-qr", opts, bytes.NewReader(png))
		doc.ImageOptions("payment-qr", 15, doc.GetY()+6, 60, 60, false, opts, 0, "")
		doc.SetY(doc.GetY() + 70)
		doc.SetFont("Helvetica", "", 10)
		doc.CellFormat(0, 5, "Scan to pay with Lightning", "", 1, "L", false, 0, "")
	}

	doc.Ln(6)
	doc.SetFont("Helvetica", "B", 12)
	if inv.Status == invoiceservice.StatusPaid {
		doc.SetTextColor(0, 160, 0)
	} else {
		doc.SetTextColor(200, 0, 0)
	}
	doc.CellFormat(0, 6, fmt.Sprintf("Status: %s", statusLabel(inv.Status)), "", 1, "L", false, 0, "")

	path := filepath.Join(g.dir, fmt.Sprintf("invoice-%s.pdf", inv.ID))
	if err := doc.OutputFileAndClose(path); err != nil {
		return "", fmt.Errorf("can't write invoice pdf: %w", err)
	}
	return path, nil
}

// Cleanup removes a rendered artifact. Missing files are fine.
func (g *Generator) Cleanup(path string) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		zap.L().Warn("can't remove invoice pdf", zap.String("path", path), zap.Error(err))
	}
}

func statusLabel(status string) string {
	if status == invoiceservice.StatusPaid {
		return "PAID"
	}
	return "PENDING"
}
