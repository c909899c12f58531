package pdf

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/quickvoicy/quickvoicy/internal/domain"
	"github.com/quickvoicy/quickvoicy/internal/service/invoiceservice"
)

func TestGenerator_GenerateAndCleanup(t *testing.T) {
	gen, err := New(t.TempDir())
	assert.NoError(t, err)

	inv := &domain.Invoice{
		ID:               "7f3d2a10-0000-4000-8000-000000000000",
		UserID:           1,
		Amount:           5000,
		Description:      "Website development project",
		ClientName:       "Satoshi",
		ClientEmail:      "satoshi@example.com",
		Status:           invoiceservice.StatusPending,
		LightningInvoice: "lnbc50u1p0example",
		CreatedAt:        time.Now(),
	}

	path, err := gen.Generate(inv)
	assert.NoError(t, err)

	info, err := os.Stat(path)
	assert.NoError(t, err)
	assert.Greater(t, info.Size(), int64(0))

	gen.Cleanup(path)
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))

	// Cleaning an already removed file is a no-op.
	gen.Cleanup(path)
}

func TestGenerator_GenerateWithoutLightningInvoice(t *testing.T) {
	gen, err := New(t.TempDir())
	assert.NoError(t, err)

	inv := &domain.Invoice{
		ID:          "no-qr",
		Amount:      100,
		Description: "Consulting",
		ClientName:  "Client",
		Status:      invoiceservice.StatusPaid,
		CreatedAt:   time.Now(),
	}

	path, err := gen.Generate(inv)
	assert.NoError(t, err)
	defer gen.Cleanup(path)

	info, err := os.Stat(path)
	assert.NoError(t, err)
	assert.Greater(t, info.Size(), int64(0))
}
