package domain

import "time"

const (
	PlatformTelegram = "telegram"
	PlatformDiscord  = "discord"
)

type User struct {
	ID         int       `db:"id"`
	Platform   string    `db:"platform"`
	PlatformID string    `db:"platform_id"`
	WalletURL  *string   `db:"wallet_url"`
	CreatedAt  time.Time `db:"created_at"`
}

// HasWallet reports whether the user has an NWC credential on file.
func (u *User) HasWallet() bool {
	return u != nil && u.WalletURL != nil && *u.WalletURL != ""
}

type Invoice struct {
	ID               string     `db:"id"`
	UserID           int        `db:"user_id"`
	Amount           int64      `db:"amount"`
	Description      string     `db:"description"`
	ClientName       string     `db:"client_name"`
	ClientEmail      string     `db:"client_email"`
	Status           string     `db:"status"`
	LightningInvoice string     `db:"lightning_invoice"`
	PaymentHash      *string    `db:"payment_hash"`
	CreatedAt        time.Time  `db:"created_at"`
	PaidAt           *time.Time `db:"paid_at"`
}

type UserStats struct {
	TotalInvoices int   `db:"total_invoices"`
	PaidInvoices  int   `db:"paid_invoices"`
	TotalEarned   int64 `db:"total_earned"`
}
