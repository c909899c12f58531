package wallet

import (
	"context"
	"errors"
	"fmt"
	"net/url"

	"github.com/nbd-wtf/go-nostr"
)

//go:generate mockgen -source=wallet.go -destination=wallet_mock.go -package=wallet

var (
	// ErrBadCredential means the NWC URI is malformed and no connection
	// was attempted.
	ErrBadCredential = errors.New("invalid wallet connect URI")
	// ErrConnection means the relay behind the credential is unreachable.
	ErrConnection = errors.New("wallet connection failed")
)

// Error is an upstream wallet rejection (NIP-47 error envelope).
type Error struct {
	Code    string
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("wallet error %s: %s", e.Code, e.Message)
}

// Client is a session with one user's Lightning wallet.
type Client interface {
	Connect(ctx context.Context) error
	// Disconnect releases the session. Best-effort: failures are logged,
	// never returned.
	Disconnect()
	// CreateInvoice asks the wallet for a bolt11 invoice. The payment hash
	// may come back empty when the wallet omits it; such invoices are never
	// reconciled automatically.
	CreateInvoice(ctx context.Context, amountSats int64, description string) (invoice string, paymentHash string, err error)
	// CheckPaymentStatus reports whether the invoice behind paymentHash is
	// settled. Fail-closed: any lookup failure reads as unpaid.
	CheckPaymentStatus(ctx context.Context, paymentHash string) bool
}

// Dialer builds a Client from a user's stored credential.
type Dialer interface {
	Dial(uri string) (Client, error)
}

// Credential is a parsed nostr+walletconnect:// URI.
type Credential struct {
	WalletPubkey string
	RelayURL     string
	Secret       string
}

// ParseURI validates an NWC URI. A missing secret is replaced with a fresh
// random key; a missing pubkey or relay makes the credential unusable.
func ParseURI(uri string) (*Credential, error) {
	u, err := url.Parse(uri)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadCredential, err)
	}
	if u.Scheme != "nostr+walletconnect" && u.Scheme != "nostrwalletconnect" {
		return nil, fmt.Errorf("%w: unexpected scheme %q", ErrBadCredential, u.Scheme)
	}

	pubkey := u.Host
	if pubkey == "" {
		pubkey = u.Opaque
	}
	relay := u.Query().Get("relay")
	if pubkey == "" || relay == "" {
		return nil, fmt.Errorf("%w: missing pubkey or relay", ErrBadCredential)
	}

	secret := u.Query().Get("secret")
	if secret == "" {
		secret = nostr.GeneratePrivateKey()
	}

	return &Credential{
		WalletPubkey: pubkey,
		RelayURL:     relay,
		Secret:       secret,
	}, nil
}
